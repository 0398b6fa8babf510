package tests

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	. "github.com/trezcool/classroom/apps/api/echo"
	"github.com/trezcool/classroom/core"
	"github.com/trezcool/classroom/services/email"
	"github.com/trezcool/classroom/services/identity"
	"github.com/trezcool/classroom/storage/docstore/memdb"
	"github.com/trezcool/classroom/tests"
)

const password = "s3cret!"

type env struct {
	app      Server
	store    *memdb.DB
	accounts *identitysvc.Service
	mailer   *emailsvc.ConsoleServiceMock
}

func setup(t *testing.T) *env {
	conf := &core.Config{
		AppName:     "Classroom",
		TestMode:    true,
		SecretKey:   "test-secret",
		AdminEmails: "boss@nort.com",
		Server:      core.ServerConfig{JWTExpirationDelta: time.Hour},
	}
	store := memdb.New()
	logger := testutil.NewLogger(t)
	validate, translator := testutil.NewValidator()
	e := &env{
		store:    store,
		accounts: identitysvc.NewService(store, logger),
		mailer:   emailsvc.NewConsoleServiceMock(conf),
	}
	e.app = NewServer(conf, &Deps{
		Store:      store,
		Accounts:   e.accounts,
		Validate:   validate,
		Translator: translator,
		Mailer:     e.mailer,
		Logger:     logger,
	})
	t.Cleanup(func() {
		_ = e.app.Close()
		_ = store.Close()
	})
	return e
}

type httpErr struct {
	Error string `json:"error"`
}

type httpTest struct {
	name     string
	method   string
	path     string
	body     interface{}
	token    string
	wantCode int
}

func newAuthRequest(t *testing.T, method, path, token string, body interface{}) (*http.Request, *httptest.ResponseRecorder) {
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return req, httptest.NewRecorder()
}

// do serves the request and decodes the response body into out, when given.
func (e *env) do(t *testing.T, method, path, token string, body, out interface{}) *httptest.ResponseRecorder {
	t.Helper()
	req, rec := newAuthRequest(t, method, path, token, body)
	e.app.ServeHTTP(rec, req)
	if out != nil && rec.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), out), rec.Body.String())
	}
	return rec
}

func (e *env) login(t *testing.T, email string) LoginResponse {
	t.Helper()
	var res LoginResponse
	rec := e.do(t, http.MethodPost, "/v1/auth/login", "", map[string]string{"email": email, "password": password}, &res)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	return res
}

func runTests(t *testing.T, e *env, tests []httpTest) {
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			method := tc.method
			if method == "" {
				method = http.MethodGet
			}
			rec := e.do(t, method, tc.path, tc.token, tc.body, nil)
			if rec.Code != tc.wantCode {
				t.Errorf("failed! code = %v; wantCode %v; body %s", rec.Code, tc.wantCode, rec.Body.String())
			}
		})
	}
}

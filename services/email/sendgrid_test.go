package emailsvc

import (
	"encoding/json"
	"net/http"
	"net/mail"
	"testing"

	"github.com/pkg/errors"
	"github.com/sendgrid/rest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/classroom/core"
	"github.com/trezcool/classroom/tests"
)

func newTestSendgrid(t *testing.T) (*sendgridService, *testutil.Logger) {
	logger := testutil.NewLogger(t)
	conf := &core.Config{AppName: "Classroom", SendgridApiKey: "SG.key"}
	return NewSendgridService(conf, logger).(*sendgridService), logger
}

func mockSendgridAPI(t *testing.T, fn func(req rest.Request) (*rest.Response, error)) {
	orig := sendgridAPI
	sendgridAPI = fn
	t.Cleanup(func() { sendgridAPI = orig })
}

func TestSendgridService_prepare(t *testing.T) {
	svc, _ := newTestSendgrid(t)

	m := svc.prepare(core.EmailMessage{
		To:          []mail.Address{{Name: "Ana", Address: "ana@nort.com"}},
		Bcc:         []mail.Address{{Address: "boss@nort.com"}},
		Subject:     "Matrícula confirmada: Turma A",
		TextContent: "Olá Ana",
		Category:    "enrollment",
	})
	require.Len(t, m.Personalizations, 1)
	p := m.Personalizations[0]
	assert.Equal(t, "[Classroom] Matrícula confirmada: Turma A", p.Subject)
	require.Len(t, p.To, 1)
	assert.Equal(t, "ana@nort.com", p.To[0].Address)
	require.Len(t, p.BCC, 1)
	assert.Equal(t, []string{"Classroom", "enrollment"}, m.Categories)
	require.Len(t, m.Content, 1)
	assert.Equal(t, "Olá Ana", m.Content[0].Value)

	t.Run("default category", func(t *testing.T) {
		m := svc.prepare(core.EmailMessage{To: []mail.Address{{Address: "ana@nort.com"}}, TextContent: "x"})
		assert.Equal(t, []string{"Classroom", "general"}, m.Categories)
	})
}

func TestSendgridService_sendAll(t *testing.T) {
	msg := core.EmailMessage{
		To:          []mail.Address{{Address: "ana@nort.com"}},
		Subject:     "Oi",
		TextContent: "olá",
		Category:    "enrollment",
	}

	tests := []struct {
		name    string
		res     *rest.Response
		err     error
		wantLog string
	}{
		{name: "accepted", res: &rest.Response{StatusCode: http.StatusAccepted}},
		{name: "rejected", res: &rest.Response{StatusCode: http.StatusBadRequest, Body: "bad from"}, wantLog: "sendgrid status 400: bad from"},
		{name: "unreachable", err: errors.New("dial tcp: timeout"), wantLog: "sending enrollment email to ana@nort.com"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			svc, logger := newTestSendgrid(t)
			var calls int
			mockSendgridAPI(t, func(req rest.Request) (*rest.Response, error) {
				calls++
				assert.Equal(t, http.MethodPost, string(req.Method))
				assert.Equal(t, "Bearer SG.key", req.Headers["Authorization"])
				var body map[string]interface{}
				require.NoError(t, json.Unmarshal(req.Body, &body))
				assert.Contains(t, body, "categories")
				return tc.res, tc.err
			})

			svc.sendAll([]core.EmailMessage{msg})
			assert.Equal(t, 1, calls)
			if tc.wantLog == "" {
				assert.Empty(t, logger.Entries())
				return
			}
			assert.True(t, logger.Logged("error", tc.wantLog), "%v", logger.Entries())
		})
	}
}

func TestSendgridService_deliverable(t *testing.T) {
	svc, _ := newTestSendgrid(t)
	batch := svc.deliverable([]*core.EmailMessage{
		{To: []mail.Address{{Address: "ana@nort.com"}}, Subject: "ok", BodyStr: "olá"},
		{Subject: "no recipient", BodyStr: "x"},
		{To: []mail.Address{{Address: "ana@nort.com"}}, Subject: "no content"},
	})
	require.Len(t, batch, 1)
	assert.Equal(t, "ok", batch[0].Subject)
	assert.Equal(t, "olá", batch[0].TextContent)
}

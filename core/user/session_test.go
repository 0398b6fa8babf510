package user_test

import (
	"context"
	"sync"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/classroom/core"
	"github.com/trezcool/classroom/core/docstore"
	"github.com/trezcool/classroom/core/user"
	"github.com/trezcool/classroom/services/identity"
	"github.com/trezcool/classroom/storage/docstore/memdb"
	"github.com/trezcool/classroom/tests"
)

const password = "s3cret!"

// flakyProfiles fails every profile read.
type flakyProfiles struct {
	docstore.Store
}

func (s flakyProfiles) Get(ctx context.Context, collection, id string) (docstore.Document, error) {
	if collection == user.ProfilesCollection {
		return docstore.Document{}, errors.New("profiles unavailable")
	}
	return s.Store.Get(ctx, collection, id)
}

type stateRecorder struct {
	mu     sync.Mutex
	states []user.SessionState
}

func (r *stateRecorder) record(state user.SessionState, _ *user.User) {
	r.mu.Lock()
	r.states = append(r.states, state)
	r.mu.Unlock()
}

func (r *stateRecorder) get() []user.SessionState {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]user.SessionState(nil), r.states...)
}

type sessionFixture struct {
	store    *memdb.DB
	accounts *identitysvc.Service
	logger   *testutil.Logger
	enrolled [][2]string
}

func newFixture(t *testing.T) *sessionFixture {
	store := memdb.New()
	t.Cleanup(func() { _ = store.Close() })
	logger := testutil.NewLogger(t)
	return &sessionFixture{store: store, accounts: identitysvc.NewService(store, logger), logger: logger}
}

func (f *sessionFixture) session(t *testing.T, store docstore.Store, allowList string) *user.Session {
	validate, _ := testutil.NewValidator()
	sess := user.NewSession(user.SessionDeps{
		Provider:  f.accounts.Client(),
		Profiles:  user.NewProfileRepository(store, validate, f.logger),
		AllowList: user.ParseAllowList(allowList),
		Validate:  validate,
		Logger:    f.logger,
		Enroll: func(_ context.Context, studentID, classID string) error {
			f.enrolled = append(f.enrolled, [2]string{studentID, classID})
			return nil
		},
	})
	t.Cleanup(sess.Close)
	return sess
}

func TestSession_SignIn(t *testing.T) {
	ctx := context.Background()

	t.Run("existing profile", func(t *testing.T) {
		f := newFixture(t)
		stored := testutil.CreateUser(t, f.store, f.accounts, "Maria", "maria@nort.com", password, user.RoleStudent)

		sess := f.session(t, f.store, "")
		sess.Start()
		assert.Equal(t, user.StateUnauthenticated, sess.State())

		rec := new(stateRecorder)
		sess.OnChange(rec.record)

		usr, err := sess.SignIn(ctx, user.Credentials{Email: " MARIA@nort.com ", Password: password})
		require.NoError(t, err)
		assert.Equal(t, stored.ID, usr.ID)
		assert.Equal(t, "Maria", usr.Name)
		assert.Equal(t, user.RoleStudent, usr.Role)
		assert.Equal(t, user.StateAuthenticated, sess.State())
		assert.Equal(t, []user.SessionState{user.StateLoadingProfile, user.StateAuthenticated}, rec.get())
	})

	t.Run("allow-listed email is admin", func(t *testing.T) {
		f := newFixture(t)
		testutil.CreateUser(t, f.store, f.accounts, "Chefe", "boss@nort.com", password, user.RoleStudent)

		sess := f.session(t, f.store, "Boss@Nort.com")
		usr, err := sess.SignIn(ctx, user.Credentials{Email: "boss@nort.com", Password: password})
		require.NoError(t, err)
		assert.Equal(t, user.RoleAdmin, usr.Role)
	})

	t.Run("missing profile is created", func(t *testing.T) {
		f := newFixture(t)
		_, err := f.accounts.CreateAccount(ctx, "joao.souza@nort.com", password, "")
		require.NoError(t, err)

		sess := f.session(t, f.store, "")
		usr, err := sess.SignIn(ctx, user.Credentials{Email: "joao.souza@nort.com", Password: password})
		require.NoError(t, err)
		assert.Equal(t, "joao.souza", usr.Name)
		assert.Equal(t, user.RoleStudent, usr.Role)
		assert.Equal(t, user.StateAuthenticated, sess.State())

		validate, _ := testutil.NewValidator()
		stored, err := user.NewProfileRepository(f.store, validate, f.logger).Get(ctx, usr.ID)
		require.NoError(t, err)
		assert.Equal(t, "joao.souza", stored.Name)
		assert.Equal(t, "joao.souza@nort.com", stored.Email)
	})

	t.Run("profile failure falls back to the identity", func(t *testing.T) {
		f := newFixture(t)
		testutil.CreateUser(t, f.store, f.accounts, "Chefe", "boss@nort.com", password, user.RoleStudent)

		sess := f.session(t, flakyProfiles{f.store}, "boss@nort.com")
		usr, err := sess.SignIn(ctx, user.Credentials{Email: "boss@nort.com", Password: password})
		require.NoError(t, err)
		assert.Equal(t, user.StateErrorFallback, sess.State())
		assert.Equal(t, "Chefe", usr.Name)
		assert.Equal(t, user.RoleAdmin, usr.Role)
		assert.True(t, f.logger.Logged("error", "profiles unavailable"))
	})

	t.Run("wrong password", func(t *testing.T) {
		f := newFixture(t)
		testutil.CreateUser(t, f.store, f.accounts, "Maria", "maria@nort.com", password, user.RoleStudent)

		sess := f.session(t, f.store, "")
		_, err := sess.SignIn(ctx, user.Credentials{Email: "maria@nort.com", Password: "nope!!"})
		assert.Equal(t, user.ErrInvalidCredentials, err)
		_, err = sess.SignIn(ctx, user.Credentials{Email: "ghost@nort.com", Password: password})
		assert.Equal(t, user.ErrInvalidCredentials, err)
		_, err = sess.SignIn(ctx, user.Credentials{Email: "not-an-email", Password: password})
		assert.Error(t, err)
		assert.Equal(t, user.StateUnauthenticated, sess.State())
		_, ok := sess.Current()
		assert.False(t, ok)
	})
}

func TestSession_SignOut(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	testutil.CreateUser(t, f.store, f.accounts, "Maria", "maria@nort.com", password, user.RoleStudent)

	sess := f.session(t, f.store, "")
	_, err := sess.SignIn(ctx, user.Credentials{Email: "maria@nort.com", Password: password})
	require.NoError(t, err)

	var last *user.User
	sess.OnChange(func(_ user.SessionState, usr *user.User) { last = usr })
	require.NoError(t, sess.SignOut(ctx))
	assert.Equal(t, user.StateUnauthenticated, sess.State())
	assert.Nil(t, last)
	_, ok := sess.Current()
	assert.False(t, ok)
}

func TestSession_Register(t *testing.T) {
	ctx := context.Background()
	valid := user.NewUser{
		Name:            " Ana Lima ",
		Email:           "Ana@Nort.com",
		Phone:           "11 98888-7777",
		Password:        password,
		PasswordConfirm: password,
		ClassID:         "c1",
	}

	t.Run("invalid input", func(t *testing.T) {
		tests := []struct {
			name  string
			patch func(nu *user.NewUser)
			field string
		}{
			{"missing name", func(nu *user.NewUser) { nu.Name = " " }, "name"},
			{"missing phone", func(nu *user.NewUser) { nu.Phone = "" }, "phone"},
			{"bad email", func(nu *user.NewUser) { nu.Email = "ana" }, "email"},
			{"short password", func(nu *user.NewUser) { nu.Password, nu.PasswordConfirm = "abc", "abc" }, "password"},
			{"password mismatch", func(nu *user.NewUser) { nu.PasswordConfirm = "other1" }, "password_confirm"},
			{"password like the email", func(nu *user.NewUser) { nu.Password, nu.PasswordConfirm = "ana@nort.com", "ana@nort.com" }, "password"},
		}
		for _, tc := range tests {
			t.Run(tc.name, func(t *testing.T) {
				f := newFixture(t)
				sess := f.session(t, f.store, "")
				_, translator := testutil.NewValidator()

				nu := valid
				tc.patch(&nu)
				_, err := sess.Register(ctx, nu)
				require.Error(t, err)

				vErr, ok := core.TranslateValidationErrors(err, translator).(*core.ValidationError)
				require.True(t, ok, "%v", err)
				var fields []string
				for _, fe := range vErr.Fields {
					fields = append(fields, fe.Field)
				}
				assert.Contains(t, fields, tc.field)
				assert.Empty(t, f.enrolled)
			})
		}
	})

	t.Run("signs in and enrolls", func(t *testing.T) {
		f := newFixture(t)
		sess := f.session(t, f.store, "")

		usr, err := sess.Register(ctx, valid)
		require.NoError(t, err)
		assert.Equal(t, "Ana Lima", usr.Name)
		assert.Equal(t, "ana@nort.com", usr.Email)
		assert.Equal(t, "11 98888-7777", usr.Phone)
		assert.Equal(t, user.RoleStudent, usr.Role)
		assert.Equal(t, user.StateAuthenticated, sess.State())
		assert.Equal(t, [][2]string{{usr.ID, "c1"}}, f.enrolled)

		_, err = sess.Register(ctx, valid)
		assert.True(t, core.IsValidationError(err))
	})
}

func TestSession_UpdateUser(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	maria := testutil.CreateUser(t, f.store, f.accounts, "Maria", "maria@nort.com", password, user.RoleStudent)
	other := testutil.CreateUser(t, f.store, f.accounts, "Pedro", "pedro@nort.com", password, user.RoleStudent)

	sess := f.session(t, f.store, "")
	_, err := sess.SignIn(ctx, user.Credentials{Email: "maria@nort.com", Password: password})
	require.NoError(t, err)

	require.NoError(t, sess.UpdateUser(ctx, other.ID, user.UpdateUser{Name: "Pedro Alves"}))
	current, _ := sess.Current()
	assert.Equal(t, "Maria", current.Name)

	require.NoError(t, sess.UpdateUser(ctx, maria.ID, user.UpdateUser{Name: "Maria Clara"}))
	current, _ = sess.Current()
	assert.Equal(t, "Maria Clara", current.Name)

	assert.Equal(t, user.ErrNotFound, sess.UpdateUser(ctx, "ghost", user.UpdateUser{Name: "x"}))
	assert.Error(t, sess.UpdateUser(ctx, maria.ID, user.UpdateUser{Email: "bad"}))
}

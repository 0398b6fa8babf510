package testutil

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/trezcool/classroom/core/docstore"
	"github.com/trezcool/classroom/core/user"
	"github.com/trezcool/classroom/services/identity"
)

// CreateUser creates an account with password and its profile, and returns the stored user.
func CreateUser(t testing.TB, store docstore.Store, accounts *identitysvc.Service, name, email, password string, role user.Role) user.User {
	t.Helper()
	ctx := context.Background()

	acc, err := accounts.CreateAccount(ctx, email, password, name)
	require.NoError(t, err)

	validate, _ := NewValidator()
	profiles := user.NewProfileRepository(store, validate, NewLogger(t))
	usr := user.User{ID: acc.ID, Name: name, Email: acc.Email, Role: role}
	require.NoError(t, profiles.Save(ctx, usr))

	usr, err = profiles.Get(ctx, acc.ID)
	require.NoError(t, err)
	return usr
}

// NewSession returns a started session over a fresh identity client of accounts.
func NewSession(t testing.TB, store docstore.Store, accounts *identitysvc.Service, allowList user.AllowList) *user.Session {
	t.Helper()
	validate, _ := NewValidator()
	sess := user.NewSession(user.SessionDeps{
		Provider:  accounts.Client(),
		Profiles:  user.NewProfileRepository(store, validate, NewLogger(t)),
		AllowList: allowList,
		Validate:  validate,
		Logger:    NewLogger(t),
	})
	sess.Start()
	t.Cleanup(sess.Close)
	return sess
}

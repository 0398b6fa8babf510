package user

import (
	"context"

	"github.com/pkg/errors"
)

var (
	// errors
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrEmailExists        = errors.New("a user with this email already exists")
	ErrNotFound           = errors.New("user not found")
)

// Identity is an authenticated principal, as known by the identity provider.
type Identity struct {
	UID         string `json:"uid"`
	Email       string `json:"email"`
	DisplayName string `json:"displayName"`
}

// IdentityListener is told about every identity change. A nil identity means signed out.
type IdentityListener func(ctx context.Context, id *Identity)

// IdentityProvider authenticates one client.
//
// Listeners are called with the current identity when registered, then synchronously
// from SignIn, SignUp and SignOut before they return.
type IdentityProvider interface {
	SignIn(ctx context.Context, email, password string) (Identity, error)
	// SignUp creates an account and signs it in.
	SignUp(ctx context.Context, email, password, displayName string) (Identity, error)
	SignOut(ctx context.Context) error
	OnIdentityChange(fn IdentityListener) (unsubscribe func())
}

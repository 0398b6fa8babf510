// Package identitysvc is a local identity provider: email/password accounts stored in the document store.
package identitysvc

import (
	"context"
	"fmt"
	"time"

	"github.com/pkg/errors"
	"golang.org/x/crypto/bcrypt"

	"github.com/trezcool/classroom/core"
	"github.com/trezcool/classroom/core/docstore"
	"github.com/trezcool/classroom/core/user"
)

const AccountsCollection = "accounts"

// Account is a set of credentials. Its ID is the identity UID.
type Account struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	DisplayName  string    `json:"displayName"`
	PasswordHash []byte    `json:"passwordHash"`
	CreatedAt    time.Time `json:"-"` // UTC
	LastLogin    time.Time `json:"-"` // UTC
}

type accountDoc struct {
	Account
	CreatedAt docstore.Timestamp `json:"createdAt"`
	LastLogin docstore.Timestamp `json:"lastLogin"`
}

func decodeAccount(doc docstore.Document) (Account, error) {
	var d accountDoc
	if err := doc.Decode(&d); err != nil {
		return Account{}, err
	}
	acc := d.Account
	acc.CreatedAt = d.CreatedAt.Time()
	acc.LastLogin = d.LastLogin.Time()
	return acc, nil
}

func (acc Account) Identity() user.Identity {
	return user.Identity{UID: acc.ID, Email: acc.Email, DisplayName: acc.DisplayName}
}

func (acc Account) checkPassword(pwd string) error {
	return bcrypt.CompareHashAndPassword(acc.PasswordHash, []byte(pwd))
}

func hashPassword(pwd string) ([]byte, error) {
	return bcrypt.GenerateFromPassword([]byte(pwd), bcrypt.DefaultCost)
}

func emailKey(email string) string {
	return "email:" + email
}

// Service is the account directory shared by every client.
type Service struct {
	store  docstore.Store
	logger core.Logger
}

func NewService(store docstore.Store, logger core.Logger) *Service {
	return &Service{store: store, logger: logger}
}

// CreateAccount stores a new account. It fails with user.ErrEmailExists if the email is taken.
func (svc *Service) CreateAccount(ctx context.Context, email, password, displayName string) (Account, error) {
	email = core.CleanString(email, true /* lower */)
	if email == "" || password == "" {
		return Account{}, user.ErrInvalidCredentials
	}
	hash, err := hashPassword(password)
	if err != nil {
		return Account{}, errors.Wrap(err, "hashing password")
	}

	acc := Account{Email: email, DisplayName: core.CleanString(displayName), PasswordHash: hash}
	id, err := svc.store.CreateUnique(ctx, AccountsCollection, emailKey(email), docstore.Fields{
		"email":        acc.Email,
		"displayName":  acc.DisplayName,
		"passwordHash": acc.PasswordHash,
		"createdAt":    docstore.ServerTimestamp,
	})
	if err == docstore.ErrDuplicate {
		return Account{}, user.ErrEmailExists
	}
	if err != nil {
		return Account{}, errors.Wrap(err, "creating account")
	}
	acc.ID = id
	acc.CreatedAt = core.NowFunc().UTC()
	return acc, nil
}

// Lookup returns the account registered with email.
func (svc *Service) Lookup(ctx context.Context, email string) (Account, error) {
	email = core.CleanString(email, true /* lower */)
	snap, err := svc.store.List(ctx, docstore.Query{
		Collection: AccountsCollection,
		Where:      []docstore.Where{{Field: "email", Value: email}},
	})
	if err != nil {
		return Account{}, errors.Wrap(err, "looking up account")
	}
	if len(snap.Docs) == 0 {
		return Account{}, user.ErrNotFound
	}
	return decodeAccount(snap.Docs[0])
}

// Authenticate checks the credentials and records the login.
func (svc *Service) Authenticate(ctx context.Context, email, password string) (Account, error) {
	acc, err := svc.Lookup(ctx, email)
	if err == user.ErrNotFound {
		return Account{}, user.ErrInvalidCredentials
	}
	if err != nil {
		return Account{}, err
	}
	if err := acc.checkPassword(password); err != nil {
		return Account{}, user.ErrInvalidCredentials
	}

	if err := svc.store.Patch(ctx, AccountsCollection, acc.ID, docstore.Fields{"lastLogin": docstore.ServerTimestamp}); err != nil {
		svc.logger.Warn(fmt.Sprintf("recording login of %s: %v", acc.ID, err), err)
	}
	acc.LastLogin = core.NowFunc().UTC()
	return acc, nil
}

// SetPassword replaces the password of the account registered with email.
func (svc *Service) SetPassword(ctx context.Context, email, password string) error {
	if password == "" {
		return user.ErrInvalidCredentials
	}
	acc, err := svc.Lookup(ctx, email)
	if err != nil {
		return err
	}
	hash, err := hashPassword(password)
	if err != nil {
		return errors.Wrap(err, "hashing password")
	}
	return errors.Wrap(
		svc.store.Patch(ctx, AccountsCollection, acc.ID, docstore.Fields{"passwordHash": hash}),
		"updating password",
	)
}

// Client returns a new signed-out client, one per session.
func (svc *Service) Client() *Client {
	return &Client{svc: svc, listeners: make(map[int]user.IdentityListener)}
}

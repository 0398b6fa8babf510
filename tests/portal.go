package testutil

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/trezcool/classroom/core"
	"github.com/trezcool/classroom/core/docstore"
	"github.com/trezcool/classroom/core/portal"
	"github.com/trezcool/classroom/core/user"
)

// OpenPortal opens a portal for actor and closes it with the test. mailer may be nil.
func OpenPortal(t testing.TB, store docstore.Store, actor user.User, allowList user.AllowList, mailer core.EmailService) *portal.Portal {
	t.Helper()
	validate, _ := NewValidator()
	p, err := portal.Open(context.Background(), portal.Deps{
		Store:     store,
		Validate:  validate,
		Logger:    NewLogger(t),
		AllowList: allowList,
		Mailer:    mailer,
	}, actor)
	require.NoError(t, err)
	t.Cleanup(p.Close)
	return p
}

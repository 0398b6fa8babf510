package identitysvc

import (
	"context"
	"sync"

	"github.com/trezcool/classroom/core/user"
)

// Client is the identity of one session.
type Client struct {
	svc *Service

	mu        sync.Mutex
	current   *user.Identity
	listeners map[int]user.IdentityListener
	nextKey   int
}

var _ user.IdentityProvider = (*Client)(nil)

func (c *Client) SignIn(ctx context.Context, email, password string) (user.Identity, error) {
	acc, err := c.svc.Authenticate(ctx, email, password)
	if err != nil {
		return user.Identity{}, err
	}
	id := acc.Identity()
	c.set(ctx, &id)
	return id, nil
}

func (c *Client) SignUp(ctx context.Context, email, password, displayName string) (user.Identity, error) {
	acc, err := c.svc.CreateAccount(ctx, email, password, displayName)
	if err != nil {
		return user.Identity{}, err
	}
	id := acc.Identity()
	c.set(ctx, &id)
	return id, nil
}

func (c *Client) SignOut(ctx context.Context) error {
	c.set(ctx, nil)
	return nil
}

// Current returns the signed-in identity, if any.
func (c *Client) Current() (user.Identity, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.current == nil {
		return user.Identity{}, false
	}
	return *c.current, true
}

func (c *Client) OnIdentityChange(fn user.IdentityListener) (unsubscribe func()) {
	c.mu.Lock()
	key := c.nextKey
	c.nextKey++
	c.listeners[key] = fn
	current := copyIdentity(c.current)
	c.mu.Unlock()

	fn(context.Background(), current)
	return func() {
		c.mu.Lock()
		delete(c.listeners, key)
		c.mu.Unlock()
	}
}

func (c *Client) set(ctx context.Context, id *user.Identity) {
	c.mu.Lock()
	c.current = copyIdentity(id)
	listeners := make([]user.IdentityListener, 0, len(c.listeners))
	for _, fn := range c.listeners {
		listeners = append(listeners, fn)
	}
	c.mu.Unlock()

	for _, fn := range listeners {
		fn(ctx, copyIdentity(id))
	}
}

func copyIdentity(id *user.Identity) *user.Identity {
	if id == nil {
		return nil
	}
	cp := *id
	return &cp
}

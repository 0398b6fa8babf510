package user

import (
	"context"
	"fmt"
	"sync"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"

	"github.com/trezcool/classroom/core"
)

type SessionState string

// Session states
const (
	StateUnauthenticated SessionState = "unauthenticated"
	StateLoadingProfile  SessionState = "loading-profile"
	StateAuthenticated   SessionState = "authenticated"
	StateErrorFallback   SessionState = "error-fallback"
)

// SignedIn reports whether the state carries a user.
func (s SessionState) SignedIn() bool {
	return s == StateAuthenticated || s == StateErrorFallback
}

// EnrollFunc enrolls a freshly registered student in a class.
type EnrollFunc func(ctx context.Context, studentID, classID string) error

// SessionListener is told about every state change of a session.
type SessionListener func(state SessionState, usr *User)

type SessionDeps struct {
	Provider  IdentityProvider
	Profiles  *ProfileRepository
	AllowList AllowList
	Validate  *validator.Validate
	Logger    core.Logger
	Enroll    EnrollFunc // optional
}

// Session tracks who is signed in on one client and resolves their profile.
//
// unauthenticated -> loading-profile -> authenticated | error-fallback;
// any signed-in state -> unauthenticated on sign-out.
type Session struct {
	deps SessionDeps

	startMu sync.Mutex

	mu         sync.RWMutex
	state      SessionState
	current    *User
	identity   *Identity
	listeners  map[int]SessionListener
	nextListen int
	unsub      func()
}

func NewSession(deps SessionDeps) *Session {
	return &Session{
		deps:      deps,
		state:     StateUnauthenticated,
		listeners: make(map[int]SessionListener),
	}
}

// Start follows the identity of the provider. The current identity is resolved before it returns.
func (s *Session) Start() {
	s.startMu.Lock()
	defer s.startMu.Unlock()

	s.mu.RLock()
	started := s.unsub != nil
	s.mu.RUnlock()
	if started {
		return
	}

	unsub := s.deps.Provider.OnIdentityChange(s.onIdentityChange)
	s.mu.Lock()
	s.unsub = unsub
	s.mu.Unlock()
}

func (s *Session) onIdentityChange(ctx context.Context, id *Identity) {
	if id == nil {
		s.setState(StateUnauthenticated, nil, nil)
		return
	}
	s.loadProfile(ctx, *id)
}

// loadProfile resolves the profile of id, creating it when missing.
// On failure the session falls back to what the identity itself tells.
func (s *Session) loadProfile(ctx context.Context, id Identity) {
	s.setState(StateLoadingProfile, nil, &id)

	usr, err := s.deps.Profiles.Get(ctx, id.UID)
	switch {
	case err == nil:
		usr = s.deps.AllowList.Apply(usr, id.Email)
		s.setState(StateAuthenticated, &usr, &id)
		return
	case err == ErrNotFound:
		s.deps.Logger.Warn(fmt.Sprintf("no profile for %s, creating one", id.UID))
		usr = User{
			ID:    id.UID,
			Name:  NameFor(id.DisplayName, id.Email),
			Email: core.CleanString(id.Email, true /* lower */),
			Role:  RoleStudent,
		}
		if err = s.deps.Profiles.Save(ctx, usr); err == nil {
			now := core.NowFunc().UTC()
			usr.CreatedAt, usr.UpdatedAt = now, now
			usr = s.deps.AllowList.Apply(usr)
			s.setState(StateAuthenticated, &usr, &id)
			return
		}
	}

	s.deps.Logger.Error(fmt.Sprintf("loading profile of %s: %v", id.UID, err), err)
	usr = User{
		ID:    id.UID,
		Name:  NameFor(id.DisplayName, id.Email),
		Email: id.Email,
		Role:  s.deps.AllowList.RoleFor(id.Email),
	}
	s.setState(StateErrorFallback, &usr, &id)
}

func (s *Session) setState(state SessionState, usr *User, id *Identity) {
	s.mu.Lock()
	s.state = state
	s.current = usr
	s.identity = id
	listeners := make([]SessionListener, 0, len(s.listeners))
	for _, fn := range s.listeners {
		listeners = append(listeners, fn)
	}
	s.mu.Unlock()

	for _, fn := range listeners {
		fn(state, copyUser(usr))
	}
}

func copyUser(usr *User) *User {
	if usr == nil {
		return nil
	}
	u := *usr
	return &u
}

// SignIn authenticates with email and password and returns the resolved user.
func (s *Session) SignIn(ctx context.Context, creds Credentials) (User, error) {
	if err := creds.Validate(s.deps.Validate); err != nil {
		return User{}, err
	}
	s.Start()
	if _, err := s.deps.Provider.SignIn(ctx, creds.Email, creds.Password); err != nil {
		s.deps.Logger.Info(fmt.Sprintf("sign in failed for %s: %v", creds.Email, err))
		return User{}, err
	}
	usr, ok := s.Current()
	if !ok {
		return User{}, errors.New("sign in did not resolve a user")
	}
	return usr, nil
}

// Register creates the account and profile of a new student, signs them in,
// then enrolls them in nu.ClassID if given. Enrollment failures are logged only.
func (s *Session) Register(ctx context.Context, nu NewUser) (User, error) {
	if err := nu.Validate(s.deps.Validate); err != nil {
		return User{}, err
	}
	s.Start()

	id, err := s.deps.Provider.SignUp(ctx, nu.Email, nu.Password, nu.Name)
	if err != nil {
		if errors.Cause(err) == ErrEmailExists {
			return User{}, core.NewValidationError(err, core.FieldError{Field: "email", Error: err.Error()})
		}
		s.deps.Logger.Error(fmt.Sprintf("signing up %s: %v", nu.Email, err), err)
		return User{}, err
	}

	usr := User{ID: id.UID, Name: nu.Name, Email: nu.Email, Role: RoleStudent, Phone: nu.Phone}
	if err := s.deps.Profiles.Save(ctx, usr); err != nil {
		s.deps.Logger.Error(fmt.Sprintf("saving profile of %s: %v", id.UID, err), err)
		return User{}, err
	}
	s.loadProfile(ctx, id)

	if nu.ClassID != "" && s.deps.Enroll != nil {
		if err := s.deps.Enroll(ctx, id.UID, nu.ClassID); err != nil {
			s.deps.Logger.Error(fmt.Sprintf("enrolling %s in %s: %v", id.UID, nu.ClassID, err), err)
		}
	}

	if current, ok := s.Current(); ok && current.ID == id.UID {
		return current, nil
	}
	return s.deps.AllowList.Apply(usr), nil
}

// SignOut ends the session. Provider failures are logged and returned; the session keeps its state then.
func (s *Session) SignOut(ctx context.Context) error {
	if err := s.deps.Provider.SignOut(ctx); err != nil {
		s.deps.Logger.Error(fmt.Sprintf("signing out: %v", err), err)
		return err
	}
	s.mu.RLock()
	state := s.state
	s.mu.RUnlock()
	if state != StateUnauthenticated {
		s.setState(StateUnauthenticated, nil, nil)
	}
	return nil
}

// UpdateUser patches the profile stored under id; the current user follows when it is the one updated.
func (s *Session) UpdateUser(ctx context.Context, id string, uu UpdateUser) error {
	if err := s.deps.Profiles.Update(ctx, id, uu); err != nil {
		s.deps.Logger.Error(fmt.Sprintf("updating profile %s: %v", id, err), err)
		return err
	}

	s.mu.RLock()
	current, state, ident := copyUser(s.current), s.state, s.identity
	s.mu.RUnlock()
	if current != nil && current.ID == id {
		updated := s.deps.AllowList.Apply(uu.ApplyTo(*current))
		s.setState(state, &updated, ident)
	}
	return nil
}

// Current returns the signed-in user, if any.
func (s *Session) Current() (User, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.current == nil {
		return User{}, false
	}
	return *s.current, true
}

func (s *Session) State() SessionState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// OnChange registers fn for state changes. The returned func unregisters it.
func (s *Session) OnChange(fn SessionListener) (unsubscribe func()) {
	s.mu.Lock()
	key := s.nextListen
	s.nextListen++
	s.listeners[key] = fn
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		delete(s.listeners, key)
		s.mu.Unlock()
	}
}

// Close stops following the provider and drops the listeners.
func (s *Session) Close() {
	s.startMu.Lock()
	defer s.startMu.Unlock()

	s.mu.Lock()
	unsub := s.unsub
	s.unsub = nil
	s.listeners = make(map[int]SessionListener)
	s.mu.Unlock()

	if unsub != nil {
		unsub()
	}
}

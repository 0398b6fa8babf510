package echoapi

import (
	"context"
	"sync"
	"time"

	"github.com/dgrijalva/jwt-go"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/classroom/core"
	"github.com/trezcool/classroom/core/classroom"
	"github.com/trezcool/classroom/core/portal"
	"github.com/trezcool/classroom/core/user"
)

const contextSessionKey = "session"

// Claims represents the authorization claims transmitted via a JWT.
// Id is the key of the server-side session.
type Claims struct {
	jwt.StandardClaims
	Email   string `json:"email,omitempty"`
	IsAdmin bool   `json:"is_admin,omitempty"`
}

func (s *server) userClaims(usr user.User, sessionID string) *Claims {
	now := core.NowFunc()
	return &Claims{
		StandardClaims: jwt.StandardClaims{
			Id:        sessionID,
			Issuer:    s.conf.AppName,
			Subject:   usr.ID,
			ExpiresAt: now.Add(s.conf.Server.JWTExpirationDelta).Unix(),
			IssuedAt:  now.Unix(),
		},
		Email:   usr.Email,
		IsAdmin: usr.IsAdmin(),
	}
}

// generateToken generates a signed JWT token string representing the user Claims.
func (s *server) generateToken(claims *Claims) (string, error) {
	method := jwt.GetSigningMethod(s.jwtConfig.SigningMethod)
	token := jwt.NewWithClaims(method, claims)

	ss, err := token.SignedString(s.jwtConfig.SigningKey)
	if err != nil {
		return "", errors.New("signing token")
	}
	return ss, nil
}

func (s *server) getContextClaims(ctx echo.Context) (Claims, error) {
	if token, ok := ctx.Get(s.jwtConfig.ContextKey).(*jwt.Token); ok {
		if claims, ok := token.Claims.(*Claims); ok {
			return *claims, nil
		}
	}
	return Claims{}, errUnauthorized
}

func expiry(claims *Claims) time.Time {
	return time.Unix(claims.ExpiresAt, 0)
}

// clientSession is what a login opens on the server: an identity session and the portal of its user.
type clientSession struct {
	id        string
	session   *user.Session
	portal    *portal.Portal
	expiresAt time.Time
}

func (cs *clientSession) close(ctx context.Context) {
	cs.portal.Close()
	_ = cs.session.SignOut(ctx)
	cs.session.Close()
}

type sessionRegistry struct {
	mu       sync.Mutex
	sessions map[string]*clientSession
}

func newSessionRegistry() *sessionRegistry {
	return &sessionRegistry{sessions: make(map[string]*clientSession)}
}

func (r *sessionRegistry) add(cs *clientSession) {
	r.mu.Lock()
	r.sessions[cs.id] = cs
	r.mu.Unlock()
}

func (r *sessionRegistry) get(id string) (*clientSession, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	cs, ok := r.sessions[id]
	return cs, ok
}

func (r *sessionRegistry) remove(id string) (*clientSession, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	cs, ok := r.sessions[id]
	delete(r.sessions, id)
	return cs, ok
}

// prune closes the sessions whose token expired.
func (r *sessionRegistry) prune(ctx context.Context, now time.Time) int {
	r.mu.Lock()
	expired := make([]*clientSession, 0)
	for id, cs := range r.sessions {
		if now.After(cs.expiresAt) {
			expired = append(expired, cs)
			delete(r.sessions, id)
		}
	}
	r.mu.Unlock()

	for _, cs := range expired {
		cs.close(ctx)
	}
	return len(expired)
}

func (r *sessionRegistry) closeAll(ctx context.Context) {
	r.mu.Lock()
	all := r.sessions
	r.sessions = make(map[string]*clientSession)
	r.mu.Unlock()

	for _, cs := range all {
		cs.close(ctx)
	}
}

func (r *sessionRegistry) len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

func (s *server) newSession() *user.Session {
	sess := user.NewSession(user.SessionDeps{
		Provider:  s.deps.Accounts.Client(),
		Profiles:  user.NewProfileRepository(s.deps.Store, s.deps.Validate, s.deps.Logger),
		AllowList: s.allowList,
		Validate:  s.deps.Validate,
		Logger:    s.deps.Logger,
		Enroll: func(ctx context.Context, studentID, classID string) error {
			enrollments := classroom.NewEnrollmentRepository(s.deps.Store, s.deps.Validate, s.deps.Logger)
			_, _, err := enrollments.Enroll(ctx, studentID, classID)
			return err
		},
	})
	sess.Start()
	return sess
}

// openSession opens the portal of the signed-in user of sess and returns its token.
func (s *server) openSession(ctx context.Context, sess *user.Session) (string, user.User, error) {
	usr, ok := sess.Current()
	if !ok {
		return "", user.User{}, errUnauthorized
	}
	p, err := portal.Open(ctx, portal.Deps{
		Store:     s.deps.Store,
		Validate:  s.deps.Validate,
		Logger:    s.deps.Logger,
		AllowList: s.allowList,
		Mailer:    s.deps.Mailer,
		Session:   sess,
	}, usr)
	if err != nil {
		return "", user.User{}, errors.Wrap(err, "opening portal")
	}

	s.sessions.prune(ctx, core.NowFunc())
	claims := s.userClaims(usr, uuid.NewString())
	token, err := s.generateToken(claims)
	if err != nil {
		p.Close()
		return "", user.User{}, err
	}
	s.sessions.add(&clientSession{
		id:        claims.Id,
		session:   sess,
		portal:    p,
		expiresAt: expiry(claims),
	})
	return token, usr, nil
}

// sessionMiddleware resolves the session of the JWT and exposes it to the handlers.
func (s *server) sessionMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(ctx echo.Context) error {
		claims, err := s.getContextClaims(ctx)
		if err != nil {
			return err
		}
		cs, ok := s.sessions.get(claims.Id)
		if !ok || cs.portal.Actor().ID != claims.Subject {
			return errSessionExpired
		}
		ctx.Set(contextSessionKey, cs)
		return next(ctx)
	}
}

func contextSession(ctx echo.Context) *clientSession {
	cs, _ := ctx.Get(contextSessionKey).(*clientSession)
	return cs
}

func contextPortal(ctx echo.Context) *portal.Portal {
	return contextSession(ctx).portal
}

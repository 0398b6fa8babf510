// Package portal combines the live repositories of one session into a single queryable surface.
package portal

import (
	"context"
	"fmt"
	"sync"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
	"github.com/sourcegraph/conc/pool"

	"github.com/trezcool/classroom/core"
	"github.com/trezcool/classroom/core/classroom"
	"github.com/trezcool/classroom/core/docstore"
	"github.com/trezcool/classroom/core/user"
)

var (
	// errors
	ErrPermissionDenied = errors.New("permission denied")
)

type Deps struct {
	Store     docstore.Store
	Validate  *validator.Validate
	Logger    core.Logger
	AllowList user.AllowList
	Mailer    core.EmailService // optional
	Session   *user.Session     // optional, kept in sync on profile updates
}

type subscriber interface {
	Subscribe(ctx context.Context) error
	Ready() <-chan struct{}
	Collection() string
	Close()
}

// Portal is the state of one signed-in user: every collection, kept live, plus derived views and mutations.
type Portal struct {
	deps  Deps
	actor user.User

	classes     *classroom.ClassRepository
	lessons     *classroom.LessonRepository
	attendances *classroom.AttendanceRepository
	enrollments *classroom.EnrollmentRepository
	ratings     *classroom.RatingRepository
	profiles    *user.ProfileRepository

	mu     sync.RWMutex
	closed bool
}

// Open subscribes every collection concurrently and returns once all of them delivered their first snapshot.
func Open(ctx context.Context, deps Deps, actor user.User) (*Portal, error) {
	p := &Portal{
		deps:        deps,
		actor:       actor,
		classes:     classroom.NewClassRepository(deps.Store, deps.Validate, deps.Logger),
		lessons:     classroom.NewLessonRepository(deps.Store, deps.Validate, deps.Logger),
		attendances: classroom.NewAttendanceRepository(deps.Store, deps.Validate, deps.Logger),
		enrollments: classroom.NewEnrollmentRepository(deps.Store, deps.Validate, deps.Logger),
		ratings:     classroom.NewRatingRepository(deps.Store, deps.Validate, deps.Logger),
		profiles:    user.NewProfileRepository(deps.Store, deps.Validate, deps.Logger),
	}

	subs := p.subscribers()
	wp := pool.New().WithErrors().WithContext(ctx)
	for _, sub := range subs {
		sub := sub
		wp.Go(func(ctx context.Context) error {
			if err := sub.Subscribe(ctx); err != nil {
				return err
			}
			select {
			case <-sub.Ready():
				return nil
			case <-ctx.Done():
				return errors.Wrapf(ctx.Err(), "waiting for %s", sub.Collection())
			}
		})
	}
	if err := wp.Wait(); err != nil {
		p.Close()
		deps.Logger.Error(fmt.Sprintf("opening portal: %v", err), err, actor)
		return nil, err
	}

	deps.Logger.Debug(fmt.Sprintf("portal ready for %s (%s)", actor.ID, actor.Role))
	return p, nil
}

func (p *Portal) subscribers() []subscriber {
	return []subscriber{p.classes, p.lessons, p.attendances, p.enrollments, p.ratings, p.profiles}
}

// Actor is the user the portal was opened for.
func (p *Portal) Actor() user.User {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.actor
}

// Close tears down every subscription. Mutations fail with docstore.ErrClosed afterwards.
func (p *Portal) Close() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	p.mu.Unlock()

	for _, sub := range p.subscribers() {
		sub.Close()
	}
}

func (p *Portal) checkOpen() error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return docstore.ErrClosed
	}
	return nil
}

func (p *Portal) requireAdmin() error {
	if err := p.checkOpen(); err != nil {
		return err
	}
	if !p.Actor().IsAdmin() {
		return ErrPermissionDenied
	}
	return nil
}

func (p *Portal) requireSelfOrAdmin(userID string) error {
	if err := p.checkOpen(); err != nil {
		return err
	}
	if actor := p.Actor(); !actor.IsAdmin() && actor.ID != userID {
		return ErrPermissionDenied
	}
	return nil
}

// fail logs err against the actor and returns it.
func (p *Portal) fail(action string, err error) error {
	if err == nil {
		return nil
	}
	switch {
	case err == ErrPermissionDenied, err == docstore.ErrClosed, core.IsValidationError(err):
		p.deps.Logger.Info(fmt.Sprintf("%s: %v", action, err))
	default:
		if _, ok := err.(validator.ValidationErrors); ok {
			p.deps.Logger.Info(fmt.Sprintf("%s: %v", action, err))
			break
		}
		p.deps.Logger.Error(fmt.Sprintf("%s: %v", action, err), err, p.Actor())
	}
	return err
}

// RegistrationClasses lists the classes offered on the sign-up form, without opening a portal.
func RegistrationClasses(ctx context.Context, store docstore.Store, validate *validator.Validate, logger core.Logger) ([]classroom.Class, error) {
	classes, err := classroom.NewClassRepository(store, validate, logger).Load(ctx)
	if err != nil {
		logger.Error(fmt.Sprintf("loading registration classes: %v", err), err)
		return nil, err
	}
	return classes, nil
}

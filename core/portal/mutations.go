package portal

import (
	"context"
	"fmt"
	"net/mail"

	"github.com/pkg/errors"
	"github.com/sourcegraph/conc/pool"

	"github.com/trezcool/classroom/core"
	"github.com/trezcool/classroom/core/classroom"
	"github.com/trezcool/classroom/core/user"
)

func missing(field, msg string) error {
	return core.NewValidationError(nil, core.FieldError{Field: field, Error: msg})
}

func (p *Portal) CreateClass(ctx context.Context, nc classroom.NewClass) (classroom.Class, error) {
	if err := p.requireAdmin(); err != nil {
		return classroom.Class{}, p.fail("creating class", err)
	}
	cls, err := p.classes.Create(ctx, p.Actor().ID, nc)
	return cls, p.fail("creating class", err)
}

func (p *Portal) UpdateClass(ctx context.Context, id string, uc classroom.UpdateClass) error {
	if err := p.requireAdmin(); err != nil {
		return p.fail("updating class", err)
	}
	return p.fail("updating class "+id, p.classes.Update(ctx, id, uc))
}

// DeleteClass deletes a class with its lessons, their attendances and ratings, and its enrollments.
// Children are deleted concurrently; the class itself is kept if any of them fails, so the call can be retried.
func (p *Portal) DeleteClass(ctx context.Context, id string) error {
	if err := p.requireAdmin(); err != nil {
		return p.fail("deleting class", err)
	}
	lessonIDs, err := p.lessons.ByClass(ctx, id)
	if err != nil {
		return p.fail("deleting class "+id, err)
	}

	wp := pool.New().WithErrors().WithContext(ctx)
	for _, lessonID := range lessonIDs {
		lessonID := lessonID
		wp.Go(func(ctx context.Context) error {
			return p.deleteLessonTree(ctx, lessonID)
		})
	}
	wp.Go(func(ctx context.Context) error {
		_, err := p.enrollments.DeleteByClass(ctx, id)
		return errors.Wrapf(err, "deleting enrollments of class %s", id)
	})
	if err := wp.Wait(); err != nil {
		return p.fail("deleting class "+id, errors.Wrap(err, "cascade"))
	}

	if err := p.classes.Delete(ctx, id); err != nil {
		return p.fail("deleting class "+id, err)
	}
	p.deps.Logger.Info(fmt.Sprintf("class %s deleted with %d lesson(s)", id, len(lessonIDs)))
	return nil
}

func (p *Portal) CreateLesson(ctx context.Context, nl classroom.NewLesson) (classroom.Lesson, error) {
	if err := p.requireAdmin(); err != nil {
		return classroom.Lesson{}, p.fail("creating lesson", err)
	}
	if classID := core.CleanString(nl.ClassID); classID != "" {
		if _, ok := p.Class(classID); !ok {
			return classroom.Lesson{}, p.fail("creating lesson", missing("classId", "class not found"))
		}
	}
	l, err := p.lessons.Create(ctx, nl)
	return l, p.fail("creating lesson", err)
}

func (p *Portal) UpdateLesson(ctx context.Context, id string, ul classroom.UpdateLesson) error {
	if err := p.requireAdmin(); err != nil {
		return p.fail("updating lesson", err)
	}
	if classID := core.CleanString(ul.ClassID); classID != "" {
		if _, ok := p.Class(classID); !ok {
			return p.fail("updating lesson "+id, missing("classId", "class not found"))
		}
	}
	return p.fail("updating lesson "+id, p.lessons.Update(ctx, id, ul))
}

// DeleteLesson deletes a lesson with its attendances and ratings.
func (p *Portal) DeleteLesson(ctx context.Context, id string) error {
	if err := p.requireAdmin(); err != nil {
		return p.fail("deleting lesson", err)
	}
	return p.fail("deleting lesson "+id, p.deleteLessonTree(ctx, id))
}

func (p *Portal) deleteLessonTree(ctx context.Context, lessonID string) error {
	wp := pool.New().WithErrors().WithContext(ctx)
	wp.Go(func(ctx context.Context) error {
		_, err := p.attendances.DeleteByLesson(ctx, lessonID)
		return errors.Wrapf(err, "deleting attendances of lesson %s", lessonID)
	})
	wp.Go(func(ctx context.Context) error {
		_, err := p.ratings.DeleteByLesson(ctx, lessonID)
		return errors.Wrapf(err, "deleting ratings of lesson %s", lessonID)
	})
	if err := wp.Wait(); err != nil {
		return err
	}
	return p.lessons.Delete(ctx, lessonID)
}

// MarkAttendance records the presence of a student at a lesson. Marking twice is a no-op.
func (p *Portal) MarkAttendance(ctx context.Context, studentID, lessonID, ipAddress string) (classroom.Attendance, error) {
	if err := p.requireSelfOrAdmin(studentID); err != nil {
		return classroom.Attendance{}, p.fail("marking attendance", err)
	}
	if lessonID != "" {
		if _, ok := p.Lesson(lessonID); !ok {
			return classroom.Attendance{}, p.fail("marking attendance", missing("lessonId", "lesson not found"))
		}
	}
	att, err := p.attendances.Mark(ctx, studentID, lessonID, ipAddress)
	return att, p.fail("marking attendance", err)
}

func (p *Portal) UnmarkAttendance(ctx context.Context, studentID, lessonID string) error {
	if err := p.requireSelfOrAdmin(studentID); err != nil {
		return p.fail("unmarking attendance", err)
	}
	return p.fail("unmarking attendance", p.attendances.Unmark(ctx, studentID, lessonID))
}

// EnrollStudent enrolls a student in a class and notifies the student by email on first enrollment.
func (p *Portal) EnrollStudent(ctx context.Context, studentID, classID string) (classroom.Enrollment, error) {
	if err := p.requireSelfOrAdmin(studentID); err != nil {
		return classroom.Enrollment{}, p.fail("enrolling student", err)
	}
	cls, ok := p.Class(classID)
	if classID != "" && !ok {
		return classroom.Enrollment{}, p.fail("enrolling student", missing("classId", "class not found"))
	}
	enr, created, err := p.enrollments.Enroll(ctx, studentID, classID)
	if err != nil {
		return classroom.Enrollment{}, p.fail("enrolling student", err)
	}
	if created {
		p.notifyEnrollment(studentID, cls)
	}
	return enr, nil
}

func (p *Portal) UnenrollStudent(ctx context.Context, studentID, classID string) error {
	if err := p.requireSelfOrAdmin(studentID); err != nil {
		return p.fail("unenrolling student", err)
	}
	return p.fail("unenrolling student", p.enrollments.Unenroll(ctx, studentID, classID))
}

// EnrollmentEmailCategory tags enrollment notices.
const EnrollmentEmailCategory = "enrollment"

func (p *Portal) notifyEnrollment(studentID string, cls classroom.Class) {
	if p.deps.Mailer == nil {
		return
	}
	student, ok := p.User(studentID)
	if !ok && studentID == p.Actor().ID {
		student, ok = p.Actor(), true
	}
	if !ok || student.Email == "" {
		return
	}
	p.deps.Mailer.SendMessages(&core.EmailMessage{
		To:       []mail.Address{{Name: student.Name, Address: student.Email}},
		Subject:  "Matrícula confirmada: " + cls.Name,
		BodyStr:  fmt.Sprintf("Olá %s,\n\nsua matrícula na turma %q foi confirmada.\n", student.Name, cls.Name),
		Category: EnrollmentEmailCategory,
	})
}

// RateMaterial stores the rating of the actor for a material of a lesson it can access.
func (p *Portal) RateMaterial(ctx context.Context, nr classroom.NewRating) (classroom.MaterialRating, error) {
	if err := p.checkOpen(); err != nil {
		return classroom.MaterialRating{}, p.fail("rating material", err)
	}
	if nr.LessonID != "" && nr.MaterialID != "" {
		l, ok := p.Lesson(nr.LessonID)
		if !ok {
			return classroom.MaterialRating{}, p.fail("rating material", missing("lessonId", "lesson not found"))
		}
		if _, ok := l.Material(nr.MaterialID); !ok {
			return classroom.MaterialRating{}, p.fail("rating material", missing("materialId", "material not found"))
		}
		if !p.CanAccessMaterials(p.Actor().ID, nr.LessonID) {
			return classroom.MaterialRating{}, p.fail("rating material", ErrPermissionDenied)
		}
	}
	rating, _, err := p.ratings.Rate(ctx, p.Actor().ID, nr)
	return rating, p.fail("rating material", err)
}

// UpdateUser patches a profile. Users may edit their own name and phone.
// Other users, emails and roles are admin-only: the allow-list matches on the email.
func (p *Portal) UpdateUser(ctx context.Context, id string, uu user.UpdateUser) error {
	if err := p.requireSelfOrAdmin(id); err != nil {
		return p.fail("updating user", err)
	}
	if (uu.Role != "" || core.CleanString(uu.Email) != "") && !p.Actor().IsAdmin() {
		return p.fail("updating user", ErrPermissionDenied)
	}

	var err error
	if p.deps.Session != nil {
		err = p.deps.Session.UpdateUser(ctx, id, uu)
	} else {
		err = p.profiles.Update(ctx, id, uu)
	}
	if err != nil {
		return p.fail("updating user "+id, err)
	}
	if id == p.Actor().ID {
		updated, ok := p.User(id)
		p.mu.Lock()
		if !ok {
			updated = p.deps.AllowList.Apply(uu.ApplyTo(p.actor))
		}
		p.actor = updated
		p.mu.Unlock()
	}
	return nil
}

// DeleteUser deletes a profile with the attendances, enrollments and ratings of the user.
func (p *Portal) DeleteUser(ctx context.Context, id string) error {
	if err := p.requireAdmin(); err != nil {
		return p.fail("deleting user", err)
	}
	if id == p.Actor().ID {
		return p.fail("deleting user", missing("id", "cannot delete yourself"))
	}

	wp := pool.New().WithErrors().WithContext(ctx)
	wp.Go(func(ctx context.Context) error {
		_, err := p.attendances.DeleteByStudent(ctx, id)
		return errors.Wrapf(err, "deleting attendances of %s", id)
	})
	wp.Go(func(ctx context.Context) error {
		_, err := p.enrollments.DeleteByStudent(ctx, id)
		return errors.Wrapf(err, "deleting enrollments of %s", id)
	})
	wp.Go(func(ctx context.Context) error {
		_, err := p.ratings.DeleteByStudent(ctx, id)
		return errors.Wrapf(err, "deleting ratings of %s", id)
	})
	if err := wp.Wait(); err != nil {
		return p.fail("deleting user "+id, errors.Wrap(err, "cascade"))
	}
	return p.fail("deleting user "+id, p.profiles.Delete(ctx, id))
}

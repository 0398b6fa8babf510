package classroom

import (
	"context"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"

	"github.com/trezcool/classroom/core"
	"github.com/trezcool/classroom/core/docstore"
)

type enrollmentDoc struct {
	ID         string             `json:"id"`
	StudentID  string             `json:"studentId"`
	ClassID    string             `json:"classId"`
	EnrolledAt docstore.Timestamp `json:"enrolledAt"`
}

func decodeEnrollment(doc docstore.Document) (Enrollment, error) {
	var d enrollmentDoc
	if err := doc.Decode(&d); err != nil {
		return Enrollment{}, err
	}
	return Enrollment{
		ID:         d.ID,
		StudentID:  d.StudentID,
		ClassID:    d.ClassID,
		EnrolledAt: d.EnrolledAt.Time(),
	}, nil
}

func enrollmentKey(studentID, classID string) string {
	return "enrollment:" + studentID + ":" + classID
}

// EnrollmentRepository keeps the enrollments, most recent first.
type EnrollmentRepository struct {
	*docstore.LiveList[Enrollment]
	repository
}

func NewEnrollmentRepository(store docstore.Store, validate *validator.Validate, logger core.Logger) *EnrollmentRepository {
	return &EnrollmentRepository{
		LiveList:   docstore.NewLiveList(store, descBy(EnrollmentsCollection, "enrolledAt"), decodeEnrollment, logger),
		repository: newRepository(store, validate, logger, EnrollmentsCollection),
	}
}

// Enroll adds a student to a class. created is false when the student was already enrolled.
func (r *EnrollmentRepository) Enroll(ctx context.Context, studentID, classID string) (enr Enrollment, created bool, err error) {
	if err := checkIDs("studentId", studentID, "classId", classID); err != nil {
		return Enrollment{}, false, err
	}

	id, err := r.store.CreateUnique(ctx, EnrollmentsCollection, enrollmentKey(studentID, classID), docstore.Fields{
		"studentId":  studentID,
		"classId":    classID,
		"enrolledAt": docstore.ServerTimestamp,
	})
	switch {
	case err == docstore.ErrDuplicate:
		doc, err := r.get(ctx, id)
		if err != nil {
			return Enrollment{}, false, err
		}
		enr, err := decodeEnrollment(doc)
		return enr, false, err
	case err != nil:
		return Enrollment{}, false, errors.Wrap(err, "enrolling student")
	}
	return Enrollment{ID: id, StudentID: studentID, ClassID: classID, EnrolledAt: core.NowFunc().UTC()}, true, nil
}

// Unenroll removes a student from a class, if enrolled.
func (r *EnrollmentRepository) Unenroll(ctx context.Context, studentID, classID string) error {
	if err := checkIDs("studentId", studentID, "classId", classID); err != nil {
		return err
	}
	_, err := r.DeleteWhere(ctx,
		docstore.Where{Field: "studentId", Value: studentID},
		docstore.Where{Field: "classId", Value: classID},
	)
	return err
}

// DeleteByClass removes every enrollment in a class.
func (r *EnrollmentRepository) DeleteByClass(ctx context.Context, classID string) (int, error) {
	if err := checkIDs("classId", classID); err != nil {
		return 0, err
	}
	return r.DeleteWhere(ctx, docstore.Where{Field: "classId", Value: classID})
}

// DeleteByStudent removes every enrollment of a student.
func (r *EnrollmentRepository) DeleteByStudent(ctx context.Context, studentID string) (int, error) {
	if err := checkIDs("studentId", studentID); err != nil {
		return 0, err
	}
	return r.DeleteWhere(ctx, docstore.Where{Field: "studentId", Value: studentID})
}

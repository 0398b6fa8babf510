package classroom

import (
	"context"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"

	"github.com/trezcool/classroom/core"
	"github.com/trezcool/classroom/core/docstore"
)

type attendanceDoc struct {
	ID        string             `json:"id"`
	StudentID string             `json:"studentId"`
	LessonID  string             `json:"lessonId"`
	MarkedAt  docstore.Timestamp `json:"markedAt"`
	IPAddress string             `json:"ipAddress"`
}

func decodeAttendance(doc docstore.Document) (Attendance, error) {
	var d attendanceDoc
	if err := doc.Decode(&d); err != nil {
		return Attendance{}, err
	}
	return Attendance{
		ID:        d.ID,
		StudentID: d.StudentID,
		LessonID:  d.LessonID,
		MarkedAt:  d.MarkedAt.Time(),
		IPAddress: d.IPAddress,
	}, nil
}

func attendanceKey(studentID, lessonID string) string {
	return "attendance:" + studentID + ":" + lessonID
}

// AttendanceRepository keeps the attendances, most recently marked first.
type AttendanceRepository struct {
	*docstore.LiveList[Attendance]
	repository
}

func NewAttendanceRepository(store docstore.Store, validate *validator.Validate, logger core.Logger) *AttendanceRepository {
	return &AttendanceRepository{
		LiveList:   docstore.NewLiveList(store, descBy(AttendancesCollection, "markedAt"), decodeAttendance, logger),
		repository: newRepository(store, validate, logger, AttendancesCollection),
	}
}

// Mark records the presence of a student at a lesson.
// Marking twice is a no-op returning the existing attendance.
func (r *AttendanceRepository) Mark(ctx context.Context, studentID, lessonID, ipAddress string) (Attendance, error) {
	if err := checkIDs("studentId", studentID, "lessonId", lessonID); err != nil {
		return Attendance{}, err
	}

	fields := docstore.Fields{
		"studentId": studentID,
		"lessonId":  lessonID,
		"markedAt":  docstore.ServerTimestamp,
	}
	if ipAddress != "" {
		fields["ipAddress"] = ipAddress
	}
	id, err := r.store.CreateUnique(ctx, AttendancesCollection, attendanceKey(studentID, lessonID), fields)
	switch {
	case err == docstore.ErrDuplicate:
		doc, err := r.get(ctx, id)
		if err != nil {
			return Attendance{}, err
		}
		return decodeAttendance(doc)
	case err != nil:
		return Attendance{}, errors.Wrap(err, "marking attendance")
	}
	return Attendance{
		ID:        id,
		StudentID: studentID,
		LessonID:  lessonID,
		MarkedAt:  core.NowFunc().UTC(),
		IPAddress: ipAddress,
	}, nil
}

// Unmark removes the attendance of a student at a lesson, if any.
func (r *AttendanceRepository) Unmark(ctx context.Context, studentID, lessonID string) error {
	if err := checkIDs("studentId", studentID, "lessonId", lessonID); err != nil {
		return err
	}
	_, err := r.DeleteWhere(ctx,
		docstore.Where{Field: "studentId", Value: studentID},
		docstore.Where{Field: "lessonId", Value: lessonID},
	)
	return err
}

// DeleteByLesson removes every attendance of a lesson.
func (r *AttendanceRepository) DeleteByLesson(ctx context.Context, lessonID string) (int, error) {
	if err := checkIDs("lessonId", lessonID); err != nil {
		return 0, err
	}
	return r.DeleteWhere(ctx, docstore.Where{Field: "lessonId", Value: lessonID})
}

// DeleteByStudent removes every attendance of a student.
func (r *AttendanceRepository) DeleteByStudent(ctx context.Context, studentID string) (int, error) {
	if err := checkIDs("studentId", studentID); err != nil {
		return 0, err
	}
	return r.DeleteWhere(ctx, docstore.Where{Field: "studentId", Value: studentID})
}

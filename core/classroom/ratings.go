package classroom

import (
	"context"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"

	"github.com/trezcool/classroom/core"
	"github.com/trezcool/classroom/core/docstore"
)

type ratingDoc struct {
	ID         string             `json:"id"`
	StudentID  string             `json:"studentId"`
	MaterialID string             `json:"materialId"`
	LessonID   string             `json:"lessonId"`
	Rating     int                `json:"rating"`
	RatedAt    docstore.Timestamp `json:"ratedAt"`
}

func decodeRating(doc docstore.Document) (MaterialRating, error) {
	var d ratingDoc
	if err := doc.Decode(&d); err != nil {
		return MaterialRating{}, err
	}
	return MaterialRating{
		ID:         d.ID,
		StudentID:  d.StudentID,
		MaterialID: d.MaterialID,
		LessonID:   d.LessonID,
		Rating:     d.Rating,
		RatedAt:    d.RatedAt.Time(),
	}, nil
}

func ratingKey(studentID, materialID string) string {
	return "rating:" + studentID + ":" + materialID
}

// RatingRepository keeps the material ratings, most recent first.
type RatingRepository struct {
	*docstore.LiveList[MaterialRating]
	repository
}

func NewRatingRepository(store docstore.Store, validate *validator.Validate, logger core.Logger) *RatingRepository {
	return &RatingRepository{
		LiveList:   docstore.NewLiveList(store, descBy(RatingsCollection, "ratedAt"), decodeRating, logger),
		repository: newRepository(store, validate, logger, RatingsCollection),
	}
}

// Rate stores the rating of a student for a material. A second rating overwrites the first.
func (r *RatingRepository) Rate(ctx context.Context, studentID string, nr NewRating) (rating MaterialRating, created bool, err error) {
	if err := checkIDs("studentId", studentID); err != nil {
		return MaterialRating{}, false, err
	}
	if err := nr.Validate(r.validate); err != nil {
		return MaterialRating{}, false, err
	}

	id, created, err := r.store.Upsert(ctx, RatingsCollection, ratingKey(studentID, nr.MaterialID), docstore.Fields{
		"studentId":  studentID,
		"materialId": nr.MaterialID,
		"lessonId":   nr.LessonID,
		"rating":     nr.Rating,
		"ratedAt":    docstore.ServerTimestamp,
	})
	if err != nil {
		return MaterialRating{}, false, errors.Wrap(err, "rating material")
	}
	return MaterialRating{
		ID:         id,
		StudentID:  studentID,
		MaterialID: nr.MaterialID,
		LessonID:   nr.LessonID,
		Rating:     nr.Rating,
		RatedAt:    core.NowFunc().UTC(),
	}, created, nil
}

// DeleteByLesson removes every rating of the materials of a lesson.
func (r *RatingRepository) DeleteByLesson(ctx context.Context, lessonID string) (int, error) {
	if err := checkIDs("lessonId", lessonID); err != nil {
		return 0, err
	}
	return r.DeleteWhere(ctx, docstore.Where{Field: "lessonId", Value: lessonID})
}

// DeleteByStudent removes every rating of a student.
func (r *RatingRepository) DeleteByStudent(ctx context.Context, studentID string) (int, error) {
	if err := checkIDs("studentId", studentID); err != nil {
		return 0, err
	}
	return r.DeleteWhere(ctx, docstore.Where{Field: "studentId", Value: studentID})
}

package classroom

import (
	"context"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"

	"github.com/trezcool/classroom/core"
	"github.com/trezcool/classroom/core/docstore"
)

type lessonDoc struct {
	ID          string             `json:"id"`
	Title       string             `json:"title"`
	Description string             `json:"description"`
	ClassID     string             `json:"classId"`
	Date        docstore.Timestamp `json:"date"`
	Duration    int                `json:"duration"`
	Materials   []Material         `json:"materials"`
	CreatedAt   docstore.Timestamp `json:"createdAt"`
	UpdatedAt   docstore.Timestamp `json:"updatedAt"`
}

func decodeLesson(doc docstore.Document) (Lesson, error) {
	var d lessonDoc
	if err := doc.Decode(&d); err != nil {
		return Lesson{}, err
	}
	if d.Duration <= 0 {
		d.Duration = DefaultLessonDuration
	}
	if d.Materials == nil {
		d.Materials = make([]Material, 0)
	}
	return Lesson{
		ID:          d.ID,
		Title:       d.Title,
		Description: d.Description,
		ClassID:     d.ClassID,
		Date:        d.Date.Time(),
		Duration:    d.Duration,
		Materials:   d.Materials,
		CreatedAt:   d.CreatedAt.Time(),
		UpdatedAt:   d.UpdatedAt.Time(),
	}, nil
}

// LessonRepository keeps the lessons, latest date first.
type LessonRepository struct {
	*docstore.LiveList[Lesson]
	repository
}

func NewLessonRepository(store docstore.Store, validate *validator.Validate, logger core.Logger) *LessonRepository {
	return &LessonRepository{
		LiveList:   docstore.NewLiveList(store, descBy(LessonsCollection, "date"), decodeLesson, logger),
		repository: newRepository(store, validate, logger, LessonsCollection),
	}
}

// Load fetches the lessons once, without subscribing.
func (r *LessonRepository) Load(ctx context.Context) ([]Lesson, error) {
	docs, err := r.list(ctx, descBy(LessonsCollection, "date"))
	if err != nil {
		return nil, err
	}
	return decodeAll(docs, decodeLesson, r.logger), nil
}

func (r *LessonRepository) Get(ctx context.Context, id string) (Lesson, error) {
	doc, err := r.get(ctx, id)
	if err != nil {
		return Lesson{}, err
	}
	return decodeLesson(doc)
}

// ByClass fetches the ids of the lessons of a class straight from the store.
func (r *LessonRepository) ByClass(ctx context.Context, classID string) ([]string, error) {
	if err := checkIDs("classId", classID); err != nil {
		return nil, err
	}
	docs, err := r.list(ctx, docstore.Query{
		Collection: LessonsCollection,
		Where:      []docstore.Where{{Field: "classId", Value: classID}},
	})
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(docs))
	for _, doc := range docs {
		ids = append(ids, doc.ID)
	}
	return ids, nil
}

func (r *LessonRepository) validateMaterials(materials []Material) error {
	for _, m := range materials {
		if err := r.validate.Var(string(m.Type), "materialtype"); err != nil {
			return err
		}
	}
	return nil
}

func (r *LessonRepository) Create(ctx context.Context, nl NewLesson) (Lesson, error) {
	if err := nl.Validate(r.validate); err != nil {
		return Lesson{}, err
	}
	materials := BuildMaterials(nl.Materials, nil)
	if err := r.validateMaterials(materials); err != nil {
		return Lesson{}, err
	}

	id, err := r.store.Create(ctx, LessonsCollection, docstore.Fields{
		"title":       nl.Title,
		"description": nl.Description,
		"classId":     nl.ClassID,
		"date":        docstore.TimestampOf(nl.Date),
		"duration":    nl.Duration,
		"materials":   materials,
		"createdAt":   docstore.ServerTimestamp,
	})
	if err != nil {
		return Lesson{}, errors.Wrap(err, "creating lesson")
	}
	return Lesson{
		ID:          id,
		Title:       nl.Title,
		Description: nl.Description,
		ClassID:     nl.ClassID,
		Date:        nl.Date,
		Duration:    nl.Duration,
		Materials:   materials,
		CreatedAt:   core.NowFunc().UTC(),
	}, nil
}

// Update patches the lesson. Materials kept by ID keep their original type.
func (r *LessonRepository) Update(ctx context.Context, id string, ul UpdateLesson) error {
	if err := checkIDs("id", id); err != nil {
		return err
	}
	if err := ul.Validate(r.validate); err != nil {
		return err
	}

	fields := docstore.Fields{}
	if ul.Title != "" {
		fields["title"] = ul.Title
	}
	if ul.Description != nil {
		fields["description"] = *ul.Description
	}
	if ul.ClassID != "" {
		fields["classId"] = ul.ClassID
	}
	if ul.Date != nil {
		fields["date"] = docstore.TimestampOf(*ul.Date)
	}
	if ul.Duration != nil {
		fields["duration"] = *ul.Duration
	}
	if ul.Materials != nil {
		current, err := r.Get(ctx, id)
		if err != nil {
			return err
		}
		materials := BuildMaterials(*ul.Materials, current.Materials)
		if err := r.validateMaterials(materials); err != nil {
			return err
		}
		fields["materials"] = materials
	}
	return r.patch(ctx, id, fields)
}

// Delete removes the lesson only. Attendances and ratings are the caller's concern.
func (r *LessonRepository) Delete(ctx context.Context, id string) error {
	return r.delete(ctx, id)
}

package classroom

import (
	"context"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"

	"github.com/trezcool/classroom/core"
	"github.com/trezcool/classroom/core/docstore"
)

type classDoc struct {
	ID          string             `json:"id"`
	Name        string             `json:"name"`
	Description string             `json:"description"`
	AdminID     string             `json:"adminId"`
	CreatedAt   docstore.Timestamp `json:"createdAt"`
	UpdatedAt   docstore.Timestamp `json:"updatedAt"`
}

func decodeClass(doc docstore.Document) (Class, error) {
	var d classDoc
	if err := doc.Decode(&d); err != nil {
		return Class{}, err
	}
	return Class{
		ID:          d.ID,
		Name:        d.Name,
		Description: d.Description,
		AdminID:     d.AdminID,
		CreatedAt:   d.CreatedAt.Time(),
		UpdatedAt:   d.UpdatedAt.Time(),
	}, nil
}

// ClassRepository keeps the classes, newest first.
type ClassRepository struct {
	*docstore.LiveList[Class]
	repository
}

func NewClassRepository(store docstore.Store, validate *validator.Validate, logger core.Logger) *ClassRepository {
	return &ClassRepository{
		LiveList:   docstore.NewLiveList(store, descBy(ClassesCollection, "createdAt"), decodeClass, logger),
		repository: newRepository(store, validate, logger, ClassesCollection),
	}
}

// Load fetches the classes once, without subscribing.
func (r *ClassRepository) Load(ctx context.Context) ([]Class, error) {
	docs, err := r.list(ctx, descBy(ClassesCollection, "createdAt"))
	if err != nil {
		return nil, err
	}
	return decodeAll(docs, decodeClass, r.logger), nil
}

func (r *ClassRepository) Get(ctx context.Context, id string) (Class, error) {
	doc, err := r.get(ctx, id)
	if err != nil {
		return Class{}, err
	}
	return decodeClass(doc)
}

func (r *ClassRepository) Create(ctx context.Context, adminID string, nc NewClass) (Class, error) {
	if err := checkIDs("adminId", adminID); err != nil {
		return Class{}, err
	}
	if err := nc.Validate(r.validate); err != nil {
		return Class{}, err
	}

	id, err := r.store.Create(ctx, ClassesCollection, docstore.Fields{
		"name":        nc.Name,
		"description": nc.Description,
		"adminId":     adminID,
		"createdAt":   docstore.ServerTimestamp,
	})
	if err != nil {
		return Class{}, errors.Wrap(err, "creating class")
	}
	now := core.NowFunc().UTC()
	return Class{ID: id, Name: nc.Name, Description: nc.Description, AdminID: adminID, CreatedAt: now}, nil
}

func (r *ClassRepository) Update(ctx context.Context, id string, uc UpdateClass) error {
	if err := checkIDs("id", id); err != nil {
		return err
	}
	if err := uc.Validate(r.validate); err != nil {
		return err
	}

	fields := docstore.Fields{}
	if uc.Name != "" {
		fields["name"] = uc.Name
	}
	if uc.Description != nil {
		fields["description"] = *uc.Description
	}
	return r.patch(ctx, id, fields)
}

// Delete removes the class only. Lessons and enrollments are the caller's concern.
func (r *ClassRepository) Delete(ctx context.Context, id string) error {
	return r.delete(ctx, id)
}

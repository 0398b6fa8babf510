package classroom

import (
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/trezcool/classroom/core"
)

// DefaultLessonDuration is used when a lesson is created without a duration, in minutes.
const DefaultLessonDuration = 60

type MaterialType string

// Material types
const (
	MaterialPDF      MaterialType = "pdf"
	MaterialVideo    MaterialType = "video"
	MaterialImage    MaterialType = "image"
	MaterialDocument MaterialType = "document"
)

type Class struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	AdminID     string    `json:"adminId"`
	CreatedAt   time.Time `json:"createdAt"` // UTC
	UpdatedAt   time.Time `json:"updatedAt"` // UTC
}

// Material is an external resource linked to a lesson. Its type is inferred from the URL once, at creation.
type Material struct {
	ID   string       `json:"id"`
	Name string       `json:"name"`
	Type MaterialType `json:"type"`
	URL  string       `json:"url"`
	Size int64        `json:"size"` // bytes
}

type Lesson struct {
	ID          string     `json:"id"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
	ClassID     string     `json:"classId"`
	Date        time.Time  `json:"date"`     // UTC
	Duration    int        `json:"duration"` // minutes
	Materials   []Material `json:"materials"`
	CreatedAt   time.Time  `json:"createdAt"` // UTC
	UpdatedAt   time.Time  `json:"updatedAt"` // UTC
}

func (l Lesson) End() time.Time {
	d := l.Duration
	if d <= 0 {
		d = DefaultLessonDuration
	}
	return l.Date.Add(time.Duration(d) * time.Minute)
}

func (l Lesson) Material(id string) (Material, bool) {
	for _, m := range l.Materials {
		if m.ID == id {
			return m, true
		}
	}
	return Material{}, false
}

type Attendance struct {
	ID        string    `json:"id"`
	StudentID string    `json:"studentId"`
	LessonID  string    `json:"lessonId"`
	MarkedAt  time.Time `json:"markedAt"` // UTC
	IPAddress string    `json:"ipAddress,omitempty"`
}

type Enrollment struct {
	ID         string    `json:"id"`
	StudentID  string    `json:"studentId"`
	ClassID    string    `json:"classId"`
	EnrolledAt time.Time `json:"enrolledAt"` // UTC
}

type MaterialRating struct {
	ID         string    `json:"id"`
	StudentID  string    `json:"studentId"`
	MaterialID string    `json:"materialId"`
	LessonID   string    `json:"lessonId"`
	Rating     int       `json:"rating"`
	RatedAt    time.Time `json:"ratedAt"` // UTC
}

// NewClass contains information needed to create a new Class.
type NewClass struct {
	Name        string `json:"name" validate:"notblank"`
	Description string `json:"description"`
}

func (nc *NewClass) Validate(validate *validator.Validate) error {
	nc.Name = core.CleanString(nc.Name)
	nc.Description = core.CleanString(nc.Description)
	return validate.Struct(nc)
}

// UpdateClass defines what information may be provided to modify an existing Class.
// A blank Name keeps the current one; a nil Description keeps the current one.
type UpdateClass struct {
	Name        string  `json:"name"`
	Description *string `json:"description"`
}

func (uc *UpdateClass) Validate(validate *validator.Validate) error {
	uc.Name = core.CleanString(uc.Name)
	if uc.Description != nil {
		desc := core.CleanString(*uc.Description)
		uc.Description = &desc
	}
	return validate.Struct(uc)
}

func (uc UpdateClass) IsEmpty() bool {
	return uc.Name == "" && uc.Description == nil
}

// NewMaterial describes a material to attach to a lesson.
// An ID matching an existing material of the lesson keeps that material (and its type).
type NewMaterial struct {
	ID   string `json:"id"`
	Name string `json:"name" validate:"notblank"`
	URL  string `json:"url" validate:"notblank"`
	Size int64  `json:"size" validate:"min=0"`
}

// NewLesson contains information needed to create a new Lesson.
type NewLesson struct {
	Title       string        `json:"title" validate:"notblank"`
	Description string        `json:"description"`
	ClassID     string        `json:"classId" validate:"required"`
	Date        time.Time     `json:"date" validate:"required"`
	Duration    int           `json:"duration" validate:"min=1,max=1440"`
	Materials   []NewMaterial `json:"materials" validate:"dive"`
}

func (nl *NewLesson) Validate(validate *validator.Validate) error {
	nl.Title = core.CleanString(nl.Title)
	nl.Description = core.CleanString(nl.Description)
	nl.ClassID = core.CleanString(nl.ClassID)
	nl.Date = nl.Date.UTC()
	if nl.Duration == 0 {
		nl.Duration = DefaultLessonDuration
	}
	cleanMaterialInputs(nl.Materials)
	return validate.Struct(nl)
}

// UpdateLesson defines what information may be provided to modify an existing Lesson.
// Zero values keep the current ones.
type UpdateLesson struct {
	Title       string         `json:"title"`
	Description *string        `json:"description"`
	ClassID     string         `json:"classId"`
	Date        *time.Time     `json:"date"`
	Duration    *int           `json:"duration" validate:"omitempty,min=1,max=1440"`
	Materials   *[]NewMaterial `json:"materials" validate:"omitempty,dive"`
}

func (ul *UpdateLesson) Validate(validate *validator.Validate) error {
	ul.Title = core.CleanString(ul.Title)
	ul.ClassID = core.CleanString(ul.ClassID)
	if ul.Description != nil {
		desc := core.CleanString(*ul.Description)
		ul.Description = &desc
	}
	if ul.Date != nil {
		date := ul.Date.UTC()
		ul.Date = &date
	}
	if ul.Materials != nil {
		cleanMaterialInputs(*ul.Materials)
	}
	return validate.Struct(ul)
}

func (ul UpdateLesson) IsEmpty() bool {
	return ul.Title == "" && ul.Description == nil && ul.ClassID == "" &&
		ul.Date == nil && ul.Duration == nil && ul.Materials == nil
}

func cleanMaterialInputs(inputs []NewMaterial) {
	for i := range inputs {
		inputs[i].ID = core.CleanString(inputs[i].ID)
		inputs[i].Name = core.CleanString(inputs[i].Name)
		inputs[i].URL = core.CleanString(inputs[i].URL)
	}
}

// NewRating contains information needed to rate a lesson material.
type NewRating struct {
	LessonID   string `json:"lessonId" validate:"required"`
	MaterialID string `json:"materialId" validate:"required"`
	Rating     int    `json:"rating" validate:"rating"`
}

func (nr *NewRating) Validate(validate *validator.Validate) error {
	nr.LessonID = core.CleanString(nr.LessonID)
	nr.MaterialID = core.CleanString(nr.MaterialID)
	return validate.Struct(nr)
}

// RatingSummary is the average rating of a material.
type RatingSummary struct {
	Average float64 `json:"average"`
	Count   int     `json:"count"`
}

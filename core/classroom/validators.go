package classroom

import (
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"

	"github.com/trezcool/classroom/core"
)

// Rating bounds
const (
	MinRating = 1
	MaxRating = 5
)

var (
	ratingTag  = "rating"
	ratingText = "rating must be between 1 and 5"

	materialTypeTag  = "materialtype"
	materialTypeText = "unknown material type"
)

// InitValidators registers the classroom validation tags.
func InitValidators(validate *validator.Validate, translator ut.Translator) {
	_ = validate.RegisterValidation(ratingTag, validateRating)
	core.RegisterCustomTranslation(validate, translator, ratingTag, ratingText)

	_ = validate.RegisterValidation(materialTypeTag, validateMaterialType)
	core.RegisterCustomTranslation(validate, translator, materialTypeTag, materialTypeText)
}

func validateRating(fl validator.FieldLevel) bool {
	r := fl.Field().Int()
	return r >= MinRating && r <= MaxRating
}

func validateMaterialType(fl validator.FieldLevel) bool {
	return MaterialType(fl.Field().String()).IsValid()
}

func (t MaterialType) IsValid() bool {
	switch t {
	case MaterialPDF, MaterialVideo, MaterialImage, MaterialDocument:
		return true
	}
	return false
}

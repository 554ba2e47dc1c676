package validator

import (
	"math"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/SAP-F-2025/exam-engine/internal/models"
)

// Validator wraps the struct validator and the author-facing content checks.
type Validator struct {
	structValidator  *validator.Validate
	contentValidator *ContentValidator
}

func New() *Validator {
	structValidator := validator.New()
	registerCustomValidators(structValidator)

	return &Validator{
		structValidator:  structValidator,
		contentValidator: NewContentValidator(),
	}
}

// Validate converts struct tag failures into ValidationErrors.
func (v *Validator) Validate(s any) error {
	if err := v.structValidator.Struct(s); err != nil {
		if errs := ToValidationErrors(err); len(errs) > 0 {
			return errs
		}
		return err
	}
	return nil
}

func (v *Validator) Content() *ContentValidator {
	return v.contentValidator
}

func registerCustomValidators(validate *validator.Validate) {
	validate.RegisterValidation("question_type", validateQuestionType)
	validate.RegisterValidation("skill_type", validateSkillType)
	validate.RegisterValidation("band_score", validateBandScore)

	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
}

func validateQuestionType(fl validator.FieldLevel) bool {
	return models.ParseQuestionType(fl.Field().String()).IsKnown()
}

func validateSkillType(fl validator.FieldLevel) bool {
	return models.ParseSkillType(fl.Field().String()).IsValid()
}

// validateBandScore accepts multiples of 0.5 inside the band range.
func validateBandScore(fl validator.FieldLevel) bool {
	band := fl.Field().Float()
	if math.IsNaN(band) || band < models.MinBand || band > models.MaxBand {
		return false
	}
	return band*2 == math.Trunc(band*2)
}

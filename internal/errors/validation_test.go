package errors

import (
	"fmt"
	"reflect"
	"strings"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidationErrors_Error(t *testing.T) {
	var errs ValidationErrors
	assert.Equal(t, "validation failed", errs.Error())

	errs = append(errs, *NewValidationError("answers[0].question_id", "is required", nil))
	assert.Equal(t, "validation failed: answers[0].question_id is required", errs.Error())

	errs = append(errs, *NewValidationError("time_spent", "must be at least 0", -1))
	assert.Equal(t, "validation failed: 2 field errors, first: answers[0].question_id is required", errs.Error())
}

func TestValidationError_Error(t *testing.T) {
	err := NewValidationError("seconds", "must be positive", 0)
	assert.Equal(t, "seconds must be positive", err.Error())
	assert.Equal(t, 0, err.Value)
}

func TestValidationErrors_Rules(t *testing.T) {
	errs := ValidationErrors{
		{Field: "a", Rule: "unique"},
		{Field: "b"},
		{Field: "c", Rule: "answer_key"},
		{Field: "d", Rule: "unique"},
	}
	assert.Equal(t, []string{"unique", "answer_key"}, errs.Rules())
}

type sampleAnswer struct {
	QuestionID uint `json:"question_id" validate:"required"`
}

type samplePayload struct {
	SkillID uint           `json:"exam_skill_id" validate:"required"`
	Mode    string         `json:"mode" validate:"omitempty,oneof=full section"`
	Answers []sampleAnswer `json:"answers" validate:"max=2,dive"`
}

func TestToValidationErrors(t *testing.T) {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		return strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
	})

	err := v.Struct(samplePayload{Mode: "quiz", Answers: []sampleAnswer{{QuestionID: 1}, {}}})
	errs := ToValidationErrors(err)
	require.Len(t, errs, 3)

	assert.Equal(t, "exam_skill_id", errs[0].Field)
	assert.Equal(t, "is required", errs[0].Message)
	assert.Equal(t, "required", errs[0].Rule)

	assert.Equal(t, "mode", errs[1].Field)
	assert.Equal(t, "must be one of: full section", errs[1].Message)

	assert.Equal(t, "answers[1].question_id", errs[2].Field)

	assert.Nil(t, ToValidationErrors(fmt.Errorf("plain")))
	assert.Nil(t, ToValidationErrors(nil))
}

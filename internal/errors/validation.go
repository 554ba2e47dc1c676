package errors

import (
	stderrors "errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

// ValidationError is one field problem. Field is a json path into the
// request, e.g. sections[0].question_groups[2].question_type.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Value   any    `json:"value,omitempty"`
	Rule    string `json:"rule,omitempty"`
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s %s", e.Field, e.Message)
}

type ValidationErrors []ValidationError

func (ve ValidationErrors) Error() string {
	switch len(ve) {
	case 0:
		return "validation failed"
	case 1:
		return fmt.Sprintf("validation failed: %s %s", ve[0].Field, ve[0].Message)
	default:
		return fmt.Sprintf("validation failed: %d field errors, first: %s %s", len(ve), ve[0].Field, ve[0].Message)
	}
}

// Rules lists the distinct rules in the order they first appear.
func (ve ValidationErrors) Rules() []string {
	seen := make(map[string]bool, len(ve))
	var out []string
	for _, e := range ve {
		if e.Rule == "" || seen[e.Rule] {
			continue
		}
		seen[e.Rule] = true
		out = append(out, e.Rule)
	}
	return out
}

func NewValidationError(field, message string, value any) *ValidationError {
	return &ValidationError{Field: field, Message: message, Value: value}
}

// ToValidationErrors flattens go-playground errors. Anything else yields nil.
func ToValidationErrors(err error) ValidationErrors {
	var fieldErrs validator.ValidationErrors
	if !stderrors.As(err, &fieldErrs) {
		return nil
	}

	out := make(ValidationErrors, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		out = append(out, ValidationError{
			Field:   fieldPath(fe),
			Message: ruleMessage(fe),
			Value:   fe.Value(),
			Rule:    fe.Tag(),
		})
	}
	return out
}

// fieldPath drops the root struct name from the namespace so nested payload
// errors point at the offending json element.
func fieldPath(fe validator.FieldError) string {
	ns := fe.Namespace()
	if i := strings.IndexByte(ns, '.'); i >= 0 {
		return ns[i+1:]
	}
	return fe.Field()
}

func ruleMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "min":
		return fmt.Sprintf("must be at least %s", fe.Param())
	case "max":
		return fmt.Sprintf("must be at most %s", fe.Param())
	case "oneof":
		return fmt.Sprintf("must be one of: %s", fe.Param())
	case "question_type":
		return "must be a known question type (multiple_choice, true_false_not_given, yes_no_not_given, short_text, short_answer, fill_blank, true_false, yes_no, matching, matching_headings, essay, speaking)"
	case "skill_type":
		return "must be reading, listening, writing or speaking"
	case "band_score":
		return "must be a band between 0 and 9 in steps of 0.5"
	default:
		return fmt.Sprintf("failed the %q check", fe.Tag())
	}
}

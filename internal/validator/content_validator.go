package validator

import (
	"fmt"
	"strings"

	"github.com/SAP-F-2025/exam-engine/internal/content"
	"github.com/SAP-F-2025/exam-engine/internal/models"
)

// ContentValidator runs author-side checks on an exam payload. Learners never
// see its output; rendering degrades instead of failing.
type ContentValidator struct{}

func NewContentValidator() *ContentValidator {
	return &ContentValidator{}
}

// ValidateSkill reports structural problems and every integrity warning the
// renderer would raise for the skill.
func (v *ContentValidator) ValidateSkill(skill models.RawSkill) ValidationErrors {
	var errs ValidationErrors

	if len(skill.Sections) == 0 {
		errs = append(errs, ValidationError{Field: "sections", Message: "must contain at least one section", Rule: "required"})
	}

	seen := make(map[uint]string)
	for si, section := range skill.Sections {
		for gi, group := range section.QuestionGroups {
			for qi, q := range group.Questions {
				field := fmt.Sprintf("sections[%d].question_groups[%d].questions[%d]", si, gi, qi)
				if prev, dup := seen[q.ID]; dup {
					errs = append(errs, ValidationError{
						Field:   field + ".id",
						Message: fmt.Sprintf("duplicates question id used at %s", prev),
						Value:   q.ID,
						Rule:    "unique",
					})
				} else {
					seen[q.ID] = field
				}
				if q.Points < 0 {
					errs = append(errs, ValidationError{Field: field + ".points", Message: "must not be negative", Value: q.Points, Rule: "min"})
				}
			}
		}
	}

	exam, warnings := content.BuildExam(skill, content.BuildOptions{})
	plan := content.PlanExam(exam, warnings)
	for _, w := range plan.Warnings {
		errs = append(errs, ValidationError{Field: warningField(w), Message: w.Message, Rule: string(w.Code)})
	}
	errs = append(errs, v.validateAnswerKeys(plan)...)

	return errs
}

// validateAnswerKeys flags choice questions whose key, resolved the way
// scoring resolves it, is not one of the choices a learner can pick.
func (v *ContentValidator) validateAnswerKeys(plan *content.ExamPlan) ValidationErrors {
	var errs ValidationErrors
	for _, part := range plan.Exam.Parts {
		for _, group := range part.Groups {
			gp, ok := plan.Group(group.ID)
			if !ok {
				continue
			}
			for _, q := range group.Questions {
				b, ok := plan.Binding(q.ID)
				if !ok || b.FreeText || len(b.Allowed) == 0 {
					continue
				}
				key, ok := gp.Options.AnswerKey(q)
				if !ok || containsFold(b.Allowed, key) {
					continue
				}
				errs = append(errs, ValidationError{
					Field:   fmt.Sprintf("questions[%d].correct_answer", q.ID),
					Message: fmt.Sprintf("must be one of: %s", strings.Join(b.Allowed, ", ")),
					Value:   key,
					Rule:    "answer_key",
				})
			}
		}
	}
	return errs
}

func warningField(w content.Warning) string {
	if w.QuestionID != 0 {
		return fmt.Sprintf("questions[%d]", w.QuestionID)
	}
	return fmt.Sprintf("question_groups[%d]", w.GroupID)
}

func containsFold(values []string, target string) bool {
	for _, v := range values {
		if strings.EqualFold(v, target) {
			return true
		}
	}
	return false
}

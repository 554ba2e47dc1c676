package content

import (
	"github.com/SAP-F-2025/exam-engine/internal/models"
	"github.com/SAP-F-2025/exam-engine/internal/placeholder"
)

// Strategy is how answers for a group are collected.
type Strategy string

const (
	InlineTemplate          Strategy = "inline_template"
	OneInputPerQuestion     Strategy = "one_input_per_question"
	SingleChoicePerQuestion Strategy = "single_choice_per_question"
	FixedChoicePerQuestion  Strategy = "fixed_choice_per_question"
)

// RenderStrategy picks the strategy for a group. Inline placeholders in the
// content take precedence over the declared question type.
func RenderStrategy(group models.QuestionGroup) Strategy {
	switch {
	case placeholder.ContainsInlinePlaceholders(group.RawContent):
		return InlineTemplate
	case group.QuestionType == models.ShortText || group.QuestionType == models.ShortAnswer:
		return OneInputPerQuestion
	case group.QuestionType == models.Essay || group.QuestionType == models.SpeakingPrompt:
		// Writing tasks and speaking responses are graded units, one response each.
		return OneInputPerQuestion
	case group.QuestionType == models.MultipleChoice:
		return SingleChoicePerQuestion
	default:
		return FixedChoicePerQuestion
	}
}

// AnswerBinding says what a question accepts. Allowed is empty for free text.
type AnswerBinding struct {
	QuestionID    uint     `json:"question_id"`
	DisplayNumber int      `json:"display_number"`
	FreeText      bool     `json:"free_text"`
	Allowed       []string `json:"allowed,omitempty"`
}

// Accepts reports whether value is a legal answer. A choice question with no
// options accepts nothing.
func (b AnswerBinding) Accepts(value string) bool {
	if b.FreeText {
		return true
	}
	for _, a := range b.Allowed {
		if a == value {
			return true
		}
	}
	return false
}

type GroupPlan struct {
	GroupID      uint                `json:"group_id"`
	QuestionType models.QuestionType `json:"question_type"`
	Strategy     Strategy            `json:"strategy"`
	// DisplaysContent is false when the content was a layout document that
	// must not be shown as text.
	DisplaysContent bool                    `json:"displays_content"`
	Options         OptionSet               `json:"options"`
	Bindings        []AnswerBinding         `json:"bindings"`
	Template        *placeholder.Template   `json:"-"`
	Controls        placeholder.ControlRefs `json:"controls,omitempty"`
	Warnings        []Warning               `json:"warnings,omitempty"`
}

// Dispatch builds the collection plan for one group.
func Dispatch(group models.QuestionGroup) GroupPlan {
	plan := GroupPlan{
		GroupID:         group.ID,
		QuestionType:    group.QuestionType,
		Strategy:        RenderStrategy(group),
		DisplaysContent: group.DisplaysContent(),
	}

	var first *models.Question
	if len(group.Questions) > 0 {
		first = &group.Questions[0]
	}

	switch plan.Strategy {
	case InlineTemplate:
		tpl, refs := placeholder.Splice(group.RawContent, group.Questions)
		plan.Template = &tpl
		plan.Controls = refs
		plan.Options = OptionSet{Source: SourceNone}
		plan.Bindings = freeTextBindings(group.Questions)
		if tpl.Unbound > 0 {
			plan.Warnings = append(plan.Warnings, newWarning(WarnExcessPlaceholders, group.ID,
				"%d placeholder(s) have no question and render as text", tpl.Unbound))
		}
		if missing := len(group.Questions) - tpl.Bound; missing > 0 {
			plan.Warnings = append(plan.Warnings, newWarning(WarnMissingPlaceholders, group.ID,
				"%d question(s) have no placeholder in the content", missing))
		}

	case OneInputPerQuestion:
		plan.Options, _ = Normalize(group.QuestionType, group, first)
		plan.Bindings = freeTextBindings(group.Questions)

	case SingleChoicePerQuestion, FixedChoicePerQuestion:
		var ws []Warning
		plan.Options, ws = Normalize(group.QuestionType, group, first)
		plan.Warnings = append(plan.Warnings, ws...)
		if plan.Options.IsEmpty() && len(ws) == 0 {
			plan.Warnings = append(plan.Warnings, newWarning(WarnNoOptions, group.ID,
				"%s group has no options, its questions cannot be answered", group.QuestionType))
		}
		plan.Bindings = choiceBindings(group.Questions, plan.Options.Values())
	}
	return plan
}

func freeTextBindings(questions []models.Question) []AnswerBinding {
	out := make([]AnswerBinding, len(questions))
	for i, q := range questions {
		out[i] = AnswerBinding{QuestionID: q.ID, DisplayNumber: q.DisplayNumber, FreeText: true}
	}
	return out
}

func choiceBindings(questions []models.Question, allowed []string) []AnswerBinding {
	out := make([]AnswerBinding, len(questions))
	for i, q := range questions {
		out[i] = AnswerBinding{QuestionID: q.ID, DisplayNumber: q.DisplayNumber, Allowed: allowed}
	}
	return out
}

// ExamPlan is the dispatch result for every group of an exam.
type ExamPlan struct {
	Exam     *models.Exam `json:"exam"`
	Groups   []GroupPlan  `json:"groups"`
	Warnings []Warning    `json:"warnings,omitempty"`

	bindings map[uint]AnswerBinding
}

// PlanExam dispatches every group. Assembly warnings passed in are kept
// ahead of the dispatch warnings.
func PlanExam(exam *models.Exam, assembly []Warning) *ExamPlan {
	plan := &ExamPlan{
		Exam:     exam,
		Warnings: append([]Warning(nil), assembly...),
		bindings: make(map[uint]AnswerBinding),
	}
	for _, part := range exam.Parts {
		for _, group := range part.Groups {
			gp := Dispatch(group)
			for _, b := range gp.Bindings {
				plan.bindings[b.QuestionID] = b
			}
			plan.Warnings = append(plan.Warnings, gp.Warnings...)
			plan.Groups = append(plan.Groups, gp)
		}
	}
	return plan
}

func (p *ExamPlan) Binding(questionID uint) (AnswerBinding, bool) {
	b, ok := p.bindings[questionID]
	return b, ok
}

func (p *ExamPlan) Group(groupID uint) (GroupPlan, bool) {
	for _, g := range p.Groups {
		if g.GroupID == groupID {
			return g, true
		}
	}
	return GroupPlan{}, false
}

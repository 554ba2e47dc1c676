package grading

import (
	"context"

	"github.com/SAP-F-2025/exam-engine/internal/models"
)

// GradeRequest is one sub-unit sent for grading. Units are never batched.
type GradeRequest struct {
	Skill        models.SkillType `json:"skill" validate:"required,skill_type"`
	QuestionID   uint             `json:"question_id" validate:"required"`
	QuestionText string           `json:"question_text" validate:"required"`
	AnswerText   string           `json:"answer_text"`
	ExamStandard string           `json:"exam_standard"`
}

// Grader scores a single sub-unit.
type Grader interface {
	Grade(ctx context.Context, req GradeRequest) (*models.SubGradingResult, error)
}

type GraderFunc func(ctx context.Context, req GradeRequest) (*models.SubGradingResult, error)

func (f GraderFunc) Grade(ctx context.Context, req GradeRequest) (*models.SubGradingResult, error) {
	return f(ctx, req)
}

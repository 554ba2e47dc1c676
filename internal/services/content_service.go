package services

import (
	"context"
	"fmt"

	"github.com/SAP-F-2025/exam-engine/internal/content"
	"github.com/SAP-F-2025/exam-engine/internal/events"
	"github.com/SAP-F-2025/exam-engine/internal/models"
	"github.com/SAP-F-2025/exam-engine/internal/validator"
)

// ContentService turns raw exam payloads into render plans.
type ContentService interface {
	// Register stores a skill payload and reports every integrity issue an
	// author should fix. Issues never block registration.
	Register(ctx context.Context, skill *models.RawSkill) (*RegisterResult, error)
	// Plan builds the render plan for a payload without storing it.
	Plan(ctx context.Context, skill *models.RawSkill, sectionID *uint) (*content.ExamPlan, error)
	// Prepare builds the plan for a stored skill, or one of its sections.
	Prepare(ctx context.Context, skillID uint, sectionID *uint) (*content.ExamPlan, error)
	Validate(ctx context.Context, skill *models.RawSkill) ValidationErrors
}

type RegisterResult struct {
	SkillID       uint             `json:"skill_id"`
	QuestionCount int              `json:"question_count"`
	PartCount     int              `json:"part_count"`
	Issues        ValidationErrors `json:"issues,omitempty"`
}

type contentService struct {
	store     SkillStore
	publisher events.EventPublisher
	validator *validator.Validator
	options   content.BuildOptions
	logger    *ServiceLogger
}

func NewContentService(store SkillStore, publisher events.EventPublisher, v *validator.Validator, opts content.BuildOptions, logger *ServiceLogger) ContentService {
	return &contentService{
		store:     store,
		publisher: publisher,
		validator: v,
		options:   opts,
		logger:    logger,
	}
}

func (s *contentService) Register(ctx context.Context, skill *models.RawSkill) (result *RegisterResult, err error) {
	op := s.logger.WithOperation(ctx, "register_skill")
	defer func() { op.LogResult(skill.ID, "skill", err) }()

	if skill.ID == 0 {
		return nil, ValidationErrors{*NewValidationError("id", "is required", skill.ID)}
	}
	if err := s.store.Save(ctx, skill); err != nil {
		return nil, fmt.Errorf("failed to store skill %d: %w", skill.ID, err)
	}

	issues := s.Validate(ctx, skill)
	if len(issues) > 0 {
		s.logger.Logger().WarnContext(ctx, "Skill registered with content issues",
			"skill_id", skill.ID, "issues", len(issues), "rules", issues.Rules())
	}

	exam, _ := content.BuildExam(*skill, s.options)
	return &RegisterResult{
		SkillID:       skill.ID,
		QuestionCount: len(exam.Questions()),
		PartCount:     len(exam.Parts),
		Issues:        issues,
	}, nil
}

func (s *contentService) Plan(ctx context.Context, skill *models.RawSkill, sectionID *uint) (plan *content.ExamPlan, err error) {
	op := s.logger.WithOperation(ctx, "plan_exam")
	defer func() { op.LogResult(skill.ID, "skill", err) }()

	return s.build(ctx, skill, sectionID)
}

func (s *contentService) Prepare(ctx context.Context, skillID uint, sectionID *uint) (plan *content.ExamPlan, err error) {
	op := s.logger.WithOperation(ctx, "prepare_exam")
	defer func() { op.LogResult(skillID, "skill", err) }()

	skill, err := s.store.Get(ctx, skillID)
	if err != nil {
		return nil, err
	}
	return s.build(ctx, skill, sectionID)
}

func (s *contentService) Validate(ctx context.Context, skill *models.RawSkill) ValidationErrors {
	var issues ValidationErrors
	if err := s.validator.Validate(skill); err != nil {
		if ve, ok := err.(ValidationErrors); ok {
			issues = append(issues, ve...)
		}
	}
	return append(issues, s.validator.Content().ValidateSkill(*skill)...)
}

func (s *contentService) build(ctx context.Context, skill *models.RawSkill, sectionID *uint) (*content.ExamPlan, error) {
	var (
		exam     *models.Exam
		warnings []content.Warning
	)
	if sectionID != nil {
		var err error
		exam, warnings, err = content.BuildSectionExam(*skill, *sectionID, s.options)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrSectionNotFound, err)
		}
	} else {
		exam, warnings = content.BuildExam(*skill, s.options)
	}

	plan := content.PlanExam(exam, warnings)
	s.reportWarnings(ctx, skill.ID, plan.Warnings)
	return plan, nil
}

// reportWarnings sends integrity problems to authors through logs and
// events. Publishing failures are logged and otherwise ignored.
func (s *contentService) reportWarnings(ctx context.Context, skillID uint, warnings []content.Warning) {
	for _, w := range warnings {
		s.logger.Logger().WarnContext(ctx, "Content integrity warning",
			"skill_id", skillID,
			"group_id", w.GroupID,
			"question_id", w.QuestionID,
			"code", w.Code,
			"message", w.Message)

		event := events.NewEvent(events.EventContentIntegrityWarning, events.ContentIntegrityWarningEvent{
			SkillID:    skillID,
			GroupID:    w.GroupID,
			QuestionID: w.QuestionID,
			Code:       string(w.Code),
			Message:    w.Message,
		})
		if err := s.publisher.Publish(ctx, event); err != nil {
			s.logger.Logger().WarnContext(ctx, "Failed to publish integrity warning", "skill_id", skillID, "error", err)
		}
	}
}

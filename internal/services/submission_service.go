package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/SAP-F-2025/exam-engine/internal/content"
	"github.com/SAP-F-2025/exam-engine/internal/models"
	"github.com/SAP-F-2025/exam-engine/internal/repositories"
	"github.com/SAP-F-2025/exam-engine/internal/session"
	"github.com/SAP-F-2025/exam-engine/internal/validator"
)

// SubmissionService stores finished attempts and scores objective answers.
// It is the Submitter behind every attempt session.
type SubmissionService interface {
	session.Submitter
	GetSubmission(ctx context.Context, id uint) (*models.Submission, error)
	GetReport(ctx context.Context, id uint) (*models.ResultReport, error)
	List(ctx context.Context, filters repositories.SubmissionFilters) ([]*models.Submission, int64, error)
}

type submissionService struct {
	repo      repositories.SubmissionRepository
	exams     examLoader
	validator *validator.Validator
	logger    *ServiceLogger
	now       func() time.Time
}

func NewSubmissionService(repo repositories.SubmissionRepository, store SkillStore, v *validator.Validator, opts content.BuildOptions, logger *ServiceLogger) SubmissionService {
	return &submissionService{
		repo:      repo,
		exams:     examLoader{store: store, options: opts},
		validator: v,
		logger:    logger,
		now:       time.Now,
	}
}

// Submit validates, scores and stores the payload. Bad payloads and unknown
// content come back wrapped in session.ErrSubmissionRejected; storage
// failures are returned as they are so the attempt can retry.
func (s *submissionService) Submit(ctx context.Context, payload models.SubmissionPayload) (receipt *models.SubmissionReceipt, err error) {
	op := s.logger.WithOperation(ctx, "submit")
	defer func() { op.LogResult(payload.SkillID, "submission", err) }()

	if err := s.validator.Validate(payload); err != nil {
		return nil, fmt.Errorf("%w: %w", session.ErrSubmissionRejected, err)
	}

	exam, err := s.exams.load(ctx, payload.SkillID, payload.SectionID)
	if err != nil {
		if IsNotFound(err) {
			return nil, fmt.Errorf("%w: %w", session.ErrSubmissionRejected, err)
		}
		return nil, err
	}

	answers := payload.AnswerMap()
	if unknown := unknownQuestions(exam, answers); len(unknown) > 0 {
		return nil, fmt.Errorf("%w: %w", session.ErrSubmissionRejected, unknown)
	}

	scored, total, maxScore := scoreAnswers(exam, answers)
	now := s.now()
	submission := &models.Submission{
		SkillID:     payload.SkillID,
		SectionID:   payload.SectionID,
		SkillType:   exam.SkillType,
		Status:      initialStatus(exam.SkillType),
		TimeSpent:   clampTimeSpent(payload.TimeSpentSeconds, exam.TimeLimitSeconds),
		TotalScore:  total,
		MaxScore:    maxScore,
		SubmittedAt: now,
		Answers:     scored,
	}
	if submission.Status == models.SubmissionGraded {
		submission.GradedAt = &now
	}

	if err := s.repo.Create(ctx, submission); err != nil {
		return nil, fmt.Errorf("failed to store submission: %w", err)
	}

	return &models.SubmissionReceipt{
		SubmissionID: submission.ID,
		Status:       submission.Status,
		TotalScore:   submission.TotalScore,
		MaxScore:     submission.MaxScore,
	}, nil
}

func (s *submissionService) GetSubmission(ctx context.Context, id uint) (*models.Submission, error) {
	submission, err := s.repo.GetByIDWithAnswers(ctx, id)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, fmt.Errorf("%w: %d", ErrSubmissionNotFound, id)
		}
		return nil, fmt.Errorf("failed to get submission %d: %w", id, err)
	}
	return submission, nil
}

func (s *submissionService) GetReport(ctx context.Context, id uint) (report *models.ResultReport, err error) {
	op := s.logger.WithOperation(ctx, "get_report")
	defer func() { op.LogResult(id, "submission", err) }()

	submission, err := s.GetSubmission(ctx, id)
	if err != nil {
		return nil, err
	}
	exam, err := s.exams.load(ctx, submission.SkillID, submission.SectionID)
	if err != nil {
		return nil, err
	}
	return BuildReport(submission.ID, exam, submission.Answers), nil
}

func (s *submissionService) List(ctx context.Context, filters repositories.SubmissionFilters) ([]*models.Submission, int64, error) {
	return s.repo.List(ctx, filters)
}

func initialStatus(skill models.SkillType) models.SubmissionStatus {
	switch {
	case skill.IsObjective():
		return models.SubmissionGraded
	case skill.IsValid():
		return models.SubmissionPending
	default:
		return models.SubmissionCompleted
	}
}

func clampTimeSpent(spent, limit int) int {
	if spent < 0 {
		return 0
	}
	if limit > 0 && spent > limit {
		return limit
	}
	return spent
}

func unknownQuestions(exam *models.Exam, answers map[uint]string) ValidationErrors {
	known := make(map[uint]bool)
	for _, q := range exam.Questions() {
		known[q.ID] = true
	}
	var errs ValidationErrors
	for id := range answers {
		if !known[id] {
			errs = append(errs, *NewValidationError("answers.question_id", ErrUnknownQuestion.Error(), id))
		}
	}
	return errs
}

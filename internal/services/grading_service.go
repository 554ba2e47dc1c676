package services

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/SAP-F-2025/exam-engine/internal/content"
	"github.com/SAP-F-2025/exam-engine/internal/events"
	"github.com/SAP-F-2025/exam-engine/internal/grading"
	"github.com/SAP-F-2025/exam-engine/internal/models"
	"github.com/SAP-F-2025/exam-engine/internal/repositories"
	"github.com/SAP-F-2025/exam-engine/internal/validator"
)

// GradingService grades writing and speaking submissions one sub-unit at a
// time and aggregates once every unit has a stored result.
type GradingService interface {
	GradeSubmission(ctx context.Context, submissionID uint) (*GradingOutcome, error)
	// GetResult rebuilds the aggregate from stored records.
	GetResult(ctx context.Context, submissionID uint) (*GradingOutcome, error)
	GradeUnit(ctx context.Context, req *grading.GradeRequest) (*models.SubGradingResult, error)
	Aggregate(ctx context.Context, req *AggregateRequest) (*models.AggregatedResult, error)
}

type GradingOutcome struct {
	SubmissionID uint                     `json:"submission_id"`
	SagaID       string                   `json:"saga_id,omitempty"`
	Expected     int                      `json:"expected_units"`
	Received     int                      `json:"received_units"`
	Result       *models.AggregatedResult `json:"result"`
}

type AggregateRequest struct {
	SkillType models.SkillType          `json:"skill_type" validate:"required,skill_type"`
	Results   []models.SubGradingResult `json:"results" validate:"required,min=1,dive"`
}

type GradingConfig struct {
	ExamStandard string
	Workers      int
	// Timeout bounds one shared grading run, independent of its callers.
	Timeout time.Duration
}

const defaultGradingTimeout = 5 * time.Minute

type gradingService struct {
	submissions repositories.SubmissionRepository
	records     repositories.GradingRecordRepository
	exams       examLoader
	grader      grading.Grader
	publisher   events.EventPublisher
	validator   *validator.Validator
	config      GradingConfig
	logger      *ServiceLogger
	inflight    singleflight.Group
	now         func() time.Time
}

func NewGradingService(
	submissions repositories.SubmissionRepository,
	records repositories.GradingRecordRepository,
	store SkillStore,
	opts content.BuildOptions,
	grader grading.Grader,
	publisher events.EventPublisher,
	v *validator.Validator,
	config GradingConfig,
	logger *ServiceLogger,
) GradingService {
	if config.ExamStandard == "" {
		config.ExamStandard = grading.DefaultExamStandard
	}
	if config.Timeout <= 0 {
		config.Timeout = defaultGradingTimeout
	}
	return &gradingService{
		submissions: submissions,
		records:     records,
		exams:       examLoader{store: store, options: opts},
		grader:      grader,
		publisher:   publisher,
		validator:   v,
		config:      config,
		logger:      logger,
		now:         time.Now,
	}
}

// GradeSubmission resumes from stored records, so only units without a
// result are sent to the grader. Concurrent calls for one submission share
// a single run, which is not cut short when one caller goes away.
func (s *gradingService) GradeSubmission(ctx context.Context, submissionID uint) (*GradingOutcome, error) {
	ch := s.inflight.DoChan(strconv.FormatUint(uint64(submissionID), 10), func() (any, error) {
		runCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.config.Timeout)
		defer cancel()
		return s.gradeSubmission(runCtx, submissionID)
	})
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*GradingOutcome), nil
	}
}

func (s *gradingService) gradeSubmission(ctx context.Context, submissionID uint) (outcome *GradingOutcome, err error) {
	op := s.logger.WithOperation(ctx, "grade_submission")
	defer func() { op.LogResult(submissionID, "submission", err) }()

	submission, units, err := s.loadUnits(ctx, submissionID)
	if err != nil {
		return nil, err
	}

	saga, err := s.resumeSaga(ctx, submission, len(units))
	if err != nil {
		return nil, err
	}

	result, err := saga.Run(ctx, s.grader, units, grading.RunOptions{
		Concurrency: s.config.Workers,
		OnResult: func(ctx context.Context, index int, res models.SubGradingResult) error {
			return s.records.Upsert(ctx, models.NewGradingRecord(submission.ID, index, submission.SkillType, res))
		},
	})
	if err != nil {
		s.publish(ctx, events.NewEvent(events.EventGradingUnitFailed, events.GradingUnitFailedEvent{
			SubmissionID: submission.ID,
			SagaID:       saga.ID,
			Missing:      saga.Missing(),
			Reason:       err.Error(),
		}))
		return nil, err
	}

	gradedAt := s.now()
	if err := s.submissions.MarkGraded(ctx, submission.ID, result.OverallBand, gradedAt); err != nil {
		return nil, fmt.Errorf("failed to store overall band: %w", err)
	}

	s.publish(ctx, events.NewEvent(events.EventGradingCompleted, events.GradingCompletedEvent{
		SubmissionID: submission.ID,
		SagaID:       saga.ID,
		SkillType:    submission.SkillType,
		OverallBand:  result.OverallBand,
		UnitCount:    saga.Expected(),
		CompletedAt:  gradedAt,
	}))

	return &GradingOutcome{
		SubmissionID: submission.ID,
		SagaID:       saga.ID,
		Expected:     saga.Expected(),
		Received:     saga.Received(),
		Result:       result,
	}, nil
}

func (s *gradingService) GetResult(ctx context.Context, submissionID uint) (outcome *GradingOutcome, err error) {
	op := s.logger.WithOperation(ctx, "get_grading_result")
	defer func() { op.LogResult(submissionID, "submission", err) }()

	submission, units, err := s.loadUnits(ctx, submissionID)
	if err != nil {
		return nil, err
	}
	saga, err := s.resumeSaga(ctx, submission, len(units))
	if err != nil {
		return nil, err
	}

	result, err := saga.Aggregate()
	if err != nil {
		if errors.Is(err, grading.ErrGradingIncomplete) {
			return nil, fmt.Errorf("%w: %w", ErrGradingNotReady, err)
		}
		return nil, err
	}
	return &GradingOutcome{
		SubmissionID: submission.ID,
		Expected:     saga.Expected(),
		Received:     saga.Received(),
		Result:       result,
	}, nil
}

func (s *gradingService) GradeUnit(ctx context.Context, req *grading.GradeRequest) (result *models.SubGradingResult, err error) {
	op := s.logger.WithOperation(ctx, "grade_unit")
	defer func() { op.LogResult(req.QuestionID, "question", err) }()

	req.Skill = models.ParseSkillType(string(req.Skill))
	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}
	if req.Skill.IsObjective() {
		return nil, fmt.Errorf("%w: %s", ErrGradingNotAllowed, req.Skill)
	}
	if req.ExamStandard == "" {
		req.ExamStandard = s.config.ExamStandard
	}
	return s.grader.Grade(ctx, *req)
}

func (s *gradingService) Aggregate(ctx context.Context, req *AggregateRequest) (result *models.AggregatedResult, err error) {
	op := s.logger.WithOperation(ctx, "aggregate")
	defer func() { op.LogResult(nil, "grading", err) }()

	req.SkillType = models.ParseSkillType(string(req.SkillType))
	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}
	return grading.Aggregate(req.SkillType, req.Results)
}

// loadUnits returns the submission and one grading unit per question, in
// display order so task positions line up with the writing weights.
func (s *gradingService) loadUnits(ctx context.Context, submissionID uint) (*models.Submission, []grading.Unit, error) {
	submission, err := s.submissions.GetByIDWithAnswers(ctx, submissionID)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, nil, fmt.Errorf("%w: %d", ErrSubmissionNotFound, submissionID)
		}
		return nil, nil, fmt.Errorf("failed to get submission %d: %w", submissionID, err)
	}
	if submission.SkillType.IsObjective() || !submission.SkillType.IsValid() {
		return nil, nil, fmt.Errorf("%w: %s", ErrGradingNotAllowed, submission.SkillType)
	}

	exam, err := s.exams.load(ctx, submission.SkillID, submission.SectionID)
	if err != nil {
		return nil, nil, err
	}

	answers := make(map[uint]string, len(submission.Answers))
	for _, a := range submission.Answers {
		answers[a.QuestionID] = a.AnswerText
	}

	var units []grading.Unit
	for _, part := range exam.Parts {
		for _, group := range part.Groups {
			for _, q := range group.Questions {
				units = append(units, grading.Unit{
					Index: len(units),
					Request: grading.GradeRequest{
						Skill:        submission.SkillType,
						QuestionID:   q.ID,
						QuestionText: unitPrompt(group, q),
						AnswerText:   answers[q.ID],
						ExamStandard: s.config.ExamStandard,
					},
				})
			}
		}
	}
	if len(units) == 0 {
		return nil, nil, fmt.Errorf("%w: submission %d", grading.ErrNoSubResults, submissionID)
	}
	return submission, units, nil
}

// resumeSaga seeds a saga with the records already stored for the submission.
func (s *gradingService) resumeSaga(ctx context.Context, submission *models.Submission, expected int) (*grading.Saga, error) {
	saga := grading.NewSaga(submission.SkillType, expected, s.logger.Logger().With("submission_id", submission.ID))

	records, err := s.records.ListBySubmission(ctx, submission.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to load grading records: %w", err)
	}
	for _, r := range records {
		if err := saga.Record(r.UnitIndex, r.Result.Data()); err != nil {
			s.logger.Logger().WarnContext(ctx, "Ignoring stale grading record",
				"submission_id", submission.ID, "unit_index", r.UnitIndex, "error", err)
		}
	}
	return saga, nil
}

func (s *gradingService) publish(ctx context.Context, event *events.Event) {
	if err := s.publisher.Publish(ctx, event); err != nil {
		s.logger.Logger().WarnContext(ctx, "Failed to publish event", "event_type", event.Type, "error", err)
	}
}

func unitPrompt(group models.QuestionGroup, q models.Question) string {
	if q.Content != "" {
		return q.Content
	}
	if group.Instructions != "" {
		return group.Instructions
	}
	return group.RawContent
}

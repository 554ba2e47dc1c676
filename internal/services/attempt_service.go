package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"github.com/SAP-F-2025/exam-engine/internal/cache"
	"github.com/SAP-F-2025/exam-engine/internal/content"
	"github.com/SAP-F-2025/exam-engine/internal/events"
	"github.com/SAP-F-2025/exam-engine/internal/models"
	"github.com/SAP-F-2025/exam-engine/internal/placeholder"
	"github.com/SAP-F-2025/exam-engine/internal/session"
	"github.com/SAP-F-2025/exam-engine/internal/validator"
)

// AttemptService runs learner attempts. Each attempt owns a session with
// its own countdown; the answer map is mirrored to the cache so a reloaded
// client, or a restarted server, can resume it.
type AttemptService interface {
	Start(ctx context.Context, req *StartAttemptRequest) (*AttemptView, error)
	Resume(ctx context.Context, attemptID string) (*AttemptView, error)
	Get(ctx context.Context, attemptID string) (*AttemptView, error)
	SetAnswer(ctx context.Context, attemptID string, req *AnswerRequest) (*AnswerAck, error)
	Navigate(ctx context.Context, attemptID string, part int) (*AttemptView, error)
	ExtendTime(ctx context.Context, attemptID string, seconds int) (*AttemptView, error)
	// RenderGroup renders an inline gap-fill group with the learner's values.
	RenderGroup(ctx context.Context, attemptID string, groupID uint) (*RenderedGroup, error)
	Submit(ctx context.Context, attemptID string) (*models.SubmissionReceipt, error)
	Close(ctx context.Context, attemptID string) error
	// Shutdown stops every countdown. Snapshots are kept for resumption.
	Shutdown()
}

type StartAttemptRequest struct {
	SkillID   uint  `json:"skill_id" validate:"required"`
	SectionID *uint `json:"section_id"`
}

// AnswerRequest distinguishes a cleared answer ("") from a missing field.
type AnswerRequest struct {
	QuestionID uint    `json:"question_id" validate:"required"`
	AnswerText *string `json:"answer_text" validate:"required"`
}

type AnswerAck struct {
	QuestionID uint                `json:"question_id"`
	Value      string              `json:"value"`
	Status     models.AnswerStatus `json:"status"`
	Revision   uint64              `json:"revision"`
}

type AttemptView struct {
	AttemptID string `json:"attempt_id"`
	SkillID   uint   `json:"skill_id"`
	SectionID *uint  `json:"section_id,omitempty"`
	session.Snapshot
	Plan *content.ExamPlan `json:"plan,omitempty"`
}

type RenderedGroup struct {
	GroupID  uint                  `json:"group_id"`
	HTML     string                `json:"html"`
	Controls []placeholder.Control `json:"controls"`
}

type AttemptConfig struct {
	SnapshotTTL  time.Duration
	TickInterval time.Duration
	// RetainSubmitted is how long a submitted attempt still answers Get and
	// Submit before it is evicted from memory.
	RetainSubmitted time.Duration
}

const defaultRetainSubmitted = 10 * time.Minute

type attemptSnapshot struct {
	AttemptID   string          `json:"attempt_id"`
	SkillID     uint            `json:"skill_id"`
	SectionID   *uint           `json:"section_id,omitempty"`
	Duration    int             `json:"duration_seconds"`
	Remaining   int             `json:"remaining_seconds"`
	CurrentPart int             `json:"current_part"`
	Answers     map[uint]string `json:"answers"`
	SavedAt     time.Time       `json:"saved_at"`
}

type attempt struct {
	id        string
	skillID   uint
	sectionID *uint
	plan      *content.ExamPlan
	session   *session.Session

	// Inline groups keep a live binding of their controls, keyed by group.
	templates map[uint]*placeholder.Binding
	inline    map[uint]uint
}

// syncTemplates pushes the answer map into every inline control.
func (a *attempt) syncTemplates() {
	answers, _ := a.session.Answers()
	for _, b := range a.templates {
		b.Sync(answers)
	}
}

func (a *attempt) release() {
	for _, b := range a.templates {
		b.Release()
	}
}

type attemptService struct {
	content   ContentService
	submitter session.Submitter
	cache     cache.CacheService
	publisher events.EventPublisher
	validator *validator.Validator
	config    AttemptConfig
	logger    *ServiceLogger

	mu       sync.RWMutex
	attempts map[string]*attempt
	resumes  singleflight.Group

	// Countdowns outlive the request that started them.
	baseCtx context.Context
	cancel  context.CancelFunc
	now     func() time.Time
}

func NewAttemptService(
	contentSvc ContentService,
	submitter session.Submitter,
	c cache.CacheService,
	publisher events.EventPublisher,
	v *validator.Validator,
	config AttemptConfig,
	logger *ServiceLogger,
) AttemptService {
	ctx, cancel := context.WithCancel(context.Background())
	if config.RetainSubmitted <= 0 {
		config.RetainSubmitted = defaultRetainSubmitted
	}
	return &attemptService{
		content:   contentSvc,
		submitter: submitter,
		cache:     c,
		publisher: publisher,
		validator: v,
		config:    config,
		logger:    logger,
		attempts:  make(map[string]*attempt),
		baseCtx:   ctx,
		cancel:    cancel,
		now:       time.Now,
	}
}

func (s *attemptService) Start(ctx context.Context, req *StartAttemptRequest) (view *AttemptView, err error) {
	op := s.logger.WithOperation(ctx, "start_attempt")
	defer func() { op.LogResult(req.SkillID, "attempt", err) }()

	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}
	plan, err := s.content.Prepare(ctx, req.SkillID, req.SectionID)
	if err != nil {
		return nil, err
	}

	a := s.newAttempt(uuid.NewString(), req.SkillID, req.SectionID, plan, plan.Exam.TimeLimitSeconds, 0)
	if err := a.session.Start(s.baseCtx); err != nil {
		return nil, err
	}
	s.track(a)
	s.saveSnapshot(ctx, a)

	s.publish(ctx, events.NewEvent(events.EventAttemptStarted, events.AttemptStartedEvent{
		AttemptID:       a.id,
		SkillID:         a.skillID,
		SectionID:       a.sectionID,
		DurationSeconds: plan.Exam.TimeLimitSeconds,
		QuestionCount:   len(plan.Exam.Questions()),
		StartedAt:       s.now(),
	}))

	return s.view(a, true), nil
}

// Resume returns a live attempt, or rebuilds it from its cached snapshot.
// The countdown keeps running while the learner is away.
func (s *attemptService) Resume(ctx context.Context, attemptID string) (view *AttemptView, err error) {
	op := s.logger.WithOperation(ctx, "resume_attempt")
	defer func() { op.LogResult(attemptID, "attempt", err) }()

	if a, ok := s.lookup(attemptID); ok {
		return s.view(a, true), nil
	}

	// Concurrent resumes of one attempt share a single rebuild, so only one
	// countdown ever runs for it.
	v, err, _ := s.resumes.Do(attemptID, func() (any, error) {
		if a, ok := s.lookup(attemptID); ok {
			return a, nil
		}
		return s.restore(context.WithoutCancel(ctx), attemptID)
	})
	if err != nil {
		return nil, err
	}
	return s.view(v.(*attempt), true), nil
}

func (s *attemptService) restore(ctx context.Context, attemptID string) (*attempt, error) {
	var snap attemptSnapshot
	if err := s.cache.Get(ctx, cache.AnswerSnapshotKey(attemptID), &snap); err != nil {
		if errors.Is(err, cache.ErrCacheMiss) {
			return nil, fmt.Errorf("%w: %s", ErrAttemptNotFound, attemptID)
		}
		return nil, fmt.Errorf("failed to load attempt snapshot: %w", err)
	}

	plan, err := s.content.Prepare(ctx, snap.SkillID, snap.SectionID)
	if err != nil {
		return nil, err
	}

	remaining := snap.Remaining - int(s.now().Sub(snap.SavedAt).Seconds())
	if remaining < 1 {
		// Submit on the first tick.
		remaining = 1
	}

	a := s.newAttempt(snap.AttemptID, snap.SkillID, snap.SectionID, plan, snap.Duration, remaining)
	restored := make(map[uint]string, len(snap.Answers))
	for qid, v := range snap.Answers {
		if _, ok := plan.Binding(qid); ok {
			restored[qid] = v
		}
	}
	if err := a.session.Restore(restored); err != nil {
		return nil, err
	}
	if err := a.session.Start(s.baseCtx); err != nil {
		return nil, err
	}
	a.syncTemplates()
	if snap.CurrentPart > 1 {
		_ = a.session.NavigateTo(snap.CurrentPart)
	}
	if live, ok := s.trackOnce(a); !ok {
		a.session.Close()
		a.release()
		return live, nil
	}
	s.saveSnapshot(ctx, a)

	s.publish(ctx, events.NewEvent(events.EventAttemptStarted, events.AttemptStartedEvent{
		AttemptID:       a.id,
		SkillID:         a.skillID,
		SectionID:       a.sectionID,
		DurationSeconds: snap.Duration,
		QuestionCount:   len(plan.Exam.Questions()),
		RestoredAnswers: len(restored),
		StartedAt:       s.now(),
	}))

	return a, nil
}

func (s *attemptService) Get(ctx context.Context, attemptID string) (*AttemptView, error) {
	a, err := s.get(attemptID)
	if err != nil {
		return nil, err
	}
	return s.view(a, false), nil
}

func (s *attemptService) SetAnswer(ctx context.Context, attemptID string, req *AnswerRequest) (ack *AnswerAck, err error) {
	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}
	a, err := s.get(attemptID)
	if err != nil {
		return nil, err
	}

	binding, ok := a.plan.Binding(req.QuestionID)
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrUnknownQuestion, req.QuestionID)
	}
	value := *req.AnswerText
	_, inline := a.inline[req.QuestionID]
	if inline {
		value = placeholder.Truncate(value)
	}
	if !binding.Accepts(value) {
		return nil, fmt.Errorf("%w: question %d accepts %v", ErrAnswerNotAllowed, req.QuestionID, binding.Allowed)
	}

	rev, err := a.session.SetAnswer(req.QuestionID, value)
	if err != nil {
		return nil, inactive(err)
	}
	if inline {
		a.syncTemplates()
	}
	s.saveSnapshot(ctx, a)

	return &AnswerAck{
		QuestionID: req.QuestionID,
		Value:      value,
		Status:     models.AnswerAnswered,
		Revision:   rev,
	}, nil
}

func (s *attemptService) Navigate(ctx context.Context, attemptID string, part int) (*AttemptView, error) {
	a, err := s.get(attemptID)
	if err != nil {
		return nil, err
	}
	if err := a.session.NavigateTo(part); err != nil {
		return nil, inactive(err)
	}
	s.saveSnapshot(ctx, a)
	return s.view(a, false), nil
}

func (s *attemptService) ExtendTime(ctx context.Context, attemptID string, seconds int) (view *AttemptView, err error) {
	op := s.logger.WithOperation(ctx, "extend_time")
	defer func() { op.LogResult(attemptID, "attempt", err) }()

	if seconds <= 0 {
		return nil, ValidationErrors{*NewValidationError("seconds", "must be positive", seconds)}
	}
	a, err := s.get(attemptID)
	if err != nil {
		return nil, err
	}
	if err := a.session.ExtendTime(seconds); err != nil {
		return nil, inactive(err)
	}
	s.saveSnapshot(ctx, a)
	return s.view(a, false), nil
}

func (s *attemptService) RenderGroup(ctx context.Context, attemptID string, groupID uint) (*RenderedGroup, error) {
	a, err := s.get(attemptID)
	if err != nil {
		return nil, err
	}
	gp, ok := a.plan.Group(groupID)
	if !ok {
		return nil, fmt.Errorf("%w: group %d", ErrNotFound, groupID)
	}
	binding, ok := a.templates[groupID]
	if !ok {
		return nil, NewBusinessRuleError("inline_template_only",
			fmt.Sprintf("group %d is rendered as %s", groupID, gp.Strategy),
			map[string]any{"group_id": groupID, "strategy": gp.Strategy})
	}
	return &RenderedGroup{
		GroupID:  groupID,
		HTML:     placeholder.Render(*gp.Template, binding.Values()),
		Controls: gp.Template.Controls(),
	}, nil
}

func (s *attemptService) Submit(ctx context.Context, attemptID string) (receipt *models.SubmissionReceipt, err error) {
	op := s.logger.WithOperation(ctx, "submit_attempt")
	defer func() { op.LogResult(attemptID, "attempt", err) }()

	a, err := s.get(attemptID)
	if err != nil {
		return nil, err
	}
	if a.session.State() == session.StateSubmitted {
		return nil, fmt.Errorf("%w: %s", ErrAttemptAlreadySubmitted, attemptID)
	}

	receipt, err = a.session.Submit(ctx)
	s.afterSubmit(ctx, a, receipt, err, false)
	if err != nil {
		if errors.Is(err, session.ErrNotInProgress) || errors.Is(err, session.ErrClosed) {
			return nil, inactive(err)
		}
		return nil, err
	}
	return receipt, nil
}

func (s *attemptService) Close(ctx context.Context, attemptID string) error {
	s.mu.Lock()
	a, ok := s.attempts[attemptID]
	delete(s.attempts, attemptID)
	s.mu.Unlock()

	if ok {
		a.session.Close()
		a.release()
	}
	if err := s.cache.Delete(ctx, cache.AnswerSnapshotKey(attemptID)); err != nil {
		s.logger.Logger().WarnContext(ctx, "Failed to drop attempt snapshot", "attempt_id", attemptID, "error", err)
	}
	if !ok {
		return fmt.Errorf("%w: %s", ErrAttemptNotFound, attemptID)
	}
	return nil
}

func (s *attemptService) Shutdown() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, a := range s.attempts {
		a.session.Close()
		a.release()
		delete(s.attempts, id)
	}
	s.cancel()
}

func (s *attemptService) newAttempt(id string, skillID uint, sectionID *uint, plan *content.ExamPlan, duration, remaining int) *attempt {
	a := &attempt{
		id:        id,
		skillID:   skillID,
		sectionID: sectionID,
		plan:      plan,
		templates: make(map[uint]*placeholder.Binding),
		inline:    make(map[uint]uint),
	}
	for _, g := range plan.Groups {
		if g.Strategy != content.InlineTemplate || g.Template == nil {
			continue
		}
		a.templates[g.GroupID] = placeholder.Bind(*g.Template, nil)
		for _, b := range g.Bindings {
			a.inline[b.QuestionID] = g.GroupID
		}
	}

	a.session = session.New(session.Config{
		SkillID:          skillID,
		SectionID:        sectionID,
		DurationSeconds:  duration,
		RemainingSeconds: remaining,
		PartCount:        len(plan.Exam.Parts),
		TickInterval:     s.config.TickInterval,
		OnAutoSubmit: func(receipt *models.SubmissionReceipt, err error) {
			s.afterSubmit(s.baseCtx, a, receipt, err, true)
		},
	}, s.submitter, s.logger.Logger().With("attempt_id", id))
	return a
}

// afterSubmit publishes the outcome of a submission. A successful attempt
// drops its snapshot; a failed one keeps it so answers survive a reload.
func (s *attemptService) afterSubmit(ctx context.Context, a *attempt, receipt *models.SubmissionReceipt, err error, automatic bool) {
	if err != nil {
		if errors.Is(err, session.ErrNotInProgress) || errors.Is(err, session.ErrClosed) {
			return
		}
		s.publish(ctx, events.NewEvent(events.EventAttemptSubmissionFailed, events.AttemptSubmissionFailedEvent{
			AttemptID: a.id,
			SkillID:   a.skillID,
			Retryable: errors.Is(err, session.ErrSubmissionRetryable),
			Reason:    err.Error(),
			Automatic: automatic,
		}))
		return
	}

	a.release()
	payload := a.session.Payload()
	s.publish(ctx, events.NewEvent(events.EventAttemptSubmitted, events.AttemptSubmittedEvent{
		AttemptID:        a.id,
		SubmissionID:     receipt.SubmissionID,
		SkillID:          a.skillID,
		SkillType:        a.plan.Exam.SkillType,
		Status:           receipt.Status,
		AnswerCount:      len(payload.Answers),
		TimeSpentSeconds: payload.TimeSpentSeconds,
		Automatic:        automatic,
		SubmittedAt:      s.now(),
	}))
	if err := s.cache.Delete(ctx, cache.AnswerSnapshotKey(a.id)); err != nil {
		s.logger.Logger().WarnContext(ctx, "Failed to drop attempt snapshot", "attempt_id", a.id, "error", err)
	}
	time.AfterFunc(s.config.RetainSubmitted, func() { s.evict(a) })
}

func (s *attemptService) saveSnapshot(ctx context.Context, a *attempt) {
	snap := a.session.Snapshot()
	if snap.State != session.StateInProgress {
		return
	}
	err := s.cache.Set(ctx, cache.AnswerSnapshotKey(a.id), attemptSnapshot{
		AttemptID:   a.id,
		SkillID:     a.skillID,
		SectionID:   a.sectionID,
		Duration:    snap.Duration,
		Remaining:   snap.Remaining,
		CurrentPart: snap.CurrentPart,
		Answers:     snap.Answers,
		SavedAt:     s.now(),
	}, s.config.SnapshotTTL)
	if err != nil {
		s.logger.Logger().WarnContext(ctx, "Failed to save attempt snapshot", "attempt_id", a.id, "error", err)
	}
}

func (s *attemptService) view(a *attempt, withPlan bool) *AttemptView {
	v := &AttemptView{
		AttemptID: a.id,
		SkillID:   a.skillID,
		SectionID: a.sectionID,
		Snapshot:  a.session.Snapshot(),
	}
	if withPlan {
		v.Plan = a.plan
	}
	return v
}

func (s *attemptService) track(a *attempt) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.attempts[a.id] = a
}

// trackOnce registers a unless another attempt with the same id is live,
// in which case that one is returned instead.
func (s *attemptService) trackOnce(a *attempt) (*attempt, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if live, ok := s.attempts[a.id]; ok {
		return live, false
	}
	s.attempts[a.id] = a
	return a, true
}

// evict drops a submitted attempt unless it has since been replaced.
func (s *attemptService) evict(a *attempt) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.attempts[a.id] == a {
		delete(s.attempts, a.id)
	}
}

func (s *attemptService) lookup(id string) (*attempt, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.attempts[id]
	return a, ok
}

func (s *attemptService) get(id string) (*attempt, error) {
	a, ok := s.lookup(id)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrAttemptNotFound, id)
	}
	return a, nil
}

func (s *attemptService) publish(ctx context.Context, event *events.Event) {
	if err := s.publisher.Publish(ctx, event); err != nil {
		s.logger.Logger().WarnContext(ctx, "Failed to publish event", "event_type", event.Type, "error", err)
	}
}

func inactive(err error) error {
	if errors.Is(err, session.ErrNotInProgress) || errors.Is(err, session.ErrClosed) {
		return fmt.Errorf("%w: %w", ErrAttemptNotActive, err)
	}
	return err
}

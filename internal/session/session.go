// Package session holds the learner-side state of one exam attempt: the
// answer map, the part cursor, the countdown and the submission lifecycle.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/SAP-F-2025/exam-engine/internal/models"
)

type State string

const (
	StateNotStarted State = "not_started"
	StateInProgress State = "in_progress"
	StateSubmitting State = "submitting"
	StateSubmitted  State = "submitted"
	StateFailed     State = "failed"
)

var (
	ErrAlreadyStarted      = errors.New("attempt already started")
	ErrNotInProgress       = errors.New("attempt is not in progress")
	ErrClosed              = errors.New("attempt session is closed")
	ErrInvalidPart         = errors.New("part number out of range")
	ErrSubmissionRetryable = errors.New("submission failed, answers kept, retry allowed")

	// ErrSubmissionRejected is returned (wrapped) by a Submitter when the
	// backend refuses the payload for good.
	ErrSubmissionRejected = errors.New("submission rejected")
)

// Submitter delivers the final payload to the submission API.
type Submitter interface {
	Submit(ctx context.Context, payload models.SubmissionPayload) (*models.SubmissionReceipt, error)
}

type SubmitterFunc func(ctx context.Context, payload models.SubmissionPayload) (*models.SubmissionReceipt, error)

func (f SubmitterFunc) Submit(ctx context.Context, payload models.SubmissionPayload) (*models.SubmissionReceipt, error) {
	return f(ctx, payload)
}

type Config struct {
	SkillID         uint
	SectionID       *uint
	DurationSeconds int
	PartCount       int

	// RemainingSeconds resumes a countdown that already ran. Zero or a value
	// above DurationSeconds starts from the full duration.
	RemainingSeconds int

	// TickInterval defaults to one second.
	TickInterval time.Duration

	// OnAutoSubmit is called from the timer goroutine after the countdown
	// reached zero and a submission was attempted.
	OnAutoSubmit func(receipt *models.SubmissionReceipt, err error)
}

// Session is one attempt. All transitions go through mu.
type Session struct {
	mu sync.Mutex

	cfg         Config
	state       State
	answers     *AnswerMap
	duration    int
	remaining   int
	currentPart int
	closed      bool
	receipt     *models.SubmissionReceipt

	submitter Submitter
	cancel    context.CancelFunc
	logger    *slog.Logger
}

func New(cfg Config, submitter Submitter, logger *slog.Logger) *Session {
	if cfg.TickInterval <= 0 {
		cfg.TickInterval = time.Second
	}
	if cfg.PartCount <= 0 {
		cfg.PartCount = 1
	}
	if logger == nil {
		logger = slog.Default()
	}
	remaining := cfg.DurationSeconds
	if cfg.RemainingSeconds > 0 && cfg.RemainingSeconds < remaining {
		remaining = cfg.RemainingSeconds
	}
	return &Session{
		cfg:         cfg,
		state:       StateNotStarted,
		answers:     NewAnswerMap(),
		duration:    cfg.DurationSeconds,
		remaining:   remaining,
		currentPart: 1,
		submitter:   submitter,
		logger:      logger.With("skill_id", cfg.SkillID),
	}
}

// Start moves the attempt to InProgress and starts the countdown. The timer
// lives until ctx is done, the attempt is submitted or Close is called.
func (s *Session) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrClosed
	}
	if s.state != StateNotStarted {
		return ErrAlreadyStarted
	}
	s.state = StateInProgress

	timerCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	go s.runTimer(timerCtx)

	s.logger.Info("Attempt started", "duration_seconds", s.duration, "parts", s.cfg.PartCount)
	return nil
}

func (s *Session) runTimer(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.TickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Tick(ctx)
		}
	}
}

// Tick advances the countdown by one step. At zero it submits whatever
// answers exist. It does nothing unless the attempt is in progress.
func (s *Session) Tick(ctx context.Context) {
	s.mu.Lock()
	if s.closed || s.state != StateInProgress {
		s.mu.Unlock()
		return
	}
	if s.remaining > 0 {
		s.remaining--
	}
	expired := s.remaining == 0
	s.mu.Unlock()

	if !expired {
		return
	}

	s.logger.Info("Time is up, submitting attempt")
	receipt, err := s.Submit(ctx)
	if err != nil {
		s.logger.Warn("Automatic submission failed", "error", err)
	}
	if s.cfg.OnAutoSubmit != nil {
		s.cfg.OnAutoSubmit(receipt, err)
	}
}

// SetAnswer records the learner's value for a question.
func (s *Session) SetAnswer(questionID uint, value string) (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkInProgress(); err != nil {
		return 0, err
	}
	return s.answers.Set(questionID, value), nil
}

// Restore loads previously saved answers into an attempt that has not been
// submitted yet.
func (s *Session) Restore(answers map[uint]string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrClosed
	}
	if s.state != StateNotStarted && s.state != StateInProgress {
		return ErrNotInProgress
	}
	for id, v := range answers {
		s.answers.Set(id, v)
	}
	return nil
}

func (s *Session) Answer(questionID uint) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.answers.Get(questionID)
}

func (s *Session) Status(questionID uint) models.AnswerStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.answers.Status(questionID)
}

// Answers returns a copy of the answer map and its revision.
func (s *Session) Answers() (map[uint]string, uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.answers.Snapshot(), s.answers.Revision()
}

// NavigateTo moves the part cursor. Answers are never touched.
func (s *Session) NavigateTo(part int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrClosed
	}
	if part < 1 || part > s.cfg.PartCount {
		return fmt.Errorf("%w: %d of %d", ErrInvalidPart, part, s.cfg.PartCount)
	}
	s.currentPart = part
	return nil
}

// ExtendTime adds seconds to both the remaining time and the configured duration.
func (s *Session) ExtendTime(seconds int) error {
	if seconds <= 0 {
		return fmt.Errorf("extension must be positive, got %d", seconds)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkInProgress(); err != nil {
		return err
	}
	s.remaining += seconds
	s.duration += seconds
	s.logger.Info("Attempt time extended", "seconds", seconds, "remaining", s.remaining)
	return nil
}

// Payload assembles the submission from the current answers.
func (s *Session) Payload() models.SubmissionPayload {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.payloadLocked()
}

func (s *Session) payloadLocked() models.SubmissionPayload {
	return models.SubmissionPayload{
		SkillID:          s.cfg.SkillID,
		SectionID:        s.cfg.SectionID,
		Answers:          s.answers.Records(),
		TimeSpentSeconds: clamp(s.duration-s.remaining, 0, s.duration),
	}
}

// Submit sends the answers. A transport failure puts the attempt back in
// progress and returns ErrSubmissionRetryable; a rejection wrapped with
// ErrSubmissionRejected fails the attempt.
func (s *Session) Submit(ctx context.Context) (*models.SubmissionReceipt, error) {
	s.mu.Lock()
	if err := s.checkInProgress(); err != nil {
		s.mu.Unlock()
		return nil, err
	}
	s.state = StateSubmitting
	payload := s.payloadLocked()
	s.mu.Unlock()

	start := time.Now()
	receipt, err := s.submitter.Submit(ctx, payload)

	s.mu.Lock()
	defer s.mu.Unlock()

	switch {
	case err == nil:
		s.state = StateSubmitted
		s.receipt = receipt
		if s.cancel != nil {
			s.cancel()
		}
		s.logger.Info("Attempt submitted",
			"answers", len(payload.Answers),
			"time_spent", payload.TimeSpentSeconds,
			"duration", time.Since(start))
		return receipt, nil

	case errors.Is(err, ErrSubmissionRejected):
		s.state = StateFailed
		if s.cancel != nil {
			s.cancel()
		}
		s.logger.Error("Attempt submission rejected", "error", err)
		return nil, err

	default:
		s.state = StateInProgress
		s.logger.Warn("Attempt submission failed, keeping answers", "error", err)
		return nil, fmt.Errorf("%w: %w", ErrSubmissionRetryable, err)
	}
}

// Close stops the timer. Later ticks and answers are ignored.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return
	}
	s.closed = true
	if s.cancel != nil {
		s.cancel()
	}
}

func (s *Session) checkInProgress() error {
	if s.closed {
		return ErrClosed
	}
	if s.state != StateInProgress {
		return fmt.Errorf("%w (state %s)", ErrNotInProgress, s.state)
	}
	return nil
}

// Snapshot is a point-in-time view of the attempt.
type Snapshot struct {
	State         State                     `json:"state"`
	Remaining     int                       `json:"remaining_seconds"`
	Duration      int                       `json:"duration_seconds"`
	CurrentPart   int                       `json:"current_part"`
	PartCount     int                       `json:"part_count"`
	AnsweredCount int                       `json:"answered_count"`
	Revision      uint64                    `json:"revision"`
	Answers       map[uint]string           `json:"answers"`
	Receipt       *models.SubmissionReceipt `json:"receipt,omitempty"`
	Closed        bool                      `json:"closed"`
}

func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Snapshot{
		State:         s.state,
		Remaining:     s.remaining,
		Duration:      s.duration,
		CurrentPart:   s.currentPart,
		PartCount:     s.cfg.PartCount,
		AnsweredCount: s.answers.Len(),
		Revision:      s.answers.Revision(),
		Answers:       s.answers.Snapshot(),
		Receipt:       s.receipt,
		Closed:        s.closed,
	}
}

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Session) Remaining() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.remaining
}

func (s *Session) CurrentPart() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.currentPart
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

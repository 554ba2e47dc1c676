package events

import (
	"time"

	"github.com/google/uuid"

	"github.com/SAP-F-2025/exam-engine/internal/models"
)

type EventType string

const (
	EventAttemptStarted          EventType = "attempt.started"
	EventAttemptSubmitted        EventType = "attempt.submitted"
	EventAttemptSubmissionFailed EventType = "attempt.submission_failed"
	EventGradingCompleted        EventType = "grading.completed"
	EventGradingUnitFailed       EventType = "grading.unit_failed"
	EventContentIntegrityWarning EventType = "content.integrity_warning"
)

const (
	eventSource  = "exam-engine"
	eventVersion = "1.0"
)

// Event is the envelope for every message on the exam events topic.
type Event struct {
	ID        string         `json:"id"`
	Type      EventType      `json:"type"`
	Timestamp time.Time      `json:"timestamp"`
	Source    string         `json:"source"`
	Version   string         `json:"version"`
	Data      any            `json:"data"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

func NewEvent(eventType EventType, data any) *Event {
	return &Event{
		ID:        uuid.NewString(),
		Type:      eventType,
		Timestamp: time.Now().UTC(),
		Source:    eventSource,
		Version:   eventVersion,
		Data:      data,
	}
}

type AttemptStartedEvent struct {
	AttemptID       string    `json:"attempt_id"`
	SkillID         uint      `json:"skill_id"`
	SectionID       *uint     `json:"section_id,omitempty"`
	DurationSeconds int       `json:"duration_seconds"`
	QuestionCount   int       `json:"question_count"`
	RestoredAnswers int       `json:"restored_answers"`
	StartedAt       time.Time `json:"started_at"`
}

type AttemptSubmittedEvent struct {
	AttemptID        string                  `json:"attempt_id"`
	SubmissionID     uint                    `json:"submission_id"`
	SkillID          uint                    `json:"skill_id"`
	SkillType        models.SkillType        `json:"skill_type"`
	Status           models.SubmissionStatus `json:"status"`
	AnswerCount      int                     `json:"answer_count"`
	TimeSpentSeconds int                     `json:"time_spent"`
	Automatic        bool                    `json:"automatic"`
	SubmittedAt      time.Time               `json:"submitted_at"`
}

type AttemptSubmissionFailedEvent struct {
	AttemptID string `json:"attempt_id"`
	SkillID   uint   `json:"skill_id"`
	Retryable bool   `json:"retryable"`
	Reason    string `json:"reason"`
	Automatic bool   `json:"automatic"`
}

type GradingCompletedEvent struct {
	SubmissionID uint             `json:"submission_id"`
	SagaID       string           `json:"saga_id"`
	SkillType    models.SkillType `json:"skill_type"`
	OverallBand  float64          `json:"overall_band"`
	UnitCount    int              `json:"unit_count"`
	CompletedAt  time.Time        `json:"completed_at"`
}

type GradingUnitFailedEvent struct {
	SubmissionID uint   `json:"submission_id"`
	SagaID       string `json:"saga_id"`
	Missing      []int  `json:"missing_units"`
	Reason       string `json:"reason"`
}

// ContentIntegrityWarningEvent reaches content authors; learners never see it.
type ContentIntegrityWarningEvent struct {
	SkillID    uint   `json:"skill_id"`
	GroupID    uint   `json:"group_id"`
	QuestionID uint   `json:"question_id,omitempty"`
	Code       string `json:"code"`
	Message    string `json:"message"`
}

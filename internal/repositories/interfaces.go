package repositories

import (
	"context"
	"errors"
	"time"

	"github.com/SAP-F-2025/exam-engine/internal/models"
)

// ErrNotFound is returned when a lookup matches no row.
var ErrNotFound = errors.New("record not found")

type SubmissionFilters struct {
	SkillID   *uint                    `json:"skill_id"`
	SkillType *models.SkillType        `json:"skill_type"`
	Status    *models.SubmissionStatus `json:"status"`
	DateFrom  *time.Time               `json:"date_from"`
	DateTo    *time.Time               `json:"date_to"`
	Limit     int                      `json:"limit"`
	Offset    int                      `json:"offset"`
	SortBy    string                   `json:"sort_by"`    // "submitted_at", "total_score", "overall_band"
	SortOrder string                   `json:"sort_order"` // "asc", "desc"
}

type SubmissionRepository interface {
	// Create stores the submission and its answers in one transaction.
	Create(ctx context.Context, submission *models.Submission) error
	GetByIDWithAnswers(ctx context.Context, id uint) (*models.Submission, error)
	List(ctx context.Context, filters SubmissionFilters) ([]*models.Submission, int64, error)
	MarkGraded(ctx context.Context, id uint, overallBand float64, gradedAt time.Time) error
}

type GradingRecordRepository interface {
	// Upsert replaces the record for (submission, unit) so a retried unit
	// never produces a second row.
	Upsert(ctx context.Context, record *models.GradingRecord) error
	ListBySubmission(ctx context.Context, submissionID uint) ([]*models.GradingRecord, error)
}

package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/SAP-F-2025/exam-engine/internal/models"
	"github.com/SAP-F-2025/exam-engine/internal/repositories"
)

const defaultPageSize = 20

type SubmissionPostgreSQL struct {
	db *gorm.DB
}

func NewSubmissionPostgreSQL(db *gorm.DB) repositories.SubmissionRepository {
	return &SubmissionPostgreSQL{db: db}
}

func (s *SubmissionPostgreSQL) Create(ctx context.Context, submission *models.Submission) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit("Answers").Create(submission).Error; err != nil {
			return fmt.Errorf("failed to create submission: %w", err)
		}
		if len(submission.Answers) == 0 {
			return nil
		}
		for i := range submission.Answers {
			submission.Answers[i].SubmissionID = submission.ID
		}
		if err := tx.CreateInBatches(submission.Answers, 100).Error; err != nil {
			return fmt.Errorf("failed to create submission answers: %w", err)
		}
		return nil
	})
}

func (s *SubmissionPostgreSQL) GetByIDWithAnswers(ctx context.Context, id uint) (*models.Submission, error) {
	var submission models.Submission
	if err := s.db.WithContext(ctx).
		Preload("Answers", func(db *gorm.DB) *gorm.DB { return db.Order("question_id ASC") }).
		First(&submission, id).Error; err != nil {
		return nil, notFound(err)
	}
	return &submission, nil
}

func (s *SubmissionPostgreSQL) List(ctx context.Context, filters repositories.SubmissionFilters) ([]*models.Submission, int64, error) {
	var submissions []*models.Submission
	var total int64

	query := s.applyFilters(s.db.WithContext(ctx).Model(&models.Submission{}), filters)
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	query = s.applyPaginationAndSort(query, filters)
	if err := query.Find(&submissions).Error; err != nil {
		return nil, 0, err
	}
	return submissions, total, nil
}

func (s *SubmissionPostgreSQL) MarkGraded(ctx context.Context, id uint, overallBand float64, gradedAt time.Time) error {
	result := s.db.WithContext(ctx).Model(&models.Submission{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"status":       models.SubmissionGraded,
			"overall_band": overallBand,
			"graded_at":    gradedAt,
		})
	if result.Error != nil {
		return fmt.Errorf("failed to mark submission %d graded: %w", id, result.Error)
	}
	if result.RowsAffected == 0 {
		return repositories.ErrNotFound
	}
	return nil
}

func (s *SubmissionPostgreSQL) applyFilters(query *gorm.DB, filters repositories.SubmissionFilters) *gorm.DB {
	if filters.SkillID != nil {
		query = query.Where("skill_id = ?", *filters.SkillID)
	}
	if filters.SkillType != nil {
		query = query.Where("skill_type = ?", *filters.SkillType)
	}
	if filters.Status != nil {
		query = query.Where("status = ?", *filters.Status)
	}
	if filters.DateFrom != nil {
		query = query.Where("submitted_at >= ?", *filters.DateFrom)
	}
	if filters.DateTo != nil {
		query = query.Where("submitted_at <= ?", *filters.DateTo)
	}
	return query
}

var submissionSortColumns = map[string]string{
	"submitted_at": "submitted_at",
	"total_score":  "total_score",
	"overall_band": "overall_band",
}

func (s *SubmissionPostgreSQL) applyPaginationAndSort(query *gorm.DB, filters repositories.SubmissionFilters) *gorm.DB {
	column, ok := submissionSortColumns[filters.SortBy]
	if !ok {
		column = "submitted_at"
	}
	order := "DESC"
	if filters.SortOrder == "asc" {
		order = "ASC"
	}
	query = query.Order(column + " " + order)

	limit := filters.Limit
	if limit <= 0 {
		limit = defaultPageSize
	}
	return query.Limit(limit).Offset(filters.Offset)
}

func notFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return repositories.ErrNotFound
	}
	return err
}

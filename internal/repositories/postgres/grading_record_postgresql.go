package postgres

import (
	"context"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/SAP-F-2025/exam-engine/internal/models"
	"github.com/SAP-F-2025/exam-engine/internal/repositories"
)

type GradingRecordPostgreSQL struct {
	db *gorm.DB
}

func NewGradingRecordPostgreSQL(db *gorm.DB) repositories.GradingRecordRepository {
	return &GradingRecordPostgreSQL{db: db}
}

func (g *GradingRecordPostgreSQL) Upsert(ctx context.Context, record *models.GradingRecord) error {
	err := g.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "submission_id"}, {Name: "unit_index"}},
		DoUpdates: clause.AssignmentColumns([]string{"question_id", "overall_band", "result", "updated_at"}),
	}).Create(record).Error
	if err != nil {
		return fmt.Errorf("failed to store grading record for submission %d unit %d: %w",
			record.SubmissionID, record.UnitIndex, err)
	}
	return nil
}

func (g *GradingRecordPostgreSQL) ListBySubmission(ctx context.Context, submissionID uint) ([]*models.GradingRecord, error) {
	var records []*models.GradingRecord
	if err := g.db.WithContext(ctx).
		Where("submission_id = ?", submissionID).
		Order("unit_index ASC").
		Find(&records).Error; err != nil {
		return nil, err
	}
	return records, nil
}

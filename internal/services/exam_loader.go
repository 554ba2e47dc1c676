package services

import (
	"context"
	"fmt"

	"github.com/SAP-F-2025/exam-engine/internal/content"
	"github.com/SAP-F-2025/exam-engine/internal/models"
)

// examLoader rebuilds the canonical exam behind a submission. It does not
// report integrity warnings; those were raised when the attempt was planned.
type examLoader struct {
	store   SkillStore
	options content.BuildOptions
}

func (l examLoader) load(ctx context.Context, skillID uint, sectionID *uint) (*models.Exam, error) {
	skill, err := l.store.Get(ctx, skillID)
	if err != nil {
		return nil, err
	}
	if sectionID == nil {
		exam, _ := content.BuildExam(*skill, l.options)
		return exam, nil
	}
	exam, _, err := content.BuildSectionExam(*skill, *sectionID, l.options)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSectionNotFound, err)
	}
	return exam, nil
}

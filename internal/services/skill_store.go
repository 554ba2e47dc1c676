package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/SAP-F-2025/exam-engine/internal/cache"
	"github.com/SAP-F-2025/exam-engine/internal/models"
)

// SkillStore keeps the raw content payloads attempts are built from.
type SkillStore interface {
	Save(ctx context.Context, skill *models.RawSkill) error
	Get(ctx context.Context, skillID uint) (*models.RawSkill, error)
}

type cacheSkillStore struct {
	cache cache.CacheService
}

// NewCacheSkillStore keeps payloads in the cache without expiry.
func NewCacheSkillStore(c cache.CacheService) SkillStore {
	return &cacheSkillStore{cache: c}
}

func (s *cacheSkillStore) Save(ctx context.Context, skill *models.RawSkill) error {
	return s.cache.Set(ctx, cache.SkillKey(skill.ID), skill, 0)
}

func (s *cacheSkillStore) Get(ctx context.Context, skillID uint) (*models.RawSkill, error) {
	var skill models.RawSkill
	if err := s.cache.Get(ctx, cache.SkillKey(skillID), &skill); err != nil {
		if errors.Is(err, cache.ErrCacheMiss) {
			return nil, fmt.Errorf("%w: %d", ErrSkillNotFound, skillID)
		}
		return nil, fmt.Errorf("failed to load skill %d: %w", skillID, err)
	}
	return &skill, nil
}

package services

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/mock"

	"github.com/SAP-F-2025/exam-engine/internal/cache"
	"github.com/SAP-F-2025/exam-engine/internal/models"
	"github.com/SAP-F-2025/exam-engine/internal/repositories"
)

// MockSubmissionRepository is a mock implementation of SubmissionRepository
type MockSubmissionRepository struct {
	mock.Mock
}

func (m *MockSubmissionRepository) Create(ctx context.Context, submission *models.Submission) error {
	args := m.Called(ctx, submission)
	return args.Error(0)
}

func (m *MockSubmissionRepository) GetByIDWithAnswers(ctx context.Context, id uint) (*models.Submission, error) {
	args := m.Called(ctx, id)
	if s := args.Get(0); s != nil {
		return s.(*models.Submission), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockSubmissionRepository) List(ctx context.Context, filters repositories.SubmissionFilters) ([]*models.Submission, int64, error) {
	args := m.Called(ctx, filters)
	return args.Get(0).([]*models.Submission), args.Get(1).(int64), args.Error(2)
}

func (m *MockSubmissionRepository) MarkGraded(ctx context.Context, id uint, overallBand float64, gradedAt time.Time) error {
	args := m.Called(ctx, id, overallBand, gradedAt)
	return args.Error(0)
}

func testLogger(component string) *ServiceLogger {
	return NewServiceLogger(slog.New(slog.NewTextHandler(io.Discard, nil)), LogConfig{Service: "exam-engine-test", Component: component})
}

func newTestCache(t *testing.T) cache.CacheService {
	t.Helper()
	srv := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: srv.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return cache.NewRedisCache(client, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func strPtr(s string) *string { return &s }

// readingSkill has one passage: a TFNG group (questions 1-2) and an inline
// gap-fill group (questions 3-4, question 4 worth two points).
func readingSkill() *models.RawSkill {
	limit := 60
	return &models.RawSkill{
		ID:        10,
		Name:      "Reading Test 1",
		SkillType: "reading",
		TimeLimit: &limit,
		Sections: []models.RawSection{{
			ID:      100,
			Title:   "The Old Bridge",
			Content: "<p>The bridge was finished in 1890.</p>",
			QuestionGroups: []models.RawGroup{
				{
					ID:           1000,
					QuestionType: "true_false_not_given",
					Questions: []models.RawQuestion{
						{ID: 1, Content: "The bridge is made of stone.", CorrectAnswer: strPtr("True")},
						{ID: 2, Content: "The bridge was repainted.", CorrectAnswer: strPtr("Not Given")},
					},
				},
				{
					ID:           1001,
					QuestionType: "short_text",
					Content:      "The {{a}} was finished in {{b}}.",
					Questions: []models.RawQuestion{
						{ID: 3, CorrectAnswer: strPtr("bridge")},
						{ID: 4, CorrectAnswer: strPtr("1890"), Points: 2},
					},
				},
			},
		}},
	}
}

// writingSkill has the two classic tasks in one essay group.
func writingSkill() *models.RawSkill {
	return &models.RawSkill{
		ID:        20,
		Name:      "Writing Test 1",
		SkillType: "writing",
		Sections: []models.RawSection{{
			ID: 200,
			QuestionGroups: []models.RawGroup{{
				ID:           2000,
				QuestionType: "essay",
				Questions: []models.RawQuestion{
					{ID: 21, Content: "The chart below shows car ownership. Summarise the information."},
					{ID: 22, Content: "Some people think cities should ban cars. Discuss both views."},
				},
			}},
		}},
	}
}

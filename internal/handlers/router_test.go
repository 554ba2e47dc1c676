package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/SAP-F-2025/exam-engine/internal/cache"
	"github.com/SAP-F-2025/exam-engine/internal/events"
	"github.com/SAP-F-2025/exam-engine/internal/grading"
	"github.com/SAP-F-2025/exam-engine/internal/models"
	"github.com/SAP-F-2025/exam-engine/internal/repositories"
	"github.com/SAP-F-2025/exam-engine/internal/services"
	"github.com/SAP-F-2025/exam-engine/internal/utils"
	"github.com/SAP-F-2025/exam-engine/internal/validator"
)

type memorySubmissions struct {
	mu     sync.Mutex
	nextID uint
	rows   map[uint]*models.Submission
}

func (m *memorySubmissions) Create(ctx context.Context, s *models.Submission) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	s.ID = m.nextID
	cp := *s
	m.rows[s.ID] = &cp
	return nil
}

func (m *memorySubmissions) GetByIDWithAnswers(ctx context.Context, id uint) (*models.Submission, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.rows[id]
	if !ok {
		return nil, repositories.ErrNotFound
	}
	cp := *s
	return &cp, nil
}

func (m *memorySubmissions) List(ctx context.Context, filters repositories.SubmissionFilters) ([]*models.Submission, int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*models.Submission
	for _, s := range m.rows {
		if filters.SkillID != nil && s.SkillID != *filters.SkillID {
			continue
		}
		cp := *s
		out = append(out, &cp)
	}
	return out, int64(len(out)), nil
}

func (m *memorySubmissions) MarkGraded(ctx context.Context, id uint, band float64, gradedAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.rows[id]
	if !ok {
		return repositories.ErrNotFound
	}
	s.Status = models.SubmissionGraded
	s.OverallBand = &band
	s.GradedAt = &gradedAt
	return nil
}

type memoryGradingRecords struct {
	mu   sync.Mutex
	rows map[uint]map[int]*models.GradingRecord
}

func (m *memoryGradingRecords) Upsert(ctx context.Context, r *models.GradingRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.rows[r.SubmissionID] == nil {
		m.rows[r.SubmissionID] = make(map[int]*models.GradingRecord)
	}
	m.rows[r.SubmissionID][r.UnitIndex] = r
	return nil
}

func (m *memoryGradingRecords) ListBySubmission(ctx context.Context, id uint) ([]*models.GradingRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*models.GradingRecord, 0, len(m.rows[id]))
	for i := 0; i < len(m.rows[id]); i++ {
		if r, ok := m.rows[id][i]; ok {
			out = append(out, r)
		}
	}
	return out, nil
}

func setupRouter(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	srv := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: srv.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	slogger := slog.New(slog.NewTextHandler(io.Discard, nil))
	logger := utils.NewSlogLogger(slogger)

	grader := grading.GraderFunc(func(ctx context.Context, req grading.GradeRequest) (*models.SubGradingResult, error) {
		band := 6.0
		if req.QuestionID == 22 {
			band = 7.0
		}
		return &models.SubGradingResult{OverallBand: band}, nil
	})

	manager := services.NewServiceManager(services.ManagerDeps{
		Submissions:    &memorySubmissions{rows: make(map[uint]*models.Submission)},
		GradingRecords: &memoryGradingRecords{rows: make(map[uint]map[int]*models.GradingRecord)},
		Cache:          cache.NewRedisCache(client, slogger),
		Publisher:      events.NewMockEventPublisher(nil),
		Grader:         grader,
		Validator:      validator.New(),
		Logger:         slogger,
		Attempt:        services.AttemptConfig{SnapshotTTL: time.Hour},
	})
	t.Cleanup(manager.Attempt().Shutdown)

	router := gin.New()
	router.Use(utils.RequestID(), utils.ContextLogger(logger))
	NewHandlerManager(manager, logger).SetupRoutes(router)
	return router
}

func doJSON(t *testing.T, router *gin.Engine, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(payload)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	return out
}

const readingPayload = `{
  "id": 10,
  "name": "Reading Test 1",
  "skill_type": "reading",
  "time_limit": 60,
  "sections": [{
    "id": 100,
    "title": "The Old Bridge",
    "content": "<p>The bridge was finished in 1890.</p>",
    "question_groups": [
      {"id": 1000, "question_type": "true_false_not_given", "questions": [
        {"id": 1, "content": "The bridge is made of stone.", "correct_answer": "True"},
        {"id": 2, "content": "The bridge was repainted.", "correct_answer": "Not Given"}
      ]},
      {"id": 1001, "question_type": "multiple_choice", "questions": [
        {"id": 3, "content": "When was it finished?", "correct_answer": "1890",
         "metadata": "{\"answers\": [{\"answer_content\": \"1850\"}, {\"answer_content\": \"1890\", \"is_correct\": true}]}"}
      ]}
    ]
  }]
}`

func registerReading(t *testing.T, router *gin.Engine) {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/content/skills", bytes.NewBufferString(readingPayload))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
}

func TestHealthCheck(t *testing.T) {
	router := setupRouter(t)

	w := doJSON(t, router, http.MethodGet, "/health", nil)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.NotEmpty(t, w.Header().Get(utils.RequestIDHeader))
}

func TestContentRoutes(t *testing.T) {
	router := setupRouter(t)
	registerReading(t, router)

	w := doJSON(t, router, http.MethodGet, "/api/v1/content/skills/10/plan", nil)
	require.Equal(t, http.StatusOK, w.Code)
	plan := decode[map[string]any](t, w)
	groups := plan["groups"].([]any)
	require.Len(t, groups, 2)
	assert.Equal(t, "single_choice_per_question", groups[1].(map[string]any)["strategy"])

	w = doJSON(t, router, http.MethodGet, "/api/v1/content/skills/10/plan?section_id=abc", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doJSON(t, router, http.MethodGet, "/api/v1/content/skills/99/plan", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = doJSON(t, router, http.MethodPost, "/api/v1/content/skills/validate", map[string]any{"id": 5, "skill_type": "cooking"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, false, decode[map[string]any](t, w)["valid"])
}

func TestAttemptFlow(t *testing.T) {
	router := setupRouter(t)
	registerReading(t, router)

	w := doJSON(t, router, http.MethodPost, "/api/v1/attempts", map[string]any{"skill_id": 10})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	attemptID := decode[map[string]any](t, w)["attempt_id"].(string)

	w = doJSON(t, router, http.MethodPut, "/api/v1/attempts/"+attemptID+"/answers", map[string]any{"question_id": 1, "answer_text": "True"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = doJSON(t, router, http.MethodPut, "/api/v1/attempts/"+attemptID+"/answers", map[string]any{"question_id": 3, "answer_text": "B"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = doJSON(t, router, http.MethodPut, "/api/v1/attempts/"+attemptID+"/answers", map[string]any{"question_id": 3, "answer_text": "Z"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doJSON(t, router, http.MethodPost, "/api/v1/attempts/"+attemptID+"/navigate", map[string]any{"part": 2})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doJSON(t, router, http.MethodGet, "/api/v1/attempts/"+attemptID+"/groups/1000/render", nil)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)

	w = doJSON(t, router, http.MethodPost, "/api/v1/attempts/"+attemptID+"/submit", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	receipt := decode[models.SubmissionReceipt](t, w)
	assert.Equal(t, models.SubmissionGraded, receipt.Status)
	assert.Equal(t, 2.0, receipt.TotalScore)
	assert.Equal(t, 3.0, receipt.MaxScore)

	w = doJSON(t, router, http.MethodPost, "/api/v1/attempts/"+attemptID+"/submit", nil)
	assert.Equal(t, http.StatusConflict, w.Code)

	w = doJSON(t, router, http.MethodGet, "/api/v1/submissions/1/report", nil)
	require.Equal(t, http.StatusOK, w.Code)
	report := decode[models.ResultReport](t, w)
	assert.Equal(t, 2, report.Correct)
	assert.Equal(t, 1, report.Unanswered)
	require.Len(t, report.Items, 3)
	require.NotNil(t, report.Items[2].CorrectAnswer)
	assert.Equal(t, "B", *report.Items[2].CorrectAnswer)

	w = doJSON(t, router, http.MethodGet, "/api/v1/submissions/1/export", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, xlsxContentType, w.Header().Get("Content-Type"))
	assert.NotEmpty(t, w.Body.Bytes())

	w = doJSON(t, router, http.MethodGet, "/api/v1/submissions?skill_id=10", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(1), decode[map[string]any](t, w)["total"])

	w = doJSON(t, router, http.MethodGet, "/api/v1/attempts/unknown", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestSubmissionRoutes_Rejections(t *testing.T) {
	router := setupRouter(t)
	registerReading(t, router)

	w := doJSON(t, router, http.MethodPost, "/api/v1/submissions", map[string]any{
		"exam_skill_id": 10,
		"answers":       []map[string]any{{"question_id": 77, "answer_text": "True"}},
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doJSON(t, router, http.MethodGet, "/api/v1/submissions/0", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doJSON(t, router, http.MethodGet, "/api/v1/submissions/55", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = doJSON(t, router, http.MethodGet, "/api/v1/submissions?limit=-1", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestGradingRoutes(t *testing.T) {
	router := setupRouter(t)

	writing := map[string]any{
		"id":         20,
		"skill_type": "writing",
		"sections": []map[string]any{{
			"id": 200,
			"question_groups": []map[string]any{{
				"id":            2000,
				"question_type": "essay",
				"questions": []map[string]any{
					{"id": 21, "content": "Summarise the chart."},
					{"id": 22, "content": "Discuss both views."},
				},
			}},
		}},
	}
	w := doJSON(t, router, http.MethodPost, "/api/v1/content/skills", writing)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w = doJSON(t, router, http.MethodPost, "/api/v1/submissions", map[string]any{
		"exam_skill_id": 20,
		"answers": []map[string]any{
			{"question_id": 21, "answer_text": "The chart shows..."},
			{"question_id": 22, "answer_text": "Both views have merit."},
		},
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	assert.Equal(t, "pending", decode[map[string]any](t, w)["status"])

	w = doJSON(t, router, http.MethodGet, "/api/v1/grading/submissions/1", nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)

	w = doJSON(t, router, http.MethodPost, "/api/v1/grading/submissions/1", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	outcome := decode[services.GradingOutcome](t, w)
	assert.Equal(t, 6.5, outcome.Result.OverallBand)

	w = doJSON(t, router, http.MethodGet, "/api/v1/grading/submissions/1", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 6.5, decode[services.GradingOutcome](t, w).Result.OverallBand)

	w = doJSON(t, router, http.MethodPost, "/api/v1/grading/aggregate", map[string]any{
		"skill_type": "writing",
		"results":    []map[string]any{{"overall_band": 6.0}, {"overall_band": 7.0}},
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, 6.5, decode[models.AggregatedResult](t, w).OverallBand)

	w = doJSON(t, router, http.MethodPost, "/api/v1/grading/aggregate", map[string]any{
		"skill_type": "writing",
		"results":    []map[string]any{{"overall_band": 6.3}},
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

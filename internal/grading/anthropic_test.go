package grading

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/SAP-F-2025/exam-engine/internal/models"
)

func newTestGrader(t *testing.T, handler http.HandlerFunc) *AnthropicGrader {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	g, err := NewAnthropicGrader(AnthropicConfig{APIKey: "test-key", BaseURL: server.URL}, nil, option.WithMaxRetries(0))
	require.NoError(t, err)
	return g
}

func messageReply(text string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"id":   "msg_test",
			"type": "message",
			"role": "assistant",
			"content": []map[string]any{
				{"type": "text", "text": text},
			},
			"model":       DefaultGradingModel,
			"stop_reason": "end_turn",
			"usage":       map[string]any{"input_tokens": 120, "output_tokens": 80},
		})
	}
}

func TestAnthropicGrader_Grade(t *testing.T) {
	var body map[string]any
	handler := func(w http.ResponseWriter, r *http.Request) {
		raw, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(raw, &body)
		messageReply(`{"overall_score": 7, "criteria_scores": {"task_response": 7}}`)(w, r)
	}
	g := newTestGrader(t, handler)

	got, err := g.Grade(context.Background(), GradeRequest{
		Skill:        models.SkillWriting,
		QuestionID:   42,
		QuestionText: "Discuss both views.",
		AnswerText:   "Some people argue...",
	})

	require.NoError(t, err)
	assert.Equal(t, uint(42), got.QuestionID)
	assert.Equal(t, 7.0, got.OverallBand)
	assert.Equal(t, 7.0, got.CriteriaScores[models.CriterionTaskResponse])

	assert.Equal(t, DefaultGradingModel, body["model"])
	assert.InDelta(t, gradingTemperature, body["temperature"], 1e-9)
}

func TestAnthropicGrader_ParseErrorIsNotAFailure(t *testing.T) {
	g := newTestGrader(t, messageReply("Sorry, I can't help with that."))

	got, err := g.Grade(context.Background(), GradeRequest{Skill: models.SkillSpeaking, QuestionID: 1, QuestionText: "Describe"})

	require.NoError(t, err)
	assert.True(t, got.ParseError)
	assert.Equal(t, 0.0, got.OverallBand)
}

func TestAnthropicGrader_ErrorClassification(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		retryable bool
	}{
		{"rate limited", http.StatusTooManyRequests, true},
		{"server error", http.StatusInternalServerError, true},
		{"bad request", http.StatusBadRequest, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := newTestGrader(t, func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(tt.status)
				_ = json.NewEncoder(w).Encode(map[string]any{
					"type":  "error",
					"error": map[string]any{"type": "api_error", "message": "nope"},
				})
			})

			_, err := g.Grade(context.Background(), GradeRequest{Skill: models.SkillWriting, QuestionID: 1, QuestionText: "x"})

			require.Error(t, err)
			assert.Equal(t, tt.retryable, errors.Is(err, ErrGraderUnavailable))
		})
	}
}

func TestNewAnthropicGrader_RequiresKey(t *testing.T) {
	_, err := NewAnthropicGrader(AnthropicConfig{}, nil)
	assert.Error(t, err)
}

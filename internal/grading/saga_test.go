package grading

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/SAP-F-2025/exam-engine/internal/models"
)

func writingUnits() []Unit {
	return []Unit{
		{Index: 0, Request: GradeRequest{Skill: models.SkillWriting, QuestionID: 101, QuestionText: "The chart shows..."}},
		{Index: 1, Request: GradeRequest{Skill: models.SkillWriting, QuestionID: 102, QuestionText: "Discuss both views."}},
	}
}

func bandsByQuestion(bands map[uint]float64) Grader {
	return GraderFunc(func(ctx context.Context, req GradeRequest) (*models.SubGradingResult, error) {
		return &models.SubGradingResult{OverallBand: bands[req.QuestionID]}, nil
	})
}

func TestSaga_AggregatesOnlyWhenComplete(t *testing.T) {
	saga := NewSaga(models.SkillWriting, 2, nil)

	require.NoError(t, saga.Record(1, models.SubGradingResult{OverallBand: 7}))
	_, err := saga.Aggregate()
	assert.ErrorIs(t, err, ErrGradingIncomplete)
	assert.Equal(t, []int{0}, saga.Missing())

	require.NoError(t, saga.Record(0, models.SubGradingResult{OverallBand: 6}))
	got, err := saga.Aggregate()
	require.NoError(t, err)
	assert.Equal(t, 6.5, got.OverallBand)
	assert.True(t, saga.Complete())

	assert.Error(t, saga.Record(2, models.SubGradingResult{}))
	assert.NotEmpty(t, saga.ID)
}

func TestSaga_RunGradesConcurrently(t *testing.T) {
	saga := NewSaga(models.SkillWriting, 2, nil)

	var mu sync.Mutex
	stored := map[int]float64{}
	got, err := saga.Run(context.Background(), bandsByQuestion(map[uint]float64{101: 6, 102: 7}), writingUnits(), RunOptions{
		Concurrency: 2,
		OnResult: func(ctx context.Context, index int, r models.SubGradingResult) error {
			mu.Lock()
			defer mu.Unlock()
			stored[index] = r.OverallBand
			return nil
		},
	})

	require.NoError(t, err)
	assert.Equal(t, 6.5, got.OverallBand)
	assert.Equal(t, map[int]float64{0: 6, 1: 7}, stored)
	assert.Equal(t, uint(101), got.PerSubUnit[0].QuestionID)
	assert.Equal(t, uint(102), got.PerSubUnit[1].QuestionID)
}

func TestSaga_FailureKeepsCollectedResults(t *testing.T) {
	saga := NewSaga(models.SkillWriting, 2, nil)

	calls := map[uint]int{}
	var mu sync.Mutex
	flaky := GraderFunc(func(ctx context.Context, req GradeRequest) (*models.SubGradingResult, error) {
		mu.Lock()
		calls[req.QuestionID]++
		n := calls[req.QuestionID]
		mu.Unlock()
		if req.QuestionID == 102 && n == 1 {
			return nil, errors.New("timeout")
		}
		return &models.SubGradingResult{OverallBand: 6}, nil
	})

	_, err := saga.Run(context.Background(), flaky, writingUnits(), RunOptions{})
	assert.ErrorIs(t, err, ErrGradingIncomplete)
	assert.Equal(t, 1, saga.Received())
	assert.Equal(t, []int{1}, saga.Missing())

	got, err := saga.Run(context.Background(), flaky, writingUnits(), RunOptions{})
	require.NoError(t, err)
	assert.Equal(t, 6.0, got.OverallBand)
	assert.Equal(t, 1, calls[101], "graded units are not graded again")
	assert.Equal(t, 2, calls[102])
}

func TestSaga_StoreFailureLeavesUnitUngraded(t *testing.T) {
	saga := NewSaga(models.SkillWriting, 2, nil)

	_, err := saga.Run(context.Background(), bandsByQuestion(map[uint]float64{101: 6, 102: 7}), writingUnits(), RunOptions{
		OnResult: func(ctx context.Context, index int, r models.SubGradingResult) error {
			if index == 0 {
				return errors.New("db down")
			}
			return nil
		},
	})

	assert.ErrorIs(t, err, ErrGradingIncomplete)
	assert.Equal(t, []int{0}, saga.Missing())
}

func TestSaga_RunRejectsWrongUnitCount(t *testing.T) {
	saga := NewSaga(models.SkillSpeaking, 3, nil)
	_, err := saga.Run(context.Background(), bandsByQuestion(nil), writingUnits(), RunOptions{})
	assert.Error(t, err)
}

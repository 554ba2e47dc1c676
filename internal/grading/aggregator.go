// Package grading combines independently graded sub-units into one band.
package grading

import (
	"errors"
	"fmt"
	"slices"

	"github.com/SAP-F-2025/exam-engine/internal/models"
)

var (
	ErrNoSubResults      = errors.New("no sub-results to aggregate")
	ErrGradingIncomplete = errors.New("grading incomplete")
)

// Writing task weights for the two-task paper: task 2 counts double.
var writingWeights = []float64{1.0 / 3.0, 2.0 / 3.0}

// Aggregate combines the sub-results of one skill. A single result passes
// through unchanged.
func Aggregate(skill models.SkillType, subs []models.SubGradingResult) (*models.AggregatedResult, error) {
	if len(subs) == 0 {
		return nil, fmt.Errorf("%w: skill %s", ErrNoSubResults, skill)
	}

	result := &models.AggregatedResult{
		SkillType:   skill,
		PerSubUnit:  append([]models.SubGradingResult(nil), subs...),
		IsMultiUnit: len(subs) > 1,
	}

	if len(subs) == 1 {
		only := subs[0]
		result.OverallBand = only.OverallBand
		result.CriteriaScores = copyScores(only.CriteriaScores)
		result.Strengths = only.Strengths
		result.Weaknesses = only.Weaknesses
		result.Suggestions = only.Suggestions
		return result, nil
	}

	switch skill {
	case models.SkillWriting:
		aggregateWriting(result, subs)
	case models.SkillSpeaking:
		aggregateSpeaking(result, subs)
	default:
		aggregateMean(result, subs)
	}
	return result, nil
}

func aggregateWriting(result *models.AggregatedResult, subs []models.SubGradingResult) {
	if len(subs) != len(writingWeights) {
		// More than two tasks has no published weighting; use the mean.
		aggregateMean(result, subs)
		return
	}
	var total float64
	for i, s := range subs {
		total += s.OverallBand * writingWeights[i]
	}
	result.Weights = append([]float64(nil), writingWeights...)
	result.OverallBand = RoundBand(total)
}

func aggregateSpeaking(result *models.AggregatedResult, subs []models.SubGradingResult) {
	n := float64(len(subs))
	result.CriteriaScores = make(map[string]float64, len(models.SpeakingCriteria))

	var sum float64
	for _, key := range models.SpeakingCriteria {
		var total float64
		for _, s := range subs {
			total += s.Criterion(key)
		}
		avg := total / n
		result.CriteriaScores[key] = avg
		sum += avg
	}
	result.OverallBand = RoundBand(sum / float64(len(models.SpeakingCriteria)))

	for _, s := range subs {
		result.Strengths = appendUnique(result.Strengths, s.Strengths...)
		result.Weaknesses = appendUnique(result.Weaknesses, s.Weaknesses...)
		result.Suggestions = appendUnique(result.Suggestions, s.Suggestions...)
	}
}

func aggregateMean(result *models.AggregatedResult, subs []models.SubGradingResult) {
	var total float64
	weights := make([]float64, len(subs))
	for i, s := range subs {
		total += s.OverallBand
		weights[i] = 1 / float64(len(subs))
	}
	result.Weights = weights
	result.OverallBand = RoundBand(total / float64(len(subs)))
}

// appendUnique keeps first-occurrence order.
func appendUnique(dst []string, items ...string) []string {
	for _, item := range items {
		if !slices.Contains(dst, item) {
			dst = append(dst, item)
		}
	}
	return dst
}

func copyScores(in map[string]float64) map[string]float64 {
	if in == nil {
		return nil
	}
	out := make(map[string]float64, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

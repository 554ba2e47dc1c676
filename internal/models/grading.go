package models

import (
	"strings"
	"time"

	"gorm.io/datatypes"
)

type SkillType string

const (
	SkillReading   SkillType = "reading"
	SkillListening SkillType = "listening"
	SkillWriting   SkillType = "writing"
	SkillSpeaking  SkillType = "speaking"
)

func ParseSkillType(raw string) SkillType {
	return SkillType(strings.ToLower(strings.TrimSpace(raw)))
}

func (s SkillType) IsValid() bool {
	switch s {
	case SkillReading, SkillListening, SkillWriting, SkillSpeaking:
		return true
	}
	return false
}

// IsObjective is true for skills whose answers are scored against stored keys.
func (s SkillType) IsObjective() bool {
	return s == SkillReading || s == SkillListening
}

// Criterion keys used by the band descriptors.
const (
	CriterionTaskAchievement     = "task_achievement"
	CriterionTaskResponse        = "task_response"
	CriterionCoherenceCohesion   = "coherence_cohesion"
	CriterionLexicalResource     = "lexical_resource"
	CriterionGrammaticalAccuracy = "grammatical_accuracy"
	CriterionFluencyCoherence    = "fluency_coherence"
	CriterionPronunciation       = "pronunciation"

	// Some graders report grammar under this key.
	CriterionGrammaticalRange = "grammatical_range"
)

// SpeakingCriteria is the fixed key set averaged across speaking parts.
var SpeakingCriteria = []string{
	CriterionFluencyCoherence,
	CriterionLexicalResource,
	CriterionGrammaticalAccuracy,
	CriterionPronunciation,
}

const (
	MinBand = 0.0
	MaxBand = 9.0
)

type SubGradingResult struct {
	QuestionID        uint               `json:"question_id,omitempty"`
	OverallBand       float64            `json:"overall_band" validate:"band_score"`
	CriteriaScores    map[string]float64 `json:"criteria_scores"`
	CriteriaFeedback  map[string]string  `json:"criteria_feedback,omitempty"`
	Strengths         []string           `json:"strengths"`
	Weaknesses        []string           `json:"weaknesses"`
	Suggestions       []string           `json:"suggestions"`
	DetailedFeedback  string             `json:"detailed_feedback,omitempty"`
	BandJustification string             `json:"band_justification,omitempty"`
	PronunciationNote string             `json:"pronunciation_note,omitempty"`
	ParseError        bool               `json:"parse_error,omitempty"`
}

// Criterion returns the score for key, 0 when absent.
func (r SubGradingResult) Criterion(key string) float64 {
	if v, ok := r.CriteriaScores[key]; ok {
		return v
	}
	if key == CriterionGrammaticalAccuracy {
		return r.CriteriaScores[CriterionGrammaticalRange]
	}
	return 0
}

type AggregatedResult struct {
	SkillType      SkillType          `json:"skill_type"`
	OverallBand    float64            `json:"overall_band"`
	PerSubUnit     []SubGradingResult `json:"per_sub_unit"`
	IsMultiUnit    bool               `json:"is_multi_unit"`
	Weights        []float64          `json:"weights,omitempty"`
	CriteriaScores map[string]float64 `json:"criteria_scores,omitempty"`
	Strengths      []string           `json:"strengths,omitempty"`
	Weaknesses     []string           `json:"weaknesses,omitempty"`
	Suggestions    []string           `json:"suggestions,omitempty"`
}

// GradingRecord stores one sub-unit result. UnitIndex preserves task order,
// which the writing weights depend on.
type GradingRecord struct {
	ID           uint      `json:"id" gorm:"primaryKey"`
	SubmissionID uint      `json:"submission_id" gorm:"not null;uniqueIndex:idx_grading_unit"`
	UnitIndex    int       `json:"unit_index" gorm:"not null;uniqueIndex:idx_grading_unit"`
	SkillType    SkillType `json:"skill_type" gorm:"not null;size:20;index"`
	QuestionID   uint      `json:"question_id" gorm:"index"`
	OverallBand  float64   `json:"overall_band"`

	Result datatypes.JSONType[SubGradingResult] `json:"result" gorm:"type:jsonb"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (GradingRecord) TableName() string {
	return "grading_records"
}

// NewGradingRecord wraps a sub-result for storage.
func NewGradingRecord(submissionID uint, unitIndex int, skill SkillType, result SubGradingResult) *GradingRecord {
	return &GradingRecord{
		SubmissionID: submissionID,
		UnitIndex:    unitIndex,
		SkillType:    skill,
		QuestionID:   result.QuestionID,
		OverallBand:  result.OverallBand,
		Result:       datatypes.NewJSONType(result),
	}
}

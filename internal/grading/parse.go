package grading

import (
	"strings"

	"github.com/tidwall/gjson"

	"github.com/SAP-F-2025/exam-engine/internal/models"
)

// ParseGradingOutput reads the JSON object out of a grader reply. Code
// fences and surrounding prose are ignored. When no object can be read the
// result has band 0, ParseError set and the raw reply as feedback.
func ParseGradingOutput(raw string) models.SubGradingResult {
	doc, ok := extractObject(stripCodeFences(raw))
	if !ok {
		return models.SubGradingResult{
			OverallBand:      0,
			CriteriaScores:   map[string]float64{},
			DetailedFeedback: raw,
			ParseError:       true,
		}
	}

	root := gjson.Parse(doc)
	out := models.SubGradingResult{
		CriteriaScores:    map[string]float64{},
		DetailedFeedback:  root.Get("detailed_feedback").String(),
		BandJustification: root.Get("band_justification").String(),
		PronunciationNote: root.Get("pronunciation_note").String(),
		Strengths:         stringList(root.Get("strengths")),
		Weaknesses:        stringList(root.Get("weaknesses")),
		Suggestions:       stringList(root.Get("suggestions")),
	}

	overall := root.Get("overall_score")
	if !overall.Exists() {
		overall = root.Get("overall_band")
	}
	out.OverallBand = RoundBand(overall.Float())

	root.Get("criteria_scores").ForEach(func(k, v gjson.Result) bool {
		key := k.String()
		if key == models.CriterionGrammaticalRange {
			key = models.CriterionGrammaticalAccuracy
		}
		out.CriteriaScores[key] = ClampBand(v.Float())
		return true
	})

	if fb := root.Get("criteria_feedback"); fb.IsObject() {
		out.CriteriaFeedback = map[string]string{}
		fb.ForEach(func(k, v gjson.Result) bool {
			key := k.String()
			if key == models.CriterionGrammaticalRange {
				key = models.CriterionGrammaticalAccuracy
			}
			out.CriteriaFeedback[key] = v.String()
			return true
		})
	}
	return out
}

func extractObject(text string) (string, bool) {
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end <= start {
		return "", false
	}
	doc := text[start : end+1]
	if !gjson.Valid(doc) {
		return "", false
	}
	return doc, true
}

func stripCodeFences(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "```json") {
		s = strings.TrimPrefix(s, "```json")
	} else if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```")
	}
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}

func stringList(r gjson.Result) []string {
	if !r.IsArray() {
		return nil
	}
	var out []string
	for _, item := range r.Array() {
		if s := strings.TrimSpace(item.String()); s != "" {
			out = append(out, s)
		}
	}
	return out
}

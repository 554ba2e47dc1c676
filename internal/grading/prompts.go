package grading

import (
	"fmt"
	"strings"

	"github.com/SAP-F-2025/exam-engine/internal/models"
)

const DefaultExamStandard = "IELTS"

var writingTask1Keywords = []string{
	"task 1", "graph", "chart", "table", "diagram", "process", "map",
	"shows", "illustrates", "summarize", "summarise",
}

// IsWritingTask1 guesses from the task wording whether it is a
// report-style task 1 rather than an essay.
func IsWritingTask1(question string) bool {
	q := strings.ToLower(question)
	for _, kw := range writingTask1Keywords {
		if strings.Contains(q, kw) {
			return true
		}
	}
	return false
}

// CriteriaFor lists the criterion keys a grader is asked to score.
func CriteriaFor(skill models.SkillType, question string) []string {
	if skill == models.SkillSpeaking {
		return models.SpeakingCriteria
	}
	task := models.CriterionTaskResponse
	if IsWritingTask1(question) {
		task = models.CriterionTaskAchievement
	}
	return []string{
		task,
		models.CriterionCoherenceCohesion,
		models.CriterionLexicalResource,
		models.CriterionGrammaticalAccuracy,
	}
}

func SystemPrompt(skill models.SkillType, standard string) string {
	if standard == "" {
		standard = DefaultExamStandard
	}
	task := "Writing tasks"
	if skill == models.SkillSpeaking {
		task = "Speaking responses"
	}
	return fmt.Sprintf("You are an experienced %s examiner specializing in grading %s. "+
		"Apply the official band descriptors strictly and give constructive, specific feedback. "+
		"Reply with a single JSON object and nothing else.", standard, task)
}

var criterionDescriptors = map[string]string{
	models.CriterionTaskAchievement:     "Task Achievement: clear overview, key features selected and compared accurately.",
	models.CriterionTaskResponse:        "Task Response: every part of the prompt addressed, clear position, ideas extended and supported.",
	models.CriterionCoherenceCohesion:   "Coherence and Cohesion: logical organisation, paragraphing, accurate linking.",
	models.CriterionLexicalResource:     "Lexical Resource: range and precision of vocabulary, collocation, spelling and word formation.",
	models.CriterionGrammaticalAccuracy: "Grammatical Range and Accuracy: variety of structures and proportion of error-free sentences.",
	models.CriterionFluencyCoherence:    "Fluency and Coherence: speech rate, hesitation, topic development, discourse markers.",
	models.CriterionPronunciation:       "Pronunciation: intelligibility, stress, rhythm, intonation (judge from the transcript where possible).",
}

// UserPrompt builds the grading request for one sub-unit.
func UserPrompt(req GradeRequest) string {
	standard := req.ExamStandard
	if standard == "" {
		standard = DefaultExamStandard
	}
	criteria := CriteriaFor(req.Skill, req.QuestionText)

	var sb strings.Builder
	fmt.Fprintf(&sb, "Grade the following %s %s answer.\n\n", standard, strings.ToLower(string(req.Skill)))
	fmt.Fprintf(&sb, "Question/Task:\n%s\n\n", req.QuestionText)
	if req.Skill == models.SkillSpeaking {
		fmt.Fprintf(&sb, "Candidate's transcript:\n%s\n\n", req.AnswerText)
	} else {
		fmt.Fprintf(&sb, "Candidate's answer:\n%s\n\nWord count: %d\n\n", req.AnswerText, len(strings.Fields(req.AnswerText)))
	}

	sb.WriteString("Criteria, each scored 0.0 to 9.0 in steps of 0.5:\n")
	for _, c := range criteria {
		fmt.Fprintf(&sb, "- %s (%s)\n", criterionDescriptors[c], c)
	}

	sb.WriteString("\nThe overall score is the mean of the criteria rounded to the nearest 0.5.\n")
	sb.WriteString("Return JSON with exactly these fields:\n{\n")
	sb.WriteString(`  "overall_score": 6.5,` + "\n")
	sb.WriteString(`  "criteria_scores": {`)
	for i, c := range criteria {
		if i > 0 {
			sb.WriteString(", ")
		}
		fmt.Fprintf(&sb, `"%s": 6.5`, c)
	}
	sb.WriteString("},\n")
	sb.WriteString(`  "criteria_feedback": {"<criterion>": "..."},` + "\n")
	sb.WriteString(`  "strengths": ["..."],` + "\n")
	sb.WriteString(`  "weaknesses": ["..."],` + "\n")
	sb.WriteString(`  "suggestions": ["..."],` + "\n")
	sb.WriteString(`  "detailed_feedback": "...",` + "\n")
	if req.Skill == models.SkillSpeaking {
		sb.WriteString(`  "pronunciation_note": "...",` + "\n")
	}
	sb.WriteString(`  "band_justification": "..."` + "\n}\n")
	return sb.String()
}

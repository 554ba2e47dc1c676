package services

import (
	"strings"

	"github.com/SAP-F-2025/exam-engine/internal/content"
	"github.com/SAP-F-2025/exam-engine/internal/models"
)

// AnswerMatches compares a learner answer with the stored key, ignoring
// surrounding whitespace and case.
func AnswerMatches(answer, correct string) bool {
	return strings.EqualFold(strings.TrimSpace(answer), strings.TrimSpace(correct))
}

func questionPoints(q models.Question) float64 {
	if q.Points > 0 {
		return q.Points
	}
	return 1
}

// answerKeys resolves the key of every question in the group that can be
// marked. Multiple choice keys come back as letters, whichever way the
// content stored them.
func answerKeys(group models.QuestionGroup) map[uint]string {
	keys := make(map[uint]string, len(group.Questions))
	if !group.QuestionType.IsObjective() {
		return keys
	}
	var first *models.Question
	if len(group.Questions) > 0 {
		first = &group.Questions[0]
	}
	set, _ := content.Normalize(group.QuestionType, group, first)
	for _, q := range group.Questions {
		if key, ok := set.AnswerKey(q); ok {
			keys[q.ID] = key
		}
	}
	return keys
}

// scoreAnswers marks every submitted answer. Questions without an answer
// still count toward the maximum score.
func scoreAnswers(exam *models.Exam, answers map[uint]string) ([]models.SubmissionAnswer, float64, float64) {
	var (
		out      []models.SubmissionAnswer
		total    float64
		maxScore float64
	)
	for _, part := range exam.Parts {
		for _, group := range part.Groups {
			keys := answerKeys(group)
			for _, q := range group.Questions {
				key, canScore := keys[q.ID]
				if canScore {
					maxScore += questionPoints(q)
				}
				text, answered := answers[q.ID]
				if !answered {
					continue
				}
				sa := models.SubmissionAnswer{QuestionID: q.ID, AnswerText: text}
				if canScore {
					correct := AnswerMatches(text, key)
					score := 0.0
					if correct {
						score = questionPoints(q)
						total += score
					}
					sa.IsCorrect = &correct
					sa.Score = &score
				}
				out = append(out, sa)
			}
		}
	}
	return out, total, maxScore
}

// BuildReport summarises a submission against the exam it was taken on.
// A stored empty answer counts as answered and incorrect; a question with
// no stored answer counts as unanswered.
func BuildReport(submissionID uint, exam *models.Exam, answers []models.SubmissionAnswer) *models.ResultReport {
	byQuestion := make(map[uint]models.SubmissionAnswer, len(answers))
	for _, a := range answers {
		byQuestion[a.QuestionID] = a
	}

	report := &models.ResultReport{SubmissionID: submissionID}
	for _, part := range exam.Parts {
		for _, group := range part.Groups {
			keys := answerKeys(group)
			for _, q := range group.Questions {
				item := models.ReportItem{
					QuestionID:    q.ID,
					DisplayNumber: q.DisplayNumber,
					Part:          part.Number,
					Status:        models.AnswerUnanswered,
					CorrectAnswer: q.CorrectAnswer,
				}
				key, canScore := keys[q.ID]
				if canScore {
					item.CorrectAnswer = &key
				}
				report.TotalQuestions++
				if canScore {
					report.MaxScore += questionPoints(q)
				}

				a, ok := byQuestion[q.ID]
				if !ok {
					report.Unanswered++
					report.Items = append(report.Items, item)
					continue
				}

				text := a.AnswerText
				item.UserAnswer = &text
				item.Status = models.AnswerAnswered
				report.Answered++

				if canScore {
					item.IsCorrect = AnswerMatches(text, key)
					if item.IsCorrect {
						report.Correct++
						report.TotalScore += questionPoints(q)
					} else {
						report.Incorrect++
					}
				}
				report.Items = append(report.Items, item)
			}
		}
	}
	return report
}

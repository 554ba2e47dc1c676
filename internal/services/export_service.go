package services

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/xuri/excelize/v2"

	"github.com/SAP-F-2025/exam-engine/internal/models"
)

const (
	summarySheet = "Summary"
	answersSheet = "Answers"
	bandsSheet   = "Bands"

	timeLayout = "2006-01-02 15:04:05"
)

// ExportService renders a submission result as an xlsx workbook.
type ExportService interface {
	ExportSubmission(ctx context.Context, submissionID uint) ([]byte, error)
}

type exportService struct {
	submissions SubmissionService
	grading     GradingService
	logger      *ServiceLogger
}

func NewExportService(submissions SubmissionService, gradingSvc GradingService, logger *ServiceLogger) ExportService {
	return &exportService{
		submissions: submissions,
		grading:     gradingSvc,
		logger:      logger,
	}
}

// ExportSubmission writes a summary sheet, then the per-question report for
// reading and listening, or the band breakdown once writing and speaking
// grading has completed.
func (s *exportService) ExportSubmission(ctx context.Context, submissionID uint) (data []byte, err error) {
	op := s.logger.WithOperation(ctx, "export_submission")
	defer func() { op.LogResult(submissionID, "submission", err) }()

	submission, err := s.submissions.GetSubmission(ctx, submissionID)
	if err != nil {
		return nil, err
	}

	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", summarySheet); err != nil {
		return nil, fmt.Errorf("failed to create Excel sheet: %w", err)
	}
	if err := writeRows(f, summarySheet, summaryRows(submission)); err != nil {
		return nil, err
	}

	switch {
	case submission.SkillType.IsObjective():
		report, err := s.submissions.GetReport(ctx, submissionID)
		if err != nil {
			return nil, err
		}
		if err := addSheet(f, answersSheet, answerRows(report)); err != nil {
			return nil, err
		}

	case submission.Status == models.SubmissionGraded:
		outcome, err := s.grading.GetResult(ctx, submissionID)
		if err != nil {
			if errors.Is(err, ErrGradingNotReady) {
				break
			}
			return nil, err
		}
		if err := addSheet(f, bandsSheet, bandRows(outcome.Result)); err != nil {
			return nil, err
		}
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, fmt.Errorf("failed to write Excel file: %w", err)
	}
	return buf.Bytes(), nil
}

func summaryRows(sub *models.Submission) [][]any {
	rows := [][]any{
		{"Field", "Value"},
		{"Submission ID", sub.ID},
		{"Skill", string(sub.SkillType)},
		{"Skill ID", sub.SkillID},
		{"Status", string(sub.Status)},
		{"Submitted At", sub.SubmittedAt.Format(timeLayout)},
		{"Time Spent (minutes)", float64(sub.TimeSpent) / 60},
		{"Total Score", sub.TotalScore},
		{"Max Score", sub.MaxScore},
	}
	if sub.OverallBand != nil {
		rows = append(rows, []any{"Overall Band", *sub.OverallBand})
	}
	if sub.GradedAt != nil {
		rows = append(rows, []any{"Graded At", sub.GradedAt.Format(timeLayout)})
	}
	return rows
}

func answerRows(report *models.ResultReport) [][]any {
	rows := [][]any{{"Number", "Part", "Question ID", "Status", "Answer", "Correct Answer", "Result"}}
	for _, item := range report.Items {
		answer, key := "", ""
		if item.UserAnswer != nil {
			answer = *item.UserAnswer
		}
		if item.CorrectAnswer != nil {
			key = *item.CorrectAnswer
		}
		result := ""
		if item.Status == models.AnswerAnswered {
			result = "Incorrect"
			if item.IsCorrect {
				result = "Correct"
			}
		}
		rows = append(rows, []any{item.DisplayNumber, item.Part, item.QuestionID, string(item.Status), answer, key, result})
	}
	rows = append(rows,
		[]any{},
		[]any{"Total", report.TotalQuestions},
		[]any{"Answered", report.Answered},
		[]any{"Correct", report.Correct},
		[]any{"Incorrect", report.Incorrect},
		[]any{"Unanswered", report.Unanswered},
		[]any{"Score", report.TotalScore, report.MaxScore},
	)
	return rows
}

// bandRows lists each unit with its criterion scores, then the aggregate.
func bandRows(result *models.AggregatedResult) [][]any {
	keys := criterionKeys(result)

	header := []any{"Unit", "Question ID", "Band"}
	for _, k := range keys {
		header = append(header, k)
	}
	rows := [][]any{header}

	for i, sub := range result.PerSubUnit {
		row := []any{i + 1, sub.QuestionID, sub.OverallBand}
		for _, k := range keys {
			row = append(row, sub.Criterion(k))
		}
		rows = append(rows, row)
	}

	overall := []any{"Overall", "", result.OverallBand}
	for _, k := range keys {
		if v, ok := result.CriteriaScores[k]; ok {
			overall = append(overall, v)
		} else {
			overall = append(overall, "")
		}
	}
	return append(rows, overall)
}

func criterionKeys(result *models.AggregatedResult) []string {
	seen := make(map[string]struct{})
	for _, sub := range result.PerSubUnit {
		for k := range sub.CriteriaScores {
			seen[k] = struct{}{}
		}
	}
	for k := range result.CriteriaScores {
		seen[k] = struct{}{}
	}
	keys := make([]string, 0, len(seen))
	for k := range seen {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func addSheet(f *excelize.File, name string, rows [][]any) error {
	if _, err := f.NewSheet(name); err != nil {
		return fmt.Errorf("failed to create Excel sheet: %w", err)
	}
	return writeRows(f, name, rows)
}

func writeRows(f *excelize.File, sheet string, rows [][]any) error {
	for r, row := range rows {
		for c, value := range row {
			cell, err := excelize.CoordinatesToCellName(c+1, r+1)
			if err != nil {
				return err
			}
			if err := f.SetCellValue(sheet, cell, value); err != nil {
				return fmt.Errorf("failed to write cell %s: %w", cell, err)
			}
		}
	}
	return nil
}

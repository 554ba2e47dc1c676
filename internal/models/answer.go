package models

import "time"

type AnswerStatus string

const (
	AnswerUnanswered AnswerStatus = "unanswered"
	AnswerAnswered   AnswerStatus = "answered"
)

type AnswerRecord struct {
	QuestionID uint   `json:"question_id" validate:"required"`
	AnswerText string `json:"answer_text"`
}

// SubmissionPayload is what the learner client sends when an attempt ends.
type SubmissionPayload struct {
	SkillID          uint           `json:"exam_skill_id" validate:"required"`
	SectionID        *uint          `json:"exam_section_id,omitempty"`
	Answers          []AnswerRecord `json:"answers" validate:"dive"`
	TimeSpentSeconds int            `json:"time_spent" validate:"min=0"`
}

// AnswerMap rebuilds questionId -> value from the payload records.
func (p SubmissionPayload) AnswerMap() map[uint]string {
	out := make(map[uint]string, len(p.Answers))
	for _, a := range p.Answers {
		out[a.QuestionID] = a.AnswerText
	}
	return out
}

type SubmissionStatus string

const (
	SubmissionCompleted SubmissionStatus = "completed"
	SubmissionPending   SubmissionStatus = "pending"
	SubmissionGraded    SubmissionStatus = "graded"
)

type Submission struct {
	ID        uint             `json:"id" gorm:"primaryKey"`
	SkillID   uint             `json:"skill_id" gorm:"not null;index"`
	SectionID *uint            `json:"section_id" gorm:"index"`
	SkillType SkillType        `json:"skill_type" gorm:"not null;size:20"`
	Status    SubmissionStatus `json:"status" gorm:"not null;size:20;default:completed;index"`
	TimeSpent int              `json:"time_spent"` // seconds

	// Objective scoring
	TotalScore float64 `json:"total_score"`
	MaxScore   float64 `json:"max_score"`

	// Subjective scoring, filled once every sub-unit is graded
	OverallBand *float64 `json:"overall_band"`

	SubmittedAt time.Time  `json:"submitted_at"`
	GradedAt    *time.Time `json:"graded_at"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`

	// Relations
	Answers []SubmissionAnswer `json:"answers" gorm:"foreignKey:SubmissionID"`
}

func (Submission) TableName() string {
	return "submissions"
}

type SubmissionAnswer struct {
	ID           uint     `json:"id" gorm:"primaryKey"`
	SubmissionID uint     `json:"submission_id" gorm:"not null;index"`
	QuestionID   uint     `json:"question_id" gorm:"not null;index"`
	AnswerText   string   `json:"answer_text" gorm:"type:text"`
	IsCorrect    *bool    `json:"is_correct"`
	Score        *float64 `json:"score"`
}

func (SubmissionAnswer) TableName() string {
	return "submission_answers"
}

type SubmissionReceipt struct {
	SubmissionID uint             `json:"submission_id"`
	Status       SubmissionStatus `json:"status"`
	TotalScore   float64          `json:"total_score"`
	MaxScore     float64          `json:"max_score"`
}

type ReportItem struct {
	QuestionID    uint         `json:"question_id"`
	DisplayNumber int          `json:"display_number"`
	Part          int          `json:"part"`
	Status        AnswerStatus `json:"status"`
	UserAnswer    *string      `json:"user_answer"`
	CorrectAnswer *string      `json:"correct_answer,omitempty"`
	IsCorrect     bool         `json:"is_correct"`
}

// ResultReport summarises an objective submission.
type ResultReport struct {
	SubmissionID   uint         `json:"submission_id"`
	TotalQuestions int          `json:"total_questions"`
	Answered       int          `json:"answered"`
	Correct        int          `json:"correct"`
	Incorrect      int          `json:"incorrect"`
	Unanswered     int          `json:"unanswered"`
	TotalScore     float64      `json:"total_score"`
	MaxScore       float64      `json:"max_score"`
	Items          []ReportItem `json:"items"`
}

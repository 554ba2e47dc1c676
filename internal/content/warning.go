package content

import "fmt"

type WarningCode string

const (
	WarnNoOptions            WarningCode = "no_options"
	WarnMalformedMetadata    WarningCode = "malformed_metadata"
	WarnUnrecognizedMetadata WarningCode = "unrecognized_metadata"
	WarnExcessPlaceholders   WarningCode = "excess_placeholders"
	WarnMissingPlaceholders  WarningCode = "missing_placeholders"
	WarnUnknownQuestionType  WarningCode = "unknown_question_type"
	WarnEmptyGroup           WarningCode = "empty_group"
)

// Warning is a content-integrity problem meant for the content author.
// It never blocks the learner.
type Warning struct {
	Code       WarningCode `json:"code"`
	GroupID    uint        `json:"group_id"`
	QuestionID uint        `json:"question_id,omitempty"`
	Message    string      `json:"message"`
}

func (w Warning) String() string {
	if w.QuestionID != 0 {
		return fmt.Sprintf("group %d question %d: %s (%s)", w.GroupID, w.QuestionID, w.Message, w.Code)
	}
	return fmt.Sprintf("group %d: %s (%s)", w.GroupID, w.Message, w.Code)
}

func newWarning(code WarningCode, groupID uint, format string, args ...any) Warning {
	return Warning{Code: code, GroupID: groupID, Message: fmt.Sprintf(format, args...)}
}

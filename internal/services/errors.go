package services

import (
	"errors"
	"fmt"

	apperrors "github.com/SAP-F-2025/exam-engine/internal/errors"
	"github.com/SAP-F-2025/exam-engine/internal/grading"
	"github.com/SAP-F-2025/exam-engine/internal/repositories"
	"github.com/SAP-F-2025/exam-engine/internal/session"
)

// ===== COMMON SERVICE ERRORS =====

var (
	// Generic errors
	ErrNotFound         = errors.New("resource not found")
	ErrValidationFailed = errors.New("validation failed")
	ErrInternalError    = errors.New("internal server error")
	ErrBadRequest       = errors.New("bad request")
	ErrConflict         = errors.New("resource conflict")

	// Content errors
	ErrSkillNotFound   = errors.New("exam skill not found")
	ErrSectionNotFound = errors.New("exam section not found")

	// Attempt errors
	ErrAttemptNotFound         = errors.New("attempt not found")
	ErrAttemptNotActive        = errors.New("attempt is not active")
	ErrAttemptAlreadySubmitted = errors.New("attempt already submitted")
	ErrUnknownQuestion         = errors.New("question does not belong to this attempt")
	ErrAnswerNotAllowed        = errors.New("answer is not one of the available choices")

	// Submission and grading errors
	ErrSubmissionNotFound = errors.New("submission not found")
	ErrGradingNotAllowed  = errors.New("skill is scored automatically and cannot be graded")
	ErrGradingNotReady    = errors.New("submission has ungraded units")
)

// ===== CUSTOM ERROR TYPES =====

type ValidationError = apperrors.ValidationError
type ValidationErrors = apperrors.ValidationErrors

type BusinessRuleError struct {
	Rule    string         `json:"rule"`
	Message string         `json:"message"`
	Context map[string]any `json:"context,omitempty"`
}

func (bre *BusinessRuleError) Error() string {
	return fmt.Sprintf("business rule violation (%s): %s", bre.Rule, bre.Message)
}

// ===== ERROR HELPERS =====

func NewValidationError(field, message string, value any) *ValidationError {
	return apperrors.NewValidationError(field, message, value)
}

func NewBusinessRuleError(rule, message string, context map[string]any) *BusinessRuleError {
	return &BusinessRuleError{
		Rule:    rule,
		Message: message,
		Context: context,
	}
}

func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound) ||
		errors.Is(err, ErrSkillNotFound) ||
		errors.Is(err, ErrSectionNotFound) ||
		errors.Is(err, ErrAttemptNotFound) ||
		errors.Is(err, ErrSubmissionNotFound) ||
		errors.Is(err, repositories.ErrNotFound)
}

func IsValidation(err error) bool {
	if errors.Is(err, ErrValidationFailed) ||
		errors.Is(err, ErrUnknownQuestion) ||
		errors.Is(err, ErrAnswerNotAllowed) ||
		errors.Is(err, session.ErrInvalidPart) {
		return true
	}
	var ve apperrors.ValidationErrors
	return errors.As(err, &ve)
}

func IsBusinessRule(err error) bool {
	var bre *BusinessRuleError
	return errors.As(err, &bre)
}

func IsConflict(err error) bool {
	return errors.Is(err, ErrConflict) ||
		errors.Is(err, ErrAttemptNotActive) ||
		errors.Is(err, ErrAttemptAlreadySubmitted) ||
		errors.Is(err, ErrGradingNotAllowed) ||
		errors.Is(err, session.ErrNotInProgress) ||
		errors.Is(err, session.ErrAlreadyStarted) ||
		errors.Is(err, session.ErrClosed)
}

// IsRetryable reports failures the caller may retry without losing work:
// answers stay in the attempt and graded units stay stored.
func IsRetryable(err error) bool {
	return errors.Is(err, session.ErrSubmissionRetryable) ||
		errors.Is(err, grading.ErrGraderUnavailable) ||
		errors.Is(err, grading.ErrGradingIncomplete) ||
		errors.Is(err, ErrGradingNotReady)
}

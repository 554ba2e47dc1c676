package services

import (
	"log/slog"

	"github.com/SAP-F-2025/exam-engine/internal/cache"
	"github.com/SAP-F-2025/exam-engine/internal/content"
	"github.com/SAP-F-2025/exam-engine/internal/events"
	"github.com/SAP-F-2025/exam-engine/internal/grading"
	"github.com/SAP-F-2025/exam-engine/internal/repositories"
	"github.com/SAP-F-2025/exam-engine/internal/validator"
)

// ServiceManager exposes every service the handlers need.
type ServiceManager interface {
	Content() ContentService
	Attempt() AttemptService
	Submission() SubmissionService
	Grading() GradingService
	Export() ExportService
}

type ManagerDeps struct {
	Submissions    repositories.SubmissionRepository
	GradingRecords repositories.GradingRecordRepository
	Cache          cache.CacheService
	Publisher      events.EventPublisher
	Grader         grading.Grader
	Validator      *validator.Validator
	Logger         *slog.Logger

	BuildOptions content.BuildOptions
	Attempt      AttemptConfig
	Grading      GradingConfig
}

type serviceManager struct {
	content    ContentService
	attempt    AttemptService
	submission SubmissionService
	grading    GradingService
	export     ExportService
}

func NewServiceManager(deps ManagerDeps) ServiceManager {
	logFor := func(component string) *ServiceLogger {
		return NewServiceLogger(deps.Logger, LogConfig{Service: "exam-engine", Component: component})
	}

	store := NewCacheSkillStore(deps.Cache)
	contentSvc := NewContentService(store, deps.Publisher, deps.Validator, deps.BuildOptions, logFor("content"))
	submissionSvc := NewSubmissionService(deps.Submissions, store, deps.Validator, deps.BuildOptions, logFor("submission"))
	gradingSvc := NewGradingService(deps.Submissions, deps.GradingRecords, store, deps.BuildOptions,
		deps.Grader, deps.Publisher, deps.Validator, deps.Grading, logFor("grading"))

	return &serviceManager{
		content:    contentSvc,
		attempt:    NewAttemptService(contentSvc, submissionSvc, deps.Cache, deps.Publisher, deps.Validator, deps.Attempt, logFor("attempt")),
		submission: submissionSvc,
		grading:    gradingSvc,
		export:     NewExportService(submissionSvc, gradingSvc, logFor("export")),
	}
}

func (m *serviceManager) Content() ContentService       { return m.content }
func (m *serviceManager) Attempt() AttemptService       { return m.attempt }
func (m *serviceManager) Submission() SubmissionService { return m.submission }
func (m *serviceManager) Grading() GradingService       { return m.grading }
func (m *serviceManager) Export() ExportService         { return m.export }

package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/SAP-F-2025/exam-engine/internal/services"
	"github.com/SAP-F-2025/exam-engine/internal/utils"
)

type HandlerManager struct {
	contentHandler    *ContentHandler
	attemptHandler    *AttemptHandler
	submissionHandler *SubmissionHandler
	gradingHandler    *GradingHandler
}

func NewHandlerManager(serviceManager services.ServiceManager, logger utils.Logger) *HandlerManager {
	return &HandlerManager{
		contentHandler:    NewContentHandler(serviceManager.Content(), logger),
		attemptHandler:    NewAttemptHandler(serviceManager.Attempt(), logger),
		submissionHandler: NewSubmissionHandler(serviceManager.Submission(), serviceManager.Export(), logger),
		gradingHandler:    NewGradingHandler(serviceManager.Grading(), logger),
	}
}

// SetupRoutes sets up all API routes
func (hm *HandlerManager) SetupRoutes(router *gin.Engine) {
	router.GET("/health", HealthCheck)

	v1 := router.Group("/api/v1")
	{
		// Content routes
		contentGroup := v1.Group("/content")
		{
			contentGroup.POST("/skills", hm.contentHandler.RegisterSkill)
			contentGroup.POST("/skills/validate", hm.contentHandler.ValidateSkill)
			contentGroup.GET("/skills/:id/plan", hm.contentHandler.GetSkillPlan)
			contentGroup.POST("/plan", hm.contentHandler.PlanSkill)
		}

		// Attempt routes
		attempts := v1.Group("/attempts")
		{
			attempts.POST("", hm.attemptHandler.StartAttempt)
			attempts.GET("/:id", hm.attemptHandler.GetAttempt)
			attempts.DELETE("/:id", hm.attemptHandler.CloseAttempt)
			attempts.POST("/:id/resume", hm.attemptHandler.ResumeAttempt)
			attempts.PUT("/:id/answers", hm.attemptHandler.SetAnswer)
			attempts.POST("/:id/navigate", hm.attemptHandler.Navigate)
			attempts.POST("/:id/extend", hm.attemptHandler.ExtendTime)
			attempts.GET("/:id/groups/:group_id/render", hm.attemptHandler.RenderGroup)
			attempts.POST("/:id/submit", hm.attemptHandler.SubmitAttempt)
		}

		// Submission routes
		submissions := v1.Group("/submissions")
		{
			submissions.POST("", hm.submissionHandler.CreateSubmission)
			submissions.GET("", hm.submissionHandler.ListSubmissions)
			submissions.GET("/:id", hm.submissionHandler.GetSubmission)
			submissions.GET("/:id/report", hm.submissionHandler.GetReport)
			submissions.GET("/:id/export", hm.submissionHandler.ExportSubmission)
		}

		// Grading routes
		gradingGroup := v1.Group("/grading")
		{
			gradingGroup.POST("/submissions/:id", hm.gradingHandler.GradeSubmission)
			gradingGroup.GET("/submissions/:id", hm.gradingHandler.GetResult)
			gradingGroup.POST("/units", hm.gradingHandler.GradeUnit)
			gradingGroup.POST("/aggregate", hm.gradingHandler.Aggregate)
		}
	}
}

func HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "healthy",
		"service": "exam-engine",
	})
}

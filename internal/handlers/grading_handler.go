package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/SAP-F-2025/exam-engine/internal/grading"
	"github.com/SAP-F-2025/exam-engine/internal/services"
	"github.com/SAP-F-2025/exam-engine/internal/utils"
)

type GradingHandler struct {
	BaseHandler
	gradingService services.GradingService
}

func NewGradingHandler(gradingService services.GradingService, logger utils.Logger) *GradingHandler {
	return &GradingHandler{
		BaseHandler:    NewBaseHandler(logger),
		gradingService: gradingService,
	}
}

// GradeSubmission grades every ungraded unit of a writing or speaking
// submission and aggregates once all units are in
// @Router /grading/submissions/{id} [post]
func (h *GradingHandler) GradeSubmission(c *gin.Context) {
	id := ParseIDParam(c, "id")
	if id == 0 {
		return
	}
	h.LogRequest(c, "Grading submission", "submission_id", id)

	outcome, err := h.gradingService.GradeSubmission(c.Request.Context(), id)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, outcome)
}

// GetResult rebuilds the aggregated result from stored unit records
// @Router /grading/submissions/{id} [get]
func (h *GradingHandler) GetResult(c *gin.Context) {
	id := ParseIDParam(c, "id")
	if id == 0 {
		return
	}
	outcome, err := h.gradingService.GetResult(c.Request.Context(), id)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, outcome)
}

// GradeUnit grades a single question and answer
// @Router /grading/units [post]
func (h *GradingHandler) GradeUnit(c *gin.Context) {
	var req grading.GradeRequest
	if !h.bindJSON(c, &req) {
		return
	}
	h.LogRequest(c, "Grading unit", "question_id", req.QuestionID, "skill", req.Skill)

	result, err := h.gradingService.GradeUnit(c.Request.Context(), &req)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// Aggregate combines sub-results graded elsewhere
// @Router /grading/aggregate [post]
func (h *GradingHandler) Aggregate(c *gin.Context) {
	var req services.AggregateRequest
	if !h.bindJSON(c, &req) {
		return
	}

	result, err := h.gradingService.Aggregate(c.Request.Context(), &req)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/SAP-F-2025/exam-engine/internal/services"
	"github.com/SAP-F-2025/exam-engine/internal/utils"
)

type AttemptHandler struct {
	BaseHandler
	attemptService services.AttemptService
}

type NavigateRequest struct {
	Part int `json:"part"`
}

type ExtendTimeRequest struct {
	Seconds int `json:"seconds"`
}

func NewAttemptHandler(attemptService services.AttemptService, logger utils.Logger) *AttemptHandler {
	return &AttemptHandler{
		BaseHandler:    NewBaseHandler(logger),
		attemptService: attemptService,
	}
}

// StartAttempt starts a timed attempt on a skill or one of its sections
// @Router /attempts [post]
func (h *AttemptHandler) StartAttempt(c *gin.Context) {
	var req services.StartAttemptRequest
	if !h.bindJSON(c, &req) {
		return
	}
	h.LogRequest(c, "Starting attempt", "skill_id", req.SkillID)

	view, err := h.attemptService.Start(c.Request.Context(), &req)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusCreated, view)
}

// GetAttempt returns the current state of a live attempt
// @Router /attempts/{id} [get]
func (h *AttemptHandler) GetAttempt(c *gin.Context) {
	id := ParseStringIDParam(c, "id")
	if id == "" {
		return
	}
	view, err := h.attemptService.Get(c.Request.Context(), id)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

// ResumeAttempt returns a live attempt or restores it from its snapshot
// @Router /attempts/{id}/resume [post]
func (h *AttemptHandler) ResumeAttempt(c *gin.Context) {
	id := ParseStringIDParam(c, "id")
	if id == "" {
		return
	}
	h.LogRequest(c, "Resuming attempt", "attempt_id", id)

	view, err := h.attemptService.Resume(c.Request.Context(), id)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

// SetAnswer records one answer
// @Router /attempts/{id}/answers [put]
func (h *AttemptHandler) SetAnswer(c *gin.Context) {
	id := ParseStringIDParam(c, "id")
	if id == "" {
		return
	}
	var req services.AnswerRequest
	if !h.bindJSON(c, &req) {
		return
	}

	ack, err := h.attemptService.SetAnswer(c.Request.Context(), id, &req)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, ack)
}

// Navigate moves to another part of the attempt
// @Router /attempts/{id}/navigate [post]
func (h *AttemptHandler) Navigate(c *gin.Context) {
	id := ParseStringIDParam(c, "id")
	if id == "" {
		return
	}
	var req NavigateRequest
	if !h.bindJSON(c, &req) {
		return
	}

	view, err := h.attemptService.Navigate(c.Request.Context(), id, req.Part)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

// ExtendTime adds time to an attempt in progress
// @Router /attempts/{id}/extend [post]
func (h *AttemptHandler) ExtendTime(c *gin.Context) {
	id := ParseStringIDParam(c, "id")
	if id == "" {
		return
	}
	var req ExtendTimeRequest
	if !h.bindJSON(c, &req) {
		return
	}
	h.LogRequest(c, "Extending attempt time", "attempt_id", id, "seconds", req.Seconds)

	view, err := h.attemptService.ExtendTime(c.Request.Context(), id, req.Seconds)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

// RenderGroup renders an inline gap-fill group with the current answers
// @Router /attempts/{id}/groups/{group_id}/render [get]
func (h *AttemptHandler) RenderGroup(c *gin.Context) {
	id := ParseStringIDParam(c, "id")
	if id == "" {
		return
	}
	groupID := ParseIDParam(c, "group_id")
	if groupID == 0 {
		return
	}

	rendered, err := h.attemptService.RenderGroup(c.Request.Context(), id, groupID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, rendered)
}

// SubmitAttempt submits the answers collected so far
// @Router /attempts/{id}/submit [post]
func (h *AttemptHandler) SubmitAttempt(c *gin.Context) {
	id := ParseStringIDParam(c, "id")
	if id == "" {
		return
	}
	h.LogRequest(c, "Submitting attempt", "attempt_id", id)

	receipt, err := h.attemptService.Submit(c.Request.Context(), id)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, receipt)
}

// CloseAttempt abandons an attempt and drops its snapshot
// @Router /attempts/{id} [delete]
func (h *AttemptHandler) CloseAttempt(c *gin.Context) {
	id := ParseStringIDParam(c, "id")
	if id == "" {
		return
	}
	if err := h.attemptService.Close(c.Request.Context(), id); err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

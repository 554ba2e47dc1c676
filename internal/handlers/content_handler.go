package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/SAP-F-2025/exam-engine/internal/models"
	"github.com/SAP-F-2025/exam-engine/internal/services"
	"github.com/SAP-F-2025/exam-engine/internal/utils"
)

type ContentHandler struct {
	BaseHandler
	contentService services.ContentService
}

func NewContentHandler(contentService services.ContentService, logger utils.Logger) *ContentHandler {
	return &ContentHandler{
		BaseHandler:    NewBaseHandler(logger),
		contentService: contentService,
	}
}

// RegisterSkill stores a skill payload and reports its integrity issues
// @Router /content/skills [post]
func (h *ContentHandler) RegisterSkill(c *gin.Context) {
	var skill models.RawSkill
	if !h.bindJSON(c, &skill) {
		return
	}
	h.LogRequest(c, "Registering skill", "skill_id", skill.ID)

	result, err := h.contentService.Register(c.Request.Context(), &skill)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusCreated, result)
}

// ValidateSkill checks a payload without storing it
// @Router /content/skills/validate [post]
func (h *ContentHandler) ValidateSkill(c *gin.Context) {
	var skill models.RawSkill
	if !h.bindJSON(c, &skill) {
		return
	}

	issues := h.contentService.Validate(c.Request.Context(), &skill)
	c.JSON(http.StatusOK, gin.H{
		"valid":  len(issues) == 0,
		"issues": issues,
	})
}

// PlanSkill builds the render plan for a payload without storing it
// @Router /content/plan [post]
func (h *ContentHandler) PlanSkill(c *gin.Context) {
	sectionID, ok := ParseOptionalUintQuery(c, "section_id")
	if !ok {
		return
	}
	var skill models.RawSkill
	if !h.bindJSON(c, &skill) {
		return
	}

	plan, err := h.contentService.Plan(c.Request.Context(), &skill, sectionID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, plan)
}

// GetSkillPlan builds the render plan for a stored skill
// @Router /content/skills/{id}/plan [get]
func (h *ContentHandler) GetSkillPlan(c *gin.Context) {
	id := ParseIDParam(c, "id")
	if id == 0 {
		return
	}
	sectionID, ok := ParseOptionalUintQuery(c, "section_id")
	if !ok {
		return
	}

	plan, err := h.contentService.Prepare(c.Request.Context(), id, sectionID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, plan)
}

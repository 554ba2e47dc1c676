package handlers

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/SAP-F-2025/exam-engine/internal/models"
	"github.com/SAP-F-2025/exam-engine/internal/repositories"
	"github.com/SAP-F-2025/exam-engine/internal/services"
	"github.com/SAP-F-2025/exam-engine/internal/utils"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

type SubmissionHandler struct {
	BaseHandler
	submissionService services.SubmissionService
	exportService     services.ExportService
}

func NewSubmissionHandler(submissionService services.SubmissionService, exportService services.ExportService, logger utils.Logger) *SubmissionHandler {
	return &SubmissionHandler{
		BaseHandler:       NewBaseHandler(logger),
		submissionService: submissionService,
		exportService:     exportService,
	}
}

// CreateSubmission accepts a finished attempt from a client that ran the
// countdown itself
// @Router /submissions [post]
func (h *SubmissionHandler) CreateSubmission(c *gin.Context) {
	var payload models.SubmissionPayload
	if !h.bindJSON(c, &payload) {
		return
	}
	h.LogRequest(c, "Creating submission", "skill_id", payload.SkillID, "answers", len(payload.Answers))

	receipt, err := h.submissionService.Submit(c.Request.Context(), payload)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusCreated, receipt)
}

// GetSubmission returns a stored submission with its answers
// @Router /submissions/{id} [get]
func (h *SubmissionHandler) GetSubmission(c *gin.Context) {
	id := ParseIDParam(c, "id")
	if id == 0 {
		return
	}
	submission, err := h.submissionService.GetSubmission(c.Request.Context(), id)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, submission)
}

// GetReport returns the per-question result report
// @Router /submissions/{id}/report [get]
func (h *SubmissionHandler) GetReport(c *gin.Context) {
	id := ParseIDParam(c, "id")
	if id == 0 {
		return
	}
	report, err := h.submissionService.GetReport(c.Request.Context(), id)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, report)
}

// ListSubmissions lists submissions with filters and paging
// @Router /submissions [get]
func (h *SubmissionHandler) ListSubmissions(c *gin.Context) {
	filters, err := parseSubmissionFilters(c)
	if err != nil {
		h.RespondWithError(c, http.StatusBadRequest, "Invalid query parameters", err, err.Error())
		return
	}

	items, total, err := h.submissionService.List(c.Request.Context(), filters)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, ListResponse{
		Items:  items,
		Total:  total,
		Limit:  filters.Limit,
		Offset: filters.Offset,
	})
}

// ExportSubmission downloads the result as an xlsx workbook
// @Router /submissions/{id}/export [get]
func (h *SubmissionHandler) ExportSubmission(c *gin.Context) {
	id := ParseIDParam(c, "id")
	if id == 0 {
		return
	}
	h.LogRequest(c, "Exporting submission", "submission_id", id)

	data, err := h.exportService.ExportSubmission(c.Request.Context(), id)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="submission-%d.xlsx"`, id))
	c.Data(http.StatusOK, xlsxContentType, data)
}

func parseSubmissionFilters(c *gin.Context) (repositories.SubmissionFilters, error) {
	filters := repositories.SubmissionFilters{
		SortBy:    c.Query("sort_by"),
		SortOrder: c.Query("sort_order"),
	}

	if v := c.Query("skill_id"); v != "" {
		n, err := strconv.ParseUint(v, 10, 32)
		if err != nil {
			return filters, fmt.Errorf("skill_id: %w", err)
		}
		id := uint(n)
		filters.SkillID = &id
	}
	if v := c.Query("skill_type"); v != "" {
		st := models.ParseSkillType(v)
		if !st.IsValid() {
			return filters, fmt.Errorf("skill_type: unknown value %q", v)
		}
		filters.SkillType = &st
	}
	if v := c.Query("status"); v != "" {
		status := models.SubmissionStatus(v)
		filters.Status = &status
	}
	for name, dst := range map[string]**time.Time{"date_from": &filters.DateFrom, "date_to": &filters.DateTo} {
		if v := c.Query(name); v != "" {
			t, err := time.Parse(time.RFC3339, v)
			if err != nil {
				return filters, fmt.Errorf("%s: %w", name, err)
			}
			*dst = &t
		}
	}
	for name, dst := range map[string]*int{"limit": &filters.Limit, "offset": &filters.Offset} {
		if v := c.Query(name); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil || n < 0 {
				return filters, fmt.Errorf("%s: must be a non-negative integer", name)
			}
			*dst = n
		}
	}
	return filters, nil
}

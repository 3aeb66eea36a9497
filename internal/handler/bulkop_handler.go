package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/campuskit/timetable-api/internal/dto"
	"github.com/campuskit/timetable-api/internal/service"
	appErrors "github.com/campuskit/timetable-api/pkg/errors"
	"github.com/campuskit/timetable-api/pkg/response"
)

// BulkOpHandler exposes the bulk operation engine.
type BulkOpHandler struct {
	service *service.BulkOpService
}

// NewBulkOpHandler constructs handler.
func NewBulkOpHandler(svc *service.BulkOpService) *BulkOpHandler {
	return &BulkOpHandler{service: svc}
}

// Clone godoc
// @Summary Clone a batch timetable into another batch
// @Tags Bulk Operations
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param payload body dto.CloneRequest true "Clone parameters"
// @Success 202 {object} response.Envelope "Tracked operation"
// @Success 200 {object} response.Envelope "Dry-run preview"
// @Failure 409 {object} response.Envelope "Conflict report"
// @Router /timetable/bulk/clone [post]
func (h *BulkOpHandler) Clone(c *gin.Context) {
	var req dto.CloneRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	res, err := h.service.Clone(c.Request.Context(), req, actorID(c))
	h.respond(c, res, err)
}

// FacultyReplace godoc
// @Summary Reassign entries from one faculty member to another
// @Tags Bulk Operations
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param payload body dto.FacultyReplaceRequest true "Replacement parameters"
// @Success 202 {object} response.Envelope "Tracked operation"
// @Failure 409 {object} response.Envelope "Conflict report"
// @Router /timetable/bulk/faculty-replace [post]
func (h *BulkOpHandler) FacultyReplace(c *gin.Context) {
	var req dto.FacultyReplaceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	res, err := h.service.FacultyReplace(c.Request.Context(), req, actorID(c))
	h.respond(c, res, err)
}

// Reschedule godoc
// @Summary Move dated entries from one range to another
// @Tags Bulk Operations
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param payload body dto.RescheduleRequest true "Reschedule parameters"
// @Success 202 {object} response.Envelope "Tracked operation"
// @Failure 409 {object} response.Envelope "Conflict report"
// @Router /timetable/bulk/reschedule [post]
func (h *BulkOpHandler) Reschedule(c *gin.Context) {
	var req dto.RescheduleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	res, err := h.service.Reschedule(c.Request.Context(), req, actorID(c))
	h.respond(c, res, err)
}

// TemplateApply godoc
// @Summary Expand a template into target batches
// @Tags Bulk Operations
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param payload body dto.TemplateApplyRequest true "Apply parameters"
// @Success 202 {object} response.Envelope "Tracked operation"
// @Failure 409 {object} response.Envelope "Conflict report"
// @Router /timetable/bulk/template-apply [post]
func (h *BulkOpHandler) TemplateApply(c *gin.Context) {
	var req dto.TemplateApplyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	res, err := h.service.TemplateApply(c.Request.Context(), req, actorID(c))
	h.respond(c, res, err)
}

// GetOperation godoc
// @Summary Poll a bulk operation
// @Tags Bulk Operations
// @Produce json
// @Security BearerAuth
// @Param id path string true "Operation ID"
// @Success 200 {object} response.Envelope
// @Router /timetable/bulk/operations/{id} [get]
func (h *BulkOpHandler) GetOperation(c *gin.Context) {
	op, err := h.service.GetOperation(c.Request.Context(), c.Param("id"), actorID(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, op, nil)
}

// ListOperations godoc
// @Summary List the requester's recent bulk operations
// @Tags Bulk Operations
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Envelope
// @Router /timetable/bulk/operations [get]
func (h *BulkOpHandler) ListOperations(c *gin.Context) {
	ops, err := h.service.ListOperations(c.Request.Context(), actorID(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, ops, nil)
}

// Cancel godoc
// @Summary Request cooperative cancellation of a running operation
// @Tags Bulk Operations
// @Produce json
// @Security BearerAuth
// @Param id path string true "Operation ID"
// @Success 200 {object} response.Envelope
// @Router /timetable/bulk/operations/{id}/cancel [post]
func (h *BulkOpHandler) Cancel(c *gin.Context) {
	op, err := h.service.Cancel(c.Request.Context(), c.Param("id"), actorID(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, op, nil)
}

// respond maps the three submission outcomes: a conflict rejection carries
// the report, a preview returns 200, a tracked run returns 202.
func (h *BulkOpHandler) respond(c *gin.Context, result *dto.BulkSubmitResponse, err error) {
	if err != nil {
		var appErr *appErrors.Error
		if errors.As(err, &appErr) && result != nil && result.Preview != nil {
			response.ErrorWithData(c, err, result.Preview)
			return
		}
		response.Error(c, err)
		return
	}
	if result.Preview != nil {
		response.JSON(c, http.StatusOK, result.Preview, nil)
		return
	}
	response.JSON(c, http.StatusAccepted, result, nil)
}

package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/campuskit/timetable-api/internal/service"
	appErrors "github.com/campuskit/timetable-api/pkg/errors"
	"github.com/campuskit/timetable-api/pkg/response"
)

// TemplateHandler manages recurrence template endpoints.
type TemplateHandler struct {
	service *service.TemplateService
}

// NewTemplateHandler constructs handler.
func NewTemplateHandler(svc *service.TemplateService) *TemplateHandler {
	return &TemplateHandler{service: svc}
}

// List godoc
// @Summary List timetable templates
// @Tags Templates
// @Produce json
// @Security BearerAuth
// @Param batchId query string false "Filter by batch"
// @Success 200 {object} response.Envelope
// @Router /timetable/templates [get]
func (h *TemplateHandler) List(c *gin.Context) {
	templates, err := h.service.List(c.Request.Context(), c.Query("batchId"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, templates, nil)
}

// Get godoc
// @Summary Get a template by ID
// @Tags Templates
// @Produce json
// @Security BearerAuth
// @Param id path string true "Template ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /timetable/templates/{id} [get]
func (h *TemplateHandler) Get(c *gin.Context) {
	tmpl, err := h.service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, tmpl, nil)
}

// Create godoc
// @Summary Create a recurrence template
// @Tags Templates
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param payload body service.CreateTemplateRequest true "Template payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /timetable/templates [post]
func (h *TemplateHandler) Create(c *gin.Context) {
	var req service.CreateTemplateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	tmpl, err := h.service.Create(c.Request.Context(), req, actorID(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, tmpl)
}

// Preview godoc
// @Summary Preview the entries a template would generate
// @Tags Templates
// @Produce json
// @Security BearerAuth
// @Param id path string true "Template ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /timetable/templates/{id}/preview [get]
func (h *TemplateHandler) Preview(c *gin.Context) {
	preview, err := h.service.Preview(c.Request.Context(), c.Param("id"), actorID(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, preview, nil)
}

// Delete godoc
// @Summary Deactivate a template
// @Tags Templates
// @Produce json
// @Security BearerAuth
// @Param id path string true "Template ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /timetable/templates/{id} [delete]
func (h *TemplateHandler) Delete(c *gin.Context) {
	if err := h.service.Delete(c.Request.Context(), c.Param("id"), actorID(c)); err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, gin.H{"deleted": true}, nil)
}

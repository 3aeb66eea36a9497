package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/campuskit/timetable-api/internal/service"
	appErrors "github.com/campuskit/timetable-api/pkg/errors"
	"github.com/campuskit/timetable-api/pkg/response"
)

// TimeSlotHandler manages time slot endpoints.
type TimeSlotHandler struct {
	service *service.TimeSlotService
}

// NewTimeSlotHandler constructs handler.
func NewTimeSlotHandler(svc *service.TimeSlotService) *TimeSlotHandler {
	return &TimeSlotHandler{service: svc}
}

// List godoc
// @Summary List time slots
// @Tags TimeSlots
// @Produce json
// @Param includeInactive query bool false "Include deactivated slots"
// @Success 200 {object} response.Envelope
// @Router /time-slots [get]
func (h *TimeSlotHandler) List(c *gin.Context) {
	activeOnly := c.Query("includeInactive") != "true"
	slots, err := h.service.List(c.Request.Context(), activeOnly)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, slots, nil)
}

// Get godoc
// @Summary Get a time slot by ID
// @Tags TimeSlots
// @Produce json
// @Param id path string true "Time slot ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /time-slots/{id} [get]
func (h *TimeSlotHandler) Get(c *gin.Context) {
	slot, err := h.service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, slot, nil)
}

// Create godoc
// @Summary Create a time slot
// @Tags TimeSlots
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param payload body service.CreateTimeSlotRequest true "Time slot payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /time-slots [post]
func (h *TimeSlotHandler) Create(c *gin.Context) {
	var req service.CreateTimeSlotRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	slot, err := h.service.Create(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, slot)
}

// Delete godoc
// @Summary Deactivate a time slot
// @Tags TimeSlots
// @Produce json
// @Security BearerAuth
// @Param id path string true "Time slot ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /time-slots/{id} [delete]
func (h *TimeSlotHandler) Delete(c *gin.Context) {
	if err := h.service.Deactivate(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, gin.H{"deleted": true}, nil)
}

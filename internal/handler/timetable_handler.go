package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/campuskit/timetable-api/internal/dto"
	"github.com/campuskit/timetable-api/internal/service"
	appErrors "github.com/campuskit/timetable-api/pkg/errors"
	"github.com/campuskit/timetable-api/pkg/response"
)

// TimetableHandler manages timetable entry endpoints.
type TimetableHandler struct {
	service *service.EntryService
}

// NewTimetableHandler constructs handler.
func NewTimetableHandler(svc *service.EntryService) *TimetableHandler {
	return &TimetableHandler{service: svc}
}

// List godoc
// @Summary List timetable entries
// @Tags Timetable
// @Produce json
// @Param batchId query string false "Filter by batch"
// @Param facultyId query string false "Filter by faculty"
// @Param timeSlotId query string false "Filter by time slot"
// @Param dayOfWeek query string false "Filter by day"
// @Param dateFrom query string false "Range start (YYYY-MM-DD)"
// @Param dateTo query string false "Range end (YYYY-MM-DD)"
// @Param entryType query string false "Filter by entry type"
// @Param active query string false "Filter by active flag"
// @Param page query int false "Page"
// @Param pageSize query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /timetable/entries [get]
func (h *TimetableHandler) List(c *gin.Context) {
	var query dto.EntryListQuery
	query.BatchID = c.Query("batchId")
	query.FacultyID = c.Query("facultyId")
	query.TimeSlot = c.Query("timeSlotId")
	query.DayOfWeek = c.Query("dayOfWeek")
	query.DateFrom = c.Query("dateFrom")
	query.DateTo = c.Query("dateTo")
	query.EntryType = c.Query("entryType")
	query.Active = c.Query("active")
	if page, err := strconv.Atoi(c.DefaultQuery("page", "1")); err == nil {
		query.Page = page
	}
	if size, err := strconv.Atoi(c.DefaultQuery("pageSize", "50")); err == nil {
		query.PageSize = size
	}

	entries, pagination, err := h.service.List(c.Request.Context(), query)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, entries, pagination)
}

// Get godoc
// @Summary Get a timetable entry
// @Tags Timetable
// @Produce json
// @Param id path string true "Entry ID"
// @Success 200 {object} response.Envelope
// @Router /timetable/entries/{id} [get]
func (h *TimetableHandler) Get(c *gin.Context) {
	entry, err := h.service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, entry, nil)
}

// Create godoc
// @Summary Create a timetable entry
// @Tags Timetable
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param payload body dto.CreateEntryRequest true "Entry payload"
// @Success 201 {object} response.Envelope
// @Failure 409 {object} response.Envelope "Conflict report"
// @Router /timetable/entries [post]
func (h *TimetableHandler) Create(c *gin.Context) {
	var req dto.CreateEntryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	result, report, err := h.service.Create(c.Request.Context(), req, actorID(c))
	if err != nil {
		respondWithReport(c, err, report)
		return
	}
	response.Created(c, result)
}

// Validate godoc
// @Summary Run conflict detection without persisting
// @Tags Timetable
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param payload body dto.ValidateEntriesRequest true "Proposed entries"
// @Success 200 {object} response.Envelope
// @Router /timetable/entries/validate [post]
func (h *TimetableHandler) Validate(c *gin.Context) {
	var req dto.ValidateEntriesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	report, err := h.service.ValidateEntries(c.Request.Context(), req, actorID(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, report, nil)
}

// Update godoc
// @Summary Update a timetable entry
// @Tags Timetable
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Entry ID"
// @Param payload body dto.UpdateEntryRequest true "Changed fields"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope "Conflict report"
// @Router /timetable/entries/{id} [put]
func (h *TimetableHandler) Update(c *gin.Context) {
	var req dto.UpdateEntryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	result, report, err := h.service.Update(c.Request.Context(), c.Param("id"), req, actorID(c))
	if err != nil {
		respondWithReport(c, err, report)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// Delete godoc
// @Summary Soft-delete a timetable entry
// @Tags Timetable
// @Produce json
// @Security BearerAuth
// @Param id path string true "Entry ID"
// @Param undoTtlSeconds query int false "Undo window in seconds, clamped to the server cap"
// @Success 200 {object} response.Envelope "Undo handle"
// @Router /timetable/entries/{id} [delete]
func (h *TimetableHandler) Delete(c *gin.Context) {
	ttlSeconds, err := undoTTLFromQuery(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	result, err := h.service.Delete(c.Request.Context(), c.Param("id"), ttlSeconds, actorID(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

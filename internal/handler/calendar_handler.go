package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/campuskit/timetable-api/internal/service"
	appErrors "github.com/campuskit/timetable-api/pkg/errors"
	"github.com/campuskit/timetable-api/pkg/response"
)

// CalendarHandler manages holiday and exam period endpoints.
type CalendarHandler struct {
	service *service.CalendarService
	undoTTL time.Duration
}

// NewCalendarHandler constructs handler.
func NewCalendarHandler(svc *service.CalendarService, undoTTL time.Duration) *CalendarHandler {
	return &CalendarHandler{service: svc, undoTTL: undoTTL}
}

// ListHolidays godoc
// @Summary List holidays
// @Tags Calendar
// @Produce json
// @Param from query string false "Range start (YYYY-MM-DD)"
// @Param to query string false "Range end (YYYY-MM-DD)"
// @Success 200 {object} response.Envelope
// @Router /calendar/holidays [get]
func (h *CalendarHandler) ListHolidays(c *gin.Context) {
	req, err := rangeFromQuery(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	holidays, err := h.service.ListHolidays(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, holidays, nil)
}

// CreateHoliday godoc
// @Summary Create a holiday
// @Tags Calendar
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param payload body service.CreateHolidayRequest true "Holiday payload"
// @Success 201 {object} response.Envelope
// @Router /calendar/holidays [post]
func (h *CalendarHandler) CreateHoliday(c *gin.Context) {
	var req service.CreateHolidayRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	holiday, err := h.service.CreateHoliday(c.Request.Context(), req, actorID(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, holiday)
}

// DeleteHoliday godoc
// @Summary Soft-delete a holiday
// @Tags Calendar
// @Produce json
// @Security BearerAuth
// @Param id path string true "Holiday ID"
// @Param undoTtlSeconds query int false "Undo window in seconds, clamped to the server cap"
// @Success 200 {object} response.Envelope "Undo handle"
// @Router /calendar/holidays/{id} [delete]
func (h *CalendarHandler) DeleteHoliday(c *gin.Context) {
	ttlSeconds, err := undoTTLFromQuery(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	ttl := h.undoTTL
	if ttlSeconds > 0 {
		if requested := time.Duration(ttlSeconds) * time.Second; requested < ttl {
			ttl = requested
		}
	}
	undoID, err := h.service.DeleteHoliday(c.Request.Context(), c.Param("id"), ttl, actorID(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	payload := gin.H{}
	if undoID != "" {
		payload["undoId"] = undoID
		payload["expiresInSeconds"] = int(ttl.Seconds())
	}
	response.JSON(c, http.StatusOK, payload, nil)
}

// ListExamPeriods godoc
// @Summary List exam periods
// @Tags Calendar
// @Produce json
// @Param from query string false "Range start (YYYY-MM-DD)"
// @Param to query string false "Range end (YYYY-MM-DD)"
// @Success 200 {object} response.Envelope
// @Router /calendar/exam-periods [get]
func (h *CalendarHandler) ListExamPeriods(c *gin.Context) {
	req, err := rangeFromQuery(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	periods, err := h.service.ListExamPeriods(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, periods, nil)
}

// CreateExamPeriod godoc
// @Summary Create an exam period
// @Tags Calendar
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param payload body service.CreateExamPeriodRequest true "Exam period payload"
// @Success 201 {object} response.Envelope
// @Router /calendar/exam-periods [post]
func (h *CalendarHandler) CreateExamPeriod(c *gin.Context) {
	var req service.CreateExamPeriodRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	period, err := h.service.CreateExamPeriod(c.Request.Context(), req, actorID(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, period)
}

func rangeFromQuery(c *gin.Context) (service.CalendarRangeRequest, error) {
	var req service.CalendarRangeRequest
	if raw := c.Query("from"); raw != "" {
		from, err := time.Parse("2006-01-02", raw)
		if err != nil {
			return req, appErrors.Clone(appErrors.ErrValidation, "from must be YYYY-MM-DD")
		}
		req.From = &from
	}
	if raw := c.Query("to"); raw != "" {
		to, err := time.Parse("2006-01-02", raw)
		if err != nil {
			return req, appErrors.Clone(appErrors.ErrValidation, "to must be YYYY-MM-DD")
		}
		req.To = &to
	}
	return req, nil
}

package handler

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
)

func TestCalendarHandlerRejectsInvalidHolidayRange(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := NewCalendarHandler(nil, time.Minute)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(http.MethodGet, "/calendar/holidays?from=not-a-date", nil)
	c.Request = req

	handler.ListHolidays(c)

	require.Equal(t, http.StatusBadRequest, w.Code)
	require.Contains(t, w.Body.String(), "from must be YYYY-MM-DD")
}

func TestCalendarHandlerRejectsInvalidExamPeriodRange(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := NewCalendarHandler(nil, time.Minute)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(http.MethodGet, "/calendar/exam-periods?to=2025-13-99", nil)
	c.Request = req

	handler.ListExamPeriods(c)

	require.Equal(t, http.StatusBadRequest, w.Code)
	require.Contains(t, w.Body.String(), "to must be YYYY-MM-DD")
}

func TestCalendarHandlerRejectsBadUndoWindowOnDelete(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := NewCalendarHandler(nil, time.Minute)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(http.MethodDelete, "/calendar/holidays/hol-1?undoTtlSeconds=-5", nil)
	c.Request = req
	c.Params = gin.Params{{Key: "id", Value: "hol-1"}}

	handler.DeleteHoliday(c)

	require.Equal(t, http.StatusBadRequest, w.Code)
	require.Contains(t, w.Body.String(), "undoTtlSeconds must be a positive integer")
}

func TestCalendarHandlerRejectsMalformedHolidayBody(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := NewCalendarHandler(nil, time.Minute)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(http.MethodPost, "/calendar/holidays", strings.NewReader("{not json"))
	req.Header.Set("Content-Type", "application/json")
	c.Request = req

	handler.CreateHoliday(c)

	require.Equal(t, http.StatusBadRequest, w.Code)
}

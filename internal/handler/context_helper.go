package handler

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/campuskit/timetable-api/internal/middleware"
	"github.com/campuskit/timetable-api/internal/models"
	appErrors "github.com/campuskit/timetable-api/pkg/errors"
	"github.com/campuskit/timetable-api/pkg/response"
)

func claimsFromContext(c *gin.Context) *models.JWTClaims {
	value, exists := c.Get(middleware.ContextUserKey)
	if !exists {
		return nil
	}
	claims, ok := value.(*models.JWTClaims)
	if !ok {
		return nil
	}
	return claims
}

func actorID(c *gin.Context) string {
	if claims := claimsFromContext(c); claims != nil {
		return claims.UserID
	}
	return ""
}

// undoTTLFromQuery reads the optional caller-chosen undo window. Zero means
// "use the server default"; the service layer clamps oversized values.
func undoTTLFromQuery(c *gin.Context) (int, error) {
	raw := c.Query("undoTtlSeconds")
	if raw == "" {
		return 0, nil
	}
	seconds, err := strconv.Atoi(raw)
	if err != nil || seconds <= 0 {
		return 0, appErrors.Clone(appErrors.ErrValidation, "undoTtlSeconds must be a positive integer")
	}
	return seconds, nil
}

// respondWithReport writes the error envelope, attaching the conflict report
// when detection produced one so callers can self-correct.
func respondWithReport(c *gin.Context, err error, report *models.ConflictReport) {
	if report == nil {
		response.Error(c, err)
		return
	}
	response.ErrorWithData(c, err, report)
}

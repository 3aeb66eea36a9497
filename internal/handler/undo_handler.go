package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/campuskit/timetable-api/internal/service"
	"github.com/campuskit/timetable-api/pkg/response"
)

// UndoHandler exposes the deletion undo endpoint.
type UndoHandler struct {
	service *service.UndoService
}

// NewUndoHandler constructs handler.
func NewUndoHandler(svc *service.UndoService) *UndoHandler {
	return &UndoHandler{service: svc}
}

// Undo godoc
// @Summary Restore a recently deleted record
// @Description Consumes an undo handle issued by a delete operation and restores the snapshot. Handles are single-use and expire.
// @Tags Undo
// @Produce json
// @Security BearerAuth
// @Param id path string true "Undo handle ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Failure 410 {object} response.Envelope
// @Router /undo/{id} [post]
func (h *UndoHandler) Undo(c *gin.Context) {
	result, err := h.service.Undo(c.Request.Context(), c.Param("id"), actorID(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

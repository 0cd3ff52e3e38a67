package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/kendrekaran/clr-bke/internal/service"
	appErrors "github.com/kendrekaran/clr-bke/pkg/errors"
	"github.com/kendrekaran/clr-bke/pkg/response"
)

// TimetableHandler exposes weekly timetable endpoints.
type TimetableHandler struct {
	timetables *service.TimetableService
}

// NewTimetableHandler constructs TimetableHandler.
func NewTimetableHandler(timetables *service.TimetableService) *TimetableHandler {
	return &TimetableHandler{timetables: timetables}
}

// GetWeek godoc
// @Summary Get the full week grouped by day
// @Tags Timetable
// @Produce json
// @Param id path string true "Batch ID"
// @Param student_id query string false "Scoped student (parents must supply)"
// @Success 200 {object} response.Envelope
// @Router /batches/{id}/timetable [get]
func (h *TimetableHandler) GetWeek(c *gin.Context) {
	week, err := h.timetables.GetWeek(c.Request.Context(), c.Param("id"), c.Query("student_id"), claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, week, nil)
}

// GetDay godoc
// @Summary Get one day's entries sorted by hour
// @Tags Timetable
// @Produce json
// @Param id path string true "Batch ID"
// @Param day path string true "Weekday (monday..saturday)"
// @Param student_id query string false "Scoped student (parents must supply)"
// @Success 200 {object} response.Envelope
// @Router /batches/{id}/timetable/{day} [get]
func (h *TimetableHandler) GetDay(c *gin.Context) {
	entries, err := h.timetables.GetDay(c.Request.Context(), c.Param("id"), c.Param("day"), c.Query("student_id"), claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, entries, nil)
}

// SetDay godoc
// @Summary Replace a day's entries
// @Tags Timetable
// @Accept json
// @Produce json
// @Param id path string true "Batch ID"
// @Param day path string true "Weekday (monday..saturday)"
// @Param payload body service.SetDayRequest true "Day entries"
// @Success 200 {object} response.Envelope
// @Router /batches/{id}/timetable/{day} [put]
func (h *TimetableHandler) SetDay(c *gin.Context) {
	var req service.SetDayRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	entries, err := h.timetables.SetDay(c.Request.Context(), c.Param("id"), c.Param("day"), req, claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, entries, nil)
}

// UpsertSlot godoc
// @Summary Write one slot, replacing whatever occupies it
// @Tags Timetable
// @Accept json
// @Produce json
// @Param id path string true "Batch ID"
// @Param day path string true "Weekday (monday..saturday)"
// @Param payload body service.SlotRequest true "Slot payload"
// @Success 200 {object} response.Envelope
// @Router /batches/{id}/timetable/{day}/slots [post]
func (h *TimetableHandler) UpsertSlot(c *gin.Context) {
	var req service.SlotRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	entries, err := h.timetables.UpsertSlot(c.Request.Context(), c.Param("id"), c.Param("day"), req, claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, entries, nil)
}

// DeleteSlot godoc
// @Summary Delete one slot
// @Tags Timetable
// @Produce json
// @Param id path string true "Batch ID"
// @Param day path string true "Weekday (monday..saturday)"
// @Param hour path int true "Hour (1..8)"
// @Success 204 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /batches/{id}/timetable/{day}/slots/{hour} [delete]
func (h *TimetableHandler) DeleteSlot(c *gin.Context) {
	hour, err := strconv.Atoi(c.Param("hour"))
	if err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "hour must be an integer"))
		return
	}
	if err := h.timetables.DeleteSlot(c.Request.Context(), c.Param("id"), c.Param("day"), hour, claimsFromContext(c)); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// ClearDay godoc
// @Summary Remove every entry for a day
// @Tags Timetable
// @Produce json
// @Param id path string true "Batch ID"
// @Param day path string true "Weekday (monday..saturday)"
// @Success 204 {object} response.Envelope
// @Router /batches/{id}/timetable/{day} [delete]
func (h *TimetableHandler) ClearDay(c *gin.Context) {
	if err := h.timetables.ClearDay(c.Request.Context(), c.Param("id"), c.Param("day"), claimsFromContext(c)); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

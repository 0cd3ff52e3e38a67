package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/kendrekaran/clr-bke/internal/service"
	appErrors "github.com/kendrekaran/clr-bke/pkg/errors"
	"github.com/kendrekaran/clr-bke/pkg/response"
)

// AttendanceHandler exposes attendance register endpoints.
type AttendanceHandler struct {
	attendance *service.AttendanceService
}

// NewAttendanceHandler constructs AttendanceHandler.
func NewAttendanceHandler(attendance *service.AttendanceService) *AttendanceHandler {
	return &AttendanceHandler{attendance: attendance}
}

// Mark godoc
// @Summary Mark a day's attendance
// @Tags Attendance
// @Accept json
// @Produce json
// @Param id path string true "Batch ID"
// @Param payload body service.MarkAttendanceRequest true "Attendance payload"
// @Success 201 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /batches/{id}/attendance [post]
func (h *AttendanceHandler) Mark(c *gin.Context) {
	var req service.MarkAttendanceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	detail, err := h.attendance.Mark(c.Request.Context(), c.Param("id"), req, claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, detail)
}

// Update godoc
// @Summary Correct a register's entries
// @Tags Attendance
// @Accept json
// @Produce json
// @Param id path string true "Batch ID"
// @Param attendanceId path string true "Attendance record ID"
// @Param payload body service.UpdateAttendanceRequest true "Attendance payload"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /batches/{id}/attendance/{attendanceId} [put]
func (h *AttendanceHandler) Update(c *gin.Context) {
	var req service.UpdateAttendanceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	detail, err := h.attendance.Update(c.Request.Context(), c.Param("id"), c.Param("attendanceId"), req, claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, detail, nil)
}

// Query godoc
// @Summary List registers over a date window
// @Tags Attendance
// @Produce json
// @Param id path string true "Batch ID"
// @Param student_id query string false "Scoped student (parents must supply)"
// @Param date_from query string false "Window start (YYYY-MM-DD)"
// @Param date_to query string false "Window end (YYYY-MM-DD)"
// @Success 200 {object} response.Envelope
// @Router /batches/{id}/attendance [get]
func (h *AttendanceHandler) Query(c *gin.Context) {
	details, err := h.attendance.Query(c.Request.Context(), c.Param("id"),
		c.Query("student_id"), c.Query("date_from"), c.Query("date_to"), claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, details, nil)
}

// Summary godoc
// @Summary Aggregate one student's attendance
// @Tags Attendance
// @Produce json
// @Param id path string true "Batch ID"
// @Param student_id query string false "Scoped student (required for teachers and parents)"
// @Param date_from query string false "Window start (YYYY-MM-DD)"
// @Param date_to query string false "Window end (YYYY-MM-DD)"
// @Success 200 {object} response.Envelope
// @Router /batches/{id}/attendance/summary [get]
func (h *AttendanceHandler) Summary(c *gin.Context) {
	summary, err := h.attendance.Summary(c.Request.Context(), c.Param("id"),
		c.Query("student_id"), c.Query("date_from"), c.Query("date_to"), claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, summary, nil)
}

package handler

import (
	"fmt"

	"github.com/gin-gonic/gin"

	"github.com/kendrekaran/clr-bke/internal/service"
	"github.com/kendrekaran/clr-bke/pkg/response"
)

// ExportHandler streams rendered documents to batch owners.
type ExportHandler struct {
	exports *service.ExportService
}

// NewExportHandler constructs ExportHandler.
func NewExportHandler(exports *service.ExportService) *ExportHandler {
	return &ExportHandler{exports: exports}
}

// AttendanceRegister godoc
// @Summary Download the attendance register as CSV
// @Tags Exports
// @Produce text/csv
// @Param id path string true "Batch ID"
// @Param date_from query string false "Window start (YYYY-MM-DD)"
// @Param date_to query string false "Window end (YYYY-MM-DD)"
// @Success 200 {file} file
// @Router /batches/{id}/exports/attendance [get]
func (h *ExportHandler) AttendanceRegister(c *gin.Context) {
	file, err := h.exports.AttendanceRegisterCSV(c.Request.Context(), c.Param("id"),
		c.Query("date_from"), c.Query("date_to"), claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	serveFile(c, file)
}

// TestMarksheet godoc
// @Summary Download a test's marksheet as CSV
// @Tags Exports
// @Produce text/csv
// @Param id path string true "Batch ID"
// @Param testId path string true "Test ID"
// @Success 200 {file} file
// @Router /batches/{id}/exports/tests/{testId} [get]
func (h *ExportHandler) TestMarksheet(c *gin.Context) {
	file, err := h.exports.TestMarksheetCSV(c.Request.Context(), c.Param("id"), c.Param("testId"), claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	serveFile(c, file)
}

// FeeReceipt godoc
// @Summary Download a student's fee receipt as PDF
// @Tags Exports
// @Produce application/pdf
// @Param id path string true "Batch ID"
// @Param studentId path string true "Student ID"
// @Success 200 {file} file
// @Router /batches/{id}/exports/fees/{studentId} [get]
func (h *ExportHandler) FeeReceipt(c *gin.Context) {
	file, err := h.exports.FeeReceiptPDF(c.Request.Context(), c.Param("id"), c.Param("studentId"), claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	serveFile(c, file)
}

func serveFile(c *gin.Context, file *service.ExportFile) {
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", file.Filename))
	c.Data(200, file.ContentType, file.Payload)
}

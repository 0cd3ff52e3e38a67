package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/kendrekaran/clr-bke/internal/service"
	appErrors "github.com/kendrekaran/clr-bke/pkg/errors"
	"github.com/kendrekaran/clr-bke/pkg/response"
)

// TestHandler exposes test and marks endpoints.
type TestHandler struct {
	tests *service.TestService
}

// NewTestHandler constructs TestHandler.
func NewTestHandler(tests *service.TestService) *TestHandler {
	return &TestHandler{tests: tests}
}

// Create godoc
// @Summary Define a test
// @Tags Tests
// @Accept json
// @Produce json
// @Param id path string true "Batch ID"
// @Param payload body service.CreateTestRequest true "Test payload"
// @Success 201 {object} response.Envelope
// @Router /batches/{id}/tests [post]
func (h *TestHandler) Create(c *gin.Context) {
	var req service.CreateTestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	test, err := h.tests.Create(c.Request.Context(), c.Param("id"), req, claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, test)
}

// List godoc
// @Summary List tests most-recent-first
// @Tags Tests
// @Produce json
// @Param id path string true "Batch ID"
// @Param student_id query string false "Scoped student (parents must supply)"
// @Success 200 {object} response.Envelope
// @Router /batches/{id}/tests [get]
func (h *TestHandler) List(c *gin.Context) {
	tests, err := h.tests.List(c.Request.Context(), c.Param("id"), c.Query("student_id"), claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, tests, nil)
}

// Get godoc
// @Summary Get a test with its marks
// @Tags Tests
// @Produce json
// @Param id path string true "Batch ID"
// @Param testId path string true "Test ID"
// @Param student_id query string false "Scoped student (parents must supply)"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /batches/{id}/tests/{testId} [get]
func (h *TestHandler) Get(c *gin.Context) {
	detail, err := h.tests.Get(c.Request.Context(), c.Param("id"), c.Param("testId"), c.Query("student_id"), claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, detail, nil)
}

// Delete godoc
// @Summary Delete a test and its marks
// @Tags Tests
// @Produce json
// @Param id path string true "Batch ID"
// @Param testId path string true "Test ID"
// @Success 204 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /batches/{id}/tests/{testId} [delete]
func (h *TestHandler) Delete(c *gin.Context) {
	if err := h.tests.Delete(c.Request.Context(), c.Param("id"), c.Param("testId"), claimsFromContext(c)); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// RecordMarks godoc
// @Summary Record or correct per-student marks
// @Tags Tests
// @Accept json
// @Produce json
// @Param id path string true "Batch ID"
// @Param testId path string true "Test ID"
// @Param payload body service.RecordMarksRequest true "Marks payload"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /batches/{id}/tests/{testId}/marks [put]
func (h *TestHandler) RecordMarks(c *gin.Context) {
	var req service.RecordMarksRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	marks, err := h.tests.RecordMarks(c.Request.Context(), c.Param("id"), c.Param("testId"), req, claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, marks, nil)
}

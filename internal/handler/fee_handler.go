package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/kendrekaran/clr-bke/internal/service"
	appErrors "github.com/kendrekaran/clr-bke/pkg/errors"
	"github.com/kendrekaran/clr-bke/pkg/response"
)

// FeeHandler exposes fee payment endpoints.
type FeeHandler struct {
	fees *service.FeeService
}

// NewFeeHandler constructs FeeHandler.
func NewFeeHandler(fees *service.FeeService) *FeeHandler {
	return &FeeHandler{fees: fees}
}

// Record godoc
// @Summary Record or replace a student's payment record
// @Tags Fees
// @Accept json
// @Produce json
// @Param id path string true "Batch ID"
// @Param payload body service.RecordFeeRequest true "Fee payload"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /batches/{id}/fees [post]
func (h *FeeHandler) Record(c *gin.Context) {
	var req service.RecordFeeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	payment, err := h.fees.Record(c.Request.Context(), c.Param("id"), req, claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, payment, nil)
}

// List godoc
// @Summary List every payment record for a batch
// @Tags Fees
// @Produce json
// @Param id path string true "Batch ID"
// @Success 200 {object} response.Envelope
// @Router /batches/{id}/fees [get]
func (h *FeeHandler) List(c *gin.Context) {
	payments, err := h.fees.List(c.Request.Context(), c.Param("id"), claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, payments, nil)
}

// Get godoc
// @Summary Get the scoped student's payment record
// @Description Returns null data when the student has no record yet
// @Tags Fees
// @Produce json
// @Param id path string true "Batch ID"
// @Param student_id query string false "Scoped student (parents must supply)"
// @Success 200 {object} response.Envelope
// @Router /batches/{id}/fees/payment [get]
func (h *FeeHandler) Get(c *gin.Context) {
	payment, err := h.fees.Get(c.Request.Context(), c.Param("id"), c.Query("student_id"), claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, payment, nil)
}

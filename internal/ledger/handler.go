package ledger

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"clubledger/internal/api"
)

type Handler struct {
	service Service
}

func NewHandler(service Service) *Handler {
	return &Handler{service: service}
}

func pathID(c *gin.Context, name string) (int, bool) {
	id, err := strconv.Atoi(c.Param(name))
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid " + name})
		return 0, false
	}
	return id, true
}

func (h *Handler) respondMutationError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, ErrObligationNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "obligation not found"})
	case errors.Is(err, ErrPaymentNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "payment not found"})
	case errors.Is(err, ErrReconciliationConflict):
		c.JSON(http.StatusConflict, gin.H{"error": "ledger busy, retry the request"})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "ledger operation failed"})
	}
}

// CreateObligation godoc
// @Summary      Create a fee obligation
// @Tags         obligations
// @Accept       json
// @Produce      json
// @Param        request body ObligationInput true "Obligation data"
// @Success      201 {object} Obligation
// @Failure      400 {object} api.ErrorResponse
// @Router       /obligations [post]
func (h *Handler) CreateObligation(c *gin.Context) {
	var in ObligationInput
	if err := c.ShouldBindJSON(&in); err != nil {
		api.BindError(c, err)
		return
	}

	o, err := h.service.CreateObligation(c.Request.Context(), in)
	if err != nil {
		h.respondMutationError(c, err)
		return
	}
	c.JSON(http.StatusCreated, o)
}

// GetObligation godoc
// @Summary      Get an obligation
// @Tags         obligations
// @Produce      json
// @Param        id path int true "Obligation ID"
// @Success      200 {object} Obligation
// @Failure      404 {object} api.ErrorResponse
// @Router       /obligations/{id} [get]
func (h *Handler) GetObligation(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	o, err := h.service.GetObligation(c.Request.Context(), id)
	if err != nil {
		h.respondMutationError(c, err)
		return
	}
	c.JSON(http.StatusOK, o)
}

// UpdateObligation godoc
// @Summary      Update an obligation's amounts and due date
// @Tags         obligations
// @Accept       json
// @Produce      json
// @Param        id path int true "Obligation ID"
// @Param        request body ObligationUpdate true "Updated fields"
// @Success      200 {object} Obligation
// @Failure      404 {object} api.ErrorResponse
// @Router       /obligations/{id} [put]
func (h *Handler) UpdateObligation(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	var in ObligationUpdate
	if err := c.ShouldBindJSON(&in); err != nil {
		api.BindError(c, err)
		return
	}

	o, err := h.service.UpdateObligation(c.Request.Context(), id, in)
	if err != nil {
		h.respondMutationError(c, err)
		return
	}
	c.JSON(http.StatusOK, o)
}

// DeleteObligation godoc
// @Summary      Delete an obligation
// @Tags         obligations
// @Produce      json
// @Param        id path int true "Obligation ID"
// @Success      200 {object} api.MessageResponse
// @Failure      404 {object} api.ErrorResponse
// @Router       /obligations/{id} [delete]
func (h *Handler) DeleteObligation(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	if err := h.service.DeleteObligation(c.Request.Context(), id); err != nil {
		h.respondMutationError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "obligation deleted"})
}

// ListObligations godoc
// @Summary      List obligations for a student or by status
// @Tags         obligations
// @Produce      json
// @Param        student_id query int false "Student ID"
// @Param        status query string false "Obligation status"
// @Success      200 {array} Obligation
// @Router       /obligations [get]
func (h *Handler) ListObligations(c *gin.Context) {
	if studentParam := c.Query("student_id"); studentParam != "" {
		studentID, err := strconv.Atoi(studentParam)
		if err != nil || studentID <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid student_id"})
			return
		}
		obs, err := h.service.ListObligationsByStudent(c.Request.Context(), studentID)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load obligations"})
			return
		}
		c.JSON(http.StatusOK, obs)
		return
	}

	status := Status(c.DefaultQuery("status", string(StatusPending)))
	obs, err := h.service.ListObligationsByStatus(c.Request.Context(), status)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load obligations"})
		return
	}
	c.JSON(http.StatusOK, obs)
}

// RecordPayment godoc
// @Summary      Record a payment
// @Tags         payments
// @Accept       json
// @Produce      json
// @Param        request body PaymentInput true "Payment data"
// @Success      201 {object} PaymentResult
// @Failure      400 {object} api.ErrorResponse
// @Router       /payments [post]
func (h *Handler) RecordPayment(c *gin.Context) {
	var in PaymentInput
	if err := c.ShouldBindJSON(&in); err != nil {
		api.BindError(c, err)
		return
	}
	if !in.Amount.IsPositive() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "amount must be positive"})
		return
	}

	result, err := h.service.RecordPayment(c.Request.Context(), in)
	if err != nil {
		h.respondMutationError(c, err)
		return
	}
	c.JSON(http.StatusCreated, result)
}

// GetPayment godoc
// @Summary      Get a payment
// @Tags         payments
// @Produce      json
// @Param        id path int true "Payment ID"
// @Success      200 {object} Payment
// @Failure      404 {object} api.ErrorResponse
// @Router       /payments/{id} [get]
func (h *Handler) GetPayment(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	p, err := h.service.GetPayment(c.Request.Context(), id)
	if err != nil {
		h.respondMutationError(c, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

// UpdatePayment godoc
// @Summary      Edit a payment
// @Tags         payments
// @Accept       json
// @Produce      json
// @Param        id path int true "Payment ID"
// @Param        request body PaymentUpdate true "Updated fields"
// @Success      200 {object} PaymentResult
// @Failure      404 {object} api.ErrorResponse
// @Router       /payments/{id} [put]
func (h *Handler) UpdatePayment(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	var in PaymentUpdate
	if err := c.ShouldBindJSON(&in); err != nil {
		api.BindError(c, err)
		return
	}
	if !in.Amount.IsPositive() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "amount must be positive"})
		return
	}

	result, err := h.service.UpdatePayment(c.Request.Context(), id, in)
	if err != nil {
		h.respondMutationError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// DeletePayment godoc
// @Summary      Delete a payment
// @Tags         payments
// @Produce      json
// @Param        id path int true "Payment ID"
// @Success      200 {object} api.MessageResponse
// @Failure      404 {object} api.ErrorResponse
// @Router       /payments/{id} [delete]
func (h *Handler) DeletePayment(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	if err := h.service.DeletePayment(c.Request.Context(), id); err != nil {
		h.respondMutationError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "payment deleted"})
}

// ListPaymentsForObligation godoc
// @Summary      List payments applied to an obligation
// @Tags         payments
// @Produce      json
// @Param        id path int true "Obligation ID"
// @Success      200 {array} Payment
// @Router       /obligations/{id}/payments [get]
func (h *Handler) ListPaymentsForObligation(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	payments, err := h.service.ListPaymentsForObligation(c.Request.Context(), id)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load payments"})
		return
	}
	c.JSON(http.StatusOK, payments)
}

// GetBalance godoc
// @Summary      Get a student's balance
// @Tags         students
// @Produce      json
// @Param        studentID path int true "Student ID"
// @Success      200 {object} StudentBalance
// @Router       /students/{studentID}/balance [get]
func (h *Handler) GetBalance(c *gin.Context) {
	studentID, ok := pathID(c, "studentID")
	if !ok {
		return
	}

	b, err := h.service.GetBalance(c.Request.Context(), studentID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load balance"})
		return
	}
	c.JSON(http.StatusOK, b)
}

// GetStatement godoc
// @Summary      Get a student's statement
// @Tags         students
// @Produce      json
// @Param        studentID path int true "Student ID"
// @Success      200 {object} Statement
// @Router       /students/{studentID}/statement [get]
func (h *Handler) GetStatement(c *gin.Context) {
	studentID, ok := pathID(c, "studentID")
	if !ok {
		return
	}

	st, err := h.service.Statement(c.Request.Context(), studentID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load statement"})
		return
	}
	c.JSON(http.StatusOK, st)
}

// Reconcile godoc
// @Summary      Force a full balance recomputation
// @Tags         students
// @Produce      json
// @Param        studentID path int true "Student ID"
// @Success      200 {object} StudentBalance
// @Failure      409 {object} api.ErrorResponse
// @Router       /admin/students/{studentID}/reconcile [post]
func (h *Handler) Reconcile(c *gin.Context) {
	studentID, ok := pathID(c, "studentID")
	if !ok {
		return
	}

	b, err := h.service.Reconcile(c.Request.Context(), studentID)
	if err != nil {
		h.respondMutationError(c, err)
		return
	}
	c.JSON(http.StatusOK, b)
}

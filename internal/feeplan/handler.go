package feeplan

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"clubledger/internal/api"
	"clubledger/internal/currency"
)

type Handler struct {
	repo    Repository
	service Service
}

func NewHandler(repo Repository, service Service) *Handler {
	return &Handler{repo: repo, service: service}
}

// CreatePlan godoc
// @Summary      Create a fee plan
// @Tags         plans
// @Accept       json
// @Produce      json
// @Param        request body CreatePlanRequest true "Plan data"
// @Success      201 {object} Plan
// @Failure      400 {object} api.ErrorResponse
// @Router       /plans [post]
func (h *Handler) CreatePlan(c *gin.Context) {
	var req CreatePlanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		api.BindError(c, err)
		return
	}
	if !req.BaseAmount.IsPositive() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "base_amount must be positive"})
		return
	}

	p, err := h.repo.CreatePlan(c.Request.Context(), req.ClubID, req.Name, req.BaseAmount, req.CurrencyCode)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create plan"})
		return
	}
	c.JSON(http.StatusCreated, p)
}

// ListPlans godoc
// @Summary      List a club's fee plans
// @Tags         plans
// @Produce      json
// @Param        club_id query int true "Club ID"
// @Success      200 {array} Plan
// @Router       /plans [get]
func (h *Handler) ListPlans(c *gin.Context) {
	clubID, err := strconv.Atoi(c.Query("club_id"))
	if err != nil || clubID <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid club_id"})
		return
	}

	plans, err := h.repo.ListPlansByClub(c.Request.Context(), clubID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load plans"})
		return
	}
	c.JSON(http.StatusOK, plans)
}

// GetPlan godoc
// @Summary      Get a fee plan
// @Tags         plans
// @Produce      json
// @Param        id path int true "Plan ID"
// @Success      200 {object} Plan
// @Failure      404 {object} api.ErrorResponse
// @Router       /plans/{id} [get]
func (h *Handler) GetPlan(c *gin.Context) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid plan id"})
		return
	}

	p, err := h.repo.GetPlan(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, ErrPlanNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "plan not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load plan"})
		return
	}
	c.JSON(http.StatusOK, p)
}

// SetPlanActive godoc
// @Summary      Activate or deactivate a plan
// @Tags         plans
// @Accept       json
// @Produce      json
// @Param        id path int true "Plan ID"
// @Success      200 {object} api.MessageResponse
// @Failure      404 {object} api.ErrorResponse
// @Router       /plans/{id}/active [put]
func (h *Handler) SetPlanActive(c *gin.Context) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid plan id"})
		return
	}

	var req struct {
		Active bool `json:"active"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		api.BindError(c, err)
		return
	}

	if err := h.repo.SetPlanActive(c.Request.Context(), id, req.Active); err != nil {
		if errors.Is(err, ErrPlanNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "plan not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to update plan"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "plan updated"})
}

// CreateAssignment godoc
// @Summary      Assign a student to a fee plan
// @Tags         assignments
// @Accept       json
// @Produce      json
// @Param        request body CreateAssignmentRequest true "Assignment data"
// @Success      201 {object} Assignment
// @Failure      400 {object} api.ErrorResponse
// @Router       /assignments [post]
func (h *Handler) CreateAssignment(c *gin.Context) {
	var req CreateAssignmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		api.BindError(c, err)
		return
	}

	// Reject a custom interval without a usable count up front.
	if _, err := req.Interval.Months(req.IntervalCount); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "custom interval requires interval_count >= 1"})
		return
	}

	a, err := h.repo.CreateAssignment(c.Request.Context(), req)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create assignment"})
		return
	}
	c.JSON(http.StatusCreated, a)
}

// GetAssignment godoc
// @Summary      Get a fee plan assignment
// @Tags         assignments
// @Produce      json
// @Param        id path int true "Assignment ID"
// @Success      200 {object} Assignment
// @Failure      404 {object} api.ErrorResponse
// @Router       /assignments/{id} [get]
func (h *Handler) GetAssignment(c *gin.Context) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid assignment id"})
		return
	}

	a, err := h.repo.GetAssignment(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, ErrAssignmentNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "assignment not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load assignment"})
		return
	}
	c.JSON(http.StatusOK, a)
}

// SetAssignmentActive godoc
// @Summary      Activate or deactivate an assignment
// @Tags         assignments
// @Accept       json
// @Produce      json
// @Param        id path int true "Assignment ID"
// @Success      200 {object} api.MessageResponse
// @Failure      404 {object} api.ErrorResponse
// @Router       /assignments/{id}/active [put]
func (h *Handler) SetAssignmentActive(c *gin.Context) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid assignment id"})
		return
	}

	var req struct {
		Active bool `json:"active"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		api.BindError(c, err)
		return
	}

	if err := h.repo.SetAssignmentActive(c.Request.Context(), id, req.Active); err != nil {
		if errors.Is(err, ErrAssignmentNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "assignment not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to update assignment"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "assignment updated"})
}

// GeneratePeriod godoc
// @Summary      Generate the next billing period for an assignment
// @Tags         assignments
// @Produce      json
// @Param        id path int true "Assignment ID"
// @Success      201 {object} ledger.Obligation
// @Failure      404 {object} api.ErrorResponse
// @Failure      422 {object} api.ErrorResponse
// @Router       /assignments/{id}/generate [post]
func (h *Handler) GeneratePeriod(c *gin.Context) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid assignment id"})
		return
	}

	ob, err := h.service.GeneratePeriod(c.Request.Context(), id)
	if err != nil {
		switch {
		case errors.Is(err, ErrAssignmentNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "assignment not found"})
		case errors.Is(err, ErrAssignmentInactive):
			c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "assignment is not active"})
		case errors.Is(err, ErrInvalidInterval):
			c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "assignment has an invalid interval"})
		case errors.Is(err, ErrPlanUnresolvable):
			c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "no amount can be resolved for this assignment"})
		case errors.Is(err, currency.ErrCurrencyNotFound):
			c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "assignment currency is not configured"})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to generate period"})
		}
		return
	}
	c.JSON(http.StatusCreated, ob)
}

// GenerateDue godoc
// @Summary      Generate periods for all assignments that are due
// @Tags         assignments
// @Produce      json
// @Param        as_of query string false "Generate up to this date (RFC 3339), defaults to now"
// @Success      200 {object} api.MessageResponse
// @Router       /admin/billing/generate-due [post]
func (h *Handler) GenerateDue(c *gin.Context) {
	asOf := time.Now()
	if raw := c.Query("as_of"); raw != "" {
		parsed, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "as_of must be RFC 3339"})
			return
		}
		asOf = parsed
	}

	generated, err := h.service.GenerateDue(c.Request.Context(), asOf)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to generate due periods"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"generated": generated})
}

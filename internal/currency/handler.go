package currency

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"

	"clubledger/internal/api"
	"clubledger/internal/logger"
)

type Handler struct {
	repo *Repository
}

func NewHandler(db *sqlx.DB) *Handler {
	return &Handler{repo: NewRepository(db)}
}

// ListActive godoc
// @Summary      List active currencies
// @Tags         currencies
// @Produce      json
// @Success      200 {array} Currency
// @Router       /currencies [get]
func (h *Handler) ListActive(c *gin.Context) {
	curs, err := h.repo.ListActive(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load currencies"})
		return
	}
	c.JSON(http.StatusOK, curs)
}

// GetDefault godoc
// @Summary      Get the default currency
// @Tags         currencies
// @Produce      json
// @Success      200 {object} Currency
// @Failure      404 {object} api.ErrorResponse
// @Router       /currencies/default [get]
func (h *Handler) GetDefault(c *gin.Context) {
	cur, err := h.repo.GetDefault(c.Request.Context())
	if err != nil {
		if errors.Is(err, ErrCurrencyNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "no default currency configured"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load default currency"})
		return
	}
	c.JSON(http.StatusOK, cur)
}

// Create godoc
// @Summary      Create a currency
// @Tags         currencies
// @Accept       json
// @Produce      json
// @Param        request body CreateCurrencyRequest true "Currency data"
// @Success      201 {object} Currency
// @Failure      400 {object} api.ErrorResponse
// @Router       /admin/currencies [post]
func (h *Handler) Create(c *gin.Context) {
	var req CreateCurrencyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		api.BindError(c, err)
		return
	}

	cur, err := h.repo.Create(c.Request.Context(), req.Code, req.Symbol, req.DecimalPlaces)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create currency"})
		return
	}
	c.JSON(http.StatusCreated, cur)
}

// SetDefault godoc
// @Summary      Set the default currency
// @Tags         currencies
// @Produce      json
// @Param        code path string true "Currency code"
// @Success      200 {object} api.MessageResponse
// @Failure      404 {object} api.ErrorResponse
// @Router       /admin/currencies/{code}/default [post]
func (h *Handler) SetDefault(c *gin.Context) {
	code := c.Param("code")

	if err := h.repo.SetDefault(c.Request.Context(), code); err != nil {
		if errors.Is(err, ErrCurrencyNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "currency not found"})
			return
		}
		logger.Errorf("failed to set default currency %s: %v", code, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to set default currency"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "default currency updated"})
}

// SetActive godoc
// @Summary      Activate or deactivate a currency
// @Tags         currencies
// @Accept       json
// @Produce      json
// @Param        code path string true "Currency code"
// @Success      200 {object} api.MessageResponse
// @Failure      409 {object} api.ErrorResponse
// @Router       /admin/currencies/{code}/active [put]
func (h *Handler) SetActive(c *gin.Context) {
	code := c.Param("code")

	var req struct {
		Active bool `json:"active"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		api.BindError(c, err)
		return
	}

	err := h.repo.SetActive(c.Request.Context(), code, req.Active)
	switch {
	case errors.Is(err, ErrCurrencyNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "currency not found"})
	case errors.Is(err, ErrDefaultCurrencyLocked):
		c.JSON(http.StatusConflict, gin.H{"error": "default currency cannot be deactivated"})
	case err != nil:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to update currency"})
	default:
		c.JSON(http.StatusOK, gin.H{"message": "currency updated"})
	}
}

// Delete godoc
// @Summary      Delete a currency
// @Tags         currencies
// @Produce      json
// @Param        code path string true "Currency code"
// @Success      200 {object} api.MessageResponse
// @Failure      409 {object} api.ErrorResponse
// @Router       /admin/currencies/{code} [delete]
func (h *Handler) Delete(c *gin.Context) {
	code := c.Param("code")

	err := h.repo.Delete(c.Request.Context(), code)
	switch {
	case errors.Is(err, ErrCurrencyNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "currency not found"})
	case errors.Is(err, ErrDefaultCurrencyLocked):
		c.JSON(http.StatusConflict, gin.H{"error": "default currency cannot be deleted"})
	case errors.Is(err, ErrCurrencyInUse):
		c.JSON(http.StatusConflict, gin.H{"error": "currency is still in use"})
	case err != nil:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to delete currency"})
	default:
		c.JSON(http.StatusOK, gin.H{"message": "currency deleted"})
	}
}

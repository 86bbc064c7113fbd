package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
)

// FieldError is one failed binding rule on a request payload.
type FieldError struct {
	Field   string `json:"field" example:"Amount"`
	Tag     string `json:"tag" example:"required"`
	Message string `json:"message" example:"Amount is required"`
}

// BindError answers a failed ShouldBindJSON. Validator failures come back
// field by field; anything else (malformed JSON, wrong types) as a plain
// error message.
func BindError(c *gin.Context, err error) {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	fields := make([]FieldError, 0, len(verrs))
	for _, fe := range verrs {
		fields = append(fields, FieldError{
			Field:   fe.Field(),
			Tag:     fe.Tag(),
			Message: fieldErrorMessage(fe),
		})
	}
	c.JSON(http.StatusBadRequest, gin.H{
		"error":   "validation failed",
		"details": fields,
	})
}

func fieldErrorMessage(err validator.FieldError) string {
	switch err.Tag() {
	case "required":
		return err.Field() + " is required"
	case "email":
		return err.Field() + " must be a valid email address"
	case "len":
		return err.Field() + " must be exactly " + err.Param() + " characters"
	case "oneof":
		return err.Field() + " must be one of: " + err.Param()
	case "min":
		return err.Field() + " must be at least " + err.Param() + " characters"
	case "gte":
		return err.Field() + " must be greater than or equal to " + err.Param()
	case "lte":
		return err.Field() + " must be less than or equal to " + err.Param()
	default:
		return err.Field() + " is invalid"
	}
}

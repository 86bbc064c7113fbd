package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type createPaymentBody struct {
	Amount string `json:"amount" binding:"required"`
	Method string `json:"method" binding:"required,oneof=cash transfer card"`
}

func bindThrough(t *testing.T, body string) *httptest.ResponseRecorder {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodPost, "/payments", strings.NewReader(body))
	c.Request.Header.Set("Content-Type", "application/json")

	var req createPaymentBody
	err := c.ShouldBindJSON(&req)
	require.Error(t, err)
	BindError(c, err)
	return w
}

func TestBindError_ReportsFailedFields(t *testing.T) {
	w := bindThrough(t, `{"method":"bitcoin"}`)

	assert.Equal(t, http.StatusBadRequest, w.Code)

	var resp struct {
		Error   string       `json:"error"`
		Details []FieldError `json:"details"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "validation failed", resp.Error)
	require.Len(t, resp.Details, 2)
	assert.Equal(t, "Amount", resp.Details[0].Field)
	assert.Equal(t, "Amount is required", resp.Details[0].Message)
	assert.Equal(t, "oneof", resp.Details[1].Tag)
	assert.Equal(t, "Method must be one of: cash transfer card", resp.Details[1].Message)
}

func TestBindError_MalformedJSONFallsBackToPlainError(t *testing.T) {
	w := bindThrough(t, `{"amount": `)

	assert.Equal(t, http.StatusBadRequest, w.Code)

	var resp struct {
		Error   string       `json:"error"`
		Details []FieldError `json:"details"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.NotEqual(t, "validation failed", resp.Error)
	assert.Empty(t, resp.Details)
}

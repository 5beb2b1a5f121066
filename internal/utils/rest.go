package utils

import (
	"github.com/gin-gonic/gin"

	"llm_billing_gateway/internal/apperr"
)

// ErrorBody is the OpenAI-compatible error envelope
type ErrorBody struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail describes one failed request
type ErrorDetail struct {
	Code    string  `json:"code"`
	Message string  `json:"message"`
	Type    string  `json:"type"`
	Param   *string `json:"param"`
	Details any     `json:"details,omitempty"`
}

// NewErrorBody renders err for a caller. Causes of internal errors are not exposed.
func NewErrorBody(err error) (int, ErrorBody) {
	e := apperr.From(err)
	return e.Kind.HTTPStatus(), ErrorBody{Error: ErrorDetail{
		Code:    e.Kind.Code(),
		Message: e.PublicMessage(),
		Type:    e.Kind.Type(),
		Details: e.Details,
	}}
}

// RespondWithError writes err as a JSON error and aborts the chain
func RespondWithError(c *gin.Context, err error) {
	status, body := NewErrorBody(err)
	if status >= 500 {
		NewLogger("http").Error("Request failed",
			"method", c.Request.Method,
			"path", c.FullPath(),
			"request_id", c.GetString(RequestIDKey),
			"error", err,
		)
	}
	c.AbortWithStatusJSON(status, body)
}

// RequestIDKey is the gin context key holding the request id
const RequestIDKey = "request_id"

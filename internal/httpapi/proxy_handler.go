package httpapi

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"llm_billing_gateway/internal/apperr"
	"llm_billing_gateway/internal/billing"
	"llm_billing_gateway/internal/middleware"
	"llm_billing_gateway/internal/utils"
)

// proxyRequest is the body of POST /proxy
type proxyRequest struct {
	APIKey  string         `json:"apiKey"`
	Payload map[string]any `json:"payload"`
}

// handleChat is the OpenAI-compatible entry point. The body is the payload and
// the key comes from the Authorization or X-API-Key header.
func (d *Dependencies) handleChat(c *gin.Context) {
	var payload map[string]any
	if err := c.ShouldBindJSON(&payload); err != nil {
		utils.RespondWithError(c, bindError(err))
		return
	}

	d.proxy(c, billing.ProxyRequest{
		APIKey:    middleware.APIKeyFromHeaders(c),
		Payload:   payload,
		RequestID: c.GetString(utils.RequestIDKey),
	})
}

// handleProxy accepts the key in the body alongside the payload
func (d *Dependencies) handleProxy(c *gin.Context) {
	var req proxyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.RespondWithError(c, bindError(err))
		return
	}

	d.proxy(c, billing.ProxyRequest{
		APIKey:    req.APIKey,
		Payload:   req.Payload,
		RequestID: c.GetString(utils.RequestIDKey),
	})
}

func (d *Dependencies) proxy(c *gin.Context, req billing.ProxyRequest) {
	result, err := d.Pipeline.ProxyChatCompletion(c.Request.Context(), req)
	if err != nil {
		var appErr *apperr.Error
		if errors.As(err, &appErr) && appErr.Kind == apperr.RateLimitExceeded {
			if details, ok := appErr.Details.(map[string]any); ok {
				c.Header("X-RateLimit-Limit", toString(details["limit"]))
				c.Header("X-RateLimit-Remaining", "0")
			}
		}
		utils.RespondWithError(c, err)
		return
	}

	c.Header("X-RateLimit-Limit", strconv.Itoa(result.Quota.Limit))
	c.Header("X-RateLimit-Remaining", strconv.Itoa(result.Quota.Remaining))
	c.Header("X-Credits-Cost", strconv.FormatInt(-result.Cost, 10))
	c.Header("X-Credits-Balance", strconv.FormatInt(result.Balance, 10))

	status := result.StatusCode
	if status == 0 {
		status = http.StatusOK
	}
	c.Data(status, "application/json", result.Body)
}

func bindError(err error) error {
	return apperr.Wrap(apperr.InvalidRequest, err, "invalid JSON body")
}

func toString(v any) string {
	if n, ok := v.(int); ok {
		return strconv.Itoa(n)
	}
	return ""
}

package middleware

import (
	"context"
	"strings"

	"github.com/gin-gonic/gin"

	"llm_billing_gateway/internal/apperr"
	"llm_billing_gateway/internal/models"
	"llm_billing_gateway/internal/utils"
)

// AccountKey is the gin context key for the authenticated account
const AccountKey = "account"

// KeyAuthorizer resolves a raw API key to the account that owns it
type KeyAuthorizer interface {
	Authorize(ctx context.Context, rawKey string) (*models.UserAccount, error)
}

// APIKeyFromHeaders extracts the key from X-API-Key or an Authorization bearer token
func APIKeyFromHeaders(c *gin.Context) string {
	if key := strings.TrimSpace(c.GetHeader("X-API-Key")); key != "" {
		return key
	}
	authHeader := c.GetHeader("Authorization")
	if strings.HasPrefix(authHeader, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer "))
	}
	return ""
}

// APIKeyMiddleware authenticates the caller by API key and stores the account in the context
func APIKeyMiddleware(authorizer KeyAuthorizer) gin.HandlerFunc {
	return func(c *gin.Context) {
		apiKey := APIKeyFromHeaders(c)
		if apiKey == "" {
			utils.RespondWithError(c, apperr.New(apperr.InvalidAPIKey, "missing API key"))
			return
		}

		account, err := authorizer.Authorize(c.Request.Context(), apiKey)
		if err != nil {
			utils.RespondWithError(c, err)
			return
		}

		c.Set(AccountKey, account)
		c.Next()
	}
}

// GetAccount retrieves the authenticated account from the context
func GetAccount(c *gin.Context) (*models.UserAccount, bool) {
	account, ok := c.Get(AccountKey)
	if !ok {
		return nil, false
	}
	a, ok := account.(*models.UserAccount)
	return a, ok
}

package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"llm_billing_gateway/internal/auth"
	"llm_billing_gateway/internal/utils"
)

// AdminClaimsKey is the gin context key for validated admin claims
const AdminClaimsKey = "adminClaims"

// AdminJWTMiddleware validates admin JWT tokens and enforces role-based access.
// With no required roles any valid token passes.
func AdminJWTMiddleware(secret []byte, requiredRoles ...auth.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenString := strings.TrimPrefix(c.GetHeader("Authorization"), "Bearer ")
		if tokenString == "" {
			respondAuth(c, http.StatusUnauthorized, "Missing authentication token")
			return
		}

		claims, err := auth.ValidateAdminJWT(tokenString, secret)
		if err != nil {
			respondAuth(c, http.StatusUnauthorized, "Invalid or expired token")
			return
		}

		if len(requiredRoles) > 0 {
			hasPermission := false
			for _, role := range requiredRoles {
				if claims.HasRole(role) {
					hasPermission = true
					break
				}
			}
			if !hasPermission {
				respondAuth(c, http.StatusForbidden, "Insufficient permissions")
				return
			}
		}

		c.Set(AdminClaimsKey, claims)
		c.Next()
	}
}

// GetAdminClaims retrieves the admin claims from the context
func GetAdminClaims(c *gin.Context) (*auth.AdminClaims, bool) {
	claims, ok := c.Get(AdminClaimsKey)
	if !ok {
		return nil, false
	}
	ac, ok := claims.(*auth.AdminClaims)
	return ac, ok
}

func respondAuth(c *gin.Context, status int, message string) {
	errType := "authentication_error"
	code := "unauthorized"
	if status == http.StatusForbidden {
		errType = "permission_error"
		code = "forbidden"
	}
	c.AbortWithStatusJSON(status, utils.ErrorBody{Error: utils.ErrorDetail{
		Code:    code,
		Message: message,
		Type:    errType,
	}})
}

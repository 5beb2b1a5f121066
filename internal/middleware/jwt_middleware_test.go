package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"llm_billing_gateway/internal/auth"
)

var testSecret = []byte("test-secret")

func newAdminRouter(t *testing.T) *gin.Engine {
	t.Helper()
	router := gin.New()
	ok := func(c *gin.Context) {
		claims, found := GetAdminClaims(c)
		if !assert.True(t, found) {
			c.Status(http.StatusInternalServerError)
			return
		}
		c.String(http.StatusOK, claims.Subject)
	}
	router.GET("/admin/any", AdminJWTMiddleware(testSecret), ok)
	router.GET("/admin/read", AdminJWTMiddleware(testSecret, auth.RoleViewer), ok)
	router.POST("/admin/write", AdminJWTMiddleware(testSecret, auth.RoleAdmin), ok)
	return router
}

func token(t *testing.T, secret []byte, ttl time.Duration, roles ...auth.Role) string {
	t.Helper()
	tok, _, err := auth.GenerateAdminJWT("ops", roles, ttl, secret)
	require.NoError(t, err)
	return tok
}

func TestAdminJWTMiddleware(t *testing.T) {
	router := newAdminRouter(t)

	tests := []struct {
		name       string
		method     string
		path       string
		token      string
		wantStatus int
	}{
		{"missing token", http.MethodGet, "/admin/any", "", http.StatusUnauthorized},
		{"garbage token", http.MethodGet, "/admin/any", "not-a-jwt", http.StatusUnauthorized},
		{"wrong secret", http.MethodGet, "/admin/any", token(t, []byte("other"), time.Hour, auth.RoleAdmin), http.StatusUnauthorized},
		{"expired", http.MethodGet, "/admin/any", token(t, testSecret, -time.Minute, auth.RoleAdmin), http.StatusUnauthorized},
		{"any role", http.MethodGet, "/admin/any", token(t, testSecret, time.Hour, auth.RoleViewer), http.StatusOK},
		{"viewer reads", http.MethodGet, "/admin/read", token(t, testSecret, time.Hour, auth.RoleViewer), http.StatusOK},
		{"admin reads", http.MethodGet, "/admin/read", token(t, testSecret, time.Hour, auth.RoleAdmin), http.StatusOK},
		{"viewer cannot write", http.MethodPost, "/admin/write", token(t, testSecret, time.Hour, auth.RoleViewer), http.StatusForbidden},
		{"admin writes", http.MethodPost, "/admin/write", token(t, testSecret, time.Hour, auth.RoleAdmin), http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, tt.path, nil)
			if tt.token != "" {
				req.Header.Set("Authorization", "Bearer "+tt.token)
			}
			w := httptest.NewRecorder()

			router.ServeHTTP(w, req)

			assert.Equal(t, tt.wantStatus, w.Code)
			if tt.wantStatus == http.StatusOK {
				assert.Equal(t, "ops", w.Body.String())
			}
		})
	}
}

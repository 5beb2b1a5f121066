package httpapi

import (
	"context"
	"net/http"
	"regexp"
	"runtime/debug"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"llm_billing_gateway/internal/accounts"
	"llm_billing_gateway/internal/apperr"
	"llm_billing_gateway/internal/auth"
	"llm_billing_gateway/internal/billing"
	"llm_billing_gateway/internal/metrics"
	"llm_billing_gateway/internal/middleware"
	"llm_billing_gateway/internal/utils"
)

// DefaultMaxBodyBytes caps request bodies
const DefaultMaxBodyBytes int64 = 4 << 20

// Dependencies aggregates all services the HTTP layer needs.
type Dependencies struct {
	Pipeline   *billing.Pipeline
	Accounts   *accounts.Service
	Reconciler *billing.Reconciler

	// Metrics is optional; without it /metrics is not served
	Metrics *metrics.Prometheus

	// HealthChecks are checked by /health, keyed by component name
	HealthChecks map[string]func(ctx context.Context) error

	logger *utils.Logger
}

// Config holds HTTP-layer settings
type Config struct {
	JWTSecret    []byte
	MaxBodyBytes int64
}

// NewRouter creates a gin engine with all routes wired up
func NewRouter(deps *Dependencies, cfg Config) *gin.Engine {
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = DefaultMaxBodyBytes
	}
	deps.logger = utils.NewLogger("http")

	router := gin.New()
	router.Use(requestIDMiddleware())
	router.Use(deps.metricsMiddleware())
	router.Use(bodySizeLimitMiddleware(cfg.MaxBodyBytes))
	router.Use(deps.loggingMiddleware())
	router.Use(deps.recoveryMiddleware())

	registerRoutes(router, deps, cfg)
	return router
}

func registerRoutes(router *gin.Engine, deps *Dependencies, cfg Config) {
	router.GET("/health", deps.handleHealth)
	if deps.Metrics != nil {
		router.GET("/metrics", gin.WrapH(deps.Metrics.Handler()))
	}

	// Metered proxy; the pipeline authenticates the key itself so quota is
	// only charged to resolved users.
	router.POST("/proxy", deps.handleProxy)

	v1 := router.Group("/v1")
	{
		v1.POST("/chat/completions", deps.handleChat)
		v1.GET("/models", deps.handleListModels)
		v1.GET("/balance", middleware.APIKeyMiddleware(deps.Pipeline), deps.handleOwnBalance)
		v1.POST("/register", middleware.AdminJWTMiddleware(cfg.JWTSecret, auth.RoleAdmin), deps.handleRegister)
	}

	viewer := middleware.AdminJWTMiddleware(cfg.JWTSecret, auth.RoleViewer)
	admin := middleware.AdminJWTMiddleware(cfg.JWTSecret, auth.RoleAdmin)

	adminGroup := router.Group("/admin")
	{
		adminGroup.POST("/users/:id/topups", admin, deps.handleTopUp)
		adminGroup.POST("/users/:id/keys/rotate", admin, deps.handleRotateKeys)
		adminGroup.POST("/users/:id/keys", admin, deps.handleGenerateKey)
		adminGroup.GET("/users/:id/balance", viewer, deps.handleUserBalance)
		adminGroup.GET("/users/:id/transactions", viewer, deps.handleUserTransactions)

		adminGroup.POST("/pricelists", admin, deps.handlePublishPriceList)

		adminGroup.GET("/reconciliation", viewer, deps.handleListReconciliation)
		adminGroup.DELETE("/reconciliation/:id", admin, deps.handleResolveReconciliation)
	}
}

func (d *Dependencies) handleHealth(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	status := http.StatusOK
	checks := make(map[string]string, len(d.HealthChecks))
	for name, check := range d.HealthChecks {
		if err := check(ctx); err != nil {
			status = http.StatusServiceUnavailable
			checks[name] = err.Error()
			continue
		}
		checks[name] = "ok"
	}

	state := "ok"
	if status != http.StatusOK {
		state = "degraded"
	}
	c.JSON(status, gin.H{"status": state, "checks": checks})
}

var requestIDPattern = regexp.MustCompile(`^[A-Za-z0-9._-]{1,64}$`)

func requestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetHeader("X-Request-ID")
		if !requestIDPattern.MatchString(requestID) {
			requestID = uuid.New().String()
		}
		c.Set(utils.RequestIDKey, requestID)
		c.Header("X-Request-ID", requestID)
		c.Next()
	}
}

func (d *Dependencies) metricsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if d.Metrics == nil {
			c.Next()
			return
		}
		start := time.Now()

		c.Next()

		// Route patterns keep path labels bounded
		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		d.Metrics.HTTPRequest(c.Request.Method, path, c.Writer.Status(), time.Since(start))
	}
}

func bodySizeLimitMiddleware(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		c.Next()
	}
}

func (d *Dependencies) loggingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path

		c.Next()

		d.logger.Info("Request completed",
			"method", c.Request.Method,
			"path", path,
			"status", c.Writer.Status(),
			"latency", time.Since(start),
			"request_id", c.GetString(utils.RequestIDKey),
			"client_ip", c.ClientIP(),
		)
	}
}

func (d *Dependencies) recoveryMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if r := recover(); r != nil {
				d.logger.Error("Panic recovered",
					"error", r,
					"stack", string(debug.Stack()),
					"request_id", c.GetString(utils.RequestIDKey),
				)
				utils.RespondWithError(c, apperr.New(apperr.Internal, ""))
			}
		}()
		c.Next()
	}
}

// parseUserID reads the :id path parameter
func parseUserID(c *gin.Context) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return uuid.Nil, apperr.Wrap(apperr.InvalidRequest, err, "user id must be a UUID")
	}
	return id, nil
}

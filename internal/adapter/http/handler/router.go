package handler

import (
	"net/http"

	"accounting-sync/internal/adapter/http/middleware"
	"accounting-sync/internal/core/ports"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// RouterDeps holds all dependencies needed to set up routes.
type RouterDeps struct {
	SyncSvc        ports.SyncService
	PaymentSvc     ports.SubscriptionPaymentService
	TokenSvc       ports.TokenService
	RateLimitStore middleware.RateLimitStore // nil = rate limiting disabled
	AuditSvc       ports.AuditService        // nil = audit logging disabled
	HTTPMetrics    middleware.HTTPObserver   // nil = no request metrics
	MetricsHandler http.Handler              // served at /metrics when set
	HealthCheckers []ports.HealthChecker
	MaxBodyBytes   int64
	Mode           string
	Logger         zerolog.Logger
}

// SetupRouter initialises the Gin engine with all routes and middleware.
func SetupRouter(deps RouterDeps) *gin.Engine {
	mode := deps.Mode
	if mode == "" {
		mode = gin.ReleaseMode
	}
	gin.SetMode(mode)
	r := gin.New()

	r.Use(middleware.RequestID())
	r.Use(middleware.Recovery(deps.Logger))
	r.Use(middleware.RequestLogger(deps.Logger))
	if deps.HTTPMetrics != nil {
		r.Use(middleware.Metrics(deps.HTTPMetrics))
	}
	if deps.MaxBodyBytes > 0 {
		r.Use(middleware.MaxBodySize(deps.MaxBodyBytes))
	}
	if deps.AuditSvc != nil {
		r.Use(middleware.AuditLog(deps.AuditSvc))
	}

	r.GET("/health", HealthCheck(deps.HealthCheckers...))
	if deps.MetricsHandler != nil {
		r.GET("/metrics", gin.WrapH(deps.MetricsHandler))
	}

	rules := middleware.DefaultRateLimitRules()
	rl := func(group string) gin.HandlerFunc {
		rule, ok := rules[group]
		if deps.RateLimitStore == nil || !ok {
			return func(c *gin.Context) { c.Next() }
		}
		return middleware.RateLimiter(deps.RateLimitStore, group, rule, deps.Logger)
	}

	jwtAuth := middleware.JWTAuth(deps.TokenSvc, deps.Logger)
	v1 := r.Group("/api/v1", jwtAuth)

	syncHandler := NewSyncHandler(deps.SyncSvc)
	v1.POST("/sync", rl("sync"), syncHandler.Sync)

	paymentHandler := NewSubscriptionPaymentHandler(deps.PaymentSvc)
	payments := v1.Group("/subscription-payments")
	{
		payments.POST("", rl("payments"), paymentHandler.Request)
		payments.POST("/:transactionId/status", rl("payments"), paymentHandler.UpdateStatus)
	}

	return r
}

package middleware

import (
	"encoding/json"
	"net/http"
	"time"

	"accounting-sync/internal/core/domain"
	"accounting-sync/internal/core/ports"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// AuditLog records successful write requests on audited routes. Routes are
// matched on their template, so path parameters do not matter.
func AuditLog(auditSvc ports.AuditService) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		status := c.Writer.Status()
		if status < 200 || status >= 300 {
			return
		}
		switch c.Request.Method {
		case http.MethodGet, http.MethodHead, http.MethodOptions:
			return
		}

		action, resourceType := mapRouteToAction(c.FullPath(), c.Request.Method)
		if action == "" {
			return
		}

		entry := &domain.AuditLog{
			ID:           uuid.New(),
			Action:       action,
			ResourceType: resourceType,
			ResourceID:   c.Param("transactionId"),
			IPAddress:    c.ClientIP(),
			CreatedAt:    time.Now().UTC(),
		}
		if scope, ok := Scope(c); ok {
			entry.CompanyID = &scope.CompanyID
			entry.UserID = &scope.UserID
		}

		details, _ := json.Marshal(map[string]any{
			"method": c.Request.Method,
			"path":   c.Request.URL.Path,
			"status": status,
		})
		entry.Details = string(details)

		auditSvc.Log(c.Request.Context(), entry)
	}
}

func mapRouteToAction(route, method string) (domain.AuditAction, string) {
	if method != http.MethodPost {
		return "", ""
	}
	switch route {
	case "/api/v1/subscription-payments", "/api/v1/subscription-payments/:transactionId/status":
		return domain.AuditActionPaymentEventPublish, "subscription_payment"
	}
	return "", ""
}

package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"accounting-sync/internal/core/domain"
	"accounting-sync/internal/core/ports/mocks"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func withScope(userID, companyID uuid.UUID) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(CtxUserID, userID)
		c.Set(CtxCompanyID, companyID)
		c.Next()
	}
}

func TestAuditLog_PaymentPublish(t *testing.T) {
	ctrl := gomock.NewController(t)
	mockAudit := mocks.NewMockAuditService(ctrl)
	userID, companyID := uuid.New(), uuid.New()

	var got *domain.AuditLog
	mockAudit.EXPECT().Log(gomock.Any(), gomock.Any()).Do(func(_ context.Context, entry *domain.AuditLog) {
		got = entry
	})

	r := gin.New()
	r.Use(withScope(userID, companyID), AuditLog(mockAudit))
	r.POST("/api/v1/subscription-payments/:transactionId/status", func(c *gin.Context) {
		c.Status(http.StatusAccepted)
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/v1/subscription-payments/txn_9/status", nil))

	assert.Equal(t, http.StatusAccepted, w.Code)
	require.NotNil(t, got)
	assert.Equal(t, domain.AuditActionPaymentEventPublish, got.Action)
	assert.Equal(t, "subscription_payment", got.ResourceType)
	assert.Equal(t, "txn_9", got.ResourceID)
	assert.Equal(t, companyID, *got.CompanyID)
	assert.Equal(t, userID, *got.UserID)
	assert.JSONEq(t, `{"method":"POST","path":"/api/v1/subscription-payments/txn_9/status","status":202}`, got.Details)
}

func TestAuditLog_Skips(t *testing.T) {
	tests := []struct {
		name   string
		method string
		route  string
		status int
	}{
		{"read request", http.MethodGet, "/api/v1/subscription-payments", http.StatusOK},
		{"failed request", http.MethodPost, "/api/v1/subscription-payments", http.StatusBadRequest},
		{"unaudited route", http.MethodPost, "/api/v1/sync", http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			mockAudit := mocks.NewMockAuditService(ctrl)

			r := gin.New()
			r.Use(AuditLog(mockAudit))
			r.Handle(tt.method, tt.route, func(c *gin.Context) { c.Status(tt.status) })

			w := httptest.NewRecorder()
			r.ServeHTTP(w, httptest.NewRequest(tt.method, tt.route, nil))
			assert.Equal(t, tt.status, w.Code)
		})
	}
}

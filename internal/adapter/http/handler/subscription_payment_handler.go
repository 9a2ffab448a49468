package handler

import (
	"accounting-sync/internal/adapter/http/dto"
	"accounting-sync/internal/adapter/http/middleware"
	"accounting-sync/internal/core/ports"
	"accounting-sync/pkg/apperror"
	"accounting-sync/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// SubscriptionPaymentHandler publishes subscription payment lifecycle events.
type SubscriptionPaymentHandler struct {
	paymentSvc ports.SubscriptionPaymentService
}

// NewSubscriptionPaymentHandler creates a new SubscriptionPaymentHandler.
func NewSubscriptionPaymentHandler(paymentSvc ports.SubscriptionPaymentService) *SubscriptionPaymentHandler {
	return &SubscriptionPaymentHandler{paymentSvc: paymentSvc}
}

// Request handles POST /api/v1/subscription-payments.
func (h *SubscriptionPaymentHandler) Request(c *gin.Context) {
	scope, ok := middleware.Scope(c)
	if !ok {
		response.Error(c, apperror.ErrInvalidToken())
		return
	}

	var req dto.SubscriptionPaymentRequest
	if err := bindJSON(c, &req); err != nil {
		response.Error(c, err)
		return
	}
	if req.TransactionID == "" {
		req.TransactionID = "txn_" + uuid.NewString()
	}

	env, err := h.paymentSvc.RequestPayment(c.Request.Context(), scope, req.ToPayment())
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Accepted(c, env)
}

// UpdateStatus handles POST /api/v1/subscription-payments/:transactionId/status.
func (h *SubscriptionPaymentHandler) UpdateStatus(c *gin.Context) {
	scope, ok := middleware.Scope(c)
	if !ok {
		response.Error(c, apperror.ErrInvalidToken())
		return
	}

	var req dto.PaymentStatusRequest
	if err := bindJSON(c, &req); err != nil {
		response.Error(c, err)
		return
	}

	env, err := h.paymentSvc.UpdateStatus(c.Request.Context(), scope, req.ToPayment(c.Param("transactionId")))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Accepted(c, env)
}

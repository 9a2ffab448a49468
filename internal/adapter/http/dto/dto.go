package dto

import (
	"accounting-sync/internal/core/domain"
)

// SyncRequest is the request body of POST /api/v1/sync.
type SyncRequest struct {
	Operations        []domain.SyncOperation `json:"operations" binding:"required"`
	LastSyncTimestamp string                 `json:"lastSyncTimestamp"`
	BatchID           string                 `json:"batchId,omitempty" binding:"omitempty,max=128,safe_id"`
}

// SubscriptionPaymentRequest is the request body of POST /api/v1/subscription-payments.
// A missing transactionId is generated.
type SubscriptionPaymentRequest struct {
	TransactionID string         `json:"transactionId,omitempty" binding:"omitempty,max=100,safe_id"`
	CustomerID    string         `json:"customerId" binding:"required,max=100"`
	PlanID        string         `json:"planId" binding:"required,max=100"`
	Amount        float64        `json:"amount" binding:"required,gt=0"`
	Currency      string         `json:"currency" binding:"required,iso4217"`
	PaymentMethod string         `json:"paymentMethod,omitempty" binding:"omitempty,max=50"`
	Provider      string         `json:"provider,omitempty" binding:"omitempty,max=50"`
	Metadata      map[string]any `json:"metadata,omitempty"`
}

// PaymentStatusRequest is the request body of
// POST /api/v1/subscription-payments/:transactionId/status.
type PaymentStatusRequest struct {
	Status        string         `json:"status" binding:"required"`
	Reason        string         `json:"reason,omitempty" binding:"omitempty,max=500"`
	CustomerID    string         `json:"customerId,omitempty" binding:"omitempty,max=100"`
	PlanID        string         `json:"planId,omitempty" binding:"omitempty,max=100"`
	Amount        float64        `json:"amount,omitempty" binding:"omitempty,gte=0"`
	Currency      string         `json:"currency,omitempty" binding:"omitempty,iso4217"`
	PaymentMethod string         `json:"paymentMethod,omitempty" binding:"omitempty,max=50"`
	Provider      string         `json:"provider,omitempty" binding:"omitempty,max=50"`
	Metadata      map[string]any `json:"metadata,omitempty"`
}

// ToPayment converts the request into the published payload.
func (r SubscriptionPaymentRequest) ToPayment() domain.SubscriptionPayment {
	return domain.SubscriptionPayment{
		TransactionID: r.TransactionID,
		CustomerID:    r.CustomerID,
		PlanID:        r.PlanID,
		Amount:        r.Amount,
		Currency:      r.Currency,
		PaymentMethod: r.PaymentMethod,
		Provider:      r.Provider,
		Metadata:      r.Metadata,
	}
}

// ToPayment converts the request into the published payload for transactionID.
func (r PaymentStatusRequest) ToPayment(transactionID string) domain.SubscriptionPayment {
	return domain.SubscriptionPayment{
		TransactionID: transactionID,
		CustomerID:    r.CustomerID,
		PlanID:        r.PlanID,
		Amount:        r.Amount,
		Currency:      r.Currency,
		PaymentMethod: r.PaymentMethod,
		Provider:      r.Provider,
		Status:        r.Status,
		Reason:        r.Reason,
		Metadata:      r.Metadata,
	}
}

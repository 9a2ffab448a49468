package dto

import (
	"testing"

	"accounting-sync/internal/core/domain"

	"github.com/gin-gonic/gin/binding"
	"github.com/stretchr/testify/assert"
)

func TestTrimStruct(t *testing.T) {
	req := PaymentStatusRequest{Status: "  success ", Reason: "\tcard ok\n", Amount: 5}
	TrimStruct(&req)

	assert.Equal(t, "success", req.Status)
	assert.Equal(t, "card ok", req.Reason)
	assert.Equal(t, 5.0, req.Amount)
}

func TestTrimStruct_IgnoresNonStructs(t *testing.T) {
	s := "  x  "
	assert.NotPanics(t, func() {
		TrimStruct(&s)
		TrimStruct(nil)
		TrimStruct(PaymentStatusRequest{})
	})
	assert.Equal(t, "  x  ", s)
}

func TestSubscriptionPaymentRequest_Validation(t *testing.T) {
	valid := SubscriptionPaymentRequest{CustomerID: "cus_1", PlanID: "pro", Amount: 49.9, Currency: "USD"}

	tests := []struct {
		name    string
		mutate  func(r *SubscriptionPaymentRequest)
		wantErr bool
	}{
		{"valid", func(*SubscriptionPaymentRequest) {}, false},
		{"valid explicit id", func(r *SubscriptionPaymentRequest) { r.TransactionID = "txn_2026.03-01" }, false},
		{"unsafe id", func(r *SubscriptionPaymentRequest) { r.TransactionID = "txn 1; drop" }, true},
		{"zero amount", func(r *SubscriptionPaymentRequest) { r.Amount = 0 }, true},
		{"negative amount", func(r *SubscriptionPaymentRequest) { r.Amount = -1 }, true},
		{"bad currency", func(r *SubscriptionPaymentRequest) { r.Currency = "DOLLARS" }, true},
		{"missing customer", func(r *SubscriptionPaymentRequest) { r.CustomerID = "" }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := valid
			tt.mutate(&req)
			err := binding.Validator.ValidateStruct(&req)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestSyncRequest_Validation(t *testing.T) {
	assert.Error(t, binding.Validator.ValidateStruct(&SyncRequest{}), "operations must be present")
	assert.NoError(t, binding.Validator.ValidateStruct(&SyncRequest{Operations: []domain.SyncOperation{}}))
}

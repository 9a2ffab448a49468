package domain

import (
	"time"

	"github.com/google/uuid"
)

// AccountType is the chart-of-accounts class.
type AccountType string

const (
	AccountTypeAsset     AccountType = "ASSET"
	AccountTypeLiability AccountType = "LIABILITY"
	AccountTypeEquity    AccountType = "EQUITY"
	AccountTypeRevenue   AccountType = "REVENUE"
	AccountTypeExpense   AccountType = "EXPENSE"
)

// Account is a chart-of-accounts entry. BankDetails is stored encrypted.
type Account struct {
	ID          uuid.UUID         `json:"id"`
	CompanyID   uuid.UUID         `json:"companyId"`
	Code        string            `json:"code"`
	Name        string            `json:"name"`
	Type        AccountType       `json:"type"`
	Currency    string            `json:"currency"`
	ParentID    *uuid.UUID        `json:"parentId,omitempty"`
	Description string            `json:"description,omitempty"`
	BankDetails map[string]string `json:"bankDetails,omitempty"`
	Version     int64             `json:"version"`
	CreatedBy   uuid.UUID         `json:"createdBy"`
	CreatedAt   time.Time         `json:"createdAt"`
	UpdatedAt   time.Time         `json:"updatedAt"`
	DeletedAt   *time.Time        `json:"deletedAt,omitempty"`
}

package domain

import (
	"time"

	"github.com/google/uuid"
)

// Organization is a legal entity belonging to a company. TaxID is stored encrypted.
type Organization struct {
	ID           uuid.UUID      `json:"id"`
	CompanyID    uuid.UUID      `json:"companyId"`
	Name         string         `json:"name"`
	LegalName    string         `json:"legalName,omitempty"`
	TaxID        string         `json:"taxId,omitempty"`
	Address      string         `json:"address,omitempty"`
	ContactEmail string         `json:"contactEmail,omitempty"`
	Settings     map[string]any `json:"settings,omitempty"`
	Version      int64          `json:"version"`
	CreatedBy    uuid.UUID      `json:"createdBy"`
	CreatedAt    time.Time      `json:"createdAt"`
	UpdatedAt    time.Time      `json:"updatedAt"`
	DeletedAt    *time.Time     `json:"deletedAt,omitempty"`
}

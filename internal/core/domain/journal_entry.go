package domain

import (
	"time"

	"github.com/google/uuid"
)

// JournalStatus is the posting state of a journal entry.
type JournalStatus string

const (
	JournalStatusDraft  JournalStatus = "DRAFT"
	JournalStatusPosted JournalStatus = "POSTED"
)

// JournalLine is one debit or credit leg, in minor currency units.
type JournalLine struct {
	AccountID uuid.UUID `json:"accountId"`
	Debit     int64     `json:"debit"`
	Credit    int64     `json:"credit"`
	Memo      string    `json:"memo,omitempty"`
}

// JournalEntry is a balanced set of lines. Notes is stored encrypted.
type JournalEntry struct {
	ID          uuid.UUID     `json:"id"`
	CompanyID   uuid.UUID     `json:"companyId"`
	Reference   string        `json:"reference"`
	EntryDate   time.Time     `json:"entryDate"`
	Description string        `json:"description,omitempty"`
	Status      JournalStatus `json:"status"`
	Lines       []JournalLine `json:"lines"`
	Notes       string        `json:"notes,omitempty"`
	Version     int64         `json:"version"`
	CreatedBy   uuid.UUID     `json:"createdBy"`
	CreatedAt   time.Time     `json:"createdAt"`
	UpdatedAt   time.Time     `json:"updatedAt"`
	DeletedAt   *time.Time    `json:"deletedAt,omitempty"`
}

// IsPosted reports whether the entry can no longer change.
func (j *JournalEntry) IsPosted() bool {
	return j.Status == JournalStatusPosted
}

// Totals returns the sum of debits and credits.
func (j *JournalEntry) Totals() (debit, credit int64) {
	for _, l := range j.Lines {
		debit += l.Debit
		credit += l.Credit
	}
	return debit, credit
}

// IsBalanced reports whether debits equal credits and the entry is non-empty.
func (j *JournalEntry) IsBalanced() bool {
	debit, credit := j.Totals()
	return debit > 0 && debit == credit
}

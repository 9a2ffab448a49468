package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"accounting-sync/internal/core/domain"
	"accounting-sync/internal/core/ports"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

type journalLinePayload struct {
	AccountID uuid.UUID `json:"accountId" validate:"required"`
	Debit     int64     `json:"debit" validate:"gte=0"`
	Credit    int64     `json:"credit" validate:"gte=0"`
	Memo      string    `json:"memo" validate:"max=255"`
}

type journalEntryPayload struct {
	ID          *uuid.UUID           `json:"id"`
	Reference   string               `json:"reference" validate:"required,max=64"`
	EntryDate   time.Time            `json:"entryDate" validate:"required"`
	Description string               `json:"description" validate:"max=1000"`
	Status      domain.JournalStatus `json:"status" validate:"omitempty,oneof=DRAFT POSTED"`
	Lines       []journalLinePayload `json:"lines" validate:"required,min=2,dive"`
	Notes       string               `json:"notes"`
	Version     *int64               `json:"version"`
}

// JournalEntryService applies JOURNAL_ENTRY sync operations. Headers and
// lines are written in one database transaction.
type JournalEntryService struct {
	repo       ports.JournalEntryRepository
	accounts   ports.AccountRepository
	transactor ports.DBTransactor
	log        zerolog.Logger
	now        func() time.Time
}

// NewJournalEntryService creates a new JournalEntryService.
func NewJournalEntryService(
	repo ports.JournalEntryRepository,
	accounts ports.AccountRepository,
	transactor ports.DBTransactor,
	log zerolog.Logger,
) *JournalEntryService {
	return &JournalEntryService{
		repo:       repo,
		accounts:   accounts,
		transactor: transactor,
		log:        log,
		now:        time.Now,
	}
}

func (s *JournalEntryService) Entity() domain.EntityType { return domain.EntityJournalEntry }

// Create inserts a balanced journal entry.
func (s *JournalEntryService) Create(ctx context.Context, scope domain.SyncScope, data json.RawMessage) (*domain.Mutation, error) {
	var p journalEntryPayload
	if err := decodeStrict(domain.EntityJournalEntry, data, &p); err != nil {
		return nil, err
	}

	now := s.now().UTC()
	entry := &domain.JournalEntry{
		ID:        uuid.New(),
		CompanyID: scope.CompanyID,
		Status:    domain.JournalStatusDraft,
		Version:   1,
		CreatedBy: scope.UserID,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if p.ID != nil {
		entry.ID = *p.ID
	}
	p.applyTo(entry)

	if err := s.validateLines(ctx, scope.CompanyID, entry); err != nil {
		return nil, err
	}

	dbTx, err := s.transactor.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	if err := s.repo.Create(ctx, dbTx, entry); err != nil {
		return nil, fmt.Errorf("creating journal entry: %w", err)
	}
	if err := dbTx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}

	return &domain.Mutation{ServerID: entry.ID.String(), Version: entry.Version}, nil
}

// Update replaces a draft entry. Posted entries are immutable.
func (s *JournalEntryService) Update(ctx context.Context, scope domain.SyncScope, data json.RawMessage) (*domain.Mutation, error) {
	var p journalEntryPayload
	if err := decodeStrict(domain.EntityJournalEntry, data, &p); err != nil {
		return nil, err
	}
	if p.ID == nil {
		return nil, &domain.ValidationError{Entity: domain.EntityJournalEntry, Reason: "id is required"}
	}

	dbTx, err := s.transactor.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	existing, err := s.repo.GetByIDForUpdate(ctx, dbTx, scope.CompanyID, *p.ID)
	if err != nil {
		return nil, fmt.Errorf("loading journal entry: %w", err)
	}
	if existing == nil {
		return nil, notFound(domain.EntityJournalEntry, *p.ID)
	}
	if err := checkVersion(domain.EntityJournalEntry, existing.ID, p.Version, existing.Version, existing); err != nil {
		return nil, err
	}
	if existing.IsPosted() {
		return nil, fmt.Errorf("journal entry %s is posted: %w", existing.ID, domain.ErrImmutable)
	}

	expected := existing.Version
	updated := *existing
	p.applyTo(&updated)
	updated.Version = expected + 1
	updated.UpdatedAt = s.now().UTC()

	if err := s.validateLines(ctx, scope.CompanyID, &updated); err != nil {
		return nil, err
	}

	if err := s.repo.Update(ctx, dbTx, &updated, expected); err != nil {
		return nil, fmt.Errorf("updating journal entry: %w", err)
	}
	if err := dbTx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}

	return &domain.Mutation{ServerID: updated.ID.String(), Version: updated.Version}, nil
}

// Delete soft-deletes a draft entry.
func (s *JournalEntryService) Delete(ctx context.Context, scope domain.SyncScope, data json.RawMessage) (*domain.Mutation, error) {
	ref, err := decodeRef(domain.EntityJournalEntry, data)
	if err != nil {
		return nil, err
	}

	dbTx, err := s.transactor.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	existing, err := s.repo.GetByIDForUpdate(ctx, dbTx, scope.CompanyID, ref.ID)
	if err != nil {
		return nil, fmt.Errorf("loading journal entry: %w", err)
	}
	if existing == nil {
		// Already deleted or never synced: replays succeed.
		return &domain.Mutation{ServerID: ref.ID.String()}, nil
	}
	if err := checkVersion(domain.EntityJournalEntry, existing.ID, ref.Version, existing.Version, existing); err != nil {
		return nil, err
	}
	if existing.IsPosted() {
		return nil, fmt.Errorf("journal entry %s is posted: %w", existing.ID, domain.ErrImmutable)
	}

	if err := s.repo.SoftDelete(ctx, dbTx, scope.CompanyID, existing.ID, existing.Version); err != nil {
		return nil, fmt.Errorf("deleting journal entry: %w", err)
	}
	if err := dbTx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}

	return &domain.Mutation{ServerID: existing.ID.String(), Version: existing.Version + 1}, nil
}

// ChangedSince lists journal entry mutations at or after since.
func (s *JournalEntryService) ChangedSince(ctx context.Context, companyID uuid.UUID, since time.Time) ([]domain.SyncChange, error) {
	entries, err := s.repo.FindChangedSince(ctx, companyID, since)
	if err != nil {
		return nil, fmt.Errorf("listing changed journal entries: %w", err)
	}

	changes := make([]domain.SyncChange, 0, len(entries))
	for i := range entries {
		e := entries[i]
		changes = append(changes, domain.SyncChange{
			Type:   domain.ChangeType(e.CreatedAt, e.DeletedAt, since),
			Entity: domain.EntityJournalEntry,
			ID:     e.ID.String(),
			Data:   e,
		})
	}
	return changes, nil
}

// validateLines enforces double-entry rules and that every line account
// belongs to the company.
func (s *JournalEntryService) validateLines(ctx context.Context, companyID uuid.UUID, e *domain.JournalEntry) error {
	invalid := func(reason string) error {
		return &domain.ValidationError{Entity: domain.EntityJournalEntry, Reason: reason}
	}

	if len(e.Lines) < 2 {
		return invalid("at least two lines are required")
	}

	seen := make(map[uuid.UUID]struct{}, len(e.Lines))
	ids := make([]uuid.UUID, 0, len(e.Lines))
	for i, l := range e.Lines {
		if (l.Debit > 0) == (l.Credit > 0) {
			return invalid(fmt.Sprintf("line %d must have exactly one of debit or credit", i))
		}
		if _, ok := seen[l.AccountID]; !ok {
			seen[l.AccountID] = struct{}{}
			ids = append(ids, l.AccountID)
		}
	}

	if !e.IsBalanced() {
		debit, credit := e.Totals()
		return invalid(fmt.Sprintf("entry is unbalanced: debit %d, credit %d", debit, credit))
	}

	n, err := s.accounts.CountExisting(ctx, companyID, ids)
	if err != nil {
		return fmt.Errorf("checking line accounts: %w", err)
	}
	if n != len(ids) {
		return invalid("one or more line accounts do not exist")
	}
	return nil
}

func (p *journalEntryPayload) applyTo(e *domain.JournalEntry) {
	e.Reference = p.Reference
	e.EntryDate = p.EntryDate.UTC()
	e.Description = p.Description
	if p.Status != "" {
		e.Status = p.Status
	}
	e.Notes = p.Notes
	e.Lines = make([]domain.JournalLine, len(p.Lines))
	for i, l := range p.Lines {
		e.Lines[i] = domain.JournalLine{
			AccountID: l.AccountID,
			Debit:     l.Debit,
			Credit:    l.Credit,
			Memo:      l.Memo,
		}
	}
}

package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"accounting-sync/internal/core/domain"
	"accounting-sync/internal/core/ports"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

type accountPayload struct {
	ID          *uuid.UUID         `json:"id"`
	Code        string             `json:"code" validate:"required,max=32"`
	Name        string             `json:"name" validate:"required,max=255"`
	Type        domain.AccountType `json:"type" validate:"required,oneof=ASSET LIABILITY EQUITY REVENUE EXPENSE"`
	Currency    string             `json:"currency" validate:"required,iso4217"`
	ParentID    *uuid.UUID         `json:"parentId"`
	Description string             `json:"description" validate:"max=1000"`
	BankDetails map[string]string  `json:"bankDetails"`
	Version     *int64             `json:"version"`
}

// AccountService applies ACCOUNT sync operations.
type AccountService struct {
	repo ports.AccountRepository
	log  zerolog.Logger
	now  func() time.Time
}

// NewAccountService creates a new AccountService.
func NewAccountService(repo ports.AccountRepository, log zerolog.Logger) *AccountService {
	return &AccountService{repo: repo, log: log, now: time.Now}
}

func (s *AccountService) Entity() domain.EntityType { return domain.EntityAccount }

// Create inserts a new account. A client-generated id is kept.
func (s *AccountService) Create(ctx context.Context, scope domain.SyncScope, data json.RawMessage) (*domain.Mutation, error) {
	var p accountPayload
	if err := decodeStrict(domain.EntityAccount, data, &p); err != nil {
		return nil, err
	}

	now := s.now().UTC()
	account := &domain.Account{
		ID:        uuid.New(),
		CompanyID: scope.CompanyID,
		Version:   1,
		CreatedBy: scope.UserID,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if p.ID != nil {
		account.ID = *p.ID
	}
	p.applyTo(account)

	if err := s.validateParent(ctx, scope.CompanyID, account); err != nil {
		return nil, err
	}

	if err := s.repo.Create(ctx, account); err != nil {
		return nil, fmt.Errorf("creating account: %w", err)
	}

	return &domain.Mutation{ServerID: account.ID.String(), Version: account.Version}, nil
}

// Update replaces the mutable fields of an account.
func (s *AccountService) Update(ctx context.Context, scope domain.SyncScope, data json.RawMessage) (*domain.Mutation, error) {
	var p accountPayload
	if err := decodeStrict(domain.EntityAccount, data, &p); err != nil {
		return nil, err
	}
	if p.ID == nil {
		return nil, &domain.ValidationError{Entity: domain.EntityAccount, Reason: "id is required"}
	}

	existing, err := s.repo.GetByID(ctx, scope.CompanyID, *p.ID)
	if err != nil {
		return nil, fmt.Errorf("loading account: %w", err)
	}
	if existing == nil {
		return nil, notFound(domain.EntityAccount, *p.ID)
	}
	if err := checkVersion(domain.EntityAccount, existing.ID, p.Version, existing.Version, existing); err != nil {
		return nil, err
	}

	expected := existing.Version
	updated := *existing
	p.applyTo(&updated)
	updated.Version = expected + 1
	updated.UpdatedAt = s.now().UTC()

	if err := s.validateParent(ctx, scope.CompanyID, &updated); err != nil {
		return nil, err
	}

	if err := s.repo.Update(ctx, &updated, expected); err != nil {
		if errors.Is(err, domain.ErrVersionConflict) {
			return nil, s.raceConflict(ctx, scope.CompanyID, existing.ID, expected)
		}
		return nil, fmt.Errorf("updating account: %w", err)
	}

	return &domain.Mutation{ServerID: updated.ID.String(), Version: updated.Version}, nil
}

// Delete soft-deletes an account.
func (s *AccountService) Delete(ctx context.Context, scope domain.SyncScope, data json.RawMessage) (*domain.Mutation, error) {
	ref, err := decodeRef(domain.EntityAccount, data)
	if err != nil {
		return nil, err
	}

	existing, err := s.repo.GetByID(ctx, scope.CompanyID, ref.ID)
	if err != nil {
		return nil, fmt.Errorf("loading account: %w", err)
	}
	if existing == nil {
		// Already deleted or never synced: replays succeed.
		return &domain.Mutation{ServerID: ref.ID.String()}, nil
	}
	if err := checkVersion(domain.EntityAccount, existing.ID, ref.Version, existing.Version, existing); err != nil {
		return nil, err
	}

	if err := s.repo.SoftDelete(ctx, scope.CompanyID, existing.ID, existing.Version); err != nil {
		if errors.Is(err, domain.ErrVersionConflict) {
			return nil, s.raceConflict(ctx, scope.CompanyID, existing.ID, existing.Version)
		}
		return nil, fmt.Errorf("deleting account: %w", err)
	}

	return &domain.Mutation{ServerID: existing.ID.String(), Version: existing.Version + 1}, nil
}

// ChangedSince lists account mutations at or after since.
func (s *AccountService) ChangedSince(ctx context.Context, companyID uuid.UUID, since time.Time) ([]domain.SyncChange, error) {
	accounts, err := s.repo.FindChangedSince(ctx, companyID, since)
	if err != nil {
		return nil, fmt.Errorf("listing changed accounts: %w", err)
	}

	changes := make([]domain.SyncChange, 0, len(accounts))
	for i := range accounts {
		a := accounts[i]
		changes = append(changes, domain.SyncChange{
			Type:   domain.ChangeType(a.CreatedAt, a.DeletedAt, since),
			Entity: domain.EntityAccount,
			ID:     a.ID.String(),
			Data:   a,
		})
	}
	return changes, nil
}

func (s *AccountService) validateParent(ctx context.Context, companyID uuid.UUID, a *domain.Account) error {
	if a.ParentID == nil {
		return nil
	}
	if *a.ParentID == a.ID {
		return &domain.ValidationError{Entity: domain.EntityAccount, Reason: "account cannot be its own parent"}
	}
	n, err := s.repo.CountExisting(ctx, companyID, []uuid.UUID{*a.ParentID})
	if err != nil {
		return fmt.Errorf("checking parent account: %w", err)
	}
	if n != 1 {
		return &domain.ValidationError{Entity: domain.EntityAccount, Reason: "parent account does not exist"}
	}
	return nil
}

// raceConflict builds the conflict for a row that changed between read and write.
func (s *AccountService) raceConflict(ctx context.Context, companyID, id uuid.UUID, clientVersion int64) error {
	current, err := s.repo.GetByID(ctx, companyID, id)
	if err != nil || current == nil {
		s.log.Warn().Err(err).Str("account_id", id.String()).Msg("reloading account after version race")
		return fmt.Errorf("account %s: %w", id, domain.ErrVersionConflict)
	}
	return &domain.ConflictError{
		Entity:        domain.EntityAccount,
		ServerID:      id.String(),
		ClientVersion: clientVersion,
		ServerVersion: current.Version,
		ServerData:    current,
	}
}

func (p *accountPayload) applyTo(a *domain.Account) {
	a.Code = p.Code
	a.Name = p.Name
	a.Type = p.Type
	a.Currency = p.Currency
	a.ParentID = p.ParentID
	a.Description = p.Description
	a.BankDetails = p.BankDetails
}

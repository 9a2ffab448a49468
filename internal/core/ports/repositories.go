package ports

//go:generate mockgen -destination=mocks/mock_repositories.go -package=mocks accounting-sync/internal/core/ports AccountRepository,JournalEntryRepository,OrganizationRepository,AuditRepository,DBTransactor

import (
	"context"
	"time"

	"accounting-sync/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// AccountRepository defines persistence operations for chart-of-accounts rows.
// Lookups return nil, nil when the row does not exist in the company.
// Update and SoftDelete return domain.ErrVersionConflict when the stored
// version no longer equals expectedVersion.
type AccountRepository interface {
	Create(ctx context.Context, account *domain.Account) error
	GetByID(ctx context.Context, companyID, id uuid.UUID) (*domain.Account, error)
	Update(ctx context.Context, account *domain.Account, expectedVersion int64) error
	SoftDelete(ctx context.Context, companyID, id uuid.UUID, expectedVersion int64) error
	// CountExisting returns how many of ids are live accounts of the company.
	CountExisting(ctx context.Context, companyID uuid.UUID, ids []uuid.UUID) (int, error)
	FindChangedSince(ctx context.Context, companyID uuid.UUID, since time.Time) ([]domain.Account, error)
}

// JournalEntryRepository defines persistence operations for journal entries.
// Methods accepting pgx.Tx write the entry header and its lines atomically.
type JournalEntryRepository interface {
	Create(ctx context.Context, tx pgx.Tx, entry *domain.JournalEntry) error
	GetByID(ctx context.Context, companyID, id uuid.UUID) (*domain.JournalEntry, error)
	GetByIDForUpdate(ctx context.Context, tx pgx.Tx, companyID, id uuid.UUID) (*domain.JournalEntry, error)
	Update(ctx context.Context, tx pgx.Tx, entry *domain.JournalEntry, expectedVersion int64) error
	SoftDelete(ctx context.Context, tx pgx.Tx, companyID, id uuid.UUID, expectedVersion int64) error
	FindChangedSince(ctx context.Context, companyID uuid.UUID, since time.Time) ([]domain.JournalEntry, error)
}

// OrganizationRepository defines persistence operations for organizations.
type OrganizationRepository interface {
	Create(ctx context.Context, org *domain.Organization) error
	GetByID(ctx context.Context, companyID, id uuid.UUID) (*domain.Organization, error)
	Update(ctx context.Context, org *domain.Organization, expectedVersion int64) error
	SoftDelete(ctx context.Context, companyID, id uuid.UUID, expectedVersion int64) error
	FindChangedSince(ctx context.Context, companyID uuid.UUID, since time.Time) ([]domain.Organization, error)
}

// AuditRepository persists audit entries.
type AuditRepository interface {
	Create(ctx context.Context, log *domain.AuditLog) error
}

// DBTransactor provides database transaction management.
type DBTransactor interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"accounting-sync/internal/core/domain"
	"accounting-sync/internal/core/ports"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const accountColumns = `id, company_id, code, name, type, currency, parent_id, description,
	bank_details, version, created_by, created_at, updated_at, deleted_at`

// AccountRepo implements ports.AccountRepository. bank_details is sealed.
type AccountRepo struct {
	pool Pool
	seal sealer
}

// NewAccountRepo creates a new AccountRepo.
func NewAccountRepo(pool Pool, enc ports.EncryptionService) *AccountRepo {
	return &AccountRepo{pool: pool, seal: sealer{enc: enc}}
}

// Create inserts a new account.
func (r *AccountRepo) Create(ctx context.Context, a *domain.Account) error {
	bank, err := r.sealBankDetails(a)
	if err != nil {
		return err
	}

	query := `INSERT INTO accounts (` + accountColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`

	_, err = r.pool.Exec(ctx, query,
		a.ID, a.CompanyID, a.Code, a.Name, string(a.Type), a.Currency, a.ParentID,
		a.Description, bank, a.Version, a.CreatedBy, a.CreatedAt, a.UpdatedAt, a.DeletedAt,
	)
	if err != nil {
		return fmt.Errorf("insert account: %w", err)
	}
	return nil
}

// GetByID fetches a live account of the company.
func (r *AccountRepo) GetByID(ctx context.Context, companyID, id uuid.UUID) (*domain.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts
		WHERE company_id = $1 AND id = $2 AND deleted_at IS NULL`

	a, err := r.scan(r.pool.QueryRow(ctx, query, companyID, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get account by id: %w", err)
	}
	return a, nil
}

// Update replaces the mutable fields when the stored version equals expectedVersion.
func (r *AccountRepo) Update(ctx context.Context, a *domain.Account, expectedVersion int64) error {
	bank, err := r.sealBankDetails(a)
	if err != nil {
		return err
	}

	query := `UPDATE accounts SET code = $1, name = $2, type = $3, currency = $4, parent_id = $5,
		description = $6, bank_details = $7, version = $8, updated_at = $9
		WHERE company_id = $10 AND id = $11 AND version = $12 AND deleted_at IS NULL`

	tag, err := r.pool.Exec(ctx, query,
		a.Code, a.Name, string(a.Type), a.Currency, a.ParentID, a.Description, bank,
		a.Version, a.UpdatedAt, a.CompanyID, a.ID, expectedVersion,
	)
	if err != nil {
		return fmt.Errorf("update account: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrVersionConflict
	}
	return nil
}

// SoftDelete tombstones the account and bumps its version.
func (r *AccountRepo) SoftDelete(ctx context.Context, companyID, id uuid.UUID, expectedVersion int64) error {
	query := `UPDATE accounts SET deleted_at = NOW(), updated_at = NOW(), version = version + 1
		WHERE company_id = $1 AND id = $2 AND version = $3 AND deleted_at IS NULL`

	tag, err := r.pool.Exec(ctx, query, companyID, id, expectedVersion)
	if err != nil {
		return fmt.Errorf("soft delete account: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrVersionConflict
	}
	return nil
}

// CountExisting counts the live accounts of the company among ids.
func (r *AccountRepo) CountExisting(ctx context.Context, companyID uuid.UUID, ids []uuid.UUID) (int, error) {
	if len(ids) == 0 {
		return 0, nil
	}

	query := `SELECT COUNT(*) FROM accounts
		WHERE company_id = $1 AND id = ANY($2) AND deleted_at IS NULL`

	var n int
	if err := r.pool.QueryRow(ctx, query, companyID, ids).Scan(&n); err != nil {
		return 0, fmt.Errorf("count accounts: %w", err)
	}
	return n, nil
}

// FindChangedSince returns accounts touched at or after since, tombstones included.
func (r *AccountRepo) FindChangedSince(ctx context.Context, companyID uuid.UUID, since time.Time) ([]domain.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts
		WHERE company_id = $1 AND updated_at >= $2
		ORDER BY updated_at, id`

	rows, err := r.pool.Query(ctx, query, companyID, since)
	if err != nil {
		return nil, fmt.Errorf("find changed accounts: %w", err)
	}
	defer rows.Close()

	var accounts []domain.Account
	for rows.Next() {
		a, err := r.scan(rows)
		if err != nil {
			return nil, fmt.Errorf("scan account: %w", err)
		}
		accounts = append(accounts, *a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate accounts: %w", err)
	}
	return accounts, nil
}

func (r *AccountRepo) sealBankDetails(a *domain.Account) ([]byte, error) {
	if len(a.BankDetails) == 0 {
		return r.seal.sealJSON("bank_details", nil)
	}
	return r.seal.sealJSON("bank_details", a.BankDetails)
}

func (r *AccountRepo) scan(row pgx.Row) (*domain.Account, error) {
	var (
		a        domain.Account
		typ      string
		bankData []byte
	)
	err := row.Scan(
		&a.ID, &a.CompanyID, &a.Code, &a.Name, &typ, &a.Currency, &a.ParentID,
		&a.Description, &bankData, &a.Version, &a.CreatedBy, &a.CreatedAt, &a.UpdatedAt, &a.DeletedAt,
	)
	if err != nil {
		return nil, err
	}
	a.Type = domain.AccountType(typ)
	if err := r.seal.openJSON("bank_details", bankData, &a.BankDetails); err != nil {
		return nil, err
	}
	return &a, nil
}

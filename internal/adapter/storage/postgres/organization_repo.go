package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"accounting-sync/internal/core/domain"
	"accounting-sync/internal/core/ports"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const organizationColumns = `id, company_id, name, legal_name, tax_id, address, contact_email,
	settings, version, created_by, created_at, updated_at, deleted_at`

// OrganizationRepo implements ports.OrganizationRepository. tax_id is sealed.
type OrganizationRepo struct {
	pool Pool
	seal sealer
}

// NewOrganizationRepo creates a new OrganizationRepo.
func NewOrganizationRepo(pool Pool, enc ports.EncryptionService) *OrganizationRepo {
	return &OrganizationRepo{pool: pool, seal: sealer{enc: enc}}
}

// Create inserts a new organization.
func (r *OrganizationRepo) Create(ctx context.Context, o *domain.Organization) error {
	taxID, settings, err := r.encode(o)
	if err != nil {
		return err
	}

	query := `INSERT INTO organizations (` + organizationColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`

	_, err = r.pool.Exec(ctx, query,
		o.ID, o.CompanyID, o.Name, o.LegalName, taxID, o.Address, o.ContactEmail,
		settings, o.Version, o.CreatedBy, o.CreatedAt, o.UpdatedAt, o.DeletedAt,
	)
	if err != nil {
		return fmt.Errorf("insert organization: %w", err)
	}
	return nil
}

// GetByID fetches a live organization of the company.
func (r *OrganizationRepo) GetByID(ctx context.Context, companyID, id uuid.UUID) (*domain.Organization, error) {
	query := `SELECT ` + organizationColumns + ` FROM organizations
		WHERE company_id = $1 AND id = $2 AND deleted_at IS NULL`

	o, err := r.scan(r.pool.QueryRow(ctx, query, companyID, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get organization by id: %w", err)
	}
	return o, nil
}

// Update replaces the mutable fields when the stored version equals expectedVersion.
func (r *OrganizationRepo) Update(ctx context.Context, o *domain.Organization, expectedVersion int64) error {
	taxID, settings, err := r.encode(o)
	if err != nil {
		return err
	}

	query := `UPDATE organizations SET name = $1, legal_name = $2, tax_id = $3, address = $4,
		contact_email = $5, settings = $6, version = $7, updated_at = $8
		WHERE company_id = $9 AND id = $10 AND version = $11 AND deleted_at IS NULL`

	tag, err := r.pool.Exec(ctx, query,
		o.Name, o.LegalName, taxID, o.Address, o.ContactEmail, settings,
		o.Version, o.UpdatedAt, o.CompanyID, o.ID, expectedVersion,
	)
	if err != nil {
		return fmt.Errorf("update organization: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrVersionConflict
	}
	return nil
}

// SoftDelete tombstones the organization and bumps its version.
func (r *OrganizationRepo) SoftDelete(ctx context.Context, companyID, id uuid.UUID, expectedVersion int64) error {
	query := `UPDATE organizations SET deleted_at = NOW(), updated_at = NOW(), version = version + 1
		WHERE company_id = $1 AND id = $2 AND version = $3 AND deleted_at IS NULL`

	tag, err := r.pool.Exec(ctx, query, companyID, id, expectedVersion)
	if err != nil {
		return fmt.Errorf("soft delete organization: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrVersionConflict
	}
	return nil
}

// FindChangedSince returns organizations touched at or after since, tombstones included.
func (r *OrganizationRepo) FindChangedSince(ctx context.Context, companyID uuid.UUID, since time.Time) ([]domain.Organization, error) {
	query := `SELECT ` + organizationColumns + ` FROM organizations
		WHERE company_id = $1 AND updated_at >= $2
		ORDER BY updated_at, id`

	rows, err := r.pool.Query(ctx, query, companyID, since)
	if err != nil {
		return nil, fmt.Errorf("find changed organizations: %w", err)
	}
	defer rows.Close()

	var orgs []domain.Organization
	for rows.Next() {
		o, err := r.scan(rows)
		if err != nil {
			return nil, fmt.Errorf("scan organization: %w", err)
		}
		orgs = append(orgs, *o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate organizations: %w", err)
	}
	return orgs, nil
}

func (r *OrganizationRepo) encode(o *domain.Organization) (taxID, settings []byte, err error) {
	if taxID, err = r.seal.sealString("tax_id", o.TaxID); err != nil {
		return nil, nil, err
	}
	if len(o.Settings) > 0 {
		if settings, err = json.Marshal(o.Settings); err != nil {
			return nil, nil, fmt.Errorf("encoding settings: %w", err)
		}
	}
	return taxID, settings, nil
}

func (r *OrganizationRepo) scan(row pgx.Row) (*domain.Organization, error) {
	var (
		o        domain.Organization
		taxID    []byte
		settings []byte
	)
	err := row.Scan(
		&o.ID, &o.CompanyID, &o.Name, &o.LegalName, &taxID, &o.Address, &o.ContactEmail,
		&settings, &o.Version, &o.CreatedBy, &o.CreatedAt, &o.UpdatedAt, &o.DeletedAt,
	)
	if err != nil {
		return nil, err
	}
	if o.TaxID, err = r.seal.openString("tax_id", taxID); err != nil {
		return nil, err
	}
	if len(settings) > 0 {
		if err := json.Unmarshal(settings, &o.Settings); err != nil {
			return nil, fmt.Errorf("decoding settings: %w", err)
		}
	}
	return &o, nil
}

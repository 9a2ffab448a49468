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

const journalEntryColumns = `id, company_id, reference, entry_date, description, status, notes,
	version, created_by, created_at, updated_at, deleted_at`

// JournalEntryRepo implements ports.JournalEntryRepository. Lines live in
// journal_lines and are rewritten with the header. notes is sealed.
type JournalEntryRepo struct {
	pool Pool
	seal sealer
}

// NewJournalEntryRepo creates a new JournalEntryRepo.
func NewJournalEntryRepo(pool Pool, enc ports.EncryptionService) *JournalEntryRepo {
	return &JournalEntryRepo{pool: pool, seal: sealer{enc: enc}}
}

// Create inserts the entry header and its lines within tx.
func (r *JournalEntryRepo) Create(ctx context.Context, tx pgx.Tx, e *domain.JournalEntry) error {
	notes, err := r.seal.sealString("notes", e.Notes)
	if err != nil {
		return err
	}

	query := `INSERT INTO journal_entries (` + journalEntryColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`

	_, err = tx.Exec(ctx, query,
		e.ID, e.CompanyID, e.Reference, e.EntryDate, e.Description, string(e.Status), notes,
		e.Version, e.CreatedBy, e.CreatedAt, e.UpdatedAt, e.DeletedAt,
	)
	if err != nil {
		return fmt.Errorf("insert journal entry: %w", err)
	}
	return insertLines(ctx, tx, e.ID, e.Lines)
}

// GetByID fetches a live entry with its lines.
func (r *JournalEntryRepo) GetByID(ctx context.Context, companyID, id uuid.UUID) (*domain.JournalEntry, error) {
	return r.get(ctx, r.pool, companyID, id, "")
}

// GetByIDForUpdate fetches a live entry and row-locks its header within tx.
func (r *JournalEntryRepo) GetByIDForUpdate(ctx context.Context, tx pgx.Tx, companyID, id uuid.UUID) (*domain.JournalEntry, error) {
	return r.get(ctx, tx, companyID, id, " FOR UPDATE")
}

func (r *JournalEntryRepo) get(ctx context.Context, q querier, companyID, id uuid.UUID, lock string) (*domain.JournalEntry, error) {
	query := `SELECT ` + journalEntryColumns + ` FROM journal_entries
		WHERE company_id = $1 AND id = $2 AND deleted_at IS NULL` + lock

	e, err := r.scan(q.QueryRow(ctx, query, companyID, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get journal entry by id: %w", err)
	}

	lines, err := loadLines(ctx, q, []uuid.UUID{e.ID})
	if err != nil {
		return nil, err
	}
	e.Lines = lines[e.ID]
	return e, nil
}

// Update rewrites the header and lines when the stored version equals expectedVersion.
func (r *JournalEntryRepo) Update(ctx context.Context, tx pgx.Tx, e *domain.JournalEntry, expectedVersion int64) error {
	notes, err := r.seal.sealString("notes", e.Notes)
	if err != nil {
		return err
	}

	query := `UPDATE journal_entries SET reference = $1, entry_date = $2, description = $3,
		status = $4, notes = $5, version = $6, updated_at = $7
		WHERE company_id = $8 AND id = $9 AND version = $10 AND deleted_at IS NULL`

	tag, err := tx.Exec(ctx, query,
		e.Reference, e.EntryDate, e.Description, string(e.Status), notes,
		e.Version, e.UpdatedAt, e.CompanyID, e.ID, expectedVersion,
	)
	if err != nil {
		return fmt.Errorf("update journal entry: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrVersionConflict
	}

	if _, err := tx.Exec(ctx, `DELETE FROM journal_lines WHERE entry_id = $1`, e.ID); err != nil {
		return fmt.Errorf("delete journal lines: %w", err)
	}
	return insertLines(ctx, tx, e.ID, e.Lines)
}

// SoftDelete tombstones the entry and bumps its version. Lines are kept.
func (r *JournalEntryRepo) SoftDelete(ctx context.Context, tx pgx.Tx, companyID, id uuid.UUID, expectedVersion int64) error {
	query := `UPDATE journal_entries SET deleted_at = NOW(), updated_at = NOW(), version = version + 1
		WHERE company_id = $1 AND id = $2 AND version = $3 AND deleted_at IS NULL`

	tag, err := tx.Exec(ctx, query, companyID, id, expectedVersion)
	if err != nil {
		return fmt.Errorf("soft delete journal entry: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrVersionConflict
	}
	return nil
}

// FindChangedSince returns entries touched at or after since, tombstones included.
func (r *JournalEntryRepo) FindChangedSince(ctx context.Context, companyID uuid.UUID, since time.Time) ([]domain.JournalEntry, error) {
	query := `SELECT ` + journalEntryColumns + ` FROM journal_entries
		WHERE company_id = $1 AND updated_at >= $2
		ORDER BY updated_at, id`

	rows, err := r.pool.Query(ctx, query, companyID, since)
	if err != nil {
		return nil, fmt.Errorf("find changed journal entries: %w", err)
	}

	var (
		entries []domain.JournalEntry
		ids     []uuid.UUID
	)
	for rows.Next() {
		e, err := r.scan(rows)
		if err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan journal entry: %w", err)
		}
		entries = append(entries, *e)
		ids = append(ids, e.ID)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate journal entries: %w", err)
	}
	if len(entries) == 0 {
		return nil, nil
	}

	lines, err := loadLines(ctx, r.pool, ids)
	if err != nil {
		return nil, err
	}
	for i := range entries {
		entries[i].Lines = lines[entries[i].ID]
	}
	return entries, nil
}

func (r *JournalEntryRepo) scan(row pgx.Row) (*domain.JournalEntry, error) {
	var (
		e      domain.JournalEntry
		status string
		notes  []byte
	)
	err := row.Scan(
		&e.ID, &e.CompanyID, &e.Reference, &e.EntryDate, &e.Description, &status, &notes,
		&e.Version, &e.CreatedBy, &e.CreatedAt, &e.UpdatedAt, &e.DeletedAt,
	)
	if err != nil {
		return nil, err
	}
	e.Status = domain.JournalStatus(status)
	if e.Notes, err = r.seal.openString("notes", notes); err != nil {
		return nil, err
	}
	return &e, nil
}

func insertLines(ctx context.Context, tx pgx.Tx, entryID uuid.UUID, lines []domain.JournalLine) error {
	query := `INSERT INTO journal_lines (entry_id, line_no, account_id, debit, credit, memo)
		VALUES ($1, $2, $3, $4, $5, $6)`

	for i, l := range lines {
		if _, err := tx.Exec(ctx, query, entryID, i+1, l.AccountID, l.Debit, l.Credit, l.Memo); err != nil {
			return fmt.Errorf("insert journal line %d: %w", i+1, err)
		}
	}
	return nil
}

func loadLines(ctx context.Context, q querier, entryIDs []uuid.UUID) (map[uuid.UUID][]domain.JournalLine, error) {
	query := `SELECT entry_id, account_id, debit, credit, memo FROM journal_lines
		WHERE entry_id = ANY($1)
		ORDER BY entry_id, line_no`

	rows, err := q.Query(ctx, query, entryIDs)
	if err != nil {
		return nil, fmt.Errorf("load journal lines: %w", err)
	}
	defer rows.Close()

	lines := make(map[uuid.UUID][]domain.JournalLine, len(entryIDs))
	for rows.Next() {
		var (
			entryID uuid.UUID
			l       domain.JournalLine
		)
		if err := rows.Scan(&entryID, &l.AccountID, &l.Debit, &l.Credit, &l.Memo); err != nil {
			return nil, fmt.Errorf("scan journal line: %w", err)
		}
		lines[entryID] = append(lines[entryID], l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate journal lines: %w", err)
	}
	return lines, nil
}

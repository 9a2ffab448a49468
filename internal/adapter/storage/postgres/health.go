package postgres

import (
	"context"
	"errors"
	"fmt"
)

// ErrSchemaNotMigrated is reported while the sync tables are missing.
var ErrSchemaNotMigrated = errors.New("accounting schema not migrated")

// readinessTable is created by the last table of the initial migration.
const readinessTable = "public.journal_lines"

// HealthCheck reports PostgreSQL as healthy once the sync schema is in place.
type HealthCheck struct {
	pool Pool
}

func NewHealthCheck(pool Pool) *HealthCheck {
	return &HealthCheck{pool: pool}
}

func (h *HealthCheck) Ping(ctx context.Context) error {
	var ready bool
	if err := h.pool.QueryRow(ctx, "SELECT to_regclass($1) IS NOT NULL", readinessTable).Scan(&ready); err != nil {
		return fmt.Errorf("checking schema: %w", err)
	}
	if !ready {
		return ErrSchemaNotMigrated
	}
	return nil
}

func (h *HealthCheck) Name() string {
	return "postgresql"
}

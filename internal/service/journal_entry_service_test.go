package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	"accounting-sync/internal/core/domain"
	"accounting-sync/internal/core/ports/mocks"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

type journalTestDeps struct {
	svc        *JournalEntryService
	repo       *mocks.MockJournalEntryRepository
	accounts   *mocks.MockAccountRepository
	transactor *mocks.MockDBTransactor
	scope      domain.SyncScope
	cash       uuid.UUID
	revenue    uuid.UUID
}

func setupJournalEntryService(t *testing.T) *journalTestDeps {
	ctrl := gomock.NewController(t)
	d := &journalTestDeps{
		repo:       mocks.NewMockJournalEntryRepository(ctrl),
		accounts:   mocks.NewMockAccountRepository(ctrl),
		transactor: mocks.NewMockDBTransactor(ctrl),
		scope:      domain.SyncScope{CompanyID: uuid.New(), UserID: uuid.New()},
		cash:       uuid.New(),
		revenue:    uuid.New(),
	}
	d.svc = NewJournalEntryService(d.repo, d.accounts, d.transactor, newTestLogger())
	d.svc.now = func() time.Time { return time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC) }
	return d
}

func (d *journalTestDeps) entryJSON(id *uuid.UUID, version *int64, debit, credit int64, status string) json.RawMessage {
	head := ""
	if id != nil {
		head += fmt.Sprintf(`"id":%q,`, id.String())
	}
	if version != nil {
		head += fmt.Sprintf(`"version":%d,`, *version)
	}
	if status != "" {
		head += fmt.Sprintf(`"status":%q,`, status)
	}
	return json.RawMessage(fmt.Sprintf(`{%s"reference":"INV-001","entryDate":"2026-02-28T00:00:00Z","notes":"paid in cash",
		"lines":[{"accountId":%q,"debit":%d},{"accountId":%q,"credit":%d}]}`,
		head, d.cash.String(), debit, d.revenue.String(), credit))
}

func TestJournalEntryService_Create(t *testing.T) {
	d := setupJournalEntryService(t)
	tx := &mockTx{}

	d.accounts.EXPECT().CountExisting(gomock.Any(), d.scope.CompanyID, []uuid.UUID{d.cash, d.revenue}).Return(2, nil)
	d.transactor.EXPECT().Begin(gomock.Any()).Return(tx, nil)
	d.repo.EXPECT().Create(gomock.Any(), tx, gomock.Any()).DoAndReturn(
		func(_ context.Context, _ pgx.Tx, e *domain.JournalEntry) error {
			assert.Equal(t, domain.JournalStatusDraft, e.Status)
			assert.Equal(t, "paid in cash", e.Notes)
			require.Len(t, e.Lines, 2)
			assert.True(t, e.IsBalanced())
			return nil
		},
	)

	m, err := d.svc.Create(context.Background(), d.scope, d.entryJSON(nil, nil, 5000, 5000, ""))
	require.NoError(t, err)
	assert.NotEmpty(t, m.ServerID)
	assert.True(t, tx.committed)
}

func TestJournalEntryService_Create_Unbalanced(t *testing.T) {
	d := setupJournalEntryService(t)

	_, err := d.svc.Create(context.Background(), d.scope, d.entryJSON(nil, nil, 5000, 4000, ""))
	var verr *domain.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, verr.Reason, "unbalanced")
}

func TestJournalEntryService_Create_LineWithBothSides(t *testing.T) {
	d := setupJournalEntryService(t)

	data := json.RawMessage(fmt.Sprintf(`{"reference":"R","entryDate":"2026-02-28T00:00:00Z",
		"lines":[{"accountId":%q,"debit":100,"credit":100},{"accountId":%q,"credit":0}]}`, d.cash, d.revenue))
	_, err := d.svc.Create(context.Background(), d.scope, data)
	var verr *domain.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, verr.Reason, "exactly one")
}

func TestJournalEntryService_Create_SingleLine(t *testing.T) {
	d := setupJournalEntryService(t)

	data := json.RawMessage(fmt.Sprintf(`{"reference":"R","entryDate":"2026-02-28T00:00:00Z",
		"lines":[{"accountId":%q,"debit":100}]}`, d.cash))
	_, err := d.svc.Create(context.Background(), d.scope, data)
	var verr *domain.ValidationError
	assert.ErrorAs(t, err, &verr)
}

func TestJournalEntryService_Create_ForeignAccount(t *testing.T) {
	d := setupJournalEntryService(t)

	d.accounts.EXPECT().CountExisting(gomock.Any(), d.scope.CompanyID, gomock.Any()).Return(1, nil)

	_, err := d.svc.Create(context.Background(), d.scope, d.entryJSON(nil, nil, 5000, 5000, ""))
	var verr *domain.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, verr.Reason, "do not exist")
}

func TestJournalEntryService_Create_RepoErrorRollsBack(t *testing.T) {
	d := setupJournalEntryService(t)
	tx := &mockTx{}

	d.accounts.EXPECT().CountExisting(gomock.Any(), gomock.Any(), gomock.Any()).Return(2, nil)
	d.transactor.EXPECT().Begin(gomock.Any()).Return(tx, nil)
	d.repo.EXPECT().Create(gomock.Any(), tx, gomock.Any()).Return(errors.New("duplicate key"))

	_, err := d.svc.Create(context.Background(), d.scope, d.entryJSON(nil, nil, 5000, 5000, ""))
	require.Error(t, err)
	assert.False(t, tx.committed)
	assert.True(t, tx.rolledBack)
}

func TestJournalEntryService_Update_Posting(t *testing.T) {
	d := setupJournalEntryService(t)
	tx := &mockTx{}
	id := uuid.New()
	version := int64(1)
	existing := &domain.JournalEntry{ID: id, CompanyID: d.scope.CompanyID, Status: domain.JournalStatusDraft, Version: 1}

	d.transactor.EXPECT().Begin(gomock.Any()).Return(tx, nil)
	d.repo.EXPECT().GetByIDForUpdate(gomock.Any(), tx, d.scope.CompanyID, id).Return(existing, nil)
	d.accounts.EXPECT().CountExisting(gomock.Any(), gomock.Any(), gomock.Any()).Return(2, nil)
	d.repo.EXPECT().Update(gomock.Any(), tx, gomock.Any(), int64(1)).DoAndReturn(
		func(_ context.Context, _ pgx.Tx, e *domain.JournalEntry, _ int64) error {
			assert.Equal(t, domain.JournalStatusPosted, e.Status)
			assert.Equal(t, int64(2), e.Version)
			return nil
		},
	)

	m, err := d.svc.Update(context.Background(), d.scope, d.entryJSON(&id, &version, 700, 700, "POSTED"))
	require.NoError(t, err)
	assert.Equal(t, int64(2), m.Version)
	assert.True(t, tx.committed)
}

func TestJournalEntryService_Update_PostedIsImmutable(t *testing.T) {
	d := setupJournalEntryService(t)
	tx := &mockTx{}
	id := uuid.New()
	existing := &domain.JournalEntry{ID: id, CompanyID: d.scope.CompanyID, Status: domain.JournalStatusPosted, Version: 3}

	d.transactor.EXPECT().Begin(gomock.Any()).Return(tx, nil)
	d.repo.EXPECT().GetByIDForUpdate(gomock.Any(), tx, d.scope.CompanyID, id).Return(existing, nil)

	_, err := d.svc.Update(context.Background(), d.scope, d.entryJSON(&id, nil, 700, 700, ""))
	assert.ErrorIs(t, err, domain.ErrImmutable)
	assert.False(t, tx.committed)
}

func TestJournalEntryService_Update_StaleVersion(t *testing.T) {
	d := setupJournalEntryService(t)
	tx := &mockTx{}
	id := uuid.New()
	stale := int64(1)
	existing := &domain.JournalEntry{ID: id, CompanyID: d.scope.CompanyID, Status: domain.JournalStatusDraft, Version: 2}

	d.transactor.EXPECT().Begin(gomock.Any()).Return(tx, nil)
	d.repo.EXPECT().GetByIDForUpdate(gomock.Any(), tx, d.scope.CompanyID, id).Return(existing, nil)

	_, err := d.svc.Update(context.Background(), d.scope, d.entryJSON(&id, &stale, 700, 700, ""))
	var conflict *domain.ConflictError
	require.ErrorAs(t, err, &conflict)
	assert.Equal(t, domain.EntityJournalEntry, conflict.Entity)
	assert.Equal(t, int64(2), conflict.ServerVersion)
}

func TestJournalEntryService_Delete(t *testing.T) {
	d := setupJournalEntryService(t)
	tx := &mockTx{}
	id := uuid.New()
	existing := &domain.JournalEntry{ID: id, CompanyID: d.scope.CompanyID, Status: domain.JournalStatusDraft, Version: 4}

	d.transactor.EXPECT().Begin(gomock.Any()).Return(tx, nil)
	d.repo.EXPECT().GetByIDForUpdate(gomock.Any(), tx, d.scope.CompanyID, id).Return(existing, nil)
	d.repo.EXPECT().SoftDelete(gomock.Any(), tx, d.scope.CompanyID, id, int64(4)).Return(nil)

	m, err := d.svc.Delete(context.Background(), d.scope, json.RawMessage(`{"id":"`+id.String()+`"}`))
	require.NoError(t, err)
	assert.Equal(t, int64(5), m.Version)
	assert.True(t, tx.committed)
}

func TestJournalEntryService_Delete_Posted(t *testing.T) {
	d := setupJournalEntryService(t)
	tx := &mockTx{}
	id := uuid.New()
	existing := &domain.JournalEntry{ID: id, CompanyID: d.scope.CompanyID, Status: domain.JournalStatusPosted, Version: 1}

	d.transactor.EXPECT().Begin(gomock.Any()).Return(tx, nil)
	d.repo.EXPECT().GetByIDForUpdate(gomock.Any(), tx, d.scope.CompanyID, id).Return(existing, nil)

	_, err := d.svc.Delete(context.Background(), d.scope, json.RawMessage(`{"id":"`+id.String()+`"}`))
	assert.ErrorIs(t, err, domain.ErrImmutable)
}

func TestJournalEntryService_Delete_AlreadyGone(t *testing.T) {
	d := setupJournalEntryService(t)
	tx := &mockTx{}
	id := uuid.New()

	d.transactor.EXPECT().Begin(gomock.Any()).Return(tx, nil)
	d.repo.EXPECT().GetByIDForUpdate(gomock.Any(), tx, d.scope.CompanyID, id).Return(nil, nil)

	m, err := d.svc.Delete(context.Background(), d.scope, json.RawMessage(`{"id":"`+id.String()+`"}`))
	require.NoError(t, err)
	assert.Equal(t, id.String(), m.ServerID)
	assert.False(t, tx.committed)
}

func TestJournalEntryService_ChangedSince(t *testing.T) {
	d := setupJournalEntryService(t)
	since := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)
	entry := domain.JournalEntry{ID: uuid.New(), CreatedAt: since.Add(-time.Hour), UpdatedAt: since.Add(time.Hour)}

	d.repo.EXPECT().FindChangedSince(gomock.Any(), d.scope.CompanyID, since).Return([]domain.JournalEntry{entry}, nil)

	changes, err := d.svc.ChangedSince(context.Background(), d.scope.CompanyID, since)
	require.NoError(t, err)
	require.Len(t, changes, 1)
	assert.Equal(t, domain.OperationUpdate, changes[0].Type)
	assert.Equal(t, domain.EntityJournalEntry, changes[0].Entity)
}

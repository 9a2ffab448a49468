package service

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"accounting-sync/internal/core/domain"
	"accounting-sync/internal/core/ports/mocks"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func setupAccountService(t *testing.T) (*AccountService, *mocks.MockAccountRepository, domain.SyncScope) {
	ctrl := gomock.NewController(t)
	repo := mocks.NewMockAccountRepository(ctrl)
	svc := NewAccountService(repo, newTestLogger())
	svc.now = func() time.Time { return time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC) }
	return svc, repo, domain.SyncScope{CompanyID: uuid.New(), UserID: uuid.New()}
}

func TestAccountService_Create(t *testing.T) {
	svc, repo, scope := setupAccountService(t)
	clientID := uuid.New()

	repo.EXPECT().Create(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, a *domain.Account) error {
			assert.Equal(t, clientID, a.ID)
			assert.Equal(t, scope.CompanyID, a.CompanyID)
			assert.Equal(t, scope.UserID, a.CreatedBy)
			assert.Equal(t, "1000", a.Code)
			assert.Equal(t, domain.AccountTypeAsset, a.Type)
			assert.Equal(t, "DE89", a.BankDetails["iban"])
			assert.Equal(t, int64(1), a.Version)
			return nil
		},
	)

	data := json.RawMessage(`{"id":"` + clientID.String() + `","code":"1000","name":"Cash","type":"ASSET","currency":"EUR","bankDetails":{"iban":"DE89"}}`)
	m, err := svc.Create(context.Background(), scope, data)
	require.NoError(t, err)
	assert.Equal(t, clientID.String(), m.ServerID)
	assert.Equal(t, int64(1), m.Version)
}

func TestAccountService_Create_GeneratesID(t *testing.T) {
	svc, repo, scope := setupAccountService(t)
	repo.EXPECT().Create(gomock.Any(), gomock.Any()).Return(nil)

	m, err := svc.Create(context.Background(), scope, json.RawMessage(`{"code":"4000","name":"Sales","type":"REVENUE","currency":"USD"}`))
	require.NoError(t, err)
	_, err = uuid.Parse(m.ServerID)
	assert.NoError(t, err)
}

func TestAccountService_Create_InvalidPayload(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{"unknown field", `{"code":"1","name":"Cash","type":"ASSET","currency":"EUR","balance":10}`},
		{"bad type", `{"code":"1","name":"Cash","type":"MONEY","currency":"EUR"}`},
		{"bad currency", `{"code":"1","name":"Cash","type":"ASSET","currency":"EURO"}`},
		{"missing name", `{"code":"1","type":"ASSET","currency":"EUR"}`},
		{"not an object", `[1,2]`},
		{"empty", ``},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, _, scope := setupAccountService(t)

			_, err := svc.Create(context.Background(), scope, json.RawMessage(tt.data))
			var verr *domain.ValidationError
			assert.ErrorAs(t, err, &verr)
		})
	}
}

func TestAccountService_Create_MissingParent(t *testing.T) {
	svc, repo, scope := setupAccountService(t)
	parent := uuid.New()

	repo.EXPECT().CountExisting(gomock.Any(), scope.CompanyID, []uuid.UUID{parent}).Return(0, nil)

	_, err := svc.Create(context.Background(), scope, json.RawMessage(
		`{"code":"1010","name":"Petty cash","type":"ASSET","currency":"EUR","parentId":"`+parent.String()+`"}`))
	var verr *domain.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, verr.Reason, "parent")
}

func TestAccountService_Update(t *testing.T) {
	svc, repo, scope := setupAccountService(t)
	existing := &domain.Account{ID: uuid.New(), CompanyID: scope.CompanyID, Code: "1000", Name: "Cash", Type: domain.AccountTypeAsset, Currency: "EUR", Version: 3}

	repo.EXPECT().GetByID(gomock.Any(), scope.CompanyID, existing.ID).Return(existing, nil)
	repo.EXPECT().Update(gomock.Any(), gomock.Any(), int64(3)).DoAndReturn(
		func(_ context.Context, a *domain.Account, _ int64) error {
			assert.Equal(t, "Cash on hand", a.Name)
			assert.Equal(t, int64(4), a.Version)
			return nil
		},
	)

	m, err := svc.Update(context.Background(), scope, json.RawMessage(
		`{"id":"`+existing.ID.String()+`","version":3,"code":"1000","name":"Cash on hand","type":"ASSET","currency":"EUR"}`))
	require.NoError(t, err)
	assert.Equal(t, int64(4), m.Version)
	assert.Equal(t, "Cash", existing.Name, "server copy must not be mutated")
}

func TestAccountService_Update_StaleVersion(t *testing.T) {
	svc, repo, scope := setupAccountService(t)
	existing := &domain.Account{ID: uuid.New(), CompanyID: scope.CompanyID, Version: 5}

	repo.EXPECT().GetByID(gomock.Any(), scope.CompanyID, existing.ID).Return(existing, nil)

	_, err := svc.Update(context.Background(), scope, json.RawMessage(
		`{"id":"`+existing.ID.String()+`","version":2,"code":"1000","name":"Cash","type":"ASSET","currency":"EUR"}`))

	var conflict *domain.ConflictError
	require.ErrorAs(t, err, &conflict)
	assert.Equal(t, int64(2), conflict.ClientVersion)
	assert.Equal(t, int64(5), conflict.ServerVersion)
	assert.Same(t, existing, conflict.ServerData)
	assert.True(t, errors.Is(err, domain.ErrVersionConflict))
}

func TestAccountService_Update_LastWriteWinsWithoutVersion(t *testing.T) {
	svc, repo, scope := setupAccountService(t)
	existing := &domain.Account{ID: uuid.New(), CompanyID: scope.CompanyID, Version: 9}

	repo.EXPECT().GetByID(gomock.Any(), scope.CompanyID, existing.ID).Return(existing, nil)
	repo.EXPECT().Update(gomock.Any(), gomock.Any(), int64(9)).Return(nil)

	m, err := svc.Update(context.Background(), scope, json.RawMessage(
		`{"id":"`+existing.ID.String()+`","code":"1000","name":"Cash","type":"ASSET","currency":"EUR"}`))
	require.NoError(t, err)
	assert.Equal(t, int64(10), m.Version)
}

func TestAccountService_Update_RaceBecomesConflict(t *testing.T) {
	svc, repo, scope := setupAccountService(t)
	existing := &domain.Account{ID: uuid.New(), CompanyID: scope.CompanyID, Version: 1}
	current := &domain.Account{ID: existing.ID, CompanyID: scope.CompanyID, Version: 2}

	gomock.InOrder(
		repo.EXPECT().GetByID(gomock.Any(), scope.CompanyID, existing.ID).Return(existing, nil),
		repo.EXPECT().Update(gomock.Any(), gomock.Any(), int64(1)).Return(domain.ErrVersionConflict),
		repo.EXPECT().GetByID(gomock.Any(), scope.CompanyID, existing.ID).Return(current, nil),
	)

	_, err := svc.Update(context.Background(), scope, json.RawMessage(
		`{"id":"`+existing.ID.String()+`","version":1,"code":"1000","name":"Cash","type":"ASSET","currency":"EUR"}`))

	var conflict *domain.ConflictError
	require.ErrorAs(t, err, &conflict)
	assert.Equal(t, int64(2), conflict.ServerVersion)
}

func TestAccountService_Update_NotFound(t *testing.T) {
	svc, repo, scope := setupAccountService(t)
	id := uuid.New()

	repo.EXPECT().GetByID(gomock.Any(), scope.CompanyID, id).Return(nil, nil)

	_, err := svc.Update(context.Background(), scope, json.RawMessage(
		`{"id":"`+id.String()+`","code":"1000","name":"Cash","type":"ASSET","currency":"EUR"}`))
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestAccountService_Update_MissingID(t *testing.T) {
	svc, _, scope := setupAccountService(t)

	_, err := svc.Update(context.Background(), scope, json.RawMessage(`{"code":"1000","name":"Cash","type":"ASSET","currency":"EUR"}`))
	var verr *domain.ValidationError
	assert.ErrorAs(t, err, &verr)
}

func TestAccountService_Delete(t *testing.T) {
	svc, repo, scope := setupAccountService(t)
	existing := &domain.Account{ID: uuid.New(), CompanyID: scope.CompanyID, Version: 2}

	repo.EXPECT().GetByID(gomock.Any(), scope.CompanyID, existing.ID).Return(existing, nil)
	repo.EXPECT().SoftDelete(gomock.Any(), scope.CompanyID, existing.ID, int64(2)).Return(nil)

	// Full objects are accepted on delete; only id and version matter.
	m, err := svc.Delete(context.Background(), scope, json.RawMessage(
		`{"id":"`+existing.ID.String()+`","version":2,"name":"Cash","whatever":true}`))
	require.NoError(t, err)
	assert.Equal(t, existing.ID.String(), m.ServerID)
}

func TestAccountService_Delete_AlreadyGone(t *testing.T) {
	svc, repo, scope := setupAccountService(t)
	id := uuid.New()

	repo.EXPECT().GetByID(gomock.Any(), scope.CompanyID, id).Return(nil, nil)

	m, err := svc.Delete(context.Background(), scope, json.RawMessage(`{"id":"`+id.String()+`","version":3}`))
	require.NoError(t, err)
	assert.Equal(t, id.String(), m.ServerID)
}

func TestAccountService_ChangedSince(t *testing.T) {
	svc, repo, scope := setupAccountService(t)
	since := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)
	deletedAt := since.Add(2 * time.Hour)

	created := domain.Account{ID: uuid.New(), CreatedAt: since.Add(time.Hour)}
	updated := domain.Account{ID: uuid.New(), CreatedAt: since.Add(-time.Hour)}
	deleted := domain.Account{ID: uuid.New(), CreatedAt: since.Add(-time.Hour), DeletedAt: &deletedAt}

	repo.EXPECT().FindChangedSince(gomock.Any(), scope.CompanyID, since).
		Return([]domain.Account{created, updated, deleted}, nil)

	changes, err := svc.ChangedSince(context.Background(), scope.CompanyID, since)
	require.NoError(t, err)
	require.Len(t, changes, 3)

	assert.Equal(t, domain.OperationCreate, changes[0].Type)
	assert.Equal(t, created.ID.String(), changes[0].ID)
	assert.Equal(t, domain.OperationUpdate, changes[1].Type)
	assert.Equal(t, domain.OperationDelete, changes[2].Type)
	for _, c := range changes {
		assert.Equal(t, domain.EntityAccount, c.Entity)
	}
}

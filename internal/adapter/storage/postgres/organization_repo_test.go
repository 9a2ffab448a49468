package postgres

import (
	"context"
	"testing"

	"accounting-sync/internal/core/domain"

	"github.com/google/uuid"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestOrganization() *domain.Organization {
	now := testTime()
	return &domain.Organization{
		ID:           uuid.New(),
		CompanyID:    uuid.New(),
		Name:         "Acme",
		LegalName:    "Acme GmbH",
		TaxID:        "DE123456789",
		ContactEmail: "books@acme.test",
		Settings:     map[string]any{"fiscalYearStart": "01-01"},
		Version:      1,
		CreatedBy:    uuid.New(),
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

func organizationCols() []string {
	return []string{"id", "company_id", "name", "legal_name", "tax_id", "address", "contact_email",
		"settings", "version", "created_by", "created_at", "updated_at", "deleted_at"}
}

func TestOrganizationRepo_Create(t *testing.T) {
	mock, enc := newMocks(t)
	repo := NewOrganizationRepo(mock, enc)
	o := newTestOrganization()

	enc.EXPECT().Encrypt("DE123456789").Return(sealedSample, nil)
	mock.ExpectExec("INSERT INTO organizations").
		WithArgs(o.ID, o.CompanyID, o.Name, o.LegalName, sealedJSON(t, sealedSample), o.Address, o.ContactEmail,
			[]byte(`{"fiscalYearStart":"01-01"}`), o.Version, o.CreatedBy, o.CreatedAt, o.UpdatedAt, o.DeletedAt).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	require.NoError(t, repo.Create(context.Background(), o))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestOrganizationRepo_GetByID(t *testing.T) {
	mock, enc := newMocks(t)
	repo := NewOrganizationRepo(mock, enc)
	o := newTestOrganization()

	enc.EXPECT().Decrypt(sealedSample).Return("DE123456789", nil)
	mock.ExpectQuery("FROM organizations").
		WithArgs(o.CompanyID, o.ID).
		WillReturnRows(pgxmock.NewRows(organizationCols()).AddRow(
			o.ID, o.CompanyID, o.Name, o.LegalName, sealedJSON(t, sealedSample), o.Address, o.ContactEmail,
			[]byte(`{"fiscalYearStart":"01-01"}`), o.Version, o.CreatedBy, o.CreatedAt, o.UpdatedAt, o.DeletedAt))

	got, err := repo.GetByID(context.Background(), o.CompanyID, o.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "DE123456789", got.TaxID)
	assert.Equal(t, "01-01", got.Settings["fiscalYearStart"])
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestOrganizationRepo_GetByIDDecryptFailure(t *testing.T) {
	mock, enc := newMocks(t)
	repo := NewOrganizationRepo(mock, enc)
	o := newTestOrganization()

	enc.EXPECT().Decrypt(sealedSample).Return("", assert.AnError)
	mock.ExpectQuery("FROM organizations").
		WithArgs(o.CompanyID, o.ID).
		WillReturnRows(pgxmock.NewRows(organizationCols()).AddRow(
			o.ID, o.CompanyID, o.Name, o.LegalName, sealedJSON(t, sealedSample), o.Address, o.ContactEmail,
			nil, o.Version, o.CreatedBy, o.CreatedAt, o.UpdatedAt, o.DeletedAt))

	got, err := repo.GetByID(context.Background(), o.CompanyID, o.ID)
	assert.Nil(t, got)
	assert.ErrorIs(t, err, domain.ErrEncryption)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestOrganizationRepo_UpdateStaleVersion(t *testing.T) {
	mock, enc := newMocks(t)
	repo := NewOrganizationRepo(mock, enc)
	o := newTestOrganization()
	o.Settings = nil

	enc.EXPECT().Encrypt(o.TaxID).Return(sealedSample, nil)
	mock.ExpectExec("UPDATE organizations SET").
		WithArgs(o.Name, o.LegalName, pgxmock.AnyArg(), o.Address, o.ContactEmail, []byte(nil),
			o.Version, o.UpdatedAt, o.CompanyID, o.ID, int64(5)).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	assert.ErrorIs(t, repo.Update(context.Background(), o, 5), domain.ErrVersionConflict)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestOrganizationRepo_SoftDelete(t *testing.T) {
	mock, enc := newMocks(t)
	repo := NewOrganizationRepo(mock, enc)
	companyID, id := uuid.New(), uuid.New()

	mock.ExpectExec("UPDATE organizations SET deleted_at").
		WithArgs(companyID, id, int64(2)).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	require.NoError(t, repo.SoftDelete(context.Background(), companyID, id, 2))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestOrganizationRepo_FindChangedSince(t *testing.T) {
	mock, enc := newMocks(t)
	repo := NewOrganizationRepo(mock, enc)
	o := newTestOrganization()
	since := testTime()

	mock.ExpectQuery("FROM organizations").
		WithArgs(o.CompanyID, since).
		WillReturnRows(pgxmock.NewRows(organizationCols()).AddRow(
			o.ID, o.CompanyID, o.Name, o.LegalName, nil, o.Address, o.ContactEmail,
			nil, o.Version, o.CreatedBy, o.CreatedAt, o.UpdatedAt, o.DeletedAt))

	got, err := repo.FindChangedSince(context.Background(), o.CompanyID, since)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Empty(t, got[0].TaxID)
	assert.Nil(t, got[0].Settings)
	assert.NoError(t, mock.ExpectationsWereMet())
}

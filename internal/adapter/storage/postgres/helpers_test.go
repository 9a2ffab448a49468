package postgres

import (
	"encoding/json"
	"testing"
	"time"

	"accounting-sync/internal/core/domain"
	"accounting-sync/internal/core/ports/mocks"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

var sealedSample = domain.EncryptedData{Encrypted: "c1", IV: "0a0b0c0d0e0f101112131415", Tag: "ff"}

func newMocks(t *testing.T) (pgxmock.PgxPoolIface, *mocks.MockEncryptionService) {
	t.Helper()
	pool, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(pool.Close)
	return pool, mocks.NewMockEncryptionService(gomock.NewController(t))
}

func sealedJSON(t *testing.T, d domain.EncryptedData) []byte {
	t.Helper()
	raw, err := json.Marshal(d)
	require.NoError(t, err)
	return raw
}

func testTime() time.Time {
	return time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
}

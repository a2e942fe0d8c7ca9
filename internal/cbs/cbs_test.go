// internal/cbs/cbs_test.go
package cbs

import (
	"context"
	"testing"

	"loan-manager/internal/common/logger"
	"loan-manager/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMockCBS_GetIdentity(t *testing.T) {
	m, err := NewMockCBS(logger.NewTestLogger(t))
	require.NoError(t, err)

	for _, id := range DefaultCustomers {
		identity, err := m.GetIdentity(context.Background(), id)
		require.NoError(t, err)
		assert.Equal(t, id, identity.CustomerID)
		assert.Equal(t, models.IdentityStatusActive, identity.Status)
	}

	_, err = m.GetIdentity(context.Background(), "000000000")
	assert.ErrorIs(t, err, ErrCustomerNotFound)
}

func TestMockCBS_WithIdentity(t *testing.T) {
	m, err := NewMockCBS(logger.NewTestLogger(t), WithIdentity(models.Identity{
		CustomerID: "555",
		Status:     "INACTIVE",
	}))
	require.NoError(t, err)

	identity, err := m.GetIdentity(context.Background(), "555")
	require.NoError(t, err)
	assert.Equal(t, "INACTIVE", identity.Status)
}

func TestMockCBS_GetTransactions(t *testing.T) {
	m, err := NewMockCBS(logger.NewTestLogger(t))
	require.NoError(t, err)

	txs, err := m.GetTransactions(context.Background(), "234774784")
	require.NoError(t, err)
	require.Len(t, txs, 2)
	assert.Equal(t, int64(1), txs[0].ID)
	assert.Equal(t, "332216783322167555621628", txs[0].AccountNumber)
	assert.Equal(t, 4812, txs[0].ATMTransactionsNumber)
	assert.Nil(t, txs[0].LastTransactionType)

	// callers get a copy
	txs[0].AccountNumber = "changed"
	again, err := m.GetTransactions(context.Background(), "234774784")
	require.NoError(t, err)
	assert.Equal(t, "332216783322167555621628", again[0].AccountNumber)

	unknown, err := m.GetTransactions(context.Background(), "unknown")
	require.NoError(t, err)
	assert.NotNil(t, unknown)
	assert.Empty(t, unknown)
}

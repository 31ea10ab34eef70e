package privacy

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRhoLedgerValidation(t *testing.T) {
	_, err := NewRhoLedger(0, nil)
	assert.Error(t, err)

	_, err = NewRhoLedger(-1, nil)
	assert.Error(t, err)
}

func TestRhoLedgerSpend(t *testing.T) {
	ledger, err := NewRhoLedger(1.0, nil)
	require.NoError(t, err)

	require.NoError(t, ledger.Spend(1, PurposeSelection, 0.25))
	require.NoError(t, ledger.Spend(1, PurposeMeasurement, 0.25))

	assert.InDelta(t, 0.5, ledger.Spent(), 1e-12)
	assert.InDelta(t, 0.5, ledger.Remaining(), 1e-12)

	transactions := ledger.Transactions()
	require.Len(t, transactions, 2)
	assert.Equal(t, PurposeSelection, transactions[0].Purpose)
	assert.Equal(t, 1, transactions[0].Round)
}

func TestRhoLedgerOverdraft(t *testing.T) {
	ledger, err := NewRhoLedger(0.5, nil)
	require.NoError(t, err)

	require.NoError(t, ledger.Spend(1, PurposeMeasurement, 0.5))
	assert.Error(t, ledger.Spend(2, PurposeMeasurement, 0.1))
	assert.Error(t, ledger.Spend(2, PurposeSelection, -0.1))

	// A failed spend must not change the ledger.
	assert.InDelta(t, 0.5, ledger.Spent(), 1e-12)
}

func TestRhoLedgerToleratesRoundingDrift(t *testing.T) {
	ledger, err := NewRhoLedger(1.0, nil)
	require.NoError(t, err)

	// Ten spends of a tenth accumulate floating error; the tolerance must
	// absorb it.
	for round := 1; round <= 10; round++ {
		require.NoError(t, ledger.Spend(round, PurposeMeasurement, 0.1))
	}
	assert.InDelta(t, 1.0, ledger.Spent(), 1e-9)
}

func TestRhoLedgerStatus(t *testing.T) {
	ledger, err := NewRhoLedger(2.0, nil)
	require.NoError(t, err)
	require.NoError(t, ledger.Spend(1, PurposeSelection, 1.0))

	status := ledger.Status()
	assert.Equal(t, 2.0, status.Total)
	assert.InDelta(t, 1.0, status.Spent, 1e-12)
	assert.InDelta(t, 1.0, status.Remaining, 1e-12)
	assert.Equal(t, 1, status.TransactionCount)
}

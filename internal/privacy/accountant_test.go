package privacy

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewAccountantValidation(t *testing.T) {
	_, err := NewAccountant(0, 0, true)
	assert.Error(t, err)

	_, err = NewAccountant(-1, 0, true)
	assert.Error(t, err)

	_, err = NewAccountant(1, 1, true)
	assert.Error(t, err)

	_, err = NewAccountant(1, -0.1, true)
	assert.Error(t, err)
}

func TestAccountantPureDP(t *testing.T) {
	a, err := NewAccountant(2.0, 0, true)
	require.NoError(t, err)
	assert.InDelta(t, 2.0, a.Rho(), 1e-12, "rho = eps^2/2 when delta is zero")
}

func TestAccountantApproximateDP(t *testing.T) {
	a, err := NewAccountant(1.0, 1e-9, true)
	require.NoError(t, err)

	// A tiny delta buys far less rho than pure DP's eps^2/2 at the same
	// epsilon, but still a positive amount.
	assert.Greater(t, a.Rho(), 0.0)
	assert.Less(t, a.Rho(), 0.5)

	// The chosen rho must actually satisfy the (eps, delta) guarantee.
	assert.LessOrEqual(t, cdpDelta(a.Rho(), 1.0), 1e-9*(1+1e-6))
}

func TestAccountantRhoMonotoneInDelta(t *testing.T) {
	loose, err := NewAccountant(1.0, 1e-6, true)
	require.NoError(t, err)
	tight, err := NewAccountant(1.0, 1e-12, true)
	require.NoError(t, err)

	assert.Greater(t, loose.Rho(), tight.Rho())
}

func TestAccountantSensitivity(t *testing.T) {
	bounded, err := NewAccountant(1.0, 0, true)
	require.NoError(t, err)
	assert.Equal(t, 2.0, bounded.Sensitivity())
	assert.InDelta(t, math.Sqrt2, bounded.MarginalSensitivity(), 1e-12)

	unbounded, err := NewAccountant(1.0, 0, false)
	require.NoError(t, err)
	assert.Equal(t, 1.0, unbounded.Sensitivity())
	assert.Equal(t, 1.0, unbounded.MarginalSensitivity())
}

func TestCdpDeltaEdgeCases(t *testing.T) {
	assert.Equal(t, 1.0, cdpDelta(-1, 1))
	assert.Equal(t, 1.0, cdpDelta(1, -1))
	assert.Equal(t, 0.0, cdpDelta(0, 1))
	assert.LessOrEqual(t, cdpDelta(10, 0.1), 1.0)
}

package cycle

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func i64(v int64) *int64 { return &v }

func f64(v float64) *float64 { return &v }

func TestComputeMidCycle(t *testing.T) {
	stats := Compute(i64(75000), i64(40000), i64(30000), f64(0.65))

	require.NotNil(t, stats.CyclesDone)
	assert.Equal(t, int64(2), *stats.CyclesDone)
	assert.Equal(t, int64(15000), *stats.InCurrent)
	assert.Equal(t, int64(1000), *stats.OutCurrent)
	require.NotNil(t, stats.CurrentPayoutPct)
	assert.InDelta(t, 1000.0/15000.0, *stats.CurrentPayoutPct, 1e-9)
	assert.Equal(t, int64(15000), *stats.RemainingIn)
	assert.Equal(t, int64(18500), *stats.RemainingOutToTarget)
	assert.False(t, stats.Healthy())
}

func TestComputeHealthyWhenTargetReachable(t *testing.T) {
	// 2000 in, already paid 1200 of a 1300 target: 100 left to pay over
	// 18000 of remaining coin-in.
	stats := Compute(i64(2000), i64(1200), i64(20000), f64(0.065))
	require.NotNil(t, stats.RemainingOutToTarget)
	assert.Equal(t, int64(100), *stats.RemainingOutToTarget)
	assert.True(t, stats.Healthy())
}

func TestComputeOverpaidClampsToZero(t *testing.T) {
	// Paid beyond the cycle target: nothing left to pay.
	stats := Compute(i64(10000), i64(9000), i64(30000), f64(0.65))
	require.NotNil(t, stats.RemainingOutToTarget)
	assert.Equal(t, int64(0), *stats.RemainingOutToTarget)
	assert.True(t, stats.Healthy())
}

func TestComputeCycleBoundary(t *testing.T) {
	// Exactly at a cycle boundary the current cycle is empty and the
	// payout percentage is undefined.
	stats := Compute(i64(60000), i64(39000), i64(30000), f64(0.65))
	require.NotNil(t, stats.CyclesDone)
	assert.Equal(t, int64(2), *stats.CyclesDone)
	assert.Equal(t, int64(0), *stats.InCurrent)
	assert.Nil(t, stats.CurrentPayoutPct)
	assert.Equal(t, int64(30000), *stats.RemainingIn)
}

func TestComputeMissingInputs(t *testing.T) {
	tests := []struct {
		name   string
		cntIn  *int64
		cntOut *int64
		length *int64
		payout *float64
	}{
		{"no coin-in", nil, i64(1), i64(30000), f64(0.65)},
		{"no coin-out", i64(1), nil, i64(30000), f64(0.65)},
		{"no cycle length", i64(1), i64(1), nil, f64(0.65)},
		{"zero cycle length", i64(1), i64(1), i64(0), f64(0.65)},
		{"no payout", i64(1), i64(1), i64(30000), nil},
		{"zero payout", i64(1), i64(1), i64(30000), f64(0)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stats := Compute(tt.cntIn, tt.cntOut, tt.length, tt.payout)
			assert.Nil(t, stats.CyclesDone)
			assert.Nil(t, stats.InCurrent)
			assert.Nil(t, stats.OutCurrent)
			assert.Nil(t, stats.CurrentPayoutPct)
			assert.Nil(t, stats.RemainingIn)
			assert.Nil(t, stats.RemainingOutToTarget)
			assert.False(t, stats.Healthy())
		})
	}
}

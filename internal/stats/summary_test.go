package stats

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSummarizeEnergyTrace(t *testing.T) {
	trace := []EnergyPoint{
		{Step: 0, Replica: 1, Energy: 0},
		{Step: 0, Replica: 0, Energy: -1},
		{Step: 10, Replica: 1, Energy: -2},
		{Step: 20, Replica: 1, Energy: -4},
	}
	got := SummarizeEnergyTrace(trace)
	require.Len(t, got, 2)

	assert.Equal(t, EnergySummary{Replica: 0, Samples: 1, Mean: -1, StdDev: 0, Min: -1, Max: -1}, got[0])

	multi := got[1]
	assert.Equal(t, 1, multi.Replica)
	assert.Equal(t, 3, multi.Samples)
	assert.InDelta(t, -2, multi.Mean, 1e-12)
	assert.InDelta(t, 2, multi.StdDev, 1e-12)
	assert.Equal(t, -4.0, multi.Min)
	assert.Equal(t, 0.0, multi.Max)
}

func TestSummarizeEmptyTrace(t *testing.T) {
	assert.Empty(t, SummarizeEnergyTrace(nil))
}

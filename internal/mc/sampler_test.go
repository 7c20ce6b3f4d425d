package mc

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hplattice/internal/energy"
	"hplattice/internal/lattice"
	"hplattice/internal/moves"
)

func newTestChain(t *testing.T, hp string, codes ...int) *lattice.Chain {
	t.Helper()
	vec, err := lattice.Directions(codes)
	require.NoError(t, err)
	c, err := lattice.NewChain(lattice.MustParseSequence(hp), vec)
	require.NoError(t, err)
	return c
}

func newTestSampler(t *testing.T, chain *lattice.Chain, eps float64) *Sampler {
	t.Helper()
	set, err := moves.New(moves.MS2)
	require.NoError(t, err)
	s, err := NewSampler(energy.Model{Epsilon: eps}, set, energy.Boltzmann, chain)
	require.NoError(t, err)
	return s
}

func TestMetropolisLimits(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	const trials = 5000

	accepted := 0
	for i := 0; i < trials; i++ {
		if Metropolis(rng, 5, energy.Boltzmann, 1e12) {
			accepted++
		}
	}
	assert.Greater(t, float64(accepted)/trials, 0.99)

	for i := 0; i < trials; i++ {
		require.False(t, Metropolis(rng, 0.01, energy.Boltzmann, 1e-9), "uphill move accepted near T=0")
		require.True(t, Metropolis(rng, 0, energy.Boltzmann, 1e-9), "neutral move rejected near T=0")
		require.True(t, Metropolis(rng, -3, energy.Boltzmann, 1e-9), "downhill move rejected near T=0")
	}
}

func TestSamplerHighTemperatureAcceptsViableMoves(t *testing.T) {
	chain := newTestChain(t, "PHPPHPHPPHH", 1, 0, 1, 2, 1, 2, 1, 2, 3, 3)
	s := newTestSampler(t, chain, -3)
	rng := rand.New(rand.NewSource(345))

	viable, accepted := 0, 0
	for i := 0; i < 5000; i++ {
		out, err := s.Step(rng, chain, 1e12)
		require.NoError(t, err)
		if out.Viable {
			viable++
		}
		if out.Accepted {
			accepted++
		}
	}
	require.Greater(t, viable, 0)
	assert.Greater(t, float64(accepted)/float64(viable), 0.99)
}

func TestSamplerLowTemperatureOnlyDescends(t *testing.T) {
	chain := newTestChain(t, "PHPPHPHPPHH", 1, 0, 1, 2, 1, 2, 1, 2, 3, 3)
	s := newTestSampler(t, chain, -3)
	rng := rand.New(rand.NewSource(7))

	last := s.Energy()
	for i := 0; i < 5000; i++ {
		out, err := s.Step(rng, chain, 1e-9)
		require.NoError(t, err)
		if out.Accepted {
			require.LessOrEqual(t, out.Delta, 0.0)
		}
		require.LessOrEqual(t, s.Energy(), last)
		last = s.Energy()
		require.True(t, chain.Viable())
	}
}

func TestSamplerKeepsEnergyInSync(t *testing.T) {
	chain := newTestChain(t, "HPPHPH", 0, 0, 0, 0, 0)
	s := newTestSampler(t, chain, -1)
	model := energy.Model{Epsilon: -1}
	rng := rand.New(rand.NewSource(99))
	for i := 0; i < 2000; i++ {
		before := chain.Vec()
		out, err := s.Step(rng, chain, 300)
		require.NoError(t, err)
		if !out.Accepted {
			require.Equal(t, before, chain.Vec(), "rejected or non-viable move mutated the chain")
		}
		require.Equal(t, model.Total(chain.Active()), s.Energy())
	}
}

func TestSamplerRejectsNonPositiveTemperature(t *testing.T) {
	chain := newTestChain(t, "HPPH", 0, 0, 0)
	s := newTestSampler(t, chain, -1)
	rng := rand.New(rand.NewSource(1))
	for _, temp := range []float64{0, -10} {
		_, err := s.Step(rng, chain, temp)
		assert.ErrorIs(t, err, ErrTemperature)
	}
}

package mc

import (
	"errors"
	"fmt"
	"math"
	"math/rand"

	"hplattice/internal/energy"
	"hplattice/internal/lattice"
	"hplattice/internal/moves"
)

var ErrTemperature = errors.New("temperature must be positive")

// Outcome describes one Metropolis step.
type Outcome struct {
	Draw     moves.Draw
	Viable   bool
	Accepted bool
	// Delta is E_staged - E_current; zero for non-viable proposals.
	Delta  float64
	Energy float64
}

// Sampler applies one move per step to a chain and accepts or rejects it
// with the Metropolis criterion.
type Sampler struct {
	model      energy.Model
	moves      *moves.Set
	k          float64
	lastEnergy float64
}

func NewSampler(model energy.Model, set *moves.Set, k float64, chain *lattice.Chain) (*Sampler, error) {
	if set == nil {
		return nil, fmt.Errorf("%w: nil move set", moves.ErrUnknownMoveSet)
	}
	if !(k > 0) || math.IsInf(k, 0) {
		return nil, fmt.Errorf("boltzmann constant must be positive and finite, got %v", k)
	}
	if err := model.Validate(chain.Len()); err != nil {
		return nil, err
	}
	return &Sampler{
		model:      model,
		moves:      set,
		k:          k,
		lastEnergy: model.Total(chain.Active()),
	}, nil
}

// Energy is the total energy of the last accepted conformation.
func (s *Sampler) Energy() float64 { return s.lastEnergy }

// Step stages a move, discards it if the chain would overlap itself, and
// otherwise accepts it when u < exp(-dE/kT). rng is consumed by the move
// draw first, then by the acceptance draw.
func (s *Sampler) Step(rng *rand.Rand, chain *lattice.Chain, t float64) (Outcome, error) {
	if !(t > 0) {
		return Outcome{}, fmt.Errorf("%w: %v", ErrTemperature, t)
	}
	out := Outcome{Draw: s.moves.Stage(rng, chain)}
	if !chain.StagedIsViable() {
		chain.Discard()
		out.Energy = s.lastEnergy
		return out, nil
	}
	out.Viable = true

	proposed := s.model.Total(chain.Staged())
	out.Delta = proposed - s.lastEnergy
	if Metropolis(rng, out.Delta, s.k, t) {
		chain.Commit()
		s.lastEnergy = proposed
		out.Accepted = true
	} else {
		chain.Discard()
	}
	out.Energy = s.lastEnergy
	return out, nil
}

// Metropolis draws u in [0,1) and reports u < exp(-delta/(k*t)). Moves that
// do not raise the energy are always accepted.
func Metropolis(rng *rand.Rand, delta, k, t float64) bool {
	u := rng.Float64()
	return u < math.Exp(-delta/(k*t))
}

package energy

import (
	"errors"
	"fmt"
	"math"

	"hplattice/internal/lattice"
)

// Boltzmann is k_B in kcal/(mol*K).
const Boltzmann = 0.001987

var ErrInvalidRestraint = errors.New("invalid restraint")

// Restraint is a harmonic penalty KSpring * D, where D sums the squared
// lattice distance over Pairs. The zero value contributes nothing.
type Restraint struct {
	Pairs   []lattice.Contact `json:"pairs,omitempty"`
	KSpring float64           `json:"kspring,omitempty"`
}

// Validate checks the pairs against a chain of n monomers.
func (r Restraint) Validate(n int) error {
	if math.IsNaN(r.KSpring) || math.IsInf(r.KSpring, 0) {
		return fmt.Errorf("%w: kspring %v", ErrInvalidRestraint, r.KSpring)
	}
	for _, p := range r.Pairs {
		if p.I < 0 || p.J < 0 || p.I >= n || p.J >= n || p.I == p.J {
			return fmt.Errorf("%w: pair (%d, %d) for %d monomers", ErrInvalidRestraint, p.I, p.J, n)
		}
	}
	return nil
}

// Enabled reports whether any pair is restrained.
func (r Restraint) Enabled() bool { return len(r.Pairs) > 0 }

// Distance is D, the summed squared distance over the restrained pairs.
func (r Restraint) Distance(s lattice.State) int {
	d := 0
	for _, p := range r.Pairs {
		d += s.SquaredDistance(p.I, p.J)
	}
	return d
}

func (r Restraint) Energy(s lattice.State) float64 {
	return r.KSpring * float64(r.Distance(s))
}

// Model scores a conformation: Epsilon per H-H contact plus the restraint.
// Epsilon is conventionally negative.
type Model struct {
	Epsilon   float64   `json:"epsilon"`
	Restraint Restraint `json:"restraint"`
}

func (m Model) Validate(n int) error {
	if math.IsNaN(m.Epsilon) || math.IsInf(m.Epsilon, 0) {
		return fmt.Errorf("epsilon must be finite, got %v", m.Epsilon)
	}
	return m.Restraint.Validate(n)
}

func (m Model) ContactEnergy(s lattice.State) float64 {
	return m.Epsilon * float64(s.ContactCount())
}

func (m Model) RestraintEnergy(s lattice.State) float64 {
	return m.Restraint.Energy(s)
}

func (m Model) Total(s lattice.State) float64 {
	return m.ContactEnergy(s) + m.RestraintEnergy(s)
}

// EpsilonFromKT converts a contact strength given in units of kT into an
// absolute energy at temperature t.
func EpsilonFromKT(eps, k, t float64) float64 {
	return eps * k * t
}

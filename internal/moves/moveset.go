package moves

import (
	"fmt"
	"math/rand"

	"github.com/mroth/weightedrand"

	"hplattice/internal/lattice"
)

// Draw is one randomly chosen move before it touches a chain.
type Draw struct {
	Index     int
	Direction int
	Primitive Kind
}

// Set is a move set resolved once from its Kind.
type Set struct {
	kind    Kind
	chooser *weightedrand.Chooser
}

func New(kind Kind) (*Set, error) {
	s := &Set{kind: kind}
	switch {
	case kind.Primitive(), kind == MS1, kind == MS3:
	case kind == MS2:
		chooser, err := weightedrand.NewChooser(
			weightedrand.NewChoice(ThreeBeadFlip, 1),
			weightedrand.NewChoice(Crankshaft, 1),
			weightedrand.NewChoice(RigidRotation, 1),
		)
		if err != nil {
			return nil, fmt.Errorf("build MS2 chooser: %w", err)
		}
		s.chooser = chooser
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownMoveSet, kind)
	}
	return s, nil
}

// Parse is ParseKind followed by New.
func Parse(name string) (*Set, error) {
	kind, err := ParseKind(name)
	if err != nil {
		return nil, err
	}
	return New(kind)
}

// Draw picks a bond index uniformly over all bonds, a direction in {+1,-1},
// and the primitive to try. rng is consumed in that order.
func (s *Set) Draw(rng *rand.Rand, bonds int) Draw {
	var d Draw
	if s.kind == EndRotation {
		d.Index = rng.Intn(2) * (bonds - 1)
	} else {
		d.Index = rng.Intn(bonds)
	}
	d.Direction = 1
	if rng.Intn(2) == 0 {
		d.Direction = -1
	}

	switch s.kind {
	case MS1:
		if d.Index == 0 || d.Index == bonds-1 {
			d.Primitive = EndRotation
		} else {
			d.Primitive = ThreeBeadFlip
		}
	case MS2:
		d.Primitive = s.chooser.PickSource(rng).(Kind)
	case MS3:
		d.Primitive = RigidRotation
	default:
		d.Primitive = s.kind
	}
	return d
}

// Apply stages d on the chain and returns the primitive actually executed.
// Flips and crankshafts that cannot swap fall back to a rigid rotation.
func (s *Set) Apply(c *lattice.Chain, d Draw) Kind {
	switch d.Primitive {
	case EndRotation:
		c.StageEndRotation(d.Index, d.Direction)
		return EndRotation
	case ThreeBeadFlip:
		if c.StageFlip(d.Index) {
			return ThreeBeadFlip
		}
	case Crankshaft:
		if c.StageCrankshaft(d.Index) {
			return Crankshaft
		}
	}
	c.StageRigidRotation(d.Index, d.Direction)
	return RigidRotation
}

// Stage draws a move for c and applies it to the staged conformation.
func (s *Set) Stage(rng *rand.Rand, c *lattice.Chain) Draw {
	d := s.Draw(rng, c.Bonds())
	d.Primitive = s.Apply(c, d)
	return d
}

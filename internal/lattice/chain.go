package lattice

import (
	"errors"
	"fmt"
)

var ErrChainComplete = errors.New("chain already has all bonds")

type conformation struct {
	vec    []Direction
	coords []Point
}

func (c *conformation) copyFrom(src conformation) {
	c.vec = append(c.vec[:0], src.vec...)
	c.coords = append(c.coords[:0], src.coords...)
}

// Chain is an HP chain on the square lattice. It carries an active
// (committed) conformation and a staged copy that Monte Carlo moves edit;
// the two never share backing arrays.
type Chain struct {
	seq Sequence

	active conformation
	viable bool

	staged         conformation
	stagedViable   bool
	stagedResolved bool
	// stagedStale is set when the active chain changed length (grow/shift)
	// and the staged copy has not been re-synced yet.
	stagedStale bool

	occupied map[Point]struct{}
}

// NewChain builds a full-length chain. vec must carry exactly N-1 bonds.
func NewChain(seq Sequence, vec []Direction) (*Chain, error) {
	if seq.Len() < 2 {
		return nil, fmt.Errorf("%w: empty sequence", ErrInvalidSequence)
	}
	if len(vec) != seq.Bonds() {
		return nil, fmt.Errorf("%w: sequence %s needs %d bonds, got %d", ErrVectorLength, seq, seq.Bonds(), len(vec))
	}
	return newChain(seq, vec)
}

// NewGrowingChain builds a chain from a bond prefix that may be shorter than
// the sequence; Grow extends it one monomer at a time.
func NewGrowingChain(seq Sequence, prefix []Direction) (*Chain, error) {
	if seq.Len() < 2 {
		return nil, fmt.Errorf("%w: empty sequence", ErrInvalidSequence)
	}
	if len(prefix) > seq.Bonds() {
		return nil, fmt.Errorf("%w: sequence %s holds at most %d bonds, got %d", ErrVectorLength, seq, seq.Bonds(), len(prefix))
	}
	return newChain(seq, prefix)
}

func newChain(seq Sequence, vec []Direction) (*Chain, error) {
	for i, d := range vec {
		if d >= NumDirections {
			return nil, fmt.Errorf("%w: bond %d has code %d", ErrInvalidDirection, i, d)
		}
	}
	c := &Chain{
		seq:      seq,
		occupied: make(map[Point]struct{}, seq.Len()),
	}
	c.active.vec = make([]Direction, len(vec), seq.Bonds())
	copy(c.active.vec, vec)
	c.active.coords = make([]Point, len(vec)+1, seq.Len())
	resolveInto(c.active.coords, c.active.vec)
	c.viable = c.selfAvoiding(c.active.coords)
	c.Discard()
	return c, nil
}

func (c *Chain) Sequence() Sequence { return c.seq }

// Len is the number of monomers in the sequence.
func (c *Chain) Len() int { return c.seq.Len() }

// Bonds is the number of bonds currently placed.
func (c *Chain) Bonds() int { return len(c.active.vec) }

// Complete reports whether every monomer has been placed.
func (c *Chain) Complete() bool { return len(c.active.vec) == c.seq.Bonds() }

func (c *Chain) Vec() []Direction { return append([]Direction(nil), c.active.vec...) }

func (c *Chain) Coords() []Point { return append([]Point(nil), c.active.coords...) }

// Viable reports whether the active conformation is self-avoiding.
func (c *Chain) Viable() bool { return c.viable }

// IsViable re-checks self-avoidance of the active coordinates from scratch.
func (c *Chain) IsViable() bool { return c.selfAvoiding(c.active.coords) }

func (c *Chain) selfAvoiding(coords []Point) bool {
	clear(c.occupied)
	for _, p := range coords {
		if _, taken := c.occupied[p]; taken {
			return false
		}
		c.occupied[p] = struct{}{}
	}
	return true
}

// Grow appends an Up bond and the matching monomer.
func (c *Chain) Grow() error {
	if c.Complete() {
		return ErrChainComplete
	}
	last := c.active.coords[len(c.active.coords)-1]
	c.active.vec = append(c.active.vec, Up)
	c.active.coords = append(c.active.coords, last.Add(Up.Displacement()))
	c.viable = c.selfAvoiding(c.active.coords)
	c.stagedStale = true
	return nil
}

// Shift advances the bond vector like a base-4 odometer:
//
//	[0,0,0,0] -> [0,0,0,1]
//	[0,1,0,3] -> [0,1,1]
//	[0,3,3,3] -> [1]
//
// Trailing Left bonds are popped, then the last remaining bond turns one
// step clockwise and only its end monomer moves. It returns true once every
// bond has been popped.
func (c *Chain) Shift() (done bool) {
	c.stagedStale = true
	vec := c.active.vec
	for len(vec) > 0 && vec[len(vec)-1] == Left {
		vec = vec[:len(vec)-1]
	}
	c.active.vec = vec
	c.active.coords = c.active.coords[:len(vec)+1]
	if len(vec) == 0 {
		c.viable = false
		return true
	}

	i := len(vec) - 1
	end := &c.active.coords[i+1]
	switch vec[i] {
	case Up:
		end.X++
		end.Y--
	case Right:
		end.X--
		end.Y--
	case Down:
		end.X--
		end.Y++
	}
	vec[i]++
	c.viable = c.selfAvoiding(c.active.coords)
	return false
}

// NonRedundant reports whether the bond vector is the canonical member of
// its rotation/reflection class: first bond Up and first turn to the Right.
// The straight chain is canonical.
func (c *Chain) NonRedundant() bool {
	vec := c.active.vec
	if len(vec) == 0 || vec[0] != Up {
		return false
	}
	for _, d := range vec {
		if d != Up {
			return d == Right
		}
	}
	return true
}

// FirstBondRight reports whether the first bond has turned Right, which
// marks the end of the Up-first rotation class during enumeration.
func (c *Chain) FirstBondRight() bool {
	return len(c.active.vec) > 0 && c.active.vec[0] == Right
}

func (c *Chain) ContactState() ContactState {
	return contactsOf(c.seq, c.active.coords)
}

// Energy returns epsilon per H-H contact together with the contact state.
func (c *Chain) Energy(epsilon float64) (float64, ContactState) {
	state := c.ContactState()
	return epsilon * float64(len(state)), state
}

// Active is a read-only view of the committed conformation. It is valid
// until the next mutation of the chain.
func (c *Chain) Active() State {
	return State{seq: &c.seq, vec: c.active.vec, coords: c.active.coords, viable: c.viable}
}

// Staged is a read-only view of the proposed conformation, resolving its
// coordinates first if a move has been staged.
func (c *Chain) Staged() State {
	c.resolveStaged()
	return State{seq: &c.seq, vec: c.staged.vec, coords: c.staged.coords, viable: c.stagedViable}
}

func (c *Chain) syncStaged() {
	if c.stagedStale {
		c.Discard()
	}
}

func (c *Chain) resolveStaged() {
	c.syncStaged()
	if c.stagedResolved {
		return
	}
	if len(c.staged.coords) != len(c.staged.vec)+1 {
		c.staged.coords = make([]Point, len(c.staged.vec)+1)
	}
	resolveInto(c.staged.coords, c.staged.vec)
	c.stagedViable = c.selfAvoiding(c.staged.coords)
	c.stagedResolved = true
}

// StageEndRotation turns the single bond v by dir quarter turns.
func (c *Chain) StageEndRotation(v, dir int) {
	c.syncStaged()
	c.staged.vec[v] = c.staged.vec[v].Rotate(dir)
	c.stagedResolved = false
}

// StageFlip swaps bonds v and v+1 (a three-bead flip). It reports false and
// leaves the staged chain untouched when v+1 is out of range or both bonds
// point the same way.
func (c *Chain) StageFlip(v int) bool {
	return c.stageSwap(v, v+1)
}

// StageCrankshaft swaps bonds v and v+2 under the same rules as StageFlip.
func (c *Chain) StageCrankshaft(v int) bool {
	return c.stageSwap(v, v+2)
}

func (c *Chain) stageSwap(a, b int) bool {
	c.syncStaged()
	vec := c.staged.vec
	if a < 0 || b >= len(vec) || vec[a] == vec[b] {
		return false
	}
	vec[a], vec[b] = vec[b], vec[a]
	c.stagedResolved = false
	return true
}

// StageRigidRotation turns every bond from v to the end by dir, pivoting the
// tail of the chain around monomer v.
func (c *Chain) StageRigidRotation(v, dir int) {
	c.syncStaged()
	for k := v; k < len(c.staged.vec); k++ {
		c.staged.vec[k] = c.staged.vec[k].Rotate(dir)
	}
	c.stagedResolved = false
}

// StagedIsViable resolves the staged coordinates and checks self-avoidance.
// The active conformation is not touched.
func (c *Chain) StagedIsViable() bool {
	c.resolveStaged()
	return c.stagedViable
}

// Commit copies the staged conformation into the active one.
func (c *Chain) Commit() {
	c.resolveStaged()
	c.active.copyFrom(c.staged)
	c.viable = c.stagedViable
}

// Discard resets the staged conformation to the active one.
func (c *Chain) Discard() {
	c.staged.copyFrom(c.active)
	c.stagedViable = c.viable
	c.stagedResolved = true
	c.stagedStale = false
}

package mc

import (
	"math/rand"

	"hplattice/internal/lattice"
)

// Replica is one chain evolving at a temperature taken from the ladder.
// Its slot Index never changes; swaps exchange Temperature and LadderIndex.
type Replica struct {
	index       int
	chain       *lattice.Chain
	sampler     *Sampler
	temperature float64
	ladderIndex int

	steps         int
	viableSteps   int
	acceptedSteps int
	moveViability float64
	acceptance    float64

	swapsAttempted int
	swapsAccepted  int
}

func newReplica(index int, chain *lattice.Chain, sampler *Sampler, temperature float64) *Replica {
	return &Replica{
		index:       index,
		chain:       chain,
		sampler:     sampler,
		temperature: temperature,
		ladderIndex: index,
	}
}

func (r *Replica) Index() int            { return r.index }
func (r *Replica) Chain() *lattice.Chain { return r.chain }
func (r *Replica) Temperature() float64  { return r.temperature }
func (r *Replica) LadderIndex() int      { return r.ladderIndex }
func (r *Replica) Energy() float64       { return r.sampler.Energy() }
func (r *Replica) SwapsAttempted() int   { return r.swapsAttempted }
func (r *Replica) SwapsAccepted() int    { return r.swapsAccepted }

// Counters returns the step, viable step and accepted step totals.
func (r *Replica) Counters() (steps, viable, accepted int) {
	return r.steps, r.viableSteps, r.acceptedSteps
}

func (r *Replica) step(rng *rand.Rand) (Outcome, error) {
	out, err := r.sampler.Step(rng, r.chain, r.temperature)
	if err != nil {
		return out, err
	}
	r.steps++
	if out.Viable {
		r.viableSteps++
	}
	if out.Accepted {
		r.acceptedSteps++
	}
	return out, nil
}

// computeRatios refreshes MoveViability (viable/steps) and Acceptance
// (accepted/viable). Ratios stay zero until their denominator is non-zero.
func (r *Replica) computeRatios() {
	if r.steps > 0 {
		r.moveViability = float64(r.viableSteps) / float64(r.steps)
	}
	if r.viableSteps > 0 {
		r.acceptance = float64(r.acceptedSteps) / float64(r.viableSteps)
	}
}

// IsNative reports whether the current contact state equals native.
func (r *Replica) IsNative(native lattice.ContactState) bool {
	return r.chain.ContactState().Equal(native)
}

// ReplicaStats is a point-in-time report of one replica.
type ReplicaStats struct {
	Replica        int     `json:"replica"`
	Temperature    float64 `json:"temperature"`
	LadderIndex    int     `json:"ladder_index"`
	Steps          int     `json:"steps"`
	ViableSteps    int     `json:"viable_steps"`
	AcceptedSteps  int     `json:"accepted_steps"`
	MoveViability  float64 `json:"move_viability"`
	Acceptance     float64 `json:"acceptance"`
	SwapsAttempted int     `json:"swaps_attempted"`
	SwapsAccepted  int     `json:"swaps_accepted"`
	SwapAcceptance float64 `json:"swap_acceptance"`
	Energy         float64 `json:"energy"`
	ContactState   string  `json:"contact_state"`
	Vec            []int   `json:"vec"`
	Native         bool    `json:"native,omitempty"`
}

func (r *Replica) Stats(native lattice.ContactState) ReplicaStats {
	steps, viable, accepted := r.Counters()
	s := ReplicaStats{
		Replica:        r.index,
		Temperature:    r.temperature,
		LadderIndex:    r.ladderIndex,
		Steps:          steps,
		ViableSteps:    viable,
		AcceptedSteps:  accepted,
		MoveViability:  r.moveViability,
		Acceptance:     r.acceptance,
		SwapsAttempted: r.swapsAttempted,
		SwapsAccepted:  r.swapsAccepted,
		Energy:         r.Energy(),
		ContactState:   r.chain.ContactState().String(),
		Vec:            lattice.Codes(r.chain.Vec()),
	}
	if r.swapsAttempted > 0 {
		s.SwapAcceptance = float64(r.swapsAccepted) / float64(r.swapsAttempted)
	}
	if native != nil {
		s.Native = r.IsNative(native)
	}
	return s
}

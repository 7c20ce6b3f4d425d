package enumerate

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"hplattice/internal/energy"
	"hplattice/internal/lattice"
	"hplattice/internal/trajectory"
)

var ErrNonZeroStart = errors.New("enumeration must start from an all-zero bond vector")

// Phase is the enumerator state after a step.
type Phase uint8

const (
	Growing Phase = iota
	AtFullLength
	Backtracking
	Done
)

func (p Phase) String() string {
	switch p {
	case Growing:
		return "growing"
	case AtFullLength:
		return "at_full_length"
	case Backtracking:
		return "backtracking"
	case Done:
		return "done"
	default:
		return fmt.Sprintf("phase(%d)", uint8(p))
	}
}

const ctxCheckEvery = 1 << 16

type Options struct {
	Model  energy.Model
	Sink   trajectory.Sink
	Logger *slog.Logger
}

// Enumerator walks every self-avoiding conformation of a sequence once per
// rotation/reflection class.
type Enumerator struct {
	chain   *lattice.Chain
	model   energy.Model
	sink    trajectory.Sink
	logger  *slog.Logger
	phase   Phase
	density *Density
}

// New starts from the single-monomer chain at the origin.
func New(seq lattice.Sequence, opts Options) (*Enumerator, error) {
	return NewFromVector(seq, nil, opts)
}

// NewFromVector starts from an all-zero prefix of up to N-1 bonds. Any other
// start would traverse a strict subset of the space.
func NewFromVector(seq lattice.Sequence, vec []lattice.Direction, opts Options) (*Enumerator, error) {
	for i, d := range vec {
		if d != lattice.Up {
			return nil, fmt.Errorf("%w: bond %d is %s", ErrNonZeroStart, i, d)
		}
	}
	if err := opts.Model.Validate(seq.Len()); err != nil {
		return nil, err
	}
	chain, err := lattice.NewGrowingChain(seq, vec)
	if err != nil {
		return nil, err
	}
	sink := opts.Sink
	if sink == nil {
		sink = trajectory.Discard
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Enumerator{
		chain:   chain,
		model:   opts.Model,
		sink:    sink,
		logger:  logger,
		phase:   Growing,
		density: newDensity(seq.String(), opts.Model.Epsilon),
	}, nil
}

func (e *Enumerator) Phase() Phase { return e.phase }

// Chain exposes the chain being walked; callers must not mutate it.
func (e *Enumerator) Chain() *lattice.Chain { return e.chain }

// Density returns the tallies gathered so far.
func (e *Enumerator) Density() *Density { return e.density }

// Step advances the traversal by one grow or shift. A conformation that is
// complete, viable and canonical is tallied and sent to the sink before the
// shift. The only error is a sink failure.
func (e *Enumerator) Step() (Phase, error) {
	if e.phase == Done {
		return Done, nil
	}
	e.density.Steps++
	c := e.chain

	var done bool
	switch {
	case !c.Complete() && c.Viable():
		if err := c.Grow(); err != nil {
			return e.phase, err
		}
		e.phase = Growing
	case !c.Complete():
		done = c.Shift()
		e.phase = Backtracking
	default:
		e.phase = AtFullLength
		if c.Viable() && c.NonRedundant() {
			if err := e.record(); err != nil {
				return e.phase, err
			}
		}
		done = c.Shift()
	}

	if done || c.FirstBondRight() {
		e.phase = Done
	}
	return e.phase, nil
}

func (e *Enumerator) record() error {
	active := e.chain.Active()
	state := active.ContactState()
	total := e.model.Total(active)
	e.density.tally(state, total)
	if e.model.Restraint.Enabled() {
		e.density.tallyRestrained(len(state), e.model.Restraint.Distance(active), total)
	}
	frame := trajectory.NewFrame(e.chain, 0, e.density.Conformations-1, total, 0)
	if err := e.sink.Snapshot(frame); err != nil {
		return fmt.Errorf("snapshot conformation %d: %w", e.density.Conformations, err)
	}
	return nil
}

// Run steps until the traversal is exhausted.
func (e *Enumerator) Run(ctx context.Context) (*Density, error) {
	e.logger.Info("enumeration started", "sequence", e.density.Sequence, "monomers", e.chain.Len())
	for e.phase != Done {
		if e.density.Steps%ctxCheckEvery == 0 {
			if err := ctx.Err(); err != nil {
				return e.density, err
			}
		}
		if _, err := e.Step(); err != nil {
			return e.density, err
		}
	}
	e.logger.Info("enumeration finished",
		"sequence", e.density.Sequence,
		"conformations", e.density.Conformations,
		"contact_states", len(e.density.States),
		"steps", e.density.Steps,
	)
	return e.density, nil
}

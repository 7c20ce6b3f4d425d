package mc

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/rand"

	"hplattice/internal/energy"
	"hplattice/internal/lattice"
	"hplattice/internal/moves"
	"hplattice/internal/trajectory"
)

var ErrNativeRequired = errors.New("stop at native requires a native contact state")

// Config describes one replica exchange run.
type Config struct {
	Sequence lattice.Sequence
	// InitialVec seeds every replica; empty means the straight chain.
	InitialVec []lattice.Direction
	// Temperatures is the ladder in Kelvin; replica i starts at rung i.
	Temperatures []float64
	// Replicas defaults to len(Temperatures).
	Replicas int
	MoveSet  moves.Kind
	Model    energy.Model
	// K defaults to energy.Boltzmann.
	K float64

	Steps      int
	SwapEvery  int
	PrintEvery int
	// EnergyEvery samples every replica's energy into the trace; 0 disables it.
	EnergyEvery int
	SwapPolicy  SwapPolicy

	Native       lattice.ContactState
	StopAtNative bool

	Seed   int64
	Sink   trajectory.Sink
	Logger *slog.Logger
}

// Checkpoint is the ensemble report taken every PrintEvery steps.
type Checkpoint struct {
	Step           int            `json:"step"`
	Replicas       []ReplicaStats `json:"replicas"`
	SwapsAttempted int            `json:"swaps_attempted"`
	SwapsAccepted  int            `json:"swaps_accepted"`
}

// EnergySample is one point of a replica's energy trace.
type EnergySample struct {
	Step        int     `json:"step"`
	Replica     int     `json:"replica"`
	Temperature float64 `json:"temperature"`
	Energy      float64 `json:"energy"`
}

// TemperatureTally counts accepted moves made at one ladder rung.
type TemperatureTally struct {
	LadderIndex int     `json:"ladder_index"`
	Temperature float64 `json:"temperature"`
	Accepted    int     `json:"accepted"`
}

type Result struct {
	Steps                 int                `json:"steps"`
	FoundNative           bool               `json:"found_native"`
	NativeReplica         int                `json:"native_replica"`
	NativeStep            int                `json:"native_step"`
	Replicas              []ReplicaStats     `json:"replicas"`
	SwapsAttempted        int                `json:"swaps_attempted"`
	SwapsAccepted         int                `json:"swaps_accepted"`
	AcceptedAtTemperature []TemperatureTally `json:"accepted_at_temperature"`
	Checkpoints           []Checkpoint       `json:"checkpoints"`
	EnergyTrace           []EnergySample     `json:"energy_trace,omitempty"`
}

// Coordinator advances an ensemble of replicas in lock step and proposes
// temperature swaps between them. It owns the only random source.
type Coordinator struct {
	cfg      Config
	rng      *rand.Rand
	replicas []*Replica
	logger   *slog.Logger
	sink     trajectory.Sink

	swapsAttempted   int
	swapsAccepted    int
	acceptedAtLadder []int
	checkpoints      []Checkpoint
	trace            []EnergySample

	foundNative   bool
	nativeReplica int
	nativeStep    int
	stepsDone     int
}

func NewCoordinator(cfg Config) (*Coordinator, error) {
	if cfg.Sequence.Len() < 2 {
		return nil, fmt.Errorf("%w: sequence is required", lattice.ErrInvalidSequence)
	}
	if cfg.Replicas == 0 {
		cfg.Replicas = len(cfg.Temperatures)
	}
	if cfg.Replicas < 1 {
		return nil, fmt.Errorf("%w: empty temperature ladder", ErrTemperature)
	}
	if len(cfg.Temperatures) < cfg.Replicas {
		return nil, fmt.Errorf("%w: %d temperatures for %d replicas", ErrTemperature, len(cfg.Temperatures), cfg.Replicas)
	}
	for i, t := range cfg.Temperatures[:cfg.Replicas] {
		if !(t > 0) {
			return nil, fmt.Errorf("%w: ladder rung %d is %v", ErrTemperature, i, t)
		}
	}
	if cfg.Steps < 0 {
		return nil, fmt.Errorf("steps must be non-negative, got %d", cfg.Steps)
	}
	if cfg.SwapEvery <= 0 || cfg.PrintEvery <= 0 || cfg.EnergyEvery < 0 {
		return nil, fmt.Errorf("cadences must be positive: swap=%d print=%d energy=%d", cfg.SwapEvery, cfg.PrintEvery, cfg.EnergyEvery)
	}
	if cfg.SwapPolicy != RandomPair && cfg.SwapPolicy != Neighbors {
		return nil, fmt.Errorf("%w: %s", ErrUnknownSwapPolicy, cfg.SwapPolicy)
	}
	if cfg.StopAtNative && cfg.Native == nil {
		return nil, ErrNativeRequired
	}
	if cfg.K == 0 {
		cfg.K = energy.Boltzmann
	}
	if len(cfg.InitialVec) == 0 {
		cfg.InitialVec = make([]lattice.Direction, cfg.Sequence.Bonds())
	}

	c := &Coordinator{
		cfg:              cfg,
		rng:              rand.New(rand.NewSource(cfg.Seed)),
		logger:           cfg.Logger,
		sink:             cfg.Sink,
		acceptedAtLadder: make([]int, cfg.Replicas),
		nativeReplica:    -1,
		nativeStep:       -1,
	}
	if c.logger == nil {
		c.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if c.sink == nil {
		c.sink = trajectory.Discard
	}

	for i := 0; i < cfg.Replicas; i++ {
		chain, err := lattice.NewChain(cfg.Sequence, cfg.InitialVec)
		if err != nil {
			return nil, err
		}
		if !chain.Viable() {
			return nil, fmt.Errorf("initial bond vector %v is not self-avoiding", lattice.Codes(cfg.InitialVec))
		}
		set, err := moves.New(cfg.MoveSet)
		if err != nil {
			return nil, err
		}
		sampler, err := NewSampler(cfg.Model, set, cfg.K, chain)
		if err != nil {
			return nil, err
		}
		c.replicas = append(c.replicas, newReplica(i, chain, sampler, cfg.Temperatures[i]))
	}
	return c, nil
}

func (c *Coordinator) Replicas() []*Replica { return c.replicas }

// FoundNative reports whether any replica has reached the native state.
func (c *Coordinator) FoundNative() bool { return c.foundNative }

// Step runs production step prodstep: one Metropolis step per replica in
// slot order, the native check, then a swap and a checkpoint on their
// cadences. It reports true when the run must stop at the native state, in
// which case no swap or checkpoint happens.
func (c *Coordinator) Step(prodstep int) (bool, error) {
	sampleEnergy := c.cfg.EnergyEvery > 0 && prodstep%c.cfg.EnergyEvery == 0
	found := false
	for _, r := range c.replicas {
		out, err := r.step(c.rng)
		if err != nil {
			return false, fmt.Errorf("replica %d: %w", r.index, err)
		}
		if out.Accepted {
			c.acceptedAtLadder[r.ladderIndex]++
		}
		if sampleEnergy {
			c.trace = append(c.trace, EnergySample{Step: prodstep, Replica: r.index, Temperature: r.temperature, Energy: r.Energy()})
		}
		if c.cfg.StopAtNative && r.IsNative(c.cfg.Native) {
			if !found {
				c.nativeReplica = r.index
				c.nativeStep = prodstep
			}
			found = true
		}
	}
	c.stepsDone = prodstep + 1
	if found {
		c.foundNative = true
		c.logger.Info("native state found", "replica", c.nativeReplica, "step", prodstep,
			"temperature", c.replicas[c.nativeReplica].temperature)
		return true, nil
	}

	if prodstep%c.cfg.SwapEvery == 0 {
		c.AttemptSwap()
	}
	if prodstep%c.cfg.PrintEvery == 0 {
		if err := c.checkpoint(prodstep); err != nil {
			return false, err
		}
	}
	return false, nil
}

// AttemptSwap picks a pair with the configured policy and applies the
// exchange rule. With a single replica it does nothing.
func (c *Coordinator) AttemptSwap() SwapResult {
	if len(c.replicas) < 2 {
		return SwapResult{}
	}
	i, j := c.cfg.SwapPolicy.Pick(c.rng, len(c.replicas))
	delta, accepted := exchange(c.rng, c.cfg.K, c.replicas[i], c.replicas[j])
	c.swapsAttempted++
	if accepted {
		c.swapsAccepted++
	}
	return SwapResult{I: i, J: j, Delta: delta, Accepted: accepted}
}

func (c *Coordinator) checkpoint(prodstep int) error {
	cp := Checkpoint{
		Step:           prodstep,
		Replicas:       make([]ReplicaStats, 0, len(c.replicas)),
		SwapsAttempted: c.swapsAttempted,
		SwapsAccepted:  c.swapsAccepted,
	}
	for _, r := range c.replicas {
		r.computeRatios()
		stats := r.Stats(c.cfg.Native)
		cp.Replicas = append(cp.Replicas, stats)
		if err := c.sink.Snapshot(trajectory.NewFrame(r.chain, r.index, prodstep, r.Energy(), r.temperature)); err != nil {
			return fmt.Errorf("snapshot replica %d at step %d: %w", r.index, prodstep, err)
		}
		c.logger.Debug("replica",
			"step", prodstep,
			"replica", r.index,
			"temperature", r.temperature,
			"energy", stats.Energy,
			"viability", stats.MoveViability,
			"acceptance", stats.Acceptance,
			"swaps", stats.SwapsAttempted,
			"contacts", stats.ContactState,
		)
	}
	c.checkpoints = append(c.checkpoints, cp)
	c.logger.Info("checkpoint", "step", prodstep, "swaps", c.swapsAttempted, "swaps_accepted", c.swapsAccepted)
	return nil
}

// Run executes up to cfg.Steps production steps. The context is checked at
// checkpoint boundaries.
func (c *Coordinator) Run(ctx context.Context) (*Result, error) {
	c.logger.Info("replica exchange started",
		"sequence", c.cfg.Sequence.String(),
		"replicas", len(c.replicas),
		"steps", c.cfg.Steps,
		"moveset", c.cfg.MoveSet.String(),
		"swap_policy", c.cfg.SwapPolicy.String(),
		"seed", c.cfg.Seed,
	)
	for prodstep := 0; prodstep < c.cfg.Steps; prodstep++ {
		if prodstep%c.cfg.PrintEvery == 0 {
			if err := ctx.Err(); err != nil {
				return c.Result(), err
			}
		}
		stop, err := c.Step(prodstep)
		if err != nil {
			return c.Result(), err
		}
		if stop {
			break
		}
	}
	res := c.Result()
	c.logger.Info("replica exchange finished",
		"steps", res.Steps,
		"found_native", res.FoundNative,
		"swaps", res.SwapsAttempted,
		"swaps_accepted", res.SwapsAccepted,
	)
	return res, nil
}

// Result snapshots the run so far with freshly computed ratios.
func (c *Coordinator) Result() *Result {
	res := &Result{
		Steps:          c.stepsDone,
		FoundNative:    c.foundNative,
		NativeReplica:  c.nativeReplica,
		NativeStep:     c.nativeStep,
		SwapsAttempted: c.swapsAttempted,
		SwapsAccepted:  c.swapsAccepted,
		Checkpoints:    append([]Checkpoint(nil), c.checkpoints...),
		EnergyTrace:    append([]EnergySample(nil), c.trace...),
	}
	for _, r := range c.replicas {
		r.computeRatios()
		res.Replicas = append(res.Replicas, r.Stats(c.cfg.Native))
	}
	for i, n := range c.acceptedAtLadder {
		res.AcceptedAtTemperature = append(res.AcceptedAtTemperature, TemperatureTally{
			LadderIndex: i,
			Temperature: c.cfg.Temperatures[i],
			Accepted:    n,
		})
	}
	return res
}

package hplattice

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"hplattice/internal/energy"
	"hplattice/internal/lattice"
	"hplattice/internal/mc"
	"hplattice/internal/model"
	"hplattice/internal/moves"
	"hplattice/internal/stats"
	"hplattice/internal/trajectory"
)

type SampleRequest struct {
	RunID    string
	Sequence string
	// InitialVec is the starting bond vector shared by every replica; empty
	// means the straight chain (or DefaultInitialVec for DefaultSequence).
	InitialVec []int
	// Epsilon is the absolute energy per contact; nil selects DefaultEpsilonKT.
	Epsilon      *float64
	Restraint    string
	KSpring      float64
	Temperatures []float64
	Replicas     int
	MoveSet      string
	SwapPolicy   string
	Steps        int
	SwapEvery    int
	PrintEvery   int
	// EnergyEvery is the energy trace cadence; zero selects 1000 and a
	// negative value turns the trace off.
	EnergyEvery  int
	StopAtNative bool
	NativeDir    string
	Seed         int64
	// TrajectoryDir, when set, receives one XYZ file per replica with a frame
	// at every checkpoint.
	TrajectoryDir string
}

type SampleSummary struct {
	RunID        string
	ArtifactsDir string
	Native       string
	NativeSource string
	Result       *mc.Result
	Replicas     []model.ReplicaSummary
	Energies     []stats.EnergySummary
}

func (c *Client) Sample(ctx context.Context, req SampleRequest) (SampleSummary, error) {
	if req.Sequence == "" {
		req.Sequence = DefaultSequence
	}
	if req.Sequence == DefaultSequence && len(req.InitialVec) == 0 {
		req.InitialVec = append([]int(nil), DefaultInitialVec...)
	}
	if len(req.Temperatures) == 0 {
		req.Temperatures = append([]float64(nil), DefaultTemperatures...)
	}
	if req.MoveSet == "" {
		req.MoveSet = moves.MS2.String()
	}
	if req.SwapPolicy == "" {
		req.SwapPolicy = mc.RandomPair.String()
	}
	if req.Steps <= 0 {
		req.Steps = 500000
	}
	if req.SwapEvery <= 0 {
		req.SwapEvery = 1000
	}
	if req.PrintEvery <= 0 {
		req.PrintEvery = 1000
	}
	if req.EnergyEvery == 0 {
		req.EnergyEvery = 1000
	}
	energyEvery := max(req.EnergyEvery, 0)

	seq, err := lattice.ParseSequence(req.Sequence)
	if err != nil {
		return SampleSummary{}, err
	}
	vec, err := lattice.Directions(req.InitialVec)
	if err != nil {
		return SampleSummary{}, err
	}
	kind, err := moves.ParseKind(req.MoveSet)
	if err != nil {
		return SampleSummary{}, err
	}
	policy, err := mc.ParseSwapPolicy(req.SwapPolicy)
	if err != nil {
		return SampleSummary{}, err
	}
	restraint, err := parseRestraint(req.Restraint, req.KSpring, seq.Len())
	if err != nil {
		return SampleSummary{}, err
	}
	m := energy.Model{Epsilon: epsilonOrDefault(req.Epsilon), Restraint: restraint}
	if err := c.ensureStore(ctx); err != nil {
		return SampleSummary{}, err
	}

	native, nativeSource, err := c.resolveNative(ctx, seq, req.NativeDir)
	if err != nil {
		if !errors.Is(err, ErrNativeNotFound) || req.StopAtNative {
			return SampleSummary{}, err
		}
		c.logger.Warn("no native contact state available", "sequence", seq.String())
	}

	now := c.now().UTC()
	runID := req.RunID
	if runID == "" {
		runID = newRunID(stats.ModeSample, seq.String(), req.Seed, now)
	}

	var sink trajectory.Sink = trajectory.Discard
	var files *trajectory.ReplicaFiles
	if req.TrajectoryDir != "" {
		files = trajectory.NewReplicaFiles(req.TrajectoryDir, "")
		defer files.Close()
		sink = files
	}

	coord, err := mc.NewCoordinator(mc.Config{
		Sequence:     seq,
		InitialVec:   vec,
		Temperatures: req.Temperatures,
		Replicas:     req.Replicas,
		MoveSet:      kind,
		Model:        m,
		Steps:        req.Steps,
		SwapEvery:    req.SwapEvery,
		PrintEvery:   req.PrintEvery,
		EnergyEvery:  energyEvery,
		SwapPolicy:   policy,
		Native:       native,
		StopAtNative: req.StopAtNative,
		Seed:         req.Seed,
		Sink:         sink,
		Logger:       c.logger.With("run_id", runID),
	})
	if err != nil {
		return SampleSummary{}, err
	}
	res, err := coord.Run(ctx)
	if err != nil {
		return SampleSummary{}, err
	}
	if files != nil {
		if err := files.Close(); err != nil {
			return SampleSummary{}, fmt.Errorf("close trajectories: %w", err)
		}
	}

	trace := make([]stats.EnergyPoint, 0, len(res.EnergyTrace))
	for _, s := range res.EnergyTrace {
		trace = append(trace, stats.EnergyPoint{Step: s.Step, Replica: s.Replica, Temperature: s.Temperature, Energy: s.Energy})
	}
	energies := stats.SummarizeEnergyTrace(trace)
	byReplica := make(map[int]stats.EnergySummary, len(energies))
	for _, e := range energies {
		byReplica[e.Replica] = e
	}

	replicas := make([]model.ReplicaSummary, 0, len(res.Replicas))
	for _, r := range res.Replicas {
		e := byReplica[r.Replica]
		replicas = append(replicas, model.ReplicaSummary{
			Replica:        r.Replica,
			Temperature:    r.Temperature,
			Steps:          r.Steps,
			ViableSteps:    r.ViableSteps,
			AcceptedSteps:  r.AcceptedSteps,
			MoveViability:  r.MoveViability,
			Acceptance:     r.Acceptance,
			SwapsAttempted: r.SwapsAttempted,
			SwapsAccepted:  r.SwapsAccepted,
			Energy:         r.Energy,
			EnergyMean:     e.Mean,
			EnergyStdDev:   e.StdDev,
			ContactState:   r.ContactState,
			Native:         r.Native,
		})
	}

	var checkpoints []stats.CheckpointRow
	for _, cp := range res.Checkpoints {
		for _, r := range cp.Replicas {
			checkpoints = append(checkpoints, stats.CheckpointRow{
				Step:           cp.Step,
				Replica:        r.Replica,
				Temperature:    r.Temperature,
				Energy:         r.Energy,
				Steps:          r.Steps,
				ViableSteps:    r.ViableSteps,
				MoveViability:  r.MoveViability,
				Acceptance:     r.Acceptance,
				SwapsAttempted: r.SwapsAttempted,
				SwapsAccepted:  r.SwapsAccepted,
				ContactState:   r.ContactState,
			})
		}
	}
	accepted := make([]stats.TemperatureCount, 0, len(res.AcceptedAtTemperature))
	for _, tally := range res.AcceptedAtTemperature {
		accepted = append(accepted, stats.TemperatureCount{Temperature: tally.Temperature, Accepted: tally.Accepted})
	}

	var nativeText string
	if native != nil {
		nativeText = native.String()
	}
	createdAt := now.Format(time.RFC3339Nano)
	cfg := stats.RunConfig{
		RunID:        runID,
		Mode:         stats.ModeSample,
		Sequence:     seq.String(),
		Epsilon:      m.Epsilon,
		EpsilonKT:    m.Epsilon / (energy.Boltzmann * ReferenceTemperature),
		Restraint:    req.Restraint,
		KSpring:      restraint.KSpring,
		InitialVec:   lattice.Codes(vec),
		Temperatures: req.Temperatures,
		MoveSet:      kind.String(),
		SwapPolicy:   policy.String(),
		Steps:        req.Steps,
		SwapEvery:    req.SwapEvery,
		PrintEvery:   req.PrintEvery,
		EnergyEvery:  req.EnergyEvery,
		StopAtNative: req.StopAtNative,
		Native:       nativeText,
		Seed:         req.Seed,
		Trajectory:   req.TrajectoryDir,
		CreatedAtUTC: createdAt,
	}
	outcome := stats.SampleOutcome{
		Steps:                 res.Steps,
		FoundNative:           res.FoundNative,
		NativeReplica:         res.NativeReplica,
		NativeStep:            res.NativeStep,
		SwapsAttempted:        res.SwapsAttempted,
		SwapsAccepted:         res.SwapsAccepted,
		Replicas:              replicas,
		AcceptedAtTemperature: accepted,
	}
	if err := c.store.SaveSamplingRun(ctx, samplingRunRecord(cfg, outcome)); err != nil {
		return SampleSummary{}, err
	}
	runDir, err := stats.WriteRunArtifacts(c.runsDir, stats.RunArtifacts{
		Config:      cfg,
		Outcome:     &outcome,
		Checkpoints: checkpoints,
		EnergyTrace: trace,
	})
	if err != nil {
		return SampleSummary{}, err
	}

	best := 0.0
	for i, r := range replicas {
		if i == 0 || r.Energy < best {
			best = r.Energy
		}
	}
	if err := stats.AppendRunIndex(c.runsDir, stats.RunIndexEntry{
		RunID:        runID,
		Mode:         stats.ModeSample,
		Sequence:     seq.String(),
		Seed:         req.Seed,
		Replicas:     len(replicas),
		Steps:        res.Steps,
		FoundNative:  res.FoundNative,
		BestEnergy:   best,
		CreatedAtUTC: createdAt,
	}); err != nil {
		return SampleSummary{}, err
	}

	return SampleSummary{
		RunID:        runID,
		ArtifactsDir: filepath.Clean(runDir),
		Native:       nativeText,
		NativeSource: nativeSource,
		Result:       res,
		Replicas:     replicas,
		Energies:     energies,
	}, nil
}

// SamplingRun returns a stored sampling run summary, falling back to the
// run's artifacts when the store does not hold it.
func (c *Client) SamplingRun(ctx context.Context, runID string) (model.SamplingRunRecord, error) {
	if err := c.ensureStore(ctx); err != nil {
		return model.SamplingRunRecord{}, err
	}
	rec, ok, err := c.store.GetSamplingRun(ctx, runID)
	if err != nil {
		return model.SamplingRunRecord{}, err
	}
	if ok {
		return rec, nil
	}
	rec, ok, err = c.samplingRunFromArtifacts(runID)
	if err != nil {
		return model.SamplingRunRecord{}, err
	}
	if !ok {
		return model.SamplingRunRecord{}, fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}
	return rec, nil
}

// EnergySummaries recomputes per-replica energy statistics from the energy
// trace a sampling run wrote.
func (c *Client) EnergySummaries(_ context.Context, runID string) ([]stats.EnergySummary, error) {
	trace, ok, err := stats.ReadEnergyTrace(c.runsDir, runID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}
	return stats.SummarizeEnergyTrace(trace), nil
}

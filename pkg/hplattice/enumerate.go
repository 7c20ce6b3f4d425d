package hplattice

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"
	"time"

	"hplattice/internal/energy"
	"hplattice/internal/enumerate"
	"hplattice/internal/lattice"
	"hplattice/internal/model"
	"hplattice/internal/stats"
	"hplattice/internal/storage"
	"hplattice/internal/trajectory"
)

type EnumerateRequest struct {
	Sequence string
	// Epsilon is the absolute energy per contact; nil selects DefaultEpsilonKT.
	Epsilon   *float64
	Restraint string
	KSpring   float64
	// TrajectoryPath, when set, receives every canonical conformation as an
	// XYZ frame.
	TrajectoryPath string
	// SaveNative stores the ground state as the sequence's native state and
	// fails with ErrNotFoldable when it is degenerate.
	SaveNative bool
	NativeDir  string
}

type EnumerateSummary struct {
	RunID        string
	ArtifactsDir string
	Density      model.DensityRecord
	Ground       string
	GroundEnergy float64
	Unique       bool
	NativePath   string
}

type DensityRequest struct {
	Sequence  string
	Restraint string
	KSpring   float64
}

func (c *Client) Enumerate(ctx context.Context, req EnumerateRequest) (EnumerateSummary, error) {
	seq, err := lattice.ParseSequence(req.Sequence)
	if err != nil {
		return EnumerateSummary{}, err
	}
	restraint, err := parseRestraint(req.Restraint, req.KSpring, seq.Len())
	if err != nil {
		return EnumerateSummary{}, err
	}
	m := energy.Model{Epsilon: epsilonOrDefault(req.Epsilon), Restraint: restraint}
	if err := c.ensureStore(ctx); err != nil {
		return EnumerateSummary{}, err
	}

	now := c.now().UTC()
	runID := newRunID(stats.ModeEnumerate, seq.String(), 0, now)

	var sink trajectory.Sink = trajectory.Discard
	var xyz *trajectory.XYZWriter
	if req.TrajectoryPath != "" {
		xyz, err = trajectory.CreateXYZ(req.TrajectoryPath)
		if err != nil {
			return EnumerateSummary{}, err
		}
		defer xyz.Close()
		sink = xyz
	}

	en, err := enumerate.New(seq, enumerate.Options{Model: m, Sink: sink, Logger: c.logger})
	if err != nil {
		return EnumerateSummary{}, err
	}
	density, err := en.Run(ctx)
	if err != nil {
		return EnumerateSummary{}, err
	}
	if xyz != nil {
		if err := xyz.Close(); err != nil {
			return EnumerateSummary{}, fmt.Errorf("close trajectory: %w", err)
		}
	}

	record := densityRecord(densityID(seq.String(), restraint), density, m, now)
	if err := c.store.SaveDensity(ctx, record); err != nil {
		return EnumerateSummary{}, err
	}

	summary := EnumerateSummary{RunID: runID, Density: record}
	ground, unique, ok := density.GroundState()
	if ok {
		summary.Ground = ground.State.String()
		summary.GroundEnergy = ground.Energy
		summary.Unique = unique
	}
	if req.SaveNative {
		if !ok || !unique {
			return EnumerateSummary{}, fmt.Errorf("%w: %s", ErrNotFoldable, seq)
		}
		if err := c.store.SaveNativeState(ctx, model.NativeStateRecord{
			VersionedRecord: storage.CurrentVersion(),
			Sequence:        seq.String(),
			Contacts:        summary.Ground,
			Energy:          ground.Energy,
			Unique:          true,
			Source:          runID,
		}); err != nil {
			return EnumerateSummary{}, err
		}
		if req.NativeDir != "" {
			summary.NativePath = nativePath(req.NativeDir, seq.String())
			if err := writeNativeFile(summary.NativePath, ground.State); err != nil {
				return EnumerateSummary{}, err
			}
		}
	}

	var savedNative string
	if req.SaveNative {
		savedNative = summary.Ground
	}
	createdAt := now.Format(time.RFC3339Nano)
	runDir, err := stats.WriteRunArtifacts(c.runsDir, stats.RunArtifacts{
		Config: stats.RunConfig{
			RunID:        runID,
			Mode:         stats.ModeEnumerate,
			Sequence:     seq.String(),
			Epsilon:      m.Epsilon,
			EpsilonKT:    m.Epsilon / (energy.Boltzmann * ReferenceTemperature),
			Restraint:    req.Restraint,
			KSpring:      restraint.KSpring,
			Native:       savedNative,
			NativeFile:   summary.NativePath,
			Trajectory:   req.TrajectoryPath,
			CreatedAtUTC: createdAt,
		},
		Density: &record,
	})
	if err != nil {
		return EnumerateSummary{}, err
	}
	if err := stats.AppendRunIndex(c.runsDir, stats.RunIndexEntry{
		RunID:         runID,
		Mode:          stats.ModeEnumerate,
		Sequence:      seq.String(),
		Conformations: density.Conformations,
		BestEnergy:    summary.GroundEnergy,
		CreatedAtUTC:  createdAt,
	}); err != nil {
		return EnumerateSummary{}, err
	}
	summary.ArtifactsDir = filepath.Clean(runDir)
	return summary, nil
}

// Density returns a stored density of states, falling back to the newest
// enumeration artifacts with the same density id.
func (c *Client) Density(ctx context.Context, req DensityRequest) (model.DensityRecord, error) {
	seq, err := lattice.ParseSequence(req.Sequence)
	if err != nil {
		return model.DensityRecord{}, err
	}
	restraint, err := parseRestraint(req.Restraint, req.KSpring, seq.Len())
	if err != nil {
		return model.DensityRecord{}, err
	}
	if err := c.ensureStore(ctx); err != nil {
		return model.DensityRecord{}, err
	}
	id := densityID(seq.String(), restraint)
	rec, ok, err := c.store.GetDensity(ctx, id)
	if err != nil {
		return model.DensityRecord{}, err
	}
	if ok {
		return rec, nil
	}
	rec, ok, err = c.densityFromRuns(seq.String(), id)
	if err != nil {
		return model.DensityRecord{}, err
	}
	if !ok {
		return model.DensityRecord{}, fmt.Errorf("%w: %s", ErrDensityNotFound, id)
	}
	return rec, nil
}

func densityRecord(id string, d *enumerate.Density, m energy.Model, now time.Time) model.DensityRecord {
	rec := model.DensityRecord{
		VersionedRecord: storage.CurrentVersion(),
		ID:              id,
		Sequence:        d.Sequence,
		Epsilon:         m.Epsilon,
		Conformations:   d.Conformations,
		Steps:           d.Steps,
		CreatedAtUTC:    now.Format(time.RFC3339Nano),
	}
	if m.Restraint.Enabled() {
		rec.Restraint = lattice.ContactState(m.Restraint.Pairs).String()
		rec.KSpring = m.Restraint.KSpring
	}
	for _, sc := range d.SortedStates() {
		rec.States = append(rec.States, model.ContactStateCount{
			Contacts: sc.State.String(),
			Digest:   sc.State.Digest(),
			Count:    sc.Count,
			Energy:   sc.Energy,
		})
	}
	contacts := make([]int, 0, len(d.Levels))
	for n := range d.Levels {
		contacts = append(contacts, n)
	}
	sort.Ints(contacts)
	for _, n := range contacts {
		rec.Levels = append(rec.Levels, model.EnergyLevel{
			Contacts: n,
			Energy:   m.Epsilon * float64(n),
			Count:    d.Levels[n],
		})
	}
	for _, lvl := range d.SortedRestrained() {
		rec.Restrained = append(rec.Restrained, model.RestrainedLevel{
			Contacts: lvl.Contacts,
			Distance: lvl.Distance,
			Energy:   lvl.Energy,
			Count:    lvl.Count,
		})
	}
	return rec
}

package hplattice

import (
	"fmt"

	"hplattice/internal/lattice"
	"hplattice/internal/model"
	"hplattice/internal/stats"
	"hplattice/internal/storage"
)

// Lookups that miss the store fall back to the artifacts earlier runs wrote
// under the runs directory, so a memory store still answers for past runs.

// indexedRuns lists the indexed runs of one mode and sequence, newest first.
func (c *Client) indexedRuns(mode, sequence string) ([]stats.RunIndexEntry, error) {
	entries, err := stats.ListRunIndex(c.runsDir)
	if err != nil {
		return nil, err
	}
	out := make([]stats.RunIndexEntry, 0, len(entries))
	for _, e := range entries {
		if e.Mode == mode && e.Sequence == sequence {
			out = append(out, e)
		}
	}
	return out, nil
}

func (c *Client) nativeFromRuns(seq lattice.Sequence) (lattice.ContactState, string, bool, error) {
	entries, err := c.indexedRuns(stats.ModeEnumerate, seq.String())
	if err != nil {
		return nil, "", false, err
	}
	for _, e := range entries {
		cfg, ok, err := stats.ReadRunConfig(c.runsDir, e.RunID)
		if err != nil {
			return nil, "", false, err
		}
		if !ok || cfg.Native == "" {
			continue
		}
		state, err := parseNative(seq, cfg.Native)
		if err != nil {
			return nil, "", false, fmt.Errorf("run %s: %w", e.RunID, err)
		}
		return state, e.RunID, true, nil
	}
	return nil, "", false, nil
}

func (c *Client) densityFromRuns(sequence, id string) (model.DensityRecord, bool, error) {
	entries, err := c.indexedRuns(stats.ModeEnumerate, sequence)
	if err != nil {
		return model.DensityRecord{}, false, err
	}
	for _, e := range entries {
		rec, ok, err := stats.ReadDensity(c.runsDir, e.RunID)
		if err != nil {
			return model.DensityRecord{}, false, err
		}
		if ok && rec.ID == id {
			return rec, true, nil
		}
	}
	return model.DensityRecord{}, false, nil
}

func (c *Client) samplingRunFromArtifacts(runID string) (model.SamplingRunRecord, bool, error) {
	cfg, ok, err := stats.ReadRunConfig(c.runsDir, runID)
	if err != nil || !ok || cfg.Mode != stats.ModeSample {
		return model.SamplingRunRecord{}, false, err
	}
	outcome, ok, err := stats.ReadSampleOutcome(c.runsDir, runID)
	if err != nil || !ok {
		return model.SamplingRunRecord{}, false, err
	}
	return samplingRunRecord(cfg, outcome), true, nil
}

// samplingRunRecord is the stored form of a sampling run's config and
// outcome.
func samplingRunRecord(cfg stats.RunConfig, outcome stats.SampleOutcome) model.SamplingRunRecord {
	temps := cfg.Temperatures
	if len(temps) > len(outcome.Replicas) {
		temps = temps[:len(outcome.Replicas)]
	}
	return model.SamplingRunRecord{
		VersionedRecord: storage.CurrentVersion(),
		RunID:           cfg.RunID,
		Sequence:        cfg.Sequence,
		MoveSet:         cfg.MoveSet,
		SwapPolicy:      cfg.SwapPolicy,
		Seed:            cfg.Seed,
		Temperatures:    append([]float64(nil), temps...),
		Steps:           outcome.Steps,
		FoundNative:     outcome.FoundNative,
		NativeReplica:   outcome.NativeReplica,
		NativeStep:      outcome.NativeStep,
		SwapsAttempted:  outcome.SwapsAttempted,
		SwapsAccepted:   outcome.SwapsAccepted,
		Replicas:        append([]model.ReplicaSummary(nil), outcome.Replicas...),
		CreatedAtUTC:    cfg.CreatedAtUTC,
	}
}

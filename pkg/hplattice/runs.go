package hplattice

import (
	"context"
	"errors"
	"path/filepath"

	"hplattice/internal/lattice"
	"hplattice/internal/stats"
)

type NativeRequest struct {
	Sequence  string
	NativeDir string
}

type NativeSummary struct {
	Sequence string
	Contacts string
	Count    int
	Source   string
}

type RunsRequest struct {
	Limit int
	Mode  string
}

type RunItem struct {
	RunID         string
	CreatedAtUTC  string
	Mode          string
	Sequence      string
	Seed          int64
	Replicas      int
	Steps         int
	Conformations int
	FoundNative   bool
	BestEnergy    float64
}

type ExportRequest struct {
	RunID  string
	Latest bool
	OutDir string
}

type ExportSummary struct {
	RunID     string
	Directory string
}

// Native returns the native contact state a sampling run for the sequence
// would stop at.
func (c *Client) Native(ctx context.Context, req NativeRequest) (NativeSummary, error) {
	seq, err := lattice.ParseSequence(req.Sequence)
	if err != nil {
		return NativeSummary{}, err
	}
	state, source, err := c.resolveNative(ctx, seq, req.NativeDir)
	if err != nil {
		return NativeSummary{}, err
	}
	return NativeSummary{
		Sequence: seq.String(),
		Contacts: state.String(),
		Count:    state.Len(),
		Source:   source,
	}, nil
}

func (c *Client) Runs(_ context.Context, req RunsRequest) ([]RunItem, error) {
	if req.Limit <= 0 {
		req.Limit = 20
	}

	entries, err := stats.ListRunIndex(c.runsDir)
	if err != nil {
		return nil, err
	}

	out := make([]RunItem, 0, len(entries))
	for _, e := range entries {
		if req.Mode != "" && e.Mode != req.Mode {
			continue
		}
		out = append(out, RunItem{
			RunID:         e.RunID,
			CreatedAtUTC:  e.CreatedAtUTC,
			Mode:          e.Mode,
			Sequence:      e.Sequence,
			Seed:          e.Seed,
			Replicas:      e.Replicas,
			Steps:         e.Steps,
			Conformations: e.Conformations,
			FoundNative:   e.FoundNative,
			BestEnergy:    e.BestEnergy,
		})
		if len(out) == req.Limit {
			break
		}
	}
	return out, nil
}

func (c *Client) Export(_ context.Context, req ExportRequest) (ExportSummary, error) {
	if req.RunID != "" && req.Latest {
		return ExportSummary{}, errors.New("use either run id or latest")
	}
	if req.RunID == "" && !req.Latest {
		return ExportSummary{}, errors.New("export requires run id or latest")
	}
	if req.OutDir == "" {
		req.OutDir = c.exportsDir
	}

	runID := req.RunID
	if req.Latest {
		entries, err := stats.ListRunIndex(c.runsDir)
		if err != nil {
			return ExportSummary{}, err
		}
		if len(entries) == 0 {
			return ExportSummary{}, errors.New("no runs available to export")
		}
		runID = entries[0].RunID
	}

	exportedDir, err := stats.ExportRunArtifacts(c.runsDir, runID, req.OutDir)
	if err != nil {
		return ExportSummary{}, err
	}
	return ExportSummary{RunID: runID, Directory: filepath.Clean(exportedDir)}, nil
}

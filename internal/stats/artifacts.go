package stats

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"hplattice/internal/model"
)

const runIndexFile = "run_index.json"

const (
	ModeEnumerate = "enumerate"
	ModeSample    = "sample"
)

type RunConfig struct {
	RunID        string    `json:"run_id"`
	Mode         string    `json:"mode"`
	Sequence     string    `json:"sequence"`
	Epsilon      float64   `json:"epsilon"`
	EpsilonKT    float64   `json:"epsilon_kt,omitempty"`
	Restraint    string    `json:"restraint,omitempty"`
	KSpring      float64   `json:"kspring,omitempty"`
	InitialVec   []int     `json:"initial_vec,omitempty"`
	Temperatures []float64 `json:"temperatures,omitempty"`
	MoveSet      string    `json:"moveset,omitempty"`
	SwapPolicy   string    `json:"swap_policy,omitempty"`
	Steps        int       `json:"steps,omitempty"`
	SwapEvery    int       `json:"swap_every,omitempty"`
	PrintEvery   int       `json:"print_every,omitempty"`
	EnergyEvery  int       `json:"energy_every,omitempty"`
	StopAtNative bool      `json:"stop_at_native,omitempty"`
	// Native is the contact state a sampling run checked against, or the
	// ground state an enumeration saved as native.
	Native       string `json:"native,omitempty"`
	NativeFile   string `json:"native_file,omitempty"`
	Seed         int64  `json:"seed"`
	Trajectory   string `json:"trajectory,omitempty"`
	CreatedAtUTC string `json:"created_at_utc,omitempty"`
}

// CheckpointRow is one replica's line in a checkpoint table.
type CheckpointRow struct {
	Step           int     `json:"step"`
	Replica        int     `json:"replica"`
	Temperature    float64 `json:"temperature"`
	Energy         float64 `json:"energy"`
	Steps          int     `json:"steps"`
	ViableSteps    int     `json:"viable_steps"`
	MoveViability  float64 `json:"move_viability"`
	Acceptance     float64 `json:"acceptance"`
	SwapsAttempted int     `json:"swaps_attempted"`
	SwapsAccepted  int     `json:"swaps_accepted"`
	ContactState   string  `json:"contact_state"`
}

type TemperatureCount struct {
	Temperature float64 `json:"temperature"`
	Accepted    int     `json:"accepted"`
}

type EnergyPoint struct {
	Step        int     `json:"step"`
	Replica     int     `json:"replica"`
	Temperature float64 `json:"temperature"`
	Energy      float64 `json:"energy"`
}

// SampleOutcome is the ensemble-level result of a sampling run.
type SampleOutcome struct {
	Steps                 int                    `json:"steps"`
	FoundNative           bool                   `json:"found_native"`
	NativeReplica         int                    `json:"native_replica"`
	NativeStep            int                    `json:"native_step"`
	SwapsAttempted        int                    `json:"swaps_attempted"`
	SwapsAccepted         int                    `json:"swaps_accepted"`
	Replicas              []model.ReplicaSummary `json:"replicas"`
	AcceptedAtTemperature []TemperatureCount     `json:"accepted_at_temperature"`
}

type RunArtifacts struct {
	Config      RunConfig            `json:"config"`
	Density     *model.DensityRecord `json:"density,omitempty"`
	Outcome     *SampleOutcome       `json:"outcome,omitempty"`
	Checkpoints []CheckpointRow      `json:"checkpoints,omitempty"`
	EnergyTrace []EnergyPoint        `json:"energy_trace,omitempty"`
}

type RunIndexEntry struct {
	RunID         string  `json:"run_id"`
	Mode          string  `json:"mode"`
	Sequence      string  `json:"sequence"`
	Seed          int64   `json:"seed"`
	Replicas      int     `json:"replicas,omitempty"`
	Steps         int     `json:"steps,omitempty"`
	Conformations int     `json:"conformations,omitempty"`
	FoundNative   bool    `json:"found_native,omitempty"`
	BestEnergy    float64 `json:"best_energy"`
	CreatedAtUTC  string  `json:"created_at_utc"`
}

var exportFiles = []string{"config.json", "density.json", "replicas.json", "checkpoints.json", "energy_trace.csv"}

func WriteRunArtifacts(baseDir string, artifacts RunArtifacts) (string, error) {
	if artifacts.Config.RunID == "" {
		return "", fmt.Errorf("run id is required")
	}

	runDir := filepath.Join(baseDir, artifacts.Config.RunID)
	if err := os.MkdirAll(runDir, 0o755); err != nil {
		return "", err
	}

	if err := WriteRunConfig(baseDir, artifacts.Config.RunID, artifacts.Config); err != nil {
		return "", err
	}
	if artifacts.Density != nil {
		if err := writeJSON(filepath.Join(runDir, "density.json"), artifacts.Density); err != nil {
			return "", err
		}
	}
	if artifacts.Outcome != nil {
		if err := writeJSON(filepath.Join(runDir, "replicas.json"), artifacts.Outcome); err != nil {
			return "", err
		}
		if err := writeJSON(filepath.Join(runDir, "checkpoints.json"), artifacts.Checkpoints); err != nil {
			return "", err
		}
		if err := WriteEnergyTrace(runDir, artifacts.EnergyTrace); err != nil {
			return "", err
		}
	}

	return runDir, nil
}

func AppendRunIndex(baseDir string, entry RunIndexEntry) error {
	if entry.RunID == "" {
		return fmt.Errorf("run id is required")
	}
	if err := os.MkdirAll(baseDir, 0o755); err != nil {
		return err
	}

	index, err := ListRunIndex(baseDir)
	if err != nil {
		return err
	}

	for i := range index {
		if index[i].RunID == entry.RunID {
			index[i] = entry
			return writeJSON(filepath.Join(baseDir, runIndexFile), index)
		}
	}

	index = append(index, entry)
	return writeJSON(filepath.Join(baseDir, runIndexFile), index)
}

// ListRunIndex returns entries newest first.
func ListRunIndex(baseDir string) ([]RunIndexEntry, error) {
	path := filepath.Join(baseDir, runIndexFile)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return []RunIndexEntry{}, nil
		}
		return nil, err
	}

	var entries []RunIndexEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, err
	}

	type indexedEntry struct {
		entry RunIndexEntry
		idx   int
	}
	indexed := make([]indexedEntry, len(entries))
	for i := range entries {
		indexed[i] = indexedEntry{entry: entries[i], idx: i}
	}
	sort.Slice(indexed, func(i, j int) bool {
		if indexed[i].entry.CreatedAtUTC == indexed[j].entry.CreatedAtUTC {
			// Prefer later appended entries for equal timestamps.
			return indexed[i].idx > indexed[j].idx
		}
		return indexed[i].entry.CreatedAtUTC > indexed[j].entry.CreatedAtUTC
	})

	sorted := make([]RunIndexEntry, 0, len(indexed))
	for _, item := range indexed {
		sorted = append(sorted, item.entry)
	}
	return sorted, nil
}

// ExportRunArtifacts copies every artifact a run produced into outDir/runID.
func ExportRunArtifacts(baseDir, runID, outDir string) (string, error) {
	if runID == "" {
		return "", fmt.Errorf("run id is required")
	}

	src := filepath.Join(baseDir, runID)
	if _, err := os.Stat(src); err != nil {
		return "", err
	}

	dst := filepath.Join(outDir, runID)
	if err := os.MkdirAll(dst, 0o755); err != nil {
		return "", err
	}

	for _, file := range exportFiles {
		path := filepath.Join(src, file)
		if _, err := os.Stat(path); err == nil {
			if err := copyFile(path, filepath.Join(dst, file)); err != nil {
				return "", err
			}
		} else if !os.IsNotExist(err) {
			return "", err
		}
	}
	return dst, nil
}

func ReadRunConfig(baseDir, runID string) (RunConfig, bool, error) {
	path := filepath.Join(baseDir, runID, "config.json")
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return RunConfig{}, false, nil
		}
		return RunConfig{}, false, err
	}

	var cfg RunConfig
	if err := json.Unmarshal(data, &cfg); err != nil {
		return RunConfig{}, false, err
	}
	return cfg, true, nil
}

func WriteRunConfig(baseDir, runID string, cfg RunConfig) error {
	if strings.TrimSpace(runID) == "" {
		return fmt.Errorf("run id is required")
	}
	if strings.TrimSpace(cfg.RunID) == "" {
		cfg.RunID = strings.TrimSpace(runID)
	}
	if cfg.RunID != strings.TrimSpace(runID) {
		return fmt.Errorf("run config run id mismatch: got=%s want=%s", cfg.RunID, strings.TrimSpace(runID))
	}
	runDir := filepath.Join(baseDir, runID)
	if err := os.MkdirAll(runDir, 0o755); err != nil {
		return err
	}
	return writeJSON(filepath.Join(runDir, "config.json"), cfg)
}

func ReadDensity(baseDir, runID string) (model.DensityRecord, bool, error) {
	path := filepath.Join(baseDir, runID, "density.json")
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return model.DensityRecord{}, false, nil
		}
		return model.DensityRecord{}, false, err
	}

	var density model.DensityRecord
	if err := json.Unmarshal(data, &density); err != nil {
		return model.DensityRecord{}, false, err
	}
	return density, true, nil
}

func ReadSampleOutcome(baseDir, runID string) (SampleOutcome, bool, error) {
	path := filepath.Join(baseDir, runID, "replicas.json")
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return SampleOutcome{}, false, nil
		}
		return SampleOutcome{}, false, err
	}

	var outcome SampleOutcome
	if err := json.Unmarshal(data, &outcome); err != nil {
		return SampleOutcome{}, false, err
	}
	return outcome, true, nil
}

func WriteEnergyTrace(runDir string, trace []EnergyPoint) error {
	path := filepath.Join(runDir, "energy_trace.csv")
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	if err := writer.Write([]string{"step", "replica", "temperature", "energy"}); err != nil {
		return err
	}
	for _, p := range trace {
		if err := writer.Write([]string{
			strconv.Itoa(p.Step),
			strconv.Itoa(p.Replica),
			strconv.FormatFloat(p.Temperature, 'f', -1, 64),
			strconv.FormatFloat(p.Energy, 'f', -1, 64),
		}); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}

func ReadEnergyTrace(baseDir, runID string) ([]EnergyPoint, bool, error) {
	path := filepath.Join(baseDir, runID, "energy_trace.csv")
	file, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, false, nil
		}
		return nil, false, err
	}
	defer file.Close()

	reader := csv.NewReader(file)
	header, err := reader.Read()
	if err != nil {
		if err == io.EOF {
			return []EnergyPoint{}, true, nil
		}
		return nil, false, err
	}
	if len(header) < 4 {
		return nil, false, fmt.Errorf("energy trace header must have 4 columns")
	}

	trace := make([]EnergyPoint, 0, 128)
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, false, err
		}
		if len(record) < 4 {
			return nil, false, fmt.Errorf("energy trace row must have 4 columns")
		}
		var p EnergyPoint
		if p.Step, err = strconv.Atoi(record[0]); err != nil {
			return nil, false, err
		}
		if p.Replica, err = strconv.Atoi(record[1]); err != nil {
			return nil, false, err
		}
		if p.Temperature, err = strconv.ParseFloat(record[2], 64); err != nil {
			return nil, false, err
		}
		if p.Energy, err = strconv.ParseFloat(record[3], 64); err != nil {
			return nil, false, err
		}
		trace = append(trace, p)
	}
	return trace, true, nil
}

func writeJSON(path string, value any) error {
	data, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		return err
	}
	data = append(data, '\n')
	return os.WriteFile(path, data, 0o644)
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer out.Close()

	if _, err := io.Copy(out, in); err != nil {
		return err
	}
	return out.Sync()
}

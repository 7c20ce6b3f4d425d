package model

// VersionedRecord captures schema and codec evolution for persistent data.
type VersionedRecord struct {
	SchemaVersion int `json:"schema_version"`
	CodecVersion  int `json:"codec_version"`
}

// ContactStateCount is one row of a density of contact states. Contacts
// holds the canonical "[(i, j), ...]" form.
type ContactStateCount struct {
	Contacts string  `json:"contacts"`
	Digest   string  `json:"digest"`
	Count    int     `json:"count"`
	Energy   float64 `json:"energy"`
}

// EnergyLevel is one row of a density of states keyed by contact count.
type EnergyLevel struct {
	Contacts int     `json:"contacts"`
	Energy   float64 `json:"energy"`
	Count    int     `json:"count"`
}

// RestrainedLevel is one row of a restrained density keyed by contact
// count and summed squared restraint distance.
type RestrainedLevel struct {
	Contacts int     `json:"contacts"`
	Distance int     `json:"distance"`
	Energy   float64 `json:"energy"`
	Count    int     `json:"count"`
}

type DensityRecord struct {
	VersionedRecord
	ID            string              `json:"id"`
	Sequence      string              `json:"sequence"`
	Epsilon       float64             `json:"epsilon"`
	Restraint     string              `json:"restraint,omitempty"`
	KSpring       float64             `json:"kspring,omitempty"`
	Conformations int                 `json:"conformations"`
	Steps         int                 `json:"steps"`
	States        []ContactStateCount `json:"states"`
	Levels        []EnergyLevel       `json:"levels"`
	Restrained    []RestrainedLevel   `json:"restrained,omitempty"`
	CreatedAtUTC  string              `json:"created_at_utc"`
}

// NativeStateRecord is the reference contact state a sampling run can stop
// against.
type NativeStateRecord struct {
	VersionedRecord
	Sequence string  `json:"sequence"`
	Contacts string  `json:"contacts"`
	Energy   float64 `json:"energy"`
	Unique   bool    `json:"unique"`
	Source   string  `json:"source"`
}

type ReplicaSummary struct {
	Replica        int     `json:"replica"`
	Temperature    float64 `json:"temperature"`
	Steps          int     `json:"steps"`
	ViableSteps    int     `json:"viable_steps"`
	AcceptedSteps  int     `json:"accepted_steps"`
	MoveViability  float64 `json:"move_viability"`
	Acceptance     float64 `json:"acceptance"`
	SwapsAttempted int     `json:"swaps_attempted"`
	SwapsAccepted  int     `json:"swaps_accepted"`
	Energy         float64 `json:"energy"`
	EnergyMean     float64 `json:"energy_mean"`
	EnergyStdDev   float64 `json:"energy_stddev"`
	ContactState   string  `json:"contact_state"`
	Native         bool    `json:"native"`
}

type SamplingRunRecord struct {
	VersionedRecord
	RunID          string           `json:"run_id"`
	Sequence       string           `json:"sequence"`
	MoveSet        string           `json:"moveset"`
	SwapPolicy     string           `json:"swap_policy"`
	Seed           int64            `json:"seed"`
	Temperatures   []float64        `json:"temperatures"`
	Steps          int              `json:"steps"`
	FoundNative    bool             `json:"found_native"`
	NativeReplica  int              `json:"native_replica"`
	NativeStep     int              `json:"native_step"`
	SwapsAttempted int              `json:"swaps_attempted"`
	SwapsAccepted  int              `json:"swaps_accepted"`
	Replicas       []ReplicaSummary `json:"replicas"`
	CreatedAtUTC   string           `json:"created_at_utc"`
}

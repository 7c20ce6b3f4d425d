package trajectory

import (
	"sync"

	"hplattice/internal/lattice"
)

// Frame is one chain snapshot handed to a Sink.
type Frame struct {
	Replica     int             `json:"replica"`
	Step        int             `json:"step"`
	Sequence    string          `json:"sequence"`
	Coords      []lattice.Point `json:"coords"`
	Vec         []int           `json:"vec"`
	Energy      float64         `json:"energy"`
	Temperature float64         `json:"temperature,omitempty"`
}

// NewFrame copies the active conformation of c into a frame.
func NewFrame(c *lattice.Chain, replica, step int, energy, temperature float64) Frame {
	return Frame{
		Replica:     replica,
		Step:        step,
		Sequence:    c.Sequence().String(),
		Coords:      c.Coords(),
		Vec:         lattice.Codes(c.Vec()),
		Energy:      energy,
		Temperature: temperature,
	}
}

// Sink receives chain snapshots at checkpoints.
type Sink interface {
	Snapshot(frame Frame) error
}

// Discard drops every frame.
var Discard Sink = discard{}

type discard struct{}

func (discard) Snapshot(Frame) error { return nil }

// Recorder keeps frames in memory.
type Recorder struct {
	mu     sync.Mutex
	frames []Frame
}

func (r *Recorder) Snapshot(frame Frame) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.frames = append(r.frames, frame)
	return nil
}

func (r *Recorder) Frames() []Frame {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Frame(nil), r.frames...)
}

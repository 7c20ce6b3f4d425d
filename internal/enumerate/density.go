package enumerate

import (
	"sort"

	"hplattice/internal/lattice"
)

// StateCount tallies the canonical conformations sharing one contact state.
// Energy is the lowest total energy seen for the state; without a restraint
// every conformation in the state has that energy.
type StateCount struct {
	State  lattice.ContactState `json:"state"`
	Count  int                  `json:"count"`
	Energy float64              `json:"energy"`
}

// RestrainedLevel tallies conformations by contact count and restraint
// distance D when a restraint is configured.
type RestrainedLevel struct {
	Contacts int     `json:"contacts"`
	Distance int     `json:"distance"`
	Energy   float64 `json:"energy"`
	Count    int     `json:"count"`
}

// Density is the density of states gathered by one enumeration.
type Density struct {
	Sequence      string                `json:"sequence"`
	Epsilon       float64               `json:"epsilon"`
	Steps         int                   `json:"steps"`
	Conformations int                   `json:"conformations"`
	States        map[string]StateCount `json:"states"`
	Levels        map[int]int           `json:"levels"`
	Restrained    []RestrainedLevel     `json:"restrained,omitempty"`

	restrainedIdx map[[2]int]int
}

func newDensity(seq string, epsilon float64) *Density {
	return &Density{
		Sequence: seq,
		Epsilon:  epsilon,
		States:   make(map[string]StateCount),
		Levels:   make(map[int]int),
	}
}

func (d *Density) tally(state lattice.ContactState, energy float64) {
	d.Conformations++
	key := state.Digest()
	sc, ok := d.States[key]
	if !ok {
		sc = StateCount{State: state.Clone(), Energy: energy}
	}
	if energy < sc.Energy {
		sc.Energy = energy
	}
	sc.Count++
	d.States[key] = sc
	d.Levels[len(state)]++
}

func (d *Density) tallyRestrained(contacts, distance int, energy float64) {
	if d.restrainedIdx == nil {
		d.restrainedIdx = make(map[[2]int]int)
	}
	k := [2]int{contacts, distance}
	idx, ok := d.restrainedIdx[k]
	if !ok {
		idx = len(d.Restrained)
		d.restrainedIdx[k] = idx
		d.Restrained = append(d.Restrained, RestrainedLevel{Contacts: contacts, Distance: distance, Energy: energy})
	}
	d.Restrained[idx].Count++
}

// Count returns how many canonical conformations have the given state.
func (d *Density) Count(state lattice.ContactState) int {
	return d.States[state.Digest()].Count
}

// SortedStates lists states by energy, then by canonical string.
func (d *Density) SortedStates() []StateCount {
	out := make([]StateCount, 0, len(d.States))
	for _, sc := range d.States {
		out = append(out, sc)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Energy != out[j].Energy {
			return out[i].Energy < out[j].Energy
		}
		return out[i].State.String() < out[j].State.String()
	})
	return out
}

// SortedRestrained lists restrained levels by contacts, then distance.
func (d *Density) SortedRestrained() []RestrainedLevel {
	out := append([]RestrainedLevel(nil), d.Restrained...)
	sort.Slice(out, func(i, j int) bool {
		if out[i].Contacts != out[j].Contacts {
			return out[i].Contacts < out[j].Contacts
		}
		return out[i].Distance < out[j].Distance
	})
	return out
}

// GroundState returns the lowest-energy contact state. unique is true when
// exactly one canonical conformation reaches that energy, i.e. the sequence
// folds to a single native structure.
func (d *Density) GroundState() (ground StateCount, unique bool, ok bool) {
	states := d.SortedStates()
	if len(states) == 0 {
		return StateCount{}, false, false
	}
	ground = states[0]
	atGround := 0
	for _, sc := range states {
		if sc.Energy != ground.Energy {
			break
		}
		atGround += sc.Count
	}
	return ground, atGround == 1, true
}

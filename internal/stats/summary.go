package stats

import (
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// EnergySummary describes the sampled energies of one replica.
type EnergySummary struct {
	Replica int     `json:"replica"`
	Samples int     `json:"samples"`
	Mean    float64 `json:"mean"`
	StdDev  float64 `json:"stddev"`
	Min     float64 `json:"min"`
	Max     float64 `json:"max"`
}

// SummarizeEnergyTrace groups the trace by replica. StdDev is the unbiased
// sample estimate and is zero for a single sample.
func SummarizeEnergyTrace(trace []EnergyPoint) []EnergySummary {
	byReplica := make(map[int][]float64)
	for _, p := range trace {
		byReplica[p.Replica] = append(byReplica[p.Replica], p.Energy)
	}

	out := make([]EnergySummary, 0, len(byReplica))
	for replica, energies := range byReplica {
		s := EnergySummary{
			Replica: replica,
			Samples: len(energies),
			Min:     floats.Min(energies),
			Max:     floats.Max(energies),
		}
		if len(energies) > 1 {
			s.Mean, s.StdDev = stat.MeanStdDev(energies, nil)
		} else {
			s.Mean = energies[0]
		}
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Replica < out[j].Replica })
	return out
}

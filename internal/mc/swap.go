package mc

import (
	"errors"
	"fmt"
	"math"
	"math/rand"
	"strings"
)

var ErrUnknownSwapPolicy = errors.New("unknown swap policy")

// SwapPolicy selects which pair of replicas a swap attempt examines.
type SwapPolicy uint8

const (
	RandomPair SwapPolicy = iota + 1
	Neighbors
)

func (p SwapPolicy) String() string {
	switch p {
	case RandomPair:
		return "random pair"
	case Neighbors:
		return "neighbors"
	default:
		return fmt.Sprintf("swap_policy(%d)", uint8(p))
	}
}

func ParseSwapPolicy(name string) (SwapPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "random pair", "random_pair", "random-pair", "randompair":
		return RandomPair, nil
	case "neighbors", "neighbours", "nearest neighbors":
		return Neighbors, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownSwapPolicy, name)
}

// Pick returns slot indices i < j among n >= 2 replicas.
func (p SwapPolicy) Pick(rng *rand.Rand, n int) (int, int) {
	switch p {
	case Neighbors:
		i := rng.Intn(n - 1)
		return i, i + 1
	default:
		i := rng.Intn(n)
		j := rng.Intn(n - 1)
		if j >= i {
			j++
		}
		if i > j {
			i, j = j, i
		}
		return i, j
	}
}

// SwapResult records one swap attempt between slots I and J.
type SwapResult struct {
	I        int     `json:"i"`
	J        int     `json:"j"`
	Delta    float64 `json:"delta"`
	Accepted bool    `json:"accepted"`
}

// exchange applies the parallel tempering rule to replicas a and b:
// Delta = (1/kT_b - 1/kT_a)(E_b - E_a), accepted when u < exp(Delta). On
// acceptance only the temperatures and ladder indices change hands. Both
// replicas count the attempt either way.
func exchange(rng *rand.Rand, k float64, a, b *Replica) (float64, bool) {
	delta := (1/(k*b.temperature) - 1/(k*a.temperature)) * (b.Energy() - a.Energy())
	accepted := rng.Float64() < math.Exp(delta)

	a.swapsAttempted++
	b.swapsAttempted++
	if accepted {
		a.temperature, b.temperature = b.temperature, a.temperature
		a.ladderIndex, b.ladderIndex = b.ladderIndex, a.ladderIndex
		a.swapsAccepted++
		b.swapsAccepted++
	}
	return delta, accepted
}

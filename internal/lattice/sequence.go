package lattice

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrInvalidSequence  = errors.New("invalid hp sequence")
	ErrVectorLength     = errors.New("bond vector length mismatch")
	ErrInvalidDirection = errors.New("invalid bond direction")
	ErrInvalidContact   = errors.New("invalid contact")
)

// Sequence is an immutable HP string. Hydrophobic positions are indexed up
// front so contact scans only visit H monomers.
type Sequence struct {
	hp          string
	hydrophobic []int
	isH         []bool
}

func ParseSequence(s string) (Sequence, error) {
	hp := strings.TrimSpace(s)
	if len(hp) < 2 {
		return Sequence{}, fmt.Errorf("%w: need at least 2 monomers, got %d", ErrInvalidSequence, len(hp))
	}
	isH := make([]bool, len(hp))
	hydrophobic := make([]int, 0, len(hp))
	for i := 0; i < len(hp); i++ {
		switch hp[i] {
		case 'H':
			isH[i] = true
			hydrophobic = append(hydrophobic, i)
		case 'P':
		default:
			return Sequence{}, fmt.Errorf("%w: monomer %d is %q", ErrInvalidSequence, i, hp[i])
		}
	}
	return Sequence{hp: hp, hydrophobic: hydrophobic, isH: isH}, nil
}

// MustParseSequence is ParseSequence for literals known to be valid.
func MustParseSequence(s string) Sequence {
	seq, err := ParseSequence(s)
	if err != nil {
		panic(err)
	}
	return seq
}

func (s Sequence) String() string { return s.hp }

// Len is the number of monomers.
func (s Sequence) Len() int { return len(s.hp) }

// Bonds is the number of bond vectors a full chain carries.
func (s Sequence) Bonds() int { return len(s.hp) - 1 }

func (s Sequence) IsHydrophobic(i int) bool { return s.isH[i] }

// Hydrophobic returns the H positions in ascending order.
func (s Sequence) Hydrophobic() []int {
	return append([]int(nil), s.hydrophobic...)
}

// Binary renders H as 1 and P as 0.
func (s Sequence) Binary() string {
	var b strings.Builder
	b.Grow(len(s.hp))
	for _, h := range s.isH {
		if h {
			b.WriteByte('1')
		} else {
			b.WriteByte('0')
		}
	}
	return b.String()
}

// Monomer returns the residue letter at i.
func (s Sequence) Monomer(i int) byte { return s.hp[i] }

package lattice

import (
	"encoding/hex"
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"lukechampine.com/blake3"
)

// MinContactSeparation is the smallest index gap for a topological contact.
// Closer pairs are either bonded or cannot touch on a square lattice.
const MinContactSeparation = 3

// Contact is a pair of monomer indices with I < J.
type Contact struct {
	I int `json:"i"`
	J int `json:"j"`
}

// ContactState is the ordered set of H-H contacts of one conformation.
type ContactState []Contact

func (s ContactState) Len() int { return len(s) }

func (s ContactState) Equal(other ContactState) bool {
	if len(s) != len(other) {
		return false
	}
	for i := range s {
		if s[i] != other[i] {
			return false
		}
	}
	return true
}

// String renders the canonical form, e.g. "[(0, 3), (1, 4)]".
func (s ContactState) String() string {
	var b strings.Builder
	b.WriteByte('[')
	for i, c := range s {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteByte('(')
		b.WriteString(strconv.Itoa(c.I))
		b.WriteString(", ")
		b.WriteString(strconv.Itoa(c.J))
		b.WriteByte(')')
	}
	b.WriteByte(']')
	return b.String()
}

// Digest is a BLAKE3 fingerprint of the canonical form. Two states share a
// digest iff they are Equal.
func (s ContactState) Digest() string {
	sum := blake3.Sum256([]byte(s.String()))
	return hex.EncodeToString(sum[:16])
}

func (s ContactState) Clone() ContactState {
	if s == nil {
		return nil
	}
	return append(ContactState(nil), s...)
}

var (
	contactPattern = regexp.MustCompile(`\(\s*(-?\d+)\s*,\s*(-?\d+)\s*\)`)
	contactList    = regexp.MustCompile(`^\[\s*(\(\s*-?\d+\s*,\s*-?\d+\s*\)(\s*,\s*\(\s*-?\d+\s*,\s*-?\d+\s*\))*)?\s*\]$`)
)

// ParseContactState reads the canonical form produced by String. Pairs are
// normalized so I < J and sorted.
func ParseContactState(text string) (ContactState, error) {
	trimmed := strings.TrimSpace(text)
	if !contactList.MatchString(trimmed) {
		return nil, fmt.Errorf("%w: expected [(i, j), ...], got %q", ErrInvalidContact, text)
	}
	matches := contactPattern.FindAllStringSubmatch(trimmed, -1)
	state := make(ContactState, 0, len(matches))
	for _, m := range matches {
		i, err := strconv.Atoi(m[1])
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidContact, err)
		}
		j, err := strconv.Atoi(m[2])
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidContact, err)
		}
		if i > j {
			i, j = j, i
		}
		if i < 0 || i == j {
			return nil, fmt.Errorf("%w: (%s, %s)", ErrInvalidContact, m[1], m[2])
		}
		state = append(state, Contact{I: i, J: j})
	}
	sort.Slice(state, func(a, b int) bool {
		if state[a].I == state[b].I {
			return state[a].J < state[b].J
		}
		return state[a].I < state[b].I
	})
	for k := 1; k < len(state); k++ {
		if state[k] == state[k-1] {
			return nil, fmt.Errorf("%w: duplicate pair (%d, %d)", ErrInvalidContact, state[k].I, state[k].J)
		}
	}
	return state, nil
}

// Validate checks that every pair could be a topological contact of seq:
// both ends in range and hydrophobic, at least MinContactSeparation apart.
func (s ContactState) Validate(seq Sequence) error {
	for _, c := range s {
		if c.I < 0 || c.J >= seq.Len() || c.I >= c.J {
			return fmt.Errorf("%w: (%d, %d) out of range for %d monomers", ErrInvalidContact, c.I, c.J, seq.Len())
		}
		if c.J-c.I < MinContactSeparation {
			return fmt.Errorf("%w: (%d, %d) closer than %d", ErrInvalidContact, c.I, c.J, MinContactSeparation)
		}
		if !seq.IsHydrophobic(c.I) || !seq.IsHydrophobic(c.J) {
			return fmt.Errorf("%w: (%d, %d) is not an H-H pair in %s", ErrInvalidContact, c.I, c.J, seq)
		}
	}
	return nil
}

func manhattan(a, b Point) int {
	dx := a.X - b.X
	if dx < 0 {
		dx = -dx
	}
	dy := a.Y - b.Y
	if dy < 0 {
		dy = -dy
	}
	return dx + dy
}

// contactsOf scans H/H pairs with index gap >= 3. coords may be shorter than
// the sequence while a chain is still growing.
func contactsOf(seq Sequence, coords []Point) ContactState {
	var state ContactState
	for a, i := range seq.hydrophobic {
		if i >= len(coords) {
			break
		}
		for _, j := range seq.hydrophobic[a+1:] {
			if j >= len(coords) {
				break
			}
			if j-i < MinContactSeparation {
				continue
			}
			if manhattan(coords[i], coords[j]) == 1 {
				state = append(state, Contact{I: i, J: j})
			}
		}
	}
	return state
}

func countContacts(seq Sequence, coords []Point) int {
	n := 0
	for a, i := range seq.hydrophobic {
		if i >= len(coords) {
			break
		}
		for _, j := range seq.hydrophobic[a+1:] {
			if j >= len(coords) {
				break
			}
			if j-i >= MinContactSeparation && manhattan(coords[i], coords[j]) == 1 {
				n++
			}
		}
	}
	return n
}

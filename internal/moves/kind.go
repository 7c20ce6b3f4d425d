package moves

import (
	"errors"
	"fmt"
	"strings"
)

var ErrUnknownMoveSet = errors.New("unknown move set")

// Kind names either a single move primitive or a composite move set.
type Kind uint8

const (
	EndRotation Kind = iota + 1
	ThreeBeadFlip
	Crankshaft
	RigidRotation
	MS1
	MS2
	MS3
)

var kindNames = map[Kind]string{
	EndRotation:   "end_rotation",
	ThreeBeadFlip: "three_bead_flip",
	Crankshaft:    "crankshaft",
	RigidRotation: "rigid_rotation",
	MS1:           "MS1",
	MS2:           "MS2",
	MS3:           "MS3",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("kind(%d)", uint8(k))
}

// Primitive reports whether k is a single move rather than a move set.
func (k Kind) Primitive() bool {
	return k >= EndRotation && k <= RigidRotation
}

// ParseKind resolves a move-set name. Matching ignores case and treats
// spaces, dashes and underscores alike ("three-bead flip" == "three_bead_flip").
func ParseKind(name string) (Kind, error) {
	norm := strings.ToLower(strings.TrimSpace(name))
	norm = strings.NewReplacer(" ", "_", "-", "_").Replace(norm)
	for k, n := range kindNames {
		if strings.ToLower(n) == norm {
			return k, nil
		}
	}
	switch norm {
	case "endrotation", "end":
		return EndRotation, nil
	case "flip", "threebeadflip":
		return ThreeBeadFlip, nil
	case "crank":
		return Crankshaft, nil
	case "rigid", "rigidrotation":
		return RigidRotation, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownMoveSet, name)
}

// Kinds lists every known kind in declaration order.
func Kinds() []Kind {
	return []Kind{EndRotation, ThreeBeadFlip, Crankshaft, RigidRotation, MS1, MS2, MS3}
}

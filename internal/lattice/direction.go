package lattice

import "fmt"

// Direction encodes one backbone bond on the square lattice. Adding 1
// modulo 4 rotates the bond clockwise.
type Direction uint8

const (
	Up Direction = iota
	Right
	Down
	Left
)

// NumDirections is the lattice coordination number.
const NumDirections = 4

// Point is a lattice site.
type Point struct {
	X int `json:"x"`
	Y int `json:"y"`
}

func (p Point) Add(q Point) Point {
	return Point{X: p.X + q.X, Y: p.Y + q.Y}
}

var displacements = [NumDirections]Point{
	Up:    {X: 0, Y: 1},
	Right: {X: 1, Y: 0},
	Down:  {X: 0, Y: -1},
	Left:  {X: -1, Y: 0},
}

// Displacement returns the unit step taken along the bond.
func (d Direction) Displacement() Point {
	return displacements[d%NumDirections]
}

// Rotate turns the bond by step quarter turns (positive is clockwise).
func (d Direction) Rotate(step int) Direction {
	r := (int(d) + step) % NumDirections
	if r < 0 {
		r += NumDirections
	}
	return Direction(r)
}

func (d Direction) String() string {
	switch d {
	case Up:
		return "up"
	case Right:
		return "right"
	case Down:
		return "down"
	case Left:
		return "left"
	default:
		return fmt.Sprintf("direction(%d)", uint8(d))
	}
}

// Directions converts integer bond codes (0..3) into directions.
func Directions(codes []int) ([]Direction, error) {
	out := make([]Direction, len(codes))
	for i, c := range codes {
		if c < 0 || c >= NumDirections {
			return nil, fmt.Errorf("%w: bond %d has code %d", ErrInvalidDirection, i, c)
		}
		out[i] = Direction(c)
	}
	return out, nil
}

// Codes is the inverse of Directions.
func Codes(vec []Direction) []int {
	out := make([]int, len(vec))
	for i, d := range vec {
		out[i] = int(d)
	}
	return out
}

// CoordsFromVec resolves bond vectors into absolute coordinates with the
// first monomer at the origin.
func CoordsFromVec(vec []Direction) []Point {
	coords := make([]Point, len(vec)+1)
	resolveInto(coords, vec)
	return coords
}

func resolveInto(coords []Point, vec []Direction) {
	coords[0] = Point{}
	for i, d := range vec {
		coords[i+1] = coords[i].Add(d.Displacement())
	}
}

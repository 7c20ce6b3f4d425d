package lattice

// State is a read-only window onto one conformation of a Chain.
type State struct {
	seq    *Sequence
	vec    []Direction
	coords []Point
	viable bool
}

// Monomers is the number of placed monomers.
func (s State) Monomers() int { return len(s.coords) }

func (s State) Viable() bool { return s.viable }

func (s State) Vec() []Direction { return append([]Direction(nil), s.vec...) }

func (s State) Coords() []Point { return append([]Point(nil), s.coords...) }

func (s State) Point(i int) Point { return s.coords[i] }

func (s State) ContactState() ContactState { return contactsOf(*s.seq, s.coords) }

// ContactCount is len(ContactState()) without building the slice.
func (s State) ContactCount() int { return countContacts(*s.seq, s.coords) }

// SquaredDistance is the squared Euclidean distance between monomers i and j.
func (s State) SquaredDistance(i, j int) int {
	dx := s.coords[i].X - s.coords[j].X
	dy := s.coords[i].Y - s.coords[j].Y
	return dx*dx + dy*dy
}

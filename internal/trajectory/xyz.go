package trajectory

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
)

// XYZWriter renders frames in XYZ format: an atom count line, a
// "Frame k" comment line, then one "<H|P>\tx\ty\t0.0" line per monomer.
type XYZWriter struct {
	w      *bufio.Writer
	closer io.Closer
	frames int
}

func NewXYZWriter(w io.Writer) *XYZWriter {
	out := &XYZWriter{w: bufio.NewWriter(w)}
	if c, ok := w.(io.Closer); ok {
		out.closer = c
	}
	return out
}

// CreateXYZ opens path for writing, creating parent directories.
func CreateXYZ(path string) (*XYZWriter, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, err
	}
	return NewXYZWriter(f), nil
}

func (x *XYZWriter) Snapshot(frame Frame) error {
	if len(frame.Coords) > len(frame.Sequence) {
		return fmt.Errorf("frame has %d coords for %d monomers", len(frame.Coords), len(frame.Sequence))
	}
	if _, err := fmt.Fprintf(x.w, "%d\nFrame %d\n", len(frame.Coords), x.frames); err != nil {
		return err
	}
	for i, p := range frame.Coords {
		if _, err := fmt.Fprintf(x.w, "%c\t%.1f\t%.1f\t%.1f\n", frame.Sequence[i], float64(p.X), float64(p.Y), 0.0); err != nil {
			return err
		}
	}
	x.frames++
	return nil
}

// Frames is the number of frames written so far.
func (x *XYZWriter) Frames() int { return x.frames }

func (x *XYZWriter) Close() error {
	err := x.w.Flush()
	if x.closer != nil {
		err = errors.Join(err, x.closer.Close())
		x.closer = nil
	}
	return err
}

// ReplicaFiles routes each replica's frames to its own XYZ file, named by
// the pattern (e.g. "replica_%d.xyz") under dir. Files open lazily.
type ReplicaFiles struct {
	dir     string
	pattern string

	mu      sync.Mutex
	writers map[int]*XYZWriter
}

func NewReplicaFiles(dir, pattern string) *ReplicaFiles {
	if pattern == "" {
		pattern = "replica_%d.xyz"
	}
	return &ReplicaFiles{dir: dir, pattern: pattern, writers: make(map[int]*XYZWriter)}
}

func (r *ReplicaFiles) Snapshot(frame Frame) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	w, ok := r.writers[frame.Replica]
	if !ok {
		var err error
		w, err = CreateXYZ(filepath.Join(r.dir, fmt.Sprintf(r.pattern, frame.Replica)))
		if err != nil {
			return err
		}
		r.writers[frame.Replica] = w
	}
	return w.Snapshot(frame)
}

// Paths lists the files opened so far keyed by replica.
func (r *ReplicaFiles) Paths() map[int]string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[int]string, len(r.writers))
	for idx := range r.writers {
		out[idx] = filepath.Join(r.dir, fmt.Sprintf(r.pattern, idx))
	}
	return out
}

func (r *ReplicaFiles) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	var errs []error
	for _, w := range r.writers {
		errs = append(errs, w.Close())
	}
	return errors.Join(errs...)
}

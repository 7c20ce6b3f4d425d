package hplattice

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"hplattice/internal/energy"
	"hplattice/internal/lattice"
	"hplattice/internal/storage"
)

const (
	defaultRunsDir    = "runs"
	defaultExportsDir = "exports"
	defaultDBPath     = "hplattice.db"

	// ReferenceTemperature is the temperature at which contact strengths
	// given in units of kT are converted to absolute energies.
	ReferenceTemperature = 300.0
	// DefaultEpsilonKT is the contact strength used when a request leaves
	// Epsilon nil.
	DefaultEpsilonKT = -5.0
	DefaultSequence  = "PHPPHPHPPHH"
)

var (
	ErrNativeNotFound  = errors.New("native contact state not found")
	ErrDensityNotFound = errors.New("density of states not found")
	ErrRunNotFound     = errors.New("sampling run not found")
	ErrNotFoldable     = errors.New("sequence has no unique ground state")
)

// DefaultTemperatures is the replica ladder in Kelvin.
var DefaultTemperatures = []float64{275, 300, 325, 350, 400, 450, 500, 600}

// DefaultInitialVec pairs with DefaultSequence.
var DefaultInitialVec = []int{1, 0, 1, 2, 1, 2, 1, 2, 3, 3}

type Options struct {
	StoreKind  string
	DBPath     string
	RunsDir    string
	ExportsDir string
	Logger     *slog.Logger
}

// Client runs enumerations and replica exchange simulations and keeps their
// results in a store and an artifacts directory.
type Client struct {
	store       storage.Store
	initialized bool
	logger      *slog.Logger

	runsDir    string
	exportsDir string
	now        func() time.Time
}

func New(opts Options) (*Client, error) {
	storeKind := opts.StoreKind
	if storeKind == "" {
		storeKind = storage.DefaultStoreKind()
	}
	dbPath := opts.DBPath
	if dbPath == "" {
		dbPath = defaultDBPath
	}
	runsDir := opts.RunsDir
	if runsDir == "" {
		runsDir = defaultRunsDir
	}
	exportsDir := opts.ExportsDir
	if exportsDir == "" {
		exportsDir = defaultExportsDir
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	store, err := storage.NewStore(storeKind, dbPath)
	if err != nil {
		return nil, err
	}

	return &Client{
		store:      store,
		logger:     logger,
		runsDir:    runsDir,
		exportsDir: exportsDir,
		now:        time.Now,
	}, nil
}

func (c *Client) Close() error {
	return storage.CloseIfSupported(c.store)
}

func (c *Client) Init(ctx context.Context) error {
	return c.ensureStore(ctx)
}

func (c *Client) ensureStore(ctx context.Context) error {
	if c.initialized {
		return nil
	}
	if err := c.store.Init(ctx); err != nil {
		return err
	}
	c.initialized = true
	return nil
}

func newRunID(mode, sequence string, seed int64, now time.Time) string {
	return fmt.Sprintf("%s-%s-%d-%d-%s", mode, strings.ToLower(sequence), seed, now.Unix(), uuid.NewString()[:8])
}

// EpsilonKT converts a contact strength in units of kT at
// ReferenceTemperature into the absolute energy requests carry.
func EpsilonKT(eps float64) *float64 {
	abs := energy.EpsilonFromKT(eps, energy.Boltzmann, ReferenceTemperature)
	return &abs
}

func epsilonOrDefault(eps *float64) float64 {
	if eps == nil {
		return *EpsilonKT(DefaultEpsilonKT)
	}
	return *eps
}

func parseRestraint(text string, kspring float64, n int) (energy.Restraint, error) {
	if strings.TrimSpace(text) == "" {
		return energy.Restraint{}, nil
	}
	pairs, err := lattice.ParseContactState(text)
	if err != nil {
		return energy.Restraint{}, fmt.Errorf("restraint: %w", err)
	}
	r := energy.Restraint{Pairs: []lattice.Contact(pairs), KSpring: kspring}
	if err := r.Validate(n); err != nil {
		return energy.Restraint{}, err
	}
	return r, nil
}

func densityID(sequence string, r energy.Restraint) string {
	if !r.Enabled() {
		return sequence
	}
	return fmt.Sprintf("%s@%s/k=%g", sequence, lattice.ContactState(r.Pairs).Digest(), r.KSpring)
}

func nativePath(dir, sequence string) string {
	return filepath.Join(dir, sequence+".clist")
}

// parseNative reads a native contact state and checks it against seq.
func parseNative(seq lattice.Sequence, text string) (lattice.ContactState, error) {
	state, err := lattice.ParseContactState(text)
	if err != nil {
		return nil, err
	}
	if err := state.Validate(seq); err != nil {
		return nil, err
	}
	return state, nil
}

// readNativeFile reads the contact list on the first line of a .clist file.
func readNativeFile(path string, seq lattice.Sequence) (lattice.ContactState, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	if !scanner.Scan() {
		if err := scanner.Err(); err != nil {
			return nil, err
		}
		return nil, fmt.Errorf("%s: empty native contact file", path)
	}
	state, err := parseNative(seq, scanner.Text())
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return state, nil
}

func writeNativeFile(path string, state lattice.ContactState) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, []byte(state.String()+"\n"), 0o644)
}

// resolveNative looks for <dir>/<sequence>.clist first, then the store, then
// the newest enumeration run that saved a native state for the sequence.
func (c *Client) resolveNative(ctx context.Context, seq lattice.Sequence, dir string) (lattice.ContactState, string, error) {
	if dir != "" {
		path := nativePath(dir, seq.String())
		state, err := readNativeFile(path, seq)
		if err == nil {
			return state, path, nil
		}
		if !os.IsNotExist(err) {
			return nil, "", err
		}
	}
	if err := c.ensureStore(ctx); err != nil {
		return nil, "", err
	}
	rec, ok, err := c.store.GetNativeState(ctx, seq.String())
	if err != nil {
		return nil, "", err
	}
	if ok {
		state, err := parseNative(seq, rec.Contacts)
		if err != nil {
			return nil, "", err
		}
		return state, "store:" + rec.Source, nil
	}
	state, runID, ok, err := c.nativeFromRuns(seq)
	if err != nil {
		return nil, "", err
	}
	if !ok {
		return nil, "", fmt.Errorf("%w: %s", ErrNativeNotFound, seq)
	}
	return state, "run:" + runID, nil
}

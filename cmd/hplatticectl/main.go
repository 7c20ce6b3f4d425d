package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/lmittmann/tint"

	"hplattice/internal/model"
	"hplattice/internal/stats"
	"hplattice/internal/storage"
	hpapi "hplattice/pkg/hplattice"
)

const (
	runsDir    = "runs"
	exportsDir = "exports"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	if err := run(ctx, os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return usageError("missing command")
	}

	switch args[0] {
	case "enumerate":
		return runEnumerate(ctx, args[1:])
	case "sample":
		return runSample(ctx, args[1:])
	case "native":
		return runNative(ctx, args[1:])
	case "density":
		return runDensity(ctx, args[1:])
	case "show":
		return runShow(ctx, args[1:])
	case "runs":
		return runRuns(ctx, args[1:])
	case "export":
		return runExport(ctx, args[1:])
	default:
		return usageError(fmt.Sprintf("unknown command: %s", args[0]))
	}
}

type clientFlags struct {
	storeKind *string
	dbPath    *string
	logLevel  *string
	noColor   *bool
}

func addClientFlags(fs *flag.FlagSet) clientFlags {
	return clientFlags{
		storeKind: fs.String("store", storage.DefaultStoreKind(), "store backend: memory|sqlite"),
		dbPath:    fs.String("db-path", "hplattice.db", "sqlite database path"),
		logLevel:  fs.String("log-level", "info", "log level: debug|info|warn|error"),
		noColor:   fs.Bool("no-color", false, "disable colored log output"),
	}
}

func (f clientFlags) open() (*hpapi.Client, error) {
	logger, err := newLogger(os.Stderr, *f.logLevel, *f.noColor)
	if err != nil {
		return nil, err
	}
	return hpapi.New(hpapi.Options{
		StoreKind:  *f.storeKind,
		DBPath:     *f.dbPath,
		RunsDir:    runsDir,
		ExportsDir: exportsDir,
		Logger:     logger,
	})
}

func newLogger(w io.Writer, level string, noColor bool) (*slog.Logger, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		return nil, fmt.Errorf("log level: %w", err)
	}
	return slog.New(tint.NewHandler(w, &tint.Options{
		Level:      lvl,
		TimeFormat: "15:04:05",
		NoColor:    noColor,
	})), nil
}

func runEnumerate(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("enumerate", flag.ContinueOnError)
	cf := addClientFlags(fs)
	seq := fs.String("seq", "", "HP sequence, e.g. HPPHPH")
	eps := fs.Float64("eps", hpapi.DefaultEpsilonKT, "contact strength in units of kT at the reference temperature")
	restraint := fs.String("restraint", "", "restrained contact pairs, e.g. \"[(0, 3)]\"")
	kspring := fs.Float64("kspring", 0, "restraint spring constant in kcal/mol per squared lattice distance")
	traj := fs.String("traj", "", "write every canonical conformation to this XYZ file")
	saveNative := fs.Bool("save-native", false, "store the unique ground state as the native state")
	nativeDir := fs.String("native-dir", "", "also write <seq>.clist into this directory")
	showStates := fs.Bool("states", false, "print every contact state")
	jsonOut := fs.Bool("json", false, "emit the density of states as JSON")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *seq == "" {
		return errors.New("enumerate requires --seq")
	}

	client, err := cf.open()
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()

	summary, err := client.Enumerate(ctx, hpapi.EnumerateRequest{
		Sequence:       strings.ToUpper(*seq),
		Epsilon:        hpapi.EpsilonKT(*eps),
		Restraint:      *restraint,
		KSpring:        *kspring,
		TrajectoryPath: *traj,
		SaveNative:     *saveNative,
		NativeDir:      *nativeDir,
	})
	if err != nil {
		return err
	}
	if *jsonOut {
		return printJSON(summary.Density)
	}

	d := summary.Density
	fmt.Printf("run_id=%s sequence=%s conformations=%s contact_states=%d steps=%s\n",
		summary.RunID, d.Sequence, humanize.Comma(int64(d.Conformations)), len(d.States), humanize.Comma(int64(d.Steps)))
	for _, lvl := range d.Levels {
		fmt.Printf("contacts=%d energy=%.4f count=%s\n", lvl.Contacts, lvl.Energy, humanize.Comma(int64(lvl.Count)))
	}
	for _, lvl := range d.Restrained {
		fmt.Printf("contacts=%d distance=%d energy=%.4f count=%s\n", lvl.Contacts, lvl.Distance, lvl.Energy, humanize.Comma(int64(lvl.Count)))
	}
	if *showStates {
		for _, s := range d.States {
			fmt.Printf("state=%s energy=%.4f count=%d\n", s.Contacts, s.Energy, s.Count)
		}
	}
	fmt.Printf("ground=%s energy=%.4f unique=%t\n", summary.Ground, summary.GroundEnergy, summary.Unique)
	if summary.NativePath != "" {
		fmt.Printf("native_file=%s\n", summary.NativePath)
	}
	fmt.Printf("artifacts=%s\n", summary.ArtifactsDir)
	return nil
}

func runSample(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("sample", flag.ContinueOnError)
	cf := addClientFlags(fs)
	configPath := fs.String("config", "", "optional config path: JSON or KEY value .conf")
	runID := fs.String("run-id", "", "explicit run id (optional)")
	seq := fs.String("seq", hpapi.DefaultSequence, "HP sequence")
	initialVec := fs.String("initial-vec", "", "comma separated starting bond codes (0=up 1=right 2=down 3=left)")
	eps := fs.Float64("eps", hpapi.DefaultEpsilonKT, "contact strength in units of kT at the reference temperature")
	restraint := fs.String("restraint", "", "restrained contact pairs, e.g. \"[(0, 3)]\"")
	kspring := fs.Float64("kspring", 0, "restraint spring constant")
	replicas := fs.Int("replicas", 0, "replica count (0 uses the ladder length)")
	temps := fs.String("temps", "", "comma separated temperature ladder in Kelvin")
	steps := fs.Int("steps", 500000, "Monte Carlo steps per replica")
	swapEvery := fs.Int("swap-every", 1000, "attempt a replica swap every N steps")
	printEvery := fs.Int("print-every", 1000, "checkpoint every N steps")
	energyEvery := fs.Int("energy-every", 1000, "sample replica energies every N steps (negative disables the trace)")
	swapMethod := fs.String("swap-method", "random pair", "swap pair selection: random pair|neighbors")
	moveSet := fs.String("moveset", "MS2", "move set: MS1|MS2|MS3|end_rotation|three_bead_flip|crankshaft|rigid_rotation")
	stopAtNative := fs.Bool("stop-at-native", false, "stop as soon as any replica reaches the native state")
	nativeDir := fs.String("native-dir", "", "directory holding <seq>.clist native contact files")
	seed := fs.Int64("seed", defaultSeed, "rng seed")
	trajDir := fs.String("traj-dir", "", "write one XYZ trajectory per replica into this directory")
	jsonOut := fs.Bool("json", false, "emit the final replica table as JSON")
	if err := fs.Parse(args); err != nil {
		return err
	}
	setFlags := make(map[string]bool)
	fs.Visit(func(f *flag.Flag) {
		setFlags[f.Name] = true
	})

	req, err := loadOrDefaultSampleRequest(*configPath)
	if err != nil {
		return err
	}
	flagValues := map[string]any{
		"run-id":         *runID,
		"seq":            *seq,
		"initial-vec":    *initialVec,
		"eps":            *eps,
		"restraint":      *restraint,
		"kspring":        *kspring,
		"replicas":       *replicas,
		"temps":          *temps,
		"steps":          *steps,
		"swap-every":     *swapEvery,
		"print-every":    *printEvery,
		"energy-every":   *energyEvery,
		"swap-method":    *swapMethod,
		"moveset":        *moveSet,
		"stop-at-native": *stopAtNative,
		"native-dir":     *nativeDir,
		"seed":           *seed,
		"traj-dir":       *trajDir,
	}
	if *configPath == "" {
		// Without a config file every flag, default or not, applies.
		fs.VisitAll(func(f *flag.Flag) {
			setFlags[f.Name] = true
		})
	}
	if err := overrideFromFlags(&req, setFlags, flagValues); err != nil {
		return err
	}

	client, err := cf.open()
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()

	summary, err := client.Sample(ctx, req)
	if err != nil {
		return err
	}
	if *jsonOut {
		return printJSON(summary.Replicas)
	}

	res := summary.Result
	fmt.Printf("run_id=%s steps=%s found_native=%t native_replica=%d native_step=%d swaps=%s swaps_accepted=%s\n",
		summary.RunID,
		humanize.Comma(int64(res.Steps)),
		res.FoundNative,
		res.NativeReplica,
		res.NativeStep,
		humanize.Comma(int64(res.SwapsAttempted)),
		humanize.Comma(int64(res.SwapsAccepted)),
	)
	if summary.Native != "" {
		fmt.Printf("native=%s source=%s\n", summary.Native, summary.NativeSource)
	}
	for _, r := range summary.Replicas {
		fmt.Printf("replica=%d temp=%.1f energy=%.4f mean=%.4f std=%.4f viability=%.4f acceptance=%.4f swaps=%d/%d native=%t contacts=%s\n",
			r.Replica,
			r.Temperature,
			r.Energy,
			r.EnergyMean,
			r.EnergyStdDev,
			r.MoveViability,
			r.Acceptance,
			r.SwapsAccepted,
			r.SwapsAttempted,
			r.Native,
			r.ContactState,
		)
	}
	for _, tally := range res.AcceptedAtTemperature {
		fmt.Printf("temp=%.1f accepted=%s\n", tally.Temperature, humanize.Comma(int64(tally.Accepted)))
	}
	fmt.Printf("artifacts=%s\n", summary.ArtifactsDir)
	return nil
}

func runNative(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("native", flag.ContinueOnError)
	cf := addClientFlags(fs)
	seq := fs.String("seq", "", "HP sequence")
	nativeDir := fs.String("native-dir", "", "directory holding <seq>.clist native contact files")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *seq == "" {
		return errors.New("native requires --seq")
	}

	client, err := cf.open()
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()

	native, err := client.Native(ctx, hpapi.NativeRequest{Sequence: strings.ToUpper(*seq), NativeDir: *nativeDir})
	if err != nil {
		return err
	}
	fmt.Printf("sequence=%s contacts=%s count=%d source=%s\n", native.Sequence, native.Contacts, native.Count, native.Source)
	return nil
}

func runDensity(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("density", flag.ContinueOnError)
	cf := addClientFlags(fs)
	seq := fs.String("seq", "", "HP sequence")
	restraint := fs.String("restraint", "", "restrained contact pairs")
	kspring := fs.Float64("kspring", 0, "restraint spring constant")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *seq == "" {
		return errors.New("density requires --seq")
	}

	client, err := cf.open()
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()

	density, err := client.Density(ctx, hpapi.DensityRequest{Sequence: strings.ToUpper(*seq), Restraint: *restraint, KSpring: *kspring})
	if err != nil {
		return err
	}
	return printJSON(density)
}

func runShow(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("show", flag.ContinueOnError)
	cf := addClientFlags(fs)
	runID := fs.String("run-id", "", "sampling run id")
	energies := fs.Bool("energies", false, "also summarize the run's energy trace")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *runID == "" {
		return errors.New("show requires --run-id")
	}

	client, err := cf.open()
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()

	rec, err := client.SamplingRun(ctx, *runID)
	if err != nil {
		return err
	}
	if !*energies {
		return printJSON(rec)
	}
	summaries, err := client.EnergySummaries(ctx, *runID)
	if err != nil {
		return err
	}
	return printJSON(struct {
		Run      model.SamplingRunRecord `json:"run"`
		Energies []stats.EnergySummary   `json:"energies"`
	}{Run: rec, Energies: summaries})
}

func runRuns(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("runs", flag.ContinueOnError)
	limit := fs.Int("limit", 20, "max runs to list")
	mode := fs.String("mode", "", "only list runs of this mode: enumerate|sample")
	jsonOut := fs.Bool("json", false, "emit runs list as JSON")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *limit <= 0 {
		return errors.New("limit must be > 0")
	}

	client, err := hpapi.New(hpapi.Options{StoreKind: "memory", RunsDir: runsDir, ExportsDir: exportsDir})
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()

	items, err := client.Runs(ctx, hpapi.RunsRequest{Limit: *limit, Mode: *mode})
	if err != nil {
		return err
	}
	if *jsonOut {
		return printJSON(items)
	}
	if len(items) == 0 {
		fmt.Println("no runs found")
		return nil
	}
	for _, e := range items {
		fmt.Printf("run_id=%s created_at=%s mode=%s sequence=%s seed=%d replicas=%d steps=%s conformations=%s found_native=%t best_energy=%.4f\n",
			e.RunID,
			e.CreatedAtUTC,
			e.Mode,
			e.Sequence,
			e.Seed,
			e.Replicas,
			humanize.Comma(int64(e.Steps)),
			humanize.Comma(int64(e.Conformations)),
			e.FoundNative,
			e.BestEnergy,
		)
	}
	return nil
}

func runExport(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("export", flag.ContinueOnError)
	runID := fs.String("run-id", "", "run id")
	latest := fs.Bool("latest", false, "export the most recent run from run index")
	outDir := fs.String("out", exportsDir, "export output directory")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *runID != "" && *latest {
		return errors.New("use either --run-id or --latest, not both")
	}
	if *runID == "" && !*latest {
		return errors.New("export requires --run-id or --latest")
	}

	client, err := hpapi.New(hpapi.Options{StoreKind: "memory", RunsDir: runsDir, ExportsDir: exportsDir})
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()

	exported, err := client.Export(ctx, hpapi.ExportRequest{RunID: *runID, Latest: *latest, OutDir: *outDir})
	if err != nil {
		return err
	}
	fmt.Printf("exported run_id=%s to=%s\n", exported.RunID, exported.Directory)
	return nil
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func usageError(msg string) error {
	return fmt.Errorf("%s\nusage: hplatticectl <enumerate|sample|native|density|show|runs|export> [flags]", msg)
}

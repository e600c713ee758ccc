// Command edgetrack replays a JSONL log of elevation-map observations through
// the step edge tracker, optionally persisting every cycle to SQLite and
// writing per-cycle plots and an HTML summary report.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/banshee-data/edgetrack/internal/config"
	"github.com/banshee-data/edgetrack/internal/edge"
	"github.com/banshee-data/edgetrack/internal/edgedb"
	"github.com/banshee-data/edgetrack/internal/elevation"
	"github.com/banshee-data/edgetrack/internal/lines"
	"github.com/banshee-data/edgetrack/internal/monitor"
	"github.com/banshee-data/edgetrack/internal/monitoring"
	"github.com/banshee-data/edgetrack/internal/pipeline"
	"github.com/banshee-data/edgetrack/internal/version"
)

var (
	configPath    = flag.String("config", "", "Path to a tuning JSON file (defaults are built in)")
	inputPath     = flag.String("input", "", "JSONL file of observations to replay")
	dbPath        = flag.String("db", "", "SQLite database to record cycles in (optional)")
	plotsDir      = flag.String("plots", "", "Directory for per-cycle edge plots (optional)")
	reportPath    = flag.String("report", "", "HTML report of the nearest edge over time (optional)")
	notes         = flag.String("notes", "", "Free-form notes stored with the session")
	listen        = flag.String("listen", "", "Serve database debug routes on this address until interrupted (requires -db)")
	seedStaircase = flag.Bool("seed-staircase", false, "Seed the tracker with a synthetic staircase before replay")
	debugMode     = flag.Bool("debug", false, "Log per-cycle diagnostics and candidate decisions")
	traceMode     = flag.Bool("trace", false, "Log per-candidate tracker telemetry (implies -debug)")
	showVersion   = flag.Bool("version", false, "Print version and exit")
)

// options is the parsed command line.
type options struct {
	ConfigPath    string
	InputPath     string
	DBPath        string
	PlotsDir      string
	ReportPath    string
	Notes         string
	Listen        string
	SeedStaircase bool
	Debug         bool
	Trace         bool
}

func optionsFromFlags() options {
	return options{
		ConfigPath:    *configPath,
		InputPath:     *inputPath,
		DBPath:        *dbPath,
		PlotsDir:      *plotsDir,
		ReportPath:    *reportPath,
		Notes:         *notes,
		Listen:        *listen,
		SeedStaircase: *seedStaircase,
		Debug:         *debugMode || *traceMode,
		Trace:         *traceMode,
	}
}

func main() {
	flag.Parse()

	if *showVersion {
		fmt.Println(version.String())
		return
	}
	if *inputPath == "" {
		log.Fatal("-input is required")
	}
	if *listen != "" && *dbPath == "" {
		log.Fatal("-listen requires -db")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, optionsFromFlags(), os.Stdout, os.Stderr); err != nil {
		log.Fatalf("edgetrack: %v", err)
	}
}

// configureLogging routes the package log streams to stderr according to
// the verbosity flags.
func configureLogging(opts options, stderr io.Writer) {
	var diag, trace io.Writer
	if opts.Debug {
		diag = stderr
	}
	if opts.Trace {
		trace = stderr
	}
	edge.SetLogWriters(stderr, diag, trace)
	pipeline.SetLogWriters(stderr, diag, trace)
	monitoring.SetWriter("[edgetrack] ", stderr)
}

func loadTuning(path string) (*config.TuningConfig, error) {
	if path == "" {
		return config.EmptyTuningConfig(), nil
	}
	return config.LoadTuningConfig(path)
}

func readObservations(path string) ([]elevation.Observation, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open input: %w", err)
	}
	defer f.Close()
	return elevation.DecodeObservations(f)
}

func run(ctx context.Context, opts options, stdout, stderr io.Writer) error {
	configureLogging(opts, stderr)
	monitoring.Logf("%s", version.String())

	tuning, err := loadTuning(opts.ConfigPath)
	if err != nil {
		return err
	}

	trackerCfg := edge.TrackerConfigFromTuning(tuning)
	tracker, err := edge.NewTracker(trackerCfg)
	if err != nil {
		return err
	}

	extractor, err := lines.NewExtractor(lines.ConfigFromTuning(tuning))
	if err != nil {
		return err
	}

	observations, err := readObservations(opts.InputPath)
	if err != nil {
		return err
	}
	monitoring.Logf("loaded %d observations from %s", len(observations), opts.InputPath)

	if opts.SeedStaircase {
		var pose edge.Pose
		var q edge.HeightQuery
		if len(observations) > 0 && observations[0].Map != nil {
			pose = observations[0].Pose
			q = observations[0].Map
		}
		tracker.SeedStaircase(pose, q)
	}

	if opts.Debug {
		dc := edge.NewDebugCollector()
		dc.SetEnabled(true)
		tracker.SetDebugCollector(dc)
		tracker.AddHook(edge.CycleHookFunc(logDecisions))
	}

	var plotter *monitor.EdgePlotter
	if opts.PlotsDir != "" {
		plotter, err = monitor.NewEdgePlotter(opts.PlotsDir)
		if err != nil {
			return err
		}
		tracker.AddHook(plotter)
	}

	var report *monitor.ChartReport
	if opts.ReportPath != "" {
		report = monitor.NewChartReport(fmt.Sprintf("edgetrack %s", opts.InputPath))
		tracker.AddHook(report)
	}

	pcfg := pipeline.Config{Tracker: tracker, Extractor: extractor}
	var store *edgedb.Store
	if opts.DBPath != "" {
		store, err = edgedb.Open(opts.DBPath)
		if err != nil {
			return err
		}
		defer store.Close()

		sessionID, err := store.StartSession(ctx, trackerCfg, opts.Notes)
		if err != nil {
			return err
		}
		monitoring.Logf("recording session %s in %s", sessionID, opts.DBPath)
		pcfg.Store = store
		pcfg.SessionID = sessionID
	}

	rt, err := pipeline.NewRuntime(pcfg)
	if err != nil {
		return err
	}

	results, runErr := rt.Run(ctx, observations)

	if report != nil {
		if err := report.WriteFile(opts.ReportPath); err != nil {
			return err
		}
	}
	if plotter != nil {
		monitoring.Logf("wrote %d plots to %s", plotter.Written(), plotter.OutputDir())
	}

	printSummary(stdout, rt.Stats(), tracker, len(results))
	if runErr != nil {
		return runErr
	}

	if opts.Listen != "" && store != nil {
		return serveAdmin(ctx, opts.Listen, store)
	}
	return nil
}

// serveAdmin exposes the store's debug routes until ctx is cancelled.
func serveAdmin(ctx context.Context, addr string, store *edgedb.Store) error {
	mux := http.NewServeMux()
	if err := store.AttachAdminRoutes(mux); err != nil {
		return err
	}

	server := &http.Server{
		Addr:    addr,
		Handler: mux,
	}

	errCh := make(chan error, 1)
	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()
	monitoring.Logf("serving debug routes on %s/debug/", addr)

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("failed to start server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}
	monitoring.Logf("shutting down HTTP server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 1*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		monitoring.Logf("HTTP server shutdown error: %v", err)
		if err := server.Close(); err != nil {
			monitoring.Logf("HTTP server force close error: %v", err)
		}
	}
	return nil
}

// logDecisions reports each cycle's debug record.
func logDecisions(snap edge.CycleSnapshot) {
	if snap.Debug == nil {
		return
	}
	for _, r := range snap.Debug.Revalidations {
		monitoring.Logf("cycle %d: tracked (%.2f,%.2f)-(%.2f,%.2f) h=%.3f %s",
			snap.Debug.Cycle, r.Point1.X, r.Point1.Y, r.Point2.X, r.Point2.Y, r.Height, r.Decision)
	}
	for _, c := range snap.Debug.Candidates {
		monitoring.Logf("cycle %d: segment %s len=%.2f h=%.3f %s",
			snap.Debug.Cycle, c.Segment, c.Length, c.Height, c.Decision)
	}
}

func printSummary(w io.Writer, s pipeline.Stats, tracker *edge.Tracker, processed int) {
	fmt.Fprintf(w, "cycles=%d skipped=%d segments=%d added=%d merged=%d dropped=%d\n",
		s.Cycles, s.Skipped, s.Segments, s.Added, s.Merged, s.Dropped)
	fmt.Fprintf(w, "edges=%d processed=%d elapsed=%s\n", tracker.EdgeCount(), processed, s.Elapsed)

	nearest, err := tracker.NearestEdge()
	if err != nil {
		fmt.Fprintln(w, "nearest: none")
		return
	}
	fmt.Fprintf(w, "nearest: %s\n", nearest)
}

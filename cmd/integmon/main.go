// Package main is the CLI entry point for integmon.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/eliteGoblin/focusd/integrity_mon/internal/domain"
	"github.com/eliteGoblin/focusd/integrity_mon/internal/infra"
	"github.com/eliteGoblin/focusd/integrity_mon/internal/usecase"
)

var (
	// Version info (set via ldflags)
	Version   = "0.1.0"
	Commit    = "dev"
	BuildTime = "unknown"
)

const (
	exitOK      = 0
	exitFailure = 1
	exitChanges = 2 // only with --fail-on-change
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

// run executes the CLI and returns the process exit code.
// It is separated from main() to enable testing.
func run(args []string, stdout, stderr io.Writer) int {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a := &app{stdout: stdout, stderr: stderr}
	root := a.rootCommand()
	root.SetArgs(args)

	err := root.ExecuteContext(ctx)
	if err == nil {
		return exitOK
	}

	var ee *exitError
	if errors.As(err, &ee) {
		if ee.msg != "" {
			fmt.Fprintln(stderr, ee.msg)
		}
		return ee.code
	}

	// Anything cobra rejects before RunE is a usage error
	fmt.Fprintln(stderr, "Error:", err)
	fmt.Fprint(stderr, root.UsageString())
	return exitFailure
}

// exitError carries an exit code and an optional stderr message out of RunE.
type exitError struct {
	code int
	msg  string
}

func (e *exitError) Error() string {
	if e.msg == "" {
		return fmt.Sprintf("exit status %d", e.code)
	}
	return e.msg
}

// errNoMode is a usage error, so run prints the usage text with it.
var errNoMode = errors.New("one of --baseline, --check, --report or --clear-report must be set")

func fail(code int, format string, args ...interface{}) error {
	return &exitError{code: code, msg: fmt.Sprintf(format, args...)}
}

// app holds flag values for one invocation.
type app struct {
	stdout io.Writer
	stderr io.Writer

	baseline     bool
	check        bool
	report       bool
	clearReport  bool
	failOnChange bool

	overrides    infra.Overrides
	verbose      bool
	historyLimit int
	jsonOutput   bool
}

func (a *app) rootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:   "integmon",
		Short: "File integrity monitor - detects changes under /etc",
		Long: `integmon records SHA-256 hashes of every regular file under a monitored
directory (default /etc), later recomputes them, and reports modified,
new and deleted files.

Exactly one mode flag must be given:
  --baseline       capture a new baseline (overwrites the previous one)
  --check          compare the tree against the baseline
  --report         print the event log
  --clear-report   delete the event log`,
		Version:       Version,
		SilenceErrors: true,
		SilenceUsage:  true,
		RunE:          a.runMode,
	}
	root.SetOut(a.stdout)
	root.SetErr(a.stderr)

	flags := root.Flags()
	flags.BoolVar(&a.baseline, "baseline", false, "Generate a baseline of file hashes")
	flags.BoolVar(&a.check, "check", false, "Check file integrity against the baseline")
	flags.BoolVar(&a.report, "report", false, "Display the integrity report")
	flags.BoolVar(&a.clearReport, "clear-report", false, "Delete the integrity report")
	flags.BoolVar(&a.failOnChange, "fail-on-change", false, "With --check, exit 2 when changes are found")

	modes := []string{"baseline", "check", "report", "clear-report"}
	root.MarkFlagsMutuallyExclusive(modes...)
	root.MarkFlagsOneRequired(modes...)

	pf := root.PersistentFlags()
	pf.StringVar(&a.overrides.ConfigPath, "config", "", "YAML config file (default <data-dir>/config.yaml)")
	pf.StringVar(&a.overrides.Root, "root", "", "Directory to monitor (default /etc)")
	pf.StringVar(&a.overrides.DataDir, "data-dir", "", "State directory (default ~/.integmon, /var/lib/integmon as root)")
	pf.StringVar(&a.overrides.BaselinePath, "baseline-file", "", "Baseline file (default <data-dir>/etc_hashes.txt)")
	pf.StringVar(&a.overrides.ReportPath, "report-file", "", "Event log file (default <data-dir>/integrity_monitor.log)")
	pf.BoolVar(&a.overrides.NoHistory, "no-history", false, "Do not record checks in the encrypted history")
	pf.BoolVarP(&a.verbose, "verbose", "v", false, "Enable debug logging")

	root.AddCommand(a.historyCommand())
	root.AddCommand(a.versionCommand())
	return root
}

func (a *app) historyCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recent integrity check runs",
		Long:  `Lists the most recent --check runs recorded in the encrypted history database, newest first.`,
		Args:  cobra.NoArgs,
		RunE:  a.runHistory,
	}
	cmd.Flags().IntVar(&a.historyLimit, "limit", 20, "Maximum number of runs to show (0 for all)")
	return cmd
}

func (a *app) versionCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Long:  `Prints version, commit, and build time. Use --json for machine-readable output.`,
		Args:  cobra.NoArgs,
		Run:   a.runVersion,
	}
	cmd.Flags().BoolVar(&a.jsonOutput, "json", false, "Output version info as JSON")
	return cmd
}

func (a *app) runMode(cmd *cobra.Command, args []string) error {
	// --baseline=false passes cobra's one-required check but selects nothing
	if !a.baseline && !a.check && !a.report && !a.clearReport {
		return errNoMode
	}

	logger := a.createLogger()
	defer func() { _ = logger.Sync() }()

	fs := infra.NewFileSystemManager()
	cfg, err := infra.ResolveConfig(fs, a.overrides)
	if err != nil {
		return fail(exitFailure, "Error: %v", err)
	}
	logger.Debug("resolved configuration",
		zap.String("root", cfg.MonitoredRoot),
		zap.String("baseline", cfg.BaselinePath),
		zap.String("report", cfg.ReportPath),
		zap.Bool("history", cfg.HistoryEnabled))

	events := infra.NewFileEventLog(cfg.ReportPath, fs, a.stdout, a.stderr)
	baselines := infra.NewFileBaselineStore(cfg.BaselinePath, logger)

	// Preconditions, checked before anything is logged
	if a.check && !baselines.Exists() {
		return fail(exitFailure, "Error: Baseline file '%s' not found. Run '--baseline' first.", cfg.BaselinePath)
	}
	if a.report && !events.Exists() {
		return fail(exitFailure, "Error: Report file '%s' not found. Run '--check' first.", cfg.ReportPath)
	}
	// Only capture and check append events
	if a.baseline || a.check {
		if err := events.CheckWritable(); err != nil {
			return fail(exitFailure, "Error: Cannot write to log file '%s'. Check permissions.", cfg.ReportPath)
		}
	}

	switch {
	case a.baseline:
		return a.withLock(cfg, func() error {
			return a.runBaseline(cmd.Context(), cfg, newWalker(cfg, baselines, logger), baselines, events, logger)
		})
	case a.check:
		return a.withLock(cfg, func() error {
			return a.runCheck(cmd.Context(), cfg, newWalker(cfg, baselines, logger), baselines, events, logger)
		})
	case a.report:
		if err := usecase.NewReporter(events, a.stdout).View(); err != nil {
			return fail(exitFailure, "Error: %v", err)
		}
		return nil
	case a.clearReport:
		if err := usecase.NewReporter(events, a.stdout).Clear(); err != nil {
			return fail(exitFailure, "Error: %v", err)
		}
		return nil
	default:
		return errNoMode
	}
}

// newWalker hashes with SHA-256 and keeps integmon's own files out of the walk.
func newWalker(cfg *infra.Config, baselines *infra.FileBaselineStore, logger *zap.Logger) *infra.TreeWalker {
	return infra.NewTreeWalker(infra.NewSHA256Hasher(logger), logger).
		Exclude(cfg.StatePaths()...).
		ExcludeGlob(baselines.TempGlob())
}

// withLock runs fn while holding the data directory's instance lock.
func (a *app) withLock(cfg *infra.Config, fn func() error) error {
	lock := infra.NewFileLock(cfg.LockPath, infra.NewProcessManager())
	if err := lock.TryLock(); err != nil {
		return fail(exitFailure, "Error: %v", err)
	}
	defer func() { _ = lock.Unlock() }()
	return fn()
}

func (a *app) runBaseline(
	ctx context.Context,
	cfg *infra.Config,
	walker domain.TreeWalker,
	baselines domain.BaselineStore,
	events domain.EventLog,
	logger *zap.Logger,
) error {
	capturer := usecase.NewCapturer(cfg.Paths, walker, baselines, events, logger)

	result, err := capturer.Capture(ctx)
	if err != nil {
		return fail(exitFailure, "Error: %v", err)
	}

	logger.Info("baseline written",
		zap.Int("records", result.Records),
		zap.Int64("duration_ms", result.DurationMs))
	return nil
}

func (a *app) runCheck(
	ctx context.Context,
	cfg *infra.Config,
	walker domain.TreeWalker,
	baselines domain.BaselineStore,
	events domain.EventLog,
	logger *zap.Logger,
) error {
	checker := usecase.NewChecker(cfg.Paths, walker, baselines, events, a.stdout, logger)

	if cfg.HistoryEnabled {
		history, err := infra.OpenHistoryStore(cfg.HistoryPath, infra.NewHistoryKeyFile(cfg.DataDir))
		if err != nil {
			logger.Warn("check history unavailable", zap.Error(err))
		} else {
			defer history.Close()
			checker.WithHistory(history, infra.NewProcessManager().Hostname())
		}
	}

	result, err := checker.Check(ctx)
	if err != nil {
		if errors.Is(err, domain.ErrBaselineNotFound) {
			return fail(exitFailure, "Error: Baseline file '%s' not found. Run '--baseline' first.", cfg.BaselinePath)
		}
		return fail(exitFailure, "Error: %v", err)
	}

	if a.failOnChange && result.Diff.HasChanges() {
		return &exitError{code: exitChanges}
	}
	return nil
}

func (a *app) runHistory(cmd *cobra.Command, args []string) error {
	fs := infra.NewFileSystemManager()
	cfg, err := infra.ResolveConfig(fs, a.overrides)
	if err != nil {
		return fail(exitFailure, "Error: %v", err)
	}
	if !cfg.HistoryEnabled {
		return fail(exitFailure, "Error: check history is disabled")
	}

	keys := infra.NewHistoryKeyFile(cfg.DataDir)
	if !fs.Exists(cfg.HistoryPath) || !keys.KeyExists() {
		fmt.Fprintln(a.stdout, "No check history found.")
		return nil
	}

	history, err := infra.OpenHistoryStore(cfg.HistoryPath, keys)
	if err != nil {
		return fail(exitFailure, "Error: %v", err)
	}
	defer history.Close()

	runs, err := history.Recent(a.historyLimit)
	if err != nil {
		return fail(exitFailure, "Error: failed to read check history: %v", err)
	}
	if len(runs) == 0 {
		fmt.Fprintln(a.stdout, "No check history found.")
		return nil
	}

	tw := tabwriter.NewWriter(a.stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "STARTED\tHOST\tROOT\tSCANNED\tMODIFIED\tADDED\tDELETED\tDURATION")
	for _, r := range runs {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%d\t%d\t%d\t%s\n",
			r.StartedAt.Format(domain.EventTimeLayout), r.Host, r.Root,
			r.Scanned, r.Modified, r.Added, r.Deleted,
			(time.Duration(r.DurationMs) * time.Millisecond).String())
	}
	return tw.Flush()
}

func (a *app) runVersion(cmd *cobra.Command, args []string) {
	if a.jsonOutput {
		fmt.Fprintf(a.stdout, `{"version":"%s","commit":"%s","build_time":"%s"}`+"\n",
			Version, Commit, BuildTime)
	} else {
		fmt.Fprintf(a.stdout, "integmon %s (commit: %s, built: %s)\n",
			Version, Commit, BuildTime)
	}
}

// createLogger builds the diagnostic logger. It writes to stderr so stdout
// stays reserved for the summary and event echo.
func (a *app) createLogger() *zap.Logger {
	encoderConfig := zap.NewDevelopmentEncoderConfig()
	encoderConfig.TimeKey = "time"
	encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	level := zapcore.WarnLevel
	if a.verbose {
		level = zapcore.DebugLevel
	}

	core := zapcore.NewCore(
		zapcore.NewConsoleEncoder(encoderConfig),
		zapcore.AddSync(a.stderr),
		level,
	)
	return zap.New(core)
}

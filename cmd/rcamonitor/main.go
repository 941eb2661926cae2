// Command rcamonitor runs the standalone host performance monitor: it
// supervises the kernel tracer, aggregates telemetry, detects CPU/RAM
// spikes, ranks the processes behind each one, and asks an LLM
// collaborator to produce a root-cause report for every confirmed
// incident.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/Bmokshith2406/RCA-GENAI-MONITOR/config"
	"github.com/Bmokshith2406/RCA-GENAI-MONITOR/internal/detector"
	"github.com/Bmokshith2406/RCA-GENAI-MONITOR/internal/hostcounters"
	"github.com/Bmokshith2406/RCA-GENAI-MONITOR/internal/logger"
	"github.com/Bmokshith2406/RCA-GENAI-MONITOR/internal/metrics"
	"github.com/Bmokshith2406/RCA-GENAI-MONITOR/internal/monitor"
	"github.com/Bmokshith2406/RCA-GENAI-MONITOR/internal/rca"
	"github.com/Bmokshith2406/RCA-GENAI-MONITOR/internal/source"
	"github.com/Bmokshith2406/RCA-GENAI-MONITOR/internal/store"
	"github.com/Bmokshith2406/RCA-GENAI-MONITOR/internal/telemetry"
)

const version = "0.1.0"

// Exit codes per the external interface table: 0 clean shutdown, 2
// configuration/startup error, 3 tracer restart budget exhausted, 4
// unexpected fatal error (including a recovered panic).
const (
	exitOK          = 0
	exitConfigError = 2
	exitTracerLost  = 3
	exitFatal       = 4
)

func main() {
	defer func() {
		if r := recover(); r != nil {
			fmt.Fprintf(os.Stderr, "rcamonitor: fatal: %v\n", r)
			os.Exit(exitFatal)
		}
	}()
	os.Exit(execute(os.Args[1:]))
}

// execute builds the command tree and returns the process exit code.
// RunE closures stash their own code into exitCode before returning the
// error cobra needs to decide whether to print usage.
func execute(args []string) int {
	var configPath, logLevel string
	var replayDuration time.Duration
	exitCode := exitOK

	root := &cobra.Command{
		Use:     "rcamonitor",
		Short:   "Detects host CPU/RAM spikes and produces LLM-assisted root-cause reports",
		Version: version,
	}
	root.PersistentFlags().StringVar(&configPath, "config", "", "path to the YAML config file (default: rcamonitor.yml next to the binary)")
	root.PersistentFlags().StringVar(&logLevel, "log-level", "", "override the configured log level (debug|info|warn|error)")

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "Run the monitor pipeline against the live tracer until signaled to stop",
		RunE: func(*cobra.Command, []string) error {
			code, err := serve(findConfigFile(configPath), logLevel)
			exitCode = code
			return err
		},
	}

	replayCmd := &cobra.Command{
		Use:   "replay <captured-events-file>",
		Short: "Feed a captured line-delimited JSON event file through the pipeline instead of a live tracer",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			code, err := replay(findConfigFile(configPath), logLevel, args[0], replayDuration)
			exitCode = code
			return err
		},
	}
	replayCmd.Flags().DurationVar(&replayDuration, "duration", 30*time.Second, "how long to loop the capture before stopping (the tracer supervisor restarts on every end-of-file)")

	versionCmd := &cobra.Command{
		Use:   "version",
		Short: "Print the build version",
		RunE: func(cmd *cobra.Command, _ []string) error {
			fmt.Fprintln(cmd.OutOrStdout(), "rcamonitor "+version)
			return nil
		},
	}

	root.AddCommand(runCmd, replayCmd, versionCmd)
	root.SilenceUsage = true
	root.SilenceErrors = true

	if len(args) == 0 {
		args = []string{"run"}
	}
	root.SetArgs(args)

	if err := root.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "rcamonitor: %v\n", err)
		if exitCode == exitOK {
			exitCode = 1
		}
	}
	return exitCode
}

// findConfigFile mirrors the fall-back search a deployed binary needs:
// an explicit --config wins, then a config file beside the working
// directory, then one beside the executable, then the bare name so the
// resulting load error names the path that was actually tried.
func findConfigFile(explicit string) string {
	if explicit != "" {
		return explicit
	}
	if _, err := os.Stat("rcamonitor.yml"); err == nil {
		return "rcamonitor.yml"
	}
	if exePath, err := os.Executable(); err == nil {
		path := filepath.Join(filepath.Dir(exePath), "rcamonitor.yml")
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return "rcamonitor.yml"
}

func loadAndPrepare(configPath, logLevelOverride string) (*config.Config, error) {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return nil, fmt.Errorf("load config %s: %w", configPath, err)
	}
	if logLevelOverride != "" {
		cfg.Monitor.Logging.Level = logLevelOverride
		cfg.Monitor.Logging.Enabled = true
	}
	if err := logger.Init(cfg.Monitor.Logging.Enabled, cfg.Monitor.Logging.Level, cfg.Monitor.Logging.File, cfg.Monitor.Logging.Console); err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}
	return cfg, nil
}

// buildComponents assembles everything but the tracer source, which
// run and replay each construct differently. The caller owns closing
// the returned hostcounters.Reader.
func buildComponents(cfg *config.Config) (*telemetry.Aggregator, *detector.Detector, *rca.Orchestrator, *store.Store, *metrics.Registry, hostcounters.Reader, error) {
	registry := metrics.NewRegistry()
	counters := &registry.Counters

	reader, err := hostcounters.NewReader(cfg.Monitor.Telemetry.NumCores)
	if err != nil {
		return nil, nil, nil, nil, nil, nil, fmt.Errorf("open host counters: %w", err)
	}

	agg := telemetry.NewAggregator(cfg.Monitor.Telemetry, reader, counters)
	det := detector.NewDetector(cfg.Monitor.Detector, counters)
	st := store.NewStore(cfg.Monitor.Store.Retention)
	orch := rca.NewOrchestrator(cfg.Monitor.RCA, counters, st)
	return agg, det, orch, st, registry, reader, nil
}

func serve(configPath, logLevelOverride string) (int, error) {
	cfg, err := loadAndPrepare(configPath, logLevelOverride)
	if err != nil {
		return exitConfigError, err
	}
	logger.Infof("rcamonitor: starting, config=%s", configPath)

	agg, det, orch, st, registry, reader, err := buildComponents(cfg)
	if err != nil {
		return exitConfigError, err
	}
	defer reader.Close()

	newSource := func() (*source.Source, error) {
		return source.NewFromCommand(cfg.Monitor.Tracer, &registry.Counters)
	}
	mon := monitor.New(cfg.Monitor, newSource, agg, det, orch, st)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	runErrCh := make(chan error, 1)
	go func() { runErrCh <- mon.Run(ctx) }()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-sigCh:
		logger.Infof("rcamonitor: shutdown signal received")
		cancel()
		select {
		case <-runErrCh:
		case <-time.After(5 * time.Second):
			logger.Warnf("rcamonitor: shutdown deadline exceeded, exiting anyway")
		}
		return exitOK, nil

	case err := <-runErrCh:
		return classifyRunErr(err)
	}
}

// replay drives the pipeline off a captured event file instead of a
// live tracer subprocess, for up to duration. The tracer supervisor
// restarts on every end-of-file, so a capture shorter than duration is
// replayed again after each restart backoff; every end-of-file counts
// toward the supervisor's ten-restart budget, and once that is spent
// replay stops before the deadline with the tracer-lost exit code.
// This is the offline-analysis counterpart to the live run command.
func replay(configPath, logLevelOverride, eventsFile string, duration time.Duration) (int, error) {
	cfg, err := loadAndPrepare(configPath, logLevelOverride)
	if err != nil {
		return exitConfigError, err
	}
	logger.Infof("rcamonitor: replaying %s for %s, config=%s", eventsFile, duration, configPath)

	agg, det, orch, st, registry, reader, err := buildComponents(cfg)
	if err != nil {
		return exitConfigError, err
	}
	defer reader.Close()

	newSource := func() (*source.Source, error) {
		f, err := os.Open(eventsFile)
		if err != nil {
			return nil, fmt.Errorf("open capture file: %w", err)
		}
		return source.NewFromReader(cfg.Monitor.Tracer, f, &registry.Counters), nil
	}
	mon := monitor.New(cfg.Monitor, newSource, agg, det, orch, st)

	ctx, cancel := context.WithTimeout(context.Background(), duration)
	defer cancel()

	runErr := mon.Run(ctx)
	logger.Infof("rcamonitor: replay finished, %d incidents recorded", st.Len())

	if errors.Is(runErr, context.DeadlineExceeded) || errors.Is(runErr, context.Canceled) {
		return exitOK, nil
	}
	return classifyRunErr(runErr)
}

func classifyRunErr(err error) (int, error) {
	if err == nil || errors.Is(err, context.Canceled) {
		return exitOK, nil
	}
	if errors.Is(err, monitor.ErrTracerUnrecoverable) {
		logger.Errorf("rcamonitor: %v", err)
		return exitTracerLost, err
	}
	logger.Errorf("rcamonitor: fatal: %v", err)
	return exitFatal, err
}

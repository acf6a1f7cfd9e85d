// Command playsim runs the play-event simulator against an ingestion endpoint.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/topsongs/playsim/config"
	"github.com/topsongs/playsim/internal/engine"
	"github.com/topsongs/playsim/internal/observability"
	"github.com/topsongs/playsim/lib/telemetry"
)

const (
	defaultConfigPath        = "config/playsim.yaml"
	simLoggerPrefix          = "playsim "
	telemetryShutdownTimeout = 5 * time.Second
)

type cliFlags struct {
	configPath string
	mode       string
	endpoint   string
	dataDir    string
	volume     int
	verbose    bool
}

func main() {
	flags := parseFlags()
	ctx, cancel := newSignalContext()
	defer cancel()

	stdLogger := newSimLogger()

	configPath := resolveConfigPath(flags.configPath)
	cfg, loadedFromFile, err := config.Load(configPath)
	if err != nil {
		stdLogger.Fatalf("load config: %v", err)
	}
	if !loadedFromFile {
		stdLogger.Printf("configuration file not found, using defaults")
	}
	applyOverrides(&cfg, flags)

	logger := observability.NewStdLogger(stdLogger, flags.verbose)
	observability.SetLogger(logger)

	providers, shutdownTelemetry, err := telemetry.Init(ctx, cfg.Telemetry)
	if err != nil {
		stdLogger.Fatalf("initialize telemetry: %v", err)
	}
	observability.SetMetrics(telemetry.NewCollector(providers.MeterProvider))
	if cfg.Telemetry.OTLPEndpoint != "" {
		stdLogger.Printf("telemetry initialized: endpoint=%s, service=%s", cfg.Telemetry.OTLPEndpoint, cfg.Telemetry.ServiceName)
	}

	stdLogger.Printf("simulation starting: mode=%s, endpoint=%s", cfg.Mode, cfg.Dispatch.Endpoint)

	metrics := observability.NewRuntimeMetrics()
	e := engine.New(cfg, logger, metrics)
	summary, err := e.Run(ctx)

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), telemetryShutdownTimeout)
	defer shutdownCancel()
	if terr := shutdownTelemetry(shutdownCtx); terr != nil {
		stdLogger.Printf("telemetry shutdown: %v", terr)
	}

	if err != nil {
		stdLogger.Printf("simulation failed: %v", err)
		os.Exit(1)
	}

	printSummary(stdLogger, summary)
	if summary.Final == engine.StateCancelled {
		// Cancellation is a clean stop, not an error.
		stdLogger.Print("simulation cancelled before completion")
	}
}

func parseFlags() cliFlags {
	var flags cliFlags
	flag.StringVar(&flags.configPath, "config", "", fmt.Sprintf("Path to configuration file (default: %s)", defaultConfigPath))
	flag.StringVar(&flags.mode, "mode", "", "Override run mode: historical or live")
	flag.StringVar(&flags.endpoint, "endpoint", "", "Override ingestion endpoint URL")
	flag.StringVar(&flags.dataDir, "data-dir", "", "Override reference data directory")
	flag.IntVar(&flags.volume, "volume", 0, "Override historical event volume")
	flag.BoolVar(&flags.verbose, "verbose", false, "Enable debug logging")
	flag.Parse()
	return flags
}

func newSignalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
}

func newSimLogger() *log.Logger {
	return log.New(os.Stdout, simLoggerPrefix, log.LstdFlags|log.Lmicroseconds)
}

func resolveConfigPath(flagValue string) string {
	if flagValue != "" {
		return flagValue
	}
	return filepath.Clean(defaultConfigPath)
}

func applyOverrides(cfg *config.Settings, flags cliFlags) {
	if flags.mode != "" {
		cfg.Mode = config.Mode(flags.mode)
	}
	if flags.endpoint != "" {
		cfg.Dispatch.Endpoint = flags.endpoint
	}
	if flags.dataDir != "" {
		cfg.ReferenceData.Dir = flags.dataDir
	}
	if flags.volume > 0 {
		cfg.Historical.Volume = flags.volume
	}
}

func printSummary(logger *log.Logger, s engine.RunSummary) {
	logger.Printf("run %s: attempted=%d succeeded=%d retried=%d failed=%d elapsed=%v",
		s.Final, s.Attempted, s.Succeeded, s.Retried, s.Failed, s.Elapsed().Round(time.Millisecond))
}

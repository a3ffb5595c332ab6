// Package main is the entry point for the place-owner gateway.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/vyrodovalexey/placegw/internal/gateway"
	"github.com/vyrodovalexey/placegw/internal/observability"
)

// Version information (set at build time).
var (
	version   = "dev"
	buildTime = "unknown"
	gitCommit = "unknown"
)

// cliFlags holds command line flags.
type cliFlags struct {
	configPath  string
	logLevel    string
	logFormat   string
	showVersion bool
}

func main() {
	flags := parseFlags(flag.CommandLine, os.Args[1:])

	if flags.showVersion {
		printVersion()
		return
	}

	if err := run(flags); err != nil {
		fmt.Fprintf(os.Stderr, "gateway: %v\n", err)
		os.Exit(1)
	}
}

// parseFlags parses command line flags.
func parseFlags(fs *flag.FlagSet, args []string) cliFlags {
	configPath := fs.String("config", getEnvOrDefault("GATEWAY_CONFIG_PATH", "gateway.yaml"),
		"Path to configuration file")
	logLevel := fs.String("log-level", getEnvOrDefault("GATEWAY_LOG_LEVEL", ""),
		"Log level (debug, info, warn, error); overrides the configuration")
	logFormat := fs.String("log-format", getEnvOrDefault("GATEWAY_LOG_FORMAT", ""),
		"Log format (json, console); overrides the configuration")
	showVersion := fs.Bool("version", false, "Show version information")
	_ = fs.Parse(args)

	return cliFlags{
		configPath:  *configPath,
		logLevel:    *logLevel,
		logFormat:   *logFormat,
		showVersion: *showVersion,
	}
}

// printVersion prints version information.
func printVersion() {
	fmt.Printf("placegw version %s\n", version)
	fmt.Printf("  Build time: %s\n", buildTime)
	fmt.Printf("  Git commit: %s\n", gitCommit)
}

// run loads the configuration, builds the gateway and serves until a
// shutdown signal arrives.
func run(flags cliFlags) error {
	bootLogger, err := initLogger(observability.DefaultLogConfig(), flags)
	if err != nil {
		return err
	}

	cfg, err := loadConfig(flags.configPath, bootLogger)
	if err != nil {
		_ = bootLogger.Sync()
		return err
	}

	logger, err := initLogger(cfg.Observability.LogConfig(), flags)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("starting placegw",
		observability.String("version", version),
		observability.String("config", flags.configPath),
	)

	ctx := context.Background()
	gw, err := gateway.New(ctx, cfg,
		gateway.WithLogger(logger),
		gateway.WithBuildInfo(gateway.BuildInfo{Version: version, Commit: gitCommit, BuildTime: buildTime}),
	)
	if err != nil {
		logger.Error("failed to create gateway", observability.Error(err))
		return err
	}

	if err := gw.Start(ctx); err != nil {
		logger.Error("failed to start gateway", observability.Error(err))
		return err
	}

	return waitForShutdown(gw, shutdownSignals(), cfg.Server.ShutdownTimeout.Duration(), logger)
}

// initLogger creates a logger from cfg with the command line overrides
// applied.
func initLogger(cfg observability.LogConfig, flags cliFlags) (observability.Logger, error) {
	if flags.logLevel != "" {
		cfg.Level = flags.logLevel
	}
	if flags.logFormat != "" {
		cfg.Format = flags.logFormat
	}

	logger, err := observability.NewLogger(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	return logger, nil
}

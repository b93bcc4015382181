package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"runtime"
)

// Set via -ldflags at release time.
var (
	Version   = "dev"
	BuildTime = "unknown"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	fs := flag.NewFlagSet("launchpad", flag.ExitOnError)
	configPath := fs.String("config", "", "path to config file (optional, env vars work too)")
	showVersion := fs.Bool("version", false, "print version and exit")
	fs.Parse(args)

	if *showVersion {
		fmt.Printf("launchpad %s (%s, %s)\n", Version, BuildTime, runtime.Version())
		return ExitSuccess
	}

	cfg, err := LoadConfig(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		return ExitConfigError
	}

	logger := SetupLogger(cfg)
	logger.Info("launchpad starting",
		"version", Version,
		"addr", cfg.Server.Address(),
		"provider", cfg.Provider.Kind,
	)

	server, err := NewServer(cfg, logger)
	if err != nil {
		return fail(logger, "failed to create server", err)
	}

	if err := server.Start(context.Background()); err != nil {
		return fail(logger, "server error", err)
	}

	return ExitSuccess
}

// fail logs the error and maps it to a process exit code.
func fail(logger *slog.Logger, msg string, err error) int {
	var sErr *ServerError
	if errors.As(err, &sErr) {
		logger.Error(msg, "operation", sErr.Op, "error", sErr.Err)
		return sErr.ExitCode
	}
	logger.Error(msg, "error", err)
	return ExitConfigError
}

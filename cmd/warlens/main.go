// Package main is the entry point for the warlens CLI.
// warlens enriches Well-Architected assessment exports with remediation
// suggestions, keeps per-file summaries and combines them into a report.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	_ "time/tzdata"

	"github.com/joshsymonds/warlens/cmd/analyze"
	"github.com/joshsymonds/warlens/cmd/config"
	"github.com/joshsymonds/warlens/cmd/process"
	"github.com/joshsymonds/warlens/cmd/refresh"
	"github.com/joshsymonds/warlens/pkg/logger"
)

var (
	version   = "dev"
	buildTime = "unknown"
)

func main() {
	os.Exit(run())
}

func run() int {
	var (
		debug       bool
		logFormat   string
		logFile     string
		showVersion bool
	)

	globalFlags := flag.NewFlagSet("warlens", flag.ExitOnError)
	globalFlags.BoolVar(&debug, "debug", false, "Enable debug logging")
	globalFlags.StringVar(&logFormat, "log-format", "text", "Log format (text or json)")
	globalFlags.StringVar(&logFile, "log-file", "", "Also write logs to this file, rotated by size")
	globalFlags.BoolVar(&showVersion, "version", false, "Show version information")
	globalFlags.Usage = printUsage

	if err := globalFlags.Parse(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "Error parsing flags: %v\n", err)
		return 1
	}

	if showVersion {
		fmt.Printf("warlens version %s (built %s)\n", version, buildTime) //nolint:forbidigo
		return 0
	}

	logger.SetupLogger(logger.Options{Debug: debug, Format: logFormat, File: logFile})
	defer func() { _ = logger.Close() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// process is the default command.
	command := "process"
	args := globalFlags.Args()
	if len(args) > 0 {
		command = args[0]
		args = args[1:]
	}

	var err error
	switch command {
	case "process":
		err = process.Run(ctx, args)
	case "refresh":
		err = refresh.Run(ctx, args)
	case "analyze":
		err = analyze.Run(ctx, args)
	case "config":
		err = config.Run(args)
	case "help":
		printUsage()
		return 0
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", command)
		printUsage()
		return 1
	}

	if err != nil {
		logger.Error(command+" failed", "error", err)
		return 1
	}
	return 0
}

func printUsage() {
	//nolint:forbidigo
	fmt.Println(`warlens - Well-Architected finding enrichment

Usage:
  warlens [global flags] [command] [command flags]

Commands:
  process        Enrich every export in the input folder (default)
  refresh        Regenerate cached suggestions for selected check IDs
  analyze        Combine per-file summaries into one report
  config         Validate configuration
  help           Show this help message

Global Flags:
  --debug         Enable debug logging
  --log-format    Log format (text or json) (default: text)
  --log-file      Also write logs to a rotated file
  --version       Show version information

Examples:
  warlens
  warlens process --config warlens.yaml --checkpoint-interval 25
  warlens refresh --check-ids 3,7 --additional-info "Workloads run on EKS"
  warlens analyze --format json
  warlens config validate --config warlens.yaml

Use "warlens <command> --help" for more information about a command.`)
}

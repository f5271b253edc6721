// Package config implements the config command.
package config

import (
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/joshsymonds/warlens/internal/config"
	"github.com/joshsymonds/warlens/internal/enrichment/llm"
)

// Run executes the config command.
func Run(args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("subcommand required: validate")
	}

	subcommand := args[0]
	subArgs := args[1:]

	switch subcommand {
	case "validate":
		return runValidate(subArgs)
	default:
		return fmt.Errorf("unknown subcommand: %s", subcommand)
	}
}

func runValidate(args []string) error {
	var configFile string

	fs := flag.NewFlagSet("config validate", flag.ExitOnError)
	fs.StringVar(&configFile, "config", "", "Configuration file to validate (required)")

	fs.Usage = func() {
		fmt.Fprintln(os.Stderr, `Usage: warlens config validate [options]

Validate a warlens configuration file.

Options:`)
		fs.PrintDefaults()
		fmt.Fprintln(os.Stderr, `
Examples:
  warlens config validate --config warlens.yaml`)
	}

	if err := fs.Parse(args); err != nil {
		return err
	}

	if configFile == "" {
		return fmt.Errorf("--config flag is required")
	}

	fmt.Printf("Validating configuration: %s\n\n", configFile)

	cfg, err := config.LoadConfig(configFile)
	if err != nil {
		return fmt.Errorf("configuration is invalid: %w", err)
	}

	printValidationResults(cfg)

	fmt.Println("\nConfiguration is valid!")
	return nil
}

func printValidationResults(cfg *config.Config) {
	fmt.Println("Paths:")
	fmt.Printf("   Input: %s (%s, header skip %d)\n", cfg.Paths.InputDir, cfg.Input.Pattern, cfg.Input.HeaderSkip)
	fmt.Printf("   Output: %s\n", cfg.Paths.OutputDir)
	fmt.Printf("   Summaries: %s\n", cfg.Paths.SummaryDir)
	fmt.Printf("   Cache: %s\n", cfg.Paths.CacheFile)
	fmt.Printf("   Report: %s\n", cfg.ReportPath())
	if cfg.Paths.Database != "" {
		fmt.Printf("   Database: %s\n", cfg.Paths.Database)
	}

	fmt.Println("\nEnrichment:")
	fmt.Printf("   Driver: %s (available: %s)\n", cfg.Enrichment.Driver, strings.Join(llm.DefaultRegistry.Names(), ", "))
	fmt.Printf("   Endpoint: %s\n", cfg.Enrichment.Endpoint)
	fmt.Printf("   Model: %s\n", cfg.Enrichment.Model)
	fmt.Printf("   Timeout: %s, retries: %d\n", cfg.Enrichment.Timeout, cfg.Enrichment.MaxRetries)
	if cfg.Enrichment.APIKeyEnv != "" {
		state := "unset"
		if cfg.Enrichment.APIKey != "" {
			state = "set"
		}
		fmt.Printf("   API key: $%s (%s)\n", cfg.Enrichment.APIKeyEnv, state)
	}
	fmt.Printf("   Checkpoint interval: %d\n", cfg.CheckpointInterval)

	fmt.Println("\nSummaries:")
	fmt.Printf("   Timezone: %s\n", cfg.Summary.Timezone)
	fmt.Printf("   Severity conflict: %s\n", cfg.Summary.SeverityConflict)

	fmt.Println("\nExport sink:")
	fmt.Printf("   Type: %s\n", cfg.Sink.Type)
	if cfg.Sink.Bucket != "" {
		fmt.Printf("   Bucket: %s\n", cfg.Sink.Bucket)
	}
	if cfg.Sink.Endpoint != "" {
		fmt.Printf("   Endpoint: %s\n", cfg.Sink.Endpoint)
	}
}

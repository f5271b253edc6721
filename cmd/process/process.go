// Package process implements the default mode: enrich every assessment
// export in the input folder.
package process

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/joshsymonds/warlens/internal/config"
	"github.com/joshsymonds/warlens/internal/enrichment/core"
	"github.com/joshsymonds/warlens/internal/pipeline"
	"github.com/joshsymonds/warlens/pkg/logger"
)

type options struct {
	configFile         string
	inputFolder        string
	outputFolder       string
	summaryFolder      string
	cacheFile          string
	checkpointInterval int
	headerSkip         int
}

// NewProcessCommand creates the process command.
func NewProcessCommand() *cobra.Command {
	opts := &options{}

	cmd := &cobra.Command{
		Use:   "process",
		Short: "Enrich assessment exports with remediation suggestions",
		Long: `Read every assessment export in the input folder, attach a remediation
suggestion to each finding and write an enriched copy to the output sink.

Suggestions are cached by check title, so each distinct check is sent to the
enrichment service once. The cache is saved every --checkpoint-interval new
suggestions and again when the run ends or is interrupted. A per-file summary
is upserted into summary.json, summary.csv and, when configured, SQLite.`,
		Example: `  # Process ./input with the defaults
  warlens process

  # Use a config file and a different input folder
  warlens process --config warlens.yaml --input-folder exports/2024-06`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd.Context(), cmd, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.configFile, "config", "c", "", "Path to config file")
	cmd.Flags().StringVar(&opts.inputFolder, "input-folder", "", "Folder containing assessment exports")
	cmd.Flags().StringVar(&opts.outputFolder, "output-folder", "", "Folder receiving enriched exports (local sink)")
	cmd.Flags().StringVar(&opts.summaryFolder, "summary-folder", "", "Folder holding summary.json and summary.csv")
	cmd.Flags().StringVar(&opts.cacheFile, "cache-file", "", "Suggestion cache file")
	cmd.Flags().IntVar(&opts.checkpointInterval, "checkpoint-interval", 0, "New suggestions between cache saves")
	cmd.Flags().IntVar(&opts.headerSkip, "header-skip", -1, "Rows to skip before the header row")

	return cmd
}

func (o *options) apply(cmd *cobra.Command, cfg *config.Config) error {
	if o.inputFolder != "" {
		cfg.Paths.InputDir = o.inputFolder
	}
	if o.outputFolder != "" {
		cfg.Paths.OutputDir = o.outputFolder
	}
	if o.summaryFolder != "" {
		cfg.Paths.SummaryDir = o.summaryFolder
	}
	if o.cacheFile != "" {
		cfg.Paths.CacheFile = o.cacheFile
	}
	if cmd.Flags().Changed("checkpoint-interval") {
		cfg.CheckpointInterval = o.checkpointInterval
	}
	if cmd.Flags().Changed("header-skip") {
		cfg.Input.HeaderSkip = o.headerSkip
	}
	if err := cfg.Resolve(); err != nil {
		return err
	}
	return cfg.Validate()
}

func run(ctx context.Context, cmd *cobra.Command, opts *options) error {
	log := logger.GetGlobalLogger()

	cfg, err := config.LoadConfig(opts.configFile)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if err := opts.apply(cmd, cfg); err != nil {
		return fmt.Errorf("invalid options: %w", err)
	}

	p, err := pipeline.Open(ctx, cfg, pipeline.ModeProcess, log)
	if err != nil {
		return err
	}
	defer func() {
		if err := p.Close(); err != nil {
			log.Warn("Failed to close summary database", "error", err)
		}
	}()

	if err := p.Driver.HealthCheck(ctx); err != nil {
		log.Warn("Enrichment service health check failed", "driver", p.Driver.GetCapabilities().Driver, "error", err)
	}

	result, err := p.Processor.ProcessFolder(ctx)
	if result != nil {
		printResult(cmd, cfg, result)
	}
	return err
}

func printResult(cmd *cobra.Command, cfg *config.Config, r *core.BatchResult) {
	out := cmd.OutOrStdout()
	fmt.Fprintln(out, "\nEnrichment Summary:")
	fmt.Fprintf(out, "  Files processed: %d\n", len(r.Datasets))
	fmt.Fprintf(out, "  Files skipped: %d\n", len(r.Skipped))
	fmt.Fprintf(out, "  New suggestions: %d\n", r.NewSuggestions)
	fmt.Fprintf(out, "  Cache hits: %d\n", r.CacheHits)
	fmt.Fprintf(out, "  Failed enrichments: %d\n", r.Failures)
	fmt.Fprintf(out, "  Cache: %s\n", cfg.Paths.CacheFile)

	for _, d := range r.Datasets {
		fmt.Fprintf(out, "  %s -> %s\n", d.Name, d.Export)
	}
	for _, s := range r.Skipped {
		fmt.Fprintf(out, "  skipped %s: %v\n", s.Path, s.Err)
	}
	if r.Interrupted {
		fmt.Fprintln(out, "\nRun interrupted; completed suggestions were saved.")
	}
}

// Run executes the process command with the provided arguments.
func Run(ctx context.Context, args []string) error {
	cmd := NewProcessCommand()
	cmd.SetArgs(args)
	return cmd.ExecuteContext(ctx)
}

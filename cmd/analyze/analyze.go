// Package analyze builds the combined report across all summarized files.
package analyze

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/joshsymonds/warlens/internal/config"
	"github.com/joshsymonds/warlens/internal/pipeline"
	"github.com/joshsymonds/warlens/internal/report"
	"github.com/joshsymonds/warlens/pkg/logger"
	"github.com/joshsymonds/warlens/pkg/pathutil"
)

type options struct {
	configFile       string
	summaryFolder    string
	cacheFile        string
	output           string
	format           string
	severityConflict string
}

// NewAnalyzeCommand creates the analyze command.
func NewAnalyzeCommand() *cobra.Command {
	opts := &options{}

	cmd := &cobra.Command{
		Use:   "analyze",
		Short: "Combine per-file summaries into one report",
		Long: `Sum every per-file summary in summary.json into a combined report,
overwrite the report file and print it in the chosen format.

When files disagree about a check title's severity, --severity-conflict
decides the grouping: last-seen (default), first-seen, or reject.`,
		Example: `  # Print insights and write summary/summary-analyze.json
  warlens analyze

  # Emit JSON and fail on inconsistent severities
  warlens analyze --format json --severity-conflict reject`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd.Context(), cmd, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.configFile, "config", "c", "", "Path to config file")
	cmd.Flags().StringVar(&opts.summaryFolder, "summary-folder", "", "Folder holding summary.json")
	cmd.Flags().StringVar(&opts.cacheFile, "cache-file", "", "Suggestion cache file used for check IDs")
	cmd.Flags().StringVarP(&opts.output, "output", "o", "", "Report file (default <summary-folder>/summary-analyze.json)")
	cmd.Flags().StringVarP(&opts.format, "format", "f", "insights",
		fmt.Sprintf("Output format (%s)", strings.Join(report.ListFormats(), ", ")))
	cmd.Flags().StringVar(&opts.severityConflict, "severity-conflict", "", "Severity conflict policy (last-seen, first-seen, reject)")

	return cmd
}

func run(ctx context.Context, cmd *cobra.Command, opts *options) error {
	log := logger.GetGlobalLogger()

	cfg, err := config.LoadConfig(opts.configFile)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if opts.summaryFolder != "" {
		cfg.Paths.SummaryDir = opts.summaryFolder
	}
	if opts.cacheFile != "" {
		cfg.Paths.CacheFile = opts.cacheFile
	}
	if opts.severityConflict != "" {
		cfg.Summary.SeverityConflict = opts.severityConflict
	}
	if err := cfg.Resolve(); err != nil {
		return err
	}
	if opts.output != "" {
		path, err := pathutil.ValidateOutputPath(opts.output)
		if err != nil {
			return fmt.Errorf("invalid output path: %w", err)
		}
		cfg.Paths.ReportFile = path
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid options: %w", err)
	}

	policy, err := cfg.Policy()
	if err != nil {
		return err
	}

	formatter, err := report.GetFormat(opts.format, log)
	if err != nil {
		return err
	}

	combined, err := pipeline.Analyze(ctx, cfg, policy, time.Now(), log)
	if err != nil {
		return err
	}

	return formatter.Render(cmd.OutOrStdout(), combined)
}

// Run executes the analyze command with the provided arguments.
func Run(ctx context.Context, args []string) error {
	cmd := NewAnalyzeCommand()
	cmd.SetArgs(args)
	return cmd.ExecuteContext(ctx)
}

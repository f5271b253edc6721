// Package refresh regenerates cached suggestions for selected check IDs.
package refresh

import (
	"context"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/joshsymonds/warlens/internal/config"
	"github.com/joshsymonds/warlens/internal/models"
	"github.com/joshsymonds/warlens/internal/pipeline"
	"github.com/joshsymonds/warlens/pkg/logger"
)

type options struct {
	configFile     string
	cacheFile      string
	additionalInfo string
	checkIDs       []int
}

// NewRefreshCommand creates the refresh command.
func NewRefreshCommand() *cobra.Command {
	opts := &options{}

	cmd := &cobra.Command{
		Use:   "refresh [check IDs...]",
		Short: "Regenerate cached suggestions for selected check IDs",
		Long: `Ask the enrichment service for a fresh suggestion for each given check ID
and replace only that record's suggestion in the cache. Unknown IDs are
reported and skipped. A failed regeneration keeps the previous suggestion.`,
		Example: `  # Refresh two checks
  warlens refresh --check-ids 3,7

  # Positional IDs work too, with extra context for the prompt
  warlens refresh 3 7 --additional-info "Workloads run on EKS"`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ids, err := parseIDs(opts.checkIDs, args)
			if err != nil {
				return err
			}
			return run(cmd.Context(), cmd, opts, ids)
		},
	}

	cmd.Flags().StringVarP(&opts.configFile, "config", "c", "", "Path to config file")
	cmd.Flags().StringVar(&opts.cacheFile, "cache-file", "", "Suggestion cache file")
	cmd.Flags().IntSliceVar(&opts.checkIDs, "check-ids", nil, "Check IDs to refresh")
	cmd.Flags().StringVar(&opts.additionalInfo, "additional-info", "", "Extra context appended to each refresh prompt")

	return cmd
}

// parseIDs merges flag and positional IDs, keeping first-seen order.
func parseIDs(flagIDs []int, args []string) ([]models.CheckID, error) {
	seen := make(map[models.CheckID]bool)
	var ids []models.CheckID
	add := func(n int) error {
		id := models.CheckID(n)
		if !id.Valid() {
			return fmt.Errorf("invalid check ID %d", n)
		}
		if !seen[id] {
			seen[id] = true
			ids = append(ids, id)
		}
		return nil
	}

	for _, n := range flagIDs {
		if err := add(n); err != nil {
			return nil, err
		}
	}
	for _, arg := range args {
		n, err := strconv.Atoi(arg)
		if err != nil {
			return nil, fmt.Errorf("invalid check ID %q", arg)
		}
		if err := add(n); err != nil {
			return nil, err
		}
	}

	if len(ids) == 0 {
		return nil, fmt.Errorf("at least one check ID is required")
	}
	return ids, nil
}

func run(ctx context.Context, cmd *cobra.Command, opts *options, ids []models.CheckID) error {
	log := logger.GetGlobalLogger()

	cfg, err := config.LoadConfig(opts.configFile)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if opts.cacheFile != "" {
		cfg.Paths.CacheFile = opts.cacheFile
		if err := cfg.Resolve(); err != nil {
			return err
		}
	}

	p, err := pipeline.Open(ctx, cfg, pipeline.ModeRefresh, log)
	if err != nil {
		return err
	}
	defer func() { _ = p.Close() }()

	result, err := p.Processor.Refresh(ctx, ids, opts.additionalInfo)
	if result != nil {
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "Refreshed: %v\n", result.Updated)
		if len(result.NotFound) > 0 {
			fmt.Fprintf(out, "Not found: %v\n", result.NotFound)
		}
		for _, f := range result.Failed {
			fmt.Fprintf(out, "Failed %d: %v (previous suggestion kept)\n", f.ID, f.Err)
		}
	}
	return err
}

// Run executes the refresh command with the provided arguments.
func Run(ctx context.Context, args []string) error {
	cmd := NewRefreshCommand()
	cmd.SetArgs(args)
	return cmd.ExecuteContext(ctx)
}

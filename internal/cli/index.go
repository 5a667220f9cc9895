package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
)

var indexCmd = &cobra.Command{
	Use:   "index",
	Short: "Rebuild the vector index from the database",
	Long: `Fit the feature encoder on every animal in the database and rewrite the
vector index from scratch.

Examples:
  petmatch index
  petmatch index --config deploy/petmatch.yaml`,
	Args: cobra.NoArgs,
	RunE: runIndex,
}

func init() {
	rootCmd.AddCommand(indexCmd)
}

func runIndex(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	cfg := GetConfig()

	a, err := buildApp(ctx, cfg, GetRootDir(), logger)
	if err != nil {
		return err
	}
	defer a.Close(context.WithoutCancel(ctx))

	fmt.Printf("Loading animals from %s...\n", cfg.Database.Table)

	var bar *progressbar.ProgressBar
	progress := func(done, total int) {
		if bar == nil {
			bar = progressbar.NewOptions(total,
				progressbar.OptionEnableColorCodes(true),
				progressbar.OptionShowBytes(false),
				progressbar.OptionSetWidth(40),
				progressbar.OptionShowCount(),
				progressbar.OptionSetDescription("[cyan]Indexing[reset]"),
				progressbar.OptionSetTheme(progressbar.Theme{
					Saucer:        "[green]=[reset]",
					SaucerHead:    "[green]>[reset]",
					SaucerPadding: " ",
					BarStart:      "[",
					BarEnd:        "]",
				}),
				progressbar.OptionOnCompletion(func() {
					fmt.Println()
				}),
			)
		}
		bar.Set(done)
	}

	start := time.Now()
	state, err := a.indexer.InitialLoad(ctx, progress)
	if err != nil {
		return fmt.Errorf("indexing failed: %w", err)
	}

	count, err := a.index.Count(ctx)
	if err != nil {
		return fmt.Errorf("failed to count vectors: %w", err)
	}

	fmt.Printf("\nIndexing complete:\n")
	fmt.Printf("  Animals indexed: %d\n", state.Len())
	fmt.Printf("  Vectors stored:  %d\n", count)
	fmt.Printf("  Dimension:       %d\n", a.index.Dimension())
	fmt.Printf("  Backend:         %s\n", cfg.Vector.Backend)
	fmt.Printf("  Took:            %s\n", formatDuration(time.Since(start)))
	return nil
}

// formatDuration formats a duration in a human-readable way.
func formatDuration(d time.Duration) string {
	if d < time.Second {
		return fmt.Sprintf("%dms", d.Milliseconds())
	}
	if d < time.Minute {
		return fmt.Sprintf("%.1fs", d.Seconds())
	}
	return fmt.Sprintf("%dm%ds", int(d.Minutes()), int(d.Seconds())%60)
}

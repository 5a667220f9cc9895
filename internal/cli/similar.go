package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	"petmatch/config"
	"petmatch/internal/domain"
)

var (
	similarID   int64
	similarK    int
	similarJSON bool
)

var similarCmd = &cobra.Command{
	Use:   "similar",
	Short: "Print the animals most similar to one animal",
	Long: `Build a private in-memory index from the database and print the ids of
the animals most similar to the given one, best match first. The configured
vector backend is not touched.

Examples:
  petmatch similar --id 42
  petmatch similar --id 42 -k 10 --json`,
	Args: cobra.NoArgs,
	RunE: runSimilar,
}

func init() {
	rootCmd.AddCommand(similarCmd)
	similarCmd.Flags().Int64Var(&similarID, "id", 0, "animal id (required)")
	similarCmd.Flags().IntVarP(&similarK, "k", "k", 0, "number of results (default from config)")
	similarCmd.Flags().BoolVar(&similarJSON, "json", false, "output as JSON")
	similarCmd.MarkFlagRequired("id")
}

func runSimilar(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	ids, err := queryOnce(ctx, GetConfig(), GetRootDir(), logger, similarID, similarK)
	switch {
	case errors.Is(err, domain.ErrAnimalNotFound):
		return fmt.Errorf("animal %d not found", similarID)
	case errors.Is(err, domain.ErrIndexMissing):
		return fmt.Errorf("animal %d is not indexed", similarID)
	case err != nil:
		return err
	}

	if similarJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(domain.SimilarResult{AnimalID: similarID, SimilarIDs: ids})
	}

	fmt.Printf("Animals similar to %d:\n", similarID)
	for i, id := range ids {
		fmt.Printf("  %d. %d\n", i+1, id)
	}
	return nil
}

// queryOnce answers one similarity query against an index built in memory,
// leaving the configured vector backend and its data alone.
func queryOnce(ctx context.Context, cfg *config.Config, dir string, logger *slog.Logger, animalID int64, k int) ([]int64, error) {
	local := *cfg
	local.Vector.Backend = "memory"
	local.Cache.Enabled = false

	a, err := buildApp(ctx, &local, dir, logger)
	if err != nil {
		return nil, err
	}
	defer a.Close(context.WithoutCancel(ctx))

	state, err := a.indexer.InitialLoad(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to load index: %w", err)
	}
	return a.similar.GetSimilar(ctx, animalID, state, k)
}

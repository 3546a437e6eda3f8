package cli

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/spf13/cobra"

	"github.com/raphaelgruber/scrumbot/internal/models"
)

var runsLimit int

var runsCmd = &cobra.Command{
	Use:   "runs [run-id]",
	Short: "List or inspect tracked training runs",
	Long: `List training runs recorded with "train --track", or inspect one by ID.

Examples:
  scrumbot runs            # List recent runs
  scrumbot runs abc123     # Show details for run abc123`,
	Args: cobra.MaximumNArgs(1),
	RunE: runRuns,
}

func init() {
	runsCmd.Flags().IntVarP(&runsLimit, "limit", "n", 20, "max results")
}

func runRuns(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	store, err := openDB(ctx)
	if err != nil {
		return err
	}
	limit := runsLimit
	if len(args) == 1 {
		limit = 0
	}
	runs, err := store.ListTrainingRuns(ctx, limit)
	if err != nil {
		return fmt.Errorf("list runs: %w", err)
	}

	// If run ID provided, show that specific run
	if len(args) == 1 {
		for _, r := range runs {
			if fmt.Sprint(r.ID.ID) == args[0] {
				return showRun(r)
			}
		}
		return fmt.Errorf("run not found: %s", args[0])
	}
	return listRuns(runs)
}

func listRuns(runs []models.TrainingRun) error {
	if jsonOut {
		printJSON(runs)
		return nil
	}
	if len(runs) == 0 {
		fmt.Println("No runs found")
		return nil
	}

	fmt.Printf("%-10s %-8s %-12s %-12s %-10s %s\n", "ID", "KIND", "STATUS", "PROGRESS", "LOSS", "STARTED")
	fmt.Println("--------------------------------------------------------------------------------")

	for _, r := range runs {
		progress := ""
		if r.TotalSteps > 0 {
			progress = fmt.Sprintf("%d/%d", r.Step, r.TotalSteps)
		}
		loss := "-"
		if r.Loss != nil {
			loss = fmt.Sprintf("%.4f", *r.Loss)
		}
		started := r.StartedAt.Local().Format("01-02 15:04")
		fmt.Printf("%-10s %-8s %-12s %-12s %-10s %s\n", r.ID.ID, r.Kind, r.Status, progress, loss, started)
	}
	return nil
}

func showRun(r models.TrainingRun) error {
	if jsonOut {
		printJSON(r)
		return nil
	}

	fmt.Printf("Run: %s\n", r.ID.ID)
	fmt.Printf("  Kind: %s\n", r.Kind)
	fmt.Printf("  Status: %s\n", r.Status)
	fmt.Printf("  Dataset: %s\n", r.Dataset)
	fmt.Printf("  Output: %s\n", r.OutputDir)
	if r.TotalSteps > 0 {
		fmt.Printf("  Progress: %d/%d\n", r.Step, r.TotalSteps)
	}
	fmt.Printf("  Started: %s\n", r.StartedAt.Format(time.RFC3339))
	if r.CompletedAt != nil {
		fmt.Printf("  Completed: %s\n", r.CompletedAt.Format(time.RFC3339))
		duration := r.CompletedAt.Sub(r.StartedAt)
		fmt.Printf("  Duration: %s\n", duration.Round(time.Second))
	}

	if r.Error != nil && *r.Error != "" {
		fmt.Printf("  Error: %s\n", *r.Error)
	}

	if len(r.Metrics) > 0 {
		fmt.Println("\nMetrics:")
		keys := make([]string, 0, len(r.Metrics))
		for k := range r.Metrics {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			fmt.Printf("  %-16s %.4f\n", k, r.Metrics[k])
		}
	}
	return nil
}

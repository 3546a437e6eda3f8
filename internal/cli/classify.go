package cli

import (
	"context"
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/raphaelgruber/scrumbot/internal/intent"
)

var classifyModel string

var classifyCmd = &cobra.Command{
	Use:   "classify <text>",
	Short: "Predict the intent of a message",
	Long: `Predict whether a message logs a standup, asks about past updates,
or edits an existing entry.

Examples:
  scrumbot classify "Yesterday I reviewed PRs, today I'm on the API"
  scrumbot classify "show me last week's updates" --json`,
	Args: cobra.ExactArgs(1),
	RunE: runClassify,
}

func init() {
	classifyCmd.Flags().StringVarP(&classifyModel, "model", "m", "", "intent classifier artifact (default from config)")
}

func loadClassifier() (*intent.Classifier, error) {
	dir := classifyModel
	if dir == "" {
		dir = cfg.IntentModelDir
	}
	return intent.Load(dir, intent.Options{Logger: logger, Metrics: collector})
}

func runClassify(cmd *cobra.Command, args []string) error {
	c, err := loadClassifier()
	if err != nil {
		return err
	}
	pred, err := c.Classify(context.Background(), args[0])
	if err != nil {
		return err
	}

	if jsonOut {
		printJSON(pred)
		return nil
	}

	fmt.Printf("%s (%.2f)\n", pred.Label, pred.Score)
	if verbose {
		names := make([]string, 0, len(pred.Scores))
		for name := range pred.Scores {
			names = append(names, name)
		}
		sort.Slice(names, func(i, j int) bool { return pred.Scores[names[i]] > pred.Scores[names[j]] })
		for _, name := range names {
			fmt.Printf("  %-14s %.4f\n", name, pred.Scores[name])
		}
	}
	return nil
}

package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/raphaelgruber/scrumbot/internal/ner"
)

var extractModel string

var extractCmd = &cobra.Command{
	Use:   "extract <text>...",
	Short: "Extract standup fields from text",
	Long: `Run the field extractor on one or more standup messages.

Each argument is processed independently; a failing message is reported
without affecting the others.

Examples:
  scrumbot extract "Yesterday I fixed the login bug, today I'll write tests"
  scrumbot extract --model models/ner "No blockers" "Today: deploy" --json`,
	Args: cobra.MinimumNArgs(1),
	RunE: runExtract,
}

func init() {
	extractCmd.Flags().StringVarP(&extractModel, "model", "m", "", "field extractor artifact (default from config)")
}

func loadPipeline() (*ner.Pipeline, error) {
	dir := extractModel
	if dir == "" {
		dir = cfg.NERModelDir
	}
	return ner.Load(dir, ner.Options{
		Concurrency: cfg.InferenceConcurrency,
		Logger:      logger,
		Metrics:     collector,
	})
}

func runExtract(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	p, err := loadPipeline()
	if err != nil {
		return err
	}
	results := p.ExtractBatch(ctx, args)

	if jsonOut {
		type item struct {
			Text   string            `json:"text"`
			Fields map[string]string `json:"fields,omitempty"`
			Spans  []ner.Span        `json:"spans,omitempty"`
			Error  string            `json:"error,omitempty"`
		}
		out := make([]item, len(results))
		for i, r := range results {
			out[i] = item{Text: args[i], Spans: r.Spans}
			if r.Err != nil {
				out[i].Error = r.Err.Error()
			} else {
				out[i].Fields = ner.FieldNames(r.Spans)
			}
		}
		printJSON(out)
		return nil
	}

	failed := 0
	for i, r := range results {
		if i > 0 {
			fmt.Println()
		}
		fmt.Printf("%q\n", truncate(args[i], 80))
		if r.Err != nil {
			failed++
			fmt.Printf("  error: %v\n", r.Err)
			continue
		}
		if len(r.Spans) == 0 {
			fmt.Println("  (no fields found)")
			continue
		}
		for _, s := range r.Spans {
			fmt.Printf("  %-10s %q [%d:%d] %.2f\n", strings.ToLower(s.Field.String()), s.Text, s.Start, s.End, s.Score)
		}
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d messages failed", failed, len(results))
	}
	return nil
}

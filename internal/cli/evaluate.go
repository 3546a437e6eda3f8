package cli

import (
	"context"
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/raphaelgruber/scrumbot/internal/artifact"
	"github.com/raphaelgruber/scrumbot/internal/dataset"
	"github.com/raphaelgruber/scrumbot/internal/intent"
	"github.com/raphaelgruber/scrumbot/internal/model"
	"github.com/raphaelgruber/scrumbot/internal/ner"
	"github.com/raphaelgruber/scrumbot/internal/seqeval"
	"github.com/raphaelgruber/scrumbot/internal/train"
)

var (
	evalModel   string
	evalData    string
	evalWorkers int
)

var evaluateCmd = &cobra.Command{
	Use:   "evaluate",
	Short: "Score a trained model on a labeled dataset",
	Long: `Score a saved model against a labeled dataset.

The model type is read from the artifact: field extractors are scored with
span-level precision, recall and F1 on a JSON dataset, intent classifiers
with accuracy on a text,label CSV.

Examples:
  scrumbot evaluate --model models/ner --data data/test.json
  scrumbot evaluate --model models/intent --data data/intents_test.csv --json`,
	RunE: runEvaluate,
}

func init() {
	evaluateCmd.Flags().StringVarP(&evalModel, "model", "m", "", "artifact directory (required)")
	evaluateCmd.Flags().StringVarP(&evalData, "data", "d", "", "labeled dataset (required)")
	evaluateCmd.Flags().IntVar(&evalWorkers, "workers", 0, "parallel workers (0 = all CPUs)")
	_ = evaluateCmd.MarkFlagRequired("model")
	_ = evaluateCmd.MarkFlagRequired("data")
}

func runEvaluate(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	ac, err := artifact.ReadConfig(evalModel)
	if err != nil {
		return err
	}

	switch ac.ModelType {
	case model.TypeWindowTagger:
		return evaluateNER(ctx)
	case model.TypeBagClassifier:
		return evaluateIntent(ctx)
	default:
		return fmt.Errorf("evaluate: unsupported model type %q", ac.ModelType)
	}
}

func evaluateNER(ctx context.Context) error {
	p, err := ner.Load(evalModel, ner.Options{Logger: logger, Metrics: collector})
	if err != nil {
		return err
	}
	examples, _, err := dataset.LoadFile(evalData, dataset.LoadOptions{Logger: logger})
	if err != nil {
		return err
	}

	tc, err := train.Acquire(train.DeviceCPU, evalWorkers)
	if err != nil {
		return err
	}
	defer tc.Release()

	m, loss, err := p.Evaluate(ctx, tc, examples)
	if err != nil {
		return err
	}

	if jsonOut {
		printJSON(struct {
			seqeval.Metrics
			Loss     float64 `json:"loss"`
			Examples int     `json:"examples"`
		}{m, loss, len(examples)})
		return nil
	}

	fmt.Printf("Evaluated %d examples (run %s)\n\n", len(examples), p.RunID())
	fmt.Printf("  Precision: %.4f\n", m.Precision)
	fmt.Printf("  Recall:    %.4f\n", m.Recall)
	fmt.Printf("  F1:        %.4f\n", m.F1)
	fmt.Printf("  Accuracy:  %.4f\n", m.Accuracy)
	fmt.Printf("  Loss:      %.4f\n", loss)

	if len(m.Fields) > 0 {
		names := make([]string, 0, len(m.Fields))
		for name := range m.Fields {
			names = append(names, name)
		}
		sort.Strings(names)
		fmt.Printf("\n  %-12s %9s %9s %9s %8s\n", "FIELD", "PRECISION", "RECALL", "F1", "SUPPORT")
		for _, name := range names {
			f := m.Fields[name]
			fmt.Printf("  %-12s %9.4f %9.4f %9.4f %8d\n", name, f.Precision, f.Recall, f.F1, f.Support)
		}
	}
	return nil
}

func evaluateIntent(ctx context.Context) error {
	c, err := intent.Load(evalModel, intent.Options{Logger: logger, Metrics: collector})
	if err != nil {
		return err
	}
	examples, err := intent.LoadCSVFile(evalData)
	if err != nil {
		return err
	}

	acc, err := intentAccuracy(ctx, c, examples)
	if err != nil {
		return err
	}

	if jsonOut {
		printJSON(map[string]any{"accuracy": acc, "examples": len(examples)})
		return nil
	}
	fmt.Printf("Evaluated %d examples (run %s)\n\n", len(examples), c.RunID())
	fmt.Printf("  Accuracy: %.4f\n", acc)
	return nil
}

type classifier interface {
	Classify(ctx context.Context, text string) (intent.Prediction, error)
}

// intentAccuracy is the share of examples whose predicted label matches.
func intentAccuracy(ctx context.Context, c classifier, examples []intent.Example) (float64, error) {
	if len(examples) == 0 {
		return 0, nil
	}
	correct := 0
	for _, ex := range examples {
		pred, err := c.Classify(ctx, ex.Text)
		if err != nil {
			return 0, fmt.Errorf("classify %q: %w", ex.Text, err)
		}
		if pred.Label == ex.Label {
			correct++
		}
	}
	return float64(correct) / float64(len(examples)), nil
}

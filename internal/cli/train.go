package cli

import (
	"context"
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/raphaelgruber/scrumbot/internal/config"
	"github.com/raphaelgruber/scrumbot/internal/service"
	"github.com/raphaelgruber/scrumbot/internal/train"
)

var (
	trainData        string
	trainOut         string
	trainConfigFile  string
	trainEpochs      int
	trainBatchSize   int
	trainLR          float64
	trainMaxLength   int
	trainWorkers     int
	trainSkipInvalid bool
	trainTrack       bool
)

var trainCmd = &cobra.Command{
	Use:   "train",
	Short: "Train the field extractor or the intent classifier",
	Long: `Train a model and write it as an artifact directory.

Subcommands:
  ner     Token classifier for standup fields (JSON dataset of tokens and BIO labels)
  intent  Intent classifier (CSV with text,label columns)

Hyperparameters come from --config (YAML) and can be overridden by flags.
On a terminal a progress bar is shown; Ctrl+C stops the run and keeps the
best checkpoint.

Examples:
  scrumbot train ner --data data/standups.json --out models/ner
  scrumbot train ner --data data/standups.json --config train.yaml --epochs 10
  scrumbot train intent --data data/intents.csv --out models/intent --track`,
}

var trainNERCmd = &cobra.Command{
	Use:   "ner",
	Short: "Train the standup field extractor",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runTrain(cmd, "ner", config.DefaultTraining(), cfg.NERModelDir, runNERTraining)
	},
}

var trainIntentCmd = &cobra.Command{
	Use:   "intent",
	Short: "Train the intent classifier",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runTrain(cmd, "intent", config.IntentTraining(), cfg.IntentModelDir, runIntentTraining)
	},
}

func init() {
	for _, c := range []*cobra.Command{trainNERCmd, trainIntentCmd} {
		c.Flags().StringVarP(&trainData, "data", "d", "", "training dataset (required)")
		c.Flags().StringVarP(&trainOut, "out", "o", "", "artifact output directory (default from config)")
		c.Flags().StringVarP(&trainConfigFile, "config", "c", "", "training config YAML")
		c.Flags().IntVar(&trainEpochs, "epochs", 0, "number of epochs")
		c.Flags().IntVar(&trainBatchSize, "batch-size", 0, "examples per optimizer step")
		c.Flags().Float64Var(&trainLR, "lr", 0, "peak learning rate")
		c.Flags().IntVar(&trainMaxLength, "max-length", 0, "sequence length in subword pieces")
		c.Flags().IntVar(&trainWorkers, "workers", 0, "parallel gradient workers (0 = all CPUs)")
		c.Flags().BoolVar(&trainTrack, "track", false, "record the run in the training_run table")
		_ = c.MarkFlagRequired("data")
	}
	trainNERCmd.Flags().BoolVar(&trainSkipInvalid, "skip-invalid", false, "drop malformed examples instead of failing")

	trainCmd.AddCommand(trainNERCmd)
	trainCmd.AddCommand(trainIntentCmd)
}

type trainRunner func(ctx context.Context, j trainJob) (*train.Result, error)

func runTrain(cmd *cobra.Command, kind string, base config.Training, defaultOut string, run trainRunner) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	settings, err := config.LoadTrainingOver(base, trainConfigFile)
	if err != nil {
		return err
	}
	applyTrainFlags(cmd, &settings)
	if err := settings.Validate(); err != nil {
		return err
	}

	out := trainOut
	if out == "" {
		out = defaultOut
	}

	var tracked *service.Run
	if trainTrack {
		store, err := openDB(ctx)
		if err != nil {
			return err
		}
		tracked, err = service.NewRunTracker(ctx, store).Start(kind, trainData, out, settingsMap(settings))
		if err != nil {
			return fmt.Errorf("track run: %w", err)
		}
	}

	job := trainJob{
		Data:        trainData,
		OutputDir:   out,
		Settings:    settings,
		SkipInvalid: trainSkipInvalid,
		Logger:      logger,
		Metrics:     collector,
	}
	var extra train.Observer
	if tracked != nil {
		job.RunID = tracked.ID
		extra = tracked
	}

	res, err := runTraining(ctx, kind, extra, func(ctx context.Context, obs train.Observer) (*train.Result, error) {
		job.Observer = obs
		return run(ctx, job)
	})
	if tracked != nil {
		tracked.Finish(res, err)
	}
	if err != nil {
		return err
	}
	printTrainResult(res)
	return nil
}

// applyTrainFlags copies explicitly set flags over file settings.
func applyTrainFlags(cmd *cobra.Command, s *config.Training) {
	f := cmd.Flags()
	if f.Changed("epochs") {
		s.Epochs = trainEpochs
	}
	if f.Changed("batch-size") {
		s.BatchSize = trainBatchSize
	}
	if f.Changed("lr") {
		s.LearningRate = trainLR
	}
	if f.Changed("max-length") {
		s.MaxLength = trainMaxLength
	}
	if f.Changed("workers") {
		s.Workers = trainWorkers
	}
}

func settingsMap(s config.Training) map[string]any {
	return map[string]any{
		"epochs":              s.Epochs,
		"batch_size":          s.BatchSize,
		"learning_rate":       s.LearningRate,
		"weight_decay":        s.WeightDecay,
		"eval_strategy":       s.EvalStrategy,
		"max_length":          s.MaxLength,
		"validation_fraction": s.ValidationFraction,
		"seed":                s.Seed,
	}
}

func printTrainResult(res *train.Result) {
	if jsonOut {
		printJSON(res)
		return
	}
	status := "completed"
	if res.Cancelled {
		status = "cancelled"
	}
	fmt.Printf("Run %s %s after %d steps (%d epochs)\n", res.RunID, status, res.Steps, res.Epochs)
	fmt.Printf("  Train loss: %.4f\n", res.TrainLoss)
	if res.Best != nil {
		fmt.Printf("  Best score: %.4f (step %d)\n", res.Best.Score, res.Best.Step)
		keys := make([]string, 0, len(res.Best.Metrics))
		for k := range res.Best.Metrics {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			fmt.Printf("    %-16s %.4f\n", k, res.Best.Metrics[k])
		}
	}
	if res.ArtifactDir != "" {
		fmt.Printf("  Artifact: %s\n", res.ArtifactDir)
	}
}

package db

import (
	"context"
	"fmt"

	"github.com/raphaelgruber/scrumbot/internal/models"
)

// CreateTrainingRun records a started training run.
func (c *Client) CreateTrainingRun(ctx context.Context, id, kind, dataset, outputDir string, cfg map[string]any, totalSteps int) error {
	if cfg == nil {
		cfg = map[string]any{}
	}
	_, err := query[any](ctx, c, `
		CREATE type::record("training_run", $id) SET
			kind = $kind,
			status = "running",
			dataset = $dataset,
			output_dir = $output_dir,
			config = $config,
			total_steps = $total_steps,
			step = 0,
			started_at = time::now()
	`, map[string]any{
		"id":          id,
		"kind":        kind,
		"dataset":     dataset,
		"output_dir":  outputDir,
		"config":      cfg,
		"total_steps": totalSteps,
	})
	if err != nil {
		return fmt.Errorf("create training run: %w", err)
	}
	return nil
}

// UpdateTrainingRunProgress stores the latest step and loss.
func (c *Client) UpdateTrainingRunProgress(ctx context.Context, id string, step, totalSteps int, loss float64) error {
	_, err := query[any](ctx, c, `
		UPDATE type::record("training_run", $id) SET step = $step, total_steps = $total, loss = $loss
	`, map[string]any{"id": id, "step": step, "total": totalSteps, "loss": loss})
	if err != nil {
		return fmt.Errorf("update training run progress: %w", err)
	}
	return nil
}

// CompleteTrainingRun marks a run completed or cancelled with its final
// metrics.
func (c *Client) CompleteTrainingRun(ctx context.Context, id, status string, metrics map[string]float64) error {
	if metrics == nil {
		metrics = map[string]float64{}
	}
	_, err := query[any](ctx, c, `
		UPDATE type::record("training_run", $id) SET
			status = $status,
			metrics = $metrics,
			completed_at = time::now()
	`, map[string]any{"id": id, "status": status, "metrics": metrics})
	if err != nil {
		return fmt.Errorf("complete training run: %w", err)
	}
	return nil
}

// FailTrainingRun marks a run failed.
func (c *Client) FailTrainingRun(ctx context.Context, id, errMsg string) error {
	_, err := query[any](ctx, c, `
		UPDATE type::record("training_run", $id) SET
			status = "failed",
			error = $error,
			completed_at = time::now()
	`, map[string]any{"id": id, "error": errMsg})
	if err != nil {
		return fmt.Errorf("fail training run: %w", err)
	}
	return nil
}

// ListTrainingRuns returns runs newest first. limit <= 0 means no limit.
func (c *Client) ListTrainingRuns(ctx context.Context, limit int) ([]models.TrainingRun, error) {
	sql := `SELECT * FROM training_run ORDER BY started_at DESC`
	vars := map[string]any{}
	if limit > 0 {
		sql += ` LIMIT $limit`
		vars["limit"] = limit
	}
	res, err := query[[]models.TrainingRun](ctx, c, sql, vars)
	if err != nil {
		return nil, fmt.Errorf("list training runs: %w", err)
	}
	return rows(res), nil
}

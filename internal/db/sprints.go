package db

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	surrealmodels "github.com/surrealdb/surrealdb.go/pkg/models"

	"github.com/raphaelgruber/scrumbot/internal/models"
)

// CreateSprint inserts a sprint with zero progress.
func (c *Client) CreateSprint(ctx context.Context, projectID, name, goal string, start, end time.Time) (*models.Sprint, error) {
	res, err := query[[]models.Sprint](ctx, c, `
		CREATE type::record("sprint", $id) SET
			name = $name,
			goal = $goal,
			start_date = $start,
			end_date = $end,
			project = $project,
			progress = 0.0
	`, map[string]any{
		"id":      uuid.New().String(),
		"name":    name,
		"goal":    goal,
		"start":   start,
		"end":     end,
		"project": surrealmodels.NewRecordID("project", projectID),
	})
	if err != nil {
		return nil, fmt.Errorf("create sprint: %w", err)
	}
	out := rows(res)
	if len(out) == 0 {
		return nil, fmt.Errorf("create sprint: no result returned")
	}
	return &out[0], nil
}

// TaskInput describes a task to insert. ParentID marks a subtask.
type TaskInput struct {
	SprintID    string
	ParentID    string
	EmployeeID  string
	Title       string
	Description string
}

// CreateTask inserts an incomplete task.
func (c *Client) CreateTask(ctx context.Context, in TaskInput) (*models.Task, error) {
	vars := map[string]any{
		"id":          uuid.New().String(),
		"title":       in.Title,
		"description": in.Description,
		"sprint":      surrealmodels.NewRecordID("sprint", in.SprintID),
		"parent":      nil,
		"employee":    nil,
	}
	if in.ParentID != "" {
		vars["parent"] = surrealmodels.NewRecordID("task", in.ParentID)
	}
	if in.EmployeeID != "" {
		vars["employee"] = surrealmodels.NewRecordID("employee", in.EmployeeID)
	}
	res, err := query[[]models.Task](ctx, c, `
		CREATE type::record("task", $id) SET
			title = $title,
			description = $description,
			sprint = $sprint,
			parent = $parent,
			employee = $employee,
			status = "incomplete",
			progress = 0.0
	`, vars)
	if err != nil {
		return nil, fmt.Errorf("create task: %w", err)
	}
	out := rows(res)
	if len(out) == 0 {
		return nil, fmt.Errorf("create task: no result returned")
	}
	return &out[0], nil
}

// UpdateTaskStatus sets the status of a task.
func (c *Client) UpdateTaskStatus(ctx context.Context, id, status string) error {
	res, err := query[[]models.Task](ctx, c, `
		UPDATE type::record("task", $id) SET status = $status
	`, map[string]any{"id": id, "status": status})
	if err != nil {
		return fmt.Errorf("update task status: %w", err)
	}
	if len(rows(res)) == 0 {
		return notFound("task", id)
	}
	return nil
}

// GetSprint returns the sprint with the given id or ErrNotFound.
func (c *Client) GetSprint(ctx context.Context, id string) (*models.Sprint, error) {
	res, err := query[[]models.Sprint](ctx, c, `SELECT * FROM type::record("sprint", $id)`, map[string]any{"id": id})
	if err != nil {
		return nil, fmt.Errorf("get sprint: %w", err)
	}
	out := rows(res)
	if len(out) == 0 {
		return nil, notFound("sprint", id)
	}
	return &out[0], nil
}

// ListSprints returns all sprints with their project name, newest first.
func (c *Client) ListSprints(ctx context.Context) ([]models.SprintRow, error) {
	res, err := query[[]models.SprintRow](ctx, c, `
		SELECT id, name, goal, progress, start_date, end_date, created,
			project.name AS project_name
		FROM sprint
		ORDER BY created DESC
	`, nil)
	if err != nil {
		return nil, fmt.Errorf("list sprints: %w", err)
	}
	return rows(res), nil
}

// ListTasksBySprint returns the tasks and subtasks of a sprint.
func (c *Client) ListTasksBySprint(ctx context.Context, sprintID string) ([]models.Task, error) {
	res, err := query[[]models.Task](ctx, c, `
		SELECT * FROM task WHERE sprint = $sprint ORDER BY title
	`, map[string]any{"sprint": surrealmodels.NewRecordID("sprint", sprintID)})
	if err != nil {
		return nil, fmt.Errorf("list sprint tasks: %w", err)
	}
	return rows(res), nil
}

// ListTasksByEmployee returns the tasks assigned to an employee.
func (c *Client) ListTasksByEmployee(ctx context.Context, employeeID string) ([]models.Task, error) {
	res, err := query[[]models.Task](ctx, c, `
		SELECT * FROM task WHERE employee = $employee ORDER BY title
	`, map[string]any{"employee": surrealmodels.NewRecordID("employee", employeeID)})
	if err != nil {
		return nil, fmt.Errorf("list employee tasks: %w", err)
	}
	return rows(res), nil
}

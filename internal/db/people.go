package db

import (
	"context"
	"fmt"
	"math"

	"github.com/google/uuid"
	surrealmodels "github.com/surrealdb/surrealdb.go/pkg/models"

	"github.com/raphaelgruber/scrumbot/internal/models"
)

// CreateScrumMaster inserts a scrum master and returns it.
func (c *Client) CreateScrumMaster(ctx context.Context, name string, email *string) (*models.ScrumMaster, error) {
	res, err := query[[]models.ScrumMaster](ctx, c, `
		CREATE type::record("scrum_master", $id) SET name = $name, email = $email
	`, map[string]any{"id": uuid.New().String(), "name": name, "email": email})
	if err != nil {
		return nil, fmt.Errorf("create scrum master: %w", err)
	}
	out := rows(res)
	if len(out) == 0 {
		return nil, fmt.Errorf("create scrum master: no result returned")
	}
	return &out[0], nil
}

// CreateProject inserts a project keyed by the slug of its name.
// scrumMasterID may be empty.
func (c *Client) CreateProject(ctx context.Context, name string, description *string, scrumMasterID string) (*models.Project, error) {
	id := models.Slugify(name)
	if id == "" {
		return nil, fmt.Errorf("create project: name %q has no usable characters", name)
	}
	vars := map[string]any{"id": id, "name": name, "description": description, "sm": nil}
	if scrumMasterID != "" {
		vars["sm"] = surrealmodels.NewRecordID("scrum_master", scrumMasterID)
	}
	res, err := query[[]models.Project](ctx, c, `
		CREATE type::record("project", $id) SET
			name = $name,
			description = $description,
			scrum_master = $sm
	`, vars)
	if err != nil {
		return nil, fmt.Errorf("create project: %w", err)
	}
	out := rows(res)
	if len(out) == 0 {
		return nil, fmt.Errorf("create project: no result returned")
	}
	return &out[0], nil
}

// GetProject returns the project with the given key or ErrNotFound.
func (c *Client) GetProject(ctx context.Context, id string) (*models.Project, error) {
	res, err := query[[]models.Project](ctx, c, `SELECT * FROM type::record("project", $id)`, map[string]any{"id": id})
	if err != nil {
		return nil, fmt.Errorf("get project: %w", err)
	}
	out := rows(res)
	if len(out) == 0 {
		return nil, notFound("project", id)
	}
	return &out[0], nil
}

// CreateEmployee inserts an employee. projectID may be empty.
func (c *Client) CreateEmployee(ctx context.Context, name, role, projectID string) (*models.Employee, error) {
	vars := map[string]any{"id": uuid.New().String(), "name": name, "role": role, "project": nil}
	if projectID != "" {
		vars["project"] = surrealmodels.NewRecordID("project", projectID)
	}
	res, err := query[[]models.Employee](ctx, c, `
		CREATE type::record("employee", $id) SET name = $name, role = $role, project = $project
	`, vars)
	if err != nil {
		return nil, fmt.Errorf("create employee: %w", err)
	}
	out := rows(res)
	if len(out) == 0 {
		return nil, fmt.Errorf("create employee: no result returned")
	}
	return &out[0], nil
}

// GetEmployee returns the employee with the given id or ErrNotFound.
func (c *Client) GetEmployee(ctx context.Context, id string) (*models.Employee, error) {
	res, err := query[[]models.Employee](ctx, c, `SELECT * FROM type::record("employee", $id)`, map[string]any{"id": id})
	if err != nil {
		return nil, fmt.Errorf("get employee: %w", err)
	}
	out := rows(res)
	if len(out) == 0 {
		return nil, notFound("employee", id)
	}
	return &out[0], nil
}

// ListEmployees returns every employee with its project name and completed
// and total task counts.
func (c *Client) ListEmployees(ctx context.Context) ([]models.EmployeeRow, error) {
	res, err := query[[]models.EmployeeRow](ctx, c, `
		SELECT id, name, role, project.name AS project_name,
			array::len((SELECT id FROM task WHERE employee = $parent.id AND status IN ["complete", "completed"])) AS completed_tasks,
			array::len((SELECT id FROM task WHERE employee = $parent.id)) AS total_tasks
		FROM employee
		ORDER BY name
	`, nil)
	if err != nil {
		return nil, fmt.Errorf("list employees: %w", err)
	}
	return rows(res), nil
}

type projectWithSprints struct {
	models.ProjectRow
	Progresses []float64 `json:"progresses"`
}

// ListProjects returns every project with its scrum master, sprint count,
// average sprint progress and team member names.
func (c *Client) ListProjects(ctx context.Context) ([]models.ProjectRow, error) {
	res, err := query[[]projectWithSprints](ctx, c, `
		SELECT id, name, scrum_master.name AS scrum_master,
			(SELECT VALUE progress FROM sprint WHERE project = $parent.id) AS progresses,
			(SELECT VALUE name FROM employee WHERE project = $parent.id) AS team
		FROM project
		ORDER BY name
	`, nil)
	if err != nil {
		return nil, fmt.Errorf("list projects: %w", err)
	}
	raw := rows(res)
	out := make([]models.ProjectRow, len(raw))
	for i, p := range raw {
		row := p.ProjectRow
		row.SprintCount = len(p.Progresses)
		row.AvgProgress = meanProgress(p.Progresses)
		if row.Team == nil {
			row.Team = []string{}
		}
		out[i] = row
	}
	return out, nil
}

// meanProgress averages sprint progress rounded to two decimals; nil when
// the project has no sprints.
func meanProgress(p []float64) *float64 {
	if len(p) == 0 {
		return nil
	}
	var sum float64
	for _, v := range p {
		sum += v
	}
	avg := math.Round(sum/float64(len(p))*100) / 100
	return &avg
}

package db

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	surrealmodels "github.com/surrealdb/surrealdb.go/pkg/models"

	"github.com/raphaelgruber/scrumbot/internal/models"
)

// CreateReport stores a generated report.
func (c *Client) CreateReport(ctx context.Context, projectID, kind, subject, content string, date time.Time) (*models.Report, error) {
	res, err := query[[]models.Report](ctx, c, `
		CREATE type::record("report", $id) SET
			kind = $kind,
			subject = $subject,
			date = $date,
			content = $content,
			project = $project
	`, map[string]any{
		"id":      uuid.New().String(),
		"kind":    kind,
		"subject": subject,
		"date":    date,
		"content": content,
		"project": surrealmodels.NewRecordID("project", projectID),
	})
	if err != nil {
		return nil, fmt.Errorf("create report: %w", err)
	}
	out := rows(res)
	if len(out) == 0 {
		return nil, fmt.Errorf("create report: no result returned")
	}
	return &out[0], nil
}

// ListReports returns all reports with their project name, newest first.
func (c *Client) ListReports(ctx context.Context) ([]models.ReportRow, error) {
	res, err := query[[]models.ReportRow](ctx, c, `
		SELECT id, kind, date, content, project.name AS project_name
		FROM report
		ORDER BY date DESC
	`, nil)
	if err != nil {
		return nil, fmt.Errorf("list reports: %w", err)
	}
	return rows(res), nil
}

// StandupInput describes a standup to insert.
type StandupInput struct {
	EmployeeID string
	Date       time.Time
	Text       string
	Intent     string
	Yesterday  *string
	Today      *string
	Blockers   *string
	Report     *string
	DateText   *string
}

// CreateStandup stores a logged standup.
func (c *Client) CreateStandup(ctx context.Context, in StandupInput) (*models.Standup, error) {
	res, err := query[[]models.Standup](ctx, c, `
		CREATE type::record("standup", $id) SET
			employee = $employee,
			date = $date,
			text = $text,
			intent = $intent,
			yesterday = $yesterday,
			today = $today,
			blockers = $blockers,
			report = $report,
			date_text = $date_text
	`, map[string]any{
		"id":        uuid.New().String(),
		"employee":  surrealmodels.NewRecordID("employee", in.EmployeeID),
		"date":      in.Date,
		"text":      in.Text,
		"intent":    in.Intent,
		"yesterday": in.Yesterday,
		"today":     in.Today,
		"blockers":  in.Blockers,
		"report":    in.Report,
		"date_text": in.DateText,
	})
	if err != nil {
		return nil, fmt.Errorf("create standup: %w", err)
	}
	out := rows(res)
	if len(out) == 0 {
		return nil, fmt.Errorf("create standup: no result returned")
	}
	return &out[0], nil
}

// GetStandup returns the standup with the given id or ErrNotFound.
func (c *Client) GetStandup(ctx context.Context, id string) (*models.Standup, error) {
	res, err := query[[]models.Standup](ctx, c, `SELECT * FROM type::record("standup", $id)`, map[string]any{"id": id})
	if err != nil {
		return nil, fmt.Errorf("get standup: %w", err)
	}
	out := rows(res)
	if len(out) == 0 {
		return nil, notFound("standup", id)
	}
	return &out[0], nil
}

// ListStandups returns standups newest first, optionally for one employee.
// limit <= 0 means no limit.
func (c *Client) ListStandups(ctx context.Context, employeeID string, limit int) ([]models.Standup, error) {
	where := ""
	vars := map[string]any{}
	if employeeID != "" {
		where = "WHERE employee = $employee"
		vars["employee"] = surrealmodels.NewRecordID("employee", employeeID)
	}
	limitClause := ""
	if limit > 0 {
		limitClause = "LIMIT $limit"
		vars["limit"] = limit
	}
	sql := fmt.Sprintf(`SELECT * FROM standup %s ORDER BY date DESC, created DESC %s`, where, limitClause)

	res, err := query[[]models.Standup](ctx, c, sql, vars)
	if err != nil {
		return nil, fmt.Errorf("list standups: %w", err)
	}
	return rows(res), nil
}

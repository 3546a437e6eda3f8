package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/raphaelgruber/scrumbot/internal/db"
	"github.com/raphaelgruber/scrumbot/internal/models"
)

// Report types.
const (
	ReportSprint   = "sprint"
	ReportStandup  = "standup"
	ReportEmployee = "employee"
)

// ReportWriter writes a plain text report from JSON rows.
type ReportWriter interface {
	WriteReport(ctx context.Context, kind, data string) (string, error)
}

// ReportStore loads report subjects and stores reports.
type ReportStore interface {
	GetSprint(ctx context.Context, id string) (*models.Sprint, error)
	GetStandup(ctx context.Context, id string) (*models.Standup, error)
	GetEmployee(ctx context.Context, id string) (*models.Employee, error)
	ListTasksByEmployee(ctx context.Context, employeeID string) ([]models.Task, error)
	CreateReport(ctx context.Context, projectID, kind, subject, content string, date time.Time) (*models.Report, error)
}

// ReportService generates and stores reports.
type ReportService struct {
	store          ReportStore
	writer         ReportWriter
	defaultProject string
	now            func() time.Time
}

// NewReportService creates a report service. defaultProject is used when the
// subject has no project.
func NewReportService(store ReportStore, writer ReportWriter, defaultProject string) *ReportService {
	return &ReportService{store: store, writer: writer, defaultProject: defaultProject, now: time.Now}
}

// Generate writes a report for the sprint, standup or employee with the
// given id and returns its text.
func (s *ReportService) Generate(ctx context.Context, kind, id string) (string, error) {
	kind = strings.ToLower(strings.TrimSpace(kind))
	if kind != ReportSprint && kind != ReportStandup && kind != ReportEmployee {
		return "", fmt.Errorf("%w: %q", ErrInvalidReportType, kind)
	}
	if id == "" {
		return "", fmt.Errorf("%w: id is required", ErrInvalidInput)
	}

	data, projectID, err := s.load(ctx, kind, id)
	if err != nil {
		return "", err
	}
	if projectID == "" {
		projectID = s.defaultProject
	}
	if projectID == "" {
		return "", fmt.Errorf("generate report: %w", ErrNoProject)
	}

	payload, err := json.Marshal(data)
	if err != nil {
		return "", fmt.Errorf("encode report data: %w", err)
	}

	text, err := s.writer.WriteReport(ctx, kind, string(payload))
	if err != nil {
		return "", fmt.Errorf("write report: %w", err)
	}
	text = strings.TrimSpace(text)

	if _, err := s.store.CreateReport(ctx, projectID, kind, id, text, today(s.now)); err != nil {
		return "", err
	}
	slog.Info("report generated", "kind", kind, "id", id, "project", projectID)
	return text, nil
}

// load returns the rows to report on and the project they belong to.
func (s *ReportService) load(ctx context.Context, kind, id string) (any, string, error) {
	switch kind {
	case ReportSprint:
		sprint, err := s.store.GetSprint(ctx, id)
		if err != nil {
			return nil, "", err
		}
		return []models.Sprint{*sprint}, models.MustRecordIDString(sprint.Project), nil

	case ReportStandup:
		standup, err := s.store.GetStandup(ctx, id)
		if err != nil {
			return nil, "", err
		}
		projectID := s.employeeProject(ctx, models.MustRecordIDString(standup.Employee))
		return []models.Standup{*standup}, projectID, nil

	default:
		tasks, err := s.store.ListTasksByEmployee(ctx, id)
		if err != nil {
			return nil, "", err
		}
		if len(tasks) == 0 {
			return nil, "", fmt.Errorf("tasks of employee %s: %w", id, db.ErrNotFound)
		}
		return tasks, s.employeeProject(ctx, id), nil
	}
}

func (s *ReportService) employeeProject(ctx context.Context, employeeID string) string {
	emp, err := s.store.GetEmployee(ctx, employeeID)
	if err != nil {
		if !errors.Is(err, db.ErrNotFound) {
			slog.Warn("failed to load employee project", "employee", employeeID, "error", err)
		}
		return ""
	}
	return models.OptionalIDString(emp.Project)
}

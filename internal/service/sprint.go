package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/raphaelgruber/scrumbot/internal/db"
	"github.com/raphaelgruber/scrumbot/internal/models"
)

// Planner turns a project description into a sprint plan as JSON text.
type Planner interface {
	PlanSprint(ctx context.Context, projectName, projectDescription string) (string, error)
}

// SprintStore persists sprints and tasks.
type SprintStore interface {
	CreateSprint(ctx context.Context, projectID, name, goal string, start, end time.Time) (*models.Sprint, error)
	CreateTask(ctx context.Context, in db.TaskInput) (*models.Task, error)
}

// SprintService generates and stores sprint plans.
type SprintService struct {
	store          SprintStore
	planner        Planner
	defaultProject string
	now            func() time.Time
}

// NewSprintService creates a sprint service. defaultProject is used when a
// request names no project.
func NewSprintService(store SprintStore, planner Planner, defaultProject string) *SprintService {
	return &SprintService{store: store, planner: planner, defaultProject: defaultProject, now: time.Now}
}

// SprintResult is a stored sprint with the plan it came from.
type SprintResult struct {
	Sprint *models.Sprint    `json:"sprint"`
	Plan   models.SprintPlan `json:"plan"`
	Tasks  []models.Task     `json:"tasks"`
}

// Generate asks the planner for a sprint and stores it with its tasks and
// subtasks.
func (s *SprintService) Generate(ctx context.Context, projectID, name, description string) (*SprintResult, error) {
	name = strings.TrimSpace(name)
	description = strings.TrimSpace(description)
	if name == "" || description == "" {
		return nil, fmt.Errorf("%w: project name and description are required", ErrInvalidInput)
	}
	if projectID == "" {
		projectID = s.defaultProject
	}
	if projectID == "" {
		return nil, fmt.Errorf("generate sprint: %w", ErrNoProject)
	}

	raw, err := s.planner.PlanSprint(ctx, name, description)
	if err != nil {
		return nil, fmt.Errorf("plan sprint: %w", err)
	}
	plan, err := ParseSprintPlan(raw)
	if err != nil {
		return nil, err
	}

	day := today(s.now)
	sprint, err := s.store.CreateSprint(ctx, projectID, plan.SprintName, plan.Goal, day, day)
	if err != nil {
		return nil, err
	}
	sprintID := models.MustRecordIDString(sprint.ID)

	var tasks []models.Task
	for _, pt := range plan.Tasks {
		task, err := s.store.CreateTask(ctx, db.TaskInput{
			SprintID:    sprintID,
			Title:       pt.Title,
			Description: pt.Description,
		})
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, *task)
		parentID := models.MustRecordIDString(task.ID)

		for _, sub := range pt.Subtasks {
			st, err := s.store.CreateTask(ctx, db.TaskInput{
				SprintID:    sprintID,
				ParentID:    parentID,
				Title:       sub.Title,
				Description: sub.Description,
			})
			if err != nil {
				return nil, err
			}
			tasks = append(tasks, *st)
		}
	}

	slog.Info("sprint generated", "sprint_id", sprintID, "project", projectID, "tasks", len(tasks))
	return &SprintResult{Sprint: sprint, Plan: plan, Tasks: tasks}, nil
}

var fencedJSON = regexp.MustCompile("(?s)```(?:json)?\\s*(\\{.*?\\})\\s*```")

// ExtractJSON returns the object inside a fenced code block, or the trimmed
// text when there is none.
func ExtractJSON(text string) string {
	if m := fencedJSON.FindStringSubmatch(text); m != nil {
		return m[1]
	}
	return strings.TrimSpace(text)
}

// ParseSprintPlan decodes planner output.
func ParseSprintPlan(raw string) (models.SprintPlan, error) {
	var plan models.SprintPlan
	if err := json.Unmarshal([]byte(ExtractJSON(raw)), &plan); err != nil {
		return plan, fmt.Errorf("parse sprint plan: %w", err)
	}
	if strings.TrimSpace(plan.SprintName) == "" {
		return plan, fmt.Errorf("parse sprint plan: %w: sprint_name is empty", ErrInvalidInput)
	}
	return plan, nil
}

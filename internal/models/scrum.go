package models

import (
	"time"

	surrealmodels "github.com/surrealdb/surrealdb.go/pkg/models"
)

// Task statuses.
const (
	TaskIncomplete = "incomplete"
	TaskComplete   = "complete"
	TaskCompleted  = "completed"
)

// IsDone reports whether status counts as a completed task.
func IsDone(status string) bool {
	return status == TaskComplete || status == TaskCompleted
}

// ScrumMaster leads one or more projects.
type ScrumMaster struct {
	ID    surrealmodels.RecordID `json:"id"`
	Name  string                 `json:"name"`
	Email *string                `json:"email,omitempty"`
}

// Project groups sprints and employees.
type Project struct {
	ID          surrealmodels.RecordID  `json:"id"`
	Name        string                  `json:"name"`
	Description *string                 `json:"description,omitempty"`
	ScrumMaster *surrealmodels.RecordID `json:"scrum_master,omitempty"`
	Created     time.Time               `json:"created"`
}

// Employee is a team member assigned to a project.
type Employee struct {
	ID      surrealmodels.RecordID  `json:"id"`
	Name    string                  `json:"name"`
	Role    string                  `json:"role"`
	Project *surrealmodels.RecordID `json:"project,omitempty"`
}

// Sprint is one iteration of a project.
type Sprint struct {
	ID        surrealmodels.RecordID `json:"id"`
	Name      string                 `json:"name"`
	Goal      string                 `json:"goal"`
	StartDate time.Time              `json:"start_date"`
	EndDate   time.Time              `json:"end_date"`
	Project   surrealmodels.RecordID `json:"project"`
	Progress  float64                `json:"progress"`
	Created   time.Time              `json:"created"`
}

// Task is a unit of sprint work. Subtasks point to their task via Parent.
type Task struct {
	ID          surrealmodels.RecordID  `json:"id"`
	Title       string                  `json:"title"`
	Description string                  `json:"description"`
	Sprint      surrealmodels.RecordID  `json:"sprint"`
	Parent      *surrealmodels.RecordID `json:"parent,omitempty"`
	Employee    *surrealmodels.RecordID `json:"employee,omitempty"`
	Status      string                  `json:"status"`
	Progress    float64                 `json:"progress"`
}

// Report is a generated plain text report.
type Report struct {
	ID      surrealmodels.RecordID `json:"id"`
	Kind    string                 `json:"kind"`
	Subject string                 `json:"subject"`
	Date    time.Time              `json:"date"`
	Content string                 `json:"content"`
	Project surrealmodels.RecordID `json:"project"`
}

// Standup is one logged standup update with its extracted fields.
type Standup struct {
	ID        surrealmodels.RecordID `json:"id"`
	Employee  surrealmodels.RecordID `json:"employee"`
	Date      time.Time              `json:"date"`
	Text      string                 `json:"text"`
	Intent    string                 `json:"intent"`
	Yesterday *string                `json:"yesterday,omitempty"`
	Today     *string                `json:"today,omitempty"`
	Blockers  *string                `json:"blockers,omitempty"`
	Report    *string                `json:"report,omitempty"`
	DateText  *string                `json:"date_text,omitempty"`
	Created   time.Time              `json:"created"`
}

// SprintPlan is the JSON plan returned by the sprint planner.
type SprintPlan struct {
	SprintID   int        `json:"sprint_id"`
	SprintName string     `json:"sprint_name"`
	Goal       string     `json:"goal"`
	Tasks      []PlanTask `json:"tasks"`
}

// PlanTask is a planned task.
type PlanTask struct {
	TaskID      int           `json:"task_id"`
	Title       string        `json:"title"`
	Description string        `json:"description"`
	Subtasks    []PlanSubtask `json:"subtasks"`
}

// PlanSubtask is a planned subtask.
type PlanSubtask struct {
	SubtaskID   int    `json:"subtask_id"`
	Title       string `json:"title"`
	Description string `json:"description"`
}

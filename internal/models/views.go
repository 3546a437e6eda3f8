package models

import (
	"time"

	surrealmodels "github.com/surrealdb/surrealdb.go/pkg/models"
)

// SprintRow is a sprint listed with its project name.
type SprintRow struct {
	ID          surrealmodels.RecordID `json:"id"`
	Name        string                 `json:"name"`
	Goal        string                 `json:"goal"`
	Progress    float64                `json:"progress"`
	ProjectName *string                `json:"project_name"`
	StartDate   time.Time              `json:"start_date"`
	EndDate     time.Time              `json:"end_date"`
}

// ReportRow is a report listed with its project name.
type ReportRow struct {
	ID          surrealmodels.RecordID `json:"id"`
	Kind        string                 `json:"kind"`
	Date        time.Time              `json:"date"`
	Content     string                 `json:"content"`
	ProjectName *string                `json:"project_name"`
}

// EmployeeRow is an employee with task counts.
type EmployeeRow struct {
	ID             surrealmodels.RecordID `json:"id"`
	Name           string                 `json:"name"`
	Role           string                 `json:"role"`
	ProjectName    *string                `json:"project_name"`
	CompletedTasks int                    `json:"completed_tasks"`
	TotalTasks     int                    `json:"total_tasks"`
}

// ProjectRow is a project dashboard line.
type ProjectRow struct {
	ID          surrealmodels.RecordID `json:"id"`
	Name        string                 `json:"name"`
	ScrumMaster *string                `json:"scrum_master"`
	SprintCount int                    `json:"sprint_count"`
	AvgProgress *float64               `json:"avg_progress"`
	Team        []string               `json:"team"`
}

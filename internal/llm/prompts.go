package llm

import (
	"context"
	"fmt"
)

const sprintFormat = `Expected JSON:
{
  "sprint_id": 1,
  "sprint_name": "Sprint Name",
  "goal": "Sprint Goal",
  "tasks": [
    {
      "task_id": 1,
      "title": "Task Title",
      "description": "Task Description",
      "subtasks": [
        {"subtask_id": 101, "title": "Subtask Title", "description": "Subtask Description"}
      ]
    }
  ]
}`

// SprintPrompt builds the planner prompt for a project.
func SprintPrompt(projectName, projectDescription string) (system, user string) {
	system = `You are an expert Agile Project Planner AI.
Rules:
1. Maintain JSON hierarchy: Sprint, then Tasks, then Subtasks.
2. Generate unique task_id and subtask_id values.
3. Output only the JSON object, no markdown.`

	user = fmt.Sprintf(`Generate a sprint plan for the following project:

Project: %s
Description: %s

%s`, projectName, projectDescription, sprintFormat)
	return system, user
}

// ReportPrompt builds the report prompt for JSON encoded rows of one kind
// (sprint, standup or employee).
func ReportPrompt(kind, data string) (system, user string) {
	system = `You are an AI report generator.
Rules:
1. Include Title, Summary, Observations, and Recommendations.
2. Use a professional, factual tone.
3. Output plain text only (no markdown).`

	user = fmt.Sprintf(`Generate a professional report for %s data below:

%s`, kind, data)
	return system, user
}

// PlanSprint asks the model for a sprint plan as JSON text.
func (m *Model) PlanSprint(ctx context.Context, projectName, projectDescription string) (string, error) {
	system, user := SprintPrompt(projectName, projectDescription)
	return m.GenerateWithSystem(ctx, system, user)
}

// WriteReport asks the model for a plain text report.
func (m *Model) WriteReport(ctx context.Context, kind, data string) (string, error) {
	system, user := ReportPrompt(kind, data)
	return m.GenerateWithSystem(ctx, system, user)
}

package tools

import (
	"context"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/raphaelgruber/scrumbot/internal/service"
)

// StandupInput defines the input schema for the process_standup tool.
type StandupInput struct {
	Text       string `json:"text" jsonschema:"required,The standup message"`
	EmployeeID string `json:"employee_id,omitempty" jsonschema:"Employee the standup belongs to, required with confirm"`
	Confirm    bool   `json:"confirm,omitempty" jsonschema:"Save a recognized standup update"`
}

// NewStandupHandler creates the process_standup tool handler.
func NewStandupHandler(deps *Dependencies) mcp.ToolHandlerFor[StandupInput, any] {
	return func(ctx context.Context, req *mcp.CallToolRequest, input StandupInput) (*mcp.CallToolResult, any, error) {
		if deps == nil || deps.Standups == nil {
			return notConfigured("Standup pipeline"), nil, nil
		}

		res, err := deps.Standups.Process(ctx, service.StandupInput{
			Text:       input.Text,
			EmployeeID: input.EmployeeID,
			Confirm:    input.Confirm,
		})
		if err != nil {
			deps.logger().Error("process standup failed", "error", err)
			return serviceError("Process standup", err), nil, nil
		}
		deps.logger().Info("process_standup completed", "intent", res.Intent, "saved", res.Standup != nil)
		return JSONResult(res), nil, nil
	}
}

// SprintInput defines the input schema for the generate_sprint tool.
type SprintInput struct {
	Project     string `json:"project,omitempty" jsonschema:"Project id, defaults to the configured project"`
	Name        string `json:"name" jsonschema:"required,Sprint or project name given to the planner"`
	Description string `json:"description" jsonschema:"required,What the sprint should achieve"`
}

// NewSprintHandler creates the generate_sprint tool handler.
func NewSprintHandler(deps *Dependencies) mcp.ToolHandlerFor[SprintInput, any] {
	return func(ctx context.Context, req *mcp.CallToolRequest, input SprintInput) (*mcp.CallToolResult, any, error) {
		if deps == nil || deps.Sprints == nil {
			return notConfigured("Sprint planner"), nil, nil
		}

		res, err := deps.Sprints.Generate(ctx, input.Project, input.Name, input.Description)
		if err != nil {
			deps.logger().Error("generate sprint failed", "error", err)
			return serviceError("Generate sprint", err), nil, nil
		}
		deps.logger().Info("generate_sprint completed", "sprint", res.Sprint.ID.ID, "tasks", len(res.Tasks))
		return JSONResult(res), nil, nil
	}
}

// ReportInput defines the input schema for the generate_report tool.
type ReportInput struct {
	Type string `json:"type" jsonschema:"required,Report type: sprint, standup or employee"`
	ID   string `json:"id" jsonschema:"required,Id of the sprint, standup or employee"`
}

// NewReportHandler creates the generate_report tool handler.
func NewReportHandler(deps *Dependencies) mcp.ToolHandlerFor[ReportInput, any] {
	return func(ctx context.Context, req *mcp.CallToolRequest, input ReportInput) (*mcp.CallToolResult, any, error) {
		if deps == nil || deps.Reports == nil {
			return notConfigured("Report writer"), nil, nil
		}

		text, err := deps.Reports.Generate(ctx, input.Type, input.ID)
		if err != nil {
			deps.logger().Error("generate report failed", "error", err)
			return serviceError("Generate report", err), nil, nil
		}
		return TextResult(text), nil, nil
	}
}

// ListSprintsInput defines the input schema for the list_sprints tool.
type ListSprintsInput struct {
	Limit int `json:"limit,omitempty" jsonschema:"Max results 1-100, default 20"`
}

// NewListSprintsHandler creates the list_sprints tool handler.
func NewListSprintsHandler(deps *Dependencies) mcp.ToolHandlerFor[ListSprintsInput, any] {
	return func(ctx context.Context, req *mcp.CallToolRequest, input ListSprintsInput) (*mcp.CallToolResult, any, error) {
		if deps == nil || deps.Store == nil {
			return notConfigured("Database"), nil, nil
		}

		limit := input.Limit
		if limit <= 0 {
			limit = 20
		}
		if limit > 100 {
			return ErrorResult("Limit must be 1-100", "Reduce limit value"), nil, nil
		}

		sprints, err := deps.Store.ListSprints(ctx)
		if err != nil {
			deps.logger().Error("list sprints failed", "error", err)
			return serviceError("List sprints", err), nil, nil
		}
		if len(sprints) > limit {
			sprints = sprints[:limit]
		}
		return JSONResult(map[string]any{"sprints": sprints, "count": len(sprints)}), nil, nil
	}
}

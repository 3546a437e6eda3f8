package tools

import (
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// RegisterAll registers all tools with the MCP server.
// This is called from main after server creation but before Run().
func RegisterAll(server *mcp.Server, deps *Dependencies) {
	mcp.AddTool(server, &mcp.Tool{
		Name:        "ping",
		Description: "Liveness check: returns pong, the echo text, or the configured components when status is set",
	}, NewPingHandler(deps))

	mcp.AddTool(server, &mcp.Tool{
		Name:        "extract_fields",
		Description: "Extract yesterday, today, blockers, report and date fields from standup messages",
	}, NewExtractHandler(deps))

	mcp.AddTool(server, &mcp.Tool{
		Name:        "classify_intent",
		Description: "Classify a message as log_update, query_update, update_entry or unknown",
	}, NewClassifyHandler(deps))

	// Writes only when confirm is set and the intent is log_update
	mcp.AddTool(server, &mcp.Tool{
		Name:        "process_standup",
		Description: "Classify a standup message, extract its fields and optionally save it for an employee",
	}, NewStandupHandler(deps))

	mcp.AddTool(server, &mcp.Tool{
		Name:        "generate_sprint",
		Description: "Plan a sprint with tasks and subtasks using the LLM and store it",
	}, NewSprintHandler(deps))

	mcp.AddTool(server, &mcp.Tool{
		Name:        "generate_report",
		Description: "Write a plain text report for a sprint, standup or employee and store it",
	}, NewReportHandler(deps))

	mcp.AddTool(server, &mcp.Tool{
		Name:        "list_sprints",
		Description: "List stored sprints with project name and progress, newest first",
	}, NewListSprintsHandler(deps))
}

// ToolCount is the number of tools RegisterAll adds.
const ToolCount = 7

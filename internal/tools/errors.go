package tools

import (
	"encoding/json"
	"errors"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/raphaelgruber/scrumbot/internal/artifact"
	"github.com/raphaelgruber/scrumbot/internal/db"
	"github.com/raphaelgruber/scrumbot/internal/service"
)

// ErrorResult creates a tool error result with optional recovery hint.
// If hint is non-empty, formats as "{msg}. {hint}".
// Returns IsError=true so LLM can see the error and self-correct.
func ErrorResult(msg, hint string) *mcp.CallToolResult {
	text := msg
	if hint != "" {
		text = msg + ". " + hint
	}
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: text},
		},
		IsError: true,
	}
}

// TextResult creates a success result with text content.
func TextResult(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: text},
		},
	}
}

// JSONResult creates a success result with v as indented JSON.
func JSONResult(v any) *mcp.CallToolResult {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return ErrorResult("Failed to encode result", err.Error())
	}
	return TextResult(string(b))
}

// serviceError maps a service or store error to a tool result the caller
// can act on.
func serviceError(op string, err error) *mcp.CallToolResult {
	var loadErr *artifact.LoadError
	switch {
	case errors.Is(err, service.ErrInvalidReportType):
		return ErrorResult(err.Error(), "Use one of: sprint, standup, employee")
	case errors.Is(err, service.ErrInvalidInput):
		return ErrorResult(err.Error(), "Check the required arguments")
	case errors.Is(err, service.ErrNoProject):
		return ErrorResult(err.Error(), "Pass a project id or set SCRUMBOT_DEFAULT_PROJECT")
	case errors.Is(err, db.ErrNotFound):
		return ErrorResult(err.Error(), "Check the id")
	case errors.As(err, &loadErr):
		return ErrorResult(op+" failed: "+err.Error(), "Train the model or fix the artifact directory")
	default:
		return ErrorResult(op+" failed: "+err.Error(), "Database or model may be unavailable")
	}
}

func notConfigured(what string) *mcp.CallToolResult {
	return ErrorResult(what+" is not configured", "Check the server startup log")
}

package tools

import (
	"context"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// PingInput is the input of the ping tool.
type PingInput struct {
	Echo   string `json:"echo,omitempty" jsonschema:"Text to return instead of pong"`
	Status bool   `json:"status,omitempty" jsonschema:"Report which components are configured"`
}

// PingStatus reports which tool dependencies the server started with.
type PingStatus struct {
	Extractor  bool `json:"extractor"`
	Classifier bool `json:"classifier"`
	Standups   bool `json:"standups"`
	Sprints    bool `json:"sprints"`
	Reports    bool `json:"reports"`
	Store      bool `json:"store"`
}

// NewPingHandler answers liveness checks.
func NewPingHandler(deps *Dependencies) mcp.ToolHandlerFor[PingInput, any] {
	return func(ctx context.Context, req *mcp.CallToolRequest, input PingInput) (*mcp.CallToolResult, any, error) {
		switch {
		case input.Status:
			return JSONResult(PingStatus{
				Extractor:  deps.Extractor != nil,
				Classifier: deps.Classifier != nil,
				Standups:   deps.Standups != nil,
				Sprints:    deps.Sprints != nil,
				Reports:    deps.Reports != nil,
				Store:      deps.Store != nil,
			}), nil, nil
		case input.Echo != "":
			return TextResult(input.Echo), nil, nil
		}
		return TextResult("pong"), nil, nil
	}
}

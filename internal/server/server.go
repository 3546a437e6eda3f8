// Package server hosts the scrumbot tools over the Model Context Protocol.
package server

import (
	"context"
	"log/slog"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/raphaelgruber/scrumbot/internal/metrics"
)

const instructions = `Scrumbot turns free-text standup messages into structured updates.
Use process_standup for a whole message, extract_fields or classify_intent
for single steps, and generate_sprint or generate_report for planning output.`

// Server owns the MCP server and its request middleware.
type Server struct {
	mcp     *mcp.Server
	logger  *slog.Logger
	metrics *metrics.Collector
}

// New creates the server. mc may be nil.
func New(version string, logger *slog.Logger, mc *metrics.Collector) *Server {
	impl := &mcp.Implementation{Name: "scrumbot", Version: version}
	return &Server{
		mcp:     mcp.NewServer(impl, &mcp.ServerOptions{Instructions: instructions}),
		logger:  logger,
		metrics: mc,
	}
}

// MCPServer returns the underlying MCP server for tool registration.
func (s *Server) MCPServer() *mcp.Server {
	return s.mcp
}

// Setup installs the request logging middleware.
func (s *Server) Setup() {
	s.mcp.AddReceivingMiddleware(LoggingMiddleware(s.logger, s.metrics))
}

// Run serves over stdio until the client disconnects or ctx is done.
func (s *Server) Run(ctx context.Context) error {
	return s.Serve(ctx, &mcp.StdioTransport{})
}

// Serve serves a single session over t.
func (s *Server) Serve(ctx context.Context, t mcp.Transport) error {
	s.logger.Info("serving MCP session", "transport", transportName(t))
	return s.mcp.Run(ctx, t)
}

func transportName(t mcp.Transport) string {
	switch t.(type) {
	case *mcp.StdioTransport:
		return "stdio"
	case *mcp.InMemoryTransport:
		return "in-memory"
	default:
		return "custom"
	}
}

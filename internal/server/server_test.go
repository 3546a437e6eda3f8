package server_test

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/raphaelgruber/scrumbot/internal/metrics"
	"github.com/raphaelgruber/scrumbot/internal/server"
	"github.com/raphaelgruber/scrumbot/internal/tools"
)

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

// start serves srv over an in-memory transport and returns a connected
// client session. The server stops when the test ends.
func start(t *testing.T, srv *server.Server) (*mcp.ClientSession, <-chan error) {
	t.Helper()
	srv.Setup()
	serverTransport, clientTransport := mcp.NewInMemoryTransports()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)
	done := make(chan error, 1)
	go func() { done <- srv.Serve(ctx, serverTransport) }()

	client := mcp.NewClient(&mcp.Implementation{Name: "standup-client", Version: "1.0.0"}, nil)
	session, err := client.Connect(ctx, clientTransport, nil)
	require.NoError(t, err)
	return session, done
}

func TestServeHandshake(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	session, done := start(t, server.New("0.1.0-test", logger, nil))

	handshake := session.InitializeResult()
	require.NotNil(t, handshake)
	assert.Equal(t, "scrumbot", handshake.ServerInfo.Name)
	assert.Equal(t, "0.1.0-test", handshake.ServerInfo.Version)
	assert.Contains(t, handshake.Instructions, "process_standup")

	for range 3 {
		listed, err := session.ListTools(context.Background(), nil)
		require.NoError(t, err)
		assert.Empty(t, listed.Tools)
	}

	require.NoError(t, session.Close())
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Error("server kept running after the client closed")
	}
}

func TestLoggingMiddlewareLogsToolCalls(t *testing.T) {
	var logs syncBuffer
	logger := slog.New(slog.NewTextHandler(&logs, &slog.HandlerOptions{Level: slog.LevelDebug}))
	collector := metrics.NewCollector()

	srv := server.New("0.1.0-test", logger, collector)
	tools.RegisterAll(srv.MCPServer(), &tools.Dependencies{Logger: slog.New(slog.NewTextHandler(io.Discard, nil))})
	session, _ := start(t, srv)
	defer session.Close()

	echo := strings.Repeat("x", 500)
	_, err := session.CallTool(context.Background(), &mcp.CallToolParams{
		Name:      "ping",
		Arguments: map[string]any{"echo": echo},
	})
	require.NoError(t, err)
	_, err = session.CallTool(context.Background(), &mcp.CallToolParams{
		Name:      "classify_intent",
		Arguments: map[string]any{"text": "what did Alex do"},
	})
	require.NoError(t, err)

	assert.Eventually(t, func() bool {
		return strings.Contains(logs.String(), "tool returned error")
	}, time.Second, 10*time.Millisecond)
	out := logs.String()
	assert.Contains(t, out, "method=tools/call")
	assert.Contains(t, out, "tool=ping")
	assert.NotContains(t, out, echo)

	op := collector.Snapshot().Ops[metrics.OpToolCall]
	require.NotNil(t, op)
	assert.Equal(t, int64(2), op.Count)
}

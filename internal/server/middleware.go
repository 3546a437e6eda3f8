package server

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/raphaelgruber/scrumbot/internal/metrics"
)

const (
	maxParamsLogLen = 200
	slowRequest     = 100 * time.Millisecond
)

// LoggingMiddleware logs each request with its duration. Failed and slow
// requests log above debug level. Tool call durations go to mc, which may
// be nil.
func LoggingMiddleware(logger *slog.Logger, mc *metrics.Collector) mcp.Middleware {
	return func(next mcp.MethodHandler) mcp.MethodHandler {
		return func(ctx context.Context, method string, req mcp.Request) (mcp.Result, error) {
			start := time.Now()
			result, err := next(ctx, method, req)
			elapsed := time.Since(start)

			attrs := []any{"method", method, "duration_ms", elapsed.Milliseconds()}
			if call, ok := req.(*mcp.CallToolRequest); ok && call.Params != nil {
				attrs = append(attrs, "tool", call.Params.Name)
				mc.RecordTiming(metrics.OpToolCall, elapsed)
			}
			if p := req.GetParams(); p != nil {
				attrs = append(attrs, "params", clip(fmt.Sprintf("%+v", p), maxParamsLogLen))
			}

			level, msg := slog.LevelDebug, "request completed"
			switch {
			case err != nil:
				attrs = append(attrs, "error", err)
				level, msg = slog.LevelError, "request failed"
			case toolError(result):
				level, msg = slog.LevelInfo, "tool returned error"
			case elapsed > slowRequest:
				level, msg = slog.LevelWarn, "slow request"
			}
			logger.Log(ctx, level, msg, attrs...)
			return result, err
		}
	}
}

func toolError(r mcp.Result) bool {
	res, ok := r.(*mcp.CallToolResult)
	return ok && res != nil && res.IsError
}

// clip shortens s to at most n runes.
func clip(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	if n < 3 {
		return string(r[:n])
	}
	return string(r[:n-3]) + "..."
}

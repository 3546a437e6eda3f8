package cli

import (
	"fmt"
	"os"

	"github.com/raphaelgruber/scrumbot/internal/metrics"
)

// printStats displays the runtime statistics of this process on stderr.
func printStats(s metrics.Snapshot) {
	w := os.Stderr
	fmt.Fprintf(w, "\nRuntime Statistics\n")
	fmt.Fprintf(w, "═══════════════════════════════════════════════\n")
	fmt.Fprintf(w, "Uptime: %.1f seconds\n", s.UptimeSeconds)

	sections := []struct {
		name string
		op   *metrics.OperationSnapshot
	}{
		{"Train Step", s.TrainStep},
		{"Evaluate", s.Evaluate},
		{"Extract", s.Extract},
		{"Classify", s.Classify},
		{"LLM Generate", s.LLMGenerate},
		{"DB Query", s.DBQuery},
	}
	for _, sec := range sections {
		if sec.op == nil {
			continue
		}
		fmt.Fprintf(w, "\n%s:\n", sec.name)
		printOpStats(sec.op)
		printTokenStats(sec.op)
	}
}

// printOpStats displays timing statistics for an operation.
func printOpStats(op *metrics.OperationSnapshot) {
	fmt.Fprintf(os.Stderr, "  Calls: %d, Total: %dms\n", op.Count, op.TotalTimeMs)
	fmt.Fprintf(os.Stderr, "  Time: avg %.1fms, min %dms, max %dms\n",
		op.AvgTimeMs, op.MinTimeMs, op.MaxTimeMs)
}

// printTokenStats displays token statistics if available.
func printTokenStats(op *metrics.OperationSnapshot) {
	if op.TotalInputTokens == nil || op.TotalOutputTokens == nil {
		return
	}
	w := os.Stderr
	fmt.Fprintf(w, "  Tokens In:  %d total", *op.TotalInputTokens)
	if op.AvgInputTokens != nil {
		fmt.Fprintf(w, ", avg %.0f", *op.AvgInputTokens)
	}
	if op.MinInputTokens != nil && op.MaxInputTokens != nil {
		fmt.Fprintf(w, ", min %d, max %d", *op.MinInputTokens, *op.MaxInputTokens)
	}
	fmt.Fprintln(w)

	fmt.Fprintf(w, "  Tokens Out: %d total", *op.TotalOutputTokens)
	if op.AvgOutputTokens != nil {
		fmt.Fprintf(w, ", avg %.0f", *op.AvgOutputTokens)
	}
	if op.MinOutputTokens != nil && op.MaxOutputTokens != nil {
		fmt.Fprintf(w, ", min %d, max %d", *op.MinOutputTokens, *op.MaxOutputTokens)
	}
	fmt.Fprintln(w)
}

// Package metrics provides in-memory runtime statistics collection.
package metrics

import (
	"sort"
	"sync"
	"time"
)

// Operation names for the collector.
const (
	OpTrainStep   = "train_step"
	OpEvaluate    = "evaluate"
	OpExtract     = "extract"
	OpClassify    = "classify"
	OpLLMGenerate = "llm_generate"
	OpDBQuery     = "db_query"
	OpToolCall    = "tool_call"
)

// span tracks count, sum and range of a series of values.
type span[T int64 | time.Duration] struct {
	n        int64
	sum      T
	min, max T
}

func (s *span[T]) add(v T) {
	if s.n == 0 || v < s.min {
		s.min = v
	}
	if s.n == 0 || v > s.max {
		s.max = v
	}
	s.n++
	s.sum += v
}

func (s *span[T]) mean() float64 {
	if s.n == 0 {
		return 0
	}
	return float64(s.sum) / float64(s.n)
}

type operation struct {
	time   span[time.Duration]
	input  span[int64]
	output span[int64]
}

// OperationSnapshot provides computed stats for one operation.
type OperationSnapshot struct {
	Count       int64
	TotalTimeMs int64
	AvgTimeMs   float64
	MinTimeMs   int64
	MaxTimeMs   int64

	// Token stats, nil unless token usage was recorded.
	TotalInputTokens  *int64
	TotalOutputTokens *int64
	AvgInputTokens    *float64
	AvgOutputTokens   *float64
	MinInputTokens    *int64
	MaxInputTokens    *int64
	MinOutputTokens   *int64
	MaxOutputTokens   *int64
}

// Snapshot represents the process statistics at a point in time. The
// named fields are nil for operations that never ran; Ops holds every
// recorded operation by name.
type Snapshot struct {
	UptimeSeconds float64
	TrainStep     *OperationSnapshot
	Evaluate      *OperationSnapshot
	Extract       *OperationSnapshot
	Classify      *OperationSnapshot
	LLMGenerate   *OperationSnapshot
	DBQuery       *OperationSnapshot

	Ops map[string]*OperationSnapshot
}

// Names returns the recorded operation names in sorted order.
func (s Snapshot) Names() []string {
	names := make([]string, 0, len(s.Ops))
	for name := range s.Ops {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Collector aggregates in-memory runtime statistics.
// All methods are thread-safe and a nil *Collector ignores every call.
type Collector struct {
	mu      sync.Mutex
	started time.Time
	ops     map[string]*operation
}

// NewCollector creates a new metrics collector.
func NewCollector() *Collector {
	return &Collector{started: time.Now(), ops: map[string]*operation{}}
}

func (c *Collector) record(op string, d time.Duration, tokens func(*operation)) {
	if c == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	o, ok := c.ops[op]
	if !ok {
		o = &operation{}
		c.ops[op] = o
	}
	o.time.add(d)
	if tokens != nil {
		tokens(o)
	}
}

// RecordTiming records one call of op that took d.
func (c *Collector) RecordTiming(op string, d time.Duration) {
	c.record(op, d, nil)
}

// Since records the time elapsed since start for op.
func (c *Collector) Since(op string, start time.Time) {
	c.record(op, time.Since(start), nil)
}

// RecordLLMUsage records timing and token usage for an LLM operation.
func (c *Collector) RecordLLMUsage(op string, d time.Duration, inputTokens, outputTokens int64) {
	c.record(op, d, func(o *operation) {
		o.input.add(inputTokens)
		o.output.add(outputTokens)
	})
}

func (o *operation) snapshot() *OperationSnapshot {
	s := &OperationSnapshot{
		Count:       o.time.n,
		TotalTimeMs: o.time.sum.Milliseconds(),
		AvgTimeMs:   float64(o.time.sum.Milliseconds()) / float64(o.time.n),
		MinTimeMs:   o.time.min.Milliseconds(),
		MaxTimeMs:   o.time.max.Milliseconds(),
	}
	if o.input.n == 0 || o.input.sum+o.output.sum == 0 {
		return s
	}
	in, out := o.input, o.output
	avgIn, avgOut := in.mean(), out.mean()
	s.TotalInputTokens, s.TotalOutputTokens = &in.sum, &out.sum
	s.AvgInputTokens, s.AvgOutputTokens = &avgIn, &avgOut
	s.MinInputTokens, s.MaxInputTokens = &in.min, &in.max
	s.MinOutputTokens, s.MaxOutputTokens = &out.min, &out.max
	return s
}

// Snapshot returns a point-in-time copy of all metrics.
func (c *Collector) Snapshot() Snapshot {
	if c == nil {
		return Snapshot{}
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	snap := Snapshot{
		UptimeSeconds: time.Since(c.started).Seconds(),
		Ops:           make(map[string]*OperationSnapshot, len(c.ops)),
	}
	for name, o := range c.ops {
		snap.Ops[name] = o.snapshot()
	}
	snap.TrainStep = snap.Ops[OpTrainStep]
	snap.Evaluate = snap.Ops[OpEvaluate]
	snap.Extract = snap.Ops[OpExtract]
	snap.Classify = snap.Ops[OpClassify]
	snap.LLMGenerate = snap.Ops[OpLLMGenerate]
	snap.DBQuery = snap.Ops[OpDBQuery]
	return snap
}

package train

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync"

	"golang.org/x/sync/errgroup"
)

// DeviceCPU is the only compute device this build supports.
const DeviceCPU = "cpu"

// ErrReleased is returned when a released Context is used.
var ErrReleased = errors.New("training context released")

// Context owns the compute resources of one training or evaluation run.
// Obtain it with Acquire and give it back with Release.
type Context struct {
	device  string
	workers int

	mu       sync.Mutex
	released bool
}

// Acquire reserves a device with a bounded number of workers. workers <= 0
// uses GOMAXPROCS.
func Acquire(device string, workers int) (*Context, error) {
	if device == "" {
		device = DeviceCPU
	}
	if device != DeviceCPU {
		return nil, fmt.Errorf("device %q is not available", device)
	}
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	return &Context{device: device, workers: workers}, nil
}

// Device returns the device name.
func (c *Context) Device() string { return c.device }

// Workers returns the parallelism limit.
func (c *Context) Workers() int { return c.workers }

// Release frees the context. It is safe to call more than once.
func (c *Context) Release() {
	c.mu.Lock()
	c.released = true
	c.mu.Unlock()
}

// Err returns ErrReleased after Release.
func (c *Context) Err() error {
	if c == nil {
		return errors.New("training context is nil")
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.released {
		return ErrReleased
	}
	return nil
}

// Group returns an errgroup bounded by the worker count.
func (c *Context) Group(ctx context.Context) (*errgroup.Group, context.Context) {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.workers)
	return g, gctx
}

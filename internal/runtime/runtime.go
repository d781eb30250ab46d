package runtime

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/errgroup"
)

var (
	// ErrClosed is returned by Block after Close.
	ErrClosed = errors.New("runtime closed")

	// ErrPanic wraps a panic raised by a call's work function.
	ErrPanic = errors.New("call panicked")
)

// Runtime runs each blocking call on its own goroutine. There is no worker
// limit: a slow call never holds up another caller.
//
// Thread-safety: all methods are safe for concurrent use.
type Runtime struct {
	group    *errgroup.Group
	ctx      context.Context
	cancel   context.CancelFunc
	logger   *slog.Logger
	ids      IDGenerator
	metrics  *Metrics
	registry *prometheus.Registry

	mu      sync.RWMutex
	closed  bool
	pending sync.WaitGroup
}

// Option configures a Runtime.
type Option func(*Runtime)

func WithLogger(logger *slog.Logger) Option {
	return func(rt *Runtime) { rt.logger = logger }
}

func WithIDGenerator(ids IDGenerator) Option {
	return func(rt *Runtime) { rt.ids = ids }
}

// New creates a runtime with its own metrics registry.
func New(opts ...Option) *Runtime {
	ctx, cancel := context.WithCancel(context.Background())
	rt := &Runtime{
		group:    &errgroup.Group{},
		ctx:      ctx,
		cancel:   cancel,
		logger:   slog.Default(),
		ids:      UUIDv7Generator{},
		registry: prometheus.NewRegistry(),
	}
	rt.group.SetLimit(-1)
	for _, opt := range opts {
		opt(rt)
	}
	rt.metrics = newMetrics(rt.registry)
	return rt
}

// Registry exposes the runtime's metrics for scraping.
func (rt *Runtime) Registry() *prometheus.Registry {
	return rt.registry
}

// Context is cancelled when the runtime closes.
func (rt *Runtime) Context() context.Context {
	return rt.ctx
}

// Closed reports whether Close has been called.
func (rt *Runtime) Closed() bool {
	rt.mu.RLock()
	defer rt.mu.RUnlock()
	return rt.closed
}

// Close rejects new calls, waits for in-flight calls to return and then
// cancels the runtime context. It is safe to call more than once.
func (rt *Runtime) Close() {
	rt.mu.Lock()
	if rt.closed {
		rt.mu.Unlock()
		return
	}
	rt.closed = true
	rt.mu.Unlock()

	rt.pending.Wait()
	_ = rt.group.Wait()
	rt.cancel()
	rt.logger.Debug("runtime closed")
}

// Block runs fn on a new goroutine and blocks until it returns. op names the call
// in logs and metrics. A panic in fn is returned as an error wrapping
// ErrPanic.
func Block[T any](rt *Runtime, op string, fn func(ctx context.Context) (T, error)) (T, error) {
	var zero T

	rt.mu.RLock()
	if rt.closed {
		rt.mu.RUnlock()
		rt.metrics.calls.WithLabelValues(op, OutcomeRejected).Inc()
		return zero, ErrClosed
	}
	rt.pending.Add(1)
	rt.mu.RUnlock()
	defer rt.pending.Done()

	type result struct {
		v        T
		err      error
		panicked bool
	}
	done := make(chan result, 1)
	callID := rt.ids.Generate()
	start := time.Now()

	rt.metrics.inFlight.Inc()
	defer rt.metrics.inFlight.Dec()
	rt.logger.Debug("bridge call started", "op", op, "call_id", callID)

	rt.group.Go(func() error {
		defer func() {
			if r := recover(); r != nil {
				done <- result{err: fmt.Errorf("%w: %s: %v", ErrPanic, op, r), panicked: true}
			}
		}()
		v, err := fn(rt.ctx)
		done <- result{v: v, err: err}
		return nil
	})

	r := <-done
	elapsed := time.Since(start)

	outcome := OutcomeOK
	switch {
	case r.panicked:
		outcome = OutcomePanic
		rt.logger.Error("bridge call panicked", "op", op, "call_id", callID, "error", r.err)
	case r.err != nil:
		outcome = OutcomeError
		rt.logger.Debug("bridge call failed", "op", op, "call_id", callID, "error", r.err, "elapsed", elapsed)
	default:
		rt.logger.Debug("bridge call finished", "op", op, "call_id", callID, "elapsed", elapsed)
	}
	rt.metrics.observe(op, outcome, elapsed)
	return r.v, r.err
}

package node

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/roach88/ledgerbridge/internal/bridge"
	"github.com/roach88/ledgerbridge/internal/ledger"
	"github.com/roach88/ledgerbridge/internal/runtime"
)

// Engine is the handle moved out of the lifecycle cell. *ledger.Node
// implements it.
type Engine interface {
	// Next blocks for the next notification and returns
	// ledger.ErrStreamClosed at end of stream.
	Next(ctx context.Context) (ledger.Notification, error)
	// Stop asks the engine to wind down without waiting.
	Stop()
	// Shutdown stops the engine and waits for it to exit.
	Shutdown(ctx context.Context) error
}

// NotificationHandler receives drained notifications one at a time.
type NotificationHandler interface {
	ProcessNotification(n bridge.Notification)
}

// HandlerFunc adapts a function to NotificationHandler.
type HandlerFunc func(n bridge.Notification)

func (f HandlerFunc) ProcessNotification(n bridge.Notification) { f(n) }

type options struct {
	logger  *slog.Logger
	closers []func() error
}

// Option configures a Node.
type Option func(*options)

func WithLogger(logger *slog.Logger) Option {
	return func(o *options) { o.logger = logger }
}

// WithCloser registers fn to run once the engine has stopped, after the
// runtime is closed. Closers run in reverse registration order.
func WithCloser(fn func() error) Option {
	return func(o *options) { o.closers = append(o.closers, fn) }
}

// Node is a started ledger node.
//
// Thread-safety: all methods are safe for concurrent use.
type Node struct {
	mu        sync.RWMutex
	engine    Engine // nil once taken
	borrowers sync.WaitGroup
	// takenCtx is cancelled under the write lock when the handle is taken.
	takenCtx   context.Context
	cancelTake context.CancelFunc

	api    *bridge.API
	rt     *runtime.Runtime
	signal *ShutdownSignal
	logger *slog.Logger

	closers    []func() error
	finishOnce sync.Once
}

// New wraps an already running engine. api must drive the same engine and
// rt must be the runtime api blocks on.
func New(engine Engine, api *bridge.API, rt *runtime.Runtime, opts ...Option) *Node {
	o := options{logger: slog.Default()}
	for _, opt := range opts {
		opt(&o)
	}
	takenCtx, cancelTake := context.WithCancel(context.Background())
	return &Node{
		engine:     engine,
		takenCtx:   takenCtx,
		cancelTake: cancelTake,
		api:        api,
		rt:         rt,
		signal:     &ShutdownSignal{stop: engine.Stop, logger: o.logger},
		logger:     o.logger,
		closers:    o.closers,
	}
}

// API returns the query facade.
func (n *Node) API() *bridge.API {
	return n.api
}

// SubjectBuilder returns a fresh builder over the query facade.
func (n *Node) SubjectBuilder() *bridge.SubjectBuilder {
	return bridge.NewSubjectBuilder(n.api)
}

// ShutdownSignal returns the node's shutdown signal. Every call returns the
// same signal.
func (n *Node) ShutdownSignal() *ShutdownSignal {
	return n.signal
}

// Registry exposes the runtime metrics.
func (n *Node) Registry() *prometheus.Registry {
	return n.rt.Registry()
}

// Active reports whether the handle is still in the cell.
func (n *Node) Active() bool {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.engine != nil
}

// take moves the engine out of the cell and waits for borrowers to leave.
func (n *Node) take(op string) (Engine, error) {
	n.mu.Lock()
	e := n.engine
	if e == nil {
		n.mu.Unlock()
		return nil, bridge.Errorf(bridge.KindNodeUnavailable, "%s: engine already taken", op)
	}
	n.engine = nil
	n.cancelTake()
	n.mu.Unlock()

	n.borrowers.Wait()
	n.logger.Debug("engine handle taken", "op", op)
	return e, nil
}

// HandleNotifications takes the handle and passes every notification to h
// until the engine stops. It blocks for the lifetime of the engine.
func (n *Node) HandleNotifications(h NotificationHandler) error {
	e, err := n.take("handle notifications")
	if err != nil {
		return err
	}
	n.drain(e, h.ProcessNotification)
	return nil
}

// DropNotifications takes the handle and discards notifications until the
// engine stops.
func (n *Node) DropNotifications() error {
	e, err := n.take("drop notifications")
	if err != nil {
		return err
	}
	n.drain(e, func(bridge.Notification) {})
	return nil
}

func (n *Node) drain(e Engine, fn func(bridge.Notification)) {
	ctx := context.Background()
	count := 0
	for {
		note, err := e.Next(ctx)
		if errors.Is(err, ledger.ErrStreamClosed) {
			break
		}
		if err != nil {
			n.logger.Error("notification stream failed", "error", err)
			break
		}
		fn(bridge.EncodeNotification(note))
		count++
	}
	n.logger.Info("notification stream ended", "delivered", count)

	if err := e.Shutdown(ctx); err != nil {
		n.logger.Warn("engine shutdown after drain", "error", err)
	}
	n.finish()
}

// ShutdownGracefully takes the handle, stops the engine and waits for
// in-flight work to finish.
func (n *Node) ShutdownGracefully() error {
	e, err := n.take("shutdown")
	if err != nil {
		return err
	}
	n.logger.Info("graceful shutdown started")
	err = e.Shutdown(context.Background())
	n.finish()
	if err != nil {
		return bridge.NewError(bridge.KindExecutionError, err)
	}
	n.logger.Info("graceful shutdown complete")
	return nil
}

// ReceiveBlocking waits for the next notification without taking the
// handle. It fails with bridge.ErrNoConnection when the handle is already
// taken, is taken while waiting, or the stream has ended.
func (n *Node) ReceiveBlocking() (bridge.Notification, error) {
	n.mu.RLock()
	e := n.engine
	if e == nil {
		n.mu.RUnlock()
		return bridge.Notification{}, bridge.Errorf(bridge.KindNoConnection, "engine handle taken")
	}
	n.borrowers.Add(1)
	n.mu.RUnlock()
	defer n.borrowers.Done()

	ctx := n.takenCtx
	note, err := e.Next(ctx)
	switch {
	case err == nil:
		return bridge.EncodeNotification(note), nil
	case errors.Is(err, ledger.ErrStreamClosed):
		return bridge.Notification{}, bridge.Errorf(bridge.KindNoConnection, "notification stream closed")
	case ctx.Err() != nil:
		return bridge.Notification{}, bridge.Errorf(bridge.KindNoConnection, "engine handle taken while waiting")
	default:
		return bridge.Notification{}, bridge.NewError(bridge.KindExecutionError, err)
	}
}

// finish closes the runtime, then the registered closers.
func (n *Node) finish() {
	n.finishOnce.Do(func() {
		n.rt.Close()
		for i := len(n.closers) - 1; i >= 0; i-- {
			if err := n.closers[i](); err != nil {
				n.logger.Error("close node resource", "error", err)
			}
		}
	})
}

// ShutdownSignal stops the engine without taking the handle, so a caller
// blocked in HandleNotifications returns once the stream ends.
type ShutdownSignal struct {
	mu     sync.Mutex
	stop   func()
	logger *slog.Logger
}

// Shutdown sends the stop request. A send that overlaps another fails with
// bridge.ErrLockContention.
func (s *ShutdownSignal) Shutdown() error {
	if !s.mu.TryLock() {
		return bridge.Errorf(bridge.KindLockContention, "shutdown signal already being sent")
	}
	defer s.mu.Unlock()
	s.logger.Info("shutdown signal sent")
	s.stop()
	return nil
}

package ledger

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/roach88/ledgerbridge/internal/id"
	"github.com/roach88/ledgerbridge/internal/keys"
	"github.com/roach88/ledgerbridge/internal/storage"
)

// Config configures a local engine.
type Config struct {
	// Keys signs events, approval responses and validation proofs.
	Keys keys.KeyPair

	// Digest derives every content identifier.
	Digest id.DigestAlg

	// Now returns signature timestamps. Defaults to WallClock.
	Now func() uint64

	Logger *slog.Logger
}

// command is one unit of work for the loop. abort is called instead of run
// when the loop exits before reaching it.
type command struct {
	name  string
	run   func(ctx context.Context)
	abort func(err error)
}

// Node is a running engine.
//
// CRITICAL: All state changes happen in the single loop goroutine.
// API calls enqueue commands and wait for their replies.
//
// Thread-safety model:
//   - API methods, Next, Stop, Shutdown: safe from any goroutine
//   - Notifications have a single logical consumer
type Node struct {
	cfg       Config
	logger    *slog.Logger
	store     *store
	validator *schemaValidator
	clock     *Clock

	commands      *queue[command]
	notifications *queue[Notification]

	cancel   context.CancelFunc
	done     chan struct{}
	stopOnce sync.Once
}

// Start opens the engine collections through m and starts the loop.
func Start(ctx context.Context, cfg Config, m *storage.Manager) (*Node, *API, error) {
	if cfg.Keys == nil {
		return nil, nil, fmt.Errorf("ledger: node keys are required")
	}
	if cfg.Digest == 0 {
		cfg.Digest = id.Blake2b256
	}
	if cfg.Now == nil {
		cfg.Now = WallClock
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	st, err := openStore(m)
	if err != nil {
		return nil, nil, err
	}

	loopCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	n := &Node{
		cfg:           cfg,
		logger:        cfg.Logger,
		store:         st,
		validator:     newSchemaValidator(),
		clock:         NewClockAt(0),
		commands:      newQueue[command](),
		notifications: newQueue[Notification](),
		cancel:        cancel,
		done:          make(chan struct{}),
	}
	go n.run(loopCtx)

	return n, &API{node: n}, nil
}

// run is the single-writer loop.
func (n *Node) run(ctx context.Context) {
	defer close(n.done)
	defer n.notifications.Close()

	n.logger.Info("ledger engine starting", "controller", n.cfg.Keys.Public().String())

	for {
		if cmd, ok := n.commands.TryDequeue(); ok {
			n.execute(ctx, cmd)
			continue
		}
		if n.commands.Drained() {
			n.logger.Info("ledger engine stopped")
			return
		}

		select {
		case <-ctx.Done():
			n.abortPending(ErrStopped)
			n.logger.Info("ledger engine cancelled", "pending", n.commands.Len())
			return
		case <-n.commands.Wait():
		}
	}
}

func (n *Node) execute(ctx context.Context, cmd command) {
	defer func() {
		if r := recover(); r != nil {
			err := fmt.Errorf("panic in %s: %v", cmd.name, r)
			n.logger.Error("ledger command panicked", "command", cmd.name, "panic", r)
			n.emit(Notification{Kind: NotifyUnrecoverableError, Error: err.Error()})
			cmd.abort(err)
		}
	}()
	if ctx.Err() != nil {
		cmd.abort(ErrStopped)
		return
	}
	cmd.run(ctx)
}

func (n *Node) abortPending(err error) {
	n.commands.Close()
	for {
		cmd, ok := n.commands.TryDequeue()
		if !ok {
			return
		}
		cmd.abort(err)
	}
}

// Stop asks the engine to stop accepting commands. Queued commands still
// run; the notification stream closes once they are done. Stop does not
// wait and is safe to call more than once.
func (n *Node) Stop() {
	n.stopOnce.Do(func() {
		n.logger.Info("ledger engine stop requested")
		n.commands.Close()
	})
}

// Shutdown stops the engine and waits for the loop to exit. If ctx ends
// first, pending commands are aborted and ctx.Err() is returned once the
// loop has exited.
func (n *Node) Shutdown(ctx context.Context) error {
	n.Stop()
	select {
	case <-n.done:
		return nil
	case <-ctx.Done():
		n.cancel()
		<-n.done
		return ctx.Err()
	}
}

// Done is closed when the loop has exited.
func (n *Node) Done() <-chan struct{} {
	return n.done
}

// Controller returns the node's public key.
func (n *Node) Controller() id.KeyID {
	return n.cfg.Keys.Public()
}

// submit runs fn on the loop and waits for its result.
func submit[T any](ctx context.Context, n *Node, name string, fn func(ctx context.Context) (T, error)) (T, error) {
	type result struct {
		v   T
		err error
	}
	reply := make(chan result, 1)
	send := func(r result) {
		select {
		case reply <- r:
		default:
		}
	}
	cmd := command{
		name: name,
		run: func(loopCtx context.Context) {
			v, err := fn(loopCtx)
			send(result{v: v, err: err})
		},
		abort: func(err error) {
			send(result{err: err})
		},
	}

	var zero T
	if !n.commands.Enqueue(cmd) {
		return zero, ErrStopped
	}
	select {
	case r := <-reply:
		return r.v, r.err
	case <-ctx.Done():
		return zero, ctx.Err()
	}
}

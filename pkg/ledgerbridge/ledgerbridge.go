// Package ledgerbridge embeds a subject ledger node in a host program.
//
// A host supplies a storage backend (or picks one of the bundled ones
// through Open), starts a Node and then chooses exactly one way to
// consume notifications:
//
//	n, err := ledgerbridge.Open(ctx, s)
//	...
//	go n.HandleNotifications(ledgerbridge.HandlerFunc(func(note ledgerbridge.Notification) {
//		log.Println(note)
//	}))
//	...
//	_ = n.ShutdownSignal().Shutdown()
//
// The query facade returned by Node.API stays usable until the engine
// stops, whoever holds the notification stream.
package ledgerbridge

import (
	"context"

	"github.com/roach88/ledgerbridge/internal/bridge"
	"github.com/roach88/ledgerbridge/internal/node"
	"github.com/roach88/ledgerbridge/internal/settings"
	"github.com/roach88/ledgerbridge/internal/storage"
	"github.com/roach88/ledgerbridge/internal/storage/memory"
)

type (
	Node                = node.Node
	Option              = node.Option
	ShutdownSignal      = node.ShutdownSignal
	NotificationHandler = node.NotificationHandler
	HandlerFunc         = node.HandlerFunc

	API            = bridge.API
	Subject        = bridge.Subject
	SubjectBuilder = bridge.SubjectBuilder
	Notification   = bridge.Notification
	Error          = bridge.Error
	ErrorKind      = bridge.Kind

	Settings = settings.Settings

	Backend           = storage.Backend
	BackendCollection = storage.BackendCollection
	BackendIterator   = storage.BackendIterator
	Tuple             = storage.Tuple
)

var (
	WithLogger = node.WithLogger
	WithCloser = node.WithCloser

	DefaultSettings = settings.Default
	LoadSettings    = settings.Load
	GenerateKey     = settings.GenerateKey

	KindOf = bridge.KindOf
	IsKind = bridge.IsKind
)

// Start starts a node over a caller-provided backend.
func Start(backend Backend, s Settings, opts ...Option) (*Node, error) {
	return node.Start(backend, s, opts...)
}

// Open starts a node over the backend named by s.Driver. The backend is
// closed when the node finishes.
func Open(ctx context.Context, s Settings, opts ...Option) (*Node, error) {
	if err := s.Validate(); err != nil {
		return nil, bridge.NewError(bridge.KindInvalidSettings, err)
	}
	backend, closeBackend, err := node.OpenBackend(ctx, s)
	if err != nil {
		return nil, err
	}
	n, err := node.Start(backend, s, append(opts, node.WithCloser(closeBackend))...)
	if err != nil {
		_ = closeBackend()
		return nil, err
	}
	return n, nil
}

// NewMemoryBackend returns a volatile backend, useful for tests.
func NewMemoryBackend() Backend {
	return memory.New()
}

package node

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/roach88/ledgerbridge/internal/bridge"
	"github.com/roach88/ledgerbridge/internal/ledger"
	"github.com/roach88/ledgerbridge/internal/runtime"
	"github.com/roach88/ledgerbridge/internal/settings"
	"github.com/roach88/ledgerbridge/internal/storage"
	"github.com/roach88/ledgerbridge/internal/storage/memory"
	"github.com/roach88/ledgerbridge/internal/storage/postgres"
	"github.com/roach88/ledgerbridge/internal/storage/sqlite"
)

// Start validates s, starts a local engine over backend and wraps it.
//
// Errors: bridge.ErrInvalidSettings when s does not validate,
// bridge.ErrStartFailed when the engine cannot open its collections.
func Start(backend storage.Backend, s settings.Settings, opts ...Option) (*Node, error) {
	if err := s.Validate(); err != nil {
		return nil, bridge.NewError(bridge.KindInvalidSettings, err)
	}
	kp, err := s.KeyPair()
	if err != nil {
		return nil, bridge.NewError(bridge.KindInvalidSettings, err)
	}

	o := options{logger: slog.Default()}
	for _, opt := range opts {
		opt(&o)
	}

	m := storage.NewManager(backend, o.logger)
	engine, lapi, err := ledger.Start(context.Background(), ledger.Config{
		Keys:   kp,
		Digest: s.DigestAlg(),
		Logger: o.logger,
	}, m)
	if err != nil {
		return nil, bridge.NewError(bridge.KindStartFailed, err)
	}

	rt := runtime.New(runtime.WithLogger(o.logger))
	api := bridge.NewAPI(lapi, rt, kp, s.DigestAlg())

	o.logger.Info("node started",
		"controller", kp.Public().String(),
		"listen_addr", s.ListenAddr,
		"known_nodes", len(s.KnownNodes))
	return New(engine, api, rt, opts...), nil
}

// OpenBackend opens the storage backend named by s.Driver. The returned
// closer releases it and is never nil.
func OpenBackend(ctx context.Context, s settings.Settings) (storage.Backend, func() error, error) {
	switch s.Driver {
	case settings.DriverMemory:
		return memory.New(), func() error { return nil }, nil
	case settings.DriverSQLite, settings.DriverPureGo:
		b, err := sqlite.Open(s.Database, sqlite.WithDriver(s.Driver))
		if err != nil {
			return nil, nil, bridge.NewError(bridge.KindStartFailed, err)
		}
		return b, b.Close, nil
	case settings.DriverPostgres:
		b, err := postgres.Open(ctx, s.Database)
		if err != nil {
			return nil, nil, bridge.NewError(bridge.KindStartFailed, err)
		}
		return b, func() error { b.Close(); return nil }, nil
	default:
		return nil, nil, bridge.NewError(bridge.KindInvalidSettings, fmt.Errorf("unknown driver %q", s.Driver))
	}
}

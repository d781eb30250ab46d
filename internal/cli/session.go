package cli

import (
	"context"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/roach88/ledgerbridge/internal/bridge"
	"github.com/roach88/ledgerbridge/internal/node"
	"github.com/roach88/ledgerbridge/internal/settings"
)

// NodeFlags select the settings and store a command opens.
type NodeFlags struct {
	Config   string
	Driver   string
	Database string
}

func (f *NodeFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&f.Config, "config", "c", "", "settings file (yaml, json or toml)")
	cmd.Flags().StringVar(&f.Driver, "driver", "", "storage driver (memory|sqlite3|sqlite|postgres)")
	cmd.Flags().StringVar(&f.Database, "db", "", "database path or DSN")
}

// settings loads the file and environment, then applies explicit flags.
func (f *NodeFlags) settings() (settings.Settings, error) {
	s, err := settings.Load(f.Config)
	if err != nil {
		return settings.Settings{}, err
	}
	if f.Driver != "" {
		s.Driver = f.Driver
	}
	if f.Database != "" {
		s.Database = f.Database
	}
	return s, s.Validate()
}

// openNode starts a node over the configured store. The store is closed
// by the node when it finishes.
func openNode(ctx context.Context, f *NodeFlags, logger *slog.Logger) (*node.Node, error) {
	s, err := f.settings()
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "invalid settings", err)
	}
	backend, closeBackend, err := node.OpenBackend(ctx, s)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to open store", err)
	}
	logger.Debug("store opened", "driver", s.Driver, "database", s.Database)

	n, err := node.Start(backend, s, node.WithLogger(logger), node.WithCloser(closeBackend))
	if err != nil {
		_ = closeBackend()
		return nil, WrapExitError(ExitCommandError, "failed to start node", err)
	}
	return n, nil
}

// errorCode names err for structured output.
func errorCode(err error) string {
	if kind := bridge.KindOf(err); kind != "" {
		return string(kind)
	}
	return "Error"
}

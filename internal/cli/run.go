package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/ledgerbridge/internal/bridge"
	"github.com/roach88/ledgerbridge/internal/node"
)

// RunOptions holds flags for the run command.
type RunOptions struct {
	*RootOptions
	NodeFlags
	MetricsAddr string
	Quiet       bool // drop notifications instead of logging them

	// ready, when set, receives the started node (for testing).
	ready func(*node.Node)
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	return newRunCommand(rootOpts, nil)
}

func newRunCommand(rootOpts *RootOptions, ready func(*node.Node)) *cobra.Command {
	opts := &RunOptions{RootOptions: rootOpts, ready: ready}

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Start a ledger node",
		Long: `Start a ledger node and stream its notifications until interrupted.

Settings come from --config, then LEDGERBRIDGE_* environment variables,
then the --driver and --db flags. With --metrics-addr an HTTP admin
server exposes /metrics, /healthz and read-only /v1 queries.

Examples:
  ledgerbridge run --config node.yaml
  ledgerbridge run --driver memory --metrics-addr :9090 -v
  LEDGERBRIDGE_PRIVATE_KEY=... ledgerbridge run --db ./ledger.db`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runNode(opts, cmd)
		},
	}

	opts.NodeFlags.register(cmd)
	cmd.Flags().StringVar(&opts.MetricsAddr, "metrics-addr", "", "listen address for the admin HTTP server (disabled when empty)")
	cmd.Flags().BoolVarP(&opts.Quiet, "quiet", "q", false, "discard notifications instead of logging them")

	return cmd
}

func runNode(opts *RunOptions, cmd *cobra.Command) error {
	logger := newLogger(opts.RootOptions)
	slog.SetDefault(logger)

	parentCtx := cmd.Context()
	if parentCtx == nil {
		parentCtx = context.Background()
	}
	ctx, cancel := context.WithCancel(parentCtx)
	defer cancel()

	n, err := openNode(ctx, &opts.NodeFlags, logger)
	if err != nil {
		return err
	}

	var srv *http.Server
	if opts.MetricsAddr != "" {
		srv = &http.Server{
			Addr:              opts.MetricsAddr,
			Handler:           newAdminRouter(n.API(), n.Registry(), logger),
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			logger.Info("admin server listening", "addr", opts.MetricsAddr)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("admin server failed", "error", err)
			}
		}()
	}

	done := make(chan error, 1)
	go func() {
		if opts.Quiet {
			done <- n.DropNotifications()
			return
		}
		done <- n.HandleNotifications(node.HandlerFunc(func(note bridge.Notification) {
			logger.Info("notification", "seq", note.Seq, "kind", note.Kind,
				"subject", note.SubjectID, "sn", note.SN, "approval", note.ApprovalID)
		}))
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	fmt.Fprintf(cmd.OutOrStdout(), "Node %s started. Press Ctrl-C to stop.\n", n.API().Controller())
	if opts.ready != nil {
		opts.ready(n)
	}

	var runErr error
	select {
	case sig := <-sigChan:
		logger.Info("received signal, shutting down", "signal", sig)
	case <-ctx.Done():
	case runErr = <-done:
		// The stream ended on its own, usually after an unrecoverable error.
		done = nil
	}

	if done != nil {
		if err := n.ShutdownSignal().Shutdown(); err != nil {
			logger.Warn("shutdown signal", "error", err)
		}
		runErr = <-done
	}

	if srv != nil {
		shutdownCtx, stop := context.WithTimeout(context.Background(), 5*time.Second)
		defer stop()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Warn("admin server shutdown", "error", err)
		}
	}

	if runErr != nil {
		return WrapExitError(ExitFailure, "node error", runErr)
	}
	logger.Info("node stopped gracefully")
	return nil
}

package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/ledgerbridge/internal/bridge"
)

// EventsOptions holds flags for the events command.
type EventsOptions struct {
	*RootOptions
	NodeFlags
	From     int64
	Quantity int64
	Verify   bool
}

// EventsResult is a subject with a window of its events.
type EventsResult struct {
	Subject bridge.SubjectData   `json:"subject" yaml:"subject"`
	Events  []bridge.SignedEvent `json:"events" yaml:"events"`
	Chain   *bridge.ChainReport  `json:"chain,omitempty" yaml:"chain,omitempty"`
}

func (r EventsResult) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Subject %s (%s/%s) sn=%d active=%t\n",
		r.Subject.SubjectID, r.Subject.Namespace, r.Subject.Name, r.Subject.SN, r.Subject.Active)
	for _, ev := range r.Events {
		e := ev.Event
		fmt.Fprintf(&b, "  #%d %-8s approved=%t signer=%s\n", e.SN, e.EventRequest.Request.Kind, e.Approved, ev.Signature.Signer)
	}
	if r.Chain != nil {
		fmt.Fprintf(&b, "Chain verified: %d events, head %s\n", r.Chain.Events, r.Chain.Head)
	}
	return strings.TrimSuffix(b.String(), "\n")
}

// NewEventsCommand creates the events command.
func NewEventsCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &EventsOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "events <subject-id>",
		Short: "List the events of a subject",
		Long: `Open the node's store, list a window of a subject's events and stop.

--from is an sn; negative values count back from the latest event, so
--from -1 shows only the latest. --verify also checks every signature
and hash link of the chain.

Examples:
  ledgerbridge events --config node.yaml Jx...
  ledgerbridge events --config node.yaml --from -5 --verify Jx...`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runEvents(opts, args[0], cmd)
		},
	}

	opts.NodeFlags.register(cmd)
	cmd.Flags().Int64Var(&opts.From, "from", 0, "first sn (negative counts back from the latest)")
	cmd.Flags().Int64Var(&opts.Quantity, "quantity", 0, "maximum number of events (0 for all)")
	cmd.Flags().BoolVar(&opts.Verify, "verify", false, "verify signatures and hash links of the whole chain")
	return cmd
}

func runEvents(opts *EventsOptions, subjectID string, cmd *cobra.Command) error {
	f := NewOutputFormatter(opts.RootOptions, cmd.OutOrStdout(), cmd.ErrOrStderr())
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	if opts.Verbose {
		logger = newLogger(opts.RootOptions)
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	n, err := openNode(ctx, &opts.NodeFlags, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := n.ShutdownGracefully(); err != nil {
			logger.Error("shutdown", "error", err)
		}
	}()

	result, err := querySubjectEvents(n.API(), subjectID, opts)
	if err != nil {
		_ = f.Error(errorCode(err), err.Error(), nil)
		return WrapExitError(ExitFailure, "query failed", err)
	}
	return f.Success(result)
}

func querySubjectEvents(api *bridge.API, subjectID string, opts *EventsOptions) (EventsResult, error) {
	subj, err := api.GetSubject(subjectID)
	if err != nil {
		return EventsResult{}, err
	}
	data, _ := subj.Data()

	var from *int64
	if opts.From != 0 {
		from = &opts.From
	}
	events, err := api.GetEvents(subjectID, from, opts.Quantity)
	if err != nil {
		return EventsResult{}, err
	}
	result := EventsResult{Subject: data, Events: events}

	if opts.Verify {
		report, err := api.VerifyChain(subjectID)
		if err != nil {
			return EventsResult{}, err
		}
		result.Chain = &report
	}
	return result, nil
}

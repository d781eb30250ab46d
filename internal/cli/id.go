package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/roach88/ledgerbridge/internal/id"
	"github.com/roach88/ledgerbridge/internal/keys"
)

// IDInfo describes a parsed identifier.
type IDInfo struct {
	ID        string `json:"id" yaml:"id"`
	Kind      string `json:"kind" yaml:"kind"` // digest | key | signature
	Algorithm string `json:"algorithm" yaml:"algorithm"`
	Bytes     int    `json:"bytes" yaml:"bytes"`
}

func (i IDInfo) String() string {
	return fmt.Sprintf("%s: %s %s (%d bytes)", i.ID, i.Kind, i.Algorithm, i.Bytes)
}

// NewIDCommand creates the id command group.
func NewIDCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "id",
		Short: "Derive and inspect identifiers",
	}
	cmd.AddCommand(newIDParseCommand(rootOpts))
	cmd.AddCommand(newIDDigestCommand(rootOpts))
	cmd.AddCommand(newIDVerifyCommand(rootOpts))
	return cmd
}

func newIDParseCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "parse <id>",
		Short:         "Identify a digest, key or signature id",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			f := NewOutputFormatter(rootOpts, cmd.OutOrStdout(), cmd.ErrOrStderr())
			info, err := parseID(args[0])
			if err != nil {
				_ = f.Error("MalformedIdentifier", err.Error(), nil)
				return WrapExitError(ExitFailure, "parse failed", err)
			}
			return f.Success(info)
		},
	}
}

// parseID tries each identifier family in turn. Derivation codes do not
// overlap, so at most one succeeds.
func parseID(s string) (IDInfo, error) {
	if d, err := id.ParseDigestID(s); err == nil {
		return IDInfo{ID: s, Kind: "digest", Algorithm: d.Alg().String(), Bytes: len(d.Bytes())}, nil
	}
	if k, err := id.ParseKeyID(s); err == nil {
		return IDInfo{ID: s, Kind: "key", Algorithm: k.Alg().String(), Bytes: len(k.Bytes())}, nil
	}
	sig, err := id.ParseSignatureID(s)
	if err != nil {
		return IDInfo{}, fmt.Errorf("%q is not a digest, key or signature id: %w", s, id.ErrMalformed)
	}
	return IDInfo{ID: s, Kind: "signature", Algorithm: sig.Alg().String(), Bytes: len(sig.Bytes())}, nil
}

func newIDDigestCommand(rootOpts *RootOptions) *cobra.Command {
	var (
		alg       string
		canonical bool
	)
	cmd := &cobra.Command{
		Use:   "digest [file]",
		Short: "Derive the digest id of a file or stdin",
		Long: `Derive the digest id of a file, or of stdin when no file is given.

With --canonical the input must be JSON and is hashed in its canonical
form, which is how request and event hashes are computed.`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			f := NewOutputFormatter(rootOpts, cmd.OutOrStdout(), cmd.ErrOrStderr())
			data, err := readInput(cmd.InOrStdin(), args)
			if err != nil {
				return WrapExitError(ExitCommandError, "failed to read input", err)
			}
			d, err := digest(alg, canonical, data)
			if err != nil {
				_ = f.Error(errorCode(err), err.Error(), nil)
				return WrapExitError(ExitFailure, "digest failed", err)
			}
			if f.structured() {
				return f.Success(map[string]string{"digest": d.String(), "algorithm": d.Alg().String()})
			}
			return f.Success(d.String())
		},
	}
	cmd.Flags().StringVar(&alg, "alg", "blake2b256", "digest derivator")
	cmd.Flags().BoolVar(&canonical, "canonical", false, "hash the canonical JSON form of the input")
	return cmd
}

func readInput(stdin io.Reader, args []string) ([]byte, error) {
	if len(args) == 0 || args[0] == "-" {
		return io.ReadAll(stdin)
	}
	return os.ReadFile(args[0])
}

func digest(alg string, canonical bool, data []byte) (id.DigestID, error) {
	a, err := id.ParseDigestAlg(alg)
	if err != nil {
		return id.DigestID{}, err
	}
	if !canonical {
		return id.Derive(a, data)
	}
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return id.DigestID{}, fmt.Errorf("input is not JSON: %w", err)
	}
	return id.DeriveCanonical(a, v)
}

func newIDVerifyCommand(rootOpts *RootOptions) *cobra.Command {
	var key, signature string
	cmd := &cobra.Command{
		Use:   "verify <message>",
		Short: "Check a signature id against a key id",
		Long: `Check that --sig was produced by --key over message.

Ledger signatures are taken over the text form of a content digest, so
the message is usually a digest id printed by "id digest --canonical".`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			f := NewOutputFormatter(rootOpts, cmd.OutOrStdout(), cmd.ErrOrStderr())
			k, err := id.ParseKeyID(key)
			if err != nil {
				return WrapExitError(ExitCommandError, "invalid --key", err)
			}
			sig, err := id.ParseSignatureID(signature)
			if err != nil {
				return WrapExitError(ExitCommandError, "invalid --sig", err)
			}
			if err := keys.Verify(k, []byte(args[0]), sig); err != nil {
				_ = f.Error("SignatureFailed", err.Error(), nil)
				return WrapExitError(ExitFailure, "signature does not verify", err)
			}
			return f.Success("signature valid")
		},
	}
	cmd.Flags().StringVar(&key, "key", "", "signer key id (required)")
	cmd.Flags().StringVar(&signature, "sig", "", "signature id (required)")
	_ = cmd.MarkFlagRequired("key")
	_ = cmd.MarkFlagRequired("sig")
	return cmd
}

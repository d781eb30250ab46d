package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/ledgerbridge/internal/id"
	"github.com/roach88/ledgerbridge/internal/keys"
	"github.com/roach88/ledgerbridge/internal/settings"
)

// KeygenResult is a fresh node key.
type KeygenResult struct {
	Derivator  string `json:"key_derivator" yaml:"key_derivator"`
	PrivateKey string `json:"private_key" yaml:"private_key"`
	PublicKey  string `json:"public_key" yaml:"public_key"`
}

func (r KeygenResult) String() string {
	return fmt.Sprintf("key_derivator: %s\nprivate_key:   %s\npublic_key:    %s", r.Derivator, r.PrivateKey, r.PublicKey)
}

// NewKeygenCommand creates the keygen command.
func NewKeygenCommand(rootOpts *RootOptions) *cobra.Command {
	var derivator string

	cmd := &cobra.Command{
		Use:   "keygen",
		Short: "Generate a node key",
		Long: `Generate a private key for the private_key setting.

The secret is printed as hex. The public key is the controller id the
node signs with.

Examples:
  ledgerbridge keygen
  ledgerbridge keygen --alg secp256k1 --format yaml`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			f := NewOutputFormatter(rootOpts, cmd.OutOrStdout(), cmd.ErrOrStderr())
			result, err := generateKey(derivator)
			if err != nil {
				_ = f.Error(errorCode(err), err.Error(), nil)
				return WrapExitError(ExitCommandError, "keygen failed", err)
			}
			return f.Success(result)
		},
	}

	cmd.Flags().StringVar(&derivator, "alg", "ed25519", "key derivator (ed25519|secp256k1)")
	return cmd
}

func generateKey(derivator string) (KeygenResult, error) {
	secret, err := settings.GenerateKey(derivator)
	if err != nil {
		return KeygenResult{}, err
	}
	alg, err := id.ParseKeyAlg(derivator)
	if err != nil {
		return KeygenResult{}, err
	}
	kp, err := keys.FromSecretHex(alg, secret)
	if err != nil {
		return KeygenResult{}, err
	}
	return KeygenResult{Derivator: alg.String(), PrivateKey: secret, PublicKey: kp.Public().String()}, nil
}

package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

// ValidationResult reports whether the effective settings are usable.
type ValidationResult struct {
	Valid      bool   `json:"valid" yaml:"valid"`
	Error      string `json:"error,omitempty" yaml:"error,omitempty"`
	Controller string `json:"controller,omitempty" yaml:"controller,omitempty"`
	Driver     string `json:"driver,omitempty" yaml:"driver,omitempty"`
	Database   string `json:"database,omitempty" yaml:"database,omitempty"`
}

func (r ValidationResult) String() string {
	if !r.Valid {
		return "✗ " + r.Error
	}
	return fmt.Sprintf("✓ settings valid (controller %s, driver %s)", r.Controller, r.Driver)
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	var flags NodeFlags

	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Validate node settings without starting the node",
		Long: `Load settings the same way run does and report the first problem.

Examples:
  ledgerbridge validate --config node.yaml
  ledgerbridge validate --config node.yaml --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			f := NewOutputFormatter(rootOpts, cmd.OutOrStdout(), cmd.ErrOrStderr())
			result := validateSettings(&flags)
			if err := f.Success(result); err != nil {
				return err
			}
			if !result.Valid {
				return NewExitError(ExitFailure, "invalid settings")
			}
			return nil
		},
	}

	flags.register(cmd)
	return cmd
}

func validateSettings(flags *NodeFlags) ValidationResult {
	s, err := flags.settings()
	if err != nil {
		return ValidationResult{Error: err.Error()}
	}
	kp, err := s.KeyPair()
	if err != nil {
		return ValidationResult{Error: err.Error()}
	}
	return ValidationResult{
		Valid:      true,
		Controller: kp.Public().String(),
		Driver:     s.Driver,
		Database:   s.Database,
	}
}

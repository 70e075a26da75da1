package cli

import (
	"fmt"

	"github.com/samber/lo"
	"github.com/spf13/cobra"

	"github.com/Priya8975/socialproof-pipeline/internal/adapter"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Format string // "json" | "text"
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command for proofctl.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "proofctl",
		Short: "Inspect providers and render social proof templates offline",
		Long: `proofctl works on the same adapters and template engine as the server,
without a database or Redis. Use it to see what a provider emits, check
which placeholders a template uses, and render previews from sample events.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !lo.Contains(ValidFormats, opts.Format) {
				return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, ValidFormats)
			}
			return nil
		},
	}

	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")

	cmd.AddCommand(NewProvidersCommand(opts))
	cmd.AddCommand(NewFieldsCommand(opts))
	cmd.AddCommand(NewExtractCommand(opts))
	cmd.AddCommand(NewAutoMapCommand(opts))
	cmd.AddCommand(NewRenderCommand(opts))

	return cmd
}

func loadRegistry() (*adapter.Registry, error) {
	reg, err := adapter.NewDefaultRegistry()
	if err != nil {
		return nil, fmt.Errorf("building adapter registry: %w", err)
	}
	return reg, nil
}

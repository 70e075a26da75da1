package cli

import (
	"fmt"
	"io"

	"github.com/samber/lo"
	"github.com/spf13/cobra"

	"github.com/Priya8975/socialproof-pipeline/internal/adapter"
	"github.com/Priya8975/socialproof-pipeline/internal/domain"
)

type providerInfo struct {
	ID          string            `json:"id"`
	DisplayName string            `json:"display_name"`
	SyncConfig  domain.SyncConfig `json:"sync_config"`
}

// NewProvidersCommand creates the providers command.
func NewProvidersCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "providers",
		Short: "List registered providers and how they sync",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			reg, err := loadRegistry()
			if err != nil {
				return err
			}
			infos := lo.Map(reg.GetAll(), func(a adapter.Adapter, _ int) providerInfo {
				return providerInfo{ID: a.Provider(), DisplayName: a.DisplayName(), SyncConfig: adapter.SyncConfigFor(a)}
			})
			return newFormatter(rootOpts, cmd.OutOrStdout()).Emit(infos, func(w io.Writer) error {
				return table(w, "PROVIDER\tNAME\tWEBHOOK\tPOLLING", lo.Map(infos, func(p providerInfo, _ int) []any {
					return []any{p.ID, p.DisplayName, yesNo(p.SyncConfig.SupportsWebhook), yesNo(p.SyncConfig.SupportsPolling)}
				}))
			})
		},
	}
}

// NewFieldsCommand creates the fields command.
func NewFieldsCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "fields <provider>",
		Short: "List the normalized fields a provider emits",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			reg, err := loadRegistry()
			if err != nil {
				return err
			}
			a, err := reg.Lookup(args[0])
			if err != nil {
				return err
			}
			fields := a.AvailableFields()
			return newFormatter(rootOpts, cmd.OutOrStdout()).Emit(fields, func(w io.Writer) error {
				return table(w, "KEY\tTYPE\tLABEL\tEXAMPLE", lo.Map(fields, func(f domain.NormalizedField, _ int) []any {
					return []any{f.Key, f.Type, f.Label, domain.FormatValue(f.Example)}
				}))
			})
		},
	}
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}

func printList(w io.Writer, items []string) error {
	for _, s := range items {
		if _, err := fmt.Fprintln(w, s); err != nil {
			return err
		}
	}
	return nil
}

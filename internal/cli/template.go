package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/samber/lo"
	"github.com/spf13/cobra"

	"github.com/Priya8975/socialproof-pipeline/internal/adapter"
	"github.com/Priya8975/socialproof-pipeline/internal/domain"
	"github.com/Priya8975/socialproof-pipeline/internal/template"
)

// NewExtractCommand creates the extract command.
func NewExtractCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "extract <template-file>",
		Short: "List the placeholders a template uses",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			spec, err := LoadTemplate(args[0])
			if err != nil {
				return err
			}
			placeholders := template.Extract(spec.Template.HTMLTemplate)
			if placeholders == nil {
				placeholders = []string{}
			}
			return newFormatter(rootOpts, cmd.OutOrStdout()).Emit(placeholders, func(w io.Writer) error {
				return printList(w, placeholders)
			})
		},
	}
}

type automapOutput struct {
	Mapping  domain.FieldMapping `json:"mapping"`
	Unmapped []string            `json:"unmapped"`
	Missing  []string            `json:"missing_fields"`
}

// NewAutoMapCommand creates the automap command.
func NewAutoMapCommand(rootOpts *RootOptions) *cobra.Command {
	var provider string

	cmd := &cobra.Command{
		Use:   "automap <template-file>",
		Short: "Propose a field mapping for a template",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			spec, a, err := loadTemplateAndProvider(args[0], provider)
			if err != nil {
				return err
			}

			placeholders := template.Extract(spec.Template.HTMLTemplate)
			mapping := template.AutoMap(template.FieldKeys(a.AvailableFields()), placeholders)
			out := automapOutput{
				Mapping:  mapping,
				Unmapped: lo.Reject(placeholders, func(p string, _ int) bool { return mapping.Has(p) }),
				Missing:  template.MissingRequired(spec.Template.RequiredFields, mapping),
			}

			return newFormatter(rootOpts, cmd.OutOrStdout()).Emit(out, func(w io.Writer) error {
				rows := make([][]any, 0, out.Mapping.Len())
				for _, k := range out.Mapping.Keys() {
					src, _ := out.Mapping.Get(k)
					rows = append(rows, []any{k, src})
				}
				if err := table(w, "PLACEHOLDER\tFIELD", rows); err != nil {
					return err
				}
				if len(out.Unmapped) > 0 {
					fmt.Fprintf(w, "\nunmapped: %v\n", out.Unmapped)
				}
				if len(out.Missing) > 0 {
					fmt.Fprintf(w, "missing required: %v\n", out.Missing)
				}
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&provider, "provider", "p", "", "provider whose fields to map from (required)")
	cmd.MarkFlagRequired("provider")
	return cmd
}

// NewRenderCommand creates the render command.
func NewRenderCommand(rootOpts *RootOptions) *cobra.Command {
	var (
		provider  string
		eventFile string
		sample    int
		plain     bool
		preview   bool
	)

	cmd := &cobra.Command{
		Use:   "render <template-file>",
		Short: "Render a template against a provider event",
		Long: `Render a template against an event of the given provider.

The event is a raw provider payload read from --event, normalized the same
way the server does it; without --event the provider's sample event is
used. --preview renders from preview values and field examples instead.
Without a mapping in the template file one is proposed with automap.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			spec, a, err := loadTemplateAndProvider(args[0], provider)
			if err != nil {
				return err
			}

			cfg := template.PreviewConfig{Template: spec.Template, Mapping: spec.Mapping, Fields: a.AvailableFields()}
			if !preview {
				ev, err := pickEvent(a, eventFile, sample)
				if err != nil {
					return err
				}
				cfg.Event = &ev
			}
			if cfg.Mapping.Len() == 0 {
				keys := template.FieldKeys(cfg.Fields)
				if cfg.Event != nil {
					keys = append(keys, cfg.Event.Normalized.Keys()...)
				}
				cfg.Mapping = template.AutoMap(keys, template.Extract(spec.Template.HTMLTemplate))
			}

			out := template.ComputePreview(cfg)
			return newFormatter(rootOpts, cmd.OutOrStdout()).Emit(out, func(w io.Writer) error {
				body := out.Markup
				if plain {
					body = out.Text
				}
				fmt.Fprintln(w, body)
				for _, e := range out.Errors {
					fmt.Fprintf(cmd.ErrOrStderr(), "warning: %s\n", e)
				}
				if !out.Complete {
					fmt.Fprintf(cmd.ErrOrStderr(), "warning: required fields not mapped: %v\n", out.Missing)
				}
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&provider, "provider", "p", "", "provider of the event (required)")
	cmd.Flags().StringVarP(&eventFile, "event", "e", "", "raw provider payload (JSON file)")
	cmd.Flags().IntVar(&sample, "sample", 0, "index of the provider sample event to use")
	cmd.Flags().BoolVar(&plain, "text", false, "print the plain text rendering instead of markup")
	cmd.Flags().BoolVar(&preview, "preview", false, "render without an event, from preview values")
	cmd.MarkFlagRequired("provider")
	return cmd
}

func loadTemplateAndProvider(path, provider string) (TemplateSpec, adapter.Adapter, error) {
	spec, err := LoadTemplate(path)
	if err != nil {
		return TemplateSpec{}, nil, err
	}
	reg, err := loadRegistry()
	if err != nil {
		return TemplateSpec{}, nil, err
	}
	a, err := reg.Lookup(provider)
	if err != nil {
		return TemplateSpec{}, nil, err
	}
	return spec, a, nil
}

func pickEvent(a adapter.Adapter, eventFile string, sample int) (domain.CanonicalEvent, error) {
	if eventFile != "" {
		raw, err := os.ReadFile(eventFile)
		if err != nil {
			return domain.CanonicalEvent{}, fmt.Errorf("reading event: %w", err)
		}
		return a.Normalize(raw)
	}
	samples := a.SampleEvents()
	if sample < 0 || sample >= len(samples) {
		return domain.CanonicalEvent{}, fmt.Errorf("%s has %d sample events, no index %d", a.Provider(), len(samples), sample)
	}
	return samples[sample], nil
}

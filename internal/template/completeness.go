package template

import (
	"errors"
	"fmt"

	"github.com/samber/lo"

	"github.com/Priya8975/socialproof-pipeline/internal/domain"
)

// MissingRequired lists required placeholders that have no non-empty
// mapping. Computed fields never count as missing.
func MissingRequired(required []string, mapping domain.FieldMapping) []string {
	return lo.Filter(required, func(f string, _ int) bool {
		if domain.IsComputedField(f) {
			return false
		}
		src, ok := mapping.Get(f)
		return !ok || src == ""
	})
}

// AllRequiredMapped reports whether every required placeholder is mapped.
func AllRequiredMapped(required []string, mapping domain.FieldMapping) bool {
	return len(MissingRequired(required, mapping)) == 0
}

// Validate checks that every required field occurs as a placeholder in the
// template.
func Validate(cfg domain.TemplateConfig) error {
	if cfg.HTMLTemplate == "" {
		return errors.New("html_template is empty")
	}
	present := Extract(cfg.HTMLTemplate)
	var errs []error
	for _, f := range cfg.RequiredFields {
		if !lo.Contains(present, f) {
			errs = append(errs, fmt.Errorf("required field %q does not occur in html_template", f))
		}
	}
	return errors.Join(errs...)
}

package domain

import (
	"errors"
	"fmt"
)

// Computed placeholders. They are resolved by the renderer and are never
// sourced from an adapter or edited by users.
const (
	FieldVerified    = "template.verified"
	FieldRatingStars = "template.rating_stars"
)

var ErrReservedField = errors.New("field is computed at render time")

// TemplateConfig is the template asset authored by the UI layer.
// Every RequiredFields entry must occur as a placeholder in HTMLTemplate.
type TemplateConfig struct {
	ID             string     `json:"id" yaml:"id"`
	HTMLTemplate   string     `json:"html_template" yaml:"html_template"`
	RequiredFields []string   `json:"required_fields" yaml:"required_fields"`
	PreviewJSON    Normalized `json:"preview_json" yaml:"-"`
}

// FieldMapping maps placeholder name -> source field key.
type FieldMapping = OrderedMap[string]

// MappingOf builds a FieldMapping from alternating placeholder/source pairs.
func MappingOf(pairs ...string) FieldMapping {
	if len(pairs)%2 != 0 {
		panic("domain: MappingOf needs placeholder/source pairs")
	}
	var m FieldMapping
	for i := 0; i < len(pairs); i += 2 {
		m.Set(pairs[i], pairs[i+1])
	}
	return m
}

func IsComputedField(key string) bool {
	return key == FieldVerified || key == FieldRatingStars
}

// SetMappingEntry is the user-facing edit path for a mapping.
func SetMappingEntry(m *FieldMapping, placeholder, source string) error {
	if IsComputedField(placeholder) {
		return fmt.Errorf("mapping %q: %w", placeholder, ErrReservedField)
	}
	m.Set(placeholder, source)
	return nil
}

// EditableMappingKeys lists the placeholders a user may edit, in order.
func EditableMappingKeys(m FieldMapping) []string {
	var out []string
	for _, k := range m.Keys() {
		if !IsComputedField(k) {
			out = append(out, k)
		}
	}
	return out
}

package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/Priya8975/socialproof-pipeline/internal/domain"
)

// templateFile is the on-disk form of a template. Mapping and preview are
// kept as raw nodes so their key order survives.
type templateFile struct {
	domain.TemplateConfig `yaml:",inline"`
	Mapping               yaml.Node `yaml:"mapping"`
	Preview               yaml.Node `yaml:"preview"`
}

// TemplateSpec is a template plus an optional hand-written mapping.
type TemplateSpec struct {
	Template domain.TemplateConfig
	Mapping  domain.FieldMapping
}

// LoadTemplate reads a template from path. Files ending in .html are taken
// as the bare template markup; anything else is parsed as YAML.
func LoadTemplate(path string) (TemplateSpec, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return TemplateSpec{}, fmt.Errorf("reading template: %w", err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".html", ".htm":
		id := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
		return TemplateSpec{Template: domain.TemplateConfig{ID: id, HTMLTemplate: string(data)}}, nil
	}

	var f templateFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return TemplateSpec{}, fmt.Errorf("parsing template %s: %w", path, err)
	}
	if f.HTMLTemplate == "" {
		return TemplateSpec{}, fmt.Errorf("template %s has no html_template", path)
	}

	spec := TemplateSpec{Template: f.TemplateConfig}
	if err := eachPair(&f.Mapping, func(key string, v *yaml.Node) error {
		var src string
		if err := v.Decode(&src); err != nil {
			return fmt.Errorf("mapping %q: %w", key, err)
		}
		if domain.IsComputedField(key) && src == key {
			spec.Mapping.Set(key, src)
			return nil
		}
		return domain.SetMappingEntry(&spec.Mapping, key, src)
	}); err != nil {
		return TemplateSpec{}, fmt.Errorf("template %s: %w", path, err)
	}
	if err := eachPair(&f.Preview, func(key string, v *yaml.Node) error {
		var val any
		if err := v.Decode(&val); err != nil {
			return fmt.Errorf("preview %q: %w", key, err)
		}
		spec.Template.PreviewJSON.Set(key, val)
		return nil
	}); err != nil {
		return TemplateSpec{}, fmt.Errorf("template %s: %w", path, err)
	}
	return spec, nil
}

// eachPair walks a YAML mapping node in document order. An absent node is
// an empty mapping.
func eachPair(n *yaml.Node, fn func(key string, v *yaml.Node) error) error {
	if n.Kind == 0 {
		return nil
	}
	if n.Kind != yaml.MappingNode {
		return fmt.Errorf("line %d: expected a mapping", n.Line)
	}
	for i := 0; i+1 < len(n.Content); i += 2 {
		if err := fn(n.Content[i].Value, n.Content[i+1]); err != nil {
			return err
		}
	}
	return nil
}

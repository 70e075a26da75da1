package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/Priya8975/socialproof-pipeline/internal/domain"
)

// ConnectorSeed is one connector entry of the CONNECTORS_FILE.
type ConnectorSeed struct {
	ID           string              `yaml:"id"`
	Provider     string              `yaml:"provider"`
	UserID       string              `yaml:"user_id"`
	BaseURL      string              `yaml:"base_url"`
	APIKey       string              `yaml:"api_key"`
	PollInterval time.Duration       `yaml:"poll_interval"`
	Rules        []domain.ActionRule `yaml:"rules"`
}

type seedFile struct {
	Connectors []ConnectorSeed `yaml:"connectors"`
}

// LoadConnectors reads the connector seed file. API keys may reference
// environment variables as ${NAME}.
func LoadConnectors(path string) ([]domain.Connector, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading connectors file: %w", err)
	}

	var f seedFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parsing connectors file: %w", err)
	}

	out := make([]domain.Connector, 0, len(f.Connectors))
	seen := make(map[string]bool, len(f.Connectors))
	for i, s := range f.Connectors {
		if s.ID == "" || s.Provider == "" {
			return nil, fmt.Errorf("connector %d: id and provider are required", i)
		}
		if seen[s.ID] {
			return nil, fmt.Errorf("connector %d: duplicate id %q", i, s.ID)
		}
		seen[s.ID] = true
		out = append(out, domain.Connector{
			ID:           s.ID,
			Provider:     s.Provider,
			UserID:       s.UserID,
			BaseURL:      s.BaseURL,
			APIKey:       os.ExpandEnv(s.APIKey),
			PollInterval: s.PollInterval,
			Rules:        s.Rules,
		})
	}
	return out, nil
}

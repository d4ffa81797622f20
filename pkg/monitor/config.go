package monitor

import (
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// QueuesConfig lists additional queues the monitoring surface should watch
// beyond the ingestion queue itself.
type QueuesConfig struct {
	Queues []string `yaml:"queues" json:"queues"`
}

// LoadQueues reads a YAML queue list. An empty path means no extra queues.
func LoadQueues(path string) (QueuesConfig, error) {
	if path == "" {
		return QueuesConfig{}, nil
	}

	content, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return QueuesConfig{}, err
	}

	var cfg QueuesConfig
	if err := yaml.Unmarshal(content, &cfg); err != nil {
		return QueuesConfig{}, err
	}
	return cfg, nil
}

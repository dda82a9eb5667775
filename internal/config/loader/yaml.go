package loader

import (
	"gopkg.in/yaml.v3"

	"github.com/dshills/skiff/internal/config"
)

// decodeYAML decodes YAML data into cfg. yaml.v3 reports positions
// inside its message, so Line stays zero here.
func decodeYAML(path string, data []byte, cfg *config.Config) error {
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return &ParseError{Path: path, Message: err.Error(), Err: err}
	}
	return nil
}

package loader

import (
	"errors"

	toml "github.com/pelletier/go-toml/v2"

	"github.com/dshills/skiff/internal/config"
)

// decodeTOML decodes TOML data into cfg.
func decodeTOML(path string, data []byte, cfg *config.Config) error {
	if err := toml.Unmarshal(data, cfg); err != nil {
		perr := &ParseError{Path: path, Message: err.Error(), Err: err}
		var derr *toml.DecodeError
		if errors.As(err, &derr) {
			perr.Line, perr.Column = derr.Position()
		}
		return perr
	}
	return nil
}

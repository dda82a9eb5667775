package loader

import (
	"fmt"
	"os"
	"strconv"

	"github.com/dshills/skiff/internal/config"
)

// EnvPrefix is the prefix shared by all override variables.
const EnvPrefix = "SKIFF_"

// envVars maps override variables onto config fields. The set is
// deliberately small; anything structural belongs in the file.
var envVars = []struct {
	name  string
	apply func(*config.Config, string) error
}{
	{EnvPrefix + "LOG_LEVEL", func(c *config.Config, v string) error {
		c.LogLevel = v
		return nil
	}},
	{EnvPrefix + "LOG_FILE", func(c *config.Config, v string) error {
		c.LogFile = v
		return nil
	}},
	{EnvPrefix + "FRAME_MS", func(c *config.Config, v string) error {
		n, err := strconv.Atoi(v)
		if err != nil {
			return err
		}
		c.UI.FrameMS = n
		return nil
	}},
	{EnvPrefix + "INLAY_HINTS", func(c *config.Config, v string) error {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return err
		}
		c.UI.InlayHints = b
		return nil
	}},
	{EnvPrefix + "LSP_ROOT", func(c *config.Config, v string) error {
		c.LSP.Root = v
		return nil
	}},
}

// ApplyEnv overlays SKIFF_* environment variables onto cfg. An empty
// value is a valid override, not an unset.
func ApplyEnv(cfg *config.Config) error {
	for _, ev := range envVars {
		val, ok := os.LookupEnv(ev.name)
		if !ok {
			continue
		}
		if err := ev.apply(cfg, val); err != nil {
			return fmt.Errorf("%s: %w", ev.name, err)
		}
	}
	return nil
}

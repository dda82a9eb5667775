// Package config defines the editor configuration schema and its
// defaults.
//
// Configuration is a single Config value assembled from up to three
// sources, later sources overriding earlier ones:
//
//	defaults (Default)
//	    |
//	config file (skiff.toml / skiff.yaml / skiff.lua, via loader)
//	    |
//	environment (SKIFF_* variables, via loader.ApplyEnv)
//	    |
//	  Config
//
// # Sub-packages
//
//   - loader: probes for a config file, decodes TOML, YAML, or Lua,
//     and applies environment overrides.
//   - watcher: watches the loaded file and reports changes so a
//     running editor can reload.
//
// # Basic Usage
//
//	cfg, path, err := loader.New().Load(dir)
//	if err != nil {
//	    // a broken file is reported, not silently ignored
//	}
//	if err := cfg.Validate(); err != nil {
//	    // field-level problems, one ValidationError per field
//	}
//	servers := cfg.ServerConfigs()
//
// A missing config file is not an error; Load returns the defaults.
package config

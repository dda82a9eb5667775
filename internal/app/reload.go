package app

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"sort"

	"github.com/dshills/skiff/internal/config"
	"github.com/dshills/skiff/internal/config/loader"
	"github.com/dshills/skiff/internal/lsp"
)

// reloadConfig re-reads the config file and applies what changed. A
// deleted file reverts to the defaults. A file that no longer parses or
// validates leaves the running configuration untouched.
func (a *App) reloadConfig(ctx context.Context) {
	if a.cfgPath == "" {
		return
	}
	cfg, err := a.loader.LoadFile(a.cfgPath)
	if errors.Is(err, fs.ErrNotExist) {
		cfg, err = config.Default(), nil
	}
	if err == nil {
		err = loader.ApplyEnv(cfg)
	}
	if err == nil {
		err = cfg.Validate()
	}
	if err != nil {
		a.logger.Warn("config reload: %v", err)
		a.setStatus(fmt.Sprintf("config reload failed: %v", err))
		return
	}
	a.setStatus("configuration reloaded")
	a.applyConfig(ctx, cfg)
	a.logger.Info("configuration reloaded from %s", a.cfgPath)
}

// applyConfig swaps in a new configuration and runs the per-language
// lifecycle diff: newly disabled languages close their open buffers and
// stop their session, newly enabled ones open theirs. A changed command on
// a running server only takes effect on the next restart, so it is called
// out on the status line instead of silently ignored.
func (a *App) applyConfig(ctx context.Context, cfg *config.Config) {
	a.logger.SetLevel(cfg.LogLevelValue())

	type flip struct {
		lang   string
		enable bool
	}
	var flips []flip
	var cmdChanged []string
	for lang, nc := range cfg.ServerConfigs() {
		oc, had := a.manager.Config(lang)
		a.manager.Configure(lang, nc)
		if !had {
			continue
		}
		switch {
		case oc.Enabled && !nc.Enabled:
			flips = append(flips, flip{lang: lang, enable: false})
		case !oc.Enabled && nc.Enabled:
			flips = append(flips, flip{lang: lang, enable: true})
		case nc.Enabled && commandChanged(oc, nc):
			cmdChanged = append(cmdChanged, lang)
		}
	}
	sort.Slice(flips, func(i, j int) bool { return flips[i].lang < flips[j].lang })
	sort.Strings(cmdChanged)

	a.cfg = cfg
	for _, fl := range flips {
		if fl.enable {
			a.enableLanguage(ctx, fl.lang)
		} else {
			a.disableLanguage(ctx, fl.lang)
		}
	}
	for _, lang := range cmdChanged {
		if _, running := a.manager.Handle(lang); running {
			a.setStatus(fmt.Sprintf("%s server command changed; restart to apply", lang))
		}
	}
}

// disableLanguage runs the disable lifecycle for every open buffer of the
// language, then stops its session. Each open buffer gets its didClose
// before the session's shutdown handshake; the command queue keeps them in
// order.
func (a *App) disableLanguage(ctx context.Context, language string) {
	for _, b := range a.buffersFor(language) {
		if !b.lspEnabled {
			continue
		}
		if err := a.DisableLSP(b); err != nil {
			a.logger.Warn("disable lsp for %s: %v", b.Path, err)
		}
	}
	if err := a.manager.Shutdown(ctx, language); err != nil {
		a.logger.Warn("stop %s server: %v", language, err)
	}
	a.setStatus(fmt.Sprintf("%s language server disabled by config", language))
}

// enableLanguage runs the enable lifecycle for every open buffer of the
// language. The reload acts on the user's behalf, so the spawn counts as
// explicit and auto_start does not apply.
func (a *App) enableLanguage(ctx context.Context, language string) {
	for _, b := range a.buffersFor(language) {
		if err := a.EnableLSP(ctx, b, true); err != nil {
			a.logger.Warn("enable lsp for %s: %v", b.Path, err)
		}
	}
	a.setStatus(fmt.Sprintf("%s language server enabled by config", language))
}

func commandChanged(a, b lsp.ServerConfig) bool {
	if a.Command != b.Command || len(a.Args) != len(b.Args) {
		return true
	}
	for i := range a.Args {
		if a.Args[i] != b.Args[i] {
			return true
		}
	}
	return false
}

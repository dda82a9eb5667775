package loader

import (
	"strings"
	"testing"

	"github.com/dshills/skiff/internal/config"
)

func TestApplyEnv(t *testing.T) {
	t.Setenv("SKIFF_LOG_LEVEL", "debug")
	t.Setenv("SKIFF_FRAME_MS", "42")
	t.Setenv("SKIFF_INLAY_HINTS", "true")
	t.Setenv("SKIFF_LSP_ROOT", "/work/src")

	cfg := config.Default()
	if err := ApplyEnv(cfg); err != nil {
		t.Fatalf("ApplyEnv failed: %v", err)
	}

	if cfg.LogLevel != "debug" {
		t.Errorf("Expected log level debug, got %q", cfg.LogLevel)
	}
	if cfg.UI.FrameMS != 42 {
		t.Errorf("Expected frame interval 42, got %d", cfg.UI.FrameMS)
	}
	if !cfg.UI.InlayHints {
		t.Error("Expected inlay hints enabled")
	}
	if cfg.LSP.Root != "/work/src" {
		t.Errorf("Expected lsp root override, got %q", cfg.LSP.Root)
	}
}

func TestApplyEnv_EmptyValueIsValid(t *testing.T) {
	t.Setenv("SKIFF_LOG_FILE", "")

	cfg := config.Default()
	cfg.LogFile = "/tmp/skiff.log"
	if err := ApplyEnv(cfg); err != nil {
		t.Fatalf("ApplyEnv failed: %v", err)
	}
	if cfg.LogFile != "" {
		t.Errorf("Expected empty value to override, got %q", cfg.LogFile)
	}
}

func TestApplyEnv_BadValueNamesVariable(t *testing.T) {
	t.Setenv("SKIFF_FRAME_MS", "fast")

	err := ApplyEnv(config.Default())
	if err == nil {
		t.Fatal("Expected error for unparseable value")
	}
	if !strings.Contains(err.Error(), "SKIFF_FRAME_MS") {
		t.Errorf("Expected variable name in error, got %v", err)
	}
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	t.Setenv("SKIFF_LOG_LEVEL", "error")

	memfs := NewMemFS()
	memfs.AddFile("/proj/skiff.toml", `log_level = "warn"`)
	l := NewWithFS(memfs)

	cfg, _, err := l.Load("/proj")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.LogLevel != "error" {
		t.Errorf("Expected env to win over file, got %q", cfg.LogLevel)
	}
}

package loader

import (
	"errors"
	"io/fs"
	"testing"
	"time"
)

// MemFS is an in-memory file system for testing.
type MemFS struct {
	files map[string][]byte
}

func NewMemFS() *MemFS {
	return &MemFS{files: make(map[string][]byte)}
}

func (m *MemFS) AddFile(path string, content string) {
	m.files[path] = []byte(content)
}

func (m *MemFS) Open(name string) (fs.File, error) {
	return nil, fs.ErrNotExist
}

func (m *MemFS) ReadFile(path string) ([]byte, error) {
	data, ok := m.files[path]
	if !ok {
		return nil, fs.ErrNotExist
	}
	return data, nil
}

func (m *MemFS) Stat(path string) (fs.FileInfo, error) {
	if _, ok := m.files[path]; ok {
		return &memFileInfo{name: path}, nil
	}
	return nil, fs.ErrNotExist
}

type memFileInfo struct {
	name string
}

func (f *memFileInfo) Name() string       { return f.name }
func (f *memFileInfo) Size() int64        { return 0 }
func (f *memFileInfo) Mode() fs.FileMode  { return 0644 }
func (f *memFileInfo) ModTime() time.Time { return time.Now() }
func (f *memFileInfo) IsDir() bool        { return false }
func (f *memFileInfo) Sys() any           { return nil }

func TestLoader_ProbeOrder(t *testing.T) {
	memfs := NewMemFS()
	memfs.AddFile("/proj/skiff.yaml", "log_level: warn\n")
	memfs.AddFile("/proj/skiff.lua", `return { log_level = "error" }`)
	l := NewWithFS(memfs)

	path, ok := l.Probe("/proj")
	if !ok {
		t.Fatal("Expected a config file to be found")
	}
	if path != "/proj/skiff.yaml" {
		t.Errorf("Expected yaml before lua, got %q", path)
	}

	memfs.AddFile("/proj/skiff.toml", `log_level = "debug"`)
	path, _ = l.Probe("/proj")
	if path != "/proj/skiff.toml" {
		t.Errorf("Expected toml to win the probe, got %q", path)
	}
}

func TestLoader_ProbeEmptyDir(t *testing.T) {
	l := NewWithFS(NewMemFS())
	if path, ok := l.Probe("/proj"); ok {
		t.Errorf("Expected no config file, got %q", path)
	}
}

func TestLoader_LoadMissingFileReturnsDefaults(t *testing.T) {
	l := NewWithFS(NewMemFS())

	cfg, path, err := l.Load("/proj")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if path != "" {
		t.Errorf("Expected empty path for missing config, got %q", path)
	}
	if cfg.UI.FrameMS != 16 {
		t.Errorf("Expected default frame interval, got %d", cfg.UI.FrameMS)
	}
}

func TestLoader_LoadUsesProbedFile(t *testing.T) {
	memfs := NewMemFS()
	memfs.AddFile("/proj/skiff.toml", `log_level = "debug"`)
	l := NewWithFS(memfs)

	cfg, path, err := l.Load("/proj")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if path != "/proj/skiff.toml" {
		t.Errorf("Expected toml path, got %q", path)
	}
	if cfg.LogLevel != "debug" {
		t.Errorf("Expected log level debug, got %q", cfg.LogLevel)
	}
}

func TestLoader_LoadFileUnsupportedFormat(t *testing.T) {
	memfs := NewMemFS()
	memfs.AddFile("/proj/skiff.ini", "[section]")
	l := NewWithFS(memfs)

	_, err := l.LoadFile("/proj/skiff.ini")
	var perr *ParseError
	if !errors.As(err, &perr) {
		t.Fatalf("Expected *ParseError, got %v", err)
	}
	if perr.Path != "/proj/skiff.ini" {
		t.Errorf("Expected path in error, got %q", perr.Path)
	}
}

func TestLoader_LoadFileMissing(t *testing.T) {
	l := NewWithFS(NewMemFS())

	_, err := l.LoadFile("/proj/skiff.toml")
	if !errors.Is(err, fs.ErrNotExist) {
		t.Errorf("Expected fs.ErrNotExist, got %v", err)
	}
}

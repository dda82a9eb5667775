// Package loader reads editor configuration from disk. It probes a
// directory for a config file in one of the supported formats, decodes
// it over the built-in defaults, and applies SKIFF_* environment
// overrides on top.
package loader

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/dshills/skiff/internal/config"
)

// FileSystem abstracts file access for testing. The os package
// satisfies it through OSFS; tests substitute an in-memory map.
type FileSystem interface {
	fs.FS
	ReadFile(name string) ([]byte, error)
	Stat(name string) (fs.FileInfo, error)
}

// OSFS implements FileSystem against the real filesystem.
type OSFS struct{}

// Open opens a file via os.Open.
func (OSFS) Open(name string) (fs.File, error) { return os.Open(name) }

// ReadFile reads a file via os.ReadFile.
func (OSFS) ReadFile(name string) ([]byte, error) { return os.ReadFile(name) }

// Stat stats a file via os.Stat.
func (OSFS) Stat(name string) (fs.FileInfo, error) { return os.Stat(name) }

// DefaultFS is the FileSystem used by New.
var DefaultFS FileSystem = OSFS{}

// Candidates are the config file names probed in order. The first one
// that exists wins.
var Candidates = []string{"skiff.toml", "skiff.yaml", "skiff.yml", "skiff.lua"}

// ParseError reports a config file that exists but could not be
// decoded. Line and Column are zero when the decoder does not report a
// position.
type ParseError struct {
	Path    string
	Line    int
	Column  int
	Message string
	Err     error
}

func (e *ParseError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("%s:%d:%d: %s", e.Path, e.Line, e.Column, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Path, e.Message)
}

func (e *ParseError) Unwrap() error { return e.Err }

// Loader probes for and decodes config files.
type Loader struct {
	fs FileSystem
}

// New creates a Loader backed by the real filesystem.
func New() *Loader {
	return NewWithFS(DefaultFS)
}

// NewWithFS creates a Loader backed by the given filesystem.
func NewWithFS(fsys FileSystem) *Loader {
	return &Loader{fs: fsys}
}

// Probe returns the path of the config file that Load would use in
// dir, or false when none of the candidates exist.
func (l *Loader) Probe(dir string) (string, bool) {
	for _, name := range Candidates {
		path := filepath.Join(dir, name)
		if info, err := l.fs.Stat(path); err == nil && !info.IsDir() {
			return path, true
		}
	}
	return "", false
}

// Load probes dir for a config file, decodes it over the defaults, and
// applies environment overrides. It returns the resulting config and
// the path of the file used; the path is empty when no file exists,
// which is not an error.
func (l *Loader) Load(dir string) (*config.Config, string, error) {
	path, ok := l.Probe(dir)
	if !ok {
		cfg := config.Default()
		if err := ApplyEnv(cfg); err != nil {
			return nil, "", err
		}
		return cfg, "", nil
	}

	cfg, err := l.LoadFile(path)
	if err != nil {
		return nil, path, err
	}
	if err := ApplyEnv(cfg); err != nil {
		return nil, path, err
	}
	return cfg, path, nil
}

// LoadFile decodes one specific file over the defaults. The format is
// chosen by extension. Environment overrides are not applied.
func (l *Loader) LoadFile(path string) (*config.Config, error) {
	data, err := l.fs.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}

	cfg := config.Default()
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		err = decodeTOML(path, data, cfg)
	case ".yaml", ".yml":
		err = decodeYAML(path, data, cfg)
	case ".lua":
		err = decodeLua(path, data, cfg)
	default:
		err = &ParseError{Path: path, Message: "unsupported config format"}
	}
	if err != nil {
		return nil, err
	}
	return cfg, nil
}

package lsp

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"sort"
	"sync"
	"time"

	"github.com/dshills/skiff/internal/logging"
)

// ResourceLimits bounds a session's command queue and handshake timing.
type ResourceLimits struct {
	QueueDepth      int
	StartupTimeout  time.Duration
	ShutdownTimeout time.Duration
}

const (
	defaultQueueDepth      = 100
	defaultStartupTimeout  = 10 * time.Second
	defaultShutdownTimeout = 5 * time.Second
)

func (l ResourceLimits) withDefaults() ResourceLimits {
	if l.QueueDepth <= 0 {
		l.QueueDepth = defaultQueueDepth
	}
	if l.StartupTimeout <= 0 {
		l.StartupTimeout = defaultStartupTimeout
	}
	if l.ShutdownTimeout <= 0 {
		l.ShutdownTimeout = defaultShutdownTimeout
	}
	return l
}

// ServerConfig describes how to run one language server.
type ServerConfig struct {
	Command   string
	Args      []string
	Enabled   bool
	AutoStart bool
	Limits    ResourceLimits
}

// DefaultServerConfigs returns the built-in server table. User configuration
// overlays these entries.
func DefaultServerConfigs() map[string]ServerConfig {
	return map[string]ServerConfig{
		"go": {
			Command:   "gopls",
			Enabled:   true,
			AutoStart: true,
		},
		"rust": {
			Command:   "rust-analyzer",
			Enabled:   true,
			AutoStart: true,
		},
		"python": {
			Command:   "pyright-langserver",
			Args:      []string{"--stdio"},
			Enabled:   true,
			AutoStart: true,
		},
		"typescript": {
			Command:   "typescript-language-server",
			Args:      []string{"--stdio"},
			Enabled:   true,
			AutoStart: true,
		},
		"javascript": {
			Command:   "typescript-language-server",
			Args:      []string{"--stdio"},
			Enabled:   true,
			AutoStart: true,
		},
		"c": {
			Command:   "clangd",
			Enabled:   true,
			AutoStart: true,
		},
		"cpp": {
			Command:   "clangd",
			Enabled:   true,
			AutoStart: true,
		},
	}
}

// SpawnOutcome reports what TrySpawn did.
type SpawnOutcome int

const (
	// OutcomeAlreadyRunning means a live session exists for the language.
	OutcomeAlreadyRunning SpawnOutcome = iota + 1
	// OutcomeSpawned means a new session was started and initialized.
	OutcomeSpawned
	// OutcomeNotConfigured means no server command is known for the language.
	OutcomeNotConfigured
	// OutcomeDisabled means configuration suppressed the spawn.
	OutcomeDisabled
)

// String returns the string representation of the outcome.
func (o SpawnOutcome) String() string {
	switch o {
	case OutcomeAlreadyRunning:
		return "already-running"
	case OutcomeSpawned:
		return "spawned"
	case OutcomeNotConfigured:
		return "not-configured"
	case OutcomeDisabled:
		return "disabled"
	default:
		return "unknown"
	}
}

// Manager owns at most one session per language and hands out handles to
// them. Session events from every session flow through the single bridge
// given at construction.
type Manager struct {
	mu       sync.Mutex
	handles  map[string]*Handle
	configs  map[string]ServerConfig
	bridge   *Bridge
	logger   *logging.Logger
	rootPath string
}

// ManagerOption configures the manager.
type ManagerOption func(*Manager)

// WithLogger sets the logger for the manager and its sessions.
func WithLogger(logger *logging.Logger) ManagerOption {
	return func(m *Manager) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// WithConfigs overlays server configurations on the built-in table.
func WithConfigs(configs map[string]ServerConfig) ManagerOption {
	return func(m *Manager) {
		for lang, cfg := range configs {
			m.configs[lang] = cfg
		}
	}
}

// WithRootPath sets the workspace root sent during initialization.
func WithRootPath(path string) ManagerOption {
	return func(m *Manager) {
		m.rootPath = path
	}
}

// NewManager creates a manager publishing session events to bridge.
func NewManager(bridge *Bridge, opts ...ManagerOption) *Manager {
	m := &Manager{
		handles: make(map[string]*Handle),
		configs: DefaultServerConfigs(),
		bridge:  bridge,
		logger:  logging.Null,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// TrySpawn ensures a session exists for the language, starting one when
// needed. explicit marks a direct user action, which overrides AutoStart
// but not Enabled. A dead session (failed or terminated) is replaced. The
// zero outcome with a non-nil error means the spawn or handshake failed.
func (m *Manager) TrySpawn(ctx context.Context, language string, explicit bool) (SpawnOutcome, error) {
	m.mu.Lock()
	cfg, ok := m.configs[language]
	if !ok || cfg.Command == "" {
		m.mu.Unlock()
		return OutcomeNotConfigured, nil
	}
	if !cfg.Enabled {
		m.mu.Unlock()
		return OutcomeDisabled, nil
	}
	if !explicit && !cfg.AutoStart {
		m.mu.Unlock()
		return OutcomeDisabled, nil
	}

	if h, exists := m.handles[language]; exists {
		switch h.Status() {
		case StatusFailed, StatusTerminated:
			// Stale handle, replace it.
			delete(m.handles, language)
		default:
			m.mu.Unlock()
			return OutcomeAlreadyRunning, nil
		}
	}

	// Insert before initializing so a concurrent caller sees AlreadyRunning
	// instead of racing a second spawn.
	h := m.newHandleLocked(language, cfg)
	m.mu.Unlock()

	if err := m.initialize(ctx, h, cfg); err != nil {
		m.discard(language, h)
		return 0, err
	}
	m.logger.Info("spawned %s server", language)
	return OutcomeSpawned, nil
}

// ManualRestart tears down any existing session for the language and starts
// a fresh one. The returned string is suitable for the status line.
func (m *Manager) ManualRestart(ctx context.Context, language string) (bool, string) {
	m.mu.Lock()
	cfg, ok := m.configs[language]
	if !ok || cfg.Command == "" {
		m.mu.Unlock()
		return false, fmt.Sprintf("no language server configured for %s", language)
	}
	if !cfg.Enabled {
		m.mu.Unlock()
		return false, fmt.Sprintf("%s language server is disabled", language)
	}
	old := m.handles[language]
	delete(m.handles, language)
	m.mu.Unlock()

	hadOld := old != nil
	if hadOld {
		if err := old.Shutdown(ctx); err != nil {
			m.logger.Warn("shutdown before restart: %v", err)
		}
	}

	m.mu.Lock()
	if _, exists := m.handles[language]; exists {
		// Someone spawned while we were stopping the old session.
		m.mu.Unlock()
		return true, fmt.Sprintf("%s language server restarted", language)
	}
	h := m.newHandleLocked(language, cfg)
	m.mu.Unlock()

	if err := m.initialize(ctx, h, cfg); err != nil {
		m.discard(language, h)
		return false, fmt.Sprintf("failed to start %s language server: %v", language, err)
	}
	if hadOld {
		return true, fmt.Sprintf("%s language server restarted", language)
	}
	return true, fmt.Sprintf("%s language server started", language)
}

// Shutdown stops the session for one language, if any.
func (m *Manager) Shutdown(ctx context.Context, language string) error {
	m.mu.Lock()
	h, ok := m.handles[language]
	delete(m.handles, language)
	m.mu.Unlock()
	if !ok {
		return nil
	}
	return h.Shutdown(ctx)
}

// ShutdownAll stops every session and returns the joined errors.
func (m *Manager) ShutdownAll(ctx context.Context) error {
	m.mu.Lock()
	handles := make([]*Handle, 0, len(m.handles))
	for _, h := range m.handles {
		handles = append(handles, h)
	}
	m.handles = make(map[string]*Handle)
	m.mu.Unlock()

	var errs []error
	for _, h := range handles {
		if err := h.Shutdown(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Handle returns the current handle for the language.
func (m *Manager) Handle(language string) (*Handle, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	h, ok := m.handles[language]
	return h, ok
}

// Configure replaces the configuration for a language. Running sessions are
// not touched; callers decide whether a restart is warranted.
func (m *Manager) Configure(language string, cfg ServerConfig) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.configs[language] = cfg
}

// Config returns the configuration for a language.
func (m *Manager) Config(language string) (ServerConfig, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cfg, ok := m.configs[language]
	return cfg, ok
}

// Running returns the languages with a live session in sorted order. Dead
// sessions that have not been replaced yet are excluded.
func (m *Manager) Running() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	langs := make([]string, 0, len(m.handles))
	for lang, h := range m.handles {
		switch h.Status() {
		case StatusFailed, StatusTerminated:
		default:
			langs = append(langs, lang)
		}
	}
	sort.Strings(langs)
	return langs
}

// Languages returns the configured languages in sorted order.
func (m *Manager) Languages() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	langs := make([]string, 0, len(m.configs))
	for lang := range m.configs {
		langs = append(langs, lang)
	}
	sort.Strings(langs)
	return langs
}

// Available reports whether the configured server binary is on PATH.
func (m *Manager) Available(language string) bool {
	m.mu.Lock()
	cfg, ok := m.configs[language]
	m.mu.Unlock()
	if !ok || cfg.Command == "" {
		return false
	}
	_, err := exec.LookPath(cfg.Command)
	return err == nil
}

func (m *Manager) newHandleLocked(language string, cfg ServerConfig) *Handle {
	s := newSession(language, cfg, m.bridge.Sender(), m.logger)
	s.Start()
	h := newHandle(language, s)
	m.handles[language] = h
	return h
}

func (m *Manager) initialize(ctx context.Context, h *Handle, cfg ServerConfig) error {
	ctx, cancel := context.WithTimeout(ctx, cfg.Limits.withDefaults().StartupTimeout)
	defer cancel()
	return h.Initialize(ctx, FilePathToURI(m.rootPath))
}

// discard removes a handle that never became ready and stops its session.
func (m *Manager) discard(language string, h *Handle) {
	m.mu.Lock()
	if m.handles[language] == h {
		delete(m.handles, language)
	}
	m.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	_ = h.Shutdown(ctx)
}

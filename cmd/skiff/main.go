// Package main is the entry point for the skiff diagnostics console.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/dshills/skiff/internal/app"
	"github.com/dshills/skiff/internal/config"
	"github.com/dshills/skiff/internal/config/loader"
	"github.com/dshills/skiff/internal/config/watcher"
	"github.com/dshills/skiff/internal/logging"
)

// Version information (set via ldflags during build).
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

const shutdownTimeout = 5 * time.Second

func main() {
	os.Exit(run())
}

func run() int {
	opts := parseFlags()

	cfg, cfgPath, err := loadConfig(opts)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	if opts.logLevel != "" {
		cfg.LogLevel = opts.logLevel
	}
	if opts.logFile != "" {
		cfg.LogFile = opts.logFile
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: invalid configuration: %v\n", err)
		return 1
	}

	logger, closeLog, err := newLogger(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	defer closeLog()
	logging.SetDefault(logger)

	application, err := app.New(app.Options{
		Config:     cfg,
		ConfigPath: cfgPath,
		Logger:     logger,
		RootPath:   opts.rootPath,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: failed to initialize: %v\n", err)
		return 1
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := application.Close(ctx); err != nil {
			logger.Warn("shutdown: %v", err)
		}
	}()

	// Reload the config while running whenever the file changes.
	if cfgPath != "" {
		w, err := watcher.New(cfgPath, application.NotifyReload,
			watcher.WithLogger(logger.WithComponent("config")))
		if err != nil {
			logger.Warn("config watch unavailable: %v", err)
		} else {
			defer func() { _ = w.Close() }()
		}
	}

	// SIGINT and SIGTERM cancel the run context for a clean exit.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	openFiles(ctx, application, opts.files, logger)

	if err := application.Run(ctx); err != nil {
		switch {
		case errors.Is(err, app.ErrQuit):
			return 0
		case errors.Is(err, context.Canceled):
			// Signal exit.
			return 0
		default:
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			return 1
		}
	}
	return 0
}

// loadConfig resolves the configuration. An explicit -config path must
// exist; otherwise the workspace root is probed, then the user config
// directory, and no file at all means defaults.
func loadConfig(opts cliOptions) (*config.Config, string, error) {
	ld := loader.New()

	if opts.configPath != "" {
		cfg, err := ld.LoadFile(opts.configPath)
		if err != nil {
			return nil, "", err
		}
		if err := loader.ApplyEnv(cfg); err != nil {
			return nil, "", err
		}
		return cfg, opts.configPath, nil
	}

	dir := opts.rootPath
	if dir == "" {
		dir = "."
	}
	if _, ok := ld.Probe(dir); !ok {
		if ucd, err := os.UserConfigDir(); err == nil {
			sub := filepath.Join(ucd, "skiff")
			if _, ok := ld.Probe(sub); ok {
				dir = sub
			}
		}
	}
	return ld.Load(dir)
}

// newLogger builds the process logger. With a log file configured the
// terminal stays clean; without one, logs go to stderr.
func newLogger(cfg *config.Config) (*logging.Logger, func(), error) {
	lc := logging.Config{Level: cfg.LogLevelValue(), Prefix: "skiff"}
	if cfg.LogFile == "" {
		return logging.New(lc), func() {}, nil
	}
	f, err := os.OpenFile(cfg.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, nil, fmt.Errorf("open log file: %w", err)
	}
	lc.Output = f
	return logging.New(lc), func() { _ = f.Close() }, nil
}

// openFiles adds each argument as a buffer. A path that does not exist
// yet opens as an empty new file.
func openFiles(ctx context.Context, application *app.App, files []string, logger *logging.Logger) {
	for _, path := range files {
		if _, err := application.OpenFile(ctx, path); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				application.AddBuffer(ctx, path, "")
				continue
			}
			logger.Warn("open %s: %v", path, err)
		}
	}
}

type cliOptions struct {
	configPath string
	rootPath   string
	logFile    string
	logLevel   string
	files      []string
}

func parseFlags() cliOptions {
	var opts cliOptions
	var showVersion bool
	var showHelp bool

	flag.StringVar(&opts.configPath, "config", "", "Path to configuration file")
	flag.StringVar(&opts.configPath, "c", "", "Path to configuration file (shorthand)")
	flag.StringVar(&opts.rootPath, "root", "", "Workspace root sent to language servers")
	flag.StringVar(&opts.rootPath, "w", "", "Workspace root (shorthand)")
	flag.StringVar(&opts.logFile, "log", "", "Write logs to this file instead of stderr")
	flag.StringVar(&opts.logLevel, "log-level", "", "Log level (debug, info, warn, error)")
	flag.BoolVar(&showVersion, "version", false, "Show version information")
	flag.BoolVar(&showVersion, "v", false, "Show version information (shorthand)")
	flag.BoolVar(&showHelp, "help", false, "Show help message")
	flag.BoolVar(&showHelp, "h", false, "Show help message (shorthand)")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Skiff - LSP diagnostics console\n\n")
		fmt.Fprintf(os.Stderr, "Usage: skiff [options] [files...]\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  skiff main.go               Open a file\n")
		fmt.Fprintf(os.Stderr, "  skiff -w ./project main.go  Open with an explicit workspace root\n")
		fmt.Fprintf(os.Stderr, "  skiff -log skiff.log        Keep the terminal clean of log output\n")
	}

	flag.Parse()

	if showHelp {
		flag.Usage()
		os.Exit(0)
	}
	if showVersion {
		fmt.Printf("Skiff %s\n", version)
		fmt.Printf("Commit: %s\n", commit)
		fmt.Printf("Built: %s\n", date)
		os.Exit(0)
	}

	if opts.logLevel != "" {
		switch opts.logLevel {
		case "debug", "info", "warn", "error":
		default:
			fmt.Fprintf(os.Stderr, "Error: invalid log level %q (must be debug, info, warn, or error)\n", opts.logLevel)
			os.Exit(1)
		}
	}

	// Remaining arguments are files to open. The workspace root falls
	// back to the first file's directory.
	opts.files = flag.Args()
	if opts.rootPath == "" && len(opts.files) > 0 {
		if abs, err := filepath.Abs(opts.files[0]); err == nil {
			opts.rootPath = filepath.Dir(abs)
		}
	}

	return opts
}

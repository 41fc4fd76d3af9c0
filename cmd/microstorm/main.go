// Package main is the entry point for the Microstorm editor.
package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/gdamore/tcell/v2"

	"github.com/dshills/microstorm/internal/config"
	"github.com/dshills/microstorm/internal/device"
	"github.com/dshills/microstorm/internal/device/flash"
	"github.com/dshills/microstorm/internal/editor"
	"github.com/dshills/microstorm/internal/lint"
	"github.com/dshills/microstorm/internal/logging"
	"github.com/dshills/microstorm/internal/mode"
	"github.com/dshills/microstorm/internal/process"
	"github.com/dshills/microstorm/internal/session"
	"github.com/dshills/microstorm/internal/vfs"
	"github.com/dshills/microstorm/internal/view/term"
)

// Version information (set via ldflags during build).
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

// shutdownTimeout bounds how long child processes get to exit.
const shutdownTimeout = 2 * time.Second

type options struct {
	Debug    bool
	LogLevel string
	File     string
}

func main() {
	os.Exit(run())
}

func run() int {
	opts := parseFlags()

	paths, err := config.DefaultPaths()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}

	prefsPath := config.PreferencesPath(paths.DataDir)
	prefs, prefsErr := config.LoadPreferences(prefsPath)

	logFile := logging.DefaultFileConfig(paths.LogDir)
	logger, closeLog := newLogger(logFile, prefs, opts)
	defer closeLog()

	logger.Info("-----------------")
	logger.Info("Starting microstorm %s (commit %s, built %s)", version, commit, date)
	logger.Info("data directory: %s", paths.DataDir)
	if prefsErr != nil {
		logger.Warn("using default preferences: %v", prefsErr)
	}

	fsys := vfs.NewOSFS()
	if err := fsys.MkdirAll(paths.DataDir, 0o755); err != nil {
		logger.Error("create data directory: %v", err)
	}
	store := session.NewStore(fsys, paths, logger)
	if _, err := store.EnsureWorkspace(); err != nil {
		logger.Error("create workspace: %v", err)
	}

	screen, err := tcell.NewScreen()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: failed to create terminal: %v\n", err)
		return 1
	}
	ui, err := term.New(screen, term.WithLogger(logger))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: failed to initialize terminal: %v\n", err)
		return 1
	}
	defer ui.Close()

	// python is assigned before any process can start, so the exit
	// callback never observes it unset.
	var python *mode.PythonMode
	supervisor := process.NewSupervisor(process.WithProcessExitCallback(func(p *process.Process) {
		python.ProcessExited(p)
	}))
	defer supervisor.Shutdown(shutdownTimeout)

	boards := device.DefaultBoards()
	for _, b := range prefs.Boards {
		boards = append(boards, device.Board{Name: b.Name, VendorID: b.VendorID, ProductID: b.ProductID})
	}
	mediator := device.NewMediator(device.NewFinder(boards), ui,
		device.WithWorkspace(store.WorkspaceDir),
		device.WithMediatorLogger(logger),
	)

	base := mode.Base{View: ui, Workspace: store.WorkspaceDir, Logger: logger}

	var ed *editor.Editor
	python = mode.NewPythonMode(base, supervisor, prefs.Python, func() { ed.Save() })
	microbit := mode.NewMicroBitMode(base, mode.MicroBitConfig{
		Channels:       mediator,
		Volumes:        flash.New(),
		Files:          fsys,
		DefaultRuntime: paths.DefaultRuntimeHex(),
		HomeDir:        paths.HomeDir,
	})

	registry := mode.NewRegistry(ui, mode.WithLogger(logger))
	registry.Register(python, microbit)

	runner := process.NewExecRunner()
	checker := lint.NewChecker(runner,
		lint.WithPython(prefs.Python),
		lint.WithStyleModule(prefs.StyleModule),
		lint.WithAnalyzer(lint.NewPyflakesAnalyzer(runner, prefs.Python)),
		lint.WithLogger(logger),
	)

	exitCode := 0
	ed = editor.New(ui, registry, store, checker,
		editor.WithFS(fsys),
		editor.WithLogger(logger),
		editor.WithRuntime(microbit),
		editor.WithHelp(prefs.HelpURL, version),
		editor.WithLogFile(logFile.Path()),
		editor.WithExit(func(code int) {
			exitCode = code
			ui.Stop()
		}),
	)

	watcher, err := config.NewWatcher(prefsPath, func(p config.Preferences, err error) {
		if err != nil {
			logger.Warn("preferences not reloaded: %v", err)
			return
		}
		if opts.LogLevel == "" && !opts.Debug {
			logger.SetLevel(logging.ParseLevel(p.LogLevel))
		}
		logger.Info("preferences reloaded from %s, log level %s", prefsPath, logger.Level())
	})
	if err != nil {
		logger.Warn("not watching preferences: %v", err)
	} else {
		defer func() { _ = watcher.Close() }()
	}

	// Handle signals for graceful shutdown
	var interrupted atomic.Bool
	signals := make(chan os.Signal, 1)
	signal.Notify(signals, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(signals)

	go func() {
		for sig := range signals {
			logger.Info("received %s, shutting down", sig)
			interrupted.Store(true)
			ui.Stop()
		}
	}()

	ed.RestoreSession(opts.File)
	ui.Run()

	if interrupted.Load() {
		if err := ed.SaveSession(); err != nil {
			logger.Error("save session: %v", err)
		}
		registry.Shutdown()
	}
	logger.Info("exiting with status %d", exitCode)
	return exitCode
}

// newLogger writes to the rotating log file. The terminal owns stderr, so a
// log file that cannot be opened disables logging. The returned func closes
// the file.
func newLogger(fc logging.FileConfig, prefs config.Preferences, opts options) (*logging.Logger, func()) {
	level := logging.ParseLevel(prefs.LogLevel)
	if opts.LogLevel != "" {
		level = logging.ParseLevel(opts.LogLevel)
	}
	if opts.Debug {
		level = logging.LevelDebug
	}

	var out io.Writer = io.Discard
	closeFn := func() {}
	f, err := logging.OpenFile(fc)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: logging disabled: %v\n", err)
	} else {
		out = f
		closeFn = func() { _ = f.Close() }
	}

	return logging.New(logging.Config{Level: level, Output: out, Prefix: "microstorm"}), closeFn
}

func parseFlags() options {
	var opts options
	var showVersion bool
	var showHelp bool

	flag.BoolVar(&opts.Debug, "debug", false, "Enable debug logging")
	flag.BoolVar(&opts.Debug, "d", false, "Enable debug logging (shorthand)")
	flag.StringVar(&opts.LogLevel, "log-level", "", "Log level (debug, info, warn, error); overrides preferences")
	flag.BoolVar(&showVersion, "version", false, "Show version information")
	flag.BoolVar(&showVersion, "v", false, "Show version information (shorthand)")
	flag.BoolVar(&showHelp, "help", false, "Show help message")
	flag.BoolVar(&showHelp, "h", false, "Show help message (shorthand)")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Microstorm - a simple Python editor for beginner programmers\n\n")
		fmt.Fprintf(os.Stderr, "Usage: microstorm [options] [file]\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  microstorm                  Restore the previous session\n")
		fmt.Fprintf(os.Stderr, "  microstorm blink.py         Restore the session and open a file\n")
		fmt.Fprintf(os.Stderr, "  microstorm firmware.hex     Open the script embedded in a hex image\n")
	}

	flag.Parse()

	if showHelp {
		flag.Usage()
		os.Exit(0)
	}

	if showVersion {
		fmt.Printf("Microstorm %s\n", version)
		fmt.Printf("Commit: %s\n", commit)
		fmt.Printf("Built: %s\n", date)
		os.Exit(0)
	}

	switch opts.LogLevel {
	case "", "debug", "info", "warn", "error":
	default:
		fmt.Fprintf(os.Stderr, "Error: invalid log level %q (must be debug, info, warn, or error)\n", opts.LogLevel)
		os.Exit(1)
	}

	if flag.NArg() > 1 {
		fmt.Fprintf(os.Stderr, "Error: expected at most one file, got %d\n", flag.NArg())
		os.Exit(1)
	}
	opts.File = flag.Arg(0)

	return opts
}

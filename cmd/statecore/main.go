// Statecore is a rule-driven character-state simulator with a line console
// and a terminal UI.
// Usage: statecore [--version] [--config <file>] [--plain] [--script <file>] [--trace] [ruleset]
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/mattn/go-isatty"
	"github.com/rs/zerolog"

	"github.com/nathoo/statecore/cli"
	"github.com/nathoo/statecore/config"
	"github.com/nathoo/statecore/engine"
	"github.com/nathoo/statecore/engine/events"
	"github.com/nathoo/statecore/engine/save"
	"github.com/nathoo/statecore/loader"
	"github.com/nathoo/statecore/storage/postgres"
	"github.com/nathoo/statecore/storage/sqlite"
	"github.com/nathoo/statecore/tui"
)

// Set via -ldflags at build time.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

const usage = "Usage: statecore [--version] [--config <file>] [--plain] [--script <file>] [--trace] [ruleset]"

type flags struct {
	configPath string
	ruleset    string
	scriptFile string
	plain      bool
	trace      bool
}

func main() {
	var f flags
	args := os.Args[1:]
	for i := 0; i < len(args); i++ {
		switch args[i] {
		case "--version":
			fmt.Printf("statecore %s (commit %s, built %s)\n", version, commit, date)
			return
		case "--plain":
			f.plain = true
		case "--trace":
			f.trace = true
		case "--script", "--config":
			if i+1 >= len(args) {
				fmt.Fprintf(os.Stderr, "%s requires a file path\n", args[i])
				os.Exit(1)
			}
			if args[i] == "--script" {
				f.scriptFile = args[i+1]
			} else {
				f.configPath = args[i+1]
			}
			i++
		case "-h", "--help":
			fmt.Println(usage)
			return
		default:
			if f.ruleset == "" {
				f.ruleset = args[i]
			}
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := run(ctx, f)
	stop()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, f flags) error {
	cfg, err := config.Load(f.configPath)
	if err != nil {
		return err
	}
	if f.ruleset != "" {
		cfg.Ruleset = f.ruleset
	}
	interactive := f.scriptFile == "" && !f.plain && !cfg.Plain && isTerminal()

	log, closeLog, err := newLogger(cfg.Log, interactive)
	if err != nil {
		return err
	}
	defer closeLog()

	rs, err := loader.Load(cfg.Ruleset, log)
	if err != nil {
		return fmt.Errorf("loading ruleset: %w", err)
	}

	store, err := openStore(ctx, cfg.Storage)
	if err != nil {
		return err
	}
	defer store.Close()

	d := &events.Dispatcher{}
	opts := []engine.Option{
		engine.WithLogger(log),
		engine.WithStrict(cfg.Engine.Strict),
		engine.WithDispatcher(d),
	}
	if cfg.Engine.Seed != 0 {
		opts = append(opts, engine.WithSeed(cfg.Engine.Seed))
	}
	eng := engine.New(rs, opts...)

	s := cli.NewSession(eng, store, d)
	s.Ailments = cfg.Ailments
	s.Durability = cfg.Durability.Options()
	s.TickSeconds = cfg.Engine.TickSeconds
	s.Trace = f.trace
	s.Log = log

	n, err := s.LoadCharacters(ctx)
	if err != nil {
		return err
	}
	log.Info().Int("characters", n).Str("driver", cfg.Storage.Driver).Msg("characters loaded")

	// Script mode: read the file, echo commands.
	if f.scriptFile != "" {
		script, err := os.Open(f.scriptFile)
		if err != nil {
			return fmt.Errorf("opening script: %w", err)
		}
		defer script.Close()
		c := cli.New(s)
		c.In = script
		c.EchoInput = true
		c.Run(ctx)
		return nil
	}

	if !interactive {
		cli.New(s).Run(ctx)
		return nil
	}
	return tui.Run(ctx, s)
}

// newLogger builds the zerolog logger. The TUI owns the terminal, so in
// interactive mode logs go to a file under ~/.statecore.
func newLogger(c config.Log, interactive bool) (zerolog.Logger, func(), error) {
	level, err := zerolog.ParseLevel(c.Level)
	if err != nil {
		return zerolog.Nop(), nil, fmt.Errorf("log level: %w", err)
	}

	var out io.Writer = os.Stderr
	closeFn := func() {}
	if interactive {
		home, _ := os.UserHomeDir()
		path := filepath.Join(home, ".statecore", "statecore.log")
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return zerolog.Nop(), nil, err
		}
		file, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			return zerolog.Nop(), nil, fmt.Errorf("opening log file: %w", err)
		}
		out = file
		closeFn = func() { file.Close() }
	}
	if c.Format == "console" {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: time.Kitchen, NoColor: interactive}
	}
	return zerolog.New(out).Level(level).With().Timestamp().Logger(), closeFn, nil
}

func openStore(ctx context.Context, c config.Storage) (save.Store, error) {
	switch c.Driver {
	case config.DriverSQLite:
		return sqlite.Open(ctx, c.SQLitePath)
	case config.DriverPostgres:
		return postgres.Open(ctx, c.PostgresDSN)
	default:
		return save.NewMemoryStore(), nil
	}
}

// isTerminal reports whether stdout is a terminal (not piped/redirected).
func isTerminal() bool {
	fd := os.Stdout.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

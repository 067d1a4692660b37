// Package commands implements the corpusbuild command line.
package commands

import (
	"io"
	"log/slog"
	"os"

	"github.com/fatih/color"
	"golang.org/x/term"

	"git.home.luguber.info/inful/corpusbuild/internal/config"
	"git.home.luguber.info/inful/corpusbuild/internal/observability"
)

// Global carries state shared by every command.
type Global struct {
	Logger *slog.Logger
	Stdout io.Writer

	closeLog func() error
}

// Close releases the log file, if any.
func (g *Global) Close() error {
	if g.closeLog == nil {
		return nil
	}
	return g.closeLog()
}

// CLI is the command tree and the global flags.
type CLI struct {
	Project string `short:"p" help:"Project root directory" default:"." type:"path"`
	Config  string `short:"c" help:"Settings file (default: <project>/corpusbuild.yaml)" type:"path"`
	Verbose bool   `short:"v" help:"Enable debug logging"`
	Color   string `help:"Colorize output (auto|always|never)" enum:"auto,always,never" default:"auto"`

	Build   BuildCmd   `cmd:"" help:"Build the corpus once"`
	Watch   WatchCmd   `cmd:"" help:"Build, then rebuild on every source change"`
	Init    InitCmd    `cmd:"" help:"Write an example settings file"`
	Version VersionCmd `cmd:"" help:"Show version information"`
}

// AfterApply configures color output once flags are parsed.
func (c *CLI) AfterApply() error {
	switch c.Color {
	case "always":
		color.NoColor = false
	case "never":
		color.NoColor = true
	default:
		color.NoColor = !term.IsTerminal(int(os.Stdout.Fd()))
	}
	return nil
}

// loadConfig reads the project settings and installs the session logger.
func (c *CLI) loadConfig(g *Global) (*config.Config, error) {
	cfg, err := config.Load(c.Project, c.Config)
	if err != nil {
		return nil, err
	}
	level := cfg.Logging.Level.SlogLevel()
	if c.Verbose {
		level = slog.LevelDebug
	}
	logger, closeLog := observability.Setup(observability.Options{
		Level: level,
		JSON:  cfg.Logging.Format == config.LogFormatJSON,
		File:  cfg.Logging.File,
	})
	slog.SetDefault(logger)
	g.Logger, g.closeLog = logger, closeLog
	logger.Debug("Configuration loaded", slog.String("config", cfg.String()))
	return cfg, nil
}

func (g *Global) stdout() io.Writer {
	if g.Stdout != nil {
		return g.Stdout
	}
	return os.Stdout
}

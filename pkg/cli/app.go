// Package cli implements the sitebuild commands.
package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/sitebuild/sitebuild/pkg/config"
	"github.com/sitebuild/sitebuild/pkg/constants"
	"github.com/sitebuild/sitebuild/pkg/logger"
	"github.com/sitebuild/sitebuild/pkg/metrics"
	"github.com/sitebuild/sitebuild/pkg/orchestrator"
	"github.com/sitebuild/sitebuild/pkg/pipeline"
	"github.com/sitebuild/sitebuild/pkg/tasks"
)

var appLog = logger.New("cli:app")

// App carries the global flags shared by every command.
type App struct {
	ConfigPath string
	// ConfigRequired is set when the config path was given explicitly; a
	// missing file is then an error instead of falling back to defaults.
	ConfigRequired bool
	Dir            string
	Verbose        bool

	// Runner and Server replace the external tools and the dev server.
	Runner pipeline.CommandRunner
	Server tasks.DevServer

	// Stdout receives command output and Stderr progress messages.
	Stdout io.Writer
	Stderr io.Writer
}

// Session is a loaded configuration with every task registered.
type Session struct {
	Config       config.Config
	Orchestrator *orchestrator.Orchestrator
	Metrics      *metrics.Collector
}

// NewApp returns an App with default flag values.
func NewApp() *App {
	return &App{
		ConfigPath: constants.DefaultConfigFile,
		Stdout:     os.Stdout,
		Stderr:     os.Stderr,
	}
}

// AddFlags registers the global flags on cmd.
func (a *App) AddFlags(cmd *cobra.Command) {
	flags := cmd.PersistentFlags()
	flags.StringVarP(&a.ConfigPath, "config", "c", constants.DefaultConfigFile, "Configuration file")
	flags.StringVarP(&a.Dir, "dir", "C", "", "Change to this directory before doing anything")
	flags.BoolVarP(&a.Verbose, "verbose", "v", false, "Print run details")
}

// Load changes to the project directory, reads the configuration and
// registers the site tasks.
func (a *App) Load(cmd *cobra.Command) (*Session, error) {
	if cmd != nil {
		if f := cmd.Flags().Lookup("config"); f != nil && f.Changed {
			a.ConfigRequired = true
		}
	}

	if a.Dir != "" {
		appLog.Printf("Changing directory to %s", a.Dir)
		if err := os.Chdir(a.Dir); err != nil {
			return nil, fmt.Errorf("failed to change directory: %w", err)
		}
	}

	cfg, err := config.Load(a.ConfigPath, !a.ConfigRequired)
	if err != nil {
		return nil, err
	}

	collector := metrics.NewCollector()
	o := orchestrator.New(
		orchestrator.WithObserver(newConsoleObserver(a.stderr(), a.Verbose)),
		orchestrator.WithObserver(collector),
		orchestrator.WithDebounce(cfg.Debounce()),
	)
	tasks.Register(o, tasks.Options{
		Config:  cfg,
		Runner:  a.Runner,
		Server:  a.Server,
		Metrics: collector.Handler(),
	})
	appLog.Printf("Loaded %d tasks", len(o.Tasks()))

	return &Session{Config: cfg, Orchestrator: o, Metrics: collector}, nil
}

func (a *App) stdout() io.Writer {
	if a.Stdout == nil {
		return os.Stdout
	}
	return a.Stdout
}

func (a *App) stderr() io.Writer {
	if a.Stderr == nil {
		return os.Stderr
	}
	return a.Stderr
}

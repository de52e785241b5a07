package main

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/aristath/forge/internal/config"
	"github.com/aristath/forge/internal/ctxlog"
)

// errBuildFailed is returned when the build completed with unbuilt artifacts.
var errBuildFailed = errors.New("build failed")

// app holds the state shared by all subcommands.
type app struct {
	v      *viper.Viper
	stdout io.Writer
	stderr io.Writer
}

func newRootCmd(stdout, stderr io.Writer) *cobra.Command {
	a := &app{v: viper.New(), stdout: stdout, stderr: stderr}

	root := &cobra.Command{
		Use:   "forge",
		Short: "Incremental parallel build tool",
		Long: `forge builds an artifact and everything it depends on, running
independent build steps in parallel and skipping artifacts that are
already newer than their dependencies.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetOut(stdout)
	root.SetErr(stderr)

	flags := root.PersistentFlags()
	flags.StringP("config", "c", "", "project config file (default .forge/config.json)")
	flags.String("log-level", "", "log level: debug, info, warn or error")
	flags.String("log-format", "", "log format: text or json")
	flags.String("history", "", "run history database path")
	for _, name := range []string{"config", "log-level", "log-format", "history"} {
		_ = a.v.BindPFlag(name, flags.Lookup(name))
	}

	// e.g. FORGE_LOG_LEVEL for log-level
	a.v.SetEnvPrefix("FORGE")
	a.v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	a.v.AutomaticEnv()

	root.AddCommand(
		a.newBuildCmd(),
		a.newPlanCmd(),
		a.newHistoryCmd(),
		a.newInitCmd(),
	)
	return root
}

// configPaths returns the global and project config paths, honoring --config.
func (a *app) configPaths() (globalPath, projectPath string, err error) {
	globalPath, projectPath, err = config.DefaultPaths()
	if err != nil {
		return "", "", err
	}
	if p := a.v.GetString("config"); p != "" {
		projectPath = p
	}
	return globalPath, projectPath, nil
}

// loadConfig loads the layered config files and applies flag and
// environment overrides.
func (a *app) loadConfig() (*config.ForgeConfig, error) {
	globalPath, projectPath, err := a.configPaths()
	if err != nil {
		return nil, err
	}

	cfg, err := config.Load(globalPath, projectPath)
	if err != nil {
		return nil, err
	}

	if s := a.v.GetString("log-level"); s != "" {
		cfg.LogLevel = s
	}
	if s := a.v.GetString("log-format"); s != "" {
		cfg.LogFormat = s
	}
	if s := a.v.GetString("history"); s != "" {
		cfg.HistoryPath = s
	}
	if n := a.v.GetInt("jobs"); n > 0 {
		cfg.Jobs = n
	}
	return cfg, nil
}

// withLogger returns ctx carrying a logger configured from cfg and writing to w.
func withLogger(ctx context.Context, cfg *config.ForgeConfig, w io.Writer) (context.Context, *slog.Logger) {
	logger := ctxlog.New(cfg.LogLevel, cfg.LogFormat, w)
	return ctxlog.WithLogger(ctx, logger), logger
}

// openLogFile opens the log file used while the terminal UI owns the screen.
func openLogFile() (*os.File, error) {
	path := filepath.Join(config.Dir, "forge.log")
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, err
	}
	return os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
}

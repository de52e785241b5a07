package main

import (
	"context"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/aristath/forge/internal/action"
	"github.com/aristath/forge/internal/build"
	"github.com/aristath/forge/internal/config"
	"github.com/aristath/forge/internal/ctxlog"
	"github.com/aristath/forge/internal/events"
	"github.com/aristath/forge/internal/persistence"
	"github.com/aristath/forge/internal/report"
	"github.com/aristath/forge/internal/tui"
)

func (a *app) newBuildCmd() *cobra.Command {
	var (
		useTUI    bool
		verbose   bool
		noHistory bool
	)

	cmd := &cobra.Command{
		Use:   "build [target]",
		Short: "Build a target and its dependencies",
		Long: `Build the given target, or the configured default target, after
bringing every artifact it depends on up to date.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := a.loadConfig()
			if err != nil {
				return err
			}

			target := ""
			if len(args) == 1 {
				target = args[0]
			}
			req := cfg.Request(target, 0)
			if req.Root == "" {
				return fmt.Errorf("no target given and no default configured")
			}

			opts := buildOptions{tui: useTUI, verbose: verbose, history: !noHistory}
			return a.runBuild(cmd.Context(), cfg, req, opts)
		},
	}

	cmd.Flags().IntP("jobs", "j", 0, "number of parallel workers (default from config)")
	_ = a.v.BindPFlag("jobs", cmd.Flags().Lookup("jobs"))
	cmd.Flags().BoolVar(&useTUI, "tui", false, "show a live terminal UI")
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "print the output of every action")
	cmd.Flags().BoolVar(&noHistory, "no-history", false, "do not record the run in the history database")

	return cmd
}

type buildOptions struct {
	tui     bool
	verbose bool
	history bool
}

func (a *app) runBuild(ctx context.Context, cfg *config.ForgeConfig, req build.Request, opts buildOptions) error {
	logOut := a.stderr
	if opts.tui {
		f, err := openLogFile()
		if err != nil {
			return fmt.Errorf("opening log file: %w", err)
		}
		defer f.Close()
		logOut = f
	}
	ctx, logger := withLogger(ctx, cfg, logOut)

	// Kill all tracked subprocesses on shutdown signal
	procs := action.NewProcessManager()
	stopKill := context.AfterFunc(ctx, func() {
		logger.Warn("shutdown signal received, killing subprocesses")
		if err := procs.KillAll(); err != nil {
			logger.Error("error killing subprocesses", "error", err)
		}
	})
	defer stopKill()

	var reporters report.Tee
	if opts.history {
		store, err := persistence.NewSQLiteStore(ctx, cfg.HistoryPath)
		if err != nil {
			logger.Warn("run history disabled", "path", cfg.HistoryPath, "error", err)
		} else {
			defer store.Close()
			// Keep recording after cancellation so interrupted runs are logged.
			reporters = append(reporters, persistence.NewRecorder(context.WithoutCancel(ctx), store, req.Root))
		}
	}

	runner := func(rep report.Reporter) *build.Runner {
		return build.NewRunner(build.RunnerConfig{
			Reporter: append(report.Tee{rep}, reporters...),
			Procs:    procs,
			Retry:    cfg.RetryConfig(),
			Breaker:  cfg.BreakerConfig(),
		})
	}

	if opts.tui {
		return a.runWithTUI(ctx, req, runner)
	}

	res, err := runner(report.NewConsole(a.stdout, opts.verbose)).Run(ctx, req)
	if err != nil {
		return err
	}
	if !res.Success {
		return errBuildFailed
	}
	return nil
}

// runWithTUI runs the build in the background while the terminal UI shows its
// progress. Quitting the UI cancels the build.
func (a *app) runWithTUI(ctx context.Context, req build.Request, runner func(report.Reporter) *build.Runner) error {
	logger := ctxlog.FromContext(ctx)

	bus := events.NewEventBus()
	model := tui.New(bus, req.Root)
	defer model.Close()

	buildCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	type outcome struct {
		res build.Result
		err error
	}
	done := make(chan outcome, 1)
	go func() {
		res, err := runner(events.NewBusReporter(bus)).Run(buildCtx, req)
		bus.Close()
		done <- outcome{res, err}
	}()

	p := tea.NewProgram(model, tea.WithAltScreen(), tea.WithOutput(a.stdout))
	stopQuit := context.AfterFunc(ctx, p.Quit)
	defer stopQuit()

	if _, err := p.Run(); err != nil {
		logger.Error("terminal UI exited with error", "error", err)
	}

	// The UI is gone; stop any work still in flight.
	cancel()
	out := <-done
	if out.err != nil {
		return out.err
	}

	summary := report.NewConsole(a.stdout, false)
	summary.End(out.res.Success, out.res.LeftOver)
	if !out.res.Success {
		return errBuildFailed
	}
	return nil
}

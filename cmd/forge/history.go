package main

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/aristath/forge/internal/persistence"
)

func (a *app) newHistoryCmd() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "history [run-id]",
		Short: "List recent builds or show one build in detail",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := a.loadConfig()
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			store, err := persistence.NewSQLiteStore(ctx, cfg.HistoryPath)
			if err != nil {
				return fmt.Errorf("opening history: %w", err)
			}
			defer store.Close()

			if len(args) == 0 {
				runs, err := store.ListRuns(ctx, limit)
				if err != nil {
					return err
				}
				printRuns(a.stdout, runs)
				return nil
			}

			run, err := findRun(ctx, store, args[0])
			if err != nil {
				return err
			}
			printRun(a.stdout, run)
			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "number of runs to list (0 for all)")
	return cmd
}

// findRun resolves a full run ID or a unique prefix of one.
func findRun(ctx context.Context, store persistence.Store, id string) (*persistence.Run, error) {
	runs, err := store.ListRuns(ctx, 0)
	if err != nil {
		return nil, err
	}

	var match string
	for _, run := range runs {
		if run.ID == id {
			match = id
			break
		}
		if strings.HasPrefix(run.ID, id) {
			if match != "" {
				return nil, fmt.Errorf("run ID prefix %q is ambiguous", id)
			}
			match = run.ID
		}
	}
	if match == "" {
		return nil, fmt.Errorf("%w: %s", persistence.ErrRunNotFound, id)
	}
	return store.GetRun(ctx, match)
}

func runStatus(run *persistence.Run) string {
	switch {
	case !run.Finished:
		return "unfinished"
	case run.Success:
		return "ok"
	default:
		return "failed"
	}
}

func printRuns(w io.Writer, runs []*persistence.Run) {
	if len(runs) == 0 {
		fmt.Fprintln(w, "No builds recorded.")
		return
	}
	for _, run := range runs {
		fmt.Fprintf(w, "%-8s  %-10s  %-16s  %s\n",
			run.ID[:min(8, len(run.ID))], runStatus(run), humanize.Time(run.StartedAt), run.Root)
	}
}

func printRun(w io.Writer, run *persistence.Run) {
	fmt.Fprintf(w, "Run:       %s\n", run.ID)
	fmt.Fprintf(w, "Target:    %s\n", run.Root)
	fmt.Fprintf(w, "Status:    %s\n", runStatus(run))
	fmt.Fprintf(w, "Started:   %s (%s)\n", run.StartedAt.Format("2006-01-02 15:04:05"), humanize.Time(run.StartedAt))
	if run.Finished {
		fmt.Fprintf(w, "Took:      %s\n", run.FinishedAt.Sub(run.StartedAt))
	}
	fmt.Fprintf(w, "Artifacts: %s\n", humanize.Comma(int64(len(run.Artifacts))))

	if len(run.Tasks) > 0 {
		fmt.Fprintln(w, "\nActions:")
		for _, task := range run.Tasks {
			status := fmt.Sprintf("status %d", task.Status)
			if task.Error != "" {
				status = task.Error
			}
			fmt.Fprintf(w, "  %-20s %s (%s, %s output)\n",
				task.Artifact, task.Action, status, humanize.Bytes(uint64(len(task.Output))))
		}
	}
	if len(run.Missing) > 0 {
		fmt.Fprintf(w, "\nMissing:   %s\n", strings.Join(run.Missing, " "))
	}
	if len(run.LeftOver) > 0 {
		fmt.Fprintf(w, "Not built: %s\n", strings.Join(run.LeftOver, " "))
	}
}

package main

import (
	"fmt"
	"io"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/aristath/forge/internal/action"
	"github.com/aristath/forge/internal/build"
	"github.com/aristath/forge/internal/scheduler"
)

var (
	styleBuild = lipgloss.NewStyle().Foreground(lipgloss.Color("yellow")).Bold(true)
	styleSkip  = lipgloss.NewStyle().Foreground(lipgloss.Color("green"))
	styleDim   = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
)

func (a *app) newPlanCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "plan [target]",
		Short: "Show what a build would do without running it",
		Long: `Print the artifacts of the target's graph in dependency order, marking
the ones that are out of date and the commands that would rebuild them.
The prediction assumes every action succeeds.`,
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
			return printPlan(a.stdout, cfg.Request(target, 0))
		},
	}
}

// printPlan writes the dry-run plan of req to w.
func printPlan(w io.Writer, req build.Request) error {
	gb := scheduler.GraphBuilder{Depends: req.Depends, Builds: req.Builds}
	graph, err := gb.Build(req.Root)
	if err != nil {
		return err
	}

	vars, err := action.NewContext(req.Context)
	if err != nil {
		return fmt.Errorf("invalid build context: %w", err)
	}

	order, err := graph.Order()
	if err != nil {
		return err
	}

	stale := 0
	for _, name := range order {
		n, _ := graph.Node(name)

		// Walking in dependency order propagates staleness exactly as a
		// successful build would.
		if !graph.ShouldBuild(n) {
			fmt.Fprintf(w, "%s %s\n", styleSkip.Render("skip "), name)
			continue
		}

		stale++
		fmt.Fprintf(w, "%s %s\n", styleBuild.Render("build"), name)
		for _, act := range n.Actions {
			text := act.String()
			if act.Kind == action.KindCommand {
				if expanded, err := vars.Expand(act.Template); err == nil {
					text = expanded
				}
			}
			fmt.Fprintf(w, "      %s\n", styleDim.Render("$ "+text))
		}
	}

	fmt.Fprintf(w, "%d of %d artifacts out of date\n", stale, len(order))
	return nil
}

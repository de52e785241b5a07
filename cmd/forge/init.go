package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/aristath/forge/internal/config"
	"github.com/aristath/forge/internal/tui"
)

func (a *app) newInitCmd() *cobra.Command {
	var (
		interactive bool
		force       bool
	)

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a starter build configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			globalPath, projectPath, err := a.configPaths()
			if err != nil {
				return err
			}

			answers := tui.InitAnswers{Target: "!all", Jobs: 1, SaveTarget: "project"}
			if interactive {
				if answers, err = tui.RunInitForm(globalPath, projectPath); err != nil {
					return err
				}
			}

			path := answers.Path(globalPath, projectPath)
			if _, err := os.Stat(path); err == nil && !force {
				return fmt.Errorf("%s already exists (use --force to overwrite)", path)
			}

			if err := config.Save(answers.Config(), path); err != nil {
				return err
			}
			fmt.Fprintf(a.stdout, "Wrote %s\n", path)
			return nil
		},
	}

	cmd.Flags().BoolVarP(&interactive, "interactive", "i", false, "choose settings in a form")
	cmd.Flags().BoolVarP(&force, "force", "f", false, "overwrite an existing config")
	return cmd
}

package tui

import (
	"fmt"
	"strconv"

	"github.com/charmbracelet/huh"

	"github.com/aristath/forge/internal/config"
)

// InitAnswers holds the choices made in the init form.
type InitAnswers struct {
	Target     string
	Jobs       int
	SaveTarget string // "global" or "project"
}

// Path returns the config path selected by SaveTarget.
func (a InitAnswers) Path(globalPath, projectPath string) string {
	if a.SaveTarget == "global" {
		return globalPath
	}
	return projectPath
}

// Config returns the starter configuration for the answers.
func (a InitAnswers) Config() *config.ForgeConfig {
	return config.ExampleConfig(a.Target, a.Jobs)
}

// RunInitForm asks for the starter project settings on the terminal.
func RunInitForm(globalPath, projectPath string) (InitAnswers, error) {
	answers := InitAnswers{SaveTarget: "project"}
	target := "!all"
	jobs := "1"

	form := huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[string]().
				Key("saveTarget").
				Title("Save To").
				Options(
					huh.NewOption(fmt.Sprintf("Project (%s)", projectPath), "project"),
					huh.NewOption(fmt.Sprintf("Global (%s)", globalPath), "global"),
				).
				Value(&answers.SaveTarget),
		).Title("Save Target"),

		huh.NewGroup(
			huh.NewInput().
				Key("target").
				Title("Default Target").
				Description("Prefix with ! for a target that is never a file").
				Value(&target).
				Placeholder("!all").
				Validate(func(s string) error {
					if s == "" {
						return fmt.Errorf("target must not be empty")
					}
					return nil
				}),

			huh.NewInput().
				Key("jobs").
				Title("Parallel Jobs").
				Value(&jobs).
				Placeholder("1").
				Validate(validateJobs),
		).Title("Build Settings"),
	)

	if err := form.Run(); err != nil {
		return InitAnswers{}, err
	}

	answers.Target = target
	answers.Jobs, _ = strconv.Atoi(jobs)
	return answers, nil
}

func validateJobs(s string) error {
	n, err := strconv.Atoi(s)
	if err != nil || n < 1 {
		return fmt.Errorf("jobs must be a positive integer")
	}
	return nil
}

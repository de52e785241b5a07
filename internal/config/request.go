package config

import (
	"github.com/aristath/forge/internal/action"
	"github.com/aristath/forge/internal/build"
	"github.com/aristath/forge/internal/scheduler"
)

// Request turns the configured tables into a build request for root.
// An empty root selects the configured default.
func (c *ForgeConfig) Request(root string, jobs int) build.Request {
	if root == "" {
		root = c.Default
	}
	if jobs < 1 {
		jobs = c.Jobs
	}

	depends := make(scheduler.DependencyTable, len(c.Depends))
	for name, deps := range c.Depends {
		depends[name] = append([]string(nil), deps...)
	}

	builds := make(scheduler.BuildTable, len(c.Builds))
	for name, entries := range c.Builds {
		actions := make([]action.Action, 0, len(entries))
		for _, entry := range entries {
			actions = append(actions, entry.Action())
		}
		builds[name] = actions
	}

	return build.Request{
		Context: c.Context,
		Depends: depends,
		Builds:  builds,
		Root:    root,
		Jobs:    jobs,
	}
}

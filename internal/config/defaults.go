package config

// DefaultConfig returns the built-in configuration: one worker, info-level
// text logs, history under .forge/, and empty build tables.
func DefaultConfig() *ForgeConfig {
	return &ForgeConfig{
		Jobs:        1,
		LogLevel:    "info",
		LogFormat:   "text",
		HistoryPath: ".forge/history.db",
		Context:     map[string]string{},
		Depends:     map[string][]string{},
		Builds:      map[string][]ActionConfig{},
	}
}

// ExampleConfig returns the starter project written by "forge init".
func ExampleConfig(target string, jobs int) *ForgeConfig {
	if target == "" {
		target = "!all"
	}
	if jobs < 1 {
		jobs = 1
	}

	cfg := DefaultConfig()
	cfg.Jobs = jobs
	cfg.Default = target
	cfg.Context = map[string]string{
		"out": "build",
	}
	cfg.Depends = map[string][]string{
		target: {"build/.stamp"},
	}
	cfg.Builds = map[string][]ActionConfig{
		"build/.stamp": {
			{Func: "mkdir", Args: []string{"build"}},
			{Func: "touch", Args: []string{"build/.stamp"}},
		},
		target: {
			{Command: "echo built {out}"},
		},
	}
	return cfg
}

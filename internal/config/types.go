package config

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	"github.com/aristath/forge/internal/action"
)

// ActionConfig is one build action as written in a config file: either a
// JSON string (a command template) or an object naming a built-in callable,
// e.g. {"func": "touch", "args": ["out/app"]}.
type ActionConfig struct {
	Command string   `json:"-"`
	Func    string   `json:"func,omitempty"`
	Args    []string `json:"args,omitempty"`

	invalid string // Raw JSON of an unrecognized entry
}

// UnmarshalJSON accepts a string or a {"func", "args"} object. Any other
// value decodes to an action that fails when executed.
func (a *ActionConfig) UnmarshalJSON(data []byte) error {
	*a = ActionConfig{}
	trimmed := bytes.TrimSpace(data)

	if len(trimmed) > 0 && trimmed[0] == '"' {
		return json.Unmarshal(trimmed, &a.Command)
	}

	if len(trimmed) > 0 && trimmed[0] == '{' {
		var obj struct {
			Func string   `json:"func"`
			Args []string `json:"args"`
		}
		if err := json.Unmarshal(trimmed, &obj); err == nil && obj.Func != "" {
			a.Func = obj.Func
			a.Args = obj.Args
			return nil
		}
	}

	a.invalid = string(trimmed)
	return nil
}

// MarshalJSON writes commands as strings and callables as objects.
func (a ActionConfig) MarshalJSON() ([]byte, error) {
	switch {
	case a.invalid != "":
		return []byte(a.invalid), nil
	case a.Func != "":
		return json.Marshal(struct {
			Func string   `json:"func"`
			Args []string `json:"args,omitempty"`
		}{a.Func, a.Args})
	default:
		return json.Marshal(a.Command)
	}
}

// Action converts the entry into an executable action.
func (a ActionConfig) Action() action.Action {
	switch {
	case a.invalid != "":
		return action.Invalid(fmt.Sprintf("invalid build type: %s", a.invalid))
	case a.Func != "":
		return action.Builtin(a.Func, a.Args...)
	default:
		return action.Command(a.Command)
	}
}

// Duration is a time.Duration written in config files as a duration string
// such as "500ms" or "2s". A bare number is read as milliseconds.
type Duration time.Duration

func (d *Duration) UnmarshalJSON(data []byte) error {
	var ms int64
	if err := json.Unmarshal(data, &ms); err == nil {
		*d = Duration(time.Duration(ms) * time.Millisecond)
		return nil
	}

	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("duration must be a string or milliseconds: %s", data)
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	*d = Duration(parsed)
	return nil
}

func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}

// RetrySettings configures retries of failing command actions.
type RetrySettings struct {
	MaxRetries      int      `json:"max_retries,omitempty"`
	InitialInterval Duration `json:"initial_interval,omitempty"`
	MaxInterval     Duration `json:"max_interval,omitempty"`
}

// BreakerSettings configures the per-program circuit breakers.
type BreakerSettings struct {
	Threshold uint32   `json:"threshold,omitempty"` // 0 disables breakers
	Timeout   Duration `json:"timeout,omitempty"`   // How long an open breaker rejects runs
}

// ForgeConfig is the top-level configuration.
type ForgeConfig struct {
	Jobs        int    `json:"jobs,omitempty"`
	LogLevel    string `json:"log_level,omitempty"`
	LogFormat   string `json:"log_format,omitempty"`
	HistoryPath string `json:"history_path,omitempty"`
	Default     string `json:"default,omitempty"` // Root artifact when none is given

	Context map[string]string         `json:"context,omitempty"`
	Depends map[string][]string       `json:"depends,omitempty"`
	Builds  map[string][]ActionConfig `json:"builds,omitempty"`

	Retry   RetrySettings   `json:"retry,omitempty"`
	Breaker BreakerSettings `json:"breaker,omitempty"`
}

// RetryConfig returns the executor retry configuration.
func (c *ForgeConfig) RetryConfig() action.RetryConfig {
	cfg := action.DefaultRetryConfig()
	cfg.MaxRetries = c.Retry.MaxRetries
	if c.Retry.InitialInterval > 0 {
		cfg.InitialInterval = time.Duration(c.Retry.InitialInterval)
	}
	if c.Retry.MaxInterval > 0 {
		cfg.MaxInterval = time.Duration(c.Retry.MaxInterval)
	}
	return cfg
}

// BreakerConfig returns the executor circuit breaker configuration.
func (c *ForgeConfig) BreakerConfig() action.BreakerConfig {
	return action.BreakerConfig{
		Threshold: c.Breaker.Threshold,
		Timeout:   time.Duration(c.Breaker.Timeout),
	}
}

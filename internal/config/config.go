// Package config loads and persists the gateway's security policy and
// shell profiles: a root Config guarded by a mutex, parsed with JSON5
// (so comments and trailing commas are tolerated in a hand-edited file),
// validated at load time, and written back atomically under an advisory
// file lock.
package config

import (
	"fmt"
	"sync"

	"github.com/opsguard/shellgate/internal/policy"
)

// Config is the root on-disk configuration document.
type Config struct {
	Shells   map[string]*policy.ShellProfile `json:"shells"`
	Security SecurityConfig                  `json:"security"`

	mu sync.RWMutex
}

// SecurityConfig mirrors policy.SecurityPolicy's JSON shape plus the
// environment manager's configuration knobs.
type SecurityConfig struct {
	MaxCommandLength         int                 `json:"maxCommandLength"`
	CommandTimeout           int                 `json:"commandTimeout"`
	BlockedCommands          []string            `json:"blockedCommands"`
	BlockedArguments         []string            `json:"blockedArguments"`
	AllowedPaths             []string            `json:"allowedPaths"`
	RestrictWorkingDirectory bool                `json:"restrictWorkingDirectory"`
	LogCommands              bool                `json:"logCommands"`
	MaxHistorySize           int                 `json:"maxHistorySize"`
	MaxPoolSize              int                 `json:"maxPoolSize"`
	MaxJobs                  int                 `json:"maxJobs"`
	Environment              EnvironmentSettings `json:"environment"`
	KnownHostsPath           string              `json:"knownHostsPath"`
}

// EnvironmentSettings is the on-disk shape of policy.EnvironmentManager.
type EnvironmentSettings struct {
	Allowlist    []string `json:"allowlist,omitempty"`
	BlockedNames []string `json:"blockedNames,omitempty"`
	ValueByteCap int      `json:"valueByteCap"`
	MapSizeCap   int      `json:"mapSizeCap"`
}

// ToSecurityPolicy converts the on-disk SecurityConfig into the runtime
// policy.SecurityPolicy the Engine consumes.
func (c *Config) ToSecurityPolicy() *policy.SecurityPolicy {
	c.mu.RLock()
	defer c.mu.RUnlock()

	env := &policy.EnvironmentManager{
		Allowlist:    c.Security.Environment.Allowlist,
		BlockedNames: c.Security.Environment.BlockedNames,
		ValueByteCap: c.Security.Environment.ValueByteCap,
		MapSizeCap:   c.Security.Environment.MapSizeCap,
	}
	if len(env.BlockedNames) == 0 && len(env.Allowlist) == 0 {
		env = policy.NewEnvironmentManager()
	}

	return &policy.SecurityPolicy{
		MaxCommandLength:         c.Security.MaxCommandLength,
		CommandTimeoutSeconds:    c.Security.CommandTimeout,
		BlockedCommands:          c.Security.BlockedCommands,
		BlockedArguments:         c.Security.BlockedArguments,
		AllowedPaths:             c.Security.AllowedPaths,
		RestrictWorkingDirectory: c.Security.RestrictWorkingDirectory,
		LogCommands:              c.Security.LogCommands,
		MaxHistorySize:           c.Security.MaxHistorySize,
		Environment:              env,
	}
}

// Validate runs startup-time checks, including validating defaultEnv on
// every shell profile with the same rules the Environment Manager
// applies to a per-call map — failure here is fatal to startup.
func (c *Config) Validate() error {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.Security.MaxCommandLength <= 0 {
		return fmt.Errorf("security.maxCommandLength must be positive")
	}
	if c.Security.CommandTimeout <= 0 {
		return fmt.Errorf("security.commandTimeout must be positive")
	}

	envMgr := policy.NewEnvironmentManager()
	for name, profile := range c.Shells {
		if profile.DefaultEnv != nil {
			if err := envMgr.Validate(profile.DefaultEnv); err != nil {
				return fmt.Errorf("shell %q defaultEnv: %w", name, err)
			}
		}
	}
	return nil
}

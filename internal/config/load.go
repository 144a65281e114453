package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/titanous/json5"

	"github.com/opsguard/shellgate/internal/filelock"
	"github.com/opsguard/shellgate/internal/policy"
)

// Default returns a Config with one profile per supported shell,
// carrying sensible default blocklists and operators.
func Default() *Config {
	return &Config{
		Shells: map[string]*policy.ShellProfile{
			"powershell": {
				Name:             "powershell",
				Enabled:          true,
				Program:          "powershell.exe",
				ArgPrefix:        []string{"-NoProfile", "-NonInteractive", "-Command"},
				BlockedOperators: []string{"&", ";", "|", "`", "$("},
				IsPowerShell:     true,
			},
			"cmd": {
				Name:             "cmd",
				Enabled:          true,
				Program:          "cmd.exe",
				ArgPrefix:        []string{"/c"},
				BlockedOperators: []string{"&", "|", "^"},
			},
			"gitbash": {
				Name:             "gitbash",
				Enabled:          true,
				Program:          "bash.exe",
				ArgPrefix:        []string{"-c"},
				BlockedOperators: []string{"&", ";", "|", "`", "$("},
			},
		},
		Security: SecurityConfig{
			MaxCommandLength:         2048,
			CommandTimeout:           30,
			BlockedCommands:          []string{"rm", "del", "format", "shutdown", "reboot"},
			BlockedArguments:         []string{`-rf`, `.*--force.*`},
			RestrictWorkingDirectory: true,
			MaxHistorySize:           100,
			MaxPoolSize:              10,
			MaxJobs:                  20,
			Environment: EnvironmentSettings{
				ValueByteCap: 32768,
				MapSizeCap:   20,
			},
			KnownHostsPath: defaultKnownHostsPath(),
		},
	}
}

func defaultKnownHostsPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}
	return filepath.Join(home, ".win-cli-mcp", "known_hosts.json")
}

// Load reads path as JSON5 (tolerating comments and trailing commas),
// falling back to Default if the file does not exist. The loaded config
// is validated before being returned.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return cfg, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	if err := json5.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// Save persists cfg to path under the advisory file lock, writing to a
// temp file in the same directory and renaming over the target so a
// concurrent reader never observes a partially written document.
func Save(path string, cfg *Config) error {
	lock := filelock.New(path)
	return filelock.WithLock(lock, func() error {
		cfg.mu.RLock()
		data, err := json.MarshalIndent(cfg, "", "  ")
		cfg.mu.RUnlock()
		if err != nil {
			return err
		}

		dir := filepath.Dir(path)
		if err := os.MkdirAll(dir, 0755); err != nil {
			return err
		}

		tmp := path + ".tmp"
		if err := os.WriteFile(tmp, data, 0600); err != nil {
			return err
		}
		return os.Rename(tmp, path)
	})
}

// WriteDefault writes the default document to path, creating parent
// directories as needed. Used by the `init-config` CLI subcommand.
func WriteDefault(path string) error {
	return Save(path, Default())
}

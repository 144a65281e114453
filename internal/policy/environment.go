package policy

import (
	"fmt"
	"strings"

	"github.com/opsguard/shellgate/internal/gwerrors"
)

// defaultBlockedEnvNames is the blocklist-mode default set. A candidate
// name is rejected if, uppercased, it equals one of these or contains one
// as a substring — MY_API_KEY_STORE is caught by the API_KEY entry.
var defaultBlockedEnvNames = []string{
	"PASSWORD",
	"SECRET",
	"TOKEN",
	"API_KEY",
	"AWS_SECRET_ACCESS_KEY",
	"AWS_ACCESS_KEY_ID",
	"PRIVATE_KEY",
	"CREDENTIALS",
	"_PASSWORD",
	"PATH",
	"LD_PRELOAD",
	"LD_LIBRARY_PATH",
	"DYLD_INSERT_LIBRARIES",
	"DYLD_LIBRARY_PATH",
}

const (
	defaultEnvValueByteCap = 32768
	defaultEnvMapSizeCap   = 20
)

// EnvironmentManager validates per-call and per-profile environment maps
// before they are merged into a child process environment. Default mode
// is a blocklist; configuring Allowlist switches to allow-only.
type EnvironmentManager struct {
	Allowlist     []string // nil/empty = blocklist mode
	BlockedNames  []string
	ValueByteCap  int
	MapSizeCap    int
}

// NewEnvironmentManager builds a manager in blocklist mode with the
// default credential/injection-hazard name set and default caps.
func NewEnvironmentManager() *EnvironmentManager {
	return &EnvironmentManager{
		BlockedNames: append([]string(nil), defaultBlockedEnvNames...),
		ValueByteCap: defaultEnvValueByteCap,
		MapSizeCap:   defaultEnvMapSizeCap,
	}
}

// Validate checks env against the configured mode and value rules. It
// returns the first violation as a *gwerrors.PolicyError (SEC007).
func (m *EnvironmentManager) Validate(env map[string]string) error {
	cap := m.MapSizeCap
	if cap <= 0 {
		cap = defaultEnvMapSizeCap
	}
	if len(env) > cap {
		return gwerrors.NewPolicyError(gwerrors.SECBlockedEnv,
			"too many environment variables",
			fmt.Sprintf("%d supplied, limit %d", len(env), cap),
			"Reduce the number of entries in the env map.", "check_security_config",
			map[string]any{"count": len(env), "max": cap})
	}

	for name, value := range env {
		if err := m.validateName(name); err != nil {
			return err
		}
		if err := m.validateValue(name, value); err != nil {
			return err
		}
	}
	return nil
}

func (m *EnvironmentManager) validateName(name string) error {
	upper := strings.ToUpper(name)

	if len(m.Allowlist) > 0 {
		for _, allowed := range m.Allowlist {
			if strings.ToUpper(allowed) == upper {
				return nil
			}
		}
		return gwerrors.NewPolicyError(gwerrors.SECBlockedEnv,
			"environment variable not in allowlist",
			name, "Remove this variable or add it to the allowlist.", "check_security_config",
			map[string]any{"name": name})
	}

	blocked := m.BlockedNames
	if blocked == nil {
		blocked = defaultBlockedEnvNames
	}
	for _, b := range blocked {
		if strings.Contains(upper, strings.ToUpper(b)) {
			return gwerrors.NewPolicyError(gwerrors.SECBlockedEnv,
				"environment variable is blocked",
				name, "This variable name matches a blocked credential or injection-hazard pattern.", "check_security_config",
				map[string]any{"name": name})
		}
	}
	return nil
}

func (m *EnvironmentManager) validateValue(name, value string) error {
	valueCap := m.ValueByteCap
	if valueCap <= 0 {
		valueCap = defaultEnvValueByteCap
	}
	if len(value) > valueCap {
		return gwerrors.NewPolicyError(gwerrors.SECBlockedEnv,
			"environment value too long",
			fmt.Sprintf("%s: %d bytes, limit %d", name, len(value), valueCap),
			"Shorten the value.", "check_security_config",
			map[string]any{"name": name, "bytes": len(value), "max": valueCap})
	}
	for _, r := range value {
		if r == 0 {
			return gwerrors.NewPolicyError(gwerrors.SECBlockedEnv,
				"environment value contains a NUL byte", name, "", "check_security_config",
				map[string]any{"name": name})
		}
		if r == '\t' || r == '\n' {
			continue
		}
		if r < 0x20 || r == 0x7f {
			return gwerrors.NewPolicyError(gwerrors.SECBlockedEnv,
				"environment value contains a disallowed control character", name, "", "check_security_config",
				map[string]any{"name": name})
		}
	}
	return nil
}

// Merge combines system, profile-default, and per-call environments in
// ascending priority: system < defaultEnv < callEnv. Later entries
// overwrite earlier ones by key.
func Merge(system map[string]string, defaultEnv map[string]string, callEnv map[string]string) map[string]string {
	out := make(map[string]string, len(system)+len(defaultEnv)+len(callEnv))
	for k, v := range system {
		out[k] = v
	}
	for k, v := range defaultEnv {
		out[k] = v
	}
	for k, v := range callEnv {
		out[k] = v
	}
	return out
}

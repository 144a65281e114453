// Package policy implements the validation pipeline that every command
// must clear before a shell or SSH session executes it: operator check,
// parse, command blocklist, argument blocklist, length, working
// directory, and environment.
package policy

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/opsguard/shellgate/internal/cmdparser"
	"github.com/opsguard/shellgate/internal/gwerrors"
	"github.com/opsguard/shellgate/internal/pathsec"
	"github.com/opsguard/shellgate/internal/unicodesec"
)

// blockedExtensions are stripped from the program basename before the
// command-blocklist comparison, so "curl.exe" and "curl" match the same
// blocklist entry.
var blockedExtensions = map[string]bool{
	".exe": true, ".cmd": true, ".bat": true, ".ps1": true, ".vbs": true,
	".js": true, ".com": true, ".scr": true, ".msi": true, ".pif": true,
	".wsf": true, ".hta": true,
}

// redirectionOperators are unioned with a shell profile's blockedOperators
// during the operator-check stage; the union is intentional defense in
// depth regardless of what a given profile declares.
var redirectionOperators = []string{">", "<", ">>", "2>", "2>&1"}

// ShellProfile is a named shell invocation target.
type ShellProfile struct {
	Name             string            `json:"name"`
	Enabled          bool              `json:"enabled"`
	Program          string            `json:"program"`
	ArgPrefix        []string          `json:"argPrefix"`
	BlockedOperators []string          `json:"blockedOperators"`
	DefaultEnv       map[string]string `json:"defaultEnv,omitempty"`
	IsPowerShell     bool              `json:"isPowerShell,omitempty"`
}

// SecurityPolicy is the immutable-after-load configuration the Engine
// enforces. AllowedPaths must already be canonicalized absolute prefixes.
type SecurityPolicy struct {
	MaxCommandLength         int
	CommandTimeoutSeconds    int
	BlockedCommands          []string
	BlockedArguments         []string
	AllowedPaths             []string
	RestrictWorkingDirectory bool
	LogCommands              bool
	MaxHistorySize           int
	Environment              *EnvironmentManager
}

// Engine runs the ordered, fail-fast validation pipeline.
type Engine struct {
	policy *SecurityPolicy

	argPatternCache map[string]*regexp.Regexp
}

// NewEngine builds an Engine over policy. If policy.Environment is nil a
// default blocklist-mode EnvironmentManager is installed.
func NewEngine(p *SecurityPolicy) *Engine {
	if p.Environment == nil {
		p.Environment = NewEnvironmentManager()
	}
	return &Engine{policy: p, argPatternCache: make(map[string]*regexp.Regexp)}
}

// ValidatedCommand is the outcome of a successful Validate call: the
// parsed program/args, the canonical working directory to execute in,
// and the fully merged environment.
type ValidatedCommand struct {
	Program          string
	Args             []string
	WorkingDirectory string
	Environment      map[string]string
}

// Validate runs the full pipeline against a raw command string, a shell
// profile, an optional working directory override, and an optional
// per-call environment map. It returns the first rejection encountered.
func (e *Engine) Validate(profile *ShellProfile, rawCommand string, workingDir string, callEnv map[string]string, systemEnv map[string]string) (*ValidatedCommand, error) {
	if !profile.Enabled {
		return nil, gwerrors.NewPolicyError(gwerrors.SECBlockedCommand,
			"shell profile is disabled", profile.Name, "", "check_security_config",
			map[string]any{"shell": profile.Name})
	}

	if err := e.checkOperators(profile, rawCommand); err != nil {
		return nil, err
	}

	program, args, err := cmdparser.Parse(rawCommand)
	if err != nil {
		return nil, gwerrors.NewPolicyError(gwerrors.SECMalformedCommand,
			"command could not be parsed", err.Error(),
			"Check for unmatched quotes.", "validate_command",
			map[string]any{"command": rawCommand})
	}

	canonicalName, err := e.checkCommandBlocklist(program)
	if err != nil {
		return nil, err
	}
	_ = canonicalName

	if err := e.checkArgumentBlocklist(args); err != nil {
		return nil, err
	}

	if err := e.checkLength(rawCommand); err != nil {
		return nil, err
	}

	realWD, err := e.checkWorkingDirectory(workingDir)
	if err != nil {
		return nil, err
	}

	if callEnv != nil {
		if err := e.policy.Environment.Validate(callEnv); err != nil {
			return nil, err
		}
	}
	merged := Merge(systemEnv, profile.DefaultEnv, callEnv)

	return &ValidatedCommand{
		Program:          program,
		Args:             args,
		WorkingDirectory: realWD,
		Environment:      merged,
	}, nil
}

// checkOperators runs the Unicode screener over the raw command, then
// rejects any occurrence of a blocked or redirection operator substring.
func (e *Engine) checkOperators(profile *ShellProfile, rawCommand string) error {
	if finding := unicodesec.Screen(rawCommand, profile.IsPowerShell); finding != nil {
		return gwerrors.NewPolicyError(gwerrors.SECBlockedOperator,
			finding.Error(), "", "Remove the disguised operator character.",
			"check_security_config", nil)
	}

	blocked := append(append([]string{}, profile.BlockedOperators...), redirectionOperators...)
	for _, op := range blocked {
		if op == "" {
			continue
		}
		if strings.Contains(rawCommand, op) {
			return gwerrors.NewPolicyError(gwerrors.SECBlockedOperator,
				"command contains a blocked shell operator", op,
				"Remove the operator or split the command.", "check_security_config",
				map[string]any{"operator": op})
		}
	}
	return nil
}

// checkCommandBlocklist extracts the basename, strips a recognized
// executable extension, lowercases, and compares against BlockedCommands.
// It returns the canonical (post-strip, lowercased) name for logging.
func (e *Engine) checkCommandBlocklist(program string) (string, error) {
	base := baseNameOf(program)
	lower := strings.ToLower(base)
	if ext := extensionOf(lower); blockedExtensions[ext] {
		lower = strings.TrimSuffix(lower, ext)
	}

	for _, blocked := range e.policy.BlockedCommands {
		if strings.ToLower(blocked) == lower {
			return lower, gwerrors.NewPolicyError(gwerrors.SECBlockedCommand,
				"command is blocked by policy", lower,
				"This program is not permitted to run.", "check_security_config",
				map[string]any{"command": lower})
		}
	}
	return lower, nil
}

// checkArgumentBlocklist matches each argument, case-insensitively and
// fully anchored, against every BlockedArguments pattern.
func (e *Engine) checkArgumentBlocklist(args []string) error {
	for _, pattern := range e.policy.BlockedArguments {
		re, err := e.compiledArgPattern(pattern)
		if err != nil {
			continue // malformed policy pattern; skip rather than panic on a live command
		}
		for _, arg := range args {
			if re.MatchString(arg) {
				return gwerrors.NewPolicyError(gwerrors.SECBlockedArgument,
					"argument is blocked by policy", arg,
					"Remove or replace this argument.", "check_security_config",
					map[string]any{"argument": arg, "pattern": pattern})
			}
		}
	}
	return nil
}

func (e *Engine) compiledArgPattern(pattern string) (*regexp.Regexp, error) {
	if re, ok := e.argPatternCache[pattern]; ok {
		return re, nil
	}
	anchored := "(?i)^" + pattern + "$"
	re, err := regexp.Compile(anchored)
	if err != nil {
		return nil, err
	}
	e.argPatternCache[pattern] = re
	return re, nil
}

func (e *Engine) checkLength(rawCommand string) error {
	if e.policy.MaxCommandLength > 0 && len(rawCommand) > e.policy.MaxCommandLength {
		return gwerrors.NewPolicyError(gwerrors.SECLength,
			"command exceeds the maximum allowed length",
			fmt.Sprintf("%d > %d", len(rawCommand), e.policy.MaxCommandLength),
			"", "check_security_config",
			map[string]any{"length": len(rawCommand), "max": e.policy.MaxCommandLength})
	}
	return nil
}

func (e *Engine) checkWorkingDirectory(dir string) (string, error) {
	if dir == "" {
		return "", nil
	}
	real, err := pathsec.ValidateWorkingDirectory(dir, e.policy.AllowedPaths, e.policy.RestrictWorkingDirectory)
	if err != nil {
		return "", gwerrors.NewPolicyError(gwerrors.SECPathNotAllowed,
			"working directory is not permitted", err.Error(), "",
			"check_security_config", map[string]any{"workingDirectory": dir})
	}
	return real, nil
}

func baseNameOf(p string) string {
	p = strings.ReplaceAll(p, "\\", "/")
	if i := strings.LastIndex(p, "/"); i >= 0 {
		return p[i+1:]
	}
	return p
}

func extensionOf(p string) string {
	if i := strings.LastIndex(p, "."); i >= 0 {
		return p[i:]
	}
	return ""
}

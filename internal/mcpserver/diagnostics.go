package mcpserver

import (
	"context"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/titanous/json5"

	"github.com/opsguard/shellgate/internal/config"
	"github.com/opsguard/shellgate/internal/gwerrors"
)

func registerDiagnosticTools(s *server.MCPServer, gw *Gateway) {
	checkTool := mcp.NewTool("check_security_config",
		mcp.WithDescription("Dump the effective security policy: blocklists, allowed paths, environment rules."),
	)
	s.AddTool(checkTool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		return jsonResult(gw.Config.Security), nil
	})

	validateCmdTool := mcp.NewTool("validate_command",
		mcp.WithDescription("Run the validation pipeline against a command without executing it."),
		mcp.WithString("shell", mcp.Required()),
		mcp.WithString("command", mcp.Required()),
		mcp.WithString("workingDir"),
	)
	s.AddTool(validateCmdTool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		shell := req.GetString("shell", "")
		command := req.GetString("command", "")
		workingDir := req.GetString("workingDir", "")

		profile, err := gw.shellProfile(shell)
		if err != nil {
			return jsonResultWithMeta(validationFailureReport(err), structuredMeta(err)), nil
		}

		if _, err := gw.Engine.Validate(profile, command, workingDir, nil, systemEnviron()); err != nil {
			return jsonResultWithMeta(validationFailureReport(err), structuredMeta(err)), nil
		}
		return jsonResult(map[string]any{"valid": true}), nil
	})

	validateConfigTool := mcp.NewTool("validate_config",
		mcp.WithDescription("Validate a candidate JSON5 config document without making it the active configuration."),
		mcp.WithString("document", mcp.Required(), mcp.Description("Raw config document text.")),
	)
	s.AddTool(validateConfigTool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		candidate := config.Default()
		if err := json5.Unmarshal([]byte(req.GetString("document", "")), candidate); err != nil {
			return jsonResult(map[string]any{"valid": false, "reason": err.Error()}), nil
		}
		if err := candidate.Validate(); err != nil {
			return jsonResult(map[string]any{"valid": false, "reason": err.Error()}), nil
		}
		return jsonResult(map[string]any{"valid": true}), nil
	})

	explainTool := mcp.NewTool("explain_exit_code",
		mcp.WithDescription("Map an exit code or rejection code to a human explanation."),
		mcp.WithNumber("exitCode"),
		mcp.WithString("code", mcp.Description("A SECnnn or EXECnnn rejection code.")),
	)
	s.AddTool(explainTool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		if code := req.GetString("code", ""); code != "" {
			return jsonResult(map[string]any{"code": code, "explanation": explainCode(code)}), nil
		}
		exitCode := req.GetInt("exitCode", 0)
		return jsonResult(map[string]any{"exitCode": exitCode, "explanation": explainExitCode(exitCode)}), nil
	})

	registerKnownHostsTools(s, gw)
}

func registerKnownHostsTools(s *server.MCPServer, gw *Gateway) {
	getTool := mcp.NewTool("get_known_hosts",
		mcp.WithDescription("List every trusted host key entry, or a single hostPort entry."),
		mcp.WithString("hostPort", mcp.Description("If set, return only this entry.")),
	)
	s.AddTool(getTool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		if hostPort := req.GetString("hostPort", ""); hostPort != "" {
			entry, found, err := gw.KnownHosts.Get(hostPort)
			if err != nil {
				return errorResult(err), nil
			}
			if !found {
				return mcp.NewToolResultError("no known host entry for that host"), nil
			}
			return jsonResult(entry), nil
		}
		all, err := gw.KnownHosts.All()
		if err != nil {
			return errorResult(err), nil
		}
		return jsonResult(all), nil
	})

	removeTool := mcp.NewTool("remove_known_host",
		mcp.WithDescription("Remove a trusted host key entry, allowing a fresh trust-on-first-use on next connect."),
		mcp.WithString("hostPort", mcp.Required()),
	)
	s.AddTool(removeTool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		if err := gw.KnownHosts.Remove(req.GetString("hostPort", "")); err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		return jsonResult(map[string]any{"removed": true}), nil
	})
}

// validationFailureReport renders a PolicyError/ExecError as the
// {valid, reason, next_steps} shape validate_command documents, naming the
// diagnostic tool (and the arguments to call it with) a caller should
// reach for next.
func validationFailureReport(err error) map[string]any {
	if pe, ok := gwerrors.AsPolicyError(err); ok {
		nextSteps := map[string]any{
			"recommended_tool": pe.DiagnosticTool,
			"remediation":      pe.Remediation,
		}
		if pe.DiagnosticArgs != nil {
			nextSteps["recommended_args"] = pe.DiagnosticArgs
		}
		return map[string]any{"valid": false, "reason": pe.Error(), "next_steps": nextSteps}
	}
	return map[string]any{"valid": false, "reason": err.Error()}
}

var codeExplanations = map[string]string{
	gwerrors.SECBlockedCommand:   "The command's program name matches a blocked-commands entry.",
	gwerrors.SECBlockedOperator:  "The command contains a blocked or disguised shell operator.",
	gwerrors.SECMalformedCommand: "The command could not be parsed, usually an unclosed quote.",
	gwerrors.SECBlockedArgument:  "An argument matches a blocked-arguments pattern.",
	gwerrors.SECLength:           "The command exceeds the configured maximum length.",
	gwerrors.SECPathNotAllowed:   "The working directory or path is outside the allowed set.",
	gwerrors.SECBlockedEnv:       "An environment variable name or value is blocked by policy.",
	gwerrors.SECHostKeyMismatch:  "The remote host key does not match the previously trusted key.",
	gwerrors.SECUnknownHost:      "The remote host key is not in the known-hosts store and strict checking is on.",
	gwerrors.EXECSpawnFailure:    "The process failed to start.",
	gwerrors.EXECTimeout:         "The process exceeded its timeout and was terminated.",
	gwerrors.EXECNonzeroExit:     "The process ran and exited with a nonzero status.",
	gwerrors.EXECStreamInitFail:  "Stdin/stdout/stderr pipes could not be attached to the child process.",
	gwerrors.EXECSSHTransport:    "The SSH transport failed: dial, auth, or session error.",
	gwerrors.EXECSFTPOperation:   "An SFTP upload, download, list, or delete operation failed.",
}

func explainCode(code string) string {
	if explanation, ok := codeExplanations[code]; ok {
		return explanation
	}
	return "Unrecognized code."
}

func explainExitCode(code int) string {
	switch code {
	case -2:
		return "The command was rejected by the security policy before execution."
	case -1:
		return "The command failed during or after spawn (timeout, transport, or spawn failure)."
	case 0:
		return "The command completed successfully."
	default:
		return "The command ran and exited with this nonzero status."
	}
}

package mcpserver

import (
	"context"
	"os"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/opsguard/shellgate/internal/procexec"
	"github.com/opsguard/shellgate/internal/registry"
)

func handleExecuteCommand(ctx context.Context, gw *Gateway, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	shell := req.GetString("shell", "")
	command := req.GetString("command", "")
	workingDir := req.GetString("workingDir", "")

	var callEnv map[string]string
	if args := req.GetArguments(); args != nil {
		if raw, ok := args["env"].(map[string]any); ok {
			callEnv = make(map[string]string, len(raw))
			for k, v := range raw {
				if s, ok := v.(string); ok {
					callEnv[k] = s
				}
			}
		}
	}

	profile, err := gw.shellProfile(shell)
	if err != nil {
		return errorResult(err), nil
	}

	validated, err := gw.Engine.Validate(profile, command, workingDir, callEnv, systemEnviron())
	if err != nil {
		logRejection(command, err)
		gw.History.Add(registry.HistoryEntry{Command: command, Timestamp: time.Now(), ExitCode: -2})
		return errorResult(err), nil
	}

	timeout := gw.commandTimeout()
	if t := req.GetFloat("timeout", 0); t > 0 {
		timeout = time.Duration(t * float64(time.Second))
	}

	result, execErr := procexec.Run(ctx, procexec.Spec{
		Program:          profile.Program,
		ArgPrefix:        profile.ArgPrefix,
		Command:          command,
		WorkingDirectory: validated.WorkingDirectory,
		Environment:      validated.Environment,
		Timeout:          timeout,
	})
	if execErr != nil {
		gw.History.Add(registry.HistoryEntry{Command: command, Timestamp: time.Now(), ExitCode: -1})
		return errorResult(execErr), nil
	}

	gw.History.Add(registry.HistoryEntry{
		Command:   command,
		Output:    result.Stdout + result.Stderr,
		Timestamp: time.Now(),
		ExitCode:  result.ExitCode,
	})

	return jsonResult(map[string]any{
		"stdout":   result.Stdout,
		"stderr":   result.Stderr,
		"exitCode": result.ExitCode,
	}), nil
}

func systemEnviron() map[string]string {
	out := make(map[string]string)
	for _, kv := range os.Environ() {
		parts := strings.SplitN(kv, "=", 2)
		if len(parts) == 2 {
			out[parts[0]] = parts[1]
		}
	}
	return out
}

package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/opsguard/shellgate/internal/gwerrors"
)

// serverName, together with the version passed to NewServer, identifies
// this process to an MCP client during the initialize handshake.
const serverName = "shellgate"

// NewServer builds an *server.MCPServer with every tool named in the
// component design registered against gw.
func NewServer(gw *Gateway, version string) *server.MCPServer {
	s := server.NewMCPServer(serverName, version)

	registerExecutionTools(s, gw)
	registerJobTools(s, gw)
	registerSSHTools(s, gw)
	registerSFTPTools(s, gw)
	registerDiagnosticTools(s, gw)

	return s
}

// structuredMeta builds the `_meta` envelope every failed tool result
// carries: `exitCode` (-2 for a pre-execution PolicyError rejection, -1
// for an ExecError) plus a `structured` error object naming the code,
// details, remediation, and the diagnostic tool/args a caller should
// reach for next.
func structuredMeta(err error) map[string]any {
	exitCode := -1
	code := "EXEC000"
	message := err.Error()
	var details, guidance, diagTool string
	var diagArgs map[string]any
	if pe, ok := gwerrors.AsPolicyError(err); ok {
		exitCode = -2
		code = pe.Code
		message = pe.Message
		details = pe.Details
		guidance = pe.Remediation
		diagTool = pe.DiagnosticTool
		diagArgs = pe.DiagnosticArgs
	} else if ee, ok := gwerrors.AsExecError(err); ok {
		code = ee.Code
		message = ee.Message
		details = ee.Details
		guidance = ee.Remediation
	}
	return map[string]any{
		"exitCode": exitCode,
		"structured": map[string]any{
			"error":           message,
			"code":            code,
			"details":         details,
			"user_guidance":   guidance,
			"diagnostic_tool": diagTool,
			"diagnostic_args": diagArgs,
		},
	}
}

// errorResult renders err as an isError tool result carrying the
// structuredMeta envelope in Meta, with the same code/exitCode also
// folded into the message text for clients that only read content.
func errorResult(err error) *mcp.CallToolResult {
	meta := structuredMeta(err)
	exitCode := meta["exitCode"].(int)
	code := meta["structured"].(map[string]any)["code"].(string)
	result := mcp.NewToolResultError(fmt.Sprintf("[%s exitCode=%d] %s", code, exitCode, err.Error()))
	result.Meta = meta
	return result
}

// jsonResult marshals v and wraps it in a text content block, logging
// (and falling back to an error result) if marshaling itself fails —
// which would indicate a programming error, not a caller mistake.
func jsonResult(v any) *mcp.CallToolResult {
	data, err := json.Marshal(v)
	if err != nil {
		slog.Error("mcpserver.marshal_failed", "error", err)
		return mcp.NewToolResultError("internal error: failed to encode result")
	}
	return mcp.NewToolResultText(string(data))
}

// jsonResultWithMeta is jsonResult plus a Meta envelope, for handlers
// that report a failure as structured JSON content (e.g. validate_command)
// rather than as an isError result.
func jsonResultWithMeta(v any, meta map[string]any) *mcp.CallToolResult {
	result := jsonResult(v)
	result.Meta = meta
	return result
}

func registerExecutionTools(s *server.MCPServer, gw *Gateway) {
	executeTool := mcp.NewTool("execute_command",
		mcp.WithDescription("Validate and execute a shell command under a configured shell profile."),
		mcp.WithString("shell", mcp.Required(), mcp.Description("Configured shell profile name, e.g. powershell, cmd, gitbash.")),
		mcp.WithString("command", mcp.Required(), mcp.Description("Raw command line to run.")),
		mcp.WithString("workingDir", mcp.Description("Working directory override.")),
		mcp.WithNumber("timeout", mcp.Description("Timeout in seconds; defaults to the configured command timeout.")),
		mcp.WithObject("env", mcp.Description("Additional environment variables for this call.")),
	)
	s.AddTool(executeTool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		return handleExecuteCommand(ctx, gw, req)
	})

	historyTool := mcp.NewTool("get_command_history",
		mcp.WithDescription("Read recent entries from the command history ring, most recent first."),
		mcp.WithNumber("limit", mcp.Description("Maximum entries to return; 0 or omitted returns all.")),
		mcp.WithNumber("offset", mcp.Description("Entries to skip from the most-recent end.")),
	)
	s.AddTool(historyTool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		limit := req.GetInt("limit", 0)
		offset := req.GetInt("offset", 0)
		entries := gw.History.GetRecent(limit, offset)
		return jsonResult(entries), nil
	})

	clearTool := mcp.NewTool("clear_command_history",
		mcp.WithDescription("Clear the command history ring."),
	)
	s.AddTool(clearTool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		gw.History.Clear()
		return jsonResult(map[string]any{"cleared": true}), nil
	})
}

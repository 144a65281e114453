package mcpserver

import (
	"context"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

func registerJobTools(s *server.MCPServer, gw *Gateway) {
	startTool := mcp.NewTool("start_background_job",
		mcp.WithDescription("Validate a command and start it as a background job, returning immediately."),
		mcp.WithString("shell", mcp.Required()),
		mcp.WithString("command", mcp.Required()),
		mcp.WithString("workingDir"),
		mcp.WithNumber("timeout", mcp.Description("Timeout in seconds; defaults to the configured command timeout.")),
		mcp.WithObject("env"),
	)
	s.AddTool(startTool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
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
			return errorResult(err), nil
		}

		timeout := gw.commandTimeout()
		if t := req.GetFloat("timeout", 0); t > 0 {
			timeout = time.Duration(t * float64(time.Second))
		}

		job, err := gw.Jobs.Start(profile.Program, profile.ArgPrefix, command, validated.WorkingDirectory, validated.Environment, timeout)
		if err != nil {
			return errorResult(err), nil
		}
		return jsonResult(map[string]any{"jobId": job.ID, "status": job.Status()}), nil
	})

	outputTool := mcp.NewTool("get_job_output",
		mcp.WithDescription("Read a background job's output from a byte offset, plus its current status."),
		mcp.WithString("jobId", mcp.Required()),
		mcp.WithNumber("offset", mcp.Description("Byte offset to read from; 0 reads from the start of the retained window.")),
	)
	s.AddTool(outputTool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		jobID := req.GetString("jobId", "")
		offset := req.GetInt("offset", 0)

		job, ok := gw.Jobs.Get(jobID)
		if !ok {
			return mcp.NewToolResultError("no job with that id"), nil
		}
		data, totalSize, complete := job.Output(offset)
		return jsonResult(map[string]any{
			"output":    string(data),
			"totalSize": totalSize,
			"complete":  complete,
			"status":    job.Status(),
			"exitCode":  job.ExitCode,
		}), nil
	})

	terminateTool := mcp.NewTool("terminate_job",
		mcp.WithDescription("Cancel a running background job."),
		mcp.WithString("jobId", mcp.Required()),
	)
	s.AddTool(terminateTool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		jobID := req.GetString("jobId", "")
		job, ok := gw.Jobs.Get(jobID)
		if !ok {
			return mcp.NewToolResultError("no job with that id"), nil
		}
		if err := job.Terminate(); err != nil {
			return errorResult(err), nil
		}
		return jsonResult(map[string]any{"terminated": true}), nil
	})

	deleteTool := mcp.NewTool("delete_job",
		mcp.WithDescription("Remove a finished background job from the registry."),
		mcp.WithString("jobId", mcp.Required()),
	)
	s.AddTool(deleteTool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		jobID := req.GetString("jobId", "")
		if err := gw.Jobs.Delete(jobID); err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		return jsonResult(map[string]any{"deleted": true}), nil
	})

	listTool := mcp.NewTool("list_jobs",
		mcp.WithDescription("List every tracked background job id."),
	)
	s.AddTool(listTool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		return jsonResult(map[string]any{"jobs": gw.Jobs.List()}), nil
	})
}

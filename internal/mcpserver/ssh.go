package mcpserver

import (
	"context"
	"fmt"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/opsguard/shellgate/internal/policy"
	"github.com/opsguard/shellgate/internal/registry"
	"github.com/opsguard/shellgate/internal/sshconfig"
	"github.com/opsguard/shellgate/internal/sshpool"
)

// sshShellProfiles maps a detected remote shell family to the operator
// blocklist the policy engine enforces against it. ShellUnknown gets the
// union of every other family's operators plus its own: detection failed,
// so the engine must assume the most restrictive remote shell.
var sshShellProfiles = map[sshpool.ShellType]*policy.ShellProfile{
	sshpool.ShellBash:       {Name: "ssh-bash", Enabled: true, BlockedOperators: []string{"|", ";", "&", "`", "$("}},
	sshpool.ShellSh:         {Name: "ssh-sh", Enabled: true, BlockedOperators: []string{"|", ";", "&", "`", "$("}},
	sshpool.ShellPowerShell: {Name: "ssh-powershell", Enabled: true, BlockedOperators: []string{"&", ";", "|", "`", "$("}, IsPowerShell: true},
	sshpool.ShellCmd:        {Name: "ssh-cmd", Enabled: true, BlockedOperators: []string{"&", "|", "^"}},
	sshpool.ShellUnknown:    {Name: "ssh-unknown", Enabled: true, BlockedOperators: []string{"|", ";", "&", "`", "$(", "^"}, IsPowerShell: true},
}

// sshValidationProfile returns the profile the policy engine should apply
// to a command bound for a connection whose remote shell was detected (or
// not) as shellType.
func sshValidationProfile(shellType sshpool.ShellType) *policy.ShellProfile {
	if profile, ok := sshShellProfiles[shellType]; ok {
		return profile
	}
	return sshShellProfiles[sshpool.ShellUnknown]
}

// errUnknownConnection reports a lookup miss against the SSH connection
// CRUD store: acting on an unconfigured connection id is a caller
// mistake, not a transport failure.
func errUnknownConnection(id string) error {
	return fmt.Errorf("no ssh connection configured with id %q", id)
}

func registerSSHTools(s *server.MCPServer, gw *Gateway) {
	execTool := mcp.NewTool("ssh_execute",
		mcp.WithDescription("Run a command over a pooled SSH connection, connecting lazily on first use."),
		mcp.WithString("connectionId", mcp.Required()),
		mcp.WithString("command", mcp.Required()),
		mcp.WithNumber("timeout", mcp.Description("Timeout in seconds; defaults to the configured command timeout.")),
	)
	s.AddTool(execTool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		connID := req.GetString("connectionId", "")
		command := req.GetString("command", "")

		entry, found, err := gw.Connections.Read(connID)
		if err != nil {
			return errorResult(err), nil
		}
		if !found {
			return mcp.NewToolResultError("no ssh connection with that id"), nil
		}

		timeout := gw.commandTimeout()
		if t := req.GetFloat("timeout", 0); t > 0 {
			timeout = time.Duration(t * float64(time.Second))
		}
		execCtx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()

		conn, err := gw.Pool.GetConnection(execCtx, connectionConfig(entry))
		if err != nil {
			return errorResult(err), nil
		}

		if err := conn.EnsureReady(execCtx); err != nil {
			return errorResult(err), nil
		}

		profile := sshValidationProfile(conn.DetectedShellType())
		if _, err := gw.Engine.Validate(profile, command, "", nil, nil); err != nil {
			logRejection(command, err)
			gw.History.Add(historyEntryFor(command, connID, -2))
			return errorResult(err), nil
		}

		stdout, stderr, exitCode, err := conn.ExecuteCommand(execCtx, command, nil)
		if err != nil {
			gw.History.Add(historyEntryFor(command, connID, -1))
			return errorResult(err), nil
		}
		gw.History.Add(historyEntryFor(command, connID, exitCode))

		return jsonResult(map[string]any{
			"stdout":   stdout,
			"stderr":   stderr,
			"exitCode": exitCode,
			"shell":    string(conn.DetectedShellType()),
		}), nil
	})

	disconnectTool := mcp.NewTool("ssh_disconnect",
		mcp.WithDescription("Close and evict a pooled SSH connection."),
		mcp.WithString("connectionId", mcp.Required()),
	)
	s.AddTool(disconnectTool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		connID := req.GetString("connectionId", "")
		if err := gw.Pool.Remove(connID); err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		return jsonResult(map[string]any{"disconnected": true}), nil
	})

	registerSSHConnectionCRUD(s, gw)
}

func connectionConfig(e sshconfig.Entry) sshpool.Config {
	return sshpool.Config{
		ID:                    e.ID,
		Host:                  e.Host,
		Port:                  e.Port,
		User:                  e.User,
		Password:              e.Password,
		PrivateKeyPath:        e.PrivateKeyPath,
		StrictHostKeyChecking: e.StrictHostKeyChecking,
		KeepAliveInterval:     time.Duration(e.KeepAliveIntervalSec) * time.Second,
		KeepAliveCountMax:     e.KeepAliveCountMax,
	}
}

func historyEntryFor(command, connID string, exitCode int) registry.HistoryEntry {
	return registry.HistoryEntry{Command: command, Timestamp: time.Now(), ExitCode: exitCode, ConnectionID: connID}
}

func registerSSHConnectionCRUD(s *server.MCPServer, gw *Gateway) {
	createTool := mcp.NewTool("create_ssh_connection",
		mcp.WithDescription("Persist a new named SSH connection configuration."),
		mcp.WithString("host", mcp.Required()),
		mcp.WithNumber("port", mcp.Required()),
		mcp.WithString("user", mcp.Required()),
		mcp.WithString("password"),
		mcp.WithString("privateKeyPath"),
		mcp.WithBoolean("strictHostKeyChecking"),
	)
	s.AddTool(createTool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		entry, err := gw.Connections.Create(sshconfig.Entry{
			Host:                  req.GetString("host", ""),
			Port:                  req.GetInt("port", 22),
			User:                  req.GetString("user", ""),
			Password:              req.GetString("password", ""),
			PrivateKeyPath:        req.GetString("privateKeyPath", ""),
			StrictHostKeyChecking: req.GetBool("strictHostKeyChecking", true),
		})
		if err != nil {
			return errorResult(err), nil
		}
		return jsonResult(entry), nil
	})

	readTool := mcp.NewTool("read_ssh_connection",
		mcp.WithDescription("Read a persisted SSH connection configuration by id."),
		mcp.WithString("connectionId", mcp.Required()),
	)
	s.AddTool(readTool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		entry, found, err := gw.Connections.Read(req.GetString("connectionId", ""))
		if err != nil {
			return errorResult(err), nil
		}
		if !found {
			return mcp.NewToolResultError("no ssh connection with that id"), nil
		}
		return jsonResult(entry), nil
	})

	updateTool := mcp.NewTool("update_ssh_connection",
		mcp.WithDescription("Replace a persisted SSH connection configuration."),
		mcp.WithString("connectionId", mcp.Required()),
		mcp.WithString("host", mcp.Required()),
		mcp.WithNumber("port", mcp.Required()),
		mcp.WithString("user", mcp.Required()),
		mcp.WithString("password"),
		mcp.WithString("privateKeyPath"),
		mcp.WithBoolean("strictHostKeyChecking"),
	)
	s.AddTool(updateTool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		entry := sshconfig.Entry{
			ID:                    req.GetString("connectionId", ""),
			Host:                  req.GetString("host", ""),
			Port:                  req.GetInt("port", 22),
			User:                  req.GetString("user", ""),
			Password:              req.GetString("password", ""),
			PrivateKeyPath:        req.GetString("privateKeyPath", ""),
			StrictHostKeyChecking: req.GetBool("strictHostKeyChecking", true),
		}
		if err := gw.Connections.Update(entry); err != nil {
			return errorResult(err), nil
		}
		return jsonResult(entry), nil
	})

	deleteTool := mcp.NewTool("delete_ssh_connection",
		mcp.WithDescription("Delete a persisted SSH connection configuration."),
		mcp.WithString("connectionId", mcp.Required()),
	)
	s.AddTool(deleteTool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		id := req.GetString("connectionId", "")
		if err := gw.Connections.Delete(id); err != nil {
			return errorResult(err), nil
		}
		gw.Pool.Remove(id) //nolint:errcheck // connection may not be live; eviction is best-effort
		return jsonResult(map[string]any{"deleted": true}), nil
	})

	listTool := mcp.NewTool("list_ssh_connections",
		mcp.WithDescription("List every persisted SSH connection configuration."),
	)
	s.AddTool(listTool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		entries, err := gw.Connections.List()
		if err != nil {
			return errorResult(err), nil
		}
		return jsonResult(entries), nil
	})
}

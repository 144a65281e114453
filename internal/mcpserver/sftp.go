package mcpserver

import (
	"context"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/opsguard/shellgate/internal/sftpops"
)

func registerSFTPTools(s *server.MCPServer, gw *Gateway) {
	resolveClient := func(ctx context.Context, connID string) (connHandle, error) {
		entry, found, err := gw.Connections.Read(connID)
		if err != nil {
			return connHandle{}, err
		}
		if !found {
			return connHandle{}, errUnknownConnection(connID)
		}
		conn, err := gw.Pool.GetConnection(ctx, connectionConfig(entry))
		if err != nil {
			return connHandle{}, err
		}
		client, err := gw.sftpClientFor(ctx, conn, gw.Config.Security.AllowedPaths, gw.Config.Security.RestrictWorkingDirectory)
		if err != nil {
			return connHandle{}, err
		}
		return connHandle{client: client}, nil
	}

	uploadTool := mcp.NewTool("sftp_upload",
		mcp.WithDescription("Upload a local file to a remote path over an established SSH connection."),
		mcp.WithString("connectionId", mcp.Required()),
		mcp.WithString("localPath", mcp.Required()),
		mcp.WithString("remotePath", mcp.Required()),
	)
	s.AddTool(uploadTool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		handle, err := resolveClient(ctx, req.GetString("connectionId", ""))
		if err != nil {
			return errorResult(err), nil
		}
		if err := handle.client.Upload(req.GetString("localPath", ""), req.GetString("remotePath", "")); err != nil {
			return errorResult(err), nil
		}
		return jsonResult(map[string]any{"uploaded": true}), nil
	})

	downloadTool := mcp.NewTool("sftp_download",
		mcp.WithDescription("Download a remote file to a local path over an established SSH connection."),
		mcp.WithString("connectionId", mcp.Required()),
		mcp.WithString("remotePath", mcp.Required()),
		mcp.WithString("localPath", mcp.Required()),
	)
	s.AddTool(downloadTool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		handle, err := resolveClient(ctx, req.GetString("connectionId", ""))
		if err != nil {
			return errorResult(err), nil
		}
		if err := handle.client.Download(req.GetString("remotePath", ""), req.GetString("localPath", "")); err != nil {
			return errorResult(err), nil
		}
		return jsonResult(map[string]any{"downloaded": true}), nil
	})

	listTool := mcp.NewTool("sftp_list",
		mcp.WithDescription("List the entries of a remote directory."),
		mcp.WithString("connectionId", mcp.Required()),
		mcp.WithString("remoteDir", mcp.Required()),
	)
	s.AddTool(listTool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		handle, err := resolveClient(ctx, req.GetString("connectionId", ""))
		if err != nil {
			return errorResult(err), nil
		}
		entries, err := handle.client.List(req.GetString("remoteDir", ""))
		if err != nil {
			return errorResult(err), nil
		}
		return jsonResult(entries), nil
	})

	deleteTool := mcp.NewTool("sftp_delete",
		mcp.WithDescription("Delete a remote file or directory. isDirectory must match the remote entry's actual kind."),
		mcp.WithString("connectionId", mcp.Required()),
		mcp.WithString("remotePath", mcp.Required()),
		mcp.WithBoolean("isDirectory"),
	)
	s.AddTool(deleteTool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		handle, err := resolveClient(ctx, req.GetString("connectionId", ""))
		if err != nil {
			return errorResult(err), nil
		}
		if err := handle.client.Delete(req.GetString("remotePath", ""), req.GetBool("isDirectory", false)); err != nil {
			return errorResult(err), nil
		}
		return jsonResult(map[string]any{"deleted": true}), nil
	})
}

// connHandle wraps the resolved sftpops.Client so resolveClient has a
// single return type regardless of which tool called it.
type connHandle struct {
	client *sftpops.Client
}

package cmd

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/fsnotify/fsnotify"
	"github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"

	"github.com/opsguard/shellgate/internal/config"
	"github.com/opsguard/shellgate/internal/mcpserver"
)

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Read MCP tool requests from stdin and dispatch them (default command)",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe()
		},
	}
}

func runServe() error {
	configureLogging()

	path := resolveConfigPath()
	cfg, err := config.Load(path)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	gw, err := mcpserver.New(cfg, cfg.Security.KnownHostsPath, connectionsPath())
	if err != nil {
		return fmt.Errorf("build gateway: %w", err)
	}
	defer gw.Close()

	watchConfigFile(path)

	slog.Info("mcpserver.serve.started", "config", path, "shells", len(cfg.Shells))

	srv := mcpserver.NewServer(gw, Version)
	return server.ServeStdio(srv)
}

func configureLogging() {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	handler := slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level})
	slog.SetDefault(slog.New(handler))
}

func connectionsPath() string {
	if v := os.Getenv("SHELLGATE_CONNECTIONS"); v != "" {
		return v
	}
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}
	return home + "/.win-cli-mcp/ssh_connections.json"
}

// watchConfigFile logs external edits to the active config file. Hot
// reload of a live gateway's security policy is out of scope: the
// watcher surfaces the edit so an operator can restart the process.
func watchConfigFile(path string) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		slog.Debug("mcpserver.config_watch.unavailable", "error", err)
		return
	}
	if err := watcher.Add(path); err != nil {
		slog.Debug("mcpserver.config_watch.unavailable", "path", path, "error", err)
		watcher.Close()
		return
	}
	go func() {
		for event := range watcher.Events {
			if event.Op&(fsnotify.Write|fsnotify.Create) != 0 {
				slog.Info("mcpserver.config_file.changed", "path", event.Name)
			}
		}
	}()
}

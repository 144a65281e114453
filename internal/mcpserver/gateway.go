// Package mcpserver wires the security pipeline, process executor, SSH
// subsystem, SFTP operations, and job/history registries into an MCP tool
// server exposed over stdio.
package mcpserver

import (
	"context"
	"time"

	"github.com/opsguard/shellgate/internal/config"
	"github.com/opsguard/shellgate/internal/gwerrors"
	"github.com/opsguard/shellgate/internal/knownhosts"
	"github.com/opsguard/shellgate/internal/policy"
	"github.com/opsguard/shellgate/internal/procexec"
	"github.com/opsguard/shellgate/internal/registry"
	"github.com/opsguard/shellgate/internal/sftpops"
	"github.com/opsguard/shellgate/internal/sshconfig"
	"github.com/opsguard/shellgate/internal/sshpool"
)

// Gateway holds every long-lived collaborator a tool handler needs. It is
// constructed once at startup and shared by every registered tool.
type Gateway struct {
	Config      *config.Config
	Engine      *policy.Engine
	History     *registry.History
	Jobs        *registry.Registry
	Pool        *sshpool.Pool
	KnownHosts  *knownhosts.Store
	Connections *sshconfig.Store
}

// New builds a Gateway from a loaded config. It owns construction order:
// the policy engine depends on the converted security policy, the pool
// depends on the known-hosts store, and the job registry depends on the
// history ring so completed jobs are appended automatically.
func New(cfg *config.Config, knownHostsPath, connectionsPath string) (*Gateway, error) {
	hosts := knownhosts.New(knownHostsPath)

	history := registry.NewHistory(cfg.Security.MaxHistorySize)
	jobs := registry.NewRegistry(cfg.Security.MaxJobs, history)
	pool := sshpool.NewPool(hosts, cfg.Security.MaxPoolSize)
	connections := sshconfig.New(connectionsPath)

	return &Gateway{
		Config:      cfg,
		Engine:      policy.NewEngine(cfg.ToSecurityPolicy()),
		History:     history,
		Jobs:        jobs,
		Pool:        pool,
		KnownHosts:  hosts,
		Connections: connections,
	}, nil
}

// Close stops background goroutines and closes pooled SSH connections.
func (g *Gateway) Close() {
	g.History.Stop()
	g.Jobs.Stop()
	g.Pool.CloseAll()
}

// shellProfile resolves a shell name to its profile, returning a
// SEC001-coded PolicyError if the shell is unknown. A disabled profile is
// returned as-is; Engine.Validate is what rejects it.
func (g *Gateway) shellProfile(name string) (*policy.ShellProfile, error) {
	profile, ok := g.Config.Shells[name]
	if !ok {
		return nil, gwerrors.NewPolicyError(gwerrors.SECBlockedCommand,
			"unknown shell profile", name, "Use one of the configured shells.",
			"check_security_config", map[string]any{"shell": name})
	}
	return profile, nil
}

func (g *Gateway) commandTimeout() time.Duration {
	secs := g.Config.Security.CommandTimeout
	if secs <= 0 {
		secs = 30
	}
	return time.Duration(secs) * time.Second
}

// sftpClientFor builds an sftpops.Client over the connection's live
// transport, dialing lazily if the connection has not yet been used.
func (g *Gateway) sftpClientFor(ctx context.Context, conn *sshpool.Connection, allowedPaths []string, restrict bool) (*sftpops.Client, error) {
	client, err := conn.Client(ctx)
	if err != nil {
		return nil, err
	}
	return sftpops.New(client, allowedPaths, restrict), nil
}

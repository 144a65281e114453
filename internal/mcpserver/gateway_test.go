package mcpserver

import (
	"path/filepath"
	"testing"

	"github.com/opsguard/shellgate/internal/config"
)

func newTestGateway(t *testing.T) *Gateway {
	t.Helper()
	cfg := config.Default()
	dir := t.TempDir()
	gw, err := New(cfg, filepath.Join(dir, "known_hosts.json"), filepath.Join(dir, "connections.json"))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(gw.Close)
	return gw
}

func TestShellProfileUnknown(t *testing.T) {
	gw := newTestGateway(t)
	if _, err := gw.shellProfile("nonexistent"); err == nil {
		t.Fatal("expected an error for an unconfigured shell profile")
	}
}

func TestShellProfileKnown(t *testing.T) {
	gw := newTestGateway(t)
	profile, err := gw.shellProfile("gitbash")
	if err != nil {
		t.Fatalf("shellProfile: %v", err)
	}
	if profile.Name != "gitbash" {
		t.Errorf("Name = %q, want gitbash", profile.Name)
	}
}

func TestCommandTimeoutFallsBackWhenUnset(t *testing.T) {
	gw := newTestGateway(t)
	gw.Config.Security.CommandTimeout = 0
	if got := gw.commandTimeout(); got.Seconds() != 30 {
		t.Errorf("commandTimeout() = %v, want 30s", got)
	}
}

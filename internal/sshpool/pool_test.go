package sshpool

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/opsguard/shellgate/internal/knownhosts"
)

func testHosts(t *testing.T) *knownhosts.Store {
	return knownhosts.New(filepath.Join(t.TempDir(), "known_hosts.json"))
}

func TestPoolEvictsLRUWhenFull(t *testing.T) {
	pool := NewPool(testHosts(t), 2)

	a := &Connection{cfg: Config{ID: "a"}, lastActivity: time.Now().Add(-time.Hour), stopCh: make(chan struct{})}
	b := &Connection{cfg: Config{ID: "b"}, lastActivity: time.Now().Add(-time.Minute), stopCh: make(chan struct{})}
	pool.connections["a"] = a
	pool.connections["b"] = b

	pool.mu.Lock()
	pool.evictLRULocked()
	pool.mu.Unlock()

	if _, ok := pool.connections["a"]; ok {
		t.Error("expected least-recently-used connection 'a' to be evicted")
	}
	if _, ok := pool.connections["b"]; !ok {
		t.Error("expected 'b' to remain pooled")
	}
}

func TestPoolEvictsIdleConnections(t *testing.T) {
	pool := NewPool(testHosts(t), 10)
	stale := &Connection{cfg: Config{ID: "stale"}, lastActivity: time.Now().Add(-idleReconnectCutoff - time.Minute), stopCh: make(chan struct{})}
	fresh := &Connection{cfg: Config{ID: "fresh"}, lastActivity: time.Now(), stopCh: make(chan struct{})}
	pool.connections["stale"] = stale
	pool.connections["fresh"] = fresh

	pool.mu.Lock()
	pool.evictIdleLocked()
	pool.mu.Unlock()

	if _, ok := pool.connections["stale"]; ok {
		t.Error("expected idle connection to be evicted")
	}
	if _, ok := pool.connections["fresh"]; !ok {
		t.Error("expected fresh connection to remain pooled")
	}
}

func TestPoolRemove(t *testing.T) {
	pool := NewPool(testHosts(t), 10)
	conn := &Connection{cfg: Config{ID: "a"}, stopCh: make(chan struct{})}
	pool.connections["a"] = conn

	if err := pool.Remove("a"); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if len(pool.List()) != 0 {
		t.Error("expected pool to be empty after Remove")
	}
}

func TestPoolRemoveUnknownErrors(t *testing.T) {
	pool := NewPool(testHosts(t), 10)
	if err := pool.Remove("missing"); err == nil {
		t.Fatal("expected error removing unknown connection id")
	}
}

func TestBackoffDelayCapsAtMax(t *testing.T) {
	d := backoffDelay(10)
	if d > maxBackoff {
		t.Errorf("backoffDelay(10) = %v, want <= %v", d, maxBackoff)
	}
}

func TestBackoffDelayGrowsWithAttempt(t *testing.T) {
	d1 := backoffDelay(1)
	d3 := backoffDelay(3)
	if d3 <= d1 {
		t.Errorf("expected backoff to grow: attempt 1 = %v, attempt 3 = %v", d1, d3)
	}
}

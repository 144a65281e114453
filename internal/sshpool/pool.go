package sshpool

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/opsguard/shellgate/internal/knownhosts"
)

// defaultMaxPoolSize is the live-connection cap before LRU eviction
// kicks in.
const defaultMaxPoolSize = 10

// Pool owns every pooled Connection and is the sole actor that creates,
// evicts, and closes them.
type Pool struct {
	hosts       *knownhosts.Store
	maxPoolSize int

	mu          sync.Mutex
	connections map[string]*Connection
}

// NewPool builds an empty pool backed by hosts for TOFU verification.
func NewPool(hosts *knownhosts.Store, maxPoolSize int) *Pool {
	if maxPoolSize <= 0 {
		maxPoolSize = defaultMaxPoolSize
	}
	return &Pool{
		hosts:       hosts,
		maxPoolSize: maxPoolSize,
		connections: make(map[string]*Connection),
	}
}

// GetConnection returns the pooled connection for cfg.ID, evicting idle
// and failed entries first and, if the pool is still full, evicting the
// least-recently-used connection to make room.
func (p *Pool) GetConnection(ctx context.Context, cfg Config) (*Connection, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.evictIdleLocked()

	if existing, ok := p.connections[cfg.ID]; ok {
		if existing.HasFailed() {
			existing.Close()
			delete(p.connections, cfg.ID)
		} else {
			return existing, nil
		}
	}

	if len(p.connections) >= p.maxPoolSize {
		p.evictLRULocked()
	}

	cfg.OnFailure = p.removeCallback()
	conn := NewConnection(cfg, p.hosts)
	p.connections[cfg.ID] = conn
	return conn, nil
}

// removeCallback is wired into a Connection's OnFailure hook so a
// connection that exhausts its reconnect attempts removes itself from
// the pool without the pool polling for failure.
func (p *Pool) removeCallback() func(id string) {
	return func(id string) {
		p.mu.Lock()
		defer p.mu.Unlock()
		if conn, ok := p.connections[id]; ok {
			conn.Close()
			delete(p.connections, id)
		}
		slog.Warn("sshpool.connection.failed", "id", id)
	}
}

func (p *Pool) evictIdleLocked() {
	for id, conn := range p.connections {
		if time.Since(conn.LastActivity()) >= idleReconnectCutoff {
			conn.Close()
			delete(p.connections, id)
		}
	}
}

func (p *Pool) evictLRULocked() {
	var oldestID string
	var oldestTime time.Time
	first := true
	for id, conn := range p.connections {
		t := conn.LastActivity()
		if first || t.Before(oldestTime) {
			oldestID = id
			oldestTime = t
			first = false
		}
	}
	if oldestID != "" {
		p.connections[oldestID].Close()
		delete(p.connections, oldestID)
	}
}

// Remove explicitly closes and drops a connection by id.
func (p *Pool) Remove(id string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	conn, ok := p.connections[id]
	if !ok {
		return fmt.Errorf("no connection with id %q", id)
	}
	delete(p.connections, id)
	return conn.Close()
}

// List returns the ids of all currently pooled connections.
func (p *Pool) List() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	ids := make([]string, 0, len(p.connections))
	for id := range p.connections {
		ids = append(ids, id)
	}
	return ids
}

// CloseAll terminates every connection and empties the pool. Called at
// shutdown.
func (p *Pool) CloseAll() {
	p.mu.Lock()
	defer p.mu.Unlock()
	for id, conn := range p.connections {
		conn.Close()
		delete(p.connections, id)
	}
}

// Package sshpool manages pooled SSH connections: lazy connect, shell
// type detection, an exponential-backoff reconnect state machine, and
// LRU/idle eviction over the pool as a whole.
package sshpool

import (
	"bytes"
	"context"
	"fmt"
	"math/rand/v2"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/crypto/ssh"

	"github.com/opsguard/shellgate/internal/gwerrors"
	"github.com/opsguard/shellgate/internal/knownhosts"
)

// ShellType is the detected remote shell family. Unknown is sticky and
// fail-closed: callers must apply the most restrictive policy rules.
type ShellType string

const (
	ShellBash       ShellType = "bash"
	ShellSh         ShellType = "sh"
	ShellPowerShell ShellType = "powershell"
	ShellCmd        ShellType = "cmd"
	ShellUnknown    ShellType = "unknown"
)

// State is the reconnect state machine's current phase.
type State string

const (
	StateConnected    State = "connected"
	StateDisconnected State = "disconnected"
	StateBackoff      State = "backoff"
	StateConnecting   State = "connecting"
	StateFailed       State = "failed"
)

const (
	initialBackoff       = 1 * time.Second
	maxBackoff           = 60 * time.Second
	maxReconnectAttempts = 10
	idleReconnectCutoff  = 30 * time.Minute
	readyTimeout         = 10 * time.Second
)

// Config describes how to reach and authenticate to one SSH host.
type Config struct {
	ID                    string
	Host                  string
	Port                  int
	User                  string
	Password              string
	PrivateKeyPath        string
	StrictHostKeyChecking bool
	KeepAliveInterval     time.Duration
	KeepAliveCountMax     int
	OnFailure             func(id string)
}

func (c Config) addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// Connection is a per-host pooled wrapper around an *ssh.Client.
type Connection struct {
	cfg   Config
	hosts *knownhosts.Store

	mu                sync.Mutex
	client            *ssh.Client
	state             State
	detectedShellType ShellType
	reconnectAttempts int
	lastActivity      time.Time

	connected atomic.Bool
	stopCh    chan struct{}
	stopOnce  sync.Once
}

// NewConnection builds a Connection that has not yet dialed the remote
// host. Dialing happens lazily on the first ExecuteCommand call.
func NewConnection(cfg Config, hosts *knownhosts.Store) *Connection {
	return &Connection{
		cfg:               cfg,
		hosts:             hosts,
		state:             StateDisconnected,
		detectedShellType: "",
		lastActivity:      time.Now(),
		stopCh:            make(chan struct{}),
	}
}

// IsConnected reports whether the underlying client is currently live.
func (c *Connection) IsConnected() bool { return c.connected.Load() }

// LastActivity returns the last time this connection was touched by a
// command or a successful dial, for LRU/idle-eviction bookkeeping.
func (c *Connection) LastActivity() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastActivity
}

// HasFailed reports whether the reconnect state machine gave up.
func (c *Connection) HasFailed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state == StateFailed
}

func (c *Connection) touch() {
	c.mu.Lock()
	c.lastActivity = time.Now()
	c.mu.Unlock()
}

// connect dials and authenticates, verifying the host key through the
// known-hosts store before the handshake is allowed to complete.
func (c *Connection) connect(ctx context.Context) error {
	auth, err := c.authMethods()
	if err != nil {
		return gwerrors.NewExecError(gwerrors.EXECSSHTransport, "failed to prepare authentication", err.Error(), "")
	}

	clientCfg := &ssh.ClientConfig{
		User:            c.cfg.User,
		Auth:            auth,
		Timeout:         readyTimeout,
		HostKeyCallback: c.hostKeyCallback(),
	}

	client, err := ssh.Dial("tcp", c.cfg.addr(), clientCfg)
	if err != nil {
		return gwerrors.NewExecError(gwerrors.EXECSSHTransport, "failed to connect to remote host", err.Error(), "")
	}

	c.mu.Lock()
	c.client = client
	c.state = StateConnected
	c.reconnectAttempts = 0
	c.detectedShellType = ""
	c.lastActivity = time.Now()
	c.mu.Unlock()
	c.connected.Store(true)

	go c.watch(client)
	return nil
}

func (c *Connection) authMethods() ([]ssh.AuthMethod, error) {
	if c.cfg.PrivateKeyPath != "" {
		keyBytes, err := os.ReadFile(c.cfg.PrivateKeyPath)
		if err != nil {
			return nil, fmt.Errorf("read private key: %w", err)
		}
		signer, err := ssh.ParsePrivateKey(keyBytes)
		if err != nil {
			return nil, fmt.Errorf("parse private key: %w", err)
		}
		return []ssh.AuthMethod{ssh.PublicKeys(signer)}, nil
	}
	return []ssh.AuthMethod{ssh.Password(c.cfg.Password)}, nil
}

// hostKeyCallback bridges golang.org/x/crypto/ssh's verification hook
// into the known-hosts TOFU store.
func (c *Connection) hostKeyCallback() ssh.HostKeyCallback {
	return func(hostname string, remote fmt.Stringer, key ssh.PublicKey) error {
		return c.hosts.Verify(c.cfg.addr(), key.Marshal(), c.cfg.StrictHostKeyChecking, time.Now())
	}
}

// watch blocks until the underlying client's transport closes, then
// drives the reconnect state machine.
func (c *Connection) watch(client *ssh.Client) {
	err := client.Wait()
	c.connected.Store(false)

	c.mu.Lock()
	if c.client == client {
		c.state = StateDisconnected
	}
	c.mu.Unlock()

	select {
	case <-c.stopCh:
		return
	default:
	}

	_ = err
	c.scheduleReconnect()
}

// scheduleReconnect implements the backoff state machine: only
// reschedules while the connection was active recently; idle
// connections are allowed to drop quietly.
func (c *Connection) scheduleReconnect() {
	c.mu.Lock()
	if time.Since(c.lastActivity) >= idleReconnectCutoff {
		c.mu.Unlock()
		return
	}
	if c.reconnectAttempts >= maxReconnectAttempts {
		c.state = StateFailed
		c.mu.Unlock()
		if c.cfg.OnFailure != nil {
			c.cfg.OnFailure(c.cfg.ID)
		}
		return
	}
	c.reconnectAttempts++
	attempt := c.reconnectAttempts
	c.state = StateBackoff
	c.mu.Unlock()

	delay := backoffDelay(attempt)
	timer := time.NewTimer(delay)
	defer timer.Stop()

	select {
	case <-c.stopCh:
		return
	case <-timer.C:
	}

	c.mu.Lock()
	c.state = StateConnecting
	c.mu.Unlock()

	if err := c.connect(context.Background()); err != nil {
		c.mu.Lock()
		c.state = StateDisconnected
		c.mu.Unlock()
		c.scheduleReconnect()
	}
}

// backoffDelay computes min(60s, base*2^(n-1) + jitter) for attempt n
// (1-indexed), jitter uniform in [0, 1s).
func backoffDelay(attempt int) time.Duration {
	delay := initialBackoff * time.Duration(1<<uint(attempt-1))
	if delay > maxBackoff {
		delay = maxBackoff
	}
	jitter := time.Duration(pseudoJitterMillis(attempt)) * time.Millisecond
	total := delay + jitter
	if total > maxBackoff {
		total = maxBackoff
	}
	return total
}

// pseudoJitterMillis draws a jitter value uniformly from [0, 1000) so
// connections that drop together do not all reconnect in lockstep.
func pseudoJitterMillis(attempt int) int {
	return rand.IntN(1000)
}

// EnsureReady lazily connects and runs shell-type detection if neither has
// happened yet, so callers can inspect DetectedShellType before deciding
// whether to run a command (e.g. to pick which policy rules apply).
func (c *Connection) EnsureReady(ctx context.Context) error {
	c.mu.Lock()
	needsConnect := c.client == nil
	c.mu.Unlock()
	if needsConnect {
		if dialErr := c.connect(ctx); dialErr != nil {
			return dialErr
		}
	}
	c.detectShellTypeOnce(ctx)
	return nil
}

// ExecuteCommand lazily connects, detects the remote shell type on the
// first call, runs cmd with env, and returns its stdout, its stderr, and
// the exit code.
func (c *Connection) ExecuteCommand(ctx context.Context, cmd string, env map[string]string) (stdout, stderr string, exitCode int, err error) {
	if err := c.EnsureReady(ctx); err != nil {
		return "", "", -1, err
	}
	c.touch()

	c.mu.Lock()
	client := c.client
	c.mu.Unlock()

	session, sessErr := client.NewSession()
	if sessErr != nil {
		return "", "", -1, gwerrors.NewExecError(gwerrors.EXECSSHTransport, "failed to open SSH session", sessErr.Error(), "")
	}
	defer session.Close()

	for k, v := range env {
		_ = session.Setenv(k, v) // best-effort: many servers disable SetEnv by default
	}

	var outBuf, errBuf bytes.Buffer
	session.Stdout = &outBuf
	session.Stderr = &errBuf

	runErr := session.Run(cmd)
	exitCode = 0
	if runErr != nil {
		if exitErr, ok := runErr.(*ssh.ExitError); ok {
			exitCode = exitErr.ExitStatus()
		} else {
			return outBuf.String(), errBuf.String(), -1, gwerrors.NewExecError(gwerrors.EXECSSHTransport, "remote command execution failed", runErr.Error(), "")
		}
	}
	return outBuf.String(), errBuf.String(), exitCode, nil
}

// detectShellTypeOnce probes the remote shell exactly once per
// connection lifetime: echo $SHELL, then PowerShell's version table. If
// both fail the detection is sticky at ShellUnknown.
func (c *Connection) detectShellTypeOnce(ctx context.Context) {
	c.mu.Lock()
	already := c.detectedShellType != ""
	client := c.client
	c.mu.Unlock()
	if already || client == nil {
		return
	}

	detected := ShellUnknown
	if out, _, code, err := c.runProbe(client, "echo $SHELL"); err == nil && code == 0 && strings.TrimSpace(out) != "" {
		if strings.Contains(out, "bash") {
			detected = ShellBash
		} else {
			detected = ShellSh
		}
	} else if out, _, code, err := c.runProbe(client, "$PSVersionTable.PSVersion"); err == nil && code == 0 && strings.TrimSpace(out) != "" {
		detected = ShellPowerShell
	}

	c.mu.Lock()
	c.detectedShellType = detected
	c.mu.Unlock()
}

func (c *Connection) runProbe(client *ssh.Client, cmd string) (string, string, int, error) {
	session, err := client.NewSession()
	if err != nil {
		return "", "", -1, err
	}
	defer session.Close()

	var out, errOut bytes.Buffer
	session.Stdout = &out
	session.Stderr = &errOut
	runErr := session.Run(cmd)
	exitCode := 0
	if runErr != nil {
		if exitErr, ok := runErr.(*ssh.ExitError); ok {
			exitCode = exitErr.ExitStatus()
		} else {
			return "", "", -1, runErr
		}
	}
	return out.String(), errOut.String(), exitCode, nil
}

// DetectedShellType returns the sticky shell-type detection result.
func (c *Connection) DetectedShellType() ShellType {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.detectedShellType == "" {
		return ShellUnknown
	}
	return c.detectedShellType
}

// Client dials if necessary and returns the live *ssh.Client for callers
// that need raw transport access (SFTP sessions).
func (c *Connection) Client(ctx context.Context) (*ssh.Client, error) {
	c.mu.Lock()
	needsConnect := c.client == nil
	c.mu.Unlock()
	if needsConnect {
		if err := c.connect(ctx); err != nil {
			return nil, err
		}
	}
	c.touch()
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.client, nil
}

// Close stops the reconnect loop and closes the underlying client.
func (c *Connection) Close() error {
	c.stopOnce.Do(func() { close(c.stopCh) })
	c.mu.Lock()
	client := c.client
	c.mu.Unlock()
	c.connected.Store(false)
	if client != nil {
		return client.Close()
	}
	return nil
}

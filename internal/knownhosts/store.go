// Package knownhosts implements a trust-on-first-use host key store for
// the SSH subsystem: a content-addressable "host:port" -> entry mapping
// persisted as JSON, guarded by an in-process mutex plus an advisory
// file lock so concurrent processes never lose a write.
package knownhosts

import (
	"crypto/sha256"
	"encoding/base64"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/opsguard/shellgate/internal/filelock"
	"github.com/opsguard/shellgate/internal/gwerrors"
)

// Entry is a single trusted host key record.
type Entry struct {
	Algorithm   string    `json:"algorithm"`
	Fingerprint string    `json:"fingerprint"`
	PublicKey   string    `json:"publicKey"` // base64
	FirstSeen   time.Time `json:"firstSeen"`
	LastSeen    time.Time `json:"lastSeen"`
}

// Store is the on-disk known-hosts document plus the locks that
// serialize concurrent writers, in-process and cross-process.
type Store struct {
	path string
	lock *filelock.Lock

	mu      sync.Mutex
	entries map[string]Entry
	loaded  bool
}

// New returns a Store reading/writing path. path is created on first
// write; it does not need to exist yet.
func New(path string) *Store {
	return &Store{path: path, lock: filelock.New(path)}
}

// DefaultPath is the documented default known-hosts location.
func DefaultPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}
	return filepath.Join(home, ".win-cli-mcp", "known_hosts.json")
}

func (s *Store) load() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loadLocked()
}

func (s *Store) loadLocked() error {
	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		s.entries = make(map[string]Entry)
		s.loaded = true
		return nil
	}
	if err != nil {
		return err
	}
	var entries map[string]Entry
	if err := json.Unmarshal(data, &entries); err != nil {
		return fmt.Errorf("parse known hosts file: %w", err)
	}
	if entries == nil {
		entries = make(map[string]Entry)
	}
	s.entries = entries
	s.loaded = true
	return nil
}

func (s *Store) writeLocked() error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0700); err != nil {
		return err
	}
	data, err := json.MarshalIndent(s.entries, "", "  ")
	if err != nil {
		return err
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0600); err != nil {
		return err
	}
	return os.Rename(tmp, s.path)
}

// Fingerprint computes the "SHA256:<base64>" fingerprint of a raw SSH
// public key blob.
func Fingerprint(keyBytes []byte) string {
	sum := sha256.Sum256(keyBytes)
	return "SHA256:" + base64.StdEncoding.EncodeToString(sum[:])
}

// AlgorithmOf reads the length-prefixed algorithm name from the start of
// an SSH wire-format public key blob. Parse failure yields "unknown"
// rather than an error, since this is a display hint, not a security check.
func AlgorithmOf(keyBytes []byte) string {
	if len(keyBytes) < 4 {
		return "unknown"
	}
	n := binary.BigEndian.Uint32(keyBytes[:4])
	if uint64(n) > uint64(len(keyBytes)-4) {
		return "unknown"
	}
	return string(keyBytes[4 : 4+n])
}

// Verify checks an incoming key for hostPort against the store under the
// TOFU (strict=false) or strict (strict=true) policy described in the
// verification contract. now is injected for deterministic testing.
func (s *Store) Verify(hostPort string, keyBytes []byte, strict bool, now time.Time) error {
	if err := filelock.WithLock(s.lock, func() error {
		s.mu.Lock()
		defer s.mu.Unlock()
		if err := s.loadLocked(); err != nil {
			return err
		}

		fingerprint := Fingerprint(keyBytes)
		algorithm := AlgorithmOf(keyBytes)
		encoded := base64.StdEncoding.EncodeToString(keyBytes)

		existing, ok := s.entries[hostPort]
		switch {
		case !ok && strict:
			return gwerrors.NewPolicyError(gwerrors.SECUnknownHost,
				"host key is not in the known hosts store",
				fmt.Sprintf("%s fingerprint %s", hostPort, fingerprint),
				"Disable strict host key checking to accept this key on first use, or add it manually.",
				"get_known_hosts", map[string]any{"hostPort": hostPort})

		case !ok && !strict:
			s.entries[hostPort] = Entry{
				Algorithm:   algorithm,
				Fingerprint: fingerprint,
				PublicKey:   encoded,
				FirstSeen:   now,
				LastSeen:    now,
			}
			return s.writeLocked()

		case ok && existing.PublicKey == encoded:
			existing.LastSeen = now
			s.entries[hostPort] = existing
			return s.writeLocked()

		default:
			return gwerrors.NewPolicyError(gwerrors.SECHostKeyMismatch,
				"host key does not match the previously trusted key, possible man-in-the-middle",
				fmt.Sprintf("%s: expected %s, got %s (store: %s)", hostPort, existing.Fingerprint, fingerprint, s.path),
				"Verify the host's identity out-of-band before removing and re-trusting this key.",
				"get_known_hosts", map[string]any{"hostPort": hostPort})
		}
	}); err != nil {
		return err
	}
	return nil
}

// Get returns the stored entry for hostPort, if any.
func (s *Store) Get(hostPort string) (Entry, bool, error) {
	var entry Entry
	var found bool
	err := filelock.WithLock(s.lock, func() error {
		s.mu.Lock()
		defer s.mu.Unlock()
		if err := s.loadLocked(); err != nil {
			return err
		}
		entry, found = s.entries[hostPort]
		return nil
	})
	return entry, found, err
}

// All returns a defensive copy of every stored entry, keyed by "host:port".
func (s *Store) All() (map[string]Entry, error) {
	out := make(map[string]Entry)
	err := filelock.WithLock(s.lock, func() error {
		s.mu.Lock()
		defer s.mu.Unlock()
		if err := s.loadLocked(); err != nil {
			return err
		}
		for k, v := range s.entries {
			out[k] = v
		}
		return nil
	})
	return out, err
}

// Remove deletes the entry for hostPort under the same lock discipline
// Verify uses, so the next connection starts as a fresh TOFU.
func (s *Store) Remove(hostPort string) error {
	return filelock.WithLock(s.lock, func() error {
		s.mu.Lock()
		defer s.mu.Unlock()
		if err := s.loadLocked(); err != nil {
			return err
		}
		if _, ok := s.entries[hostPort]; !ok {
			return fmt.Errorf("no known host entry for %s", hostPort)
		}
		delete(s.entries, hostPort)
		return s.writeLocked()
	})
}

// Package sshconfig persists named SSH connection configurations (host,
// user, auth material, pooling knobs) under the same file-lock +
// write-temp-then-rename discipline as the known-hosts store.
package sshconfig

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/google/uuid"

	"github.com/opsguard/shellgate/internal/filelock"
)

// Entry is a named, persisted SSH connection configuration.
type Entry struct {
	ID                    string `json:"id"`
	Host                  string `json:"host"`
	Port                  int    `json:"port"`
	User                  string `json:"user"`
	Password              string `json:"password,omitempty"`
	PrivateKeyPath        string `json:"privateKeyPath,omitempty"`
	StrictHostKeyChecking bool   `json:"strictHostKeyChecking"`
	KeepAliveIntervalSec  int    `json:"keepAliveIntervalSec,omitempty"`
	KeepAliveCountMax     int    `json:"keepAliveCountMax,omitempty"`
}

// Store is the on-disk connection table, keyed by Entry.ID.
type Store struct {
	path string
	lock *filelock.Lock

	mu      sync.Mutex
	entries map[string]Entry
}

// New returns a Store reading/writing path.
func New(path string) *Store {
	return &Store{path: path, lock: filelock.New(path)}
}

func (s *Store) loadLocked() error {
	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		s.entries = make(map[string]Entry)
		return nil
	}
	if err != nil {
		return err
	}
	var entries map[string]Entry
	if err := json.Unmarshal(data, &entries); err != nil {
		return fmt.Errorf("parse ssh connection store: %w", err)
	}
	if entries == nil {
		entries = make(map[string]Entry)
	}
	s.entries = entries
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

// Create assigns a new id (unless entry.ID is already set) and persists
// entry.
func (s *Store) Create(entry Entry) (Entry, error) {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	err := filelock.WithLock(s.lock, func() error {
		s.mu.Lock()
		defer s.mu.Unlock()
		if err := s.loadLocked(); err != nil {
			return err
		}
		if _, exists := s.entries[entry.ID]; exists {
			return fmt.Errorf("connection id %q already exists", entry.ID)
		}
		s.entries[entry.ID] = entry
		return s.writeLocked()
	})
	return entry, err
}

// Read returns the entry for id.
func (s *Store) Read(id string) (Entry, bool, error) {
	var entry Entry
	var found bool
	err := filelock.WithLock(s.lock, func() error {
		s.mu.Lock()
		defer s.mu.Unlock()
		if err := s.loadLocked(); err != nil {
			return err
		}
		entry, found = s.entries[id]
		return nil
	})
	return entry, found, err
}

// Update replaces the entry for entry.ID, which must already exist.
func (s *Store) Update(entry Entry) error {
	return filelock.WithLock(s.lock, func() error {
		s.mu.Lock()
		defer s.mu.Unlock()
		if err := s.loadLocked(); err != nil {
			return err
		}
		if _, exists := s.entries[entry.ID]; !exists {
			return fmt.Errorf("no connection with id %q", entry.ID)
		}
		s.entries[entry.ID] = entry
		return s.writeLocked()
	})
}

// Delete removes the entry for id.
func (s *Store) Delete(id string) error {
	return filelock.WithLock(s.lock, func() error {
		s.mu.Lock()
		defer s.mu.Unlock()
		if err := s.loadLocked(); err != nil {
			return err
		}
		if _, exists := s.entries[id]; !exists {
			return fmt.Errorf("no connection with id %q", id)
		}
		delete(s.entries, id)
		return s.writeLocked()
	})
}

// List returns a defensive copy of every stored entry.
func (s *Store) List() ([]Entry, error) {
	var out []Entry
	err := filelock.WithLock(s.lock, func() error {
		s.mu.Lock()
		defer s.mu.Unlock()
		if err := s.loadLocked(); err != nil {
			return err
		}
		out = make([]Entry, 0, len(s.entries))
		for _, e := range s.entries {
			out = append(out, e)
		}
		return nil
	})
	return out, err
}

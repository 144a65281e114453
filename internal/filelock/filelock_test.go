package filelock

import (
	"path/filepath"
	"testing"
)

func TestAcquireRelease(t *testing.T) {
	target := filepath.Join(t.TempDir(), "state.json")
	l := New(target)
	if err := l.Acquire(); err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	if err := l.Release(); err != nil {
		t.Fatalf("Release: %v", err)
	}
}

func TestWithLockRunsFn(t *testing.T) {
	target := filepath.Join(t.TempDir(), "state.json")
	l := New(target)
	ran := false
	if err := WithLock(l, func() error {
		ran = true
		return nil
	}); err != nil {
		t.Fatalf("WithLock: %v", err)
	}
	if !ran {
		t.Error("expected fn to run")
	}
}

func TestReacquireAfterRelease(t *testing.T) {
	target := filepath.Join(t.TempDir(), "state.json")
	l := New(target)
	if err := l.Acquire(); err != nil {
		t.Fatalf("first Acquire: %v", err)
	}
	if err := l.Release(); err != nil {
		t.Fatalf("Release: %v", err)
	}
	if err := l.Acquire(); err != nil {
		t.Fatalf("second Acquire: %v", err)
	}
	if err := l.Release(); err != nil {
		t.Fatalf("final Release: %v", err)
	}
}

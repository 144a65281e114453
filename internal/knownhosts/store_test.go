package knownhosts

import (
	"encoding/base64"
	"path/filepath"
	"testing"
	"time"

	"github.com/opsguard/shellgate/internal/gwerrors"
)

func TestVerifyTOFUAcceptsFirstKey(t *testing.T) {
	store := New(filepath.Join(t.TempDir(), "known_hosts.json"))
	key := []byte("fake-key-bytes-1")
	if err := store.Verify("example.com:22", key, false, time.Now()); err != nil {
		t.Fatalf("unexpected error on first-use accept: %v", err)
	}

	entry, ok, err := store.Get("example.com:22")
	if err != nil || !ok {
		t.Fatalf("expected stored entry, err=%v ok=%v", err, ok)
	}
	if entry.FirstSeen != entry.LastSeen {
		t.Errorf("expected firstSeen == lastSeen on first accept")
	}
}

func TestVerifyStrictRejectsUnknownHost(t *testing.T) {
	store := New(filepath.Join(t.TempDir(), "known_hosts.json"))
	err := store.Verify("example.com:22", []byte("key"), true, time.Now())
	if err == nil {
		t.Fatal("expected rejection in strict mode for unknown host")
	}
	pe, ok := gwerrors.AsPolicyError(err)
	if !ok || pe.Code != gwerrors.SECUnknownHost {
		t.Fatalf("expected SEC009, got %v", err)
	}
}

func TestVerifyMatchingKeyUpdatesLastSeen(t *testing.T) {
	store := New(filepath.Join(t.TempDir(), "known_hosts.json"))
	key := []byte("fake-key-bytes-2")
	first := time.Now().Add(-time.Hour)
	if err := store.Verify("host:22", key, false, first); err != nil {
		t.Fatal(err)
	}
	second := time.Now()
	if err := store.Verify("host:22", key, false, second); err != nil {
		t.Fatal(err)
	}
	entry, _, _ := store.Get("host:22")
	if !entry.LastSeen.Equal(second) {
		t.Errorf("lastSeen = %v, want %v", entry.LastSeen, second)
	}
	if !entry.FirstSeen.Equal(first) {
		t.Errorf("firstSeen should not move: got %v, want %v", entry.FirstSeen, first)
	}
}

func TestVerifyMismatchRejectsAndDoesNotOverwrite(t *testing.T) {
	store := New(filepath.Join(t.TempDir(), "known_hosts.json"))
	original := []byte("original-key-bytes")
	if err := store.Verify("host:22", original, false, time.Now()); err != nil {
		t.Fatal(err)
	}

	different := []byte("attacker-key-bytes")
	err := store.Verify("host:22", different, false, time.Now())
	if err == nil {
		t.Fatal("expected rejection on key mismatch (possible MITM)")
	}
	pe, ok := gwerrors.AsPolicyError(err)
	if !ok || pe.Code != gwerrors.SECHostKeyMismatch {
		t.Fatalf("expected SEC008, got %v", err)
	}

	entry, _, _ := store.Get("host:22")
	if entry.PublicKey != base64.StdEncoding.EncodeToString(original) {
		t.Error("known host entry was overwritten despite mismatch")
	}
}

func TestRemoveAllowsFreshTOFU(t *testing.T) {
	store := New(filepath.Join(t.TempDir(), "known_hosts.json"))
	key := []byte("key-bytes")
	if err := store.Verify("host:22", key, false, time.Now()); err != nil {
		t.Fatal(err)
	}
	if err := store.Remove("host:22"); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	different := []byte("different-key-bytes")
	if err := store.Verify("host:22", different, false, time.Now()); err != nil {
		t.Fatalf("expected fresh TOFU to accept any key: %v", err)
	}
}

package pathsec

import (
	"os"
	"path/filepath"
	"testing"
)

func TestCanonicalizeIdempotent(t *testing.T) {
	dir := t.TempDir()
	sub := filepath.Join(dir, "a", "b")
	if err := os.MkdirAll(sub, 0755); err != nil {
		t.Fatal(err)
	}

	once, err := Canonicalize(sub)
	if err != nil {
		t.Fatal(err)
	}
	twice, err := Canonicalize(once)
	if err != nil {
		t.Fatal(err)
	}
	if once != twice {
		t.Errorf("Canonicalize not idempotent: %q != %q", once, twice)
	}
}

func TestIsContainedSoundness(t *testing.T) {
	dir := t.TempDir()
	real, err := Canonicalize(dir)
	if err != nil {
		t.Fatal(err)
	}

	sub := filepath.Join(real, "subdir", "f")
	if err := os.MkdirAll(filepath.Dir(sub), 0755); err != nil {
		t.Fatal(err)
	}

	ok, err := IsContained(sub, []string{real})
	if err != nil {
		t.Fatal(err)
	}
	if !ok {
		t.Errorf("expected %q to be contained in %q", sub, real)
	}

	traversal := filepath.Join(real, "..", "outside")
	ok, err = IsContained(traversal, []string{real})
	if err != nil {
		t.Fatal(err)
	}
	if ok {
		t.Errorf("expected traversal path %q to escape %q", traversal, real)
	}

	sibling := real + "2"
	ok, err = IsContained(sibling, []string{real})
	if err != nil {
		t.Fatal(err)
	}
	if ok {
		t.Errorf("expected sibling path %q to NOT be contained in %q (partial suffix match)", sibling, real)
	}
}

func TestValidateWorkingDirectoryRejectsRelative(t *testing.T) {
	_, err := ValidateWorkingDirectory("relative/path", nil, false)
	if err == nil {
		t.Fatal("expected error for relative working directory")
	}
}

func TestValidateWorkingDirectoryRestricted(t *testing.T) {
	dir := t.TempDir()
	real, err := Canonicalize(dir)
	if err != nil {
		t.Fatal(err)
	}

	got, err := ValidateWorkingDirectory(real, []string{real}, true)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != real {
		t.Errorf("got %q, want %q", got, real)
	}

	outside := t.TempDir()
	if _, err := ValidateWorkingDirectory(outside, []string{real}, true); err == nil {
		t.Fatal("expected rejection for directory outside allowlist")
	}
}

package procexec

import (
	"bytes"
	"context"
	"sync"
	"testing"
	"time"

	"github.com/opsguard/shellgate/internal/gwerrors"
)

func TestRunSuccess(t *testing.T) {
	dir := t.TempDir()
	res, err := Run(context.Background(), Spec{
		Program:          "/bin/sh",
		ArgPrefix:        []string{"-c"},
		Command:          "echo hello",
		WorkingDirectory: dir,
		Timeout:          5 * time.Second,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.ExitCode != 0 {
		t.Errorf("exit code = %d, want 0", res.ExitCode)
	}
	if res.Stdout != "hello\n" {
		t.Errorf("stdout = %q, want %q", res.Stdout, "hello\n")
	}
}

func TestRunNonzeroExit(t *testing.T) {
	dir := t.TempDir()
	res, err := Run(context.Background(), Spec{
		Program:          "/bin/sh",
		ArgPrefix:        []string{"-c"},
		Command:          "exit 7",
		WorkingDirectory: dir,
		Timeout:          5 * time.Second,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.ExitCode != 7 {
		t.Errorf("exit code = %d, want 7", res.ExitCode)
	}
}

func TestRunTimeout(t *testing.T) {
	dir := t.TempDir()
	_, err := Run(context.Background(), Spec{
		Program:          "/bin/sh",
		ArgPrefix:        []string{"-c"},
		Command:          "sleep 5",
		WorkingDirectory: dir,
		Timeout:          200 * time.Millisecond,
	})
	if err == nil {
		t.Fatal("expected timeout error")
	}
	ee, ok := gwerrors.AsExecError(err)
	if !ok || ee.Code != gwerrors.EXECTimeout {
		t.Fatalf("expected EXEC002, got %v", err)
	}
}

// syncBuffer guards bytes.Buffer with a mutex since Run writes to Stream
// from the spawned command's own goroutine-fed pipes.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func TestRunStreamsToWriter(t *testing.T) {
	dir := t.TempDir()
	var stream syncBuffer
	res, err := Run(context.Background(), Spec{
		Program:          "/bin/sh",
		ArgPrefix:        []string{"-c"},
		Command:          "echo hello",
		WorkingDirectory: dir,
		Timeout:          5 * time.Second,
		Stream:           &stream,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Stdout != "hello\n" {
		t.Errorf("res.Stdout = %q, want %q", res.Stdout, "hello\n")
	}
	if stream.String() != "hello\n" {
		t.Errorf("stream = %q, want %q", stream.String(), "hello\n")
	}
}

func TestFormatNoOutput(t *testing.T) {
	got := Format(&Result{ExitCode: 0})
	want := "Command completed successfully (no output)"
	if got != want {
		t.Errorf("Format() = %q, want %q", got, want)
	}
}

func TestFormatNonzeroExit(t *testing.T) {
	got := Format(&Result{ExitCode: 1, Stderr: "boom"})
	if got == "" {
		t.Fatal("expected non-empty format")
	}
}

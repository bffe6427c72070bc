package sandbox

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestDenied(t *testing.T) {
	tests := []struct {
		cmd  string
		want bool
	}{
		{"rm -rf /", true},
		{"/bin/rm file", true},
		{"sudo apt install", true},
		{"echo hello", false},
		{"ls -la", false},
		{"", false},
		{"  ", false},
		{"format-code --all", false}, // only exact head match is blocked
	}
	for _, tt := range tests {
		if got := Denied(tt.cmd); got != tt.want {
			t.Errorf("Denied(%q) = %v, want %v", tt.cmd, got, tt.want)
		}
	}
}

func TestHostExecutorEcho(t *testing.T) {
	h := &HostExecutor{}
	stdout, stderr, code, err := h.Exec(context.Background(), "echo hello", "")
	if err != nil {
		t.Fatalf("exec: %v", err)
	}
	if code != 0 {
		t.Fatalf("exit code = %d, want 0", code)
	}
	if strings.TrimSpace(stdout) != "hello" {
		t.Fatalf("stdout = %q", stdout)
	}
	if stderr != "" {
		t.Fatalf("stderr = %q", stderr)
	}
}

func TestHostExecutorExitCode(t *testing.T) {
	h := &HostExecutor{}
	_, _, code, err := h.Exec(context.Background(), "exit 3", "")
	if err != nil {
		t.Fatalf("exec: %v", err)
	}
	if code != 3 {
		t.Fatalf("exit code = %d, want 3", code)
	}
}

func TestHostExecutorWorkDir(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "probe.txt"), []byte("x"), 0o644); err != nil {
		t.Fatalf("write probe: %v", err)
	}

	h := &HostExecutor{}
	stdout, _, code, err := h.Exec(context.Background(), "ls", dir)
	if err != nil || code != 0 {
		t.Fatalf("exec: code=%d err=%v", code, err)
	}
	if !strings.Contains(stdout, "probe.txt") {
		t.Fatalf("expected probe.txt in listing, got %q", stdout)
	}
}

func TestHostExecutorTimeout(t *testing.T) {
	h := &HostExecutor{Timeout: 100 * time.Millisecond}
	_, _, code, err := h.Exec(context.Background(), "sleep 5", "")
	if err == nil && code == 0 {
		t.Fatalf("expected timeout failure, got success")
	}
}

func TestNewWasmExecutorRequiresModuleDir(t *testing.T) {
	if _, err := NewWasmExecutor(WasmOptions{}); err == nil {
		t.Fatalf("expected error for missing module dir")
	}
}

func TestWasmExecutorMissingModule(t *testing.T) {
	w, err := NewWasmExecutor(WasmOptions{ModuleDir: t.TempDir()})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if _, _, _, err := w.Exec(context.Background(), "nope arg1", ""); err == nil {
		t.Fatalf("expected error for missing module")
	}
}

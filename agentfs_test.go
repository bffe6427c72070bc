package agentfs

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"testing"

	"github.com/basket/agentfs/backend"
	"github.com/basket/agentfs/config"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestNewDefaultStack(t *testing.T) {
	s, err := New(nil, Options{Logger: quietLogger()})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer s.Close()

	// No filesystem, no store path, no sandbox: bare state backend.
	if _, ok := s.Backend.(*backend.CompositeBackend); ok {
		t.Fatalf("single-mount stack should skip the composite")
	}
	if backend.SupportsExecute(s.Backend) {
		t.Fatalf("default stack must not support execute")
	}

	ctx := context.Background()
	res, err := s.Tools.Write(ctx, "/a.txt", "hello")
	if err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := s.Run.ApplyUpdate(res.Update); err != nil {
		t.Fatalf("apply: %v", err)
	}
	if _, ok := s.Run.Files()["/a.txt"]; !ok {
		t.Fatalf("written file missing from run state")
	}
}

func TestNewFullStack(t *testing.T) {
	dir := t.TempDir()
	cfg, err := config.Parse([]byte(`
filesystem:
  root: ` + dir + `
  virtual: true
store:
  driver: sqlite
  path: ` + filepath.Join(dir, "kv.db") + `
  namespace: test
sandbox:
  kind: host
`))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	s, err := New(cfg, Options{Logger: quietLogger()})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer s.Close()

	if _, ok := s.Backend.(*backend.CompositeBackend); !ok {
		t.Fatalf("multi-mount stack should be a composite, got %T", s.Backend)
	}
	if !backend.SupportsExecute(s.Backend) {
		t.Fatalf("host sandbox must enable execute")
	}

	ctx := context.Background()

	// The workspace mount reaches the real filesystem under the root.
	if res, err := s.Tools.Write(ctx, WorkspaceMount+"/f.txt", "on disk"); err != nil || strings.HasPrefix(res.Message, "Error:") {
		t.Fatalf("workspace write failed: %v / %q", err, res.Message)
	}
	res, err := s.Tools.Read(ctx, WorkspaceMount+"/f.txt", 0, 0)
	if err != nil {
		t.Fatalf("workspace read: %v", err)
	}
	if !strings.Contains(res.Message, "on disk") {
		t.Fatalf("workspace read = %q", res.Message)
	}

	// The memories mount persists through the durable store.
	if res, err := s.Tools.Write(ctx, MemoriesMount+"/note.md", "durable"); err != nil || strings.HasPrefix(res.Message, "Error:") {
		t.Fatalf("memories write failed: %v / %q", err, res.Message)
	}
	res, err = s.Tools.Read(ctx, MemoriesMount+"/note.md", 0, 0)
	if err != nil {
		t.Fatalf("memories read: %v", err)
	}
	if !strings.Contains(res.Message, "durable") {
		t.Fatalf("memories read = %q", res.Message)
	}

	// Execution goes through the host sandbox.
	execRes, err := s.Tools.Execute(ctx, "echo stack")
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if !strings.Contains(execRes.Message, "stack") || !strings.Contains(execRes.Message, "(exit code 0)") {
		t.Fatalf("execute message = %q", execRes.Message)
	}
}

func TestNewRejectsUnknownSandbox(t *testing.T) {
	cfg := config.Default()
	cfg.Sandbox.Kind = "chroot"
	if _, err := New(cfg, Options{Logger: quietLogger()}); err == nil {
		t.Fatalf("expected error for unknown sandbox kind")
	}
}

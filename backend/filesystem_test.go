package backend

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
)

func newTestFS(t *testing.T, virtual bool) *FilesystemBackend {
	t.Helper()
	b, err := NewFilesystemBackend(FilesystemOptions{
		Root:    t.TempDir(),
		Virtual: virtual,
		Logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	if err != nil {
		t.Fatalf("new filesystem backend: %v", err)
	}
	return b
}

func TestFilesystemWriteReadVirtual(t *testing.T) {
	ctx := context.Background()
	b := newTestFS(t, true)

	wr := b.Write(ctx, "/notes/today.txt", "alpha\nbeta")
	if wr.Err != "" {
		t.Fatalf("write: %s", wr.Err)
	}
	if wr.Update != nil {
		t.Fatalf("filesystem backend must not emit a state delta")
	}

	// The virtual path maps beneath the root.
	phys := filepath.Join(b.Root(), "notes", "today.txt")
	if _, err := os.Stat(phys); err != nil {
		t.Fatalf("expected physical file at %s: %v", phys, err)
	}

	if got := b.Read(ctx, "/notes/today.txt", 0, 0); got != "alpha\nbeta" {
		t.Fatalf("read = %q", got)
	}
	if got := b.Read(ctx, "/notes/today.txt", 1, 1); got != "beta" {
		t.Fatalf("windowed read = %q", got)
	}
}

func TestFilesystemEscapeDenied(t *testing.T) {
	ctx := context.Background()
	b := newTestFS(t, false)

	got := b.Read(ctx, "../../etc/passwd", 0, 0)
	if !IsSoftError(got) {
		t.Fatalf("expected permission soft error, got %q", got)
	}

	wr := b.Write(ctx, "/etc/passwd-clone", "x")
	if wr.Err == "" {
		t.Fatalf("expected write outside root to be denied")
	}
}

func TestFilesystemVirtualModeConfinesAbsolutePaths(t *testing.T) {
	ctx := context.Background()
	b := newTestFS(t, true)

	// In virtual mode "/etc/passwd" is just a path under the root.
	wr := b.Write(ctx, "/etc/passwd", "harmless")
	if wr.Err != "" {
		t.Fatalf("write: %s", wr.Err)
	}
	if _, err := os.Stat(filepath.Join(b.Root(), "etc", "passwd")); err != nil {
		t.Fatalf("expected file under root: %v", err)
	}

	// Traversal out of the root is still rejected.
	if got := b.Read(ctx, "/../outside", 0, 0); !IsSoftError(got) {
		t.Fatalf("expected soft error, got %q", got)
	}
}

func TestFilesystemEdit(t *testing.T) {
	ctx := context.Background()
	b := newTestFS(t, true)

	if wr := b.Write(ctx, "/a.txt", "hello"); wr.Err != "" {
		t.Fatalf("write: %s", wr.Err)
	}
	er := b.Edit(ctx, "/a.txt", "hello", "world", false)
	if er.Err != "" {
		t.Fatalf("edit: %s", er.Err)
	}
	if er.Occurrences != 1 {
		t.Fatalf("occurrences = %d", er.Occurrences)
	}
	if got := b.Read(ctx, "/a.txt", 0, 0); got != "world" {
		t.Fatalf("read after edit = %q", got)
	}

	if er := b.Edit(ctx, "/missing.txt", "a", "b", false); !IsNotFound(er.Err) {
		t.Fatalf("expected not-found, got %q", er.Err)
	}
}

func TestFilesystemListGlobGrep(t *testing.T) {
	ctx := context.Background()
	b := newTestFS(t, true)

	files := map[string]string{
		"/src/main.go":      "package main\nfunc main() {}",
		"/src/util/util.go": "package util",
		"/docs/readme.md":   "# docs",
	}
	for p, content := range files {
		if wr := b.Write(ctx, p, content); wr.Err != "" {
			t.Fatalf("write %s: %s", p, wr.Err)
		}
	}

	entries, err := b.List(ctx, "/src")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("list /src = %#v", entries)
	}
	if entries[0].Path != "/src/main.go" || entries[0].IsDir {
		t.Fatalf("unexpected entry: %#v", entries[0])
	}
	if entries[1].Path != "/src/util" || !entries[1].IsDir {
		t.Fatalf("unexpected entry: %#v", entries[1])
	}

	// Listing a nonexistent directory is an empty, non-error result.
	if entries, err := b.List(ctx, "/nope"); err != nil || len(entries) != 0 {
		t.Fatalf("list missing dir: %v %#v", err, entries)
	}

	matches, err := b.Glob(ctx, "**/*.go", "/")
	if err != nil {
		t.Fatalf("glob: %v", err)
	}
	if len(matches) != 2 {
		t.Fatalf("glob = %#v", matches)
	}

	gr := b.Grep(ctx, "package", "/src", "")
	if gr.Err != "" {
		t.Fatalf("grep: %s", gr.Err)
	}
	if len(gr.Matches) != 2 {
		t.Fatalf("grep = %#v", gr.Matches)
	}

	if gr := b.Grep(ctx, "[bad", "/", ""); gr.Err == "" {
		t.Fatalf("expected soft error for invalid pattern")
	}
}

func TestFilesystemDownload(t *testing.T) {
	ctx := context.Background()
	b := newTestFS(t, true)

	if wr := b.Write(ctx, "/bin.dat", "exact\nbytes"); wr.Err != "" {
		t.Fatalf("write: %s", wr.Err)
	}

	results := b.DownloadFiles(ctx, []string{"/bin.dat", "/missing"})
	if string(results[0].Content) != "exact\nbytes" {
		t.Fatalf("content = %q", results[0].Content)
	}
	if results[1].Err != ErrFileNotFound {
		t.Fatalf("missing err = %q", results[1].Err)
	}
}

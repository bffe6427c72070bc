package backend

import (
	"context"
	"strings"
	"testing"

	"github.com/basket/agentfs/state"
)

// apply immediately merges a delta into the run, standing in for the
// runtime's per-tool-call reducer application.
func apply(t *testing.T, run *state.Run, update state.FileUpdate) {
	t.Helper()
	if err := run.ApplyUpdate(update); err != nil {
		t.Fatalf("apply update: %v", err)
	}
}

func TestStateBackendWriteEditRead(t *testing.T) {
	ctx := context.Background()
	run := state.NewRun(nil)
	b := NewStateBackend(run)

	wr := b.Write(ctx, "/a.txt", "hello")
	if wr.Err != "" {
		t.Fatalf("write: %s", wr.Err)
	}
	if wr.Update == nil {
		t.Fatalf("state backend write must return a delta")
	}
	apply(t, run, wr.Update)

	er := b.Edit(ctx, "/a.txt", "hello", "world", false)
	if er.Err != "" {
		t.Fatalf("edit: %s", er.Err)
	}
	if er.Occurrences != 1 {
		t.Fatalf("occurrences = %d, want 1", er.Occurrences)
	}
	apply(t, run, er.Update)

	if got := b.Read(ctx, "/a.txt", 0, 0); got != "world" {
		t.Fatalf("read = %q, want %q", got, "world")
	}
}

func TestStateBackendWriteDoesNotMutateState(t *testing.T) {
	ctx := context.Background()
	run := state.NewRun(nil)
	b := NewStateBackend(run)

	wr := b.Write(ctx, "/a.txt", "pending")
	if wr.Err != "" {
		t.Fatalf("write: %s", wr.Err)
	}
	// Until the reducer applies the delta, the run stays untouched.
	if got := b.Read(ctx, "/a.txt", 0, 0); !IsNotFound(got) {
		t.Fatalf("expected not-found before merge, got %q", got)
	}
}

func TestStateBackendReadWindow(t *testing.T) {
	ctx := context.Background()
	run := state.NewRun(nil)
	b := NewStateBackend(run)

	lines := make([]string, 60)
	for i := range lines {
		lines[i] = "line"
	}
	apply(t, run, state.FileUpdate{"/f.txt": {Content: lines}})

	// Out-of-range offset yields empty content, not an error.
	if got := b.Read(ctx, "/f.txt", 100, 50); got != "" {
		t.Fatalf("out-of-range read = %q, want empty", got)
	}

	got := b.Read(ctx, "/f.txt", 0, 10)
	if n := len(strings.Split(got, "\n")); n != 10 {
		t.Fatalf("window returned %d lines, want 10", n)
	}

	// Window past the tail is clamped.
	got = b.Read(ctx, "/f.txt", 55, 10)
	if n := len(strings.Split(got, "\n")); n != 5 {
		t.Fatalf("tail window returned %d lines, want 5", n)
	}
}

func TestStateBackendReadMissing(t *testing.T) {
	b := NewStateBackend(state.NewRun(nil))
	got := b.Read(context.Background(), "/nope.txt", 0, 0)
	if !IsNotFound(got) {
		t.Fatalf("expected not-found soft error, got %q", got)
	}
}

func TestStateBackendEditErrors(t *testing.T) {
	ctx := context.Background()
	run := state.NewRun(nil)
	b := NewStateBackend(run)
	apply(t, run, state.FileUpdate{"/a.txt": {Content: []string{"x y x"}}})

	if er := b.Edit(ctx, "/missing.txt", "a", "b", false); !IsNotFound(er.Err) {
		t.Fatalf("expected not-found, got %q", er.Err)
	}
	if er := b.Edit(ctx, "/a.txt", "zzz", "b", false); er.Err == "" {
		t.Fatalf("expected zero-match error")
	}
	if er := b.Edit(ctx, "/a.txt", "x", "y", false); er.Err == "" {
		t.Fatalf("expected ambiguity error for multiple matches")
	}

	er := b.Edit(ctx, "/a.txt", "x", "z", true)
	if er.Err != "" {
		t.Fatalf("replaceAll edit: %s", er.Err)
	}
	if er.Occurrences != 2 {
		t.Fatalf("occurrences = %d, want 2", er.Occurrences)
	}
	apply(t, run, er.Update)
	if got := b.Read(ctx, "/a.txt", 0, 0); got != "z y z" {
		t.Fatalf("after replaceAll = %q", got)
	}
}

func TestStateBackendList(t *testing.T) {
	ctx := context.Background()
	run := state.NewRun(nil)
	b := NewStateBackend(run)
	apply(t, run, state.FileUpdate{
		"/a.txt":       {Content: []string{"aaa"}},
		"/sub/b.txt":   {Content: []string{"b"}},
		"/sub/c/d.txt": {Content: []string{"d"}},
	})

	entries, err := b.List(ctx, "/")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 root entries, got %#v", entries)
	}
	if entries[0].Path != "/a.txt" || entries[0].IsDir || entries[0].Size != 3 {
		t.Fatalf("unexpected file entry: %#v", entries[0])
	}
	if entries[1].Path != "/sub" || !entries[1].IsDir {
		t.Fatalf("unexpected dir entry: %#v", entries[1])
	}

	empty, err := b.List(ctx, "/nothing")
	if err != nil {
		t.Fatalf("list empty: %v", err)
	}
	if len(empty) != 0 {
		t.Fatalf("expected empty result, got %#v", empty)
	}
}

func TestStateBackendGlobGrep(t *testing.T) {
	ctx := context.Background()
	run := state.NewRun(nil)
	b := NewStateBackend(run)
	apply(t, run, state.FileUpdate{
		"/main.go":     {Content: []string{"package main", "func main() {}"}},
		"/sub/util.go": {Content: []string{"package sub", "func helper() {}"}},
		"/readme.md":   {Content: []string{"# readme"}},
	})

	matches, err := b.Glob(ctx, "**/*.go", "/")
	if err != nil {
		t.Fatalf("glob: %v", err)
	}
	if len(matches) != 2 {
		t.Fatalf("glob matched %#v", matches)
	}

	gr := b.Grep(ctx, `func \w+`, "/", "")
	if gr.Err != "" {
		t.Fatalf("grep: %s", gr.Err)
	}
	if len(gr.Matches) != 2 {
		t.Fatalf("grep matched %#v", gr.Matches)
	}
	if gr.Matches[0].Path != "/main.go" || gr.Matches[0].Line != 2 {
		t.Fatalf("unexpected first match: %#v", gr.Matches[0])
	}

	if gr := b.Grep(ctx, `func`, "/", "*.md"); len(gr.Matches) != 0 {
		t.Fatalf("include filter leaked: %#v", gr.Matches)
	}

	if gr := b.Grep(ctx, `[invalid`, "/", ""); gr.Err == "" {
		t.Fatalf("expected soft error for bad pattern")
	}
}

func TestStateBackendDownload(t *testing.T) {
	ctx := context.Background()
	run := state.NewRun(nil)
	b := NewStateBackend(run)
	apply(t, run, state.FileUpdate{"/a.txt": {Content: []string{"one", "two"}}})

	results := b.DownloadFiles(ctx, []string{"/a.txt", "/missing"})
	if len(results) != 2 {
		t.Fatalf("expected one result per path, got %d", len(results))
	}
	if string(results[0].Content) != "one\ntwo" {
		t.Fatalf("content = %q", results[0].Content)
	}
	if results[1].Err != ErrFileNotFound {
		t.Fatalf("missing file err = %q", results[1].Err)
	}
}

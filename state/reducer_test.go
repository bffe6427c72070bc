package state

import (
	"reflect"
	"testing"
	"time"
)

func fd(lines ...string) *FileData {
	return &FileData{
		Content:    lines,
		CreatedAt:  time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
		ModifiedAt: time.Date(2026, 1, 2, 0, 0, 0, 0, time.UTC),
	}
}

func TestMergeFiles(t *testing.T) {
	tests := []struct {
		name    string
		current FilesMap
		update  FileUpdate
		want    FilesMap
	}{
		{
			name:    "both nil",
			current: nil,
			update:  nil,
			want:    FilesMap{},
		},
		{
			name:    "nil update returns current",
			current: FilesMap{"/a": *fd("x")},
			update:  nil,
			want:    FilesMap{"/a": *fd("x")},
		},
		{
			name:    "nil current seeds from update dropping deletions",
			current: nil,
			update:  FileUpdate{"/a": fd("x"), "/gone": nil},
			want:    FilesMap{"/a": *fd("x")},
		},
		{
			name:    "upsert and delete",
			current: FilesMap{"/a": *fd("old"), "/b": *fd("keep"), "/c": *fd("bye")},
			update:  FileUpdate{"/a": fd("new"), "/c": nil, "/d": fd("add")},
			want:    FilesMap{"/a": *fd("new"), "/b": *fd("keep"), "/d": *fd("add")},
		},
		{
			name:    "delete of absent key is a no-op",
			current: FilesMap{"/a": *fd("x")},
			update:  FileUpdate{"/nope": nil},
			want:    FilesMap{"/a": *fd("x")},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := MergeFiles(tt.current, tt.update)
			if !reflect.DeepEqual(got, tt.want) {
				t.Fatalf("MergeFiles = %#v, want %#v", got, tt.want)
			}
		})
	}
}

func TestMergeFilesIdempotent(t *testing.T) {
	current := FilesMap{"/a": *fd("old"), "/b": *fd("keep")}
	update := FileUpdate{"/a": fd("new"), "/b": nil, "/c": fd("add")}

	once := MergeFiles(current, update)
	twice := MergeFiles(once, update)
	if !reflect.DeepEqual(once, twice) {
		t.Fatalf("merge not idempotent: once=%#v twice=%#v", once, twice)
	}
}

func TestMergeFilesDoesNotMutateInputs(t *testing.T) {
	current := FilesMap{"/a": *fd("old")}
	update := FileUpdate{"/a": fd("new"), "/b": fd("add")}

	_ = MergeFiles(current, update)

	if got := current["/a"].Content[0]; got != "old" {
		t.Fatalf("current mutated: %q", got)
	}
	if len(current) != 1 {
		t.Fatalf("current grew: %d entries", len(current))
	}
	if update["/b"] == nil || update["/b"].Content[0] != "add" {
		t.Fatalf("update mutated: %#v", update["/b"])
	}
}

func TestMergeUpdates(t *testing.T) {
	if got := MergeUpdates(nil, nil); got != nil {
		t.Fatalf("expected nil merged update, got %#v", got)
	}

	a := FileUpdate{"/a": fd("one"), "/b": fd("two")}
	b := FileUpdate{"/b": nil, "/c": fd("three")}
	got := MergeUpdates(a, nil, b)
	if got["/a"] == nil || got["/b"] != nil || got["/c"] == nil {
		t.Fatalf("unexpected merged update: %#v", got)
	}
	if _, ok := got["/b"]; !ok {
		t.Fatalf("deletion entry for /b dropped")
	}
}

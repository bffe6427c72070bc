// Package state holds the canonical file state shared by an agent run: the
// FilesMap, the FileUpdate deltas produced by tool calls, the reducer that
// merges them, and the run container that serializes merge application
// across concurrently completing branches.
package state

import "time"

// FileData is one stored document: its content as an ordered sequence of
// lines plus provenance timestamps.
type FileData struct {
	Content    []string  `json:"content"`
	CreatedAt  time.Time `json:"created_at"`
	ModifiedAt time.Time `json:"modified_at"`
}

// Clone returns a deep copy of the FileData.
func (f FileData) Clone() FileData {
	cp := f
	cp.Content = append([]string(nil), f.Content...)
	return cp
}

// FilesMap maps absolute POSIX paths to file contents. It is the file state
// visible to the agent at a point in time.
type FilesMap map[string]FileData

// Clone returns a copy of the map. FileData values are copied shallowly;
// callers must not mutate Content slices in place.
func (m FilesMap) Clone() FilesMap {
	cp := make(FilesMap, len(m))
	for k, v := range m {
		cp[k] = v
	}
	return cp
}

// FileUpdate is a partial, not-yet-applied mutation against a FilesMap.
// A nil value marks the path for deletion.
type FileUpdate map[string]*FileData

// MergeUpdates folds several updates into one, later entries winning.
// A nil result means no update at all.
func MergeUpdates(updates ...FileUpdate) FileUpdate {
	var out FileUpdate
	for _, u := range updates {
		if u == nil {
			continue
		}
		if out == nil {
			out = make(FileUpdate, len(u))
		}
		for k, v := range u {
			out[k] = v
		}
	}
	return out
}

package state

import (
	"fmt"
	"sync"
)

// Run is the shared state container for one agent run. Branches take
// snapshots, compute deltas locally, and apply them here on completion.
// Application is serialized by the internal mutex, so a completed branch's
// delta always merges against the FilesMap current at the moment of
// application, not the snapshot the branch started from (last-applied-wins
// for colliding paths).
type Run struct {
	registry *Registry

	mu    sync.Mutex
	files FilesMap
	meta  map[string]any
	reads map[string]map[string]struct{} // session -> set of read paths
}

// NewRun creates an empty run bound to the given registry. A nil registry
// gets the default one.
func NewRun(registry *Registry) *Run {
	if registry == nil {
		registry = DefaultRegistry()
	}
	return &Run{
		registry: registry,
		files:    FilesMap{},
		meta:     map[string]any{},
		reads:    map[string]map[string]struct{}{},
	}
}

// Files returns a snapshot copy of the current FilesMap.
func (r *Run) Files() FilesMap {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.files.Clone()
}

// ApplyUpdate merges a completed branch's delta into the canonical FilesMap
// through the registry's files reducer. A nil update is a no-op.
func (r *Run) ApplyUpdate(update FileUpdate) error {
	if update == nil {
		return nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	merged, err := r.registry.Merge(KeyFiles, r.files, update)
	if err != nil {
		return err
	}
	files, ok := merged.(FilesMap)
	if !ok {
		return fmt.Errorf("state: files reducer returned %T, want FilesMap", merged)
	}
	r.files = files
	return nil
}

// Meta returns the metadata value stored under key, if any.
func (r *Run) Meta(key string) (any, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	v, ok := r.meta[key]
	return v, ok
}

// SetMeta merges {key: value} into run metadata through the metadata reducer.
func (r *Run) SetMeta(key string, value any) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	merged, err := r.registry.Merge(KeyMetadata, r.meta, map[string]any{key: value})
	if err != nil {
		return err
	}
	meta, ok := merged.(map[string]any)
	if !ok {
		return fmt.Errorf("state: metadata reducer returned %T, want map", merged)
	}
	r.meta = meta
	return nil
}

// MarkRead records that session has read path. The tool suite uses this to
// enforce the read-before-edit contract.
func (r *Run) MarkRead(session, path string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	set, ok := r.reads[session]
	if !ok {
		set = map[string]struct{}{}
		r.reads[session] = set
	}
	set[path] = struct{}{}
}

// WasRead reports whether session has previously read path.
func (r *Run) WasRead(session, path string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.reads[session][path]
	return ok
}

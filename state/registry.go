package state

import "fmt"

// Well-known state keys.
const (
	// KeyFiles is the slice of run state holding the FilesMap.
	KeyFiles = "files"
	// KeyMetadata is the free-form metadata slice (overwrite-merged).
	KeyMetadata = "metadata"
)

// MergeFunc reconciles the current value of one state slice with an update.
type MergeFunc func(current, update any) (any, error)

// Registry maps state keys to their merge behavior. It is constructed once
// at assembly time and passed by reference into every component that applies
// updates; there is deliberately no package-level default instance, so two
// independent runs can never share schema state.
type Registry struct {
	reducers map[string]MergeFunc
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{reducers: make(map[string]MergeFunc)}
}

// Register adds a reducer for key. Registering the same key twice is a
// misconfiguration and returns an error.
func (r *Registry) Register(key string, fn MergeFunc) error {
	if key == "" {
		return fmt.Errorf("state: empty registry key")
	}
	if fn == nil {
		return fmt.Errorf("state: nil reducer for key %q", key)
	}
	if _, ok := r.reducers[key]; ok {
		return fmt.Errorf("state: reducer already registered for key %q", key)
	}
	r.reducers[key] = fn
	return nil
}

// Merge applies the reducer registered for key. An unknown key is a hard
// error: it means the assembly wired a component against a schema the run
// does not carry.
func (r *Registry) Merge(key string, current, update any) (any, error) {
	fn, ok := r.reducers[key]
	if !ok {
		return nil, fmt.Errorf("state: no reducer registered for key %q", key)
	}
	return fn(current, update)
}

// Has reports whether a reducer is registered for key.
func (r *Registry) Has(key string) bool {
	_, ok := r.reducers[key]
	return ok
}

// DefaultRegistry builds a registry with the standard file-state and
// metadata reducers registered.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	// Registration of built-in keys cannot fail on a fresh registry.
	_ = r.Register(KeyFiles, func(current, update any) (any, error) {
		cur, ok := current.(FilesMap)
		if current != nil && !ok {
			return nil, fmt.Errorf("state: %s reducer: current is %T, want FilesMap", KeyFiles, current)
		}
		upd, ok := update.(FileUpdate)
		if update != nil && !ok {
			return nil, fmt.Errorf("state: %s reducer: update is %T, want FileUpdate", KeyFiles, update)
		}
		return MergeFiles(cur, upd), nil
	})
	_ = r.Register(KeyMetadata, func(current, update any) (any, error) {
		cur, _ := current.(map[string]any)
		upd, _ := update.(map[string]any)
		out := make(map[string]any, len(cur)+len(upd))
		for k, v := range cur {
			out[k] = v
		}
		for k, v := range upd {
			out[k] = v
		}
		return out, nil
	})
	return r
}

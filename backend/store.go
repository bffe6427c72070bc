package backend

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/basket/agentfs/kv"
	"github.com/basket/agentfs/state"
)

// StoreBackend persists files through a durable key-value store under a
// caller-supplied namespace, for memory that outlives a single run.
// Content lives in the store, not in shared state, so no FileUpdate is
// emitted.
type StoreBackend struct {
	store     kv.Store
	namespace string
}

// NewStoreBackend creates a StoreBackend over store, scoped to namespace.
func NewStoreBackend(store kv.Store, namespace string) (*StoreBackend, error) {
	if store == nil {
		return nil, fmt.Errorf("backend: nil kv store")
	}
	if strings.TrimSpace(namespace) == "" {
		return nil, fmt.Errorf("backend: empty store namespace")
	}
	return &StoreBackend{store: store, namespace: namespace}, nil
}

func (b *StoreBackend) get(ctx context.Context, path string) (state.FileData, bool, error) {
	raw, err := b.store.Get(ctx, b.namespace, path)
	if errors.Is(err, kv.ErrNotFound) {
		return state.FileData{}, false, nil
	}
	if err != nil {
		return state.FileData{}, false, err
	}
	var fd state.FileData
	if err := json.Unmarshal(raw, &fd); err != nil {
		return state.FileData{}, false, fmt.Errorf("backend: decode stored file %s: %w", path, err)
	}
	return fd, true, nil
}

func (b *StoreBackend) put(ctx context.Context, path string, fd state.FileData) error {
	raw, err := json.Marshal(fd)
	if err != nil {
		return fmt.Errorf("backend: encode stored file %s: %w", path, err)
	}
	return b.store.Set(ctx, b.namespace, path, raw)
}

// List implements Backend.
func (b *StoreBackend) List(ctx context.Context, path string) ([]FileInfo, error) {
	base := NormalizePath(path)
	prefix := base
	if prefix != "/" {
		prefix += "/"
	}
	keys, err := b.store.Keys(ctx, b.namespace, prefix)
	if err != nil {
		return nil, err
	}

	dirs := map[string]struct{}{}
	var out []FileInfo
	for _, key := range keys {
		name, hasMore := childSegment(key, base)
		if name == "" {
			continue
		}
		childPath := JoinPath(base, name)
		if hasMore {
			if _, seen := dirs[childPath]; !seen {
				dirs[childPath] = struct{}{}
				out = append(out, FileInfo{Path: childPath, IsDir: true})
			}
			continue
		}
		fd, ok, err := b.get(ctx, key)
		if err != nil || !ok {
			continue
		}
		out = append(out, FileInfo{Path: childPath, Size: contentSize(fd)})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out, nil
}

// Read implements Backend.
func (b *StoreBackend) Read(ctx context.Context, path string, offset, limit int) string {
	p := NormalizePath(path)
	fd, ok, err := b.get(ctx, p)
	if err != nil {
		return softErrf("reading file '%s': %v", p, err)
	}
	if !ok {
		return NotFound(p)
	}
	return lineWindow(fd.Content, offset, limit)
}

// Write implements Backend.
func (b *StoreBackend) Write(ctx context.Context, path, content string) WriteResult {
	p := NormalizePath(path)
	now := time.Now().UTC()

	fd := state.FileData{Content: splitLines(content), CreatedAt: now, ModifiedAt: now}
	if prev, ok, err := b.get(ctx, p); err == nil && ok {
		fd.CreatedAt = prev.CreatedAt
	}
	if err := b.put(ctx, p, fd); err != nil {
		return WriteResult{Err: softErrf("writing file '%s': %v", p, err)}
	}
	return WriteResult{Metadata: map[string]any{"namespace": b.namespace}}
}

// Edit implements Backend.
func (b *StoreBackend) Edit(ctx context.Context, path, oldString, newString string, replaceAll bool) EditResult {
	p := NormalizePath(path)
	fd, ok, err := b.get(ctx, p)
	if err != nil {
		return EditResult{Err: softErrf("reading file '%s': %v", p, err)}
	}
	if !ok {
		return EditResult{Err: NotFound(p)}
	}

	content := strings.Join(fd.Content, "\n")
	replaced, occurrences, softErr := replaceExact(content, oldString, newString, replaceAll)
	if softErr != "" {
		return EditResult{Err: softErr}
	}

	fd.Content = splitLines(replaced)
	fd.ModifiedAt = time.Now().UTC()
	if err := b.put(ctx, p, fd); err != nil {
		return EditResult{Err: softErrf("writing file '%s': %v", p, err)}
	}
	return EditResult{Occurrences: occurrences, Metadata: map[string]any{"namespace": b.namespace}}
}

// Glob implements Backend.
func (b *StoreBackend) Glob(ctx context.Context, pattern, basePath string) ([]FileInfo, error) {
	match, err := globMatcher(pattern, basePath)
	if err != nil {
		return nil, err
	}
	keys, err := b.store.Keys(ctx, b.namespace, "")
	if err != nil {
		return nil, err
	}

	var out []FileInfo
	for _, key := range keys {
		if !match(key) {
			continue
		}
		fd, ok, err := b.get(ctx, key)
		if err != nil || !ok {
			continue
		}
		out = append(out, FileInfo{Path: key, Size: contentSize(fd)})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out, nil
}

// Grep implements Backend.
func (b *StoreBackend) Grep(ctx context.Context, pattern, basePath, include string) GrepResult {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return GrepResult{Err: softErrf("Invalid regex pattern '%s': %v", pattern, err)}
	}
	includeOK, err := includeMatcher(include)
	if err != nil {
		return GrepResult{Err: softErrf("Invalid glob filter '%s': %v", include, err)}
	}

	base := NormalizePath(basePath)
	prefix := base
	if prefix != "/" {
		prefix += "/"
	}
	keys, err := b.store.Keys(ctx, b.namespace, prefix)
	if err != nil {
		return GrepResult{Err: softErrf("searching '%s': %v", base, err)}
	}

	var matches []GrepMatch
	for _, key := range keys {
		if !includeOK(key) {
			continue
		}
		fd, ok, err := b.get(ctx, key)
		if err != nil || !ok {
			continue
		}
		for i, line := range fd.Content {
			if re.MatchString(line) {
				matches = append(matches, GrepMatch{Path: key, Line: i + 1, Text: line})
				if len(matches) >= maxGrepMatches {
					return GrepResult{Matches: matches}
				}
			}
		}
	}
	return GrepResult{Matches: matches}
}

// DownloadFiles implements Downloader.
func (b *StoreBackend) DownloadFiles(ctx context.Context, paths []string) []DownloadResult {
	out := make([]DownloadResult, 0, len(paths))
	for _, p := range paths {
		fd, ok, err := b.get(ctx, NormalizePath(p))
		if err != nil {
			out = append(out, DownloadResult{Err: err.Error()})
			continue
		}
		if !ok {
			out = append(out, DownloadResult{Err: ErrFileNotFound})
			continue
		}
		out = append(out, DownloadResult{Content: []byte(strings.Join(fd.Content, "\n"))})
	}
	return out
}

var _ Backend = (*StoreBackend)(nil)
var _ Downloader = (*StoreBackend)(nil)

package backend

import (
	"context"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/basket/agentfs/state"
)

// StateBackend stores files inside the run's shared state. It never mutates
// the FilesMap in place: writes and edits return FileUpdate deltas covering
// only the touched paths, and application is deferred to the reducer. Reads
// observe the snapshot current at call time.
type StateBackend struct {
	run *state.Run
}

// NewStateBackend creates a StateBackend over the given run container.
func NewStateBackend(run *state.Run) *StateBackend {
	return &StateBackend{run: run}
}

// List implements Backend.
func (b *StateBackend) List(ctx context.Context, path string) ([]FileInfo, error) {
	base := NormalizePath(path)
	files := b.run.Files()

	dirs := map[string]struct{}{}
	var out []FileInfo
	for p, fd := range files {
		if !isBeneath(p, base) || p == base {
			continue
		}
		name, hasMore := childSegment(p, base)
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
		out = append(out, FileInfo{Path: childPath, Size: contentSize(fd)})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out, nil
}

// Read implements Backend.
func (b *StateBackend) Read(ctx context.Context, path string, offset, limit int) string {
	p := NormalizePath(path)
	fd, ok := b.run.Files()[p]
	if !ok {
		return NotFound(p)
	}
	return lineWindow(fd.Content, offset, limit)
}

// Write implements Backend.
func (b *StateBackend) Write(ctx context.Context, path, content string) WriteResult {
	p := NormalizePath(path)
	now := time.Now().UTC()

	fd := state.FileData{
		Content:    splitLines(content),
		CreatedAt:  now,
		ModifiedAt: now,
	}
	if prev, ok := b.run.Files()[p]; ok {
		fd.CreatedAt = prev.CreatedAt
	}
	return WriteResult{Update: state.FileUpdate{p: &fd}}
}

// Edit implements Backend.
func (b *StateBackend) Edit(ctx context.Context, path, oldString, newString string, replaceAll bool) EditResult {
	p := NormalizePath(path)
	fd, ok := b.run.Files()[p]
	if !ok {
		return EditResult{Err: NotFound(p)}
	}

	content := strings.Join(fd.Content, "\n")
	replaced, occurrences, softErr := replaceExact(content, oldString, newString, replaceAll)
	if softErr != "" {
		return EditResult{Err: softErr}
	}

	updated := state.FileData{
		Content:    splitLines(replaced),
		CreatedAt:  fd.CreatedAt,
		ModifiedAt: time.Now().UTC(),
	}
	return EditResult{
		Occurrences: occurrences,
		Update:      state.FileUpdate{p: &updated},
	}
}

// Glob implements Backend.
func (b *StateBackend) Glob(ctx context.Context, pattern, basePath string) ([]FileInfo, error) {
	match, err := globMatcher(pattern, basePath)
	if err != nil {
		return nil, err
	}

	var out []FileInfo
	for p, fd := range b.run.Files() {
		if match(p) {
			out = append(out, FileInfo{Path: p, Size: contentSize(fd)})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out, nil
}

// Grep implements Backend.
func (b *StateBackend) Grep(ctx context.Context, pattern, basePath, include string) GrepResult {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return GrepResult{Err: softErrf("Invalid regex pattern '%s': %v", pattern, err)}
	}
	includeOK, err := includeMatcher(include)
	if err != nil {
		return GrepResult{Err: softErrf("Invalid glob filter '%s': %v", include, err)}
	}

	base := NormalizePath(basePath)
	files := b.run.Files()
	paths := make([]string, 0, len(files))
	for p := range files {
		if isBeneath(p, base) && includeOK(p) {
			paths = append(paths, p)
		}
	}
	sort.Strings(paths)

	var matches []GrepMatch
	for _, p := range paths {
		for i, line := range files[p].Content {
			if re.MatchString(line) {
				matches = append(matches, GrepMatch{Path: p, Line: i + 1, Text: line})
			}
		}
	}
	return GrepResult{Matches: matches}
}

// DownloadFiles implements Downloader: byte-exact retrieval from state.
func (b *StateBackend) DownloadFiles(ctx context.Context, paths []string) []DownloadResult {
	files := b.run.Files()
	out := make([]DownloadResult, 0, len(paths))
	for _, p := range paths {
		fd, ok := files[NormalizePath(p)]
		if !ok {
			out = append(out, DownloadResult{Err: ErrFileNotFound})
			continue
		}
		out = append(out, DownloadResult{Content: []byte(strings.Join(fd.Content, "\n"))})
	}
	return out
}

// splitLines splits content on newlines. Empty content is a single empty
// line so a written empty file round-trips as "".
func splitLines(content string) []string {
	return strings.Split(content, "\n")
}

func contentSize(fd state.FileData) int64 {
	size := 0
	for _, line := range fd.Content {
		size += len(line) + 1
	}
	if size > 0 {
		size-- // no trailing newline
	}
	return int64(size)
}

// lineWindow returns lines [offset, offset+limit) joined by newlines. An
// out-of-range offset yields empty content.
func lineWindow(lines []string, offset, limit int) string {
	if offset < 0 {
		offset = 0
	}
	if limit <= 0 {
		limit = DefaultReadLimit
	}
	if offset >= len(lines) {
		return ""
	}
	end := offset + limit
	if end > len(lines) {
		end = len(lines)
	}
	return strings.Join(lines[offset:end], "\n")
}

// replaceExact performs the shared exact-substring edit semantics.
func replaceExact(content, oldString, newString string, replaceAll bool) (replaced string, occurrences int, softErr string) {
	count := strings.Count(content, oldString)
	switch {
	case oldString == "":
		return "", 0, softErrf("old string must not be empty")
	case count == 0:
		return "", 0, softErrf("String not found in file: '%s'", oldString)
	case count > 1 && !replaceAll:
		return "", 0, softErrf(
			"String '%s' appears %d times in the file. Set replaceAll to true, or provide a more specific string with surrounding context",
			oldString, count,
		)
	case replaceAll:
		return strings.ReplaceAll(content, oldString, newString), count, ""
	default:
		return strings.Replace(content, oldString, newString, 1), 1, ""
	}
}

var _ Backend = (*StateBackend)(nil)
var _ Downloader = (*StateBackend)(nil)

package backend

import (
	"bufio"
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
)

const (
	// maxGrepMatches bounds a single content search.
	maxGrepMatches = 500
	// maxScanLine bounds a single scanned line (1 MiB).
	maxScanLine = 1 << 20
)

// FilesystemBackend operates on a real filesystem confined beneath a root
// directory. In virtual mode, agent-visible absolute paths are rewritten
// onto the root ("/notes.txt" -> <root>/notes.txt); otherwise paths are used
// as given but still checked against the root. Content lives outside shared
// state, so writes and edits return no FileUpdate.
type FilesystemBackend struct {
	root    string // absolute, symlink-resolved
	virtual bool
	logger  *slog.Logger
}

// FilesystemOptions configures a FilesystemBackend.
type FilesystemOptions struct {
	// Root confines all I/O. Created if absent.
	Root string
	// Virtual rewrites agent-visible absolute paths onto Root.
	Virtual bool
	Logger  *slog.Logger
}

// NewFilesystemBackend creates a backend rooted at opts.Root.
func NewFilesystemBackend(opts FilesystemOptions) (*FilesystemBackend, error) {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	abs, err := filepath.Abs(opts.Root)
	if err != nil {
		return nil, fmt.Errorf("backend: resolve root: %w", err)
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, fmt.Errorf("backend: create root dir: %w", err)
	}
	resolved, err := filepath.EvalSymlinks(abs)
	if err != nil {
		return nil, fmt.Errorf("backend: eval symlinks on root: %w", err)
	}
	return &FilesystemBackend{root: resolved, virtual: opts.Virtual, logger: opts.Logger}, nil
}

// Root returns the confined root directory.
func (b *FilesystemBackend) Root() string { return b.root }

// resolve maps an agent-visible path to a physical path, refusing anything
// that escapes the root after symlink resolution.
func (b *FilesystemBackend) resolve(p string) (string, error) {
	if strings.TrimSpace(p) == "" {
		return "", fmt.Errorf("empty path")
	}

	var full string
	if b.virtual {
		full = filepath.Join(b.root, filepath.FromSlash(strings.TrimPrefix(NormalizePath(p), "/")))
	} else {
		cleaned := filepath.Clean(filepath.FromSlash(p))
		if filepath.IsAbs(cleaned) {
			full = cleaned
		} else {
			full = filepath.Join(b.root, cleaned)
		}
	}

	abs, err := filepath.Abs(full)
	if err != nil {
		return "", fmt.Errorf("resolve path: %w", err)
	}

	resolved, err := filepath.EvalSymlinks(abs)
	if err != nil {
		// New files have no inode yet: resolve the deepest existing
		// ancestor instead and re-append the remainder.
		resolved, err = evalSymlinksPartial(abs)
		if err != nil {
			return "", fmt.Errorf("resolve symlinks: %w", err)
		}
	}

	if resolved != b.root && !strings.HasPrefix(resolved, b.root+string(filepath.Separator)) {
		return "", fmt.Errorf("path escapes root")
	}
	return resolved, nil
}

// evalSymlinksPartial walks up from path until it finds an existing
// ancestor, resolves symlinks on that ancestor, then re-appends the
// remaining segments.
func evalSymlinksPartial(abs string) (string, error) {
	current := abs
	var trailing []string
	for {
		resolved, err := filepath.EvalSymlinks(current)
		if err == nil {
			for i := len(trailing) - 1; i >= 0; i-- {
				resolved = filepath.Join(resolved, trailing[i])
			}
			return resolved, nil
		}
		parent := filepath.Dir(current)
		if parent == current {
			return "", fmt.Errorf("no existing ancestor for %s", abs)
		}
		trailing = append(trailing, filepath.Base(current))
		current = parent
	}
}

// toVirtual maps a physical path back to the agent-visible form.
func (b *FilesystemBackend) toVirtual(phys string) string {
	if !b.virtual {
		return filepath.ToSlash(phys)
	}
	rel, err := filepath.Rel(b.root, phys)
	if err != nil || rel == "." {
		return "/"
	}
	return "/" + filepath.ToSlash(rel)
}

// List implements Backend.
func (b *FilesystemBackend) List(ctx context.Context, path string) ([]FileInfo, error) {
	phys, err := b.resolve(path)
	if err != nil {
		return nil, fmt.Errorf("backend: list %s: %w", path, err)
	}

	entries, err := os.ReadDir(phys)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("backend: list %s: %w", path, err)
	}

	out := make([]FileInfo, 0, len(entries))
	for _, ent := range entries {
		info := FileInfo{
			Path:  b.toVirtual(filepath.Join(phys, ent.Name())),
			IsDir: ent.IsDir(),
		}
		if fi, err := ent.Info(); err == nil && !ent.IsDir() {
			info.Size = fi.Size()
		}
		out = append(out, info)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out, nil
}

// Read implements Backend.
func (b *FilesystemBackend) Read(ctx context.Context, path string, offset, limit int) string {
	phys, err := b.resolve(path)
	if err != nil {
		return PermissionDenied(path)
	}

	lines, err := readLines(phys)
	if err != nil {
		if os.IsNotExist(err) {
			return NotFound(path)
		}
		return softErrf("reading file '%s': %v", path, err)
	}
	return lineWindow(lines, offset, limit)
}

// Write implements Backend.
func (b *FilesystemBackend) Write(ctx context.Context, path, content string) WriteResult {
	phys, err := b.resolve(path)
	if err != nil {
		return WriteResult{Err: PermissionDenied(path)}
	}
	if err := os.MkdirAll(filepath.Dir(phys), 0o755); err != nil {
		return WriteResult{Err: softErrf("creating parent directory for '%s': %v", path, err)}
	}
	if err := os.WriteFile(phys, []byte(content), 0o644); err != nil {
		return WriteResult{Err: softErrf("writing file '%s': %v", path, err)}
	}
	return WriteResult{Metadata: map[string]any{"physical_path": phys}}
}

// Edit implements Backend.
func (b *FilesystemBackend) Edit(ctx context.Context, path, oldString, newString string, replaceAll bool) EditResult {
	phys, err := b.resolve(path)
	if err != nil {
		return EditResult{Err: PermissionDenied(path)}
	}

	data, err := os.ReadFile(phys)
	if err != nil {
		if os.IsNotExist(err) {
			return EditResult{Err: NotFound(path)}
		}
		return EditResult{Err: softErrf("reading file '%s': %v", path, err)}
	}

	replaced, occurrences, softErr := replaceExact(string(data), oldString, newString, replaceAll)
	if softErr != "" {
		return EditResult{Err: softErr}
	}

	fi, statErr := os.Stat(phys)
	mode := fs.FileMode(0o644)
	if statErr == nil {
		mode = fi.Mode().Perm()
	}
	if err := os.WriteFile(phys, []byte(replaced), mode); err != nil {
		return EditResult{Err: softErrf("writing file '%s': %v", path, err)}
	}
	return EditResult{
		Occurrences: occurrences,
		Metadata:    map[string]any{"physical_path": phys},
	}
}

// Glob implements Backend.
func (b *FilesystemBackend) Glob(ctx context.Context, pattern, basePath string) ([]FileInfo, error) {
	match, err := globMatcher(pattern, basePath)
	if err != nil {
		return nil, err
	}
	physBase, err := b.resolve(basePath)
	if err != nil {
		return nil, fmt.Errorf("backend: glob %s: %w", basePath, err)
	}

	var out []FileInfo
	walkErr := filepath.WalkDir(physBase, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil // unreadable entries are skipped, not fatal
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if d.IsDir() {
			return nil
		}
		virt := b.toVirtual(p)
		if !match(virt) {
			return nil
		}
		info := FileInfo{Path: virt}
		if fi, err := d.Info(); err == nil {
			info.Size = fi.Size()
		}
		out = append(out, info)
		return nil
	})
	if walkErr != nil {
		return nil, fmt.Errorf("backend: glob %s: %w", pattern, walkErr)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out, nil
}

// Grep implements Backend.
func (b *FilesystemBackend) Grep(ctx context.Context, pattern, basePath, include string) GrepResult {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return GrepResult{Err: softErrf("Invalid regex pattern '%s': %v", pattern, err)}
	}
	includeOK, err := includeMatcher(include)
	if err != nil {
		return GrepResult{Err: softErrf("Invalid glob filter '%s': %v", include, err)}
	}
	physBase, err := b.resolve(basePath)
	if err != nil {
		return GrepResult{Err: PermissionDenied(basePath)}
	}

	var matches []GrepMatch
	_ = filepath.WalkDir(physBase, func(p string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if len(matches) >= maxGrepMatches {
			return fs.SkipAll
		}
		virt := b.toVirtual(p)
		if !includeOK(virt) {
			return nil
		}
		lines, err := readLines(p)
		if err != nil {
			b.logger.Debug("grep: skipping unreadable file", "path", virt, "error", err)
			return nil
		}
		for i, line := range lines {
			if re.MatchString(line) {
				matches = append(matches, GrepMatch{Path: virt, Line: i + 1, Text: line})
				if len(matches) >= maxGrepMatches {
					return fs.SkipAll
				}
			}
		}
		return nil
	})
	return GrepResult{Matches: matches}
}

// DownloadFiles implements Downloader.
func (b *FilesystemBackend) DownloadFiles(ctx context.Context, paths []string) []DownloadResult {
	out := make([]DownloadResult, 0, len(paths))
	for _, p := range paths {
		phys, err := b.resolve(p)
		if err != nil {
			out = append(out, DownloadResult{Err: PermissionDenied(p)})
			continue
		}
		data, err := os.ReadFile(phys)
		if err != nil {
			if os.IsNotExist(err) {
				out = append(out, DownloadResult{Err: ErrFileNotFound})
			} else {
				out = append(out, DownloadResult{Err: err.Error()})
			}
			continue
		}
		out = append(out, DownloadResult{Content: data})
	}
	return out
}

func readLines(phys string) ([]string, error) {
	f, err := os.Open(phys)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 64*1024), maxScanLine)
	var lines []string
	for sc.Scan() {
		lines = append(lines, sc.Text())
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	if lines == nil {
		lines = []string{""}
	}
	return lines, nil
}

var _ Backend = (*FilesystemBackend)(nil)
var _ Downloader = (*FilesystemBackend)(nil)

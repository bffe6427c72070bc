package backend

import (
	"context"
	"fmt"
	"sort"
)

// CompositeBackend routes each operation to one of several sub-backends
// selected by longest-matching path prefix, e.g. a read-only knowledge root
// on a StoreBackend and a writable workspace on a FilesystemBackend behind
// one uniform interface. Sub-backends see the full, unstripped path. A mount
// at "/" is required so every path resolves somewhere.
type CompositeBackend struct {
	mounts []mount // sorted by prefix length, longest first
}

type mount struct {
	prefix  string
	backend Backend
}

// NewCompositeBackend builds a composite from a prefix->backend map. The map
// must include a "/" mount.
func NewCompositeBackend(mounts map[string]Backend) (*CompositeBackend, error) {
	if len(mounts) == 0 {
		return nil, fmt.Errorf("backend: composite needs at least one mount")
	}

	c := &CompositeBackend{}
	for prefix, b := range mounts {
		if b == nil {
			return nil, fmt.Errorf("backend: nil backend mounted at %q", prefix)
		}
		c.mounts = append(c.mounts, mount{prefix: NormalizePath(prefix), backend: b})
	}
	sort.Slice(c.mounts, func(i, j int) bool {
		return len(c.mounts[i].prefix) > len(c.mounts[j].prefix)
	})

	if c.mounts[len(c.mounts)-1].prefix != "/" {
		return nil, fmt.Errorf("backend: composite requires a mount at \"/\"")
	}
	return c, nil
}

// route returns the backend owning path (longest matching prefix).
func (c *CompositeBackend) route(path string) Backend {
	p := NormalizePath(path)
	for _, m := range c.mounts {
		if isBeneath(p, m.prefix) {
			return m.backend
		}
	}
	// Unreachable: the "/" mount matches everything.
	return c.mounts[len(c.mounts)-1].backend
}

// List implements Backend. Mount roots sitting directly beneath path are
// synthesized as directory entries so they stay discoverable even when the
// owning backend of path knows nothing about them.
func (c *CompositeBackend) List(ctx context.Context, path string) ([]FileInfo, error) {
	base := NormalizePath(path)
	out, err := c.route(base).List(ctx, base)
	if err != nil {
		return nil, err
	}

	seen := map[string]struct{}{}
	for _, fi := range out {
		seen[fi.Path] = struct{}{}
	}
	for _, m := range c.mounts {
		if m.prefix == "/" || !isBeneath(m.prefix, base) || m.prefix == base {
			continue
		}
		name, hasMore := childSegment(m.prefix, base)
		if hasMore || name == "" {
			continue
		}
		if _, ok := seen[m.prefix]; !ok {
			out = append(out, FileInfo{Path: m.prefix, IsDir: true})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out, nil
}

// Read implements Backend.
func (c *CompositeBackend) Read(ctx context.Context, path string, offset, limit int) string {
	return c.route(path).Read(ctx, path, offset, limit)
}

// Write implements Backend.
func (c *CompositeBackend) Write(ctx context.Context, path, content string) WriteResult {
	return c.route(path).Write(ctx, path, content)
}

// Edit implements Backend.
func (c *CompositeBackend) Edit(ctx context.Context, path, oldString, newString string, replaceAll bool) EditResult {
	return c.route(path).Edit(ctx, path, oldString, newString, replaceAll)
}

// Glob implements Backend. The pattern is routed by its base path.
func (c *CompositeBackend) Glob(ctx context.Context, pattern, basePath string) ([]FileInfo, error) {
	return c.route(basePath).Glob(ctx, pattern, basePath)
}

// Grep implements Backend. The search is routed by its base path.
func (c *CompositeBackend) Grep(ctx context.Context, pattern, basePath, include string) GrepResult {
	return c.route(basePath).Grep(ctx, pattern, basePath, include)
}

// DownloadFiles implements Downloader, routing each path independently.
// Paths landing on a backend without download support report a soft error.
func (c *CompositeBackend) DownloadFiles(ctx context.Context, paths []string) []DownloadResult {
	out := make([]DownloadResult, 0, len(paths))
	for _, p := range paths {
		dl, ok := c.route(p).(Downloader)
		if !ok {
			out = append(out, DownloadResult{Err: "backend does not support downloads"})
			continue
		}
		res := dl.DownloadFiles(ctx, []string{p})
		if len(res) != 1 {
			out = append(out, DownloadResult{Err: "backend returned mismatched download results"})
			continue
		}
		out = append(out, res[0])
	}
	return out
}

// Execute implements Executor when the root mount is sandbox-capable.
// Commands always run against the "/" mount.
func (c *CompositeBackend) Execute(ctx context.Context, command string) ExecResult {
	root := c.mounts[len(c.mounts)-1].backend
	if ex, ok := root.(Executor); ok {
		return ex.Execute(ctx, command)
	}
	return ExecResult{
		Output:   "Error: the root backend does not support command execution",
		ExitCode: -1,
	}
}

// CanExecute reports whether the root mount is sandbox-capable. The tool
// suite uses this to decide whether to expose the execute tool.
func (c *CompositeBackend) CanExecute() bool {
	_, ok := c.mounts[len(c.mounts)-1].backend.(Executor)
	return ok
}

var _ Backend = (*CompositeBackend)(nil)
var _ Downloader = (*CompositeBackend)(nil)

// Mounts returns the configured prefixes, longest first.
func (c *CompositeBackend) Mounts() []string {
	out := make([]string, 0, len(c.mounts))
	for _, m := range c.mounts {
		out = append(out, m.prefix)
	}
	return out
}

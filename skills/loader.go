package skills

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/basket/agentfs/backend"
)

// Loader scans skill sources through a backend provider. It holds no cache:
// every Load is a fresh scan, so results belong to the caller (typically
// the run's shared state) and the loader is safe to share across branches.
type Loader struct {
	provider backend.Provider
	logger   *slog.Logger
}

// NewLoader builds a loader reading through the given provider.
func NewLoader(provider backend.Provider, logger *slog.Logger) (*Loader, error) {
	if provider == nil {
		return nil, fmt.Errorf("skills: nil backend provider")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Loader{provider: provider, logger: logger}, nil
}

// Load scans sources in order and returns the merged skill set, sorted by
// name. On a name collision the later source wins, implementing priority
// layering (base < user < project). Individual source and manifest failures
// are logged and skipped; the joined error reports them without
// invalidating the returned skills.
func (l *Loader) Load(ctx context.Context, sources []string) ([]Metadata, error) {
	b, err := l.provider.Resolve(ctx)
	if err != nil {
		return nil, fmt.Errorf("skills: resolve backend: %w", err)
	}
	if b == nil {
		return nil, fmt.Errorf("skills: provider resolved no backend")
	}

	byName := map[string]Metadata{}
	var errs []error

	for _, source := range sources {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		source = backend.NormalizePath(source)

		entries, err := b.List(ctx, source)
		if err != nil {
			l.logger.Warn("skills: source scan failed, skipping", "source", source, "err", err)
			errs = append(errs, fmt.Errorf("scan %s: %w", source, err))
			continue
		}

		for _, ent := range entries {
			if !ent.IsDir {
				continue
			}
			dirName := ent.Path[strings.LastIndexByte(ent.Path, '/')+1:]
			manifestPath := ent.Path + "/" + ManifestName

			meta, ok := l.loadOne(ctx, b, manifestPath, dirName)
			if !ok {
				continue
			}
			byName[meta.Name] = meta
		}
	}

	out := make([]Metadata, 0, len(byName))
	for _, meta := range byName {
		out = append(out, meta)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, errors.Join(errs...)
}

// loadOne fetches and parses a single manifest. Every failure path logs a
// warning and reports not-ok; nothing here aborts the scan.
func (l *Loader) loadOne(ctx context.Context, b backend.Backend, path, dirName string) (Metadata, bool) {
	data, ok := l.fetch(ctx, b, path)
	if !ok {
		return Metadata{}, false
	}
	if len(data) > maxManifestSize {
		l.logger.Warn("skills: manifest too large, skipping",
			"path", path, "size", len(data), "max", maxManifestSize)
		return Metadata{}, false
	}

	meta, err := parseManifest(data, path)
	if err != nil {
		l.logger.Warn("skills: invalid manifest, skipping", "path", path, "err", err)
		return Metadata{}, false
	}

	for _, issue := range nameIssues(meta.Name, dirName) {
		l.logger.Warn("skills: non-compliant skill name", "path", path, "issue", issue)
	}
	if len(meta.Description) > maxDescriptionLen {
		l.logger.Warn("skills: description truncated",
			"skill", meta.Name, "len", len(meta.Description), "max", maxDescriptionLen)
		meta.Description = meta.Description[:maxDescriptionLen]
	}
	return meta, true
}

// fetch reads the full manifest, byte-exact through the download capability
// when the backend has one, otherwise through a wide read window. A missing
// manifest is the normal case for a directory that is not a skill.
func (l *Loader) fetch(ctx context.Context, b backend.Backend, path string) ([]byte, bool) {
	if dl, ok := b.(backend.Downloader); ok {
		results := dl.DownloadFiles(ctx, []string{path})
		if len(results) != 1 {
			l.logger.Warn("skills: backend returned mismatched download results", "path", path)
			return nil, false
		}
		res := results[0]
		if res.Err == backend.ErrFileNotFound {
			return nil, false
		}
		if res.Err != "" {
			l.logger.Warn("skills: manifest fetch failed, skipping", "path", path, "err", res.Err)
			return nil, false
		}
		return res.Content, true
	}

	raw := b.Read(ctx, path, 0, maxManifestSize)
	if backend.IsNotFound(raw) {
		return nil, false
	}
	if backend.IsSoftError(raw) {
		l.logger.Warn("skills: manifest read failed, skipping", "path", path, "err", raw)
		return nil, false
	}
	return []byte(raw), true
}

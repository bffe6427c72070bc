// Package memory loads persistent context documents from configured paths
// and assembles them into one labeled text block for the agent's working
// context. Every source is kept in order; none overrides another.
package memory

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/basket/agentfs/backend"
)

// Segment is one successfully loaded memory document.
type Segment struct {
	Source  string
	Content string
}

// Loader reads memory documents through a backend provider.
type Loader struct {
	provider backend.Provider
	logger   *slog.Logger
}

// NewLoader builds a loader reading through the given provider.
func NewLoader(provider backend.Provider, logger *slog.Logger) (*Loader, error) {
	if provider == nil {
		return nil, fmt.Errorf("memory: nil backend provider")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Loader{provider: provider, logger: logger}, nil
}

// Load fetches each source path in order. A missing document is optional
// and skipped silently; any other failure propagates, because a present but
// unreadable memory file is a condition the operator must see.
func (l *Loader) Load(ctx context.Context, sources []string) ([]Segment, error) {
	b, err := l.provider.Resolve(ctx)
	if err != nil {
		return nil, fmt.Errorf("memory: resolve backend: %w", err)
	}
	if b == nil {
		return nil, fmt.Errorf("memory: provider resolved no backend")
	}

	var out []Segment
	for _, source := range sources {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		source = backend.NormalizePath(source)

		content, ok, err := l.fetch(ctx, b, source)
		if err != nil {
			return nil, err
		}
		if !ok {
			l.logger.Debug("memory: optional document absent", "source", source)
			continue
		}
		out = append(out, Segment{Source: source, Content: content})
	}
	return out, nil
}

// Render concatenates segments in order, each labeled by its source path.
func Render(segments []Segment) string {
	if len(segments) == 0 {
		return ""
	}
	var sb strings.Builder
	for n, seg := range segments {
		if n > 0 {
			sb.WriteString("\n\n")
		}
		fmt.Fprintf(&sb, "## Memory: %s\n\n%s", seg.Source, strings.TrimRight(seg.Content, "\n"))
	}
	return sb.String()
}

// fetch reads one document, byte-exact through the download capability when
// available. Not-found reports ok=false with no error; other failures are
// hard errors.
func (l *Loader) fetch(ctx context.Context, b backend.Backend, path string) (string, bool, error) {
	if dl, ok := b.(backend.Downloader); ok {
		results := dl.DownloadFiles(ctx, []string{path})
		if len(results) != 1 {
			return "", false, fmt.Errorf("memory: backend returned %d download results for one path", len(results))
		}
		res := results[0]
		if res.Err == backend.ErrFileNotFound {
			return "", false, nil
		}
		if res.Err != "" {
			return "", false, fmt.Errorf("memory: load %s: %s", path, res.Err)
		}
		return string(res.Content), true, nil
	}

	raw := b.Read(ctx, path, 0, 1<<20)
	if backend.IsNotFound(raw) {
		return "", false, nil
	}
	if backend.IsSoftError(raw) {
		return "", false, fmt.Errorf("memory: load %s: %s", path, raw)
	}
	return raw, true, nil
}

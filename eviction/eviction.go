// Package eviction shields the agent's context window from oversized tool
// output. Results past a size threshold are relocated to storage under a
// reserved directory and replaced with a short notice plus a head/tail
// preview; the full content stays readable through the ordinary read tool.
package eviction

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/basket/agentfs/backend"
	"github.com/basket/agentfs/runctx"
	"github.com/basket/agentfs/state"
	"github.com/basket/agentfs/telemetry"
	"github.com/basket/agentfs/tools"
)

// Config tunes the interceptor. Zero values take the defaults below.
type Config struct {
	// ThresholdTokens is the eviction trigger, approximated as
	// ThresholdTokens * CharsPerToken characters. Biased high on purpose:
	// premature eviction costs the agent more than a large message.
	ThresholdTokens int
	CharsPerToken   int

	// Head and Tail are the preview line counts.
	Head int
	Tail int

	// MaxLineChars caps each preview line.
	MaxLineChars int

	// Dir is the reserved directory evicted content is written under.
	Dir string
}

// Defaults.
const (
	DefaultThresholdTokens = 20000
	DefaultCharsPerToken   = 4
	DefaultHead            = 5
	DefaultTail            = 5
	DefaultMaxLineChars    = 1000
	DefaultDir             = "/large_tool_results"
)

func (c Config) withDefaults() Config {
	if c.ThresholdTokens <= 0 {
		c.ThresholdTokens = DefaultThresholdTokens
	}
	if c.CharsPerToken <= 0 {
		c.CharsPerToken = DefaultCharsPerToken
	}
	if c.Head <= 0 {
		c.Head = DefaultHead
	}
	if c.Tail <= 0 {
		c.Tail = DefaultTail
	}
	if c.MaxLineChars <= 0 {
		c.MaxLineChars = DefaultMaxLineChars
	}
	if c.Dir == "" {
		c.Dir = DefaultDir
	}
	return c
}

// thresholdChars is the character length at which eviction triggers.
func (c Config) thresholdChars() int {
	return c.ThresholdTokens * c.CharsPerToken
}

// exempt tools bound their own output or would not benefit from
// relocation; their results pass through untouched.
var exempt = map[string]struct{}{
	"ls":    {},
	"read":  {},
	"write": {},
	"edit":  {},
	"glob":  {},
	"grep":  {},
}

// Options configures optional Interceptor collaborators.
type Options struct {
	Logger  *slog.Logger
	Tracer  trace.Tracer
	Metrics *telemetry.Metrics
}

// Interceptor relocates oversized tool results through a backend provider.
type Interceptor struct {
	provider backend.Provider
	cfg      Config
	logger   *slog.Logger
	tracer   trace.Tracer
	metrics  *telemetry.Metrics
}

// New builds an interceptor writing through the given provider.
func New(provider backend.Provider, cfg Config, opts Options) (*Interceptor, error) {
	if provider == nil {
		return nil, fmt.Errorf("eviction: nil backend provider")
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	tracer := opts.Tracer
	if tracer == nil {
		tracer = otel.Tracer("github.com/basket/agentfs/eviction")
	}
	return &Interceptor{
		provider: provider,
		cfg:      cfg.withDefaults(),
		logger:   logger,
		tracer:   tracer,
		metrics:  opts.Metrics,
	}, nil
}

// Exempt reports whether tool's results bypass the interceptor.
func Exempt(tool string) bool {
	_, ok := exempt[tool]
	return ok
}

// Path returns the deterministic storage path for a tool-call identifier.
// Retrying a call with the same id overwrites the same path, which keeps
// eviction writes idempotent across cancellation.
func (i *Interceptor) Path(callID string) string {
	return i.cfg.Dir + "/" + sanitizeID(callID)
}

// Process inspects one tool result and relocates it when oversized. The
// returned result bundles the original delta with the eviction write's
// delta; if the relocation write fails, the original result comes back
// untouched rather than losing content.
func (i *Interceptor) Process(ctx context.Context, tool string, res tools.Result) tools.Result {
	if Exempt(tool) || len(res.Message) < i.cfg.thresholdChars() {
		return res
	}

	ctx, span := telemetry.StartSpan(ctx, i.tracer, "eviction.process",
		telemetry.AttrToolName.String(tool),
		telemetry.AttrRunID.String(runctx.RunID(ctx)),
	)
	defer span.End()

	callID := runctx.ToolCallID(ctx)
	if callID == "" {
		callID = uuid.NewString()
	}
	path := i.Path(callID)

	b, err := i.provider.Resolve(ctx)
	if err != nil || b == nil {
		i.logger.WarnContext(ctx, "eviction skipped: no backend", "tool", tool, "err", err)
		return res
	}
	wr := b.Write(ctx, path, res.Message)
	if wr.Err != "" {
		i.logger.WarnContext(ctx, "eviction write failed, keeping original result",
			"tool", tool, "path", path, "err", wr.Err)
		return res
	}

	if i.metrics != nil {
		i.metrics.Evictions.Add(ctx, 1)
		i.metrics.EvictedBytes.Add(ctx, int64(len(res.Message)))
	}
	i.logger.InfoContext(ctx, "tool result evicted",
		"tool", tool, "path", path, "chars", len(res.Message))

	notice := fmt.Sprintf(
		"Tool result for call '%s' was too large (%d chars) and has been saved to %s. Use read with offset and limit to page through the full content.",
		callID, len(res.Message), path)
	preview := buildPreview(res.Message, i.cfg.Head, i.cfg.Tail, i.cfg.MaxLineChars)

	return tools.Result{
		Message: notice + "\n\nPreview:\n" + preview,
		Update:  state.MergeUpdates(res.Update, wr.Update),
	}
}

// ProcessBatch applies Process per message and accumulates every delta
// into one merged update for the batch. Each message gets its own storage
// path derived from the call id and its batch index. The returned results
// carry nil updates; the merged update is returned alongside.
func (i *Interceptor) ProcessBatch(ctx context.Context, tool string, results []tools.Result) ([]tools.Result, state.FileUpdate) {
	callID := runctx.ToolCallID(ctx)
	if callID == "" {
		callID = uuid.NewString()
	}

	out := make([]tools.Result, len(results))
	var merged state.FileUpdate
	for n, res := range results {
		id := callID
		if len(results) > 1 {
			id = fmt.Sprintf("%s_%d", callID, n)
		}
		processed := i.Process(runctx.WithToolCallID(ctx, id), tool, res)
		merged = state.MergeUpdates(merged, processed.Update)
		processed.Update = nil
		out[n] = processed
	}
	return out, merged
}

// sanitizeID maps a tool-call identifier onto a filesystem-safe name:
// letters, digits, underscore and hyphen survive, everything else
// becomes an underscore.
func sanitizeID(id string) string {
	var sb strings.Builder
	sb.Grow(len(id))
	for _, r := range id {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_', r == '-':
			sb.WriteRune(r)
		default:
			sb.WriteRune('_')
		}
	}
	return sb.String()
}

// buildPreview renders the head/tail excerpt. Short content shows every
// line; longer content shows head lines, a truncation marker with the
// omitted count, then tail lines with continuing line numbers.
func buildPreview(text string, head, tail, maxLineChars int) string {
	lines := strings.Split(text, "\n")
	capLine := func(s string) string {
		if len(s) > maxLineChars {
			return s[:maxLineChars]
		}
		return s
	}

	var sb strings.Builder
	if len(lines) <= head+tail {
		for n, line := range lines {
			fmt.Fprintf(&sb, "%d\t%s\n", n+1, capLine(line))
		}
		return strings.TrimRight(sb.String(), "\n")
	}

	for n := 0; n < head; n++ {
		fmt.Fprintf(&sb, "%d\t%s\n", n+1, capLine(lines[n]))
	}
	fmt.Fprintf(&sb, "[%d lines truncated]\n", len(lines)-head-tail)
	for n := len(lines) - tail; n < len(lines); n++ {
		fmt.Fprintf(&sb, "%d\t%s\n", n+1, capLine(lines[n]))
	}
	return strings.TrimRight(sb.String(), "\n")
}

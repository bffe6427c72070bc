// Package tools is the agent-facing operation surface: ls, read, write,
// edit, glob, grep and execute, built on the backend capability contract.
// Results carry a message for the agent plus an optional file-update delta
// for the state reducer.
package tools

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/basket/agentfs/backend"
	"github.com/basket/agentfs/runctx"
	"github.com/basket/agentfs/state"
	"github.com/basket/agentfs/telemetry"
)

// DefaultMaxReadChars caps the character length of a single read result.
// Longer content is cut at the cap with a truncation notice; this is
// end-of-content truncation, separate from relocation-based eviction.
const DefaultMaxReadChars = 20000 * 4

// Result is what every tool returns to the agent runtime: a message for the
// model and, when the backend produced one, a delta for the state reducer.
type Result struct {
	Message string
	Update  state.FileUpdate
}

// Suite binds the tool operations to a backend provider and the run's
// shared state container.
type Suite struct {
	provider     backend.Provider
	run          *state.Run
	logger       *slog.Logger
	tracer       trace.Tracer
	metrics      *telemetry.Metrics
	maxReadChars int
}

// SuiteOptions configures optional Suite collaborators.
type SuiteOptions struct {
	Logger       *slog.Logger
	Tracer       trace.Tracer
	Metrics      *telemetry.Metrics
	MaxReadChars int
}

// NewSuite builds a tool suite over the given provider. run may be nil when
// no shared state container exists; the read-before-edit contract is then
// not enforced.
func NewSuite(provider backend.Provider, run *state.Run, opts SuiteOptions) (*Suite, error) {
	if provider == nil {
		return nil, fmt.Errorf("tools: nil backend provider")
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	tracer := opts.Tracer
	if tracer == nil {
		tracer = otel.Tracer("github.com/basket/agentfs/tools")
	}
	maxRead := opts.MaxReadChars
	if maxRead <= 0 {
		maxRead = DefaultMaxReadChars
	}
	return &Suite{
		provider:     provider,
		run:          run,
		logger:       logger,
		tracer:       tracer,
		metrics:      opts.Metrics,
		maxReadChars: maxRead,
	}, nil
}

// resolve obtains the concrete backend for this call. A nil resolution is a
// misconfiguration and therefore a hard error.
func (s *Suite) resolve(ctx context.Context) (backend.Backend, error) {
	b, err := s.provider.Resolve(ctx)
	if err != nil {
		return nil, fmt.Errorf("tools: resolve backend: %w", err)
	}
	if b == nil {
		return nil, fmt.Errorf("tools: provider resolved no backend")
	}
	return b, nil
}

// observe starts a span for one tool call and returns a completion func
// that records duration, the error counter and a debug log line.
func (s *Suite) observe(ctx context.Context, tool string) (context.Context, func(err error)) {
	start := time.Now()
	ctx, span := telemetry.StartSpan(ctx, s.tracer, "tools."+tool,
		telemetry.AttrToolName.String(tool),
		telemetry.AttrRunID.String(runctx.RunID(ctx)),
		telemetry.AttrSessionID.String(runctx.SessionID(ctx)),
	)
	return ctx, func(err error) {
		elapsed := time.Since(start)
		if err != nil {
			span.RecordError(err)
		}
		span.End()
		if s.metrics != nil {
			attrs := metric.WithAttributes(telemetry.AttrToolName.String(tool))
			s.metrics.ToolCallDuration.Record(ctx, elapsed.Seconds(), attrs)
			if err != nil {
				s.metrics.ToolCallErrors.Add(ctx, 1, attrs)
			}
		}
		s.logger.DebugContext(ctx, "tool call",
			"tool", tool,
			"run_id", runctx.RunID(ctx),
			"duration_ms", elapsed.Milliseconds(),
			"err", err,
		)
	}
}

// Ls lists the immediate children of path, one entry per line with the
// directory flag and byte size formatted in.
func (s *Suite) Ls(ctx context.Context, path string) (Result, error) {
	ctx, done := s.observe(ctx, "ls")
	var err error
	defer func() { done(err) }()

	b, err := s.resolve(ctx)
	if err != nil {
		return Result{}, err
	}
	path = backend.NormalizePath(path)

	infos, err := b.List(ctx, path)
	if err != nil {
		err = fmt.Errorf("tools: list %s: %w", path, err)
		return Result{}, err
	}
	if len(infos) == 0 {
		return Result{Message: fmt.Sprintf("Directory '%s' is empty", path)}, nil
	}

	var sb strings.Builder
	for _, info := range infos {
		if info.IsDir {
			fmt.Fprintf(&sb, "%s/\n", info.Path)
		} else {
			fmt.Fprintf(&sb, "%s (%d bytes)\n", info.Path, info.Size)
		}
	}
	return Result{Message: strings.TrimRight(sb.String(), "\n")}, nil
}

// Read returns a numbered line window of the file. The returned line count
// never exceeds the requested limit even if the backend over-returns, and
// the total output is capped at the suite's character limit with a notice.
func (s *Suite) Read(ctx context.Context, path string, offset, limit int) (Result, error) {
	ctx, done := s.observe(ctx, "read")
	var err error
	defer func() { done(err) }()

	b, err := s.resolve(ctx)
	if err != nil {
		return Result{}, err
	}
	path = backend.NormalizePath(path)
	if offset < 0 {
		offset = 0
	}
	if limit <= 0 {
		limit = backend.DefaultReadLimit
	}

	raw := b.Read(ctx, path, offset, limit)
	if backend.IsSoftError(raw) {
		return Result{Message: raw}, nil
	}
	if s.run != nil {
		s.run.MarkRead(runctx.SessionID(ctx), path)
	}
	if raw == "" {
		return Result{}, nil
	}

	lines := strings.Split(raw, "\n")
	if len(lines) > limit {
		lines = lines[:limit]
	}

	var sb strings.Builder
	for i, line := range lines {
		fmt.Fprintf(&sb, "%6d\t%s\n", offset+i+1, line)
	}
	out := strings.TrimRight(sb.String(), "\n")
	if len(out) > s.maxReadChars {
		out = out[:s.maxReadChars] +
			fmt.Sprintf("\n... output truncated at %d characters; use offset and limit to page through %s", s.maxReadChars, path)
	}
	return Result{Message: out}, nil
}

// Write creates or replaces the file at path. When the backend produced a
// delta, the result bundles it with the confirmation so the reducer applies
// both atomically.
func (s *Suite) Write(ctx context.Context, path, content string) (Result, error) {
	ctx, done := s.observe(ctx, "write")
	var err error
	defer func() { done(err) }()

	b, err := s.resolve(ctx)
	if err != nil {
		return Result{}, err
	}
	path = backend.NormalizePath(path)

	res := b.Write(ctx, path, content)
	if res.Err != "" {
		return Result{Message: res.Err}, nil
	}
	return Result{
		Message: fmt.Sprintf("Updated file %s", path),
		Update:  res.Update,
	}, nil
}

// Edit replaces an exact substring in the file. The path must have been
// read in the same session first; the confirmation reports the exact
// occurrence count replaced.
func (s *Suite) Edit(ctx context.Context, path, oldString, newString string, replaceAll bool) (Result, error) {
	ctx, done := s.observe(ctx, "edit")
	var err error
	defer func() { done(err) }()

	b, err := s.resolve(ctx)
	if err != nil {
		return Result{}, err
	}
	path = backend.NormalizePath(path)

	if s.run != nil && !s.run.WasRead(runctx.SessionID(ctx), path) {
		return Result{Message: fmt.Sprintf("Error: File '%s' has not been read in this session. Read it before editing.", path)}, nil
	}

	res := b.Edit(ctx, path, oldString, newString, replaceAll)
	if res.Err != "" {
		return Result{Message: res.Err}, nil
	}
	return Result{
		Message: fmt.Sprintf("Edited %s: replaced %d occurrence(s)", path, res.Occurrences),
		Update:  res.Update,
	}, nil
}

// Glob returns the absolute paths matching pattern beneath basePath, one
// per line.
func (s *Suite) Glob(ctx context.Context, pattern, basePath string) (Result, error) {
	ctx, done := s.observe(ctx, "glob")
	var err error
	defer func() { done(err) }()

	b, err := s.resolve(ctx)
	if err != nil {
		return Result{}, err
	}
	if basePath == "" {
		basePath = "/"
	}

	infos, err := b.Glob(ctx, pattern, basePath)
	if err != nil {
		err = fmt.Errorf("tools: glob %q: %w", pattern, err)
		return Result{}, err
	}
	if len(infos) == 0 {
		return Result{Message: fmt.Sprintf("No files found matching pattern '%s'", pattern)}, nil
	}

	paths := make([]string, len(infos))
	for i, info := range infos {
		paths[i] = info.Path
	}
	return Result{Message: strings.Join(paths, "\n")}, nil
}

// Grep searches file contents for a regular expression, grouping matches
// under a header line per file.
func (s *Suite) Grep(ctx context.Context, pattern, basePath, include string) (Result, error) {
	ctx, done := s.observe(ctx, "grep")
	var err error
	defer func() { done(err) }()

	b, err := s.resolve(ctx)
	if err != nil {
		return Result{}, err
	}
	if basePath == "" {
		basePath = "/"
	}

	res := b.Grep(ctx, pattern, basePath, include)
	if res.Err != "" {
		return Result{Message: res.Err}, nil
	}
	if len(res.Matches) == 0 {
		return Result{Message: fmt.Sprintf("No matches found for pattern '%s'", pattern)}, nil
	}

	var sb strings.Builder
	lastPath := ""
	for _, m := range res.Matches {
		if m.Path != lastPath {
			if lastPath != "" {
				sb.WriteString("\n")
			}
			fmt.Fprintf(&sb, "%s:\n", m.Path)
			lastPath = m.Path
		}
		fmt.Fprintf(&sb, "  %d: %s\n", m.Line, m.Text)
	}
	return Result{Message: strings.TrimRight(sb.String(), "\n")}, nil
}

// Execute runs a command on the resolved backend's sandbox. Backends
// without the capability get an explanatory error string rather than a
// failed call; successful runs carry exit-status and truncation
// annotations after the raw output.
func (s *Suite) Execute(ctx context.Context, command string) (Result, error) {
	ctx, done := s.observe(ctx, "execute")
	var err error
	defer func() { done(err) }()

	b, err := s.resolve(ctx)
	if err != nil {
		return Result{}, err
	}
	if !backend.SupportsExecute(b) {
		return Result{Message: "Error: this backend does not support command execution"}, nil
	}

	res := b.(backend.Executor).Execute(ctx, command)
	if backend.IsSoftError(res.Output) {
		return Result{Message: res.Output}, nil
	}

	msg := res.Output
	msg += fmt.Sprintf("\n\n(exit code %d)", res.ExitCode)
	if res.Truncated {
		msg += " (output truncated)"
	}
	return Result{Message: msg}, nil
}

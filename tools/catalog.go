package tools

import (
	"context"

	"github.com/basket/agentfs/backend"
)

// Args is the loosely-typed argument bag a tool call arrives with, as
// decoded from the model's JSON tool arguments.
type Args map[string]any

// String returns the string under key, or def when absent or not a string.
func (a Args) String(key, def string) string {
	if v, ok := a[key].(string); ok {
		return v
	}
	return def
}

// Int returns the integer under key. JSON numbers decode as float64, so
// both forms are accepted.
func (a Args) Int(key string, def int) int {
	switch v := a[key].(type) {
	case int:
		return v
	case float64:
		return int(v)
	}
	return def
}

// Bool returns the boolean under key, or def when absent or not a bool.
func (a Args) Bool(key string, def bool) bool {
	if v, ok := a[key].(bool); ok {
		return v
	}
	return def
}

// Tool is one catalog entry: a name and description for the model, and the
// bound operation.
type Tool struct {
	Name        string
	Description string
	Run         func(ctx context.Context, args Args) (Result, error)
}

// Catalog returns the tool definitions for this suite. execute is included
// only when the backend resolved for ctx declares sandbox capability;
// callers with a context-dependent provider should rebuild the catalog when
// the execution context changes.
func (s *Suite) Catalog(ctx context.Context) []Tool {
	catalog := []Tool{
		{
			Name:        "ls",
			Description: "List the files and directories directly under a path.",
			Run: func(ctx context.Context, args Args) (Result, error) {
				return s.Ls(ctx, args.String("path", "/"))
			},
		},
		{
			Name:        "read",
			Description: "Read a file as numbered lines. offset and limit select a line window; defaults read the first 100 lines.",
			Run: func(ctx context.Context, args Args) (Result, error) {
				return s.Read(ctx,
					args.String("path", ""),
					args.Int("offset", 0),
					args.Int("limit", 0),
				)
			},
		},
		{
			Name:        "write",
			Description: "Create or replace a file with the given content.",
			Run: func(ctx context.Context, args Args) (Result, error) {
				return s.Write(ctx, args.String("path", ""), args.String("content", ""))
			},
		},
		{
			Name:        "edit",
			Description: "Replace an exact string in a file. The string must be unique unless replace_all is set. Read the file first.",
			Run: func(ctx context.Context, args Args) (Result, error) {
				return s.Edit(ctx,
					args.String("path", ""),
					args.String("old_string", ""),
					args.String("new_string", ""),
					args.Bool("replace_all", false),
				)
			},
		},
		{
			Name:        "glob",
			Description: "Find files whose paths match a glob pattern (*, **, ?).",
			Run: func(ctx context.Context, args Args) (Result, error) {
				return s.Glob(ctx, args.String("pattern", ""), args.String("path", "/"))
			},
		},
		{
			Name:        "grep",
			Description: "Search file contents for a regular expression, optionally filtered by an include glob.",
			Run: func(ctx context.Context, args Args) (Result, error) {
				return s.Grep(ctx,
					args.String("pattern", ""),
					args.String("path", "/"),
					args.String("include", ""),
				)
			},
		},
	}

	if b, err := s.provider.Resolve(ctx); err == nil && b != nil && backend.SupportsExecute(b) {
		catalog = append(catalog, Tool{
			Name:        "execute",
			Description: "Run a shell command in the sandbox and return its output with the exit code.",
			Run: func(ctx context.Context, args Args) (Result, error) {
				return s.Execute(ctx, args.String("command", ""))
			},
		})
	}
	return catalog
}

// Package backend defines the storage capability contract the tool suite
// runs against, and its four implementations: run-state, filesystem,
// durable store, and prefix-routing composite.
//
// Operational failures the agent can recover from (missing file, ambiguous
// edit, escaped path) travel as descriptive "Error: ..." strings inside
// results, never as Go errors; Go errors are reserved for backend-internal
// failures that terminate the operation.
package backend

import (
	"context"
	"fmt"
	"strings"

	"github.com/basket/agentfs/state"
)

// DefaultReadLimit is the line window size used when a caller passes a
// non-positive limit to Read.
const DefaultReadLimit = 100

// FileInfo describes a single listed or matched entry.
type FileInfo struct {
	Path  string `json:"path"`
	IsDir bool   `json:"is_dir"`
	Size  int64  `json:"size"`
}

// GrepMatch is one matching line.
type GrepMatch struct {
	Path string `json:"path"`
	Line int    `json:"line"`
	Text string `json:"text"`
}

// GrepResult carries matches or a soft error (e.g. unsupported pattern).
type GrepResult struct {
	Matches []GrepMatch
	Err     string
}

// WriteResult is the outcome of a write. Backends whose content lives in
// shared state return the delta in Update; external backends leave it nil.
type WriteResult struct {
	Err      string
	Update   state.FileUpdate
	Metadata map[string]any
}

// EditResult is the outcome of an exact-substring edit.
type EditResult struct {
	Err         string
	Occurrences int
	Update      state.FileUpdate
	Metadata    map[string]any
}

// DownloadResult is one entry of a bulk byte-exact retrieval.
type DownloadResult struct {
	Content []byte
	Err     string // "" on success, ErrFileNotFound, or another description
}

// ErrFileNotFound is the well-known DownloadResult error for absent paths.
const ErrFileNotFound = "file_not_found"

// ExecResult is the outcome of a sandboxed command execution.
type ExecResult struct {
	Output    string
	ExitCode  int
	Truncated bool
}

// Backend is the capability contract every storage implementation satisfies.
type Backend interface {
	// List returns the immediate children of path. An empty directory is an
	// empty, non-error result.
	List(ctx context.Context, path string) ([]FileInfo, error)

	// Read returns a raw line window of the file, or an "Error: ..." string.
	// An out-of-range offset yields empty content, not an error. A
	// non-positive limit means DefaultReadLimit.
	Read(ctx context.Context, path string, offset, limit int) string

	// Write creates or replaces the file at path.
	Write(ctx context.Context, path, content string) WriteResult

	// Edit replaces an exact substring. Zero matches is a soft error;
	// multiple matches without replaceAll is a soft error.
	Edit(ctx context.Context, path, oldString, newString string, replaceAll bool) EditResult

	// Glob returns entries matching pattern beneath basePath. No matches is
	// an empty, non-error result.
	Glob(ctx context.Context, pattern, basePath string) ([]FileInfo, error)

	// Grep searches file contents for a regular expression beneath basePath,
	// optionally filtered by an include glob.
	Grep(ctx context.Context, pattern, basePath, include string) GrepResult
}

// Downloader is the optional bulk byte-exact retrieval capability.
type Downloader interface {
	DownloadFiles(ctx context.Context, paths []string) []DownloadResult
}

// Executor is the optional sandboxed command-execution capability.
type Executor interface {
	Execute(ctx context.Context, command string) ExecResult
}

// ExecDeclarer is implemented by backends (e.g. a composite) whose execute
// support depends on configuration rather than on type identity. Callers
// discovering the capability should consult it when present.
type ExecDeclarer interface {
	CanExecute() bool
}

// SupportsExecute reports whether b can actually run commands.
func SupportsExecute(b Backend) bool {
	if _, ok := b.(Executor); !ok {
		return false
	}
	if d, ok := b.(ExecDeclarer); ok {
		return d.CanExecute()
	}
	return true
}

// Soft error constructors. Keeping the wording centralized lets callers
// (e.g. the memory loader) recognize conditions without string scraping
// spread across packages.

func softErrf(format string, args ...any) string {
	return "Error: " + fmt.Sprintf(format, args...)
}

// NotFound is the soft error for a missing file.
func NotFound(path string) string {
	return softErrf("File '%s' not found", path)
}

// IsNotFound reports whether a soft error string denotes a missing file.
func IsNotFound(s string) bool {
	return strings.HasPrefix(s, "Error: File '") && strings.HasSuffix(s, "' not found")
}

// PermissionDenied is the soft error for a path escaping a confined root.
func PermissionDenied(path string) string {
	return softErrf("Permission denied: path '%s' escapes the backend root", path)
}

// IsSoftError reports whether a Read return value is an error string rather
// than content.
func IsSoftError(s string) bool {
	return strings.HasPrefix(s, "Error: ")
}

// Package runctx carries run-scoped identifiers through context: the run
// itself, the sub-agent branch, the tool-call session, and the individual
// tool call. Components read these for logging, tracing and read-tracking;
// absent values degrade to safe defaults.
package runctx

import (
	"context"

	"github.com/google/uuid"
)

type runIDKey struct{}
type branchIDKey struct{}
type sessionIDKey struct{}
type toolCallIDKey struct{}

// WithRunID attaches a run_id to the context.
func WithRunID(ctx context.Context, runID string) context.Context {
	return context.WithValue(ctx, runIDKey{}, runID)
}

// RunID extracts run_id from context. Returns "-" if absent.
func RunID(ctx context.Context) string {
	if v, ok := ctx.Value(runIDKey{}).(string); ok && v != "" {
		return v
	}
	return "-"
}

// WithBranchID attaches a branch_id to the context.
func WithBranchID(ctx context.Context, branchID string) context.Context {
	return context.WithValue(ctx, branchIDKey{}, branchID)
}

// BranchID extracts branch_id from context. Returns "" if absent.
func BranchID(ctx context.Context) string {
	if v, ok := ctx.Value(branchIDKey{}).(string); ok {
		return v
	}
	return ""
}

// WithSessionID attaches a session_id to the context. The session scopes
// read-before-edit tracking in the tool suite.
func WithSessionID(ctx context.Context, sessionID string) context.Context {
	return context.WithValue(ctx, sessionIDKey{}, sessionID)
}

// SessionID extracts session_id from context. Returns "default" if absent so
// single-session callers never have to set one.
func SessionID(ctx context.Context) string {
	if v, ok := ctx.Value(sessionIDKey{}).(string); ok && v != "" {
		return v
	}
	return "default"
}

// WithToolCallID attaches a tool_call_id to the context.
func WithToolCallID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, toolCallIDKey{}, id)
}

// ToolCallID extracts tool_call_id from context. Returns "" if absent.
func ToolCallID(ctx context.Context) string {
	if v, ok := ctx.Value(toolCallIDKey{}).(string); ok {
		return v
	}
	return ""
}

// NewRunID generates a new run_id.
func NewRunID() string {
	return uuid.NewString()
}

// NewBranchID generates a new branch_id.
func NewBranchID() string {
	return uuid.NewString()
}

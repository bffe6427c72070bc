package runctx

import (
	"context"
	"testing"
)

func TestDefaults(t *testing.T) {
	ctx := context.Background()
	if got := RunID(ctx); got != "-" {
		t.Errorf("RunID default = %q", got)
	}
	if got := SessionID(ctx); got != "default" {
		t.Errorf("SessionID default = %q", got)
	}
	if got := BranchID(ctx); got != "" {
		t.Errorf("BranchID default = %q", got)
	}
	if got := ToolCallID(ctx); got != "" {
		t.Errorf("ToolCallID default = %q", got)
	}
}

func TestRoundTrip(t *testing.T) {
	ctx := context.Background()
	ctx = WithRunID(ctx, "r1")
	ctx = WithBranchID(ctx, "b1")
	ctx = WithSessionID(ctx, "s1")
	ctx = WithToolCallID(ctx, "t1")

	if got := RunID(ctx); got != "r1" {
		t.Errorf("RunID = %q", got)
	}
	if got := BranchID(ctx); got != "b1" {
		t.Errorf("BranchID = %q", got)
	}
	if got := SessionID(ctx); got != "s1" {
		t.Errorf("SessionID = %q", got)
	}
	if got := ToolCallID(ctx); got != "t1" {
		t.Errorf("ToolCallID = %q", got)
	}
}

func TestEmptyValuesFallBack(t *testing.T) {
	ctx := WithRunID(context.Background(), "")
	if got := RunID(ctx); got != "-" {
		t.Errorf("empty run_id should fall back, got %q", got)
	}
	ctx = WithSessionID(context.Background(), "")
	if got := SessionID(ctx); got != "default" {
		t.Errorf("empty session_id should fall back, got %q", got)
	}
}

func TestNewIDsUnique(t *testing.T) {
	if NewRunID() == NewRunID() {
		t.Errorf("run ids must be unique")
	}
	if NewBranchID() == NewBranchID() {
		t.Errorf("branch ids must be unique")
	}
}

package backend

import (
	"context"
	"strings"

	"github.com/basket/agentfs/sandbox"
)

// maxExecOutput caps captured command output (stdout + stderr combined).
const maxExecOutput = 8 * 1024

// execBackend decorates a Backend with the execute capability. Only
// decorated backends satisfy the Executor interface, so capability
// discovery by type assertion stays accurate.
type execBackend struct {
	Backend
	runner  sandbox.Executor
	workDir string
}

// WithExecutor returns b extended with sandboxed command execution. workDir
// is passed to the executor as the command working directory (for a
// filesystem backend, typically its root).
func WithExecutor(b Backend, runner sandbox.Executor, workDir string) Backend {
	if runner == nil {
		return b
	}
	return &execBackend{Backend: b, runner: runner, workDir: workDir}
}

// Execute implements Executor.
func (e *execBackend) Execute(ctx context.Context, command string) ExecResult {
	if strings.TrimSpace(command) == "" {
		return ExecResult{Output: softErrf("empty command"), ExitCode: -1}
	}
	if sandbox.Denied(command) {
		return ExecResult{Output: softErrf("command '%s' is blocked by policy", command), ExitCode: -1}
	}

	stdout, stderr, exitCode, err := e.runner.Exec(ctx, command, e.workDir)
	output := stdout
	if stderr != "" {
		if output != "" {
			output += "\n"
		}
		output += stderr
	}
	if err != nil {
		if output != "" {
			output += "\n"
		}
		output += "execution error: " + err.Error()
	}

	truncated := false
	if len(output) > maxExecOutput {
		output = output[:maxExecOutput]
		truncated = true
	}
	return ExecResult{Output: output, ExitCode: exitCode, Truncated: truncated}
}

// DownloadFiles preserves the inner backend's download capability across
// the decoration.
func (e *execBackend) DownloadFiles(ctx context.Context, paths []string) []DownloadResult {
	if dl, ok := e.Backend.(Downloader); ok {
		return dl.DownloadFiles(ctx, paths)
	}
	out := make([]DownloadResult, len(paths))
	for i := range out {
		out[i] = DownloadResult{Err: "backend does not support downloads"}
	}
	return out
}

var _ Backend = (*execBackend)(nil)
var _ Executor = (*execBackend)(nil)

package sandbox

import (
	"bytes"
	"context"
	"os/exec"
	"time"
)

// HostExecutor runs commands as local child processes. It offers no
// isolation beyond the deny list and timeout; use DockerExecutor or
// WasmExecutor when the workload is untrusted.
type HostExecutor struct {
	// Timeout per command. Zero means DefaultTimeout.
	Timeout time.Duration
}

// Exec implements Executor.
func (h *HostExecutor) Exec(ctx context.Context, cmd, workDir string) (stdout, stderr string, exitCode int, err error) {
	ctx, cancel := withTimeout(ctx, h.Timeout)
	defer cancel()

	execCmd := exec.CommandContext(ctx, "sh", "-c", cmd)
	if workDir != "" {
		execCmd.Dir = workDir
	}

	var outBuf, errBuf bytes.Buffer
	execCmd.Stdout = &outBuf
	execCmd.Stderr = &errBuf

	runErr := execCmd.Run()
	if runErr != nil {
		if exitErr, ok := runErr.(*exec.ExitError); ok {
			exitCode = exitErr.ExitCode()
		} else {
			// Not found, killed, context deadline.
			exitCode = -1
			err = runErr
		}
	}
	return outBuf.String(), errBuf.String(), exitCode, err
}

// Package sandbox runs agent-issued commands behind a single Executor
// contract, with host-process, Docker-container and WASI-module
// implementations. The storage layer exposes it through sandbox-capable
// backends only.
package sandbox

import (
	"context"
	"strings"
	"time"
)

const (
	// DefaultTimeout bounds a single command when the context carries no
	// earlier deadline.
	DefaultTimeout = 30 * time.Second
	// MaxTimeout is the hard ceiling regardless of configuration.
	MaxTimeout = 120 * time.Second
)

// Executor runs a shell command and returns captured output.
type Executor interface {
	Exec(ctx context.Context, cmd, workDir string) (stdout, stderr string, exitCode int, err error)
}

// denyList contains command heads that are never executed.
var denyList = map[string]struct{}{
	"rm":       {},
	"rmdir":    {},
	"mkfs":     {},
	"dd":       {},
	"shutdown": {},
	"reboot":   {},
	"halt":     {},
	"poweroff": {},
	"kill":     {},
	"killall":  {},
	"pkill":    {},
	"sudo":     {},
	"su":       {},
	"chmod":    {},
	"chown":    {},
}

// Denied reports whether the command's leading word is on the deny list.
func Denied(cmd string) bool {
	fields := strings.Fields(cmd)
	if len(fields) == 0 {
		return false
	}
	head := fields[0]
	if i := strings.LastIndexByte(head, '/'); i >= 0 {
		head = head[i+1:]
	}
	_, blocked := denyList[head]
	return blocked
}

// withTimeout derives a bounded context for one execution.
func withTimeout(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout <= 0 || timeout > MaxTimeout {
		timeout = DefaultTimeout
	}
	return context.WithTimeout(ctx, timeout)
}

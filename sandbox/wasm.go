package sandbox

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/imports/wasi_snapshot_preview1"
	"github.com/tetratelabs/wazero/sys"
)

// DefaultWasmMemoryPages caps module memory at 160 pages = 10 MB
// (one WASM page is 64 KiB).
const DefaultWasmMemoryPages = 160

// WasmExecutor runs WASI command modules. The command's first word names a
// .wasm module inside the module directory; remaining words become argv.
// The workspace directory is mounted read-write at the module's root.
type WasmExecutor struct {
	moduleDir   string
	workspace   string
	memoryPages uint32
	timeout     time.Duration
}

// WasmOptions configures a WasmExecutor.
type WasmOptions struct {
	// ModuleDir holds the invocable .wasm modules.
	ModuleDir string
	// Workspace is mounted at "/" inside the module. Optional.
	Workspace string
	// MemoryPages caps module memory. Zero means DefaultWasmMemoryPages.
	MemoryPages uint32
	// Timeout per invocation. Zero means DefaultTimeout.
	Timeout time.Duration
}

// NewWasmExecutor creates a WASI executor over the given module directory.
func NewWasmExecutor(opts WasmOptions) (*WasmExecutor, error) {
	if strings.TrimSpace(opts.ModuleDir) == "" {
		return nil, fmt.Errorf("sandbox: wasm module dir required")
	}
	abs, err := filepath.Abs(opts.ModuleDir)
	if err != nil {
		return nil, fmt.Errorf("sandbox: resolve module dir: %w", err)
	}
	pages := opts.MemoryPages
	if pages == 0 {
		pages = DefaultWasmMemoryPages
	}
	return &WasmExecutor{
		moduleDir:   abs,
		workspace:   opts.Workspace,
		memoryPages: pages,
		timeout:     opts.Timeout,
	}, nil
}

// Exec implements Executor.
func (w *WasmExecutor) Exec(ctx context.Context, cmd, workDir string) (stdout, stderr string, exitCode int, err error) {
	fields := strings.Fields(cmd)
	if len(fields) == 0 {
		return "", "", -1, fmt.Errorf("sandbox: empty wasm command")
	}

	name := fields[0]
	if !strings.HasSuffix(name, ".wasm") {
		name += ".wasm"
	}
	modulePath := filepath.Join(w.moduleDir, filepath.Base(name))
	wasmBytes, err := os.ReadFile(modulePath)
	if err != nil {
		return "", "", -1, fmt.Errorf("sandbox: read wasm module %s: %w", name, err)
	}

	ctx, cancel := withTimeout(ctx, w.timeout)
	defer cancel()

	// CloseOnContextDone turns the timeout into module termination instead
	// of a goroutine leak.
	rt := wazero.NewRuntimeWithConfig(ctx, wazero.NewRuntimeConfig().
		WithMemoryLimitPages(w.memoryPages).
		WithCloseOnContextDone(true))
	defer rt.Close(context.WithoutCancel(ctx))

	wasi_snapshot_preview1.MustInstantiate(ctx, rt)

	var outBuf, errBuf bytes.Buffer
	modCfg := wazero.NewModuleConfig().
		WithName(filepath.Base(name)).
		WithStdout(&outBuf).
		WithStderr(&errBuf).
		WithArgs(fields...)

	mount := w.workspace
	if workDir != "" {
		mount = workDir
	}
	if mount != "" {
		modCfg = modCfg.WithFSConfig(wazero.NewFSConfig().WithDirMount(mount, "/"))
	}

	// Instantiation runs the module's _start; a WASI exit surfaces as
	// sys.ExitError.
	_, runErr := rt.InstantiateWithConfig(ctx, wasmBytes, modCfg)
	if runErr != nil {
		var exitErr *sys.ExitError
		if errors.As(runErr, &exitErr) {
			return outBuf.String(), errBuf.String(), int(exitErr.ExitCode()), nil
		}
		return outBuf.String(), errBuf.String(), -1, fmt.Errorf("sandbox: run wasm module %s: %w", name, runErr)
	}
	return outBuf.String(), errBuf.String(), 0, nil
}

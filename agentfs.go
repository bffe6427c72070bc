// Package agentfs assembles the storage and tool-safety layer from a
// configuration: the shared run state, the backend tree, the tool suite,
// the eviction interceptor, and the skill and memory loaders.
//
// Mount layout: run state at "/", the confined filesystem (when
// configured) at /workspace, and the durable store (when configured) at
// /memories. With only the root mount, the composite is skipped and the
// state backend is used directly.
package agentfs

import (
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/basket/agentfs/backend"
	"github.com/basket/agentfs/config"
	"github.com/basket/agentfs/eviction"
	"github.com/basket/agentfs/kv"
	"github.com/basket/agentfs/memory"
	"github.com/basket/agentfs/sandbox"
	"github.com/basket/agentfs/skills"
	"github.com/basket/agentfs/state"
	"github.com/basket/agentfs/telemetry"
	"github.com/basket/agentfs/tools"
)

// Mount points for the assembled backend tree.
const (
	WorkspaceMount = "/workspace"
	MemoriesMount  = "/memories"
)

// Stack is the assembled layer.
type Stack struct {
	Run      *state.Run
	Backend  backend.Backend
	Tools    *tools.Suite
	Eviction *eviction.Interceptor
	Skills   *skills.Loader
	Memory   *memory.Loader

	closers []io.Closer
}

// Options configures optional Stack collaborators.
type Options struct {
	Logger  *slog.Logger
	Metrics *telemetry.Metrics
}

// New assembles a Stack from a normalized config.
func New(cfg *config.Config, opts Options) (*Stack, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	s := &Stack{Run: state.NewRun(nil)}
	mounts := map[string]backend.Backend{
		"/": backend.NewStateBackend(s.Run),
	}

	if cfg.Filesystem.Root != "" {
		fsb, err := backend.NewFilesystemBackend(backend.FilesystemOptions{
			Root:    cfg.Filesystem.Root,
			Virtual: cfg.Filesystem.Virtual,
			Logger:  logger,
		})
		if err != nil {
			return nil, s.closeAfter(fmt.Errorf("agentfs: filesystem backend: %w", err))
		}
		mounts[WorkspaceMount] = fsb
	}

	store, err := s.openStore(cfg, logger)
	if err != nil {
		return nil, s.closeAfter(err)
	}
	if store != nil {
		sb, err := backend.NewStoreBackend(store, cfg.Store.Namespace)
		if err != nil {
			return nil, s.closeAfter(fmt.Errorf("agentfs: store backend: %w", err))
		}
		mounts[MemoriesMount] = sb
	}

	runner, err := s.newExecutor(cfg)
	if err != nil {
		return nil, s.closeAfter(err)
	}
	if runner != nil {
		// The sandbox runs against the workspace; its commands reach the
		// agent through whichever mount serves "/".
		mounts["/"] = backend.WithExecutor(mounts["/"], runner, cfg.Filesystem.Root)
	}

	if len(mounts) == 1 {
		s.Backend = mounts["/"]
	} else {
		composite, err := backend.NewCompositeBackend(mounts)
		if err != nil {
			return nil, s.closeAfter(fmt.Errorf("agentfs: composite backend: %w", err))
		}
		s.Backend = composite
	}

	provider := backend.Static(s.Backend)

	s.Tools, err = tools.NewSuite(provider, s.Run, tools.SuiteOptions{
		Logger:       logger,
		Metrics:      opts.Metrics,
		MaxReadChars: cfg.Eviction.ThresholdTokens * cfg.Eviction.CharsPerToken,
	})
	if err != nil {
		return nil, s.closeAfter(err)
	}

	s.Eviction, err = eviction.New(provider, eviction.Config{
		ThresholdTokens: cfg.Eviction.ThresholdTokens,
		CharsPerToken:   cfg.Eviction.CharsPerToken,
		Head:            cfg.Eviction.Head,
		Tail:            cfg.Eviction.Tail,
		MaxLineChars:    cfg.Eviction.MaxLineChars,
		Dir:             cfg.Eviction.Dir,
	}, eviction.Options{Logger: logger, Metrics: opts.Metrics})
	if err != nil {
		return nil, s.closeAfter(err)
	}

	s.Skills, err = skills.NewLoader(provider, logger)
	if err != nil {
		return nil, s.closeAfter(err)
	}
	s.Memory, err = memory.NewLoader(provider, logger)
	if err != nil {
		return nil, s.closeAfter(err)
	}

	return s, nil
}

// Close releases the durable store and sandbox resources.
func (s *Stack) Close() error {
	var errs []error
	for _, c := range s.closers {
		if err := c.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	s.closers = nil
	return errors.Join(errs...)
}

// closeAfter releases partially-opened resources on an assembly failure.
func (s *Stack) closeAfter(err error) error {
	_ = s.Close()
	return err
}

func (s *Stack) openStore(cfg *config.Config, logger *slog.Logger) (kv.Store, error) {
	switch cfg.Store.Driver {
	case "sqlite":
		if cfg.Store.Path == "" {
			return nil, nil // no durable mount configured
		}
		store, err := kv.OpenSQLite(cfg.Store.Path, logger)
		if err != nil {
			return nil, fmt.Errorf("agentfs: open sqlite store: %w", err)
		}
		s.closers = append(s.closers, store)
		return store, nil
	case "redis":
		store, err := kv.OpenRedis(kv.RedisOptions{URL: cfg.Store.URL})
		if err != nil {
			return nil, fmt.Errorf("agentfs: open redis store: %w", err)
		}
		s.closers = append(s.closers, store)
		return store, nil
	default:
		return nil, fmt.Errorf("agentfs: unknown store driver %q", cfg.Store.Driver)
	}
}

func (s *Stack) newExecutor(cfg *config.Config) (sandbox.Executor, error) {
	switch cfg.Sandbox.Kind {
	case "", "none":
		return nil, nil
	case "host":
		return &sandbox.HostExecutor{Timeout: cfg.Sandbox.Timeout()}, nil
	case "docker":
		exec, err := sandbox.NewDockerExecutor(sandbox.DockerOptions{
			Image:       cfg.Sandbox.Image,
			MemoryMB:    cfg.Sandbox.MemoryMB,
			NetworkMode: cfg.Sandbox.Network,
			Workspace:   cfg.Filesystem.Root,
			Timeout:     cfg.Sandbox.Timeout(),
		})
		if err != nil {
			return nil, fmt.Errorf("agentfs: docker sandbox: %w", err)
		}
		s.closers = append(s.closers, exec)
		return exec, nil
	case "wasm":
		exec, err := sandbox.NewWasmExecutor(sandbox.WasmOptions{
			ModuleDir: cfg.Sandbox.ModuleDir,
			Workspace: cfg.Filesystem.Root,
			Timeout:   cfg.Sandbox.Timeout(),
		})
		if err != nil {
			return nil, fmt.Errorf("agentfs: wasm sandbox: %w", err)
		}
		return exec, nil
	default:
		return nil, fmt.Errorf("agentfs: unknown sandbox kind %q", cfg.Sandbox.Kind)
	}
}

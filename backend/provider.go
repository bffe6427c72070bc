package backend

import (
	"context"
	"fmt"
)

// Provider resolves the backend for the current execution context. A static
// backend is a provider that ignores the context and returns itself; a
// context-bound factory inspects the context (run, branch, credentials) and
// builds or selects an instance.
type Provider interface {
	Resolve(ctx context.Context) (Backend, error)
}

type staticProvider struct {
	b Backend
}

func (p staticProvider) Resolve(context.Context) (Backend, error) {
	if p.b == nil {
		return nil, fmt.Errorf("backend: no backend configured")
	}
	return p.b, nil
}

// Static wraps a fixed backend instance as a Provider.
func Static(b Backend) Provider {
	return staticProvider{b: b}
}

// ProviderFunc adapts a function to the Provider interface.
type ProviderFunc func(ctx context.Context) (Backend, error)

// Resolve implements Provider.
func (f ProviderFunc) Resolve(ctx context.Context) (Backend, error) {
	return f(ctx)
}

package handlers

import (
	"context"

	"github.com/elifarley/vandamme-proxy/pkg/providers"
	"github.com/elifarley/vandamme-proxy/pkg/usage"
)

// Dispatcher resolves provider names to ready upstream clients. The provider
// factory satisfies it; tests substitute fakes.
type Dispatcher interface {
	ClientFor(ctx context.Context, name string) (providers.Client, error)
	Registry() *providers.Registry
}

// UsageSink records completed requests. Implementations must be safe for
// concurrent use. A nil sink disables recording.
type UsageSink interface {
	Insert(ctx context.Context, rec *usage.Record) error
}

package llm

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/time/rate"
)

// Registry routes provider tags to adapter instances. Adapters are created
// lazily via the factory and cached; each cached adapter is wrapped with a
// per-provider rate limiter so one hot provider cannot exhaust the
// process's outbound budget.
type Registry struct {
	factory *Factory
	limit   rate.Limit
	burst   int

	mu    sync.RWMutex
	cache map[Provider]ChatProvider
}

// NewRegistry creates a registry over the given factory. A non-positive
// rps disables rate limiting.
func NewRegistry(factory *Factory, rps float64, burst int) *Registry {
	limit := rate.Inf
	if rps > 0 {
		limit = rate.Limit(rps)
	}
	if burst <= 0 {
		burst = 1
	}
	return &Registry{
		factory: factory,
		limit:   limit,
		burst:   burst,
		cache:   make(map[Provider]ChatProvider),
	}
}

// Get returns the adapter for a provider tag, creating and caching it on
// first use.
func (r *Registry) Get(p Provider) (ChatProvider, error) {
	// Fast path: read lock for cache hits.
	r.mu.RLock()
	if cached, ok := r.cache[p]; ok {
		r.mu.RUnlock()
		return cached, nil
	}
	r.mu.RUnlock()

	r.mu.Lock()
	defer r.mu.Unlock()

	// Another goroutine may have created the adapter while we waited.
	if cached, ok := r.cache[p]; ok {
		return cached, nil
	}

	adapter, err := r.factory.New(p)
	if err != nil {
		return nil, err
	}

	limited := &rateLimitedProvider{
		inner:   adapter,
		limiter: rate.NewLimiter(r.limit, r.burst),
	}
	r.cache[p] = limited
	return limited, nil
}

// ForModel resolves the adapter for a parsed chat model identifier.
// Image identifiers are routed to the image job manager, not here.
func (r *Registry) ForModel(id ModelID) (ChatProvider, error) {
	if id.IsImage() {
		return nil, &UnsupportedModelError{
			ModelID: id.String(),
			Reason:  fmt.Sprintf("%s is an image provider, not a chat provider", id.Provider),
		}
	}
	return r.Get(id.Provider)
}

// rateLimitedProvider delays outbound calls to honor the provider budget.
// It wraps rather than subclasses so adapters stay limiter-free.
type rateLimitedProvider struct {
	inner   ChatProvider
	limiter *rate.Limiter
}

func (p *rateLimitedProvider) Name() Provider { return p.inner.Name() }

func (p *rateLimitedProvider) Invoke(ctx context.Context, req *Request) (*Result, error) {
	if err := p.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	return p.inner.Invoke(ctx, req)
}

func (p *rateLimitedProvider) Stream(ctx context.Context, req *Request) (<-chan Chunk, error) {
	if err := p.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	return p.inner.Stream(ctx, req)
}

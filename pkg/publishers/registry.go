package publishers

import (
	"context"
	"fmt"
	"strings"
)

// Builder creates a Publisher from a config entry.
type Builder func(ctx context.Context, cfg PublisherConfig, log Logger) (Publisher, error)

// Registry maps publisher types to builders. Register everything before
// sharing a Registry between goroutines.
type Registry struct {
	builders map[string]Builder
}

// NewRegistry returns an empty Registry.
func NewRegistry() *Registry {
	return &Registry{builders: make(map[string]Builder)}
}

// DefaultRegistry knows every sink type in this package.
func DefaultRegistry() *Registry {
	return NewRegistry().
		Register(TypeHTTP, newHTTPPublisher).
		Register(TypeSQS, newSQSPublisher).
		Register(TypeSNS, newSNSPublisher).
		Register(TypePubSub, newPubSubPublisher)
}

// Register binds typ to builder and returns r for chaining. Blank types and
// nil builders are ignored.
func (r *Registry) Register(typ string, builder Builder) *Registry {
	typ = strings.ToLower(strings.TrimSpace(typ))
	if typ != "" && builder != nil {
		r.builders[typ] = builder
	}
	return r
}

// Build constructs the publisher for one config entry.
func (r *Registry) Build(ctx context.Context, cfg PublisherConfig, log Logger) (Publisher, error) {
	builder, ok := r.builders[strings.ToLower(cfg.Type)]
	if !ok {
		return nil, fmt.Errorf("publisher %q: no builder for type %q", cfg.ID, cfg.Type)
	}
	pub, err := builder(ctx, cfg, ensureLogger(log))
	if err != nil {
		return nil, fmt.Errorf("build publisher %q: %w", cfg.ID, err)
	}
	return pub, nil
}

// BuildAll builds every entry in order. On failure the publishers built so
// far are closed and nothing is returned.
func BuildAll(ctx context.Context, reg *Registry, cfgs []PublisherConfig, log Logger) ([]Publisher, error) {
	if reg == nil {
		return nil, fmt.Errorf("publisher registry is nil")
	}
	pubs := make([]Publisher, 0, len(cfgs))
	for _, cfg := range cfgs {
		pub, err := reg.Build(ctx, cfg, log)
		if err != nil {
			_ = closeAll(pubs)
			return nil, err
		}
		pubs = append(pubs, pub)
	}
	return pubs, nil
}

package authz

import (
	"context"
	"fmt"
	"time"

	lru "github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/sirupsen/logrus"
)

// ActorCache is a shared second-level cache for materialized actors
type ActorCache interface {
	Get(ctx context.Context, userID int64) (*Actor, error)
	Set(ctx context.Context, actor *Actor) error
	Delete(ctx context.Context, userID int64) error
}

// CacheObserver receives cache hit/miss notifications, typically for metrics
type CacheObserver func(layer string, hit bool)

// ProviderConfig configures the actor provider
type ProviderConfig struct {
	MaxEntries int
	TTL        time.Duration
}

// DefaultProviderConfig returns the default actor provider configuration
func DefaultProviderConfig() ProviderConfig {
	return ProviderConfig{
		MaxEntries: 10000,
		TTL:        time.Minute,
	}
}

// Provider resolves actors through an in-process LRU, an optional shared
// cache and finally the loader.
type Provider struct {
	loader  ActorLoader
	local   *lru.LRU[int64, *Actor]
	shared  ActorCache
	observe CacheObserver
	dropped func()
	log     logrus.FieldLogger
}

// ProviderOption configures a Provider
type ProviderOption func(*Provider)

// WithSharedCache adds a second-level cache shared between instances
func WithSharedCache(c ActorCache) ProviderOption {
	return func(p *Provider) { p.shared = c }
}

// WithCacheObserver registers a hit/miss callback
func WithCacheObserver(fn CacheObserver) ProviderOption {
	return func(p *Provider) { p.observe = fn }
}

// WithInvalidationObserver registers a callback run on every Invalidate
func WithInvalidationObserver(fn func()) ProviderOption {
	return func(p *Provider) { p.dropped = fn }
}

// WithProviderLogger sets the logger used for cache degradation warnings
func WithProviderLogger(l logrus.FieldLogger) ProviderOption {
	return func(p *Provider) { p.log = l }
}

// NewProvider creates an actor provider
func NewProvider(loader ActorLoader, config ProviderConfig, opts ...ProviderOption) *Provider {
	if config.MaxEntries <= 0 {
		config.MaxEntries = DefaultProviderConfig().MaxEntries
	}
	p := &Provider{
		loader:  loader,
		local:   lru.NewLRU[int64, *Actor](config.MaxEntries, nil, config.TTL),
		observe: func(string, bool) {},
		dropped: func() {},
		log:     logrus.StandardLogger(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Actor returns the actor for userID
func (p *Provider) Actor(ctx context.Context, userID int64) (*Actor, error) {
	if actor, ok := p.local.Get(userID); ok {
		p.observe("local", true)
		return actor, nil
	}
	p.observe("local", false)

	if p.shared != nil {
		actor, err := p.shared.Get(ctx, userID)
		if err != nil {
			// A broken shared cache degrades to the loader.
			p.log.WithError(err).WithField("user_id", userID).Warn("actor cache read failed")
		} else if actor != nil {
			p.observe("shared", true)
			p.local.Add(userID, actor)
			return actor, nil
		} else {
			p.observe("shared", false)
		}
	}

	actor, err := p.loader.LoadActor(ctx, userID)
	if err != nil {
		return nil, err
	}

	p.local.Add(userID, actor)
	if p.shared != nil {
		if err := p.shared.Set(ctx, actor); err != nil {
			p.log.WithError(err).WithField("user_id", userID).Warn("actor cache write failed")
		}
	}
	return actor, nil
}

// Invalidate drops the cached actor after a role or team change
func (p *Provider) Invalidate(ctx context.Context, userID int64) error {
	p.dropped()
	p.local.Remove(userID)
	if p.shared != nil {
		if err := p.shared.Delete(ctx, userID); err != nil {
			return fmt.Errorf("failed to invalidate actor %d: %w", userID, err)
		}
	}
	return nil
}

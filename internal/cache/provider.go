package cache

import (
	"context"

	"github.com/jinkaiteo/edms/internal/identity"
	"github.com/jinkaiteo/edms/internal/metrics"
	"github.com/sirupsen/logrus"
)

var _ identity.Provider = (*CachedProvider)(nil)

// CachedProvider answers capability lookups from the cache and falls back to
// the wrapped provider. Cache failures never fail a lookup.
type CachedProvider struct {
	inner identity.Provider
	cache CapabilityCache
}

func NewCachedProvider(inner identity.Provider, cache CapabilityCache) *CachedProvider {
	return &CachedProvider{inner: inner, cache: cache}
}

func (c *CachedProvider) Capabilities(ctx context.Context, userID string) (identity.Capabilities, error) {
	cached, err := c.cache.GetCapabilities(ctx, userID)
	if err != nil {
		logrus.WithError(err).WithField("user", userID).Warn("capability cache read failed")
	}
	if cached != nil {
		metrics.CapabilityCacheLookups.WithLabelValues("hit").Inc()
		return *cached, nil
	}
	metrics.CapabilityCacheLookups.WithLabelValues("miss").Inc()

	caps, err := c.inner.Capabilities(ctx, userID)
	if err != nil {
		return identity.Capabilities{}, err
	}

	if err := c.cache.SetCapabilities(ctx, caps); err != nil {
		logrus.WithError(err).WithField("user", userID).Warn("capability cache write failed")
	}

	return caps, nil
}

// Invalidate forgets a user so the next lookup reaches the wrapped provider.
func (c *CachedProvider) Invalidate(ctx context.Context, userID string) error {
	return c.cache.Invalidate(ctx, userID)
}

package account

import (
	"context"
	"time"

	"github.com/bornholm/parcel/internal/metrics"
	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/pkg/errors"
)

const (
	DefaultEmailCacheSize = 1000
	DefaultEmailCacheTTL  = 10 * time.Minute
)

// EmailCache answers user-id to email lookups from a bounded,
// time-expiring in-process cache. Emails are display data only, so the
// staleness window of one TTL is acceptable.
type EmailCache struct {
	resolver *Resolver
	cache    *expirable.LRU[string, string]
	metrics  *metrics.Collector
}

func NewEmailCache(resolver *Resolver, size int, ttl time.Duration, collector *metrics.Collector) *EmailCache {
	if size <= 0 {
		size = DefaultEmailCacheSize
	}

	if ttl <= 0 {
		ttl = DefaultEmailCacheTTL
	}

	return &EmailCache{
		resolver: resolver,
		cache:    expirable.NewLRU[string, string](size, nil, ttl),
		metrics:  collector,
	}
}

// Get returns the user's email, or "" when the user does not exist.
// Missing users are never cached so they are re-checked on each call.
func (c *EmailCache) Get(ctx context.Context, userID string) (string, error) {
	if email, ok := c.cache.Get(userID); ok {
		c.metrics.RecordCacheLookup("hit")
		return email, nil
	}

	c.metrics.RecordCacheLookup("miss")

	user, err := c.resolver.LookupByID(ctx, userID)
	if err != nil {
		return "", errors.WithStack(err)
	}

	if user == nil {
		return "", nil
	}

	c.cache.Add(userID, user.Email)

	return user.Email, nil
}

// GetMany preserves request order, with "" for missing users. Repeat
// traffic is absorbed by the cache, so repeated single lookups are
// good enough.
func (c *EmailCache) GetMany(ctx context.Context, userIDs []string) ([]string, error) {
	emails := make([]string, len(userIDs))

	for i, id := range userIDs {
		email, err := c.Get(ctx, id)
		if err != nil {
			return nil, errors.WithStack(err)
		}

		emails[i] = email
	}

	return emails, nil
}

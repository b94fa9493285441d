package models

import (
	"context"
	"time"

	"spendplan/internal/cache"
	"spendplan/internal/log"
	"spendplan/internal/tsmodel"
)

var _ Store = (*CachedStore)(nil)

// CachedStore keeps decoded artifacts in LRU caches in front of a slower
// backend. Misses are not cached so a freshly trained model shows up on the
// next read.
type CachedStore struct {
	Store
	seasonal *cache.LRUCache[*tsmodel.SeasonalArtifact]
	sequence *cache.LRUCache[*tsmodel.SequenceArtifact]
	logger   *log.Logger
}

func NewCachedStore(inner Store, size int, ttl time.Duration, logger *log.Logger) *CachedStore {
	if logger == nil {
		logger = log.Discard()
	}
	return &CachedStore{
		Store:    inner,
		seasonal: cache.NewLRUCache[*tsmodel.SeasonalArtifact](size, ttl),
		sequence: cache.NewLRUCache[*tsmodel.SequenceArtifact](size, ttl),
		logger:   logger.WithComponent(log.ComponentModels),
	}
}

// Register adds the artifact caches to a cleanup manager.
func (c *CachedStore) Register(m *cache.Manager) {
	m.Register(c.seasonal)
	m.Register(c.sequence)
}

func cacheKey(userID, category string) string {
	return userID + "|" + category
}

func (c *CachedStore) LoadSeasonal(ctx context.Context, userID, category string) (*tsmodel.SeasonalArtifact, error) {
	key := cacheKey(userID, category)
	if a, ok := c.seasonal.Get(key); ok {
		return a, nil
	}
	a, err := c.Store.LoadSeasonal(ctx, userID, category)
	if err != nil {
		return nil, err
	}
	c.seasonal.Set(key, a)
	return a, nil
}

func (c *CachedStore) LoadSequence(ctx context.Context, userID, category string) (*tsmodel.SequenceArtifact, error) {
	key := cacheKey(userID, category)
	if a, ok := c.sequence.Get(key); ok {
		return a, nil
	}
	a, err := c.Store.LoadSequence(ctx, userID, category)
	if err != nil {
		return nil, err
	}
	c.sequence.Set(key, a)
	return a, nil
}

func (c *CachedStore) SaveSeasonal(ctx context.Context, userID, category string, a *tsmodel.SeasonalArtifact) error {
	if err := c.Store.SaveSeasonal(ctx, userID, category, a); err != nil {
		return err
	}
	c.seasonal.Delete(cacheKey(userID, category))
	return nil
}

func (c *CachedStore) SaveSequence(ctx context.Context, userID, category string, a *tsmodel.SequenceArtifact) error {
	if err := c.Store.SaveSequence(ctx, userID, category, a); err != nil {
		return err
	}
	c.sequence.Delete(cacheKey(userID, category))
	return nil
}

// MarkTrained drops every cached artifact of the user.
func (c *CachedStore) MarkTrained(ctx context.Context, userID string, at time.Time) error {
	if err := c.Store.MarkTrained(ctx, userID, at); err != nil {
		return err
	}
	n := c.seasonal.DeletePrefix(userID+"|") + c.sequence.DeletePrefix(userID+"|")
	if n > 0 {
		c.logger.Debug("Invalidated cached models", log.FieldUserID, userID, "count", n)
	}
	return nil
}

package sqlstore

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	repositorycache "github.com/goliatone/go-repository-cache/cache"
	"github.com/shopspring/decimal"

	"github.com/MrWiki15/server-party-polaris/core"
)

const eventCacheKeyPrefix = "server-party-polaris::event::v1"

// CachedEventStore caches event reads. Every wallet, token or settlement
// write goes to the base store first and then drops the cached row, so a
// stale read can never hide a provisioned wallet from the idempotency guard.
type CachedEventStore struct {
	base  core.EventStore
	cache repositorycache.CacheService
}

func NewCachedEventStore(base core.EventStore, cacheService repositorycache.CacheService) (*CachedEventStore, error) {
	if base == nil {
		return nil, fmt.Errorf("sqlstore: base event store is required")
	}
	if cacheService == nil {
		return nil, fmt.Errorf("sqlstore: event cache service is required")
	}
	return &CachedEventStore{base: base, cache: cacheService}, nil
}

// EventCacheKey returns the deterministic cache key for an event read:
// server-party-polaris::event::v1::<event_id> with the id URL-path escaped.
func EventCacheKey(eventID string) (string, error) {
	trimmed := strings.TrimSpace(eventID)
	if trimmed == "" {
		return "", fmt.Errorf("sqlstore: event id is required")
	}
	return eventCacheKeyPrefix + "::" + url.PathEscape(trimmed), nil
}

func (s *CachedEventStore) Get(ctx context.Context, eventID string) (core.Event, error) {
	if s == nil || s.base == nil || s.cache == nil {
		return core.Event{}, fmt.Errorf("sqlstore: cached event store is not configured")
	}
	cacheKey, err := EventCacheKey(eventID)
	if err != nil {
		return core.Event{}, err
	}
	return repositorycache.GetOrFetch(ctx, s.cache, cacheKey, func(ctx context.Context) (core.Event, error) {
		return s.base.Get(ctx, eventID)
	})
}

func (s *CachedEventStore) AttachWallet(ctx context.Context, eventID string, accountID string, treasuryKey core.EncryptedSecret) error {
	if s == nil || s.base == nil || s.cache == nil {
		return fmt.Errorf("sqlstore: cached event store is not configured")
	}
	if err := s.base.AttachWallet(ctx, eventID, accountID, treasuryKey); err != nil {
		return err
	}
	return s.invalidate(ctx, eventID)
}

func (s *CachedEventStore) AttachToken(ctx context.Context, eventID string, grant core.TokenGrant) error {
	if s == nil || s.base == nil || s.cache == nil {
		return fmt.Errorf("sqlstore: cached event store is not configured")
	}
	if err := s.base.AttachToken(ctx, eventID, grant); err != nil {
		return err
	}
	return s.invalidate(ctx, eventID)
}

func (s *CachedEventStore) ApplySettlement(ctx context.Context, eventID string, amount decimal.Decimal) error {
	if s == nil || s.base == nil || s.cache == nil {
		return fmt.Errorf("sqlstore: cached event store is not configured")
	}
	if err := s.base.ApplySettlement(ctx, eventID, amount); err != nil {
		return err
	}
	return s.invalidate(ctx, eventID)
}

func (s *CachedEventStore) invalidate(ctx context.Context, eventID string) error {
	cacheKey, err := EventCacheKey(eventID)
	if err != nil {
		return err
	}
	return s.cache.Delete(ctx, cacheKey)
}

var _ core.EventStore = (*CachedEventStore)(nil)

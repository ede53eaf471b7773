// Package cache holds short-lived lookups for expensive aggregate queries.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/spec-kit/supportdesk/internal/domain"
)

// ErrMiss is returned when no entry exists for the key.
var ErrMiss = errors.New("cache miss")

// TicketCounts caches per-assignee ticket counts.
type TicketCounts interface {
	Get(ctx context.Context, assigneeID int64) (domain.TicketCounts, error)
	Set(ctx context.Context, assigneeID int64, counts domain.TicketCounts) error
	// Invalidate deletes the keys of exactly the given principals.
	Invalidate(ctx context.Context, principalIDs ...int64) error
}

// CountsKey returns the cache key for an assignee's counts.
func CountsKey(assigneeID int64) string {
	return fmt.Sprintf("ticket_counts:assignee:%d", assigneeID)
}

type redisCounts struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisTicketCounts returns a Redis-backed counts cache.
func NewRedisTicketCounts(client *redis.Client, ttl time.Duration) TicketCounts {
	return &redisCounts{client: client, ttl: ttl}
}

func (c *redisCounts) Get(ctx context.Context, assigneeID int64) (domain.TicketCounts, error) {
	var counts domain.TicketCounts
	raw, err := c.client.Get(ctx, CountsKey(assigneeID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return counts, ErrMiss
		}
		return counts, err
	}
	if err := json.Unmarshal(raw, &counts); err != nil {
		return counts, err
	}
	return counts, nil
}

func (c *redisCounts) Set(ctx context.Context, assigneeID int64, counts domain.TicketCounts) error {
	raw, err := json.Marshal(counts)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, CountsKey(assigneeID), raw, c.ttl).Err()
}

func (c *redisCounts) Invalidate(ctx context.Context, principalIDs ...int64) error {
	keys := make([]string, 0, len(principalIDs))
	seen := make(map[int64]struct{}, len(principalIDs))
	for _, id := range principalIDs {
		if id == domain.AnonymousPrincipalID {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		keys = append(keys, CountsKey(id))
	}
	if len(keys) == 0 {
		return nil
	}
	return c.client.Del(ctx, keys...).Err()
}

// Nop never stores anything. Used when Redis is not configured.
type Nop struct{}

func (Nop) Get(context.Context, int64) (domain.TicketCounts, error) {
	return domain.TicketCounts{}, ErrMiss
}

func (Nop) Set(context.Context, int64, domain.TicketCounts) error { return nil }

func (Nop) Invalidate(context.Context, ...int64) error { return nil }

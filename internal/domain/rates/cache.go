package rates

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"
)

const cacheKeyPrefix = "rates:table:"

// Cache decorates a Provider with a Redis-backed cache. Entries expire after
// ttl and are dropped wholesale by Invalidate. A nil client passes every
// lookup straight to the wrapped provider.
type Cache struct {
	client *redis.Client
	next   Provider
	ttl    time.Duration
	group  singleflight.Group
}

func NewCache(client *redis.Client, next Provider, ttl time.Duration) *Cache {
	return &Cache{client: client, next: next, ttl: ttl}
}

// RatesFor caches by calendar month: every table is effective from a date,
// and payroll only ever asks for the last day of a period month.
func (c *Cache) RatesFor(ctx context.Context, asOf time.Time) (Table, error) {
	if c.next == nil {
		return Table{}, errors.New("rates: cache has no backing provider")
	}
	if c.client == nil {
		return c.next.RatesFor(ctx, asOf)
	}
	key := cacheKeyPrefix + asOf.Format("2006-01-02")
	payload, err := c.client.Get(ctx, key).Bytes()
	if err == nil {
		var table Table
		if err := json.Unmarshal(payload, &table); err == nil {
			return table, nil
		}
	} else if !errors.Is(err, redis.Nil) {
		return Table{}, err
	}

	value, err, _ := c.group.Do(key, func() (interface{}, error) {
		table, err := c.next.RatesFor(ctx, asOf)
		if err != nil {
			return Table{}, err
		}
		raw, err := json.Marshal(table)
		if err != nil {
			return Table{}, err
		}
		if err := c.client.Set(ctx, key, raw, c.ttl).Err(); err != nil {
			return Table{}, err
		}
		return table, nil
	})
	if err != nil {
		return Table{}, err
	}
	return value.(Table), nil
}

// Invalidate drops every cached table, e.g. after a rate file reload.
func (c *Cache) Invalidate(ctx context.Context) error {
	if c.client == nil {
		return nil
	}
	iter := c.client.Scan(ctx, 0, cacheKeyPrefix+"*", 100).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return err
	}
	if len(keys) == 0 {
		return nil
	}
	return c.client.Del(ctx, keys...).Err()
}

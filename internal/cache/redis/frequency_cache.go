package redis

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/alanyoungcy/lotoqubo/internal/domain"
)

const (
	drawCountField = "_draws"
	latestField    = "_latest"
)

// FrequencyCache implements domain.FrequencyCache as a Redis hash of
// number -> count plus the stamp of the draw set it was derived from.
type FrequencyCache struct {
	c   *Client
	ttl time.Duration
}

// NewFrequencyCache creates a FrequencyCache. A zero ttl keeps entries until
// invalidated.
func NewFrequencyCache(c *Client, ttl time.Duration) *FrequencyCache {
	return &FrequencyCache{c: c, ttl: ttl}
}

func (fc *FrequencyCache) hashKey() string {
	return fc.c.key("frequency")
}

// Set replaces the cached table atomically.
func (fc *FrequencyCache) Set(ctx context.Context, freq domain.FrequencyTable, stamp domain.FrequencyStamp) error {
	values := make(map[string]any, len(freq)+2)
	for n, count := range freq {
		values[strconv.Itoa(n)] = count
	}
	values[drawCountField] = stamp.Draws
	values[latestField] = stamp.Latest

	key := fc.hashKey()
	pipe := fc.c.rdb.TxPipeline()
	pipe.Del(ctx, key)
	pipe.HSet(ctx, key, values)
	if fc.ttl > 0 {
		pipe.Expire(ctx, key, fc.ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis: set frequency table: %w", err)
	}
	return nil
}

// Get returns the cached table and its stamp, or domain.ErrNotFound.
func (fc *FrequencyCache) Get(ctx context.Context) (domain.FrequencyTable, domain.FrequencyStamp, error) {
	raw, err := fc.c.rdb.HGetAll(ctx, fc.hashKey()).Result()
	if errors.Is(err, redis.Nil) || (err == nil && len(raw) == 0) {
		return nil, domain.FrequencyStamp{}, domain.ErrNotFound
	}
	if err != nil {
		return nil, domain.FrequencyStamp{}, fmt.Errorf("redis: get frequency table: %w", err)
	}
	return decodeFrequency(raw)
}

// Invalidate drops the cached table.
func (fc *FrequencyCache) Invalidate(ctx context.Context) error {
	if err := fc.c.rdb.Del(ctx, fc.hashKey()).Err(); err != nil {
		return fmt.Errorf("redis: invalidate frequency table: %w", err)
	}
	return nil
}

func decodeFrequency(raw map[string]string) (domain.FrequencyTable, domain.FrequencyStamp, error) {
	freq := make(domain.FrequencyTable, len(raw))
	var stamp domain.FrequencyStamp
	for field, v := range raw {
		count, err := strconv.Atoi(v)
		if err != nil {
			return nil, domain.FrequencyStamp{}, fmt.Errorf("redis: decode frequency %s=%q: %w", field, v, err)
		}
		switch field {
		case drawCountField:
			stamp.Draws = count
			continue
		case latestField:
			stamp.Latest = count
			continue
		}
		n, err := strconv.Atoi(field)
		if err != nil || n < domain.MinNumber || n > domain.MaxNumber {
			return nil, domain.FrequencyStamp{}, fmt.Errorf("redis: decode frequency: bad number field %q", field)
		}
		freq[n] = count
	}
	return freq, stamp, nil
}

var _ domain.FrequencyCache = (*FrequencyCache)(nil)

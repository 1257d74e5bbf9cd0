package domain

import (
	"context"
	"time"
)

// FrequencyStamp identifies the draw set a cached frequency table was built
// from: how many draws and the highest contest number among them.
type FrequencyStamp struct {
	Draws  int
	Latest int
}

// StampOf returns the stamp for draws.
func StampOf(draws []Draw) FrequencyStamp {
	st := FrequencyStamp{Draws: len(draws)}
	for _, d := range draws {
		if d.Contest > st.Latest {
			st.Latest = d.Contest
		}
	}
	return st
}

// FrequencyCache holds the frequency table derived from the current draw set.
type FrequencyCache interface {
	Set(ctx context.Context, freq FrequencyTable, stamp FrequencyStamp) error
	Get(ctx context.Context) (FrequencyTable, FrequencyStamp, error)
	Invalidate(ctx context.Context) error
}

// RateLimiter provides distributed rate limiting.
type RateLimiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}

// LockManager provides distributed locking.
type LockManager interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (unlock func(), err error)
}

// SignalBus provides pub/sub for run events.
type SignalBus interface {
	Publish(ctx context.Context, channel string, payload []byte) error
	Subscribe(ctx context.Context, channel string) (<-chan []byte, error)
}

// Bus channels.
const (
	ChannelPortfolio = "lotoqubo:portfolio"
	ChannelDraws     = "lotoqubo:draws"
)

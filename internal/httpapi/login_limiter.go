package httpapi

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/ulule/limiter/v3"
	"github.com/ulule/limiter/v3/drivers/store/memory"
	sredis "github.com/ulule/limiter/v3/drivers/store/redis"
)

// FloodLimiter caps raw login request volume per address and per login name.
// It runs before the login pipeline and is independent of the failed-attempt
// lockout.
type FloodLimiter struct {
	instance *limiter.Limiter
}

// NewFloodLimiter builds an in-process limiter. rateFormatted uses the
// "<limit>-<period>" form, e.g. "30-M". An empty rate disables limiting.
func NewFloodLimiter(rateFormatted string) (*FloodLimiter, error) {
	if rateFormatted == "" {
		return nil, nil
	}
	rate, err := limiter.NewRateFromFormatted(rateFormatted)
	if err != nil {
		return nil, fmt.Errorf("login rate: %w", err)
	}
	return &FloodLimiter{instance: limiter.New(memory.NewStore(), rate)}, nil
}

// NewRedisFloodLimiter shares counters across server instances through Redis.
func NewRedisFloodLimiter(rateFormatted string, client redis.UniversalClient) (*FloodLimiter, error) {
	if rateFormatted == "" {
		return nil, nil
	}
	rate, err := limiter.NewRateFromFormatted(rateFormatted)
	if err != nil {
		return nil, fmt.Errorf("login rate: %w", err)
	}
	store, err := sredis.NewStoreWithOptions(client, limiter.StoreOptions{Prefix: "loginguard_flood"})
	if err != nil {
		return nil, fmt.Errorf("login rate store: %w", err)
	}
	return &FloodLimiter{instance: limiter.New(store, rate)}, nil
}

// Allow counts one request for every key. It returns false with the wait until
// the window resets when any key is over its limit. Store errors allow the
// request.
func (f *FloodLimiter) Allow(ctx context.Context, now time.Time, keys ...string) (bool, time.Duration) {
	if f == nil {
		return true, 0
	}
	for _, key := range keys {
		lc, err := f.instance.Increment(ctx, key, 1)
		if err != nil {
			continue
		}
		if lc.Reached {
			wait := time.Unix(lc.Reset, 0).Sub(now)
			if wait < time.Second {
				wait = time.Second
			}
			return false, wait
		}
	}
	return true, 0
}

func retryAfterSeconds(d time.Duration) string {
	return strconv.Itoa(int((d + time.Second - 1) / time.Second))
}

// Package leaselock enforces spec.md §5's single-writer assumption
// ("exactly one scheduler instance is active") as defense-in-depth, not a
// substitute for the single-process deployment assumption. Grounded on the
// teacher's go-redis usage in realtime/bus/redis_bus.go, repurposed here
// from pub/sub event forwarding (which spec.md §4.7/§9 forbid) to a simple
// SET NX PX lease.
package leaselock

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/flowmium-io/flowmium/internal/platform/logger"
)

type Lock struct {
	client *redis.Client
	key    string
	owner  string
	ttl    time.Duration
	log    *logger.Logger
}

func New(redisURL, key, owner string, ttl time.Duration, log *logger.Logger) (*Lock, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, err
	}
	return &Lock{
		client: redis.NewClient(opts),
		key:    key,
		owner:  owner,
		ttl:    ttl,
		log:    log.With("component", "SchedulerLeaseLock"),
	}, nil
}

// Acquire returns true if this process now holds (or still holds) the
// lease. Renewal extends the TTL so a live scheduler never loses the lease
// mid-tick; an unreachable Redis fails open (logs and returns true) so a
// single-instance deployment without Redis configured still runs.
func (l *Lock) Acquire(ctx context.Context) bool {
	if l == nil {
		return true
	}
	ok, err := l.client.SetNX(ctx, l.key, l.owner, l.ttl).Result()
	if err != nil {
		l.log.Warn("lease lock unreachable; proceeding without coordination", "error", err)
		return true
	}
	if ok {
		return true
	}
	// Already held — renew only if we're the owner.
	holder, err := l.client.Get(ctx, l.key).Result()
	if err != nil {
		return false
	}
	if holder != l.owner {
		return false
	}
	_ = l.client.Expire(ctx, l.key, l.ttl).Err()
	return true
}

func (l *Lock) Release(ctx context.Context) {
	if l == nil {
		return
	}
	holder, err := l.client.Get(ctx, l.key).Result()
	if err != nil {
		return
	}
	if holder == l.owner {
		_ = l.client.Del(ctx, l.key).Err()
	}
}

func (l *Lock) Close() error {
	if l == nil {
		return nil
	}
	return l.client.Close()
}

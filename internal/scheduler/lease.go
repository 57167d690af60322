package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const purgeLeaseKey = "ums:lock:withdraw-purge"

var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

var renewScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("PEXPIRE", KEYS[1], ARGV[2])
end
return 0
`)

// Lease is a single-holder Redis lock with an expiry, so a crashed holder
// cannot block later runs forever.
type Lease struct {
	client redis.UniversalClient
	key    string
	ttl    time.Duration
}

func NewLease(client redis.UniversalClient, key string, ttl time.Duration) *Lease {
	if key == "" {
		key = purgeLeaseKey
	}
	return &Lease{client: client, key: key, ttl: ttl}
}

// Acquire takes the lease. ok is false when someone else holds it. The
// expiry is pushed forward every third of the ttl until release is called or
// ctx is done, so a long run keeps the lease. The returned release only
// deletes the key while this holder still owns it.
func (l *Lease) Acquire(ctx context.Context) (release func(context.Context) error, ok bool, err error) {
	token := uuid.NewString()
	ok, err = l.client.SetNX(ctx, l.key, token, l.ttl).Result()
	if err != nil {
		return nil, false, fmt.Errorf("acquire lease %s: %w", l.key, err)
	}
	if !ok {
		return nil, false, nil
	}

	stop := make(chan struct{})
	var stopOnce sync.Once
	if l.ttl > 0 {
		go l.renew(ctx, token, stop)
	}

	release = func(ctx context.Context) error {
		stopOnce.Do(func() { close(stop) })
		if err := releaseScript.Run(ctx, l.client, []string{l.key}, token).Err(); err != nil {
			return fmt.Errorf("release lease %s: %w", l.key, err)
		}
		return nil
	}
	return release, true, nil
}

func (l *Lease) renew(ctx context.Context, token string, stop <-chan struct{}) {
	ticker := time.NewTicker(l.ttl / 3)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			owned, err := renewScript.Run(ctx, l.client, []string{l.key}, token, l.ttl.Milliseconds()).Int64()
			if err == nil && owned == 0 {
				return
			}
		}
	}
}

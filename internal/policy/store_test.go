package policy

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"ums_backend/platform/apperr"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

type fakeSource struct {
	values map[Key]string
	calls  atomic.Int32
	delay  time.Duration
}

func (f *fakeSource) GetByKey(_ context.Context, key Key) (Policy, error) {
	f.calls.Add(1)
	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	v, ok := f.values[key]
	if !ok {
		return Policy{}, apperr.NotFound("policy not found")
	}
	return Policy{Key: key, Value: v}, nil
}

func newTestRedis(t *testing.T) (*redis.Client, *miniredis.Miniredis) {
	t.Helper()

	server, err := miniredis.Run()
	if err != nil {
		t.Fatalf("failed to start miniredis: %v", err)
	}

	client := redis.NewClient(&redis.Options{Addr: server.Addr()})

	t.Cleanup(func() {
		_ = client.Close()
		server.Close()
	})

	return client, server
}

func TestStoreCachesValuesWithTTL(t *testing.T) {
	client, server := newTestRedis(t)
	src := &fakeSource{values: map[Key]string{KeyUserPurgeCutoffDays: "7"}}
	store := NewStore(src, client, time.Minute, nil)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		days, err := store.GetInt(ctx, KeyUserPurgeCutoffDays)
		if err != nil {
			t.Fatalf("GetInt returned error: %v", err)
		}
		if days != 7 {
			t.Fatalf("expected 7, got %d", days)
		}
	}

	if got := src.calls.Load(); got != 1 {
		t.Fatalf("expected one repository read, got %d", got)
	}
	if ttl := server.TTL("policy:user_purge_cutoff_days"); ttl <= 0 || ttl > time.Minute {
		t.Fatalf("expected ttl within (0, 1m], got %v", ttl)
	}

	server.FastForward(2 * time.Minute)
	if _, err := store.GetByKey(ctx, KeyUserPurgeCutoffDays); err != nil {
		t.Fatalf("GetByKey returned error: %v", err)
	}
	if got := src.calls.Load(); got != 2 {
		t.Fatalf("expected refresh after expiry, got %d reads", got)
	}
}

func TestStoreCollapsesConcurrentMisses(t *testing.T) {
	src := &fakeSource{values: map[Key]string{KeyUserRegisterBaseGroup: "USER"}, delay: 50 * time.Millisecond}
	store := NewStore(src, nil, time.Minute, nil)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := store.GetByKey(context.Background(), KeyUserRegisterBaseGroup); err != nil {
				t.Errorf("GetByKey returned error: %v", err)
			}
		}()
	}
	wg.Wait()

	if got := src.calls.Load(); got != 1 {
		t.Fatalf("expected concurrent misses to share one read, got %d", got)
	}
}

func TestStoreMissingKeyIsNotFound(t *testing.T) {
	client, _ := newTestRedis(t)
	store := NewStore(&fakeSource{values: map[Key]string{}}, client, time.Minute, nil)

	_, err := store.GetByKey(context.Background(), KeyUserPurgeCutoffDays)
	if !apperr.Is(err, apperr.KindNotFound) {
		t.Fatalf("expected NotFound, got %v", err)
	}
}

func TestStoreFallsBackWhenRedisIsDown(t *testing.T) {
	server, err := miniredis.Run()
	if err != nil {
		t.Fatalf("failed to start miniredis: %v", err)
	}
	client := redis.NewClient(&redis.Options{Addr: server.Addr(), MaxRetries: -1})
	defer client.Close()
	server.Close()

	src := &fakeSource{values: map[Key]string{KeyUserPurgeCutoffDays: "30"}}
	store := NewStore(src, client, time.Minute, nil)

	value, err := store.GetByKey(context.Background(), KeyUserPurgeCutoffDays)
	if err != nil {
		t.Fatalf("expected fallback read, got %v", err)
	}
	if value != "30" {
		t.Fatalf("expected 30, got %s", value)
	}
}

func TestStoreGetIntRejectsNonInteger(t *testing.T) {
	store := NewStore(&fakeSource{values: map[Key]string{KeyUserPurgeCutoffDays: "soon"}}, nil, 0, nil)

	_, err := store.GetInt(context.Background(), KeyUserPurgeCutoffDays)
	if !apperr.Is(err, apperr.KindInternal) {
		t.Fatalf("expected Internal, got %v", err)
	}
}

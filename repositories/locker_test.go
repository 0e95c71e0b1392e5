package repositories_test

import (
	"context"
	"os"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/rmhse/rmhse_backend/repositories"
	"github.com/rmhse/rmhse_backend/services"
)

func exerciseLocker(t *testing.T, locker services.Locker, key string) {
	t.Helper()
	var (
		wg      sync.WaitGroup
		holders int32
		maxSeen int32
	)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			unlock, err := locker.Lock(ctx, key, 5*time.Second)
			if err != nil {
				t.Errorf("Lock: %v", err)
				return
			}
			n := atomic.AddInt32(&holders, 1)
			for {
				seen := atomic.LoadInt32(&maxSeen)
				if n <= seen || atomic.CompareAndSwapInt32(&maxSeen, seen, n) {
					break
				}
			}
			time.Sleep(5 * time.Millisecond)
			atomic.AddInt32(&holders, -1)
			unlock()
		}()
	}
	wg.Wait()
	if maxSeen != 1 {
		t.Errorf("%d holders at once, want 1", maxSeen)
	}
}

func TestLocalLocker_MutualExclusion(t *testing.T) {
	exerciseLocker(t, repositories.NewLocalLocker(), "upgrade:referrer-tier:DIST")
}

func TestLocalLocker_ContextCancel(t *testing.T) {
	locker := repositories.NewLocalLocker()
	unlock, err := locker.Lock(context.Background(), "k", time.Second)
	if err != nil {
		t.Fatal(err)
	}
	defer unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if _, err := locker.Lock(ctx, "k", time.Second); err == nil {
		t.Fatal("second Lock succeeded while the key was held")
	}

	// other keys are independent
	other, err := locker.Lock(context.Background(), "other", time.Second)
	if err != nil {
		t.Fatalf("Lock(other): %v", err)
	}
	other()
}

func TestLocalLocker_UnlockTwiceIsHarmless(t *testing.T) {
	locker := repositories.NewLocalLocker()
	unlock, _ := locker.Lock(context.Background(), "k", time.Second)
	unlock()
	unlock()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	again, err := locker.Lock(ctx, "k", time.Second)
	if err != nil {
		t.Fatalf("relock: %v", err)
	}
	again()
}

func TestRedisLocker_MutualExclusion(t *testing.T) {
	addr := os.Getenv("TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("TEST_REDIS_ADDR not set")
	}
	client := redis.NewClient(&redis.Options{Addr: addr})
	defer client.Close()
	if err := client.Ping(context.Background()).Err(); err != nil {
		t.Skipf("redis unreachable: %v", err)
	}

	exerciseLocker(t, repositories.NewRedisLocker(client, nil), "test:"+time.Now().Format(time.RFC3339Nano))
}

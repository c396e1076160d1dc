package teamlock

import (
	"context"
	"errors"
	"os"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	redis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestLocalLockerSerializesSameTeam(t *testing.T) {
	locker := NewLocalLocker(Config{Wait: time.Second})
	teamID := snowflake.ID(42)

	var inside, maxInside int32
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock, err := locker.Lock(context.Background(), teamID)
			if err != nil {
				t.Errorf("lock: %v", err)
				return
			}
			n := atomic.AddInt32(&inside, 1)
			for {
				m := atomic.LoadInt32(&maxInside)
				if n <= m || atomic.CompareAndSwapInt32(&maxInside, m, n) {
					break
				}
			}
			time.Sleep(time.Millisecond)
			atomic.AddInt32(&inside, -1)
			unlock()
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), maxInside)
	assert.Empty(t, locker.slots, "slots should be released")
}

func TestLocalLockerDifferentTeamsDoNotBlock(t *testing.T) {
	locker := NewLocalLocker(Config{Wait: 50 * time.Millisecond})

	unlockA, err := locker.Lock(context.Background(), 1)
	require.NoError(t, err)
	defer unlockA()

	unlockB, err := locker.Lock(context.Background(), 2)
	require.NoError(t, err)
	unlockB()
}

func TestLocalLockerTimeout(t *testing.T) {
	locker := NewLocalLocker(Config{Wait: 20 * time.Millisecond})

	unlock, err := locker.Lock(context.Background(), 7)
	require.NoError(t, err)

	_, err = locker.Lock(context.Background(), 7)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrLockTimeout))

	unlock()
	unlock() // idempotent

	again, err := locker.Lock(context.Background(), 7)
	require.NoError(t, err)
	again()
}

func TestRedisLocker(t *testing.T) {
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		t.Skip("REDIS_ADDR not set")
	}
	client := redis.NewClient(&redis.Options{Addr: addr})
	t.Cleanup(func() { _ = client.Close() })

	locker := NewRedisLocker(client, Config{TTL: time.Second, Wait: 100 * time.Millisecond}, zap.NewNop())
	teamID := snowflake.ID(time.Now().UnixNano())

	unlock, err := locker.Lock(context.Background(), teamID)
	require.NoError(t, err)

	_, err = locker.Lock(context.Background(), teamID)
	assert.True(t, errors.Is(err, ErrLockTimeout))

	unlock()
	unlock2, err := locker.Lock(context.Background(), teamID)
	require.NoError(t, err)
	unlock2()
}

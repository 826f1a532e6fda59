package lock

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	_ Locker = (*Memory)(nil)
	_ Locker = (*Redis)(nil)
)

func TestMemory_Exclusive(t *testing.T) {
	l := NewMemory()
	ctx := context.Background()

	release, err := l.Acquire(ctx, time.Second)
	require.NoError(t, err)

	_, err = l.Acquire(ctx, 20*time.Millisecond)
	assert.ErrorIs(t, err, ErrTimeout)

	_, err = l.Acquire(ctx, 0)
	assert.ErrorIs(t, err, ErrTimeout)

	release()
	release() // second call is a no-op

	again, err := l.Acquire(ctx, 0)
	require.NoError(t, err)
	again()
}

func TestMemory_ContextCancel(t *testing.T) {
	l := NewMemory()
	release, err := l.Acquire(context.Background(), time.Second)
	require.NoError(t, err)
	defer release()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = l.Acquire(ctx, time.Second)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestMemory_SerializesHolders(t *testing.T) {
	l := NewMemory()
	var inside, maxInside int32
	var wg sync.WaitGroup

	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			release, err := l.Acquire(context.Background(), 5*time.Second)
			if err != nil {
				return
			}
			n := atomic.AddInt32(&inside, 1)
			for {
				m := atomic.LoadInt32(&maxInside)
				if n <= m || atomic.CompareAndSwapInt32(&maxInside, m, n) {
					break
				}
			}
			time.Sleep(2 * time.Millisecond)
			atomic.AddInt32(&inside, -1)
			release()
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), maxInside)
}

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	s, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(s.Close)

	client := redis.NewClient(&redis.Options{Addr: s.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return s, client
}

func TestRedis_AcquireRelease(t *testing.T) {
	s, client := newTestRedis(t)
	l := NewRedis(client, "", time.Minute, nil)
	ctx := context.Background()

	release, err := l.Acquire(ctx, time.Second)
	require.NoError(t, err)
	assert.True(t, s.Exists(DefaultKey))

	_, err = l.Acquire(ctx, 60*time.Millisecond)
	assert.ErrorIs(t, err, ErrTimeout)

	release()
	assert.False(t, s.Exists(DefaultKey))

	release2, err := l.Acquire(ctx, time.Second)
	require.NoError(t, err)
	release2()
}

func TestRedis_ReleaseKeepsForeignLease(t *testing.T) {
	s, client := newTestRedis(t)
	l := NewRedis(client, "lk", time.Minute, nil)

	release, err := l.Acquire(context.Background(), time.Second)
	require.NoError(t, err)

	// lease expired and another holder took it
	require.NoError(t, s.Set("lk", "someone-else"))
	release()

	got, err := s.Get("lk")
	require.NoError(t, err)
	assert.Equal(t, "someone-else", got)
}

func TestRedis_WaitsForHolder(t *testing.T) {
	_, client := newTestRedis(t)
	l := NewRedis(client, "lk", time.Minute, nil)
	ctx := context.Background()

	release, err := l.Acquire(ctx, time.Second)
	require.NoError(t, err)

	go func() {
		time.Sleep(50 * time.Millisecond)
		release()
	}()

	second, err := l.Acquire(ctx, 2*time.Second)
	require.NoError(t, err)
	second()
}

package cache

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func (f *fakeClock) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.t
}

func (f *fakeClock) Advance(d time.Duration) {
	f.mu.Lock()
	f.t = f.t.Add(d)
	f.mu.Unlock()
}

func TestNew_Defaults(t *testing.T) {
	c := New[string]()
	assert.Equal(t, DefaultTTL, c.defaultTTL)
	assert.Equal(t, DefaultMaxEntries, c.maxEntries)

	c = New[string](WithTTL(-5*time.Second), WithMaxEntries(0))
	assert.Equal(t, DefaultTTL, c.defaultTTL)
	assert.Equal(t, DefaultMaxEntries, c.maxEntries)

	c = New[string](WithTTL(NoExpiry))
	assert.Equal(t, NoExpiry, c.defaultTTL)
}

func TestSet_NoExpiry(t *testing.T) {
	clk := newFakeClock()
	c := New[int](WithClock(clk.Now), WithTTL(time.Second))

	c.Set("forever", 1, NoExpiry)
	c.Set("brief", 2, 0)
	clk.Advance(24 * 365 * time.Hour)

	assert.True(t, c.Has("forever"))
	assert.False(t, c.Has("brief"))
	assert.True(t, c.entries["forever"].expiresAt.IsZero())
}

func TestCapacity_NoExpiryEntriesStillEvicted(t *testing.T) {
	clk := newFakeClock()
	c := New[int](WithClock(clk.Now), WithMaxEntries(1))

	c.Set("a", 1, NoExpiry)
	clk.Advance(time.Second)
	c.Set("b", 2, NoExpiry)

	assert.False(t, c.Has("a"))
	assert.True(t, c.Has("b"))
}

func TestSetGet_ExpiresAtBoundary(t *testing.T) {
	clk := newFakeClock()
	c := New[int](WithClock(clk.Now))

	c.Set("a", 1, time.Minute)
	v, ok := c.Get("a")
	require.True(t, ok)
	assert.Equal(t, 1, v)

	clk.Advance(time.Minute - time.Nanosecond)
	assert.True(t, c.Has("a"))

	clk.Advance(time.Nanosecond)
	assert.False(t, c.Has("a"))
	assert.Equal(t, 0, c.Len(), "expired entry should be evicted on read")
}

func TestSet_NonPositiveTTLUsesDefault(t *testing.T) {
	clk := newFakeClock()
	c := New[int](WithClock(clk.Now), WithTTL(10*time.Second))

	c.Set("a", 1, 0)
	clk.Advance(9 * time.Second)
	assert.True(t, c.Has("a"))
	clk.Advance(time.Second)
	assert.False(t, c.Has("a"))
}

func TestDeleteAndClear(t *testing.T) {
	c := New[int]()
	c.Set("a", 1, 0)
	c.Set("b", 2, 0)

	c.Delete("a")
	assert.False(t, c.Has("a"))
	assert.True(t, c.Has("b"))

	c.Clear()
	assert.Equal(t, 0, c.Len())
}

func TestCapacity_EvictsOldestCreated(t *testing.T) {
	clk := newFakeClock()
	c := New[int](WithClock(clk.Now), WithMaxEntries(3))

	for i := 0; i < 4; i++ {
		c.Set(fmt.Sprintf("k%d", i), i, time.Hour)
		clk.Advance(time.Second)
	}

	assert.Equal(t, 3, c.Len())
	assert.False(t, c.Has("k0"))
	for i := 1; i < 4; i++ {
		assert.True(t, c.Has(fmt.Sprintf("k%d", i)))
	}
}

func TestCapacity_PurgesExpiredBeforeEvictingLive(t *testing.T) {
	clk := newFakeClock()
	c := New[int](WithClock(clk.Now), WithMaxEntries(2))

	c.Set("old", 0, time.Hour)
	clk.Advance(time.Second)
	c.Set("short", 1, time.Second)
	clk.Advance(2 * time.Second)
	c.Set("new", 2, time.Hour)

	assert.Equal(t, 2, c.Len())
	assert.True(t, c.Has("old"))
	assert.True(t, c.Has("new"))
}

func TestRemember_ProducerCalledOnceForConcurrentCallers(t *testing.T) {
	c := New[string]()
	var calls atomic.Int32
	release := make(chan struct{})

	producer := func(ctx context.Context) (string, error) {
		calls.Add(1)
		<-release
		return "value", nil
	}

	const n = 20
	var wg sync.WaitGroup
	results := make([]string, n)
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = c.Remember(context.Background(), "k", producer, 0)
		}(i)
	}

	require.Eventually(t, func() bool { return calls.Load() == 1 }, time.Second, time.Millisecond)
	time.Sleep(10 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.Equal(t, int32(1), calls.Load())
	for i := 0; i < n; i++ {
		require.NoError(t, errs[i])
		assert.Equal(t, "value", results[i])
	}

	v, err := c.Remember(context.Background(), "k", func(context.Context) (string, error) {
		t.Fatal("producer should not run for a live entry")
		return "", nil
	}, 0)
	require.NoError(t, err)
	assert.Equal(t, "value", v)
}

func TestRemember_ErrorSharedAndNotCached(t *testing.T) {
	c := New[int]()
	boom := errors.New("boom")
	var calls atomic.Int32
	release := make(chan struct{})

	producer := func(ctx context.Context) (int, error) {
		calls.Add(1)
		<-release
		return 0, boom
	}

	var wg sync.WaitGroup
	errs := make([]error, 5)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = c.Remember(context.Background(), "k", producer, 0)
		}(i)
	}
	require.Eventually(t, func() bool { return calls.Load() == 1 }, time.Second, time.Millisecond)
	time.Sleep(10 * time.Millisecond)
	close(release)
	wg.Wait()

	for _, err := range errs {
		assert.ErrorIs(t, err, boom)
	}
	assert.False(t, c.Has("k"))

	v, err := c.Remember(context.Background(), "k", func(context.Context) (int, error) { return 7, nil }, 0)
	require.NoError(t, err)
	assert.Equal(t, 7, v)
	assert.Equal(t, int32(1), calls.Load())
}

func TestRemember_WaiterCancellationDoesNotAffectOthers(t *testing.T) {
	c := New[string]()
	release := make(chan struct{})
	started := make(chan struct{})
	var producerCtx context.Context

	producer := func(ctx context.Context) (string, error) {
		producerCtx = ctx
		close(started)
		select {
		case <-release:
			return "ok", nil
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	firstErr := make(chan error, 1)
	go func() {
		_, err := c.Remember(ctx, "k", producer, 0)
		firstErr <- err
	}()
	<-started

	secondVal := make(chan string, 1)
	go func() {
		v, _ := c.Remember(context.Background(), "k", producer, 0)
		secondVal <- v
	}()
	require.Eventually(t, func() bool { return c.Waiting("k") == 2 }, time.Second, time.Millisecond)

	cancel()
	assert.ErrorIs(t, <-firstErr, context.Canceled)
	assert.Equal(t, 1, c.Waiting("k"))
	assert.NoError(t, producerCtx.Err(), "producer must keep running for the remaining waiter")

	close(release)
	assert.Equal(t, "ok", <-secondVal)
	assert.True(t, c.Has("k"))
}

func TestRemember_LastWaiterCancelsProducer(t *testing.T) {
	c := New[string]()
	started := make(chan struct{})
	stopped := make(chan error, 1)

	producer := func(ctx context.Context) (string, error) {
		close(started)
		<-ctx.Done()
		stopped <- ctx.Err()
		return "", ctx.Err()
	}

	ctx, cancel := context.WithCancel(context.Background())
	errs := make(chan error, 2)
	for range 2 {
		go func() {
			_, err := c.Remember(ctx, "k", producer, 0)
			errs <- err
		}()
	}
	<-started
	require.Eventually(t, func() bool { return c.Waiting("k") == 2 }, time.Second, time.Millisecond)

	cancel()
	assert.ErrorIs(t, <-errs, context.Canceled)
	assert.ErrorIs(t, <-errs, context.Canceled)

	select {
	case err := <-stopped:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("producer still running after every waiter left")
	}
	assert.False(t, c.Has("k"))
}

func TestRemember_DeadlineCancelsProducer(t *testing.T) {
	c := New[string]()
	stopped := make(chan struct{})

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := c.Remember(ctx, "k", func(ctx context.Context) (string, error) {
		defer close(stopped)
		<-ctx.Done()
		return "", ctx.Err()
	}, 0)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	select {
	case <-stopped:
	case <-time.After(time.Second):
		t.Fatal("producer outlived its only caller's deadline")
	}
}

func TestRemember_AbandonedKeyStartsFresh(t *testing.T) {
	c := New[int]()
	var calls atomic.Int32
	firstStarted := make(chan struct{})

	ctx, cancel := context.WithCancel(context.Background())
	firstErr := make(chan error, 1)
	go func() {
		_, err := c.Remember(ctx, "k", func(ctx context.Context) (int, error) {
			calls.Add(1)
			close(firstStarted)
			<-ctx.Done()
			return 0, ctx.Err()
		}, 0)
		firstErr <- err
	}()
	<-firstStarted
	cancel()
	require.ErrorIs(t, <-firstErr, context.Canceled)

	v, err := c.Remember(context.Background(), "k", func(context.Context) (int, error) {
		return int(calls.Add(1)), nil
	}, 0)
	require.NoError(t, err)
	assert.Equal(t, 2, v)
}

func TestRemember_ProducerKeepsCallerValues(t *testing.T) {
	type key struct{}
	c := New[string]()
	ctx := context.WithValue(context.Background(), key{}, "req-1")

	v, err := c.Remember(ctx, "k", func(ctx context.Context) (string, error) {
		s, _ := ctx.Value(key{}).(string)
		return s, nil
	}, 0)
	require.NoError(t, err)
	assert.Equal(t, "req-1", v)
}

func TestRemember_DoneContextReturnsImmediately(t *testing.T) {
	c := New[int]()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	called := false
	_, err := c.Remember(ctx, "k", func(context.Context) (int, error) {
		called = true
		return 1, nil
	}, 0)
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, called)
}

func TestRemember_TTLRespected(t *testing.T) {
	clk := newFakeClock()
	c := New[int](WithClock(clk.Now))
	var calls atomic.Int32
	producer := func(context.Context) (int, error) {
		return int(calls.Add(1)), nil
	}

	v, err := c.Remember(context.Background(), "k", producer, time.Minute)
	require.NoError(t, err)
	assert.Equal(t, 1, v)

	clk.Advance(30 * time.Second)
	v, _ = c.Remember(context.Background(), "k", producer, time.Minute)
	assert.Equal(t, 1, v)

	clk.Advance(30 * time.Second)
	v, _ = c.Remember(context.Background(), "k", producer, time.Minute)
	assert.Equal(t, 2, v)
}

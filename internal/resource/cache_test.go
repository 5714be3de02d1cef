package resource

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cfab/hwagent/internal/apperr"
	"github.com/cfab/hwagent/internal/task"
)

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestCacheLoadsOnceAndMemoizes(t *testing.T) {
	t.Parallel()

	var loads atomic.Int32
	c := NewCache(0, discard())
	c.Register("answer", func(ctx context.Context) (any, error) {
		loads.Add(1)
		return 42, nil
	})

	for i := 0; i < 3; i++ {
		v, err := c.Get(context.Background(), "answer")
		require.NoError(t, err)
		assert.Equal(t, 42, v)
	}
	assert.Equal(t, int32(1), loads.Load())
}

func TestCacheUnregisteredResource(t *testing.T) {
	t.Parallel()

	c := NewCache(0, discard())
	_, err := c.Get(context.Background(), "ghost")
	require.Error(t, err)
	assert.Equal(t, apperr.CodeCache, apperr.CodeOf(err))
}

func TestCacheConcurrentCallersShareOneLoad(t *testing.T) {
	t.Parallel()

	var loads atomic.Int32
	gate := make(chan struct{})
	c := NewCache(0, discard())
	c.Register("slow", func(ctx context.Context) (any, error) {
		loads.Add(1)
		<-gate
		return "ready", nil
	})

	const callers = 8
	var wg sync.WaitGroup
	results := make([]any, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			v, err := c.Get(context.Background(), "slow")
			assert.NoError(t, err)
			results[i] = v
		}(i)
	}

	time.Sleep(20 * time.Millisecond)
	close(gate)
	wg.Wait()

	assert.Equal(t, int32(1), loads.Load())
	for _, v := range results {
		assert.Equal(t, "ready", v)
	}
}

func TestCacheTTLExpiry(t *testing.T) {
	t.Parallel()

	var loads atomic.Int32
	c := NewCache(20*time.Millisecond, discard())
	c.Register("volatile", func(ctx context.Context) (any, error) {
		return loads.Add(1), nil
	})

	v, err := c.Get(context.Background(), "volatile")
	require.NoError(t, err)
	assert.Equal(t, int32(1), v)

	time.Sleep(40 * time.Millisecond)
	v, err = c.Get(context.Background(), "volatile")
	require.NoError(t, err)
	assert.Equal(t, int32(2), v)
}

func TestCacheInvalidateForcesReload(t *testing.T) {
	t.Parallel()

	var loads atomic.Int32
	c := NewCache(0, discard())
	c.Register("counted", func(ctx context.Context) (any, error) {
		return loads.Add(1), nil
	})

	_, err := c.Get(context.Background(), "counted")
	require.NoError(t, err)
	c.Invalidate("counted")

	v, err := c.Get(context.Background(), "counted")
	require.NoError(t, err)
	assert.Equal(t, int32(2), v)
}

func TestCacheInvalidateAllDropsEveryEntry(t *testing.T) {
	t.Parallel()

	var alphaLoads, betaLoads atomic.Int32
	c := NewCache(0, discard())
	c.Register("alpha", func(ctx context.Context) (any, error) {
		return alphaLoads.Add(1), nil
	})
	c.Register("beta", func(ctx context.Context) (any, error) {
		return betaLoads.Add(1), nil
	})

	for _, name := range []string{"alpha", "beta"} {
		_, err := c.Get(context.Background(), name)
		require.NoError(t, err)
	}
	c.InvalidateAll()

	v, err := c.Get(context.Background(), "alpha")
	require.NoError(t, err)
	assert.Equal(t, int32(2), v)
	v, err = c.Get(context.Background(), "beta")
	require.NoError(t, err)
	assert.Equal(t, int32(2), v)
}

func TestCacheLoaderFailureNotCached(t *testing.T) {
	t.Parallel()

	var loads atomic.Int32
	c := NewCache(0, discard())
	c.Register("flaky", func(ctx context.Context) (any, error) {
		if loads.Add(1) == 1 {
			return nil, errors.New("first load fails")
		}
		return "ok", nil
	})

	_, err := c.Get(context.Background(), "flaky")
	require.Error(t, err)

	v, err := c.Get(context.Background(), "flaky")
	require.NoError(t, err)
	assert.Equal(t, "ok", v)
}

func TestAsyncLoaderDeliversResult(t *testing.T) {
	t.Parallel()

	c := NewCache(0, discard())
	c.Register("profile", func(ctx context.Context) (any, error) {
		return "loaded", nil
	})

	r := task.NewRunner(task.RunnerConfig{Workers: 1, QueueSize: 4}, nil, discard())
	require.NoError(t, r.Start())
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = r.Stop(ctx)
	})

	results := make(chan Result, 1)
	h, err := NewAsyncLoader(c, r).Load("profile", func(res Result) {
		results <- res
	})
	require.NoError(t, err)

	select {
	case res := <-results:
		assert.Equal(t, "profile", res.Name)
		assert.Equal(t, "loaded", res.Value)
		assert.NoError(t, res.Err)
	case <-time.After(2 * time.Second):
		t.Fatal("async load never completed")
	}

	require.Eventually(t, func() bool {
		return h.Status() == task.StatusCompleted
	}, 2*time.Second, 5*time.Millisecond)
}

func TestAsyncLoaderPropagatesFailure(t *testing.T) {
	t.Parallel()

	c := NewCache(0, discard())
	c.Register("broken", func(ctx context.Context) (any, error) {
		return nil, errors.New("load exploded")
	})

	r := task.NewRunner(task.RunnerConfig{Workers: 1, QueueSize: 4}, nil, discard())
	require.NoError(t, r.Start())
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = r.Stop(ctx)
	})

	results := make(chan Result, 1)
	h, err := NewAsyncLoader(c, r).Load("broken", func(res Result) {
		results <- res
	})
	require.NoError(t, err)

	res := <-results
	require.Error(t, res.Err)
	require.Eventually(t, func() bool {
		return h.Status() == task.StatusFailed
	}, 2*time.Second, 5*time.Millisecond)
}

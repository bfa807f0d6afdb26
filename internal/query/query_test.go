package query

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

type recordingObserver struct {
	mu    sync.Mutex
	kinds []string
	errs  int
}

func (o *recordingObserver) ObserveFetch(kind string, _ time.Duration, err error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.kinds = append(o.kinds, kind)
	if err != nil {
		o.errs++
	}
}

func TestFetch_CachesSuccessPerKey(t *testing.T) {
	c := NewClient(Options{Size: 8, TTL: time.Minute})
	var calls atomic.Int32
	fn := func(ctx context.Context) ([]string, error) {
		calls.Add(1)
		return []string{"a"}, nil
	}
	key := Key{Kind: "k", Identity: "1", Token: 100}

	res := Fetch(context.Background(), c, Intent[[]string]{Key: key, Enabled: true, Fn: fn})
	require.Equal(t, StatusSuccess, res.Status)
	assert.Equal(t, []string{"a"}, res.Data)
	assert.False(t, res.UpdatedAt.IsZero())

	res = Fetch(context.Background(), c, Intent[[]string]{Key: key, Enabled: true, Fn: fn})
	assert.Equal(t, StatusSuccess, res.Status)
	assert.Equal(t, int32(1), calls.Load())

	// A new token is a new identity
	key.Token = 101
	Fetch(context.Background(), c, Intent[[]string]{Key: key, Enabled: true, Fn: fn})
	assert.Equal(t, int32(2), calls.Load())
}

func TestFetch_DisabledNeverCallsFetcher(t *testing.T) {
	c := NewClient(Options{Size: 8})
	called := false
	res := Fetch(context.Background(), c, Intent[[]int]{
		Key:     Key{Kind: "k", Identity: "1"},
		Enabled: false,
		Fn: func(ctx context.Context) ([]int, error) {
			called = true
			return []int{1}, nil
		},
	})

	assert.False(t, called)
	assert.Equal(t, StatusIdle, res.Status)
	assert.Nil(t, res.Data)
}

func TestFetch_DisabledReturnsCachedData(t *testing.T) {
	c := NewClient(Options{Size: 8})
	key := Key{Kind: "k", Identity: "1", Token: 5}
	Fetch(context.Background(), c, Intent[[]int]{Key: key, Enabled: true, Fn: func(ctx context.Context) ([]int, error) {
		return []int{7}, nil
	}})

	res := Fetch(context.Background(), c, Intent[[]int]{Key: key})
	assert.Equal(t, StatusSuccess, res.Status)
	assert.Equal(t, []int{7}, res.Data)
}

func TestFetch_ErrorsAreNotCached(t *testing.T) {
	obs := &recordingObserver{}
	c := NewClient(Options{Size: 8, Observers: []Observer{obs}})
	key := Key{Kind: "k", Identity: "1"}
	boom := errors.New("boom")

	res := Fetch(context.Background(), c, Intent[[]int]{Key: key, Enabled: true, Fn: func(ctx context.Context) ([]int, error) {
		return nil, boom
	}})
	assert.Equal(t, StatusError, res.Status)
	assert.ErrorIs(t, res.Err, boom)

	peek := Peek[[]int](c, key)
	assert.Equal(t, StatusError, peek.Status)

	res = Fetch(context.Background(), c, Intent[[]int]{Key: key, Enabled: true, Fn: func(ctx context.Context) ([]int, error) {
		return []int{}, nil
	}})
	assert.Equal(t, StatusSuccess, res.Status)
	assert.NotNil(t, res.Data)
	assert.Empty(t, res.Data)
	assert.NoError(t, Peek[[]int](c, key).Err)

	assert.Equal(t, []string{"k", "k"}, obs.kinds)
	assert.Equal(t, 1, obs.errs)
}

func TestFetch_ConcurrentCallersShareOneFetch(t *testing.T) {
	c := NewClient(Options{Size: 8})
	key := Key{Kind: "k", Identity: "1"}
	release := make(chan struct{})
	var calls atomic.Int32
	fn := func(ctx context.Context) ([]int, error) {
		calls.Add(1)
		<-release
		return []int{1, 2}, nil
	}

	var wg sync.WaitGroup
	results := make([]Result[[]int], 5)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = Fetch(context.Background(), c, Intent[[]int]{Key: key, Enabled: true, Fn: fn})
		}(i)
	}

	require.Eventually(t, func() bool { return Peek[[]int](c, key).Status == StatusPending }, time.Second, 5*time.Millisecond)
	close(release)
	wg.Wait()

	assert.Equal(t, int32(1), calls.Load())
	for _, r := range results {
		assert.Equal(t, []int{1, 2}, r.Data)
	}
}

func TestPrefetch_RunsInBackground(t *testing.T) {
	c := NewClient(Options{Size: 8})
	key := Key{Kind: "k", Identity: "1"}
	release := make(chan struct{})
	in := Intent[[]int]{Key: key, Enabled: true, Fn: func(ctx context.Context) ([]int, error) {
		<-release
		return []int{3}, nil
	}}

	Prefetch(c, in)
	assert.Equal(t, StatusPending, Peek[[]int](c, key).Status)

	// A second prefetch while in flight is a no-op
	Prefetch(c, in)

	close(release)
	require.Eventually(t, func() bool { return Peek[[]int](c, key).Status == StatusSuccess }, time.Second, 5*time.Millisecond)
	assert.Equal(t, []int{3}, Peek[[]int](c, key).Data)
}

func TestPrefetch_DisabledIsNoop(t *testing.T) {
	c := NewClient(Options{Size: 8})
	key := Key{Kind: "k", Identity: "1"}
	Prefetch(c, Intent[[]int]{Key: key, Fn: func(ctx context.Context) ([]int, error) {
		t.Fatal("disabled intent must not fetch")
		return nil, nil
	}})
	assert.Equal(t, StatusIdle, Peek[[]int](c, key).Status)
}

func TestInvalidate(t *testing.T) {
	c := NewClient(Options{Size: 8})
	key := Key{Kind: "k", Identity: "1"}
	Fetch(context.Background(), c, Intent[[]int]{Key: key, Enabled: true, Fn: func(ctx context.Context) ([]int, error) {
		return []int{1}, nil
	}})
	assert.Equal(t, 1, c.Len())

	c.Invalidate(key)
	assert.Equal(t, StatusIdle, Peek[[]int](c, key).Status)
	assert.Equal(t, 0, c.Len())
}

func TestKeyString(t *testing.T) {
	assert.Equal(t, "ttc-bus-basic/501-3050@1700000000000", Key{Kind: "ttc-bus-basic", Identity: "501-3050", Token: 1700000000000}.String())
}

func TestFetch_CallerCancellationDoesNotFailOtherCallers(t *testing.T) {
	c := NewClient(Options{Size: 8, BackgroundTimeout: time.Second})
	key := Key{Kind: "k", Identity: "shared"}
	started := make(chan struct{})
	release := make(chan struct{})
	var calls atomic.Int32
	fn := func(ctx context.Context) ([]int, error) {
		if calls.Add(1) == 1 {
			close(started)
		}
		<-release
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		return []int{7}, nil
	}
	in := Intent[[]int]{Key: key, Enabled: true, Fn: fn}

	ctxA, cancelA := context.WithCancel(context.Background())
	resA := make(chan Result[[]int], 1)
	go func() { resA <- Fetch(ctxA, c, in) }()
	<-started

	resB := make(chan Result[[]int], 1)
	go func() { resB <- Fetch(context.Background(), c, in) }()

	cancelA()
	a := <-resA
	assert.Equal(t, StatusPending, a.Status)
	assert.ErrorIs(t, a.Err, context.Canceled)

	close(release)
	b := <-resB
	require.Equal(t, StatusSuccess, b.Status)
	assert.NoError(t, b.Err)
	assert.Equal(t, []int{7}, b.Data)

	peek := Peek[[]int](c, key)
	assert.Equal(t, StatusSuccess, peek.Status)
	assert.NoError(t, peek.Err)
	assert.Equal(t, int32(1), calls.Load())
}

func TestFetch_ContextErrorsAreNotRemembered(t *testing.T) {
	c := NewClient(Options{Size: 8})
	key := Key{Kind: "k", Identity: "timeout"}

	res := Fetch(context.Background(), c, Intent[[]int]{Key: key, Enabled: true, Fn: func(ctx context.Context) ([]int, error) {
		return nil, fmt.Errorf("upstream: %w", context.DeadlineExceeded)
	}})
	require.Equal(t, StatusError, res.Status)
	assert.ErrorIs(t, res.Err, context.DeadlineExceeded)

	peek := Peek[[]int](c, key)
	assert.Equal(t, StatusIdle, peek.Status)
	assert.NoError(t, peek.Err)
}

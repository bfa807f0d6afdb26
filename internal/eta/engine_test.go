package eta

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mini-ttc/etaboard/internal/query"
	"github.com/mini-ttc/etaboard/internal/ttc"
)

type fakeFetcher struct {
	mu         sync.Mutex
	subway     []ttc.SubwayPrediction
	bus        []ttc.BusPrediction
	err        error
	gate       chan struct{}
	subwayHits int
	busHits    int
}

func (f *fakeFetcher) FetchSubway(ctx context.Context, stopNum int) ([]ttc.SubwayPrediction, error) {
	f.wait()
	f.mu.Lock()
	defer f.mu.Unlock()
	f.subwayHits++
	return f.subway, f.err
}

func (f *fakeFetcher) FetchBus(ctx context.Context, stopNum, line int) ([]ttc.BusPrediction, error) {
	f.wait()
	f.mu.Lock()
	defer f.mu.Unlock()
	f.busHits++
	return f.bus, f.err
}

func (f *fakeFetcher) wait() {
	if f.gate != nil {
		<-f.gate
	}
}

func (f *fakeFetcher) hits() (int, int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.subwayHits, f.busHits
}

func newTestEngine(f *fakeFetcher, clock *fakeClock) *Engine {
	return NewEngine(
		f,
		query.NewClient(query.Options{Size: 64, TTL: time.Minute}),
		NewRegistry(16, clock.Now),
		testStations(),
	)
}

func TestEngine_SubwayLineFetchesSubwayOnly(t *testing.T) {
	f := &fakeFetcher{subway: []ttc.SubwayPrediction{{DirectionText: "Southbound", NextTrains: "1, 4"}}}
	e := newTestEngine(f, newFakeClock())

	b, err := e.View(context.Background(), StopQuery{Line: 1, StopNum: 14457}, ViewOptions{Wait: true})
	require.NoError(t, err)

	assert.Equal(t, StateReady, b.State)
	assert.Equal(t, secs(60, 240), b.ETA)
	assert.NotNil(t, b.UpdatedAt)
	subwayHits, busHits := f.hits()
	assert.Equal(t, 1, subwayHits)
	assert.Equal(t, 0, busHits)
}

func TestEngine_BusLineFetchesBusOnly(t *testing.T) {
	f := &fakeFetcher{bus: []ttc.BusPrediction{{NextBusMinutes: "5"}}}
	e := newTestEngine(f, newFakeClock())

	b, err := e.View(context.Background(), StopQuery{Line: 7, StopNum: 5000}, ViewOptions{Wait: true})
	require.NoError(t, err)

	assert.Equal(t, StateReady, b.State)
	assert.Equal(t, SourceBus, b.Source)
	subwayHits, busHits := f.hits()
	assert.Equal(t, 0, subwayHits)
	assert.Equal(t, 1, busHits)
}

func TestEngine_ViewReusesTokenUntilRefresh(t *testing.T) {
	clock := newFakeClock()
	f := &fakeFetcher{subway: []ttc.SubwayPrediction{{NextTrains: "3"}}}
	e := newTestEngine(f, clock)
	q := StopQuery{Line: 2, StopNum: 100}

	first, err := e.View(context.Background(), q, ViewOptions{Wait: true})
	require.NoError(t, err)
	_, err = e.View(context.Background(), q, ViewOptions{Wait: true})
	require.NoError(t, err)
	subwayHits, _ := f.hits()
	assert.Equal(t, 1, subwayHits, "same token must hit the cache")

	clock.Advance(2 * time.Second)
	token, err := e.Refresh(q)
	require.NoError(t, err)
	assert.Greater(t, token, first.Token)

	f.mu.Lock()
	f.subway = []ttc.SubwayPrediction{{NextTrains: "1"}}
	f.mu.Unlock()

	second, err := e.View(context.Background(), q, ViewOptions{Wait: true})
	require.NoError(t, err)
	assert.Equal(t, token, second.Token)
	assert.Equal(t, secs(60), second.ETA)
	subwayHits, _ = f.hits()
	assert.Equal(t, 2, subwayHits, "a new token is an independent fetch")
}

func TestEngine_UpstreamErrorFlagIsNotFound(t *testing.T) {
	f := &fakeFetcher{subway: []ttc.SubwayPrediction{{Error: true}}}
	e := newTestEngine(f, newFakeClock())

	b, err := e.View(context.Background(), StopQuery{Line: 1, StopNum: 1}, ViewOptions{Wait: true})
	require.NoError(t, err)
	assert.Equal(t, StateNotFound, b.State)
	assert.Empty(t, b.FetchError)
}

func TestEngine_TransportErrorIsLoadingWithFetchError(t *testing.T) {
	f := &fakeFetcher{err: errors.New("connection refused")}
	e := newTestEngine(f, newFakeClock())

	b, err := e.View(context.Background(), StopQuery{Line: 501, StopNum: 3050}, ViewOptions{Wait: true})
	require.NoError(t, err)
	assert.Equal(t, StateLoading, b.State)
	assert.Equal(t, MsgRefreshButton, b.Refresh)
	assert.Contains(t, b.FetchError, "connection refused")
}

func TestEngine_NonBlockingViewStartsBackgroundFetch(t *testing.T) {
	gate := make(chan struct{})
	f := &fakeFetcher{bus: []ttc.BusPrediction{{NextBusMinutes: "2"}}, gate: gate}
	e := newTestEngine(f, newFakeClock())
	q := StopQuery{Line: 501, StopNum: 3050}

	b, err := e.View(context.Background(), q, ViewOptions{})
	require.NoError(t, err)
	assert.Equal(t, StateLoading, b.State)

	close(gate)
	require.Eventually(t, func() bool {
		b, _ := e.View(context.Background(), q, ViewOptions{})
		return b.State == StateReady
	}, time.Second, 5*time.Millisecond)

	_, busHits := f.hits()
	assert.Equal(t, 1, busHits)
}

func TestEngine_SupersededFetchIsNeverRendered(t *testing.T) {
	clock := newFakeClock()
	gate := make(chan struct{})
	f := &fakeFetcher{subway: []ttc.SubwayPrediction{{NextTrains: "9"}}, gate: gate}
	e := newTestEngine(f, clock)
	q := StopQuery{Line: 1, StopNum: 42}

	// Old token fetch is held in flight
	b, err := e.View(context.Background(), q, ViewOptions{})
	require.NoError(t, err)
	oldToken := b.Token

	clock.Advance(time.Second)
	newToken, err := e.Refresh(q)
	require.NoError(t, err)

	close(gate)
	require.Eventually(t, func() bool {
		return query.Peek[[]ttc.SubwayPrediction](e.queries, SubwayKey(42, oldToken)).Status == query.StatusSuccess
	}, time.Second, 5*time.Millisecond)

	// The old settlement exists, but a view under the new token does not read it
	peeked := query.Peek[[]ttc.SubwayPrediction](e.queries, SubwayKey(42, newToken))
	assert.NotEqual(t, query.StatusSuccess, peeked.Status)
}

func TestEngine_InvalidQuery(t *testing.T) {
	e := newTestEngine(&fakeFetcher{}, newFakeClock())

	_, err := e.View(context.Background(), StopQuery{Line: 0, StopNum: 1}, ViewOptions{Wait: true})
	assert.ErrorIs(t, err, ErrInvalidQuery)

	_, err = e.Refresh(StopQuery{Line: 1, StopNum: -1})
	assert.ErrorIs(t, err, ErrInvalidQuery)
}

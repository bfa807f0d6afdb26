package eta

import (
	"context"

	"github.com/mini-ttc/etaboard/internal/query"
	"github.com/mini-ttc/etaboard/internal/ttc"
)

// ViewOptions controls how View waits on the fetch layer
type ViewOptions struct {
	// Wait blocks until the active source settles. Without it a cache miss
	// starts a background fetch and the board is LOADING.
	Wait bool
}

// Engine turns stop queries into boards. It decides when to refetch and how
// to reconcile the two sources; the query client owns caching and I/O.
type Engine struct {
	fetcher  ttc.Fetcher
	queries  *query.Client
	registry *Registry
	stations StationLookup
}

// NewEngine creates an engine
func NewEngine(fetcher ttc.Fetcher, queries *query.Client, registry *Registry, stations StationLookup) *Engine {
	return &Engine{
		fetcher:  fetcher,
		queries:  queries,
		registry: registry,
		stations: stations,
	}
}

// View renders the board for q under its current freshness token.
// Both fetch intents are issued; only the one for q's source is enabled.
// Transport failures are reported on the board, never as an error.
func (e *Engine) View(ctx context.Context, q StopQuery, opts ViewOptions) (Board, error) {
	if err := q.Validate(); err != nil {
		return Board{}, err
	}

	token := e.registry.Controller(q).Token()
	source := q.Source()

	subway := query.Intent[[]ttc.SubwayPrediction]{
		Key:     SubwayKey(q.StopNum, token),
		Enabled: source == SourceSubway,
		Fn: func(ctx context.Context) ([]ttc.SubwayPrediction, error) {
			return e.fetcher.FetchSubway(ctx, q.StopNum)
		},
	}
	bus := query.Intent[[]ttc.BusPrediction]{
		Key:     BusKey(q.Line, q.StopNum, token),
		Enabled: source == SourceBus,
		Fn: func(ctx context.Context) ([]ttc.BusPrediction, error) {
			return e.fetcher.FetchBus(ctx, q.StopNum, q.Line)
		},
	}

	var subwayRes query.Result[[]ttc.SubwayPrediction]
	var busRes query.Result[[]ttc.BusPrediction]
	if opts.Wait {
		subwayRes = query.Fetch(ctx, e.queries, subway)
		busRes = query.Fetch(ctx, e.queries, bus)
	} else {
		query.Prefetch(e.queries, subway)
		query.Prefetch(e.queries, bus)
		subwayRes = query.Peek[[]ttc.SubwayPrediction](e.queries, subway.Key)
		busRes = query.Peek[[]ttc.BusPrediction](e.queries, bus.Key)
	}

	n := Normalize(Responses{Subway: subwayRes.Data, Bus: busRes.Data})
	board := BuildBoard(q, n, e.stations)
	board.Token = token

	err, updatedAt := subwayRes.Err, subwayRes.UpdatedAt
	if source == SourceBus {
		err, updatedAt = busRes.Err, busRes.UpdatedAt
	}
	if err != nil && board.State == StateLoading {
		board.FetchError = err.Error()
	}
	if !updatedAt.IsZero() {
		board.UpdatedAt = &updatedAt
	}
	return board, nil
}

// Refresh issues a new freshness token for q. The next View fetches under
// the new identity; fetches still running for older tokens settle into
// their own keys and are never rendered.
func (e *Engine) Refresh(q StopQuery) (Token, error) {
	if err := q.Validate(); err != nil {
		return 0, err
	}
	return e.registry.Controller(q).Refresh(), nil
}

// Token returns the current freshness token for q, mounting it if needed
func (e *Engine) Token(q StopQuery) Token {
	return e.registry.Controller(q).Token()
}

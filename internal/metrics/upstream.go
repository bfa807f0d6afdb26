package metrics

import (
	"context"
	"log"
	"sort"
	"sync"
	"time"
)

// LatencyBaseline is the learned fetch latency of one upstream kind for an
// hour of a weekday
type LatencyBaseline struct {
	Kind            string
	HourOfDay       int
	DayOfWeek       int
	LatencyMeanMs   float64
	LatencyStdDevMs float64
	SampleCount     int
}

// BaselineStore defines the interface for baseline persistence
type BaselineStore interface {
	GetLatencyBaseline(ctx context.Context, kind string, hour, dayOfWeek int) (*LatencyBaseline, error)
	SaveLatencyBaseline(ctx context.Context, baseline LatencyBaseline) error
}

// UpstreamStats is a point-in-time view of one upstream kind
type UpstreamStats struct {
	Kind            string     `json:"kind"`
	Fetches         int        `json:"fetches"`
	Errors          int        `json:"errors"`
	LatencyMeanMs   float64    `json:"latencyMeanMs"`
	LatencyStdDevMs float64    `json:"latencyStdDevMs"`
	HealthScore     int        `json:"healthScore"`
	Status          string     `json:"status"`
	LastError       string     `json:"lastError,omitempty"`
	LastSuccessAt   *time.Time `json:"lastSuccessAt,omitempty"`
}

type upstreamState struct {
	latency     WelfordState
	window      WelfordState // observations since the last baseline update
	fetches     int
	errors      int
	lastError   string
	lastSuccess time.Time
}

// UpstreamTracker keeps running latency and error statistics per upstream
// kind. It is fed by the query client as a fetch observer.
type UpstreamTracker struct {
	mu    sync.Mutex
	clock func() time.Time
	kinds map[string]*upstreamState
}

// NewUpstreamTracker creates an empty tracker
func NewUpstreamTracker(clock func() time.Time) *UpstreamTracker {
	if clock == nil {
		clock = time.Now
	}
	return &UpstreamTracker{
		clock: clock,
		kinds: make(map[string]*upstreamState),
	}
}

// ObserveFetch records one fetch. Only successful fetches feed latency.
func (t *UpstreamTracker) ObserveFetch(kind string, elapsed time.Duration, err error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	s, ok := t.kinds[kind]
	if !ok {
		s = &upstreamState{}
		t.kinds[kind] = s
	}

	s.fetches++
	if err != nil {
		s.errors++
		s.lastError = err.Error()
		return
	}
	ms := float64(elapsed) / float64(time.Millisecond)
	s.latency.Update(ms)
	s.window.Update(ms)
	s.lastSuccess = t.clock().UTC()
}

// Snapshot returns stats for every observed kind, sorted by kind
func (t *UpstreamTracker) Snapshot() []UpstreamStats {
	t.mu.Lock()
	defer t.mu.Unlock()

	out := make([]UpstreamStats, 0, len(t.kinds))
	for kind, s := range t.kinds {
		score, status := healthOf(s.fetches, s.errors)
		stats := UpstreamStats{
			Kind:            kind,
			Fetches:         s.fetches,
			Errors:          s.errors,
			LatencyMeanMs:   s.latency.GetMean(),
			LatencyStdDevMs: s.latency.GetStdDev(),
			HealthScore:     score,
			Status:          status,
			LastError:       s.lastError,
		}
		if !s.lastSuccess.IsZero() {
			at := s.lastSuccess
			stats.LastSuccessAt = &at
		}
		out = append(out, stats)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Kind < out[j].Kind })
	return out
}

// LearnBaselines folds the mean latency observed since the last call into
// the stored baseline for the current hour and weekday, one observation per
// kind per call.
func (t *UpstreamTracker) LearnBaselines(ctx context.Context, store BaselineStore) error {
	now := t.clock()
	hour := now.Hour()
	dayOfWeek := int(now.Weekday())

	t.mu.Lock()
	windows := make(map[string]float64)
	for kind, s := range t.kinds {
		if s.window.GetCount() == 0 {
			continue
		}
		windows[kind] = s.window.GetMean()
		s.window = WelfordState{}
	}
	t.mu.Unlock()

	for kind, mean := range windows {
		existing, err := store.GetLatencyBaseline(ctx, kind, hour, dayOfWeek)
		if err != nil {
			log.Printf("Baseline: failed to load %s: %v", kind, err)
			continue
		}

		var welford *WelfordState
		if existing != nil {
			welford = NewWelfordState(existing.LatencyMeanMs, existing.LatencyStdDevMs, existing.SampleCount)
		} else {
			welford = &WelfordState{}
		}
		welford.Update(mean)

		err = store.SaveLatencyBaseline(ctx, LatencyBaseline{
			Kind:            kind,
			HourOfDay:       hour,
			DayOfWeek:       dayOfWeek,
			LatencyMeanMs:   welford.GetMean(),
			LatencyStdDevMs: welford.GetStdDev(),
			SampleCount:     welford.GetCount(),
		})
		if err != nil {
			log.Printf("Baseline: failed to save %s: %v", kind, err)
		}
	}
	return nil
}

func healthOf(fetches, errors int) (int, string) {
	if fetches == 0 {
		return 0, "unknown"
	}
	score := 100 * (fetches - errors) / fetches
	switch {
	case score >= 80:
		return score, "healthy"
	case score >= 50:
		return score, "degraded"
	default:
		return score, "unhealthy"
	}
}

package eta

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

// fakeClock is a settable clock for deterministic tokens
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 3, 1, 8, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func TestFreshness_InitialTokenIsMountTime(t *testing.T) {
	clock := newFakeClock()
	f := NewFreshness(clock.Now)
	assert.Equal(t, Token(clock.Now().UnixMilli()), f.Token())
	assert.Equal(t, clock.Now(), f.Token().Time())
}

func TestFreshness_RefreshAdvancesToken(t *testing.T) {
	clock := newFakeClock()
	f := NewFreshness(clock.Now)
	first := f.Token()

	clock.Advance(1500 * time.Millisecond)
	second := f.Refresh()
	assert.Greater(t, second, first)
	assert.Equal(t, second, f.Token())

	clock.Advance(time.Millisecond)
	assert.Greater(t, f.Refresh(), second)
}

func TestFreshness_SameMillisecondCollapses(t *testing.T) {
	clock := newFakeClock()
	f := NewFreshness(clock.Now)
	clock.Advance(10 * time.Millisecond)

	a := f.Refresh()
	clock.Advance(200 * time.Microsecond)
	b := f.Refresh()
	assert.Equal(t, a, b)
}

func TestFreshness_NeverDecreases(t *testing.T) {
	clock := newFakeClock()
	f := NewFreshness(clock.Now)
	before := f.Token()

	clock.Advance(-time.Minute)
	assert.Equal(t, before, f.Refresh())
}

func TestRegistry_OneControllerPerQuery(t *testing.T) {
	clock := newFakeClock()
	r := NewRegistry(4, clock.Now)
	q := StopQuery{Line: 1, StopNum: 14457}

	assert.False(t, r.Mounted(q))
	c1 := r.Controller(q)
	assert.True(t, r.Mounted(q))
	assert.Same(t, c1, r.Controller(q))

	other := r.Controller(StopQuery{Line: 501, StopNum: 3050})
	assert.NotSame(t, c1, other)
	assert.Equal(t, 2, r.Len())
}

func TestRegistry_EvictsLeastRecentlyUsed(t *testing.T) {
	r := NewRegistry(2, newFakeClock().Now)
	a := StopQuery{Line: 1, StopNum: 1}
	b := StopQuery{Line: 1, StopNum: 2}
	c := StopQuery{Line: 1, StopNum: 3}

	r.Controller(a)
	r.Controller(b)
	r.Controller(a)
	r.Controller(c)

	assert.True(t, r.Mounted(a))
	assert.False(t, r.Mounted(b))
	assert.True(t, r.Mounted(c))
}

package eta

import (
	"sync"
	"time"

	"github.com/bluele/gcache"
)

// Token is the freshness component of a fetch identity, in unix milliseconds
type Token int64

// Time returns the wall-clock instant the token was issued at
func (t Token) Time() time.Time {
	return time.UnixMilli(int64(t)).UTC()
}

// Freshness holds the token of one mounted stop board. Refresh moves the
// token to the current time, which gives every later fetch a new identity.
type Freshness struct {
	mu    sync.Mutex
	clock func() time.Time
	token Token
}

// NewFreshness creates a controller whose token is the current time
func NewFreshness(clock func() time.Time) *Freshness {
	if clock == nil {
		clock = time.Now
	}
	return &Freshness{
		clock: clock,
		token: Token(clock().UnixMilli()),
	}
}

// Token returns the current token
func (f *Freshness) Token() Token {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.token
}

// Refresh sets the token to the current time. The token never moves
// backwards, and two refreshes in the same millisecond yield the same token.
func (f *Freshness) Refresh() Token {
	f.mu.Lock()
	defer f.mu.Unlock()
	if now := Token(f.clock().UnixMilli()); now > f.token {
		f.token = now
	}
	return f.token
}

// Registry keeps one Freshness per stop query. The least recently viewed
// boards are evicted once the registry is full.
type Registry struct {
	controllers gcache.Cache
}

// NewRegistry creates a registry holding at most size controllers
func NewRegistry(size int, clock func() time.Time) *Registry {
	if size <= 0 {
		size = 1024
	}
	return &Registry{
		controllers: gcache.New(size).LRU().
			LoaderFunc(func(key interface{}) (interface{}, error) {
				return NewFreshness(clock), nil
			}).
			Build(),
	}
}

// Controller returns the controller for q, mounting it on first use
func (r *Registry) Controller(q StopQuery) *Freshness {
	v, err := r.controllers.Get(q)
	if err != nil {
		// The loader never fails; fall back to an unregistered controller.
		return NewFreshness(nil)
	}
	return v.(*Freshness)
}

// Mounted reports whether q already has a controller
func (r *Registry) Mounted(q StopQuery) bool {
	return r.controllers.Has(q)
}

// Len returns the number of mounted controllers
func (r *Registry) Len() int {
	return r.controllers.Len(false)
}

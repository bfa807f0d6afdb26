package query

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/bluele/gcache"
	"golang.org/x/sync/singleflight"
)

// Status describes where a keyed fetch currently stands
type Status int

const (
	StatusIdle Status = iota
	StatusPending
	StatusSuccess
	StatusError
)

func (s Status) String() string {
	switch s {
	case StatusPending:
		return "pending"
	case StatusSuccess:
		return "success"
	case StatusError:
		return "error"
	default:
		return "idle"
	}
}

// MarshalText renders the status by name in JSON payloads
func (s Status) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Key is the identity of a fetch. Two fetches share a cached result
// only when kind, identity and token all match.
type Key struct {
	Kind     string
	Identity string
	Token    int64
}

func (k Key) String() string {
	return fmt.Sprintf("%s/%s@%d", k.Kind, k.Identity, k.Token)
}

// Intent declares a fetch. A disabled intent never performs I/O and only
// reports what is already known for its key.
type Intent[T any] struct {
	Key     Key
	Enabled bool
	Fn      func(ctx context.Context) (T, error)
}

// Result is the observable state of a fetch. Err may be set alongside
// StatusPending when a retry is running after a failure.
type Result[T any] struct {
	Data      T
	Status    Status
	Err       error
	Key       Key
	UpdatedAt time.Time
}

// Observer receives one call per executed fetch
type Observer interface {
	ObserveFetch(kind string, elapsed time.Duration, err error)
}

// Options configures a Client
type Options struct {
	Size              int
	TTL               time.Duration
	BackgroundTimeout time.Duration
	Observers         []Observer
}

type entry struct {
	data any
	at   time.Time
}

// Client caches keyed fetch results and de-duplicates concurrent fetches
// of the same key.
type Client struct {
	results  gcache.Cache
	failures gcache.Cache
	group    singleflight.Group

	ttl               time.Duration
	backgroundTimeout time.Duration
	observers         []Observer

	mu       sync.Mutex
	inflight map[Key]int
}

// NewClient creates a query client backed by two LRU caches, one for
// successful results and one remembering the last failure per key.
func NewClient(opts Options) *Client {
	if opts.Size <= 0 {
		opts.Size = 1024
	}
	if opts.TTL <= 0 {
		opts.TTL = 5 * time.Minute
	}
	if opts.BackgroundTimeout <= 0 {
		opts.BackgroundTimeout = 30 * time.Second
	}
	return &Client{
		results:           gcache.New(opts.Size).LRU().Build(),
		failures:          gcache.New(opts.Size).LRU().Build(),
		ttl:               opts.TTL,
		backgroundTimeout: opts.BackgroundTimeout,
		observers:         opts.Observers,
		inflight:          make(map[Key]int),
	}
}

// Fetch resolves an intent. Cached data is returned without I/O; a disabled
// intent stops there. An enabled intent on a cache miss runs its fetcher
// once, shared with any concurrent caller using the same key. The shared
// fetch does not inherit any caller's cancellation; a caller whose ctx ends
// stops waiting and gets StatusPending while the fetch carries on.
func Fetch[T any](ctx context.Context, c *Client, in Intent[T]) Result[T] {
	if res, ok := cached[T](c, in.Key); ok {
		return res
	}
	if !in.Enabled || in.Fn == nil {
		return Peek[T](c, in.Key)
	}

	ch := c.group.DoChan(in.Key.String(), func() (any, error) {
		c.begin(in.Key)
		defer c.end(in.Key)

		fetchCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.backgroundTimeout)
		defer cancel()

		start := time.Now()
		data, err := in.Fn(fetchCtx)
		c.observe(in.Key.Kind, time.Since(start), err)
		if err != nil {
			if !isContextErr(err) {
				c.failures.Set(in.Key, err)
			}
			return nil, err
		}
		e := entry{data: data, at: time.Now().UTC()}
		if setErr := c.results.SetWithExpire(in.Key, e, c.ttl); setErr != nil {
			log.Printf("Query: failed to cache %s: %v", in.Key, setErr)
		}
		c.failures.Remove(in.Key)
		return e, nil
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return Result[T]{Status: StatusError, Err: res.Err, Key: in.Key}
		}
		e := res.Val.(entry)
		data, _ := e.data.(T)
		return Result[T]{Data: data, Status: StatusSuccess, Key: in.Key, UpdatedAt: e.at}
	case <-ctx.Done():
		return Result[T]{Status: StatusPending, Err: ctx.Err(), Key: in.Key}
	}
}

// Prefetch starts an enabled intent in the background unless its key is
// already cached or in flight. Fetch bounds it by the background timeout.
func Prefetch[T any](c *Client, in Intent[T]) {
	if !in.Enabled || in.Fn == nil {
		return
	}
	if _, ok := cached[T](c, in.Key); ok {
		return
	}

	c.mu.Lock()
	if c.inflight[in.Key] > 0 {
		c.mu.Unlock()
		return
	}
	c.inflight[in.Key]++
	c.mu.Unlock()

	go func() {
		defer c.end(in.Key)
		if res := Fetch(context.Background(), c, in); res.Err != nil {
			log.Printf("Query: background fetch %s failed: %v", in.Key, res.Err)
		}
	}()
}

// Peek reports what is known for a key without performing I/O
func Peek[T any](c *Client, key Key) Result[T] {
	if res, ok := cached[T](c, key); ok {
		return res
	}

	var lastErr error
	if v, err := c.failures.GetIFPresent(key); err == nil {
		lastErr, _ = v.(error)
	}

	c.mu.Lock()
	pending := c.inflight[key] > 0
	c.mu.Unlock()

	switch {
	case pending:
		return Result[T]{Status: StatusPending, Err: lastErr, Key: key}
	case lastErr != nil:
		return Result[T]{Status: StatusError, Err: lastErr, Key: key}
	default:
		return Result[T]{Status: StatusIdle, Key: key}
	}
}

// Invalidate drops the cached result and remembered failure for a key
func (c *Client) Invalidate(key Key) {
	c.results.Remove(key)
	c.failures.Remove(key)
}

// Len returns the number of cached results
func (c *Client) Len() int {
	return c.results.Len(true)
}

func cached[T any](c *Client, key Key) (Result[T], bool) {
	v, err := c.results.GetIFPresent(key)
	if err != nil {
		return Result[T]{}, false
	}
	e, ok := v.(entry)
	if !ok {
		return Result[T]{}, false
	}
	data, ok := e.data.(T)
	if !ok {
		return Result[T]{}, false
	}
	return Result[T]{Data: data, Status: StatusSuccess, Key: key, UpdatedAt: e.at}, true
}

// isContextErr reports cancellations and timeouts, which say nothing about
// the upstream and are not remembered as failures
func isContextErr(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

func (c *Client) begin(key Key) {
	c.mu.Lock()
	c.inflight[key]++
	c.mu.Unlock()
}

func (c *Client) end(key Key) {
	c.mu.Lock()
	if c.inflight[key] <= 1 {
		delete(c.inflight, key)
	} else {
		c.inflight[key]--
	}
	c.mu.Unlock()
}

func (c *Client) observe(kind string, elapsed time.Duration, err error) {
	for _, o := range c.observers {
		o.ObserveFetch(kind, elapsed, err)
	}
}

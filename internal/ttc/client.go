package ttc

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// ErrUpstreamStatus is wrapped by errors for non-200 upstream responses
var ErrUpstreamStatus = errors.New("upstream returned non-200 status")

// Fetcher is the pair of upstream prediction operations
type Fetcher interface {
	FetchSubway(ctx context.Context, stopNum int) ([]SubwayPrediction, error)
	FetchBus(ctx context.Context, stopNum, line int) ([]BusPrediction, error)
}

// Client fetches predictions from the TTC next-vehicle endpoints
type Client struct {
	subwayURL  string
	busURL     string
	maxElapsed time.Duration
	client     *http.Client
}

// NewClient creates a new prediction client. subwayURL takes the stop number,
// busURL takes the line and the stop number, both as %d verbs.
func NewClient(subwayURL, busURL string, timeout, maxElapsed time.Duration) *Client {
	return &Client{
		subwayURL:  subwayURL,
		busURL:     busURL,
		maxElapsed: maxElapsed,
		client: &http.Client{
			Timeout: timeout,
		},
	}
}

// FetchSubway fetches next-train predictions for a subway platform stop
func (c *Client) FetchSubway(ctx context.Context, stopNum int) ([]SubwayPrediction, error) {
	body, err := c.get(ctx, fmt.Sprintf(c.subwayURL, stopNum))
	if err != nil {
		return nil, fmt.Errorf("failed to fetch subway stop %d: %w", stopNum, err)
	}
	preds, err := decodeList[SubwayPrediction](body)
	if err != nil {
		return nil, fmt.Errorf("failed to decode subway stop %d: %w", stopNum, err)
	}
	return preds, nil
}

// FetchBus fetches the flat list of upcoming buses for a line at a stop
func (c *Client) FetchBus(ctx context.Context, stopNum, line int) ([]BusPrediction, error) {
	body, err := c.get(ctx, fmt.Sprintf(c.busURL, line, stopNum))
	if err != nil {
		return nil, fmt.Errorf("failed to fetch bus %d at stop %d: %w", line, stopNum, err)
	}
	preds, err := decodeList[BusPrediction](body)
	if err != nil {
		return nil, fmt.Errorf("failed to decode bus %d at stop %d: %w", line, stopNum, err)
	}
	return preds, nil
}

// get performs the request, retrying network errors, 429 and 5xx responses
// until maxElapsed runs out. Other statuses fail immediately.
func (c *Client) get(ctx context.Context, url string) ([]byte, error) {
	var b backoff.BackOff = &backoff.StopBackOff{}
	if c.maxElapsed > 0 {
		exp := backoff.NewExponentialBackOff()
		exp.InitialInterval = 250 * time.Millisecond
		exp.MaxInterval = 2 * time.Second
		exp.MaxElapsedTime = c.maxElapsed
		b = exp
	}

	op := func() ([]byte, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return nil, backoff.Permanent(err)
		}
		req.Header.Set("Accept", "application/json")

		resp, err := c.client.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return nil, backoff.Permanent(err)
			}
			return nil, err
		}
		defer resp.Body.Close()

		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, err
		}

		if resp.StatusCode != http.StatusOK {
			statusErr := fmt.Errorf("%w: %d: %s", ErrUpstreamStatus, resp.StatusCode, truncate(body, 200))
			if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
				return nil, statusErr
			}
			return nil, backoff.Permanent(statusErr)
		}
		return body, nil
	}

	return backoff.RetryNotifyWithData(op, backoff.WithContext(b, ctx), func(err error, d time.Duration) {
		log.Printf("TTC: retrying in %s: %v", d, err)
	})
}

// decodeList decodes either a JSON array or a single JSON object into a
// non-nil slice, so a successful fetch is never confused with absent data.
func decodeList[T any](body []byte) ([]T, error) {
	trimmed := bytes.TrimSpace(body)
	out := make([]T, 0)

	switch {
	case len(trimmed) == 0, bytes.Equal(trimmed, []byte("null")):
		return out, nil
	case trimmed[0] == '{':
		var single T
		if err := json.Unmarshal(trimmed, &single); err != nil {
			return nil, err
		}
		return append(out, single), nil
	default:
		if err := json.Unmarshal(trimmed, &out); err != nil {
			return nil, err
		}
		if out == nil {
			out = make([]T, 0)
		}
		return out, nil
	}
}

func truncate(b []byte, n int) string {
	if len(b) > n {
		return string(b[:n]) + "..."
	}
	return string(b)
}

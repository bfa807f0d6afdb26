package eta

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/mini-ttc/etaboard/internal/query"
	"github.com/mini-ttc/etaboard/internal/ttc"
)

// MaxSubwayLine is the highest line number served by the subway endpoint
const MaxSubwayLine = 6

// ErrInvalidQuery is returned for stop queries with non-positive numbers
var ErrInvalidQuery = errors.New("invalid stop query")

// Source identifies which upstream endpoint answers a stop query
type Source int

const (
	SourceSubway Source = iota
	SourceBus
)

// SelectSource maps a line number to its prediction source
func SelectSource(line int) Source {
	if line <= MaxSubwayLine {
		return SourceSubway
	}
	return SourceBus
}

func (s Source) String() string {
	if s == SourceBus {
		return "bus"
	}
	return "subway"
}

// MarshalText renders the source by name in JSON payloads
func (s Source) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// StopQuery identifies one stop board: a line at a stop
type StopQuery struct {
	Line    int `json:"line"`
	StopNum int `json:"stopNum"`
}

// Validate rejects non-positive line or stop numbers
func (q StopQuery) Validate() error {
	if q.Line <= 0 || q.StopNum <= 0 {
		return fmt.Errorf("%w: line=%d stop=%d", ErrInvalidQuery, q.Line, q.StopNum)
	}
	return nil
}

// Source returns the prediction source for the query's line
func (q StopQuery) Source() Source {
	return SelectSource(q.Line)
}

// SubwayKey is the fetch identity of a subway stop under a freshness token
func SubwayKey(stopNum int, token Token) query.Key {
	return query.Key{Kind: ttc.KindSubway, Identity: strconv.Itoa(stopNum), Token: int64(token)}
}

// BusKey is the fetch identity of a bus line at a stop under a freshness token
func BusKey(line, stopNum int, token Token) query.Key {
	return query.Key{Kind: ttc.KindBus, Identity: fmt.Sprintf("%d-%d", line, stopNum), Token: int64(token)}
}

package eta

import (
	"math"
	"strconv"
	"strings"
	"unicode"

	"github.com/mini-ttc/etaboard/internal/ttc"
)

// Countdown is the time until one arrival. An invalid countdown comes from
// an upstream value that did not parse and is rendered as null.
type Countdown struct {
	Seconds int
	Valid   bool
}

// MarshalJSON renders seconds as a number, or null when invalid
func (c Countdown) MarshalJSON() ([]byte, error) {
	if !c.Valid {
		return []byte("null"), nil
	}
	return strconv.AppendInt(nil, int64(c.Seconds), 10), nil
}

// UnmarshalJSON accepts a number or null
func (c *Countdown) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*c = Countdown{}
		return nil
	}
	n, err := strconv.Atoi(string(data))
	if err != nil {
		return err
	}
	*c = Countdown{Seconds: n, Valid: true}
	return nil
}

// Responses holds whatever the two fetchers have returned for the current
// token. A nil slice means no data yet; an empty slice is a resolved fetch
// with no entries.
type Responses struct {
	Subway []ttc.SubwayPrediction
	Bus    []ttc.BusPrediction
}

// PrimaryRecord is the first record of the active dataset. Empty marks a
// record derived from a resolved but empty dataset.
type PrimaryRecord struct {
	Source          Source `json:"source"`
	DestinationSign string `json:"destinationSign"`
	DirectionText   string `json:"directionText"`
	Error           bool   `json:"error"`
	Empty           bool   `json:"empty,omitempty"`
	Raw             any    `json:"raw,omitempty"`
}

// Normalized is the reconciled view of both sources
type Normalized struct {
	Primary *PrimaryRecord
	ETA     []Countdown
}

// Normalize picks the active dataset and converts its arrival entries to
// countdowns in upstream order. Bus data wins whenever it is present.
func Normalize(r Responses) Normalized {
	out := Normalized{ETA: []Countdown{}}

	if r.Bus != nil {
		if len(r.Bus) == 0 {
			out.Primary = &PrimaryRecord{Source: SourceBus, Empty: true}
			return out
		}
		first := r.Bus[0]
		out.Primary = &PrimaryRecord{
			Source:          SourceBus,
			DestinationSign: first.DestinationSign,
			DirectionText:   first.DirectionText,
			Error:           first.Error,
			Raw:             first,
		}
		for _, b := range r.Bus {
			out.ETA = append(out.ETA, minutesToCountdown(b.NextBusMinutes))
		}
		return out
	}

	if r.Subway == nil {
		return out
	}
	if len(r.Subway) == 0 {
		out.Primary = &PrimaryRecord{Source: SourceSubway, Empty: true}
		return out
	}
	first := r.Subway[0]
	out.Primary = &PrimaryRecord{
		Source:          SourceSubway,
		DestinationSign: first.DestinationSign,
		DirectionText:   first.DirectionText,
		Error:           first.Error,
		Raw:             first,
	}
	for _, m := range strings.Split(first.NextTrains, ",") {
		out.ETA = append(out.ETA, minutesToCountdown(m))
	}
	return out
}

func minutesToCountdown(s string) Countdown {
	n, ok := parseInteger(s)
	if !ok || n > math.MaxInt/60 || n < math.MinInt/60 {
		return Countdown{}
	}
	return Countdown{Seconds: n * 60, Valid: true}
}

// parseInteger reads a leading base-10 integer the way lenient form inputs
// do: leading whitespace and an optional sign are allowed, trailing text
// after the digits is ignored, and no digits at all is a failure.
func parseInteger(s string) (int, bool) {
	s = strings.TrimLeftFunc(s, unicode.IsSpace)

	sign := ""
	if s != "" && (s[0] == '+' || s[0] == '-') {
		sign, s = s[:1], s[1:]
	}

	end := 0
	for end < len(s) && s[end] >= '0' && s[end] <= '9' {
		end++
	}
	if end == 0 {
		return 0, false
	}

	n, err := strconv.Atoi(sign + s[:end])
	if err != nil {
		return 0, false
	}
	return n, true
}

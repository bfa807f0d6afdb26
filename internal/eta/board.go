package eta

import (
	"strconv"
	"time"
)

// Message keys emitted in place of translated text
const (
	MsgLoading       = "reminder.loading"
	MsgFailToLocate  = "reminder.failToLocate"
	MsgNoEta         = "reminder.noEta"
	MsgRefreshButton = "buttons.refresh"
)

// Alert list display modes
const (
	AlertModeCompact = "compact"
	AlertModeFull    = "full"
)

// BookmarkTypeSubway is the category every stop board bookmark is saved under
const BookmarkTypeSubway = "ttc-subway"

// AlertScope tells the alert list which lines to show and how
type AlertScope struct {
	Lines []int  `json:"lines"`
	Mode  string `json:"mode"`
}

// Bookmark is the payload a bookmark control saves for this board
type Bookmark struct {
	StopID int      `json:"stopId"`
	Name   string   `json:"name"`
	TtcID  int      `json:"ttcId"`
	Lines  []string `json:"lines"`
	Type   string   `json:"type"`
}

// Board is the view model of one stop board
type Board struct {
	State   State     `json:"state"`
	Query   StopQuery `json:"query"`
	Source  Source    `json:"source"`
	Token   Token     `json:"token"`
	Message string    `json:"message,omitempty"`
	Titles  []string  `json:"titles,omitempty"`
	Refresh string    `json:"refresh,omitempty"`

	Alerts   *AlertScope    `json:"alerts,omitempty"`
	Bookmark *Bookmark      `json:"bookmark,omitempty"`
	ETA      []Countdown    `json:"eta,omitempty"`
	Raw      *PrimaryRecord `json:"raw,omitempty"`

	FetchError string     `json:"fetchError,omitempty"`
	UpdatedAt  *time.Time `json:"updatedAt,omitempty"`
}

// BuildBoard lays out the board for a normalized result. A NOT_FOUND board
// carries only its message: no refresh control and no metadata.
func BuildBoard(q StopQuery, n Normalized, stations StationLookup) Board {
	b := Board{
		State:  Classify(n.Primary),
		Query:  q,
		Source: q.Source(),
	}

	switch b.State {
	case StateLoading:
		b.Message = MsgLoading
		b.Refresh = MsgRefreshButton
		return b
	case StateNotFound:
		b.Message = MsgFailToLocate
		return b
	}

	p := n.Primary
	// Title slots are positional; an empty upstream field stays an empty slot
	if q.Line > MaxSubwayLine {
		b.Titles = append(b.Titles, p.DestinationSign)
	}
	if stations != nil {
		if meta, ok := stations.Station(q.StopNum); ok {
			b.Titles = append(b.Titles, meta.DisplayName(), p.DirectionText)
		}
	}

	b.Alerts = &AlertScope{Lines: []int{q.Line}, Mode: AlertModeCompact}
	b.Refresh = MsgRefreshButton

	name := p.DirectionText
	if name == "" {
		name = strconv.Itoa(q.StopNum)
	}
	b.Bookmark = &Bookmark{
		StopID: q.StopNum,
		Name:   name,
		TtcID:  q.StopNum,
		Lines:  []string{strconv.Itoa(q.Line)},
		Type:   BookmarkTypeSubway,
	}

	if len(n.ETA) == 0 {
		b.Message = MsgNoEta
	} else {
		b.ETA = n.ETA
	}
	b.Raw = p
	return b
}

package alerts

import (
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"regexp"
	"time"

	"google.golang.org/protobuf/proto"

	gtfs "github.com/MobilityData/gtfs-realtime-bindings/golang/gtfs"

	"github.com/mini-ttc/etaboard/internal/db"
)

// lineRouteRe matches TTC route IDs that are plain line numbers ("1", "501")
var lineRouteRe = regexp.MustCompile(`^\d+$`)

// Store is the persistence the poller writes to
type Store interface {
	UpsertAlerts(ctx context.Context, alerts []db.Alert) error
	MarkResolvedAlerts(ctx context.Context, activeIDs []string) error
}

// ParsedAlert represents a service alert extracted from GTFS-RT
type ParsedAlert struct {
	AlertID           string
	Cause             string
	Effect            string
	HeaderText        string
	DescriptionText   string
	URL               string
	ActivePeriodStart *time.Time
	ActivePeriodEnd   *time.Time
	Entities          []db.AlertEntity
}

// CauseMap maps GTFS-RT Cause enum to string
var CauseMap = map[int32]string{
	1:  "UNKNOWN_CAUSE",
	2:  "OTHER_CAUSE",
	3:  "TECHNICAL_PROBLEM",
	4:  "STRIKE",
	5:  "DEMONSTRATION",
	6:  "ACCIDENT",
	7:  "HOLIDAY",
	8:  "WEATHER",
	9:  "MAINTENANCE",
	10: "CONSTRUCTION",
	11: "POLICE_ACTIVITY",
	12: "MEDICAL_EMERGENCY",
}

// EffectMap maps GTFS-RT Effect enum to string
var EffectMap = map[int32]string{
	1:  "NO_SERVICE",
	2:  "REDUCED_SERVICE",
	3:  "SIGNIFICANT_DELAYS",
	4:  "DETOUR",
	5:  "ADDITIONAL_SERVICE",
	6:  "MODIFIED_SERVICE",
	7:  "OTHER_EFFECT",
	8:  "UNKNOWN_EFFECT",
	9:  "STOP_MOVED",
	10: "NO_EFFECT",
	11: "ACCESSIBILITY_ISSUE",
}

// Poller polls the TTC GTFS-RT service alerts feed
type Poller struct {
	store  Store
	url    string
	client *http.Client
}

// NewPoller creates a new alerts poller
func NewPoller(store Store, url string) *Poller {
	return &Poller{
		store: store,
		url:   url,
		client: &http.Client{
			Timeout: 15 * time.Second,
		},
	}
}

// Poll fetches alerts and stores them, marking alerts that left the feed as
// resolved. It returns the number of active alerts.
func (p *Poller) Poll(ctx context.Context) (int, error) {
	alerts, err := p.fetchAlerts(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to fetch alerts: %w", err)
	}

	now := time.Now().UTC()

	dbAlerts := make([]db.Alert, 0, len(alerts))
	activeIDs := make([]string, 0, len(alerts))
	for _, a := range alerts {
		dbAlert := db.Alert{
			AlertID:         a.AlertID,
			Cause:           a.Cause,
			Effect:          a.Effect,
			HeaderText:      a.HeaderText,
			DescriptionText: a.DescriptionText,
			URL:             a.URL,
			LastSeenAt:      now,
			Entities:        a.Entities,
		}
		if a.ActivePeriodStart != nil {
			s := a.ActivePeriodStart.Format(time.RFC3339)
			dbAlert.ActivePeriodStart = &s
		}
		if a.ActivePeriodEnd != nil {
			s := a.ActivePeriodEnd.Format(time.RFC3339)
			dbAlert.ActivePeriodEnd = &s
		}
		dbAlerts = append(dbAlerts, dbAlert)
		activeIDs = append(activeIDs, a.AlertID)
	}

	if err := p.store.UpsertAlerts(ctx, dbAlerts); err != nil {
		return 0, err
	}
	if err := p.store.MarkResolvedAlerts(ctx, activeIDs); err != nil {
		return 0, err
	}

	log.Printf("Alerts: polled %d alerts", len(alerts))
	return len(alerts), nil
}

// fetchAlerts fetches and parses the alerts feed, keeping alerts that
// affect at least one numbered line
func (p *Poller) fetchAlerts(ctx context.Context) ([]ParsedAlert, error) {
	feed, err := p.fetchFeed(ctx)
	if err != nil {
		return nil, err
	}

	var alerts []ParsedAlert
	for _, entity := range feed.Entity {
		if entity.Alert == nil || entity.Id == nil {
			continue
		}
		parsed := parseAlert(*entity.Id, entity.Alert)
		if affectsLine(parsed) {
			alerts = append(alerts, parsed)
		}
	}
	return alerts, nil
}

func parseAlert(id string, alert *gtfs.Alert) ParsedAlert {
	parsed := ParsedAlert{AlertID: id}

	if alert.Cause != nil {
		parsed.Cause = CauseMap[int32(*alert.Cause)]
	}
	if alert.Effect != nil {
		parsed.Effect = EffectMap[int32(*alert.Effect)]
	}

	// Active periods (use first one if multiple)
	if len(alert.ActivePeriod) > 0 {
		period := alert.ActivePeriod[0]
		if period.Start != nil && *period.Start > 0 {
			t := time.Unix(int64(*period.Start), 0).UTC()
			parsed.ActivePeriodStart = &t
		}
		if period.End != nil && *period.End > 0 {
			t := time.Unix(int64(*period.End), 0).UTC()
			parsed.ActivePeriodEnd = &t
		}
	}

	parsed.HeaderText = englishText(alert.HeaderText)
	parsed.DescriptionText = englishText(alert.DescriptionText)
	parsed.URL = englishText(alert.Url)

	for _, ie := range alert.InformedEntity {
		e := db.AlertEntity{}
		if ie.RouteId != nil {
			e.RouteID = *ie.RouteId
		}
		if ie.StopId != nil {
			e.StopID = *ie.StopId
		}
		if ie.Trip != nil && ie.Trip.TripId != nil {
			e.TripID = *ie.Trip.TripId
		}
		parsed.Entities = append(parsed.Entities, e)
	}

	return parsed
}

// englishText picks the English translation, falling back to the first
// untagged one
func englishText(ts *gtfs.TranslatedString) string {
	if ts == nil {
		return ""
	}
	fallback := ""
	for _, tr := range ts.Translation {
		if tr.Text == nil {
			continue
		}
		lang := tr.GetLanguage()
		if lang == "en" || lang == "en-CA" {
			return *tr.Text
		}
		if fallback == "" && lang == "" {
			fallback = *tr.Text
		}
	}
	return fallback
}

// affectsLine reports whether any informed entity references a numbered line
func affectsLine(a ParsedAlert) bool {
	for _, e := range a.Entities {
		if lineRouteRe.MatchString(e.RouteID) {
			return true
		}
	}
	return false
}

func (p *Poller) fetchFeed(ctx context.Context) (*gtfs.FeedMessage, error) {
	req, err := http.NewRequestWithContext(ctx, "GET", p.url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch feed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("feed returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	feed := &gtfs.FeedMessage{}
	if err := proto.Unmarshal(body, feed); err != nil {
		return nil, fmt.Errorf("failed to parse protobuf: %w", err)
	}

	return feed, nil
}

package alerts

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/proto"

	gtfs "github.com/MobilityData/gtfs-realtime-bindings/golang/gtfs"

	"github.com/mini-ttc/etaboard/internal/db"
)

type memoryStore struct {
	upserted []db.Alert
	active   []string
}

func (m *memoryStore) UpsertAlerts(ctx context.Context, alerts []db.Alert) error {
	m.upserted = alerts
	return nil
}

func (m *memoryStore) MarkResolvedAlerts(ctx context.Context, activeIDs []string) error {
	m.active = activeIDs
	return nil
}

func translated(pairs ...string) *gtfs.TranslatedString {
	ts := &gtfs.TranslatedString{}
	for i := 0; i+1 < len(pairs); i += 2 {
		tr := &gtfs.TranslatedString_Translation{Text: proto.String(pairs[i+1])}
		if pairs[i] != "" {
			tr.Language = proto.String(pairs[i])
		}
		ts.Translation = append(ts.Translation, tr)
	}
	return ts
}

func testFeed(t *testing.T) []byte {
	t.Helper()
	cause := gtfs.Alert_CONSTRUCTION
	effect := gtfs.Alert_DETOUR
	feed := &gtfs.FeedMessage{
		Header: &gtfs.FeedHeader{GtfsRealtimeVersion: proto.String("2.0")},
		Entity: []*gtfs.FeedEntity{
			{
				Id: proto.String("queen-diversion"),
				Alert: &gtfs.Alert{
					Cause:           &cause,
					Effect:          &effect,
					ActivePeriod:    []*gtfs.TimeRange{{Start: proto.Uint64(1709280000)}},
					InformedEntity:  []*gtfs.EntitySelector{{RouteId: proto.String("501")}, {StopId: proto.String("3050")}},
					HeaderText:      translated("fr", "Détour", "en", "501 Queen diverting"),
					DescriptionText: translated("", "Streetcars divert via King"),
				},
			},
			{
				Id: proto.String("elevator"),
				Alert: &gtfs.Alert{
					InformedEntity: []*gtfs.EntitySelector{{StopId: proto.String("14457")}},
					HeaderText:     translated("en", "Elevator out of service"),
				},
			},
			{Id: proto.String("no-alert")},
		},
	}
	body, err := proto.Marshal(feed)
	require.NoError(t, err)
	return body
}

func TestPoll_StoresLineAlerts(t *testing.T) {
	body := testFeed(t)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(body)
	}))
	defer srv.Close()

	store := &memoryStore{}
	n, err := NewPoller(store, srv.URL).Poll(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	require.Len(t, store.upserted, 1)
	a := store.upserted[0]
	assert.Equal(t, "queen-diversion", a.AlertID)
	assert.Equal(t, "CONSTRUCTION", a.Cause)
	assert.Equal(t, "DETOUR", a.Effect)
	assert.Equal(t, "501 Queen diverting", a.HeaderText)
	assert.Equal(t, "Streetcars divert via King", a.DescriptionText)
	require.NotNil(t, a.ActivePeriodStart)
	assert.Equal(t, "2024-03-01T08:00:00Z", *a.ActivePeriodStart)
	assert.Nil(t, a.ActivePeriodEnd)
	assert.Len(t, a.Entities, 2)

	assert.Equal(t, []string{"queen-diversion"}, store.active)
}

func TestPoll_BadStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	store := &memoryStore{}
	_, err := NewPoller(store, srv.URL).Poll(context.Background())
	require.Error(t, err)
	assert.Nil(t, store.active)
}

func TestPoll_MalformedFeed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("not protobuf at all \xff\xff"))
	}))
	defer srv.Close()

	_, err := NewPoller(&memoryStore{}, srv.URL).Poll(context.Background())
	require.Error(t, err)
}

func TestEnglishText(t *testing.T) {
	assert.Equal(t, "", englishText(nil))
	assert.Equal(t, "hello", englishText(translated("fr", "bonjour", "en", "hello")))
	assert.Equal(t, "untagged", englishText(translated("", "untagged", "fr", "non")))
	assert.Equal(t, "", englishText(translated("fr", "seulement")))
}

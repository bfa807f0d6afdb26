package repository

import (
	"context"
	"encoding/json"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mini-ttc/etaboard/internal/db"
	"github.com/mini-ttc/etaboard/internal/models"
)

// setupSQLite creates a schema through the writer and opens a reader pool on it
func setupSQLite(t *testing.T) (*db.DB, *SQLiteDB) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "repo.db")

	writer, err := db.Connect(path)
	require.NoError(t, err)
	t.Cleanup(func() { writer.Close() })
	require.NoError(t, writer.EnsureSchema(context.Background()))

	reader, err := NewSQLiteDB(path)
	require.NoError(t, err)
	t.Cleanup(func() { reader.Close() })
	return writer, reader
}

func TestSQLiteStationRepository(t *testing.T) {
	writer, reader := setupSQLite(t)
	ctx := context.Background()

	_, err := writer.ReplaceStations(ctx, []db.Station{
		{StopNum: 14457, StopID: "14457", Name: "Bloor-Yonge Station - Southbound Platform", Direction: "Southbound", Latitude: 43.67, Longitude: -79.38},
		{StopNum: 3050, StopID: "3050", Name: "Queen St West at Spadina Ave"},
	})
	require.NoError(t, err)

	repo := NewSQLiteStationRepository(reader.GetDB())

	all, err := repo.GetAllStations(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, 3050, all[0].StopNum)
	assert.Nil(t, all[0].Direction)
	assert.Nil(t, all[0].Latitude)

	s, err := repo.GetStation(ctx, 14457)
	require.NoError(t, err)
	require.NotNil(t, s.Direction)
	assert.Equal(t, "Southbound", *s.Direction)
	require.NotNil(t, s.Latitude)
	assert.InDelta(t, 43.67, *s.Latitude, 1e-9)

	_, err = repo.GetStation(ctx, 1)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSQLiteAlertRepository(t *testing.T) {
	writer, reader := setupSQLite(t)
	ctx := context.Background()
	now := time.Now().UTC()

	require.NoError(t, writer.UpsertAlerts(ctx, []db.Alert{
		{AlertID: "queen", HeaderText: "501 Queen diversion", LastSeenAt: now,
			Entities: []db.AlertEntity{{RouteID: "501"}, {RouteID: "301"}, {StopID: "3050"}}},
		{AlertID: "subway", HeaderText: "Line 1 delay", DescriptionText: "Signal problem", LastSeenAt: now,
			Entities: []db.AlertEntity{{RouteID: "1"}}},
		{AlertID: "gone", HeaderText: "Resolved", LastSeenAt: now,
			Entities: []db.AlertEntity{{RouteID: "1"}}},
	}))
	require.NoError(t, writer.MarkResolvedAlerts(ctx, []string{"queen", "subway"}))

	repo := NewSQLiteAlertRepository(reader.GetDB())

	all, err := repo.GetActiveAlerts(ctx, nil)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	line1, err := repo.GetActiveAlerts(ctx, []int{1})
	require.NoError(t, err)
	require.Len(t, line1, 1)
	assert.Equal(t, "subway", line1[0].AlertID)
	assert.Equal(t, "Signal problem", line1[0].DescriptionText)
	assert.Equal(t, []string{"1"}, line1[0].AffectedLines)

	queen, err := repo.GetActiveAlerts(ctx, []int{501, 504})
	require.NoError(t, err)
	require.Len(t, queen, 1)
	assert.Equal(t, []string{"301", "501"}, queen[0].AffectedLines)

	none, err := repo.GetActiveAlerts(ctx, []int{29})
	require.NoError(t, err)
	assert.NotNil(t, none)
	assert.Empty(t, none)
}

func TestSQLiteBookmarkRepository(t *testing.T) {
	_, reader := setupSQLite(t)
	ctx := context.Background()
	repo := NewSQLiteBookmarkRepository(reader.GetDB())

	b := models.Bookmark{StopID: 14457, Name: "Southbound", TtcID: 14457, Lines: []string{"1"}, Type: "ttc-subway"}
	saved, err := repo.SaveBookmark(ctx, b)
	require.NoError(t, err)
	assert.NotEmpty(t, saved.ID)

	b.Name = "Bloor southbound"
	again, err := repo.SaveBookmark(ctx, b)
	require.NoError(t, err)
	assert.Equal(t, saved.ID, again.ID, "re-saving the same board renames it")

	list, err := repo.ListBookmarks(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "Bloor southbound", list[0].Name)
	assert.Equal(t, []string{"1"}, list[0].Lines)

	require.NoError(t, repo.DeleteBookmark(ctx, saved.ID))
	assert.ErrorIs(t, repo.DeleteBookmark(ctx, saved.ID), ErrNotFound)
}

func TestSQLiteSnapshotRepository(t *testing.T) {
	writer, reader := setupSQLite(t)
	ctx := context.Background()
	base := time.Date(2024, 3, 1, 8, 0, 0, 0, time.UTC)

	for i := 0; i < 3; i++ {
		_, err := writer.CreatePredictionSnapshot(ctx, db.PredictionSnapshot{
			Kind: "ttc-bus-basic", Line: 501, StopNum: 3050, EntryCount: i,
			Payload: []byte(`[]`), PolledAt: base.Add(time.Duration(i) * time.Minute),
		})
		require.NoError(t, err)
	}
	_, err := writer.CreatePredictionSnapshot(ctx, db.PredictionSnapshot{
		Kind: "ttc-subway-stop", Line: 1, StopNum: 14457, Payload: []byte(`[{"nextTrains":"1"}]`), PolledAt: base,
	})
	require.NoError(t, err)

	repo := NewSQLiteSnapshotRepository(reader.GetDB())
	snaps, err := repo.GetRecentSnapshots(ctx, 501, 3050, 2)
	require.NoError(t, err)
	require.Len(t, snaps, 2)
	assert.Equal(t, 2, snaps[0].EntryCount)
	assert.Equal(t, base.Add(2*time.Minute), snaps[0].PolledAt)
	assert.JSONEq(t, `[]`, string(snaps[0].Payload))

	out, err := json.Marshal(snaps[0])
	require.NoError(t, err)
	assert.Contains(t, string(out), `"payload":[]`)
}

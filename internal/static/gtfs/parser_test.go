package gtfs

import (
	"archive/zip"
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const stopsTxt = "\uFEFFstop_id,stop_code,stop_name,stop_desc,stop_lat,stop_lon,location_type,parent_station\n" +
	"14457,14457,Bloor-Yonge Station - Southbound Platform,,43.670,-79.386,0,\n" +
	"3050,3050,Queen St West at Spadina Ave,,43.648,-79.396,,\n" +
	"9000,,Union Station,,43.645,-79.380,1,\n" +
	"bad,row\n"

func writeZip(t *testing.T, files map[string]string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "gtfs.zip")
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()

	zw := zip.NewWriter(f)
	for name, content := range files {
		w, err := zw.Create(name)
		require.NoError(t, err)
		_, err = w.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	return path
}

func TestParseStops(t *testing.T) {
	path := writeZip(t, map[string]string{"stops.txt": stopsTxt, "routes.txt": "route_id\n1\n"})

	stops, err := ParseStops(path)
	require.NoError(t, err)
	require.Len(t, stops, 4)

	assert.Equal(t, "14457", stops[0].StopID)
	assert.Equal(t, "Bloor-Yonge Station - Southbound Platform", stops[0].StopName)
	assert.InDelta(t, 43.670, stops[0].StopLat, 1e-9)
	assert.Equal(t, 1, stops[2].LocationType)

	n, ok := stops[0].StopNum()
	assert.True(t, ok)
	assert.Equal(t, 14457, n)

	n, ok = stops[2].StopNum()
	assert.True(t, ok, "falls back to stop_id")
	assert.Equal(t, 9000, n)

	_, ok = stops[3].StopNum()
	assert.False(t, ok)
}

func TestParseStops_MissingFile(t *testing.T) {
	path := writeZip(t, map[string]string{"routes.txt": "route_id\n1\n"})
	_, err := ParseStops(path)
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "stops.txt not found"))

	_, err = ParseStops(filepath.Join(t.TempDir(), "missing.zip"))
	require.Error(t, err)
}

func TestDirection(t *testing.T) {
	assert.Equal(t, "Southbound", Direction("Bloor-Yonge Station - Southbound Platform"))
	assert.Equal(t, "Westbound", Direction("Kipling Station - Westbound"))
	assert.Equal(t, "", Direction("Queen St West at Spadina Ave"))
	assert.Equal(t, "", Direction("Union Station - Concourse"))
}

func TestDownload(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/gtfs.zip" {
			http.NotFound(w, r)
			return
		}
		w.Write([]byte("zipbytes"))
	}))
	defer srv.Close()

	dest := filepath.Join(t.TempDir(), "cache", "ttc.zip")
	assert.True(t, IsStale(dest, time.Hour))

	require.NoError(t, Download(context.Background(), srv.URL+"/gtfs.zip", dest))
	data, err := os.ReadFile(dest)
	require.NoError(t, err)
	assert.Equal(t, "zipbytes", string(data))
	assert.False(t, IsStale(dest, time.Hour))

	require.Error(t, Download(context.Background(), srv.URL+"/missing.zip", dest))
	data, err = os.ReadFile(dest)
	require.NoError(t, err)
	assert.Equal(t, "zipbytes", string(data), "failed download keeps the cached copy")
}

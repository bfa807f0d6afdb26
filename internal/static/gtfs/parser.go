package gtfs

import (
	"archive/zip"
	"encoding/csv"
	"fmt"
	"io"
	"log"
	"strconv"
	"strings"
)

// Stop represents a stop from stops.txt
type Stop struct {
	StopID        string
	StopCode      string
	StopName      string
	StopDesc      string
	StopLat       float64
	StopLon       float64
	LocationType  int
	ParentStation string
}

// StopNum returns the numeric stop code used by the prediction endpoints.
// TTC publishes it as stop_code; stop_id is the fallback.
func (s Stop) StopNum() (int, bool) {
	for _, v := range []string{s.StopCode, s.StopID} {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return n, true
		}
	}
	return 0, false
}

// ParseStops reads stops.txt from a GTFS zip file
func ParseStops(zipPath string) ([]Stop, error) {
	r, err := zip.OpenReader(zipPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open zip: %w", err)
	}
	defer r.Close()

	for _, f := range r.File {
		if f.Name != "stops.txt" {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return nil, fmt.Errorf("failed to open stops.txt: %w", err)
		}
		defer rc.Close()

		stops, err := parseStops(rc)
		if err != nil {
			return nil, fmt.Errorf("failed to parse stops.txt: %w", err)
		}
		log.Printf("GTFS parsed: %d stops", len(stops))
		return stops, nil
	}

	return nil, fmt.Errorf("stops.txt not found in %s", zipPath)
}

func parseStops(r io.Reader) ([]Stop, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	header, err := reader.Read()
	if err != nil {
		return nil, err
	}

	idx := makeIndex(header)
	var stops []Stop

	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			continue
		}

		lat, _ := strconv.ParseFloat(getField(record, idx, "stop_lat"), 64)
		lon, _ := strconv.ParseFloat(getField(record, idx, "stop_lon"), 64)
		locType, _ := strconv.Atoi(getField(record, idx, "location_type"))

		stops = append(stops, Stop{
			StopID:        getField(record, idx, "stop_id"),
			StopCode:      getField(record, idx, "stop_code"),
			StopName:      getField(record, idx, "stop_name"),
			StopDesc:      getField(record, idx, "stop_desc"),
			StopLat:       lat,
			StopLon:       lon,
			LocationType:  locType,
			ParentStation: getField(record, idx, "parent_station"),
		})
	}

	return stops, nil
}

// Direction extracts the platform direction from a subway stop name such as
// "Union Station - Northbound Platform"
func Direction(stopName string) string {
	_, rest, ok := strings.Cut(stopName, " - ")
	if !ok {
		return ""
	}
	rest = strings.TrimSuffix(strings.TrimSpace(rest), " Platform")
	for _, d := range []string{"Northbound", "Southbound", "Eastbound", "Westbound"} {
		if strings.EqualFold(rest, d) {
			return d
		}
	}
	return ""
}

func makeIndex(header []string) map[string]int {
	idx := make(map[string]int)
	for i, h := range header {
		// Strip a UTF-8 BOM some feeds leave on the first column
		idx[strings.TrimPrefix(strings.TrimSpace(h), "\uFEFF")] = i
	}
	return idx
}

func getField(record []string, idx map[string]int, field string) string {
	if i, ok := idx[field]; ok && i < len(record) {
		return strings.TrimSpace(record[i])
	}
	return ""
}

package eta

import (
	"strings"
	"sync"
)

// StationMeta is locally known metadata for a stop
type StationMeta struct {
	StopNum   int    `json:"stopNum"`
	Name      string `json:"name"`
	Direction string `json:"direction,omitempty"`
}

// DisplayName is the station part of a stop name such as
// "Bloor-Yonge Station - Southbound Platform".
func (m StationMeta) DisplayName() string {
	name, _, _ := strings.Cut(m.Name, " - ")
	return name
}

// StationLookup resolves station metadata without blocking on I/O
type StationLookup interface {
	Station(stopNum int) (StationMeta, bool)
}

// StationIndex is an in-memory StationLookup that can be reloaded
type StationIndex struct {
	mu     sync.RWMutex
	byStop map[int]StationMeta
}

// NewStationIndex builds an index over stations
func NewStationIndex(stations []StationMeta) *StationIndex {
	idx := &StationIndex{}
	idx.Replace(stations)
	return idx
}

// Station returns the metadata for stopNum, if any
func (i *StationIndex) Station(stopNum int) (StationMeta, bool) {
	i.mu.RLock()
	defer i.mu.RUnlock()
	m, ok := i.byStop[stopNum]
	return m, ok
}

// Replace swaps the indexed stations
func (i *StationIndex) Replace(stations []StationMeta) {
	byStop := make(map[int]StationMeta, len(stations))
	for _, s := range stations {
		byStop[s.StopNum] = s
	}
	i.mu.Lock()
	i.byStop = byStop
	i.mu.Unlock()
}

// Len returns the number of indexed stations
func (i *StationIndex) Len() int {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return len(i.byStop)
}

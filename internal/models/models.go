package models

import (
	"encoding/json"
	"time"
)

// ServiceAlert represents a transit service alert
type ServiceAlert struct {
	AlertID           string   `json:"alertId"`
	Cause             string   `json:"cause,omitempty"`
	Effect            string   `json:"effect,omitempty"`
	HeaderText        string   `json:"headerText"`
	DescriptionText   string   `json:"descriptionText,omitempty"`
	URL               string   `json:"url,omitempty"`
	AffectedLines     []string `json:"affectedLines"`
	IsActive          bool     `json:"isActive"`
	FirstSeenAt       string   `json:"firstSeenAt"`
	ActivePeriodStart *string  `json:"activePeriodStart,omitempty"`
	ActivePeriodEnd   *string  `json:"activePeriodEnd,omitempty"`
	ResolvedAt        *string  `json:"resolvedAt,omitempty"`
}

// Station represents locally stored stop metadata
type Station struct {
	StopNum       int      `json:"stopNum"`
	StopID        string   `json:"stopId"`
	Name          string   `json:"name"`
	Direction     *string  `json:"direction,omitempty"`
	Latitude      *float64 `json:"latitude,omitempty"`
	Longitude     *float64 `json:"longitude,omitempty"`
	ParentStation *string  `json:"parentStation,omitempty"`
}

// Bookmark represents a saved stop board
type Bookmark struct {
	ID        string    `json:"id"`
	StopID    int       `json:"stopId" validate:"gt=0"`
	Name      string    `json:"name" validate:"required,max=200"`
	TtcID     int       `json:"ttcId" validate:"gt=0"`
	Lines     []string  `json:"lines" validate:"required,min=1,dive,numeric"`
	Type      string    `json:"type" validate:"required,oneof=ttc-subway ttc-bus"`
	CreatedAt time.Time `json:"createdAt"`
}

// PredictionSnapshot represents one journalled upstream payload
type PredictionSnapshot struct {
	SnapshotID string          `json:"snapshotId"`
	Kind       string          `json:"kind"`
	Line       int             `json:"line"`
	StopNum    int             `json:"stopNum"`
	EntryCount int             `json:"entryCount"`
	Payload    json.RawMessage `json:"payload"`
	PolledAt   time.Time       `json:"polledAt"`
}

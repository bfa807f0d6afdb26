package ttc

// SubwayPrediction is one platform-direction record from the subway
// next-train endpoint. NextTrains is a serialized list such as "3, 9, 15".
type SubwayPrediction struct {
	DestinationSign string `json:"destinationSign"`
	DirectionText   string `json:"directionText"`
	LineText        string `json:"lineText,omitempty"`
	NextTrains      string `json:"nextTrains"`
	Error           bool   `json:"Error,omitempty"`
}

// BusPrediction is one upcoming vehicle from the basic bus endpoint.
// The basic variant returns a flat list, not one nested per direction.
type BusPrediction struct {
	NextBusMinutes  string `json:"nextBusMinutes"`
	DestinationSign string `json:"destinationSign,omitempty"`
	DirectionText   string `json:"directionText,omitempty"`
	Error           bool   `json:"Error,omitempty"`
}

// Query kinds, used as the first component of a fetch identity
const (
	KindSubway = "ttc-subway-stop"
	KindBus    = "ttc-bus-basic"
)

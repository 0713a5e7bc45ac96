package aismsg

import (
	"bytes"
	"encoding/json"
	"time"
)

// Envelope is one frame as received from the upstream stream:
// the message kind, the kind-keyed body, and receiver metadata.
// Message bodies stay raw until the decoder picks the one it needs.
type Envelope struct {
	MessageType string                     `json:"MessageType"`
	Message     map[string]json.RawMessage `json:"Message"`
	MetaData    MetaData                   `json:"MetaData"`
	Injected    bool                       `json:"injected,omitempty"`
}

// MetaData is the receiver-side metadata attached to every frame.
type MetaData struct {
	MMSI       uint32   `json:"MMSI,omitempty"`
	MMSIString uint32   `json:"MMSI_String,omitempty"`
	ShipName   string   `json:"ShipName,omitempty"`
	Latitude   *float64 `json:"latitude,omitempty"`
	Longitude  *float64 `json:"longitude,omitempty"`
	TimeUTC    string   `json:"time_utc,omitempty"`
}

// PositionReport holds the dynamic fields shared by the position-bearing
// message kinds. Absent fields stay nil.
type PositionReport struct {
	MessageID          int      `json:"MessageID,omitempty"`
	UserID             uint32   `json:"UserID,omitempty"`
	Latitude           *float64 `json:"Latitude,omitempty"`
	Longitude          *float64 `json:"Longitude,omitempty"`
	Sog                *float64 `json:"Sog,omitempty"`
	Cog                *float64 `json:"Cog,omitempty"`
	TrueHeading        *float64 `json:"TrueHeading,omitempty"`
	NavigationalStatus *int     `json:"NavigationalStatus,omitempty"`
	RateOfTurn         *float64 `json:"RateOfTurn,omitempty"`
}

// ShipTypeCode keeps the ship type as transmitted: the upstream sends a
// number, the inject surface sends free text.
type ShipTypeCode string

// UnmarshalJSON accepts either a JSON string or a JSON number.
func (c *ShipTypeCode) UnmarshalJSON(b []byte) error {
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*c = ShipTypeCode(s)
		return nil
	}
	*c = ShipTypeCode(bytes.TrimSpace(b))
	return nil
}

// MarshalJSON emits the code as a string.
func (c ShipTypeCode) MarshalJSON() ([]byte, error) {
	return json.Marshal(string(c))
}

// Meaning looks the code up in the reference tables.
func (c ShipTypeCode) Meaning() string {
	return ShipTypeText(string(c))
}

// StaticData holds the voyage-related fields of the static message kinds.
type StaticData struct {
	UserID      uint32          `json:"UserID,omitempty"`
	IMO         *int64          `json:"IMO,omitempty"`
	Callsign    *string         `json:"Callsign,omitempty"`
	ShipName    *string         `json:"ShipName,omitempty"`
	ShipType    *ShipTypeCode   `json:"ShipType,omitempty"`
	Destination *string         `json:"Destination,omitempty"`
	ETA         json.RawMessage `json:"ETA,omitempty"`
	Draught     *float64        `json:"Draught,omitempty"`
	ToBow       *int            `json:"ToBow,omitempty"`
	ToStern     *int            `json:"ToStern,omitempty"`
	ToPort      *int            `json:"ToPort,omitempty"`
	ToStarboard *int            `json:"ToStarboard,omitempty"`
}

// Timestamp formats a time the way the stream and the inject surface do.
func Timestamp(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

// Timestamp layouts seen in the wild: RFC 3339, ISO-8601 without a zone
// (the inject surface), and Go's time.Time.String() (the upstream stream).
var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999 -0700 MST",
}

// ParseTimestamp parses any of the timestamp shapes carried in time_utc.
func ParseTimestamp(s string) (time.Time, error) {
	var err error
	for _, layout := range timestampLayouts {
		var t time.Time
		t, err = time.Parse(layout, s)
		if err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, err
}

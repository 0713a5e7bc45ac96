package storage

// The records the pipeline produces and stores for each vessel.

import (
	"encoding/json"

	ais "github.com/andmarios/aislib"

	"github.com/oceanwatch/aisguard/aismsg"
)

// AlertType names one of the anomaly detectors.
type AlertType string

// The detector catalogue, in evaluation order.
const (
	AlertTransmissionGap AlertType = "transmission_gap"
	AlertPositionJump    AlertType = "position_jump"
	AlertIdentitySwap    AlertType = "identity_swap"
	AlertSpeedAnomaly    AlertType = "speed_anomaly"
	AlertCourseChange    AlertType = "course_change_anomaly"
	AlertCircleSpoofing  AlertType = "circle_spoofing"
)

// Alert is an anomaly attached to a history point.
// Alerts are data in the normal stream, not errors.
type Alert struct {
	MMSI      aismsg.Mmsi `json:"mmsi"`
	Timestamp string      `json:"timestamp"`
	Type      AlertType   `json:"type"`
	Message   string      `json:"message"`
}

// Profile is the rolling per-vessel baseline over the most recent valid
// history points: population mean and standard deviation of speed over
// ground and true heading. N counts the valid speed samples.
type Profile struct {
	SpeedMean   *float64 `json:"speed_mean,omitempty"`
	SpeedStd    *float64 `json:"speed_std,omitempty"`
	HeadingMean *float64 `json:"heading_mean,omitempty"`
	HeadingStd  *float64 `json:"heading_std,omitempty"`
	N           int      `json:"n"`
}

// StaticInfo is the merged voyage data for one vessel.
// Each static message replaces the fields it carries; fields it doesn't
// carry keep their previous value.
type StaticInfo struct {
	IMO             *int64               `json:"imo,omitempty"`
	Callsign        *string              `json:"callsign,omitempty"`
	Name            *string              `json:"ship_name,omitempty"`
	ShipType        *aismsg.ShipTypeCode `json:"ship_type,omitempty"`
	ShipTypeMeaning *string              `json:"ship_type_meaning,omitempty"`
	Destination     *string              `json:"destination,omitempty"`
	ETA             json.RawMessage      `json:"eta,omitempty"`
	Draught         *float64             `json:"draught,omitempty"`
	DimBow          *int                 `json:"dim_bow,omitempty"`
	DimStern        *int                 `json:"dim_stern,omitempty"`
	DimPort         *int                 `json:"dim_port,omitempty"`
	DimStarboard    *int                 `json:"dim_starboard,omitempty"`
}

// Merge overlays a static message onto the accumulated voyage data.
func (s *StaticInfo) Merge(d *aismsg.StaticData) {
	if d.IMO != nil {
		s.IMO = d.IMO
	}
	if d.Callsign != nil {
		s.Callsign = d.Callsign
	}
	if d.ShipName != nil {
		s.Name = d.ShipName
	}
	if d.ShipType != nil {
		s.ShipType = d.ShipType
		meaning := d.ShipType.Meaning()
		s.ShipTypeMeaning = &meaning
	}
	if d.Destination != nil {
		s.Destination = d.Destination
	}
	if len(d.ETA) > 0 {
		s.ETA = d.ETA
	}
	if d.Draught != nil {
		s.Draught = d.Draught
	}
	if d.ToBow != nil {
		s.DimBow = d.ToBow
	}
	if d.ToStern != nil {
		s.DimStern = d.ToStern
	}
	if d.ToPort != nil {
		s.DimPort = d.ToPort
	}
	if d.ToStarboard != nil {
		s.DimStarboard = d.ToStarboard
	}
}

// PointMeta is the frame metadata quoted in a history point, with the
// merged voyage data overlaid next to it.
type PointMeta struct {
	aismsg.MetaData
	StaticInfo
}

// HistoryPoint is one append-only record of a vessel's track.
// Already-broadcast points are never mutated, so everything quoted from
// the frame is snapshot-copied at creation.
type HistoryPoint struct {
	Timestamp   string    `json:"timestamp"`
	MessageType string    `json:"message_type"`
	Meta        PointMeta `json:"meta"`

	// The kind-keyed raw body, under the same key the frame used.
	RawPositionReport     json.RawMessage `json:"raw_position_report,omitempty"`
	RawStandardClassB     json.RawMessage `json:"raw_standard_class_b_position_report,omitempty"`
	RawExtendedClassB     json.RawMessage `json:"raw_extended_class_b_position_report,omitempty"`
	RawStaticData         json.RawMessage `json:"raw_static_data,omitempty"`
	RawShipStaticData     json.RawMessage `json:"raw_ship_static_data,omitempty"`
	RawAidsToNavigation   json.RawMessage `json:"raw_aids_to_navigation_report,omitempty"`
	RawBaseStation        json.RawMessage `json:"raw_base_station_report,omitempty"`
	RawDataLinkManagement json.RawMessage `json:"raw_data_link_management,omitempty"`
	RawSafetyBroadcast    json.RawMessage `json:"raw_safety_broadcast_message,omitempty"`
	RawAddressedSafety    json.RawMessage `json:"raw_addressed_safety_message,omitempty"`
	RawOther              json.RawMessage `json:"raw_other,omitempty"`

	FullMessage json.RawMessage `json:"full_message"`

	// Position-bearing kinds only.
	Lat                *float64 `json:"lat,omitempty"`
	Lon                *float64 `json:"lon,omitempty"`
	Sog                *float64 `json:"sog,omitempty"`
	Heading            *float64 `json:"heading,omitempty"`
	NavigationalStatus *int     `json:"navigational_status,omitempty"`
	RateOfTurn         *float64 `json:"rate_of_turn,omitempty"`

	TimeDiff      *float64 `json:"time_diff,omitempty"`
	DeltaSpeed    *float64 `json:"delta_speed,omitempty"`
	DeltaHeading  *float64 `json:"delta_heading,omitempty"`
	NormalProfile *Profile `json:"normal_profile,omitempty"`

	Flag *string `json:"flag,omitempty"`
	MID  *int    `json:"mid,omitempty"`

	Alert *Alert `json:"alert,omitempty"`

	// Report is the parsed body for position-bearing kinds; the profile
	// computation reads the raw Sog and TrueHeading through it.
	Report *aismsg.PositionReport `json:"-"`
}

// SetRaw stores the body under the history key its message kind uses.
func (hp *HistoryPoint) SetRaw(kind string, raw json.RawMessage) {
	switch kind {
	case "PositionReport":
		hp.RawPositionReport = raw
	case "StandardClassBPositionReport":
		hp.RawStandardClassB = raw
	case "ExtendedClassBPositionReport":
		hp.RawExtendedClassB = raw
	case "StaticData", "StaticDataReport":
		hp.RawStaticData = raw
	case "ShipStaticData":
		hp.RawShipStaticData = raw
	case "AidsToNavigationReport":
		hp.RawAidsToNavigation = raw
	case "BaseStationReport":
		hp.RawBaseStation = raw
	case "DataLinkManagementMessage":
		hp.RawDataLinkManagement = raw
	case "SafetyBroadcastMessage":
		hp.RawSafetyBroadcast = raw
	case "AddressedSafetyMessage":
		hp.RawAddressedSafety = raw
	default:
		hp.RawOther = raw
	}
}

// NavStatusText renders a navigational status code.
func NavStatusText(code int) string {
	if code >= 0 && code < len(ais.NavigationStatusCodes) {
		return ais.NavigationStatusCodes[code]
	}
	return ""
}

// VesselState is the latest known state of one vessel.
type VesselState struct {
	MMSI          aismsg.Mmsi `json:"mmsi"`
	MmsiClass     string      `json:"mmsi_class,omitempty"`
	Lat           *float64    `json:"lat,omitempty"`
	Lon           *float64    `json:"lon,omitempty"`
	Sog           *float64    `json:"sog,omitempty"`
	Heading       *float64    `json:"heading,omitempty"`
	NavStatus     *int        `json:"navigational_status,omitempty"`
	NavStatusText string      `json:"navigational_status_text,omitempty"`
	RateOfTurn    *float64    `json:"rate_of_turn,omitempty"`
	Flag          *string     `json:"flag,omitempty"`
	ShipName      *string     `json:"ship_name,omitempty"`
	NormalProfile *Profile    `json:"normal_profile,omitempty"`
	DeltaSpeed    *float64    `json:"delta_speed,omitempty"`
	DeltaHeading  *float64    `json:"delta_heading,omitempty"`
	StaticInfo
}

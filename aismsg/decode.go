// Package aismsg decodes AIS stream envelopes into typed internal events
// and carries the static reference tables for MMSIs and ship types.
package aismsg

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/oceanwatch/aisguard/geo"
)

// Decoder errors, tested with errors.Is.
var (
	ErrUnknownKind        = errors.New("unknown message kind")
	ErrMissingIdentity    = errors.New("no MMSI in frame")
	ErrInvalidCoordinates = errors.New("coordinates missing or out of range")
)

// Class groups the message kinds by how the pipeline treats them.
type Class uint8

const (
	// ClassPosition kinds are enriched and inspected for anomalies.
	ClassPosition Class = iota
	// ClassStatic kinds update the merged voyage data.
	ClassStatic
	// ClassNavAid and ClassBaseStation carry a position but no voyage data.
	ClassNavAid
	ClassBaseStation
	// ClassOther kinds are retained as history but are otherwise opaque.
	ClassOther
)

// classes holds every recognised message kind.
// Kinds missing from this map fail with ErrUnknownKind.
var classes = map[string]Class{
	"PositionReport":                        ClassPosition,
	"StandardClassBPositionReport":          ClassPosition,
	"ExtendedClassBPositionReport":          ClassPosition,
	"StaticDataReport":                      ClassStatic,
	"ShipStaticData":                        ClassStatic,
	"StaticData":                            ClassStatic, // the injected form
	"AidsToNavigationReport":                ClassNavAid,
	"BaseStationReport":                     ClassBaseStation,
	"SafetyBroadcastMessage":                ClassOther,
	"AddressedSafetyMessage":                ClassOther,
	"DataLinkManagementMessage":             ClassOther,
	"UnknownMessage":                        ClassOther,
	"AddressedBinaryMessage":                ClassOther,
	"AssignedModeCommand":                   ClassOther,
	"BinaryAcknowledge":                     ClassOther,
	"BinaryBroadcastMessage":                ClassOther,
	"ChannelManagement":                     ClassOther,
	"CoordinatedUTCInquiry":                 ClassOther,
	"DataLinkManagementMessageData":         ClassOther,
	"GroupAssignmentCommand":                ClassOther,
	"GnssBroadcastBinaryMessage":            ClassOther,
	"Interrogation":                         ClassOther,
	"LongRangeAisBroadcastMessage":          ClassOther,
	"MultiSlotBinaryMessage":                ClassOther,
	"SingleSlotBinaryMessage":               ClassOther,
	"StandardSearchAndRescueAircraftReport": ClassOther,
}

// Event is one normalised inbound message.
type Event struct {
	Kind      string
	Class     Class
	MMSI      Mmsi
	Timestamp string // as carried in the frame, or the receive time
	Meta      MetaData
	Raw       json.RawMessage // the kind-keyed body, verbatim
	Envelope  json.RawMessage // the whole frame, snapshot-copied
	Injected  bool

	// Position is set for position-bearing kinds (nav aids and base
	// stations included when their coordinates are valid).
	Position *PositionReport
	// Static is set for ClassStatic kinds.
	Static *StaticData
}

// Decode normalises one inbound frame into an Event.
// The frame is snapshot-copied so later enrichment can quote it back
// without aliasing the read buffer.
func Decode(frame []byte) (*Event, error) {
	var env Envelope
	if err := json.Unmarshal(frame, &env); err != nil {
		return nil, fmt.Errorf("malformed envelope: %w", err)
	}
	class, ok := classes[env.MessageType]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownKind, env.MessageType)
	}
	raw := env.Message[env.MessageType]

	ev := &Event{
		Kind:      env.MessageType,
		Class:     class,
		Timestamp: env.MetaData.TimeUTC,
		Meta:      env.MetaData,
		Raw:       raw,
		Envelope:  append(json.RawMessage(nil), frame...),
		Injected:  env.Injected,
	}
	if ev.Timestamp == "" {
		ev.Timestamp = Timestamp(time.Now())
	}

	if err := resolveMMSI(ev, &env, raw); err != nil {
		return nil, err
	}

	switch class {
	case ClassPosition:
		var pos PositionReport
		if err := json.Unmarshal(raw, &pos); err != nil {
			return nil, fmt.Errorf("malformed %s body: %w", ev.Kind, err)
		}
		if pos.Latitude == nil || pos.Longitude == nil ||
			!geo.LegalCoord(*pos.Latitude, *pos.Longitude) {
			return nil, ErrInvalidCoordinates
		}
		ev.Position = &pos
	case ClassStatic:
		var static StaticData
		if err := json.Unmarshal(raw, &static); err != nil {
			return nil, fmt.Errorf("malformed %s body: %w", ev.Kind, err)
		}
		ev.Static = &static
	case ClassNavAid, ClassBaseStation:
		// These carry a position too; keep it only when usable.
		var pos PositionReport
		if err := json.Unmarshal(raw, &pos); err == nil &&
			pos.Latitude != nil && pos.Longitude != nil &&
			geo.LegalCoord(*pos.Latitude, *pos.Longitude) {
			ev.Position = &pos
		}
	}
	return ev, nil
}

// resolveMMSI fills ev.MMSI from, in order: MetaData.MMSI, the body's
// UserID, and MetaData.MMSI_String.
func resolveMMSI(ev *Event, env *Envelope, raw json.RawMessage) error {
	if env.MetaData.MMSI != 0 {
		ev.MMSI = Mmsi(env.MetaData.MMSI)
		return nil
	}
	if len(raw) > 0 {
		var body struct {
			UserID uint32 `json:"UserID"`
		}
		if err := json.Unmarshal(raw, &body); err == nil && body.UserID != 0 {
			ev.MMSI = Mmsi(body.UserID)
			return nil
		}
	}
	if env.MetaData.MMSIString != 0 {
		ev.MMSI = Mmsi(env.MetaData.MMSIString)
		return nil
	}
	return ErrMissingIdentity
}

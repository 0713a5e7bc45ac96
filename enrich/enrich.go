// Package enrich turns decoded events into history points: it resolves
// heading and speed, computes the deltas against the previous point,
// re-derives the rolling profile, and overlays the merged voyage data.
package enrich

import (
	"math"

	"gonum.org/v1/gonum/stat"

	"github.com/oceanwatch/aisguard/aismsg"
	"github.com/oceanwatch/aisguard/storage"
)

// ProfileWindow is the number of recent points the rolling profile covers.
const ProfileWindow = 100

// maxValidSog is the AIS "speed not available" boundary in knots.
const maxValidSog = 102.2

// headingUnavailable is the AIS true heading sentinel.
const headingUnavailable = 511

// Enricher reads previous state from the store; it never writes to it.
type Enricher struct {
	db *storage.VesselDB
}

// New returns an Enricher reading from db.
func New(db *storage.VesselDB) *Enricher {
	return &Enricher{db: db}
}

// Position builds the enriched history point and the latest-state record
// for a position-bearing event. The profile and the deltas are computed
// against the history as it is before this point is appended.
func (e *Enricher) Position(ev *aismsg.Event) (*storage.HistoryPoint, *storage.VesselState) {
	pos := ev.Position
	heading := resolveHeading(pos)
	sog := validSpeed(pos.Sog)

	history := e.db.History(ev.MMSI)
	profile := profileOf(history)

	var timeDiff, deltaSpeed, deltaHeading *float64
	if len(history) > 0 {
		prev := &history[len(history)-1]
		timeDiff = secondsBetween(prev.Timestamp, ev.Timestamp)
		if sog != nil && prev.Sog != nil {
			d := *sog - *prev.Sog
			deltaSpeed = &d
		}
		if heading != nil && prev.Heading != nil {
			d := wrapDelta(*heading - *prev.Heading)
			deltaHeading = &d
		}
	}

	hp := e.record(ev)
	hp.Lat = copyOf(pos.Latitude)
	hp.Lon = copyOf(pos.Longitude)
	hp.Sog = sog
	hp.Heading = heading
	hp.NavigationalStatus = pos.NavigationalStatus
	hp.RateOfTurn = pos.RateOfTurn
	hp.TimeDiff = timeDiff
	hp.DeltaSpeed = deltaSpeed
	hp.DeltaHeading = deltaHeading
	hp.NormalProfile = profile
	hp.Report = pos
	hp.Flag, hp.MID = flagAndMID(ev.MMSI)

	state := &storage.VesselState{
		MMSI:          ev.MMSI,
		MmsiClass:     ev.MMSI.Class(),
		Lat:           copyOf(pos.Latitude),
		Lon:           copyOf(pos.Longitude),
		Sog:           sog,
		Heading:       heading,
		NavStatus:     pos.NavigationalStatus,
		RateOfTurn:    pos.RateOfTurn,
		Flag:          hp.Flag,
		NormalProfile: profile,
		DeltaSpeed:    deltaSpeed,
		DeltaHeading:  deltaHeading,
	}
	if pos.NavigationalStatus != nil {
		state.NavStatusText = storage.NavStatusText(*pos.NavigationalStatus)
	}
	if ev.Meta.ShipName != "" {
		name := ev.Meta.ShipName
		state.ShipName = &name
	}
	return hp, state
}

// Record builds the plain history point for a non-position event.
func (e *Enricher) Record(ev *aismsg.Event) *storage.HistoryPoint {
	return e.record(ev)
}

func (e *Enricher) record(ev *aismsg.Event) *storage.HistoryPoint {
	hp := &storage.HistoryPoint{
		Timestamp:   ev.Timestamp,
		MessageType: ev.Kind,
		Meta: storage.PointMeta{
			MetaData:   ev.Meta,
			StaticInfo: e.db.StaticFor(ev.MMSI),
		},
		FullMessage: ev.Envelope,
	}
	hp.SetRaw(ev.Kind, ev.Raw)
	return hp
}

// resolveHeading prefers the true heading; 511 means the sensor has no
// reading, in which case the course over ground stands in.
func resolveHeading(pos *aismsg.PositionReport) *float64 {
	if pos.TrueHeading != nil && *pos.TrueHeading != headingUnavailable {
		h := *pos.TrueHeading
		return &h
	}
	if pos.Cog != nil {
		h := *pos.Cog
		return &h
	}
	return nil
}

// validSpeed rejects the "not available" encodings: NaN, negative,
// and anything at or above 102.2 knots.
func validSpeed(sog *float64) *float64 {
	if sog == nil || math.IsNaN(*sog) || *sog < 0 || *sog >= maxValidSog {
		return nil
	}
	s := *sog
	return &s
}

// wrapDelta maps a raw angular difference into [-180, 180).
// A full reversal is reported as -180 by this convention.
func wrapDelta(raw float64) float64 {
	d := math.Mod(raw+180, 360)
	if d < 0 {
		d += 360
	}
	return d - 180
}

// secondsBetween returns the gap between two timestamps in seconds,
// or nil when either fails to parse.
func secondsBetween(prev, curr string) *float64 {
	p, err := aismsg.ParseTimestamp(prev)
	if err != nil {
		return nil
	}
	c, err := aismsg.ParseTimestamp(curr)
	if err != nil {
		return nil
	}
	diff := c.Sub(p).Seconds()
	return &diff
}

// profileOf re-derives the rolling baseline over the last ProfileWindow
// points, reading the raw Sog and TrueHeading so that the resolved
// fallbacks don't leak into the baseline.
func profileOf(history []storage.HistoryPoint) *storage.Profile {
	if len(history) > ProfileWindow {
		history = history[len(history)-ProfileWindow:]
	}
	var speeds, headings []float64
	for i := range history {
		rp := history[i].Report
		if rp == nil {
			continue
		}
		if s := rp.Sog; s != nil && !math.IsNaN(*s) && *s >= 0 && *s < maxValidSog {
			speeds = append(speeds, *s)
		}
		if h := rp.TrueHeading; h != nil && *h != headingUnavailable &&
			!math.IsNaN(*h) && *h >= 0 && *h < 360 {
			headings = append(headings, *h)
		}
	}
	profile := &storage.Profile{N: len(speeds)}
	if len(speeds) > 0 {
		mean := stat.Mean(speeds, nil)
		std := math.Sqrt(stat.PopVariance(speeds, nil))
		profile.SpeedMean = &mean
		profile.SpeedStd = &std
	}
	if len(headings) > 0 {
		mean := stat.Mean(headings, nil)
		std := math.Sqrt(stat.PopVariance(headings, nil))
		profile.HeadingMean = &mean
		profile.HeadingStd = &std
	}
	return profile
}

func flagAndMID(mmsi aismsg.Mmsi) (*string, *int) {
	mid, ok := mmsi.MID()
	if !ok {
		return nil, nil
	}
	var flag *string
	if f, found := aismsg.Country(mid); found {
		flag = &f
	}
	return flag, &mid
}

func copyOf(v *float64) *float64 {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}

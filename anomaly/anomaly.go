// Package anomaly runs the movement-anomaly catalogue against a
// vessel's history. Detectors are evaluated in a fixed order and the
// engine commits at most one alert per history point: a later detector
// that fires overwrites an earlier alert, a detector that stays quiet
// never clears one.
package anomaly

import (
	"fmt"
	"math"
	"time"

	"gonum.org/v1/gonum/stat"

	"github.com/oceanwatch/aisguard/aismsg"
	"github.com/oceanwatch/aisguard/circlefit"
	"github.com/oceanwatch/aisguard/geo"
	"github.com/oceanwatch/aisguard/storage"
)

// Detector thresholds. All comparisons are strict: a value exactly on
// the threshold does not fire.
const (
	// GapSeconds is the transmission gap threshold.
	GapSeconds = 600
	// JumpNM is the position jump threshold in nautical miles.
	JumpNM = 10
	// SpeedKnots is the implausible speed threshold.
	SpeedKnots = 40
	// HeadingDegrees is the sudden course change threshold.
	HeadingDegrees = 90
)

// Circle spoofing detector tuning.
const (
	circleWindow        = 45 * time.Minute
	circleMinPoints     = 3
	circleMaxResidual   = 1e-4      // degrees, roughly 10 m
	circleMinRadius     = 0.1 / 60  // degrees, roughly 0.1 NM
	circleMaxRadius     = 2.0 / 60  // degrees, roughly 2 NM
	circleUniformityStd = 0.03      // radians
	circleSogStd        = 0.5       // knots
)

// Engine evaluates the detector catalogue.
// Now is replaceable so tests can pin the circle detector's window.
type Engine struct {
	Now func() time.Time
}

// New returns an Engine on the wall clock.
func New() *Engine {
	return &Engine{Now: time.Now}
}

// Inspect runs the detectors against a vessel's history as it stands
// after the current point was appended; the current point is the last
// element. Returns the winning alert, or nil.
func (e *Engine) Inspect(mmsi aismsg.Mmsi, history []storage.HistoryPoint) *storage.Alert {
	if len(history) == 0 {
		return nil
	}
	hp := &history[len(history)-1]
	prior := history[:len(history)-1]
	id := uint32(mmsi)
	var alert *storage.Alert

	// 1. transmission gap
	if hp.TimeDiff != nil && *hp.TimeDiff > GapSeconds && hp.Lat != nil && hp.Lon != nil {
		alert = &storage.Alert{
			MMSI:      mmsi,
			Timestamp: hp.Timestamp,
			Type:      storage.AlertTransmissionGap,
			Message: fmt.Sprintf("ALERT: Vessel %d went dark for %d min near (%.5f,%.5f)",
				id, int64(*hp.TimeDiff)/60, *hp.Lat, *hp.Lon),
		}
	}

	// Detectors 2 and 3 compare against the penultimate prior point.
	if len(prior) >= 2 {
		pp := &prior[len(prior)-2]

		// 2. position jump
		if hp.Lat != nil && hp.Lon != nil && pp.Lat != nil && pp.Lon != nil {
			dist := geo.FlatDistanceNM(
				geo.Point{Lat: *hp.Lat, Lon: *hp.Lon},
				geo.Point{Lat: *pp.Lat, Lon: *pp.Lon})
			if dist > JumpNM {
				alert = &storage.Alert{
					MMSI:      mmsi,
					Timestamp: hp.Timestamp,
					Type:      storage.AlertPositionJump,
					Message: fmt.Sprintf("ALERT: Vessel %d jumped %.1f NM at %s (possible spoofing)",
						id, dist, hp.Timestamp),
				}
			}
		}

		// 3. identity swap
		prevName := pp.Meta.ShipName
		currName := hp.Meta.ShipName
		if prevName != "" && currName != "" && prevName != currName {
			alert = &storage.Alert{
				MMSI:      mmsi,
				Timestamp: hp.Timestamp,
				Type:      storage.AlertIdentitySwap,
				Message: fmt.Sprintf("ALERT: Vessel %d changed name from '%s' to '%s' at %s",
					id, prevName, currName, hp.Timestamp),
			}
		}
	}

	// 4. speed anomaly
	if hp.Sog != nil && *hp.Sog > SpeedKnots {
		alert = &storage.Alert{
			MMSI:      mmsi,
			Timestamp: hp.Timestamp,
			Type:      storage.AlertSpeedAnomaly,
			Message: fmt.Sprintf("ALERT: Vessel %d reported implausible speed %.1f knots at %s",
				id, *hp.Sog, hp.Timestamp),
		}
	}

	// 5. sudden course change
	if hp.DeltaHeading != nil && math.Abs(*hp.DeltaHeading) > HeadingDegrees {
		alert = &storage.Alert{
			MMSI:      mmsi,
			Timestamp: hp.Timestamp,
			Type:      storage.AlertCourseChange,
			Message: fmt.Sprintf("ALERT: Vessel %d changed heading by %.1f° at %s",
				id, *hp.DeltaHeading, hp.Timestamp),
		}
	}

	// 6. circle spoofing wins over everything else
	if circle := e.detectCircleSpoofing(mmsi, history, hp.Timestamp); circle != nil {
		alert = circle
	}
	return alert
}

// detectCircleSpoofing checks whether the vessel's recent track forms a
// suspiciously perfect circle: the Kåsa fit must land in the plausible
// radius band with a tiny residual, and both the angular spacing and the
// reported speeds must be close to uniform.
func (e *Engine) detectCircleSpoofing(mmsi aismsg.Mmsi, history []storage.HistoryPoint, ts string) *storage.Alert {
	cutoff := e.Now().Add(-circleWindow)
	var xs, ys, sogs []float64
	for i := range history {
		hp := &history[i]
		if hp.Lat == nil || hp.Lon == nil {
			continue
		}
		when, err := aismsg.ParseTimestamp(hp.Timestamp)
		if err != nil || when.Before(cutoff) {
			continue
		}
		xs = append(xs, *hp.Lat)
		ys = append(ys, *hp.Lon)
		if hp.Sog != nil {
			sogs = append(sogs, *hp.Sog)
		}
	}
	if len(xs) < circleMinPoints {
		return nil
	}
	circle, err := circlefit.Fit(xs, ys)
	if err != nil {
		// collinear tracks have no circle
		return nil
	}
	if circle.R < circleMinRadius || circle.R > circleMaxRadius {
		return nil
	}
	if circle.Residual > circleMaxResidual {
		return nil
	}
	// angular spacing must be uniform
	thetas := make([]float64, len(xs))
	for i := range xs {
		thetas[i] = math.Atan2(circle.Y-ys[i], circle.X-xs[i])
	}
	unwrap(thetas)
	dthetas := make([]float64, len(thetas)-1)
	for i := range dthetas {
		dthetas[i] = thetas[i+1] - thetas[i]
	}
	if math.Sqrt(stat.PopVariance(dthetas, nil)) > circleUniformityStd {
		return nil
	}
	// so must the reported speed
	if len(sogs) < circleMinPoints {
		return nil
	}
	if math.Sqrt(stat.PopVariance(sogs, nil)) > circleSogStd {
		return nil
	}
	return &storage.Alert{
		MMSI:      mmsi,
		Timestamp: ts,
		Type:      storage.AlertCircleSpoofing,
		Message: fmt.Sprintf("ALERT: Vessel %d detected with possible circle spoofing pattern (r=%.2fnm)",
			uint32(mmsi), circle.R*60),
	}
}

// unwrap removes 2π jumps from a sequence of angles, in place.
func unwrap(thetas []float64) {
	for i := 1; i < len(thetas); i++ {
		d := thetas[i] - thetas[i-1]
		for d > math.Pi {
			d -= 2 * math.Pi
		}
		for d < -math.Pi {
			d += 2 * math.Pi
		}
		thetas[i] = thetas[i-1] + d
	}
}

//go test -v -race || go test -v
package storage

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/oceanwatch/aisguard/aismsg"
	"github.com/oceanwatch/aisguard/geo"
)

func f64(v float64) *float64 { return &v }

func stateAt(mmsi aismsg.Mmsi, lat, lon float64) VesselState {
	return VesselState{MMSI: mmsi, Lat: f64(lat), Lon: f64(lon)}
}

func pointAt(ts time.Time, lat, lon float64) HistoryPoint {
	return HistoryPoint{
		Timestamp: aismsg.Timestamp(ts),
		Lat:       f64(lat),
		Lon:       f64(lon),
	}
}

func TestUpsertPositionValidation(t *testing.T) {
	db := NewVesselDB()
	tests := []struct {
		lat, lon float64
		ok       bool
	}{
		{37.8, -122.4, true},
		{90, 180, true},
		{90.5, 0, false},
		{0, -180.5, false},
	}
	for _, test := range tests {
		err := db.UpsertPosition(stateAt(1, test.lat, test.lon))
		if (err == nil) != test.ok {
			t.Errorf("UpsertPosition(%f, %f) error = %v, want ok=%t",
				test.lat, test.lon, err, test.ok)
		}
	}
	if err := db.UpsertPosition(VesselState{MMSI: 2}); err == nil {
		t.Error("state without a position should be rejected")
	}
}

func TestGridMembershipMovesWithVessel(t *testing.T) {
	db := NewVesselDB()
	mmsi := aismsg.Mmsi(367000001)
	if err := db.UpsertPosition(stateAt(mmsi, 37.55, -122.55)); err != nil {
		t.Fatal(err)
	}
	south, _ := geo.NewRectangle(37.5, -122.6, 37.6, -122.5)
	north, _ := geo.NewRectangle(38.5, -122.6, 38.6, -122.5)
	if got := len(db.SpatialQuery(south)); got != 1 {
		t.Fatalf("vessel not found in its cell: got %d", got)
	}
	// move far enough to land in another cell
	if err := db.UpsertPosition(stateAt(mmsi, 38.55, -122.55)); err != nil {
		t.Fatal(err)
	}
	if got := len(db.SpatialQuery(south)); got != 0 {
		t.Errorf("vessel still found in the old cell: got %d", got)
	}
	if got := len(db.SpatialQuery(north)); got != 1 {
		t.Errorf("vessel not found in the new cell: got %d", got)
	}
	// the whole bay must see it exactly once
	bay, _ := geo.NewRectangle(37.0, -123.0, 39.0, -122.0)
	if got := len(db.SpatialQuery(bay)); got != 1 {
		t.Errorf("vessel seen %d times, want 1", got)
	}
}

func TestMergeStateKeepsTelemetry(t *testing.T) {
	db := NewVesselDB()
	mmsi := aismsg.Mmsi(367000002)
	full := stateAt(mmsi, 37.55, -122.55)
	full.Sog = f64(12)
	full.Heading = f64(90)
	full.DeltaSpeed = f64(1)
	if err := db.UpsertPosition(full); err != nil {
		t.Fatal(err)
	}

	partial := stateAt(mmsi, 38.55, -122.45)
	name := "PT BONITA"
	partial.ShipName = &name
	if err := db.MergeState(partial); err != nil {
		t.Fatal(err)
	}

	v, ok := db.Latest(mmsi)
	if !ok {
		t.Fatal("vessel missing after merge")
	}
	if v.Lat == nil || *v.Lat != 38.55 || v.Lon == nil || *v.Lon != -122.45 {
		t.Errorf("merge did not move the vessel: %+v", v)
	}
	if v.ShipName == nil || *v.ShipName != name {
		t.Errorf("merge did not apply the name: %+v", v)
	}
	if v.Sog == nil || *v.Sog != 12 || v.Heading == nil || *v.Heading != 90 ||
		v.DeltaSpeed == nil || *v.DeltaSpeed != 1 {
		t.Errorf("merge wiped telemetry: %+v", v)
	}

	// the grid index follows the merged position
	old, _ := geo.NewRectangle(37.5, -122.6, 37.6, -122.5)
	cur, _ := geo.NewRectangle(38.5, -122.5, 38.6, -122.4)
	if got := len(db.SpatialQuery(old)); got != 0 {
		t.Errorf("vessel still in the old cell: got %d", got)
	}
	if got := len(db.SpatialQuery(cur)); got != 1 {
		t.Errorf("vessel not in the new cell: got %d", got)
	}

	// unknown vessels are created from the partial state
	if err := db.MergeState(stateAt(993672001, 37.8, -122.4)); err != nil {
		t.Fatal(err)
	}
	if _, ok := db.Latest(993672001); !ok {
		t.Error("merge did not create the unknown vessel")
	}
	if err := db.MergeState(VesselState{MMSI: 3}); err == nil {
		t.Error("merge without a position should be rejected")
	}
}

func TestSpatialQueryScenario(t *testing.T) {
	db := NewVesselDB()
	db.UpsertPosition(stateAt(111000001, 37.5, -122.5))
	db.UpsertPosition(stateAt(111000002, 37.9, -122.1))
	db.UpsertPosition(stateAt(111000003, 38.3, -122.5))
	rect, err := geo.NewRectangle(37.4, -122.6, 37.95, -122.0)
	if err != nil {
		t.Fatal(err)
	}
	got := db.SpatialQuery(rect)
	if len(got) != 2 {
		t.Fatalf("got %d vessels, want 2", len(got))
	}
	if got[0].MMSI != 111000001 || got[1].MMSI != 111000002 {
		t.Errorf("got %d and %d, want 111000001 and 111000002",
			got[0].MMSI, got[1].MMSI)
	}
}

func TestHistoryBound(t *testing.T) {
	db := NewVesselDB()
	mmsi := aismsg.Mmsi(367000002)
	start := time.Date(2026, 8, 26, 0, 0, 0, 0, time.UTC)
	n := HistoryMax + 10
	for i := 0; i < n; i++ {
		db.AppendHistory(mmsi, pointAt(start.Add(time.Duration(i)*time.Second), 37.8, -122.4))
	}
	h := db.History(mmsi)
	if len(h) > HistoryMax {
		t.Errorf("history grew to %d, bound is %d", len(h), HistoryMax)
	}
	if db.NumPoints() != len(h) {
		t.Errorf("NumPoints %d != len(history) %d", db.NumPoints(), len(h))
	}
	// the newest point must survive the purge, and order must hold
	if h[len(h)-1].Timestamp != aismsg.Timestamp(start.Add(time.Duration(n-1)*time.Second)) {
		t.Error("newest point lost in purge")
	}
	for i := 1; i < len(h); i++ {
		if h[i].Timestamp < h[i-1].Timestamp {
			t.Fatalf("history out of order at %d", i)
		}
	}
}

func TestHistorySnapshotIsACopy(t *testing.T) {
	db := NewVesselDB()
	mmsi := aismsg.Mmsi(367000003)
	db.AppendHistory(mmsi, pointAt(time.Now(), 37.8, -122.4))
	snapshot := db.History(mmsi)
	db.SetAlertOnLast(mmsi, &Alert{MMSI: mmsi, Type: AlertSpeedAnomaly})
	if snapshot[0].Alert != nil {
		t.Error("snapshot mutated by a later write")
	}
	if db.History(mmsi)[0].Alert == nil {
		t.Error("alert not attached to the stored point")
	}
}

func TestUpdateStaticMerge(t *testing.T) {
	db := NewVesselDB()
	mmsi := aismsg.Mmsi(367000004)
	name := "EVENING STAR"
	dest := "OAKLAND"
	db.UpdateStatic(mmsi, &aismsg.StaticData{ShipName: &name, Destination: &dest})
	callsign := "WDE1234"
	db.UpdateStatic(mmsi, &aismsg.StaticData{Callsign: &callsign})

	s := db.StaticFor(mmsi)
	if s.Name == nil || *s.Name != name {
		t.Error("earlier name should persist through a partial update")
	}
	if s.Destination == nil || *s.Destination != dest {
		t.Error("earlier destination should persist")
	}
	if s.Callsign == nil || *s.Callsign != callsign {
		t.Error("later callsign should be merged in")
	}

	// repeating the same frame must not change anything
	before := db.NumVessels()
	db.UpdateStatic(mmsi, &aismsg.StaticData{Callsign: &callsign})
	if db.NumVessels() != before {
		t.Error("repeated static update duplicated the vessel")
	}

	// a later position keeps the merged voyage data
	db.UpsertPosition(stateAt(mmsi, 37.8, -122.4))
	v, ok := db.Latest(mmsi)
	if !ok || v.Callsign == nil || *v.Callsign != callsign {
		t.Error("latest state lost the merged voyage data")
	}
	if v.ShipName == nil || *v.ShipName != name {
		t.Error("latest state lost the ship name")
	}
}

func TestResetIdempotent(t *testing.T) {
	db := NewVesselDB()
	db.UpsertPosition(stateAt(1, 37.8, -122.4))
	db.AppendHistory(1, pointAt(time.Now(), 37.8, -122.4))
	for i := 0; i < 2; i++ {
		db.Reset()
		if db.NumVessels() != 0 || db.NumPoints() != 0 {
			t.Fatalf("reset %d left %d vessels, %d points",
				i, db.NumVessels(), db.NumPoints())
		}
		bay, _ := geo.NewRectangle(-90, -180, 90, 180)
		if len(db.SpatialQuery(bay)) != 0 {
			t.Fatalf("reset %d left vessels in the grid", i)
		}
	}
}

func TestBacklogChronological(t *testing.T) {
	db := NewVesselDB()
	start := time.Date(2026, 8, 26, 0, 0, 0, 0, time.UTC)
	// interleave two vessels' points out of insertion order
	for i := 0; i < 10; i++ {
		db.AppendHistory(1, pointAt(start.Add(time.Duration(2*i)*time.Second), 37.8, -122.4))
	}
	for i := 0; i < 10; i++ {
		db.AppendHistory(2, pointAt(start.Add(time.Duration(2*i+1)*time.Second), 37.9, -122.3))
	}
	all := db.Backlog(0)
	if len(all) != 20 {
		t.Fatalf("backlog has %d points, want 20", len(all))
	}
	for i := 1; i < len(all); i++ {
		if all[i].Timestamp < all[i-1].Timestamp {
			t.Fatalf("backlog out of order at %d", i)
		}
	}
	newest := db.Backlog(5)
	if len(newest) != 5 {
		t.Fatalf("limited backlog has %d points, want 5", len(newest))
	}
	if newest[4].Timestamp != all[19].Timestamp {
		t.Error("limited backlog should keep the newest points")
	}
}

// Check for errors under concurrent mixed access.
func TestConcurrentAccess(t *testing.T) {
	db := NewVesselDB()
	var wg sync.WaitGroup
	nVessels := 50
	nPoints := 40
	wg.Add(nVessels * 2)
	for i := 0; i < nVessels; i++ {
		mmsi := aismsg.Mmsi(367000000 + i)
		go func(mmsi aismsg.Mmsi) {
			defer wg.Done()
			for j := 0; j < nPoints; j++ {
				lat := 37.0 + float64(j)*0.01
				db.UpsertPosition(stateAt(mmsi, lat, -122.4))
				db.AppendHistory(mmsi, pointAt(time.Now(), lat, -122.4))
			}
		}(mmsi)
		go func(mmsi aismsg.Mmsi) {
			defer wg.Done()
			for j := 0; j < nPoints; j++ {
				db.History(mmsi)
				db.Latest(mmsi)
				bay, _ := geo.NewRectangle(36.0, -123.0, 39.0, -122.0)
				db.SpatialQuery(bay)
			}
		}(mmsi)
	}
	wg.Wait()
	if db.NumVessels() != nVessels {
		t.Errorf("%d vessels stored, want %d", db.NumVessels(), nVessels)
	}
	bay, _ := geo.NewRectangle(36.0, -123.0, 39.0, -122.0)
	if got := len(db.SpatialQuery(bay)); got != nVessels {
		t.Errorf("spatial query found %d vessels, want %d", got, nVessels)
	}
	for i := 0; i < nVessels; i++ {
		_ = fmt.Sprint(db.History(aismsg.Mmsi(367000000 + i)))
	}
}

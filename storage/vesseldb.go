// Package storage owns all mutable vessel state: the latest state per
// MMSI, the bounded per-vessel history, the merged voyage data, and the
// coarse grid index used for spatial queries.
package storage

import (
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/oceanwatch/aisguard/aismsg"
	"github.com/oceanwatch/aisguard/geo"
)

// HistoryMax is the maximum number of points stored per vessel.
// At one report every ~4 seconds this covers well over four hours.
const HistoryMax = 4096

// HistoryMin is the number of points retained when the history is full.
const HistoryMin = 3072

// ErrIllegalCoordinates is returned for positions outside WGS-84 bounds.
var ErrIllegalCoordinates = errors.New("coordinates out of range")

// VesselDB contains all the vessels.
// All writes arrive serialised through the dispatcher; reads may come
// from any goroutine.
type VesselDB struct {
	rw      sync.RWMutex
	vessels map[aismsg.Mmsi]*VesselState
	history map[aismsg.Mmsi][]HistoryPoint
	grid    map[geo.Cell]map[aismsg.Mmsi]struct{}
	cells   map[aismsg.Mmsi]geo.Cell
	static  map[aismsg.Mmsi]*StaticInfo
	points  int
}

// NewVesselDB creates an empty store.
func NewVesselDB() *VesselDB {
	db := &VesselDB{}
	db.init()
	return db
}

func (db *VesselDB) init() {
	db.vessels = make(map[aismsg.Mmsi]*VesselState)
	db.history = make(map[aismsg.Mmsi][]HistoryPoint)
	db.grid = make(map[geo.Cell]map[aismsg.Mmsi]struct{})
	db.cells = make(map[aismsg.Mmsi]geo.Cell)
	db.static = make(map[aismsg.Mmsi]*StaticInfo)
	db.points = 0
}

// UpsertPosition replaces the latest state of a vessel and moves it to
// the grid cell containing the new position. The state must carry a
// legal position.
func (db *VesselDB) UpsertPosition(state VesselState) error {
	if state.Lat == nil || state.Lon == nil ||
		!geo.LegalCoord(*state.Lat, *state.Lon) {
		return ErrIllegalCoordinates
	}
	db.rw.Lock()
	defer db.rw.Unlock()

	cell := geo.CellOf(*state.Lat, *state.Lon)
	if old, ok := db.cells[state.MMSI]; ok {
		if old == cell {
			db.commitLatest(state, cell)
			return nil
		}
		// remove from the old cell before inserting into the new
		delete(db.grid[old], state.MMSI)
		if len(db.grid[old]) == 0 {
			delete(db.grid, old)
		}
	}
	db.commitLatest(state, cell)
	return nil
}

// MergeState overlays a partial position onto the vessel's latest state,
// creating one if the vessel is new. Only the position and the name are
// taken from the argument; everything else keeps its previous value.
// Used for nav aids and base stations, whose reports carry no telemetry.
func (db *VesselDB) MergeState(state VesselState) error {
	if state.Lat == nil || state.Lon == nil ||
		!geo.LegalCoord(*state.Lat, *state.Lon) {
		return ErrIllegalCoordinates
	}
	db.rw.Lock()
	defer db.rw.Unlock()

	if prev, ok := db.vessels[state.MMSI]; ok {
		merged := *prev
		merged.Lat = state.Lat
		merged.Lon = state.Lon
		if state.ShipName != nil {
			merged.ShipName = state.ShipName
		}
		state = merged
	}
	cell := geo.CellOf(*state.Lat, *state.Lon)
	if old, ok := db.cells[state.MMSI]; ok && old != cell {
		delete(db.grid[old], state.MMSI)
		if len(db.grid[old]) == 0 {
			delete(db.grid, old)
		}
	}
	db.commitLatest(state, cell)
	return nil
}

func (db *VesselDB) commitLatest(state VesselState, cell geo.Cell) {
	if members, ok := db.grid[cell]; ok {
		members[state.MMSI] = struct{}{}
	} else {
		db.grid[cell] = map[aismsg.Mmsi]struct{}{state.MMSI: {}}
	}
	db.cells[state.MMSI] = cell
	if s, ok := db.static[state.MMSI]; ok {
		state.StaticInfo = *s
		if state.ShipName == nil {
			state.ShipName = s.Name
		}
	}
	db.vessels[state.MMSI] = &state
}

// UpdateStatic merges a static message into the vessel's voyage data.
// Fields the message doesn't carry keep their previous value, so
// repeating a message leaves the state unchanged.
func (db *VesselDB) UpdateStatic(mmsi aismsg.Mmsi, d *aismsg.StaticData) {
	db.rw.Lock()
	defer db.rw.Unlock()
	s, ok := db.static[mmsi]
	if !ok {
		s = &StaticInfo{}
		db.static[mmsi] = s
	}
	s.Merge(d)
	if v, ok := db.vessels[mmsi]; ok {
		v.StaticInfo = *s
		if d.ShipName != nil {
			v.ShipName = d.ShipName
		}
	} else {
		db.vessels[mmsi] = &VesselState{MMSI: mmsi, ShipName: s.Name, StaticInfo: *s}
	}
}

// StaticFor returns a copy of the merged voyage data for a vessel.
func (db *VesselDB) StaticFor(mmsi aismsg.Mmsi) StaticInfo {
	db.rw.RLock()
	defer db.rw.RUnlock()
	if s, ok := db.static[mmsi]; ok {
		return *s
	}
	return StaticInfo{}
}

// AppendHistory pushes a point onto the vessel's track.
// When the track reaches HistoryMax points the oldest are purged down to
// HistoryMin, so appends stay cheap and memory stays bounded.
func (db *VesselDB) AppendHistory(mmsi aismsg.Mmsi, hp HistoryPoint) {
	db.rw.Lock()
	defer db.rw.Unlock()
	h := db.history[mmsi]
	if len(h) >= HistoryMax {
		copy(h[:HistoryMin], h[len(h)-HistoryMin:])
		db.points -= len(h) - HistoryMin
		h = h[:HistoryMin]
	}
	db.history[mmsi] = append(h, hp)
	db.points++
}

// SetAlertOnLast attaches an alert to the most recently appended point.
// The anomaly engine runs after the append, so the alert arrives late.
func (db *VesselDB) SetAlertOnLast(mmsi aismsg.Mmsi, alert *Alert) {
	db.rw.Lock()
	defer db.rw.Unlock()
	h := db.history[mmsi]
	if len(h) > 0 {
		h[len(h)-1].Alert = alert
	}
}

// History returns a chronological snapshot of a vessel's track.
// The snapshot is a copy; the caller may keep it across later appends.
func (db *VesselDB) History(mmsi aismsg.Mmsi) []HistoryPoint {
	db.rw.RLock()
	defer db.rw.RUnlock()
	h := db.history[mmsi]
	snapshot := make([]HistoryPoint, len(h))
	copy(snapshot, h)
	return snapshot
}

// Latest returns a copy of the latest known state of a vessel.
func (db *VesselDB) Latest(mmsi aismsg.Mmsi) (VesselState, bool) {
	db.rw.RLock()
	defer db.rw.RUnlock()
	if v, ok := db.vessels[mmsi]; ok {
		return *v, true
	}
	return VesselState{}, false
}

// SpatialQuery returns the latest state of every vessel inside the box,
// ordered by MMSI. The grid narrows the candidates to the intersecting
// cells; exact containment is checked per vessel, so no duplicates and
// no strays from the cells' margins.
func (db *VesselDB) SpatialQuery(rect geo.Rectangle) []VesselState {
	db.rw.RLock()
	defer db.rw.RUnlock()
	found := []VesselState{}
	seen := make(map[aismsg.Mmsi]struct{})
	for _, cell := range rect.Cells() {
		for mmsi := range db.grid[cell] {
			if _, dup := seen[mmsi]; dup {
				continue
			}
			seen[mmsi] = struct{}{}
			v := db.vessels[mmsi]
			if v == nil || v.Lat == nil || v.Lon == nil {
				continue
			}
			if rect.ContainsPoint(geo.Point{Lat: *v.Lat, Lon: *v.Lon}) {
				found = append(found, *v)
			}
		}
	}
	sort.Slice(found, func(i, j int) bool { return found[i].MMSI < found[j].MMSI })
	return found
}

// Backlog returns up to limit of the newest history points across all
// vessels in globally chronological order. limit <= 0 means everything.
func (db *VesselDB) Backlog(limit int) []HistoryPoint {
	db.rw.RLock()
	all := make([]HistoryPoint, 0, db.points)
	for _, h := range db.history {
		all = append(all, h...)
	}
	db.rw.RUnlock()

	sort.SliceStable(all, func(i, j int) bool {
		return parseWhen(all[i].Timestamp).Before(parseWhen(all[j].Timestamp))
	})
	if limit > 0 && len(all) > limit {
		all = all[len(all)-limit:]
	}
	return all
}

func parseWhen(ts string) time.Time {
	t, err := aismsg.ParseTimestamp(ts)
	if err != nil {
		return time.Time{}
	}
	return t
}

// Reset clears every map atomically, for a fresh test run.
func (db *VesselDB) Reset() {
	db.rw.Lock()
	defer db.rw.Unlock()
	db.init()
}

// NumVessels returns the number of known vessels.
func (db *VesselDB) NumVessels() int {
	db.rw.RLock()
	defer db.rw.RUnlock()
	return len(db.vessels)
}

// NumPoints returns the total number of stored history points.
func (db *VesselDB) NumPoints() int {
	db.rw.RLock()
	defer db.rw.RUnlock()
	return db.points
}

package main

import (
	"context"
	"encoding/json"
	"time"

	"github.com/oceanwatch/aisguard/aismsg"
	"github.com/oceanwatch/aisguard/anomaly"
	"github.com/oceanwatch/aisguard/enrich"
	"github.com/oceanwatch/aisguard/hub"
	l "github.com/oceanwatch/aisguard/logger"
	"github.com/oceanwatch/aisguard/storage"
)

// QueueCap bounds the frame queue shared by the stream reader and the
// inject endpoints. Enqueueing never blocks; a full queue drops frames.
const QueueCap = 1024

// drainDeadline caps how long queued frames keep being processed after
// shutdown begins.
const drainDeadline = 5 * time.Second

// vesselUpdate is the frame format sent to websocket subscribers.
type vesselUpdate struct {
	Type         string                `json:"type"`
	HistoryPoint *storage.HistoryPoint `json:"history_point"`
}

func encodeUpdate(log *l.Logger, hp *storage.HistoryPoint) []byte {
	frame, err := json.Marshal(vesselUpdate{Type: "vessel_update", HistoryPoint: hp})
	if err != nil {
		// a history point is built from unmarshalled JSON, so this
		// can only mean a bug in the point's own fields
		log.Error("could not marshal vessel update: %s", err.Error())
		return nil
	}
	return frame
}

// encodeBacklog renders the stored history as subscriber frames,
// oldest first.
func encodeBacklog(log *l.Logger, db *storage.VesselDB, limit int) [][]byte {
	points := db.Backlog(limit)
	frames := make([][]byte, 0, len(points))
	for i := range points {
		if frame := encodeUpdate(log, &points[i]); frame != nil {
			frames = append(frames, frame)
		}
	}
	return frames
}

// Dispatcher is the single consumer of the frame queue. All writes to the
// vessel store happen on its goroutine, so enrich-append-inspect is atomic
// per frame and detectors always see the history they were computed against.
type Dispatcher struct {
	log      *l.Logger
	db       *storage.VesselDB
	enricher *enrich.Enricher
	engine   *anomaly.Engine
	hub      *hub.Hub
	queue    chan []byte

	// only touched on the dispatcher goroutine
	processed   uint64
	undecodable uint64
	alerts      uint64
}

func newDispatcher(log *l.Logger, db *storage.VesselDB, e *enrich.Enricher,
	engine *anomaly.Engine, h *hub.Hub) *Dispatcher {
	return &Dispatcher{
		log:      log,
		db:       db,
		enricher: e,
		engine:   engine,
		hub:      h,
		queue:    make(chan []byte, QueueCap),
	}
}

// Enqueue puts a frame on the queue. Reports whether there was room;
// never blocks, the stream reader must not stall on a slow dispatcher.
func (d *Dispatcher) Enqueue(frame []byte) bool {
	select {
	case d.queue <- frame:
		return true
	default:
		return false
	}
}

// Run processes frames until ctx is cancelled, then drains what is
// already queued and closes the hub.
func (d *Dispatcher) Run(ctx context.Context) {
	d.log.AddPeriodic("dispatcher", 40*time.Second, 10*time.Minute,
		func(c *l.Composer, _ time.Duration) {
			c.Writeln("dispatcher: %s frames, %d undecodable, %d alerts, %d vessels, %s points",
				l.SiMultiple(d.processed, 1000, 'M'), d.undecodable, d.alerts,
				d.db.NumVessels(), l.SiMultiple(uint64(d.db.NumPoints()), 1000, 'M'))
		})
	defer d.log.RemovePeriodic("dispatcher")
	for {
		select {
		case frame := <-d.queue:
			d.Process(frame)
		case <-ctx.Done():
			d.drain()
			// final stats line while the periodic loggers still exist
			d.log.RunAllPeriodic()
			d.hub.Close()
			return
		}
	}
}

func (d *Dispatcher) drain() {
	deadline := time.After(drainDeadline)
	for {
		select {
		case frame := <-d.queue:
			d.Process(frame)
		case <-deadline:
			return
		default:
			return
		}
	}
}

// Process decodes one frame, updates the store, runs the anomaly engine
// and broadcasts the resulting history point.
func (d *Dispatcher) Process(frame []byte) {
	ev, err := aismsg.Decode(frame)
	if err != nil {
		d.undecodable++
		d.log.Debug("dropping frame (%s): %s", err.Error(), l.Escape(frame))
		return
	}
	d.processed++

	var hp *storage.HistoryPoint
	switch ev.Class {
	case aismsg.ClassPosition:
		hp = d.processPosition(ev)
	case aismsg.ClassStatic:
		hp = d.enricher.Record(ev)
		d.db.UpdateStatic(ev.MMSI, ev.Static)
		d.db.AppendHistory(ev.MMSI, *hp)
	case aismsg.ClassNavAid, aismsg.ClassBaseStation:
		hp = d.enricher.Record(ev)
		d.db.AppendHistory(ev.MMSI, *hp)
		// fixed stations are still placed on the map
		if ev.Position != nil && ev.Position.Latitude != nil && ev.Position.Longitude != nil {
			d.upsertFixed(ev)
		}
	default:
		hp = d.enricher.Record(ev)
		d.db.AppendHistory(ev.MMSI, *hp)
	}
	if frame := encodeUpdate(d.log, hp); frame != nil {
		d.hub.Broadcast(frame)
	}
}

func (d *Dispatcher) processPosition(ev *aismsg.Event) *storage.HistoryPoint {
	hp, state := d.enricher.Position(ev)
	d.db.AppendHistory(ev.MMSI, *hp)
	if err := d.db.UpsertPosition(*state); err != nil {
		// the decoder already rejected out-of-range coordinates
		d.log.Warning("vessel %s: %s", ev.MMSI, err.Error())
	}
	if alert := d.engine.Inspect(ev.MMSI, d.db.History(ev.MMSI)); alert != nil {
		d.db.SetAlertOnLast(ev.MMSI, alert)
		hp.Alert = alert
		d.alerts++
		d.log.Info("%s", alert.Message)
	}
	return hp
}

func (d *Dispatcher) upsertFixed(ev *aismsg.Event) {
	state := storage.VesselState{
		MMSI:      ev.MMSI,
		MmsiClass: ev.MMSI.Class(),
		Lat:       ev.Position.Latitude,
		Lon:       ev.Position.Longitude,
	}
	if ev.Meta.ShipName != "" {
		name := ev.Meta.ShipName
		state.ShipName = &name
	}
	// a station frame only refreshes position and name; telemetry the
	// vessel reported earlier must survive it
	if err := d.db.MergeState(state); err != nil {
		d.log.Warning("station %s: %s", ev.MMSI, err.Error())
	}
}

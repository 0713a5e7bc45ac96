package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/oceanwatch/aisguard/aismsg"
)

// The inject endpoints fabricate upstream-shaped envelopes and put them
// on the same queue as live frames, so injected anomalies exercise the
// whole decode-enrich-detect path. Every fabricated envelope carries
// "injected": true.

func positionEnvelope(mmsi uint32, name string, lat, lon, sog, cog, heading float64,
	navStatus int, ts time.Time) ([]byte, error) {
	body, err := json.Marshal(aismsg.PositionReport{
		MessageID:          1,
		UserID:             mmsi,
		Latitude:           &lat,
		Longitude:          &lon,
		Sog:                &sog,
		Cog:                &cog,
		TrueHeading:        &heading,
		NavigationalStatus: &navStatus,
	})
	if err != nil {
		return nil, err
	}
	return json.Marshal(aismsg.Envelope{
		MessageType: "PositionReport",
		Message:     map[string]json.RawMessage{"PositionReport": body},
		MetaData: aismsg.MetaData{
			MMSI:      mmsi,
			ShipName:  name,
			Latitude:  &lat,
			Longitude: &lon,
			TimeUTC:   aismsg.Timestamp(ts),
		},
		Injected: true,
	})
}

func (a *api) enqueueInjected(w http.ResponseWriter, r *http.Request,
	response interface{}, what string, frames ...[]byte) {
	for _, frame := range frames {
		if !a.dispatcher.Enqueue(frame) {
			a.writeError(w, r, http.StatusServiceUnavailable, "Queue full")
			return
		}
	}
	a.writeJSON(w, r, http.StatusOK, response, what)
}

// readInjectBody guards the method and decodes the JSON body.
// Replies with an error itself and returns false when either fails.
func (a *api) readInjectBody(w http.ResponseWriter, r *http.Request, into interface{}) bool {
	if r.Method != "POST" {
		a.writeError(w, r, http.StatusMethodNotAllowed, "Method not allowed")
		return false
	}
	if err := json.NewDecoder(r.Body).Decode(into); err != nil {
		a.writeError(w, r, http.StatusBadRequest, "Invalid request body")
		return false
	}
	return true
}

func testVesselName(mmsi uint32) string {
	return fmt.Sprintf("TestVessel%d", mmsi)
}

func (a *api) injectStaticData(w http.ResponseWriter, r *http.Request) {
	var req struct {
		MMSI        uint32  `json:"mmsi"`
		Name        string  `json:"name"`
		IMO         int64   `json:"imo"`
		Callsign    string  `json:"callsign"`
		ShipType    string  `json:"ship_type"`
		Destination string  `json:"destination"`
		ETA         string  `json:"eta"`
		Draught     float64 `json:"draught"`
		DimA        int     `json:"dim_a"`
		DimB        int     `json:"dim_b"`
		DimC        int     `json:"dim_c"`
		DimD        int     `json:"dim_d"`
	}
	if !a.readInjectBody(w, r, &req) {
		return
	}
	if req.MMSI == 0 || req.Name == "" {
		a.writeError(w, r, http.StatusBadRequest, "Invalid request body")
		return
	}
	shipType := aismsg.ShipTypeCode(req.ShipType)
	eta, err := json.Marshal(req.ETA)
	if err != nil {
		a.writeError(w, r, http.StatusBadRequest, "Invalid request body")
		return
	}
	body, err := json.Marshal(aismsg.StaticData{
		IMO:         &req.IMO,
		Callsign:    &req.Callsign,
		ShipName:    &req.Name,
		ShipType:    &shipType,
		Destination: &req.Destination,
		ETA:         eta,
		Draught:     &req.Draught,
		ToBow:       &req.DimA,
		ToStern:     &req.DimB,
		ToPort:      &req.DimC,
		ToStarboard: &req.DimD,
	})
	if err != nil {
		a.writeError(w, r, http.StatusInternalServerError, "Internal server error")
		return
	}
	frame, err := json.Marshal(aismsg.Envelope{
		MessageType: "StaticData",
		Message:     map[string]json.RawMessage{"StaticData": body},
		MetaData: aismsg.MetaData{
			MMSI:     req.MMSI,
			ShipName: req.Name,
			TimeUTC:  aismsg.Timestamp(time.Now()),
		},
		Injected: true,
	})
	if err != nil {
		a.writeError(w, r, http.StatusInternalServerError, "Internal server error")
		return
	}
	a.enqueueInjected(w, r, map[string]interface{}{
		"status": "static data injected",
		"mmsi":   req.MMSI,
		"name":   req.Name,
	}, "inject static_data", frame)
}

func (a *api) injectDarkPeriod(w http.ResponseWriter, r *http.Request) {
	var req struct {
		MMSI       uint32   `json:"mmsi"`
		Lat        *float64 `json:"lat"`
		Lon        *float64 `json:"lon"`
		GapSeconds *int     `json:"gap_seconds"`
	}
	if !a.readInjectBody(w, r, &req) {
		return
	}
	if req.MMSI == 0 || req.Lat == nil || req.Lon == nil {
		a.writeError(w, r, http.StatusBadRequest, "Invalid request body")
		return
	}
	gap := 7200
	if req.GapSeconds != nil {
		gap = *req.GapSeconds
	}
	now := time.Now()
	name := testVesselName(req.MMSI)
	first, err1 := positionEnvelope(req.MMSI, name, *req.Lat, *req.Lon, 10, 45, 45, 0, now)
	second, err2 := positionEnvelope(req.MMSI, name, *req.Lat+0.001, *req.Lon+0.001,
		10, 45, 45, 0, now.Add(time.Duration(gap)*time.Second))
	if err1 != nil || err2 != nil {
		a.writeError(w, r, http.StatusInternalServerError, "Internal server error")
		return
	}
	a.enqueueInjected(w, r, map[string]string{"status": "dark period anomaly injected"},
		"inject dark_period", first, second)
}

func (a *api) injectTeleport(w http.ResponseWriter, r *http.Request) {
	var req struct {
		MMSI         uint32   `json:"mmsi"`
		Lat1         *float64 `json:"lat1"`
		Lon1         *float64 `json:"lon1"`
		Lat2         *float64 `json:"lat2"`
		Lon2         *float64 `json:"lon2"`
		SecondsApart *int     `json:"seconds_apart"`
	}
	if !a.readInjectBody(w, r, &req) {
		return
	}
	if req.MMSI == 0 || req.Lat1 == nil || req.Lon1 == nil || req.Lat2 == nil || req.Lon2 == nil {
		a.writeError(w, r, http.StatusBadRequest, "Invalid request body")
		return
	}
	apart := 60
	if req.SecondsApart != nil {
		apart = *req.SecondsApart
	}
	now := time.Now()
	name := testVesselName(req.MMSI)
	first, err1 := positionEnvelope(req.MMSI, name, *req.Lat1, *req.Lon1, 12, 90, 90, 0, now)
	second, err2 := positionEnvelope(req.MMSI, name, *req.Lat2, *req.Lon2,
		12, 90, 90, 0, now.Add(time.Duration(apart)*time.Second))
	if err1 != nil || err2 != nil {
		a.writeError(w, r, http.StatusInternalServerError, "Internal server error")
		return
	}
	a.enqueueInjected(w, r, map[string]string{"status": "teleport anomaly injected"},
		"inject teleport", first, second)
}

func (a *api) injectIdentitySwap(w http.ResponseWriter, r *http.Request) {
	var req struct {
		MMSI uint32   `json:"mmsi"`
		Lat  *float64 `json:"lat"`
		Lon  *float64 `json:"lon"`
	}
	if !a.readInjectBody(w, r, &req) {
		return
	}
	if req.MMSI == 0 || req.Lat == nil || req.Lon == nil {
		a.writeError(w, r, http.StatusBadRequest, "Invalid request body")
		return
	}
	now := time.Now()
	name := testVesselName(req.MMSI)
	first, err1 := positionEnvelope(req.MMSI, name, *req.Lat, *req.Lon, 10, 45, 45, 0, now)
	second, err2 := positionEnvelope(req.MMSI, name+"_SWAP", *req.Lat+0.001, *req.Lon+0.001,
		10, 45, 45, 0, now.Add(60*time.Second))
	if err1 != nil || err2 != nil {
		a.writeError(w, r, http.StatusInternalServerError, "Internal server error")
		return
	}
	a.enqueueInjected(w, r, map[string]string{"status": "identity swap anomaly injected"},
		"inject identity_swap", first, second)
}

func (a *api) injectTelemetry(w http.ResponseWriter, r *http.Request) {
	var req struct {
		MMSI      uint32   `json:"mmsi"`
		Lat       *float64 `json:"lat"`
		Lon       *float64 `json:"lon"`
		NavStatus *int     `json:"navigational_status"`
		Sog       *float64 `json:"sog"`
		Heading   *float64 `json:"heading"`
	}
	if !a.readInjectBody(w, r, &req) {
		return
	}
	if req.MMSI == 0 || req.Lat == nil || req.Lon == nil {
		a.writeError(w, r, http.StatusBadRequest, "Invalid request body")
		return
	}
	navStatus := 0
	if req.NavStatus != nil {
		navStatus = *req.NavStatus
	}
	sog, heading := 0.0, 0.0
	if req.Sog != nil {
		sog = *req.Sog
	}
	if req.Heading != nil {
		heading = *req.Heading
	}
	frame, err := positionEnvelope(req.MMSI, testVesselName(req.MMSI),
		*req.Lat, *req.Lon, sog, heading, heading, navStatus, time.Now())
	if err != nil {
		a.writeError(w, r, http.StatusInternalServerError, "Internal server error")
		return
	}
	a.enqueueInjected(w, r, map[string]string{"status": "telemetry injected"},
		"inject telemetry", frame)
}

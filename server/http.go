package main

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/oceanwatch/aisguard/aismsg"
	"github.com/oceanwatch/aisguard/geo"
	"github.com/oceanwatch/aisguard/hub"
	l "github.com/oceanwatch/aisguard/logger"
	"github.com/oceanwatch/aisguard/storage"
)

// api bundles what the HTTP handlers need.
type api struct {
	log        *l.Logger
	db         *storage.VesselDB
	dispatcher *Dispatcher
	hub        *hub.Hub
	chat       *chatClient
}

func writeAll(a *api, w http.ResponseWriter, r *http.Request, data []byte, what string) {
	for len(data) > 0 {
		n, err := w.Write(data)
		if err != nil {
			a.log.Info("IO error serving %s to %s: %s", what, r.RemoteAddr, err.Error())
			return
		}
		data = data[n:]
	}
}

func (a *api) writeJSON(w http.ResponseWriter, r *http.Request, status int, v interface{}, what string) {
	body, err := json.Marshal(v)
	if err != nil {
		a.log.Error("could not marshal %s response: %s", what, err.Error())
		body = []byte(`{"error":"Internal server error"}`)
		status = http.StatusInternalServerError
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if r.Method != "HEAD" {
		writeAll(a, w, r, body, what)
	}
}

func (a *api) writeError(w http.ResponseWriter, r *http.Request, status int, desc string) {
	a.writeJSON(w, r, status, map[string]string{"error": desc}, desc)
}

// newMux wires every endpoint.
func newMux(a *api) *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/history/", a.history)
	mux.HandleFunc("/spatial_query", a.spatialQuery)
	mux.HandleFunc("/reset_data", a.resetData)
	mux.HandleFunc("/ws", a.websocket)
	mux.HandleFunc("/inject/static_data", a.injectStaticData)
	mux.HandleFunc("/inject/dark_period", a.injectDarkPeriod)
	mux.HandleFunc("/inject/teleport", a.injectTeleport)
	mux.HandleFunc("/inject/identity_swap", a.injectIdentitySwap)
	mux.HandleFunc("/inject/telemetry", a.injectTelemetry)
	mux.HandleFunc("/api/chat", a.chatQuery)
	return mux
}

func (a *api) history(w http.ResponseWriter, r *http.Request) {
	if r.Method != "GET" && r.Method != "HEAD" {
		a.writeError(w, r, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	param := strings.TrimPrefix(r.URL.Path, "/history/")
	mmsi, err := strconv.Atoi(param)
	if err != nil || mmsi <= 0 || mmsi > 999999999 {
		a.writeError(w, r, http.StatusBadRequest, "Invalid MMSI")
		return
	}
	points := a.db.History(aismsg.Mmsi(mmsi))
	if points == nil {
		points = []storage.HistoryPoint{}
	}
	a.writeJSON(w, r, http.StatusOK, points, "history JSON")
}

func (a *api) spatialQuery(w http.ResponseWriter, r *http.Request) {
	if r.Method != "GET" && r.Method != "HEAD" {
		a.writeError(w, r, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	q := r.URL.Query()
	var bounds [4]float64
	for i, name := range [...]string{"min_lat", "max_lat", "min_lon", "max_lon"} {
		f, err := strconv.ParseFloat(q.Get(name), 64)
		if err != nil {
			a.writeError(w, r, http.StatusBadRequest, "Malformed coordinates")
			return
		}
		bounds[i] = f
	}
	rect, err := geo.NewRectangle(bounds[0], bounds[2], bounds[1], bounds[3])
	if err != nil {
		a.writeError(w, r, http.StatusBadRequest, "Malformed coordinates")
		return
	}
	vessels := a.db.SpatialQuery(rect)
	if vessels == nil {
		vessels = []storage.VesselState{}
	}
	a.writeJSON(w, r, http.StatusOK, vessels, "spatial query JSON")
}

func (a *api) resetData(w http.ResponseWriter, r *http.Request) {
	if r.Method != "POST" {
		a.writeError(w, r, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	a.db.Reset()
	a.log.Info("vessel store reset by %s", r.RemoteAddr)
	a.writeJSON(w, r, http.StatusOK, map[string]string{"status": "reset complete"}, "reset")
}

func (a *api) websocket(w http.ResponseWriter, r *http.Request) {
	if r.Method != "GET" {
		a.writeError(w, r, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	a.hub.ServeWS(w, r)
}

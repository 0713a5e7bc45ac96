//go test -v -race || go test -v
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/oceanwatch/aisguard/anomaly"
	"github.com/oceanwatch/aisguard/enrich"
	"github.com/oceanwatch/aisguard/hub"
	l "github.com/oceanwatch/aisguard/logger"
	"github.com/oceanwatch/aisguard/storage"
)

// spins up the whole API with a running dispatcher
func newTestAPI(t *testing.T) (*httptest.Server, *storage.VesselDB) {
	t.Helper()
	log := l.NewLogger(os.Stderr, l.Error)
	db := storage.NewVesselDB()
	h := hub.New(log, func(limit int) [][]byte { return encodeBacklog(log, db, limit) })
	dispatcher := newDispatcher(log, db, enrich.New(db), anomaly.New(), h)

	ctx, cancel := context.WithCancel(context.Background())
	go dispatcher.Run(ctx)

	srv := httptest.NewServer(newMux(&api{
		log:        log,
		db:         db,
		dispatcher: dispatcher,
		hub:        h,
		chat:       newChatClient(log, db, ""),
	}))
	t.Cleanup(func() {
		srv.Close()
		cancel()
	})
	return srv, db
}

func postJSON(t *testing.T, url string, body interface{}) (*http.Response, []byte) {
	t.Helper()
	encoded, err := json.Marshal(body)
	if err != nil {
		t.Fatal(err)
	}
	resp, err := http.Post(url, "application/json", bytes.NewReader(encoded))
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	var buf bytes.Buffer
	if _, err := buf.ReadFrom(resp.Body); err != nil {
		t.Fatal(err)
	}
	return resp, buf.Bytes()
}

func getJSON(t *testing.T, url string, into interface{}) *http.Response {
	t.Helper()
	resp, err := http.Get(url)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if err := json.NewDecoder(resp.Body).Decode(into); err != nil {
		t.Fatalf("GET %s: undecodable body: %s", url, err)
	}
	return resp
}

func waitForHistory(t *testing.T, base string, mmsi int, points int) []json.RawMessage {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for {
		var history []json.RawMessage
		getJSON(t, fmt.Sprintf("%s/history/%d", base, mmsi), &history)
		if len(history) >= points {
			return history
		}
		if time.Now().After(deadline) {
			t.Fatalf("vessel %d never reached %d history points", mmsi, points)
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestInjectQueryReset(t *testing.T) {
	srv, _ := newTestAPI(t)
	const mmsi = 123456789

	resp, body := postJSON(t, srv.URL+"/inject/telemetry", map[string]interface{}{
		"mmsi": mmsi, "lat": 37.75, "lon": -122.45,
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("inject answered %s: %s", resp.Status, body)
	}
	var status map[string]string
	if err := json.Unmarshal(body, &status); err != nil || status["status"] != "telemetry injected" {
		t.Fatalf("unexpected inject response %s", body)
	}
	waitForHistory(t, srv.URL, mmsi, 1)

	// the vessel is in the box
	var vessels []struct {
		MMSI int      `json:"mmsi"`
		Lat  *float64 `json:"lat"`
	}
	getJSON(t, srv.URL+"/spatial_query?min_lat=37.2&max_lat=38.2&min_lon=-123.0&max_lon=-121.5",
		&vessels)
	if len(vessels) != 1 || vessels[0].MMSI != mmsi {
		t.Fatalf("spatial query found %+v", vessels)
	}
	// and not in a disjoint one
	getJSON(t, srv.URL+"/spatial_query?min_lat=38.3&max_lat=38.5&min_lon=-123.0&max_lon=-122.5",
		&vessels)
	if len(vessels) != 0 {
		t.Fatalf("disjoint box found %+v", vessels)
	}

	resp, body = postJSON(t, srv.URL+"/reset_data", struct{}{})
	if resp.StatusCode != http.StatusOK || !bytes.Contains(body, []byte("reset complete")) {
		t.Fatalf("reset answered %s: %s", resp.Status, body)
	}
	var history []json.RawMessage
	getJSON(t, fmt.Sprintf("%s/history/%d", srv.URL, mmsi), &history)
	if len(history) != 0 {
		t.Errorf("history survived reset: %d points", len(history))
	}
}

func TestDarkPeriodEndToEnd(t *testing.T) {
	srv, db := newTestAPI(t)
	const mmsi = 987654321

	resp, body := postJSON(t, srv.URL+"/inject/dark_period", map[string]interface{}{
		"mmsi": mmsi, "lat": 37.7, "lon": -122.4,
	})
	if resp.StatusCode != http.StatusOK || !bytes.Contains(body, []byte("dark period anomaly injected")) {
		t.Fatalf("inject answered %s: %s", resp.Status, body)
	}
	waitForHistory(t, srv.URL, mmsi, 2)

	history := db.History(mmsi)
	last := history[len(history)-1]
	if last.Alert == nil || last.Alert.Type != storage.AlertTransmissionGap {
		t.Fatalf("expected transmission_gap after dark period inject, got %v", last.Alert)
	}
}

func TestHistoryRejectsBadMMSI(t *testing.T) {
	srv, _ := newTestAPI(t)
	for _, path := range []string{"/history/abc", "/history/0", "/history/1234567890"} {
		resp, err := http.Get(srv.URL + path)
		if err != nil {
			t.Fatal(err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusBadRequest {
			t.Errorf("GET %s answered %s, want 400", path, resp.Status)
		}
	}
}

func TestSpatialQueryRejectsMalformedBounds(t *testing.T) {
	srv, _ := newTestAPI(t)
	paths := []string{
		"/spatial_query",
		"/spatial_query?min_lat=37&max_lat=not&min_lon=-123&max_lon=-121",
		"/spatial_query?min_lat=38&max_lat=37&min_lon=-123&max_lon=-121",
	}
	for _, path := range paths {
		resp, err := http.Get(srv.URL + path)
		if err != nil {
			t.Fatal(err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusBadRequest {
			t.Errorf("GET %s answered %s, want 400", path, resp.Status)
		}
	}
}

func TestChatWithoutKey(t *testing.T) {
	srv, _ := newTestAPI(t)

	resp, body := postJSON(t, srv.URL+"/api/chat", map[string]interface{}{})
	if resp.StatusCode != http.StatusBadRequest || !bytes.Contains(body, []byte("Invalid request")) {
		t.Errorf("missing query answered %s: %s", resp.Status, body)
	}

	resp, body = postJSON(t, srv.URL+"/api/chat", map[string]interface{}{
		"query": "what vessels are near Alcatraz?",
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("chat answered %s", resp.Status)
	}
	var answer chatAnswer
	if err := json.Unmarshal(body, &answer); err != nil {
		t.Fatal(err)
	}
	if answer.Response != chatNotConfigured {
		t.Errorf("got %q, want the canned unconfigured response", answer.Response)
	}
	if answer.Actions == nil || len(answer.Actions) != 0 {
		t.Errorf("actions should be an empty array, got %v", answer.Actions)
	}
}

func TestExtractActions(t *testing.T) {
	text := "Here are two tankers.\n```json\n{\"actions\":[{\"type\":\"focus\",\"mmsi\":123456789}]}\n```\nLet me know if you need more."
	stripped, actions := extractActions(text)
	if len(actions) != 1 {
		t.Fatalf("got %d actions, want 1", len(actions))
	}
	if bytes.Contains([]byte(stripped), []byte("```")) {
		t.Errorf("block not stripped: %q", stripped)
	}

	plain := "No JSON here."
	stripped, actions = extractActions(plain)
	if stripped != plain || len(actions) != 0 {
		t.Errorf("plain text mangled: %q %v", stripped, actions)
	}
}

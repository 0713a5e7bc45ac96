//go test -v -race || go test -v
package hub

import (
	"bytes"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	l "github.com/oceanwatch/aisguard/logger"
)

func testLogger() *l.Logger {
	return l.NewLogger(os.Stderr, l.Error)
}

func frames(n int, prefix string) [][]byte {
	fs := make([][]byte, n)
	for i := range fs {
		fs[i] = []byte(fmt.Sprintf("%s-%d", prefix, i))
	}
	return fs
}

func TestBroadcastReachesAllSubscribers(t *testing.T) {
	h := New(testLogger(), nil)
	defer h.Close()

	var feeds []<-chan []byte
	for i := 0; i < 3; i++ {
		_, feed, _, ok := h.attach()
		if !ok {
			t.Fatal("attach failed on open hub")
		}
		feeds = append(feeds, feed)
	}
	sent := frames(5, "update")
	for _, f := range sent {
		h.Broadcast(f)
	}
	for si, feed := range feeds {
		for fi, want := range sent {
			got := <-feed
			if !bytes.Equal(got, want) {
				t.Errorf("subscriber %d frame %d: got %q, want %q", si, fi, got, want)
			}
		}
	}
}

func TestBacklogPrecedesLiveFrames(t *testing.T) {
	stored := frames(4, "old")
	h := New(testLogger(), func(limit int) [][]byte {
		if limit != BacklogLimit {
			t.Errorf("backlog asked for %d frames, want %d", limit, BacklogLimit)
		}
		return stored
	})
	defer h.Close()

	replay, feed, _, ok := h.attach()
	if !ok {
		t.Fatal("attach failed")
	}
	h.Broadcast([]byte("live-0"))
	if len(replay) != len(stored) {
		t.Fatalf("got %d replay frames, want %d", len(replay), len(stored))
	}
	for i, want := range stored {
		if !bytes.Equal(replay[i], want) {
			t.Errorf("replay frame %d: got %q, want %q", i, replay[i], want)
		}
	}
	if got := <-feed; string(got) != "live-0" {
		t.Errorf("first live frame was %q", got)
	}
}

func TestSlowSubscriberIsEvicted(t *testing.T) {
	h := New(testLogger(), nil)
	defer h.Close()

	_, slow, _, _ := h.attach()
	_, fast, _, _ := h.attach()

	// never read from slow
	for i := 0; i < SubscriberChannelCap+1; i++ {
		h.Broadcast([]byte(fmt.Sprintf("f-%d", i)))
		for len(fast) > 0 {
			<-fast
		}
	}
	subs, sent, evicted := h.Stats()
	if subs != 1 || evicted != 1 {
		t.Errorf("got %d subscribers and %d evictions, want 1 and 1", subs, evicted)
	}
	if sent != SubscriberChannelCap+1 {
		t.Errorf("got %d frames sent, want %d", sent, SubscriberChannelCap+1)
	}
	// the channel must have been closed so a write pump can exit
	drained := 0
	for range slow {
		drained++
	}
	if drained != SubscriberChannelCap {
		t.Errorf("slow subscriber had %d buffered frames, want %d", drained, SubscriberChannelCap)
	}
}

func TestCloseStopsEverything(t *testing.T) {
	h := New(testLogger(), nil)
	_, feed, _, _ := h.attach()
	h.Close()
	if _, open := <-feed; open {
		t.Error("feed still open after Close")
	}
	h.Broadcast([]byte("ignored")) // must not panic
	if _, _, _, ok := h.attach(); ok {
		t.Error("attach succeeded on closed hub")
	}
	h.Close() // closing twice is fine
}

func TestServeWS(t *testing.T) {
	stored := frames(3, "old")
	h := New(testLogger(), func(int) [][]byte { return stored })
	defer h.Close()

	srv := httptest.NewServer(http.HandlerFunc(h.ServeWS))
	defer srv.Close()
	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial %s: %s", url, err)
	}
	defer conn.Close()

	// wait for the subscriber to register before broadcasting
	deadline := time.Now().Add(2 * time.Second)
	for {
		if subs, _, _ := h.Stats(); subs == 1 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("subscriber never attached")
		}
		time.Sleep(5 * time.Millisecond)
	}
	h.Broadcast([]byte("live-0"))

	want := append(append([][]byte{}, stored...), []byte("live-0"))
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	for i, w := range want {
		_, got, err := conn.ReadMessage()
		if err != nil {
			t.Fatalf("frame %d: read error %s", i, err)
		}
		if !bytes.Equal(got, w) {
			t.Errorf("frame %d: got %q, want %q", i, got, w)
		}
	}
}

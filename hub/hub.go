// Package hub fans enriched vessel updates out to websocket subscribers.
// Every subscriber gets a bounded channel; the hub never blocks on a slow
// consumer, it evicts them instead. New subscribers are first brought up to
// date with a chronological backlog of stored history before receiving live
// frames.
package hub

import (
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	l "github.com/oceanwatch/aisguard/logger"
)

const (
	// SubscriberChannelCap is the capacity of the channel to each subscriber.
	// A subscriber that falls this far behind is evicted.
	SubscriberChannelCap = 256
	// BacklogLimit caps how many stored frames a new subscriber is sent.
	BacklogLimit = 10000

	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
	// frames are small JSON documents; anything bigger is a client bug
	maxReadLimit = 4096
)

// monotonically increasing ID identifying a subscriber.
type token uint64

// BacklogFunc returns up to limit stored frames in chronological order.
type BacklogFunc func(limit int) [][]byte

// Hub tracks subscribers and forwards frames to them.
// The zero value is not usable; create one with New().
type Hub struct {
	log      *l.Logger
	backlog  BacklogFunc
	upgrader websocket.Upgrader

	mu          sync.Mutex
	subscribers map[token]chan []byte
	prevToken   token
	closed      bool
	sent        uint64
	evicted     uint64
}

// New creates a Hub. backlog may be nil if there is no history to replay.
func New(log *l.Logger, backlog BacklogFunc) *Hub {
	return &Hub{
		log:     log,
		backlog: backlog,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			// the map frontend is served from anywhere
			CheckOrigin: func(*http.Request) bool { return true },
		},
		subscribers: make(map[token]chan []byte),
	}
}

// Broadcast forwards a frame to every subscriber.
// Never blocks: a subscriber whose channel is full is evicted.
func (h *Hub) Broadcast(frame []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	h.sent++
	for t, c := range h.subscribers {
		select {
		case c <- frame:
		default:
			// too far behind to ever catch up
			close(c)
			delete(h.subscribers, t)
			h.evicted++
			h.log.Warning("evicting subscriber %d: %d frames behind", t, cap(c))
		}
	}
}

// attach registers a subscriber and snapshots the backlog it should be
// sent before any live frame. holds the lock for both so live frames
// broadcast after the snapshot end up on the channel, after the backlog.
func (h *Hub) attach() ([][]byte, <-chan []byte, token, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return nil, nil, 0, false
	}
	var replay [][]byte
	if h.backlog != nil {
		replay = h.backlog(BacklogLimit)
	}
	c := make(chan []byte, SubscriberChannelCap)
	h.prevToken++
	h.subscribers[h.prevToken] = c
	return replay, c, h.prevToken, true
}

// detach removes a subscriber unless the hub already evicted it.
func (h *Hub) detach(t token) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if c, ok := h.subscribers[t]; ok {
		close(c)
		delete(h.subscribers, t)
	}
}

// Close evicts all subscribers and makes further broadcasts no-ops.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	h.closed = true
	for t, c := range h.subscribers {
		close(c)
		delete(h.subscribers, t)
	}
}

// Stats returns the current number of subscribers, the number of frames
// broadcast and the number of subscribers evicted for being too slow.
func (h *Hub) Stats() (subscribers int, sent, evicted uint64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subscribers), h.sent, h.evicted
}

// ServeWS upgrades the request to a websocket and streams updates to it.
// Doesn't return until the client disconnects or falls too far behind.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already replied with an error
		h.log.Warning("websocket upgrade from %s failed: %s", r.RemoteAddr, err.Error())
		return
	}
	replay, feed, t, ok := h.attach()
	if !ok {
		_ = conn.Close()
		return
	}
	h.log.Info("websocket subscriber %d connected from %s", t, r.RemoteAddr)
	go h.writePump(conn, replay, feed, t)
	h.readPump(conn, t)
}

// readPump discards anything the client sends and keeps the read deadline
// fresh from pongs. Returns when the connection dies, which also stops the
// write pump through the closed connection.
func (h *Hub) readPump(conn *websocket.Conn, t token) {
	defer func() {
		h.detach(t)
		_ = conn.Close()
	}()
	conn.SetReadLimit(maxReadLimit)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.log.Debug("websocket subscriber %d read error: %s", t, err.Error())
			}
			return
		}
	}
}

// writePump sends the backlog, then live frames and pings.
// Returns when the feed is closed (eviction or hub shutdown) or a write fails.
func (h *Hub) writePump(conn *websocket.Conn, replay [][]byte, feed <-chan []byte, t token) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		h.detach(t)
		_ = conn.Close()
	}()
	for _, frame := range replay {
		if !h.write(conn, websocket.TextMessage, frame, t) {
			return
		}
	}
	for {
		select {
		case frame, open := <-feed:
			if !open {
				_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
				_ = conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseGoingAway, "falling behind"))
				return
			}
			if !h.write(conn, websocket.TextMessage, frame, t) {
				return
			}
		case <-ticker.C:
			if !h.write(conn, websocket.PingMessage, nil, t) {
				return
			}
		}
	}
}

func (h *Hub) write(conn *websocket.Conn, messageType int, frame []byte, t token) bool {
	_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := conn.WriteMessage(messageType, frame); err != nil {
		h.log.Debug("websocket subscriber %d write error: %s", t, err.Error())
		return false
	}
	return true
}

package main

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff"
	"github.com/gorilla/websocket"

	l "github.com/oceanwatch/aisguard/logger"
)

// DefaultStreamURL is the public aisstream.io endpoint.
const DefaultStreamURL = "wss://stream.aisstream.io/v0/stream"

const (
	retryAfterMin = 5 * time.Second
	retryAfterMax = 60 * time.Second
	// the upstream drops connections that don't subscribe within ~3 s
	subscribeWriteWait = 3 * time.Second
	handshakeTimeout   = 10 * time.Second
)

// streamBoundingBox covers the San Francisco Bay Area.
var streamBoundingBox = [][]float64{{38.2, -123.0}, {37.2, -121.5}}

// streamMessageTypes is everything the upstream can send; filtering
// happens after decoding, not in the subscription.
var streamMessageTypes = []string{
	"PositionReport", "UnknownMessage", "AddressedSafetyMessage",
	"AddressedBinaryMessage", "AidsToNavigationReport", "AssignedModeCommand",
	"BaseStationReport", "BinaryAcknowledge", "BinaryBroadcastMessage",
	"ChannelManagement", "CoordinatedUTCInquiry", "DataLinkManagementMessage",
	"DataLinkManagementMessageData", "ExtendedClassBPositionReport",
	"GroupAssignmentCommand", "GnssBroadcastBinaryMessage", "Interrogation",
	"LongRangeAisBroadcastMessage", "MultiSlotBinaryMessage",
	"SafetyBroadcastMessage", "ShipStaticData", "SingleSlotBinaryMessage",
	"StandardClassBPositionReport", "StandardSearchAndRescueAircraftReport",
	"StaticDataReport",
}

// subscription is the first frame written after connecting.
type subscription struct {
	APIKey             string        `json:"APIKey"`
	BoundingBoxes      [][][]float64 `json:"BoundingBoxes"`
	FilterMessageTypes []string      `json:"FilterMessageTypes"`
}

func newStreamBackoff() *backoff.ExponentialBackOff {
	eb := backoff.NewExponentialBackOff()
	eb.InitialInterval = retryAfterMin
	eb.MaxInterval = retryAfterMax
	eb.Multiplier = 2
	eb.RandomizationFactor = 0.0
	eb.MaxElapsedTime = 0 // never give up
	eb.Reset()
	return eb
}

// Ingester reads the upstream websocket and feeds raw frames to the
// dispatcher. It reconnects with exponential backoff, resetting the
// delay once a subscription succeeds.
type Ingester struct {
	log        *l.Logger
	url        string
	key        string
	dispatcher *Dispatcher

	// read atomically: the stats logger runs on another goroutine
	frames     uint64
	bytes      uint64
	dropped    uint64
	reconnects uint64
}

func newIngester(log *l.Logger, url, key string, d *Dispatcher) *Ingester {
	return &Ingester{log: log, url: url, key: key, dispatcher: d}
}

// Run connects, reads and reconnects until ctx is cancelled.
func (in *Ingester) Run(ctx context.Context) {
	in.log.AddPeriodic("stream", 40*time.Second, 10*time.Minute,
		func(c *l.Composer, sinceLast time.Duration) {
			c.Writeln("stream: %s frames, %sB, %d dropped, %d reconnects (last %s)",
				l.SiMultiple(atomic.LoadUint64(&in.frames), 1000, 'M'),
				l.SiMultiple(atomic.LoadUint64(&in.bytes), 1024, 'G'),
				atomic.LoadUint64(&in.dropped),
				atomic.LoadUint64(&in.reconnects),
				l.RoundDuration(sinceLast, time.Second))
		})
	defer in.log.RemovePeriodic("stream")

	b := newStreamBackoff()
	for ctx.Err() == nil {
		err := in.readStream(ctx, b)
		if ctx.Err() != nil {
			return
		}
		atomic.AddUint64(&in.reconnects, 1)
		wait := b.NextBackOff()
		in.log.Warning("%s; reconnecting in %s",
			err.Error(), l.RoundDuration(wait, time.Second/10))
		select {
		case <-time.After(wait):
		case <-ctx.Done():
			return
		}
	}
}

// readStream runs one connection from dial to read error.
func (in *Ingester) readStream(ctx context.Context, b *backoff.ExponentialBackOff) error {
	dialer := websocket.Dialer{HandshakeTimeout: handshakeTimeout}
	conn, _, err := dialer.DialContext(ctx, in.url, nil)
	if err != nil {
		return fmt.Errorf("connect to %s: %w", in.url, err)
	}
	defer conn.Close()
	// unblock ReadMessage on shutdown
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			_ = conn.Close()
		case <-done:
		}
	}()

	_ = conn.SetWriteDeadline(time.Now().Add(subscribeWriteWait))
	err = conn.WriteJSON(subscription{
		APIKey:             in.key,
		BoundingBoxes:      [][][]float64{streamBoundingBox},
		FilterMessageTypes: streamMessageTypes,
	})
	if err != nil {
		return fmt.Errorf("subscribe: %w", err)
	}
	in.log.Info("subscribed to %s", in.url)
	b.Reset()

	for {
		_, frame, err := conn.ReadMessage()
		if err != nil {
			return fmt.Errorf("stream read: %w", err)
		}
		atomic.AddUint64(&in.frames, 1)
		atomic.AddUint64(&in.bytes, uint64(len(frame)))
		if !in.dispatcher.Enqueue(frame) {
			if atomic.AddUint64(&in.dropped, 1) == 1 {
				in.log.Warning("frame queue full, dropping frames")
			}
		}
	}
}

// The aisguard server ingests an AIS vessel stream for the San Francisco
// Bay Area, keeps per-vessel history with a grid spatial index, flags
// movement anomalies (gone dark, teleports, identity swaps, implausible
// speed, sudden turns, circle spoofing) and serves the result over HTTP
// and websocket.
package main

import (
	"context"
	"flag"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/oceanwatch/aisguard/anomaly"
	"github.com/oceanwatch/aisguard/enrich"
	"github.com/oceanwatch/aisguard/hub"
	l "github.com/oceanwatch/aisguard/logger"
	"github.com/oceanwatch/aisguard/storage"
)

// Log is the process-wide logger.
var Log = l.NewLogger(os.Stderr, l.Info)

func main() {
	upstreamURL := flag.String("url", DefaultStreamURL, "upstream AIS stream websocket URL")
	httpAddr := flag.String("http", ":8000", "address to serve the HTTP API on")
	verbose := flag.Bool("v", false, "print debug messages")
	flag.Parse()
	if *verbose {
		Log.Threshold = l.Debug
	}

	streamKey := os.Getenv("AIS_STREAM_KEY")
	Log.FatalIf(streamKey == "", "AIS_STREAM_KEY is not set")
	openaiKey := os.Getenv("OPENAI_API_KEY")
	Log.Info("using stream key %s", maskKey(streamKey))
	if openaiKey == "" {
		Log.Info("OPENAI_API_KEY is not set, /api/chat will answer canned responses")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db := storage.NewVesselDB()
	h := hub.New(Log, func(limit int) [][]byte {
		return encodeBacklog(Log, db, limit)
	})
	dispatcher := newDispatcher(Log, db, enrich.New(db), anomaly.New(), h)
	ingester := newIngester(Log, *upstreamURL, streamKey, dispatcher)
	go ingester.Run(ctx)

	srv := &http.Server{
		Addr: *httpAddr,
		Handler: newMux(&api{
			log:        Log,
			db:         db,
			dispatcher: dispatcher,
			hub:        h,
			chat:       newChatClient(Log, db, openaiKey),
		}),
		ReadHeaderTimeout: 10 * time.Second,
	}
	if errors := Log.WriteAdapter(l.Warning); errors != nil {
		srv.ErrorLog = log.New(errors, "http: ", 0)
	}
	listener, err := net.Listen("tcp", *httpAddr)
	Log.FatalIfErr(err, "listen on %s", *httpAddr)
	go func() {
		Log.Info("serving HTTP on %s", *httpAddr)
		err := srv.Serve(listener)
		if err != http.ErrServerClosed {
			Log.Fatal("HTTP server: %s", err.Error())
		}
	}()

	// blocks until a signal arrives and the queue has been drained
	dispatcher.Run(ctx)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), drainDeadline)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		Log.Warning("HTTP shutdown: %s", err.Error())
	}
	Log.Info("bye")
	Log.Close()
}

// maskKey hides all but the last four characters of a credential.
func maskKey(key string) string {
	if len(key) <= 4 {
		return strings.Repeat("*", len(key))
	}
	return strings.Repeat("*", len(key)-4) + key[len(key)-4:]
}

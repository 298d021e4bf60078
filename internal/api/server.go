// Package api is ruggedgo's debug HTTP/websocket surface: cache
// occupancy and tile/zipper footprints for a map view, and a live
// direct-location sweep over a websocket for watching a sensor's swath
// move across the ground in real time.
package api

import (
	"fmt"
	"log/slog"
	"net/http"
	"net/http/pprof"
	"time"

	"github.com/CS-SI/ruggedgo/pkg/terrain/core"
)

// NewServer wires the debug endpoints around a *core.Rugged instance.
func NewServer(addr string, rugged *core.Rugged, shutdown func()) *http.Server {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", handleHealth)

	cacheH := NewCacheHandler(rugged)
	mux.HandleFunc("GET /api/cache/occupancy", cacheH.HandleOccupancy)
	mux.HandleFunc("GET /api/cache/footprints", cacheH.HandleFootprints)

	locH := NewLocationHandler(rugged)
	mux.HandleFunc("GET /api/direct-location", locH.HandleDirect)
	mux.HandleFunc("GET /api/inverse-location", locH.HandleInverse)

	sweepH := NewSweepHandler(rugged)
	mux.HandleFunc("GET /api/sweep", sweepH.HandleWebSocket)

	mux.HandleFunc("GET /debug/pprof/", pprof.Index)
	mux.HandleFunc("GET /debug/pprof/cmdline", pprof.Cmdline)
	mux.HandleFunc("GET /debug/pprof/profile", pprof.Profile)
	mux.HandleFunc("GET /debug/pprof/symbol", pprof.Symbol)
	mux.HandleFunc("GET /debug/pprof/trace", pprof.Trace)
	mux.Handle("GET /debug/pprof/heap", pprof.Handler("heap"))
	mux.Handle("GET /debug/pprof/goroutine", pprof.Handler("goroutine"))

	mux.HandleFunc("POST /api/shutdown", func(w http.ResponseWriter, r *http.Request) {
		slog.Info("graceful shutdown initiated via API")
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write([]byte("shutting down...")); err != nil {
			slog.Error("failed to write shutdown response", "error", err)
		}
		go func() {
			time.Sleep(100 * time.Millisecond)
			shutdown()
		}()
	})

	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		mux.ServeHTTP(w, r)
	})

	return &http.Server{
		Addr:         addr,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write([]byte("OK")); err != nil {
		slog.Error("failed to write health response", "error", err)
	}
}

func writeJSONError(w http.ResponseWriter, status int, format string, args ...any) {
	http.Error(w, fmt.Sprintf(format, args...), status)
}

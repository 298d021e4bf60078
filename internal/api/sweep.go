package api

import (
	"log/slog"
	"math"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/CS-SI/ruggedgo/pkg/terrain/core"
)

// SweepHandler streams a sensor's direct-location sweep over a
// websocket: one message per line, containing every pixel's ground
// point, so a debug map can animate the swath moving across the ground.
type SweepHandler struct {
	rugged   *core.Rugged
	upgrader websocket.Upgrader
}

// NewSweepHandler builds a SweepHandler.
func NewSweepHandler(rugged *core.Rugged) *SweepHandler {
	return &SweepHandler{
		rugged: rugged,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

type sweepLine struct {
	Line   float64    `json:"line"`
	Points [][2]float64 `json:"points"` // [lon_deg, lat_deg] per sampled pixel
}

// HandleWebSocket serves GET /api/sweep?sensor=...&first=...&last=...&step=...&pixel_stride=...
func (h *SweepHandler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	sensorName := r.URL.Query().Get("sensor")
	if sensorName == "" {
		writeJSONError(w, http.StatusBadRequest, "sensor is required")
		return
	}
	s, err := h.rugged.Sensor(sensorName)
	if err != nil {
		writeJSONError(w, http.StatusNotFound, "%v", err)
		return
	}

	first, ok := parseFloatParam(r, "first")
	if !ok {
		first = float64(s.FirstLine)
	}
	last, ok := parseFloatParam(r, "last")
	if !ok {
		last = float64(s.LastLine)
	}
	step, ok := parseFloatParam(r, "step")
	if !ok || step <= 0 {
		step = 1
	}
	stride, ok := parseFloatParam(r, "pixel_stride")
	if !ok || stride < 1 {
		stride = float64(s.NbPixels / 20)
		if stride < 1 {
			stride = 1
		}
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Error("sweep websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	for line := first; line <= last; line += step {
		var points [][2]float64
		for pixel := 0.0; pixel < float64(s.NbPixels); pixel += stride {
			gp, err := h.rugged.DirectLocation(sensorName, line, pixel)
			if err != nil {
				continue
			}
			points = append(points, [2]float64{gp.Lon * 180 / math.Pi, gp.Lat * 180 / math.Pi})
		}

		if err := conn.WriteJSON(sweepLine{Line: line, Points: points}); err != nil {
			return
		}

		select {
		case <-r.Context().Done():
			return
		case <-time.After(10 * time.Millisecond):
		}
	}
}

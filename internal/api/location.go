package api

import (
	"encoding/json"
	"math"
	"net/http"
	"strconv"

	"github.com/CS-SI/ruggedgo/pkg/terrain/core"
)

// LocationHandler exposes direct and inverse location as plain HTTP
// endpoints, for manual testing without a full client.
type LocationHandler struct {
	rugged *core.Rugged
}

// NewLocationHandler builds a LocationHandler.
func NewLocationHandler(rugged *core.Rugged) *LocationHandler {
	return &LocationHandler{rugged: rugged}
}

func parseFloatParam(r *http.Request, name string) (float64, bool) {
	s := r.URL.Query().Get(name)
	if s == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

// HandleDirect serves GET /api/direct-location?sensor=...&line=...&pixel=...
func (h *LocationHandler) HandleDirect(w http.ResponseWriter, r *http.Request) {
	sensorName := r.URL.Query().Get("sensor")
	line, okLine := parseFloatParam(r, "line")
	pixel, okPixel := parseFloatParam(r, "pixel")
	if sensorName == "" || !okLine || !okPixel {
		writeJSONError(w, http.StatusBadRequest, "sensor, line and pixel are required")
		return
	}

	gp, err := h.rugged.DirectLocation(sensorName, line, pixel)
	if err != nil {
		writeJSONError(w, http.StatusUnprocessableEntity, "%v", err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]float64{
		"lat_deg": gp.Lat * 180 / math.Pi,
		"lon_deg": gp.Lon * 180 / math.Pi,
		"alt_m":   gp.Alt,
	})
}

// HandleInverse serves GET /api/inverse-location?sensor=...&lat=...&lon=...&alt=...&min_line=...&max_line=...
// min_line/max_line default to the sensor's own line range when omitted.
func (h *LocationHandler) HandleInverse(w http.ResponseWriter, r *http.Request) {
	sensorName := r.URL.Query().Get("sensor")
	latDeg, okLat := parseFloatParam(r, "lat")
	lonDeg, okLon := parseFloatParam(r, "lon")
	altM, _ := parseFloatParam(r, "alt")
	if sensorName == "" || !okLat || !okLon {
		writeJSONError(w, http.StatusBadRequest, "sensor, lat and lon are required")
		return
	}

	minLine, okMin := parseFloatParam(r, "min_line")
	if !okMin {
		minLine = -math.MaxFloat64
	}
	maxLine, okMax := parseFloatParam(r, "max_line")
	if !okMax {
		maxLine = math.MaxFloat64
	}

	line, pixel, found, err := h.rugged.InverseLocation(sensorName, latDeg*math.Pi/180, lonDeg*math.Pi/180, altM, minLine, maxLine)
	if err != nil {
		writeJSONError(w, http.StatusUnprocessableEntity, "%v", err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"found": found,
		"line":  line,
		"pixel": pixel,
	})
}

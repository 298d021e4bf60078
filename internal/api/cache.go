package api

import (
	"encoding/json"
	"net/http"

	"github.com/paulmach/orb/geojson"

	"github.com/CS-SI/ruggedgo/pkg/terrain/core"
)

// CacheHandler serves the tile cache's current occupancy and footprints.
type CacheHandler struct {
	rugged *core.Rugged
}

// NewCacheHandler builds a CacheHandler over rugged's tile cache.
func NewCacheHandler(rugged *core.Rugged) *CacheHandler {
	return &CacheHandler{rugged: rugged}
}

type occupancyEntry struct {
	Slot       int     `json:"slot"`
	Zipper     bool    `json:"zipper"`
	MinLat     float64 `json:"min_lat"`
	MinLon     float64 `json:"min_lon"`
	MaxLat     float64 `json:"max_lat"`
	MaxLon     float64 `json:"max_lon"`
	MinElevM   float64 `json:"min_elevation_m"`
	MaxElevM   float64 `json:"max_elevation_m"`
}

// HandleOccupancy reports the tiles currently resident, most-recently-
// used first.
func (h *CacheHandler) HandleOccupancy(w http.ResponseWriter, r *http.Request) {
	c := h.rugged.Cache()
	if c == nil {
		writeJSONError(w, http.StatusNotFound, "no tile cache is configured")
		return
	}

	tiles := c.Occupancy()
	entries := make([]occupancyEntry, 0, len(tiles))
	for i, t := range tiles {
		g := t.Grid()
		entries = append(entries, occupancyEntry{
			Slot:     i,
			Zipper:   t.Zipper,
			MinLat:   g.MinimumLatitude(),
			MinLon:   g.MinimumLongitude(),
			MaxLat:   g.MaximumLatitude(),
			MaxLon:   g.MaximumLongitude(),
			MinElevM: g.MinElevation(),
			MaxElevM: g.MaxElevation(),
		})
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(entries); err != nil {
		writeJSONError(w, http.StatusInternalServerError, "failed to encode occupancy: %v", err)
	}
}

// HandleFootprints returns the resident tiles' ground footprints as a
// GeoJSON FeatureCollection, ready to drop onto a map.
func (h *CacheHandler) HandleFootprints(w http.ResponseWriter, r *http.Request) {
	c := h.rugged.Cache()
	if c == nil {
		writeJSONError(w, http.StatusNotFound, "no tile cache is configured")
		return
	}

	fc := geojson.NewFeatureCollection()
	for i, t := range c.Occupancy() {
		f := geojson.NewFeature(t.Footprint())
		f.Properties["slot"] = i
		f.Properties["zipper"] = t.Zipper
		fc.Append(f)
	}

	w.Header().Set("Content-Type", "application/geo+json")
	if err := json.NewEncoder(w).Encode(fc); err != nil {
		writeJSONError(w, http.StatusInternalServerError, "failed to encode footprints: %v", err)
	}
}

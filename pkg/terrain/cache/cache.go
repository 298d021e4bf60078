// Package cache implements the bounded tile cache (spec component D):
// an MRU array of DEM tiles backed by a caller-supplied TileUpdater,
// plus zipper-tile synthesis so the Duvenhage traversal never has to
// special-case a tile edge.
package cache

import (
	"fmt"
	"sync"

	"github.com/paulmach/orb"
	"github.com/uber/h3-go/v4"

	"github.com/CS-SI/ruggedgo/pkg/geo"
	"github.com/CS-SI/ruggedgo/pkg/terrain/tile"
)

// Code enumerates the error kinds a cache lookup can fail with (spec §7).
type Code int

const (
	CodeNone Code = iota
	// CodeEmptyTile: the updater delivered a tile with zero rows/columns
	// or never completed it.
	CodeEmptyTile
	// CodeTileWithoutRequiredNeighborsSelected: overlapping=true but the
	// updater's tile lacks interpolation neighbors at the query point.
	CodeTileWithoutRequiredNeighborsSelected
	// CodeInternalError: a zipper-synthesis precondition was violated
	// (e.g. mismatched steps across an edge where none is allowed).
	CodeInternalError
)

// Error wraps a Code with a message.
type Error struct {
	Code Code
	msg  string
}

func (e *Error) Error() string { return e.msg }

func newError(code Code, format string, args ...any) *Error {
	return &Error{Code: code, msg: fmt.Sprintf(format, args...)}
}

// TileUpdater is implemented by callers to supply DEM data on demand; it
// mirrors the teacher's ElevationGetter/ElevationProvider split
// (pkg/terrain/elevation.go) but populates a whole Tile instead of a
// single point sample, since the cache needs whole tiles to build the
// min/max pyramid.
type TileUpdater interface {
	// UpdateTile is called on a cache miss for (lat, lon); the
	// implementation calls newTile.SetGeometry once, then SetElevation
	// for every cell, then newTile.Finish.
	UpdateTile(lat, lon float64, newTile *Tile) error
}

// Tile is the cacheable unit: a DEM grid plus its min/max pyramid and a
// cache bucket hint.
type Tile struct {
	grid   *tile.Tile
	minMax *tile.MinMaxTreeTile
	// Zipper marks synthetic edge/corner tiles built by the cache to
	// stitch neighboring tiles together.
	Zipper bool
	// h3Bucket is a coarse, non-authoritative locality hint; cache hits
	// are always decided by exact tile geometry, never by this bucket.
	h3Bucket h3.Cell
}

// SetGeometry allocates the tile's grid. Must be called exactly once,
// before any SetElevation call.
func (t *Tile) SetGeometry(minLat, minLon, latStep, lonStep float64, rows, cols int) error {
	g, err := tile.NewTile(minLat, minLon, latStep, lonStep, rows, cols)
	if err != nil {
		return err
	}
	t.grid = g
	return nil
}

// SetElevation sets one grid cell; SetGeometry must have been called first.
func (t *Tile) SetElevation(row, col int, elevation float64) error {
	if t.grid == nil {
		return fmt.Errorf("SetElevation called before SetGeometry")
	}
	return t.grid.SetElevation(row, col, elevation)
}

// Finish computes the tile's min/max pyramid. Must be called once all
// cells are set.
func (t *Tile) Finish() error {
	if t.grid == nil {
		return fmt.Errorf("Finish called before SetGeometry")
	}
	t.grid.Finish()
	t.minMax = tile.NewMinMaxTreeTile(t.grid)
	return nil
}

// Grid exposes the underlying *tile.Tile (Classify, InterpolateElevation,
// CellIntersection, ...).
func (t *Tile) Grid() *tile.Tile { return t.grid }

// MinMax exposes the tile's min/max pyramid.
func (t *Tile) MinMax() *tile.MinMaxTreeTile { return t.minMax }

// Footprint returns the tile's ground footprint as an orb.Polygon,
// usable directly as GeoJSON for a debug map view.
func (t *Tile) Footprint() orb.Polygon {
	minLat, minLon := t.grid.MinimumLatitude(), t.grid.MinimumLongitude()
	maxLat, maxLon := t.grid.MaximumLatitude(), t.grid.MaximumLongitude()
	ring := orb.Ring{
		{minLon, minLat}, {maxLon, minLat}, {maxLon, maxLat}, {minLon, maxLat}, {minLon, minLat},
	}
	return orb.Polygon{ring}
}

// TileCache is a fixed-capacity, most-recently-used cache of DEM tiles.
// Slot 0 always holds the most recently used tile; a cache hit promotes
// its tile to slot 0, shifting everything ahead of it down by one, and a
// miss inserts at slot 0, dropping the last slot when full. Lookups scan
// the slots in order, so eviction follows exact least-recently-used
// order at a cost linear in the number of slots.
type TileCache struct {
	mu          sync.Mutex
	updater     TileUpdater
	maxTiles    int
	overlapping bool
	slots       []*Tile
}

// NewTileCache builds a cache of the given capacity backed by updater.
// overlapping selects whether neighboring tiles are assumed to share
// their edge row/column (true) or to abut without overlap, requiring
// zipper synthesis at the boundary (false).
func NewTileCache(updater TileUpdater, maxTiles int, overlapping bool) (*TileCache, error) {
	if maxTiles < 1 {
		return nil, fmt.Errorf("cache.max_tiles must be >= 1, got %d", maxTiles)
	}
	return &TileCache{
		updater:     updater,
		maxTiles:    maxTiles,
		overlapping: overlapping,
	}, nil
}

// GetTile returns the tile covering (lat, lon), fetching it from the
// updater on a miss and evicting the least-recently-used slot if full.
// Per spec §8, the returned tile always satisfies
// location(lat,lon) == HasInterpolationNeighbors: in overlapping mode a
// tile that fails this is a hard error (the updater is inconsistent);
// in seamless mode the cache synthesizes a zipper tile on the fly.
func (c *TileCache) GetTile(lat, lon float64) (*Tile, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.getTileLocked(lat, lon)
}

func (c *TileCache) getTileLocked(lat, lon float64) (*Tile, error) {
	for i, s := range c.slots {
		if s != nil && covers(s, lat, lon) {
			c.promote(i)
			return c.slots[0], nil
		}
	}

	base, err := c.fetchBase(lat, lon)
	if err != nil {
		return nil, err
	}

	loc := base.grid.Classify(lat, lon)
	if loc == tile.HasInterpolationNeighbors {
		c.insertAtFront(base)
		return c.slots[0], nil
	}

	if c.overlapping {
		return nil, newError(CodeTileWithoutRequiredNeighborsSelected,
			"tile for (%g,%g) selected by overlapping updater lacks interpolation neighbors (location=%s)", lat, lon, loc)
	}

	zipper, err := c.synthesizeZipper(base, loc, lat, lon)
	if err != nil {
		return nil, err
	}

	// Per spec §4.D: slot 0 is the zipper, slot 1 is the tile it was
	// synthesized from.
	c.insertAtFront(base)
	c.insertAtFront(zipper)
	return c.slots[0], nil
}

// fetchBase returns a non-synthetic tile covering (lat, lon), consulting
// already-cached non-zipper tiles before calling the updater. It never
// triggers zipper synthesis itself; it is used both for the primary
// cache miss and to fetch the neighboring tiles a zipper is built from.
func (c *TileCache) fetchBase(lat, lon float64) (*Tile, error) {
	for _, s := range c.slots {
		if s != nil && !s.Zipper && covers(s, lat, lon) {
			return s, nil
		}
	}

	newTile := &Tile{}
	if err := c.updater.UpdateTile(lat, lon, newTile); err != nil {
		return nil, fmt.Errorf("tile update failed for (%g,%g): %w", lat, lon, err)
	}
	if newTile.grid == nil || !newTile.grid.Complete() {
		return nil, newError(CodeEmptyTile, "tile updater for (%g,%g) never completed the tile", lat, lon)
	}
	newTile.h3Bucket = h3.LatLngToCell(h3.NewLatLng(radToDeg(lat), radToDeg(lon)), 3)
	return newTile, nil
}

func radToDeg(r float64) float64 { return r * 180.0 / 3.14159265358979323846 }

func covers(t *Tile, lat, lon float64) bool {
	// Quick-reject against the tile's bounding footprint before the more
	// expensive per-cell classification.
	if !geo.ContainsPoint(t.Footprint(), orb.Point{lon, lat}) {
		return false
	}
	return t.grid.Classify(lat, lon) == tile.HasInterpolationNeighbors
}

func (c *TileCache) promote(i int) {
	if i == 0 {
		return
	}
	t := c.slots[i]
	copy(c.slots[1:i+1], c.slots[0:i])
	c.slots[0] = t
}

func (c *TileCache) insertAtFront(t *Tile) {
	if len(c.slots) < c.maxTiles {
		c.slots = append(c.slots, nil)
	}
	n := len(c.slots)
	if n > c.maxTiles {
		n = c.maxTiles
	}
	for i := n - 1; i > 0; i-- {
		c.slots[i] = c.slots[i-1]
	}
	c.slots[0] = t
}

// Occupancy returns the tiles currently resident, most-recently-used
// first, for the debug API's cache inspection endpoint.
func (c *TileCache) Occupancy() []*Tile {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]*Tile, 0, len(c.slots))
	for _, s := range c.slots {
		if s != nil {
			out = append(out, s)
		}
	}
	return out
}

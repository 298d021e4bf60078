// Package demodem implements a cache.TileUpdater over the public-domain
// ETOPO1 global relief grid, for use by cmd/ruggedgo's demo server when
// no other DEM source is configured. DEM file parsing itself is out of
// spec.md's scope; this package exists only to give the demo something
// real to intersect against.
package demodem

import (
	"encoding/binary"
	"fmt"
	"math"
	"os"

	"github.com/CS-SI/ruggedgo/pkg/terrain/cache"
)

const (
	// ETOPO1 is grid-registered at 1 arc-minute resolution: 10801 rows by
	// 21601 columns of 16-bit signed elevation samples (meters, MSL).
	etopo1Rows = 10801
	etopo1Cols = 21601
	etopo1Size = etopo1Rows * etopo1Cols * 2

	// tileCells is the number of grid cells (in each direction) sampled
	// into one cache.Tile; keeping it well below the full planet-wide
	// grid bounds the per-tile work the cache does on a miss.
	tileCells = 60 // 1 degree at 1 arc-minute resolution
)

// ETOPO1 reads elevation samples directly from the ETOPO1 binary grid
// file (ice-surface, row-major, north to south, west to east).
type ETOPO1 struct {
	file *os.File
}

// Open opens the ETOPO1 binary file at path, validating its size against
// the expected 10801x21601 grid.
func Open(path string) (*ETOPO1, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, err
	}
	if info.Size() != int64(etopo1Size) {
		f.Close()
		return nil, fmt.Errorf("invalid ETOPO1 file size: expected %d, got %d", etopo1Size, info.Size())
	}
	return &ETOPO1{file: f}, nil
}

// Close closes the underlying file handle.
func (e *ETOPO1) Close() error { return e.file.Close() }

// sampleDegrees returns the raw elevation at a latitude/longitude given
// in degrees.
func (e *ETOPO1) sampleDegrees(latDeg, lonDeg float64) (int16, error) {
	row := int(math.Round((90.0 - latDeg) * 60.0))
	col := int(math.Round((lonDeg + 180.0) * 60.0))

	if row < 0 {
		row = 0
	}
	if row >= etopo1Rows {
		row = etopo1Rows - 1
	}
	col = ((col % etopo1Cols) + etopo1Cols) % etopo1Cols

	offset := int64(row*etopo1Cols+col) * 2
	b := make([]byte, 2)
	if _, err := e.file.ReadAt(b, offset); err != nil {
		return 0, err
	}
	return int16(binary.LittleEndian.Uint16(b)), nil
}

// UpdateTile implements cache.TileUpdater: it builds a roughly
// 1-degree-square tile (tileCells x tileCells samples) covering
// (lat, lon), given in radians as required by pkg/terrain/ellipsoid.
func (e *ETOPO1) UpdateTile(lat, lon float64, t *cache.Tile) error {
	latDeg := lat * 180 / math.Pi
	lonDeg := lon * 180 / math.Pi

	baseLatDeg := math.Floor(latDeg)
	baseLonDeg := math.Floor(lonDeg)
	stepDeg := 1.0 / float64(tileCells)

	minLat := baseLatDeg * math.Pi / 180
	minLon := baseLonDeg * math.Pi / 180
	latStep := stepDeg * math.Pi / 180
	lonStep := stepDeg * math.Pi / 180

	if err := t.SetGeometry(minLat, minLon, latStep, lonStep, tileCells, tileCells); err != nil {
		return err
	}

	for r := 0; r < tileCells; r++ {
		sampleLat := baseLatDeg + float64(r)*stepDeg
		for c := 0; c < tileCells; c++ {
			sampleLon := baseLonDeg + float64(c)*stepDeg
			v, err := e.sampleDegrees(sampleLat, sampleLon)
			if err != nil {
				return fmt.Errorf("ETOPO1 sample at (%g,%g) failed: %w", sampleLat, sampleLon, err)
			}
			elev := float64(v)
			if elev < 0 {
				elev = 0 // demo DEM: treat ocean depth as sea level
			}
			if err := t.SetElevation(r, c, elev); err != nil {
				return err
			}
		}
	}
	return t.Finish()
}

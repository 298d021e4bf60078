package cache

import (
	"fmt"

	"github.com/CS-SI/ruggedgo/pkg/terrain/tile"
)

// Edge names one side of a tile, used to select which zipper strip to
// synthesize between two non-overlapping neighboring tiles.
type Edge int

const (
	North Edge = iota
	South
	East
	West
)

// zipperWidth is the number of extra rows/columns sampled from each side
// of the boundary, matching the "4xK" strips described for seamless DEM
// stitching: 4 rows or columns of interpolated elevation, two pulled
// from each tile, laid edge to edge so a cell straddling the original
// tile boundary always has four real corners to interpolate between.
const zipperWidth = 4

// BuildEdgeZipper synthesizes the thin strip tile that stitches primary
// to neighbor across the given edge, for use when the cache was
// configured with overlapping=false. The strip has the same step as
// primary along the edge and zipperWidth samples across it; where
// neighbor's step differs from primary's, neighbor's row/column is
// resampled by bilinear interpolation onto primary's step so the strip
// stays regular.
func BuildEdgeZipper(primary, neighbor *Tile, edge Edge) (*Tile, error) {
	if primary.grid == nil || neighbor.grid == nil {
		return nil, fmt.Errorf("zipper requires finished tiles")
	}

	switch edge {
	case North, South:
		return buildHorizontalZipper(primary, neighbor, edge)
	case East, West:
		return buildVerticalZipper(primary, neighbor, edge)
	default:
		return nil, fmt.Errorf("unknown edge %d", edge)
	}
}

func buildHorizontalZipper(primary, neighbor *Tile, edge Edge) (*Tile, error) {
	p, n := primary.grid, neighbor.grid
	cols := p.Columns()
	lonStep := p.LonStep()
	minLon := p.MinimumLongitude()

	var baseLat float64
	if edge == North {
		baseLat = p.MaximumLatitude()
	} else {
		baseLat = p.MinimumLatitude() - float64(zipperWidth-1)*p.LatStep()
	}

	z := &Tile{Zipper: true}
	if err := z.SetGeometry(baseLat, minLon, p.LatStep(), lonStep, zipperWidth, cols); err != nil {
		return nil, err
	}

	for r := 0; r < zipperWidth; r++ {
		lat := baseLat + float64(r)*p.LatStep()
		for c := 0; c < cols; c++ {
			lon := minLon + float64(c)*lonStep
			e, err := sampleAcrossBoundary(p, n, lat, lon)
			if err != nil {
				return nil, err
			}
			if err := z.SetElevation(r, c, e); err != nil {
				return nil, err
			}
		}
	}
	return z, z.Finish()
}

func buildVerticalZipper(primary, neighbor *Tile, edge Edge) (*Tile, error) {
	p, n := primary.grid, neighbor.grid
	// Spec §4.D: east/west neighbors of the same tile are assumed to
	// share a resolution (real DEMs don't change resolution across
	// longitude); a violation is a caller/updater bug, not a recoverable
	// geometry case.
	if p.LatStep() != n.LatStep() || p.LonStep() != n.LonStep() {
		return nil, newError(CodeInternalError, "east/west neighbors have mismatched steps (%g,%g) vs (%g,%g)",
			p.LatStep(), p.LonStep(), n.LatStep(), n.LonStep())
	}

	rows := p.Rows()
	latStep := p.LatStep()
	minLat := p.MinimumLatitude()

	var baseLon float64
	if edge == East {
		baseLon = p.MaximumLongitude()
	} else {
		baseLon = p.MinimumLongitude() - float64(zipperWidth-1)*p.LonStep()
	}

	z := &Tile{Zipper: true}
	if err := z.SetGeometry(minLat, baseLon, latStep, p.LonStep(), rows, zipperWidth); err != nil {
		return nil, err
	}

	for r := 0; r < rows; r++ {
		lat := minLat + float64(r)*latStep
		for c := 0; c < zipperWidth; c++ {
			lon := baseLon + float64(c)*p.LonStep()
			e, err := sampleAcrossBoundary(p, n, lat, lon)
			if err != nil {
				return nil, err
			}
			if err := z.SetElevation(r, c, e); err != nil {
				return nil, err
			}
		}
	}
	return z, z.Finish()
}

// sampleAcrossBoundary interpolates elevation from whichever of the two
// source tiles actually covers (lat, lon); this is what lets a zipper
// strip span the seam even when the two tiles have different steps.
func sampleAcrossBoundary(a, b *tile.Tile, lat, lon float64) (float64, error) {
	if a.Classify(lat, lon) == tile.HasInterpolationNeighbors {
		return a.InterpolateElevation(lat, lon)
	}
	if b.Classify(lat, lon) == tile.HasInterpolationNeighbors {
		return b.InterpolateElevation(lat, lon)
	}
	return 0, fmt.Errorf("point (%g,%g) is covered by neither tile being zipped", lat, lon)
}

// BuildCornerZipper synthesizes the 4x4 patch stitching the four tiles
// meeting at a corner. The four inputs must be given as north-west,
// north-east, south-west, south-east; when more than one resolves the
// corner cell ambiguity (e.g. two tiles at different resolutions both
// claim the exact corner point), the north-west tile's value wins: this
// "left-of-above" rule is arbitrary but must be consistent, and any of
// the tiles' own values at that shared point are an equally valid
// choice since they agree to within interpolation tolerance.
func BuildCornerZipper(nw, ne, sw, se *Tile) (*Tile, error) {
	for _, t := range []*Tile{nw, ne, sw, se} {
		if t.grid == nil {
			return nil, fmt.Errorf("corner zipper requires finished tiles")
		}
	}
	// Spec §4.D: a step mismatch between two tiles sharing the same
	// latitude (nw/ne, or sw/se) can't be resolved by the step-adoption
	// rule used for north/south mismatches.
	if nw.grid.LatStep() != ne.grid.LatStep() || nw.grid.LonStep() != ne.grid.LonStep() {
		return nil, newError(CodeInternalError, "corner zipper: nw/ne tiles have mismatched steps")
	}
	if sw.grid.LatStep() != se.grid.LatStep() || sw.grid.LonStep() != se.grid.LonStep() {
		return nil, newError(CodeInternalError, "corner zipper: sw/se tiles have mismatched steps")
	}

	lonStep := nw.grid.LonStep()
	latStep := nw.grid.LatStep()
	baseLat := nw.grid.MinimumLatitude() - float64(zipperWidth/2-1)*latStep
	baseLon := nw.grid.MaximumLongitude() - float64(zipperWidth/2-1)*lonStep

	z := &Tile{Zipper: true}
	if err := z.SetGeometry(baseLat, baseLon, latStep, lonStep, zipperWidth, zipperWidth); err != nil {
		return nil, err
	}

	sources := []*tile.Tile{nw.grid, ne.grid, sw.grid, se.grid}
	for r := 0; r < zipperWidth; r++ {
		lat := baseLat + float64(r)*latStep
		for c := 0; c < zipperWidth; c++ {
			lon := baseLon + float64(c)*lonStep
			e, err := sampleFromFirstCovering(sources, lat, lon)
			if err != nil {
				return nil, err
			}
			if err := z.SetElevation(r, c, e); err != nil {
				return nil, err
			}
		}
	}
	return z, z.Finish()
}

func sampleFromFirstCovering(sources []*tile.Tile, lat, lon float64) (float64, error) {
	for _, s := range sources {
		if s.Classify(lat, lon) == tile.HasInterpolationNeighbors {
			return s.InterpolateElevation(lat, lon)
		}
	}
	return 0, fmt.Errorf("point (%g,%g) is covered by none of the four corner tiles", lat, lon)
}

// synthesizeZipper builds the zipper tile (edge or corner) needed to
// make (lat, lon) interpolable, given that base's Classify(lat, lon)
// returned loc (one of the eight non-interpolable locations). It fetches
// whichever neighboring real tiles the zipper family requires by asking
// the updater for a point just across the relevant boundary.
func (c *TileCache) synthesizeZipper(base *Tile, loc tile.Location, lat, lon float64) (*Tile, error) {
	g := base.grid
	halfLat := g.LatStep() / 2
	halfLon := g.LonStep() / 2

	switch loc {
	case tile.N:
		north, err := c.fetchBase(g.MaximumLatitude()+halfLat, lon)
		if err != nil {
			return nil, err
		}
		return BuildEdgeZipper(base, north, North)
	case tile.S:
		south, err := c.fetchBase(g.MinimumLatitude()-halfLat, lon)
		if err != nil {
			return nil, err
		}
		return BuildEdgeZipper(base, south, South)
	case tile.E:
		east, err := c.fetchBase(lat, g.MaximumLongitude()+halfLon)
		if err != nil {
			return nil, err
		}
		return BuildEdgeZipper(base, east, East)
	case tile.W:
		west, err := c.fetchBase(lat, g.MinimumLongitude()-halfLon)
		if err != nil {
			return nil, err
		}
		return BuildEdgeZipper(base, west, West)
	case tile.NE, tile.NW, tile.SE, tile.SW:
		return c.synthesizeCornerZipper(base, loc)
	default:
		return nil, newError(CodeInternalError, "location %s does not require zipper synthesis", loc)
	}
}

// synthesizeCornerZipper fetches the three neighbors sharing the corner
// point nearest loc and assembles the 4x4 corner zipper. base plays the
// quadrant opposite loc (e.g. loc==NE means base is the south-west tile
// of the four meeting at that corner).
func (c *TileCache) synthesizeCornerZipper(base *Tile, loc tile.Location) (*Tile, error) {
	g := base.grid
	halfLat := g.LatStep() / 2
	halfLon := g.LonStep() / 2

	north := g.MaximumLatitude() + halfLat
	south := g.MinimumLatitude() - halfLat
	east := g.MaximumLongitude() + halfLon
	west := g.MinimumLongitude() - halfLon
	midLat := (g.MinimumLatitude() + g.MaximumLatitude()) / 2
	midLon := (g.MinimumLongitude() + g.MaximumLongitude()) / 2

	fetch := func(lat, lon float64) (*Tile, error) { return c.fetchBase(lat, lon) }

	switch loc {
	case tile.NE:
		e, err := fetch(midLat, east)
		if err != nil {
			return nil, err
		}
		n, err := fetch(north, midLon)
		if err != nil {
			return nil, err
		}
		ne, err := fetch(north, east)
		if err != nil {
			return nil, err
		}
		return BuildCornerZipper(n, ne, base, e)
	case tile.NW:
		w, err := fetch(midLat, west)
		if err != nil {
			return nil, err
		}
		n, err := fetch(north, midLon)
		if err != nil {
			return nil, err
		}
		nw, err := fetch(north, west)
		if err != nil {
			return nil, err
		}
		return BuildCornerZipper(nw, n, w, base)
	case tile.SE:
		e, err := fetch(midLat, east)
		if err != nil {
			return nil, err
		}
		s, err := fetch(south, midLon)
		if err != nil {
			return nil, err
		}
		se, err := fetch(south, east)
		if err != nil {
			return nil, err
		}
		return BuildCornerZipper(base, e, s, se)
	case tile.SW:
		w, err := fetch(midLat, west)
		if err != nil {
			return nil, err
		}
		s, err := fetch(south, midLon)
		if err != nil {
			return nil, err
		}
		sw, err := fetch(south, west)
		if err != nil {
			return nil, err
		}
		return BuildCornerZipper(w, base, sw, s)
	default:
		return nil, newError(CodeInternalError, "location %s is not a corner", loc)
	}
}

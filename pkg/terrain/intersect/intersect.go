// Package intersect implements the ray/terrain intersection algorithms
// (spec component E): the Duvenhage min/max-pyramid traversal and its
// flat-body variant, a brute-force scan kept only for cross-checking the
// fast algorithm in tests, and two DEM-bypassing algorithms for callers
// who don't need real terrain.
package intersect

import (
	"fmt"
	"math"
	"sort"

	"github.com/CS-SI/ruggedgo/pkg/terrain/cache"
	"github.com/CS-SI/ruggedgo/pkg/terrain/ellipsoid"
	"github.com/CS-SI/ruggedgo/pkg/terrain/tile"
)

// Name selects one of the five supported algorithms, matching
// config.AlgorithmConfig.Name.
type Name string

const (
	Duvenhage                          Name = "duvenhage"
	DuvenhageFlatBody                  Name = "duvenhage_flat_body"
	BasicSlowExhaustiveScanForTestsOnly Name = "basic_slow_exhaustive_scan_for_tests_only"
	ConstantElevationOverEllipsoid     Name = "constant_elevation_over_ellipsoid"
	IgnoreDemUseEllipsoid              Name = "ignore_dem_use_ellipsoid"
)

// Code enumerates the error kinds an intersection can fail with.
type Code int

const (
	CodeNone Code = iota
	CodeDemEntryPointIsBehindSpacecraft
	CodeTileWithoutRequiredNeighborsSelected
	CodeEmptyTile
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

// Algorithm intersects a ray (p + t*los, t>=0) with a DEM surface.
type Algorithm interface {
	Intersect(p, los ellipsoid.Vec3) (ellipsoid.NormalizedGeodeticPoint, error)
}

// New builds the algorithm selected by name. cache may be nil for
// ConstantElevationOverEllipsoid and IgnoreDemUseEllipsoid.
func New(name Name, e ellipsoid.Ellipsoid, c *cache.TileCache, lc float64, constantElevation float64) (Algorithm, error) {
	switch name {
	case IgnoreDemUseEllipsoid:
		return &ellipsoidOnly{ellipsoid: e, lc: lc}, nil
	case ConstantElevationOverEllipsoid:
		return &constantElevationAlgo{ellipsoid: e, lc: lc, elevation: constantElevation}, nil
	case BasicSlowExhaustiveScanForTestsOnly:
		if c == nil {
			return nil, fmt.Errorf("%s requires a tile cache", name)
		}
		return &exhaustiveScan{ellipsoid: e, cache: c, lc: lc}, nil
	case Duvenhage, DuvenhageFlatBody:
		if c == nil {
			return nil, fmt.Errorf("%s requires a tile cache", name)
		}
		return &duvenhage{ellipsoid: e, cache: c, lc: lc, flatBody: name == DuvenhageFlatBody}, nil
	default:
		return nil, fmt.Errorf("unknown intersection algorithm %q", name)
	}
}

type ellipsoidOnly struct {
	ellipsoid ellipsoid.Ellipsoid
	lc        float64
}

func (a *ellipsoidOnly) Intersect(p, los ellipsoid.Vec3) (ellipsoid.NormalizedGeodeticPoint, error) {
	return a.ellipsoid.PointOnGround(p, los, a.lc)
}

type constantElevationAlgo struct {
	ellipsoid ellipsoid.Ellipsoid
	lc        float64
	elevation float64
}

func (a *constantElevationAlgo) Intersect(p, los ellipsoid.Vec3) (ellipsoid.NormalizedGeodeticPoint, error) {
	hit, err := a.ellipsoid.PointAtAltitude(p, los, a.elevation)
	if err != nil {
		return ellipsoid.NormalizedGeodeticPoint{}, err
	}
	gp := a.ellipsoid.Transform(hit)
	return ellipsoid.NewNormalizedGeodeticPoint(gp, a.lc), nil
}

// entryPoint finds where the ray first reaches the DEM's relevant
// altitude range: it starts at the tile covering the ellipsoid ground
// point and walks up to that tile's max elevation, failing with
// CodeDemEntryPointIsBehindSpacecraft if that point is behind p (t<0),
// which happens when the spacecraft itself is below the terrain's
// highest point along the line of sight. Since a tile's max elevation
// is only valid within that tile's own footprint, the point at that
// altitude can land in a neighboring tile; when it does, entryPoint
// refetches the tile actually covering it and recomputes at its max
// elevation, repeating until the two agree.
func entryPoint(e ellipsoid.Ellipsoid, c *cache.TileCache, lc float64, p, los ellipsoid.Vec3) (ellipsoid.Vec3, *cache.Tile, error) {
	ground, err := e.PointOnGround(p, los, lc)
	if err != nil {
		return ellipsoid.Vec3{}, nil, err
	}

	t, err := c.GetTile(ground.Lat, ground.Lon)
	if err != nil {
		return ellipsoid.Vec3{}, nil, newError(CodeTileWithoutRequiredNeighborsSelected, "tile lookup failed: %v", err)
	}

	const maxRefetch = 8
	var entry ellipsoid.Vec3
	for i := 0; i < maxRefetch; i++ {
		entry, err = e.PointAtAltitude(p, los, t.Grid().MaxElevation())
		if err != nil {
			return ellipsoid.Vec3{}, nil, err
		}
		if los.Dot(entry.Sub(p)) < 0 {
			return ellipsoid.Vec3{}, nil, newError(CodeDemEntryPointIsBehindSpacecraft,
				"DEM entry point is behind the spacecraft along the line of sight")
		}
		entryGP := e.Transform(entry)
		if t.Grid().Classify(entryGP.Lat, entryGP.Lon) == tile.HasInterpolationNeighbors {
			return entry, t, nil
		}
		nt, err := c.GetTile(entryGP.Lat, entryGP.Lon)
		if err != nil {
			return ellipsoid.Vec3{}, nil, newError(CodeTileWithoutRequiredNeighborsSelected, "tile lookup failed: %v", err)
		}
		t = nt
	}
	return entry, t, nil
}

type exhaustiveScan struct {
	ellipsoid ellipsoid.Ellipsoid
	cache     *cache.TileCache
	lc        float64
}

// Intersect brute-force-marches the ray in small steps from the DEM
// entry point down toward the ellipsoid, refining the first sign change
// of (ray altitude - terrain elevation) by bisection. It exists only to
// cross-check Duvenhage's result in tests; production callers should use
// Duvenhage or DuvenhageFlatBody.
func (a *exhaustiveScan) Intersect(p, los ellipsoid.Vec3) (ellipsoid.NormalizedGeodeticPoint, error) {
	entry, t0, err := entryPoint(a.ellipsoid, a.cache, a.lc, p, los)
	if err != nil {
		return ellipsoid.NormalizedGeodeticPoint{}, err
	}

	ground, err := a.ellipsoid.PointOnGround(p, los, a.lc)
	if err != nil {
		return ellipsoid.NormalizedGeodeticPoint{}, err
	}

	const steps = 4000
	prevPoint := entry
	prevDiff, err := altDiff(a.ellipsoid, a.cache, a.lc, t0, prevPoint)
	if err != nil {
		return ellipsoid.NormalizedGeodeticPoint{}, err
	}

	exit, err := a.ellipsoid.PointAtAltitude(p, los, -500)
	if err != nil {
		exit, err = a.ellipsoid.PointAtAltitude(p, los, ground.Alt)
		if err != nil {
			return ellipsoid.NormalizedGeodeticPoint{}, err
		}
	}

	for i := 1; i <= steps; i++ {
		s := float64(i) / float64(steps)
		cur := lerp(entry, exit, s)
		curTile, err := a.cache.GetTile(a.ellipsoid.Transform(cur).Lat, a.ellipsoid.Transform(cur).Lon)
		if err != nil {
			return ellipsoid.NormalizedGeodeticPoint{}, newError(CodeTileWithoutRequiredNeighborsSelected, "tile lookup failed: %v", err)
		}
		diff, err := altDiff(a.ellipsoid, a.cache, a.lc, curTile, cur)
		if err != nil {
			return ellipsoid.NormalizedGeodeticPoint{}, err
		}

		if (prevDiff >= 0 && diff <= 0) || (prevDiff <= 0 && diff >= 0) {
			lo, hi := prevPoint, cur
			loD := prevDiff
			for k := 0; k < 40; k++ {
				mid := lerp(lo, hi, 0.5)
				midTile, err := a.cache.GetTile(a.ellipsoid.Transform(mid).Lat, a.ellipsoid.Transform(mid).Lon)
				if err != nil {
					return ellipsoid.NormalizedGeodeticPoint{}, newError(CodeTileWithoutRequiredNeighborsSelected, "tile lookup failed: %v", err)
				}
				midD, err := altDiff(a.ellipsoid, a.cache, a.lc, midTile, mid)
				if err != nil {
					return ellipsoid.NormalizedGeodeticPoint{}, err
				}
				if (loD >= 0 && midD >= 0) || (loD <= 0 && midD <= 0) {
					lo, loD = mid, midD
				} else {
					hi = mid
				}
			}
			gp := a.ellipsoid.Transform(lo)
			return ellipsoid.NewNormalizedGeodeticPoint(gp, a.lc), nil
		}
		prevPoint, prevDiff = cur, diff
	}
	return ellipsoid.NormalizedGeodeticPoint{}, fmt.Errorf("exhaustive scan found no terrain crossing along the line of sight")
}

func altDiff(e ellipsoid.Ellipsoid, c *cache.TileCache, lc float64, t *cache.Tile, point ellipsoid.Vec3) (float64, error) {
	gp := e.Transform(point)
	terrain, err := t.Grid().InterpolateElevation(gp.Lat, gp.Lon)
	if err != nil {
		// Tile seam: treat as on the surface rather than failing the scan.
		return 0, nil
	}
	return gp.Alt - terrain, nil
}

func lerp(a, b ellipsoid.Vec3, s float64) ellipsoid.Vec3 {
	return ellipsoid.Vec3{X: a.X + (b.X-a.X)*s, Y: a.Y + (b.Y-a.Y)*s, Z: a.Z + (b.Z-a.Z)*s}
}

type duvenhage struct {
	ellipsoid ellipsoid.Ellipsoid
	cache     *cache.TileCache
	lc        float64
	flatBody  bool
}

// Intersect runs the Duvenhage min/max-pyramid traversal. The ray is
// walked from the tile's max-elevation entry point toward its
// min-elevation (or side-wall) exit point; crossCells recurses through
// the min/max pyramid, testing cells individually only where the
// pyramid can't prove a whole block is still entirely above the ray
// (maxElevation(block) <= ray altitude at the block's far end). When
// the ray leaves the current tile without a crossing being found, the
// walk steps into the next tile and repeats. flatBody additionally
// treats every cell's surface as a single plane through its four
// corners' mean elevation rather than a bilinear patch, trading a small
// accuracy loss at steep slopes for a cheaper per-cell test.
func (d *duvenhage) Intersect(p, los ellipsoid.Vec3) (ellipsoid.NormalizedGeodeticPoint, error) {
	entry, t, err := entryPoint(d.ellipsoid, d.cache, d.lc, p, los)
	if err != nil {
		return ellipsoid.NormalizedGeodeticPoint{}, err
	}

	const maxTileHops = 64
	for hop := 0; hop < maxTileHops; hop++ {
		grid := t.Grid()
		mm := t.MinMax()
		if mm == nil {
			return ellipsoid.NormalizedGeodeticPoint{}, newError(CodeInternalError, "tile min/max pyramid not built")
		}

		if grid.MaxElevation() == grid.MinElevation() {
			// Degenerate flat tile: entry was computed at exactly this
			// uniform elevation, so it already sits on the surface
			// everywhere, including at its own lat/lon -- no traversal
			// needed, and a flat segment would give CellIntersection no
			// sign change to bisect on.
			gp := d.ellipsoid.Transform(entry)
			return ellipsoid.NewNormalizedGeodeticPoint(gp, d.lc), nil
		}

		exit, atSide, err := d.tileExit(p, los, grid)
		if err != nil {
			return ellipsoid.NormalizedGeodeticPoint{}, err
		}

		entryGP := d.ellipsoid.Transform(entry)
		iC, jC := cellIndexClamped(grid, entryGP.Lat, entryGP.Lon)

		found, pt, err := d.crossCells(grid, mm, p, los, entry, iC, jC, exit)
		if err != nil {
			return ellipsoid.NormalizedGeodeticPoint{}, err
		}
		if found {
			gp := d.ellipsoid.Transform(pt)
			return ellipsoid.NewNormalizedGeodeticPoint(gp, d.lc), nil
		}
		if !atSide {
			return ellipsoid.NormalizedGeodeticPoint{}, newError(CodeInternalError,
				"Duvenhage traversal reached the tile's floor without crossing it and without a side exit")
		}

		// Step a hair past the side exit and fetch whichever tile covers
		// the far side of the boundary; spec step 5.
		const eps = 0.01 // meters, in ECEF units (a tiny fraction of a DEM post spacing)
		next := exit.Add(los.Scale(eps))
		nextGP := d.ellipsoid.Transform(next)
		nt, err := d.cache.GetTile(nextGP.Lat, nextGP.Lon)
		if err != nil {
			return ellipsoid.NormalizedGeodeticPoint{}, newError(CodeTileWithoutRequiredNeighborsSelected, "tile lookup failed: %v", err)
		}

		// Degenerate narrow-cell case: the new tile's own surface at the
		// stepped-to point is already at or below the ray, so that point
		// itself is the crossing.
		if terrain, terr := nt.Grid().InterpolateElevation(nextGP.Lat, nextGP.Lon); terr == nil && nextGP.Alt <= terrain {
			return ellipsoid.NewNormalizedGeodeticPoint(nextGP, d.lc), nil
		}

		t = nt
		entry, err = d.ellipsoid.PointAtAltitude(p, los, t.Grid().MaxElevation())
		if err != nil {
			return ellipsoid.NormalizedGeodeticPoint{}, err
		}
		if los.Dot(entry.Sub(p)) < 0 {
			return ellipsoid.NormalizedGeodeticPoint{}, newError(CodeDemEntryPointIsBehindSpacecraft,
				"DEM entry point is behind the spacecraft along the line of sight")
		}
	}

	return ellipsoid.NormalizedGeodeticPoint{}, newError(CodeInternalError,
		"Duvenhage traversal crossed too many tiles without finding a terrain crossing")
}

// tileExit finds where the ray leaves grid's interpolable area: either
// straight down through its min-elevation iso-surface (atSide=false), if
// that point is still inside the tile's footprint, or sideways through
// whichever lat/lon wall the ray actually crosses first (atSide=true).
func (d *duvenhage) tileExit(p, los ellipsoid.Vec3, grid *tile.Tile) (exit ellipsoid.Vec3, atSide bool, err error) {
	exit, err = d.ellipsoid.PointAtAltitude(p, los, grid.MinElevation())
	if err != nil {
		return ellipsoid.Vec3{}, false, err
	}
	exitGP := d.ellipsoid.Transform(exit)
	if grid.Classify(exitGP.Lat, exitGP.Lon) == tile.HasInterpolationNeighbors {
		return exit, false, nil
	}

	type candidate struct {
		pt ellipsoid.Vec3
		t  float64
	}
	var candidates []candidate
	add := func(pt ellipsoid.Vec3, err error) {
		if err == nil {
			candidates = append(candidates, candidate{pt, los.Dot(pt.Sub(p))})
		}
	}
	add(d.ellipsoid.PointAtLatitude(p, los, grid.MaximumLatitude()))
	add(d.ellipsoid.PointAtLatitude(p, los, grid.MinimumLatitude()))
	add(d.ellipsoid.PointAtLongitude(p, los, grid.MaximumLongitude()))
	add(d.ellipsoid.PointAtLongitude(p, los, grid.MinimumLongitude()))

	if len(candidates) == 0 {
		return ellipsoid.Vec3{}, false, newError(CodeInternalError, "tile exit found no side boundary crossing")
	}
	best := candidates[0]
	for _, c := range candidates[1:] {
		if c.t >= 0 && (best.t < 0 || c.t < best.t) {
			best = c
		}
	}
	return best.pt, true, nil
}

// crossCells finds the first terrain crossing of the ray segment from
// curPt (in cell iC,jC) to toPt, recursing through the min/max pyramid:
// adjacent cells are tested directly; farther-apart cells are first
// checked against the smallest pyramid block they both fall in, and the
// whole span is skipped in one step when that block's maximum elevation
// already proves the ray stays above it the entire way. This is the
// recursive equivalent of the LIFO crossing queue: each recursive call
// corresponds to one push/pop of that queue.
func (d *duvenhage) crossCells(grid *tile.Tile, mm *tile.MinMaxTreeTile, p, los ellipsoid.Vec3, curPt ellipsoid.Vec3, iC, jC int, toPt ellipsoid.Vec3) (bool, ellipsoid.Vec3, error) {
	toGP := d.ellipsoid.Transform(toPt)
	iTo, jTo := cellIndexClamped(grid, toGP.Lat, toGP.Lon)

	if absInt(iC-iTo) <= 1 && absInt(jC-jTo) <= 1 {
		return d.testCells(grid, mm, curPt, iC, jC, toPt, iTo, jTo)
	}

	// GetMergeLevel is the last level still separating the two cells;
	// the block one level above it holds both.
	level := mm.GetMergeLevel(iC, jC, iTo, jTo) + 1
	if level >= mm.Depth() {
		level = mm.Depth() - 1
	}
	bi, bj := mm.BlockIndex(iTo, jTo, level)
	if toGP.Alt >= mm.MaxElevation(level, bi, bj) {
		// Ray altitude is monotone non-increasing from curPt to toPt
		// along a single direct-location ray, so if the farther (lower)
		// endpoint is still above the block's highest point, nothing
		// between the two endpoints can cross it either.
		return false, toPt, nil
	}

	rows := mm.GetCrossedBoundaryRows(iC, iTo)
	cols := mm.GetCrossedBoundaryColumns(jC, jTo)
	waypoints, err := d.boundaryWaypoints(grid, p, los, rows, cols)
	if err != nil {
		return false, ellipsoid.Vec3{}, err
	}

	cur, ci, cj := curPt, iC, jC
	for _, wp := range waypoints {
		found, pt, err := d.crossCells(grid, mm, p, los, cur, ci, cj, wp)
		if err != nil {
			return false, ellipsoid.Vec3{}, err
		}
		if found {
			return true, pt, nil
		}
		wpGP := d.ellipsoid.Transform(pt)
		ci, cj = cellIndexClamped(grid, wpGP.Lat, wpGP.Lon)
		cur = pt
	}
	return d.crossCells(grid, mm, p, los, cur, ci, cj, toPt)
}

// testCells checks the (at most 2x2) cells spanned by iC,jC and iTo,jTo
// directly, in order from the current cell outward, using each cell's
// own level-0 min/max to skip the per-cell solve where possible and
// tile.CellIntersection to find the exact crossing otherwise.
func (d *duvenhage) testCells(grid *tile.Tile, mm *tile.MinMaxTreeTile, curPt ellipsoid.Vec3, iC, jC int, toPt ellipsoid.Vec3, iTo, jTo int) (bool, ellipsoid.Vec3, error) {
	curGP := d.ellipsoid.Transform(curPt)
	toGP := d.ellipsoid.Transform(toPt)
	curAlt, toAlt := curGP.Alt, toGP.Alt
	altAt := func(s float64) float64 { return curAlt + (toAlt-curAlt)*s }

	rStep, cStep := 1, 1
	if iTo < iC {
		rStep = -1
	}
	if jTo < jC {
		cStep = -1
	}

	for r := iC; r != iTo+rStep; r += rStep {
		for c := jC; c != jTo+cStep; c += cStep {
			minE := mm.MinElevation(0, r, c)
			maxE := mm.MaxElevation(0, r, c)
			if curAlt < minE {
				// Degenerate narrow-cell case (spec step 5): the ray is
				// already below this cell's lowest terrain point without
				// an intersection having been detected upstream of it.
				return true, curPt, nil
			}
			if curAlt >= maxE && toAlt >= maxE {
				continue // the whole hop stays above this cell's terrain
			}
			if s, lat, lon, ok := grid.CellIntersection(r, c, d.flatBody, curGP.Lat, curGP.Lon, toGP.Lat, toGP.Lon, altAt); ok {
				hit := ellipsoid.GeodeticPoint{Lat: lat, Lon: lon, Alt: altAt(s)}
				return true, d.ellipsoid.TransformGeodetic(hit), nil
			}
		}
	}
	return false, toPt, nil
}

// boundaryWaypoints converts a set of level-0 row/column pyramid
// boundaries into actual 3D points on the ray (via the original,
// fixed p/los, not the current sub-segment) and returns them ordered by
// increasing distance from p, so crossCells can walk them in sequence.
func (d *duvenhage) boundaryWaypoints(grid *tile.Tile, p, los ellipsoid.Vec3, rows, cols []int) ([]ellipsoid.Vec3, error) {
	type waypoint struct {
		pt ellipsoid.Vec3
		t  float64
	}
	var wps []waypoint
	for _, b := range rows {
		lat := grid.MinimumLatitude() + float64(b)*grid.LatStep()
		if pt, err := d.ellipsoid.PointAtLatitude(p, los, lat); err == nil {
			wps = append(wps, waypoint{pt, los.Dot(pt.Sub(p))})
		}
	}
	for _, b := range cols {
		lon := grid.MinimumLongitude() + float64(b)*grid.LonStep()
		if pt, err := d.ellipsoid.PointAtLongitude(p, los, lon); err == nil {
			wps = append(wps, waypoint{pt, los.Dot(pt.Sub(p))})
		}
	}
	sort.Slice(wps, func(i, j int) bool { return wps[i].t < wps[j].t })
	out := make([]ellipsoid.Vec3, len(wps))
	for i, w := range wps {
		out[i] = w.pt
	}
	return out, nil
}

func cellIndex(g *tile.Tile, lat, lon float64) (row, col int) {
	row = int(math.Floor((lat - g.MinimumLatitude()) / g.LatStep()))
	col = int(math.Floor((lon - g.MinimumLongitude()) / g.LonStep()))
	return row, col
}

// cellIndexClamped is cellIndex clamped to a valid cell index, for
// points that Classify has determined sit on or past the tile's own
// last sampled row/column (i.e. within tolerance of the edge, not
// truly outside the tile).
func cellIndexClamped(g *tile.Tile, lat, lon float64) (row, col int) {
	row, col = cellIndex(g, lat, lon)
	if row < 0 {
		row = 0
	}
	if row > g.Rows()-2 {
		row = g.Rows() - 2
	}
	if col < 0 {
		col = 0
	}
	if col > g.Columns()-2 {
		col = g.Columns() - 2
	}
	return row, col
}

func absInt(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

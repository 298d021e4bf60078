package intersect

import (
	"math"
	"testing"

	"github.com/CS-SI/ruggedgo/pkg/terrain/cache"
	"github.com/CS-SI/ruggedgo/pkg/terrain/ellipsoid"
)

// flatUpdater serves flat 10x10 degree tiles at a constant elevation,
// fine enough to exercise tile lookups without a real DEM. lat and lon
// arrive in radians.
type flatUpdater struct {
	elevation float64
}

func (f *flatUpdater) UpdateTile(lat, lon float64, t *cache.Tile) error {
	tileLat := math.Floor(lat*180/math.Pi/10) * 10
	tileLon := math.Floor(lon*180/math.Pi/10) * 10
	if err := t.SetGeometry(tileLat*math.Pi/180, tileLon*math.Pi/180, 0.1*math.Pi/180, 0.1*math.Pi/180, 101, 101); err != nil {
		return err
	}
	for r := 0; r < 101; r++ {
		for c := 0; c < 101; c++ {
			if err := t.SetElevation(r, c, f.elevation); err != nil {
				return err
			}
		}
	}
	return t.Finish()
}

func TestIgnoreDemUseEllipsoid(t *testing.T) {
	e := ellipsoid.WGS84()
	algo, err := New(IgnoreDemUseEllipsoid, e, nil, 0, 0)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	p := ellipsoid.Vec3{X: 0, Y: 0, Z: 8000000}
	los := ellipsoid.Vec3{X: 0, Y: 0, Z: -1}

	hit, err := algo.Intersect(p, los)
	if err != nil {
		t.Fatalf("Intersect failed: %v", err)
	}
	if math.Abs(hit.Alt) > 1e-6 {
		t.Errorf("expected altitude 0, got %g", hit.Alt)
	}
}

func TestConstantElevationOverEllipsoid(t *testing.T) {
	e := ellipsoid.WGS84()
	algo, err := New(ConstantElevationOverEllipsoid, e, nil, 0, 500)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	p := ellipsoid.Vec3{X: 0, Y: 0, Z: 8000000}
	los := ellipsoid.Vec3{X: 0, Y: 0, Z: -1}

	hit, err := algo.Intersect(p, los)
	if err != nil {
		t.Fatalf("Intersect failed: %v", err)
	}
	if math.Abs(hit.Alt-500) > 1e-3 {
		t.Errorf("expected altitude 500, got %g", hit.Alt)
	}
}

func TestDuvenhageOverFlatTerrain(t *testing.T) {
	e := ellipsoid.WGS84()
	c, err := cache.NewTileCache(&flatUpdater{elevation: 300}, 4, true)
	if err != nil {
		t.Fatalf("NewTileCache failed: %v", err)
	}
	algo, err := New(Duvenhage, e, c, 0, 0)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	p := ellipsoid.Vec3{X: 0, Y: 0, Z: 8000000}
	los := ellipsoid.Vec3{X: 0, Y: 0, Z: -1}

	hit, err := algo.Intersect(p, los)
	if err != nil {
		t.Fatalf("Intersect failed: %v", err)
	}
	if math.Abs(hit.Alt-300) > 5 {
		t.Errorf("expected altitude near 300, got %g", hit.Alt)
	}
}

func TestExhaustiveScanAgreesWithDuvenhage(t *testing.T) {
	e := ellipsoid.WGS84()
	c1, _ := cache.NewTileCache(&flatUpdater{elevation: 150}, 4, true)
	c2, _ := cache.NewTileCache(&flatUpdater{elevation: 150}, 4, true)

	dAlgo, err := New(Duvenhage, e, c1, 0, 0)
	if err != nil {
		t.Fatalf("New(Duvenhage) failed: %v", err)
	}
	sAlgo, err := New(BasicSlowExhaustiveScanForTestsOnly, e, c2, 0, 0)
	if err != nil {
		t.Fatalf("New(exhaustive) failed: %v", err)
	}

	p := ellipsoid.Vec3{X: 0, Y: 0, Z: 8000000}
	los := ellipsoid.Vec3{X: 0, Y: 0, Z: -1}

	dHit, err := dAlgo.Intersect(p, los)
	if err != nil {
		t.Fatalf("Duvenhage Intersect failed: %v", err)
	}
	sHit, err := sAlgo.Intersect(p, los)
	if err != nil {
		t.Fatalf("exhaustive Intersect failed: %v", err)
	}

	if math.Abs(dHit.Alt-sHit.Alt) > 5 {
		t.Errorf("Duvenhage and exhaustive scan disagree: %g vs %g", dHit.Alt, sHit.Alt)
	}
}

func TestIntersectFailsLookingAwayFromEllipsoid(t *testing.T) {
	e := ellipsoid.WGS84()
	c, _ := cache.NewTileCache(&flatUpdater{elevation: 300}, 4, true)
	algo, err := New(Duvenhage, e, c, 0, 0)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	// Looking straight up and away from the Earth: the ground intersection
	// itself will fail to resolve in the forward direction.
	p := ellipsoid.Vec3{X: 0, Y: 0, Z: 8000000}
	los := ellipsoid.Vec3{X: 0, Y: 0, Z: 1}

	if _, err := algo.Intersect(p, los); err == nil {
		t.Error("expected an error looking away from the ellipsoid")
	}
}

package cache

import "testing"

// gridUpdater serves a world split into 1-degree-square tiles, each a
// flat plane at an elevation that encodes its tile indices so tests can
// tell which tile answered a query.
type gridUpdater struct{ calls int }

func (g *gridUpdater) UpdateTile(lat, lon float64, t *Tile) error {
	g.calls++
	tileLat := float64(int(lat))
	tileLon := float64(int(lon))
	if err := t.SetGeometry(tileLat, tileLon, 0.5, 0.5, 3, 3); err != nil {
		return err
	}
	for r := 0; r < 3; r++ {
		for c := 0; c < 3; c++ {
			if err := t.SetElevation(r, c, tileLat*1000+tileLon); err != nil {
				return err
			}
		}
	}
	return t.Finish()
}

func TestCacheHitReusesSameTile(t *testing.T) {
	u := &gridUpdater{}
	c, err := NewTileCache(u, 4, true)
	if err != nil {
		t.Fatalf("NewTileCache failed: %v", err)
	}

	t1, err := c.GetTile(10.1, 20.1)
	if err != nil {
		t.Fatalf("GetTile failed: %v", err)
	}
	t2, err := c.GetTile(10.2, 20.2)
	if err != nil {
		t.Fatalf("GetTile failed: %v", err)
	}
	if t1 != t2 {
		t.Error("expected the second lookup to hit the same cached tile")
	}
	if u.calls != 1 {
		t.Errorf("expected exactly one updater call, got %d", u.calls)
	}
}

func TestCacheMissBuildsNewTile(t *testing.T) {
	u := &gridUpdater{}
	c, err := NewTileCache(u, 4, true)
	if err != nil {
		t.Fatalf("NewTileCache failed: %v", err)
	}

	if _, err := c.GetTile(10.1, 20.1); err != nil {
		t.Fatalf("GetTile failed: %v", err)
	}
	if _, err := c.GetTile(50.1, 60.1); err != nil {
		t.Fatalf("GetTile failed: %v", err)
	}
	if u.calls != 2 {
		t.Errorf("expected two updater calls for two distinct tiles, got %d", u.calls)
	}
}

func TestCacheEvictsLeastRecentlyUsed(t *testing.T) {
	u := &gridUpdater{}
	c, err := NewTileCache(u, 2, true)
	if err != nil {
		t.Fatalf("NewTileCache failed: %v", err)
	}

	for i := 0; i < 3; i++ {
		if _, err := c.GetTile(float64(i)+0.1, 0.1); err != nil {
			t.Fatalf("GetTile failed: %v", err)
		}
	}
	if len(c.Occupancy()) != 2 {
		t.Fatalf("expected capacity-bounded occupancy of 2, got %d", len(c.Occupancy()))
	}

	// The first tile (lat in [0,1)) should have been evicted.
	before := u.calls
	if _, err := c.GetTile(0.1, 0.1); err != nil {
		t.Fatalf("GetTile failed: %v", err)
	}
	if u.calls != before+1 {
		t.Error("expected a cache miss for the evicted tile")
	}
}

func TestNewTileCacheRejectsZeroCapacity(t *testing.T) {
	if _, err := NewTileCache(&gridUpdater{}, 0, true); err == nil {
		t.Error("expected error for max_tiles 0")
	}
}

func TestEdgeZipperCoversBoundary(t *testing.T) {
	u := &gridUpdater{}
	c, _ := NewTileCache(u, 8, false)

	primary, err := c.GetTile(10.1, 20.1)
	if err != nil {
		t.Fatalf("GetTile failed: %v", err)
	}
	neighbor, err := c.GetTile(10.6, 20.1)
	if err != nil {
		t.Fatalf("GetTile failed: %v", err)
	}

	z, err := BuildEdgeZipper(primary, neighbor, North)
	if err != nil {
		t.Fatalf("BuildEdgeZipper failed: %v", err)
	}
	if !z.Zipper {
		t.Error("expected synthesized tile to be marked as a zipper tile")
	}

	boundaryLat := primary.grid.MaximumLatitude()
	if loc := z.grid.Classify(boundaryLat, 20.1); loc.String() == "SW" {
		t.Error("zipper strip should cover the boundary latitude")
	}
}

func TestSampleAcrossBoundaryFailsOutsideBoth(t *testing.T) {
	u := &gridUpdater{}
	c, _ := NewTileCache(u, 8, false)
	primary, _ := c.GetTile(10.1, 20.1)
	neighbor, _ := c.GetTile(10.6, 20.1)

	if _, err := sampleAcrossBoundary(primary.grid, neighbor.grid, 89, 179); err == nil {
		t.Error("expected error for a point covered by neither tile")
	}
}

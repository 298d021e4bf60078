package core

import (
	"math"
	"testing"
	"time"

	"github.com/CS-SI/ruggedgo/pkg/config"
	"github.com/CS-SI/ruggedgo/pkg/terrain/cache"
	"github.com/CS-SI/ruggedgo/pkg/terrain/ellipsoid"
	"github.com/CS-SI/ruggedgo/pkg/terrain/sensor"
)

type flatUpdater struct{ elevation float64 }

func (f *flatUpdater) UpdateTile(lat, lon float64, t *cache.Tile) error {
	tileLat := math.Floor(lat*180/math.Pi/10) * 10 * math.Pi / 180
	tileLon := math.Floor(lon*180/math.Pi/10) * 10 * math.Pi / 180
	if err := t.SetGeometry(tileLat, tileLon, 0.1*math.Pi/180, 0.1*math.Pi/180, 101, 101); err != nil {
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

type orbitTrajectory struct {
	p0, v ellipsoid.Vec3
}

func (o *orbitTrajectory) SpacecraftToBody(line float64) (ellipsoid.Vec3, func(ellipsoid.Vec3) ellipsoid.Vec3, error) {
	pos := o.p0.Add(o.v.Scale(line))
	identity := func(v ellipsoid.Vec3) ellipsoid.Vec3 { return v }
	return pos, identity, nil
}

func newTestRugged(t *testing.T, algo string) *Rugged {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.Algorithm.Name = algo
	cfg.Corrections.LightTime = false
	cfg.Corrections.AberrationOfLight = false

	traj := &orbitTrajectory{
		p0: ellipsoid.Vec3{X: 0, Y: 0, Z: 7000000},
		v:  ellipsoid.Vec3{X: 7000, Y: 0, Z: 0},
	}

	r, err := New(cfg, &flatUpdater{elevation: 200}, traj)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	r.AddSensor(&sensor.LineSensor{
		Name:      "demo",
		LOS:       sensor.NadirFan(10*math.Pi/180, 200),
		NbPixels:  200,
		LineRate:  20,
		FirstLine: 0,
		LastLine:  2000,
	})
	return r
}

func TestDirectLocationOverFlatTerrain(t *testing.T) {
	r := newTestRugged(t, "duvenhage")

	gp, err := r.DirectLocation("demo", 500, 100)
	if err != nil {
		t.Fatalf("DirectLocation failed: %v", err)
	}
	if math.Abs(gp.Alt-200) > 5 {
		t.Errorf("expected altitude near 200, got %g", gp.Alt)
	}
}

func TestDirectLocationUnknownSensor(t *testing.T) {
	r := newTestRugged(t, "duvenhage")
	if _, err := r.DirectLocation("missing", 0, 0); err == nil {
		t.Fatal("expected UNKNOWN_SENSOR error")
	} else if e, ok := err.(*Error); !ok || e.Code != CodeUnknownSensor {
		t.Errorf("expected CodeUnknownSensor, got %v", err)
	}
}

func TestDirectInverseRoundTrip(t *testing.T) {
	r := newTestRugged(t, "duvenhage")

	gp, err := r.DirectLocation("demo", 500, 120)
	if err != nil {
		t.Fatalf("DirectLocation failed: %v", err)
	}

	line, pixel, found, err := r.InverseLocation("demo", gp.Lat, gp.Lon, gp.Alt, 0, 2000)
	if err != nil {
		t.Fatalf("InverseLocation failed: %v", err)
	}
	if !found {
		t.Fatal("expected InverseLocation to find the target")
	}
	if math.Abs(line-500) > 0.5 {
		t.Errorf("expected line near 500, got %g", line)
	}
	if math.Abs(pixel-120) > 0.5 {
		t.Errorf("expected pixel near 120, got %g", pixel)
	}
}

func TestDirectLocationAtDate(t *testing.T) {
	r := newTestRugged(t, "duvenhage")
	ref := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	at := ref.Add(25 * time.Second) // line = 25 * 20Hz = 500

	gp, err := r.DirectLocationAtDate("demo", at, ref, 100)
	if err != nil {
		t.Fatalf("DirectLocationAtDate failed: %v", err)
	}
	if math.Abs(gp.Alt-200) > 5 {
		t.Errorf("expected altitude near 200, got %g", gp.Alt)
	}
}

func TestDateLocationFindsObservationTime(t *testing.T) {
	r := newTestRugged(t, "duvenhage")
	ref := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	gp, err := r.DirectLocation("demo", 500, 120)
	if err != nil {
		t.Fatalf("DirectLocation failed: %v", err)
	}

	at, found, err := r.DateLocation("demo", ref, gp.Lat, gp.Lon, gp.Alt, 0, 2000)
	if err != nil {
		t.Fatalf("DateLocation failed: %v", err)
	}
	if !found {
		t.Fatal("expected DateLocation to find the target")
	}
	wantSeconds := 500.0 / 20 // line 500 at 20 lines/sec
	gotSeconds := at.Sub(ref).Seconds()
	if math.Abs(gotSeconds-wantSeconds) > 0.1 {
		t.Errorf("expected observation time %gs after reference, got %gs", wantSeconds, gotSeconds)
	}
}

func TestDateLocationNotFoundOutsideRange(t *testing.T) {
	r := newTestRugged(t, "duvenhage")
	ref := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	gp, err := r.DirectLocation("demo", 1500, 120)
	if err != nil {
		t.Fatalf("DirectLocation failed: %v", err)
	}

	_, found, err := r.DateLocation("demo", ref, gp.Lat, gp.Lon, gp.Alt, 0, 300)
	if err != nil {
		t.Fatalf("DateLocation failed: %v", err)
	}
	if found {
		t.Error("expected target outside the caller's line range to be not found")
	}
}

func TestDirectLocationWithCorrections(t *testing.T) {
	r := newTestRugged(t, "duvenhage")
	r.lightTime = true
	r.aberration = true

	if _, err := r.DirectLocation("demo", 500, 100); err != nil {
		t.Fatalf("DirectLocation with corrections failed: %v", err)
	}
}

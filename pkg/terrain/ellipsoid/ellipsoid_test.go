package ellipsoid

import (
	"math"
	"testing"
)

func TestTransformRoundTrip(t *testing.T) {
	e := WGS84()

	points := []GeodeticPoint{
		{Lat: 0, Lon: 0, Alt: 0},
		{Lat: 45 * math.Pi / 180, Lon: 12 * math.Pi / 180, Alt: 1200},
		{Lat: -33 * math.Pi / 180, Lon: -70 * math.Pi / 180, Alt: 500},
		{Lat: 89 * math.Pi / 180, Lon: 170 * math.Pi / 180, Alt: 10},
	}

	for _, gp := range points {
		c := e.TransformGeodetic(gp)
		back := e.Transform(c)

		if math.Abs(back.Lat-gp.Lat) > 1e-9 {
			t.Errorf("lat round trip: got %g want %g", back.Lat, gp.Lat)
		}
		if math.Abs(NormalizeLongitude(back.Lon-gp.Lon, 0)) > 1e-9 {
			t.Errorf("lon round trip: got %g want %g", back.Lon, gp.Lon)
		}
		if math.Abs(back.Alt-gp.Alt) > 1e-6 {
			t.Errorf("alt round trip: got %g want %g", back.Alt, gp.Alt)
		}
	}
}

func TestPointAtAltitude(t *testing.T) {
	e := WGS84()
	p := Vec3{X: 0, Y: 0, Z: 8000000}
	los := Vec3{X: 0, Y: 0, Z: -1}

	hit, err := e.PointAtAltitude(p, los, 1000)
	if err != nil {
		t.Fatalf("PointAtAltitude failed: %v", err)
	}
	gp := e.Transform(hit)
	if math.Abs(gp.Alt-1000) > 1e-3 {
		t.Errorf("expected altitude 1000, got %g", gp.Alt)
	}
	if math.Abs(gp.Lat-math.Pi/2) > 1e-6 {
		t.Errorf("expected polar latitude, got %g", gp.Lat)
	}
}

func TestPointAtAltitudeMiss(t *testing.T) {
	e := WGS84()
	p := Vec3{X: 10 * e.EquatorialRadius, Y: 0, Z: 0}
	los := Vec3{X: 0, Y: 1, Z: 0}

	_, err := e.PointAtAltitude(p, los, 0)
	if err == nil {
		t.Fatal("expected RAY_MISSES_ELLIPSOID, got nil")
	}
	var ee *Error
	if !asEllipsoidError(err, &ee) || ee.Code != CodeRayMissesEllipsoid {
		t.Errorf("expected CodeRayMissesEllipsoid, got %v", err)
	}
}

func asEllipsoidError(err error, target **Error) bool {
	e, ok := err.(*Error)
	if ok {
		*target = e
	}
	return ok
}

func TestPointOnGround(t *testing.T) {
	e := WGS84()
	p := Vec3{X: 0, Y: 0, Z: 8000000}
	los := Vec3{X: 0, Y: 0, Z: -1}

	ngp, err := e.PointOnGround(p, los, 0)
	if err != nil {
		t.Fatalf("PointOnGround failed: %v", err)
	}
	if math.Abs(ngp.Alt) > 1e-6 {
		t.Errorf("expected altitude 0, got %g", ngp.Alt)
	}
}

func TestPointAtLatitude(t *testing.T) {
	e := WGS84()
	target := 30 * math.Pi / 180

	p := Vec3{X: 7000000, Y: 0, Z: 0}
	los := Vec3{X: -1, Y: 0, Z: 1}.Normalize()

	hit, err := e.PointAtLatitude(p, los, target)
	if err != nil {
		t.Fatalf("PointAtLatitude failed: %v", err)
	}
	gp := e.Transform(hit)
	if math.Abs(gp.Lat-target) > 1e-9 {
		t.Errorf("expected latitude %g, got %g", target, gp.Lat)
	}
}

func TestPointAtLongitude(t *testing.T) {
	e := WGS84()
	target := 45 * math.Pi / 180

	p := Vec3{X: 7000000, Y: 0, Z: 1000000}
	los := Vec3{X: -1, Y: 1, Z: 0}.Normalize()

	hit, err := e.PointAtLongitude(p, los, target)
	if err != nil {
		t.Fatalf("PointAtLongitude failed: %v", err)
	}
	gp := e.Transform(hit)
	if math.Abs(NormalizeLongitude(gp.Lon-target, 0)) > 1e-9 {
		t.Errorf("expected longitude %g, got %g", target, gp.Lon)
	}
}

func TestNormalizeLongitudeAntimeridian(t *testing.T) {
	got := NormalizeLongitude(-179*math.Pi/180, 179*math.Pi/180)
	want := 181 * math.Pi / 180
	if math.Abs(got-want) > 1e-9 {
		t.Errorf("got %g want %g", got, want)
	}
}

func TestByName(t *testing.T) {
	for _, name := range []string{"wgs84", "grs80", "iers96", "iers2003"} {
		if _, err := ByName(name); err != nil {
			t.Errorf("ByName(%q) failed: %v", name, err)
		}
	}
	if _, err := ByName("mars"); err == nil {
		t.Error("expected error for unknown ellipsoid")
	}
}

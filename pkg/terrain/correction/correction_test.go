package correction

import (
	"math"
	"testing"

	"github.com/CS-SI/ruggedgo/pkg/terrain/ellipsoid"
)

func TestLightTimeConvergesNearStationaryCase(t *testing.T) {
	scPos := ellipsoid.Vec3{X: 0, Y: 0, Z: 7000000}
	scVel := ellipsoid.Vec3{X: 0, Y: 0, Z: 0}
	ground := ellipsoid.Vec3{X: 0, Y: 0, Z: 0}

	corrected := LightTime(scPos, scVel, ground)
	if corrected != scPos {
		t.Errorf("expected no correction for zero velocity, got %+v", corrected)
	}
}

func TestLightTimeShiftsPositionOppositeVelocity(t *testing.T) {
	scPos := ellipsoid.Vec3{X: 0, Y: 0, Z: 7000000}
	scVel := ellipsoid.Vec3{X: 7500, Y: 0, Z: 0}
	ground := ellipsoid.Vec3{X: 0, Y: 0, Z: 0}

	corrected := LightTime(scPos, scVel, ground)
	if corrected.X >= scPos.X {
		t.Errorf("expected corrected position to shift backward along -velocity, got %+v", corrected)
	}
}

func TestAberrationOfLightVanishesAtZeroVelocity(t *testing.T) {
	apparent := ellipsoid.Vec3{X: 0, Y: 0, Z: -1}
	trueLOS, err := AberrationOfLight(apparent, ellipsoid.Vec3{})
	if err != nil {
		t.Fatalf("AberrationOfLight failed: %v", err)
	}
	if math.Abs(trueLOS.Sub(apparent).Norm()) > 1e-9 {
		t.Errorf("expected no correction at zero velocity, got %+v", trueLOS)
	}
}

func TestAberrationOfLightIsUnitLength(t *testing.T) {
	apparent := ellipsoid.Vec3{X: 0.1, Y: 0.2, Z: -0.97}.Normalize()
	vel := ellipsoid.Vec3{X: 7500, Y: 100, Z: 0}

	trueLOS, err := AberrationOfLight(apparent, vel)
	if err != nil {
		t.Fatalf("AberrationOfLight failed: %v", err)
	}
	if math.Abs(trueLOS.Norm()-1) > 1e-9 {
		t.Errorf("expected unit vector, got norm %g", trueLOS.Norm())
	}
}

func TestAberrationOfLightSmallCorrection(t *testing.T) {
	apparent := ellipsoid.Vec3{X: 0, Y: 0, Z: -1}
	vel := ellipsoid.Vec3{X: 7500, Y: 0, Z: 0}

	trueLOS, err := AberrationOfLight(apparent, vel)
	if err != nil {
		t.Fatalf("AberrationOfLight failed: %v", err)
	}
	delta := trueLOS.Sub(apparent).Norm()
	if delta > 1e-3 || delta == 0 {
		t.Errorf("expected a small but nonzero correction, got delta %g", delta)
	}
}

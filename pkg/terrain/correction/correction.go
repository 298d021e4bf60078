// Package correction implements the two optional geometric corrections
// (spec component G): light-time delay between emission and reception,
// and aberration of light from the spacecraft's own velocity. Both are
// independently toggled by config.CorrectionsConfig.
package correction

import (
	"fmt"
	"math"

	"github.com/CS-SI/ruggedgo/pkg/terrain/ellipsoid"
)

// SpeedOfLight is c in meters per second.
const SpeedOfLight = 299792458.0

// LightTime corrects the spacecraft position used for a direct-location
// ray to account for the time light takes to travel from the
// spacecraft to the (approximate) ground point: the position actually
// used must be where the spacecraft was at emission time, not at the
// reception time the attitude/ephemeris provider was queried for. It
// converges in two fixed-point iterations since the correction itself
// only changes the geometry by a few spacecraft-velocities' worth of
// travel time, well within the linear regime of a single additional
// pass.
func LightTime(scPosition, scVelocity, approxGroundPoint ellipsoid.Vec3) ellipsoid.Vec3 {
	corrected := scPosition
	for i := 0; i < 2; i++ {
		tau := corrected.Sub(approxGroundPoint).Norm() / SpeedOfLight
		corrected = scPosition.Sub(scVelocity.Scale(tau))
	}
	return corrected
}

// AberrationOfLight corrects an apparent line of sight (as observed by
// a spacecraft moving with velocity scVelocity in the body frame) back
// to the true line of sight, using the classical (non-relativistic)
// velocity-addition relation: the apparent direction equals the true
// direction plus the observer's velocity term, normalized. Given the
// apparent direction we solve for the scalar k that makes
// k*apparent - v/c a unit vector, which reduces to a quadratic in k;
// the physical root is the one closest to 1 (the correction vanishes as
// v -> 0).
func AberrationOfLight(apparentLOS, scVelocity ellipsoid.Vec3) (ellipsoid.Vec3, error) {
	w := scVelocity.Scale(1 / SpeedOfLight)
	a := apparentLOS.Normalize()

	aw := a.Dot(w)
	ww := w.Dot(w)

	// k^2 - 2*k*(a.w) + (w.w - 1) = 0
	disc := aw*aw - (ww - 1)
	if disc < 0 {
		return ellipsoid.Vec3{}, fmt.Errorf("aberration of light correction has no real solution (|v| too large relative to c)")
	}
	sq := math.Sqrt(disc)
	k1 := aw + sq
	k2 := aw - sq

	k := k1
	if math.Abs(k2-1) < math.Abs(k1-1) {
		k = k2
	}

	trueLOS := a.Scale(k).Sub(w)
	return trueLOS.Normalize(), nil
}

// Package sensor implements the push-broom line sensor model (spec
// component F): per-pixel line of sight construction for direct
// location, and the mean-plane/pixel-crossing search used by inverse
// location.
package sensor

import (
	"fmt"
	"math"

	"github.com/CS-SI/ruggedgo/pkg/terrain/ellipsoid"
)

// MaxEval bounds the Newton iterations used by both crossing searches;
// a target outside the sensor's coverage must fail rather than loop.
const MaxEval = 50

// LOSProvider returns the unit line-of-sight vector for a pixel, in the
// sensor's own frame (before the spacecraft-to-body rotation).
type LOSProvider func(pixel float64) ellipsoid.Vec3

// Trajectory supplies, for any continuous sensor line, the spacecraft
// position in the body-fixed frame and the rotation that carries a
// sensor-frame LOS vector into that same frame. This is the sensor
// package's one external collaborator contract; callers typically
// implement it against an attitude/ephemeris provider outside this
// module.
type Trajectory interface {
	SpacecraftToBody(line float64) (position ellipsoid.Vec3, losToBody func(ellipsoid.Vec3) ellipsoid.Vec3, err error)
}

// LineSensor is a push-broom line sensor: a fixed set of per-pixel lines
// of sight swept across lines at a constant rate.
type LineSensor struct {
	Name       string
	LOS        LOSProvider
	NbPixels   int
	LineRate   float64 // lines per second
	FirstLine  int
	LastLine   int
}

// NadirFan builds a LOSProvider for a flat push-broom array centered on
// nadir, spanning fovRad across nbPixels pixels in the sensor's Y-Z
// plane, so the mean viewing plane's normal is the sensor X axis. It is
// a convenience constructor for demo/test sensors; real sensors
// typically load their per-pixel LOS from a calibration table.
func NadirFan(fovRad float64, nbPixels int) LOSProvider {
	return func(pixel float64) ellipsoid.Vec3 {
		t := pixel/float64(nbPixels-1)*2 - 1
		angle := t * fovRad / 2
		return ellipsoid.Vec3{X: 0, Y: math.Sin(angle), Z: -math.Cos(angle)}.Normalize()
	}
}

// LOSInBody returns pixel's line of sight rotated into the body-fixed
// frame at the given line, and the spacecraft position at that line.
func (s *LineSensor) LOSInBody(traj Trajectory, line, pixel float64) (position, los ellipsoid.Vec3, err error) {
	pos, toBody, err := traj.SpacecraftToBody(line)
	if err != nil {
		return ellipsoid.Vec3{}, ellipsoid.Vec3{}, fmt.Errorf("sensor %s: trajectory lookup failed at line %g: %w", s.Name, line, err)
	}
	return pos, toBody(s.LOS(pixel)).Normalize(), nil
}

// MeanPlaneNormal returns the normal of the plane that best fits every
// pixel's line of sight, computed as the cross product of the sensor's
// first and last pixel directions. For sensors with non-negligible
// pixel-to-pixel curvature this is an approximation of a true
// least-squares fit, but it is exact for the common case of all pixel
// LOS vectors lying in a single plane (a straight push-broom array).
func (s *LineSensor) MeanPlaneNormal() ellipsoid.Vec3 {
	first := s.LOS(0)
	last := s.LOS(float64(s.NbPixels - 1))
	return first.Cross(last).Normalize()
}

// MeanPlaneCrossing finds the sensor line at which the plane through the
// spacecraft position and the sensor's mean-plane normal (both evaluated
// at that line) passes through target. It iterates Newton's method on
// the scalar function f(line) = normal(line) . (target - position(line)),
// bounded by MaxEval and clamped to [minLine, maxLine] (a caller-supplied
// subrange of the sensor's own [FirstLine, LastLine], per spec's
// inverseLocation/dateLocation signatures).
func (s *LineSensor) MeanPlaneCrossing(traj Trajectory, target ellipsoid.Vec3, lineGuess, minLine, maxLine float64) (float64, error) {
	normalAt := func(line float64) (ellipsoid.Vec3, ellipsoid.Vec3, error) {
		pos, toBody, err := traj.SpacecraftToBody(line)
		if err != nil {
			return ellipsoid.Vec3{}, ellipsoid.Vec3{}, err
		}
		n := toBody(s.MeanPlaneNormal()).Normalize()
		return pos, n, nil
	}

	f := func(line float64) (float64, error) {
		pos, n, err := normalAt(line)
		if err != nil {
			return 0, err
		}
		return n.Dot(target.Sub(pos)), nil
	}

	line := clampToRange(lineGuess, minLine, maxLine)
	const h = 1.0
	prevF, err := f(line)
	if err != nil {
		return 0, err
	}

	for i := 0; i < MaxEval; i++ {
		fPlusH, err := f(line + h)
		if err != nil {
			return 0, err
		}
		deriv := fPlusH - prevF
		if math.Abs(deriv) < 1e-12 {
			break
		}
		step := prevF / deriv * h
		nextLine := line - step

		clamped := clampToRange(nextLine, minLine, maxLine)
		if clamped != nextLine && math.Abs(clamped-line) < 1e-9 {
			// Already sitting at a clamped boundary with nowhere left to
			// move: the target is outside the requested line range.
			return 0, fmt.Errorf("sensor %s: target is outside line range [%g,%g]", s.Name, minLine, maxLine)
		}
		line = clamped

		curF, err := f(line)
		if err != nil {
			return 0, err
		}
		if math.Abs(curF) < 1e-6 {
			return line, nil
		}
		prevF = curF
	}

	return 0, fmt.Errorf("sensor %s: mean plane crossing did not converge within %d evaluations", s.Name, MaxEval)
}

func clampToRange(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// PixelCrossing finds the pixel, at the given line, whose line of sight
// passes closest to target. A coarse bisection on the signed lateral
// offset between target and each candidate LOS ray brackets the answer
// to within one pixel; the exact crossing within that pixel is then
// found directly (not by further bisection) via the local basis
// X = L0, Z = normalize(L0 x L1), Y = Z x X built from the bracketing
// pixels' own lines of sight, where atan2(L1.Y, L1.X) is the angular
// width of that pixel and atan2(target.Y, target.X) divided by it is
// the fractional offset -- iterated since L0/L1 themselves shift as the
// pixel estimate moves.
func (s *LineSensor) PixelCrossing(traj Trajectory, line float64, target ellipsoid.Vec3) (float64, error) {
	pos, toBody, err := traj.SpacecraftToBody(line)
	if err != nil {
		return 0, err
	}

	losAt := func(pixel float64) ellipsoid.Vec3 { return toBody(s.LOS(pixel)).Normalize() }
	toTarget := target.Sub(pos).Normalize()
	axis := toBody(s.MeanPlaneNormal()).Normalize()

	lateral := func(pixel float64) float64 {
		return losAt(pixel).Cross(toTarget).Dot(axis)
	}

	lo, hi := 0.0, float64(s.NbPixels-1)
	loV, hiV := lateral(lo), lateral(hi)
	if loV == 0 {
		return lo, nil
	}
	if hiV == 0 {
		return hi, nil
	}
	if (loV > 0) == (hiV > 0) {
		return 0, fmt.Errorf("sensor %s: target at line %g is outside the pixel field of view", s.Name, line)
	}

	for hi-lo > 1 {
		mid := (lo + hi) / 2
		midV := lateral(mid)
		if midV == 0 {
			lo, hi = mid, mid
			break
		}
		if (midV > 0) == (loV > 0) {
			lo, loV = mid, midV
		} else {
			hi, hiV = mid, midV
		}
	}

	pixel := lo
	for i := 0; i < MaxEval; i++ {
		i0 := math.Floor(pixel)
		i0 = clampToRange(i0, 0, float64(s.NbPixels-2))

		x := losAt(i0)
		l1 := losAt(i0 + 1)
		z := x.Cross(l1).Normalize()
		y := z.Cross(x)

		pixelWidth := math.Atan2(l1.Dot(y), l1.Dot(x))
		if math.Abs(pixelWidth) < 1e-15 {
			return pixel, nil
		}
		beta := math.Atan2(toTarget.Dot(y), toTarget.Dot(x))
		next := clampToRange(i0+beta/pixelWidth, 0, float64(s.NbPixels-1))

		if math.Abs(next-pixel) < 1e-3 {
			return next, nil
		}
		pixel = next
	}
	return pixel, nil
}

// Package ellipsoid implements ray/ellipsoid geometry (spec component A):
// ray intersection with an altitude iso-surface, with iso-latitude and
// iso-longitude surfaces, and cartesian<->geodetic conversion. No
// external vector/linear-algebra library is used anywhere in the
// retrieval pack (the pack's geo code inlines trig directly, e.g.
// pkg/geo/geo.go's Haversine distance/bearing), so Vec3 is a small
// hand-rolled type in that same style rather than a dependency.
package ellipsoid

import "math"

// Vec3 is a 3D cartesian vector.
type Vec3 struct {
	X, Y, Z float64
}

// Add returns v+w.
func (v Vec3) Add(w Vec3) Vec3 { return Vec3{v.X + w.X, v.Y + w.Y, v.Z + w.Z} }

// Sub returns v-w.
func (v Vec3) Sub(w Vec3) Vec3 { return Vec3{v.X - w.X, v.Y - w.Y, v.Z - w.Z} }

// Scale returns v*s.
func (v Vec3) Scale(s float64) Vec3 { return Vec3{v.X * s, v.Y * s, v.Z * s} }

// Dot returns the dot product v.w.
func (v Vec3) Dot(w Vec3) float64 { return v.X*w.X + v.Y*w.Y + v.Z*w.Z }

// Cross returns the cross product v x w.
func (v Vec3) Cross(w Vec3) Vec3 {
	return Vec3{
		X: v.Y*w.Z - v.Z*w.Y,
		Y: v.Z*w.X - v.X*w.Z,
		Z: v.X*w.Y - v.Y*w.X,
	}
}

// Norm returns the Euclidean norm of v.
func (v Vec3) Norm() float64 { return math.Sqrt(v.Dot(v)) }

// Normalize returns v scaled to unit length. The zero vector is returned
// unchanged (callers that can pass a zero vector must guard separately).
func (v Vec3) Normalize() Vec3 {
	n := v.Norm()
	if n == 0 {
		return v
	}
	return v.Scale(1 / n)
}

// Angle returns the angle in radians between v and w.
func (v Vec3) Angle(w Vec3) float64 {
	cos := v.Dot(w) / (v.Norm() * w.Norm())
	if cos > 1 {
		cos = 1
	} else if cos < -1 {
		cos = -1
	}
	return math.Acos(cos)
}

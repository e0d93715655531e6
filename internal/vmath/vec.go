// Package vmath holds the small amount of 3D math the simulation needs:
// vectors with Y up, a facing quaternion, and quadratic Bézier evaluation.
package vmath

import "math"

// Epsilon is the tolerance used for near-zero comparisons.
const Epsilon = 1e-9

// Vec3 is a position or direction in world space. Y is up.
type Vec3 struct {
	X float64 `json:"x" msgpack:"x"`
	Y float64 `json:"y" msgpack:"y"`
	Z float64 `json:"z" msgpack:"z"`
}

// Zero is the origin.
var Zero = Vec3{}

// Up is the world up axis.
var Up = Vec3{Y: 1}

func V(x, y, z float64) Vec3 { return Vec3{X: x, Y: y, Z: z} }

func (v Vec3) Add(o Vec3) Vec3 { return Vec3{v.X + o.X, v.Y + o.Y, v.Z + o.Z} }

func (v Vec3) Sub(o Vec3) Vec3 { return Vec3{v.X - o.X, v.Y - o.Y, v.Z - o.Z} }

func (v Vec3) Scale(s float64) Vec3 { return Vec3{v.X * s, v.Y * s, v.Z * s} }

func (v Vec3) Dot(o Vec3) float64 { return v.X*o.X + v.Y*o.Y + v.Z*o.Z }

func (v Vec3) Cross(o Vec3) Vec3 {
	return Vec3{
		v.Y*o.Z - v.Z*o.Y,
		v.Z*o.X - v.X*o.Z,
		v.X*o.Y - v.Y*o.X,
	}
}

// Len returns the Euclidean length.
func (v Vec3) Len() float64 { return math.Sqrt(v.Dot(v)) }

// Distance returns the length of o-v.
func (v Vec3) Distance(o Vec3) float64 { return o.Sub(v).Len() }

// Normalize returns the unit vector in the direction of v, or Zero when v has
// no usable length.
func (v Vec3) Normalize() Vec3 {
	l := v.Len()
	if l < Epsilon {
		return Zero
	}
	return v.Scale(1 / l)
}

// IsZero reports whether every component is within Epsilon of zero.
func (v Vec3) IsZero() bool {
	return math.Abs(v.X) < Epsilon && math.Abs(v.Y) < Epsilon && math.Abs(v.Z) < Epsilon
}

// ApproxEqual compares component-wise with the given tolerance.
func (v Vec3) ApproxEqual(o Vec3, tol float64) bool {
	return math.Abs(v.X-o.X) <= tol && math.Abs(v.Y-o.Y) <= tol && math.Abs(v.Z-o.Z) <= tol
}

// IsFinite rejects NaN and infinite components, which clients can send.
func (v Vec3) IsFinite() bool {
	for _, c := range [3]float64{v.X, v.Y, v.Z} {
		if math.IsNaN(c) || math.IsInf(c, 0) {
			return false
		}
	}
	return true
}

// Lerp interpolates between a and b.
func Lerp(a, b Vec3, t float64) Vec3 {
	return a.Add(b.Sub(a).Scale(t))
}

// Clamp01 clamps t into [0,1].
func Clamp01(t float64) float64 {
	if t < 0 {
		return 0
	}
	if t > 1 {
		return 1
	}
	return t
}

// Clamp clamps v into [lo,hi].
func Clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// Array returns the components as a fixed array for compact payloads.
func (v Vec3) Array() [3]float64 { return [3]float64{v.X, v.Y, v.Z} }

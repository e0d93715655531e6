package vmath

import "math"

// Quat is a unit rotation quaternion.
type Quat struct {
	X float64 `json:"x" msgpack:"x"`
	Y float64 `json:"y" msgpack:"y"`
	Z float64 `json:"z" msgpack:"z"`
	W float64 `json:"w" msgpack:"w"`
}

// Identity is the zero rotation.
var Identity = Quat{W: 1}

// LookRotation returns the rotation whose forward (+Z) axis points along
// forward with +Y as the up hint. A zero forward yields Identity.
func LookRotation(forward Vec3) Quat {
	f := forward.Normalize()
	if f.IsZero() {
		return Identity
	}
	up := Up
	if math.Abs(f.Dot(up)) > 1-1e-6 {
		// Looking straight up or down: any perpendicular up works.
		up = Vec3{Z: -1}
		if f.Y < 0 {
			up = Vec3{Z: 1}
		}
	}
	r := up.Cross(f).Normalize()
	u := f.Cross(r)

	m00, m01, m02 := r.X, u.X, f.X
	m10, m11, m12 := r.Y, u.Y, f.Y
	m20, m21, m22 := r.Z, u.Z, f.Z

	trace := m00 + m11 + m22
	var q Quat
	switch {
	case trace > 0:
		s := math.Sqrt(trace+1) * 2
		q = Quat{W: 0.25 * s, X: (m21 - m12) / s, Y: (m02 - m20) / s, Z: (m10 - m01) / s}
	case m00 > m11 && m00 > m22:
		s := math.Sqrt(1+m00-m11-m22) * 2
		q = Quat{W: (m21 - m12) / s, X: 0.25 * s, Y: (m01 + m10) / s, Z: (m02 + m20) / s}
	case m11 > m22:
		s := math.Sqrt(1+m11-m00-m22) * 2
		q = Quat{W: (m02 - m20) / s, X: (m01 + m10) / s, Y: 0.25 * s, Z: (m12 + m21) / s}
	default:
		s := math.Sqrt(1+m22-m00-m11) * 2
		q = Quat{W: (m10 - m01) / s, X: (m02 + m20) / s, Y: (m12 + m21) / s, Z: 0.25 * s}
	}
	return q.normalize()
}

// Forward rotates the +Z axis by q.
func (q Quat) Forward() Vec3 {
	return Vec3{
		X: 2 * (q.X*q.Z + q.W*q.Y),
		Y: 2 * (q.Y*q.Z - q.W*q.X),
		Z: 1 - 2*(q.X*q.X+q.Y*q.Y),
	}
}

func (q Quat) normalize() Quat {
	l := math.Sqrt(q.X*q.X + q.Y*q.Y + q.Z*q.Z + q.W*q.W)
	if l < Epsilon {
		return Identity
	}
	return Quat{X: q.X / l, Y: q.Y / l, Z: q.Z / l, W: q.W / l}
}

package vmath

// QuadraticBezier evaluates (1-t)^2*p0 + 2(1-t)t*p1 + t^2*p2.
func QuadraticBezier(p0, p1, p2 Vec3, t float64) Vec3 {
	u := 1 - t
	return p0.Scale(u * u).Add(p1.Scale(2 * u * t)).Add(p2.Scale(t * t))
}

// QuadraticBezierTangent returns the derivative of the curve at t. The result
// is not normalized.
func QuadraticBezierTangent(p0, p1, p2 Vec3, t float64) Vec3 {
	u := 1 - t
	return p1.Sub(p0).Scale(2 * u).Add(p2.Sub(p1).Scale(2 * t))
}

// ArcControlPoint returns the midpoint of a and b raised by height on the up
// axis.
func ArcControlPoint(a, b Vec3, height float64) Vec3 {
	mid := a.Add(b).Scale(0.5)
	mid.Y += height
	return mid
}

package vmath

import (
	"math"
	"testing"
)

func TestQuadraticBezierEndpoints(t *testing.T) {
	p0 := V(0, 0, 0)
	p2 := V(10, 0, 0)
	p1 := ArcControlPoint(p0, p2, 5)
	if p1 != V(5, 5, 0) {
		t.Fatalf("unexpected control point %+v", p1)
	}
	if got := QuadraticBezier(p0, p1, p2, 0); got != p0 {
		t.Fatalf("expected start at origin, got %+v", got)
	}
	if got := QuadraticBezier(p0, p1, p2, 1); !got.ApproxEqual(p2, 1e-12) {
		t.Fatalf("expected end at target, got %+v", got)
	}
	mid := QuadraticBezier(p0, p1, p2, 0.5)
	if math.Abs(mid.Y-2.5) > 1e-12 {
		t.Fatalf("expected apex at half the arc height, got %+v", mid)
	}
}

func TestQuadraticBezierTangentFollowsCurve(t *testing.T) {
	p0, p2 := V(0, 0, 0), V(10, 0, 0)
	p1 := ArcControlPoint(p0, p2, 5)
	start := QuadraticBezierTangent(p0, p1, p2, 0).Normalize()
	if start.Y <= 0 || start.X <= 0 {
		t.Fatalf("expected rising tangent at launch, got %+v", start)
	}
	end := QuadraticBezierTangent(p0, p1, p2, 1).Normalize()
	if end.Y >= 0 {
		t.Fatalf("expected falling tangent at landing, got %+v", end)
	}
}

func TestLookRotationForward(t *testing.T) {
	cases := []Vec3{V(0, 0, 1), V(1, 0, 0), V(-1, 0, 0), V(0, 0, -1), V(1, 1, 0), V(0, 1, 0), V(0, -1, 0)}
	for _, dir := range cases {
		q := LookRotation(dir)
		if got := q.Forward(); !got.ApproxEqual(dir.Normalize(), 1e-9) {
			t.Fatalf("LookRotation(%+v).Forward() = %+v", dir, got)
		}
	}
	if LookRotation(Zero) != Identity {
		t.Fatalf("expected identity for zero direction")
	}
}

func TestNormalizeZero(t *testing.T) {
	if !Zero.Normalize().IsZero() {
		t.Fatalf("expected zero vector to stay zero")
	}
	if V(math.NaN(), 0, 0).IsFinite() {
		t.Fatalf("expected NaN to be rejected")
	}
}

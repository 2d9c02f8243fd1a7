// Package geom holds the small vector helpers shared by the simulation,
// snapshot, and client packages.
package geom

import "math"

// Vec2 is a 2D float64 vector.
type Vec2 struct {
	X, Y float64
}

// Add returns v + o.
func (v Vec2) Add(o Vec2) Vec2 {
	return Vec2{v.X + o.X, v.Y + o.Y}
}

// Sub returns v - o.
func (v Vec2) Sub(o Vec2) Vec2 {
	return Vec2{v.X - o.X, v.Y - o.Y}
}

// Scale returns v scaled by s.
func (v Vec2) Scale(s float64) Vec2 {
	return Vec2{v.X * s, v.Y * s}
}

// Length returns the Euclidean length of v.
func (v Vec2) Length() float64 {
	return math.Hypot(v.X, v.Y)
}

// LengthSquared avoids the sqrt when only comparison is needed.
func (v Vec2) LengthSquared() float64 {
	return v.X*v.X + v.Y*v.Y
}

// DistanceSquared returns the squared distance between v and o.
func (v Vec2) DistanceSquared(o Vec2) float64 {
	return v.Sub(o).LengthSquared()
}

// Normalized returns v scaled to unit length, or the zero vector if v is
// the zero vector (avoids a NaN from dividing by zero).
func (v Vec2) Normalized() Vec2 {
	length := v.Length()
	if length == 0 {
		return Vec2{}
	}
	return Vec2{v.X / length, v.Y / length}
}

// Lerp linearly interpolates between a and b by t in [0, 1].
func Lerp(a, b Vec2, t float64) Vec2 {
	return Vec2{
		X: a.X + (b.X-a.X)*t,
		Y: a.Y + (b.Y-a.Y)*t,
	}
}

// ClampUnit returns v scaled down to unit length if it exceeds it,
// otherwise v unchanged. Used to reject oversized input direction vectors
// without silently renormalizing vectors that are already valid.
func (v Vec2) ClampUnit() Vec2 {
	if v.LengthSquared() > 1 {
		return v.Normalized()
	}
	return v
}

// Package geom provides the small amount of 2D vector math the combat core needs.
package geom

import "math"

const epsilon = 1e-9

// Vec2 is a point or direction in the arena plane.
type Vec2 struct {
	X float64 `yaml:"x"`
	Y float64 `yaml:"y"`
}

// V is shorthand for Vec2{X: x, Y: y}.
func V(x, y float64) Vec2 { return Vec2{X: x, Y: y} }

// Right is the unit +X direction, the fallback heading when nothing better is known.
var Right = Vec2{X: 1}

func (v Vec2) Add(o Vec2) Vec2 { return Vec2{v.X + o.X, v.Y + o.Y} }
func (v Vec2) Sub(o Vec2) Vec2 { return Vec2{v.X - o.X, v.Y - o.Y} }
func (v Vec2) Scale(s float64) Vec2 { return Vec2{v.X * s, v.Y * s} }
func (v Vec2) Dot(o Vec2) float64 { return v.X*o.X + v.Y*o.Y }
func (v Vec2) Len() float64 { return math.Hypot(v.X, v.Y) }
func (v Vec2) Dist(o Vec2) float64 { return v.Sub(o).Len() }
func (v Vec2) Angle() float64 { return math.Atan2(v.Y, v.X) }
func (v Vec2) AngleDeg() float64 { return v.Angle() * 180 / math.Pi }

// DistSq returns the squared distance between v and o.
func (v Vec2) DistSq(o Vec2) float64 {
	d := v.Sub(o)
	return d.Dot(d)
}

// IsZero reports whether v has no meaningful length.
func (v Vec2) IsZero() bool {
	return math.Abs(v.X) < epsilon && math.Abs(v.Y) < epsilon
}

// Eq reports whether v and o differ by at most tol on each axis.
func (v Vec2) Eq(o Vec2, tol float64) bool {
	return math.Abs(v.X-o.X) <= tol && math.Abs(v.Y-o.Y) <= tol
}

// Normalize returns the unit vector of v, or the zero vector when v has no length.
func (v Vec2) Normalize() Vec2 {
	l := v.Len()
	if l < epsilon {
		return Vec2{}
	}
	return Vec2{v.X / l, v.Y / l}
}

// Rotate returns v rotated counter-clockwise by deg degrees.
func (v Vec2) Rotate(deg float64) Vec2 {
	rad := deg * math.Pi / 180
	sin, cos := math.Sincos(rad)
	return Vec2{v.X*cos - v.Y*sin, v.X*sin + v.Y*cos}
}

// FromAngleDeg returns the unit vector pointing at deg degrees.
func FromAngleDeg(deg float64) Vec2 {
	return Right.Rotate(deg)
}

// Direction returns the unit vector from "from" towards "to", or fallback when
// the two points coincide.
func Direction(from, to, fallback Vec2) Vec2 {
	d := to.Sub(from).Normalize()
	if d.IsZero() {
		return fallback
	}
	return d
}

// AngleBetweenDeg returns the signed angle in degrees to rotate a onto b, in (-180, 180].
func AngleBetweenDeg(a, b Vec2) float64 {
	return NormalizeDeg(b.AngleDeg() - a.AngleDeg())
}

// NormalizeDeg wraps deg into (-180, 180].
func NormalizeDeg(deg float64) float64 {
	deg = math.Mod(deg, 360)
	if deg <= -180 {
		deg += 360
	}
	if deg > 180 {
		deg -= 360
	}
	return deg
}

// RotateTowards turns the unit heading cur towards desired by at most maxDeg
// degrees. The result is always a unit vector.
func RotateTowards(cur, desired Vec2, maxDeg float64) Vec2 {
	cur = cur.Normalize()
	desired = desired.Normalize()
	if desired.IsZero() {
		return cur
	}
	if cur.IsZero() {
		return desired
	}
	delta := AngleBetweenDeg(cur, desired)
	if math.Abs(delta) <= maxDeg {
		return desired
	}
	if delta < 0 {
		return cur.Rotate(-maxDeg)
	}
	return cur.Rotate(maxDeg)
}

// Fan spreads count directions evenly across spreadDeg degrees centred on center.
// A single direction is center itself.
//
// Postcondition: len(result) == max(count, 0); consecutive directions are
// spreadDeg/(count-1) degrees apart.
func Fan(center Vec2, count int, spreadDeg float64) []Vec2 {
	if count <= 0 {
		return nil
	}
	center = center.Normalize()
	if center.IsZero() {
		center = Right
	}
	if count == 1 {
		return []Vec2{center}
	}
	out := make([]Vec2, count)
	step := spreadDeg / float64(count-1)
	start := -spreadDeg / 2
	for i := range out {
		out[i] = center.Rotate(start + step*float64(i))
	}
	return out
}

// SegmentPointDist returns the shortest distance from p to the segment a-b.
func SegmentPointDist(a, b, p Vec2) float64 {
	ab := b.Sub(a)
	lenSq := ab.Dot(ab)
	if lenSq < epsilon {
		return p.Dist(a)
	}
	t := p.Sub(a).Dot(ab) / lenSq
	t = math.Max(0, math.Min(1, t))
	return p.Dist(a.Add(ab.Scale(t)))
}

// Package geom holds the shared geometry value types for the volumetric
// cache: world-space vectors, integer voxel triples, axis-aligned boxes
// and rigid sensor poses.
package geom

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"
)

// Vec3 is a point or displacement in world space, in meters.
type Vec3 = r3.Vec

// Distance returns the Euclidean distance between two world points.
func Distance(a, b Vec3) float64 {
	return r3.Norm(r3.Sub(a, b))
}

// IVec3 is an integer triple used for voxel indices, voxel counts and
// whole-voxel shift offsets.
type IVec3 struct {
	X, Y, Z int
}

// Add returns v + o componentwise.
func (v IVec3) Add(o IVec3) IVec3 {
	return IVec3{X: v.X + o.X, Y: v.Y + o.Y, Z: v.Z + o.Z}
}

// Sub returns v - o componentwise.
func (v IVec3) Sub(o IVec3) IVec3 {
	return IVec3{X: v.X - o.X, Y: v.Y - o.Y, Z: v.Z - o.Z}
}

// IsZero reports whether all components are zero.
func (v IVec3) IsZero() bool {
	return v.X == 0 && v.Y == 0 && v.Z == 0
}

// Axis returns the component for axis index 0, 1 or 2. Panics on any
// other axis; callers iterate fixed 0..2 loops.
func (v IVec3) Axis(axis int) int {
	switch axis {
	case 0:
		return v.X
	case 1:
		return v.Y
	case 2:
		return v.Z
	}
	panic("geom: axis out of range")
}

// WithAxis returns a copy of v with the given axis replaced.
func (v IVec3) WithAxis(axis, value int) IVec3 {
	switch axis {
	case 0:
		v.X = value
	case 1:
		v.Y = value
	case 2:
		v.Z = value
	default:
		panic("geom: axis out of range")
	}
	return v
}

// VecAxis returns the component of a Vec3 for axis index 0, 1 or 2.
func VecAxis(v Vec3, axis int) float64 {
	switch axis {
	case 0:
		return v.X
	case 1:
		return v.Y
	case 2:
		return v.Z
	}
	panic("geom: axis out of range")
}

// AABB is an axis-aligned world-space box, half-open on every axis:
// a point p is inside when Min <= p < Max componentwise.
type AABB struct {
	Min Vec3
	Max Vec3
}

// Contains reports whether p lies inside the box.
func (b AABB) Contains(p Vec3) bool {
	return p.X >= b.Min.X && p.X < b.Max.X &&
		p.Y >= b.Min.Y && p.Y < b.Max.Y &&
		p.Z >= b.Min.Z && p.Z < b.Max.Z
}

// Center returns the box midpoint.
func (b AABB) Center() Vec3 {
	return r3.Scale(0.5, r3.Add(b.Min, b.Max))
}

// IsFiniteVec reports whether every component of v is finite.
func IsFiniteVec(v Vec3) bool {
	return isFinite(v.X) && isFinite(v.Y) && isFinite(v.Z)
}

func isFinite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}

// Package volume defines the dense signed-distance grid capability the
// cyclical cache drives, plus a host-memory reference implementation.
//
// The cache addresses the grid by physical voxel index; the toroidal
// logical-to-physical mapping is the cache's concern, so regions passed
// to a Volume never wrap.
package volume

import "github.com/banshee-data/tsdf.cache/internal/geom"

// Voxel is one cell of the truncated signed-distance grid: a distance
// sample in [-1, 1] (scaled by the truncation band) and an integration
// weight.
type Voxel struct {
	TSDF   float32
	Weight float32
}

// Unknown is the sentinel state of an unobserved cell.
func Unknown() Voxel {
	return Voxel{TSDF: 1, Weight: 0}
}

// Occupied reports whether the cell has a confident near-surface sample
// worth archiving: nonzero weight and a distance strictly inside the
// truncation band.
func (v Voxel) Occupied() bool {
	return v.Weight > 0 && v.TSDF > -1 && v.TSDF < 1
}

// Region is an axis-aligned box of physical voxel indices, half-open:
// Origin <= idx < Origin+Extent componentwise. A region with any
// non-positive extent is empty.
type Region struct {
	Origin geom.IVec3
	Extent geom.IVec3
}

// Empty reports whether the region selects no voxels.
func (r Region) Empty() bool {
	return r.Extent.X <= 0 || r.Extent.Y <= 0 || r.Extent.Z <= 0
}

// Count returns the number of voxels selected.
func (r Region) Count() int {
	if r.Empty() {
		return 0
	}
	return r.Extent.X * r.Extent.Y * r.Extent.Z
}

// Contains reports whether idx lies inside the region.
func (r Region) Contains(idx geom.IVec3) bool {
	return idx.X >= r.Origin.X && idx.X < r.Origin.X+r.Extent.X &&
		idx.Y >= r.Origin.Y && idx.Y < r.Origin.Y+r.Extent.Y &&
		idx.Z >= r.Origin.Z && idx.Z < r.Origin.Z+r.Extent.Z
}

// Sample is one occupied voxel returned by ReadSlice.
type Sample struct {
	Index geom.IVec3
	Voxel Voxel
}

// Layout describes the addressable bounds of a Volume.
type Layout struct {
	VoxelCount geom.IVec3
}

// Volume is the capability the cache consumes. Implementations may be
// device-backed; every call blocks until the operation has completed on
// the device.
type Volume interface {
	// ReadSlice returns the occupied voxels inside the region.
	ReadSlice(r Region) ([]Sample, error)
	// WriteVoxel stores a single voxel value.
	WriteVoxel(idx geom.IVec3, v Voxel) error
	// ClearSlice resets every voxel in the region to Unknown.
	ClearSlice(r Region) error
	// MemoryLayout reports the grid's addressable bounds.
	MemoryLayout() Layout
}

package cyclical

import (
	"github.com/banshee-data/tsdf.cache/internal/geom"
	"github.com/banshee-data/tsdf.cache/internal/volume"
)

// BufferState is the window descriptor: which region of the unbounded
// world the grid currently holds, and how logical window positions map
// onto the grid's toroidal physical storage.
//
// It is a value type. Shifts produce a new state via ShiftOrigin and
// commit it by assignment, so a partially updated descriptor cannot be
// observed.
type BufferState struct {
	// VolumeSize is the window's physical extent in meters. Constant.
	VolumeSize geom.Vec3
	// VoxelCount is the grid resolution per axis. Constant.
	VoxelCount geom.IVec3
	// VoxelSize is VolumeSize / VoxelCount. Derived, constant.
	VoxelSize geom.Vec3

	// OriginGrid is the toroidal offset: the physical grid index that
	// currently maps to logical window index 0 on each axis. Each
	// component stays in [0, VoxelCount).
	OriginGrid geom.IVec3
	// OriginGridGlobal is the net whole-voxel shift since creation,
	// accumulated without wrapping. It anchors the window in world
	// voxel coordinates.
	OriginGridGlobal geom.IVec3
	// OriginMetric is OriginGridGlobal * VoxelSize: the world position
	// of the window's minimal corner.
	OriginMetric geom.Vec3
}

func newBufferState(volumeSize geom.Vec3, voxelCount geom.IVec3) BufferState {
	return BufferState{
		VolumeSize: volumeSize,
		VoxelCount: voxelCount,
		VoxelSize: geom.Vec3{
			X: volumeSize.X / float64(voxelCount.X),
			Y: volumeSize.Y / float64(voxelCount.Y),
			Z: volumeSize.Z / float64(voxelCount.Z),
		},
	}
}

// CubeCenter returns the world position of the window's center.
func (b BufferState) CubeCenter() geom.Vec3 {
	return geom.Vec3{
		X: b.OriginMetric.X + b.VolumeSize.X/2,
		Y: b.OriginMetric.Y + b.VolumeSize.Y/2,
		Z: b.OriginMetric.Z + b.VolumeSize.Z/2,
	}
}

// WorldBounds returns the window's world-space box,
// [OriginMetric, OriginMetric+VolumeSize) on every axis.
func (b BufferState) WorldBounds() geom.AABB {
	return geom.AABB{
		Min: b.OriginMetric,
		Max: geom.Vec3{
			X: b.OriginMetric.X + b.VolumeSize.X,
			Y: b.OriginMetric.Y + b.VolumeSize.Y,
			Z: b.OriginMetric.Z + b.VolumeSize.Z,
		},
	}
}

// wrap keeps v in [0, n) with exactly one correction. Callers guarantee
// v is within (-n, 2n), which holds because offsets are bounded to
// |offset| <= VoxelCount by the planner.
func wrap(v, n int) int {
	if v >= n {
		return v - n
	}
	if v < 0 {
		return v + n
	}
	return v
}

// ShiftOrigin returns the descriptor after a whole-voxel shift by
// offset. Pure bookkeeping: no device or archive I/O, deterministic,
// never fails.
func (b BufferState) ShiftOrigin(offset geom.IVec3) BufferState {
	b.OriginGrid = geom.IVec3{
		X: wrap(b.OriginGrid.X+offset.X, b.VoxelCount.X),
		Y: wrap(b.OriginGrid.Y+offset.Y, b.VoxelCount.Y),
		Z: wrap(b.OriginGrid.Z+offset.Z, b.VoxelCount.Z),
	}
	b.OriginGridGlobal = b.OriginGridGlobal.Add(offset)
	b.OriginMetric = geom.Vec3{
		X: float64(b.OriginGridGlobal.X) * b.VoxelSize.X,
		Y: float64(b.OriginGridGlobal.Y) * b.VoxelSize.Y,
		Z: float64(b.OriginGridGlobal.Z) * b.VoxelSize.Z,
	}
	return b
}

// WorldVoxel maps a physical grid index to its stable world voxel
// coordinate under this descriptor.
func (b BufferState) WorldVoxel(physical geom.IVec3) geom.IVec3 {
	return geom.IVec3{
		X: b.OriginGridGlobal.X + wrap(physical.X-b.OriginGrid.X, b.VoxelCount.X),
		Y: b.OriginGridGlobal.Y + wrap(physical.Y-b.OriginGrid.Y, b.VoxelCount.Y),
		Z: b.OriginGridGlobal.Z + wrap(physical.Z-b.OriginGrid.Z, b.VoxelCount.Z),
	}
}

// PhysicalIndex maps a world voxel coordinate to its physical grid
// index. The second return is false when the coordinate lies outside
// the window.
func (b BufferState) PhysicalIndex(world geom.IVec3) (geom.IVec3, bool) {
	logical := world.Sub(b.OriginGridGlobal)
	if logical.X < 0 || logical.X >= b.VoxelCount.X ||
		logical.Y < 0 || logical.Y >= b.VoxelCount.Y ||
		logical.Z < 0 || logical.Z >= b.VoxelCount.Z {
		return geom.IVec3{}, false
	}
	return geom.IVec3{
		X: wrap(b.OriginGrid.X+logical.X, b.VoxelCount.X),
		Y: wrap(b.OriginGrid.Y+logical.Y, b.VoxelCount.Y),
		Z: wrap(b.OriginGrid.Z+logical.Z, b.VoxelCount.Z),
	}, true
}

// VoxelCenter returns the world position of a world voxel's center.
func (b BufferState) VoxelCenter(world geom.IVec3) geom.Vec3 {
	return geom.Vec3{
		X: (float64(world.X) + 0.5) * b.VoxelSize.X,
		Y: (float64(world.Y) + 0.5) * b.VoxelSize.Y,
		Z: (float64(world.Z) + 0.5) * b.VoxelSize.Z,
	}
}

// WorldVoxelFor returns the world voxel containing the world point.
func (b BufferState) WorldVoxelFor(p geom.Vec3) geom.IVec3 {
	return geom.IVec3{
		X: floorDiv(p.X, b.VoxelSize.X),
		Y: floorDiv(p.Y, b.VoxelSize.Y),
		Z: floorDiv(p.Z, b.VoxelSize.Z),
	}
}

// RegionMarkers are the derived addressable-region markers over the
// Volume's layout: the storage start and end bounds plus the rolling
// origin where logical index 0 currently lives. Purely a function of
// OriginGrid and the layout; never stored.
type RegionMarkers struct {
	Start         geom.IVec3
	End           geom.IVec3
	RollingOrigin geom.IVec3
}

// Markers recomputes the addressable-region markers for the given
// layout.
func (b BufferState) Markers(l volume.Layout) RegionMarkers {
	return RegionMarkers{
		Start:         geom.IVec3{},
		End:           l.VoxelCount,
		RollingOrigin: b.OriginGrid,
	}
}

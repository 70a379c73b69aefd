package cyclical

import (
	"math"

	"github.com/banshee-data/tsdf.cache/internal/geom"
)

// PlanShift computes the whole-voxel offsets that re-center the window
// on target as closely as the voxel lattice allows.
//
// Per axis the desired new origin is target - volumeSize/2, snapped to
// the nearest multiple of the voxel size; a target exactly halfway
// between two lattice positions snaps toward the lower index. The
// current origin sits on the lattice by construction, so the snap
// reduces to a half-down rounding of the origin delta in voxel units.
func PlanShift(originMetric, volumeSize, voxelSize, target geom.Vec3) geom.IVec3 {
	return geom.IVec3{
		X: planAxis(originMetric.X, volumeSize.X, voxelSize.X, target.X),
		Y: planAxis(originMetric.Y, volumeSize.Y, voxelSize.Y, target.Y),
		Z: planAxis(originMetric.Z, volumeSize.Z, voxelSize.Z, target.Z),
	}
}

func planAxis(origin, size, voxel, target float64) int {
	desired := target - size/2
	// Round half down: ties at a voxel boundary go to the lower index.
	return int(math.Ceil((desired-origin)/voxel - 0.5))
}

// FullShiftPlan returns the offsets for a forced full shift: one whole
// window per axis, so every occupied voxel is evicted into the archive.
// Used once, to flush final state at shutdown.
func FullShiftPlan(voxelCount geom.IVec3) geom.IVec3 {
	return voxelCount
}

// clampPlan bounds each offset to one full window. Larger jumps would
// violate the single-wrap precondition of ShiftOrigin; a shift of a
// full window already evicts everything, so clamping only means a
// teleported sensor converges over a few frames instead of one.
func clampPlan(offset, voxelCount geom.IVec3) geom.IVec3 {
	return geom.IVec3{
		X: clampAxis(offset.X, voxelCount.X),
		Y: clampAxis(offset.Y, voxelCount.Y),
		Z: clampAxis(offset.Z, voxelCount.Z),
	}
}

func clampAxis(off, n int) int {
	if off > n {
		return n
	}
	if off < -n {
		return -n
	}
	return off
}

func floorDiv(v, size float64) int {
	return int(math.Floor(v / size))
}

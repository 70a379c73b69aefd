package cyclical

import (
	"fmt"

	"github.com/banshee-data/tsdf.cache/internal/archive"
	"github.com/banshee-data/tsdf.cache/internal/geom"
	"github.com/banshee-data/tsdf.cache/internal/monitoring"
	"github.com/banshee-data/tsdf.cache/internal/volume"
)

// CyclicalCache keeps the dense grid window centered near the sensor,
// shifting it in whole-voxel steps and exchanging slices with the world
// archive as it moves.
//
// The cache owns its BufferState exclusively. PerformShift is not
// reentrant; the driver calls the cache from a single thread, once per
// frame, after the frame's integration into the current window has
// completed.
type CyclicalCache struct {
	threshold float64
	buf       BufferState
	vol       volume.Volume
	arch      archive.Archive
}

// NewCubic creates a cache over a cubic window: cubeSize meters and
// voxelsPerAxis voxels on every axis.
func NewCubic(threshold, cubeSize float64, voxelsPerAxis int, vol volume.Volume, arch archive.Archive) (*CyclicalCache, error) {
	return New(threshold,
		geom.Vec3{X: cubeSize, Y: cubeSize, Z: cubeSize},
		geom.IVec3{X: voxelsPerAxis, Y: voxelsPerAxis, Z: voxelsPerAxis},
		vol, arch)
}

// New creates a cache with per-axis window extents and voxel counts.
// The volume's layout must match voxelCount.
func New(threshold float64, volumeSize geom.Vec3, voxelCount geom.IVec3, vol volume.Volume, arch archive.Archive) (*CyclicalCache, error) {
	if threshold <= 0 {
		return nil, &ConfigError{Param: "distance threshold", Value: threshold}
	}
	for axis := 0; axis < 3; axis++ {
		if s := geom.VecAxis(volumeSize, axis); s <= 0 {
			return nil, &ConfigError{Param: "volume size", Value: s}
		}
		if n := voxelCount.Axis(axis); n <= 0 {
			return nil, &ConfigError{Param: "voxel count", Value: float64(n)}
		}
	}
	if vol == nil {
		return nil, fmt.Errorf("cyclical cache requires a volume")
	}
	if arch == nil {
		return nil, fmt.Errorf("cyclical cache requires a world archive")
	}
	if l := vol.MemoryLayout(); l.VoxelCount != voxelCount {
		return nil, fmt.Errorf("volume layout %+v does not match voxel count %+v", l.VoxelCount, voxelCount)
	}
	return &CyclicalCache{
		threshold: threshold,
		buf:       newBufferState(volumeSize, voxelCount),
		vol:       vol,
		arch:      arch,
	}, nil
}

// SetThreshold configures the trigger distance in meters. Non-positive
// values are rejected and the prior threshold kept.
func (c *CyclicalCache) SetThreshold(meters float64) error {
	if meters <= 0 {
		return &ConfigError{Param: "distance threshold", Value: meters}
	}
	c.threshold = meters
	monitoring.Logf("shifting threshold set to %f meters", meters)
	return nil
}

// Threshold returns the trigger distance in meters.
func (c *CyclicalCache) Threshold() float64 {
	return c.threshold
}

// Buffer returns a copy of the window descriptor.
func (c *CyclicalCache) Buffer() BufferState {
	return c.buf
}

// Archive returns the world archive handle, for driver-side persistence
// and flush.
func (c *CyclicalCache) Archive() archive.Archive {
	return c.arch
}

// Markers recomputes the derived addressable-region markers over the
// current volume layout.
func (c *CyclicalCache) Markers() RegionMarkers {
	return c.buf.Markers(c.vol.MemoryLayout())
}

// Reset rebinds the cache to a freshly allocated volume and zeroes all
// origins. The archive keeps its accumulated points.
func (c *CyclicalCache) Reset(vol volume.Volume) error {
	if vol == nil {
		return fmt.Errorf("reset requires a volume")
	}
	if l := vol.MemoryLayout(); l.VoxelCount != c.buf.VoxelCount {
		return fmt.Errorf("volume layout %+v does not match voxel count %+v", l.VoxelCount, c.buf.VoxelCount)
	}
	c.vol = vol
	c.buf = newBufferState(c.buf.VolumeSize, c.buf.VoxelCount)
	return nil
}

// CheckForShift decides whether the window must move to follow the
// sensor. The target point lies targetDistance ahead of the sensor
// along its local Z axis, transformed into world space by pose. When
// the target drifts farther than the threshold from the window center
// (or forceFullShift is set) a shift is needed; with autoPerform it is
// executed immediately.
//
// Returns whether a shift was needed. The error is non-nil when the
// pose is invalid or an auto-performed shift failed.
func (c *CyclicalCache) CheckForShift(pose geom.Pose, targetDistance float64, autoPerform, forceFullShift bool) (bool, error) {
	if !pose.IsFinite() {
		return false, ErrInvalidPose
	}
	target := pose.Apply(geom.Vec3{Z: targetDistance})
	if !geom.IsFiniteVec(target) {
		return false, ErrInvalidPose
	}

	needsShift := forceFullShift || geom.Distance(target, c.buf.CubeCenter()) > c.threshold
	if needsShift && autoPerform {
		if err := c.PerformShift(target, forceFullShift); err != nil {
			return true, err
		}
	}
	return needsShift, nil
}

// PerformShift moves the window toward target in whole-voxel steps:
// plan, evict leaving slices into the archive, clear the vacated
// storage, refill entering slices from the archive, then commit the new
// origins. On any failure the buffer state is left untouched and the
// error wraps ErrShiftAborted; after the clear step the evicted voxel
// data survives only in the archive.
func (c *CyclicalCache) PerformShift(target geom.Vec3, forceFullShift bool) error {
	if !geom.IsFiniteVec(target) {
		return ErrInvalidPose
	}

	b := c.buf
	var offset geom.IVec3
	if forceFullShift {
		offset = FullShiftPlan(b.VoxelCount)
	} else {
		offset = clampPlan(PlanShift(b.OriginMetric, b.VolumeSize, b.VoxelSize, target), b.VoxelCount)
	}
	if offset.IsZero() {
		return nil
	}

	// Evict: read each leaving slab and convert occupied voxels to
	// world points. Slabs are disjoint, so corner and edge voxels are
	// extracted once.
	var evicted []archive.Point
	var regions []volume.Region
	for _, lb := range evictionBoxes(offset, b.VoxelCount) {
		for _, r := range physicalRegions(lb, b.OriginGrid, b.VoxelCount) {
			samples, err := c.vol.ReadSlice(r)
			if err != nil {
				return abortf("evict read", ErrDeviceOperation, err)
			}
			for _, s := range samples {
				wv := b.WorldVoxel(s.Index)
				evicted = append(evicted, archive.Point{
					Position:  b.VoxelCenter(wv),
					Intensity: s.Voxel.TSDF,
				})
			}
			regions = append(regions, r)
		}
	}
	if len(evicted) > 0 {
		if err := c.arch.InsertBulk(evicted); err != nil {
			return abortf("evict insert", ErrArchiveUnavailable, err)
		}
	}

	// Clear: the vacated storage is about to become the window's
	// leading edge and must hold no stale data. Point of no return.
	for _, r := range regions {
		if err := c.vol.ClearSlice(r); err != nil {
			return abortf("clear", ErrDeviceOperation, err)
		}
	}

	// Fill: reintegrate previously archived points that fall inside
	// the entering slices. Unexplored space returns nothing and the
	// region stays at the unknown sentinel.
	next := b.ShiftOrigin(offset)
	filled := 0
	for _, wb := range enteredBoxes(offset, b.VoxelCount, b.OriginGridGlobal, next.OriginGridGlobal) {
		points, err := c.arch.QueryRegion(worldBox(wb, b.VoxelSize))
		if err != nil {
			return abortf("fill query", ErrArchiveUnavailable, err)
		}
		for _, p := range points {
			phys, ok := next.PhysicalIndex(next.WorldVoxelFor(p.Position))
			if !ok {
				continue
			}
			err := c.vol.WriteVoxel(phys, volume.Voxel{TSDF: p.Intensity, Weight: 1})
			if err != nil {
				return abortf("fill write", ErrDeviceOperation, err)
			}
			filled++
		}
	}

	// Commit.
	c.buf = next
	monitoring.Tracef("shift committed: offset=%+v evicted=%d filled=%d origin=%+v",
		offset, len(evicted), filled, next.OriginMetric)
	return nil
}

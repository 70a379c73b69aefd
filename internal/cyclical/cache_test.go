package cyclical

import (
	"errors"
	"fmt"
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/tsdf.cache/internal/archive"
	"github.com/banshee-data/tsdf.cache/internal/geom"
	"github.com/banshee-data/tsdf.cache/internal/volume"
)

// sparseVolume backs the full-resolution scenario tests, where a dense
// 512^3 allocation would be wasteful.
type sparseVolume struct {
	count  geom.IVec3
	voxels map[geom.IVec3]volume.Voxel
}

func newSparseVolume(count geom.IVec3) *sparseVolume {
	return &sparseVolume{count: count, voxels: make(map[geom.IVec3]volume.Voxel)}
}

func (v *sparseVolume) ReadSlice(r volume.Region) ([]volume.Sample, error) {
	var out []volume.Sample
	for idx, vox := range v.voxels {
		if r.Contains(idx) && vox.Occupied() {
			out = append(out, volume.Sample{Index: idx, Voxel: vox})
		}
	}
	return out, nil
}

func (v *sparseVolume) WriteVoxel(idx geom.IVec3, vox volume.Voxel) error {
	v.voxels[idx] = vox
	return nil
}

func (v *sparseVolume) ClearSlice(r volume.Region) error {
	for idx := range v.voxels {
		if r.Contains(idx) {
			delete(v.voxels, idx)
		}
	}
	return nil
}

func (v *sparseVolume) MemoryLayout() volume.Layout {
	return volume.Layout{VoxelCount: v.count}
}

// failVolume injects device failures into a real grid.
type failVolume struct {
	*volume.GridVolume
	failRead  bool
	failClear bool
	failWrite bool
}

var errDevice = errors.New("simulated device failure")

func (v *failVolume) ReadSlice(r volume.Region) ([]volume.Sample, error) {
	if v.failRead {
		return nil, errDevice
	}
	return v.GridVolume.ReadSlice(r)
}

func (v *failVolume) ClearSlice(r volume.Region) error {
	if v.failClear {
		return errDevice
	}
	return v.GridVolume.ClearSlice(r)
}

func (v *failVolume) WriteVoxel(idx geom.IVec3, vox volume.Voxel) error {
	if v.failWrite {
		return errDevice
	}
	return v.GridVolume.WriteVoxel(idx, vox)
}

// failArchive injects archive failures.
type failArchive struct {
	*archive.MemoryArchive
	failInsert bool
	failQuery  bool
}

var errArchiveDown = errors.New("simulated archive failure")

func (a *failArchive) InsertBulk(points []archive.Point) error {
	if a.failInsert {
		return errArchiveDown
	}
	return a.MemoryArchive.InsertBulk(points)
}

func (a *failArchive) QueryRegion(box geom.AABB) ([]archive.Point, error) {
	if a.failQuery {
		return nil, errArchiveDown
	}
	return a.MemoryArchive.QueryRegion(box)
}

// newTestCache builds a small 8^3, 2m cache over a dense grid.
func newTestCache(t *testing.T) (*CyclicalCache, *volume.GridVolume, *archive.MemoryArchive) {
	t.Helper()
	count := geom.IVec3{X: 8, Y: 8, Z: 8}
	vol, err := volume.NewGrid(count)
	require.NoError(t, err)
	arch := archive.NewMemoryArchive(0.5)
	cache, err := New(0.25, geom.Vec3{X: 2, Y: 2, Z: 2}, count, vol, arch)
	require.NoError(t, err)
	return cache, vol, arch
}

// seedVoxels marks world voxels occupied through the current mapping.
func seedVoxels(t *testing.T, c *CyclicalCache, vol volume.Volume, world []geom.IVec3) {
	t.Helper()
	for i, wv := range world {
		phys, ok := c.Buffer().PhysicalIndex(wv)
		require.True(t, ok, "world voxel %+v outside window", wv)
		tsdf := float32(i+1) / float32(len(world)+1)
		require.NoError(t, vol.WriteVoxel(phys, volume.Voxel{TSDF: tsdf, Weight: 1}))
	}
}

// targetForOffset returns the world point whose plan is exactly off.
func targetForOffset(b BufferState, off geom.IVec3) geom.Vec3 {
	center := b.CubeCenter()
	return geom.Vec3{
		X: center.X + float64(off.X)*b.VoxelSize.X,
		Y: center.Y + float64(off.Y)*b.VoxelSize.Y,
		Z: center.Z + float64(off.Z)*b.VoxelSize.Z,
	}
}

func TestNew_Validation(t *testing.T) {
	t.Parallel()

	count := geom.IVec3{X: 8, Y: 8, Z: 8}
	vol, err := volume.NewGrid(count)
	require.NoError(t, err)
	arch := archive.NewMemoryArchive(0)

	var cfgErr *ConfigError

	_, err = New(0, geom.Vec3{X: 2, Y: 2, Z: 2}, count, vol, arch)
	require.ErrorAs(t, err, &cfgErr)
	assert.Equal(t, "distance threshold", cfgErr.Param)

	_, err = New(1, geom.Vec3{X: 2, Y: -2, Z: 2}, count, vol, arch)
	require.ErrorAs(t, err, &cfgErr)
	assert.Equal(t, "volume size", cfgErr.Param)

	_, err = New(1, geom.Vec3{X: 2, Y: 2, Z: 2}, geom.IVec3{X: 8, Y: 0, Z: 8}, vol, arch)
	require.ErrorAs(t, err, &cfgErr)
	assert.Equal(t, "voxel count", cfgErr.Param)

	_, err = New(1, geom.Vec3{X: 2, Y: 2, Z: 2}, geom.IVec3{X: 4, Y: 4, Z: 4}, vol, arch)
	require.Error(t, err, "layout mismatch must be rejected")
}

func TestSetThreshold(t *testing.T) {
	t.Parallel()

	cache, _, _ := newTestCache(t)
	require.NoError(t, cache.SetThreshold(2.5))
	assert.Equal(t, 2.5, cache.Threshold())

	err := cache.SetThreshold(-1)
	var cfgErr *ConfigError
	require.ErrorAs(t, err, &cfgErr)
	assert.Equal(t, 2.5, cache.Threshold(), "rejected threshold must keep prior value")
}

func TestCheckForShift_NoOpBelowThreshold(t *testing.T) {
	t.Parallel()

	cache, vol, arch := newTestCache(t)
	seedVoxels(t, cache, vol, []geom.IVec3{{X: 1, Y: 1, Z: 1}})
	before := cache.Buffer()

	// Target right at the window center.
	pose := geom.TranslationPose(1.0, 1.0, 0.5)
	shifted, err := cache.CheckForShift(pose, 0.5, true, false)
	require.NoError(t, err)
	assert.False(t, shifted)

	if diff := cmp.Diff(before, cache.Buffer()); diff != "" {
		t.Errorf("BufferState changed on no-op check (-before +after):\n%s", diff)
	}
	n, err := arch.Count()
	require.NoError(t, err)
	assert.Zero(t, n, "no-op check must not evict")
}

func TestCheckForShift_InvalidPose(t *testing.T) {
	t.Parallel()

	cache, _, _ := newTestCache(t)
	before := cache.Buffer()

	pose := geom.Identity()
	pose.T[3] = math.NaN()
	_, err := cache.CheckForShift(pose, 1.0, true, false)
	require.ErrorIs(t, err, ErrInvalidPose)

	if diff := cmp.Diff(before, cache.Buffer()); diff != "" {
		t.Errorf("BufferState changed on invalid pose (-before +after):\n%s", diff)
	}
}

func TestCheckForShift_ManualPerform(t *testing.T) {
	t.Parallel()

	cache, _, _ := newTestCache(t)
	before := cache.Buffer()

	// Far target, but autoPerform disabled: decision only.
	shifted, err := cache.CheckForShift(geom.TranslationPose(5, 1, 1), 0, false, false)
	require.NoError(t, err)
	assert.True(t, shifted)

	if diff := cmp.Diff(before, cache.Buffer()); diff != "" {
		t.Errorf("BufferState changed without autoPerform (-before +after):\n%s", diff)
	}
}

func TestPerformShift_EvictsTrailingSlice(t *testing.T) {
	t.Parallel()

	cache, vol, arch := newTestCache(t)
	// Two voxels in the trailing X slices, one safely inside.
	seedVoxels(t, cache, vol, []geom.IVec3{
		{X: 0, Y: 3, Z: 3},
		{X: 1, Y: 5, Z: 2},
		{X: 6, Y: 3, Z: 3},
	})

	off := geom.IVec3{X: 2}
	require.NoError(t, cache.PerformShift(targetForOffset(cache.Buffer(), off), false))

	b := cache.Buffer()
	assert.Equal(t, geom.IVec3{X: 2}, b.OriginGrid)
	assert.Equal(t, geom.IVec3{X: 2}, b.OriginGridGlobal)
	assert.InDelta(t, 0.5, b.OriginMetric.X, 1e-12)

	pts, err := arch.QueryRegion(geom.AABB{
		Min: geom.Vec3{X: -1, Y: -1, Z: -1},
		Max: geom.Vec3{X: 10, Y: 10, Z: 10},
	})
	require.NoError(t, err)
	require.Len(t, pts, 2, "exactly the trailing-slice voxels are archived")
	for _, p := range pts {
		assert.Less(t, p.Position.X, 0.5, "archived points come from the evicted X range")
	}

	// The surviving voxel is still addressable at its world position.
	phys, ok := b.PhysicalIndex(geom.IVec3{X: 6, Y: 3, Z: 3})
	require.True(t, ok)
	vox, err := vol.At(phys)
	require.NoError(t, err)
	assert.True(t, vox.Occupied())
}

func TestPerformShift_RoundTrip(t *testing.T) {
	t.Parallel()

	cache, vol, _ := newTestCache(t)
	seeded := []geom.IVec3{
		{X: 0, Y: 0, Z: 0},
		{X: 1, Y: 4, Z: 6},
		{X: 0, Y: 7, Z: 7},
	}
	seedVoxels(t, cache, vol, seeded)

	// Shift forward past the seeded voxels, then reverse.
	fwd := geom.IVec3{X: 2, Y: 0, Z: 0}
	require.NoError(t, cache.PerformShift(targetForOffset(cache.Buffer(), fwd), false))
	rev := geom.IVec3{X: -2, Y: 0, Z: 0}
	require.NoError(t, cache.PerformShift(targetForOffset(cache.Buffer(), rev), false))

	b := cache.Buffer()
	assert.Equal(t, geom.IVec3{}, b.OriginGridGlobal, "shift and reverse shift cancel")

	for i, wv := range seeded {
		phys, ok := b.PhysicalIndex(wv)
		require.True(t, ok)
		vox, err := vol.At(phys)
		require.NoError(t, err)
		require.True(t, vox.Occupied(), "voxel %+v lost in round trip", wv)
		wantTSDF := float32(i+1) / float32(len(seeded)+1)
		assert.InDelta(t, wantTSDF, vox.TSDF, 1e-6, "voxel %+v distance value", wv)
	}
}

func TestPerformShift_AbortOnClearFailure(t *testing.T) {
	t.Parallel()

	count := geom.IVec3{X: 8, Y: 8, Z: 8}
	grid, err := volume.NewGrid(count)
	require.NoError(t, err)
	fv := &failVolume{GridVolume: grid, failClear: true}
	cache, err := New(0.25, geom.Vec3{X: 2, Y: 2, Z: 2}, count, fv, archive.NewMemoryArchive(0))
	require.NoError(t, err)

	seedVoxels(t, cache, fv.GridVolume, []geom.IVec3{{X: 0, Y: 1, Z: 2}})
	before := cache.Buffer()

	err = cache.PerformShift(targetForOffset(before, geom.IVec3{X: 2}), false)
	require.ErrorIs(t, err, ErrShiftAborted)
	require.ErrorIs(t, err, ErrDeviceOperation)

	if diff := cmp.Diff(before, cache.Buffer()); diff != "" {
		t.Errorf("BufferState changed on aborted shift (-before +after):\n%s", diff)
	}
}

func TestPerformShift_AbortOnReadFailure(t *testing.T) {
	t.Parallel()

	count := geom.IVec3{X: 8, Y: 8, Z: 8}
	grid, err := volume.NewGrid(count)
	require.NoError(t, err)
	fv := &failVolume{GridVolume: grid, failRead: true}
	cache, err := New(0.25, geom.Vec3{X: 2, Y: 2, Z: 2}, count, fv, archive.NewMemoryArchive(0))
	require.NoError(t, err)
	before := cache.Buffer()

	err = cache.PerformShift(targetForOffset(before, geom.IVec3{X: 1}), false)
	require.ErrorIs(t, err, ErrShiftAborted)
	require.ErrorIs(t, err, ErrDeviceOperation)
	assert.Equal(t, before, cache.Buffer())
}

func TestPerformShift_AbortOnArchiveFailure(t *testing.T) {
	t.Parallel()

	count := geom.IVec3{X: 8, Y: 8, Z: 8}
	grid, err := volume.NewGrid(count)
	require.NoError(t, err)
	fa := &failArchive{MemoryArchive: archive.NewMemoryArchive(0), failInsert: true}
	cache, err := New(0.25, geom.Vec3{X: 2, Y: 2, Z: 2}, count, grid, fa)
	require.NoError(t, err)

	seeded := geom.IVec3{X: 0, Y: 1, Z: 2}
	seedVoxels(t, cache, grid, []geom.IVec3{seeded})
	before := cache.Buffer()

	err = cache.PerformShift(targetForOffset(before, geom.IVec3{X: 2}), false)
	require.ErrorIs(t, err, ErrShiftAborted)
	require.ErrorIs(t, err, ErrArchiveUnavailable)
	assert.Equal(t, before, cache.Buffer())

	// Insert failed before the clear step, so the voxel data survives.
	phys, ok := before.PhysicalIndex(seeded)
	require.True(t, ok)
	vox, err := grid.At(phys)
	require.NoError(t, err)
	assert.True(t, vox.Occupied(), "aborted eviction must not have cleared the slice")
}

func TestPerformShift_ZeroOffsetIsNoOp(t *testing.T) {
	t.Parallel()

	cache, _, arch := newTestCache(t)
	before := cache.Buffer()

	require.NoError(t, cache.PerformShift(before.CubeCenter(), false))
	assert.Equal(t, before, cache.Buffer())
	n, err := arch.Count()
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestPerformShift_ForceFullShift(t *testing.T) {
	t.Parallel()

	cache, vol, arch := newTestCache(t)
	seeded := []geom.IVec3{
		{X: 0, Y: 0, Z: 0},
		{X: 3, Y: 4, Z: 5},
		{X: 7, Y: 7, Z: 7},
	}
	seedVoxels(t, cache, vol, seeded)

	require.NoError(t, cache.PerformShift(cache.Buffer().CubeCenter(), true))

	n, err := arch.Count()
	require.NoError(t, err)
	assert.Equal(t, int64(len(seeded)), n, "every occupied voxel is flushed")
	assert.Zero(t, vol.OccupiedCount(), "volume left entirely at the unknown sentinel")

	b := cache.Buffer()
	assert.Equal(t, geom.IVec3{X: 8, Y: 8, Z: 8}, b.OriginGridGlobal)
	assert.Equal(t, geom.IVec3{}, b.OriginGrid, "full-window shift wraps the rolling origin back")
}

func TestPerformShift_DiagonalEvictsOnce(t *testing.T) {
	t.Parallel()

	cache, vol, arch := newTestCache(t)
	// The corner voxel lies in all three axes' eviction zones.
	seedVoxels(t, cache, vol, []geom.IVec3{{X: 0, Y: 0, Z: 0}})

	off := geom.IVec3{X: 1, Y: 1, Z: 1}
	require.NoError(t, cache.PerformShift(targetForOffset(cache.Buffer(), off), false))

	n, err := arch.Count()
	require.NoError(t, err)
	assert.Equal(t, int64(1), n, "corner voxel must be archived exactly once")
}

func TestReset(t *testing.T) {
	t.Parallel()

	cache, vol, arch := newTestCache(t)
	seedVoxels(t, cache, vol, []geom.IVec3{{X: 1, Y: 1, Z: 1}})
	require.NoError(t, cache.PerformShift(targetForOffset(cache.Buffer(), geom.IVec3{X: 3}), false))
	require.NotEqual(t, geom.IVec3{}, cache.Buffer().OriginGridGlobal)

	fresh, err := volume.NewGrid(geom.IVec3{X: 8, Y: 8, Z: 8})
	require.NoError(t, err)
	require.NoError(t, cache.Reset(fresh))

	b := cache.Buffer()
	assert.Equal(t, geom.IVec3{}, b.OriginGrid)
	assert.Equal(t, geom.IVec3{}, b.OriginGridGlobal)
	assert.Equal(t, geom.Vec3{}, b.OriginMetric)

	// The archive keeps accumulated points across resets.
	n, err := arch.Count()
	require.NoError(t, err)
	assert.NotZero(t, n)

	// Mismatched layouts are rejected.
	small, err := volume.NewGrid(geom.IVec3{X: 4, Y: 4, Z: 4})
	require.NoError(t, err)
	require.Error(t, cache.Reset(small))
}

func TestFullResolutionScenario(t *testing.T) {
	t.Parallel()

	count := geom.IVec3{X: 512, Y: 512, Z: 512}
	vol := newSparseVolume(count)
	arch := archive.NewMemoryArchive(0)
	cache, err := NewCubic(1.5, 3.0, 512, vol, arch)
	require.NoError(t, err)

	// Target at world (2.0, 0, 0): 2.18 m from the window center.
	pose := geom.TranslationPose(2.0, 0, 0)
	shifted, err := cache.CheckForShift(pose, 0, true, false)
	require.NoError(t, err)
	assert.True(t, shifted)

	b := cache.Buffer()
	voxelX := 3.0 / 512
	assert.Positive(t, b.OriginGridGlobal.X, "X must shift forward")
	assert.Positive(t, b.OriginMetric.X)
	assert.InDelta(t, float64(b.OriginGridGlobal.X)*voxelX, b.OriginMetric.X, 1e-12,
		"shift snapped to whole voxels")
	for axis := 0; axis < 3; axis++ {
		g := b.OriginGrid.Axis(axis)
		assert.GreaterOrEqual(t, g, 0)
		assert.Less(t, g, 512)
	}
}

func TestPerformShift_ErrorMessagesNameStage(t *testing.T) {
	t.Parallel()

	count := geom.IVec3{X: 8, Y: 8, Z: 8}
	grid, err := volume.NewGrid(count)
	require.NoError(t, err)
	fa := &failArchive{MemoryArchive: archive.NewMemoryArchive(0), failQuery: true}
	cache, err := New(0.25, geom.Vec3{X: 2, Y: 2, Z: 2}, count, grid, fa)
	require.NoError(t, err)

	err = cache.PerformShift(targetForOffset(cache.Buffer(), geom.IVec3{X: 1}), false)
	require.ErrorIs(t, err, ErrShiftAborted)
	require.ErrorIs(t, err, ErrArchiveUnavailable)
	assert.Contains(t, err.Error(), "fill query")
}

func ExampleCyclicalCache_CheckForShift() {
	vol, _ := volume.NewGrid(geom.IVec3{X: 16, Y: 16, Z: 16})
	cache, _ := NewCubic(1.5, 3.0, 16, vol, archive.NewMemoryArchive(0))

	// Sensor looking 1.5 m ahead from the window center: no shift.
	pose := geom.TranslationPose(1.5, 1.5, 0)
	shifted, _ := cache.CheckForShift(pose, 1.5, true, false)
	fmt.Println(shifted)
	// Output: false
}

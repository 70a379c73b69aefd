package cyclical

import (
	"github.com/banshee-data/tsdf.cache/internal/geom"
	"github.com/banshee-data/tsdf.cache/internal/volume"
)

// span is a half-open 1D index interval [Lo, Lo+Width).
type span struct {
	Lo    int
	Width int
}

func (s span) empty() bool { return s.Width <= 0 }

// box is a half-open 3D index interval, one span per axis.
type box struct {
	X, Y, Z span
}

func (b box) empty() bool { return b.X.empty() || b.Y.empty() || b.Z.empty() }

// axisSpans returns, for one axis with shift off over count n, the
// interval leaving the window (evict) and the interval staying in it
// (remain), both in logical window coordinates [0, n).
func axisSpans(off, n int) (evict, remain span) {
	switch {
	case off > 0:
		return span{0, off}, span{off, n - off}
	case off < 0:
		return span{n + off, -off}, span{0, n + off}
	default:
		return span{0, 0}, span{0, n}
	}
}

// evictionBoxes decomposes the set of voxels leaving the window into up
// to three disjoint slabs, one per shifted axis, in logical window
// coordinates. Later slabs are narrowed to the earlier axes' remaining
// intervals so the shared corner and edge regions are extracted once.
func evictionBoxes(offset, count geom.IVec3) []box {
	ex, rx := axisSpans(offset.X, count.X)
	ey, ry := axisSpans(offset.Y, count.Y)
	ez, _ := axisSpans(offset.Z, count.Z)

	fy := span{0, count.Y}
	fz := span{0, count.Z}

	candidates := []box{
		{X: ex, Y: fy, Z: fz},
		{X: rx, Y: ey, Z: fz},
		{X: rx, Y: ry, Z: ez},
	}
	boxes := candidates[:0]
	for _, b := range candidates {
		if !b.empty() {
			boxes = append(boxes, b)
		}
	}
	return boxes
}

// enteredBoxes decomposes the set of world voxels entering the window
// into up to three disjoint slabs, in world voxel coordinates of the
// post-shift window (origin newGlobal, pre-shift origin oldGlobal).
func enteredBoxes(offset, count, oldGlobal, newGlobal geom.IVec3) []box {
	enterAxis := func(off, n, oldG, newG int) (enter, overlap span) {
		switch {
		case off > 0:
			return span{oldG + n, off}, span{newG, n - off}
		case off < 0:
			return span{newG, -off}, span{oldG, n + off}
		default:
			return span{0, 0}, span{newG, n}
		}
	}

	ex, rx := enterAxis(offset.X, count.X, oldGlobal.X, newGlobal.X)
	ey, ry := enterAxis(offset.Y, count.Y, oldGlobal.Y, newGlobal.Y)
	ez, _ := enterAxis(offset.Z, count.Z, oldGlobal.Z, newGlobal.Z)

	fy := span{newGlobal.Y, count.Y}
	fz := span{newGlobal.Z, count.Z}

	candidates := []box{
		{X: ex, Y: fy, Z: fz},
		{X: rx, Y: ey, Z: fz},
		{X: rx, Y: ry, Z: ez},
	}
	boxes := candidates[:0]
	for _, b := range candidates {
		if !b.empty() {
			boxes = append(boxes, b)
		}
	}
	return boxes
}

// physicalSpans maps a logical interval onto toroidal physical storage,
// splitting at the wrap point so regions handed to the Volume never
// wrap. Returns one or two spans.
func physicalSpans(s span, origin, n int) []span {
	if s.empty() {
		return nil
	}
	start := wrap(origin+s.Lo, n)
	if start+s.Width <= n {
		return []span{{start, s.Width}}
	}
	head := n - start
	return []span{{start, head}, {0, s.Width - head}}
}

// physicalRegions converts a logical box into the non-wrapping physical
// regions that cover it (up to eight when all three axes wrap).
func physicalRegions(b box, origin, count geom.IVec3) []volume.Region {
	xs := physicalSpans(b.X, origin.X, count.X)
	ys := physicalSpans(b.Y, origin.Y, count.Y)
	zs := physicalSpans(b.Z, origin.Z, count.Z)

	var regions []volume.Region
	for _, sz := range zs {
		for _, sy := range ys {
			for _, sx := range xs {
				regions = append(regions, volume.Region{
					Origin: geom.IVec3{X: sx.Lo, Y: sy.Lo, Z: sz.Lo},
					Extent: geom.IVec3{X: sx.Width, Y: sy.Width, Z: sz.Width},
				})
			}
		}
	}
	return regions
}

// worldBox converts a world-voxel box into its world-space bounds.
func worldBox(b box, voxelSize geom.Vec3) geom.AABB {
	return geom.AABB{
		Min: geom.Vec3{
			X: float64(b.X.Lo) * voxelSize.X,
			Y: float64(b.Y.Lo) * voxelSize.Y,
			Z: float64(b.Z.Lo) * voxelSize.Z,
		},
		Max: geom.Vec3{
			X: float64(b.X.Lo+b.X.Width) * voxelSize.X,
			Y: float64(b.Y.Lo+b.Y.Width) * voxelSize.Y,
			Z: float64(b.Z.Lo+b.Z.Width) * voxelSize.Z,
		},
	}
}

package volume

import (
	"fmt"

	"github.com/banshee-data/tsdf.cache/internal/geom"
)

// GridVolume is a dense host-memory Volume. It backs tests and the
// replay driver; a production deployment substitutes a device-backed
// implementation behind the same interface.
//
// Storage is a flat slice with idx = (z*ny + y)*nx + x.
type GridVolume struct {
	count  geom.IVec3
	voxels []Voxel
}

// NewGrid allocates a grid with the given per-axis voxel counts, every
// cell at the Unknown sentinel.
func NewGrid(count geom.IVec3) (*GridVolume, error) {
	if count.X <= 0 || count.Y <= 0 || count.Z <= 0 {
		return nil, fmt.Errorf("grid voxel count must be positive, got %+v", count)
	}
	g := &GridVolume{
		count:  count,
		voxels: make([]Voxel, count.X*count.Y*count.Z),
	}
	for i := range g.voxels {
		g.voxels[i] = Unknown()
	}
	return g, nil
}

func (g *GridVolume) idx(p geom.IVec3) (int, error) {
	if p.X < 0 || p.X >= g.count.X ||
		p.Y < 0 || p.Y >= g.count.Y ||
		p.Z < 0 || p.Z >= g.count.Z {
		return 0, fmt.Errorf("voxel index %+v outside grid %+v", p, g.count)
	}
	return (p.Z*g.count.Y+p.Y)*g.count.X + p.X, nil
}

// At returns the voxel at idx. Intended for tests and diagnostics.
func (g *GridVolume) At(p geom.IVec3) (Voxel, error) {
	i, err := g.idx(p)
	if err != nil {
		return Voxel{}, err
	}
	return g.voxels[i], nil
}

// ReadSlice returns the occupied voxels inside r.
func (g *GridVolume) ReadSlice(r Region) ([]Sample, error) {
	if r.Empty() {
		return nil, nil
	}
	if err := g.checkRegion(r); err != nil {
		return nil, err
	}
	var out []Sample
	for z := r.Origin.Z; z < r.Origin.Z+r.Extent.Z; z++ {
		for y := r.Origin.Y; y < r.Origin.Y+r.Extent.Y; y++ {
			base := (z*g.count.Y + y) * g.count.X
			for x := r.Origin.X; x < r.Origin.X+r.Extent.X; x++ {
				v := g.voxels[base+x]
				if v.Occupied() {
					out = append(out, Sample{Index: geom.IVec3{X: x, Y: y, Z: z}, Voxel: v})
				}
			}
		}
	}
	return out, nil
}

// WriteVoxel stores v at p.
func (g *GridVolume) WriteVoxel(p geom.IVec3, v Voxel) error {
	i, err := g.idx(p)
	if err != nil {
		return err
	}
	g.voxels[i] = v
	return nil
}

// ClearSlice resets every voxel in r to Unknown.
func (g *GridVolume) ClearSlice(r Region) error {
	if r.Empty() {
		return nil
	}
	if err := g.checkRegion(r); err != nil {
		return err
	}
	for z := r.Origin.Z; z < r.Origin.Z+r.Extent.Z; z++ {
		for y := r.Origin.Y; y < r.Origin.Y+r.Extent.Y; y++ {
			base := (z*g.count.Y + y) * g.count.X
			for x := r.Origin.X; x < r.Origin.X+r.Extent.X; x++ {
				g.voxels[base+x] = Unknown()
			}
		}
	}
	return nil
}

// MemoryLayout reports the grid bounds.
func (g *GridVolume) MemoryLayout() Layout {
	return Layout{VoxelCount: g.count}
}

// OccupiedCount returns the number of occupied voxels in the whole grid.
func (g *GridVolume) OccupiedCount() int {
	n := 0
	for _, v := range g.voxels {
		if v.Occupied() {
			n++
		}
	}
	return n
}

func (g *GridVolume) checkRegion(r Region) error {
	end := r.Origin.Add(r.Extent)
	if r.Origin.X < 0 || r.Origin.Y < 0 || r.Origin.Z < 0 ||
		end.X > g.count.X || end.Y > g.count.Y || end.Z > g.count.Z {
		return fmt.Errorf("region %+v outside grid %+v", r, g.count)
	}
	return nil
}

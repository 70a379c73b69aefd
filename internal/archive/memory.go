package archive

import (
	"math"
	"sync"

	"github.com/banshee-data/tsdf.cache/internal/geom"
)

// DefaultCellMeters is the edge length of the spatial-hash cells used
// by MemoryArchive.
const DefaultCellMeters = 1.0

type cellCoord struct {
	X, Y, Z int
}

// MemoryArchive is an in-process Archive backed by a coarse spatial
// hash. It is the default when no database path is configured, and the
// reference implementation for tests.
//
// Safe for concurrent use.
type MemoryArchive struct {
	mu    sync.RWMutex
	cell  float64
	cells map[cellCoord][]Point
	total int64
}

// NewMemoryArchive creates an archive with the given spatial-hash cell
// edge in meters. Non-positive values fall back to DefaultCellMeters.
func NewMemoryArchive(cellMeters float64) *MemoryArchive {
	if cellMeters <= 0 {
		cellMeters = DefaultCellMeters
	}
	return &MemoryArchive{
		cell:  cellMeters,
		cells: make(map[cellCoord][]Point),
	}
}

func (a *MemoryArchive) coord(p geom.Vec3) cellCoord {
	return cellCoord{
		X: int(math.Floor(p.X / a.cell)),
		Y: int(math.Floor(p.Y / a.cell)),
		Z: int(math.Floor(p.Z / a.cell)),
	}
}

// InsertBulk stores a batch of points.
func (a *MemoryArchive) InsertBulk(points []Point) error {
	if len(points) == 0 {
		return nil
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	for _, p := range points {
		c := a.coord(p.Position)
		a.cells[c] = append(a.cells[c], p)
	}
	a.total += int64(len(points))
	return nil
}

// QueryRegion returns every point inside the half-open box. Overlapping
// hash cells are scanned and filtered exactly.
func (a *MemoryArchive) QueryRegion(box geom.AABB) ([]Point, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()

	lo := a.coord(box.Min)
	// Max is exclusive; a point exactly at Max belongs to the next cell.
	hi := a.coord(box.Max)

	var out []Point
	for z := lo.Z; z <= hi.Z; z++ {
		for y := lo.Y; y <= hi.Y; y++ {
			for x := lo.X; x <= hi.X; x++ {
				for _, p := range a.cells[cellCoord{X: x, Y: y, Z: z}] {
					if box.Contains(p.Position) {
						out = append(out, p)
					}
				}
			}
		}
	}
	return out, nil
}

// Count returns the total number of archived points.
func (a *MemoryArchive) Count() (int64, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.total, nil
}

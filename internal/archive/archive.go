// Package archive accumulates reconstructed surface points outside the
// active grid window. The cache evicts into it and refills from it; the
// driver owns persistence and flush timing.
package archive

import "github.com/banshee-data/tsdf.cache/internal/geom"

// Point is one archived surface sample: a world-space position plus the
// signed-distance value the voxel held when it was evicted.
type Point struct {
	Position  geom.Vec3
	Intensity float32
}

// Archive is the world-model capability consumed by the cache.
type Archive interface {
	// InsertBulk stores a batch of evicted points.
	InsertBulk(points []Point) error
	// QueryRegion returns every archived point inside the half-open box.
	QueryRegion(box geom.AABB) ([]Point, error)
	// Count returns the total number of archived points.
	Count() (int64, error)
}

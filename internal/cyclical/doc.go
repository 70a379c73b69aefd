// Package cyclical owns the toroidal cache over the unbounded
// signed-distance world.
//
// A dense voxel grid of fixed physical extent (the window) is kept
// centered near the sensor. When the sensor's look-at point drifts past
// a distance threshold, the window shifts by a whole number of voxels:
// slices leaving the window are evicted into the world archive as
// points, the vacated storage is cleared, slices entering the window
// are refilled from previously archived data, and the toroidal origin
// bookkeeping commits last. A failed shift leaves the bookkeeping at
// its pre-shift value.
//
// Responsibilities: shift decision, shift planning, slab geometry,
// origin bookkeeping. The grid itself and the archive are capabilities
// supplied by the caller (see the volume and archive packages).
//
// The cache is driven synchronously, once per sensor frame, by a single
// orchestrating thread; it is not internally concurrent.
package cyclical

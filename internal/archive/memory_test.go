package archive

import (
	"testing"

	"github.com/banshee-data/tsdf.cache/internal/geom"
)

func TestMemoryArchive_InsertAndQuery(t *testing.T) {
	t.Parallel()

	a := NewMemoryArchive(1.0)
	points := []Point{
		{Position: geom.Vec3{X: 0.5, Y: 0.5, Z: 0.5}, Intensity: 0.1},
		{Position: geom.Vec3{X: 2.5, Y: 0.5, Z: 0.5}, Intensity: 0.2},
		{Position: geom.Vec3{X: -1.5, Y: 0.5, Z: 0.5}, Intensity: 0.3},
	}
	if err := a.InsertBulk(points); err != nil {
		t.Fatalf("InsertBulk: %v", err)
	}

	got, err := a.QueryRegion(geom.AABB{
		Min: geom.Vec3{X: 0, Y: 0, Z: 0},
		Max: geom.Vec3{X: 1, Y: 1, Z: 1},
	})
	if err != nil {
		t.Fatalf("QueryRegion: %v", err)
	}
	if len(got) != 1 || got[0].Intensity != 0.1 {
		t.Errorf("QueryRegion = %+v, want the single in-box point", got)
	}

	n, err := a.Count()
	if err != nil {
		t.Fatalf("Count: %v", err)
	}
	if n != 3 {
		t.Errorf("Count = %d, want 3", n)
	}
}

func TestMemoryArchive_HalfOpenBounds(t *testing.T) {
	t.Parallel()

	a := NewMemoryArchive(1.0)
	if err := a.InsertBulk([]Point{
		{Position: geom.Vec3{X: 1, Y: 0, Z: 0}},
		{Position: geom.Vec3{X: 2, Y: 0, Z: 0}},
	}); err != nil {
		t.Fatalf("InsertBulk: %v", err)
	}

	// [1, 2) includes the min face, excludes the max face.
	got, err := a.QueryRegion(geom.AABB{
		Min: geom.Vec3{X: 1, Y: -1, Z: -1},
		Max: geom.Vec3{X: 2, Y: 1, Z: 1},
	})
	if err != nil {
		t.Fatalf("QueryRegion: %v", err)
	}
	if len(got) != 1 || got[0].Position.X != 1 {
		t.Errorf("QueryRegion = %+v, want only the point at x=1", got)
	}
}

func TestMemoryArchive_NegativeCoordinates(t *testing.T) {
	t.Parallel()

	a := NewMemoryArchive(0.5)
	if err := a.InsertBulk([]Point{
		{Position: geom.Vec3{X: -0.25, Y: -3.1, Z: -0.75}},
	}); err != nil {
		t.Fatalf("InsertBulk: %v", err)
	}
	got, err := a.QueryRegion(geom.AABB{
		Min: geom.Vec3{X: -1, Y: -4, Z: -1},
		Max: geom.Vec3{X: 0, Y: -3, Z: 0},
	})
	if err != nil {
		t.Fatalf("QueryRegion: %v", err)
	}
	if len(got) != 1 {
		t.Errorf("QueryRegion found %d points, want 1", len(got))
	}
}

func TestMemoryArchive_EmptyOperations(t *testing.T) {
	t.Parallel()

	a := NewMemoryArchive(0) // falls back to the default cell size
	if err := a.InsertBulk(nil); err != nil {
		t.Fatalf("InsertBulk(nil): %v", err)
	}
	got, err := a.QueryRegion(geom.AABB{
		Min: geom.Vec3{X: -100, Y: -100, Z: -100},
		Max: geom.Vec3{X: 100, Y: 100, Z: 100},
	})
	if err != nil {
		t.Fatalf("QueryRegion: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("empty archive returned %d points", len(got))
	}
}

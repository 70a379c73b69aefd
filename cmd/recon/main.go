// Command recon replays a sensor trajectory through the cyclical cache.
//
// Each trajectory frame simulates one integrated sensor frame: a small
// patch of surface voxels is written around the look-at point, then the
// cache checks whether the window must shift. On exit the whole window
// is flushed into the world archive with a forced full shift, and the
// archive can be exported as a point snapshot.
package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/pflag"

	"github.com/banshee-data/tsdf.cache/internal/archive"
	"github.com/banshee-data/tsdf.cache/internal/config"
	"github.com/banshee-data/tsdf.cache/internal/cyclical"
	"github.com/banshee-data/tsdf.cache/internal/geom"
	"github.com/banshee-data/tsdf.cache/internal/monitoring"
	"github.com/banshee-data/tsdf.cache/internal/volume"
)

var (
	configPath     = pflag.String("config", "", "Tuning config file (JSON, comments allowed)")
	posesPath      = pflag.String("poses", "", "Trajectory file: JSON array of frames")
	dbPath         = pflag.String("db", "", "Archive sqlite path (empty: in-memory archive)")
	label          = pflag.String("label", "recon replay", "Archive session label")
	snapshotPath   = pflag.String("snapshot", "", "Write final archive snapshot to this file")
	targetDistance = pflag.Float64("target-distance", 1.5, "Look-at distance ahead of the sensor, meters")
	verbose        = pflag.Bool("verbose", false, "Enable per-shift trace logging")
)

// frame is one trajectory entry: either a full 4x4 row-major matrix or
// a bare sensor position (treated as a translation pose).
type frame struct {
	Matrix   *[16]float64 `json:"matrix,omitempty"`
	Position *[3]float64  `json:"position,omitempty"`
}

func (f frame) pose() (geom.Pose, error) {
	switch {
	case f.Matrix != nil:
		return geom.Pose{T: *f.Matrix}, nil
	case f.Position != nil:
		return geom.TranslationPose(f.Position[0], f.Position[1], f.Position[2]), nil
	default:
		return geom.Pose{}, fmt.Errorf("frame has neither matrix nor position")
	}
}

func main() {
	pflag.Parse()
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "recon: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	if *posesPath == "" {
		return fmt.Errorf("--poses is required")
	}
	if *verbose {
		monitoring.SetTraceLogger(monitoring.Logf)
	}

	cfg := &config.TuningConfig{}
	if *configPath != "" {
		loaded, err := config.Load(*configPath)
		if err != nil {
			return err
		}
		cfg = loaded
	}
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return err
	}

	size := cfg.VolumeSize()
	vox := cfg.Voxels()
	voxelCount := geom.IVec3{X: vox[0], Y: vox[1], Z: vox[2]}

	vol, err := volume.NewGrid(voxelCount)
	if err != nil {
		return err
	}

	var arch archive.Archive
	var store *archive.Store
	if *dbPath != "" {
		store, err = archive.NewStore(*dbPath, *label)
		if err != nil {
			return err
		}
		defer store.Close()
		arch = store
		monitoring.Logf("archive session %s at %s", store.SessionID(), *dbPath)
	} else {
		cell := archive.DefaultCellMeters
		if cfg.ArchiveCellMeters != nil {
			cell = *cfg.ArchiveCellMeters
		}
		arch = archive.NewMemoryArchive(cell)
	}

	cache, err := cyclical.New(*cfg.ThresholdMeters,
		geom.Vec3{X: size[0], Y: size[1], Z: size[2]},
		voxelCount, vol, arch)
	if err != nil {
		return err
	}

	frames, err := loadFrames(*posesPath)
	if err != nil {
		return err
	}

	var lastTarget geom.Vec3
	shifts := 0
	for i, f := range frames {
		pose, err := f.pose()
		if err != nil {
			return fmt.Errorf("frame %d: %w", i, err)
		}
		target := pose.Apply(geom.Vec3{Z: *targetDistance})
		if err := integratePatch(vol, cache.Buffer(), target); err != nil {
			return fmt.Errorf("frame %d: integrate: %w", i, err)
		}
		shifted, err := cache.CheckForShift(pose, *targetDistance, true, false)
		if err != nil {
			return fmt.Errorf("frame %d: %w", i, err)
		}
		if shifted {
			shifts++
		}
		lastTarget = target
	}

	// Push the remaining window contents into the archive.
	if len(frames) > 0 {
		if err := cache.PerformShift(lastTarget, true); err != nil {
			return fmt.Errorf("final flush: %w", err)
		}
	}

	total, err := arch.Count()
	if err != nil {
		return err
	}
	monitoring.Logf("replayed %d frames, %d shifts, %d archived points", len(frames), shifts, total)

	if *snapshotPath != "" {
		if store == nil {
			return fmt.Errorf("--snapshot requires --db")
		}
		if err := store.ExportSnapshot(*snapshotPath); err != nil {
			return err
		}
		monitoring.Logf("snapshot written to %s", *snapshotPath)
	}
	return nil
}

func loadFrames(path string) ([]frame, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read trajectory: %w", err)
	}
	var frames []frame
	if err := json.Unmarshal(data, &frames); err != nil {
		return nil, fmt.Errorf("decode trajectory %s: %w", path, err)
	}
	return frames, nil
}

// integratePatch stands in for the device integration kernel: it marks
// a 5x5x5 block of near-surface voxels around the target point so the
// replay produces non-trivial eviction traffic.
func integratePatch(vol *volume.GridVolume, buf cyclical.BufferState, target geom.Vec3) error {
	center := buf.WorldVoxelFor(target)
	for dz := -2; dz <= 2; dz++ {
		for dy := -2; dy <= 2; dy++ {
			for dx := -2; dx <= 2; dx++ {
				wv := center.Add(geom.IVec3{X: dx, Y: dy, Z: dz})
				phys, ok := buf.PhysicalIndex(wv)
				if !ok {
					continue
				}
				tsdf := float32(dx*dx+dy*dy+dz*dz) / 12.0
				err := vol.WriteVoxel(phys, volume.Voxel{TSDF: tsdf, Weight: 1})
				if err != nil {
					return err
				}
			}
		}
	}
	return nil
}

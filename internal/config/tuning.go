// Package config loads the cache tuning configuration.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/tailscale/hujson"
)

// Defaults for a cubic reconstruction window.
const (
	DefaultThresholdMeters = 1.5
	DefaultCubeSizeMeters  = 3.0
	DefaultVoxelsPerAxis   = 512
)

// TuningConfig is the root tuning configuration. All fields are
// pointers so a partial config file overrides only what it names;
// ApplyDefaults fills the rest.
type TuningConfig struct {
	// Shift trigger distance, meters.
	ThresholdMeters *float64 `json:"threshold_meters,omitempty"`

	// Cubic window shorthand.
	CubeSizeMeters *float64 `json:"cube_size_meters,omitempty"`
	VoxelsPerAxis  *int     `json:"voxels_per_axis,omitempty"`

	// Per-axis overrides; when set they win over the cubic shorthand.
	VolumeSizeMeters *[3]float64 `json:"volume_size_meters,omitempty"`
	VoxelCount       *[3]int     `json:"voxel_count,omitempty"`

	// Archive settings. An empty DB path selects the in-memory archive.
	ArchiveDBPath     *string  `json:"archive_db_path,omitempty"`
	ArchiveCellMeters *float64 `json:"archive_cell_meters,omitempty"`
	SnapshotPath      *string  `json:"snapshot_path,omitempty"`
}

// Load reads a TuningConfig from a JSON file. HuJSON extensions
// (comments, trailing commas) are tolerated. Fields omitted from the
// file stay nil; call ApplyDefaults afterwards.
func Load(path string) (*TuningConfig, error) {
	cleanPath := filepath.Clean(path)
	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}
	std, err := hujson.Standardize(data)
	if err != nil {
		return nil, fmt.Errorf("parse config file %s: %w", cleanPath, err)
	}
	var cfg TuningConfig
	if err := json.Unmarshal(std, &cfg); err != nil {
		return nil, fmt.Errorf("decode config file %s: %w", cleanPath, err)
	}
	return &cfg, nil
}

// ApplyDefaults fills unset fields with the default cubic window.
func (c *TuningConfig) ApplyDefaults() {
	if c.ThresholdMeters == nil {
		v := DefaultThresholdMeters
		c.ThresholdMeters = &v
	}
	if c.CubeSizeMeters == nil {
		v := DefaultCubeSizeMeters
		c.CubeSizeMeters = &v
	}
	if c.VoxelsPerAxis == nil {
		v := DefaultVoxelsPerAxis
		c.VoxelsPerAxis = &v
	}
}

// VolumeSize resolves the window extent in meters per axis.
func (c *TuningConfig) VolumeSize() [3]float64 {
	if c.VolumeSizeMeters != nil {
		return *c.VolumeSizeMeters
	}
	s := DefaultCubeSizeMeters
	if c.CubeSizeMeters != nil {
		s = *c.CubeSizeMeters
	}
	return [3]float64{s, s, s}
}

// Voxels resolves the grid resolution per axis.
func (c *TuningConfig) Voxels() [3]int {
	if c.VoxelCount != nil {
		return *c.VoxelCount
	}
	n := DefaultVoxelsPerAxis
	if c.VoxelsPerAxis != nil {
		n = *c.VoxelsPerAxis
	}
	return [3]int{n, n, n}
}

// Validate rejects non-positive sizes, counts and threshold.
func (c *TuningConfig) Validate() error {
	if c.ThresholdMeters != nil && *c.ThresholdMeters <= 0 {
		return fmt.Errorf("threshold_meters must be positive, got %g", *c.ThresholdMeters)
	}
	size := c.VolumeSize()
	for _, s := range size {
		if s <= 0 {
			return fmt.Errorf("volume size must be positive, got %v", size)
		}
	}
	vox := c.Voxels()
	for _, n := range vox {
		if n <= 0 {
			return fmt.Errorf("voxel count must be positive, got %v", vox)
		}
	}
	if c.ArchiveCellMeters != nil && *c.ArchiveCellMeters <= 0 {
		return fmt.Errorf("archive_cell_meters must be positive, got %g", *c.ArchiveCellMeters)
	}
	return nil
}

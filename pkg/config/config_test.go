package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"volmesh/internal/models"
	"volmesh/pkg/config"
	"volmesh/pkg/normalization"
)

func TestLoadConfigMissingFile(t *testing.T) {
	cfg, err := config.LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)

	assert.Equal(t, config.DefaultConfig(), cfg)
	assert.Equal(t, 0.5, cfg.Extraction.ThresholdLevel)
	assert.Equal(t, 1.0, cfg.Extraction.SmoothingSigma)
	assert.Equal(t, 100, cfg.Processing.MinVoxels)
	assert.True(t, cfg.Cache.Enabled)
}

func TestSaveAndLoadConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "volmesh.yaml")
	cfg := config.DefaultConfig()
	cfg.Normalization.Method = "spherical"
	cfg.Normalization.Spherical.TargetRadius = 25
	cfg.Extraction.ThresholdLevel = 0.3

	require.NoError(t, config.SaveConfig(cfg, path))

	loaded, err := config.LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, loaded)

	m, err := loaded.Method()
	require.NoError(t, err)
	assert.Equal(t, normalization.Spherical{TargetRadius: 25, CenterMode: normalization.CenterCentroid, NormalizeToUnitSphere: true}, m)
}

func TestLoadConfigPartialFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "volmesh.yaml")
	yaml := "extraction:\n  smoothingSigma: 0\nnormalization:\n  cartesian:\n    targetSize: 10\n"
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0644))

	cfg, err := config.LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, 0.0, cfg.Extraction.SmoothingSigma)
	assert.Equal(t, 0.5, cfg.Extraction.ThresholdLevel)
	assert.Equal(t, 10.0, cfg.Normalization.Cartesian.TargetSize)
	assert.True(t, cfg.Normalization.Cartesian.CenterAtOrigin)
}

func TestLoadConfigInvalid(t *testing.T) {
	dir := t.TempDir()

	bad := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("normalization:\n  method: affine\n"), 0644))
	_, err := config.LoadConfig(bad)
	require.ErrorIs(t, err, models.ErrUnknownMethod)

	broken := filepath.Join(dir, "broken.yaml")
	require.NoError(t, os.WriteFile(broken, []byte("processing: [\n"), 0644))
	_, err = config.LoadConfig(broken)
	require.Error(t, err)

	level := filepath.Join(dir, "level.yaml")
	require.NoError(t, os.WriteFile(level, []byte("extraction:\n  thresholdLevel: 2\n"), 0644))
	_, err = config.LoadConfig(level)
	require.ErrorIs(t, err, models.ErrInvalidParameter)
}

func TestCreateDefaultConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "volmesh.yaml")

	require.NoError(t, config.CreateDefaultConfigFile(path))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(raw), "thresholdLevel: 0.5")
	assert.Contains(t, string(raw), "centerMode: centroid")
}

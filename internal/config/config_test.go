package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	cfg := Default()
	assert.Equal(t, 50000, cfg.MaxFileLines)
	assert.Equal(t, 512, cfg.MaxTreeDepth)
	assert.Equal(t, 1000, cfg.CacheCapacity)
	assert.False(t, cfg.CacheValidateHash)
	assert.Contains(t, cfg.ExcludeDirs, "__pycache__")
	assert.Positive(t, cfg.Workers)
	assert.Equal(t, 2000, cfg.DebounceMs)
}

func TestLoad_MissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(t.TempDir())
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoad_OverlaysDefaults(t *testing.T) {
	dir := t.TempDir()
	content := `maxFileLines: 1200
cacheValidateHash: true
excludeDirs:
  - build
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "quarry.yml"), []byte(content), 0o644))

	cfg, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, 1200, cfg.MaxFileLines)
	assert.True(t, cfg.CacheValidateHash)
	assert.Equal(t, []string{"build"}, cfg.ExcludeDirs)
	// Unset keys keep their defaults.
	assert.Equal(t, 512, cfg.MaxTreeDepth)
	assert.Equal(t, 1000, cfg.CacheCapacity)
}

func TestLoad_YamlExtensionFallback(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "quarry.yaml"), []byte("workers: 3\n"), 0o644))

	cfg, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, 3, cfg.Workers)
}

func TestLoad_MalformedConfigErrors(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "quarry.yml"), []byte("maxFileLines: [oops\n"), 0o644))

	_, err := Load(dir)
	assert.Error(t, err)
}

package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewDefaults(t *testing.T) {
	t.Setenv("CONFIG_FILE", "/nonexistent/config.yaml")

	cfg, err := New()
	require.NoError(t, err)
	assert.Equal(t, 80, cfg.Quality)
	assert.Equal(t, 12, cfg.SampleCount)
	assert.Equal(t, "cbz", cfg.OutputFormat)
	assert.False(t, cfg.CompressZip)
}

func TestNewWithEnvVar(t *testing.T) {
	t.Setenv("CONFIG_FILE", "/nonexistent/config.yaml")
	t.Setenv("QUALITY", "95")
	t.Setenv("FORMAT_BLACKLIST", "webp avif")

	cfg, err := New()
	require.NoError(t, err)
	assert.Equal(t, 95, cfg.Quality)
	assert.Equal(t, "webp avif", cfg.FormatBlacklist)
}

func TestNewWithConfigFile(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	configContent := `
quality: 60
compress_zip: true
output_format: epub
`
	require.NoError(t, os.WriteFile(configPath, []byte(configContent), 0644))
	t.Setenv("CONFIG_FILE", configPath)

	cfg, err := New()
	require.NoError(t, err)
	assert.Equal(t, 60, cfg.Quality)
	assert.True(t, cfg.CompressZip)
	assert.Equal(t, "epub", cfg.OutputFormat)
}

func TestNewEnvVarOverridesConfigFile(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	require.NoError(t, os.WriteFile(configPath, []byte("quality: 60\n"), 0644))
	t.Setenv("CONFIG_FILE", configPath)
	t.Setenv("QUALITY", "40")

	cfg, err := New()
	require.NoError(t, err)
	assert.Equal(t, 40, cfg.Quality)
}

func TestNewRejectsOutOfRangeQuality(t *testing.T) {
	t.Setenv("CONFIG_FILE", "/nonexistent/config.yaml")
	t.Setenv("QUALITY", "150")

	cfg, err := New()
	assert.Nil(t, cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Quality")
}

func TestNewForTest(t *testing.T) {
	cfg := NewForTest()
	assert.Equal(t, 1, cfg.Parallelism)
	assert.Equal(t, 80, cfg.Quality)
}

func TestToSnakeCase(t *testing.T) {
	assert.Equal(t, "format_blacklist", toSnakeCase("FormatBlacklist"))
	assert.Equal(t, "quality", toSnakeCase("Quality"))
}

package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestNewLoader(t *testing.T) {
	loader := NewLoader()
	require.NotNil(t, loader)
	assert.Same(t, viper.GetViper(), loader.v)

	isolated := NewLoaderWith(nil)
	require.NotNil(t, isolated.v)
	assert.NotSame(t, viper.GetViper(), isolated.v)
}

func TestLoad_NoConfigFileUsesDefaults(t *testing.T) {
	chdir(t, t.TempDir())
	t.Setenv("HOME", t.TempDir())
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())

	cfg, err := NewLoaderWith(viper.New()).Load()
	require.NoError(t, err)

	def := DefaultConfig()
	assert.Equal(t, def.Camera, cfg.Camera)
	assert.Equal(t, def.Capture, cfg.Capture)
	assert.Equal(t, def.Server, cfg.Server)
}

func TestLoad_FindsFileInWorkingDirectory(t *testing.T) {
	dir := t.TempDir()
	chdir(t, dir)
	t.Setenv("HOME", t.TempDir())
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	writeConfig(t, dir, "camkit.yaml", `
camera:
  recognition: barcode
  flash: torch
capture:
  picture_width: 256
`)

	loader := NewLoaderWith(viper.New())
	cfg, err := loader.Load()
	require.NoError(t, err)
	assert.Equal(t, "barcode", cfg.Camera.Recognition)
	assert.Equal(t, "torch", cfg.Camera.Flash)
	assert.Equal(t, 256, cfg.Capture.PictureWidth)
	assert.Equal(t, 512, cfg.Capture.PictureHeight, "unset keys keep their defaults")
	assert.NotEmpty(t, loader.GetConfigFileUsed())
}

func TestLoadWithFile(t *testing.T) {
	path := writeConfig(t, t.TempDir(), "custom.yaml", `
log_level: debug
device:
  driver: simulated
  tier: legacy
  blank_frames: 2
barcode:
  formats: [qr, ean13]
server:
  port: 9090
`)

	cfg, err := NewLoaderWith(viper.New()).LoadWithFile(path)
	require.NoError(t, err)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "legacy", cfg.Device.Tier)
	assert.Equal(t, 2, cfg.Device.BlankFrames)
	assert.Equal(t, []string{"qr", "ean13"}, cfg.Barcode.Formats)
	assert.Equal(t, 9090, cfg.Server.Port)
}

func TestLoadWithFile_Missing(t *testing.T) {
	_, err := NewLoaderWith(viper.New()).LoadWithFile(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "does not exist")
}

func TestLoadWithFile_Invalid(t *testing.T) {
	path := writeConfig(t, t.TempDir(), "bad.yaml", "camera:\n  facing: sideways\n")

	_, err := NewLoaderWith(viper.New()).LoadWithFile(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "configuration validation failed")

	cfg, err := NewLoaderWith(viper.New()).LoadWithFileWithoutValidation(path)
	require.NoError(t, err)
	assert.Equal(t, "sideways", cfg.Camera.Facing)
}

func TestLoadWithFile_Malformed(t *testing.T) {
	path := writeConfig(t, t.TempDir(), "broken.yaml", "camera: [unterminated\n")

	_, err := NewLoaderWith(viper.New()).LoadWithFile(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "error reading config file")
}

func TestLoad_EnvironmentOverrides(t *testing.T) {
	chdir(t, t.TempDir())
	t.Setenv("HOME", t.TempDir())
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	t.Setenv("CAMKIT_CAMERA_ASPECT_RATIO", "16:9")
	t.Setenv("CAMKIT_CAPTURE_SAVE_IMAGE", "true")
	t.Setenv("CAMKIT_SERVER_PORT", "7000")

	cfg, err := NewLoaderWith(viper.New()).Load()
	require.NoError(t, err)
	assert.Equal(t, "16:9", cfg.Camera.AspectRatio)
	assert.True(t, cfg.Capture.SaveImage)
	assert.Equal(t, 7000, cfg.Server.Port)
}

func TestLoader_SetOverridesFile(t *testing.T) {
	path := writeConfig(t, t.TempDir(), "c.yaml", "camera:\n  facing: back\n")

	loader := NewLoaderWith(viper.New())
	loader.Set("camera.facing", "front")
	cfg, err := loader.LoadWithFile(path)
	require.NoError(t, err)
	assert.Equal(t, "front", cfg.Camera.Facing)
	assert.Equal(t, "front", loader.Get("camera.facing"))
}

func TestGetConfigSearchPaths(t *testing.T) {
	home, xdg := t.TempDir(), t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("XDG_CONFIG_HOME", xdg)

	paths := GetConfigSearchPaths()
	assert.Equal(t, []string{".", home, filepath.Join(xdg, "camkit"), "/etc/camkit"}, paths)
}

// chdir changes the working directory for the duration of the test and
// restores it on cleanup (equivalent of testing.T.Chdir, added in Go 1.24).
func chdir(t *testing.T, dir string) {
	t.Helper()
	old, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { require.NoError(t, os.Chdir(old)) })
}

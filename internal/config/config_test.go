package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MeKo-Tech/camkit/internal/backend"
	"github.com/MeKo-Tech/camkit/internal/barcode"
	"github.com/MeKo-Tech/camkit/internal/camera"
	"github.com/MeKo-Tech/camkit/internal/device"
)

func TestDefaultConfig_IsValid(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, TierAuto, cfg.Camera.Tier)
	assert.Equal(t, "none", cfg.Camera.Recognition)
	assert.Equal(t, "back", cfg.Camera.Facing)
	assert.Equal(t, "auto", cfg.Camera.Flash)
	assert.Equal(t, "4:3", cfg.Camera.AspectRatio)
	assert.True(t, cfg.Camera.AutoFocus)
	assert.True(t, cfg.Camera.AdjustViewBounds)
	assert.Equal(t, 512, cfg.Capture.PictureWidth)
	assert.Equal(t, 512, cfg.Capture.PictureHeight)
	assert.Equal(t, DriverSimulated, cfg.Device.Driver)
	assert.Equal(t, 8080, cfg.Server.Port)
}

func TestValidate_Rejects(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		errMsg string
	}{
		{"log level", func(c *Config) { c.LogLevel = "trace" }, "invalid log level"},
		{"camera tier", func(c *Config) { c.Camera.Tier = "future" }, "invalid camera.tier"},
		{"recognition", func(c *Config) { c.Camera.Recognition = "ocr" }, "invalid recognition type"},
		{"facing", func(c *Config) { c.Camera.Facing = "side" }, "invalid facing"},
		{"flash", func(c *Config) { c.Camera.Flash = "strobe" }, "flash"},
		{"aspect ratio", func(c *Config) { c.Camera.AspectRatio = "wide" }, "invalid camera.aspect_ratio"},
		{"zero ratio", func(c *Config) { c.Camera.AspectRatio = "0:3" }, "invalid camera.aspect_ratio"},
		{"view size", func(c *Config) { c.Camera.ViewWidth = -1 }, "invalid view size"},
		{"picture size", func(c *Config) { c.Capture.PictureHeight = 0 }, "invalid picture size"},
		{"jpeg quality", func(c *Config) { c.Capture.JPEGQuality = 101 }, "invalid jpeg quality"},
		{"capture timeout", func(c *Config) { c.Capture.TimeoutSec = 0 }, "invalid capture timeout"},
		{"save dir", func(c *Config) { c.Capture.SaveImage, c.Capture.SaveDir = true, "" }, "save_dir"},
		{"barcode format", func(c *Config) { c.Barcode.Formats = []string{"qr", "morse"} }, "unknown barcode format"},
		{"driver", func(c *Config) { c.Device.Driver = "v4l" }, "invalid device driver"},
		{"device tier", func(c *Config) { c.Device.Tier = TierAuto }, "invalid device.tier"},
		{"blank frames", func(c *Config) { c.Device.BlankFrames = -2 }, "must not be negative"},
		{"port", func(c *Config) { c.Server.Port = 70000 }, "invalid server port"},
		{"server timeout", func(c *Config) { c.Server.TimeoutSec = -1 }, "invalid timeout"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errMsg)
		})
	}
}

func TestValidate_AcceptsVariants(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Camera.Tier = "legacy"
	cfg.Camera.Recognition = "barcode"
	cfg.Camera.Facing = "front"
	cfg.Camera.Flash = "torch"
	cfg.Camera.AspectRatio = "16:9"
	cfg.Barcode.Formats = []string{"qr", "EAN-13"}
	cfg.Device.Driver = DriverGoCV
	assert.NoError(t, cfg.Validate())
}

func TestCameraOptions(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Camera.Recognition = "barcode"
	cfg.Camera.Facing = "front"
	cfg.Camera.Flash = "off"
	cfg.Camera.AutoFocus = false
	cfg.Camera.AspectRatio = "32:18"
	cfg.Camera.ViewWidth, cfg.Camera.ViewHeight = 480, 640
	cfg.Capture.PictureWidth, cfg.Capture.PictureHeight = 300, 400
	cfg.Capture.SaveImage = true

	opts, err := cfg.CameraOptions(device.TierIntermediate)
	require.NoError(t, err)

	assert.Equal(t, device.TierIntermediate, opts.Tier, "auto resolves to the platform tier")
	assert.Equal(t, backend.ModeBarcode, opts.Mode)
	assert.Equal(t, camera.Snapshot{
		Facing:      camera.FacingFront,
		AspectRatio: camera.MustOf(16, 9),
		AutoFocus:   false,
		Flash:       camera.FlashOff,
	}, opts.Snapshot)
	assert.Equal(t, camera.Size{Width: 480, Height: 640}, opts.ViewSize)
	assert.Equal(t, camera.Size{Width: 300, Height: 400}, opts.PictureSize)
	assert.True(t, opts.SaveImage)
	assert.True(t, opts.AdjustViewBounds)
}

func TestCameraOptions_ExplicitTier(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Camera.Tier = "legacy"

	opts, err := cfg.CameraOptions(device.TierModern)
	require.NoError(t, err)
	assert.Equal(t, device.TierLegacy, opts.Tier)
	assert.Equal(t, backend.ModePlain, opts.Mode)
}

func TestBarcodeOptions(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Barcode.Formats = []string{"qrcode", "ean13"}
	cfg.Barcode.TryHarder = true

	opts, err := cfg.BarcodeOptions()
	require.NoError(t, err)
	assert.Equal(t, []barcode.Format{barcode.FormatQR, barcode.FormatEAN13}, opts.Formats)
	assert.True(t, opts.TryHarder)
}

func TestSimulatedOptions(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Device.Tier = "intermediate"
	cfg.Device.FailModern = true
	cfg.Device.BlankFrames = 3
	cfg.Device.FrameIntervalMS = 20
	cfg.Device.Barcode = "hello"
	cfg.Capture.JPEGQuality = 75

	opts, err := cfg.SimulatedOptions()
	require.NoError(t, err)
	assert.Equal(t, device.TierIntermediate, opts.Tier)
	assert.True(t, opts.FailModern)
	assert.Equal(t, 3, opts.BlankFrames)
	assert.Equal(t, 20*time.Millisecond, opts.FrameInterval)
	assert.Equal(t, "hello", opts.Barcode)
	assert.Equal(t, 75, opts.JPEGQuality)
}

func TestCaptureTimeout(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Capture.TimeoutSec = 4
	assert.Equal(t, 4*time.Second, cfg.CaptureTimeout())
}

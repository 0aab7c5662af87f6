package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/MeKo-Tech/camkit/internal/backend"
	"github.com/MeKo-Tech/camkit/internal/barcode"
	"github.com/MeKo-Tech/camkit/internal/camera"
	"github.com/MeKo-Tech/camkit/internal/device"
	"github.com/MeKo-Tech/camkit/internal/device/simulated"
	"github.com/MeKo-Tech/camkit/internal/session"
)

// TierAuto defers the tier to the device capability query.
const TierAuto = "auto"

// Supported device drivers.
const (
	DriverSimulated = "simulated"
	DriverGoCV      = "gocv"
)

// DefaultConfig returns a configuration with sensible defaults.
func DefaultConfig() Config {
	snap := camera.DefaultSnapshot()
	return Config{
		LogLevel: "info",
		Verbose:  false,
		Camera: CameraConfig{
			Tier:             TierAuto,
			Recognition:      backend.ModePlain.String(),
			Facing:           snap.Facing.String(),
			Flash:            snap.Flash.String(),
			AutoFocus:        snap.AutoFocus,
			AspectRatio:      snap.AspectRatio.String(),
			AdjustViewBounds: true,
			ViewWidth:        1080,
			ViewHeight:       1440,
			Orientation:      true,
		},
		Capture: CaptureConfig{
			PictureWidth:  session.DefaultPictureSize.Width,
			PictureHeight: session.DefaultPictureSize.Height,
			SaveImage:     false,
			SaveDir:       "pictures",
			JPEGQuality:   90,
			TimeoutSec:    10,
		},
		Barcode: BarcodeConfig{
			Formats:   []string{},
			TryHarder: false,
		},
		Device: DeviceConfig{
			Driver:          DriverSimulated,
			DeviceID:        0,
			Tier:            device.TierModern.String(),
			FrameIntervalMS: 33,
		},
		Server: ServerConfig{
			Host:            "localhost",
			Port:            8080,
			CORSOrigin:      "*",
			TimeoutSec:      30,
			ShutdownTimeout: 10,
		},
	}
}

// Validate validates the configuration and returns any errors.
func (c *Config) Validate() error {
	// Validate log level
	validLogLevels := []string{"debug", "info", "warn", "error"}
	if !contains(validLogLevels, c.LogLevel) {
		return fmt.Errorf("invalid log level: %s (must be one of: %s)", c.LogLevel, strings.Join(validLogLevels, ", "))
	}

	// Validate camera settings
	if c.Camera.Tier != TierAuto {
		if _, err := device.ParseTier(c.Camera.Tier); err != nil {
			return fmt.Errorf("invalid camera.tier: %w", err)
		}
	}
	if _, err := backend.ParseMode(c.Camera.Recognition); err != nil {
		return err
	}
	if _, err := camera.ParseFacing(c.Camera.Facing); err != nil {
		return err
	}
	if _, err := camera.ParseFlash(c.Camera.Flash); err != nil {
		return err
	}
	if _, err := camera.ParseAspectRatio(c.Camera.AspectRatio); err != nil {
		return fmt.Errorf("invalid camera.aspect_ratio: %w", err)
	}
	if c.Camera.ViewWidth < 0 || c.Camera.ViewHeight < 0 {
		return fmt.Errorf("invalid view size: %dx%d (must not be negative)", c.Camera.ViewWidth, c.Camera.ViewHeight)
	}

	// Validate capture settings
	if c.Capture.PictureWidth <= 0 || c.Capture.PictureHeight <= 0 {
		return fmt.Errorf("invalid picture size: %dx%d (must be positive)", c.Capture.PictureWidth, c.Capture.PictureHeight)
	}
	if c.Capture.JPEGQuality < 1 || c.Capture.JPEGQuality > 100 {
		return fmt.Errorf("invalid jpeg quality: %d (must be between 1 and 100)", c.Capture.JPEGQuality)
	}
	if c.Capture.TimeoutSec <= 0 {
		return fmt.Errorf("invalid capture timeout: %d (must be positive)", c.Capture.TimeoutSec)
	}
	if c.Capture.SaveImage && c.Capture.SaveDir == "" {
		return fmt.Errorf("capture.save_dir is required when capture.save_image is set")
	}

	// Validate barcode formats
	if _, err := barcode.ParseFormats(c.Barcode.Formats); err != nil {
		return err
	}

	// Validate device
	validDrivers := []string{DriverSimulated, DriverGoCV}
	if !contains(validDrivers, c.Device.Driver) {
		return fmt.Errorf("invalid device driver: %s (must be one of: %s)", c.Device.Driver, strings.Join(validDrivers, ", "))
	}
	if _, err := device.ParseTier(c.Device.Tier); err != nil {
		return fmt.Errorf("invalid device.tier: %w", err)
	}
	if c.Device.BlankFrames < 0 || c.Device.FrameIntervalMS < 0 {
		return fmt.Errorf("invalid simulated device timing (must not be negative)")
	}

	// Validate server
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d (must be between 1 and 65535)", c.Server.Port)
	}
	if c.Server.TimeoutSec <= 0 {
		return fmt.Errorf("invalid timeout: %d (must be positive)", c.Server.TimeoutSec)
	}

	return nil
}

// Snapshot returns the configured camera state.
func (c *Config) Snapshot() (camera.Snapshot, error) {
	facing, err := camera.ParseFacing(c.Camera.Facing)
	if err != nil {
		return camera.Snapshot{}, err
	}
	flash, err := camera.ParseFlash(c.Camera.Flash)
	if err != nil {
		return camera.Snapshot{}, err
	}
	ratio, err := camera.ParseAspectRatio(c.Camera.AspectRatio)
	if err != nil {
		return camera.Snapshot{}, err
	}
	return camera.Snapshot{
		Facing:      facing,
		AspectRatio: ratio,
		AutoFocus:   c.Camera.AutoFocus,
		Flash:       flash,
	}, nil
}

// CameraOptions converts the config to session options. platformTier is used
// when camera.tier is auto.
func (c *Config) CameraOptions(platformTier device.Tier) (session.Options, error) {
	tier := platformTier
	if c.Camera.Tier != TierAuto {
		t, err := device.ParseTier(c.Camera.Tier)
		if err != nil {
			return session.Options{}, err
		}
		tier = t
	}
	mode, err := backend.ParseMode(c.Camera.Recognition)
	if err != nil {
		return session.Options{}, err
	}
	snap, err := c.Snapshot()
	if err != nil {
		return session.Options{}, err
	}
	return session.Options{
		Tier:             tier,
		Mode:             mode,
		Snapshot:         snap,
		PictureSize:      camera.Size{Width: c.Capture.PictureWidth, Height: c.Capture.PictureHeight},
		ViewSize:         camera.Size{Width: c.Camera.ViewWidth, Height: c.Camera.ViewHeight},
		SaveImage:        c.Capture.SaveImage,
		AdjustViewBounds: c.Camera.AdjustViewBounds,
	}, nil
}

// BarcodeOptions converts the barcode section.
func (c *Config) BarcodeOptions() (barcode.Options, error) {
	formats, err := barcode.ParseFormats(c.Barcode.Formats)
	if err != nil {
		return barcode.Options{}, err
	}
	return barcode.Options{Formats: formats, TryHarder: c.Barcode.TryHarder}, nil
}

// SimulatedOptions converts the device section for the simulated driver.
func (c *Config) SimulatedOptions() (simulated.Options, error) {
	tier, err := device.ParseTier(c.Device.Tier)
	if err != nil {
		return simulated.Options{}, err
	}
	return simulated.Options{
		Tier:          tier,
		FailModern:    c.Device.FailModern,
		BlankFrames:   c.Device.BlankFrames,
		FrameInterval: time.Duration(c.Device.FrameIntervalMS) * time.Millisecond,
		Barcode:       c.Device.Barcode,
		JPEGQuality:   c.Capture.JPEGQuality,
	}, nil
}

// CaptureTimeout returns the hardware capture timeout.
func (c *Config) CaptureTimeout() time.Duration {
	return time.Duration(c.Capture.TimeoutSec) * time.Second
}

// Helper functions

// contains checks if a slice contains a string.
func contains(slice []string, item string) bool {
	for _, s := range slice {
		if s == item {
			return true
		}
	}
	return false
}

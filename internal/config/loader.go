package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

const (
	// ConfigFileName is the base name for configuration files (without extension).
	ConfigFileName = "camkit"

	// EnvPrefix is the prefix for environment variables.
	EnvPrefix = "CAMKIT"
)

// Loader handles loading configuration from files, the environment and
// bound flags.
type Loader struct {
	v *viper.Viper
}

// NewLoader creates a loader on the global viper instance so that flags bound
// by the root command are honoured.
func NewLoader() *Loader {
	return &Loader{v: viper.GetViper()}
}

// NewLoaderWith creates a loader on an isolated viper instance.
func NewLoaderWith(v *viper.Viper) *Loader {
	if v == nil {
		v = viper.New()
	}
	return &Loader{v: v}
}

// Load reads the configuration from the search paths and validates it.
func (l *Loader) Load() (*Config, error) {
	return l.LoadWithFile("")
}

// LoadWithoutValidation is Load without the validation step.
func (l *Loader) LoadWithoutValidation() (*Config, error) {
	return l.LoadWithFileWithoutValidation("")
}

// LoadWithFile loads configuration from a specific file path. An empty path
// searches the standard locations.
func (l *Loader) LoadWithFile(configFile string) (*Config, error) {
	config, err := l.LoadWithFileWithoutValidation(configFile)
	if err != nil {
		return nil, err
	}
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return config, nil
}

// LoadWithFileWithoutValidation loads configuration from a specific file path
// without validation.
func (l *Loader) LoadWithFileWithoutValidation(configFile string) (*Config, error) {
	if configFile != "" {
		if _, err := os.Stat(configFile); os.IsNotExist(err) {
			return nil, fmt.Errorf("config file does not exist: %s", configFile)
		}
		l.v.SetConfigFile(configFile)
	} else {
		l.v.SetConfigName(ConfigFileName)
		l.v.SetConfigType("yaml")
		l.addConfigPaths()
	}

	l.setupEnvironmentVariables()
	l.setDefaults()

	if err := l.v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if configFile != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file %s: %w", configFile, err)
		}
		// No config file: defaults and environment only.
	}

	var config Config
	if err := l.v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}
	return &config, nil
}

// Get returns a value from the configuration.
func (l *Loader) Get(key string) interface{} {
	return l.v.Get(key)
}

// Set sets a value in the configuration.
func (l *Loader) Set(key string, value interface{}) {
	l.v.Set(key, value)
}

// GetConfigFileUsed returns the path of the config file used.
func (l *Loader) GetConfigFileUsed() string {
	return l.v.ConfigFileUsed()
}

// addConfigPaths adds the standard configuration search paths.
func (l *Loader) addConfigPaths() {
	for _, p := range GetConfigSearchPaths() {
		l.v.AddConfigPath(p)
	}
}

// setupEnvironmentVariables maps camera.view_width to CAMKIT_CAMERA_VIEW_WIDTH.
func (l *Loader) setupEnvironmentVariables() {
	l.v.SetEnvPrefix(EnvPrefix)
	l.v.AutomaticEnv()
	l.v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
}

// setDefaults sets default values for all configuration options. Every key
// needs a default for AutomaticEnv to see it during Unmarshal.
func (l *Loader) setDefaults() {
	defaults := DefaultConfig()

	l.v.SetDefault("log_level", defaults.LogLevel)
	l.v.SetDefault("verbose", defaults.Verbose)
	l.v.SetDefault("state_file", defaults.StateFile)

	l.v.SetDefault("camera.tier", defaults.Camera.Tier)
	l.v.SetDefault("camera.recognition", defaults.Camera.Recognition)
	l.v.SetDefault("camera.facing", defaults.Camera.Facing)
	l.v.SetDefault("camera.flash", defaults.Camera.Flash)
	l.v.SetDefault("camera.auto_focus", defaults.Camera.AutoFocus)
	l.v.SetDefault("camera.aspect_ratio", defaults.Camera.AspectRatio)
	l.v.SetDefault("camera.adjust_view_bounds", defaults.Camera.AdjustViewBounds)
	l.v.SetDefault("camera.view_width", defaults.Camera.ViewWidth)
	l.v.SetDefault("camera.view_height", defaults.Camera.ViewHeight)
	l.v.SetDefault("camera.orientation", defaults.Camera.Orientation)

	l.v.SetDefault("capture.picture_width", defaults.Capture.PictureWidth)
	l.v.SetDefault("capture.picture_height", defaults.Capture.PictureHeight)
	l.v.SetDefault("capture.save_image", defaults.Capture.SaveImage)
	l.v.SetDefault("capture.save_dir", defaults.Capture.SaveDir)
	l.v.SetDefault("capture.jpeg_quality", defaults.Capture.JPEGQuality)
	l.v.SetDefault("capture.timeout_sec", defaults.Capture.TimeoutSec)

	l.v.SetDefault("barcode.formats", defaults.Barcode.Formats)
	l.v.SetDefault("barcode.try_harder", defaults.Barcode.TryHarder)

	l.v.SetDefault("device.driver", defaults.Device.Driver)
	l.v.SetDefault("device.device_id", defaults.Device.DeviceID)
	l.v.SetDefault("device.tier", defaults.Device.Tier)
	l.v.SetDefault("device.fail_modern", defaults.Device.FailModern)
	l.v.SetDefault("device.blank_frames", defaults.Device.BlankFrames)
	l.v.SetDefault("device.frame_interval_ms", defaults.Device.FrameIntervalMS)
	l.v.SetDefault("device.barcode", defaults.Device.Barcode)

	l.v.SetDefault("server.host", defaults.Server.Host)
	l.v.SetDefault("server.port", defaults.Server.Port)
	l.v.SetDefault("server.cors_origin", defaults.Server.CORSOrigin)
	l.v.SetDefault("server.timeout_sec", defaults.Server.TimeoutSec)
	l.v.SetDefault("server.shutdown_timeout", defaults.Server.ShutdownTimeout)
}

// GetConfigSearchPaths returns the paths where configuration files are searched.
func GetConfigSearchPaths() []string {
	paths := []string{"."}

	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, home)
	}

	if configDir, exists := os.LookupEnv("XDG_CONFIG_HOME"); exists {
		paths = append(paths, filepath.Join(configDir, "camkit"))
	} else if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, ".config", "camkit"))
	}

	paths = append(paths, "/etc/camkit")

	return paths
}

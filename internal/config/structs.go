//nolint:lll
package config

// Config represents the complete configuration for camkit. It covers every
// command (serve, capture, info) and supports loading from configuration
// files, environment variables and command-line flags.
type Config struct {
	// Global settings
	LogLevel  string `mapstructure:"log_level" yaml:"log_level" json:"log_level"`
	Verbose   bool   `mapstructure:"verbose" yaml:"verbose" json:"verbose"`
	StateFile string `mapstructure:"state_file" yaml:"state_file" json:"state_file"`

	// Camera session configuration
	Camera CameraConfig `mapstructure:"camera" yaml:"camera" json:"camera"`

	// Still capture configuration
	Capture CaptureConfig `mapstructure:"capture" yaml:"capture" json:"capture"`

	// Barcode recognition
	Barcode BarcodeConfig `mapstructure:"barcode" yaml:"barcode" json:"barcode"`

	// Device driver
	Device DeviceConfig `mapstructure:"device" yaml:"device" json:"device"`

	// Server configuration (for serve command)
	Server ServerConfig `mapstructure:"server" yaml:"server" json:"server"`
}

// CameraConfig contains the session settings a camera view is built with.
type CameraConfig struct {
	Tier             string `mapstructure:"tier" yaml:"tier" json:"tier"`
	Recognition      string `mapstructure:"recognition" yaml:"recognition" json:"recognition"`
	Facing           string `mapstructure:"facing" yaml:"facing" json:"facing"`
	Flash            string `mapstructure:"flash" yaml:"flash" json:"flash"`
	AutoFocus        bool   `mapstructure:"auto_focus" yaml:"auto_focus" json:"auto_focus"`
	AspectRatio      string `mapstructure:"aspect_ratio" yaml:"aspect_ratio" json:"aspect_ratio"`
	AdjustViewBounds bool   `mapstructure:"adjust_view_bounds" yaml:"adjust_view_bounds" json:"adjust_view_bounds"`
	ViewWidth        int    `mapstructure:"view_width" yaml:"view_width" json:"view_width"`
	ViewHeight       int    `mapstructure:"view_height" yaml:"view_height" json:"view_height"`
	Orientation      bool   `mapstructure:"orientation" yaml:"orientation" json:"orientation"`
}

// CaptureConfig contains still capture settings.
type CaptureConfig struct {
	PictureWidth  int    `mapstructure:"picture_width" yaml:"picture_width" json:"picture_width"`
	PictureHeight int    `mapstructure:"picture_height" yaml:"picture_height" json:"picture_height"`
	SaveImage     bool   `mapstructure:"save_image" yaml:"save_image" json:"save_image"`
	SaveDir       string `mapstructure:"save_dir" yaml:"save_dir" json:"save_dir"`
	JPEGQuality   int    `mapstructure:"jpeg_quality" yaml:"jpeg_quality" json:"jpeg_quality"`
	TimeoutSec    int    `mapstructure:"timeout_sec" yaml:"timeout_sec" json:"timeout_sec"`
}

// BarcodeConfig contains barcode recognition settings.
type BarcodeConfig struct {
	Formats   []string `mapstructure:"formats" yaml:"formats" json:"formats"`
	TryHarder bool     `mapstructure:"try_harder" yaml:"try_harder" json:"try_harder"`
}

// DeviceConfig selects and tunes the camera driver.
type DeviceConfig struct {
	Driver   string `mapstructure:"driver" yaml:"driver" json:"driver"`
	DeviceID int    `mapstructure:"device_id" yaml:"device_id" json:"device_id"`

	// Simulated driver only
	Tier            string `mapstructure:"tier" yaml:"tier" json:"tier"`
	FailModern      bool   `mapstructure:"fail_modern" yaml:"fail_modern" json:"fail_modern"`
	BlankFrames     int    `mapstructure:"blank_frames" yaml:"blank_frames" json:"blank_frames"`
	FrameIntervalMS int    `mapstructure:"frame_interval_ms" yaml:"frame_interval_ms" json:"frame_interval_ms"`
	Barcode         string `mapstructure:"barcode" yaml:"barcode" json:"barcode"`
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	Host            string `mapstructure:"host" yaml:"host" json:"host"`
	Port            int    `mapstructure:"port" yaml:"port" json:"port"`
	CORSOrigin      string `mapstructure:"cors_origin" yaml:"cors_origin" json:"cors_origin"`
	TimeoutSec      int    `mapstructure:"timeout_sec" yaml:"timeout_sec" json:"timeout_sec"`
	ShutdownTimeout int    `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout" json:"shutdown_timeout"`
}

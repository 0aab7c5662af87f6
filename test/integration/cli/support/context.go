package support

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// TestContext holds the state for integration tests.
type TestContext struct {
	// Command execution state
	LastCommand   string
	LastOutput    string
	LastError     error
	LastStartTime time.Time
	LastDuration  time.Duration

	// Test environment
	TempDir string
	// ConfigPath is passed to every command as --config.
	ConfigPath string
	// configSections collects YAML written to ConfigPath.
	configSections map[string][]string

	// Server management
	HTTPTestServer *HTTPTestServerWrapper

	// HTTP response state
	LastHTTPStatusCode int
	LastHTTPResponse   string
	LastHTTPHeaders    map[string]string

	// Test artifacts
	CreatedDirectories []string
}

// NewTestContext creates a new test context.
func NewTestContext() (*TestContext, error) {
	tempDir, err := os.MkdirTemp("", "camkit-test-*")
	if err != nil {
		return nil, fmt.Errorf("failed to create temp directory: %w", err)
	}

	return &TestContext{
		TempDir:            tempDir,
		configSections:     map[string][]string{},
		CreatedDirectories: []string{},
		LastHTTPHeaders:    map[string]string{},
	}, nil
}

// Cleanup stops the server and removes everything the scenario created.
func (testCtx *TestContext) Cleanup() error {
	var errors []error

	if err := testCtx.StopServer(); err != nil {
		errors = append(errors, fmt.Errorf("failed to stop server: %w", err))
	}

	for _, dir := range testCtx.CreatedDirectories {
		if err := os.RemoveAll(dir); err != nil && !os.IsNotExist(err) {
			errors = append(errors, fmt.Errorf("failed to remove directory %s: %w", dir, err))
		}
	}

	if err := os.RemoveAll(testCtx.TempDir); err != nil && !os.IsNotExist(err) {
		errors = append(errors, fmt.Errorf("failed to remove temp directory %s: %w", testCtx.TempDir, err))
	}

	if len(errors) > 0 {
		return fmt.Errorf("cleanup errors: %v", errors)
	}
	return nil
}

// TrackDirectory adds a directory to be cleaned up after tests.
func (testCtx *TestContext) TrackDirectory(dirname string) {
	testCtx.CreatedDirectories = append(testCtx.CreatedDirectories, dirname)
}

// GetTempDir returns a path to a temporary directory.
func (testCtx *TestContext) GetTempDir(prefix string) string {
	dirPath := filepath.Join(testCtx.TempDir, fmt.Sprintf("%s-%d", prefix, time.Now().UnixNano()))
	testCtx.TrackDirectory(dirPath)
	return dirPath
}

// setConfig records key: value under section and rewrites the config file.
func (testCtx *TestContext) setConfig(section, key, value string) error {
	testCtx.configSections[section] = append(testCtx.configSections[section],
		fmt.Sprintf("  %s: %s", key, value))
	return testCtx.writeConfig()
}

func (testCtx *TestContext) writeConfig() error {
	var b strings.Builder
	b.WriteString("log_level: error\n")
	for _, section := range []string{"camera", "capture", "device", "server"} {
		lines := testCtx.configSections[section]
		if len(lines) == 0 {
			continue
		}
		b.WriteString(section + ":\n")
		for _, l := range lines {
			b.WriteString(l + "\n")
		}
	}
	testCtx.ConfigPath = filepath.Join(testCtx.TempDir, "camkit.yaml")
	return os.WriteFile(testCtx.ConfigPath, []byte(b.String()), 0o600)
}

// substituteCommandVariables expands {tmp} to the scenario temp dir.
func (testCtx *TestContext) substituteCommandVariables(command string) string {
	return strings.ReplaceAll(command, "{tmp}", testCtx.TempDir)
}

package cmd

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/MeKo-Tech/camkit/internal/camera"
)

// loadState reads a saved camera snapshot. A missing file reports ok=false.
func loadState(path string) (camera.Snapshot, bool, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return camera.Snapshot{}, false, nil
	}
	if err != nil {
		return camera.Snapshot{}, false, fmt.Errorf("read state file: %w", err)
	}
	snap := camera.DefaultSnapshot()
	if err := yaml.Unmarshal(data, &snap); err != nil {
		return camera.Snapshot{}, false, fmt.Errorf("parse state file %s: %w", path, err)
	}
	return snap, true, nil
}

// saveState writes snap atomically.
func saveState(path string, snap camera.Snapshot) error {
	data, err := yaml.Marshal(snap)
	if err != nil {
		return fmt.Errorf("encode state: %w", err)
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create state dir: %w", err)
		}
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("write state file: %w", err)
	}
	return os.Rename(tmp, path)
}

// Package storage persists captured pictures.
package storage

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
)

// Saver stores one encoded picture and returns where it went.
type Saver interface {
	Save(ctx context.Context, data []byte) (string, error)
}

// FileSaver writes each picture to its own uuid-named file under Dir.
type FileSaver struct {
	Dir string
	Ext string
}

// NewFileSaver returns a saver writing .jpg files into dir.
func NewFileSaver(dir string) *FileSaver {
	return &FileSaver{Dir: dir, Ext: ".jpg"}
}

// Save implements Saver.
func (s *FileSaver) Save(ctx context.Context, data []byte) (string, error) {
	if len(data) == 0 {
		return "", errors.New("storage: empty picture")
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}
	dir := s.Dir
	if dir == "" {
		dir = "."
	}
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return "", fmt.Errorf("create save directory: %w", err)
	}

	path := filepath.Join(dir, uuid.NewString()+s.Ext)
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return "", fmt.Errorf("write picture: %w", err)
	}
	return path, nil
}

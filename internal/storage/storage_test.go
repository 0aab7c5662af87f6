package storage

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MeKo-Tech/camkit/internal/testutil"
)

func TestFileSaver_Save(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "shots")
	s := NewFileSaver(dir)

	p1, err := s.Save(context.Background(), []byte{0xff, 0xd8, 1})
	require.NoError(t, err)
	p2, err := s.Save(context.Background(), []byte{0xff, 0xd8, 2})
	require.NoError(t, err)
	assert.NotEqual(t, p1, p2)

	name := strings.TrimSuffix(filepath.Base(p1), ".jpg")
	_, err = uuid.Parse(name)
	assert.NoError(t, err)

	data, err := os.ReadFile(p2)
	require.NoError(t, err)
	assert.Equal(t, []byte{0xff, 0xd8, 2}, data)
	assert.Len(t, testutil.ListFiles(t, dir), 2)
}

func TestFileSaver_Rejects(t *testing.T) {
	s := NewFileSaver(t.TempDir())
	_, err := s.Save(context.Background(), nil)
	assert.Error(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = s.Save(ctx, []byte{1})
	assert.ErrorIs(t, err, context.Canceled)
}

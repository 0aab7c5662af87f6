package callback

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MeKo-Tech/camkit/internal/camera"
)

func TestWaiter_ResolvesWithPicture(t *testing.T) {
	m := NewMux(&opTransformer{}, nil)
	w := NewWaiter()
	m.Add(w)

	err := m.Deliver(camera.BytesResult([]byte("jpeg"), camera.SourceSnapshot), Delivery{
		PictureSize: camera.Size{Width: 8, Height: 6},
	})
	require.NoError(t, err)

	pic, err := w.Wait(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "jpeg", string(pic.Original))
	assert.Equal(t, "jpeg|8x6", string(pic.Thumbnail))
	assert.Equal(t, camera.Size{Width: 8, Height: 6}, pic.Size)
}

func TestWaiter_FirstOutcomeWins(t *testing.T) {
	w := NewWaiter()
	capErr := camera.NewError(camera.ErrorKindCapture, errors.New("shutter stuck"))
	w.OnError(capErr)
	w.OnClosed()

	_, err := w.Wait(context.Background())
	var ce *camera.Error
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, camera.ErrorKindCapture, ce.Kind)
}

func TestWaiter_Closed(t *testing.T) {
	w := NewWaiter()
	w.OnClosed()

	_, err := w.Wait(context.Background())
	assert.ErrorIs(t, err, ErrClosedBeforePicture)
}

func TestWaiter_Timeout(t *testing.T) {
	w := NewWaiter()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	_, err := w.Wait(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

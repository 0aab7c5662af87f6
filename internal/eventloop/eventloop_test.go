package eventloop

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQueue_RunsInOrder(t *testing.T) {
	q := NewQueue(8)
	defer q.Close()

	var mu sync.Mutex
	var got []int
	for i := 0; i < 20; i++ {
		i := i
		q.Post(func() {
			mu.Lock()
			got = append(got, i)
			mu.Unlock()
		})
	}
	require.NoError(t, q.Do(context.Background(), func() {}))

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, got, 20)
	for i, v := range got {
		assert.Equal(t, i, v)
	}
}

func TestQueue_ClosedRejects(t *testing.T) {
	q := NewQueue(1)
	q.Close()
	assert.ErrorIs(t, q.TryPost(func() {}), ErrClosed)
	assert.ErrorIs(t, q.Do(context.Background(), func() {}), ErrClosed)
	q.Close()
}

func TestQueue_DoHonoursContext(t *testing.T) {
	q := NewQueue(1)
	defer q.Close()

	block := make(chan struct{})
	q.Post(func() { <-block })

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err := q.Do(ctx, func() {})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	close(block)
}

func TestManual_RunPendingDrainsNestedPosts(t *testing.T) {
	m := NewManual()
	var order []string
	m.Post(func() {
		order = append(order, "a")
		m.Post(func() { order = append(order, "c") })
	})
	m.Post(func() { order = append(order, "b") })

	assert.Equal(t, 2, m.Len())
	assert.Equal(t, 3, m.RunPending())
	assert.Equal(t, []string{"a", "b", "c"}, order)
	assert.Equal(t, 0, m.RunPending())
}

func TestManual_Await(t *testing.T) {
	m := NewManual()
	ran := false
	go m.Post(func() { ran = true })

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	n, err := m.Await(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.True(t, ran)
}

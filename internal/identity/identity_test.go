package identity

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStaticResolvesImmediately(t *testing.T) {
	id, err := Static("owner-1").Await(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "owner-1", id)
}

func TestHandleResolvesAfterSet(t *testing.T) {
	h := NewHandle()
	go func() {
		time.Sleep(20 * time.Millisecond)
		h.Set("owner-2")
	}()

	id, err := h.Await(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "owner-2", id)
}

func TestHandleFirstSetWins(t *testing.T) {
	h := NewHandle()
	h.Set("first")
	h.Set("second")

	id, err := h.Await(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "first", id)
}

func TestHandleHonorsContextCancel(t *testing.T) {
	h := NewHandle()
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := h.Await(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetAndGet(t *testing.T) {
	c := New()
	ctx := context.Background()

	type payload struct {
		Name  string
		Count int
	}

	require.NoError(t, c.Set(ctx, "key", payload{Name: "a", Count: 2}, 0))

	var got payload
	hit, err := c.Get(ctx, "key", &got)
	require.NoError(t, err)
	assert.True(t, hit)
	assert.Equal(t, payload{Name: "a", Count: 2}, got)
}

func TestGetMiss(t *testing.T) {
	c := New()

	var got string
	hit, err := c.Get(context.Background(), "missing", &got)
	require.NoError(t, err)
	assert.False(t, hit)
}

func TestExpiry(t *testing.T) {
	c := New()
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "key", "value", time.Millisecond))
	time.Sleep(5 * time.Millisecond)

	var got string
	hit, err := c.Get(ctx, "key", &got)
	require.NoError(t, err)
	assert.False(t, hit)
}

func TestClearByPrefix(t *testing.T) {
	c := New()
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "recs:p-1:a", "x", 0))
	require.NoError(t, c.Set(ctx, "recs:p-1:b", "y", 0))
	require.NoError(t, c.Set(ctx, "risk:p-1", "z", 0))

	require.NoError(t, c.Clear(ctx, "recs:p-1"))

	var got string
	hit, _ := c.Get(ctx, "recs:p-1:a", &got)
	assert.False(t, hit)
	hit, _ = c.Get(ctx, "risk:p-1", &got)
	assert.True(t, hit)
}

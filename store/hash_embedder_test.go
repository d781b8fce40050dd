package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHashEmbedder_Deterministic(t *testing.T) {
	e := NewHashEmbedder(16)

	a, err := e.Embed(context.Background(), "login fails on retry")
	require.NoError(t, err)
	b, err := e.Embed(context.Background(), "login fails on retry")
	require.NoError(t, err)

	assert.Equal(t, a, b)
	assert.Len(t, a, 16)
}

func TestHashEmbedder_DifferentTextDiffers(t *testing.T) {
	e := NewHashEmbedder(16)

	a, err := e.Embed(context.Background(), "login fails on retry")
	require.NoError(t, err)
	b, err := e.Embed(context.Background(), "logout succeeds")
	require.NoError(t, err)

	assert.NotEqual(t, a, b)
}

func TestNewHashEmbedder_NonPositiveDimsDefaults(t *testing.T) {
	e := NewHashEmbedder(0)
	assert.Equal(t, 32, e.dims)

	e = NewHashEmbedder(-5)
	assert.Equal(t, 32, e.dims)
}

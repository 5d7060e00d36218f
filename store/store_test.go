package store_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"newswire/store"
)

func TestMemoryMarkSeen(t *testing.T) {
	s := store.NewMemory()
	ctx := context.Background()

	isNew, err := s.MarkSeen(ctx, "rss", "article-1")
	require.NoError(t, err)
	assert.True(t, isNew)

	isNew, err = s.MarkSeen(ctx, "rss", "article-1")
	require.NoError(t, err)
	assert.False(t, isNew)

	// The same id under another source is a different item
	isNew, err = s.MarkSeen(ctx, "twitter", "article-1")
	require.NoError(t, err)
	assert.True(t, isNew)

	require.NoError(t, s.Close(ctx))
}

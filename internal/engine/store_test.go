package engine

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSQLiteStore(t *testing.T) {
	ctx := context.Background()
	s, err := OpenStore(ctx, filepath.Join(t.TempDir(), "transcripts.db"))
	require.NoError(t, err)
	defer s.Close()

	_, ok, err := s.Load(ctx, "abc", "en")
	require.NoError(t, err)
	assert.False(t, ok)

	at := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	require.NoError(t, s.Save(ctx, StoredTranscript{VideoID: "abc", Lang: "en", Strategy: "timedtext", Data: []byte(`[1]`), FetchedAt: at}))
	require.NoError(t, s.Save(ctx, StoredTranscript{VideoID: "abc", Lang: "en", Strategy: "dom", Data: []byte(`[2]`), FetchedAt: at}))

	got, ok, err := s.Load(ctx, "abc", "en")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "dom", got.Strategy)
	assert.Equal(t, []byte(`[2]`), got.Data)
	assert.True(t, at.Equal(got.FetchedAt))

	_, ok, err = s.Load(ctx, "abc", "fr")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestOpenStoreEmptyDSN(t *testing.T) {
	_, err := OpenStore(context.Background(), "")
	assert.Error(t, err)
}

func TestSetStore(t *testing.T) {
	defer SetStore(nil)
	assert.Nil(t, Store())

	s, err := OpenStore(context.Background(), filepath.Join(t.TempDir(), "t.db"))
	require.NoError(t, err)
	defer s.Close()
	SetStore(s)
	assert.Same(t, s, Store())
}

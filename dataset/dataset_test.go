package dataset

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sammcj/actorglue/types"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "dataset.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestPushAndRecent(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	fixed := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return fixed }

	first, err := s.Push(ctx, KindGmail, map[string]any{"messageId": "m1", "subject": "Rate Confirmation"})
	require.NoError(t, err)
	_, err = s.Push(ctx, KindRetell, map[string]any{"call_id": "c1"})
	require.NoError(t, err)
	third, err := s.Push(ctx, KindGmail, map[string]any{"messageId": "m2"})
	require.NoError(t, err)
	assert.Len(t, first, 26, "ids are ulids")

	recs, err := s.Recent(ctx, KindGmail, 10)
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Equal(t, third, recs[0].ID, "newest first")
	assert.Equal(t, first, recs[1].ID)
	assert.Equal(t, "Rate Confirmation", recs[1].Payload["subject"])
	assert.True(t, fixed.Equal(recs[1].CreatedAt))

	all, err := s.Recent(ctx, "", 2)
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestCount(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	n, err := s.Count(ctx, "")
	require.NoError(t, err)
	assert.Zero(t, n)

	for i := 0; i < 3; i++ {
		_, err := s.Push(ctx, KindRetell, map[string]any{"i": i})
		require.NoError(t, err)
	}
	_, err = s.Push(ctx, KindGmail, map[string]any{})
	require.NoError(t, err)

	n, err = s.Count(ctx, KindRetell)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	n, err = s.Count(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, 4, n)
}

func TestPushRejectsUnencodablePayload(t *testing.T) {
	s := openTestStore(t)
	_, err := s.Push(context.Background(), KindGmail, map[string]any{"bad": make(chan int)})
	assert.ErrorIs(t, err, types.ErrDataset)
}

func TestReopenKeepsRecords(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "dataset.db")

	s, err := Open(path)
	require.NoError(t, err)
	_, err = s.Push(ctx, KindGmail, map[string]any{"messageId": "m1"})
	require.NoError(t, err)
	require.NoError(t, s.Close())

	s, err = Open(path)
	require.NoError(t, err)
	defer s.Close()
	n, err := s.Count(ctx, KindGmail)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

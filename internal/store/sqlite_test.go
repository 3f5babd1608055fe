package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/pbaille/audit/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestSQLite(t *testing.T) *SQLite {
	t.Helper()
	b, err := NewSQLite(filepath.Join(t.TempDir(), "audit.db"))
	require.NoError(t, err)
	t.Cleanup(func() { b.Close() })
	return b
}

func TestSQLite_EmptyLog(t *testing.T) {
	t.Parallel()
	b := newTestSQLite(t)

	versions, err := b.Load(context.Background())
	require.NoError(t, err)
	assert.Empty(t, versions)
	assert.NoError(t, b.Ping(context.Background()))
}

func TestSQLite_AppendKeepsOrder(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	b := newTestSQLite(t)

	// Later timestamps first: order must follow insertion, not time.
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	ids := []string{"c", "a", "b"}
	for i, id := range ids {
		v := domain.Version{
			ID:           id,
			Timestamp:    base.Add(-time.Duration(i) * time.Hour),
			Content:      "content " + id,
			NewLength:    9,
			AddedWords:   []string{"content", id},
			RemovedWords: []string{},
		}
		_, n, err := b.Append(ctx, record(v))
		require.NoError(t, err)
		assert.Equal(t, i+1, n)
	}

	got, err := b.Load(ctx)
	require.NoError(t, err)
	require.Len(t, got, 3)
	for i, id := range ids {
		assert.Equal(t, id, got[i].ID)
		assert.Equal(t, "content "+id, got[i].Content)
		assert.Equal(t, []string{"content", id}, got[i].AddedWords)
		assert.Equal(t, []string{}, got[i].RemovedWords)
	}
	assert.True(t, base.Equal(got[0].Timestamp))
}

func TestSQLite_DuplicateIDRejected(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	b := newTestSQLite(t)

	v := domain.Version{ID: "same", Timestamp: time.Now(), AddedWords: []string{}, RemovedWords: []string{}}
	_, _, err := b.Append(ctx, record(v))
	require.NoError(t, err)
	_, _, err = b.Append(ctx, record(v))
	assert.Error(t, err)

	got, err := b.Load(ctx)
	require.NoError(t, err)
	assert.Len(t, got, 1)
}

func TestSQLite_CorruptRow(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	b := newTestSQLite(t)

	_, err := b.db.Exec(`INSERT INTO versions (id, created_at, content, old_length, new_length, added_words, removed_words)
		VALUES ('x', 'yesterday', '', 0, 0, '[]', '[]')`)
	require.NoError(t, err)

	_, err = b.Load(ctx)
	assert.ErrorIs(t, err, domain.ErrStorageCorrupt)

	_, _, err = b.Append(ctx, record(domain.Version{ID: "y", Timestamp: time.Now()}))
	assert.ErrorIs(t, err, domain.ErrStorageCorrupt)
}

func TestSQLite_AppendPassesNewestRecord(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	b := newTestSQLite(t)

	var seen []*domain.Version
	for _, id := range []string{"1", "2", "3"} {
		_, _, err := b.Append(ctx, func(last *domain.Version) domain.Version {
			seen = append(seen, last)
			return domain.Version{ID: id, Timestamp: time.Now(), Content: "content " + id}
		})
		require.NoError(t, err)
	}

	require.Len(t, seen, 3)
	assert.Nil(t, seen[0])
	assert.Equal(t, "content 1", seen[1].Content)
	assert.Equal(t, "content 2", seen[2].Content)
}

func TestSQLite_SurvivesReopen(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "audit.db")

	b, err := NewSQLite(path)
	require.NoError(t, err)
	_, _, err = b.Append(ctx, record(domain.Version{ID: "1", Timestamp: time.Now(), Content: "persisted"}))
	require.NoError(t, err)
	require.NoError(t, b.Close())

	b, err = NewSQLite(path)
	require.NoError(t, err)
	defer b.Close()

	got, err := b.Load(ctx)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "persisted", got[0].Content)
}

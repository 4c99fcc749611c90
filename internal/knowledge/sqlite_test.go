package knowledge

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := OpenSQLite(filepath.Join(t.TempDir(), "knowledge.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestStoreAndQuery(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Store(ctx, Item{
		Repo: "acme/app", Kind: "fix",
		Content: "flaky login test needs a retry around the auth mock",
		Tags:    []string{"auth", "flaky"},
	}))
	require.NoError(t, s.Store(ctx, Item{
		Repo: "acme/app", Kind: "outcome",
		Content: "build passed after pinning node 20",
	}))
	require.NoError(t, s.Store(ctx, Item{
		Repo: "other/repo", Kind: "fix",
		Content: "login page selector changed",
	}))

	items, err := s.Query(ctx, "login", Filters{Repo: "acme/app"})
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "fix", items[0].Kind)
	assert.Equal(t, []string{"auth", "flaky"}, items[0].Tags)

	items, err = s.Query(ctx, "", Filters{Repo: "acme/app"})
	require.NoError(t, err)
	assert.Len(t, items, 2)

	items, err = s.Query(ctx, "", Filters{Tags: []string{"flaky"}})
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Contains(t, items[0].Content, "flaky login")
}

func TestQueryLimit(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	for i := 0; i < 15; i++ {
		require.NoError(t, s.Store(ctx, Item{Content: "learning"}))
	}

	items, err := s.Query(ctx, "", Filters{})
	require.NoError(t, err)
	assert.Len(t, items, defaultQueryLimit)

	items, err = s.Query(ctx, "", Filters{Limit: 3})
	require.NoError(t, err)
	assert.Len(t, items, 3)
}

func TestStoreRejectsEmptyContent(t *testing.T) {
	s := openTestStore(t)
	assert.Error(t, s.Store(context.Background(), Item{Content: "  "}))
}

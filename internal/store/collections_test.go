package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	qmderrors "github.com/qmd-search/qmd/internal/errors"
)

func TestAddCollection_DuplicateNameConflicts(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.AddCollection(ctx, "notes", "/home/u/notes", "**/*.md"))
	err := s.AddCollection(ctx, "notes", "/home/u/notes2", "**/*.md")
	require.Error(t, err)
	require.Equal(t, qmderrors.CategoryConflict, qmderrors.GetCategory(err))
}

func TestListCollections_OrderedByName(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.AddCollection(ctx, "work", "/w", ""))
	require.NoError(t, s.AddCollection(ctx, "home", "/h", ""))

	cols, err := s.ListCollections(ctx)
	require.NoError(t, err)
	require.Len(t, cols, 2)
	require.Equal(t, "home", cols[0].Name)
	require.Equal(t, "work", cols[1].Name)
	require.Equal(t, "**/*.md", cols[0].Mask, "default mask applies when mask is omitted")
}

func TestRemoveCollection_DeactivatesDocuments(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.AddCollection(ctx, "notes", "/n", ""))
	_, err := s.AddOrUpdateDocument(ctx, "notes", "a.md", "hello")
	require.NoError(t, err)

	require.NoError(t, s.RemoveCollection(ctx, "notes"))

	doc, _, err := s.FindDocument(ctx, "", "a.md", false)
	require.Error(t, err)
	require.Nil(t, doc)

	var total int
	require.NoError(t, s.db.QueryRow(`SELECT COUNT(*) FROM documents WHERE collection='notes'`).Scan(&total))
	require.Equal(t, 1, total, "deactivated rows are kept until cleanup")
}

func TestRenameCollection_RetargetsDocuments(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.AddCollection(ctx, "old", "/o", ""))
	_, err := s.AddOrUpdateDocument(ctx, "old", "a.md", "hello")
	require.NoError(t, err)

	require.NoError(t, s.RenameCollection(ctx, "old", "new"))

	doc, _, err := s.FindDocument(ctx, "new", "a.md", false)
	require.NoError(t, err)
	require.Equal(t, "new", doc.Collection)
}

func TestAddContext_UpsertsAndLists(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.AddContext(ctx, "qmd://notes", "personal notes"))
	require.NoError(t, s.AddContext(ctx, "qmd://notes", "updated description"))

	contexts, err := s.ListContexts(ctx)
	require.NoError(t, err)
	require.Len(t, contexts, 1)
	require.Equal(t, "updated description", contexts[0].Text)
}

func TestRemoveContext_NotFound(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	err := s.RemoveContext(ctx, "qmd://missing")
	require.Error(t, err)
	require.Equal(t, qmderrors.CategoryNotFound, qmderrors.GetCategory(err))
}

func TestSettings_GetSetAndMissing(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	_, err := s.GetSetting(ctx, "embedding_provider")
	require.Error(t, err)

	require.NoError(t, s.SetSetting(ctx, "embedding_provider", "local"))
	value, err := s.GetSetting(ctx, "embedding_provider")
	require.NoError(t, err)
	require.Equal(t, "local", value)
}

func TestLLMCache_RoundTrip(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	key := LLMCacheKey("what is the deadline")
	_, ok, err := s.GetLLMCache(ctx, "qwen3", LLMCachePurposeExpand, key)
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, s.PutLLMCache(ctx, "qwen3", LLMCachePurposeExpand, key, `["deadline date","due date"]`))

	response, ok, err := s.GetLLMCache(ctx, "qwen3", LLMCachePurposeExpand, key)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, `["deadline date","due date"]`, response)

	n, err := s.DeleteLLMCache(ctx)
	require.NoError(t, err)
	require.Equal(t, int64(1), n)
}

package source

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seedLocal(t *testing.T, path string) *LocalSearch {
	t.Helper()
	store, err := OpenLocal(path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	ctx := context.Background()
	posts := []Candidate{
		{
			CanonicalID: "post://alice/1",
			Author:      "alice.example.com",
			Text:        "Watching the northern lights tonight",
			CreatedAt:   time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
			Likes:       12,
		},
		{
			CanonicalID: "post://bob/1",
			Author:      "bob.example.com",
			Text:        "Lights out, heading to bed",
			CreatedAt:   time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC),
			Likes:       3,
		},
		{
			CanonicalID: "post://alice/2",
			Author:      "alice.example.com",
			Text:        "Morning coffee thoughts",
			CreatedAt:   time.Date(2026, 3, 3, 8, 0, 0, 0, time.UTC),
			Replies:     2,
		},
	}
	for _, p := range posts {
		require.NoError(t, store.Put(ctx, p))
	}
	return store
}

func TestLocalSearchByTerm(t *testing.T) {
	store := seedLocal(t, "")
	ctx := context.Background()

	res, err := store.Search(ctx, Query{Term: "lights"})
	require.NoError(t, err)
	require.Len(t, res.Candidates, 2)

	// Newest first
	assert.Equal(t, "post://bob/1", res.Candidates[0].CanonicalID)
	assert.Equal(t, "post://alice/1", res.Candidates[1].CanonicalID)
	for _, c := range res.Candidates {
		assert.Equal(t, OriginLocal, c.Origin)
	}
}

func TestLocalSearchCaseInsensitive(t *testing.T) {
	store := seedLocal(t, "")

	res, err := store.Search(context.Background(), Query{Term: "LIGHTS"})
	require.NoError(t, err)
	assert.Len(t, res.Candidates, 2)
}

func TestLocalSearchAuthorFilter(t *testing.T) {
	store := seedLocal(t, "")

	res, err := store.Search(context.Background(), Query{Term: "lights", Author: "alice.example.com"})
	require.NoError(t, err)
	require.Len(t, res.Candidates, 1)
	assert.Equal(t, "post://alice/1", res.Candidates[0].CanonicalID)
}

func TestLocalSearchNoMatchesIsNotAnError(t *testing.T) {
	store := seedLocal(t, "")

	res, err := store.Search(context.Background(), Query{Term: "zebra"})
	require.NoError(t, err)
	assert.Empty(t, res.Candidates)
}

func TestLocalSearchEmptyTermReturnsRecent(t *testing.T) {
	store := seedLocal(t, "")

	res, err := store.Search(context.Background(), Query{Limit: 2})
	require.NoError(t, err)
	require.Len(t, res.Candidates, 2)
	assert.Equal(t, "post://alice/2", res.Candidates[0].CanonicalID)
}

func TestLocalPutUpsert(t *testing.T) {
	store := seedLocal(t, "")
	ctx := context.Background()

	require.NoError(t, store.Put(ctx, Candidate{
		CanonicalID: "post://alice/1",
		Author:      "alice.example.com",
		Text:        "Watching the northern lights tonight (edited)",
		CreatedAt:   time.Date(2026, 3, 1, 12, 5, 0, 0, time.UTC),
		Likes:       20,
	}))

	n, err := store.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	res, err := store.Search(ctx, Query{Term: "edited"})
	require.NoError(t, err)
	require.Len(t, res.Candidates, 1)
	assert.Equal(t, int64(20), res.Candidates[0].Likes)
}

func TestLocalPutRequiresCanonicalID(t *testing.T) {
	store := seedLocal(t, "")
	err := store.Put(context.Background(), Candidate{Text: "orphan"})
	assert.Error(t, err)
}

func TestLocalOnDisk(t *testing.T) {
	path := filepath.Join(t.TempDir(), "posts.db")
	store := seedLocal(t, path)

	res, err := store.Search(context.Background(), Query{Term: "coffee"})
	require.NoError(t, err)
	assert.Len(t, res.Candidates, 1)
}

package source

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func remoteTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/search/posts" {
			http.NotFound(w, r)
			return
		}
		if r.Header.Get("Authorization") != "Bearer good-token" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}

		resp := remoteSearchResponse{}
		switch r.URL.Query().Get("cursor") {
		case "":
			resp.Posts = []remotePost{{
				URI:       "post://carol/1",
				Text:      "Aurora photos from last night",
				Author:    "carol.example.com",
				CreatedAt: time.Date(2026, 3, 4, 22, 0, 0, 0, time.UTC),
				Likes:     40,
			}}
			resp.Cursor = "page-2"
		case "page-2":
			resp.Posts = []remotePost{{
				URI:       "post://dave/1",
				Text:      "Night sky timelapse",
				Author:    "dave.example.com",
				CreatedAt: time.Date(2026, 3, 4, 21, 0, 0, 0, time.UTC),
			}}
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(resp)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestRemoteSearch(t *testing.T) {
	srv := remoteTestServer(t)
	client := NewRemoteSearch(srv.URL, &Session{Handle: "me", AccessToken: "good-token"},
		WithHTTPClient(srv.Client()), WithRateLimit(0, 0))

	res, err := client.Search(context.Background(), Query{Term: "aurora", Limit: 10})
	require.NoError(t, err)
	require.Len(t, res.Candidates, 1)
	assert.Equal(t, "post://carol/1", res.Candidates[0].CanonicalID)
	assert.Equal(t, OriginRemote, res.Candidates[0].Origin)
	assert.Equal(t, "page-2", res.NextCursor)

	// Follow the cursor
	res, err = client.Search(context.Background(), Query{Term: "aurora", Cursor: res.NextCursor})
	require.NoError(t, err)
	require.Len(t, res.Candidates, 1)
	assert.Equal(t, "post://dave/1", res.Candidates[0].CanonicalID)
	assert.Empty(t, res.NextCursor)
}

func TestRemoteSearchNoSession(t *testing.T) {
	client := NewRemoteSearch("http://unused", nil)
	assert.False(t, client.Authenticated())

	_, err := client.Search(context.Background(), Query{Term: "x"})
	assert.ErrorIs(t, err, ErrUnauthenticated)
}

func TestRemoteSearchRejectedToken(t *testing.T) {
	srv := remoteTestServer(t)
	client := NewRemoteSearch(srv.URL, &Session{Handle: "me", AccessToken: "bad-token"},
		WithHTTPClient(srv.Client()), WithRateLimit(0, 0))

	_, err := client.Search(context.Background(), Query{Term: "x"})
	assert.ErrorIs(t, err, ErrUnauthenticated)
}

func TestRemoteSearchServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	t.Cleanup(srv.Close)

	client := NewRemoteSearch(srv.URL, &Session{AccessToken: "good-token"},
		WithHTTPClient(srv.Client()), WithRateLimit(0, 0))

	_, err := client.Search(context.Background(), Query{Term: "x"})
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrUnauthenticated)
}

func TestProfileSearch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/profiles/search" {
			http.NotFound(w, r)
			return
		}
		assert.Equal(t, "astro", r.URL.Query().Get("q"))
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(profileSearchResponse{
			Profiles: []profileEntry{{
				URI:         "profile://astro.example.com",
				Handle:      "astro.example.com",
				DisplayName: "Astro Watcher",
				Description: "Night sky photography",
				Followers:   500,
			}},
		})
	}))
	t.Cleanup(srv.Close)

	client := NewProfileSearch(srv.URL, srv.Client())
	res, err := client.Search(context.Background(), Query{Term: "astro"})
	require.NoError(t, err)
	require.Len(t, res.Candidates, 1)

	c := res.Candidates[0]
	assert.Equal(t, "profile://astro.example.com", c.CanonicalID)
	assert.Equal(t, "Astro Watcher Night sky photography", c.Text)
	assert.Equal(t, OriginProfile, c.Origin)
}

func TestProfileSearchServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	t.Cleanup(srv.Close)

	client := NewProfileSearch(srv.URL, srv.Client())
	_, err := client.Search(context.Background(), Query{Term: "x"})
	assert.Error(t, err)
}

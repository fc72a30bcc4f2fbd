package source

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"golang.org/x/time/rate"

	skyerrors "github.com/skysift/skysift/internal/errors"
)

// RemoteSearch is the client for the authenticated remote search API.
// Requests carry the session bearer token and are rate limited.
type RemoteSearch struct {
	endpoint string
	session  *Session
	client   *http.Client
	limiter  *rate.Limiter
}

// RemoteOption customizes a RemoteSearch.
type RemoteOption func(*RemoteSearch)

// WithHTTPClient overrides the HTTP client (used by tests).
func WithHTTPClient(c *http.Client) RemoteOption {
	return func(r *RemoteSearch) {
		r.client = c
	}
}

// WithRateLimit sets the outgoing request rate. ratePerSec <= 0 disables
// limiting.
func WithRateLimit(ratePerSec float64, burst int) RemoteOption {
	return func(r *RemoteSearch) {
		if ratePerSec <= 0 {
			r.limiter = nil
			return
		}
		if burst < 1 {
			burst = 1
		}
		r.limiter = rate.NewLimiter(rate.Limit(ratePerSec), burst)
	}
}

// NewRemoteSearch creates a client for the given API base URL. The session
// may be nil; Search then fails with ErrUnauthenticated.
func NewRemoteSearch(endpoint string, session *Session, opts ...RemoteOption) *RemoteSearch {
	r := &RemoteSearch{
		endpoint: endpoint,
		session:  session,
		client:   &http.Client{Timeout: 30 * time.Second},
		limiter:  rate.NewLimiter(rate.Limit(10), 20),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Origin implements Searcher.
func (r *RemoteSearch) Origin() Origin {
	return OriginRemote
}

// Authenticated reports whether the client holds a usable session.
func (r *RemoteSearch) Authenticated() bool {
	return r.session.Valid()
}

// remotePost is the wire shape of one post.
type remotePost struct {
	URI       string    `json:"uri"`
	Text      string    `json:"text"`
	Author    string    `json:"author"`
	CreatedAt time.Time `json:"created_at"`
	Likes     int64     `json:"likes"`
	Reposts   int64     `json:"reposts"`
	Replies   int64     `json:"replies"`
}

type remoteSearchResponse struct {
	Posts  []remotePost `json:"posts"`
	Cursor string       `json:"cursor"`
}

// Search queries the remote API for one page of results. A missing or
// rejected session returns ErrUnauthenticated; the caller decides whether
// that is a silent skip or a reportable status.
func (r *RemoteSearch) Search(ctx context.Context, q Query) (Result, error) {
	if !r.Authenticated() {
		return Result{}, ErrUnauthenticated
	}

	if r.limiter != nil {
		if err := r.limiter.Wait(ctx); err != nil {
			return Result{}, err
		}
	}

	u, err := url.Parse(r.endpoint + "/v1/search/posts")
	if err != nil {
		return Result{}, skyerrors.Wrap(err, skyerrors.ErrCodeSourceFailed,
			"building remote search URL")
	}

	params := url.Values{}
	params.Set("q", q.Term)
	if q.Limit > 0 {
		params.Set("limit", strconv.Itoa(q.Limit))
	}
	if q.Author != "" {
		params.Set("author", q.Author)
	}
	if q.Cursor != "" {
		params.Set("cursor", q.Cursor)
	}
	u.RawQuery = params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return Result{}, skyerrors.Wrap(err, skyerrors.ErrCodeSourceFailed,
			"building remote search request")
	}
	req.Header.Set("Authorization", "Bearer "+r.session.AccessToken)
	req.Header.Set("Accept", "application/json")

	resp, err := r.client.Do(req)
	if err != nil {
		return Result{}, skyerrors.Wrap(err, skyerrors.ErrCodeSourceFailed,
			"remote search request")
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return Result{}, fmt.Errorf("remote search: %w", ErrUnauthenticated)
	case resp.StatusCode != http.StatusOK:
		return Result{}, skyerrors.Newf(skyerrors.ErrCodeSourceFailed,
			"remote search returned status %d", resp.StatusCode)
	}

	var body remoteSearchResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return Result{}, skyerrors.Wrap(err, skyerrors.ErrCodeSourceFailed,
			"decoding remote search response")
	}

	out := make([]Candidate, 0, len(body.Posts))
	for _, p := range body.Posts {
		out = append(out, Candidate{
			CanonicalID: p.URI,
			Text:        p.Text,
			Author:      p.Author,
			CreatedAt:   p.CreatedAt.UTC(),
			Likes:       p.Likes,
			Reposts:     p.Reposts,
			Replies:     p.Replies,
			Origin:      OriginRemote,
		})
	}

	return Result{Candidates: out, NextCursor: body.Cursor}, nil
}

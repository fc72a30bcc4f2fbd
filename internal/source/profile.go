package source

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strconv"
	"time"

	skyerrors "github.com/skysift/skysift/internal/errors"
)

// ProfileSearch is the client for the public profile/feed directory. No
// authentication; profiles come back shaped as candidates so the merge
// and ranking paths treat them uniformly.
type ProfileSearch struct {
	endpoint string
	client   *http.Client
}

// NewProfileSearch creates a client for the given directory base URL.
func NewProfileSearch(endpoint string, client *http.Client) *ProfileSearch {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return &ProfileSearch{endpoint: endpoint, client: client}
}

// Origin implements Searcher.
func (p *ProfileSearch) Origin() Origin {
	return OriginProfile
}

type profileEntry struct {
	URI         string    `json:"uri"`
	Handle      string    `json:"handle"`
	DisplayName string    `json:"display_name"`
	Description string    `json:"description"`
	CreatedAt   time.Time `json:"created_at"`
	Followers   int64     `json:"followers"`
}

type profileSearchResponse struct {
	Profiles []profileEntry `json:"profiles"`
}

// Search queries the directory for profiles matching the term.
func (p *ProfileSearch) Search(ctx context.Context, q Query) (Result, error) {
	u, err := url.Parse(p.endpoint + "/v1/profiles/search")
	if err != nil {
		return Result{}, skyerrors.Wrap(err, skyerrors.ErrCodeSourceFailed,
			"building profile search URL")
	}

	params := url.Values{}
	params.Set("q", q.Term)
	if q.Limit > 0 {
		params.Set("limit", strconv.Itoa(q.Limit))
	}
	u.RawQuery = params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return Result{}, skyerrors.Wrap(err, skyerrors.ErrCodeSourceFailed,
			"building profile search request")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return Result{}, skyerrors.Wrap(err, skyerrors.ErrCodeSourceFailed,
			"profile search request")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Result{}, skyerrors.Newf(skyerrors.ErrCodeSourceFailed,
			"profile search returned status %d", resp.StatusCode)
	}

	var body profileSearchResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return Result{}, skyerrors.Wrap(err, skyerrors.ErrCodeSourceFailed,
			"decoding profile search response")
	}

	out := make([]Candidate, 0, len(body.Profiles))
	for _, pr := range body.Profiles {
		text := pr.DisplayName
		if pr.Description != "" {
			if text != "" {
				text += " "
			}
			text += pr.Description
		}
		out = append(out, Candidate{
			CanonicalID: pr.URI,
			Text:        text,
			Author:      pr.Handle,
			CreatedAt:   pr.CreatedAt.UTC(),
			Likes:       pr.Followers,
			Origin:      OriginProfile,
		})
	}

	return Result{Candidates: out}, nil
}

// Package identity consumes the external Identity Directory. Profiles are
// display data only and are never used for authorization decisions.
package identity

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Profile is the human-readable identity of a user.
type Profile struct {
	UserID      string `json:"user_id"`
	Username    string `json:"username"`
	DisplayName string `json:"display_name"`
	PhotoURL    string `json:"photo_url,omitempty"`
}

// Directory resolves user ids to display profiles and powers the
// invite-composition user search.
type Directory interface {
	ResolveProfile(ctx context.Context, userID string) (Profile, error)
	SearchUsers(ctx context.Context, prefix, excludingUserID string) ([]Profile, error)
}

// ──────────────────── HTTP client ────────────────────

// Client talks to the identity service over HTTP.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 5 * time.Second,
		},
	}
}

func (c *Client) ResolveProfile(ctx context.Context, userID string) (Profile, error) {
	var p Profile
	endpoint := fmt.Sprintf("%s/api/v1/users/%s/profile", c.baseURL, url.PathEscape(userID))
	if err := c.getJSON(ctx, endpoint, &p); err != nil {
		return Profile{}, fmt.Errorf("resolve profile %s: %w", userID, err)
	}
	return p, nil
}

func (c *Client) SearchUsers(ctx context.Context, prefix, excludingUserID string) ([]Profile, error) {
	q := url.Values{}
	q.Set("prefix", prefix)
	if excludingUserID != "" {
		q.Set("excluding", excludingUserID)
	}
	var profiles []Profile
	endpoint := c.baseURL + "/api/v1/users/search?" + q.Encode()
	if err := c.getJSON(ctx, endpoint, &profiles); err != nil {
		return nil, fmt.Errorf("search users: %w", err)
	}
	return profiles, nil
}

func (c *Client) getJSON(ctx context.Context, endpoint string, dst interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("identity service returned %d", resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(dst)
}

// ──────────────────── Static directory ────────────────────

// Static is a fixed in-memory directory, used in tests and local dev mode.
type Static map[string]Profile

func (s Static) ResolveProfile(_ context.Context, userID string) (Profile, error) {
	p, ok := s[userID]
	if !ok {
		return Profile{}, fmt.Errorf("unknown user %s", userID)
	}
	return p, nil
}

func (s Static) SearchUsers(_ context.Context, prefix, excludingUserID string) ([]Profile, error) {
	var out []Profile
	for id, p := range s {
		if id == excludingUserID {
			continue
		}
		lower := strings.ToLower(prefix)
		if prefix == "" ||
			strings.HasPrefix(strings.ToLower(p.Username), lower) ||
			strings.HasPrefix(strings.ToLower(p.DisplayName), lower) {
			out = append(out, p)
		}
	}
	return out, nil
}

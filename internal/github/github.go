// Package github implements the minimal slice of the GitHub OAuth web
// flow the gateway needs: building the authorize redirect, exchanging a
// callback code for a bearer token, and fetching the user profile.
package github

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const (
	defaultAuthorizeURL = "https://github.com/login/oauth/authorize"
	defaultTokenURL     = "https://github.com/login/oauth/access_token"
	defaultUserURL      = "https://api.github.com/user"

	maxResponseBytes = 1 << 20
)

// Profile is the subset of the GitHub user object the gateway consumes.
type Profile struct {
	Login     string `json:"login"`
	ID        int64  `json:"id"`
	Email     string `json:"email"`
	Name      string `json:"name"`
	AvatarURL string `json:"avatar_url"`
	Company   string `json:"company"`
}

type Client struct {
	clientID     string
	clientSecret string
	httpClient   *http.Client

	// Endpoint overrides for tests; zero values mean the public API.
	authorizeURL string
	tokenURL     string
	userURL      string
}

func NewClient(clientID, clientSecret string) *Client {
	return &Client{
		clientID:     clientID,
		clientSecret: clientSecret,
		httpClient:   &http.Client{Timeout: 15 * time.Second},
		authorizeURL: defaultAuthorizeURL,
		tokenURL:     defaultTokenURL,
		userURL:      defaultUserURL,
	}
}

// WithEndpoints overrides the GitHub endpoints, for pointing the flow at
// a local stub. Empty values keep the current endpoint.
func (c *Client) WithEndpoints(authorize, token, user string) *Client {
	if authorize != "" {
		c.authorizeURL = authorize
	}
	if token != "" {
		c.tokenURL = token
	}
	if user != "" {
		c.userURL = user
	}
	return c
}

// Configured reports whether both OAuth credentials are present. An
// unconfigured client keeps the GitHub route responding 503 instead of
// sending users into a broken flow.
func (c *Client) Configured() bool {
	return c != nil && c.clientID != "" && c.clientSecret != ""
}

// AuthorizeURL builds the redirect that starts the flow. The state value
// is echoed back on the callback and checked against the state cookie.
func (c *Client) AuthorizeURL(redirectURI, state string) string {
	q := url.Values{}
	q.Set("client_id", c.clientID)
	q.Set("redirect_uri", redirectURI)
	q.Set("scope", "read:user user:email")
	q.Set("state", state)
	return c.authorizeURL + "?" + q.Encode()
}

// NewState returns a random value for CSRF protection of the flow.
func NewState() (string, error) {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generating oauth state: %w", err)
	}
	return hex.EncodeToString(buf), nil
}

// ExchangeCode trades the callback code for an access token and fetches
// the profile it belongs to.
func (c *Client) ExchangeCode(ctx context.Context, code string) (Profile, error) {
	token, err := c.fetchToken(ctx, code)
	if err != nil {
		return Profile{}, err
	}
	return c.fetchProfile(ctx, token)
}

func (c *Client) fetchToken(ctx context.Context, code string) (string, error) {
	form := url.Values{}
	form.Set("client_id", c.clientID)
	form.Set("client_secret", c.clientSecret)
	form.Set("code", code)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.tokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("token exchange: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return "", fmt.Errorf("token exchange: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("token exchange: unexpected status %d", resp.StatusCode)
	}

	var payload struct {
		AccessToken      string `json:"access_token"`
		Error            string `json:"error"`
		ErrorDescription string `json:"error_description"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return "", fmt.Errorf("token exchange: %w", err)
	}
	if payload.Error != "" {
		return "", fmt.Errorf("token exchange: %s: %s", payload.Error, payload.ErrorDescription)
	}
	if payload.AccessToken == "" {
		return "", fmt.Errorf("token exchange: response carried no access token")
	}
	return payload.AccessToken, nil
}

func (c *Client) fetchProfile(ctx context.Context, token string) (Profile, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.userURL, nil)
	if err != nil {
		return Profile{}, err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/vnd.github+json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return Profile{}, fmt.Errorf("fetching user profile: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return Profile{}, fmt.Errorf("fetching user profile: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return Profile{}, fmt.Errorf("fetching user profile: unexpected status %d", resp.StatusCode)
	}

	var profile Profile
	if err := json.Unmarshal(body, &profile); err != nil {
		return Profile{}, fmt.Errorf("fetching user profile: %w", err)
	}
	if profile.Login == "" {
		return Profile{}, fmt.Errorf("fetching user profile: response carried no login")
	}
	return profile, nil
}

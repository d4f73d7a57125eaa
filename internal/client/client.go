package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/geofront/geofront-cli/internal/models"
	"github.com/geofront/geofront-cli/pkg/secrets"
)

// Config carries the explicit dependencies of a Client; there is no
// package-level default state.
type Config struct {
	ServerURL  string
	HTTPClient *http.Client
	TokenStore secrets.TokenStore
	Logger     zerolog.Logger
}

// Client talks to a configured Geofront server. It never retries requests
// on its own; recovery from expired sessions is the caller's loop.
type Client struct {
	serverURL *url.URL
	http      *http.Client
	tokens    secrets.TokenStore
	logger    zerolog.Logger
}

// New creates a Client for the given server.
func New(cfg Config) (*Client, error) {
	u, err := url.Parse(cfg.ServerURL)
	if err != nil {
		return nil, fmt.Errorf("invalid server URL %q: %w", cfg.ServerURL, err)
	}
	if u.Scheme != "https" && u.Scheme != "http" {
		return nil, fmt.Errorf("invalid server URL %q: scheme must be https or http", cfg.ServerURL)
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &Client{
		serverURL: u,
		http:      httpClient,
		tokens:    cfg.TokenStore,
		logger:    cfg.Logger,
	}, nil
}

// ServerURL returns the configured server URL.
func (c *Client) ServerURL() string {
	return c.serverURL.String()
}

// Ceremony is a started authentication ceremony. NextURL is the page the
// user must visit; TokenID becomes the session credential once the ceremony
// finishes.
type Ceremony struct {
	TokenID string
	NextURL string
}

// Identity is the authenticated identity the server reports for a token.
type Identity struct {
	TeamType   string `json:"team_type"`
	Identifier string `json:"identifier"`
}

// errorBody is the JSON shape of the server's failure responses.
type errorBody struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// request issues one HTTP request against the server. The protocol version
// header is validated before anything touches the body. Token-state
// failures (missing, expired, unfinished) are decoded here, at the HTTP
// boundary, so no caller re-inspects those status codes. For every other
// response the body is returned intact (buffered for 4xx JSON responses so
// callers can still decode it).
func (c *Client) request(ctx context.Context, method string, pathParts []string, body io.Reader, headers http.Header) (*http.Response, error) {
	u := c.serverURL.JoinPath(pathParts...)
	req, err := http.NewRequestWithContext(ctx, method, u.String(), body)
	if err != nil {
		return nil, fmt.Errorf("failed to build %s request: %w", method, err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", UserAgent())
	for name, values := range headers {
		req.Header[name] = values
	}

	c.logger.Debug().Str("method", method).Str("url", u.String()).Msg("Requesting Geofront server")
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request to %s failed: %w", u, err)
	}

	if err := checkProtocolVersion(resp.Header); err != nil {
		resp.Body.Close()
		return nil, err
	}

	if resp.StatusCode >= 400 && resp.StatusCode < 500 && mimeType(resp.Header.Get("Content-Type")) == "application/json" {
		raw, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			return nil, fmt.Errorf("failed to read error response: %w", err)
		}
		var body errorBody
		// a non-object body simply falls through with a zero errorBody
		_ = json.Unmarshal(raw, &body)
		switch {
		case resp.StatusCode == http.StatusNotFound && body.Error == "token-not-found",
			resp.StatusCode == http.StatusGone && body.Error == "expired-token":
			return nil, ErrExpiredToken
		case resp.StatusCode == http.StatusPreconditionFailed && body.Error == "unfinished-authentication":
			return nil, &UnfinishedAuthenticationError{Message: body.Message}
		}
		resp.Body = io.NopCloser(bytes.NewReader(raw))
	}
	return resp, nil
}

// mimeType strips parameters like charset from a Content-Type value.
func mimeType(contentType string) string {
	mediatype, _, _ := strings.Cut(contentType, ";")
	return strings.TrimSpace(mediatype)
}

// tokenID reads the stored session credential. A missing credential is
// ErrNoToken, distinguishable from an expired one.
func (c *Client) tokenID() (string, error) {
	token, err := c.tokens.Get(c.serverURL.String())
	if err != nil {
		if errors.Is(err, secrets.ErrNotFound) {
			return "", ErrNoToken
		}
		return "", err
	}
	return token, nil
}

// Authenticate asks the server to begin an authentication ceremony for a
// fresh token id and returns the ceremony. The token id only becomes the
// session credential after CompleteAuthentication.
func (c *Client) Authenticate(ctx context.Context) (Ceremony, error) {
	tokenID := strings.ReplaceAll(uuid.New().String(), "-", "")
	resp, err := c.request(ctx, http.MethodPut, []string{"tokens", tokenID}, nil, nil)
	if err != nil {
		return Ceremony{}, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusAccepted {
		return Ceremony{}, fmt.Errorf("unexpected status %d while starting authentication", resp.StatusCode)
	}
	var result struct {
		NextURL string `json:"next_url"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return Ceremony{}, fmt.Errorf("failed to decode authentication response: %w", err)
	}
	c.logger.Debug().Str("token", tokenID).Msg("Authentication ceremony started")
	return Ceremony{TokenID: tokenID, NextURL: result.NextURL}, nil
}

// CompleteAuthentication verifies that the ceremony for tokenID finished
// and persists the token id as the session credential. While the ceremony
// is incomplete this fails with UnfinishedAuthenticationError and the
// caller may retry.
func (c *Client) CompleteAuthentication(ctx context.Context, tokenID string) (Identity, error) {
	identity, err := c.fetchIdentity(ctx, tokenID)
	if err != nil {
		return Identity{}, err
	}
	if err := c.tokens.Set(c.serverURL.String(), tokenID); err != nil {
		return Identity{}, err
	}
	c.logger.Info().Str("identifier", identity.Identifier).Msg("Authenticated to Geofront server")
	return identity, nil
}

// Identity returns the authenticated identity for the stored credential.
func (c *Client) Identity(ctx context.Context) (Identity, error) {
	token, err := c.tokenID()
	if err != nil {
		return Identity{}, err
	}
	return c.fetchIdentity(ctx, token)
}

func (c *Client) fetchIdentity(ctx context.Context, tokenID string) (Identity, error) {
	resp, err := c.request(ctx, http.MethodGet, []string{"tokens", tokenID}, nil, nil)
	if err != nil {
		return Identity{}, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return Identity{}, fmt.Errorf("unexpected status %d while fetching identity", resp.StatusCode)
	}
	var identity Identity
	if err := json.NewDecoder(resp.Body).Decode(&identity); err != nil {
		return Identity{}, fmt.Errorf("failed to decode identity response: %w", err)
	}
	return identity, nil
}

// Authorize asks the server for short-lived access to the remote behind
// alias and returns its connection coordinates. Session failures surface as
// ErrNoToken or ErrExpiredToken for the caller's retry loop; alias and
// remote-state failures are reported verbatim and never retried here.
func (c *Client) Authorize(ctx context.Context, alias string) (models.Remote, error) {
	token, err := c.tokenID()
	if err != nil {
		return models.Remote{}, err
	}
	resp, err := c.request(ctx, http.MethodPost, []string{"tokens", token, "remotes", alias}, nil, nil)
	if err != nil {
		return models.Remote{}, err
	}
	defer resp.Body.Close()

	outcome, err := decodeAuthorizeResponse(resp)
	if err != nil {
		return models.Remote{}, err
	}
	switch outcome.kind {
	case outcomeAuthorized:
		c.logger.Info().Str("alias", alias).Str("remote", outcome.remote.String()).
			Msg("Access to remote authorized")
		return outcome.remote, nil
	case outcomeNotFound:
		return models.Remote{}, &RemoteAliasError{Alias: alias, Message: outcome.message}
	case outcomeConnectionFailure:
		return models.Remote{}, &RemoteStateError{Alias: alias, Message: outcome.message}
	default:
		return models.Remote{}, fmt.Errorf("unexpected authorize outcome for alias %q", alias)
	}
}

// Remotes lists every remote registered for the authenticated identity.
func (c *Client) Remotes(ctx context.Context) (map[string]models.Remote, error) {
	token, err := c.tokenID()
	if err != nil {
		return nil, err
	}
	resp, err := c.request(ctx, http.MethodGet, []string{"tokens", token, "remotes"}, nil, nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d while listing remotes", resp.StatusCode)
	}
	var remotes map[string]models.Remote
	if err := json.NewDecoder(resp.Body).Decode(&remotes); err != nil {
		return nil, fmt.Errorf("failed to decode remotes response: %w", err)
	}
	return remotes, nil
}

// MasterKey returns the server's current master public key in
// authorized_keys format.
func (c *Client) MasterKey(ctx context.Context) (string, error) {
	token, err := c.tokenID()
	if err != nil {
		return "", err
	}
	headers := http.Header{"Accept": []string{"text/plain"}}
	resp, err := c.request(ctx, http.MethodGet, []string{"tokens", token, "masterkey"}, nil, headers)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK || mimeType(resp.Header.Get("Content-Type")) != "text/plain" {
		return "", fmt.Errorf("server failed to show the master key (status %d)", resp.StatusCode)
	}
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read master key: %w", err)
	}
	return strings.TrimSpace(string(raw)), nil
}

// Keys lists the public keys registered for the authenticated identity,
// keyed by fingerprint.
func (c *Client) Keys(ctx context.Context) (map[string]string, error) {
	token, err := c.tokenID()
	if err != nil {
		return nil, err
	}
	resp, err := c.request(ctx, http.MethodGet, []string{"tokens", token, "keys"}, nil, nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d while listing keys", resp.StatusCode)
	}
	var keys map[string]string
	if err := json.NewDecoder(resp.Body).Decode(&keys); err != nil {
		return nil, fmt.Errorf("failed to decode keys response: %w", err)
	}
	return keys, nil
}

// RegisterKey registers a public key (authorized_keys format) for the
// authenticated identity.
func (c *Client) RegisterKey(ctx context.Context, keyLine string) error {
	token, err := c.tokenID()
	if err != nil {
		return err
	}
	headers := http.Header{"Content-Type": []string{"text/plain"}}
	resp, err := c.request(ctx, http.MethodPost, []string{"tokens", token, "keys"},
		strings.NewReader(keyLine), headers)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	switch {
	case resp.StatusCode == http.StatusCreated:
		return nil
	case resp.StatusCode == http.StatusBadRequest:
		var body errorBody
		if err := json.NewDecoder(resp.Body).Decode(&body); err == nil && body.Error == "duplicate-key" {
			return ErrDuplicateKey
		}
		return fmt.Errorf("server rejected the public key")
	default:
		return fmt.Errorf("unexpected status %d while registering key", resp.StatusCode)
	}
}

// TunnelURL returns the authorization-scoped WebSocket URL carrying SSH
// bytes for the remote behind alias.
func (c *Client) TunnelURL(alias string) (string, error) {
	token, err := c.tokenID()
	if err != nil {
		return "", err
	}
	u := c.serverURL.JoinPath("ws", "tokens", token, "remotes", alias, "ssh")
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	case "http":
		u.Scheme = "ws"
	}
	// the server routes the handshake on the slashed path
	if !strings.HasSuffix(u.Path, "/") {
		u.Path += "/"
	}
	return u.String(), nil
}

// Cartographus - Media Server Analytics and Geographic Visualization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cartographus

package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"

	"github.com/tomtom215/cartographus/internal/perr"
)

// ClipCatalogToken is the response body of the clip catalog's
// client-credentials token endpoint.
type ClipCatalogToken struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int64  `json:"expires_in"` // seconds
}

// OAuthTokenSource acquires and caches a client-credentials bearer token
// for the upstream clip catalog API. It refreshes the token pre-expiry
// (now + skew < expires_at) and validates a freshly-acquired token
// against the catalog's verify endpoint before caching it.
type OAuthTokenSource struct {
	clientID     string
	clientSecret string
	tokenURL     string
	verifyURL    string
	skew         time.Duration
	httpClient   *http.Client

	mu        sync.Mutex
	cached    string
	expiresAt time.Time
}

// NewOAuthTokenSource creates a token source for the given client-credentials
// grant and verify endpoint. skew is how far before expiry a cached token is
// considered stale (spec default: 60s).
func NewOAuthTokenSource(clientID, clientSecret, tokenURL, verifyURL string, skew time.Duration) *OAuthTokenSource {
	if skew <= 0 {
		skew = 60 * time.Second
	}
	return &OAuthTokenSource{
		clientID:     clientID,
		clientSecret: clientSecret,
		tokenURL:     tokenURL,
		verifyURL:    verifyURL,
		skew:         skew,
		httpClient:   &http.Client{Timeout: 30 * time.Second},
	}
}

// Token returns a valid bearer token, refreshing it if the cached one is
// within skew of expiry.
func (s *OAuthTokenSource) Token(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cached != "" && time.Now().Add(s.skew).Before(s.expiresAt) {
		return s.cached, nil
	}

	tok, err := s.acquire(ctx)
	if err != nil {
		return "", err
	}
	if err := s.verify(ctx, tok.AccessToken); err != nil {
		return "", err
	}

	s.cached = tok.AccessToken
	s.expiresAt = time.Now().Add(time.Duration(tok.ExpiresIn) * time.Second)
	return s.cached, nil
}

// acquire runs the client-credentials grant via
// golang.org/x/oauth2/clientcredentials, the library built for this exact
// flow. Its Config.Token does the form-encode/POST/decode cycle
// oauth.go used to hand-roll; only the catalog's own verify step below
// (which clientcredentials has no hook for) stays custom.
func (s *OAuthTokenSource) acquire(ctx context.Context) (*ClipCatalogToken, error) {
	cc := &clientcredentials.Config{
		ClientID:     s.clientID,
		ClientSecret: s.clientSecret,
		TokenURL:     s.tokenURL,
		AuthStyle:    oauth2.AuthStyleInParams,
	}
	ctx = context.WithValue(ctx, oauth2.HTTPClient, s.httpClient)

	tok, err := cc.Token(ctx)
	if err != nil {
		var retrieveErr *oauth2.RetrieveError
		if errors.As(err, &retrieveErr) && retrieveErr.Response != nil {
			status := retrieveErr.Response.StatusCode
			if status >= 500 {
				return nil, perr.UpstreamTemporary("oauth.acquire", fmt.Sprintf("token endpoint returned %d", status), err)
			}
			return nil, perr.Auth("oauth.acquire", fmt.Sprintf("token endpoint returned %d", status), err)
		}
		return nil, perr.UpstreamTemporary("oauth.acquire", "token request failed", err)
	}
	if tok.AccessToken == "" {
		return nil, perr.Auth("oauth.acquire", "empty access token in response", nil)
	}

	expiresIn := int64(3600)
	if !tok.Expiry.IsZero() {
		if remaining := int64(time.Until(tok.Expiry).Seconds()); remaining > 0 {
			expiresIn = remaining
		}
	}
	return &ClipCatalogToken{AccessToken: tok.AccessToken, TokenType: tok.TokenType, ExpiresIn: expiresIn}, nil
}

// verify validates a freshly acquired token against the catalog's verify
// endpoint before it is trusted and cached.
func (s *OAuthTokenSource) verify(ctx context.Context, token string) error {
	if s.verifyURL == "" {
		return nil
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.verifyURL, nil)
	if err != nil {
		return perr.Auth("oauth.verify", "failed to build verify request", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return perr.UpstreamTemporary("oauth.verify", "verify request failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 500 {
		return perr.UpstreamTemporary("oauth.verify", fmt.Sprintf("verify endpoint returned %d", resp.StatusCode), nil)
	}
	if resp.StatusCode != http.StatusOK {
		return perr.Auth("oauth.verify", fmt.Sprintf("token failed verification: %d", resp.StatusCode), nil)
	}
	return nil
}

// Cartographus - Media Server Analytics and Geographic Visualization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cartographus

package auth

import (
	"context"
	"crypto/rsa"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"github.com/golang-jwt/jwt/v5"

	"github.com/tomtom215/cartographus/internal/perr"
)

// appClaims is the JWT payload minted to authenticate as the source-control
// app itself (iss=appId), used once to obtain an installation token.
type appClaims struct {
	jwt.RegisteredClaims
}

// InstallationTokenSource mints a short-lived app JWT and exchanges it for
// an installation access token, caching the exchanged token for a fixed
// duration regardless of what the server declares (spec: 55 minutes).
type InstallationTokenSource struct {
	appID          string
	installationID string
	key            *rsa.PrivateKey
	kid            string
	apiBaseURL     string
	cacheTTL       time.Duration
	httpClient     *http.Client

	mu        sync.Mutex
	cached    string
	expiresAt time.Time
}

// NewInstallationTokenSource parses pemKey (PKCS#8 or PKCS#1, with literal
// or escaped newlines) and returns a token source for the given app and
// installation. kid may be empty.
func NewInstallationTokenSource(appID, installationID, apiBaseURL, pemKey, kid string) (*InstallationTokenSource, error) {
	key, err := parseRSAPrivateKeyPEM(pemKey)
	if err != nil {
		return nil, perr.FatalConfig("auth.NewInstallationTokenSource", "invalid private key", err)
	}
	return &InstallationTokenSource{
		appID:          appID,
		installationID: installationID,
		key:            key,
		kid:            kid,
		apiBaseURL:     strings.TrimRight(apiBaseURL, "/"),
		cacheTTL:       55 * time.Minute,
		httpClient:     &http.Client{Timeout: 30 * time.Second},
	}, nil
}

// parseRSAPrivateKeyPEM accepts a PEM-encoded RSA key in either PKCS#8 or
// PKCS#1, tolerating both literal newlines and "\n" escape sequences (as
// commonly stored in a single environment variable).
func parseRSAPrivateKeyPEM(pemKey string) (*rsa.PrivateKey, error) {
	normalized := strings.ReplaceAll(pemKey, `\n`, "\n")
	normalized = strings.TrimSpace(normalized)
	if normalized == "" {
		return nil, fmt.Errorf("empty private key")
	}

	if key, err := jwt.ParseRSAPrivateKeyFromPEM([]byte(normalized)); err == nil {
		return key, nil
	}
	// jwt.ParseRSAPrivateKeyFromPEM already tries PKCS#1 then PKCS#8; if
	// both failed, surface the combined failure.
	return nil, fmt.Errorf("key is neither valid PKCS#1 nor PKCS#8 PEM")
}

// mintAppJWT builds the short-lived JWT the app uses to authenticate
// itself: iat = now-60 (clock-skew tolerance), exp = iat+600 (clamped).
func (s *InstallationTokenSource) mintAppJWT(now time.Time) (string, error) {
	iat := now.Add(-60 * time.Second)
	exp := iat.Add(600 * time.Second)

	claims := appClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    s.appID,
			IssuedAt:  jwt.NewNumericDate(iat),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	if s.kid != "" {
		token.Header["kid"] = s.kid
	}
	signed, err := token.SignedString(s.key)
	if err != nil {
		return "", perr.Auth("auth.mintAppJWT", "failed to sign app JWT", err)
	}
	return signed, nil
}

// installationTokenResponse is the source-control API's exchange response.
type installationTokenResponse struct {
	Token     string `json:"token"`
	ExpiresAt string `json:"expires_at"`
}

// Token returns a cached installation access token, exchanging a freshly
// minted app JWT for a new one when the cache has expired.
func (s *InstallationTokenSource) Token(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cached != "" && time.Now().Before(s.expiresAt) {
		return s.cached, nil
	}

	appJWT, err := s.mintAppJWT(time.Now())
	if err != nil {
		return "", err
	}

	url := fmt.Sprintf("%s/app/installations/%s/access_tokens", s.apiBaseURL, s.installationID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, nil)
	if err != nil {
		return "", perr.FatalConfig("auth.Token", "failed to build installation token request", err)
	}
	req.Header.Set("Authorization", "Bearer "+appJWT)
	req.Header.Set("Accept", "application/vnd.github+json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return "", perr.UpstreamTemporary("auth.Token", "installation token exchange failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 500 {
		return "", perr.UpstreamTemporary("auth.Token", fmt.Sprintf("installation token endpoint returned %d", resp.StatusCode), nil)
	}
	if resp.StatusCode != http.StatusCreated && resp.StatusCode != http.StatusOK {
		return "", perr.Auth("auth.Token", fmt.Sprintf("installation token endpoint returned %d", resp.StatusCode), nil)
	}

	var body installationTokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", perr.Auth("auth.Token", "malformed installation token response", err)
	}
	if body.Token == "" {
		return "", perr.Auth("auth.Token", "empty installation token in response", nil)
	}

	s.cached = body.Token
	s.expiresAt = time.Now().Add(s.cacheTTL)
	return s.cached, nil
}

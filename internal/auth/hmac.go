// Cartographus - Media Server Analytics and Geographic Visualization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cartographus

package auth

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"time"
)

const (
	// HeaderSignature carries the hex-encoded HMAC-SHA256 of the signed string.
	HeaderSignature = "X-Request-Signature"
	// HeaderTimestamp carries the Unix timestamp the request was signed at.
	HeaderTimestamp = "X-Request-Timestamp"
	// HeaderNonce carries a per-request random token used to reject replays.
	HeaderNonce = "X-Request-Nonce"

	// MaxClockSkew is how far a request's timestamp may drift from the
	// receiver's clock before it is rejected.
	MaxClockSkew = 5 * time.Minute
)

// RequestSigner signs outgoing service-to-service requests with
// HMAC-SHA256 over body||timestamp||nonce.
type RequestSigner struct {
	secret []byte
}

// NewRequestSigner returns a signer using secret as the HMAC key.
func NewRequestSigner(secret string) *RequestSigner {
	return &RequestSigner{secret: []byte(secret)}
}

// Sign attaches X-Request-Signature, X-Request-Timestamp and
// X-Request-Nonce headers to req, signing the given body.
func (s *RequestSigner) Sign(req *http.Request, body []byte) error {
	nonce, err := newNonce()
	if err != nil {
		return fmt.Errorf("auth.Sign: failed to generate nonce: %w", err)
	}
	timestamp := strconv.FormatInt(time.Now().Unix(), 10)

	req.Header.Set(HeaderSignature, sign(s.secret, body, timestamp, nonce))
	req.Header.Set(HeaderTimestamp, timestamp)
	req.Header.Set(HeaderNonce, nonce)
	return nil
}

func sign(secret, body []byte, timestamp, nonce string) string {
	mac := hmac.New(sha256.New, secret)
	mac.Write(body)
	mac.Write([]byte(timestamp))
	mac.Write([]byte(nonce))
	return hex.EncodeToString(mac.Sum(nil))
}

func newNonce() (string, error) {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}

// NonceStore tracks recently-seen nonces so a receiver can reject replayed
// requests. Entries older than MaxClockSkew are pruned lazily on Seen.
type NonceStore struct {
	mu   sync.Mutex
	seen map[string]time.Time
}

// NewNonceStore returns an empty NonceStore.
func NewNonceStore() *NonceStore {
	return &NonceStore{seen: make(map[string]time.Time)}
}

// Seen records nonce and reports whether it was already present.
func (n *NonceStore) Seen(nonce string) bool {
	n.mu.Lock()
	defer n.mu.Unlock()

	now := time.Now()
	for k, t := range n.seen {
		if now.Sub(t) > MaxClockSkew {
			delete(n.seen, k)
		}
	}
	if _, ok := n.seen[nonce]; ok {
		return true
	}
	n.seen[nonce] = now
	return false
}

// RequestVerifier verifies inbound service-to-service requests signed by a
// RequestSigner using the same shared secret.
type RequestVerifier struct {
	secret []byte
	nonces *NonceStore
}

// NewRequestVerifier returns a verifier using secret as the HMAC key.
func NewRequestVerifier(secret string) *RequestVerifier {
	return &RequestVerifier{secret: []byte(secret), nonces: NewNonceStore()}
}

// Verify checks the signature, timestamp and nonce headers against body.
// It rejects requests outside MaxClockSkew and nonces seen before.
func (v *RequestVerifier) Verify(r *http.Request, body []byte) error {
	signature := r.Header.Get(HeaderSignature)
	timestamp := r.Header.Get(HeaderTimestamp)
	nonce := r.Header.Get(HeaderNonce)
	if signature == "" || timestamp == "" || nonce == "" {
		return fmt.Errorf("auth.Verify: missing signature headers")
	}

	ts, err := strconv.ParseInt(timestamp, 10, 64)
	if err != nil {
		return fmt.Errorf("auth.Verify: invalid timestamp: %w", err)
	}
	skew := time.Since(time.Unix(ts, 0))
	if skew < 0 {
		skew = -skew
	}
	if skew > MaxClockSkew {
		return fmt.Errorf("auth.Verify: timestamp outside allowed skew")
	}

	if v.nonces.Seen(nonce) {
		return fmt.Errorf("auth.Verify: nonce already used")
	}

	expected := sign(v.secret, body, timestamp, nonce)
	if !hmac.Equal([]byte(signature), []byte(expected)) {
		return fmt.Errorf("auth.Verify: signature mismatch")
	}
	return nil
}

// VerifyWebhookSignature checks a GitHub-style "sha256=<hex>" webhook
// signature header against body using secret.
func VerifyWebhookSignature(body []byte, header, secret string) bool {
	const prefix = "sha256="
	if len(header) <= len(prefix) || header[:len(prefix)] != prefix {
		return false
	}
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	expected := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(header[len(prefix):]), []byte(expected))
}

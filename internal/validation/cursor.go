// Cartographus - Media Server Analytics and Geographic Visualization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cartographus

package validation

import (
	"encoding/base64"

	"github.com/goccy/go-json"
)

// ContentCursor is the decoded shape of a ContentItem date-range listing
// cursor: which year/month partition is in progress, plus an opaque
// continuation token for the object-store page within that partition.
type ContentCursor struct {
	Year         int    `json:"y"`
	Month        int    `json:"m"`
	Continuation string `json:"c,omitempty"`
}

// EncodeContentCursor base64url-encodes c as the wire cursor string.
func EncodeContentCursor(c ContentCursor) string {
	encoded, err := json.Marshal(c)
	if err != nil {
		return ""
	}
	return base64.RawURLEncoding.EncodeToString(encoded)
}

// DecodeContentCursor decodes a wire cursor string produced by
// EncodeContentCursor. An empty string, invalid base64, malformed JSON,
// or an out-of-range month all fall back to the zero cursor (start of
// listing) rather than erroring, per §4.9's decoder contract.
func DecodeContentCursor(cursor string) ContentCursor {
	var zero ContentCursor
	if cursor == "" {
		return zero
	}
	raw, err := base64.RawURLEncoding.DecodeString(cursor)
	if err != nil {
		return zero
	}
	var c ContentCursor
	if err := json.Unmarshal(raw, &c); err != nil {
		return zero
	}
	if c.Month < 1 || c.Month > 12 {
		return zero
	}
	return c
}

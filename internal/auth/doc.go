// Cartographus - Media Server Analytics and Geographic Visualization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cartographus

/*
Package auth implements the three authentication schemes the pipeline speaks:

  - OAuthTokenSource: client-credentials OAuth against the upstream clip
    catalog, with a pre-expiry cache and verify-before-cache.
  - InstallationTokenSource: RS256 JWT minting from a PKCS#8/PKCS#1 PEM
    key, exchanged for a short-lived source-control installation token.
  - HMAC request signing and webhook signature verification for
    service-to-service calls and inbound webhooks.

None of these validate an end-user session; the pipeline has no end-user
sessions to maintain.
*/
package auth

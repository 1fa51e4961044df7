// Cartographus - Media Server Analytics and Geographic Visualization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cartographus

// Package config loads the pipeline's configuration from layered sources:
// struct defaults, an optional YAML file, then environment variables
// (highest priority). There is no hot-reload; a process picks up its
// configuration once at startup.
package config

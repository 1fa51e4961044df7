// Cartographus - Media Server Analytics and Geographic Visualization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cartographus

package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// DefaultConfigPaths lists the paths searched for an optional YAML
// config file, in priority order. The first one found is used.
var DefaultConfigPaths = []string{
	"config.yaml",
	"config.yml",
	"/etc/cartographus/config.yaml",
	"/etc/cartographus/config.yml",
}

// ConfigPathEnvVar overrides the searched config file path.
const ConfigPathEnvVar = "CONFIG_PATH"

func defaultConfig() *Config {
	return &Config{
		AudioProcessor: AudioProcessorConfig{
			PollAttempts: 6,
			PollInterval: 5 * time.Second,
		},
		AI: AIConfig{
			CallTimeout: 30 * time.Second,
		},
		Thresholds: Thresholds{
			JudgeOverallMin: 80,
			JudgeAxisMin:    60,
		},
		Retries: Retries{
			Audio:      3,
			Transcribe: 3,
			Publisher:  3,
		},
		LookbackHours:       24,
		TemporalMatchWindow: 2 * time.Hour,
		MaxClipsPerRun:      12,
		DedupConcurrency:    5,
		BaseBackoff:         time.Second,
		MaxBackoff:          10 * time.Second,
		TokenSkew:           60 * time.Second,
		ObjectStorePath:     "./data/objectstore",
		ListenAddr:          ":8080",
		Timezone:            "UTC",
	}
}

// Load builds the Config from defaults, an optional YAML file, then
// environment variables, in that priority order (env wins), and
// validates the result.
func Load() (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if path := findConfigFile(); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", path, err)
		}
	}

	envProvider := env.Provider("", ".", envTransformFunc)
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	if err := processSliceFields(k); err != nil {
		return nil, fmt.Errorf("failed to process slice fields: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

func findConfigFile() string {
	if envPath := os.Getenv(ConfigPathEnvVar); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath
		}
	}
	for _, path := range DefaultConfigPaths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

// envTransformFunc maps CARTOGRAPHUS_CLIP_CATALOG__CLIENT_ID style
// environment variables onto koanf's dotted config paths
// (clip_catalog.client_id), stripping the common prefix. A double
// underscore separates path segments; a single underscore is kept as
// part of the key name.
func envTransformFunc(s string) string {
	s = strings.TrimPrefix(s, "CARTOGRAPHUS_")
	return strings.ToLower(strings.ReplaceAll(s, "__", "."))
}

// processSliceFields post-processes comma-separated environment
// overrides of slice fields (scm.repos) into actual slices, since env
// vars always arrive as strings.
func processSliceFields(k *koanf.Koanf) error {
	val := k.Get("scm.repos")
	strVal, ok := val.(string)
	if !ok || strVal == "" {
		return nil
	}
	parts := strings.Split(strVal, ",")
	trimmed := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			trimmed = append(trimmed, p)
		}
	}
	if len(trimmed) == 0 {
		return nil
	}
	if err := k.Set("scm.repos", trimmed); err != nil {
		return fmt.Errorf("failed to set scm.repos: %w", err)
	}
	return nil
}

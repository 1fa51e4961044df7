// Cartographus - Media Server Analytics and Geographic Visualization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cartographus

package config

import "time"

// ClipCatalogConfig holds the upstream clip catalog's credentials.
type ClipCatalogConfig struct {
	ClientID          string `koanf:"client_id"`
	ClientSecret       string `koanf:"client_secret"`
	TokenURL           string `koanf:"token_url"`
	VerifyURL          string `koanf:"verify_url"`
	BaseURL            string `koanf:"base_url"`
	BroadcasterLogin   string `koanf:"broadcaster_login"` // optional lookup
	BroadcasterID      string `koanf:"broadcaster_id"`    // override
}

// SCMConfig holds source-control app credentials and repo coordinates.
type SCMConfig struct {
	AppID             string `koanf:"app_id"`
	InstallationID    string `koanf:"installation_id"`
	PrivateKeyPEM     string `koanf:"private_key_pem"`
	KeyID             string `koanf:"key_id"` // optional
	WebhookSecret     string `koanf:"webhook_secret"`
	APIBaseURL        string `koanf:"api_base_url"`
	ContentRepo       string `koanf:"content_repo"` // org/repo
	BaseBranch        string `koanf:"base_branch"`
	ReadOnlyTokenOne  string `koanf:"read_only_token_one"`
	ReadOnlyTokenTwo  string `koanf:"read_only_token_two"`
	Repos             []string `koanf:"repos"` // multi-repo activity aggregation
}

// NotifierConfig holds the chat-notification bot credentials.
type NotifierConfig struct {
	BotToken  string `koanf:"bot_token"`
	ChannelID string `koanf:"channel_id"`
	WebhookURL string `koanf:"webhook_url"`
}

// AudioProcessorConfig holds the external audio service's coordinates.
type AudioProcessorConfig struct {
	BaseURL          string        `koanf:"base_url"`
	PollAttempts     int           `koanf:"poll_attempts"`
	PollInterval     time.Duration `koanf:"poll_interval"`
}

// AIConfig holds per-task model identifiers and call limits for the
// shared AI inference client.
type AIConfig struct {
	BaseURL              string        `koanf:"base_url"`
	APIKey               string        `koanf:"api_key"`
	TranscribeModel      string        `koanf:"transcribe_model"`
	SectionerModel       string        `koanf:"sectioner_model"`
	JudgeModel           string        `koanf:"judge_model"`
	CallTimeout          time.Duration `koanf:"call_timeout"`
}

// Thresholds holds the judge's pass/fail cutoffs.
type Thresholds struct {
	JudgeOverallMin int `koanf:"judge_overall_min"`
	JudgeAxisMin    int `koanf:"judge_axis_min"`
}

// Retries holds per-stage retry counts.
type Retries struct {
	Audio     int `koanf:"audio"`
	Transcribe int `koanf:"transcribe"`
	Publisher int `koanf:"publisher"`
}

// Config is the pipeline's complete, recognized configuration. All
// fields are required unless noted; environment overrides are the only
// dynamic source (§4.2 — no hot reload).
type Config struct {
	ClipCatalog    ClipCatalogConfig    `koanf:"clip_catalog"`
	SCM            SCMConfig            `koanf:"scm"`
	Notifier       NotifierConfig       `koanf:"notifier"`
	AudioProcessor AudioProcessorConfig `koanf:"audio_processor"`
	AI             AIConfig             `koanf:"ai"`

	HMACSecret string `koanf:"hmac_secret"`

	Thresholds Thresholds `koanf:"thresholds"`
	Retries    Retries    `koanf:"retries"`

	LookbackHours       int           `koanf:"lookback_hours"`        // default 24
	TemporalMatchWindow time.Duration `koanf:"temporal_match_window"` // default +/-2h
	MaxClipsPerRun      int           `koanf:"max_clips_per_run"`     // default 12, min 5 when available
	DedupConcurrency    int           `koanf:"dedup_concurrency"`

	BaseBackoff time.Duration `koanf:"base_backoff"` // default 1s
	MaxBackoff  time.Duration `koanf:"max_backoff"`  // default 10s cap
	TokenSkew   time.Duration `koanf:"token_skew"`   // default 60s

	ObjectStorePath string `koanf:"object_store_path"`
	ListenAddr      string `koanf:"listen_addr"`
	Timezone        string `koanf:"timezone"` // default UTC
}

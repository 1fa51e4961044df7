// Cartographus - Media Server Analytics and Geographic Visualization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cartographus

package config

import "fmt"

// Validate checks that every required field is present and every bound
// is sane, returning the first problem found. Missing secrets are a
// FatalConfigError-class failure: the process must not start.
func (c *Config) Validate() error {
	if c.ClipCatalog.ClientID == "" || c.ClipCatalog.ClientSecret == "" {
		return fmt.Errorf("clip_catalog: client_id and client_secret are required")
	}
	if c.ClipCatalog.TokenURL == "" {
		return fmt.Errorf("clip_catalog: token_url is required")
	}
	if c.ClipCatalog.BroadcasterLogin == "" && c.ClipCatalog.BroadcasterID == "" {
		return fmt.Errorf("clip_catalog: one of broadcaster_login or broadcaster_id is required")
	}

	if c.SCM.AppID == "" || c.SCM.InstallationID == "" || c.SCM.PrivateKeyPEM == "" {
		return fmt.Errorf("scm: app_id, installation_id and private_key_pem are required")
	}
	if c.SCM.WebhookSecret == "" {
		return fmt.Errorf("scm: webhook_secret is required")
	}
	if c.SCM.ContentRepo == "" || c.SCM.BaseBranch == "" {
		return fmt.Errorf("scm: content_repo and base_branch are required")
	}
	if c.SCM.ReadOnlyTokenOne == "" || c.SCM.ReadOnlyTokenTwo == "" {
		return fmt.Errorf("scm: both read-only tokens are required")
	}

	if c.Notifier.BotToken == "" || c.Notifier.ChannelID == "" {
		return fmt.Errorf("notifier: bot_token and channel_id are required")
	}

	if c.HMACSecret == "" {
		return fmt.Errorf("hmac_secret is required")
	}

	if c.AudioProcessor.BaseURL == "" {
		return fmt.Errorf("audio_processor: base_url is required")
	}

	if c.AI.BaseURL == "" {
		return fmt.Errorf("ai: base_url is required")
	}
	if c.AI.TranscribeModel == "" || c.AI.SectionerModel == "" || c.AI.JudgeModel == "" {
		return fmt.Errorf("ai: transcribe_model, sectioner_model and judge_model are all required")
	}

	if c.Thresholds.JudgeOverallMin < 0 || c.Thresholds.JudgeOverallMin > 100 {
		return fmt.Errorf("thresholds: judge_overall_min must be in [0,100]")
	}
	if c.Thresholds.JudgeAxisMin < 0 || c.Thresholds.JudgeAxisMin > 100 {
		return fmt.Errorf("thresholds: judge_axis_min must be in [0,100]")
	}

	if c.LookbackHours <= 0 {
		return fmt.Errorf("lookback_hours must be positive")
	}
	if c.TemporalMatchWindow <= 0 {
		return fmt.Errorf("temporal_match_window must be positive")
	}
	if c.MaxClipsPerRun < 5 {
		return fmt.Errorf("max_clips_per_run must be at least 5")
	}
	if c.DedupConcurrency <= 0 {
		return fmt.Errorf("dedup_concurrency must be positive")
	}

	if c.BaseBackoff <= 0 || c.MaxBackoff <= 0 || c.MaxBackoff < c.BaseBackoff {
		return fmt.Errorf("base_backoff and max_backoff must be positive with max >= base")
	}
	if c.TokenSkew <= 0 {
		return fmt.Errorf("token_skew must be positive")
	}

	if c.ObjectStorePath == "" {
		return fmt.Errorf("object_store_path is required")
	}
	if c.Timezone == "" {
		return fmt.Errorf("timezone is required")
	}

	return nil
}

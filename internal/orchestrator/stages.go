// Cartographus - Media Server Analytics and Geographic Visualization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cartographus

package orchestrator

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/cartographus/internal/audioprocessor"
	"github.com/tomtom215/cartographus/internal/blogrenderer"
	"github.com/tomtom215/cartographus/internal/contentitem"
	"github.com/tomtom215/cartographus/internal/judge"
	"github.com/tomtom215/cartographus/internal/logging"
	"github.com/tomtom215/cartographus/internal/models"
	"github.com/tomtom215/cartographus/internal/notifier"
	"github.com/tomtom215/cartographus/internal/objectstore"
	"github.com/tomtom215/cartographus/internal/perr"
	"github.com/tomtom215/cartographus/internal/retry"
	"github.com/tomtom215/cartographus/internal/scorer"
	"github.com/tomtom215/cartographus/internal/sectioner"
	"github.com/tomtom215/cartographus/internal/transcriber"
)

// perrIsFatal reports whether err should mark the whole run failed
// (validation, fatal config, or non-429 upstream 4xx), as opposed to a
// transient condition the run can simply skip (§4.17's failure table).
func perrIsFatal(err error) bool {
	return perr.Is(err, perr.KindValidation) || perr.Is(err, perr.KindFatalConfig) || perr.Is(err, perr.KindUpstreamPermanent)
}

// listAllByStatus walks every page of ContentItems at status, across
// the whole key space.
func (o *Orchestrator) listAllByStatus(ctx context.Context, status models.ProcessingStatus) ([]models.ContentItem, error) {
	var all []models.ContentItem
	q := contentitem.Query{
		Start:            time.Unix(0, 0),
		End:              time.Now(),
		ProcessingStatus: status,
		Limit:            200,
	}
	for {
		page, err := o.items.List(ctx, q)
		if err != nil {
			return nil, err
		}
		all = append(all, page.Items...)
		if page.NextCursor == "" {
			return all, nil
		}
		q.Cursor = page.NextCursor
	}
}

// advance moves item to next (which must be reachable per the lattice),
// applies mutate, and writes it back. The orchestrator is the only
// writer of ContentItem keys, so this bypasses contentitem.Update's
// untrusted-patch plumbing and mutates the typed struct directly.
func (o *Orchestrator) advance(ctx context.Context, item *models.ContentItem, next models.ProcessingStatus, mutate func(*models.ContentItem)) error {
	if !item.ProcessingStatus.CanTransition(next) {
		return perr.State("orchestrator.advance", fmt.Sprintf("illegal transition %s -> %s", item.ProcessingStatus, next), nil)
	}
	item.ProcessingStatus = next
	if mutate != nil {
		mutate(item)
	}
	_, err := o.items.Put(ctx, *item)
	return err
}

// stage1Ingest fetches recently created clips, stores each as an
// immutable clip record, and writes a pending ContentItem for any clip
// that doesn't already have one.
func (o *Orchestrator) stage1Ingest(ctx context.Context) error {
	until := time.Now().UTC()
	since := until.Add(-time.Duration(o.opts.LookbackHours) * time.Hour)

	var clips []models.Clip
	err := retry.Do(ctx, retry.DefaultPolicy(3), func(ctx context.Context) error {
		fetched, err := o.clips.ListRecentClips(ctx, o.opts.BroadcasterID, since.Format(time.RFC3339), until.Format(time.RFC3339), o.opts.MaxClipsPerRun)
		if err != nil {
			return err
		}
		clips = fetched
		return nil
	})
	if err != nil {
		return err
	}

	for _, clip := range clips {
		encoded, err := json.Marshal(clip)
		if err != nil {
			logging.Error().Err(err).Str("clip_id", clip.ClipID).Msg("failed to encode clip")
			continue
		}
		if err := o.os.Put(ctx, clipKey(clip.ClipID), encoded, map[string]string{"clip-id": clip.ClipID}); err != nil {
			logging.Error().Err(err).Str("clip_id", clip.ClipID).Msg("failed to store clip")
			continue
		}

		createdAt, err := time.Parse(time.RFC3339, clip.CreatedAt)
		if err != nil {
			logging.Error().Err(err).Str("clip_id", clip.ClipID).Msg("clip has unparseable created_at")
			continue
		}
		if _, err := o.items.Get(ctx, clip.ClipID, createdAt); err == nil {
			continue // already tracked
		}

		item := models.ContentItem{
			ClipID:           clip.ClipID,
			ClipTitle:        clip.Title,
			ClipURL:          clip.URL,
			ClipDuration:     clip.DurationSec,
			ClipCreatedAt:    clip.CreatedAt,
			ProcessingStatus: models.StatusPending,
		}
		if _, err := o.items.Put(ctx, item); err != nil {
			logging.Error().Err(err).Str("clip_id", clip.ClipID).Msg("failed to write pending content item")
		}
	}
	return nil
}

// stage2DedupAudio partitions pending items by audio presence, requests
// extraction for the rest, and advances whatever becomes available to
// audio_ready. Partial success is expected: anything left over simply
// stays pending for the next run.
func (o *Orchestrator) stage2DedupAudio(ctx context.Context) {
	pending, err := o.listAllByStatus(ctx, models.StatusPending)
	if err != nil {
		logging.Error().Err(err).Msg("stage2: failed to list pending items")
		return
	}
	if len(pending) == 0 {
		return
	}

	byID := make(map[string]models.ContentItem, len(pending))
	ids := make([]string, len(pending))
	for i, item := range pending {
		ids[i] = item.ClipID
		byID[item.ClipID] = item
	}

	classification, err := audioprocessor.Classify(ctx, o.os, ids)
	if err != nil {
		logging.Error().Err(err).Msg("stage2: classify failed")
		return
	}

	for _, id := range classification.HaveAudio {
		o.advanceAudioReady(ctx, byID[id])
	}

	ready, err := o.audio.RequestAndWait(ctx, classification.NeedDownload)
	if err != nil {
		logging.Warn().Err(err).Msg("stage2: audio request/wait failed, remaining clips stay pending")
	}
	for _, id := range ready {
		o.advanceAudioReady(ctx, byID[id])
	}
}

func (o *Orchestrator) advanceAudioReady(ctx context.Context, item models.ContentItem) {
	if err := o.advance(ctx, &item, models.StatusAudioReady, func(i *models.ContentItem) {
		i.AudioFileURL = audioprocessor.AudioKey(i.ClipID)
	}); err != nil {
		logging.Error().Err(err).Str("clip_id", item.ClipID).Msg("stage2: failed to advance to audio_ready")
	}
}

// stage3Transcribe runs the Transcriber for every audio_ready item
// without a transcript yet. A per-clip failure just leaves that item at
// audio_ready for a later run (§4.17's failure table).
func (o *Orchestrator) stage3Transcribe(ctx context.Context) {
	items, err := o.listAllByStatus(ctx, models.StatusAudioReady)
	if err != nil {
		logging.Error().Err(err).Msg("stage3: failed to list audio_ready items")
		return
	}

	for _, item := range items {
		if item.Transcript != nil {
			continue
		}
		transcript, err := o.transcriber.Transcribe(ctx, item.ClipID)
		if err != nil {
			logging.Warn().Err(err).Str("clip_id", item.ClipID).Msg("stage3: transcription failed, leaving at audio_ready")
			continue
		}

		ref := &models.ArtifactRef{
			URL:     transcriber.TranscriptKey(item.ClipID),
			Size:    int64(len(transcript.Text)),
			Summary: truncateASCII(transcript.Text, 200),
		}
		it := item
		if err := o.advance(ctx, &it, models.StatusTranscribed, func(i *models.ContentItem) {
			i.Transcript = ref
		}); err != nil {
			logging.Error().Err(err).Str("clip_id", item.ClipID).Msg("stage3: failed to advance to transcribed")
		}
	}
}

// stage4Enhance runs the TemporalMatcher for every transcribed item,
// persists its GitHubContext, and advances to enhanced. A transient
// failure leaves the item at transcribed; a permanent one still
// advances it, but with an empty context (§4.17's failure table).
func (o *Orchestrator) stage4Enhance(ctx context.Context) {
	items, err := o.listAllByStatus(ctx, models.StatusTranscribed)
	if err != nil {
		logging.Error().Err(err).Msg("stage4: failed to list transcribed items")
		return
	}

	for _, item := range items {
		createdAt, err := time.Parse(time.RFC3339, item.ClipCreatedAt)
		if err != nil {
			logging.Error().Err(err).Str("clip_id", item.ClipID).Msg("stage4: unparseable created_at")
			continue
		}

		ghCtx, err := o.matcher.Match(ctx, item.ClipID, createdAt, "")
		if err != nil {
			if !perr.Is(err, perr.KindUpstreamPermanent) {
				logging.Warn().Err(err).Str("clip_id", item.ClipID).Msg("stage4: match failed, leaving at transcribed")
				continue
			}
			ghCtx = &models.GitHubContext{
				ClipID: item.ClipID,
				Refs: models.LinkedRefs{
					LinkedPRs:     []models.LinkedPR{},
					LinkedCommits: []models.LinkedCommit{},
					LinkedIssues:  []models.LinkedIssue{},
				},
			}
		}

		encoded, err := json.Marshal(ghCtx)
		if err != nil {
			logging.Error().Err(err).Str("clip_id", item.ClipID).Msg("stage4: failed to encode github context")
			continue
		}
		key := githubContextKey(item.ClipID)
		if err := o.os.Put(ctx, key, encoded, map[string]string{"clip-id": item.ClipID}); err != nil {
			logging.Error().Err(err).Str("clip_id", item.ClipID).Msg("stage4: failed to store github context")
			continue
		}

		ref := &models.ArtifactRef{
			URL:     key,
			Size:    int64(len(encoded)),
			Summary: fmt.Sprintf("confidence %.2f, reason %s", ghCtx.ConfidenceScore, ghCtx.DominantReason),
		}
		it := item
		now := time.Now().UTC().Format(time.RFC3339)
		if err := o.advance(ctx, &it, models.StatusEnhanced, func(i *models.ContentItem) {
			i.GitHubContext = ref
			i.EnhancedAt = now
		}); err != nil {
			logging.Error().Err(err).Str("clip_id", item.ClipID).Msg("stage4: failed to advance to enhanced")
		}
	}
}

// stage5ScoreAndPromote scores every enhanced item and promotes the
// selected subset to ready_for_content. Any failure here is treated as
// a bug signal and propagates to fail the run (§4.17's failure table).
func (o *Orchestrator) stage5ScoreAndPromote(ctx context.Context) ([]scorer.Scored, error) {
	items, err := o.listAllByStatus(ctx, models.StatusEnhanced)
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, nil
	}

	byID := make(map[string]models.ContentItem, len(items))
	candidates := make([]scorer.Candidate, 0, len(items))
	for _, item := range items {
		byID[item.ClipID] = item

		var ghConfidence float64
		if item.GitHubContext != nil {
			if obj, err := o.os.Get(ctx, item.GitHubContext.URL); err == nil {
				var ghCtx models.GitHubContext
				if json.Unmarshal(obj.Value, &ghCtx) == nil {
					ghConfidence = ghCtx.ConfidenceScore
				}
			}
		}

		var transcriptWords int
		var transcriptText string
		if item.Transcript != nil {
			if obj, err := o.os.Get(ctx, item.Transcript.URL); err == nil {
				var t models.Transcript
				if json.Unmarshal(obj.Value, &t) == nil {
					transcriptWords = t.WordCount()
					transcriptText = t.Text
				}
			}
		}

		var viewCount int64
		if obj, err := o.os.Get(ctx, clipKey(item.ClipID)); err == nil {
			var clip models.Clip
			if json.Unmarshal(obj.Value, &clip) == nil {
				viewCount = clip.ViewCount
			}
		}

		var contentScore float64
		if item.ContentScore != nil {
			contentScore = *item.ContentScore
		}

		candidates = append(candidates, scorer.Candidate{
			ClipID:           item.ClipID,
			CreatedAt:        item.ClipCreatedAt,
			ContentScore:     contentScore,
			GitHubConfidence: ghConfidence,
			ViewCount:        viewCount,
			TranscriptWords:  transcriptWords,
			TranscriptText:   transcriptText,
			DurationSeconds:  item.ClipDuration,
		})
	}

	selected := scorer.Select(candidates, o.opts.Weights, o.opts.Normalizations)

	now := time.Now().UTC().Format(time.RFC3339)
	for _, s := range selected {
		item := byID[s.ClipID]
		score := s.Score
		if err := o.advance(ctx, &item, models.StatusReadyForContent, func(i *models.ContentItem) {
			i.ContentScore = &score
			i.ContentReadyAt = now
		}); err != nil {
			logging.Error().Err(err).Str("clip_id", s.ClipID).Msg("stage5: failed to promote to ready_for_content")
		}
	}

	return selected, nil
}

// stage6Assemble builds the Manifest for the selected clips, renders
// it, publishes it, runs the Judge, posts the check-run, and notifies.
// Every sub-operation retries internally; re-running this stage against
// an unchanged manifest is a no-op republish (idempotent publish,
// §4.17/§8.7).
func (o *Orchestrator) stage6Assemble(ctx context.Context, selected []scorer.Scored, now time.Time) error {
	var sections []models.Section
	tagSet := map[string]struct{}{"development": {}}

	for _, s := range selected {
		createdAt, err := time.Parse(time.RFC3339, s.CreatedAt)
		if err != nil {
			logging.Error().Err(err).Str("clip_id", s.ClipID).Msg("stage6: unparseable created_at")
			continue
		}
		item, err := o.items.Get(ctx, s.ClipID, createdAt)
		if err != nil {
			logging.Error().Err(err).Str("clip_id", s.ClipID).Msg("stage6: failed to fetch content item")
			continue
		}

		var transcriptText string
		if item.Transcript != nil {
			if obj, err := o.os.Get(ctx, item.Transcript.URL); err == nil {
				var t models.Transcript
				if json.Unmarshal(obj.Value, &t) == nil {
					transcriptText = t.Text
				}
			}
		}

		deepLink, prLinks := linkedGitHubURLs(ctx, o.os, item.GitHubContext)

		sec := o.sectioner.Section(ctx, sectioner.Input{
			ClipID:      item.ClipID,
			Title:       item.ClipTitle,
			DurationS:   item.ClipDuration,
			Transcript:  transcriptText,
			ClipURL:     item.ClipURL,
			DeepLinkURL: deepLink,
			PRLinks:     prLinks,
		})
		sections = append(sections, sec)
		if sec.Repo != "" {
			tagSet[sec.Repo] = struct{}{}
		}
	}

	date := now.Format("2006-01-02")
	tags := make([]string, 0, len(tagSet))
	for tag := range tagSet {
		tags = append(tags, tag)
	}

	manifest := models.Manifest{
		PostID:   date,
		TZ:       o.opts.Timezone.String(),
		Title:    fmt.Sprintf("Daily Dev Recap — %s", date),
		Summary:  fmt.Sprintf("Highlights from %d clips across the last day of development.", len(sections)),
		Tags:     tags,
		Sections: sections,
	}

	rendered := blogrenderer.Render(manifest, date, date, o.opts.Canonical, false)

	branch := blogrenderer.BranchName(date)
	path := blogrenderer.FilePath(date)

	if err := o.publisher.EnsureBranch(ctx, branch, o.opts.BaseBranch); err != nil {
		return err
	}
	if err := o.publisher.UpsertFile(ctx, branch, path, fmt.Sprintf("Daily dev recap for %s", date), rendered); err != nil {
		return err
	}
	pr, err := o.publisher.OpenPR(ctx, branch, manifest.Title, manifest.Summary, o.opts.BaseBranch)
	if err != nil {
		return err
	}

	eval := o.judge.Evaluate(ctx, string(rendered))
	if err := o.publisher.PostCheckRun(ctx, pr.HeadSHA, eval, o.opts.Thresholds.OverallMin, now); err != nil {
		return err
	}

	approved, reasons := judge.MeetsThreshold(eval, o.opts.Thresholds)
	statusText := "approved"
	if !approved {
		statusText = "needs review: " + strings.Join(reasons, "; ")
	}

	prURL := fmt.Sprintf("%s/pull/%d", o.publisherRepoURL(), pr.Number)
	o.notifier.NotifySuccess(ctx, notifier.Summary{
		OverallScore: eval.Overall,
		ClipCount:    len(selected),
		StatusText:   statusText,
		PRURL:        prURL,
	})
	return nil
}

func (o *Orchestrator) publisherRepoURL() string {
	return "https://github.com/" + o.opts.Repo
}

// linkedGitHubURLs reads back the GitHubContext Stage 4 wrote for a clip
// and flattens its linked PRs, commits, and issues into the URL list the
// rendered section surfaces, plus a single deep link (the first match,
// PRs preferred) for the section's headline link (§1's temporal-join
// surfacing, never just the scalar confidence used for scoring).
func linkedGitHubURLs(ctx context.Context, os *objectstore.Store, ref *models.ArtifactRef) (deepLink string, links []string) {
	if ref == nil {
		return "", nil
	}
	obj, err := os.Get(ctx, ref.URL)
	if err != nil {
		return "", nil
	}
	var ghCtx models.GitHubContext
	if err := json.Unmarshal(obj.Value, &ghCtx); err != nil {
		return "", nil
	}

	for _, pr := range ghCtx.Refs.LinkedPRs {
		links = append(links, pr.URL)
	}
	for _, commit := range ghCtx.Refs.LinkedCommits {
		links = append(links, commit.URL)
	}
	for _, issue := range ghCtx.Refs.LinkedIssues {
		links = append(links, issue.URL)
	}
	if len(links) > 0 {
		deepLink = links[0]
	}
	return deepLink, links
}

func truncateASCII(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}

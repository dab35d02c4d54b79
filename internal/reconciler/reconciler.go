package reconciler

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"

	"rumble-backup/internal/fetcher"
	"rumble-backup/internal/media"
	"rumble-backup/internal/state"
	"rumble-backup/pkg/models"
)

// MetadataFileName is the per-video sidecar written beside the media file.
const MetadataFileName = "metadata.json"

// ReportFileName is the per-channel summary written after each run.
const ReportFileName = "backup_report.json"

// Recorder receives counters from the reconciliation loop. Implemented by
// the metrics bundle; a nil Recorder disables recording.
type Recorder interface {
	RecordVideoOutcome(channel, outcome string)
	RecordFetch(channel string, duration time.Duration, size int64)
	RecordListingError(class string)
	RecordStateFlush(duration time.Duration)
}

// Options configures a Reconciler.
type Options struct {
	OutputDir string
	PauseMin  time.Duration
	PauseMax  time.Duration
	Catalog   models.Catalog
	Metrics   Recorder
}

// Reconciler drives incremental channel backups: it compares the channel's
// published listing against recorded state and on-disk files, and fetches
// only what is missing. One video at a time; progress is flushed after every
// download so an interrupted run never repeats completed work.
type Reconciler struct {
	fetch   models.Fetcher
	store   models.StateStore
	catalog models.Catalog
	metrics Recorder

	outputDir string
	pauseMin  time.Duration
	pauseMax  time.Duration
	rng       *rand.Rand
	logger    zerolog.Logger
}

// New creates a reconciler over the given fetch strategy and state store.
func New(fetch models.Fetcher, store models.StateStore, opts Options) *Reconciler {
	return &Reconciler{
		fetch:     fetch,
		store:     store,
		catalog:   opts.Catalog,
		metrics:   opts.Metrics,
		outputDir: opts.OutputDir,
		pauseMin:  opts.PauseMin,
		pauseMax:  opts.PauseMax,
		rng:       rand.New(rand.NewSource(time.Now().UnixNano())),
		logger:    zerolog.New(os.Stdout).With().Timestamp().Str("component", "reconciler").Logger(),
	}
}

// BackupChannel reconciles one channel. A blocked or failed listing yields an
// empty report and a nil error; only storage failures abort the run.
func (r *Reconciler) BackupChannel(ctx context.Context, channelID string, opts models.BackupOptions) (*models.BackupReport, error) {
	report := &models.BackupReport{
		Channel:   channelID,
		StartedAt: time.Now().UTC(),
		Errors:    []string{},
	}
	logger := r.logger.With().Str("channel", channelID).Logger()

	channelURL := models.ChannelURL(channelID)
	channelDir := filepath.Join(r.outputDir, models.SafeChannelName(channelID))
	if err := os.MkdirAll(channelDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create channel directory: %w", err)
	}

	backupState, err := r.store.Load()
	if err != nil {
		return nil, err
	}
	channelState := backupState.Channel(channelID)

	logger.Info().Str("url", channelURL).Msg("Listing channel")
	entries, err := r.fetch.ListVideos(ctx, channelURL, opts.MaxVideos)
	if err != nil {
		r.reportListingFailure(logger, channelURL, err)
		report.CompletedAt = time.Now().UTC()
		r.writeReport(channelDir, report)
		r.recordRun(report)
		return report, nil
	}
	report.VideosFound = len(entries)
	logger.Info().Int("found", len(entries)).Msg("Listing complete")

	for i, entry := range entries {
		fetched := false

		switch {
		case !entry.Usable():
			report.VideosSkipped++
			r.recordOutcome(channelID, "skipped")
			logger.Warn().Str("reason", entry.Reason).Msg("Skipping listing entry without video id")

		default:
			videoDir := filepath.Join(channelDir, entry.ID)
			_, onDisk := media.FindMedia(videoDir, entry.ID)

			if !opts.ForceRescan && channelState.Has(entry.ID) && onDisk {
				report.VideosSkipped++
				r.recordOutcome(channelID, "skipped")
				logger.Debug().Str("video", entry.ID).Msg("Already backed up")
				break
			}

			if channelState.Has(entry.ID) && !onDisk {
				logger.Warn().Str("video", entry.ID).Msg("Recorded video missing on disk, fetching again")
				channelState.Remove(entry.ID)
			}

			fetched = true
			if err := r.fetchOne(ctx, logger, backupState, channelState, channelID, entry, videoDir, report); err != nil {
				return nil, err
			}
		}

		if fetched && i < len(entries)-1 {
			if err := r.pause(ctx); err != nil {
				return nil, err
			}
		}
	}

	now := time.Now().UTC()
	channelState.LastBackup = &now
	backupState.LastRun = &now
	if err := r.store.Save(backupState); err != nil {
		return nil, err
	}

	report.CompletedAt = time.Now().UTC()
	r.writeReport(channelDir, report)
	r.recordRun(report)

	logger.Info().
		Int("found", report.VideosFound).
		Int("downloaded", report.VideosDownloaded).
		Int("skipped", report.VideosSkipped).
		Int("failed", report.VideosFailed).
		Msg("Channel backup complete")
	return report, nil
}

// Run backs up the given channels sequentially and aggregates totals. A
// channel whose listing fails does not stop the run; a state I/O failure
// does.
func (r *Reconciler) Run(ctx context.Context, channelIDs []string, opts models.BackupOptions) (*models.RunTotals, error) {
	totals := &models.RunTotals{}

	for _, channelID := range channelIDs {
		report, err := r.BackupChannel(ctx, channelID, opts)
		if err != nil {
			return totals, fmt.Errorf("backup of %s aborted: %w", channelID, err)
		}
		totals.Add(report)
	}

	r.logger.Info().
		Int("channels", totals.Channels).
		Int("found", totals.VideosFound).
		Int("downloaded", totals.VideosDownloaded).
		Int("skipped", totals.VideosSkipped).
		Int("failed", totals.VideosFailed).
		Msg("Backup run complete")
	return totals, nil
}

// fetchOne downloads a single video and commits its outcome. A state save
// failure is the one fatal path; fetch failures only mark the report.
func (r *Reconciler) fetchOne(ctx context.Context, logger zerolog.Logger, backupState *models.BackupState, channelState *models.ChannelState, channelID string, entry models.ListEntry, videoDir string, report *models.BackupReport) error {
	logger.Info().Str("video", entry.ID).Str("title", entry.Title).Msg("Fetching video")

	start := time.Now()
	result, err := r.fetch.FetchVideo(ctx, entry.ID, videoDir)
	if err == nil && (result == nil || result.MediaPath == "") {
		err = fmt.Errorf("fetch returned no media file")
	}
	if err != nil {
		report.VideosFailed++
		report.Errors = append(report.Errors, fmt.Sprintf("%s: %v", entry.ID, err))
		r.recordOutcome(channelID, "failed")
		logger.Error().Err(err).Str("video", entry.ID).Msg("Fetch failed")
		return nil
	}

	channelState.Add(entry.ID)

	if result.Metadata != nil {
		sidecar := filepath.Join(videoDir, MetadataFileName)
		if err := state.WriteJSON(sidecar, result.Metadata); err != nil {
			return fmt.Errorf("failed to write metadata for %s: %w", entry.ID, err)
		}
	}

	flushStart := time.Now()
	if err := r.store.Save(backupState); err != nil {
		return fmt.Errorf("failed to persist state after %s: %w", entry.ID, err)
	}
	if r.metrics != nil {
		r.metrics.RecordStateFlush(time.Since(flushStart))
	}

	report.VideosDownloaded++
	r.recordOutcome(channelID, "downloaded")

	var size int64
	if info, err := os.Stat(result.MediaPath); err == nil {
		size = info.Size()
	}
	if r.metrics != nil {
		r.metrics.RecordFetch(channelID, time.Since(start), size)
	}
	r.catalogVideo(logger, channelID, entry, result, size)

	logger.Info().Str("video", entry.ID).Str("path", result.MediaPath).Msg("Video backed up")
	return nil
}

// reportListingFailure logs a listing failure, with remediation hints when
// bot protection rejected us.
func (r *Reconciler) reportListingFailure(logger zerolog.Logger, channelURL string, err error) {
	if errors.Is(err, fetcher.ErrListingBlocked) {
		logger.Error().Err(err).Str("url", channelURL).Msg("Channel listing blocked by bot protection")
		logger.Info().Msg("Hint: set fetcher.cookies_file to a browser-exported cookies.txt, or fetcher.browser_cookies to a browser name")
		logger.Info().Msg("Hint: a residential proxy (fetcher.proxy) and a current fetcher.user_agent also help")
		if r.metrics != nil {
			r.metrics.RecordListingError("blocked")
		}
		return
	}
	logger.Error().Err(err).Str("url", channelURL).Msg("Channel listing failed")
	if r.metrics != nil {
		r.metrics.RecordListingError("error")
	}
}

// catalogVideo upserts the fetched video into the catalog. Catalog failures
// degrade the dashboard, never the backup, so they are only logged.
func (r *Reconciler) catalogVideo(logger zerolog.Logger, channelID string, entry models.ListEntry, result *models.FetchResult, size int64) {
	if r.catalog == nil {
		return
	}

	rec := &models.VideoRecord{
		Channel:      channelID,
		VideoID:      entry.ID,
		Title:        entry.Title,
		MediaPath:    result.MediaPath,
		Size:         size,
		DownloadedAt: time.Now().UTC(),
	}
	if m := result.Metadata; m != nil {
		if m.Title != "" {
			rec.Title = m.Title
		}
		rec.Uploader = m.Uploader
		rec.Duration = m.Duration
		rec.ViewCount = m.ViewCount
		rec.LikeCount = m.LikeCount
		rec.UploadDate = m.UploadDate
	}
	if err := r.catalog.SaveVideo(rec); err != nil {
		logger.Warn().Err(err).Str("video", entry.ID).Msg("Catalog update failed")
	}
}

// recordRun appends the channel run to the catalog history.
func (r *Reconciler) recordRun(report *models.BackupReport) {
	if r.catalog == nil {
		return
	}
	rec := &models.RunRecord{
		Channel:          report.Channel,
		VideosFound:      report.VideosFound,
		VideosDownloaded: report.VideosDownloaded,
		VideosSkipped:    report.VideosSkipped,
		VideosFailed:     report.VideosFailed,
		StartedAt:        report.StartedAt,
		CompletedAt:      report.CompletedAt,
	}
	if err := r.catalog.SaveRun(rec); err != nil {
		r.logger.Warn().Err(err).Str("channel", report.Channel).Msg("Run history update failed")
	}
}

// writeReport persists the per-channel summary beside the channel's videos.
// The report is informational; a write failure does not fail the run.
func (r *Reconciler) writeReport(channelDir string, report *models.BackupReport) {
	path := filepath.Join(channelDir, ReportFileName)
	if err := state.WriteJSON(path, report); err != nil {
		r.logger.Warn().Err(err).Str("path", path).Msg("Report write failed")
	}
}

func (r *Reconciler) recordOutcome(channelID, outcome string) {
	if r.metrics != nil {
		r.metrics.RecordVideoOutcome(channelID, outcome)
	}
}

// pause sleeps a randomized interval between fetches so the traffic pattern
// stays polite, honoring cancellation.
func (r *Reconciler) pause(ctx context.Context) error {
	if r.pauseMax <= 0 {
		return nil
	}

	d := r.pauseMin
	if r.pauseMax > r.pauseMin {
		d += time.Duration(r.rng.Int63n(int64(r.pauseMax - r.pauseMin + 1)))
	}

	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

package fetcher

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/rs/zerolog"

	"rumble-backup/internal/media"
	"rumble-backup/pkg/models"
)

const (
	// downloadFormat prefers an mp4 that needs no remuxing and falls back
	// to whatever the site serves.
	downloadFormat = "bestvideo[ext=mp4]+bestaudio[ext=m4a]/best[ext=mp4]/best"

	maxLineBytes   = 1024 * 1024
	maxStderrBytes = 8 * 1024
)

// YtdlpFetcher drives an external yt-dlp binary. It is the default strategy
// because yt-dlp tracks the site's player changes far better than any
// hand-rolled extractor can.
type YtdlpFetcher struct {
	opts   Options
	logger zerolog.Logger
}

// NewYtdlpFetcher creates the yt-dlp backed strategy.
func NewYtdlpFetcher(opts Options) *YtdlpFetcher {
	if opts.YtdlpPath == "" {
		opts.YtdlpPath = "yt-dlp"
	}
	return &YtdlpFetcher{
		opts:   opts,
		logger: zerolog.New(os.Stdout).With().Timestamp().Str("component", "ytdlp").Logger(),
	}
}

// Name returns the strategy name.
func (f *YtdlpFetcher) Name() string {
	return "ytdlp"
}

// ListVideos enumerates the channel with a flat playlist dump, which touches
// only the listing pages and never resolves individual videos.
func (f *YtdlpFetcher) ListVideos(ctx context.Context, channelURL string, maxCount int) ([]models.ListEntry, error) {
	args := []string{"--flat-playlist", "-J", "--no-warnings"}
	if maxCount > 0 {
		args = append(args, "--playlist-end", strconv.Itoa(maxCount))
	}
	args = append(args, f.commonArgs()...)
	args = append(args, channelURL)

	stdout, stderr, err := f.runCapture(ctx, args)
	if err != nil {
		if isBlocked(stderr) {
			return nil, fmt.Errorf("%w: %s", ErrListingBlocked, firstLine(stderr))
		}
		return nil, fmt.Errorf("failed to list channel %s: %w (%s)", channelURL, err, firstLine(stderr))
	}

	entries, err := parseFlatPlaylist(stdout)
	if err != nil {
		return nil, fmt.Errorf("failed to parse channel listing for %s: %w", channelURL, err)
	}
	if maxCount > 0 && len(entries) > maxCount {
		entries = entries[:maxCount]
	}
	return entries, nil
}

// FetchVideo downloads one video with metadata sidecar and thumbnail into
// destDir, then verifies the media file actually landed.
func (f *YtdlpFetcher) FetchVideo(ctx context.Context, videoID, destDir string) (*models.FetchResult, error) {
	if err := os.MkdirAll(destDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create video directory: %w", err)
	}

	args := []string{
		"-o", "%(id)s.%(ext)s",
		"-P", destDir,
		"-f", downloadFormat,
		"--merge-output-format", "mp4",
		"--write-info-json",
		"--write-thumbnail",
		"--no-warnings",
		"--no-progress",
		"--retries", strconv.Itoa(f.opts.MaxRetries),
	}
	args = append(args, f.commonArgs()...)
	args = append(args, models.BaseURL+"/"+videoID)

	if err := f.runStreaming(ctx, args); err != nil {
		return nil, fmt.Errorf("failed to download video %s: %w", videoID, err)
	}

	mediaPath, ok := media.FindMedia(destDir, videoID)
	if !ok {
		return nil, fmt.Errorf("download of %s reported success but no media file found in %s", videoID, destDir)
	}

	result := &models.FetchResult{MediaPath: mediaPath}
	if thumb, ok := media.FindThumbnail(destDir, videoID); ok {
		result.ThumbnailPath = thumb
	}
	result.Metadata = f.readInfoJSON(destDir, videoID)
	return result, nil
}

// commonArgs builds the flags shared by listing and download invocations.
func (f *YtdlpFetcher) commonArgs() []string {
	var args []string
	if f.opts.Timeout > 0 {
		args = append(args, "--socket-timeout", strconv.Itoa(int(f.opts.Timeout.Seconds())))
	}
	if f.opts.Cookies.FilePath != "" {
		args = append(args, "--cookies", f.opts.Cookies.FilePath)
	} else if f.opts.Cookies.Browser != "" {
		args = append(args, "--cookies-from-browser", f.opts.Cookies.Browser)
	}
	if f.opts.Proxy != "" {
		args = append(args, "--proxy", f.opts.Proxy)
	}
	if f.opts.UserAgent != "" {
		args = append(args, "--user-agent", f.opts.UserAgent)
	}
	return args
}

// runCapture executes yt-dlp and returns the full stdout, for JSON dumps.
// Stderr is kept to a bounded tail for error messages.
func (f *YtdlpFetcher) runCapture(ctx context.Context, args []string) ([]byte, string, error) {
	cmd := exec.CommandContext(ctx, f.opts.YtdlpPath, args...)

	var stdout bytes.Buffer
	var stderr limitedBuffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	f.logger.Debug().Strs("args", args).Msg("Running yt-dlp")
	err := cmd.Run()
	return stdout.Bytes(), stderr.String(), err
}

// runStreaming executes yt-dlp for a download, relaying progress lines at
// debug level instead of buffering the whole output.
func (f *YtdlpFetcher) runStreaming(ctx context.Context, args []string) error {
	cmd := exec.CommandContext(ctx, f.opts.YtdlpPath, args...)

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("failed to open stdout pipe: %w", err)
	}
	var stderr limitedBuffer
	cmd.Stderr = &stderr

	f.logger.Debug().Strs("args", args).Msg("Running yt-dlp")
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("failed to start yt-dlp: %w", err)
	}

	scanner := bufio.NewScanner(stdout)
	scanner.Buffer(make([]byte, 64*1024), maxLineBytes)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line != "" {
			f.logger.Debug().Msg(line)
		}
	}

	if err := cmd.Wait(); err != nil {
		return fmt.Errorf("yt-dlp failed: %w (%s)", err, firstLine(stderr.String()))
	}
	return nil
}

// readInfoJSON loads the yt-dlp metadata sidecar when present. Metadata is
// best effort; a missing sidecar never fails the fetch.
func (f *YtdlpFetcher) readInfoJSON(destDir, videoID string) *models.VideoMetadata {
	for _, variant := range models.VideoIDVariants(videoID) {
		path := filepath.Join(destDir, variant+".info.json")
		data, err := os.ReadFile(path)
		if err != nil {
			continue
		}

		var info infoJSON
		if err := json.Unmarshal(data, &info); err != nil {
			f.logger.Warn().Err(err).Str("path", path).Msg("Unparsable info sidecar")
			return nil
		}
		return info.toMetadata(videoID)
	}
	return nil
}

// flatPlaylist mirrors the shape of a `--flat-playlist -J` dump.
type flatPlaylist struct {
	Entries []struct {
		ID    string `json:"id"`
		URL   string `json:"url"`
		Title string `json:"title"`
	} `json:"entries"`
}

// parseFlatPlaylist converts a playlist dump into listing entries. Entries
// without a resolvable id are kept as skipped so counters stay honest.
func parseFlatPlaylist(data []byte) ([]models.ListEntry, error) {
	var playlist flatPlaylist
	if err := json.Unmarshal(data, &playlist); err != nil {
		return nil, err
	}

	entries := make([]models.ListEntry, 0, len(playlist.Entries))
	for _, e := range playlist.Entries {
		if e.ID == "" {
			entries = append(entries, models.SkippedEntry("listing entry without video id"))
			continue
		}
		entries = append(entries, models.ValidEntry(e.ID, e.URL, e.Title))
	}
	return entries, nil
}

// infoJSON is the subset of yt-dlp's info sidecar the catalog keeps.
type infoJSON struct {
	ID          string  `json:"id"`
	Title       string  `json:"title"`
	Description string  `json:"description"`
	Duration    float64 `json:"duration"`
	ViewCount   int64   `json:"view_count"`
	LikeCount   int64   `json:"like_count"`
	UploadDate  string  `json:"upload_date"`
	Uploader    string  `json:"uploader"`
	Channel     string  `json:"channel"`
	Thumbnail   string  `json:"thumbnail"`
	WebpageURL  string  `json:"webpage_url"`
}

func (i *infoJSON) toMetadata(fallbackID string) *models.VideoMetadata {
	id := i.ID
	if id == "" {
		id = fallbackID
	}
	return &models.VideoMetadata{
		ID:           id,
		Title:        i.Title,
		Description:  i.Description,
		Duration:     int(i.Duration),
		ViewCount:    i.ViewCount,
		LikeCount:    i.LikeCount,
		UploadDate:   i.UploadDate,
		Uploader:     i.Uploader,
		Channel:      i.Channel,
		ThumbnailURL: i.Thumbnail,
		WebpageURL:   i.WebpageURL,
	}
}

// isBlocked recognizes bot-protection rejections in yt-dlp stderr.
func isBlocked(stderr string) bool {
	lower := strings.ToLower(stderr)
	return strings.Contains(lower, "403") ||
		strings.Contains(lower, "forbidden") ||
		strings.Contains(lower, "captcha")
}

func firstLine(s string) string {
	s = strings.TrimSpace(s)
	if idx := strings.IndexByte(s, '\n'); idx >= 0 {
		return s[:idx]
	}
	return s
}

// limitedBuffer keeps only the first maxStderrBytes of what is written, so a
// chatty subprocess cannot balloon error messages.
type limitedBuffer struct {
	buf bytes.Buffer
}

func (b *limitedBuffer) Write(p []byte) (int, error) {
	remaining := maxStderrBytes - b.buf.Len()
	if remaining > 0 {
		if len(p) > remaining {
			b.buf.Write(p[:remaining])
		} else {
			b.buf.Write(p)
		}
	}
	return len(p), nil
}

func (b *limitedBuffer) String() string {
	return b.buf.String()
}

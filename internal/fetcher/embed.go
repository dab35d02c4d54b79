package fetcher

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"rumble-backup/internal/cookie"
	"rumble-backup/internal/utils"
	"rumble-backup/pkg/models"
)

const (
	embedAPI      = models.BaseURL + "/embedJS/u3/"
	maxListPages  = 20
	copyChunkSize = 256 * 1024
	retryDelay    = 2 * time.Second
)

// videoLinkRe matches video page links on a channel listing page. The slug
// after the id is ignored; the id alone identifies the video.
var (
	videoLinkRe  = regexp.MustCompile(`href="/(v[a-z0-9]+)-[^"]*?\.html"`)
	videoTitleRe = regexp.MustCompile(`href="/(v[a-z0-9]+)-[^"]*?\.html"[^>]*>([^<]+)<`)
)

// EmbedFetcher scrapes channel listing pages and resolves media through the
// site's embed endpoint. It needs no external binary but breaks whenever the
// site markup changes, so it is the fallback strategy.
type EmbedFetcher struct {
	opts       Options
	client     *utils.HTTPClient
	logger     zerolog.Logger
	apiBase    string
	attempts   int
	retryDelay time.Duration
}

// NewEmbedFetcher creates the scraping strategy. The cookie file, when
// configured, is folded into a request header.
func NewEmbedFetcher(opts Options) (*EmbedFetcher, error) {
	header, err := cookie.NewManager().HeaderValue(opts.Cookies)
	if err != nil {
		return nil, err
	}

	client := utils.NewHTTPClient(utils.ClientConfig{
		Timeout:         opts.Timeout,
		MaxIdleConns:    10,
		IdleConnTimeout: 90 * time.Second,
		ProxyURL:        opts.Proxy,
		UserAgent:       opts.UserAgent,
		Cookie:          header,
	})

	// MaxRetries counts retries beyond the first attempt, matching the
	// yt-dlp --retries semantics.
	attempts := opts.MaxRetries + 1
	if attempts < 1 {
		attempts = 1
	}

	return &EmbedFetcher{
		opts:       opts,
		client:     client,
		logger:     zerolog.New(os.Stdout).With().Timestamp().Str("component", "embed").Logger(),
		apiBase:    embedAPI,
		attempts:   attempts,
		retryDelay: retryDelay,
	}, nil
}

// Name returns the strategy name.
func (f *EmbedFetcher) Name() string {
	return "embed"
}

// ListVideos walks the channel's listing pages and collects video page links
// until the pages run dry or maxCount is reached.
func (f *EmbedFetcher) ListVideos(ctx context.Context, channelURL string, maxCount int) ([]models.ListEntry, error) {
	seen := make(map[string]bool)
	var entries []models.ListEntry

	for page := 1; page <= maxListPages; page++ {
		pageURL := channelURL
		if page > 1 {
			pageURL = utils.BuildURL(channelURL, map[string]string{"page": strconv.Itoa(page)})
		}

		body, err := f.getPage(ctx, pageURL)
		if err != nil {
			if page > 1 {
				break
			}
			return nil, err
		}

		found := 0
		titles := pageTitles(body)
		for _, match := range videoLinkRe.FindAllStringSubmatch(body, -1) {
			id := match[1]
			if seen[id] {
				continue
			}
			seen[id] = true
			found++
			entries = append(entries, models.ValidEntry(id, models.BaseURL+"/"+id, titles[id]))
			if maxCount > 0 && len(entries) >= maxCount {
				return entries, nil
			}
		}
		if found == 0 {
			break
		}
	}
	return entries, nil
}

// FetchVideo resolves the media URL through the embed endpoint and downloads
// media plus thumbnail into destDir.
func (f *EmbedFetcher) FetchVideo(ctx context.Context, videoID, destDir string) (*models.FetchResult, error) {
	if err := os.MkdirAll(destDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create video directory: %w", err)
	}

	info, err := f.resolveEmbed(ctx, videoID)
	if err != nil {
		return nil, err
	}

	mediaURL, ext := info.bestMedia()
	if mediaURL == "" {
		return nil, fmt.Errorf("embed data for %s carries no media url", videoID)
	}

	mediaPath := filepath.Join(destDir, videoID+ext)
	if err := f.download(ctx, mediaURL, mediaPath); err != nil {
		return nil, fmt.Errorf("failed to download media for %s: %w", videoID, err)
	}

	result := &models.FetchResult{
		MediaPath: mediaPath,
		Metadata: &models.VideoMetadata{
			ID:           videoID,
			Title:        info.Title,
			Duration:     int(info.Duration),
			Uploader:     info.Author.Name,
			Channel:      info.Author.Name,
			ThumbnailURL: info.Thumbnail,
			WebpageURL:   models.BaseURL + "/" + videoID,
		},
	}

	if info.Thumbnail != "" {
		thumbPath := filepath.Join(destDir, videoID+thumbnailExt(info.Thumbnail))
		if err := f.download(ctx, info.Thumbnail, thumbPath); err != nil {
			f.logger.Warn().Err(err).Str("video", videoID).Msg("Thumbnail download failed")
		} else {
			result.ThumbnailPath = thumbPath
		}
	}
	return result, nil
}

// getPage fetches a listing page, translating bot-protection rejections into
// the blocked sentinel.
func (f *EmbedFetcher) getPage(ctx context.Context, pageURL string) (string, error) {
	resp, err := f.client.GetWithRetry(ctx, pageURL, nil, f.attempts, f.retryDelay)
	if err != nil {
		return "", fmt.Errorf("failed to fetch %s: %w", pageURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusForbidden || resp.StatusCode == http.StatusTooManyRequests {
		return "", fmt.Errorf("%w: HTTP %d from %s", ErrListingBlocked, resp.StatusCode, pageURL)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("unexpected status %d from %s", resp.StatusCode, pageURL)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 10*1024*1024))
	if err != nil {
		return "", fmt.Errorf("failed to read %s: %w", pageURL, err)
	}
	return string(body), nil
}

// embedInfo mirrors the subset of the embed endpoint response we consume.
type embedInfo struct {
	Title     string  `json:"title"`
	Duration  float64 `json:"duration"`
	Thumbnail string  `json:"i"`
	Author    struct {
		Name string `json:"name"`
	} `json:"author"`
	UA map[string]map[string]struct {
		URL string `json:"url"`
	} `json:"ua"`
	U map[string]struct {
		URL string `json:"url"`
	} `json:"u"`
}

// bestMedia picks the highest resolution mp4 variant, falling back to any
// other container the endpoint offers.
func (i *embedInfo) bestMedia() (string, string) {
	for _, container := range []string{"mp4", "webm"} {
		variants := i.UA[container]
		if len(variants) == 0 {
			continue
		}
		heights := make([]int, 0, len(variants))
		for key := range variants {
			if h, err := strconv.Atoi(key); err == nil {
				heights = append(heights, h)
			}
		}
		sort.Sort(sort.Reverse(sort.IntSlice(heights)))
		for _, h := range heights {
			if v := variants[strconv.Itoa(h)]; v.URL != "" {
				return v.URL, "." + container
			}
		}
	}
	for _, container := range []string{"mp4", "webm"} {
		if v, ok := i.U[container]; ok && v.URL != "" {
			return v.URL, "." + container
		}
	}
	return "", ""
}

// resolveEmbed queries the embed endpoint for a video. Embed ids drop the
// page id's "v" prefix, so both spellings are tried.
func (f *EmbedFetcher) resolveEmbed(ctx context.Context, videoID string) (*embedInfo, error) {
	var lastErr error
	for _, variant := range models.VideoIDVariants(videoID) {
		url := utils.BuildURL(f.apiBase, map[string]string{"request": "video", "v": variant})

		resp, err := f.client.GetWithRetry(ctx, url, nil, f.attempts, f.retryDelay)
		if err != nil {
			lastErr = err
			continue
		}

		body, readErr := io.ReadAll(io.LimitReader(resp.Body, 4*1024*1024))
		resp.Body.Close()
		if readErr != nil {
			lastErr = readErr
			continue
		}
		if resp.StatusCode != http.StatusOK {
			lastErr = fmt.Errorf("embed endpoint returned %d for %s", resp.StatusCode, variant)
			continue
		}

		var info embedInfo
		if err := json.Unmarshal(body, &info); err != nil {
			lastErr = fmt.Errorf("unparsable embed data for %s: %w", variant, err)
			continue
		}
		return &info, nil
	}
	return nil, fmt.Errorf("failed to resolve embed data for %s: %w", videoID, lastErr)
}

// download streams a URL into path through a partial file, resuming an
// earlier interrupted attempt when the server supports ranges.
func (f *EmbedFetcher) download(ctx context.Context, url, path string) error {
	partPath := path + ".part"

	var offset int64
	if info, err := os.Stat(partPath); err == nil {
		offset = info.Size()
	}

	headers := map[string]string{}
	if offset > 0 {
		headers["Range"] = fmt.Sprintf("bytes=%d-", offset)
	}

	resp, err := f.client.GetWithRetry(ctx, url, headers, f.attempts, f.retryDelay)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusPartialContent:
	case http.StatusOK:
		// Server ignored the range; start over.
		offset = 0
	default:
		return fmt.Errorf("unexpected status %d from %s", resp.StatusCode, url)
	}

	flags := os.O_CREATE | os.O_WRONLY
	if offset > 0 {
		flags |= os.O_APPEND
	} else {
		flags |= os.O_TRUNC
	}
	file, err := os.OpenFile(partPath, flags, 0644)
	if err != nil {
		return fmt.Errorf("failed to open partial file: %w", err)
	}

	buf := make([]byte, copyChunkSize)
	if _, err := io.CopyBuffer(file, resp.Body, buf); err != nil {
		file.Close()
		return fmt.Errorf("download interrupted: %w", err)
	}
	if err := file.Sync(); err != nil {
		file.Close()
		return fmt.Errorf("failed to sync download: %w", err)
	}
	if err := file.Close(); err != nil {
		return err
	}
	return os.Rename(partPath, path)
}

// pageTitles maps video ids to link titles on a listing page, best effort.
func pageTitles(body string) map[string]string {
	titles := make(map[string]string)
	for _, match := range videoTitleRe.FindAllStringSubmatch(body, -1) {
		if _, ok := titles[match[1]]; !ok {
			titles[match[1]] = strings.TrimSpace(match[2])
		}
	}
	return titles
}

func thumbnailExt(url string) string {
	lower := strings.ToLower(url)
	for _, ext := range models.ThumbnailExtensions {
		if strings.Contains(lower, ext) {
			return ext
		}
	}
	return ".jpg"
}

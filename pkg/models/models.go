package models

import (
	"strings"
	"time"
)

// BaseURL is the site root every channel identifier resolves under.
const BaseURL = "https://rumble.com"

// MediaExtensions lists the container formats a finished download may carry.
var MediaExtensions = []string{".mp4", ".webm", ".mkv"}

// ThumbnailExtensions lists the image formats a saved thumbnail may carry.
var ThumbnailExtensions = []string{".jpg", ".jpeg", ".png", ".webp"}

// ChannelURL normalizes a channel identifier into its canonical listing URL.
// Absolute URLs pass through untouched; "c/..." and "user/..." identifiers
// keep their prefix; bare names map to the "c/<name>" form.
func ChannelURL(channelID string) string {
	if strings.HasPrefix(channelID, "http") {
		return channelID
	}
	id := strings.TrimLeft(channelID, "/")
	if strings.HasPrefix(id, "c/") || strings.HasPrefix(id, "user/") {
		return BaseURL + "/" + id
	}
	return BaseURL + "/c/" + id
}

// SafeChannelName converts a channel identifier into a directory name,
// replacing everything outside [A-Za-z0-9_-] with underscores.
func SafeChannelName(channelID string) string {
	var b strings.Builder
	b.Grow(len(channelID))
	for _, r := range channelID {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_', r == '-':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	return b.String()
}

// VideoIDVariants returns the identifier spellings a video's files may be
// stored under. Page ids carry a "v" prefix that embed ids drop, so both
// forms are tried when locating files on disk.
func VideoIDVariants(id string) []string {
	if strings.HasPrefix(id, "v") {
		return []string{id, strings.TrimPrefix(id, "v")}
	}
	return []string{id, "v" + id}
}

// ListEntry is one item of a channel listing. Entries with a resolvable
// download id carry id/url/title; entries the listing could not resolve
// carry only the skip reason.
type ListEntry struct {
	ID     string `json:"id,omitempty"`
	URL    string `json:"url,omitempty"`
	Title  string `json:"title,omitempty"`
	Reason string `json:"reason,omitempty"`
}

// ValidEntry builds a listing entry with a resolvable download id.
func ValidEntry(id, url, title string) ListEntry {
	return ListEntry{ID: id, URL: url, Title: title}
}

// SkippedEntry builds a listing entry that cannot be downloaded.
func SkippedEntry(reason string) ListEntry {
	return ListEntry{Reason: reason}
}

// Usable reports whether the entry carries a resolvable download id.
func (e ListEntry) Usable() bool {
	return e.ID != ""
}

// VideoMetadata is the descriptive record persisted beside each downloaded
// media file. It is written only after the media file is confirmed present.
type VideoMetadata struct {
	ID           string `json:"id"`
	Title        string `json:"title"`
	Description  string `json:"description"`
	Duration     int    `json:"duration"`
	ViewCount    int64  `json:"view_count"`
	LikeCount    int64  `json:"like_count"`
	UploadDate   string `json:"upload_date"`
	Uploader     string `json:"uploader"`
	Channel      string `json:"channel"`
	ThumbnailURL string `json:"thumbnail_url"`
	WebpageURL   string `json:"webpage_url"`
}

// FetchResult describes the outcome of fetching a single video.
type FetchResult struct {
	MediaPath     string
	ThumbnailPath string
	Metadata      *VideoMetadata
}

// ChannelState tracks which videos a channel has already delivered. The id
// list has set semantics; it stays a plain array so the persisted document
// remains hand-editable.
type ChannelState struct {
	DownloadedVideoIDs []string   `json:"downloaded_video_ids"`
	LastBackup         *time.Time `json:"last_backup,omitempty"`
}

// Has reports whether the id is in the recorded set.
func (s *ChannelState) Has(id string) bool {
	for _, v := range s.DownloadedVideoIDs {
		if v == id {
			return true
		}
	}
	return false
}

// Add records the id, keeping the set free of duplicates.
func (s *ChannelState) Add(id string) {
	if !s.Has(id) {
		s.DownloadedVideoIDs = append(s.DownloadedVideoIDs, id)
	}
}

// Remove drops the id from the recorded set.
func (s *ChannelState) Remove(id string) {
	for i, v := range s.DownloadedVideoIDs {
		if v == id {
			s.DownloadedVideoIDs = append(s.DownloadedVideoIDs[:i], s.DownloadedVideoIDs[i+1:]...)
			return
		}
	}
}

// BackupState is the root persisted progress document, keyed by channel
// identifier as configured.
type BackupState struct {
	Channels map[string]*ChannelState `json:"channels"`
	LastRun  *time.Time               `json:"last_run,omitempty"`
}

// NewBackupState returns an empty state ready for use.
func NewBackupState() *BackupState {
	return &BackupState{Channels: make(map[string]*ChannelState)}
}

// Channel returns the state for a channel, creating an empty one when absent.
func (s *BackupState) Channel(id string) *ChannelState {
	if s.Channels == nil {
		s.Channels = make(map[string]*ChannelState)
	}
	cs, ok := s.Channels[id]
	if !ok {
		cs = &ChannelState{}
		s.Channels[id] = cs
	}
	return cs
}

// BackupReport summarizes one channel's backup run. Created fresh per
// channel per run, never merged with earlier reports.
type BackupReport struct {
	Channel          string    `json:"channel"`
	VideosFound      int       `json:"videos_found"`
	VideosDownloaded int       `json:"videos_downloaded"`
	VideosSkipped    int       `json:"videos_skipped"`
	VideosFailed     int       `json:"videos_failed"`
	StartedAt        time.Time `json:"started_at"`
	CompletedAt      time.Time `json:"completed_at"`
	Errors           []string  `json:"errors"`
}

// RunTotals aggregates report counters across a multi-channel run.
type RunTotals struct {
	Channels         int `json:"channels"`
	VideosFound      int `json:"videos_found"`
	VideosDownloaded int `json:"videos_downloaded"`
	VideosSkipped    int `json:"videos_skipped"`
	VideosFailed     int `json:"videos_failed"`
}

// Add folds one channel report into the totals.
func (t *RunTotals) Add(r *BackupReport) {
	t.Channels++
	t.VideosFound += r.VideosFound
	t.VideosDownloaded += r.VideosDownloaded
	t.VideosSkipped += r.VideosSkipped
	t.VideosFailed += r.VideosFailed
}

// BackupOptions carries the per-run policy knobs.
type BackupOptions struct {
	MaxVideos   int
	ForceRescan bool
}

// RunStatus is the control surface's view of the background runner.
type RunStatus struct {
	Running   bool       `json:"running"`
	Channel   string     `json:"channel,omitempty"`
	StartedAt *time.Time `json:"started_at,omitempty"`
	LastRun   *time.Time `json:"last_run,omitempty"`
	LastError string     `json:"last_error,omitempty"`
}

// ChannelInfo is the enriched channel row served to the dashboard.
type ChannelInfo struct {
	ID              string     `json:"id"`
	SafeName        string     `json:"safe_name"`
	URL             string     `json:"url"`
	VideoCount      int        `json:"video_count"`
	TotalSize       int64      `json:"total_size"`
	TotalSizeHuman  string     `json:"total_size_human"`
	LastBackup      *time.Time `json:"last_backup,omitempty"`
	DownloadedCount int        `json:"downloaded_count"`
}

// Settings is the dashboard-editable subset of the configuration.
type Settings struct {
	LogLevel            string `json:"log_level"`
	MaxVideosPerChannel int    `json:"max_videos_per_channel"`
	ForceRescan         bool   `json:"force_rescan"`
	BrowserCookies      string `json:"browser_cookies"`
}

// VideoRecord is one catalog row per successfully backed up video.
type VideoRecord struct {
	ID           uint      `json:"id" gorm:"primaryKey;autoIncrement"`
	Channel      string    `json:"channel" gorm:"uniqueIndex:idx_channel_video"`
	VideoID      string    `json:"video_id" gorm:"uniqueIndex:idx_channel_video"`
	Title        string    `json:"title"`
	Uploader     string    `json:"uploader"`
	Duration     int       `json:"duration"`
	ViewCount    int64     `json:"view_count"`
	LikeCount    int64     `json:"like_count"`
	UploadDate   string    `json:"upload_date"`
	MediaPath    string    `json:"media_path"`
	Size         int64     `json:"size"`
	DownloadedAt time.Time `json:"downloaded_at" gorm:"autoCreateTime"`
}

// RunRecord is one catalog row per channel per backup run.
type RunRecord struct {
	ID               uint      `json:"id" gorm:"primaryKey;autoIncrement"`
	Channel          string    `json:"channel" gorm:"index"`
	VideosFound      int       `json:"videos_found"`
	VideosDownloaded int       `json:"videos_downloaded"`
	VideosSkipped    int       `json:"videos_skipped"`
	VideosFailed     int       `json:"videos_failed"`
	StartedAt        time.Time `json:"started_at"`
	CompletedAt      time.Time `json:"completed_at"`
}

// CatalogStats aggregates catalog-wide counters.
type CatalogStats struct {
	TotalVideos int64 `json:"total_videos"`
	TotalSize   int64 `json:"total_size"`
	TotalRuns   int64 `json:"total_runs"`
}

// User identifies an authenticated dashboard account.
type User struct {
	Username string `json:"username"`
	Role     string `json:"role"`
}

// Config represents the application configuration
type Config struct {
	Channels  []string `mapstructure:"channels" yaml:"channels"`
	OutputDir string   `mapstructure:"output_dir" yaml:"output_dir"`
	ConfigDir string   `mapstructure:"config_dir" yaml:"config_dir"`

	Log struct {
		Level string `mapstructure:"level" yaml:"level"`
		File  string `mapstructure:"file" yaml:"file"`
	} `mapstructure:"log" yaml:"log"`

	Backup struct {
		MaxVideosPerChannel int  `mapstructure:"max_videos_per_channel" yaml:"max_videos_per_channel"`
		ForceRescan         bool `mapstructure:"force_rescan" yaml:"force_rescan"`
		PauseMinSeconds     int  `mapstructure:"pause_min_seconds" yaml:"pause_min_seconds"`
		PauseMaxSeconds     int  `mapstructure:"pause_max_seconds" yaml:"pause_max_seconds"`
	} `mapstructure:"backup" yaml:"backup"`

	Fetcher struct {
		Strategy       string `mapstructure:"strategy" yaml:"strategy"`
		YtdlpPath      string `mapstructure:"ytdlp_path" yaml:"ytdlp_path"`
		Timeout        int    `mapstructure:"timeout" yaml:"timeout"`
		MaxRetries     int    `mapstructure:"max_retries" yaml:"max_retries"`
		CookiesFile    string `mapstructure:"cookies_file" yaml:"cookies_file"`
		BrowserCookies string `mapstructure:"browser_cookies" yaml:"browser_cookies"`
		Proxy          string `mapstructure:"proxy" yaml:"proxy"`
		UserAgent      string `mapstructure:"user_agent" yaml:"user_agent"`
	} `mapstructure:"fetcher" yaml:"fetcher"`

	Server struct {
		Host string `mapstructure:"host" yaml:"host"`
		Port int    `mapstructure:"port" yaml:"port"`

		RateLimit struct {
			Enabled           bool `mapstructure:"enabled" yaml:"enabled"`
			RequestsPerSecond int  `mapstructure:"requests_per_second" yaml:"requests_per_second"`
			Burst             int  `mapstructure:"burst" yaml:"burst"`
		} `mapstructure:"rate_limit" yaml:"rate_limit"`
	} `mapstructure:"server" yaml:"server"`

	Auth struct {
		Enabled      bool   `mapstructure:"enabled" yaml:"enabled"`
		Username     string `mapstructure:"username" yaml:"username"`
		PasswordHash string `mapstructure:"password_hash" yaml:"password_hash"`
		JWTSecret    string `mapstructure:"jwt_secret" yaml:"jwt_secret"`
		TokenExpiry  int    `mapstructure:"token_expiry" yaml:"token_expiry"`
	} `mapstructure:"auth" yaml:"auth"`

	Catalog struct {
		Path string `mapstructure:"path" yaml:"path"`
	} `mapstructure:"catalog" yaml:"catalog"`
}

package models

import "context"

// Fetcher resolves a channel into its published videos and retrieves
// individual videos with their metadata and thumbnail.
type Fetcher interface {
	// ListVideos enumerates a channel's videos without downloading media.
	// A positive maxCount truncates the listing.
	ListVideos(ctx context.Context, channelURL string, maxCount int) ([]ListEntry, error)

	// FetchVideo downloads one video's media, metadata and thumbnail into
	// destDir. Retries are bounded internally; the only side effect of a
	// repeated call is overwriting files under destDir.
	FetchVideo(ctx context.Context, videoID, destDir string) (*FetchResult, error)

	// Name returns the strategy name.
	Name() string
}

// StateStore persists backup progress between runs.
type StateStore interface {
	// Load reads the persisted state. An absent or unparsable file yields
	// an empty default state, not an error.
	Load() (*BackupState, error)

	// Save durably writes the state. It is the crash-recovery boundary:
	// once Save returns, a later run must observe the saved progress.
	Save(state *BackupState) error
}

// Catalog indexes backed up videos and run history for the dashboard.
type Catalog interface {
	// SaveVideo inserts or updates the record for (channel, video id).
	SaveVideo(rec *VideoRecord) error

	// VideosByChannel lists records for one channel, newest first.
	VideosByChannel(channel string, limit int) ([]*VideoRecord, error)

	// AllVideos lists every record, newest first.
	AllVideos() ([]*VideoRecord, error)

	// SaveRun appends one channel run to the history.
	SaveRun(rec *RunRecord) error

	// RecentRuns lists run history, newest first.
	RecentRuns(limit int) ([]*RunRecord, error)

	// Stats returns catalog-wide counters.
	Stats() (*CatalogStats, error)

	// Close closes the underlying database.
	Close() error
}

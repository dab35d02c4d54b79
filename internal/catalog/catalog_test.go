package catalog

import (
	"path/filepath"
	"testing"
	"time"

	"rumble-backup/pkg/models"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := NewStore(filepath.Join(t.TempDir(), "catalog.db"))
	if err != nil {
		t.Fatalf("NewStore failed: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestSaveVideoUpsert(t *testing.T) {
	store := newTestStore(t)

	rec := &models.VideoRecord{
		Channel:      "newschannel",
		VideoID:      "v6abc12",
		Title:        "First",
		Size:         100,
		DownloadedAt: time.Now().UTC(),
	}
	if err := store.SaveVideo(rec); err != nil {
		t.Fatalf("SaveVideo failed: %v", err)
	}

	update := &models.VideoRecord{
		Channel:      "newschannel",
		VideoID:      "v6abc12",
		Title:        "First (fixed)",
		Size:         200,
		DownloadedAt: time.Now().UTC(),
	}
	if err := store.SaveVideo(update); err != nil {
		t.Fatalf("upsert failed: %v", err)
	}

	videos, err := store.VideosByChannel("newschannel", 0)
	if err != nil {
		t.Fatalf("VideosByChannel failed: %v", err)
	}
	if len(videos) != 1 {
		t.Fatalf("Expected 1 record after upsert, got %d", len(videos))
	}
	if videos[0].Title != "First (fixed)" || videos[0].Size != 200 {
		t.Errorf("Expected updated record, got %+v", videos[0])
	}
}

func TestVideosByChannelOrderAndLimit(t *testing.T) {
	store := newTestStore(t)

	base := time.Now().UTC()
	for i, id := range []string{"v1", "v2", "v3"} {
		rec := &models.VideoRecord{
			Channel:      "newschannel",
			VideoID:      id,
			DownloadedAt: base.Add(time.Duration(i) * time.Minute),
		}
		if err := store.SaveVideo(rec); err != nil {
			t.Fatalf("SaveVideo failed: %v", err)
		}
	}
	if err := store.SaveVideo(&models.VideoRecord{Channel: "other", VideoID: "v9", DownloadedAt: base}); err != nil {
		t.Fatalf("SaveVideo failed: %v", err)
	}

	videos, err := store.VideosByChannel("newschannel", 2)
	if err != nil {
		t.Fatalf("VideosByChannel failed: %v", err)
	}
	if len(videos) != 2 {
		t.Fatalf("Expected limit 2 honored, got %d", len(videos))
	}
	if videos[0].VideoID != "v3" || videos[1].VideoID != "v2" {
		t.Errorf("Expected newest first, got %s, %s", videos[0].VideoID, videos[1].VideoID)
	}
}

func TestRunHistoryAndStats(t *testing.T) {
	store := newTestStore(t)

	now := time.Now().UTC()
	for i := 0; i < 3; i++ {
		rec := &models.RunRecord{
			Channel:          "newschannel",
			VideosDownloaded: i,
			StartedAt:        now,
			CompletedAt:      now.Add(time.Duration(i) * time.Minute),
		}
		if err := store.SaveRun(rec); err != nil {
			t.Fatalf("SaveRun failed: %v", err)
		}
	}
	if err := store.SaveVideo(&models.VideoRecord{Channel: "newschannel", VideoID: "v1", Size: 150, DownloadedAt: now}); err != nil {
		t.Fatalf("SaveVideo failed: %v", err)
	}

	runs, err := store.RecentRuns(2)
	if err != nil {
		t.Fatalf("RecentRuns failed: %v", err)
	}
	if len(runs) != 2 || runs[0].VideosDownloaded != 2 {
		t.Errorf("Expected 2 newest runs, got %+v", runs)
	}

	stats, err := store.Stats()
	if err != nil {
		t.Fatalf("Stats failed: %v", err)
	}
	if stats.TotalVideos != 1 || stats.TotalSize != 150 || stats.TotalRuns != 3 {
		t.Errorf("Unexpected stats: %+v", stats)
	}
}

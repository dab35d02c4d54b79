package models

import (
	"testing"
	"time"
)

func TestChannelURL(t *testing.T) {
	tests := []struct {
		channelID string
		expected  string
	}{
		{"https://rumble.com/c/News", "https://rumble.com/c/News"},
		{"http://example.com/channel", "http://example.com/channel"},
		{"c/SomeChannel", "https://rumble.com/c/SomeChannel"},
		{"user/SomeUser", "https://rumble.com/user/SomeUser"},
		{"newschannel", "https://rumble.com/c/newschannel"},
		{"/c/SomeChannel", "https://rumble.com/c/SomeChannel"},
		{"/newschannel", "https://rumble.com/c/newschannel"},
	}

	for _, test := range tests {
		result := ChannelURL(test.channelID)
		if result != test.expected {
			t.Errorf("ChannelURL(%q): expected %s, got %s", test.channelID, test.expected, result)
		}
	}
}

func TestSafeChannelName(t *testing.T) {
	tests := []struct {
		channelID string
		expected  string
	}{
		{"newschannel", "newschannel"},
		{"c/SomeChannel", "c_SomeChannel"},
		{"user/Some-User_1", "user_Some-User_1"},
		{"https://rumble.com/c/News", "https___rumble_com_c_News"},
		{"a b.c", "a_b_c"},
		{"", ""},
	}

	for _, test := range tests {
		result := SafeChannelName(test.channelID)
		if result != test.expected {
			t.Errorf("SafeChannelName(%q): expected %s, got %s", test.channelID, test.expected, result)
		}
	}
}

func TestVideoIDVariants(t *testing.T) {
	tests := []struct {
		id       string
		expected []string
	}{
		{"v4abcd", []string{"v4abcd", "4abcd"}},
		{"4abcd", []string{"4abcd", "v4abcd"}},
		{"video1", []string{"video1", "ideo1"}},
	}

	for _, test := range tests {
		result := VideoIDVariants(test.id)
		if len(result) != len(test.expected) {
			t.Fatalf("VideoIDVariants(%q): expected %d variants, got %d", test.id, len(test.expected), len(result))
		}
		for i, v := range result {
			if v != test.expected[i] {
				t.Errorf("VideoIDVariants(%q)[%d]: expected %s, got %s", test.id, i, test.expected[i], v)
			}
		}
	}
}

func TestListEntryUsable(t *testing.T) {
	valid := ValidEntry("v123", "https://rumble.com/v123-title.html", "Title")
	if !valid.Usable() {
		t.Error("Expected valid entry to be usable")
	}
	if valid.ID != "v123" {
		t.Errorf("Expected ID v123, got %s", valid.ID)
	}

	skipped := SkippedEntry("no embed id")
	if skipped.Usable() {
		t.Error("Expected skipped entry to not be usable")
	}
	if skipped.Reason != "no embed id" {
		t.Errorf("Expected reason 'no embed id', got %s", skipped.Reason)
	}
}

func TestChannelStateSet(t *testing.T) {
	state := &ChannelState{}

	if state.Has("v1") {
		t.Error("Expected empty state to not contain v1")
	}

	state.Add("v1")
	state.Add("v2")
	state.Add("v1")

	if len(state.DownloadedVideoIDs) != 2 {
		t.Errorf("Expected 2 recorded ids after duplicate add, got %d", len(state.DownloadedVideoIDs))
	}

	if !state.Has("v1") || !state.Has("v2") {
		t.Error("Expected both v1 and v2 to be recorded")
	}

	state.Remove("v1")
	if state.Has("v1") {
		t.Error("Expected v1 to be removed")
	}
	if !state.Has("v2") {
		t.Error("Expected v2 to survive removal of v1")
	}

	state.Remove("missing")
	if len(state.DownloadedVideoIDs) != 1 {
		t.Errorf("Expected removal of missing id to be a no-op, got %d ids", len(state.DownloadedVideoIDs))
	}
}

func TestBackupStateChannel(t *testing.T) {
	state := NewBackupState()

	cs := state.Channel("newschannel")
	if cs == nil {
		t.Fatal("Expected channel state to be created")
	}

	cs.Add("v1")

	again := state.Channel("newschannel")
	if !again.Has("v1") {
		t.Error("Expected repeated Channel call to return the same state")
	}

	if len(state.Channels) != 1 {
		t.Errorf("Expected 1 channel, got %d", len(state.Channels))
	}
}

func TestBackupStateChannelNilMap(t *testing.T) {
	state := &BackupState{}

	cs := state.Channel("ch")
	if cs == nil {
		t.Fatal("Expected channel state despite nil map")
	}

	if state.Channels == nil {
		t.Error("Expected channel map to be initialized")
	}
}

func TestRunTotalsAdd(t *testing.T) {
	totals := &RunTotals{}

	totals.Add(&BackupReport{VideosFound: 3, VideosDownloaded: 2, VideosSkipped: 1, VideosFailed: 0})
	totals.Add(&BackupReport{VideosFound: 5, VideosDownloaded: 0, VideosSkipped: 4, VideosFailed: 1})

	if totals.Channels != 2 {
		t.Errorf("Expected 2 channels, got %d", totals.Channels)
	}
	if totals.VideosFound != 8 {
		t.Errorf("Expected 8 videos found, got %d", totals.VideosFound)
	}
	if totals.VideosDownloaded != 2 {
		t.Errorf("Expected 2 videos downloaded, got %d", totals.VideosDownloaded)
	}
	if totals.VideosSkipped != 5 {
		t.Errorf("Expected 5 videos skipped, got %d", totals.VideosSkipped)
	}
	if totals.VideosFailed != 1 {
		t.Errorf("Expected 1 video failed, got %d", totals.VideosFailed)
	}
}

func TestBackupReportCreation(t *testing.T) {
	now := time.Now()
	report := &BackupReport{
		Channel:          "newschannel",
		VideosFound:      3,
		VideosDownloaded: 3,
		StartedAt:        now,
		CompletedAt:      now.Add(time.Minute),
		Errors:           []string{},
	}

	if report.Channel != "newschannel" {
		t.Errorf("Expected channel newschannel, got %s", report.Channel)
	}

	if report.VideosFound != 3 {
		t.Errorf("Expected 3 videos found, got %d", report.VideosFound)
	}

	if len(report.Errors) != 0 {
		t.Errorf("Expected no errors, got %d", len(report.Errors))
	}
}

func TestVideoMetadataWithDefaultValues(t *testing.T) {
	meta := &VideoMetadata{}

	if meta.Duration != 0 {
		t.Errorf("Expected 0 duration for zero value, got %d", meta.Duration)
	}

	if meta.ViewCount != 0 {
		t.Errorf("Expected 0 view count for zero value, got %d", meta.ViewCount)
	}

	if meta.ThumbnailURL != "" {
		t.Errorf("Expected empty thumbnail URL for zero value, got %s", meta.ThumbnailURL)
	}
}

func TestRunStatusWithDefaultValues(t *testing.T) {
	status := &RunStatus{}

	if status.Running {
		t.Error("Expected running to be false for zero value")
	}

	if status.Channel != "" {
		t.Errorf("Expected empty channel for zero value, got %s", status.Channel)
	}

	if status.StartedAt != nil {
		t.Error("Expected nil started_at for zero value")
	}
}

package media

import (
	"os"
	"path/filepath"
	"testing"
)

func writeFile(t *testing.T, path string, size int) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatalf("mkdir failed: %v", err)
	}
	if err := os.WriteFile(path, make([]byte, size), 0644); err != nil {
		t.Fatalf("write failed: %v", err)
	}
}

func TestIsMediaFile(t *testing.T) {
	tests := []struct {
		name     string
		expected bool
	}{
		{"v4abcd.mp4", true},
		{"video.WEBM", true},
		{"video.mkv", true},
		{"video.mp4.part", false},
		{"video.mp4.ytdl", false},
		{"video.mp4.tmp", false},
		{"metadata.json", false},
		{"thumb.jpg", false},
	}

	for _, test := range tests {
		result := IsMediaFile(test.name)
		if result != test.expected {
			t.Errorf("IsMediaFile(%q): expected %v, got %v", test.name, test.expected, result)
		}
	}
}

func TestFindMediaByIDVariant(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "4abcd.mp4"), 10)

	// Lookup with the v-prefixed form must still find the stripped file.
	path, ok := FindMedia(dir, "v4abcd")
	if !ok {
		t.Fatal("Expected media file to be found via id variant")
	}
	if filepath.Base(path) != "4abcd.mp4" {
		t.Errorf("Expected 4abcd.mp4, got %s", filepath.Base(path))
	}
}

func TestFindMediaFallbackScan(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "Some Title.webm"), 10)
	writeFile(t, filepath.Join(dir, "metadata.json"), 5)

	path, ok := FindMedia(dir, "v4abcd")
	if !ok {
		t.Fatal("Expected fallback scan to find title-named media file")
	}
	if filepath.Base(path) != "Some Title.webm" {
		t.Errorf("Expected Some Title.webm, got %s", filepath.Base(path))
	}
}

func TestFindMediaIgnoresPartials(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "v4abcd.mp4.part"), 10)

	if _, ok := FindMedia(dir, "v4abcd"); ok {
		t.Error("Expected partial download to not count as media")
	}
}

func TestFindMediaIgnoresEmptyFiles(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "v4abcd.mp4"), 0)

	if _, ok := FindMedia(dir, "v4abcd"); ok {
		t.Error("Expected empty file to not count as media")
	}
}

func TestFindMediaMissingDir(t *testing.T) {
	if _, ok := FindMedia(filepath.Join(t.TempDir(), "missing"), "v1"); ok {
		t.Error("Expected no media in missing directory")
	}
}

func TestFindThumbnail(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "v4abcd.jpg"), 10)

	path, ok := FindThumbnail(dir, "4abcd")
	if !ok {
		t.Fatal("Expected thumbnail to be found")
	}
	if filepath.Base(path) != "v4abcd.jpg" {
		t.Errorf("Expected v4abcd.jpg, got %s", filepath.Base(path))
	}
}

func TestDirSize(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "a", "one.mp4"), 100)
	writeFile(t, filepath.Join(dir, "b", "two.mp4"), 50)
	writeFile(t, filepath.Join(dir, "b", "metadata.json"), 25)

	if size := DirSize(dir); size != 175 {
		t.Errorf("Expected total size 175, got %d", size)
	}
}

func TestCountVideoDirs(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "v1", "v1.mp4"), 10)
	writeFile(t, filepath.Join(dir, "v2", "v2.webm"), 10)
	writeFile(t, filepath.Join(dir, "v3", "metadata.json"), 10)
	writeFile(t, filepath.Join(dir, "backup_report.json"), 10)

	if count := CountVideoDirs(dir); count != 2 {
		t.Errorf("Expected 2 video directories, got %d", count)
	}
}

package media

import (
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"rumble-backup/pkg/models"
)

// partialSuffixes marks in-progress download artifacts that never count as
// finished files.
var partialSuffixes = []string{".part", ".ytdl", ".tmp"}

// IsMediaFile reports whether the name has a known container extension and
// is not a partial artifact.
func IsMediaFile(name string) bool {
	if isPartial(name) {
		return false
	}
	return hasExtension(name, models.MediaExtensions)
}

// IsThumbnailFile reports whether the name has a known thumbnail extension.
func IsThumbnailFile(name string) bool {
	if isPartial(name) {
		return false
	}
	return hasExtension(name, models.ThumbnailExtensions)
}

// FindMedia locates the finished media file for a video id inside dir. The
// id variants are tried against the known container extensions first; when
// none match, the directory is scanned for any finished media file, since
// fetchers may name files after the video title instead of the id.
func FindMedia(dir, videoID string) (string, bool) {
	for _, variant := range models.VideoIDVariants(videoID) {
		for _, ext := range models.MediaExtensions {
			path := filepath.Join(dir, variant+ext)
			if fileExists(path) {
				return path, true
			}
		}
	}
	return scanDir(dir, IsMediaFile)
}

// FindThumbnail locates a saved thumbnail for the video id inside dir.
func FindThumbnail(dir, videoID string) (string, bool) {
	for _, variant := range models.VideoIDVariants(videoID) {
		for _, ext := range models.ThumbnailExtensions {
			path := filepath.Join(dir, variant+ext)
			if fileExists(path) {
				return path, true
			}
		}
	}
	return scanDir(dir, IsThumbnailFile)
}

// DirSize sums the sizes of all regular files under dir. Unreadable entries
// are skipped.
func DirSize(dir string) int64 {
	var total int64
	filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.Type().IsRegular() {
			if info, err := d.Info(); err == nil {
				total += info.Size()
			}
		}
		return nil
	})
	return total
}

// CountVideoDirs counts the subdirectories of channelDir that hold at least
// one finished media file.
func CountVideoDirs(channelDir string) int {
	entries, err := os.ReadDir(channelDir)
	if err != nil {
		return 0
	}

	count := 0
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		if _, ok := scanDir(filepath.Join(channelDir, entry.Name()), IsMediaFile); ok {
			count++
		}
	}
	return count
}

// scanDir returns the first regular file in dir matching the predicate.
func scanDir(dir string, match func(string) bool) (string, bool) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", false
	}

	for _, entry := range entries {
		if entry.IsDir() || !match(entry.Name()) {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		if fileExists(path) {
			return path, true
		}
	}
	return "", false
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular() && info.Size() > 0
}

func isPartial(name string) bool {
	lower := strings.ToLower(name)
	for _, suffix := range partialSuffixes {
		if strings.HasSuffix(lower, suffix) {
			return true
		}
	}
	return false
}

func hasExtension(name string, exts []string) bool {
	lower := strings.ToLower(name)
	for _, ext := range exts {
		if strings.HasSuffix(lower, ext) {
			return true
		}
	}
	return false
}

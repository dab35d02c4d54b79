package fetcher

import (
	"strings"
	"testing"
)

func TestParseFlatPlaylist(t *testing.T) {
	data := []byte(`{
		"entries": [
			{"id": "v6abc12", "url": "https://rumble.com/v6abc12-first.html", "title": "First"},
			{"id": "", "title": "Members only"},
			{"id": "v6def34", "url": "https://rumble.com/v6def34-second.html", "title": "Second"}
		]
	}`)

	entries, err := parseFlatPlaylist(data)
	if err != nil {
		t.Fatalf("parseFlatPlaylist failed: %v", err)
	}
	if len(entries) != 3 {
		t.Fatalf("Expected 3 entries, got %d", len(entries))
	}
	if !entries[0].Usable() || entries[0].ID != "v6abc12" || entries[0].Title != "First" {
		t.Errorf("Unexpected first entry: %+v", entries[0])
	}
	if entries[1].Usable() {
		t.Errorf("Expected entry without id to be skipped, got %+v", entries[1])
	}
	if entries[1].Reason == "" {
		t.Error("Expected skipped entry to carry a reason")
	}
	if entries[2].ID != "v6def34" {
		t.Errorf("Expected id v6def34, got %s", entries[2].ID)
	}
}

func TestParseFlatPlaylistInvalid(t *testing.T) {
	if _, err := parseFlatPlaylist([]byte("not json")); err == nil {
		t.Error("Expected error for invalid playlist JSON")
	}
}

func TestIsBlocked(t *testing.T) {
	tests := []struct {
		name     string
		stderr   string
		expected bool
	}{
		{"http 403", "ERROR: unable to download webpage: HTTP Error 403: Forbidden", true},
		{"forbidden word", "access Forbidden by upstream", true},
		{"captcha", "please solve the CAPTCHA to continue", true},
		{"not found", "ERROR: HTTP Error 404: Not Found", false},
		{"empty", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := isBlocked(tt.stderr); got != tt.expected {
				t.Errorf("Expected %v, got %v", tt.expected, got)
			}
		})
	}
}

func TestInfoJSONToMetadata(t *testing.T) {
	info := &infoJSON{
		Title:      "A Video",
		Duration:   93.7,
		ViewCount:  1200,
		UploadDate: "20250110",
		Uploader:   "someone",
	}

	meta := info.toMetadata("v6abc12")
	if meta.ID != "v6abc12" {
		t.Errorf("Expected fallback id v6abc12, got %s", meta.ID)
	}
	if meta.Duration != 93 {
		t.Errorf("Expected duration 93, got %d", meta.Duration)
	}
	if meta.Title != "A Video" {
		t.Errorf("Expected title preserved, got %s", meta.Title)
	}
}

func TestCommonArgsCookiePrecedence(t *testing.T) {
	f := NewYtdlpFetcher(Options{})
	f.opts.Cookies.FilePath = "/tmp/cookies.txt"
	f.opts.Cookies.Browser = "firefox"

	args := strings.Join(f.commonArgs(), " ")
	if !strings.Contains(args, "--cookies /tmp/cookies.txt") {
		t.Errorf("Expected --cookies flag, got %s", args)
	}
	if strings.Contains(args, "--cookies-from-browser") {
		t.Errorf("Expected file to take precedence over browser, got %s", args)
	}
}

func TestLimitedBufferCapsInput(t *testing.T) {
	var buf limitedBuffer
	chunk := strings.Repeat("x", maxStderrBytes)

	n, err := buf.Write([]byte(chunk))
	if err != nil || n != len(chunk) {
		t.Fatalf("Write failed: n=%d err=%v", n, err)
	}
	if n, _ := buf.Write([]byte("overflow")); n != len("overflow") {
		t.Errorf("Expected writes past the cap to report success, got %d", n)
	}
	if len(buf.String()) != maxStderrBytes {
		t.Errorf("Expected buffer capped at %d, got %d", maxStderrBytes, len(buf.String()))
	}
}

package cookie

import (
	"os"
	"path/filepath"
	"testing"
)

func TestResolveMissingFileIgnored(t *testing.T) {
	m := NewManager()
	src := m.Resolve(filepath.Join(t.TempDir(), "nope.txt"), "")
	if src.FilePath != "" {
		t.Errorf("Expected missing cookies file to be dropped, got %s", src.FilePath)
	}
}

func TestResolveBrowserValidation(t *testing.T) {
	m := NewManager()

	tests := []struct {
		name     string
		browser  string
		expected string
	}{
		{"known browser", "chrome", "chrome"},
		{"case folded", "Firefox", "firefox"},
		{"unknown browser", "netscape-navigator", ""},
		{"empty", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src := m.Resolve("", tt.browser)
			if src.Browser != tt.expected {
				t.Errorf("Expected browser %q, got %q", tt.expected, src.Browser)
			}
		})
	}
}

func TestResolveExistingFileMadeAbsolute(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cookies.txt")
	if err := os.WriteFile(path, []byte("# Netscape HTTP Cookie File\n"), 0644); err != nil {
		t.Fatalf("write failed: %v", err)
	}

	m := NewManager()
	src := m.Resolve(path, "")
	if src.FilePath == "" {
		t.Fatal("Expected existing cookies file to be accepted")
	}
	if !filepath.IsAbs(src.FilePath) {
		t.Errorf("Expected absolute path, got %s", src.FilePath)
	}
}

func TestHeaderValueParsesNetscapeRows(t *testing.T) {
	content := "# Netscape HTTP Cookie File\n" +
		"# comment row\n" +
		"\n" +
		".rumble.com\tTRUE\t/\tTRUE\t1999999999\tu_s\tabc123\n" +
		".rumble.com\tTRUE\t/\tFALSE\t1999999999\tsession\txyz\n" +
		"malformed row without tabs\n"

	path := filepath.Join(t.TempDir(), "cookies.txt")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write failed: %v", err)
	}

	m := NewManager()
	src := m.Resolve(path, "")
	header, err := m.HeaderValue(src)
	if err != nil {
		t.Fatalf("HeaderValue failed: %v", err)
	}

	expected := "u_s=abc123; session=xyz"
	if header != expected {
		t.Errorf("Expected header %q, got %q", expected, header)
	}
}

func TestHeaderValueEmptyWithoutFile(t *testing.T) {
	m := NewManager()
	header, err := m.HeaderValue(Source{})
	if err != nil {
		t.Fatalf("HeaderValue failed: %v", err)
	}
	if header != "" {
		t.Errorf("Expected empty header, got %q", header)
	}
}

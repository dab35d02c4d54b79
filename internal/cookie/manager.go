package cookie

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"
)

// knownBrowsers lists the names yt-dlp accepts for --cookies-from-browser.
var knownBrowsers = []string{"brave", "chrome", "chromium", "edge", "firefox", "opera", "safari", "vivaldi"}

// Source resolves the configured credential hints into the forms the fetch
// strategies consume: a validated Netscape cookie file path for --cookies,
// or a browser name for --cookies-from-browser. Both may be empty.
type Source struct {
	FilePath string
	Browser  string
}

// Manager validates and exposes cookie credential hints. Invalid hints are
// logged and dropped rather than failing the run; backups of public channels
// work without any cookies at all.
type Manager struct {
	logger zerolog.Logger
}

// NewManager creates a new cookie manager.
func NewManager() *Manager {
	return &Manager{
		logger: zerolog.New(os.Stdout).With().Timestamp().Str("component", "cookie").Logger(),
	}
}

// Resolve validates the configured hints and returns the usable source.
func (m *Manager) Resolve(cookiesFile, browserCookies string) Source {
	src := Source{}

	if path := strings.TrimSpace(cookiesFile); path != "" {
		abs, err := filepath.Abs(path)
		if err == nil {
			if _, statErr := os.Stat(abs); statErr == nil {
				src.FilePath = abs
			} else {
				err = statErr
			}
		}
		if src.FilePath == "" {
			m.logger.Warn().Err(err).Str("path", path).Msg("Cookies file unusable, ignoring")
		}
	}

	if browser := strings.ToLower(strings.TrimSpace(browserCookies)); browser != "" {
		if isKnownBrowser(browser) {
			src.Browser = browser
		} else {
			m.logger.Warn().Str("browser", browser).Msg("Unknown browser for cookie extraction, ignoring")
		}
	}

	return src
}

// HeaderValue loads the resolved cookie file into a Cookie request header
// value for HTTP-based fetching. Returns empty when no file is configured.
func (m *Manager) HeaderValue(src Source) (string, error) {
	if src.FilePath == "" {
		return "", nil
	}

	pairs, err := parseNetscapeFile(src.FilePath)
	if err != nil {
		return "", fmt.Errorf("failed to parse cookies file: %w", err)
	}
	return strings.Join(pairs, "; "), nil
}

// parseNetscapeFile reads name=value pairs from a Netscape-format cookie
// file, the format browser exporters and yt-dlp produce. Comment lines and
// malformed rows are skipped.
func parseNetscapeFile(path string) ([]string, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	var pairs []string
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		// Netscape rows: domain, include-subdomains, path, secure,
		// expiry, name, value.
		fields := strings.Split(line, "\t")
		if len(fields) < 7 {
			continue
		}
		name := strings.TrimSpace(fields[5])
		value := strings.TrimSpace(fields[6])
		if name == "" {
			continue
		}
		pairs = append(pairs, name+"="+value)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return pairs, nil
}

func isKnownBrowser(name string) bool {
	for _, b := range knownBrowsers {
		if b == name {
			return true
		}
	}
	return false
}

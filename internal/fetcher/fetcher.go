package fetcher

import (
	"errors"
	"time"

	"rumble-backup/internal/cookie"
	"rumble-backup/pkg/models"
)

// ErrListingBlocked marks a channel listing rejected by bot protection.
// Callers treat it as non-fatal and surface remediation hints instead of
// aborting the run.
var ErrListingBlocked = errors.New("channel listing blocked by bot protection")

// Options carries the knobs shared by all fetch strategies.
type Options struct {
	YtdlpPath  string
	Timeout    time.Duration
	MaxRetries int
	Cookies    cookie.Source
	Proxy      string
	UserAgent  string
}

// FromConfig builds fetch options from the loaded configuration, resolving
// the cookie hints on the way.
func FromConfig(cfg *models.Config, cookies *cookie.Manager) Options {
	return Options{
		YtdlpPath:  cfg.Fetcher.YtdlpPath,
		Timeout:    time.Duration(cfg.Fetcher.Timeout) * time.Second,
		MaxRetries: cfg.Fetcher.MaxRetries,
		Cookies:    cookies.Resolve(cfg.Fetcher.CookiesFile, cfg.Fetcher.BrowserCookies),
		Proxy:      cfg.Fetcher.Proxy,
		UserAgent:  cfg.Fetcher.UserAgent,
	}
}

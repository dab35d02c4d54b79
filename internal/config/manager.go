package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/viper"

	"rumble-backup/pkg/models"
)

// DefaultUserAgent is sent on outbound requests when no override is
// configured.
const DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

// Manager loads and persists the application configuration.
type Manager struct {
	config  *models.Config
	viper   *viper.Viper
	logger  zerolog.Logger
	logFile *os.File
}

// NewManager creates a new configuration manager.
func NewManager() *Manager {
	return &Manager{
		config: &models.Config{},
		viper:  viper.New(),
		logger: zerolog.New(os.Stdout).With().Timestamp().Logger(),
	}
}

// Load reads configuration from <configDir>/config.yaml and the RB_
// environment overrides. A missing config file is created with defaults.
func (m *Manager) Load(configDir string) (*models.Config, error) {
	m.setDefaults()

	m.viper.SetConfigName("config")
	m.viper.SetConfigType("yaml")

	if configDir != "" {
		m.viper.AddConfigPath(configDir)
		m.viper.SetDefault("config_dir", configDir)
	} else {
		m.viper.AddConfigPath("./config")
		m.viper.AddConfigPath(".")
		m.viper.AddConfigPath("$HOME/.rumble-backup")
		m.viper.AddConfigPath("/etc/rumble-backup")
	}

	m.viper.SetEnvPrefix("RB")
	m.viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	m.viper.AutomaticEnv()

	if err := m.viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		if err := m.createDefaultConfig(configDir); err != nil {
			m.logger.Warn().Msgf("Failed to create default config: %v", err)
		}
	}

	if err := m.viper.Unmarshal(m.config); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	if m.config.Catalog.Path == "" {
		m.config.Catalog.Path = filepath.Join(m.config.ConfigDir, "catalog.db")
	}

	if err := m.ensureDirectories(); err != nil {
		return nil, fmt.Errorf("error ensuring directories: %w", err)
	}

	m.configureLogger()

	return m.config, nil
}

// GetConfig returns the current configuration.
func (m *Manager) GetConfig() *models.Config {
	return m.config
}

// StatePath returns the location of the backup progress document.
func (m *Manager) StatePath() string {
	return filepath.Join(m.config.ConfigDir, "backup_state.json")
}

// LogPath returns the location of the log file the server tees into.
func (m *Manager) LogPath() string {
	return filepath.Join(m.config.ConfigDir, m.config.Log.File)
}

// FetcherTimeout returns the per-operation network timeout.
func (m *Manager) FetcherTimeout() time.Duration {
	return time.Duration(m.config.Fetcher.Timeout) * time.Second
}

// PauseMin returns the lower bound of the inter-download pause.
func (m *Manager) PauseMin() time.Duration {
	return time.Duration(m.config.Backup.PauseMinSeconds) * time.Second
}

// PauseMax returns the upper bound of the inter-download pause.
func (m *Manager) PauseMax() time.Duration {
	return time.Duration(m.config.Backup.PauseMaxSeconds) * time.Second
}

// Settings returns the dashboard-editable configuration subset.
func (m *Manager) Settings() models.Settings {
	return models.Settings{
		LogLevel:            m.config.Log.Level,
		MaxVideosPerChannel: m.config.Backup.MaxVideosPerChannel,
		ForceRescan:         m.config.Backup.ForceRescan,
		BrowserCookies:      m.config.Fetcher.BrowserCookies,
	}
}

// SaveSettings applies the dashboard-editable subset and writes the config
// file back.
func (m *Manager) SaveSettings(s models.Settings) error {
	m.viper.Set("log.level", s.LogLevel)
	m.viper.Set("backup.max_videos_per_channel", s.MaxVideosPerChannel)
	m.viper.Set("backup.force_rescan", s.ForceRescan)
	m.viper.Set("fetcher.browser_cookies", s.BrowserCookies)

	if err := m.viper.Unmarshal(m.config); err != nil {
		return fmt.Errorf("error applying settings: %w", err)
	}
	m.configureLogLevel()

	if err := m.writeConfig(); err != nil {
		return fmt.Errorf("error saving settings: %w", err)
	}
	return nil
}

// AddChannel appends a channel to the configured list and persists it.
// Duplicates are rejected.
func (m *Manager) AddChannel(channel string) error {
	channel = strings.TrimSpace(channel)
	if channel == "" {
		return fmt.Errorf("channel name required")
	}
	for _, existing := range m.config.Channels {
		if existing == channel {
			return fmt.Errorf("channel %q already configured", channel)
		}
	}

	m.config.Channels = append(m.config.Channels, channel)
	m.viper.Set("channels", m.config.Channels)
	return m.writeConfig()
}

// RemoveChannel drops a channel from the configured list and persists it.
func (m *Manager) RemoveChannel(channel string) error {
	channels := make([]string, 0, len(m.config.Channels))
	found := false
	for _, existing := range m.config.Channels {
		if existing == channel {
			found = true
			continue
		}
		channels = append(channels, existing)
	}
	if !found {
		return fmt.Errorf("channel %q not configured", channel)
	}

	m.config.Channels = channels
	m.viper.Set("channels", channels)
	return m.writeConfig()
}

func (m *Manager) writeConfig() error {
	configFile := filepath.Join(m.config.ConfigDir, "config.yaml")
	if err := os.MkdirAll(m.config.ConfigDir, 0755); err != nil {
		return fmt.Errorf("error creating config directory: %w", err)
	}
	if err := m.viper.WriteConfigAs(configFile); err != nil {
		return fmt.Errorf("error writing config file: %w", err)
	}
	return nil
}

// setDefaults sets default configuration values.
func (m *Manager) setDefaults() {
	m.viper.SetDefault("channels", []string{})
	m.viper.SetDefault("output_dir", "./backups")
	m.viper.SetDefault("config_dir", "./config")

	// Log defaults
	m.viper.SetDefault("log.level", "info")
	m.viper.SetDefault("log.file", "rumble_backup.log")

	// Backup defaults
	m.viper.SetDefault("backup.max_videos_per_channel", 0)
	m.viper.SetDefault("backup.force_rescan", false)
	m.viper.SetDefault("backup.pause_min_seconds", 2)
	m.viper.SetDefault("backup.pause_max_seconds", 4)

	// Fetcher defaults
	m.viper.SetDefault("fetcher.strategy", "ytdlp")
	m.viper.SetDefault("fetcher.ytdlp_path", "yt-dlp")
	m.viper.SetDefault("fetcher.timeout", 60)
	m.viper.SetDefault("fetcher.max_retries", 10)
	m.viper.SetDefault("fetcher.cookies_file", "")
	m.viper.SetDefault("fetcher.browser_cookies", "")
	m.viper.SetDefault("fetcher.proxy", "")
	m.viper.SetDefault("fetcher.user_agent", DefaultUserAgent)

	// Server defaults
	m.viper.SetDefault("server.host", "0.0.0.0")
	m.viper.SetDefault("server.port", 8080)
	m.viper.SetDefault("server.rate_limit.enabled", true)
	m.viper.SetDefault("server.rate_limit.requests_per_second", 10)
	m.viper.SetDefault("server.rate_limit.burst", 30)

	// Auth defaults
	m.viper.SetDefault("auth.enabled", false)
	m.viper.SetDefault("auth.username", "admin")
	m.viper.SetDefault("auth.password_hash", "")
	m.viper.SetDefault("auth.jwt_secret", "change-this-secret-before-enabling-auth")
	m.viper.SetDefault("auth.token_expiry", 24)

	// Catalog defaults
	m.viper.SetDefault("catalog.path", "")
}

// createDefaultConfig creates a default configuration file.
func (m *Manager) createDefaultConfig(configDir string) error {
	if configDir == "" {
		configDir = "./config"
	}
	if err := os.MkdirAll(configDir, 0755); err != nil {
		return fmt.Errorf("error creating config directory: %w", err)
	}

	configFile := filepath.Join(configDir, "config.yaml")

	defaultConfig := `# Rumble Channel Backup Configuration

channels: []
  # - example_channel
  # - c/SomeChannel
  # - user/SomeUser

output_dir: ./backups
config_dir: ` + configDir + `

log:
  level: info
  file: rumble_backup.log

backup:
  max_videos_per_channel: 0   # 0 = no cap
  force_rescan: false
  pause_min_seconds: 2
  pause_max_seconds: 4

fetcher:
  strategy: ytdlp             # ytdlp or embed
  ytdlp_path: yt-dlp
  timeout: 60
  max_retries: 10
  cookies_file: ""
  browser_cookies: ""         # chrome, firefox, edge, ...
  proxy: ""

server:
  host: 0.0.0.0
  port: 8080
  rate_limit:
    enabled: true
    requests_per_second: 10
    burst: 30

auth:
  enabled: false
  username: admin
  password_hash: ""           # bcrypt hash; required when auth is enabled
  jwt_secret: "change-this-secret-before-enabling-auth"
  token_expiry: 24
`

	if err := os.WriteFile(configFile, []byte(defaultConfig), 0644); err != nil {
		return fmt.Errorf("error writing default config: %w", err)
	}

	m.logger.Info().Msgf("Created default config file at: %s", configFile)
	return nil
}

// ensureDirectories ensures all required directories exist.
func (m *Manager) ensureDirectories() error {
	dirs := []string{
		m.config.OutputDir,
		m.config.ConfigDir,
		filepath.Dir(m.config.Catalog.Path),
	}

	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("error creating directory %s: %w", dir, err)
		}
	}

	return nil
}

// configureLogger sets the global level and tees output into the log file so
// the dashboard log-tail endpoint has a source.
func (m *Manager) configureLogger() {
	m.configureLogLevel()

	file, err := os.OpenFile(m.LogPath(), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		m.logger.Warn().Err(err).Str("path", m.LogPath()).Msg("Log file unavailable, console only")
		return
	}
	m.logFile = file
	m.logger = m.logger.Output(zerolog.MultiLevelWriter(os.Stdout, file))
}

func (m *Manager) configureLogLevel() {
	level, err := zerolog.ParseLevel(m.config.Log.Level)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
}

// GetLogger returns the logger instance.
func (m *Manager) GetLogger() zerolog.Logger {
	return m.logger
}

// Close releases the log file handle.
func (m *Manager) Close() error {
	if m.logFile != nil {
		return m.logFile.Close()
	}
	return nil
}

package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"rumble-backup/internal/auth"
	"rumble-backup/internal/config"
	"rumble-backup/internal/media"
	"rumble-backup/internal/monitor"
	"rumble-backup/internal/ratelimit"
	"rumble-backup/internal/runner"
	"rumble-backup/internal/utils"
	"rumble-backup/pkg/models"
)

// Server is the dashboard API over the backup service.
type Server struct {
	config       *config.Manager
	store        models.StateStore
	catalog      models.Catalog
	runner       *runner.Runner
	monitor      *monitor.Monitor
	authService  *auth.Service
	rateLimitMgr *ratelimit.Manager
	httpServer   *http.Server
	logger       zerolog.Logger
}

// Options carries the wired dependencies for the server.
type Options struct {
	Config  *config.Manager
	Store   models.StateStore
	Catalog models.Catalog
	Runner  *runner.Runner
	Monitor *monitor.Monitor
}

// NewServer creates the API server over already-wired components.
func NewServer(opts Options) (*Server, error) {
	cfg := opts.Config.GetConfig()

	if cfg.Log.Level == "debug" {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	var authSvc *auth.Service
	if cfg.Auth.Enabled {
		svc, err := auth.NewService(cfg.Auth.Username, cfg.Auth.PasswordHash, cfg.Auth.JWTSecret, cfg.Auth.TokenExpiry)
		if err != nil {
			return nil, err
		}
		authSvc = svc
	}

	rateLimitMgr := ratelimit.NewManager(&ratelimit.Config{
		Enabled:           cfg.Server.RateLimit.Enabled,
		RequestsPerSecond: cfg.Server.RateLimit.RequestsPerSecond,
		Burst:             cfg.Server.RateLimit.Burst,
	})

	return &Server{
		config:       opts.Config,
		store:        opts.Store,
		catalog:      opts.Catalog,
		runner:       opts.Runner,
		monitor:      opts.Monitor,
		authService:  authSvc,
		rateLimitMgr: rateLimitMgr,
		logger:       zerolog.New(os.Stdout).With().Timestamp().Str("component", "server").Logger(),
	}, nil
}

// Start starts the API server
func (s *Server) Start() error {
	router := gin.New()
	router.Use(gin.Logger())
	router.Use(gin.Recovery())
	router.Use(s.corsMiddleware())

	s.setupRoutes(router)

	cfg := s.config.GetConfig()
	s.httpServer = &http.Server{
		Addr:        fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:     router,
		ReadTimeout: 30 * time.Second,
	}

	go func() {
		s.logger.Info().Str("address", s.httpServer.Addr).Msg("Starting API server")
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.logger.Fatal().Err(err).Msg("Error starting server")
		}
	}()

	return nil
}

// Stop stops the API server
func (s *Server) Stop() error {
	s.logger.Info().Msg("Stopping API server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if s.monitor != nil {
		s.monitor.Stop()
	}
	s.runner.Close()

	if err := s.httpServer.Shutdown(ctx); err != nil {
		s.logger.Error().Err(err).Msg("Error shutting down server")
		return err
	}

	s.logger.Info().Msg("API server stopped")
	return nil
}

// Run runs the server with signal handling
func (s *Server) Run() error {
	if err := s.Start(); err != nil {
		return err
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	return s.Stop()
}

// setupRoutes sets up the API routes
func (s *Server) setupRoutes(router *gin.Engine) {
	router.GET("/health", s.healthCheck)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := router.Group("/api")
	api.Use(s.rateLimitMgr.Middleware())

	// Reads stay open; mutations require a token when auth is enabled.
	var protect gin.HandlerFunc
	if s.authService != nil {
		middleware := auth.NewMiddleware(s.authService)
		protect = middleware.Required()

		login := api.Group("")
		loginLimiter := ratelimit.NewRateLimiter()
		login.Use(loginLimiter.Middleware(5, 10))
		login.POST("/login", s.login)
	} else {
		protect = func(c *gin.Context) { c.Next() }
	}

	api.GET("/status", s.getStatus)
	api.GET("/channels", s.listChannels)
	api.GET("/channels/:channel/videos", s.channelVideoList)
	api.GET("/settings", s.getSettings)
	api.GET("/logs", s.getLogs)
	api.GET("/runs", s.getRuns)
	api.GET("/system", s.getSystemStats)

	api.POST("/channels", protect, s.addChannel)
	api.DELETE("/channels", protect, s.removeChannel)
	api.POST("/backup", protect, s.startBackup)
	api.POST("/settings", protect, s.saveSettings)

	mediaGroup := router.Group("/media")
	mediaGroup.Use(s.rateLimitMgr.Middleware())
	mediaGroup.GET("/:channel/:video/stream", s.streamMedia)
	mediaGroup.GET("/:channel/:video/thumbnail", s.serveThumbnail)
}

// Health check handler
func (s *Server) healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "ok",
		"timestamp": time.Now().Unix(),
	})
}

// Status handler: run state plus the enriched channel list.
func (s *Server) getStatus(c *gin.Context) {
	status := s.runner.Status()
	channels := s.channelInfos()

	c.JSON(http.StatusOK, gin.H{
		"running":    status.Running,
		"channel":    status.Channel,
		"started_at": status.StartedAt,
		"last_run":   status.LastRun,
		"last_error": status.LastError,
		"channels":   channels,
	})
}

// List channels handler
func (s *Server) listChannels(c *gin.Context) {
	channels := s.channelInfos()
	c.JSON(http.StatusOK, gin.H{
		"channels": channels,
		"total":    len(channels),
	})
}

// Channel detail handler: the cataloged videos of one channel.
func (s *Server) channelVideoList(c *gin.Context) {
	channel := c.Param("channel")

	if s.catalog == nil {
		c.JSON(http.StatusOK, gin.H{"channel": channel, "videos": []struct{}{}, "total": 0})
		return
	}

	limit := 0
	if l := c.Query("limit"); l != "" {
		if parsed, err := strconv.Atoi(l); err == nil && parsed > 0 {
			limit = parsed
		}
	}

	videos, err := s.catalog.VideosByChannel(channel, limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"channel": channel, "videos": videos, "total": len(videos)})
}

// Add channel handler
func (s *Server) addChannel(c *gin.Context) {
	if s.runner.Running() {
		c.JSON(http.StatusConflict, gin.H{"error": "Cannot modify channels while a backup run is active"})
		return
	}

	var req struct {
		Channel string `json:"channel" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := s.config.AddChannel(req.Channel); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusCreated, gin.H{"channel": req.Channel})
}

// Remove channel handler
func (s *Server) removeChannel(c *gin.Context) {
	if s.runner.Running() {
		c.JSON(http.StatusConflict, gin.H{"error": "Cannot modify channels while a backup run is active"})
		return
	}

	var req struct {
		Channel string `json:"channel" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := s.config.RemoveChannel(req.Channel); err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"channel": req.Channel})
}

// Start backup handler. Single-flight: a second start is rejected, never
// queued.
func (s *Server) startBackup(c *gin.Context) {
	var req struct {
		Channel string `json:"channel"`
	}
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
	}

	cfg := s.config.GetConfig()
	var channels []string
	if req.Channel != "" {
		channels = []string{req.Channel}
	} else {
		channels = append(channels, cfg.Channels...)
	}
	if len(channels) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "No channels configured"})
		return
	}

	err := s.runner.TryStart(runner.Request{
		Channels: channels,
		Options: models.BackupOptions{
			MaxVideos:   cfg.Backup.MaxVideosPerChannel,
			ForceRescan: cfg.Backup.ForceRescan,
		},
	})
	if err != nil {
		if errors.Is(err, runner.ErrRunActive) {
			c.JSON(http.StatusConflict, gin.H{"error": "A backup run is already active"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusAccepted, gin.H{"message": "Backup started", "channels": channels})
}

// Get settings handler
func (s *Server) getSettings(c *gin.Context) {
	c.JSON(http.StatusOK, s.config.Settings())
}

// Save settings handler
func (s *Server) saveSettings(c *gin.Context) {
	var req models.Settings
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := s.config.SaveSettings(req); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, s.config.Settings())
}

// Log tail handler
func (s *Server) getLogs(c *gin.Context) {
	lines := 100
	if l := c.Query("lines"); l != "" {
		if parsed, err := strconv.Atoi(l); err == nil && parsed > 0 {
			lines = parsed
		}
	}
	if lines > 1000 {
		lines = 1000
	}

	tail, err := tailFile(s.config.LogPath(), lines)
	if err != nil {
		c.JSON(http.StatusOK, gin.H{"lines": []string{}, "error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"lines": tail})
}

// Run history handler
func (s *Server) getRuns(c *gin.Context) {
	if s.catalog == nil {
		c.JSON(http.StatusOK, gin.H{"runs": []struct{}{}})
		return
	}

	limit := 20
	if l := c.Query("limit"); l != "" {
		if parsed, err := strconv.Atoi(l); err == nil && parsed > 0 {
			limit = parsed
		}
	}

	runs, err := s.catalog.RecentRuns(limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"runs": runs, "total": len(runs)})
}

// Get system stats handler
func (s *Server) getSystemStats(c *gin.Context) {
	if s.monitor == nil {
		c.JSON(http.StatusOK, gin.H{})
		return
	}
	c.JSON(http.StatusOK, s.monitor.HealthCheck())
}

// Stream media handler
func (s *Server) streamMedia(c *gin.Context) {
	videoDir, videoID, ok := s.resolveVideoDir(c)
	if !ok {
		return
	}

	path, found := media.FindMedia(videoDir, videoID)
	if !found {
		c.JSON(http.StatusNotFound, gin.H{"error": "Media file not found"})
		return
	}
	c.File(path)
}

// Serve thumbnail handler
func (s *Server) serveThumbnail(c *gin.Context) {
	videoDir, videoID, ok := s.resolveVideoDir(c)
	if !ok {
		return
	}

	path, found := media.FindThumbnail(videoDir, videoID)
	if !found {
		c.JSON(http.StatusNotFound, gin.H{"error": "Thumbnail not found"})
		return
	}
	c.File(path)
}

// Login handler
func (s *Server) login(c *gin.Context) {
	var req struct {
		Username string `json:"username" binding:"required"`
		Password string `json:"password" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	token, err := s.authService.Authenticate(req.Username, req.Password)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid credentials"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"token": token,
		"user":  gin.H{"username": req.Username, "role": "admin"},
	})
}

// resolveVideoDir validates the channel and video path parameters and maps
// them to a directory under the output tree. Traversal attempts get a 400.
func (s *Server) resolveVideoDir(c *gin.Context) (string, string, bool) {
	channel := c.Param("channel")
	videoID := c.Param("video")

	if !safePathComponent(channel) || !safePathComponent(videoID) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid path"})
		return "", "", false
	}

	cfg := s.config.GetConfig()
	for _, configured := range cfg.Channels {
		if models.SafeChannelName(configured) == channel {
			dir := filepath.Join(cfg.OutputDir, channel, videoID)
			return dir, videoID, true
		}
	}

	c.JSON(http.StatusNotFound, gin.H{"error": "Channel not found"})
	return "", "", false
}

// channelInfos builds the enriched channel rows from config, state and disk.
func (s *Server) channelInfos() []models.ChannelInfo {
	cfg := s.config.GetConfig()

	backupState, err := s.store.Load()
	if err != nil {
		s.logger.Warn().Err(err).Msg("State unavailable for channel listing")
		backupState = models.NewBackupState()
	}

	infos := make([]models.ChannelInfo, 0, len(cfg.Channels))
	for _, channel := range cfg.Channels {
		safeName := models.SafeChannelName(channel)
		channelDir := filepath.Join(cfg.OutputDir, safeName)
		size := media.DirSize(channelDir)

		info := models.ChannelInfo{
			ID:             channel,
			SafeName:       safeName,
			URL:            models.ChannelURL(channel),
			VideoCount:     media.CountVideoDirs(channelDir),
			TotalSize:      size,
			TotalSizeHuman: utils.FormatBytes(size),
		}
		if cs, ok := backupState.Channels[channel]; ok {
			info.LastBackup = cs.LastBackup
			info.DownloadedCount = len(cs.DownloadedVideoIDs)
		}
		infos = append(infos, info)
	}
	return infos
}

// CORS middleware
func (s *Server) corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

func safePathComponent(s string) bool {
	if s == "" || s == "." || s == ".." {
		return false
	}
	return !strings.ContainsAny(s, "/\\")
}

// tailFile returns the last n lines of the file.
func tailFile(path string, n int) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	lines := strings.Split(strings.TrimRight(string(data), "\n"), "\n")
	if len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	return lines, nil
}

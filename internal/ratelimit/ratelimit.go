package ratelimit

import (
	"net/http"
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

// RateLimiter applies a per-client token bucket. Clients are keyed by IP.
type RateLimiter struct {
	visitors map[string]*Visitor
	mu       sync.Mutex
	logger   zerolog.Logger
}

// Visitor represents a visitor with rate limiting info
type Visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// NewRateLimiter creates a new rate limiter
func NewRateLimiter() *RateLimiter {
	return &RateLimiter{
		visitors: make(map[string]*Visitor),
		logger:   zerolog.New(os.Stdout).With().Timestamp().Logger(),
	}
}

// Middleware creates a rate limiting middleware
func (rl *RateLimiter) Middleware(rps int, burst int) gin.HandlerFunc {
	go rl.cleanupVisitors()

	return func(c *gin.Context) {
		ip := c.ClientIP()
		limiter := rl.getLimiter(ip, rps, burst)

		if !limiter.Allow() {
			rl.logger.Warn().Str("ip", ip).Msg("Rate limit exceeded")
			c.JSON(http.StatusTooManyRequests, gin.H{
				"error":       "Rate limit exceeded",
				"retry_after": "1s",
			})
			c.Abort()
			return
		}

		c.Header("X-RateLimit-Limit", strconv.Itoa(rps))
		c.Header("X-RateLimit-Remaining", strconv.Itoa(int(limiter.Tokens())))

		c.Next()
	}
}

// getLimiter gets or creates a limiter for a visitor
func (rl *RateLimiter) getLimiter(ip string, rps int, burst int) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	v, exists := rl.visitors[ip]
	if !exists {
		limiter := rate.NewLimiter(rate.Limit(rps), burst)
		rl.visitors[ip] = &Visitor{
			limiter:  limiter,
			lastSeen: time.Now(),
		}
		return limiter
	}

	v.lastSeen = time.Now()
	return v.limiter
}

// cleanupVisitors removes old visitors
func (rl *RateLimiter) cleanupVisitors() {
	for {
		time.Sleep(time.Hour)

		rl.mu.Lock()
		for ip, v := range rl.visitors {
			if time.Since(v.lastSeen) > time.Hour {
				delete(rl.visitors, ip)
			}
		}
		rl.mu.Unlock()
	}
}

// Config represents rate limiting configuration
type Config struct {
	Enabled           bool `mapstructure:"enabled" yaml:"enabled"`
	RequestsPerSecond int  `mapstructure:"requests_per_second" yaml:"requests_per_second"`
	Burst             int  `mapstructure:"burst" yaml:"burst"`
}

// Manager wraps the limiter behind the enabled flag.
type Manager struct {
	rateLimiter *RateLimiter
	config      *Config
}

// NewManager creates a new rate limiting manager
func NewManager(config *Config) *Manager {
	m := &Manager{config: config}
	if config.Enabled {
		m.rateLimiter = NewRateLimiter()
	}
	return m
}

// Middleware returns the appropriate middleware based on configuration
func (m *Manager) Middleware() gin.HandlerFunc {
	if !m.config.Enabled {
		return func(c *gin.Context) { c.Next() }
	}
	return m.rateLimiter.Middleware(m.config.RequestsPerSecond, m.config.Burst)
}

package auth

import (
	"net/http"
	"os"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"rumble-backup/pkg/models"
)

// Middleware guards routes behind a valid bearer token.
type Middleware struct {
	service *Service
	logger  zerolog.Logger
}

// NewMiddleware creates authentication middleware over the service.
func NewMiddleware(service *Service) *Middleware {
	return &Middleware{
		service: service,
		logger:  zerolog.New(os.Stdout).With().Timestamp().Logger(),
	}
}

// Required enforces authentication for routes
func (m *Middleware) Required() gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Authorization header required"})
			c.Abort()
			return
		}

		tokenString := strings.TrimPrefix(authHeader, "Bearer ")
		if tokenString == authHeader {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid authorization format"})
			c.Abort()
			return
		}

		user, err := m.service.ValidateToken(tokenString)
		if err != nil {
			m.logger.Warn().Err(err).Msg("Invalid token")
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid or expired token"})
			c.Abort()
			return
		}

		c.Set("user", user)
		c.Next()
	}
}

// Optional allows optional authentication for routes
func (m *Middleware) Optional() gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.Next()
			return
		}

		tokenString := strings.TrimPrefix(authHeader, "Bearer ")
		if tokenString == authHeader {
			c.Next()
			return
		}

		if user, err := m.service.ValidateToken(tokenString); err == nil {
			c.Set("user", user)
		}
		c.Next()
	}
}

// GetUser returns the authenticated user from context
func GetUser(c *gin.Context) (*models.User, bool) {
	user, exists := c.Get("user")
	if !exists {
		return nil, false
	}

	u, ok := user.(*models.User)
	return u, ok
}

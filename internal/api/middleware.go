package api

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"site_registry/internal/domain"
	"site_registry/internal/limiter"
	"site_registry/internal/service"
	"site_registry/pkg/logger"
)

const (
	requestIDKey    = "request_id"
	identityKey     = "identity"
	requestIDHeader = "X-Request-ID"
)

// RequestID tags every request with an id, reusing the caller's when sent
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(requestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		c.Set(requestIDKey, id)
		c.Header(requestIDHeader, id)
		c.Next()
	}
}

// Logger writes one access log line per request
func Logger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		level := "INFO"
		switch {
		case c.Writer.Status() >= http.StatusInternalServerError:
			level = "ERROR"
		case c.Writer.Status() >= http.StatusBadRequest:
			level = "WARN"
		}

		logger.WriteLog(level, c.GetString(requestIDKey), "http", fmt.Sprintf("%s %s %d %v %s",
			c.Request.Method, c.Request.URL.Path, c.Writer.Status(),
			time.Since(start).Round(time.Microsecond), c.ClientIP()))
	}
}

// CORS allows the browser dashboard to call the API from any origin
func CORS() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Authorization, Content-Type, "+requestIDHeader)
		c.Header("Access-Control-Expose-Headers", requestIDHeader+", Content-Disposition")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}

// Authenticate requires a valid bearer token and stores the caller identity
func Authenticate(auth *service.AuthService) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := bearerToken(c)
		if token == "" {
			writeMessage(c, http.StatusUnauthorized, "No token provided")
			c.Abort()
			return
		}

		identity, err := auth.Verify(c.Request.Context(), token)
		if err != nil {
			writeError(c, err)
			c.Abort()
			return
		}

		c.Set(identityKey, identity)
		c.Next()
	}
}

// RequireRole rejects callers without role
func RequireRole(role string) gin.HandlerFunc {
	return func(c *gin.Context) {
		identity, ok := currentIdentity(c)
		if !ok {
			writeMessage(c, http.StatusUnauthorized, "No token provided")
			c.Abort()
			return
		}
		if identity.Role != role {
			writeMessage(c, http.StatusForbidden, fmt.Sprintf("Access denied. Requires %s role.", role))
			c.Abort()
			return
		}
		c.Next()
	}
}

// LoginRateLimit throttles auth attempts per client IP. A limiter error
// lets the request through.
func LoginRateLimit(l limiter.Limiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		allowed, err := l.Allow(c.Request.Context(), c.ClientIP())
		if err != nil {
			logger.WriteLog("WARN", c.GetString(requestIDKey), "limiter", err)
			c.Next()
			return
		}
		if !allowed {
			writeMessage(c, http.StatusTooManyRequests, "Too many attempts, please try again later")
			c.Abort()
			return
		}
		c.Next()
	}
}

func bearerToken(c *gin.Context) string {
	header := strings.TrimSpace(c.GetHeader("Authorization"))
	if len(header) > 7 && strings.EqualFold(header[:7], "Bearer ") {
		return strings.TrimSpace(header[7:])
	}
	return ""
}

func currentIdentity(c *gin.Context) (domain.Identity, bool) {
	v, ok := c.Get(identityKey)
	if !ok {
		return domain.Identity{}, false
	}
	identity, ok := v.(domain.Identity)
	return identity, ok
}

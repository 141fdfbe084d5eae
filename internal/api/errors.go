package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"site_registry/internal/domain"
	"site_registry/pkg/logger"
)

// writeError maps service errors to HTTP responses. Unknown errors are
// logged and answered with a generic 500.
func writeError(c *gin.Context, err error) {
	var ve *domain.ValidationError
	switch {
	case errors.As(err, &ve):
		c.JSON(http.StatusBadRequest, gin.H{
			"message": ve.Error(),
			"errors":  ve.Violations,
		})
	case errors.Is(err, domain.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"message": "Site not found"})
	case errors.Is(err, domain.ErrDuplicateID):
		c.JSON(http.StatusBadRequest, gin.H{"message": "Site with this ID already exists"})
	case errors.Is(err, domain.ErrInvalidCredentials):
		c.JSON(http.StatusBadRequest, gin.H{"message": "Invalid credentials"})
	case errors.Is(err, domain.ErrUserExists):
		c.JSON(http.StatusBadRequest, gin.H{"message": "User already exists"})
	case errors.Is(err, domain.ErrInvalidToken):
		c.JSON(http.StatusUnauthorized, gin.H{"message": "Token is not valid"})
	case errors.Is(err, domain.ErrUserNotFound):
		c.JSON(http.StatusUnauthorized, gin.H{"message": "User not found"})
	case errors.Is(err, domain.ErrForbidden):
		c.JSON(http.StatusForbidden, gin.H{"message": "Access denied"})
	default:
		logger.WriteLog("ERROR", c.GetString(requestIDKey), c.Request.Method+" "+c.FullPath(), err)
		c.JSON(http.StatusInternalServerError, gin.H{"message": "Server error"})
	}
}

func writeMessage(c *gin.Context, status int, message string) {
	c.JSON(status, gin.H{"message": message})
}

package api

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"

	"site_registry/internal/domain"
	"site_registry/internal/service"
)

// credentialsRequest is the body of login and register
type credentialsRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type userResponse struct {
	Username string `json:"username"`
	Role     string `json:"role"`
}

// AuthHandler handles authentication requests
type AuthHandler struct {
	auth *service.AuthService
}

// NewAuthHandler creates a new auth handler
func NewAuthHandler(auth *service.AuthService) *AuthHandler {
	return &AuthHandler{auth: auth}
}

// Login handles POST /api/auth/login
func (h *AuthHandler) Login(c *gin.Context) {
	req, ok := bindCredentials(c)
	if !ok {
		return
	}

	token, identity, err := h.auth.Login(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"token": token,
		"user":  toUserResponse(identity),
	})
}

// Register handles POST /api/auth/register
func (h *AuthHandler) Register(c *gin.Context) {
	req, ok := bindCredentials(c)
	if !ok {
		return
	}

	token, identity, err := h.auth.Register(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"token": token,
		"user":  toUserResponse(identity),
	})
}

// Verify handles GET /api/auth/verify
func (h *AuthHandler) Verify(c *gin.Context) {
	token := bearerToken(c)
	if token == "" {
		writeMessage(c, http.StatusUnauthorized, "No token provided")
		return
	}

	identity, err := h.auth.Verify(c.Request.Context(), token)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"user": toUserResponse(identity)})
}

func bindCredentials(c *gin.Context) (credentialsRequest, bool) {
	var req credentialsRequest
	err := c.ShouldBindJSON(&req)
	if err == nil {
		return req, true
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		writeMessage(c, http.StatusBadRequest, "Invalid JSON")
		return req, false
	}

	violations := make([]domain.Violation, 0, len(verrs))
	for _, fe := range verrs {
		field := strings.ToLower(fe.Field())
		violations = append(violations, domain.NewViolation(domain.ErrMissingField, field, field+" is required"))
	}
	writeError(c, domain.Validation(violations))
	return req, false
}

func toUserResponse(identity domain.Identity) userResponse {
	return userResponse{Username: identity.Username, Role: identity.Role}
}

// internal/service/auth_service.go

package service

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"site_registry/internal/domain"
	"site_registry/internal/repository"
	"site_registry/pkg/logger"
)

var (
	digitPattern     = regexp.MustCompile(`[0-9]`)
	mixedCasePattern = regexp.MustCompile(`([a-z].*[A-Z])|([A-Z].*[a-z])`)
)

// AuthConfig configures AuthService
type AuthConfig struct {
	Secret        string
	TokenTTL      time.Duration
	AdminUsername string
	AdminPassword string
	BcryptCost    int
}

// AuthService authenticates dashboard users
type AuthService struct {
	users  repository.UserRepository
	tokens *TokenIssuer
	cfg    AuthConfig
	now    func() time.Time

	// compared against on unknown usernames so every login pays one bcrypt check
	dummyHash []byte
}

// NewAuthService creates an auth service
func NewAuthService(users repository.UserRepository, cfg AuthConfig) *AuthService {
	if cfg.BcryptCost == 0 {
		cfg.BcryptCost = bcrypt.DefaultCost
	}
	dummyHash, err := bcrypt.GenerateFromPassword([]byte(uuid.NewString()), cfg.BcryptCost)
	if err != nil {
		logger.Errorf("Failed to generate dummy password hash: %v", err)
	}
	return &AuthService{
		users:     users,
		tokens:    NewTokenIssuer(cfg.Secret, cfg.TokenTTL),
		cfg:       cfg,
		now:       time.Now,
		dummyHash: dummyHash,
	}
}

func (a *AuthService) breakGlassEnabled() bool {
	return a.cfg.AdminUsername != "" && a.cfg.AdminPassword != ""
}

func (a *AuthService) breakGlassIdentity() domain.Identity {
	return domain.Identity{
		Username: a.cfg.AdminUsername,
		Role:     domain.RoleAdmin,
		Kind:     domain.IdentityBreakGlass,
	}
}

// Login checks credentials and returns a signed token. Every credential
// failure is domain.ErrInvalidCredentials.
func (a *AuthService) Login(ctx context.Context, username, password string) (string, domain.Identity, error) {
	username = strings.TrimSpace(username)

	if a.breakGlassEnabled() && username == a.cfg.AdminUsername {
		if subtle.ConstantTimeCompare([]byte(password), []byte(a.cfg.AdminPassword)) != 1 {
			return "", domain.Identity{}, domain.ErrInvalidCredentials
		}
		identity := a.breakGlassIdentity()
		logger.Warnf("Break-glass admin login: %s", username)
		return a.issue(identity)
	}

	user, err := a.users.GetByUsername(ctx, username)
	if errors.Is(err, domain.ErrUserNotFound) {
		_ = bcrypt.CompareHashAndPassword(a.dummyHash, []byte(password))
		return "", domain.Identity{}, domain.ErrInvalidCredentials
	}
	if err != nil {
		return "", domain.Identity{}, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return "", domain.Identity{}, domain.ErrInvalidCredentials
	}

	return a.issue(identityOf(user))
}

// Register creates a user account with role user
func (a *AuthService) Register(ctx context.Context, username, password string) (string, domain.Identity, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return "", domain.Identity{}, domain.Validation([]domain.Violation{
			domain.NewViolation(domain.ErrMissingField, "username", "username is required"),
		})
	}

	if a.breakGlassEnabled() && username == a.cfg.AdminUsername {
		return "", domain.Identity{}, domain.ErrUserExists
	}
	if _, err := a.users.GetByUsername(ctx, username); err == nil {
		return "", domain.Identity{}, domain.ErrUserExists
	} else if !errors.Is(err, domain.ErrUserNotFound) {
		return "", domain.Identity{}, err
	}

	if err := CheckPassword(password); err != nil {
		return "", domain.Identity{}, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), a.cfg.BcryptCost)
	if err != nil {
		return "", domain.Identity{}, fmt.Errorf("hash password: %w", err)
	}

	user := domain.User{
		ID:           uuid.NewString(),
		Username:     username,
		PasswordHash: string(hash),
		Role:         domain.RoleUser,
		CreatedAt:    a.now().UTC().Truncate(time.Millisecond),
	}
	if err := a.users.Insert(ctx, user); err != nil {
		return "", domain.Identity{}, err
	}

	logger.WithFields(map[string]interface{}{"user": username}, "User registered")
	return a.issue(identityOf(user))
}

// Verify validates a token. Stored users are re-read so deleted accounts
// and role changes take effect; break-glass identities answer from the claims.
func (a *AuthService) Verify(ctx context.Context, token string) (domain.Identity, error) {
	identity, err := a.tokens.Verify(token)
	if err != nil {
		return domain.Identity{}, err
	}

	if identity.Kind == domain.IdentityBreakGlass {
		if !a.breakGlassEnabled() || identity.Username != a.cfg.AdminUsername {
			return domain.Identity{}, domain.ErrInvalidToken
		}
		return a.breakGlassIdentity(), nil
	}

	user, err := a.users.GetByID(ctx, identity.UserID)
	if err != nil {
		return domain.Identity{}, err
	}
	return identityOf(user), nil
}

// CheckPassword enforces the password policy and reports the first rule broken
func CheckPassword(password string) error {
	var message string
	switch {
	case len(password) < 8:
		message = "Password must be at least 8 characters long"
	case !digitPattern.MatchString(password):
		message = "Password must contain at least one number"
	case !mixedCasePattern.MatchString(password):
		message = "Password must contain both uppercase and lowercase letters"
	default:
		return nil
	}
	return domain.Validation([]domain.Violation{
		domain.NewViolation(domain.ErrWeakPassword, "password", message),
	})
}

func (a *AuthService) issue(identity domain.Identity) (string, domain.Identity, error) {
	token, err := a.tokens.Issue(identity)
	if err != nil {
		return "", domain.Identity{}, err
	}
	return token, identity, nil
}

func identityOf(user domain.User) domain.Identity {
	return domain.Identity{
		UserID:   user.ID,
		Username: user.Username,
		Role:     user.Role,
		Kind:     domain.IdentityUser,
	}
}

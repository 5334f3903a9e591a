package services

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"
	"unicode"

	"github.com/redis/go-redis/v9"
	"golang.org/x/crypto/bcrypt"

	"aichat-backend/internal/middleware"
	"aichat-backend/internal/models"
	"aichat-backend/internal/repository"
)

// UserStore is the user persistence the auth service needs.
type UserStore interface {
	Create(ctx context.Context, user *models.User) error
	GetByEmail(ctx context.Context, email string) (*models.User, error)
}

type AuthService struct {
	userRepo UserStore
	redis    *redis.Client
	jwt      *middleware.JWTAuth
}

func NewAuthService(userRepo UserStore, redisClient *redis.Client, jwt *middleware.JWTAuth) *AuthService {
	return &AuthService{
		userRepo: userRepo,
		redis:    redisClient,
		jwt:      jwt,
	}
}

var emailRegex = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)

const (
	loginFailLimit  = 10
	loginFailWindow = 15 * time.Minute
)

func (s *AuthService) Register(ctx context.Context, req models.RegisterRequest) (*models.User, error) {
	fieldErrors := make(map[string]string)

	if !emailRegex.MatchString(req.Email) {
		fieldErrors["email"] = "Invalid email format"
	}
	if err := validatePassword(req.Password); err != nil {
		fieldErrors["password"] = err.Error()
	}

	if len(fieldErrors) > 0 {
		return nil, &ValidationError{Fields: fieldErrors}
	}

	_, err := s.userRepo.GetByEmail(ctx, req.Email)
	if err == nil {
		return nil, &ConflictError{Message: "Email already in use"}
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return nil, &StoreError{Message: "Failed to look up user", Err: err}
	}

	// Hash password (bcrypt cost 12)
	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), 12)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user := &models.User{
		Email:        req.Email,
		PasswordHash: string(hash),
	}

	if err := s.userRepo.Create(ctx, user); err != nil {
		return nil, &StoreError{Message: "Failed to create user", Err: err}
	}

	return user, nil
}

// Login verifies credentials and issues a 7-day bearer token.
func (s *AuthService) Login(ctx context.Context, req models.LoginRequest) (string, error) {
	if err := s.checkLoginFailures(ctx, req.Email); err != nil {
		return "", err
	}

	user, err := s.userRepo.GetByEmail(ctx, req.Email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return "", &NotFoundError{Message: "User not found"}
		}
		return "", &StoreError{Message: "Failed to look up user", Err: err}
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		s.recordLoginFailure(ctx, req.Email)
		return "", &UnauthorizedError{Message: "Incorrect password"}
	}

	token, err := s.jwt.GenerateToken(user.ID, user.Email)
	if err != nil {
		return "", fmt.Errorf("failed to generate token: %w", err)
	}

	return token, nil
}

func (s *AuthService) checkLoginFailures(ctx context.Context, email string) error {
	if s.redis == nil {
		return nil
	}
	fails, err := s.redis.Get(ctx, "login_fail:"+email).Int()
	if err != nil {
		// Missing key or Redis trouble never blocks a login attempt.
		return nil
	}
	if fails >= loginFailLimit {
		return &RateLimitError{Message: "Too many failed login attempts. Please try again later."}
	}
	return nil
}

func (s *AuthService) recordLoginFailure(ctx context.Context, email string) {
	if s.redis == nil {
		return
	}
	key := "login_fail:" + email
	s.redis.Incr(ctx, key)
	s.redis.Expire(ctx, key, loginFailWindow)
}

func validatePassword(pw string) error {
	if len(pw) < 8 {
		return fmt.Errorf("Password must be at least 8 characters")
	}
	hasNumber := false
	for _, ch := range pw {
		if unicode.IsDigit(ch) {
			hasNumber = true
			break
		}
	}
	if !hasNumber {
		return fmt.Errorf("Password must contain at least one number")
	}
	return nil
}

package auth

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/blogsphere/backend/internal/user"
)

// TokenService defines the interface for access token creation and validation
type TokenService interface {
	CreateToken(userID uuid.UUID, username string, duration time.Duration) (string, error)
	VerifyToken(tokenStr string) (*TokenClaims, error)
}

// UserRepository is the slice of the user store the auth service depends on
type UserRepository interface {
	Create(ctx context.Context, params user.CreateParams) (*user.User, error)
	GetByID(ctx context.Context, id uuid.UUID) (*user.User, error)
	GetByEmail(ctx context.Context, email string) (*user.User, error)
	GetByUsernameOrEmail(ctx context.Context, username, email string) (*user.User, error)
	GetByResetToken(ctx context.Context, token string) (*user.User, error)
	SetResetToken(ctx context.Context, userID uuid.UUID, token string, expiresAt time.Time) error
	RedeemResetToken(ctx context.Context, token, passwordHash string) error
	SetVerificationToken(ctx context.Context, userID uuid.UUID, token string) error
	RedeemVerificationToken(ctx context.Context, token string) error
	UpdatePassword(ctx context.Context, userID uuid.UUID, passwordHash string) error
}

// EmailService defines the interface for email operations
type EmailService interface {
	SendVerificationEmail(ctx context.Context, toEmail, token string) error
	SendPasswordResetEmail(ctx context.Context, toEmail, token string) error
}

// RateLimiter defines the request throttling operations the handlers use
type RateLimiter interface {
	CheckIPRateLimit(ctx context.Context, ip, purpose string) (bool, error)
	RecordIPRequest(ctx context.Context, ip, purpose string) error
	CheckEmailCooldown(ctx context.Context, email string) (bool, error)
	SetEmailCooldown(ctx context.Context, email string) error
}

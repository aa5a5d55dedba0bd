package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/blogsphere/backend/internal/logging"
	"github.com/blogsphere/backend/internal/user"
)

var (
	ErrUserExists               = errors.New("email or username already exists")
	ErrUserNotFound             = errors.New("user not found")
	ErrInvalidPassword          = errors.New("password is incorrect")
	ErrInvalidOldPassword       = errors.New("invalid old password")
	ErrPasswordRequired         = errors.New("invalid password")
	ErrInvalidResetToken        = errors.New("invalid token")
	ErrResetTokenExpired        = errors.New("token expired")
	ErrInvalidVerificationToken = errors.New("invalid token")
	ErrAlreadyVerified          = errors.New("email is already verified")
)

const resetTokenTTL = 1 * time.Hour

// Service handles authentication business logic
type Service struct {
	userRepo            UserRepository
	tokenService        TokenService
	emailService        EmailService
	logger              *logging.Logger
	accessTokenDuration time.Duration
}

func NewService(
	userRepo UserRepository,
	tokenService TokenService,
	emailService EmailService,
	logger *logging.Logger,
	accessTokenDuration time.Duration,
) *Service {
	return &Service{
		userRepo:            userRepo,
		tokenService:        tokenService,
		emailService:        emailService,
		logger:              logger,
		accessTokenDuration: accessTokenDuration,
	}
}

// RegisterParams holds the registration input, already shape-validated
// at the HTTP boundary.
type RegisterParams struct {
	Name     string
	Email    string
	Username string
	Password string
}

// Register creates a new user account and issues an access token
func (s *Service) Register(ctx context.Context, params RegisterParams) (*user.User, string, error) {
	passwordHash, err := HashPassword(params.Password)
	if err != nil {
		return nil, "", fmt.Errorf("failed to hash password: %w", err)
	}

	newUser, err := s.userRepo.Create(ctx, user.CreateParams{
		Name:         params.Name,
		Username:     params.Username,
		Email:        params.Email,
		PasswordHash: passwordHash,
	})
	if err != nil {
		if errors.Is(err, user.ErrDuplicateEmail) || errors.Is(err, user.ErrDuplicateUsername) {
			return nil, "", ErrUserExists
		}
		return nil, "", fmt.Errorf("failed to create user: %w", err)
	}

	token, err := s.tokenService.CreateToken(newUser.ID, newUser.Username, s.accessTokenDuration)
	if err != nil {
		return nil, "", fmt.Errorf("failed to create access token: %w", err)
	}

	return newUser, token, nil
}

// Login authenticates a user by username or email and issues an access token
func (s *Service) Login(ctx context.Context, username, email, password string) (*user.User, string, error) {
	existingUser, err := s.userRepo.GetByUsernameOrEmail(ctx, username, email)
	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			return nil, "", ErrUserNotFound
		}
		return nil, "", fmt.Errorf("failed to get user: %w", err)
	}

	if !VerifyPassword(existingUser.PasswordHash, password) {
		return nil, "", ErrInvalidPassword
	}

	token, err := s.tokenService.CreateToken(existingUser.ID, existingUser.Username, s.accessTokenDuration)
	if err != nil {
		return nil, "", fmt.Errorf("failed to create access token: %w", err)
	}

	return existingUser, token, nil
}

// ChangePassword replaces the password of an authenticated user after
// verifying the old one. A wrong old password leaves the stored hash
// untouched. Previously issued access tokens stay valid until expiry.
func (s *Service) ChangePassword(ctx context.Context, userID uuid.UUID, oldPassword, newPassword string) error {
	existingUser, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			return ErrUserNotFound
		}
		return fmt.Errorf("failed to get user: %w", err)
	}

	if !VerifyPassword(existingUser.PasswordHash, oldPassword) {
		return ErrInvalidOldPassword
	}

	passwordHash, err := HashPassword(newPassword)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}

	if err := s.userRepo.UpdatePassword(ctx, userID, passwordHash); err != nil {
		return fmt.Errorf("failed to update password: %w", err)
	}

	return nil
}

// ForgotPassword stores a single-use reset token with a one hour expiry
// and mails a reset link. Mail delivery is synchronous: a dispatch
// failure surfaces to the caller instead of being swallowed.
func (s *Service) ForgotPassword(ctx context.Context, email string) error {
	existingUser, err := s.userRepo.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			return ErrUserNotFound
		}
		return fmt.Errorf("failed to get user: %w", err)
	}

	token, err := GenerateRandomToken()
	if err != nil {
		return fmt.Errorf("failed to generate reset token: %w", err)
	}

	expiresAt := time.Now().Add(resetTokenTTL)
	if err := s.userRepo.SetResetToken(ctx, existingUser.ID, token, expiresAt); err != nil {
		return fmt.Errorf("failed to store reset token: %w", err)
	}

	if err := s.emailService.SendPasswordResetEmail(ctx, email, token); err != nil {
		return fmt.Errorf("failed to send password reset email: %w", err)
	}

	s.logger.Info("password reset email sent", "user_id", existingUser.ID)
	return nil
}

// ResetPassword redeems a reset token. Validation order: password shape,
// token match, token expiry. Redemption clears the token atomically, so a
// second attempt with the same token fails at the match step.
func (s *Service) ResetPassword(ctx context.Context, token, newPassword string) error {
	if newPassword == "" {
		return ErrPasswordRequired
	}

	existingUser, err := s.userRepo.GetByResetToken(ctx, token)
	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			return ErrInvalidResetToken
		}
		return fmt.Errorf("failed to get user by reset token: %w", err)
	}

	if existingUser.ResetTokenExpiration == nil || existingUser.ResetTokenExpiration.Before(time.Now()) {
		return ErrResetTokenExpired
	}

	passwordHash, err := HashPassword(newPassword)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}

	if err := s.userRepo.RedeemResetToken(ctx, token, passwordHash); err != nil {
		if errors.Is(err, user.ErrNotFound) {
			// A concurrent redemption cleared the token first
			return ErrInvalidResetToken
		}
		return fmt.Errorf("failed to redeem reset token: %w", err)
	}

	s.logger.Info("password reset", "user_id", existingUser.ID)
	return nil
}

// SendEmailVerification stores a verification token and mails a
// verification link. No expiry is tracked for verification tokens.
func (s *Service) SendEmailVerification(ctx context.Context, email string) error {
	existingUser, err := s.userRepo.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			return ErrUserNotFound
		}
		return fmt.Errorf("failed to get user: %w", err)
	}

	if existingUser.IsVerified {
		return ErrAlreadyVerified
	}

	token, err := GenerateRandomToken()
	if err != nil {
		return fmt.Errorf("failed to generate verification token: %w", err)
	}

	if err := s.userRepo.SetVerificationToken(ctx, existingUser.ID, token); err != nil {
		return fmt.Errorf("failed to store verification token: %w", err)
	}

	if err := s.emailService.SendVerificationEmail(ctx, email, token); err != nil {
		return fmt.Errorf("failed to send verification email: %w", err)
	}

	s.logger.Info("verification email sent", "user_id", existingUser.ID)
	return nil
}

// VerifyEmail redeems a verification token, marking the user verified
// and clearing the token in one store operation
func (s *Service) VerifyEmail(ctx context.Context, token string) error {
	if err := s.userRepo.RedeemVerificationToken(ctx, token); err != nil {
		if errors.Is(err, user.ErrNotFound) {
			return ErrInvalidVerificationToken
		}
		return fmt.Errorf("failed to redeem verification token: %w", err)
	}

	return nil
}

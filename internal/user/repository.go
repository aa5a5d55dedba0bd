package user

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"

	"github.com/blogsphere/backend/internal/database"
)

var (
	ErrNotFound          = errors.New("user not found")
	ErrDuplicateEmail    = errors.New("email already exists")
	ErrDuplicateUsername = errors.New("username already exists")
)

// Repository handles user data persistence
type Repository struct {
	db *bun.DB
}

func NewRepository(db *bun.DB) *Repository {
	return &Repository{db: db}
}

// CreateParams holds the fields required to create a new account.
type CreateParams struct {
	Name         string
	Username     string
	Email        string
	PasswordHash string
}

// Create inserts a new user into the database
func (r *Repository) Create(ctx context.Context, params CreateParams) (*User, error) {
	dbUser := &database.User{
		Name:         params.Name,
		Username:     params.Username,
		Email:        params.Email,
		PasswordHash: params.PasswordHash,
		Role:         string(RoleUser),
		Avatar:       DefaultAvatar,
		IsVerified:   false,
	}

	_, err := r.db.NewInsert().
		Model(dbUser).
		Returning("*").
		Exec(ctx)

	if err != nil {
		return nil, mapUniqueViolation(err, "failed to create user")
	}

	return mapDBUserToModel(dbUser), nil
}

// GetByID retrieves a user by ID
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*User, error) {
	dbUser := new(database.User)
	err := r.db.NewSelect().
		Model(dbUser).
		Where("id = ?", id).
		Scan(ctx)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get user by id: %w", err)
	}

	return mapDBUserToModel(dbUser), nil
}

// GetByEmail retrieves a user by email
func (r *Repository) GetByEmail(ctx context.Context, email string) (*User, error) {
	dbUser := new(database.User)
	err := r.db.NewSelect().
		Model(dbUser).
		Where("email = ?", email).
		Scan(ctx)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get user by email: %w", err)
	}

	return mapDBUserToModel(dbUser), nil
}

// GetByUsernameOrEmail retrieves a user matching either identifier.
// Login accepts both, so empty strings are skipped.
func (r *Repository) GetByUsernameOrEmail(ctx context.Context, username, email string) (*User, error) {
	dbUser := new(database.User)
	err := r.db.NewSelect().
		Model(dbUser).
		WhereGroup(" AND ", func(q *bun.SelectQuery) *bun.SelectQuery {
			if username != "" {
				q = q.WhereOr("username = ?", username)
			}
			if email != "" {
				q = q.WhereOr("email = ?", email)
			}
			return q
		}).
		Limit(1).
		Scan(ctx)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get user by username or email: %w", err)
	}

	return mapDBUserToModel(dbUser), nil
}

// GetByResetToken retrieves the user holding an outstanding reset token
func (r *Repository) GetByResetToken(ctx context.Context, token string) (*User, error) {
	dbUser := new(database.User)
	err := r.db.NewSelect().
		Model(dbUser).
		Where("reset_token = ?", token).
		Scan(ctx)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get user by reset token: %w", err)
	}

	return mapDBUserToModel(dbUser), nil
}

// SetResetToken stores a password reset token with its expiry on the user row
func (r *Repository) SetResetToken(ctx context.Context, userID uuid.UUID, token string, expiresAt time.Time) error {
	result, err := r.db.NewUpdate().
		Model((*database.User)(nil)).
		Set("reset_token = ?", token).
		Set("reset_token_expiration = ?", expiresAt).
		Set("updated_at = NOW()").
		Where("id = ?", userID).
		Exec(ctx)

	if err != nil {
		return fmt.Errorf("failed to set reset token: %w", err)
	}

	return requireRowsAffected(result)
}

// RedeemResetToken replaces the password hash and clears the reset token
// pair in one statement. The WHERE clause on reset_token makes redemption a
// compare-and-clear: of two racing redemptions only one matches, the other
// gets ErrNotFound.
func (r *Repository) RedeemResetToken(ctx context.Context, token, passwordHash string) error {
	result, err := r.db.NewUpdate().
		Model((*database.User)(nil)).
		Set("password_hash = ?", passwordHash).
		Set("reset_token = NULL").
		Set("reset_token_expiration = NULL").
		Set("updated_at = NOW()").
		Where("reset_token = ?", token).
		Exec(ctx)

	if err != nil {
		return fmt.Errorf("failed to redeem reset token: %w", err)
	}

	return requireRowsAffected(result)
}

// SetVerificationToken stores an email verification token on the user row
func (r *Repository) SetVerificationToken(ctx context.Context, userID uuid.UUID, token string) error {
	result, err := r.db.NewUpdate().
		Model((*database.User)(nil)).
		Set("verification_token = ?", token).
		Set("updated_at = NOW()").
		Where("id = ?", userID).
		Exec(ctx)

	if err != nil {
		return fmt.Errorf("failed to set verification token: %w", err)
	}

	return requireRowsAffected(result)
}

// RedeemVerificationToken marks the matching user as verified and clears
// the token in one statement, so a token redeems at most once.
func (r *Repository) RedeemVerificationToken(ctx context.Context, token string) error {
	result, err := r.db.NewUpdate().
		Model((*database.User)(nil)).
		Set("is_verified = ?", true).
		Set("verification_token = NULL").
		Set("updated_at = NOW()").
		Where("verification_token = ?", token).
		Where("is_verified = ?", false).
		Exec(ctx)

	if err != nil {
		return fmt.Errorf("failed to redeem verification token: %w", err)
	}

	return requireRowsAffected(result)
}

// UpdatePassword updates a user's password hash
func (r *Repository) UpdatePassword(ctx context.Context, userID uuid.UUID, passwordHash string) error {
	result, err := r.db.NewUpdate().
		Model((*database.User)(nil)).
		Set("password_hash = ?", passwordHash).
		Set("updated_at = NOW()").
		Where("id = ?", userID).
		Exec(ctx)

	if err != nil {
		return fmt.Errorf("failed to update password: %w", err)
	}

	return requireRowsAffected(result)
}

// UpdateProfileParams holds the mutable profile fields.
type UpdateProfileParams struct {
	Name     string
	Username string
	Email    string
	Gender   *Gender
}

// UpdateProfile updates the profile fields of a user. Uniqueness of
// username and email is enforced by the database constraints.
func (r *Repository) UpdateProfile(ctx context.Context, userID uuid.UUID, params UpdateProfileParams) (*User, error) {
	dbUser := new(database.User)
	q := r.db.NewUpdate().
		Model(dbUser).
		Set("name = ?", params.Name).
		Set("username = ?", params.Username).
		Set("email = ?", params.Email).
		Set("updated_at = NOW()").
		Where("id = ?", userID).
		Returning("*")

	if params.Gender != nil {
		q = q.Set("gender = ?", string(*params.Gender))
	}

	result, err := q.Exec(ctx)
	if err != nil {
		return nil, mapUniqueViolation(err, "failed to update profile")
	}

	if err := requireRowsAffected(result); err != nil {
		return nil, err
	}

	return mapDBUserToModel(dbUser), nil
}

// UpdateAvatar replaces the user's avatar URL
func (r *Repository) UpdateAvatar(ctx context.Context, userID uuid.UUID, avatar string) (*User, error) {
	dbUser := new(database.User)
	result, err := r.db.NewUpdate().
		Model(dbUser).
		Set("avatar = ?", avatar).
		Set("updated_at = NOW()").
		Where("id = ?", userID).
		Returning("*").
		Exec(ctx)

	if err != nil {
		return nil, fmt.Errorf("failed to update avatar: %w", err)
	}

	if err := requireRowsAffected(result); err != nil {
		return nil, err
	}

	return mapDBUserToModel(dbUser), nil
}

// requireRowsAffected converts a zero-row update into ErrNotFound
func requireRowsAffected(result sql.Result) error {
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return ErrNotFound
	}

	return nil
}

// mapUniqueViolation translates Postgres unique violations into the
// sentinel errors the service layer branches on.
func mapUniqueViolation(err error, msg string) error {
	if strings.Contains(err.Error(), "duplicate key value violates unique constraint") {
		if strings.Contains(err.Error(), "users_username_key") {
			return ErrDuplicateUsername
		}
		return ErrDuplicateEmail
	}
	return fmt.Errorf("%s: %w", msg, err)
}

// mapDBUserToModel converts database model to domain model
func mapDBUserToModel(dbu *database.User) *User {
	u := &User{
		ID:                   dbu.ID,
		Name:                 dbu.Name,
		Username:             dbu.Username,
		Email:                dbu.Email,
		PasswordHash:         dbu.PasswordHash,
		Role:                 Role(dbu.Role),
		Avatar:               dbu.Avatar,
		IsVerified:           dbu.IsVerified,
		VerificationToken:    dbu.VerificationToken,
		ResetToken:           dbu.ResetToken,
		ResetTokenExpiration: dbu.ResetTokenExpiration,
		CreatedAt:            dbu.CreatedAt,
		UpdatedAt:            dbu.UpdatedAt,
	}
	if dbu.Gender != nil {
		g := Gender(*dbu.Gender)
		u.Gender = &g
	}
	return u
}

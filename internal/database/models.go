package database

import (
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// User is the bun model for the users table.
//
// reset_token and reset_token_expiration are always set and cleared
// together; redemption clears both in a single UPDATE.
type User struct {
	bun.BaseModel `bun:"table:users,alias:u"`

	ID                   uuid.UUID  `bun:"id,pk,type:uuid,default:gen_random_uuid()"`
	Name                 string     `bun:"name,notnull"`
	Username             string     `bun:"username,notnull,unique"`
	Email                string     `bun:"email,notnull,unique"`
	PasswordHash         string     `bun:"password_hash,notnull"`
	Role                 string     `bun:"role,notnull,default:'USER'"`
	Gender               *string    `bun:"gender"`
	Avatar               string     `bun:"avatar,notnull"`
	IsVerified           bool       `bun:"is_verified,notnull,default:false"`
	VerificationToken    *string    `bun:"verification_token"`
	ResetToken           *string    `bun:"reset_token"`
	ResetTokenExpiration *time.Time `bun:"reset_token_expiration"`
	CreatedAt            time.Time  `bun:"created_at,nullzero,notnull,default:now()"`
	UpdatedAt            time.Time  `bun:"updated_at,nullzero,notnull,default:now()"`
}

package user

import (
	"time"

	"github.com/google/uuid"
)

// Role enumerates the access levels a user can hold.
type Role string

const (
	RoleUser  Role = "USER"
	RoleAdmin Role = "ADMIN"
)

// Gender is an optional profile attribute.
type Gender string

const (
	GenderMale   Gender = "MALE"
	GenderFemale Gender = "FEMALE"
	GenderOther  Gender = "OTHER"
)

// DefaultAvatar is assigned to every account at registration until the
// user uploads their own image.
const DefaultAvatar = "https://encrypted-tbn0.gstatic.com/images?q=tbn:ANd9GcQ4YreOWfDX3kK-QLAbAL4ufCPc84ol2MA8Xg&s"

type User struct {
	ID                   uuid.UUID  `json:"id"`
	Name                 string     `json:"name"`
	Username             string     `json:"username"`
	Email                string     `json:"email"`
	PasswordHash         string     `json:"-"` // Never expose password hash in JSON
	Role                 Role       `json:"role"`
	Gender               *Gender    `json:"gender,omitempty"`
	Avatar               string     `json:"avatar"`
	IsVerified           bool       `json:"is_verified"`
	VerificationToken    *string    `json:"-"`
	ResetToken           *string    `json:"-"`
	ResetTokenExpiration *time.Time `json:"-"`
	CreatedAt            time.Time  `json:"created_at"`
	UpdatedAt            time.Time  `json:"updated_at"`
}

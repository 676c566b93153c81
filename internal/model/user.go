package model

import "time"

// Role names stored in the users.role column and embedded in JWT claims.
const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

// User represents an application user record as stored in the `users`
// table. Password hash and token columns are never serialized; handlers
// return the json-tagged fields only.
//
// Fields:
//
//	ID             – uuid primary key.
//	Email          – unique email address.
//	PasswordHash   – bcrypt hashed password.
//	FullName       – display name.
//	Role           – "user" or "admin".
//	IsActive       – whether the account may log in.
//	EmailVerified  – set once the verification token is redeemed.
//	LastLoginAt    – timestamp of the most recent successful login.
type User struct {
	ID           string `json:"id"`
	Email        string `json:"email"`
	PasswordHash string `json:"-"`
	FullName     string `json:"fullName"`
	Role         string `json:"role"`
	IsActive     bool   `json:"isActive"`

	EmailVerified            bool       `json:"emailVerified"`
	EmailVerificationToken   *string    `json:"-"`
	EmailVerificationExpires *time.Time `json:"-"`
	PasswordResetToken       *string    `json:"-"`
	PasswordResetExpires     *time.Time `json:"-"`

	LastLoginAt *time.Time `json:"lastLoginAt,omitempty"`
	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   time.Time  `json:"updatedAt"`
}

package model

import (
	"strings"
	"time"
)

// GuestEmailPrefix starts every synthesized guest email. Guest emails never
// contain an "@", which is what marks the account as a guest.
const GuestEmailPrefix = "guest"

// User is an account that owns pages, tasks and completed tasks.
type User struct {
	ID           int64     `json:"id" db:"id"`
	Email        string    `json:"email" db:"email"`
	PasswordHash string    `json:"-" db:"password_hash"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
}

// IsGuest reports whether u is an auto-provisioned guest account.
func (u User) IsGuest() bool {
	return !strings.Contains(u.Email, "@")
}

package model

import "time"

// Session maps an opaque browser token to the user it is signed in as.
type Session struct {
	Token      string    `json:"-" db:"token"`
	UserID     int64     `json:"user_id" db:"user_id"`
	Flashes    []string  `json:"flashes,omitempty" db:"-"`
	CreatedAt  time.Time `json:"created_at" db:"created_at"`
	LastSeenAt time.Time `json:"last_seen_at" db:"last_seen_at"`
}

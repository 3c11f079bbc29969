package model

import "time"

// DefaultPageName is given to the page created for a user with none.
const DefaultPageName = "#page1"

// Page is a named grouping of a user's tasks.
type Page struct {
	ID        int64     `json:"id" db:"id"`
	UserID    int64     `json:"user_id" db:"user_id"`
	Name      string    `json:"name" db:"name"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

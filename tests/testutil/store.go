package testutil

import (
	"context"
	"testing"

	"github.com/google/uuid"

	"github.com/nhle/todoweb/internal/model"
	"github.com/nhle/todoweb/internal/store"
)

// NewTestStore creates an in-memory SQLiteStore with all migrations applied.
// It automatically closes the store when the test completes.
func NewTestStore(t *testing.T) *store.SQLiteStore {
	t.Helper()

	s, err := store.NewSQLiteStore(":memory:")
	if err != nil {
		t.Fatalf("creating test store: %v", err)
	}

	t.Cleanup(func() {
		if err := s.Close(); err != nil {
			t.Errorf("closing test store: %v", err)
		}
	})

	return s
}

// NewGuest inserts a guest user bound to a fresh session token and returns
// both. The password hash is a placeholder; tests that log in should go
// through the account service instead.
func NewGuest(t *testing.T, s store.Store) (*model.User, string) {
	t.Helper()

	token := uuid.NewString()
	user, err := s.CreateGuestSession(context.Background(), token, model.User{
		Email:        model.GuestEmailPrefix + uuid.NewString()[:8],
		PasswordHash: "x",
	})
	if err != nil {
		t.Fatalf("creating guest: %v", err)
	}
	return user, token
}

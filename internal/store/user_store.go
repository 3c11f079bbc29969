package store

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/nhle/todoweb/internal/model"
)

const userColumns = "id, email, password_hash, created_at"

// GetUserByID retrieves a single user by ID.
func (s *SQLiteStore) GetUserByID(ctx context.Context, id int64) (*model.User, error) {
	var user model.User
	err := s.db.GetContext(ctx, &user,
		"SELECT "+userColumns+" FROM users WHERE id = ?", id)
	if err != nil {
		return nil, fmt.Errorf("getting user %d: %w", id, classify(err))
	}
	return &user, nil
}

// GetUserByEmail retrieves a single user by exact email.
func (s *SQLiteStore) GetUserByEmail(ctx context.Context, email string) (*model.User, error) {
	var user model.User
	err := s.db.GetContext(ctx, &user,
		"SELECT "+userColumns+" FROM users WHERE email = ?", email)
	if err != nil {
		return nil, fmt.Errorf("getting user %q: %w", email, classify(err))
	}
	return &user, nil
}

// RegisterUser inserts a new account. When guestID is set, every task,
// completed task and page owned by the guest moves to the new account.
// The guest row itself is left in place.
func (s *SQLiteStore) RegisterUser(
	ctx context.Context,
	user model.User,
	guestID *int64,
) (*model.User, MigrationResult, error) {
	var result MigrationResult

	if strings.TrimSpace(user.Email) == "" {
		return nil, result, fmt.Errorf("user email must not be empty")
	}

	err := s.withTx(ctx, func(tx *sqlx.Tx) error {
		created, err := insertUser(ctx, tx, user)
		if err != nil {
			return err
		}
		user = *created

		if guestID == nil {
			return nil
		}

		moves := []struct {
			table string
			count *int64
		}{
			{"tasks", &result.Tasks},
			{"done_tasks", &result.DoneTasks},
			{"pages", &result.Pages},
		}
		for _, m := range moves {
			res, err := tx.ExecContext(ctx,
				"UPDATE "+m.table+" SET user_id = ? WHERE user_id = ?",
				user.ID, *guestID)
			if err != nil {
				return fmt.Errorf("moving %s from user %d: %w", m.table, *guestID, classify(err))
			}
			*m.count, _ = res.RowsAffected()
		}
		return nil
	})
	if err != nil {
		return nil, MigrationResult{}, err
	}

	return &user, result, nil
}

// insertUser inserts user within tx and returns it with ID and CreatedAt set.
func insertUser(ctx context.Context, tx *sqlx.Tx, user model.User) (*model.User, error) {
	user.CreatedAt = time.Now().UTC()

	res, err := tx.ExecContext(ctx,
		"INSERT INTO users (email, password_hash, created_at) VALUES (?, ?, ?)",
		user.Email, user.PasswordHash, user.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("creating user %q: %w", user.Email, classify(err))
	}
	user.ID, err = res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("reading new user id: %w", err)
	}
	return &user, nil
}

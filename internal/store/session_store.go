package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/nhle/todoweb/internal/model"
)

// CreateGuestSession binds token to a freshly inserted guest user, or
// returns the user the token is already bound to.
func (s *SQLiteStore) CreateGuestSession(
	ctx context.Context,
	token string,
	guest model.User,
) (*model.User, error) {
	var user *model.User

	err := s.withTx(ctx, func(tx *sqlx.Tx) error {
		var existing int64
		err := tx.GetContext(ctx, &existing,
			"SELECT user_id FROM sessions WHERE token = ?", token)
		switch {
		case err == nil:
			var u model.User
			if err := tx.GetContext(ctx, &u,
				"SELECT "+userColumns+" FROM users WHERE id = ?", existing); err != nil {
				return fmt.Errorf("getting user %d: %w", existing, classify(err))
			}
			user = &u
			return nil
		case !errors.Is(classify(err), ErrNotFound):
			return fmt.Errorf("looking up session: %w", err)
		}

		created, err := insertUser(ctx, tx, guest)
		if err != nil {
			return err
		}
		if err := insertSession(ctx, tx, token, created.ID, nil); err != nil {
			return err
		}
		user = created
		return nil
	})
	if err != nil {
		return nil, err
	}
	return user, nil
}

// GetSession retrieves a session by token.
func (s *SQLiteStore) GetSession(ctx context.Context, token string) (*model.Session, error) {
	var (
		sess    model.Session
		flashes string
	)
	err := s.db.QueryRowxContext(ctx,
		"SELECT token, user_id, flashes, created_at, last_seen_at FROM sessions WHERE token = ?",
		token,
	).Scan(&sess.Token, &sess.UserID, &flashes, &sess.CreatedAt, &sess.LastSeenAt)
	if err != nil {
		return nil, fmt.Errorf("getting session: %w", classify(err))
	}

	sess.Flashes, err = decodeFlashes(flashes)
	if err != nil {
		return nil, err
	}
	return &sess, nil
}

// RebindSession replaces oldToken with newToken and points it at userID,
// keeping pending flashes. A missing old session is created afresh.
func (s *SQLiteStore) RebindSession(
	ctx context.Context,
	oldToken, newToken string,
	userID int64,
) error {
	return s.withTx(ctx, func(tx *sqlx.Tx) error {
		res, err := tx.ExecContext(ctx,
			"UPDATE sessions SET token = ?, user_id = ?, last_seen_at = ? WHERE token = ?",
			newToken, userID, time.Now().UTC(), oldToken,
		)
		if err != nil {
			return fmt.Errorf("rebinding session: %w", classify(err))
		}
		if rows, _ := res.RowsAffected(); rows > 0 {
			return nil
		}
		return insertSession(ctx, tx, newToken, userID, nil)
	})
}

// DeleteSession removes a session. Deleting an unknown token is not an error.
func (s *SQLiteStore) DeleteSession(ctx context.Context, token string) error {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM sessions WHERE token = ?", token); err != nil {
		return fmt.Errorf("deleting session: %w", err)
	}
	return nil
}

// TouchSession records activity on a session.
func (s *SQLiteStore) TouchSession(ctx context.Context, token string) error {
	res, err := s.db.ExecContext(ctx,
		"UPDATE sessions SET last_seen_at = ? WHERE token = ?",
		time.Now().UTC(), token)
	if err != nil {
		return fmt.Errorf("touching session: %w", err)
	}
	return mustAffect(res, "touching session")
}

// AppendFlash queues a message to be shown on the session's next view.
func (s *SQLiteStore) AppendFlash(ctx context.Context, token, message string) error {
	return s.withTx(ctx, func(tx *sqlx.Tx) error {
		var raw string
		if err := tx.GetContext(ctx, &raw,
			"SELECT flashes FROM sessions WHERE token = ?", token); err != nil {
			return fmt.Errorf("reading flashes: %w", classify(err))
		}
		flashes, err := decodeFlashes(raw)
		if err != nil {
			return err
		}
		encoded, err := json.Marshal(append(flashes, message))
		if err != nil {
			return fmt.Errorf("marshaling flashes: %w", err)
		}
		if _, err := tx.ExecContext(ctx,
			"UPDATE sessions SET flashes = ? WHERE token = ?",
			string(encoded), token); err != nil {
			return fmt.Errorf("writing flashes: %w", err)
		}
		return nil
	})
}

// PopFlashes returns and clears the session's queued messages.
func (s *SQLiteStore) PopFlashes(ctx context.Context, token string) ([]string, error) {
	var flashes []string

	err := s.withTx(ctx, func(tx *sqlx.Tx) error {
		var raw string
		if err := tx.GetContext(ctx, &raw,
			"SELECT flashes FROM sessions WHERE token = ?", token); err != nil {
			return fmt.Errorf("reading flashes: %w", classify(err))
		}
		var err error
		flashes, err = decodeFlashes(raw)
		if err != nil {
			return err
		}
		if len(flashes) == 0 {
			return nil
		}
		if _, err := tx.ExecContext(ctx,
			"UPDATE sessions SET flashes = '[]' WHERE token = ?", token); err != nil {
			return fmt.Errorf("clearing flashes: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return flashes, nil
}

// PruneSessions deletes sessions idle since before idleBefore. A guest
// whose last session goes keeps its user row, pages and tasks.
func (s *SQLiteStore) PruneSessions(ctx context.Context, idleBefore time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		"DELETE FROM sessions WHERE last_seen_at < ?", idleBefore.UTC())
	if err != nil {
		return 0, fmt.Errorf("pruning sessions: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("reading rows affected for pruning sessions: %w", err)
	}
	return n, nil
}

func insertSession(ctx context.Context, tx *sqlx.Tx, token string, userID int64, flashes []string) error {
	if flashes == nil {
		flashes = []string{}
	}
	encoded, err := json.Marshal(flashes)
	if err != nil {
		return fmt.Errorf("marshaling flashes: %w", err)
	}
	now := time.Now().UTC()
	_, err = tx.ExecContext(ctx, `
		INSERT INTO sessions (token, user_id, flashes, created_at, last_seen_at)
		VALUES (?, ?, ?, ?, ?)`,
		token, userID, string(encoded), now, now,
	)
	if err != nil {
		return fmt.Errorf("creating session: %w", classify(err))
	}
	return nil
}

func decodeFlashes(raw string) ([]string, error) {
	if raw == "" {
		return nil, nil
	}
	var flashes []string
	if err := json.Unmarshal([]byte(raw), &flashes); err != nil {
		return nil, fmt.Errorf("unmarshaling flashes: %w", err)
	}
	return flashes, nil
}

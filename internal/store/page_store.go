package store

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/nhle/todoweb/internal/model"
)

const pageColumns = "id, user_id, name, created_at"

// CreatePage inserts a new page. A name already used by the same user
// yields ErrConflict.
func (s *SQLiteStore) CreatePage(ctx context.Context, page model.Page) (*model.Page, error) {
	if strings.TrimSpace(page.Name) == "" {
		return nil, fmt.Errorf("page name must not be empty")
	}
	var created *model.Page
	err := s.withTx(ctx, func(tx *sqlx.Tx) error {
		var err error
		created, err = insertPage(ctx, tx, page)
		return err
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

// GetPages retrieves a user's pages in creation order.
func (s *SQLiteStore) GetPages(ctx context.Context, userID int64) ([]model.Page, error) {
	var pages []model.Page
	err := s.db.SelectContext(ctx, &pages,
		"SELECT "+pageColumns+" FROM pages WHERE user_id = ? ORDER BY id", userID)
	if err != nil {
		return nil, fmt.Errorf("querying pages for user %d: %w", userID, err)
	}
	return pages, nil
}

// GetPageByID retrieves a page owned by userID.
func (s *SQLiteStore) GetPageByID(ctx context.Context, userID, id int64) (*model.Page, error) {
	var page model.Page
	err := s.db.GetContext(ctx, &page,
		"SELECT "+pageColumns+" FROM pages WHERE id = ? AND user_id = ?", id, userID)
	if err != nil {
		return nil, fmt.Errorf("getting page %d: %w", id, classify(err))
	}
	return &page, nil
}

// EnsureDefaultPage creates the default page when the user has none and
// returns the user's first page. The bool reports whether a page was created.
func (s *SQLiteStore) EnsureDefaultPage(ctx context.Context, userID int64) (*model.Page, bool, error) {
	var (
		page    model.Page
		created bool
	)
	err := s.withTx(ctx, func(tx *sqlx.Tx) error {
		err := tx.GetContext(ctx, &page,
			"SELECT "+pageColumns+" FROM pages WHERE user_id = ? ORDER BY id LIMIT 1", userID)
		if err == nil {
			return nil
		}
		if classify(err) != ErrNotFound {
			return fmt.Errorf("getting first page for user %d: %w", userID, err)
		}
		p, err := insertPage(ctx, tx, model.Page{UserID: userID, Name: model.DefaultPageName})
		if err != nil {
			return err
		}
		page, created = *p, true
		return nil
	})
	if err != nil {
		return nil, false, err
	}
	return &page, created, nil
}

func insertPage(ctx context.Context, tx *sqlx.Tx, page model.Page) (*model.Page, error) {
	page.CreatedAt = time.Now().UTC()
	res, err := tx.ExecContext(ctx,
		"INSERT INTO pages (user_id, name, created_at) VALUES (?, ?, ?)",
		page.UserID, page.Name, page.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("creating page %q: %w", page.Name, classify(err))
	}
	page.ID, err = res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("reading new page id: %w", err)
	}
	return &page, nil
}

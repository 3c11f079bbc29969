package todo

import (
	"context"
	"strings"

	"github.com/nhle/todoweb/internal/model"
)

// EnsureDefaultPage creates the default page if the user has none and
// returns the user's first page.
func (s *Service) EnsureDefaultPage(ctx context.Context, userID int64) (*model.Page, error) {
	page, _, err := s.store.EnsureDefaultPage(ctx, userID)
	return page, err
}

// CreatePage adds a named page. A name the user already has yields
// ErrConflict and nothing is written.
func (s *Service) CreatePage(ctx context.Context, userID int64, name string) (*model.Page, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, ErrEmptyText
	}
	page, err := s.store.CreatePage(ctx, model.Page{UserID: userID, Name: name})
	if err != nil {
		return nil, mapErr(err)
	}
	return page, nil
}

// ListPages returns the user's pages in creation order.
func (s *Service) ListPages(ctx context.Context, userID int64) ([]model.Page, error) {
	return s.store.GetPages(ctx, userID)
}

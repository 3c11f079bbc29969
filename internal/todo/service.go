// Package todo implements the task, sub-task, completed-task and page
// operations available to a signed-in (or guest) user.
package todo

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/nhle/todoweb/internal/model"
	"github.com/nhle/todoweb/internal/store"
)

var (
	// ErrNotFound means the task, sub-task or page does not exist for the user.
	ErrNotFound = errors.New("not found")

	// ErrConflict means a name or completed-task text is already taken.
	ErrConflict = errors.New("already exists")

	// ErrEmptyText means a required text field was blank.
	ErrEmptyText = errors.New("text must not be empty")
)

// Service carries out task and page operations against a Store.
type Service struct {
	store  store.Store
	logger *slog.Logger
}

// NewService returns a Service backed by s.
func NewService(s store.Store, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{store: s, logger: logger.With("component", "todo")}
}

// HomeView is everything the home page shows a user.
type HomeView struct {
	User      model.User       `json:"user"`
	IsGuest   bool             `json:"is_guest"`
	Page      *model.Page      `json:"page,omitempty"`
	Pages     []model.Page     `json:"pages"`
	Tasks     []model.Task     `json:"tasks"`
	DoneTasks []model.DoneTask `json:"done_tasks"`
}

// mapErr translates store sentinels into this package's.
func mapErr(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, store.ErrNotFound):
		return fmt.Errorf("%w: %v", ErrNotFound, err)
	case errors.Is(err, store.ErrConflict):
		return fmt.Errorf("%w: %v", ErrConflict, err)
	}
	return err
}

func blank(s string) bool {
	return strings.TrimSpace(s) == ""
}

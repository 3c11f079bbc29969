package store

import (
	"context"
	"errors"
	"time"

	"github.com/nhle/todoweb/internal/model"
)

// Sentinel errors returned by Store implementations. Callers match them
// with errors.Is; the returned errors carry more context via %w wrapping.
var (
	// ErrNotFound means the addressed row does not exist for the owner.
	ErrNotFound = errors.New("not found")

	// ErrConflict means a uniqueness constraint rejected the write.
	ErrConflict = errors.New("conflict")
)

// TaskFilter scopes task and completed-task queries to an owner and,
// optionally, a single page.
type TaskFilter struct {
	UserID int64
	PageID *int64 // nil means every page
}

// MigrationResult counts rows reassigned from a guest to a new account.
type MigrationResult struct {
	Tasks     int64
	DoneTasks int64
	Pages     int64
}


// Store defines the persistence interface for users, sessions, pages,
// tasks with their sub-tasks, and completed tasks.
type Store interface {
	Ping(ctx context.Context) error

	// === Users ===

	GetUserByID(ctx context.Context, id int64) (*model.User, error)
	GetUserByEmail(ctx context.Context, email string) (*model.User, error)

	// RegisterUser inserts user and, when guestID is non-nil, reassigns the
	// guest's tasks, completed tasks and pages to it in the same transaction.
	RegisterUser(ctx context.Context, user model.User, guestID *int64) (*model.User, MigrationResult, error)

	// === Sessions ===

	// CreateGuestSession returns the user already bound to token, or
	// inserts guest and a session for it. Repeating the call with the same
	// token never creates a second user.
	CreateGuestSession(ctx context.Context, token string, guest model.User) (*model.User, error)
	GetSession(ctx context.Context, token string) (*model.Session, error)
	RebindSession(ctx context.Context, oldToken, newToken string, userID int64) error
	DeleteSession(ctx context.Context, token string) error
	TouchSession(ctx context.Context, token string) error
	AppendFlash(ctx context.Context, token, message string) error
	PopFlashes(ctx context.Context, token string) ([]string, error)

	// PruneSessions deletes sessions last seen before idleBefore and
	// returns how many were removed. Users and their data are untouched.
	PruneSessions(ctx context.Context, idleBefore time.Time) (int64, error)

	// === Pages ===

	CreatePage(ctx context.Context, page model.Page) (*model.Page, error)
	GetPages(ctx context.Context, userID int64) ([]model.Page, error)
	GetPageByID(ctx context.Context, userID, id int64) (*model.Page, error)
	EnsureDefaultPage(ctx context.Context, userID int64) (*model.Page, bool, error)

	// === Tasks ===

	CreateTask(ctx context.Context, task model.Task) (*model.Task, error)
	GetTaskByID(ctx context.Context, userID, id int64) (*model.Task, error)
	FindTaskByText(ctx context.Context, userID int64, text string) (*model.Task, error)
	GetTasks(ctx context.Context, filter TaskFilter) ([]model.Task, error)
	DeleteTask(ctx context.Context, userID, id int64) error

	// === Sub-tasks ===

	AddSubTask(ctx context.Context, item model.SubTask) (*model.SubTask, error)
	GetSubTasks(ctx context.Context, taskID int64) ([]model.SubTask, error)
	DeleteSubTask(ctx context.Context, taskID, id int64) error
	DeleteSubTaskByText(ctx context.Context, taskID int64, text string) error

	// === Completed tasks ===

	// CompleteTask replaces the task row with a completed-task row.
	CompleteTask(ctx context.Context, userID, taskID int64) (*model.DoneTask, error)
	GetDoneTasks(ctx context.Context, filter TaskFilter) ([]model.DoneTask, error)
	ClearDoneTasks(ctx context.Context, userID int64) (int64, error)
}

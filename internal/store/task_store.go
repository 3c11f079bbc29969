package store

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/nhle/todoweb/internal/model"
)

const (
	taskColumns     = "id, user_id, page_id, text, created_at"
	subTaskColumns  = "id, task_id, text, sort_order, created_at"
	doneTaskColumns = "id, user_id, page_id, text, completed_at"
)

// CreateTask inserts a new task with no sub-tasks.
func (s *SQLiteStore) CreateTask(ctx context.Context, task model.Task) (*model.Task, error) {
	if strings.TrimSpace(task.Text) == "" {
		return nil, fmt.Errorf("task text must not be empty")
	}
	task.CreatedAt = time.Now().UTC()
	task.SubTasks = nil

	res, err := s.db.ExecContext(ctx,
		"INSERT INTO tasks (user_id, page_id, text, created_at) VALUES (?, ?, ?, ?)",
		task.UserID, task.PageID, task.Text, task.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("creating task: %w", classify(err))
	}
	task.ID, err = res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("reading new task id: %w", err)
	}
	return &task, nil
}

// GetTaskByID retrieves a task owned by userID, including its sub-tasks.
func (s *SQLiteStore) GetTaskByID(ctx context.Context, userID, id int64) (*model.Task, error) {
	var task model.Task
	err := s.db.GetContext(ctx, &task,
		"SELECT "+taskColumns+" FROM tasks WHERE id = ? AND user_id = ?", id, userID)
	if err != nil {
		return nil, fmt.Errorf("getting task %d: %w", id, classify(err))
	}
	if task.SubTasks, err = s.GetSubTasks(ctx, id); err != nil {
		return nil, err
	}
	return &task, nil
}

// FindTaskByText retrieves the oldest of the user's tasks whose text
// matches exactly.
func (s *SQLiteStore) FindTaskByText(ctx context.Context, userID int64, text string) (*model.Task, error) {
	var id int64
	err := s.db.GetContext(ctx, &id,
		"SELECT id FROM tasks WHERE user_id = ? AND text = ? ORDER BY id LIMIT 1",
		userID, text)
	if err != nil {
		return nil, fmt.Errorf("finding task %q: %w", text, classify(err))
	}
	return s.GetTaskByID(ctx, userID, id)
}

// GetTasks retrieves tasks matching the filter, with sub-tasks loaded.
func (s *SQLiteStore) GetTasks(ctx context.Context, filter TaskFilter) ([]model.Task, error) {
	query, args := buildOwnedQuery("SELECT "+taskColumns+" FROM tasks", filter, "id")

	var tasks []model.Task
	if err := s.db.SelectContext(ctx, &tasks, query, args...); err != nil {
		return nil, fmt.Errorf("querying tasks: %w", err)
	}
	if len(tasks) == 0 {
		return tasks, nil
	}

	// Batch load sub-tasks for all tasks.
	ids := make([]int64, len(tasks))
	for i, t := range tasks {
		ids[i] = t.ID
	}
	subQuery, subArgs, err := sqlx.In(
		"SELECT "+subTaskColumns+" FROM sub_tasks WHERE task_id IN (?) ORDER BY task_id, sort_order, id",
		ids)
	if err != nil {
		return nil, fmt.Errorf("building sub-task query: %w", err)
	}
	var subs []model.SubTask
	if err := s.db.SelectContext(ctx, &subs, s.db.Rebind(subQuery), subArgs...); err != nil {
		return nil, fmt.Errorf("querying sub-tasks: %w", err)
	}

	byTask := make(map[int64][]model.SubTask, len(tasks))
	for _, st := range subs {
		byTask[st.TaskID] = append(byTask[st.TaskID], st)
	}
	for i := range tasks {
		tasks[i].SubTasks = byTask[tasks[i].ID]
	}
	return tasks, nil
}

// DeleteTask removes a task owned by userID. Cascades to sub_tasks.
func (s *SQLiteStore) DeleteTask(ctx context.Context, userID, id int64) error {
	res, err := s.db.ExecContext(ctx,
		"DELETE FROM tasks WHERE id = ? AND user_id = ?", id, userID)
	if err != nil {
		return fmt.Errorf("deleting task %d: %w", id, err)
	}
	return mustAffect(res, fmt.Sprintf("deleting task %d", id))
}

// AddSubTask appends a sub-task after the task's existing ones.
func (s *SQLiteStore) AddSubTask(ctx context.Context, item model.SubTask) (*model.SubTask, error) {
	if strings.TrimSpace(item.Text) == "" {
		return nil, fmt.Errorf("sub-task text must not be empty")
	}
	item.CreatedAt = time.Now().UTC()

	err := s.withTx(ctx, func(tx *sqlx.Tx) error {
		var maxOrder int
		err := tx.GetContext(ctx, &maxOrder,
			"SELECT COALESCE(MAX(sort_order), 0) FROM sub_tasks WHERE task_id = ?",
			item.TaskID)
		if err != nil {
			return fmt.Errorf("getting max sub-task sort_order: %w", err)
		}
		item.SortOrder = maxOrder + 1

		res, err := tx.ExecContext(ctx, `
			INSERT INTO sub_tasks (task_id, text, sort_order, created_at)
			VALUES (?, ?, ?, ?)`,
			item.TaskID, item.Text, item.SortOrder, item.CreatedAt,
		)
		if err != nil {
			return fmt.Errorf("adding sub-task: %w", classify(err))
		}
		item.ID, err = res.LastInsertId()
		if err != nil {
			return fmt.Errorf("reading new sub-task id: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &item, nil
}

// GetSubTasks returns all sub-tasks for a task, ordered by sort_order.
func (s *SQLiteStore) GetSubTasks(ctx context.Context, taskID int64) ([]model.SubTask, error) {
	var items []model.SubTask
	err := s.db.SelectContext(ctx, &items,
		"SELECT "+subTaskColumns+" FROM sub_tasks WHERE task_id = ? ORDER BY sort_order, id",
		taskID)
	if err != nil {
		return nil, fmt.Errorf("querying sub-tasks for task %d: %w", taskID, err)
	}
	return items, nil
}

// DeleteSubTask removes one sub-task of a task by ID.
func (s *SQLiteStore) DeleteSubTask(ctx context.Context, taskID, id int64) error {
	res, err := s.db.ExecContext(ctx,
		"DELETE FROM sub_tasks WHERE id = ? AND task_id = ?", id, taskID)
	if err != nil {
		return fmt.Errorf("deleting sub-task %d: %w", id, err)
	}
	return mustAffect(res, fmt.Sprintf("deleting sub-task %d", id))
}

// DeleteSubTaskByText removes the first sub-task whose text equals text.
// Sub-tasks that merely contain text are left alone.
func (s *SQLiteStore) DeleteSubTaskByText(ctx context.Context, taskID int64, text string) error {
	res, err := s.db.ExecContext(ctx, `
		DELETE FROM sub_tasks WHERE id = (
			SELECT id FROM sub_tasks
			WHERE task_id = ? AND text = ?
			ORDER BY sort_order, id LIMIT 1
		)`, taskID, text)
	if err != nil {
		return fmt.Errorf("deleting sub-task %q: %w", text, err)
	}
	return mustAffect(res, fmt.Sprintf("deleting sub-task %q", text))
}

// CompleteTask deletes the task and records it as completed, atomically.
// A completed task with the same text for the same user yields ErrConflict
// and leaves the task in place.
func (s *SQLiteStore) CompleteTask(ctx context.Context, userID, taskID int64) (*model.DoneTask, error) {
	var done model.DoneTask

	err := s.withTx(ctx, func(tx *sqlx.Tx) error {
		var task model.Task
		err := tx.GetContext(ctx, &task,
			"SELECT "+taskColumns+" FROM tasks WHERE id = ? AND user_id = ?", taskID, userID)
		if err != nil {
			return fmt.Errorf("getting task %d: %w", taskID, classify(err))
		}

		if _, err := tx.ExecContext(ctx, "DELETE FROM tasks WHERE id = ?", taskID); err != nil {
			return fmt.Errorf("deleting task %d: %w", taskID, err)
		}

		done = model.DoneTask{
			UserID:      userID,
			PageID:      task.PageID,
			Text:        task.Text,
			CompletedAt: time.Now().UTC(),
		}
		res, err := tx.ExecContext(ctx, `
			INSERT INTO done_tasks (user_id, page_id, text, completed_at)
			VALUES (?, ?, ?, ?)`,
			done.UserID, done.PageID, done.Text, done.CompletedAt,
		)
		if err != nil {
			return fmt.Errorf("completing task %q: %w", task.Text, classify(err))
		}
		done.ID, err = res.LastInsertId()
		if err != nil {
			return fmt.Errorf("reading new done task id: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &done, nil
}

// GetDoneTasks retrieves completed tasks matching the filter.
func (s *SQLiteStore) GetDoneTasks(ctx context.Context, filter TaskFilter) ([]model.DoneTask, error) {
	query, args := buildOwnedQuery("SELECT "+doneTaskColumns+" FROM done_tasks", filter, "id")

	var done []model.DoneTask
	if err := s.db.SelectContext(ctx, &done, query, args...); err != nil {
		return nil, fmt.Errorf("querying done tasks: %w", err)
	}
	return done, nil
}

// ClearDoneTasks deletes every completed task owned by userID.
func (s *SQLiteStore) ClearDoneTasks(ctx context.Context, userID int64) (int64, error) {
	res, err := s.db.ExecContext(ctx, "DELETE FROM done_tasks WHERE user_id = ?", userID)
	if err != nil {
		return 0, fmt.Errorf("clearing done tasks for user %d: %w", userID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("reading rows affected for clearing done tasks: %w", err)
	}
	return n, nil
}

// buildOwnedQuery appends the owner and page conditions of filter.
func buildOwnedQuery(selectFrom string, filter TaskFilter, orderBy string) (string, []interface{}) {
	conditions := []string{"user_id = ?"}
	args := []interface{}{filter.UserID}

	if filter.PageID != nil {
		conditions = append(conditions, "page_id = ?")
		args = append(args, *filter.PageID)
	}

	query := selectFrom + " WHERE " + strings.Join(conditions, " AND ")
	query += " ORDER BY " + orderBy
	return query, args
}

package todo

import (
	"context"

	"github.com/nhle/todoweb/internal/model"
	"github.com/nhle/todoweb/internal/store"
)

// AddTask creates a task for user. With no pageID the task is filed under
// the user's first page, which is created if needed.
func (s *Service) AddTask(ctx context.Context, userID int64, text string, pageID *int64) (*model.Task, error) {
	if blank(text) {
		return nil, ErrEmptyText
	}

	if pageID == nil {
		page, _, err := s.store.EnsureDefaultPage(ctx, userID)
		if err != nil {
			return nil, err
		}
		pageID = &page.ID
	} else if _, err := s.store.GetPageByID(ctx, userID, *pageID); err != nil {
		return nil, mapErr(err)
	}

	task, err := s.store.CreateTask(ctx, model.Task{UserID: userID, PageID: pageID, Text: text})
	if err != nil {
		return nil, mapErr(err)
	}
	return task, nil
}

// GetTask returns one of the user's tasks.
func (s *Service) GetTask(ctx context.Context, userID, taskID int64) (*model.Task, error) {
	task, err := s.store.GetTaskByID(ctx, userID, taskID)
	return task, mapErr(err)
}

// FindTaskByText returns the user's oldest task with exactly this text.
func (s *Service) FindTaskByText(ctx context.Context, userID int64, text string) (*model.Task, error) {
	task, err := s.store.FindTaskByText(ctx, userID, text)
	return task, mapErr(err)
}

// AddSubTask appends a sub-task to one of the user's tasks.
func (s *Service) AddSubTask(ctx context.Context, userID, taskID int64, text string) (*model.Task, error) {
	if blank(text) {
		return nil, ErrEmptyText
	}
	if _, err := s.store.GetTaskByID(ctx, userID, taskID); err != nil {
		return nil, mapErr(err)
	}
	if _, err := s.store.AddSubTask(ctx, model.SubTask{TaskID: taskID, Text: text}); err != nil {
		return nil, mapErr(err)
	}
	return s.GetTask(ctx, userID, taskID)
}

// DeleteSubTask removes exactly one sub-task by ID.
func (s *Service) DeleteSubTask(ctx context.Context, userID, taskID, subTaskID int64) error {
	if _, err := s.store.GetTaskByID(ctx, userID, taskID); err != nil {
		return mapErr(err)
	}
	return mapErr(s.store.DeleteSubTask(ctx, taskID, subTaskID))
}

// DeleteSubTaskByText removes the first sub-task whose text equals text.
// Other sub-tasks, including ones containing text, are untouched.
func (s *Service) DeleteSubTaskByText(ctx context.Context, userID, taskID int64, text string) error {
	if _, err := s.store.GetTaskByID(ctx, userID, taskID); err != nil {
		return mapErr(err)
	}
	return mapErr(s.store.DeleteSubTaskByText(ctx, taskID, text))
}

// CompleteTask moves a task to the completed list.
func (s *Service) CompleteTask(ctx context.Context, userID, taskID int64) (*model.DoneTask, error) {
	done, err := s.store.CompleteTask(ctx, userID, taskID)
	if err != nil {
		return nil, mapErr(err)
	}
	s.logger.Debug("task completed", "user_id", userID, "task_id", taskID)
	return done, nil
}

// DeleteTask removes a task and its sub-tasks.
func (s *Service) DeleteTask(ctx context.Context, userID, taskID int64) error {
	return mapErr(s.store.DeleteTask(ctx, userID, taskID))
}

// ClearCompleted deletes all of the user's completed tasks.
func (s *Service) ClearCompleted(ctx context.Context, userID int64) (int64, error) {
	n, err := s.store.ClearDoneTasks(ctx, userID)
	if err != nil {
		return 0, err
	}
	s.logger.Debug("completed tasks cleared", "user_id", userID, "count", n)
	return n, nil
}

// Home ensures the user has a page and gathers the home view. A non-nil
// pageID narrows tasks and completed tasks to that page.
func (s *Service) Home(ctx context.Context, user model.User, pageID *int64) (*HomeView, error) {
	if _, created, err := s.store.EnsureDefaultPage(ctx, user.ID); err != nil {
		return nil, err
	} else if created {
		s.logger.Debug("default page created", "user_id", user.ID)
	}

	view := &HomeView{User: user, IsGuest: user.IsGuest()}

	if pageID != nil {
		page, err := s.store.GetPageByID(ctx, user.ID, *pageID)
		if err != nil {
			return nil, mapErr(err)
		}
		view.Page = page
	}

	filter := store.TaskFilter{UserID: user.ID, PageID: pageID}
	var err error
	if view.Pages, err = s.store.GetPages(ctx, user.ID); err != nil {
		return nil, err
	}
	if view.Tasks, err = s.store.GetTasks(ctx, filter); err != nil {
		return nil, err
	}
	if view.DoneTasks, err = s.store.GetDoneTasks(ctx, filter); err != nil {
		return nil, err
	}

	if view.Tasks == nil {
		view.Tasks = []model.Task{}
	}
	if view.DoneTasks == nil {
		view.DoneTasks = []model.DoneTask{}
	}
	return view, nil
}

package web

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/nhle/todoweb/internal/account"
	"github.com/nhle/todoweb/internal/model"
	"github.com/nhle/todoweb/internal/session"
	"github.com/nhle/todoweb/internal/todo"
)

// Flashed messages.
const (
	flashWrongPassword     = "Wrong Password."
	flashNotRegistered     = "This email hadn't been registered."
	flashAlreadyRegistered = "The email had been registered before."
	flashInvalidAccount    = "Please enter a valid email and password."
	flashPageExists        = "Page name already existed."
	flashPageNameEmpty     = "Page name must not be empty."
	flashTaskEmpty         = "Task must not be empty."
	flashTaskNotFound      = "Task not found."
	flashSubTaskNotFound   = "Sub-task not found."
	flashPageNotFound      = "Page not found."
	flashAlreadyCompleted  = "This task has already been completed."
)

type taskForm struct {
	Task   string `form:"task"`
	PageID string `form:"page_id"`
}

// pageID parses the optional page_id field.
func (f taskForm) pageID() (*int64, error) {
	raw := strings.TrimSpace(f.PageID)
	if raw == "" {
		return nil, nil
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return nil, err
	}
	return &id, nil
}

type credentialsForm struct {
	Email    string `form:"email" binding:"required"`
	Password string `form:"password" binding:"required"`
}

type pageForm struct {
	Name string `form:"page_name" binding:"required"`
}

// homeResponse is the JSON rendering of the home view.
type homeResponse struct {
	*todo.HomeView
	TaskPicked *model.Task `json:"task_picked,omitempty"`
	Flashes    []string    `json:"flashes"`
}

// accountResponse is the JSON rendering of the login and register views.
type accountResponse struct {
	User    model.User `json:"user"`
	IsGuest bool       `json:"is_guest"`
	Flashes []string   `json:"flashes"`
}

// healthResponse is the JSON rendering of /healthz.
type healthResponse struct {
	Status string       `json:"status"`
	Sweep  *sweepHealth `json:"sweep,omitempty"`
}

type sweepHealth struct {
	LastSweep *time.Time `json:"last_sweep,omitempty"`
	Pruned    int64      `json:"pruned"`
	Error     string     `json:"error,omitempty"`
}

func (s *Server) handleHealth(c *gin.Context) {
	resp := healthResponse{Status: "ok"}
	if s.sweeps != nil {
		st := s.sweeps.Status()
		resp.Sweep = &sweepHealth{Pruned: st.Pruned}
		if !st.LastSweep.IsZero() {
			resp.Sweep.LastSweep = &st.LastSweep
		}
		if st.Error != nil {
			resp.Sweep.Error = st.Error.Error()
		}
	}

	if err := s.store.Ping(c.Request.Context()); err != nil {
		s.logger.Error("health check failed", "error", err)
		resp.Status = "unavailable"
		c.JSON(http.StatusServiceUnavailable, resp)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (s *Server) handleHome(c *gin.Context) {
	s.renderHome(c, nil)
}

func (s *Server) handleAddTask(c *gin.Context) {
	id := currentIdentity(c)

	var form taskForm
	if err := c.ShouldBind(&form); err != nil {
		s.badRequest(c, err)
		return
	}
	if strings.TrimSpace(form.Task) == "" {
		s.flash(c, flashTaskEmpty)
		s.renderHome(c, nil)
		return
	}
	pageID, err := form.pageID()
	if err != nil {
		s.flash(c, flashPageNotFound)
		s.renderHome(c, nil)
		return
	}

	_, err = s.todos.AddTask(c.Request.Context(), id.User.ID, form.Task, pageID)
	switch {
	case errors.Is(err, todo.ErrNotFound):
		s.flash(c, flashPageNotFound)
	case errors.Is(err, todo.ErrEmptyText):
		s.flash(c, flashTaskEmpty)
	case err != nil:
		s.fail(c, err)
		return
	}
	s.renderHome(c, nil)
}

func (s *Server) handleHomeWithPicked(c *gin.Context) {
	task, ok := s.lookupTask(c)
	if !ok {
		return
	}
	s.renderHome(c, task)
}

func (s *Server) handleAddSubTask(c *gin.Context) {
	id := currentIdentity(c)
	task, ok := s.lookupTask(c)
	if !ok {
		return
	}

	var form taskForm
	if err := c.ShouldBind(&form); err != nil {
		s.badRequest(c, err)
		return
	}
	if strings.TrimSpace(form.Task) == "" {
		s.flash(c, flashTaskEmpty)
		s.redirect(c, "/")
		return
	}

	_, err := s.todos.AddSubTask(c.Request.Context(), id.User.ID, task.ID, form.Task)
	if !s.handleTodoErr(c, err, flashTaskNotFound) {
		return
	}
	s.redirect(c, "/")
}

func (s *Server) handleComplete(c *gin.Context) {
	id := currentIdentity(c)
	task, ok := s.lookupTask(c)
	if !ok {
		return
	}

	_, err := s.todos.CompleteTask(c.Request.Context(), id.User.ID, task.ID)
	if errors.Is(err, todo.ErrConflict) {
		s.flash(c, flashAlreadyCompleted)
		s.redirect(c, "/")
		return
	}
	if !s.handleTodoErr(c, err, flashTaskNotFound) {
		return
	}
	if s.metrics != nil {
		s.metrics.TasksCompleted.Inc()
	}
	s.redirect(c, "/")
}

func (s *Server) handleClear(c *gin.Context) {
	id := currentIdentity(c)
	if _, err := s.todos.ClearCompleted(c.Request.Context(), id.User.ID); err != nil {
		s.fail(c, err)
		return
	}
	s.redirect(c, "/")
}

func (s *Server) handleDeleteTask(c *gin.Context) {
	id := currentIdentity(c)
	task, ok := s.lookupTask(c)
	if !ok {
		return
	}
	err := s.todos.DeleteTask(c.Request.Context(), id.User.ID, task.ID)
	if !s.handleTodoErr(c, err, flashTaskNotFound) {
		return
	}
	s.redirect(c, "/")
}

// handleDeleteSubTask removes the sub-task whose text is the :sub segment.
// A numeric segment with no such text addresses a sub-task ID instead.
// It then follows on to /clear.
func (s *Server) handleDeleteSubTask(c *gin.Context) {
	id := currentIdentity(c)
	task, ok := s.lookupTask(c)
	if !ok {
		return
	}

	ctx := c.Request.Context()
	sub := c.Param("sub")
	err := s.todos.DeleteSubTaskByText(ctx, id.User.ID, task.ID, sub)
	if errors.Is(err, todo.ErrNotFound) {
		if subID, convErr := strconv.ParseInt(sub, 10, 64); convErr == nil {
			err = s.todos.DeleteSubTask(ctx, id.User.ID, task.ID, subID)
		}
	}
	if !s.handleTodoErr(c, err, flashSubTaskNotFound) {
		return
	}
	s.redirect(c, "/clear")
}

func (s *Server) handleAccountView(c *gin.Context) {
	id := currentIdentity(c)
	flashes, err := s.sessions.PopFlashes(c.Request.Context(), id)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, accountResponse{
		User:    id.User,
		IsGuest: id.IsGuest(),
		Flashes: nonNil(flashes),
	})
}

func (s *Server) handleLogin(c *gin.Context) {
	id := currentIdentity(c)

	var form credentialsForm
	if err := c.ShouldBind(&form); err != nil {
		s.flash(c, flashInvalidAccount)
		s.redirect(c, "/login")
		return
	}

	next, err := s.accounts.Authenticate(c.Request.Context(), id, form.Email, form.Password)
	switch {
	case errors.Is(err, session.ErrNotRegistered):
		s.countLoginFailure("not_registered")
		s.flash(c, flashNotRegistered)
		s.redirect(c, "/login")
		return
	case errors.Is(err, session.ErrWrongPassword):
		s.countLoginFailure("wrong_password")
		s.flash(c, flashWrongPassword)
		s.redirect(c, "/login")
		return
	case err != nil:
		s.fail(c, err)
		return
	}

	s.setIdentity(c, next)
	s.redirect(c, "/")
}

func (s *Server) handleRegister(c *gin.Context) {
	id := currentIdentity(c)

	var form credentialsForm
	if err := c.ShouldBind(&form); err != nil {
		s.flash(c, flashInvalidAccount)
		s.redirect(c, "/create")
		return
	}

	wasGuest := id.IsGuest()
	next, err := s.accounts.Register(c.Request.Context(), id, account.Registration{
		Email:    form.Email,
		Password: form.Password,
	})
	switch {
	case errors.Is(err, account.ErrAlreadyRegistered):
		s.flash(c, flashAlreadyRegistered)
		s.redirect(c, "/create")
		return
	case errors.Is(err, account.ErrInvalid):
		s.flash(c, flashInvalidAccount)
		s.redirect(c, "/create")
		return
	case err != nil:
		s.fail(c, err)
		return
	}

	if s.metrics != nil {
		from := "account"
		if wasGuest {
			from = "guest"
		}
		s.metrics.AccountsRegistered.WithLabelValues(from).Inc()
	}
	s.setIdentity(c, next)
	s.redirect(c, "/")
}

func (s *Server) handleLogout(c *gin.Context) {
	if err := s.sessions.Logout(c.Request.Context(), currentIdentity(c)); err != nil {
		s.fail(c, err)
		return
	}
	s.clearSessionCookie(c)
	s.redirect(c, "/")
}

func (s *Server) handleCreatePage(c *gin.Context) {
	if c.Request.Method != http.MethodPost {
		s.redirect(c, "/")
		return
	}
	id := currentIdentity(c)

	var form pageForm
	if err := c.ShouldBind(&form); err != nil {
		s.flash(c, flashPageNameEmpty)
		s.redirect(c, "/")
		return
	}

	_, err := s.todos.CreatePage(c.Request.Context(), id.User.ID, form.Name)
	switch {
	case errors.Is(err, todo.ErrConflict):
		s.flash(c, flashPageExists)
	case errors.Is(err, todo.ErrEmptyText):
		s.flash(c, flashPageNameEmpty)
	case err != nil:
		s.fail(c, err)
		return
	}
	s.redirect(c, "/")
}

// renderHome writes the home view, optionally narrowed by ?page=<id>.
func (s *Server) renderHome(c *gin.Context, picked *model.Task) {
	id := currentIdentity(c)
	ctx := c.Request.Context()

	var pageID *int64
	if raw := c.Query("page"); raw != "" {
		if v, err := strconv.ParseInt(raw, 10, 64); err == nil {
			pageID = &v
		}
	}

	view, err := s.todos.Home(ctx, id.User, pageID)
	if errors.Is(err, todo.ErrNotFound) {
		s.flash(c, flashPageNotFound)
		view, err = s.todos.Home(ctx, id.User, nil)
	}
	if err != nil {
		s.fail(c, err)
		return
	}

	flashes, err := s.sessions.PopFlashes(ctx, id)
	if err != nil {
		s.fail(c, err)
		return
	}

	c.JSON(http.StatusOK, homeResponse{
		HomeView:   view,
		TaskPicked: picked,
		Flashes:    nonNil(flashes),
	})
}

// lookupTask resolves the :task segment by the task's text. A numeric
// segment matching no task text addresses a task ID instead. On a miss it
// flashes and redirects home.
func (s *Server) lookupTask(c *gin.Context) (*model.Task, bool) {
	id := currentIdentity(c)
	ctx := c.Request.Context()
	raw := c.Param("task")

	task, err := s.todos.FindTaskByText(ctx, id.User.ID, raw)
	if errors.Is(err, todo.ErrNotFound) {
		if taskID, convErr := strconv.ParseInt(raw, 10, 64); convErr == nil {
			task, err = s.todos.GetTask(ctx, id.User.ID, taskID)
		}
	}
	if !s.handleTodoErr(c, err, flashTaskNotFound) {
		return nil, false
	}
	return task, true
}

// handleTodoErr reports whether the request may continue. Not-found errors
// flash notFound and redirect home; other errors fail the request.
func (s *Server) handleTodoErr(c *gin.Context, err error, notFound string) bool {
	switch {
	case err == nil:
		return true
	case errors.Is(err, todo.ErrNotFound):
		s.flash(c, notFound)
		s.redirect(c, "/")
	case errors.Is(err, todo.ErrEmptyText):
		s.flash(c, flashTaskEmpty)
		s.redirect(c, "/")
	default:
		s.fail(c, err)
	}
	return false
}

func (s *Server) flash(c *gin.Context, message string) {
	if err := s.sessions.AddFlash(c.Request.Context(), currentIdentity(c), message); err != nil {
		s.logger.Warn("storing flash failed", "error", err)
	}
}

func (s *Server) redirect(c *gin.Context, location string) {
	c.Redirect(http.StatusSeeOther, location)
}

func (s *Server) countLoginFailure(reason string) {
	if s.metrics != nil {
		s.metrics.LoginFailures.WithLabelValues(reason).Inc()
	}
}

// badRequest aborts the request with a 400 for an unparseable body.
func (s *Server) badRequest(c *gin.Context, err error) {
	s.logger.Warn("bad request", "path", c.Request.URL.Path, "error", err)
	c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "malformed form"})
}

// fail aborts the request with a 500 and logs the cause.
func (s *Server) fail(c *gin.Context, err error) {
	s.logger.Error("request failed", "path", c.Request.URL.Path, "error", err)
	c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
}

func nonNil(flashes []string) []string {
	if flashes == nil {
		return []string{}
	}
	return flashes
}

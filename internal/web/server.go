// Package web exposes the to-do service over HTTP.
//
// Every page route first resolves the browser's session, provisioning a
// guest account when there is none, then dispatches to the task, page and
// account services. Views are rendered as JSON; mutating routes answer with
// 303 redirects and report conflicts through flashed messages.
package web

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/nhle/todoweb/internal/account"
	"github.com/nhle/todoweb/internal/janitor"
	"github.com/nhle/todoweb/internal/metrics"
	"github.com/nhle/todoweb/internal/model"
	"github.com/nhle/todoweb/internal/session"
	"github.com/nhle/todoweb/internal/store"
	"github.com/nhle/todoweb/internal/todo"
)

// defaultSessionMaxAge applies when no idle TTL is configured.
const defaultSessionMaxAge = 30 * 24 * time.Hour

// SweepReporter exposes the outcome of the last session sweep.
type SweepReporter interface {
	Status() janitor.Status
}

// Deps are the collaborators a Server is built from.
type Deps struct {
	Store    store.Store
	Todos    *todo.Service
	Accounts *account.Service
	Sessions *session.Manager
	Metrics  *metrics.Metrics
	Gatherer prometheus.Gatherer
	Sweeps   SweepReporter
	Logger   *slog.Logger
	Session  model.SessionConfig
	Auth     model.AuthConfig
}

// Server holds the HTTP handlers.
type Server struct {
	store    store.Store
	todos    *todo.Service
	accounts *account.Service
	sessions *session.Manager
	metrics  *metrics.Metrics
	gatherer prometheus.Gatherer
	sweeps   SweepReporter
	logger   *slog.Logger
	limiter  *ipLimiter
	cookie   model.SessionConfig
	maxAge   time.Duration
	engine   *gin.Engine
}

// NewServer wires the routes.
func NewServer(d Deps) *Server {
	logger := d.Logger
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		store:    d.Store,
		todos:    d.Todos,
		accounts: d.Accounts,
		sessions: d.Sessions,
		metrics:  d.Metrics,
		gatherer: d.Gatherer,
		sweeps:   d.Sweeps,
		logger:   logger.With("component", "web"),
		limiter:  newIPLimiter(d.Auth.LoginRatePerMin),
		cookie:   d.Session,
		maxAge:   defaultSessionMaxAge,
	}
	if d.Session.IdleTTLHours > 0 {
		s.maxAge = time.Duration(d.Session.IdleTTLHours) * time.Hour
	}
	s.engine = s.routes()
	return s
}

// Handler returns the root http.Handler.
func (s *Server) Handler() http.Handler {
	return s.engine
}

func (s *Server) routes() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), s.observe())

	r.GET("/healthz", s.handleHealth)
	if s.gatherer != nil {
		r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{})))
	}

	app := r.Group("/", s.identity())
	{
		app.GET("/", s.handleHome)
		app.POST("/", s.handleAddTask)

		app.GET("/add_small_task/:task", s.handleHomeWithPicked)
		app.POST("/add_small_task/:task", s.handleAddSubTask)

		app.GET("/complete/:task", s.handleComplete)
		app.POST("/complete/:task", s.handleComplete)

		app.GET("/clear", s.handleClear)

		app.GET("/delete/:task", s.handleDeleteTask)
		app.POST("/delete/:task", s.handleDeleteTask)

		app.GET("/delete_small_task/:task/:sub", s.handleDeleteSubTask)
		app.POST("/delete_small_task/:task/:sub", s.handleDeleteSubTask)

		app.GET("/login", s.handleAccountView)
		app.POST("/login", s.limit(), s.handleLogin)

		app.GET("/create", s.handleAccountView)
		app.POST("/create", s.limit(), s.handleRegister)

		app.GET("/logout", s.handleLogout)
		app.POST("/logout", s.handleLogout)

		app.GET("/create_page", s.handleCreatePage)
		app.POST("/create_page", s.handleCreatePage)
	}

	return r
}

package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/gorilla/sessions"
	"github.com/ulule/limiter/v3"
	mgin "github.com/ulule/limiter/v3/drivers/middleware/gin"
	"github.com/ulule/limiter/v3/drivers/store/memory"

	"kanban/internal/auth"
	"kanban/internal/board"
	"kanban/internal/validation"
)

// Pinger reports whether the backing store is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Options wires the server's collaborators.
type Options struct {
	Board    *board.Service
	Auth     *auth.Service
	Sessions sessions.Store
	Health   Pinger
	Logger   *slog.Logger
	// Development disables the stricter security headers.
	Development bool
	// LoginRate throttles POST /login and /register per client ("20-M").
	// Empty disables throttling.
	LoginRate string
	// TrustedProxies lists proxies whose forwarding headers set the client
	// IP. Empty trusts none and uses the connection's remote address.
	TrustedProxies []string
}

// Server provides the HTML and JSON handlers for the Kanban board.
type Server struct {
	engine     *gin.Engine
	board      *board.Service
	auth       *auth.Service
	sessions   sessions.Store
	health     Pinger
	logger     *slog.Logger
	loginLimit gin.HandlerFunc
}

// New constructs the HTTP server with routes and middleware configured.
func New(opts Options) (*Server, error) {
	if opts.Board == nil || opts.Auth == nil || opts.Sessions == nil {
		return nil, errors.New("server: board, auth and sessions are required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		if err := validation.Configure(v); err != nil {
			return nil, err
		}
	}

	loginLimit := func(c *gin.Context) { c.Next() }
	if opts.LoginRate != "" {
		rate, err := limiter.NewRateFromFormatted(opts.LoginRate)
		if err != nil {
			return nil, fmt.Errorf("login rate %q: %w", opts.LoginRate, err)
		}
		loginLimit = mgin.NewMiddleware(limiter.New(memory.NewStore(), rate))
	}

	renderer, err := newRenderer()
	if err != nil {
		return nil, err
	}

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	if err := router.SetTrustedProxies(opts.TrustedProxies); err != nil {
		return nil, fmt.Errorf("trusted proxies: %w", err)
	}
	router.HTMLRender = renderer
	router.Use(gin.Recovery())
	router.Use(gin.LoggerWithWriter(gin.DefaultWriter, "/healthz", "/metrics"))
	router.Use(recordMetrics())
	router.Use(secureHeaders(opts.Development))

	srv := &Server{
		engine:     router,
		board:      opts.Board,
		auth:       opts.Auth,
		sessions:   opts.Sessions,
		health:     opts.Health,
		logger:     logger,
		loginLimit: loginLimit,
	}

	srv.registerRoutes()
	return srv, nil
}

// Engine exposes the underlying Gin engine.
func (s *Server) Engine() *gin.Engine {
	return s.engine
}

// registerRoutes wires all page, API and static handlers together.
func (s *Server) registerRoutes() {
	s.engine.GET("/healthz", s.handleHealth)
	s.engine.GET("/metrics", metricsHandler())

	site := s.engine.Group("/", s.loadIdentity)
	{
		site.GET("/", s.handleIndex)
		site.GET("/register", s.handleRegisterForm)
		site.POST("/register", s.loginLimit, s.handleRegister)
		site.GET("/login", s.handleLoginForm)
		site.POST("/login", s.loginLimit, s.handleLogin)
		site.POST("/logout", s.handleLogout)
	}

	pages := s.engine.Group("/", s.loadIdentity, s.requirePageLogin)
	{
		pages.GET("/projects", s.handleProjectList)
		pages.GET("/projects/create", s.handleProjectForm)
		pages.POST("/projects/create", s.handleProjectCreate)
		pages.GET("/projects/join_by_code", s.handleJoinByCodeForm)
		pages.POST("/projects/join_by_code", s.handleJoinByCode)
		pages.GET("/projects/:id", s.handleProjectDetail)
		pages.GET("/projects/:id/join/:token", s.handleProjectJoin)
		pages.POST("/projects/:id/add_member", s.handleAddMember)
		pages.POST("/projects/:id/remove_member/:userId", s.handleRemoveMember)
		pages.POST("/projects/:id/delete", s.handleProjectDelete)

		pages.GET("/tasks", s.handleTaskList)
		pages.GET("/tasks/create/:projectId", s.handleTaskCreateForm)
		pages.POST("/tasks/create/:projectId", s.handleTaskCreate)
		pages.GET("/tasks/edit/:id", s.handleTaskEditForm)
		pages.POST("/tasks/edit/:id", s.handleTaskEdit)
		pages.POST("/tasks/delete/:id", s.handleTaskDelete)
		pages.POST("/tasks/move/:id/:statusId", s.handleTaskMove)

		pages.GET("/statuses/create/:projectId", s.handleStatusCreateForm)
		pages.POST("/statuses/create/:projectId", s.handleStatusCreate)
		pages.GET("/statuses/edit/:id", s.handleStatusEditForm)
		pages.POST("/statuses/edit/:id", s.handleStatusEdit)
		pages.POST("/statuses/delete/:id", s.handleStatusDelete)
	}

	api := s.engine.Group("/api", s.loadIdentity, s.requireAPILogin)
	{
		api.GET("/me", s.handleMe)

		projects := api.Group("/projects")
		{
			projects.GET("", s.handleListProjects)
			projects.POST("", s.handleCreateProject)
			projects.POST("/join", s.handleJoinProject)
			projects.GET(":id/board", s.handleGetBoard)
			projects.DELETE(":id", s.handleDeleteProject)
			projects.POST(":id/members", s.handleAPIAddMember)
			projects.DELETE(":id/members/:userId", s.handleAPIRemoveMember)
			projects.GET(":id/statuses", s.handleListStatuses)
			projects.POST(":id/statuses", s.handleCreateStatus)
			projects.POST(":id/tasks", s.handleCreateTask)
		}

		api.PATCH("/statuses/:id", s.handleUpdateStatus)
		api.DELETE("/statuses/:id", s.handleDeleteStatus)

		api.GET("/tasks", s.handleListTasks)
		api.GET("/tasks/:id", s.handleGetTask)
		api.PATCH("/tasks/:id", s.handleUpdateTask)
		api.DELETE("/tasks/:id", s.handleDeleteTask)
		api.POST("/tasks/:id/move", s.handleAPIMoveTask)
	}

	s.mountStatic()
}

// handleHealth provides a basic readiness endpoint.
func (s *Server) handleHealth(c *gin.Context) {
	if s.health != nil {
		if err := s.health.Ping(c.Request.Context()); err != nil {
			s.logger.Error("health check failed", slog.String("error", err.Error()))
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func pathID(c *gin.Context, name string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	return id, err == nil && id > 0
}

// parseID converts a path parameter to int64, answering 400 JSON on failure.
func parseID(c *gin.Context, name string) (int64, bool) {
	id, ok := pathID(c, name)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid identifier"})
	}
	return id, ok
}

// pageID is parseID for HTML routes: a malformed id renders not found.
func (s *Server) pageID(c *gin.Context, name string) (int64, bool) {
	id, ok := pathID(c, name)
	if !ok {
		s.notFound(c)
	}
	return id, ok
}

// respondError logs the error and returns a JSON payload.
func (s *Server) respondError(c *gin.Context, status int, err error) {
	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed", slog.String("path", c.FullPath()), slog.String("error", err.Error()))
	}
	c.JSON(status, gin.H{"error": err.Error()})
}

// respondSuccess wraps a payload in a JSON envelope for consistency.
func respondSuccess(c *gin.Context, status int, payload any) {
	if payload == nil {
		c.Status(status)
		return
	}
	c.JSON(status, payload)
}

// errorStatus maps service errors onto HTTP status codes.
func errorStatus(err error) int {
	var verr *board.ValidationError
	switch {
	case errors.As(err, &verr):
		return http.StatusBadRequest
	case errors.Is(err, board.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, board.ErrForbidden), errors.Is(err, board.ErrNotOwner), errors.Is(err, board.ErrCannotRemoveSelf):
		return http.StatusForbidden
	case errors.Is(err, board.ErrInvalidInviteToken), errors.Is(err, board.ErrStatusNotInProject):
		return http.StatusBadRequest
	case errors.Is(err, board.ErrUserNotFound):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

package server

import (
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/sessions"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/unrolled/secure"

	"kanban/internal/auth"
	"kanban/internal/board"
	"kanban/internal/storage/sqlite"
)

const identityKey = "identity"

var (
	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "kanban_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)
	boardEvents = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kanban_board_events_total",
			Help: "Board mutations by kind",
		},
		[]string{"event"},
	)
)

// recordMetrics observes request duration by route pattern.
func recordMetrics() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		httpRequestDuration.WithLabelValues(c.Request.Method, path, strconv.Itoa(c.Writer.Status())).
			Observe(time.Since(start).Seconds())
	}
}

func metricsHandler() gin.HandlerFunc {
	return gin.WrapH(promhttp.Handler())
}

func recordEvent(event string) {
	boardEvents.WithLabelValues(event).Inc()
}

// secureHeaders adds the usual security headers to every response.
func secureHeaders(development bool) gin.HandlerFunc {
	s := secure.New(secure.Options{
		IsDevelopment:         development,
		ContentTypeNosniff:    true,
		FrameDeny:             true,
		BrowserXssFilter:      true,
		ContentSecurityPolicy: "default-src 'self'",
		ReferrerPolicy:        "strict-origin-when-cross-origin",
	})
	return func(c *gin.Context) {
		if err := s.Process(c.Writer, c.Request); err != nil {
			c.AbortWithStatus(http.StatusBadRequest)
			return
		}
		// Process may have written a redirect.
		if status := c.Writer.Status(); status > 300 && status < 399 {
			c.Abort()
		}
	}
}

// session returns the request's cookie session. A cookie that fails to
// decode yields a fresh session.
func (s *Server) session(c *gin.Context) *sessions.Session {
	sess, err := s.sessions.Get(c.Request, auth.SessionName)
	if err != nil {
		s.logger.Debug("discarding unreadable session", slog.String("error", err.Error()))
	}
	return sess
}

func (s *Server) saveSession(c *gin.Context, sess *sessions.Session) {
	if err := sess.Save(c.Request, c.Writer); err != nil {
		s.logger.Error("save session", slog.String("error", err.Error()))
	}
}

// loadIdentity resolves the signed-in user, if any, into the request context.
func (s *Server) loadIdentity(c *gin.Context) {
	sess := s.session(c)
	userID, ok := auth.SessionUserID(sess)
	if !ok {
		c.Next()
		return
	}
	user, err := s.auth.User(c.Request.Context(), userID)
	switch {
	case errors.Is(err, sqlite.ErrNotFound):
		auth.Logout(sess)
		s.saveSession(c, sess)
	case err != nil:
		s.respondError(c, http.StatusInternalServerError, err)
		c.Abort()
		return
	default:
		c.Set(identityKey, board.Identity{UserID: user.ID, Username: user.Username})
	}
	c.Next()
}

func identity(c *gin.Context) (board.Identity, bool) {
	v, ok := c.Get(identityKey)
	if !ok {
		return board.Identity{}, false
	}
	who, ok := v.(board.Identity)
	return who, ok
}

func mustIdentity(c *gin.Context) board.Identity {
	who, _ := identity(c)
	return who
}

func (s *Server) requirePageLogin(c *gin.Context) {
	if _, ok := identity(c); ok {
		c.Next()
		return
	}
	c.Redirect(http.StatusFound, "/login?next="+url.QueryEscape(c.Request.URL.RequestURI()))
	c.Abort()
}

func (s *Server) requireAPILogin(c *gin.Context) {
	if _, ok := identity(c); ok {
		c.Next()
		return
	}
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
}

// flash queues a one-shot message for the next rendered page.
func (s *Server) flash(c *gin.Context, msg string) {
	sess := s.session(c)
	sess.AddFlash(msg)
	s.saveSession(c, sess)
}

func (s *Server) takeFlashes(c *gin.Context) []string {
	sess := s.session(c)
	raw := sess.Flashes()
	if len(raw) == 0 {
		return nil
	}
	s.saveSession(c, sess)
	out := make([]string, 0, len(raw))
	for _, f := range raw {
		if msg, ok := f.(string); ok {
			out = append(out, msg)
		}
	}
	return out
}

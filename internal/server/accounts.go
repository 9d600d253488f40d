package server

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"kanban/internal/auth"
	"kanban/internal/validation"
)

const unreadableForm = "The submitted form could not be read."

type loginForm struct {
	Username string `form:"username"`
	Password string `form:"password"`
	Next     string `form:"next"`
}

// handleIndex shows the landing page, or the project list when signed in.
func (s *Server) handleIndex(c *gin.Context) {
	if _, ok := identity(c); ok {
		c.Redirect(http.StatusFound, "/projects")
		return
	}
	s.html(c, http.StatusOK, "index", gin.H{"title": "Welcome"})
}

func (s *Server) handleRegisterForm(c *gin.Context) {
	s.html(c, http.StatusOK, "register", gin.H{
		"title":  "Register",
		"form":   auth.Registration{},
		"errors": map[string]string{},
	})
}

// handleRegister creates an account and sends the user to the login page.
func (s *Server) handleRegister(c *gin.Context) {
	var form auth.Registration
	if err := c.ShouldBind(&form); err != nil {
		s.html(c, http.StatusBadRequest, "register", gin.H{
			"title":  "Register",
			"form":   auth.Registration{Username: form.Username},
			"errors": map[string]string{"form": unreadableForm},
		})
		return
	}

	_, err := s.auth.Register(c.Request.Context(), form)
	if err != nil {
		fields, ok := validation.Messages(err)
		switch {
		case ok:
		case errors.Is(err, auth.ErrUsernameTaken):
			fields = map[string]string{"username": err.Error()}
		default:
			s.pageError(c, err)
			return
		}
		form.Password, form.PasswordConfirm = "", ""
		s.html(c, http.StatusBadRequest, "register", gin.H{"title": "Register", "form": form, "errors": fields})
		return
	}

	s.flash(c, "Account created. You can log in now.")
	c.Redirect(http.StatusFound, "/login")
}

func (s *Server) handleLoginForm(c *gin.Context) {
	s.html(c, http.StatusOK, "login", gin.H{
		"title":    "Log in",
		"next":     safeNext(c.Query("next")),
		"username": "",
		"error":    "",
	})
}

// handleLogin checks credentials and starts a session.
func (s *Server) handleLogin(c *gin.Context) {
	var form loginForm
	if err := c.ShouldBind(&form); err != nil {
		s.html(c, http.StatusBadRequest, "login", gin.H{
			"title":    "Log in",
			"next":     safeNext(form.Next),
			"username": form.Username,
			"error":    unreadableForm,
		})
		return
	}

	user, err := s.auth.Authenticate(c.Request.Context(), form.Username, form.Password)
	if errors.Is(err, auth.ErrInvalidCredentials) {
		s.logger.Info("login failed", slog.String("username", form.Username), slog.String("ip", c.ClientIP()))
		s.html(c, http.StatusUnauthorized, "login", gin.H{
			"title":    "Log in",
			"next":     safeNext(form.Next),
			"username": form.Username,
			"error":    "Please enter a correct username and password.",
		})
		return
	}
	if err != nil {
		s.pageError(c, err)
		return
	}

	sess := s.session(c)
	auth.Login(sess, user.ID)
	s.saveSession(c, sess)
	c.Redirect(http.StatusFound, safeNext(form.Next))
}

func (s *Server) handleLogout(c *gin.Context) {
	sess := s.session(c)
	auth.Logout(sess)
	s.saveSession(c, sess)
	c.Redirect(http.StatusFound, "/login")
}

// safeNext keeps post-login redirects on this site.
func safeNext(next string) string {
	if !strings.HasPrefix(next, "/") || strings.HasPrefix(next, "//") || strings.HasPrefix(next, "/\\") {
		return "/projects"
	}
	return next
}

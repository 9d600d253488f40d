package server

import (
	"embed"
	"fmt"
	"html/template"
	"io/fs"
	"net/http"
	"path"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/render"

	"kanban/internal/board"
	"kanban/internal/models"
)

//go:embed templates/*.html
var templateFS embed.FS

const deadlineLayout = "2006-01-02T15:04"

// renderer implements gin's render.HTMLRender with one template set per
// page, each parsed together with the shared layout.
type renderer struct {
	pages map[string]*template.Template
}

func newRenderer() (*renderer, error) {
	funcs := template.FuncMap{
		"fmtTime": func(t time.Time) string { return t.Local().Format("2006-01-02 15:04") },
		"hasID": func(ids []int64, id int64) bool {
			for _, v := range ids {
				if v == id {
					return true
				}
			}
			return false
		},
		"ownedBy": func(p models.Project, who board.Identity) bool {
			return p.OwnedBy(who.UserID)
		},
		"memberName": func(b board.Board, id int64) string {
			if m, ok := b.Member(id); ok {
				return m.Username
			}
			return ""
		},
	}

	names, err := fs.Glob(templateFS, "templates/*.html")
	if err != nil {
		return nil, err
	}
	r := &renderer{pages: make(map[string]*template.Template)}
	for _, name := range names {
		base := path.Base(name)
		if base == "layout.html" {
			continue
		}
		t, err := template.New(base).Funcs(funcs).ParseFS(templateFS, "templates/layout.html", name)
		if err != nil {
			return nil, fmt.Errorf("parse template %s: %w", base, err)
		}
		r.pages[strings.TrimSuffix(base, ".html")] = t
	}
	return r, nil
}

// Instance implements render.HTMLRender.
func (r *renderer) Instance(name string, data any) render.Render {
	return render.HTML{Template: r.pages[name], Name: "layout", Data: data}
}

// html renders a page with the common layout fields filled in.
func (s *Server) html(c *gin.Context, status int, page string, data gin.H) {
	if data == nil {
		data = gin.H{}
	}
	if who, ok := identity(c); ok {
		data["user"] = who
	}
	data["flashes"] = s.takeFlashes(c)
	c.HTML(status, page, data)
}

// notFound renders the generic not found page.
func (s *Server) notFound(c *gin.Context) {
	s.html(c, http.StatusNotFound, "not_found", gin.H{"title": "Not found"})
}

// pageError handles a service error on an HTML route: denials redirect to
// the project list, unknown ids render not found, anything else is a 500.
func (s *Server) pageError(c *gin.Context, err error) {
	switch errorStatus(err) {
	case http.StatusForbidden:
		c.Redirect(http.StatusFound, "/projects")
	case http.StatusNotFound:
		s.notFound(c)
	default:
		s.logger.Error("page failed", "path", c.FullPath(), "error", err)
		s.html(c, http.StatusInternalServerError, "error", gin.H{"title": "Server error"})
	}
}

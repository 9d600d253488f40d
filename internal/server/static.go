package server

import (
	"embed"
	"io/fs"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

//go:embed static
var staticFS embed.FS

// mountStatic serves the embedded stylesheet and board script and installs
// the not found handlers.
func (s *Server) mountStatic() {
	assets, err := fs.Sub(staticFS, "static")
	if err != nil {
		s.logger.Warn("static assets unavailable", "error", err)
	} else {
		s.engine.StaticFS("/static", http.FS(assets))
	}

	s.engine.NoRoute(s.loadIdentity, func(c *gin.Context) {
		if strings.HasPrefix(c.Request.URL.Path, "/api/") {
			c.JSON(http.StatusNotFound, gin.H{"error": "endpoint not found"})
			return
		}
		s.notFound(c)
	})
}

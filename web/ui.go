// Package web embeds the local usage dashboard.
package web

import (
	"embed"
	"io/fs"
	"net/http"
	"path"
	"strings"
)

//go:embed dashboard
var dashboardFS embed.FS

// Handler serves the embedded dashboard. Unknown paths outside /api/ fall
// back to index.html.
func Handler() http.Handler {
	sub, err := fs.Sub(dashboardFS, "dashboard")
	if err != nil {
		panic(err)
	}
	files := http.FileServer(http.FS(sub))

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestPath := r.URL.Path

		// Don't serve UI for API routes or health check
		if strings.HasPrefix(requestPath, "/api/") || requestPath == "/health" {
			http.NotFound(w, r)
			return
		}

		name := strings.TrimPrefix(path.Clean(requestPath), "/")
		if name == "" {
			serveIndex(w, sub)
			return
		}
		if info, err := fs.Stat(sub, name); err != nil || info.IsDir() {
			serveIndex(w, sub)
			return
		}
		files.ServeHTTP(w, r)
	})
}

func serveIndex(w http.ResponseWriter, fsys fs.FS) {
	data, err := fs.ReadFile(fsys, "index.html")
	if err != nil {
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

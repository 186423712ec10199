package api

import (
	"errors"
	"io/fs"
	"net/http"
	"os"
	"path"
	"strings"
	"syscall"

	"github.com/yegors/stand-status/pkg/logger"
)

const dashboardIndex = "index.html"

// DashboardHandler serves the optional stand board from a directory. Paths
// without a file extension that do not exist fall back to index.html so the
// board can use client side routes such as /stands/5L.
type DashboardHandler struct {
	files  fs.FS
	logger *logger.Logger
}

// NewDashboardHandler serves the files under dir
func NewDashboardHandler(dir string, log *logger.Logger) *DashboardHandler {
	return newDashboardHandler(os.DirFS(dir), log)
}

func newDashboardHandler(files fs.FS, log *logger.Logger) *DashboardHandler {
	return &DashboardHandler{
		files:  files,
		logger: log.Named("dashboard"),
	}
}

// ServeHTTP resolves the request to a file and serves it uncached
func (h *DashboardHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	name, err := h.resolve(r.URL.Path)
	switch {
	case errors.Is(err, fs.ErrNotExist), errors.Is(err, syscall.ENOTDIR):
		h.logger.Debug("Dashboard file not found", logger.String("path", r.URL.Path))
		http.NotFound(w, r)
		return
	case err != nil:
		h.logger.Error("Failed to resolve dashboard file",
			logger.String("path", r.URL.Path),
			logger.Error(err))
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Cache-Control", "no-cache, no-store, must-revalidate")
	w.Header().Set("Pragma", "no-cache")
	w.Header().Set("Expires", "0")

	http.ServeFileFS(w, r, h.files, name)
}

// resolve maps a URL path onto a regular file inside the dashboard root.
// Cleaning against "/" drops every ".." element before the lookup.
func (h *DashboardHandler) resolve(urlPath string) (string, error) {
	name := strings.TrimPrefix(path.Clean("/"+urlPath), "/")
	if name == "" {
		name = dashboardIndex
	}
	if !fs.ValidPath(name) {
		return "", fs.ErrNotExist
	}

	info, err := fs.Stat(h.files, name)
	switch {
	case err == nil && info.IsDir():
		name = path.Join(name, dashboardIndex)
		info, err = fs.Stat(h.files, name)
	case (errors.Is(err, fs.ErrNotExist) || errors.Is(err, syscall.ENOTDIR)) && path.Ext(name) == "":
		name = dashboardIndex
		info, err = fs.Stat(h.files, name)
	}
	if err != nil {
		return "", err
	}
	if !info.Mode().IsRegular() {
		return "", fs.ErrNotExist
	}
	return name, nil
}

// Package preview serves a project's standalone HTML build over HTTP, the
// local stand-in for the original in-browser blob deploy.
package preview

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/spaceboy92/Aether-IDE/internal/export"
	"github.com/spaceboy92/Aether-IDE/internal/logging"
	"github.com/spaceboy92/Aether-IDE/internal/types"
)

// FileGetter is the read-only store surface the server renders from.
// HasProject guards the public routes: GetFiles seeds unknown projects on
// first read, and a crawler hitting /preview/<garbage> must not plant
// template projects in storage.
type FileGetter interface {
	GetFiles(projectID string) ([]types.FileNode, error)
	HasProject(projectID string) (bool, error)
}

// Server serves live project previews and zip downloads.
type Server struct {
	store FileGetter
	http  *http.Server
}

// NewServer creates a preview server listening on addr.
func NewServer(store FileGetter, addr string) *Server {
	s := &Server{store: store}
	s.http = &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Handler returns the route table. Exposed separately so tests can drive it
// through httptest without binding a port.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/preview/", s.handlePreview)
	mux.HandleFunc("/export/", s.handleExport)
	return mux
}

// ListenAndServe blocks serving requests until the listener fails or the
// server is shut down.
func (s *Server) ListenAndServe() error {
	logging.Preview("Preview server listening on %s", s.http.Addr)
	if err := s.http.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("preview server failed: %w", err)
	}
	return nil
}

// Shutdown drains in-flight requests and stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}

// handlePreview renders GET /preview/<projectID> as the inlined standalone
// document. Store failures surface inside the served page so the preview
// pane always shows something.
func (s *Server) handlePreview(w http.ResponseWriter, r *http.Request) {
	projectID := strings.TrimPrefix(r.URL.Path, "/preview/")
	if projectID == "" || strings.Contains(projectID, "/") {
		http.NotFound(w, r)
		return
	}

	if !s.projectExists(w, r, projectID) {
		return
	}

	files, err := s.store.GetFiles(projectID)
	if err != nil {
		logging.Preview("Preview load failed for %s: %v", projectID, err)
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		fmt.Fprintf(w, "<h1>Preview unavailable</h1><p>%s</p>", err)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	fmt.Fprint(w, export.StandaloneHTML(files))
}

// projectExists rejects ids the store has never seen, writing a 404 or 500
// and returning false when the caller should stop.
func (s *Server) projectExists(w http.ResponseWriter, r *http.Request, projectID string) bool {
	exists, err := s.store.HasProject(projectID)
	if err != nil {
		logging.Preview("Project check failed for %s: %v", projectID, err)
		http.Error(w, "project lookup failed", http.StatusInternalServerError)
		return false
	}
	if !exists {
		http.NotFound(w, r)
		return false
	}
	return true
}

// handleExport serves GET /export/<projectID>.zip as an archive download.
func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	name := strings.TrimPrefix(r.URL.Path, "/export/")
	projectID := strings.TrimSuffix(name, ".zip")
	if projectID == "" || projectID == name || strings.Contains(projectID, "/") {
		http.NotFound(w, r)
		return
	}

	if !s.projectExists(w, r, projectID) {
		return
	}

	files, err := s.store.GetFiles(projectID)
	if err != nil {
		http.Error(w, fmt.Sprintf("failed to load project: %v", err), http.StatusInternalServerError)
		return
	}

	data, err := export.ProjectZip(files)
	if err != nil {
		http.Error(w, fmt.Sprintf("failed to build archive: %v", err), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/zip")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", projectID+".zip"))
	w.Write(data)
}

package web

import (
	"net/http"

	"github.com/JonMunkholm/sheetshare/internal/core"
	"github.com/JonMunkholm/sheetshare/internal/web/views"
)

// handleViewer renders the dataset selector and the selected dataset's
// table. Without a dataset query parameter the newest dataset is shown.
func (s *Server) handleViewer(w http.ResponseWriter, r *http.Request) {
	actor := actorFrom(r)

	datasets, err := s.service.ListDatasets(r.Context(), actor)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	var current *core.DatasetView
	if len(datasets) > 0 {
		id := r.URL.Query().Get("dataset")
		if id == "" {
			id = datasets[0].ID
		}
		dv, err := s.service.ViewDataset(r.Context(), actor, id, parseIntParam(r, "page", 1), searchParam(r))
		if err != nil {
			s.respondError(w, r, err)
			return
		}
		current = &dv
	}

	renderHTML(w, r, http.StatusOK, views.ViewerPage(datasets, current))
}

// handlePublisher renders the publisher page for the caller's session.
func (s *Server) handlePublisher(w http.ResponseWriter, r *http.Request) {
	sess, err := s.service.Session(actorFrom(r))
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	status, preview := sessionView(sess, r)
	renderHTML(w, r, http.StatusOK, views.PublisherPage(status, preview))
}

// handlePublisherPanel renders only the publisher panel. The progress bar
// polls it while a publish runs.
func (s *Server) handlePublisherPanel(w http.ResponseWriter, r *http.Request) {
	sess, err := s.service.Session(actorFrom(r))
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	s.renderPanel(w, r, sess, http.StatusOK)
}

func (s *Server) renderPanel(w http.ResponseWriter, r *http.Request, sess *core.Session, status int) {
	st, preview := sessionView(sess, r)
	renderHTML(w, r, status, views.PublisherPanel(st, preview))
}

// sessionView returns the session status and, when the session holds a
// parsed file, the requested preview page.
func sessionView(sess *core.Session, r *http.Request) (core.SessionStatus, *core.PageView) {
	status := sess.Snapshot()
	view, err := sess.Preview(parseIntParam(r, "page", 1), searchParam(r))
	if err != nil {
		return status, nil
	}
	return status, &view
}

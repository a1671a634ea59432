package web

import (
	"net/http"
	"net/url"

	"github.com/go-chi/chi/v5"

	"github.com/JonMunkholm/sheetshare/internal/core"
	"github.com/JonMunkholm/sheetshare/internal/web/views"
)

type datasetsResponse struct {
	Datasets []core.Dataset `json:"datasets"`
}

// handleListDatasets returns every published dataset, newest first.
func (s *Server) handleListDatasets(w http.ResponseWriter, r *http.Request) {
	datasets, err := s.service.ListDatasets(r.Context(), actorFrom(r))
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	if datasets == nil {
		datasets = []core.Dataset{}
	}
	writeJSON(w, http.StatusOK, datasetsResponse{Datasets: datasets})
}

// handleDatasetRows returns one page of a dataset's rows. HTMX requests get
// the table fragment.
func (s *Server) handleDatasetRows(w http.ResponseWriter, r *http.Request) {
	datasetID := chi.URLParam(r, "datasetID")

	dv, err := s.service.ViewDataset(r.Context(), actorFrom(r), datasetID, parseIntParam(r, "page", 1), searchParam(r))
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	if isHTMX(r) {
		base := "/api/datasets/" + url.PathEscape(datasetID) + "/rows"
		renderHTML(w, r, http.StatusOK, views.Table(dv.Page, base, views.DatasetTableID))
		return
	}
	writeJSON(w, http.StatusOK, dv)
}

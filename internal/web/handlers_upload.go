package web

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/JonMunkholm/sheetshare/internal/core"
	"github.com/JonMunkholm/sheetshare/internal/logging"
	"github.com/JonMunkholm/sheetshare/internal/web/views"
)

// maxFormMemory is the part of a multipart form kept in memory; the rest
// spills to temporary files.
const maxFormMemory = 32 << 20

type uploadResponse struct {
	Status  core.SessionStatus `json:"status"`
	Preview core.PageView      `json:"preview"`
}

type nameRequest struct {
	Name string `json:"name"`
}

// handleUpload parses the uploaded file into the caller's session and
// returns the first preview page.
func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	actor := actorFrom(r)

	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.Upload.MaxFileSize+multipartOverhead)
	if err := r.ParseMultipartForm(maxFormMemory); err != nil {
		if errors.Is(err, http.ErrNotMultipart) || errors.Is(err, http.ErrMissingBoundary) {
			err = errNoFile
		}
		s.respondError(w, r, fmt.Errorf("read upload form: %w", err))
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile("file")
	if err != nil {
		s.respondError(w, r, errNoFile)
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		s.respondError(w, r, fmt.Errorf("read uploaded file: %w", err))
		return
	}

	preview, err := s.service.Upload(r.Context(), actor, header.Filename, data)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	sess, err := s.service.Session(actor)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	if name := strings.TrimSpace(r.FormValue("name")); name != "" {
		if err := sess.SetDatasetName(name); err != nil {
			s.respondError(w, r, err)
			return
		}
	}

	logging.FromContext(r.Context()).Info("file loaded",
		"actor", actor.ID,
		"file", header.Filename,
		"bytes", len(data),
		"records", preview.TotalCount,
	)

	if isHTMX(r) {
		renderHTML(w, r, http.StatusOK, views.PublisherPanel(sess.Snapshot(), &preview))
		return
	}
	writeJSON(w, http.StatusOK, uploadResponse{Status: sess.Snapshot(), Preview: preview})
}

// handleUploadPreview returns a page of the loaded file's preview.
func (s *Server) handleUploadPreview(w http.ResponseWriter, r *http.Request) {
	sess, err := s.service.Session(actorFrom(r))
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	view, err := sess.Preview(parseIntParam(r, "page", 1), searchParam(r))
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	if isHTMX(r) {
		renderHTML(w, r, http.StatusOK, views.Table(view, "/api/uploads/preview", views.PreviewTableID))
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// handleSetDatasetName sets the name the loaded file will be published under.
func (s *Server) handleSetDatasetName(w http.ResponseWriter, r *http.Request) {
	sess, err := s.service.Session(actorFrom(r))
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	name, err := readName(r)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	if err := sess.SetDatasetName(name); err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sess.Snapshot())
}

// handleDiscardUpload drops the loaded file.
func (s *Server) handleDiscardUpload(w http.ResponseWriter, r *http.Request) {
	sess, err := s.service.Session(actorFrom(r))
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	if err := sess.Discard(); err != nil {
		s.respondError(w, r, err)
		return
	}

	if isHTMX(r) {
		s.renderPanel(w, r, sess, http.StatusOK)
		return
	}
	writeJSON(w, http.StatusOK, sess.Snapshot())
}

// handleStartPublish starts publishing the loaded file and returns at once.
// An optional name overrides the dataset name first.
func (s *Server) handleStartPublish(w http.ResponseWriter, r *http.Request) {
	actor := actorFrom(r)
	sess, err := s.service.Session(actor)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	name, err := readName(r)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	if name != "" {
		if err := sess.SetDatasetName(name); err != nil {
			s.respondError(w, r, err)
			return
		}
	}

	progress, err := s.service.StartPublish(r.Context(), actor)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	if isHTMX(r) {
		s.renderPanel(w, r, sess, http.StatusAccepted)
		return
	}
	writeJSON(w, http.StatusAccepted, progress)
}

// handlePublishStatus returns the caller's session status.
func (s *Server) handlePublishStatus(w http.ResponseWriter, r *http.Request) {
	sess, err := s.service.Session(actorFrom(r))
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sess.Snapshot())
}

// handlePublishProgress streams publish progress via Server-Sent Events.
// The stream ends with a complete event carrying the final status.
// Supports resumption via the Last-Event-ID header or lastEventId query
// parameter; the event id is the committed row count.
func (s *Server) handlePublishProgress(w http.ResponseWriter, r *http.Request) {
	sess, err := s.service.Session(actorFrom(r))
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	lastEventID := -1
	lastEventIDStr := r.Header.Get("Last-Event-ID")
	if lastEventIDStr == "" {
		lastEventIDStr = r.URL.Query().Get("lastEventId")
	}
	if n, err := strconv.Atoi(lastEventIDStr); err == nil {
		lastEventID = n
	}

	progressCh := sess.Subscribe()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)

	rc := http.NewResponseController(w)

	for {
		select {
		case progress, ok := <-progressCh:
			if !ok {
				data, _ := json.Marshal(sess.Snapshot())
				fmt.Fprintf(w, "event: complete\ndata: %s\n\n", data)
				rc.Flush()
				return
			}

			// Skip events the client already has. Terminal phases are
			// always sent.
			if progress.Phase == core.PhasePublishing && progress.Current <= lastEventID {
				continue
			}

			data, _ := json.Marshal(progress)
			fmt.Fprintf(w, "id: %d\nevent: progress\ndata: %s\n\n", progress.Current, data)
			if err := rc.Flush(); err != nil {
				logging.FromContext(r.Context()).Warn("progress stream flush failed", "error", err)
				return
			}

		case <-r.Context().Done():
			return
		}
	}
}

// readName reads a dataset name from a JSON body or a form field. A missing
// name is returned as "".
func readName(r *http.Request) (string, error) {
	if strings.Contains(r.Header.Get("Content-Type"), "application/json") {
		var req nameRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
			return "", fmt.Errorf("%w: decode request: %v", core.ErrMalformedInput, err)
		}
		return strings.TrimSpace(req.Name), nil
	}
	return strings.TrimSpace(r.FormValue("name")), nil
}

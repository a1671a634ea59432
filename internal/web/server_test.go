package web

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/JonMunkholm/sheetshare/internal/config"
	"github.com/JonMunkholm/sheetshare/internal/core"
	"github.com/JonMunkholm/sheetshare/internal/store/memstore"
)

const (
	publisherKey = "pub-key"
	viewerKey    = "view-key"
)

const scoresCSV = "name,score\nada,90\nbob,72\ncy,88\ndee,65\neve,99\nfay,70\n"

var testKeys = []config.APIKey{
	{Key: publisherKey, ActorID: "alice", Role: "publisher"},
	{Key: viewerKey, ActorID: "bob", Role: "viewer"},
}

func testConfig() *config.Config {
	return &config.Config{
		Server: config.ServerConfig{RequestTimeout: 5 * time.Second},
		Upload: config.UploadConfig{MaxFileSize: 1 << 20},
		Security: config.SecurityConfig{
			RequireAPIKey: true,
			LocalActor:    "local",
		},
	}
}

func newTestServer(t *testing.T, cfg *config.Config) (*Server, *core.Service) {
	t.Helper()
	svc := core.NewService(memstore.New(0), core.ServiceOptions{CommitLimit: 2, ViewPageSize: 4})
	return NewServer(svc, cfg, testKeys), svc
}

func do(s *Server, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)
	return rec
}

func newRequest(method, target, key string, body *bytes.Buffer) *http.Request {
	var req *http.Request
	if body == nil {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, body)
	}
	if key != "" {
		req.Header.Set("X-API-Key", key)
	}
	return req
}

func uploadRequest(t *testing.T, key, fileName, content string, fields map[string]string) *http.Request {
	t.Helper()

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	for k, v := range fields {
		if err := mw.WriteField(k, v); err != nil {
			t.Fatal(err)
		}
	}
	part, err := mw.CreateFormFile("file", fileName)
	if err != nil {
		t.Fatal(err)
	}
	part.Write([]byte(content))
	if err := mw.Close(); err != nil {
		t.Fatal(err)
	}

	req := newRequest(http.MethodPost, "/api/uploads", key, &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.NewDecoder(rec.Body).Decode(v); err != nil {
		t.Fatalf("decode response %q: %v", rec.Body.String(), err)
	}
}

func waitForPublishes(t *testing.T, svc *core.Service) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := svc.WaitForPublishes(ctx); err != nil {
		t.Fatalf("WaitForPublishes: %v", err)
	}
}

func TestHealthz_NoAuth(t *testing.T) {
	s, _ := newTestServer(t, testConfig())

	rec := do(s, newRequest(http.MethodGet, "/healthz", "", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("got status %d, want %d", rec.Code, http.StatusOK)
	}
}

func TestAuth(t *testing.T) {
	s, _ := newTestServer(t, testConfig())

	tests := []struct {
		name   string
		method string
		path   string
		key    string
		want   int
	}{
		{"missing key", http.MethodGet, "/api/datasets", "", http.StatusUnauthorized},
		{"unknown key", http.MethodGet, "/api/datasets", "nope", http.StatusForbidden},
		{"viewer lists", http.MethodGet, "/api/datasets", viewerKey, http.StatusOK},
		{"publisher lists", http.MethodGet, "/api/datasets", publisherKey, http.StatusOK},
		{"viewer status", http.MethodGet, "/api/publish/status", viewerKey, http.StatusForbidden},
		{"viewer publish", http.MethodPost, "/api/publish", viewerKey, http.StatusForbidden},
		{"viewer admin page", http.MethodGet, "/admin", viewerKey, http.StatusForbidden},
		{"publisher admin page", http.MethodGet, "/admin", publisherKey, http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(s, newRequest(tt.method, tt.path, tt.key, nil))
			if rec.Code != tt.want {
				t.Errorf("got status %d, want %d (body %q)", rec.Code, tt.want, rec.Body.String())
			}
		})
	}
}

func TestAuth_LocalActorWhenKeysOptional(t *testing.T) {
	cfg := testConfig()
	cfg.Security.RequireAPIKey = false
	s, svc := newTestServer(t, cfg)

	rec := do(s, uploadRequest(t, "", "scores.csv", scoresCSV, nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("got status %d, want 200: %s", rec.Code, rec.Body.String())
	}

	sess, err := svc.Session(core.Actor{ID: "local", Role: core.RolePublisher})
	if err != nil {
		t.Fatal(err)
	}
	if got := sess.Phase(); got != core.PhasePreviewing {
		t.Errorf("local session phase = %s, want previewing", got)
	}

	// A configured key still identifies its actor.
	rec = do(s, newRequest(http.MethodGet, "/api/publish/status", viewerKey, nil))
	if rec.Code != http.StatusForbidden {
		t.Errorf("viewer key: got status %d, want 403", rec.Code)
	}
}

func TestUploadPublishBrowse(t *testing.T) {
	s, svc := newTestServer(t, testConfig())

	rec := do(s, uploadRequest(t, publisherKey, "scores.csv", scoresCSV, map[string]string{"name": "Quarterly scores"}))
	if rec.Code != http.StatusOK {
		t.Fatalf("upload: status %d: %s", rec.Code, rec.Body.String())
	}
	var up uploadResponse
	decode(t, rec, &up)
	if up.Preview.TotalCount != 6 || up.Preview.PageSize != core.DefaultPreviewPageSize {
		t.Errorf("preview = %+v", up.Preview)
	}
	if up.Status.Phase != core.PhasePreviewing || up.Status.DatasetName != "Quarterly scores" {
		t.Errorf("status = %+v", up.Status)
	}

	rec = do(s, newRequest(http.MethodGet, "/api/uploads/preview?page=2", publisherKey, nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("preview: status %d", rec.Code)
	}
	var pv core.PageView
	decode(t, rec, &pv)
	if pv.Page != 2 || len(pv.Rows) != 1 {
		t.Errorf("preview page %d with %d rows, want page 2 with 1 row", pv.Page, len(pv.Rows))
	}

	rec = do(s, newRequest(http.MethodPost, "/api/publish", publisherKey, nil))
	if rec.Code != http.StatusAccepted {
		t.Fatalf("publish: status %d: %s", rec.Code, rec.Body.String())
	}
	waitForPublishes(t, svc)

	rec = do(s, newRequest(http.MethodGet, "/api/publish/status", publisherKey, nil))
	var st core.SessionStatus
	decode(t, rec, &st)
	if st.Phase != core.PhaseDone || st.Dataset == nil || st.Dataset.RecordCount != 6 {
		t.Fatalf("status after publish = %+v", st)
	}

	rec = do(s, newRequest(http.MethodGet, "/api/datasets", viewerKey, nil))
	var list datasetsResponse
	decode(t, rec, &list)
	if len(list.Datasets) != 1 || list.Datasets[0].Name != "Quarterly scores" {
		t.Fatalf("datasets = %+v", list.Datasets)
	}
	id := list.Datasets[0].ID

	rec = do(s, newRequest(http.MethodGet, "/api/datasets/"+id+"/rows?page=2", viewerKey, nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("rows: status %d", rec.Code)
	}
	var dv core.DatasetView
	decode(t, rec, &dv)
	if dv.Page.Page != 2 || dv.Page.TotalPages != 2 || len(dv.Page.Rows) != 2 {
		t.Errorf("rows page = %+v", dv.Page)
	}
	if got := strings.Join(dv.Page.Columns, ","); got != "name,score" {
		t.Errorf("columns = %s, want name,score", got)
	}

	rec = do(s, newRequest(http.MethodGet, "/api/datasets/"+id+"/rows?q=EVE", viewerKey, nil))
	decode(t, rec, &dv)
	if dv.Page.FilteredCount != 1 || dv.Page.Rows[0][0] != "eve" {
		t.Errorf("search page = %+v", dv.Page)
	}

	req := newRequest(http.MethodGet, "/api/datasets/"+id+"/rows", viewerKey, nil)
	req.Header.Set("HX-Request", "true")
	rec = do(s, req)
	if !strings.Contains(rec.Body.String(), "<table>") || !strings.Contains(rec.Body.String(), "ada") {
		t.Errorf("fragment missing table: %s", rec.Body.String())
	}

	rec = do(s, newRequest(http.MethodGet, "/", viewerKey, nil))
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "Quarterly scores") {
		t.Errorf("viewer page: status %d body %s", rec.Code, rec.Body.String())
	}
}

func TestUploadErrors(t *testing.T) {
	s, _ := newTestServer(t, testConfig())

	tests := []struct {
		name     string
		req      func() *http.Request
		wantCode int
		wantErr  string
	}{
		{
			name:     "unsupported extension",
			req:      func() *http.Request { return uploadRequest(t, publisherKey, "notes.txt", "a,b\n1,2\n", nil) },
			wantCode: http.StatusUnsupportedMediaType,
			wantErr:  "FILE002",
		},
		{
			name:     "malformed csv",
			req:      func() *http.Request { return uploadRequest(t, publisherKey, "bad.csv", "a,b\n1,2,3\n", nil) },
			wantCode: http.StatusUnprocessableEntity,
			wantErr:  "FILE003",
		},
		{
			name: "no file",
			req: func() *http.Request {
				return newRequest(http.MethodPost, "/api/uploads", publisherKey, bytes.NewBufferString("x=1"))
			},
			wantCode: http.StatusBadRequest,
			wantErr:  "FILE004",
		},
		{
			name: "too large",
			req: func() *http.Request {
				return uploadRequest(t, publisherKey, "big.csv", "a\n"+strings.Repeat("x\n", 1<<21), nil)
			},
			wantCode: http.StatusRequestEntityTooLarge,
			wantErr:  "FILE001",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(s, tt.req())
			if rec.Code != tt.wantCode {
				t.Errorf("got status %d, want %d (body %q)", rec.Code, tt.wantCode, rec.Body.String())
			}
			var resp ErrorResponse
			decode(t, rec, &resp)
			if resp.Code != tt.wantErr {
				t.Errorf("got code %s, want %s", resp.Code, tt.wantErr)
			}
		})
	}
}

func TestPublishWithoutFile(t *testing.T) {
	s, _ := newTestServer(t, testConfig())

	rec := do(s, newRequest(http.MethodPost, "/api/publish", publisherKey, nil))
	if rec.Code != http.StatusConflict {
		t.Errorf("got status %d, want %d", rec.Code, http.StatusConflict)
	}
}

func TestSetNameAndDiscard(t *testing.T) {
	s, _ := newTestServer(t, testConfig())

	if rec := do(s, uploadRequest(t, publisherKey, "scores.csv", scoresCSV, nil)); rec.Code != http.StatusOK {
		t.Fatalf("upload: status %d", rec.Code)
	}

	req := newRequest(http.MethodPut, "/api/uploads/name", publisherKey, bytes.NewBufferString(`{"name":"  Renamed  "}`))
	req.Header.Set("Content-Type", "application/json")
	rec := do(s, req)
	var st core.SessionStatus
	decode(t, rec, &st)
	if st.DatasetName != "Renamed" {
		t.Errorf("dataset name = %q, want Renamed", st.DatasetName)
	}

	rec = do(s, newRequest(http.MethodDelete, "/api/uploads", publisherKey, nil))
	decode(t, rec, &st)
	if st.Phase != core.PhaseIdle || st.RecordCount != 0 {
		t.Errorf("after discard = %+v", st)
	}

	rec = do(s, newRequest(http.MethodGet, "/api/uploads/preview", publisherKey, nil))
	if rec.Code != http.StatusConflict {
		t.Errorf("preview after discard: got status %d, want 409", rec.Code)
	}
}

func TestDatasetRows_NotFound(t *testing.T) {
	s, _ := newTestServer(t, testConfig())

	rec := do(s, newRequest(http.MethodGet, "/api/datasets/missing/rows", viewerKey, nil))
	if rec.Code != http.StatusNotFound {
		t.Errorf("got status %d, want %d", rec.Code, http.StatusNotFound)
	}
}

func TestPublishProgress_Stream(t *testing.T) {
	s, svc := newTestServer(t, testConfig())

	do(s, uploadRequest(t, publisherKey, "scores.csv", scoresCSV, nil))
	do(s, newRequest(http.MethodPost, "/api/publish", publisherKey, nil))
	waitForPublishes(t, svc)

	rec := do(s, newRequest(http.MethodGet, "/api/publish/progress", publisherKey, nil))
	if ct := rec.Header().Get("Content-Type"); ct != "text/event-stream" {
		t.Errorf("content type = %q", ct)
	}
	body := rec.Body.String()
	if !strings.Contains(body, "event: progress") || !strings.Contains(body, "event: complete") {
		t.Errorf("stream = %q", body)
	}
	if !strings.Contains(body, `"phase":"done"`) {
		t.Errorf("stream missing done phase: %q", body)
	}
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{core.ErrUnauthenticated, http.StatusUnauthorized},
		{core.ErrForbidden, http.StatusForbidden},
		{fmt.Errorf("%w: line 3", core.ErrMalformedInput), http.StatusUnprocessableEntity},
		{core.ErrPublishInProgress, http.StatusConflict},
		{core.ErrTooManyPublishes, http.StatusServiceUnavailable},
		{&core.CatalogReadError{Op: "list", Err: errors.New("down")}, http.StatusServiceUnavailable},
		{&core.ChunkCommitError{Committed: 450, Total: 1200, Err: errors.New("down")}, http.StatusBadGateway},
		{fmt.Errorf("wrap: %w", core.ErrDatasetNotFound), http.StatusNotFound},
		{errors.New("boom"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		if got := statusFor(tt.err); got != tt.want {
			t.Errorf("statusFor(%v) = %d, want %d", tt.err, got, tt.want)
		}
	}
}

func TestUploadPreview_SearchKeepsSpaces(t *testing.T) {
	s, _ := newTestServer(t, testConfig())

	rec := do(s, uploadRequest(t, publisherKey, "notes.csv", "note\nx a\nab\n", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("upload: status %d: %s", rec.Code, rec.Body.String())
	}

	rec = do(s, newRequest(http.MethodGet, "/api/uploads/preview?q=%20a", publisherKey, nil))
	var pv core.PageView
	decode(t, rec, &pv)
	if pv.Search != " a" || pv.FilteredCount != 1 || pv.Rows[0][0] != "x a" {
		t.Errorf("search %q matched %d rows: %v", pv.Search, pv.FilteredCount, pv.Rows)
	}
}

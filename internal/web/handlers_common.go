package web

import (
	"net/http"
	"strconv"

	"github.com/a-h/templ"

	"github.com/JonMunkholm/sheetshare/internal/logging"
)

// parseIntParam parses an integer query parameter with a default value.
func parseIntParam(r *http.Request, name string, defaultVal int) int {
	val := r.URL.Query().Get(name)
	if val == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(val)
	if err != nil || i < 1 {
		return defaultVal
	}
	return i
}

// searchParam returns the search term from the q query parameter as given.
// Leading and trailing spaces are part of the substring match.
func searchParam(r *http.Request) string {
	return r.URL.Query().Get("q")
}

// renderHTML writes an HTML component with the given status.
func renderHTML(w http.ResponseWriter, r *http.Request, status int, c templ.Component) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := c.Render(r.Context(), w); err != nil {
		logging.FromContext(r.Context()).Error("render failed", "path", r.URL.Path, "error", err)
	}
}

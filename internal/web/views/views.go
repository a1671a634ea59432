// Package views renders the HTML pages and fragments served by the web
// package as templ components.
//
// Components are written in the .templ files; run `templ generate` after
// editing them.
package views

import (
	"errors"
	"net/url"
	"strconv"

	"github.com/JonMunkholm/sheetshare/internal/core"
)

const (
	// DatasetTableID is the element id of the viewer's table.
	DatasetTableID = "dataset-table"

	// PreviewTableID is the element id of the publisher's preview table.
	PreviewTableID = "preview-table"
)

func itoa(n int) string {
	return strconv.Itoa(n)
}

// pagerURL returns the URL of page for a table served at baseURL.
func pagerURL(baseURL string, page int, search string) string {
	q := url.Values{}
	q.Set("page", strconv.Itoa(page))
	if search != "" {
		q.Set("q", search)
	}
	return baseURL + "?" + q.Encode()
}

func datasetRowsURL(id string) string {
	return "/api/datasets/" + url.PathEscape(id) + "/rows"
}

func datasetLabel(ds core.Dataset) string {
	return ds.Name + " (" + strconv.Itoa(ds.RecordCount) + " rows, " + ds.UploadedAt.Format("2006-01-02 15:04") + ")"
}

func selectedID(current *core.DatasetView) string {
	if current == nil {
		return ""
	}
	return current.Dataset.ID
}

// sessionError maps the stored error text of a session back to its
// user-facing message.
func sessionError(status core.SessionStatus) core.UserMessage {
	return core.MapError(errors.New(status.Error))
}

package core

import (
	"sort"
	"strings"
)

// DefaultPageSize is used when a presenter is built with a page size <= 0.
const DefaultPageSize = 10

// TablePresenter pages and filters an in-memory record list for display.
// It is not safe for concurrent use.
type TablePresenter struct {
	data     []*Record
	filtered []*Record
	columns  []string
	pageSize int
	page     int
	search   string
}

// PageView is a display-ready snapshot of the presenter's current page.
type PageView struct {
	Columns       []string   `json:"columns"`
	Rows          [][]string `json:"rows"`
	Page          int        `json:"page"`
	PageSize      int        `json:"pageSize"`
	TotalPages    int        `json:"totalPages"`
	FilteredCount int        `json:"filteredCount"`
	TotalCount    int        `json:"totalCount"`
	Search        string     `json:"search"`
	Empty         bool       `json:"empty"`
	HasPrev       bool       `json:"hasPrev"`
	HasNext       bool       `json:"hasNext"`
}

// NewTablePresenter builds a presenter over data. When columns is non-empty it
// is used as the display order (minus bookkeeping fields); otherwise the
// first record's fields are shown in alphabetical order.
func NewTablePresenter(data []*Record, columns []string, pageSize int) *TablePresenter {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	p := &TablePresenter{
		data:     data,
		filtered: data,
		columns:  displayColumns(data, columns),
		pageSize: pageSize,
		page:     1,
	}
	return p
}

func displayColumns(data []*Record, columns []string) []string {
	var out []string
	if len(columns) > 0 {
		for _, c := range columns {
			if !IsBookkeepingField(c) {
				out = append(out, c)
			}
		}
		return out
	}
	if len(data) == 0 {
		return nil
	}
	for _, k := range data[0].Keys() {
		if !IsBookkeepingField(k) {
			out = append(out, k)
		}
	}
	sort.Strings(out)
	return out
}

// SetSearch filters the records to those where any value contains term,
// ignoring case, and returns to the first page. An empty term shows all
// records in their original order.
func (p *TablePresenter) SetSearch(term string) {
	p.search = term
	p.page = 1

	if term == "" {
		p.filtered = p.data
		return
	}

	needle := strings.ToLower(term)
	filtered := make([]*Record, 0, len(p.data))
	for _, rec := range p.data {
		if recordContains(rec, needle) {
			filtered = append(filtered, rec)
		}
	}
	p.filtered = filtered
}

func recordContains(rec *Record, needle string) bool {
	for _, v := range rec.Values() {
		if strings.Contains(strings.ToLower(FormatValue(v)), needle) {
			return true
		}
	}
	return false
}

// SetPage moves to page n, clamped into [1, TotalPages()].
func (p *TablePresenter) SetPage(n int) {
	if n < 1 {
		n = 1
	}
	if total := p.TotalPages(); n > total {
		n = total
	}
	p.page = n
}

// Page returns the current 1-based page number.
func (p *TablePresenter) Page() int { return p.page }

// Search returns the current search term.
func (p *TablePresenter) Search() string { return p.search }

// Columns returns the display columns.
func (p *TablePresenter) Columns() []string {
	out := make([]string, len(p.columns))
	copy(out, p.columns)
	return out
}

// FilteredCount returns the number of records matching the search term.
func (p *TablePresenter) FilteredCount() int { return len(p.filtered) }

// TotalPages returns the page count of the filtered records, at least 1.
func (p *TablePresenter) TotalPages() int {
	pages := (len(p.filtered) + p.pageSize - 1) / p.pageSize
	if pages < 1 {
		pages = 1
	}
	return pages
}

// CurrentPage returns the filtered records on the current page.
func (p *TablePresenter) CurrentPage() []*Record {
	start := (p.page - 1) * p.pageSize
	if start >= len(p.filtered) {
		return nil
	}
	end := start + p.pageSize
	if end > len(p.filtered) {
		end = len(p.filtered)
	}
	return p.filtered[start:end]
}

// View renders the current page as display strings.
func (p *TablePresenter) View() PageView {
	page := p.CurrentPage()
	rows := make([][]string, len(page))
	for i, rec := range page {
		row := make([]string, len(p.columns))
		for j, col := range p.columns {
			v, _ := rec.Get(col)
			row[j] = FormatValue(v)
		}
		rows[i] = row
	}

	total := p.TotalPages()
	return PageView{
		Columns:       p.Columns(),
		Rows:          rows,
		Page:          p.page,
		PageSize:      p.pageSize,
		TotalPages:    total,
		FilteredCount: len(p.filtered),
		TotalCount:    len(p.data),
		Search:        p.search,
		Empty:         len(p.data) == 0,
		HasPrev:       p.page > 1,
		HasNext:       p.page < total,
	}
}

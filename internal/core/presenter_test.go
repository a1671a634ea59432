package core

import (
	"fmt"
	"reflect"
	"testing"
)

func numberedRecords(n int) []*Record {
	out := make([]*Record, n)
	for i := range out {
		out[i] = RecordOf("id", fmt.Sprintf("row-%02d", i+1), "datasetId", "ds", "uploadedAt", "2024-01-01T00:00:00.000000Z")
	}
	return out
}

func TestTablePresenter_PaginationClamps(t *testing.T) {
	p := NewTablePresenter(numberedRecords(23), nil, 10)

	if got := p.TotalPages(); got != 3 {
		t.Fatalf("TotalPages = %d, want 3", got)
	}

	tests := []struct {
		set      int
		wantPage int
		wantRows int
	}{
		{1, 1, 10},
		{2, 2, 10},
		{3, 3, 3},
		{5, 3, 3},
		{0, 1, 10},
		{-4, 1, 10},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprintf("page %d", tt.set), func(t *testing.T) {
			p.SetPage(tt.set)
			if got := p.Page(); got != tt.wantPage {
				t.Errorf("page = %d, want %d", got, tt.wantPage)
			}
			if got := len(p.CurrentPage()); got != tt.wantRows {
				t.Errorf("rows = %d, want %d", got, tt.wantRows)
			}
		})
	}
}

func TestTablePresenter_SearchResetsPageAndRestores(t *testing.T) {
	data := numberedRecords(23)
	p := NewTablePresenter(data, nil, 10)
	p.SetPage(3)

	p.SetSearch("ROW-1")
	if p.Page() != 1 {
		t.Errorf("page after search = %d, want 1", p.Page())
	}
	// row-10 .. row-19
	if got := p.FilteredCount(); got != 10 {
		t.Errorf("filtered = %d, want 10", got)
	}

	p.SetSearch("")
	if got := p.FilteredCount(); got != 23 {
		t.Errorf("filtered after clear = %d, want 23", got)
	}
	page := p.CurrentPage()
	for i, rec := range page {
		if rec != data[i] {
			t.Errorf("row %d not in original order", i)
		}
	}
}

func TestTablePresenter_SearchMatchesNonStringValues(t *testing.T) {
	data := []*Record{
		RecordOf("name", "a", "amount", 12.5),
		RecordOf("name", "b", "amount", 3.0),
		RecordOf("name", "c", "flag", true),
	}
	p := NewTablePresenter(data, nil, 10)

	p.SetSearch("12.5")
	if got := p.FilteredCount(); got != 1 {
		t.Errorf("12.5: filtered = %d, want 1", got)
	}
	p.SetSearch("TRUE")
	if got := p.FilteredCount(); got != 1 {
		t.Errorf("TRUE: filtered = %d, want 1", got)
	}
	p.SetSearch("zzz")
	if got := p.TotalPages(); got != 1 {
		t.Errorf("no match: TotalPages = %d, want 1", got)
	}
	view := p.View()
	if view.Empty {
		t.Error("Empty should only be set for an empty data set")
	}
	if len(view.Rows) != 0 {
		t.Errorf("rows = %d, want 0", len(view.Rows))
	}
}

func TestTablePresenter_Columns(t *testing.T) {
	data := []*Record{RecordOf("zeta", 1.0, "datasetId", "x", "alpha", "a", "sourceFile", "f.csv", "mid", nil)}

	t.Run("derived columns sorted without bookkeeping", func(t *testing.T) {
		p := NewTablePresenter(data, nil, 10)
		want := []string{"alpha", "mid", "zeta"}
		if got := p.Columns(); !reflect.DeepEqual(got, want) {
			t.Errorf("got %v, want %v", got, want)
		}
	})

	t.Run("explicit columns keep order", func(t *testing.T) {
		p := NewTablePresenter(data, []string{"zeta", "uploadedAt", "alpha"}, 10)
		want := []string{"zeta", "alpha"}
		if got := p.Columns(); !reflect.DeepEqual(got, want) {
			t.Errorf("got %v, want %v", got, want)
		}
	})
}

func TestTablePresenter_View(t *testing.T) {
	data := []*Record{
		RecordOf("b", 2.0, "a", "x"),
		RecordOf("b", nil, "a", "y"),
		RecordOf("a", "z"),
	}
	p := NewTablePresenter(data, nil, 2)
	view := p.View()

	want := PageView{
		Columns:       []string{"a", "b"},
		Rows:          [][]string{{"x", "2"}, {"y", ""}},
		Page:          1,
		PageSize:      2,
		TotalPages:    2,
		FilteredCount: 3,
		TotalCount:    3,
		HasNext:       true,
	}
	if !reflect.DeepEqual(view, want) {
		t.Errorf("got %+v, want %+v", view, want)
	}

	p.SetPage(2)
	view = p.View()
	if !view.HasPrev || view.HasNext {
		t.Errorf("HasPrev/HasNext = %v/%v, want true/false", view.HasPrev, view.HasNext)
	}
	if !reflect.DeepEqual(view.Rows, [][]string{{"z", ""}}) {
		t.Errorf("rows = %v", view.Rows)
	}
}

func TestTablePresenter_EmptyAndDefaults(t *testing.T) {
	p := NewTablePresenter(nil, nil, 0)

	p.SetPage(4)
	p.SetSearch("x")
	view := p.View()

	if !view.Empty {
		t.Error("Empty = false, want true")
	}
	if view.PageSize != DefaultPageSize {
		t.Errorf("PageSize = %d, want %d", view.PageSize, DefaultPageSize)
	}
	if view.Page != 1 || view.TotalPages != 1 {
		t.Errorf("page %d of %d, want 1 of 1", view.Page, view.TotalPages)
	}
	if len(view.Columns) != 0 || len(view.Rows) != 0 {
		t.Errorf("columns %v rows %v, want none", view.Columns, view.Rows)
	}
}

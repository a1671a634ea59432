package core_test

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"github.com/JonMunkholm/sheetshare/internal/core"
	"github.com/JonMunkholm/sheetshare/internal/store/memstore"
)

func seedDataset(t *testing.T, s core.Store, name, uploadedAt string) string {
	t.Helper()
	id, err := s.CreateOne(context.Background(), core.CollectionDatasets, map[string]any{
		"name":        name,
		"columns":     []any{"b", "a"},
		"uploadedAt":  uploadedAt,
		"recordCount": float64(2),
	})
	if err != nil {
		t.Fatalf("seed: %v", err)
	}
	return id
}

func TestListDatasets_NewestFirst(t *testing.T) {
	store := memstore.New(0)
	seedDataset(t, store, "middle", "2024-02-01T00:00:00.000000Z")
	seedDataset(t, store, "newest", "2024-03-01T00:00:00.000000Z")
	seedDataset(t, store, "oldest", "2023-12-01T00:00:00.000000Z")

	got, err := core.NewDatasetCatalog(store).ListDatasets(context.Background(), viewer)
	if err != nil {
		t.Fatalf("ListDatasets: %v", err)
	}

	var names []string
	for _, ds := range got {
		names = append(names, ds.Name)
	}
	if want := []string{"newest", "middle", "oldest"}; !reflect.DeepEqual(names, want) {
		t.Errorf("order = %v, want %v", names, want)
	}
	if got[0].RecordCount != 2 || !reflect.DeepEqual(got[0].Columns, []string{"b", "a"}) {
		t.Errorf("decoded dataset = %+v", got[0])
	}
	if got[0].UploadedAt.Month() != 3 {
		t.Errorf("UploadedAt = %v", got[0].UploadedAt)
	}
}

func TestFetchRows_OrdersFieldsByDatasetColumns(t *testing.T) {
	store := memstore.New(0)
	id := seedDataset(t, store, "ds", "2024-01-01T00:00:00.000000Z")

	err := store.CommitBatch(context.Background(), core.CollectionRows, []map[string]any{
		{"a": "1", "b": "2", "datasetId": id, "uploadedAt": "x", "sourceFile": "f.csv"},
		{"a": "3", "b": "4", "zz": "extra", "datasetId": id, "uploadedAt": "x"},
		{"a": "other", "datasetId": "someone-else"},
	})
	if err != nil {
		t.Fatalf("CommitBatch: %v", err)
	}

	rows, err := core.NewDatasetCatalog(store).FetchRows(context.Background(), viewer, id)
	if err != nil {
		t.Fatalf("FetchRows: %v", err)
	}
	if len(rows.Records) != 2 {
		t.Fatalf("records = %d, want 2", len(rows.Records))
	}
	if got, want := rows.Records[0].Keys(), []string{"b", "a"}; !reflect.DeepEqual(got, want) {
		t.Errorf("keys = %v, want %v", got, want)
	}
	if got, want := rows.Records[1].Keys(), []string{"b", "a", "zz"}; !reflect.DeepEqual(got, want) {
		t.Errorf("keys = %v, want %v", got, want)
	}
}

func TestCatalog_Errors(t *testing.T) {
	store := newFaultyStore()
	id := seedDataset(t, store, "ds", "2024-01-01T00:00:00.000000Z")
	catalog := core.NewDatasetCatalog(store)
	ctx := context.Background()

	t.Run("unknown dataset", func(t *testing.T) {
		_, err := catalog.FetchRows(ctx, viewer, "nope")
		if !errors.Is(err, core.ErrDatasetNotFound) {
			t.Errorf("got %v, want ErrDatasetNotFound", err)
		}
	})

	t.Run("no actor", func(t *testing.T) {
		if _, err := catalog.ListDatasets(ctx, core.Actor{}); !errors.Is(err, core.ErrUnauthenticated) {
			t.Errorf("ListDatasets: got %v, want ErrUnauthenticated", err)
		}
		if _, err := catalog.FetchRows(ctx, core.Actor{ID: "x"}, id); !errors.Is(err, core.ErrUnauthenticated) {
			t.Errorf("FetchRows: got %v, want ErrUnauthenticated", err)
		}
	})

	t.Run("store failure is a read error", func(t *testing.T) {
		store.failReads = true
		defer func() { store.failReads = false }()

		var readErr *core.CatalogReadError
		if _, err := catalog.ListDatasets(ctx, viewer); !errors.As(err, &readErr) {
			t.Errorf("ListDatasets: got %v, want *CatalogReadError", err)
		}
		if _, err := catalog.FetchRows(ctx, viewer, id); !errors.As(err, &readErr) {
			t.Errorf("FetchRows: got %v, want *CatalogReadError", err)
		}
	})
}

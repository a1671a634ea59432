package core

import (
	"context"
	"fmt"
	"strconv"
)

// DatasetCatalog lists published datasets and loads their rows.
type DatasetCatalog struct {
	store Store
}

// NewDatasetCatalog returns a catalog reading from store.
func NewDatasetCatalog(store Store) *DatasetCatalog {
	return &DatasetCatalog{store: store}
}

// ListDatasets returns every dataset, newest first.
func (c *DatasetCatalog) ListDatasets(ctx context.Context, actor Actor) ([]Dataset, error) {
	if !actor.Authenticated() {
		return nil, ErrUnauthenticated
	}

	docs, err := c.store.ListOrdered(ctx, CollectionDatasets, FieldUploadedAt, Descending)
	if err != nil {
		return nil, &CatalogReadError{Op: "list datasets", Err: err}
	}

	out := make([]Dataset, 0, len(docs))
	for _, d := range docs {
		out = append(out, datasetFromDocument(d))
	}
	return out, nil
}

// GetDataset returns a single dataset's metadata.
func (c *DatasetCatalog) GetDataset(ctx context.Context, actor Actor, datasetID string) (Dataset, error) {
	if !actor.Authenticated() {
		return Dataset{}, ErrUnauthenticated
	}

	docs, err := c.store.QueryBy(ctx, CollectionDatasets, Predicate{Field: DocumentIDField, Value: datasetID})
	if err != nil {
		return Dataset{}, &CatalogReadError{Op: "get dataset", Err: err}
	}
	if len(docs) == 0 {
		return Dataset{}, fmt.Errorf("%w: %s", ErrDatasetNotFound, datasetID)
	}
	return datasetFromDocument(docs[0]), nil
}

// FetchRows returns all rows of a dataset with bookkeeping fields removed.
// Each record's fields follow the dataset's column order; fields not listed
// there come after, alphabetically. Row order is whatever the store returns.
func (c *DatasetCatalog) FetchRows(ctx context.Context, actor Actor, datasetID string) (DatasetRows, error) {
	ds, err := c.GetDataset(ctx, actor, datasetID)
	if err != nil {
		return DatasetRows{}, err
	}

	docs, err := c.store.QueryBy(ctx, CollectionRows, Predicate{Field: FieldDatasetID, Value: datasetID})
	if err != nil {
		return DatasetRows{}, &CatalogReadError{Op: "fetch rows", Err: err}
	}

	records := make([]*Record, len(docs))
	for i, d := range docs {
		records[i] = recordFromDocument(d.Fields, ds.Columns)
	}

	return DatasetRows{
		Dataset: ds,
		Columns: ds.Columns,
		Records: records,
	}, nil
}

// datasetFromDocument decodes a metadata document. Stores may hand back
// columns as []string or []any and counts as any numeric type.
func datasetFromDocument(d Document) Dataset {
	ds := Dataset{
		ID:         d.ID,
		UploadedAt: parseTimestamp(d.Fields[FieldUploadedAt]),
	}
	if v, ok := d.Fields[fieldName].(string); ok {
		ds.Name = v
	}
	if v, ok := d.Fields[fieldPublishedBy].(string); ok {
		ds.PublishedBy = v
	}

	switch cols := d.Fields[fieldColumns].(type) {
	case []string:
		ds.Columns = append([]string(nil), cols...)
	case []any:
		ds.Columns = make([]string, 0, len(cols))
		for _, c := range cols {
			ds.Columns = append(ds.Columns, fmt.Sprint(c))
		}
	}

	switch n := d.Fields[fieldRecordCount].(type) {
	case int:
		ds.RecordCount = n
	case int64:
		ds.RecordCount = int(n)
	case float64:
		ds.RecordCount = int(n)
	case string:
		ds.RecordCount, _ = strconv.Atoi(n)
	}
	return ds
}

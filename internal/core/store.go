package core

import (
	"context"
	"errors"
)

// DocumentIDField is the predicate field that matches a document's own id
// rather than a stored field.
const DocumentIDField = "__name__"

// ErrBatchTooLarge is returned by stores when CommitBatch receives more
// documents than MaxBatchSize.
var ErrBatchTooLarge = errors.New("batch exceeds store maximum")

// Document is a stored document. Field order is not preserved by stores.
type Document struct {
	ID     string
	Fields map[string]any
}

// Predicate selects documents whose field equals Value (compared as strings).
type Predicate struct {
	Field string
	Value string
}

// Direction is a sort direction for ListOrdered.
type Direction string

const (
	Ascending  Direction = "asc"
	Descending Direction = "desc"
)

// Store is the document store contract the core is written against.
//
// CommitBatch must be atomic: every document in docs is persisted, or none
// is. Callers never pass more than MaxBatchSize documents.
type Store interface {
	CreateOne(ctx context.Context, collection string, fields map[string]any) (string, error)
	CommitBatch(ctx context.Context, collection string, docs []map[string]any) error
	QueryBy(ctx context.Context, collection string, pred Predicate) ([]Document, error)
	ListOrdered(ctx context.Context, collection, orderKey string, dir Direction) ([]Document, error)
	MaxBatchSize() int
}

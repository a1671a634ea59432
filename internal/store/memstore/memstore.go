// Package memstore is a process-local document store for development and
// tests. Documents live in memory only and are lost on restart.
package memstore

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/JonMunkholm/sheetshare/internal/core"
)

// DefaultMaxBatchSize matches the batch limit of hosted document stores.
const DefaultMaxBatchSize = 500

// Store keeps documents per collection in insertion order.
type Store struct {
	maxBatch int

	mu          sync.RWMutex
	collections map[string][]core.Document
}

var _ core.Store = (*Store)(nil)

// New returns an empty store. maxBatchSize <= 0 uses DefaultMaxBatchSize.
func New(maxBatchSize int) *Store {
	if maxBatchSize <= 0 {
		maxBatchSize = DefaultMaxBatchSize
	}
	return &Store{
		maxBatch:    maxBatchSize,
		collections: make(map[string][]core.Document),
	}
}

// MaxBatchSize returns the largest batch CommitBatch accepts.
func (s *Store) MaxBatchSize() int {
	return s.maxBatch
}

// CreateOne stores fields under a new id.
func (s *Store) CreateOne(ctx context.Context, collection string, fields map[string]any) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	doc := core.Document{ID: uuid.NewString(), Fields: cloneFields(fields)}

	s.mu.Lock()
	s.collections[collection] = append(s.collections[collection], doc)
	s.mu.Unlock()

	return doc.ID, nil
}

// CommitBatch stores all docs or none.
func (s *Store) CommitBatch(ctx context.Context, collection string, docs []map[string]any) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if len(docs) > s.maxBatch {
		return fmt.Errorf("%w: %d documents, maximum %d", core.ErrBatchTooLarge, len(docs), s.maxBatch)
	}

	batch := make([]core.Document, len(docs))
	for i, fields := range docs {
		batch[i] = core.Document{ID: uuid.NewString(), Fields: cloneFields(fields)}
	}

	s.mu.Lock()
	s.collections[collection] = append(s.collections[collection], batch...)
	s.mu.Unlock()

	return nil
}

// QueryBy returns documents whose field matches pred, in insertion order.
func (s *Store) QueryBy(ctx context.Context, collection string, pred core.Predicate) ([]core.Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []core.Document
	for _, doc := range s.collections[collection] {
		if matches(doc, pred) {
			out = append(out, copyDocument(doc))
		}
	}
	return out, nil
}

// ListOrdered returns every document sorted by the string form of orderKey.
func (s *Store) ListOrdered(ctx context.Context, collection, orderKey string, dir core.Direction) ([]core.Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	docs := s.collections[collection]
	out := make([]core.Document, len(docs))
	for i, doc := range docs {
		out[i] = copyDocument(doc)
	}
	s.mu.RUnlock()

	sort.SliceStable(out, func(i, j int) bool {
		a := core.FormatValue(out[i].Fields[orderKey])
		b := core.FormatValue(out[j].Fields[orderKey])
		if dir == core.Descending {
			return a > b
		}
		return a < b
	})
	return out, nil
}

// Len returns the number of documents in collection.
func (s *Store) Len(collection string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.collections[collection])
}

func matches(doc core.Document, pred core.Predicate) bool {
	if pred.Field == core.DocumentIDField {
		return doc.ID == pred.Value
	}
	v, ok := doc.Fields[pred.Field]
	return ok && core.FormatValue(v) == pred.Value
}

func copyDocument(doc core.Document) core.Document {
	return core.Document{ID: doc.ID, Fields: cloneFields(doc.Fields)}
}

func cloneFields(fields map[string]any) map[string]any {
	out := make(map[string]any, len(fields))
	for k, v := range fields {
		if ss, ok := v.([]string); ok {
			v = append([]string(nil), ss...)
		}
		out[k] = v
	}
	return out
}

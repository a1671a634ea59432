// Package pgstore implements the document store on PostgreSQL. Every
// collection shares one documents table; fields are kept as jsonb.
package pgstore

import (
	"context"
	"embed"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"

	"github.com/JonMunkholm/sheetshare/internal/core"
)

//go:embed migrations/*.sql
var migrations embed.FS

// DefaultMaxBatchSize is the largest CommitBatch accepted by default.
const DefaultMaxBatchSize = 500

// Store is a core.Store backed by a pgx pool.
type Store struct {
	pool     *pgxpool.Pool
	maxBatch int
}

var _ core.Store = (*Store)(nil)

// New returns a store using pool. maxBatchSize <= 0 uses DefaultMaxBatchSize.
func New(pool *pgxpool.Pool, maxBatchSize int) *Store {
	if maxBatchSize <= 0 {
		maxBatchSize = DefaultMaxBatchSize
	}
	return &Store{pool: pool, maxBatch: maxBatchSize}
}

// Migrate applies the embedded schema migrations.
func Migrate(pool *pgxpool.Pool) error {
	db := stdlib.OpenDBFromPool(pool)
	defer db.Close()

	goose.SetBaseFS(migrations)
	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("set goose dialect: %w", err)
	}
	if err := goose.Up(db, "migrations"); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}
	return nil
}

// MaxBatchSize returns the largest batch CommitBatch accepts.
func (s *Store) MaxBatchSize() int {
	return s.maxBatch
}

// CreateOne inserts a single document and returns its id.
func (s *Store) CreateOne(ctx context.Context, collection string, fields map[string]any) (string, error) {
	data, err := json.Marshal(fields)
	if err != nil {
		return "", fmt.Errorf("encode document: %w", err)
	}

	id := uuid.New()
	_, err = s.pool.Exec(ctx,
		`INSERT INTO documents (id, collection, data) VALUES ($1, $2, $3)`,
		id, collection, data,
	)
	if err != nil {
		return "", fmt.Errorf("insert document: %w", err)
	}
	return id.String(), nil
}

// CommitBatch copies docs in one transaction.
func (s *Store) CommitBatch(ctx context.Context, collection string, docs []map[string]any) error {
	if len(docs) > s.maxBatch {
		return fmt.Errorf("%w: %d documents, maximum %d", core.ErrBatchTooLarge, len(docs), s.maxBatch)
	}
	if len(docs) == 0 {
		return nil
	}

	rows := make([][]any, len(docs))
	for i, fields := range docs {
		data, err := json.Marshal(fields)
		if err != nil {
			return fmt.Errorf("encode document %d: %w", i, err)
		}
		rows[i] = []any{uuid.New(), collection, data}
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.CopyFrom(ctx,
		pgx.Identifier{"documents"},
		[]string{"id", "collection", "data"},
		pgx.CopyFromRows(rows),
	); err != nil {
		return fmt.Errorf("copy documents: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// QueryBy returns documents whose field equals pred.Value, in insertion order.
func (s *Store) QueryBy(ctx context.Context, collection string, pred core.Predicate) ([]core.Document, error) {
	if pred.Field == core.DocumentIDField {
		id, err := uuid.Parse(pred.Value)
		if err != nil {
			return nil, nil
		}
		return s.query(ctx,
			`SELECT id, data FROM documents WHERE collection = $1 AND id = $2`,
			collection, id,
		)
	}

	return s.query(ctx,
		`SELECT id, data FROM documents WHERE collection = $1 AND data->>$2 = $3 ORDER BY seq`,
		collection, pred.Field, pred.Value,
	)
}

// ListOrdered returns every document in collection sorted by the text value
// of orderKey.
func (s *Store) ListOrdered(ctx context.Context, collection, orderKey string, dir core.Direction) ([]core.Document, error) {
	order := "ASC"
	if dir == core.Descending {
		order = "DESC"
	}
	return s.query(ctx,
		`SELECT id, data FROM documents WHERE collection = $1 ORDER BY data->>$2 `+order+`, seq`,
		collection, orderKey,
	)
}

func (s *Store) query(ctx context.Context, sql string, args ...any) ([]core.Document, error) {
	rows, err := s.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("query documents: %w", err)
	}

	docs, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (core.Document, error) {
		var (
			id   uuid.UUID
			data []byte
		)
		if err := row.Scan(&id, &data); err != nil {
			return core.Document{}, err
		}
		fields := map[string]any{}
		if err := json.Unmarshal(data, &fields); err != nil {
			return core.Document{}, fmt.Errorf("decode document %s: %w", id, err)
		}
		return core.Document{ID: id.String(), Fields: fields}, nil
	})
	if err != nil {
		return nil, fmt.Errorf("read documents: %w", err)
	}
	return docs, nil
}

// Ping checks the connection.
func (s *Store) Ping(ctx context.Context) error {
	if s.pool == nil {
		return errors.New("pgstore: no pool")
	}
	return s.pool.Ping(ctx)
}

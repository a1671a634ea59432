package core

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/JonMunkholm/sheetshare/internal/logging"
)

// DefaultCommitLimit is the number of rows committed per batch. It stays
// below the store's atomic batch maximum.
const DefaultCommitLimit = 450

// UntitledDataset is the name used when a publish is given a blank name and
// no file name is known to fall back to.
const UntitledDataset = "Untitled dataset"

// BatchPublisher writes a dataset's metadata and then its rows in
// sequential, individually atomic chunks.
type BatchPublisher struct {
	store       Store
	commitLimit int
	now         func() time.Time
}

// NewBatchPublisher returns a publisher over store. A commitLimit <= 0 uses
// DefaultCommitLimit; a limit at or above the store's maximum batch size is
// lowered to one below it.
func NewBatchPublisher(store Store, commitLimit int) *BatchPublisher {
	if commitLimit <= 0 {
		commitLimit = DefaultCommitLimit
	}
	if storeMax := store.MaxBatchSize(); storeMax > 1 && commitLimit >= storeMax {
		slog.Warn("commit limit lowered below store batch maximum",
			"requested", commitLimit,
			"store_max", storeMax,
		)
		commitLimit = storeMax - 1
	}
	return &BatchPublisher{
		store:       store,
		commitLimit: commitLimit,
		now:         time.Now,
	}
}

// CommitLimit returns the effective chunk size.
func (p *BatchPublisher) CommitLimit() int {
	return p.commitLimit
}

// Publish creates the dataset metadata document, then commits records in
// chunks of at most CommitLimit rows, calling onProgress with the running
// committed total after each confirmed chunk.
//
// A metadata failure returns *CatalogWriteError with nothing written. A chunk
// failure stops the publish and returns *ChunkCommitError; chunks committed
// before it stay in the store.
func (p *BatchPublisher) Publish(ctx context.Context, actor Actor, records []*Record, datasetName string, onProgress ProgressFunc) (Dataset, error) {
	if !actor.Authenticated() {
		return Dataset{}, ErrUnauthenticated
	}
	if !actor.CanPublish() {
		return Dataset{}, ErrForbidden
	}
	if len(records) == 0 {
		return Dataset{}, ErrNoRecords
	}

	name := strings.TrimSpace(datasetName)
	if name == "" {
		name = UntitledDataset
	}

	total := len(records)
	uploadedAt := p.now().UTC()
	ds := Dataset{
		Name:        name,
		Columns:     records[0].Keys(),
		UploadedAt:  uploadedAt,
		RecordCount: total,
		PublishedBy: actor.ID,
	}

	id, err := p.store.CreateOne(ctx, CollectionDatasets, map[string]any{
		fieldName:        ds.Name,
		fieldColumns:     ds.Columns,
		FieldUploadedAt:  formatTimestamp(uploadedAt),
		fieldRecordCount: ds.RecordCount,
		fieldPublishedBy: ds.PublishedBy,
	})
	if err != nil {
		return Dataset{}, &CatalogWriteError{Err: err}
	}
	ds.ID = id

	logger := logging.WithFields(ctx,
		"dataset_id", id,
		"dataset", name,
		"records", total,
		"commit_limit", p.commitLimit,
	)
	logger.Info("publish started")

	committed := 0
	for chunk, start := 1, 0; start < total; chunk, start = chunk+1, start+p.commitLimit {
		end := start + p.commitLimit
		if end > total {
			end = total
		}

		docs := make([]map[string]any, 0, end-start)
		for _, rec := range records[start:end] {
			fields := rec.Map()
			fields[FieldDatasetID] = id
			fields[FieldUploadedAt] = formatTimestamp(p.now())
			docs = append(docs, fields)
		}

		if err := p.store.CommitBatch(ctx, CollectionRows, docs); err != nil {
			logger.Error("chunk commit failed",
				"chunk", chunk,
				"committed", committed,
				"error", err,
			)
			return ds, &ChunkCommitError{
				DatasetID: id,
				Committed: committed,
				Total:     total,
				Err:       err,
			}
		}

		committed = end
		logger.Debug("chunk committed", "chunk", chunk, "committed", committed)
		if onProgress != nil {
			onProgress(committed, total)
		}
	}

	logger.Info("publish completed", "committed", committed)
	return ds, nil
}

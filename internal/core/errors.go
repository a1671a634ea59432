package core

import (
	"errors"
	"fmt"
)

var (
	// ErrUnsupportedFormat is returned when a file's extension is not .csv, .xlsx or .xls.
	ErrUnsupportedFormat = errors.New("unsupported file type: upload a CSV or Excel file")

	// ErrMalformedInput is returned when a file cannot be decoded.
	ErrMalformedInput = errors.New("malformed input")

	// ErrFileTooLarge is returned when an upload exceeds the configured size.
	ErrFileTooLarge = errors.New("file too large")

	// ErrNoRecords is returned when publishing an empty record set.
	ErrNoRecords = errors.New("no records to publish")

	// ErrPublishInProgress is returned when a session already has a publish running.
	ErrPublishInProgress = errors.New("publish already in progress")

	// ErrInvalidTransition is returned when a workflow step is not allowed in the current phase.
	ErrInvalidTransition = errors.New("invalid workflow transition")

	// ErrDatasetNotFound is returned when a dataset id does not exist.
	ErrDatasetNotFound = errors.New("dataset not found")

	// ErrUnauthenticated is returned when no actor is signed in.
	ErrUnauthenticated = errors.New("not authenticated")

	// ErrForbidden is returned when the actor's role does not allow the operation.
	ErrForbidden = errors.New("forbidden: publisher role required")
)

// CatalogWriteError reports that the dataset metadata document could not be
// created. No rows were written.
type CatalogWriteError struct {
	Err error
}

func (e *CatalogWriteError) Error() string {
	return fmt.Sprintf("catalog write failed: %v", e.Err)
}

func (e *CatalogWriteError) Unwrap() error {
	return e.Err
}

// ChunkCommitError reports that a chunk failed after the dataset metadata was
// created. Committed rows stay in the store.
type ChunkCommitError struct {
	DatasetID string
	Committed int
	Total     int
	Err       error
}

func (e *ChunkCommitError) Error() string {
	return fmt.Sprintf("chunk commit failed after %d of %d rows: %v", e.Committed, e.Total, e.Err)
}

func (e *ChunkCommitError) Unwrap() error {
	return e.Err
}

// CatalogReadError reports a failed catalog query. It is safe to retry.
type CatalogReadError struct {
	Op  string
	Err error
}

func (e *CatalogReadError) Error() string {
	return fmt.Sprintf("catalog read failed (%s): %v", e.Op, e.Err)
}

func (e *CatalogReadError) Unwrap() error {
	return e.Err
}

// malformed wraps ErrMalformedInput with detail.
func malformed(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrMalformedInput, fmt.Sprintf(format, args...))
}

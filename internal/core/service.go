package core

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// ServiceOptions tunes a Service. Zero values pick the package defaults.
type ServiceOptions struct {
	CommitLimit            int
	MaxFileSize            int64
	MaxConcurrentPublishes int
	MaxWaitTime            time.Duration
	ViewPageSize           int
	PreviewPageSize        int
}

// Service wires the parser, publisher and catalog over one store and keeps a
// session per publisher.
type Service struct {
	store     Store
	parser    FileParser
	publisher *BatchPublisher
	catalog   *DatasetCatalog
	limiter   *PublishLimiter
	opts      ServiceOptions

	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewService creates a Service over store.
func NewService(store Store, opts ServiceOptions) *Service {
	if opts.ViewPageSize <= 0 {
		opts.ViewPageSize = DefaultPageSize
	}
	if opts.PreviewPageSize <= 0 {
		opts.PreviewPageSize = DefaultPreviewPageSize
	}

	return &Service{
		store:     store,
		parser:    FileParser{MaxFileSize: opts.MaxFileSize},
		publisher: NewBatchPublisher(store, opts.CommitLimit),
		catalog:   NewDatasetCatalog(store),
		limiter:   NewPublishLimiter(opts.MaxConcurrentPublishes, opts.MaxWaitTime),
		opts:      opts,
		sessions:  make(map[string]*Session),
	}
}

// Catalog returns the dataset catalog.
func (s *Service) Catalog() *DatasetCatalog { return s.catalog }

// Limiter returns the publish limiter.
func (s *Service) Limiter() *PublishLimiter { return s.limiter }

// Session returns actor's session, creating it on first use.
func (s *Service) Session(actor Actor) (*Session, error) {
	if !actor.Authenticated() {
		return nil, ErrUnauthenticated
	}
	if !actor.CanPublish() {
		return nil, ErrForbidden
	}

	s.mu.RLock()
	sess, ok := s.sessions[actor.ID]
	s.mu.RUnlock()
	if ok {
		return sess, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if sess, ok := s.sessions[actor.ID]; ok {
		return sess, nil
	}
	sess = NewSession(actor, s.parser, s.publisher, s.opts.PreviewPageSize)
	s.sessions[actor.ID] = sess
	return sess, nil
}

// Upload parses a file into actor's session and returns the first preview page.
func (s *Service) Upload(ctx context.Context, actor Actor, fileName string, data []byte) (PageView, error) {
	sess, err := s.Session(actor)
	if err != nil {
		return PageView{}, err
	}
	if err := sess.Load(fileName, data); err != nil {
		return PageView{}, err
	}
	return sess.Preview(1, "")
}

// StartPublish begins publishing actor's loaded file in the background and
// returns the initial progress. The publish runs on a context detached from
// ctx's cancellation; use the session's Subscribe or Snapshot to follow it.
//
// Returns ErrTooManyPublishes if no publish slot frees up in time.
func (s *Service) StartPublish(ctx context.Context, actor Actor) (Progress, error) {
	sess, err := s.Session(actor)
	if err != nil {
		return Progress{}, err
	}

	if err := s.limiter.Acquire(ctx); err != nil {
		return Progress{}, err
	}

	records, name, err := sess.beginPublish()
	if err != nil {
		s.limiter.Release()
		return Progress{}, err
	}

	publishCtx := context.WithoutCancel(ctx)
	go func() {
		defer s.limiter.Release()
		defer func() {
			if r := recover(); r != nil {
				slog.Error("panic in publish",
					"actor", actor.ID,
					"dataset", name,
					"panic", r,
				)
				sess.finishPublish(Dataset{}, fmt.Errorf("internal error: %v", r))
			}
		}()
		sess.runPublish(publishCtx, records, name)
	}()

	return sess.Snapshot().Progress, nil
}

// WaitForPublishes blocks until no publish is running or ctx ends.
func (s *Service) WaitForPublishes(ctx context.Context) error {
	return s.limiter.WaitForDrain(ctx)
}

// ListDatasets returns all datasets, newest first.
func (s *Service) ListDatasets(ctx context.Context, actor Actor) ([]Dataset, error) {
	return s.catalog.ListDatasets(ctx, actor)
}

// DatasetView is one page of a published dataset.
type DatasetView struct {
	Dataset Dataset  `json:"dataset"`
	Page    PageView `json:"page"`
}

// ViewDataset loads a dataset's rows and returns the requested page after
// applying search.
func (s *Service) ViewDataset(ctx context.Context, actor Actor, datasetID string, page int, search string) (DatasetView, error) {
	rows, err := s.catalog.FetchRows(ctx, actor, datasetID)
	if err != nil {
		return DatasetView{}, err
	}

	p := NewTablePresenter(rows.Records, rows.Columns, s.opts.ViewPageSize)
	if search != "" {
		p.SetSearch(search)
	}
	p.SetPage(page)

	return DatasetView{Dataset: rows.Dataset, Page: p.View()}, nil
}

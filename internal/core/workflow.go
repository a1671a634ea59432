package core

// workflow.go holds the per-publisher upload and publish state machine:
//
//	idle -> parsing -> previewing -> publishing -> done | failed
//
// A failed parse returns to idle with the error kept for display. A failed
// publish may be retried; the retry writes a new dataset from chunk 1.
// Leaving the publishing phase is what re-enables the publish action.

import (
	"context"
	"fmt"
	"strings"
	"sync"
)

// DefaultPreviewPageSize is the page size of the pre-publish preview.
const DefaultPreviewPageSize = 5

// SessionStatus is a read-only snapshot of a session.
type SessionStatus struct {
	Phase       Phase    `json:"phase"`
	FileName    string   `json:"fileName,omitempty"`
	DatasetName string   `json:"datasetName,omitempty"`
	RecordCount int      `json:"recordCount"`
	Progress    Progress `json:"progress"`
	Error       string   `json:"error,omitempty"`
	Dataset     *Dataset `json:"dataset,omitempty"`
}

// Session is one publisher's working state: the parsed file, its preview,
// and the publish in flight. It is safe for concurrent use.
type Session struct {
	actor           Actor
	parser          FileParser
	publisher       *BatchPublisher
	previewPageSize int

	mu          sync.Mutex
	phase       Phase
	fileName    string
	datasetName string
	records     []*Record
	preview     *TablePresenter
	lastErr     error
	progress    Progress
	published   *Dataset
	listeners   []chan Progress
	done        chan struct{}
}

// NewSession returns an idle session for actor.
func NewSession(actor Actor, parser FileParser, publisher *BatchPublisher, previewPageSize int) *Session {
	if previewPageSize <= 0 {
		previewPageSize = DefaultPreviewPageSize
	}
	done := make(chan struct{})
	close(done)
	return &Session{
		actor:           actor,
		parser:          parser,
		publisher:       publisher,
		previewPageSize: previewPageSize,
		phase:           PhaseIdle,
		progress:        Progress{Phase: PhaseIdle},
		done:            done,
	}
}

// Phase returns the current phase.
func (s *Session) Phase() Phase {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.phase
}

// Load parses a file and moves to previewing. Any earlier file or result is
// replaced. On a parse error the session returns to idle and keeps the error.
func (s *Session) Load(fileName string, data []byte) error {
	s.mu.Lock()
	switch s.phase {
	case PhaseIdle, PhasePreviewing, PhaseDone, PhaseFailed:
	case PhasePublishing:
		s.mu.Unlock()
		return ErrPublishInProgress
	default:
		s.mu.Unlock()
		return fmt.Errorf("%w: load while %s", ErrInvalidTransition, s.phase)
	}
	s.phase = PhaseParsing
	s.progress = Progress{Phase: PhaseParsing}
	s.mu.Unlock()

	records, err := s.parser.Parse(data, fileName)

	s.mu.Lock()
	defer s.mu.Unlock()

	s.published = nil
	if err != nil {
		s.reset()
		s.lastErr = err
		return err
	}

	s.phase = PhasePreviewing
	s.fileName = fileName
	s.datasetName = DefaultDatasetName(fileName)
	s.records = records
	var columns []string
	if len(records) > 0 {
		columns = records[0].Keys()
	}
	s.preview = NewTablePresenter(records, columns, s.previewPageSize)
	s.lastErr = nil
	s.progress = Progress{Phase: PhasePreviewing, Total: len(records)}
	return nil
}

// reset clears the loaded file. Callers hold s.mu.
func (s *Session) reset() {
	s.phase = PhaseIdle
	s.fileName = ""
	s.datasetName = ""
	s.records = nil
	s.preview = nil
	s.lastErr = nil
	s.progress = Progress{Phase: PhaseIdle}
}

// SetDatasetName sets the name the next publish will use.
func (s *Session) SetDatasetName(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.requirePreview("rename"); err != nil {
		return err
	}
	s.datasetName = name
	return nil
}

// Preview moves the preview to page and search and returns the page. A
// page <= 0 keeps the current page; a changed search returns to page 1.
func (s *Session) Preview(page int, search string) (PageView, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.requirePreview("preview"); err != nil {
		return PageView{}, err
	}
	if search != s.preview.Search() {
		s.preview.SetSearch(search)
	}
	if page > 0 {
		s.preview.SetPage(page)
	}
	return s.preview.View(), nil
}

func (s *Session) requirePreview(op string) error {
	switch s.phase {
	case PhasePreviewing, PhaseFailed:
		if s.preview == nil {
			return fmt.Errorf("%w: %s with no file loaded", ErrInvalidTransition, op)
		}
		return nil
	case PhasePublishing:
		return ErrPublishInProgress
	default:
		return fmt.Errorf("%w: %s while %s", ErrInvalidTransition, op, s.phase)
	}
}

// Discard drops the loaded file and returns to idle.
func (s *Session) Discard() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch s.phase {
	case PhasePublishing:
		return ErrPublishInProgress
	case PhaseParsing:
		return fmt.Errorf("%w: discard while parsing", ErrInvalidTransition)
	}
	s.reset()
	s.published = nil
	return nil
}

// Publish writes the loaded records as a new dataset and blocks until the
// publish finishes.
func (s *Session) Publish(ctx context.Context) (Dataset, error) {
	records, name, err := s.beginPublish()
	if err != nil {
		return Dataset{}, err
	}
	return s.runPublish(ctx, records, name)
}

// beginPublish moves to publishing and returns what to write.
func (s *Session) beginPublish() ([]*Record, string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch s.phase {
	case PhasePreviewing, PhaseFailed:
	case PhasePublishing:
		return nil, "", ErrPublishInProgress
	default:
		return nil, "", fmt.Errorf("%w: publish while %s", ErrInvalidTransition, s.phase)
	}
	if s.preview == nil {
		return nil, "", fmt.Errorf("%w: publish with no file loaded", ErrInvalidTransition)
	}
	if len(s.records) == 0 {
		return nil, "", ErrNoRecords
	}

	s.phase = PhasePublishing
	s.lastErr = nil
	s.published = nil
	s.done = make(chan struct{})
	s.progress = Progress{Phase: PhasePublishing, Total: len(s.records)}
	s.notifyProgress()

	name := strings.TrimSpace(s.datasetName)
	if name == "" {
		name = s.fileName
	}
	return s.records, name, nil
}

// runPublish performs the publish started by beginPublish.
func (s *Session) runPublish(ctx context.Context, records []*Record, name string) (Dataset, error) {
	ds, err := s.publisher.Publish(ctx, s.actor, records, name, func(current, total int) {
		s.mu.Lock()
		s.progress.Current = current
		s.progress.Total = total
		s.notifyProgress()
		s.mu.Unlock()
	})
	s.finishPublish(ds, err)
	return ds, err
}

// finishPublish records the outcome and releases subscribers. It is a no-op
// unless a publish is running.
func (s *Session) finishPublish(ds Dataset, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.phase != PhasePublishing {
		return
	}

	s.progress.DatasetID = ds.ID
	if err != nil {
		s.phase = PhaseFailed
		s.lastErr = err
		s.progress.Phase = PhaseFailed
		s.progress.Error = err.Error()
	} else {
		s.phase = PhaseDone
		s.published = &ds
		s.progress.Phase = PhaseDone
		s.progress.Current = ds.RecordCount
	}

	s.notifyProgress()
	s.closeListeners()
	close(s.done)
}

// Done returns a channel closed when no publish is running.
func (s *Session) Done() <-chan struct{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.done
}

// Subscribe returns a channel that receives progress updates, starting with
// the current state. It is closed when the running publish finishes, or at
// once if none is running.
func (s *Session) Subscribe() <-chan Progress {
	s.mu.Lock()
	defer s.mu.Unlock()

	ch := make(chan Progress, 10)
	ch <- s.progress
	if s.phase != PhasePublishing {
		close(ch)
		return ch
	}
	s.listeners = append(s.listeners, ch)
	return ch
}

// Snapshot returns the current status.
func (s *Session) Snapshot() SessionStatus {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := SessionStatus{
		Phase:       s.phase,
		FileName:    s.fileName,
		DatasetName: s.datasetName,
		RecordCount: len(s.records),
		Progress:    s.progress,
	}
	if s.lastErr != nil {
		st.Error = s.lastErr.Error()
	}
	if s.published != nil {
		ds := *s.published
		st.Dataset = &ds
	}
	return st
}

// Err returns the error that ended the last parse or publish, if any.
func (s *Session) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastErr
}

// notifyProgress sends the current progress to every listener, skipping
// listeners whose buffer is full. Callers hold s.mu.
func (s *Session) notifyProgress() {
	for _, ch := range s.listeners {
		select {
		case ch <- s.progress:
		default:
		}
	}
}

// closeListeners closes all listener channels. Callers hold s.mu.
func (s *Session) closeListeners() {
	for _, ch := range s.listeners {
		close(ch)
	}
	s.listeners = nil
}

package core_test

import (
	"context"
	"errors"
	"reflect"
	"testing"
	"time"

	"github.com/JonMunkholm/sheetshare/internal/core"
	"github.com/JonMunkholm/sheetshare/internal/store/memstore"
)

// blockingStore holds every CommitBatch until release is closed.
type blockingStore struct {
	*memstore.Store
	entered chan struct{}
	release chan struct{}
}

func newBlockingStore() *blockingStore {
	return &blockingStore{
		Store:   memstore.New(0),
		entered: make(chan struct{}, 100),
		release: make(chan struct{}),
	}
}

func (s *blockingStore) CommitBatch(ctx context.Context, collection string, docs []map[string]any) error {
	s.entered <- struct{}{}
	<-s.release
	return s.Store.CommitBatch(ctx, collection, docs)
}

const sampleCSV = "name,score\nalice,1\nbob,2\ncarol,3\ndan,4\neve,5\nfay,6\n"

func newTestSession(store core.Store) *core.Session {
	return core.NewSession(publisher, core.FileParser{}, core.NewBatchPublisher(store, 2), 5)
}

func TestSession_LoadPreviewPublish(t *testing.T) {
	store := memstore.New(0)
	s := newTestSession(store)

	if s.Phase() != core.PhaseIdle {
		t.Fatalf("initial phase = %s", s.Phase())
	}

	if err := s.Load("scores.csv", []byte(sampleCSV)); err != nil {
		t.Fatalf("Load: %v", err)
	}
	st := s.Snapshot()
	if st.Phase != core.PhasePreviewing || st.DatasetName != "scores" || st.RecordCount != 6 {
		t.Errorf("snapshot = %+v", st)
	}

	view, err := s.Preview(2, "")
	if err != nil {
		t.Fatalf("Preview: %v", err)
	}
	if view.Page != 2 || view.TotalPages != 2 || len(view.Rows) != 1 {
		t.Errorf("preview page %d/%d rows %d", view.Page, view.TotalPages, len(view.Rows))
	}

	view, err = s.Preview(2, "CAROL")
	if err != nil {
		t.Fatalf("Preview: %v", err)
	}
	if view.Page != 1 || view.FilteredCount != 1 {
		t.Errorf("search preview page %d filtered %d", view.Page, view.FilteredCount)
	}

	if err := s.SetDatasetName("Q1 scores"); err != nil {
		t.Fatalf("SetDatasetName: %v", err)
	}

	ds, err := s.Publish(context.Background())
	if err != nil {
		t.Fatalf("Publish: %v", err)
	}
	if ds.Name != "Q1 scores" || ds.RecordCount != 6 {
		t.Errorf("dataset = %+v", ds)
	}

	st = s.Snapshot()
	if st.Phase != core.PhaseDone || st.Dataset == nil || st.Dataset.ID != ds.ID {
		t.Errorf("snapshot after publish = %+v", st)
	}
	if st.Progress.Current != 6 || st.Progress.Total != 6 || st.Progress.DatasetID != ds.ID {
		t.Errorf("progress = %+v", st.Progress)
	}

	if _, err := s.Publish(context.Background()); !errors.Is(err, core.ErrInvalidTransition) {
		t.Errorf("second publish from done: got %v, want ErrInvalidTransition", err)
	}
}

func TestSession_ParseErrorReturnsToIdle(t *testing.T) {
	s := newTestSession(memstore.New(0))

	if err := s.Load("good.csv", []byte(sampleCSV)); err != nil {
		t.Fatalf("Load: %v", err)
	}

	err := s.Load("bad.pdf", []byte("whatever"))
	if !errors.Is(err, core.ErrUnsupportedFormat) {
		t.Fatalf("got %v, want ErrUnsupportedFormat", err)
	}

	st := s.Snapshot()
	if st.Phase != core.PhaseIdle || st.RecordCount != 0 || st.Error == "" {
		t.Errorf("snapshot = %+v", st)
	}
	if _, err := s.Preview(1, ""); !errors.Is(err, core.ErrInvalidTransition) {
		t.Errorf("Preview while idle: got %v, want ErrInvalidTransition", err)
	}
	if _, err := s.Publish(context.Background()); !errors.Is(err, core.ErrInvalidTransition) {
		t.Errorf("Publish while idle: got %v, want ErrInvalidTransition", err)
	}
}

func TestSession_EmptyFileCannotPublish(t *testing.T) {
	s := newTestSession(memstore.New(0))

	if err := s.Load("empty.csv", nil); err != nil {
		t.Fatalf("Load: %v", err)
	}
	view, err := s.Preview(1, "")
	if err != nil {
		t.Fatalf("Preview: %v", err)
	}
	if !view.Empty {
		t.Error("expected empty preview")
	}
	if _, err := s.Publish(context.Background()); !errors.Is(err, core.ErrNoRecords) {
		t.Errorf("got %v, want ErrNoRecords", err)
	}
	if s.Phase() != core.PhasePreviewing {
		t.Errorf("phase = %s, want previewing", s.Phase())
	}
}

func TestSession_PublishInProgress(t *testing.T) {
	store := newBlockingStore()
	s := newTestSession(store)

	if err := s.Load("scores.csv", []byte(sampleCSV)); err != nil {
		t.Fatalf("Load: %v", err)
	}

	updates := make(chan []core.Progress, 1)
	result := make(chan error, 1)
	go func() {
		_, err := s.Publish(context.Background())
		result <- err
	}()

	<-store.entered
	if s.Phase() != core.PhasePublishing {
		t.Fatalf("phase = %s, want publishing", s.Phase())
	}

	sub := s.Subscribe()
	go func() {
		var got []core.Progress
		for p := range sub {
			got = append(got, p)
		}
		updates <- got
	}()

	if _, err := s.Publish(context.Background()); !errors.Is(err, core.ErrPublishInProgress) {
		t.Errorf("concurrent Publish: got %v, want ErrPublishInProgress", err)
	}
	if err := s.Load("other.csv", []byte(sampleCSV)); !errors.Is(err, core.ErrPublishInProgress) {
		t.Errorf("Load while publishing: got %v, want ErrPublishInProgress", err)
	}
	if err := s.Discard(); !errors.Is(err, core.ErrPublishInProgress) {
		t.Errorf("Discard while publishing: got %v, want ErrPublishInProgress", err)
	}

	close(store.release)

	select {
	case err := <-result:
		if err != nil {
			t.Fatalf("Publish: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("publish did not finish")
	}

	var got []core.Progress
	select {
	case got = <-updates:
	case <-time.After(2 * time.Second):
		t.Fatal("subscriber channel not closed")
	}
	if len(got) == 0 {
		t.Fatal("no progress received")
	}
	if first := got[0]; first.Phase != core.PhasePublishing || first.Total != 6 {
		t.Errorf("first update = %+v", first)
	}
	if last := got[len(got)-1]; last.Phase != core.PhaseDone || last.Current != 6 {
		t.Errorf("last update = %+v", last)
	}
}

func TestSession_FailedPublishCanRetry(t *testing.T) {
	store := newFaultyStore()
	store.failBatch = 2
	s := newTestSession(store)

	if err := s.Load("scores.csv", []byte(sampleCSV)); err != nil {
		t.Fatalf("Load: %v", err)
	}

	_, err := s.Publish(context.Background())
	var chunkErr *core.ChunkCommitError
	if !errors.As(err, &chunkErr) || chunkErr.Committed != 2 {
		t.Fatalf("got %v, want ChunkCommitError after 2 rows", err)
	}

	st := s.Snapshot()
	if st.Phase != core.PhaseFailed || st.Error == "" || st.Progress.Error == "" {
		t.Errorf("snapshot = %+v", st)
	}

	// Preview and rename stay available after a failure.
	if _, err := s.Preview(1, ""); err != nil {
		t.Errorf("Preview after failure: %v", err)
	}
	if err := s.SetDatasetName("retry"); err != nil {
		t.Errorf("SetDatasetName after failure: %v", err)
	}

	ds, err := s.Publish(context.Background())
	if err != nil {
		t.Fatalf("retry: %v", err)
	}
	if ds.Name != "retry" || s.Phase() != core.PhaseDone {
		t.Errorf("retry dataset %+v phase %s", ds, s.Phase())
	}
	if got := store.Len(core.CollectionDatasets); got != 2 {
		t.Errorf("datasets = %d, want 2 (retry creates a new dataset)", got)
	}
}

func TestSession_Discard(t *testing.T) {
	s := newTestSession(memstore.New(0))

	if err := s.Load("scores.csv", []byte(sampleCSV)); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if err := s.Discard(); err != nil {
		t.Fatalf("Discard: %v", err)
	}
	if st := s.Snapshot(); st.Phase != core.PhaseIdle || st.FileName != "" || st.RecordCount != 0 {
		t.Errorf("snapshot = %+v", st)
	}
	if err := s.SetDatasetName("x"); !errors.Is(err, core.ErrInvalidTransition) {
		t.Errorf("SetDatasetName while idle: got %v", err)
	}
}

func TestSession_SubscribeWhenIdle(t *testing.T) {
	s := newTestSession(memstore.New(0))

	ch := s.Subscribe()
	p, ok := <-ch
	if !ok || p.Phase != core.PhaseIdle {
		t.Errorf("first value = %+v (ok %v)", p, ok)
	}
	if _, ok := <-ch; ok {
		t.Error("channel should be closed when nothing is publishing")
	}
}

func TestSession_PreviewKeepsFileColumnOrder(t *testing.T) {
	s := newTestSession(memstore.New(0))

	if err := s.Load("f.csv", []byte("zeta,alpha,mid\n1,2,3\n")); err != nil {
		t.Fatalf("Load: %v", err)
	}
	view, err := s.Preview(1, "")
	if err != nil {
		t.Fatalf("Preview: %v", err)
	}
	if want := []string{"zeta", "alpha", "mid"}; !reflect.DeepEqual(view.Columns, want) {
		t.Errorf("preview columns = %v, want %v", view.Columns, want)
	}
	if want := [][]string{{"1", "2", "3"}}; !reflect.DeepEqual(view.Rows, want) {
		t.Errorf("preview rows = %v, want %v", view.Rows, want)
	}
}

func TestSession_BlankNameFallsBackToFileName(t *testing.T) {
	store := memstore.New(0)
	s := newTestSession(store)

	if err := s.Load("scores.csv", []byte(sampleCSV)); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if err := s.SetDatasetName("   "); err != nil {
		t.Fatalf("SetDatasetName: %v", err)
	}

	ds, err := s.Publish(context.Background())
	if err != nil {
		t.Fatalf("Publish: %v", err)
	}
	if ds.Name != "scores.csv" {
		t.Errorf("dataset name = %q, want %q", ds.Name, "scores.csv")
	}
}

// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sync"
	"testing"

	"github.com/pdiddy/paperbrief/internal/fetch"
	"github.com/pdiddy/paperbrief/internal/store"
	"github.com/pdiddy/paperbrief/pkg/types"
)

// memStore is an in-memory JobStore that records every persisted snapshot.
type memStore struct {
	mu      sync.Mutex
	jobs    map[string]types.ProcessingJob
	history []types.ProcessingJob
}

func newMemStore() *memStore {
	return &memStore{jobs: make(map[string]types.ProcessingJob)}
}

func (m *memStore) Upsert(_ context.Context, job *types.ProcessingJob) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.jobs[job.PaperID] = *job
	m.history = append(m.history, *job)
	return nil
}

func (m *memStore) Get(_ context.Context, paperID string) (*types.ProcessingJob, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	job, ok := m.jobs[paperID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", store.ErrNotFound, paperID)
	}
	cp := job
	return &cp, nil
}

type stubFetcher struct {
	result  *types.FetchResult
	err     error
	block   chan struct{} // when non-nil, Attempt waits until closed
	calls   int
	callsMu sync.Mutex
}

func (s *stubFetcher) Fetch(ctx context.Context, _ fetch.Request) (*types.FetchResult, error) {
	s.callsMu.Lock()
	s.calls++
	s.callsMu.Unlock()
	if s.block != nil {
		select {
		case <-s.block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if s.err != nil {
		return nil, s.err
	}
	return s.result, nil
}

type stubExtractor struct {
	doc *types.ExtractedDocument
	err error
}

func (s *stubExtractor) Extract(_ context.Context, _ string, _ types.Format, _ []types.Figure, _ string) (*types.ExtractedDocument, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.doc, nil
}

func okFetchResult() *types.FetchResult {
	return &types.FetchResult{
		RawContent: "Title\n\nAuthors\n\nA long enough abstract body for processing.",
		FormatUsed: types.FormatAbstract,
	}
}

func okDoc() *types.ExtractedDocument {
	return &types.ExtractedDocument{
		Title:    "A Paper",
		Authors:  []string{"A. One"},
		Abstract: "About things.",
		Language: "en",
	}
}

func newTestRunner(t *testing.T, fetcher SourceFetcher, extractor DocExtractor, jobs JobStore) *Runner {
	t.Helper()
	cfg := types.PipelineConfig{
		OutputDir: t.TempDir(),
		Language:  "en",
		Render:    types.RenderConfig{Formats: []string{"html"}},
	}
	return New(cfg, fetcher, extractor, jobs, NewBroker(64))
}

func TestProcessHappyPath(t *testing.T) {
	jobs := newMemStore()
	r := newTestRunner(t, &stubFetcher{result: okFetchResult()}, &stubExtractor{doc: okDoc()}, jobs)

	events, cancel := r.Broker().Subscribe()
	defer cancel()

	job, err := r.Process(context.Background(), Request{Input: "2403.01234"})
	if err != nil {
		t.Fatalf("Process() error = %v", err)
	}
	if job.Status != types.StatusCompleted || job.Progress != 100 {
		t.Errorf("final job = %s/%d, want completed/100", job.Status, job.Progress)
	}
	if job.Title != "A Paper" {
		t.Errorf("Title = %q", job.Title)
	}
	if job.FormatUsed != types.FormatAbstract {
		t.Errorf("FormatUsed = %q", job.FormatUsed)
	}

	// Artifacts and sidecars exist.
	outDir := filepath.Dir(job.OutputPath)
	for _, name := range []string{"summary.html", "paper.yaml", "document.json"} {
		if _, err := os.Stat(filepath.Join(outDir, name)); err != nil {
			t.Errorf("missing artifact %s: %v", name, err)
		}
	}

	// Events arrive in stage order with monotone progress.
	wantOrder := []types.Status{
		types.StatusPending, types.StatusFetching, types.StatusExtractingStructure,
		types.StatusExtractingContent, types.StatusGenerating,
		types.StatusFinalizing, types.StatusCompleted,
	}
	lastProgress := -1
	for _, want := range wantOrder {
		ev := <-events
		if ev.Status != want {
			t.Fatalf("event status = %s, want %s", ev.Status, want)
		}
		if ev.Progress < lastProgress {
			t.Errorf("progress went backwards: %d after %d", ev.Progress, lastProgress)
		}
		lastProgress = ev.Progress
	}
}

func TestProcessFetchFailurePreservesProgress(t *testing.T) {
	jobs := newMemStore()
	fetchErr := &fetch.FetchError{Reason: fetch.ReasonUnreachable, Input: "2403.01234"}
	r := newTestRunner(t, &stubFetcher{err: fetchErr}, &stubExtractor{doc: okDoc()}, jobs)

	_, err := r.Process(context.Background(), Request{Input: "2403.01234"})
	var fe *fetch.FetchError
	if !errors.As(err, &fe) {
		t.Fatalf("Process() error = %v, want *fetch.FetchError", err)
	}

	job, err := jobs.Get(context.Background(), "2403.01234")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if job.Status != types.StatusFailed {
		t.Errorf("Status = %s, want failed", job.Status)
	}
	if job.Progress != types.StatusFetching.EntryProgress() {
		t.Errorf("Progress = %d, want %d (last reached band)", job.Progress, types.StatusFetching.EntryProgress())
	}
	if job.ErrorMessage == "" || job.LastFailedAt == nil {
		t.Error("failure bookkeeping not recorded")
	}
}

func TestProcessExtractionFailurePreservesProgress(t *testing.T) {
	jobs := newMemStore()
	r := newTestRunner(t, &stubFetcher{result: okFetchResult()},
		&stubExtractor{err: errors.New("model exploded")}, jobs)

	if _, err := r.Process(context.Background(), Request{Input: "2403.01234"}); err == nil {
		t.Fatal("Process() expected error")
	}

	job, _ := jobs.Get(context.Background(), "2403.01234")
	if job.Progress != types.StatusExtractingContent.EntryProgress() {
		t.Errorf("Progress = %d, want %d", job.Progress, types.StatusExtractingContent.EntryProgress())
	}
}

func TestProcessRejectsUnknownInput(t *testing.T) {
	r := newTestRunner(t, &stubFetcher{result: okFetchResult()}, &stubExtractor{doc: okDoc()}, newMemStore())

	_, err := r.Process(context.Background(), Request{Input: "   "})
	if !errors.Is(err, ErrUnrecognizedInput) {
		t.Errorf("Process() error = %v, want ErrUnrecognizedInput", err)
	}
}

func TestProcessSingleFlight(t *testing.T) {
	jobs := newMemStore()
	block := make(chan struct{})
	fetcher := &stubFetcher{result: okFetchResult(), block: block}
	r := newTestRunner(t, fetcher, &stubExtractor{doc: okDoc()}, jobs)

	firstDone := make(chan error, 1)
	go func() {
		_, err := r.Process(context.Background(), Request{Input: "2403.01234"})
		firstDone <- err
	}()

	// Wait until the first run holds the claim.
	for !r.registry.Running("2403.01234") {
		runtime.Gosched()
	}

	_, err := r.Process(context.Background(), Request{Input: "2403.01234"})
	if !errors.Is(err, ErrAlreadyRunning) {
		t.Errorf("duplicate Process() error = %v, want ErrAlreadyRunning", err)
	}

	close(block)
	if err := <-firstDone; err != nil {
		t.Errorf("first Process() error = %v", err)
	}

	// After release the paper can be processed again.
	if _, err := r.Process(context.Background(), Request{Input: "2403.01234"}); err != nil {
		t.Errorf("Process() after release error = %v", err)
	}
}

func TestRetryRestartsFromFirstStage(t *testing.T) {
	jobs := newMemStore()
	fetcher := &stubFetcher{err: errors.New("network down")}
	r := newTestRunner(t, fetcher, &stubExtractor{doc: okDoc()}, jobs)

	if _, err := r.Process(context.Background(), Request{Input: "2403.01234"}); err == nil {
		t.Fatal("Process() expected failure")
	}

	// Network recovers.
	fetcher.err = nil
	fetcher.result = okFetchResult()

	job, err := r.Retry(context.Background(), "2403.01234")
	if err != nil {
		t.Fatalf("Retry() error = %v", err)
	}
	if job.Status != types.StatusCompleted {
		t.Errorf("Status = %s, want completed", job.Status)
	}
	if job.RetryCount != 1 {
		t.Errorf("RetryCount = %d, want 1", job.RetryCount)
	}
	if job.ErrorMessage != "" {
		t.Errorf("ErrorMessage = %q, want cleared", job.ErrorMessage)
	}
	if fetcher.calls != 2 {
		t.Errorf("fetch calls = %d, want 2 (full rerun)", fetcher.calls)
	}
}

func TestRetryRequiresFailedState(t *testing.T) {
	jobs := newMemStore()
	r := newTestRunner(t, &stubFetcher{result: okFetchResult()}, &stubExtractor{doc: okDoc()}, jobs)

	if _, err := r.Process(context.Background(), Request{Input: "2403.01234"}); err != nil {
		t.Fatalf("Process() error = %v", err)
	}

	_, err := r.Retry(context.Background(), "2403.01234")
	if !errors.Is(err, ErrNotRetriable) {
		t.Errorf("Retry() error = %v, want ErrNotRetriable", err)
	}

	_, err = r.Retry(context.Background(), "never-seen")
	if !errors.Is(err, store.ErrNotFound) {
		t.Errorf("Retry() error = %v, want ErrNotFound", err)
	}
}

func TestSnapshotRoundTrip(t *testing.T) {
	jobs := newMemStore()
	doc := okDoc()
	doc.Method = &types.MethodSection{
		Description: "Stages.",
		FigureRefs:  []types.FigureRef{{FigureID: "F1", Caption: "Arch"}},
	}
	r := newTestRunner(t, &stubFetcher{result: okFetchResult()}, &stubExtractor{doc: doc}, jobs)

	job, err := r.Process(context.Background(), Request{Input: "2403.01234"})
	if err != nil {
		t.Fatalf("Process() error = %v", err)
	}

	got, err := ReadSnapshot(filepath.Dir(job.OutputPath))
	if err != nil {
		t.Fatalf("ReadSnapshot() error = %v", err)
	}
	if got.Title != doc.Title || got.Method == nil || len(got.Method.FigureRefs) != 1 {
		t.Errorf("snapshot did not round-trip: %+v", got)
	}
}

// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package pipeline orchestrates paper processing: fetch, figure extraction
// and classification, structured extraction, rendering, finalization. The
// runner owns every job record mutation and persists each status transition
// before emitting its progress event, so observers never see state the store
// does not have.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/pdiddy/paperbrief/internal/fetch"
	"github.com/pdiddy/paperbrief/internal/figures"
	"github.com/pdiddy/paperbrief/internal/render"
	"github.com/pdiddy/paperbrief/internal/store"
	"github.com/pdiddy/paperbrief/pkg/types"
)

// ErrUnrecognizedInput reports an input that is neither an arXiv reference,
// a URL, nor an existing PDF file.
var ErrUnrecognizedInput = errors.New("input is not an arXiv id, URL, or PDF file")

// ErrNotRetriable reports a retry request for a job that is not in the
// failed state.
var ErrNotRetriable = errors.New("only failed jobs can be retried")

// SourceFetcher is the fetch stage. Satisfied by *fetch.Fetcher.
type SourceFetcher interface {
	Fetch(ctx context.Context, req fetch.Request) (*types.FetchResult, error)
}

// DocExtractor is the structured-extraction stage. Satisfied by
// *extract.Extractor.
type DocExtractor interface {
	Extract(ctx context.Context, rawContent string, format types.Format, figs []types.Figure, targetLang string) (*types.ExtractedDocument, error)
}

// JobStore is the slice of the metadata store the runner needs.
type JobStore interface {
	Upsert(ctx context.Context, job *types.ProcessingJob) error
	Get(ctx context.Context, paperID string) (*types.ProcessingJob, error)
}

// Request submits one paper for processing.
type Request struct {
	// Input is an arXiv id, an arXiv/direct URL, or a local PDF path.
	Input string

	// Preferred pins a single fetch format instead of cascading.
	Preferred types.Format

	// Language overrides the configured output language when non-empty.
	Language string
}

// Runner executes the processing pipeline for one paper at a time per id.
type Runner struct {
	cfg       types.PipelineConfig
	fetcher   SourceFetcher
	extractor DocExtractor
	jobs      JobStore
	broker    *Broker
	registry  *Registry
}

// New assembles a runner. broker may be nil when no one consumes progress.
func New(cfg types.PipelineConfig, fetcher SourceFetcher, extractor DocExtractor, jobs JobStore, broker *Broker) *Runner {
	if broker == nil {
		broker = NewBroker(0)
	}
	return &Runner{
		cfg:       cfg,
		fetcher:   fetcher,
		extractor: extractor,
		jobs:      jobs,
		broker:    broker,
		registry:  NewRegistry(),
	}
}

// Broker returns the progress broker for subscription.
func (r *Runner) Broker() *Broker { return r.broker }

// Process runs the full pipeline for req.Input. It returns the final job
// record; a stage failure is reflected in the record and returned as the
// error. Duplicate submission of an in-flight paper returns
// ErrAlreadyRunning without touching its job.
func (r *Runner) Process(ctx context.Context, req Request) (*types.ProcessingJob, error) {
	inputType, normalized := fetch.DetectInput(req.Input)
	if inputType == fetch.InputUnknown {
		return nil, fmt.Errorf("%w: %q", ErrUnrecognizedInput, req.Input)
	}
	paperID := fetch.PaperID(inputType, normalized)

	if err := r.registry.Acquire(paperID); err != nil {
		return nil, err
	}
	defer r.registry.Release(paperID)

	job := r.loadOrCreate(ctx, paperID, req, normalized)
	return r.run(ctx, job, req, inputType, normalized)
}

// Retry reruns a failed job from the first stage. Partial results of the
// failed run are not resumed; the whole pipeline executes again.
func (r *Runner) Retry(ctx context.Context, paperID string) (*types.ProcessingJob, error) {
	job, err := r.jobs.Get(ctx, paperID)
	if err != nil {
		return nil, err
	}
	if job.Status != types.StatusFailed {
		return nil, fmt.Errorf("%w: %s is %s", ErrNotRetriable, paperID, job.Status)
	}

	if err := r.registry.Acquire(paperID); err != nil {
		return nil, err
	}
	defer r.registry.Release(paperID)

	inputType, normalized := fetch.DetectInput(job.SourceURL)
	if inputType == fetch.InputUnknown {
		return nil, fmt.Errorf("%w: stored source %q", ErrUnrecognizedInput, job.SourceURL)
	}

	job.RetryCount++
	job.Status = types.StatusPending
	job.Progress = 0
	job.Message = "retrying"
	job.ErrorMessage = ""

	req := Request{Input: job.SourceURL, Language: job.Language}
	return r.run(ctx, job, req, inputType, normalized)
}

func (r *Runner) loadOrCreate(ctx context.Context, paperID string, req Request, normalized string) *types.ProcessingJob {
	job, err := r.jobs.Get(ctx, paperID)
	if err == nil {
		// Rerun of a known paper: keep retry bookkeeping, restart state.
		job.Status = types.StatusPending
		job.Progress = 0
		job.ErrorMessage = ""
		return job
	}
	if !errors.Is(err, store.ErrNotFound) {
		log.Warn().Err(err).Str("paper", paperID).Msg("loading job record failed, starting fresh")
	}

	lang := req.Language
	if lang == "" {
		lang = r.cfg.Language
	}
	return &types.ProcessingJob{
		PaperID:   paperID,
		Status:    types.StatusPending,
		Title:     normalized,
		SourceURL: req.Input,
		Language:  lang,
	}
}

// run executes the stages against an initialized job record.
func (r *Runner) run(ctx context.Context, job *types.ProcessingJob, req Request, inputType fetch.InputType, normalized string) (*types.ProcessingJob, error) {
	started := time.Now()
	outDir := filepath.Join(r.cfg.OutputDir, job.PaperID)
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return job, r.fail(ctx, job, fmt.Errorf("creating output directory: %w", err))
	}

	r.transition(ctx, job, types.StatusPending, "queued")

	// Stage 1: fetch.
	r.transition(ctx, job, types.StatusFetching, "fetching source content")
	result, err := r.fetcher.Fetch(ctx, fetch.Request{
		Input:      req.Input,
		Type:       inputType,
		Normalized: normalized,
		OutputDir:  outDir,
		Preferred:  req.Preferred,
	})
	if err != nil {
		return job, r.fail(ctx, job, err)
	}
	job.FormatUsed = result.FormatUsed

	// Stage 2: figure extraction and classification. Only HTML carries
	// figure markup; other formats proceed with an empty set.
	r.transition(ctx, job, types.StatusExtractingStructure, "extracting figures")
	var figs []types.Figure
	if result.FormatUsed == types.FormatHTML {
		extracted, layout := figures.Extract(result.RawContent, result.Images)
		figs = figures.ClassifyAll(extracted, layout)
		log.Info().Str("paper", job.PaperID).Int("figures", len(figs)).Msg("extracted figures")
	}

	// Stage 3: structured extraction.
	r.transition(ctx, job, types.StatusExtractingContent, "extracting document structure")
	doc, err := r.extractor.Extract(ctx, result.RawContent, result.FormatUsed, figs, job.Language)
	if err != nil {
		return job, r.fail(ctx, job, err)
	}
	job.Title = doc.Title
	job.Authors = doc.Authors

	// Stage 4: render artifacts.
	r.transition(ctx, job, types.StatusGenerating, "rendering summary")
	paths, err := render.Render(doc, figs, outDir, r.cfg.Render)
	if err != nil {
		return job, r.fail(ctx, job, fmt.Errorf("rendering: %w", err))
	}
	job.OutputPath = paths[0]

	// Stage 5: finalize metadata sidecars.
	r.transition(ctx, job, types.StatusFinalizing, "writing metadata")
	if err := writeSidecars(outDir, job, doc, figs); err != nil {
		return job, r.fail(ctx, job, fmt.Errorf("finalizing: %w", err))
	}

	job.ProcessingTime = time.Since(started).Seconds()
	r.transition(ctx, job, types.StatusCompleted, "completed")
	log.Info().
		Str("paper", job.PaperID).
		Str("format", string(job.FormatUsed)).
		Float64("seconds", job.ProcessingTime).
		Msg("pipeline completed")
	return job, nil
}

// transition advances the job to status, persists the record, and publishes
// the progress event. Persist-then-publish keeps observers behind the store.
func (r *Runner) transition(ctx context.Context, job *types.ProcessingJob, status types.Status, message string) {
	job.Status = status
	if p := status.EntryProgress(); p > job.Progress || status == types.StatusPending {
		job.Progress = p
	}
	job.Message = message

	if err := r.jobs.Upsert(ctx, job); err != nil {
		log.Error().Err(err).Str("paper", job.PaperID).Msg("persisting job transition failed")
	}
	r.broker.Publish(types.ProgressEvent{
		PaperID:  job.PaperID,
		Status:   job.Status,
		Progress: job.Progress,
		Message:  message,
	})
}

// fail records the stage failure. Progress stays at the last reached band so
// observers can see how far the run got.
func (r *Runner) fail(ctx context.Context, job *types.ProcessingJob, cause error) error {
	now := time.Now().UTC()
	job.Status = types.StatusFailed
	job.Message = "failed"
	job.ErrorMessage = cause.Error()
	job.LastFailedAt = &now

	if err := r.jobs.Upsert(ctx, job); err != nil {
		log.Error().Err(err).Str("paper", job.PaperID).Msg("persisting job failure failed")
	}
	r.broker.Publish(types.ProgressEvent{
		PaperID:  job.PaperID,
		Status:   types.StatusFailed,
		Progress: job.Progress,
		Message:  "failed",
		Error:    cause.Error(),
	})
	log.Error().Err(cause).Str("paper", job.PaperID).Int("progress", job.Progress).Msg("pipeline failed")
	return cause
}

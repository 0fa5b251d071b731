// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package fetch resolves one paper source into raw content plus an image
// manifest. Strategies are tried in priority order (HTML render, PDF text,
// source bundle, abstract) until one yields non-trivial content; individual
// strategy failures are logged, never propagated. Only exhaustion of the
// whole cascade is a hard failure.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"

	"github.com/rs/zerolog/log"

	"github.com/pdiddy/paperbrief/pkg/types"
)

// FetchReason categorizes a cascade failure.
type FetchReason string

const (
	// ReasonUnreachable: no strategy could retrieve anything.
	ReasonUnreachable FetchReason = "unreachable"

	// ReasonUnsupportedFormat: the pinned format has no strategy, or no
	// strategy applies to the input type.
	ReasonUnsupportedFormat FetchReason = "unsupported_format"

	// ReasonEmptyContent: strategies responded but none produced content
	// above the minimal-length threshold.
	ReasonEmptyContent FetchReason = "empty_content"
)

// FetchError is returned when the whole strategy cascade is exhausted.
type FetchError struct {
	Reason FetchReason
	Input  string
	Err    error
}

func (e *FetchError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("fetch %s: %s: %v", e.Input, e.Reason, e.Err)
	}
	return fmt.Sprintf("fetch %s: %s", e.Input, e.Reason)
}

func (e *FetchError) Unwrap() error { return e.Err }

// errNotApplicable is returned by a strategy that cannot serve the given
// input type (e.g. the source-bundle strategy for a direct URL). The cascade
// skips it without counting a real failure.
var errNotApplicable = errors.New("strategy not applicable to input")

// Request describes one paper source to fetch.
type Request struct {
	// Input is the source as submitted.
	Input string

	// Type and Normalized come from DetectInput.
	Type       InputType
	Normalized string

	// OutputDir is the per-paper directory; images are written to
	// OutputDir/images/.
	OutputDir string

	// Preferred pins a single strategy instead of cascading. Empty means
	// try all in priority order.
	Preferred types.Format
}

// Strategy is one fetch approach. Attempt either returns a result, or an
// error the cascade absorbs.
type Strategy interface {
	Format() types.Format
	Attempt(ctx context.Context, req Request) (*types.FetchResult, error)
}

// Fetcher runs the strategy cascade.
type Fetcher struct {
	cfg        types.FetchConfig
	strategies []Strategy
}

// Recognizer turns image bytes into text. Satisfied by ocr.Client; nil
// disables the OCR fallback.
type Recognizer interface {
	RecognizeImage(imageData []byte) (string, error)
}

// NewFetcher builds a fetcher with the default strategy order: HTML render,
// PDF text extraction, source bundle, abstract-only. rec may be nil.
func NewFetcher(client *http.Client, cfg types.FetchConfig, rec Recognizer) *Fetcher {
	if cfg.MinContentLen <= 0 {
		cfg.MinContentLen = 200
	}
	if cfg.MaxImageBytes <= 0 {
		cfg.MaxImageBytes = 10 << 20
	}
	return &Fetcher{
		cfg: cfg,
		strategies: []Strategy{
			&htmlStrategy{client: client, cfg: cfg},
			&pdfStrategy{client: client, cfg: cfg, rec: rec},
			&sourceStrategy{client: client, cfg: cfg},
			&abstractStrategy{client: client, cfg: cfg},
		},
	}
}

// NewFetcherWithStrategies builds a fetcher over an explicit strategy order.
// Used by tests and by callers that need a reduced cascade.
func NewFetcherWithStrategies(cfg types.FetchConfig, strategies ...Strategy) *Fetcher {
	if cfg.MinContentLen <= 0 {
		cfg.MinContentLen = 200
	}
	return &Fetcher{cfg: cfg, strategies: strategies}
}

// Fetch resolves req into raw content plus an image manifest. The first
// strategy whose content length reaches MinContentLen wins; strategies after
// it are never attempted.
func (f *Fetcher) Fetch(ctx context.Context, req Request) (*types.FetchResult, error) {
	strategies := f.strategies
	if req.Preferred != "" {
		pinned := make([]Strategy, 0, 1)
		for _, s := range strategies {
			if s.Format() == req.Preferred {
				pinned = append(pinned, s)
			}
		}
		if len(pinned) == 0 {
			return nil, &FetchError{Reason: ReasonUnsupportedFormat, Input: req.Input}
		}
		strategies = pinned
	}

	if req.OutputDir != "" {
		if err := os.MkdirAll(filepath.Join(req.OutputDir, imagesDir), 0o755); err != nil {
			return nil, fmt.Errorf("creating images directory: %w", err)
		}
	}

	var (
		lastErr   error
		attempted bool
		sawThin   bool
	)
	for _, s := range strategies {
		res, err := s.Attempt(ctx, req)
		if err != nil {
			if errors.Is(err, errNotApplicable) {
				continue
			}
			attempted = true
			lastErr = err
			log.Warn().Err(err).
				Str("paper", req.Normalized).
				Str("format", string(s.Format())).
				Msg("fetch strategy failed, trying next")
			continue
		}
		attempted = true
		if len(res.RawContent) < f.cfg.MinContentLen {
			sawThin = true
			log.Warn().
				Str("paper", req.Normalized).
				Str("format", string(s.Format())).
				Int("length", len(res.RawContent)).
				Msg("fetch strategy returned trivial content, trying next")
			continue
		}
		res.FormatUsed = s.Format()
		log.Info().
			Str("paper", req.Normalized).
			Str("format", string(s.Format())).
			Int("length", len(res.RawContent)).
			Int("images", len(res.Images)).
			Msg("fetched paper content")
		return res, nil
	}

	switch {
	case !attempted:
		return nil, &FetchError{Reason: ReasonUnsupportedFormat, Input: req.Input}
	case sawThin && lastErr == nil:
		return nil, &FetchError{Reason: ReasonEmptyContent, Input: req.Input}
	case sawThin:
		return nil, &FetchError{Reason: ReasonEmptyContent, Input: req.Input, Err: lastErr}
	default:
		return nil, &FetchError{Reason: ReasonUnreachable, Input: req.Input, Err: lastErr}
	}
}

// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package extract derives the structured document model from fetched paper
// content via a language model. The response is parsed defensively: missing
// optional fields default to empty collections, a missing title is a
// malformed-response failure, and figure references that do not resolve
// against the extracted figure set are logged and dropped, never fabricated.
package extract

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/JohannesKaufmann/html-to-markdown/v2/converter"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/base"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/commonmark"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/table"
	"github.com/rs/zerolog/log"
	"golang.org/x/text/language"
	"golang.org/x/text/language/display"

	"github.com/pdiddy/paperbrief/pkg/types"
)

// Reason categorizes an extraction failure.
type Reason string

const (
	ReasonModelUnreachable  Reason = "model_unreachable"
	ReasonMalformedResponse Reason = "malformed_response"
	ReasonContentTooLong    Reason = "content_too_long"
)

// ExtractionError is a stage-boundary failure of structured extraction.
type ExtractionError struct {
	Reason Reason
	Err    error
}

func (e *ExtractionError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("extraction: %s: %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("extraction: %s", e.Reason)
}

func (e *ExtractionError) Unwrap() error { return e.Err }

// backoffBase controls the base duration for exponential backoff between
// model call attempts. Tests override this to avoid real sleeps.
var backoffBase = time.Second

// Extractor turns raw paper content plus a figure set into an
// ExtractedDocument.
type Extractor struct {
	backend    Backend
	translator Backend
	cfg        types.ExtractionConfig
	mdConv     *converter.Converter
}

// New creates an Extractor. translator may be nil, in which case the main
// backend also serves the translation pass.
func New(backend Backend, translator Backend, cfg types.ExtractionConfig) *Extractor {
	if cfg.MaxContentLen <= 0 {
		cfg.MaxContentLen = 50000
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 3
	}
	if translator == nil {
		translator = backend
	}
	return &Extractor{
		backend:    backend,
		translator: translator,
		cfg:        cfg,
		mdConv: converter.NewConverter(
			converter.WithPlugins(
				base.NewBasePlugin(),
				commonmark.NewCommonmarkPlugin(),
				table.NewTablePlugin(),
			),
		),
	}
}

// Extract submits the (truncated) content and figure manifest to the model
// and parses the response into the document model. When targetLang names a
// non-English language, a second translation pass runs over the text fields
// only; its failure degrades to the original-language text.
func (e *Extractor) Extract(ctx context.Context, rawContent string, format types.Format, figs []types.Figure, targetLang string) (*types.ExtractedDocument, error) {
	content := rawContent
	if format == types.FormatHTML {
		if md, err := e.mdConv.ConvertString(rawContent); err == nil && strings.TrimSpace(md) != "" {
			content = md
		} else if err != nil {
			log.Warn().Err(err).Msg("markdown flattening failed, submitting raw markup")
		}
	}
	content = truncate(content, e.cfg.MaxContentLen)

	prompt, err := renderExtractionPrompt(content, figs)
	if err != nil {
		return nil, &ExtractionError{Reason: ReasonMalformedResponse, Err: err}
	}

	respText, err := callWithRetry(ctx, e.backend, prompt, e.cfg.MaxRetries)
	if err != nil {
		return nil, &ExtractionError{Reason: classifyBackendError(err), Err: err}
	}

	doc, err := parseResponse(respText, figs)
	if err != nil {
		return nil, err
	}

	if tag, ok := parseTargetLanguage(targetLang); ok {
		e.translate(ctx, doc, tag, figs)
	}
	return doc, nil
}

// truncate limits content to max runes; content is never submitted unbounded.
func truncate(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max])
}

// callWithRetry calls the backend with exponential backoff.
func callWithRetry(ctx context.Context, backend Backend, prompt string, maxRetries int) (string, error) {
	var lastErr error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		if attempt > 0 {
			backoff := time.Duration(math.Pow(2, float64(attempt-1))) * backoffBase
			select {
			case <-ctx.Done():
				return "", ctx.Err()
			case <-time.After(backoff):
			}
		}
		resp, err := backend.Complete(ctx, prompt)
		if err == nil {
			return resp, nil
		}
		lastErr = err
	}
	return "", fmt.Errorf("after %d retries: %w", maxRetries, lastErr)
}

// classifyBackendError maps endpoint failures onto the error taxonomy.
func classifyBackendError(err error) Reason {
	msg := strings.ToLower(err.Error())
	if strings.Contains(msg, "context length") ||
		strings.Contains(msg, "context_length") ||
		strings.Contains(msg, "too long") ||
		strings.Contains(msg, "maximum context") {
		return ReasonContentTooLong
	}
	return ReasonModelUnreachable
}

// parseTargetLanguage reports whether targetLang asks for a non-English
// translation pass, normalizing the tag with x/text.
func parseTargetLanguage(targetLang string) (language.Tag, bool) {
	if targetLang == "" {
		return language.Und, false
	}
	tag, err := language.Parse(targetLang)
	if err != nil {
		log.Warn().Str("language", targetLang).Msg("unknown target language, keeping English output")
		return language.Und, false
	}
	if b, _ := tag.Base(); b.String() == "en" {
		return language.Und, false
	}
	return tag, true
}

// translate runs the narrower translation pass in place. Any failure leaves
// the original-language document untouched.
func (e *Extractor) translate(ctx context.Context, doc *types.ExtractedDocument, tag language.Tag, figs []types.Figure) {
	docJSON, err := json.Marshal(doc)
	if err != nil {
		log.Warn().Err(err).Msg("translation skipped: cannot marshal document")
		return
	}
	langName := display.English.Languages().Name(tag)

	prompt, err := renderTranslationPrompt(string(docJSON), langName)
	if err != nil {
		log.Warn().Err(err).Msg("translation skipped: prompt rendering failed")
		return
	}

	respText, err := callWithRetry(ctx, e.translator, prompt, e.cfg.MaxRetries)
	if err != nil {
		log.Warn().Err(err).Str("language", langName).Msg("translation failed, keeping original text")
		return
	}

	var translated types.ExtractedDocument
	if err := json.Unmarshal([]byte(extractJSONObject(respText)), &translated); err != nil {
		log.Warn().Err(err).Msg("translation response unparsable, keeping original text")
		return
	}
	if strings.TrimSpace(translated.Title) == "" {
		log.Warn().Msg("translation dropped the title, keeping original text")
		return
	}

	// Figure references must survive translation; re-verify and drop any
	// the model altered rather than trusting them.
	res := newResolver(figs)
	pruneUnresolvedRefs(&translated, res)

	translated.Language = tag.String()
	*doc = translated
}

// extractJSONObject returns the outermost JSON object in s, tolerating
// markdown fences and prose around it.
func extractJSONObject(s string) string {
	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start < 0 || end <= start {
		return s
	}
	return s[start : end+1]
}

// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package types defines shared data structures for the paperbrief pipeline:
// fetch results, figures, the extracted document model, processing jobs,
// and per-stage configuration.
package types

// Format identifies which fetch strategy produced a paper's raw content.
type Format string

const (
	// FormatHTML is the structured HTML render of the paper. Richest
	// source: preserves section structure and inline figure markup.
	FormatHTML Format = "html"

	// FormatPDF is text recovered from the PDF, possibly via OCR.
	FormatPDF Format = "pdf"

	// FormatSource is text flattened from the compilable source bundle.
	FormatSource Format = "source"

	// FormatAbstract is title/authors/abstract only, the last resort.
	FormatAbstract Format = "abstract"
)

// RawImage is one image discovered during fetching, already persisted
// to the per-paper output directory.
type RawImage struct {
	// RemoteRef is the original URL or src attribute of the image.
	RemoteRef string `json:"remote_ref" yaml:"remote_ref"`

	// LocalPath is the filesystem path the image bytes were written to.
	LocalPath string `json:"local_path" yaml:"local_path"`

	// FigureIndex is the 1-based position of the image in document order.
	FigureIndex int `json:"figure_index" yaml:"figure_index"`
}

// FetchResult is the output of the source fetcher. FormatUsed reflects the
// first strategy in priority order that produced non-trivial content;
// lower-priority strategies are never attempted after one succeeds.
type FetchResult struct {
	// RawContent is the text or markup of the paper body.
	RawContent string `json:"raw_content" yaml:"raw_content"`

	// FormatUsed records which strategy succeeded.
	FormatUsed Format `json:"format_used" yaml:"format_used"`

	// Images lists downloaded images in document order.
	Images []RawImage `json:"images" yaml:"images"`
}

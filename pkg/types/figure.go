// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

// FigureClass is the advisory classification assigned to a figure by the
// content classifier. It steers placement during rendering and is allowed
// to be wrong; nothing correctness-critical consumes it.
type FigureClass string

const (
	// ClassMethod marks figures illustrating how the system works:
	// architectures, pipelines, workflows.
	ClassMethod FigureClass = "method"

	// ClassResult marks figures showing evaluation outcomes:
	// comparisons, benchmarks, speedups.
	ClassResult FigureClass = "result"

	// ClassTable marks elements whose caption enumerator is a table tag.
	ClassTable FigureClass = "table"

	// ClassUnclassified is the default when no rule matches.
	ClassUnclassified FigureClass = "unclassified"
)

// Figure is one visual element of a paper. It is created during figure
// extraction, annotated once during classification, and read-only afterwards.
// A figure with sub-figures owns multiple image paths under one caption.
type Figure struct {
	// ID is stable across pipeline stages. It is taken from the source
	// markup when present (e.g. "S2.F1") and otherwise derived from the
	// figure's position in document order.
	ID string `json:"id" yaml:"id"`

	// LocalImagePaths lists the persisted images belonging to this figure.
	LocalImagePaths []string `json:"local_image_paths" yaml:"local_image_paths"`

	// CaptionTag is the leading enumerator, e.g. "Figure 1:" or "Table 2:".
	CaptionTag string `json:"caption_tag" yaml:"caption_tag"`

	// CaptionText is the caption with the enumerator stripped.
	CaptionText string `json:"caption_text" yaml:"caption_text"`

	// Position is the 0-based index of the figure container in document
	// order, used by the positional classification rules.
	Position int `json:"position" yaml:"position"`

	// Class is assigned by the content classifier.
	Class FigureClass `json:"classification" yaml:"classification"`
}

// FullCaption reconstructs the caption as it appeared in the source.
func (f Figure) FullCaption() string {
	if f.CaptionTag == "" {
		return f.CaptionText
	}
	if f.CaptionText == "" {
		return f.CaptionTag
	}
	return f.CaptionTag + " " + f.CaptionText
}

// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

// FigureRef points at a Figure by id. The document model never embeds image
// bytes or paths; rendering resolves the reference against the figure set
// produced for the same paper. Every referenced id must exist in that set.
type FigureRef struct {
	// FigureID matches Figure.ID.
	FigureID string `json:"figure_id" yaml:"figure_id"`

	// Caption is the caption text the model associated with the reference,
	// kept for display so rendering does not re-derive it.
	Caption string `json:"caption" yaml:"caption"`
}

// Subsection is a titled block of extracted content, optionally referencing
// figures that belong with it.
type Subsection struct {
	Title      string      `json:"title" yaml:"title"`
	Content    string      `json:"content" yaml:"content"`
	FigureRefs []FigureRef `json:"figure_refs,omitempty" yaml:"figure_refs,omitempty"`
}

// Section is a titled block with nested subsections, used for background
// topics.
type Section struct {
	Title       string       `json:"title" yaml:"title"`
	Content     string       `json:"content" yaml:"content"`
	Subsections []Subsection `json:"subsections,omitempty" yaml:"subsections,omitempty"`
}

// Contribution is one claimed contribution of the paper.
type Contribution struct {
	Title   string `json:"title" yaml:"title"`
	Content string `json:"content" yaml:"content"`
}

// MethodSection aggregates the extracted methodology.
type MethodSection struct {
	// Description is the high-level overview of the approach.
	Description string `json:"description,omitempty" yaml:"description,omitempty"`

	// KeyPoints lists the methodological takeaways in reading order.
	KeyPoints []string `json:"key_points,omitempty" yaml:"key_points,omitempty"`

	Subsections []Subsection `json:"subsections,omitempty" yaml:"subsections,omitempty"`
	FigureRefs  []FigureRef  `json:"figure_refs,omitempty" yaml:"figure_refs,omitempty"`
}

// ResultsSection aggregates the extracted evaluation.
type ResultsSection struct {
	// Baseline, Datasets, and ExperimentalSetup describe the evaluation
	// context when the paper states them.
	Baseline          string `json:"baseline,omitempty" yaml:"baseline,omitempty"`
	Datasets          string `json:"datasets,omitempty" yaml:"datasets,omitempty"`
	ExperimentalSetup string `json:"experimental_setup,omitempty" yaml:"experimental_setup,omitempty"`

	KeyPoints   []string     `json:"key_points,omitempty" yaml:"key_points,omitempty"`
	Subsections []Subsection `json:"subsections,omitempty" yaml:"subsections,omitempty"`
	FigureRefs  []FigureRef  `json:"figure_refs,omitempty" yaml:"figure_refs,omitempty"`

	// Tables references elements classified as tables. Only figures whose
	// caption enumerator is a table tag may appear here.
	Tables []FigureRef `json:"tables,omitempty" yaml:"tables,omitempty"`
}

// ExtractedDocument is the structured, model-derived representation of a
// paper. It round-trips losslessly through its JSON snapshot on disk.
type ExtractedDocument struct {
	Title    string   `json:"title" yaml:"title"`
	Authors  []string `json:"authors" yaml:"authors"`
	Abstract string   `json:"abstract" yaml:"abstract"`

	Background    []Section      `json:"background,omitempty" yaml:"background,omitempty"`
	Contributions []Contribution `json:"contributions,omitempty" yaml:"contributions,omitempty"`

	Method  *MethodSection  `json:"method,omitempty" yaml:"method,omitempty"`
	Results *ResultsSection `json:"results,omitempty" yaml:"results,omitempty"`

	// Language is the language of the text fields after any translation
	// pass (e.g. "en", "zh").
	Language string `json:"language,omitempty" yaml:"language,omitempty"`
}

// FigureRefs returns every figure reference in the document, in document
// order. Used to check the reference-consistency invariant before rendering.
func (d *ExtractedDocument) FigureRefs() []FigureRef {
	var refs []FigureRef
	if d.Method != nil {
		refs = append(refs, d.Method.FigureRefs...)
		for _, sub := range d.Method.Subsections {
			refs = append(refs, sub.FigureRefs...)
		}
	}
	if d.Results != nil {
		refs = append(refs, d.Results.FigureRefs...)
		for _, sub := range d.Results.Subsections {
			refs = append(refs, sub.FigureRefs...)
		}
		refs = append(refs, d.Results.Tables...)
	}
	return refs
}

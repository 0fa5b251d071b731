// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package extract

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/pdiddy/paperbrief/pkg/types"
)

// Wire structs mirror the prompt schema. They tolerate a sloppier shape than
// the document model: authors may arrive as a string or an array, and figure
// references may carry an id, a caption tag, or only caption text.
type rawDocument struct {
	Title         string            `json:"title"`
	Authors       flexStrings       `json:"authors"`
	Abstract      string            `json:"abstract"`
	Background    []rawSection      `json:"background"`
	Contributions []rawContribution `json:"contributions"`
	Method        *rawMethod        `json:"method"`
	Results       *rawResults       `json:"results"`
}

type rawSection struct {
	Title       string          `json:"title"`
	Content     string          `json:"content"`
	Subsections []rawSubsection `json:"subsections"`
}

type rawSubsection struct {
	Title   string         `json:"title"`
	Content string         `json:"content"`
	Figures []rawFigureRef `json:"figures"`
}

type rawContribution struct {
	Title   string `json:"title"`
	Content string `json:"content"`
}

type rawMethod struct {
	Description string          `json:"description"`
	KeyPoints   []string        `json:"key_points"`
	Subsections []rawSubsection `json:"subsections"`
	Figures     []rawFigureRef  `json:"figures"`
}

type rawResults struct {
	Baseline          string          `json:"baseline"`
	Datasets          string          `json:"datasets"`
	ExperimentalSetup string          `json:"experimental_setup"`
	KeyPoints         []string        `json:"key_points"`
	Subsections       []rawSubsection `json:"subsections"`
	Figures           []rawFigureRef  `json:"figures"`
	Tables            []rawFigureRef  `json:"tables"`
}

type rawFigureRef struct {
	ID      string `json:"id"`
	Caption string `json:"caption"`
}

// flexStrings accepts a JSON array of strings or a single delimited string.
type flexStrings []string

func (f *flexStrings) UnmarshalJSON(data []byte) error {
	var list []string
	if err := json.Unmarshal(data, &list); err == nil {
		*f = list
		return nil
	}
	var single string
	if err := json.Unmarshal(data, &single); err != nil {
		return fmt.Errorf("authors: expected string or array: %w", err)
	}
	for _, part := range strings.FieldsFunc(single, func(r rune) bool {
		return r == ',' || r == ';'
	}) {
		if s := strings.TrimSpace(part); s != "" {
			*f = append(*f, s)
		}
	}
	return nil
}

// parseResponse decodes the model response and converts it into the document
// model, resolving every figure reference against the extracted figure set.
func parseResponse(respText string, figs []types.Figure) (*types.ExtractedDocument, error) {
	var raw rawDocument
	if err := json.Unmarshal([]byte(extractJSONObject(respText)), &raw); err != nil {
		return nil, &ExtractionError{Reason: ReasonMalformedResponse, Err: err}
	}
	if strings.TrimSpace(raw.Title) == "" {
		return nil, &ExtractionError{
			Reason: ReasonMalformedResponse,
			Err:    fmt.Errorf("response missing required title"),
		}
	}

	res := newResolver(figs)

	doc := &types.ExtractedDocument{
		Title:    strings.TrimSpace(raw.Title),
		Authors:  raw.Authors,
		Abstract: strings.TrimSpace(raw.Abstract),
		Language: "en",
	}
	for _, sec := range raw.Background {
		doc.Background = append(doc.Background, types.Section{
			Title:       sec.Title,
			Content:     sec.Content,
			Subsections: convertSubsections(sec.Subsections, res),
		})
	}
	for _, con := range raw.Contributions {
		doc.Contributions = append(doc.Contributions, types.Contribution{
			Title:   con.Title,
			Content: con.Content,
		})
	}
	if raw.Method != nil {
		doc.Method = &types.MethodSection{
			Description: raw.Method.Description,
			KeyPoints:   raw.Method.KeyPoints,
			Subsections: convertSubsections(raw.Method.Subsections, res),
			FigureRefs:  res.resolveAll(raw.Method.Figures),
		}
	}
	if raw.Results != nil {
		doc.Results = &types.ResultsSection{
			Baseline:          raw.Results.Baseline,
			Datasets:          raw.Results.Datasets,
			ExperimentalSetup: raw.Results.ExperimentalSetup,
			KeyPoints:         raw.Results.KeyPoints,
			Subsections:       convertSubsections(raw.Results.Subsections, res),
			FigureRefs:        res.resolveAll(raw.Results.Figures),
			Tables:            res.resolveTables(raw.Results.Tables),
		}
	}
	return doc, nil
}

func convertSubsections(raw []rawSubsection, res *resolver) []types.Subsection {
	var out []types.Subsection
	for _, sub := range raw {
		out = append(out, types.Subsection{
			Title:      sub.Title,
			Content:    sub.Content,
			FigureRefs: res.resolveAll(sub.Figures),
		})
	}
	return out
}

// resolver matches model-produced figure references to extracted figures,
// by id first and then by caption tag or caption text.
type resolver struct {
	byID      map[string]types.Figure
	byTag     map[string]types.Figure
	byCaption map[string]types.Figure
}

func newResolver(figs []types.Figure) *resolver {
	r := &resolver{
		byID:      make(map[string]types.Figure, len(figs)),
		byTag:     make(map[string]types.Figure, len(figs)),
		byCaption: make(map[string]types.Figure, len(figs)),
	}
	for _, fig := range figs {
		r.byID[strings.ToLower(fig.ID)] = fig
		if tag := normalizeTag(fig.CaptionTag); tag != "" {
			r.byTag[tag] = fig
		}
		if cap := strings.ToLower(strings.TrimSpace(fig.CaptionText)); cap != "" {
			r.byCaption[cap] = fig
		}
	}
	return r
}

// resolve maps one raw reference to a FigureRef. The second return is false
// when nothing in the figure set matches; such references are dropped by the
// caller, never invented.
func (r *resolver) resolve(ref rawFigureRef) (types.FigureRef, bool) {
	if fig, ok := r.byID[strings.ToLower(strings.TrimSpace(ref.ID))]; ok {
		return figureRef(fig, ref.Caption), true
	}
	if fig, ok := r.byTag[normalizeTag(ref.ID)]; ok {
		return figureRef(fig, ref.Caption), true
	}
	if fig, ok := r.byCaption[strings.ToLower(strings.TrimSpace(ref.Caption))]; ok {
		return figureRef(fig, ref.Caption), true
	}
	return types.FigureRef{}, false
}

func (r *resolver) resolveAll(raw []rawFigureRef) []types.FigureRef {
	var out []types.FigureRef
	seen := make(map[string]bool, len(raw))
	for _, ref := range raw {
		resolved, ok := r.resolve(ref)
		if !ok {
			log.Warn().Str("id", ref.ID).Str("caption", ref.Caption).
				Msg("dropping unresolvable figure reference")
			continue
		}
		if seen[resolved.FigureID] {
			continue
		}
		seen[resolved.FigureID] = true
		out = append(out, resolved)
	}
	return out
}

// resolveTables additionally requires a table-tagged figure; anything else
// the model put under tables is dropped.
func (r *resolver) resolveTables(raw []rawFigureRef) []types.FigureRef {
	var out []types.FigureRef
	seen := make(map[string]bool, len(raw))
	for _, ref := range raw {
		resolved, ok := r.resolve(ref)
		if !ok {
			log.Warn().Str("id", ref.ID).Str("caption", ref.Caption).
				Msg("dropping unresolvable table reference")
			continue
		}
		fig := r.byID[strings.ToLower(resolved.FigureID)]
		if !strings.HasPrefix(strings.ToLower(fig.CaptionTag), "table") {
			log.Warn().Str("id", resolved.FigureID).
				Msg("dropping non-table reference from tables")
			continue
		}
		if seen[resolved.FigureID] {
			continue
		}
		seen[resolved.FigureID] = true
		out = append(out, resolved)
	}
	return out
}

func figureRef(fig types.Figure, modelCaption string) types.FigureRef {
	caption := strings.TrimSpace(modelCaption)
	if caption == "" {
		caption = fig.FullCaption()
	}
	return types.FigureRef{FigureID: fig.ID, Caption: caption}
}

// normalizeTag canonicalizes a caption enumerator for matching:
// "Fig. 3:" and "figure 3" both become "figure 3".
func normalizeTag(tag string) string {
	s := strings.ToLower(strings.TrimSpace(tag))
	s = strings.TrimRight(s, ".:")
	s = strings.ReplaceAll(s, "fig.", "figure")
	if strings.HasPrefix(s, "fig ") {
		s = "figure " + s[4:]
	}
	return strings.Join(strings.Fields(s), " ")
}

// pruneUnresolvedRefs removes, in place, any figure reference that no longer
// resolves against the figure set.
func pruneUnresolvedRefs(doc *types.ExtractedDocument, res *resolver) {
	keep := func(refs []types.FigureRef) []types.FigureRef {
		var out []types.FigureRef
		for _, ref := range refs {
			if _, ok := res.byID[strings.ToLower(ref.FigureID)]; ok {
				out = append(out, ref)
			} else {
				log.Warn().Str("id", ref.FigureID).
					Msg("dropping figure reference lost in translation")
			}
		}
		return out
	}
	for i := range doc.Background {
		for j := range doc.Background[i].Subsections {
			doc.Background[i].Subsections[j].FigureRefs = keep(doc.Background[i].Subsections[j].FigureRefs)
		}
	}
	if doc.Method != nil {
		doc.Method.FigureRefs = keep(doc.Method.FigureRefs)
		for i := range doc.Method.Subsections {
			doc.Method.Subsections[i].FigureRefs = keep(doc.Method.Subsections[i].FigureRefs)
		}
	}
	if doc.Results != nil {
		doc.Results.FigureRefs = keep(doc.Results.FigureRefs)
		doc.Results.Tables = keep(doc.Results.Tables)
		for i := range doc.Results.Subsections {
			doc.Results.Subsections[i].FigureRefs = keep(doc.Results.Subsections[i].FigureRefs)
		}
	}
}

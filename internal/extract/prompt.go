// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package extract

import (
	"bytes"
	"fmt"
	"text/template"

	"github.com/pdiddy/paperbrief/pkg/types"
)

// extractionPromptTmpl instructs the model to return the structured document
// as a single JSON object matching the schema below. Figures are referenced
// by the ids from the manifest, never by path, and only table-tagged entries
// may appear under results.tables.
var extractionPromptTmpl = template.Must(template.New("extraction").Parse(`You are an academic paper analysis system. Extract structured information from the paper below.

Extract:
- title: the paper title (required)
- authors: array of author names in source order
- abstract: a concise summary (100-150 words) of problem, approach, and key results
- background: array of {title, content, subsections:[{title, content}]} covering the main background topics
- contributions: array of {title, content}, one per claimed contribution
- method: {description, key_points:[...], subsections:[{title, content, figures:[{id, caption}]}]} explaining the methodology
- results: {baseline, datasets, experimental_setup, key_points:[...], subsections:[{title, content, figures:[{id, caption}]}], tables:[{id, caption}]}
{{if .Figures}}
AVAILABLE FIGURES (reference by id, use each at most once, do not invent ids):
{{range .Figures}}- id: {{.ID}} | tag: "{{.CaptionTag}}" | caption: {{.CaptionText}}
{{end}}
Rules for figures:
- Only entries whose tag starts with "Table" may appear in results.tables.
- Method subsections reference figures showing HOW the system works (architecture, pipeline, workflow).
- Results subsections reference figures showing evaluation outcomes (comparison, performance, speedup).
- Never reference a figure id that is not in the manifest.
{{end}}
Respond with exactly one JSON object and no other text.

Paper content:
{{.Content}}
`))

// translationPromptTmpl asks for the same JSON structure with text fields
// translated. Figure references and ids must pass through unchanged.
var translationPromptTmpl = template.Must(template.New("translation").Parse(`Translate the text fields of the following extracted paper data into {{.Language}}.

Requirements:
- Keep the JSON structure exactly as given; translate only human-readable text.
- Keep technical terms in English followed by the translation in parentheses.
- Do not alter, add, or remove figure ids or references.

Respond with exactly one JSON object and no other text.

{{.Document}}
`))

type promptData struct {
	Content string
	Figures []types.Figure
}

func renderExtractionPrompt(content string, figs []types.Figure) (string, error) {
	var buf bytes.Buffer
	if err := extractionPromptTmpl.Execute(&buf, promptData{Content: content, Figures: figs}); err != nil {
		return "", fmt.Errorf("rendering extraction prompt: %w", err)
	}
	return buf.String(), nil
}

func renderTranslationPrompt(docJSON, languageName string) (string, error) {
	var buf bytes.Buffer
	err := translationPromptTmpl.Execute(&buf, struct {
		Language string
		Document string
	}{Language: languageName, Document: docJSON})
	if err != nil {
		return "", fmt.Errorf("rendering translation prompt: %w", err)
	}
	return buf.String(), nil
}

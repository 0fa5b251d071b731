// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package render turns an extracted document plus its figure set into the
// final artifacts: a standalone HTML summary page and a PDF. Model-produced
// text is treated as untrusted; anything that reaches HTML output passes
// through a sanitizer.
package render

import (
	"fmt"
	"html/template"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/microcosm-cc/bluemonday"

	"github.com/pdiddy/paperbrief/pkg/types"
)

var (
	sanitizer = bluemonday.UGCPolicy()

	boldRe   = regexp.MustCompile(`\*\*([^*]+)\*\*`)
	italicRe = regexp.MustCompile(`\*([^*]+)\*`)
	codeRe   = regexp.MustCompile("`([^`]+)`")
)

// richText converts the light markdown the model emits (bold, italics,
// inline code, dash lists) into sanitized HTML.
func richText(s string) template.HTML {
	var b strings.Builder
	inList := false
	for _, line := range strings.Split(s, "\n") {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "- ") || strings.HasPrefix(trimmed, "* ") {
			if !inList {
				b.WriteString("<ul>")
				inList = true
			}
			b.WriteString("<li>" + inlineMarkup(trimmed[2:]) + "</li>")
			continue
		}
		if inList {
			b.WriteString("</ul>")
			inList = false
		}
		if trimmed == "" {
			continue
		}
		b.WriteString("<p>" + inlineMarkup(trimmed) + "</p>")
	}
	if inList {
		b.WriteString("</ul>")
	}
	return template.HTML(sanitizer.Sanitize(b.String()))
}

func inlineMarkup(s string) string {
	s = template.HTMLEscapeString(s)
	s = boldRe.ReplaceAllString(s, "<strong>$1</strong>")
	s = italicRe.ReplaceAllString(s, "<em>$1</em>")
	s = codeRe.ReplaceAllString(s, "<code>$1</code>")
	return s
}

// figureView is a figure prepared for the template: resolved image paths
// plus the caption to display.
type figureView struct {
	ID      string
	Paths   []string
	Caption string
}

type htmlData struct {
	Doc      *types.ExtractedDocument
	RichText func(string) template.HTML
	Figure   func(types.FigureRef) *figureView
	Language string
}

var summaryTmpl = template.Must(template.New("summary").Parse(`<!DOCTYPE html>
<html lang="{{.Language}}">
<head>
<meta charset="utf-8">
<title>{{.Doc.Title}}</title>
<style>
body { font-family: Georgia, serif; max-width: 860px; margin: 2rem auto; padding: 0 1rem; line-height: 1.6; color: #222; }
h1 { font-size: 1.7rem; border-bottom: 2px solid #334; padding-bottom: .4rem; }
h2 { font-size: 1.3rem; margin-top: 2rem; color: #334; }
h3 { font-size: 1.05rem; }
.authors { color: #666; font-style: italic; margin-bottom: 1.5rem; }
.abstract { background: #f6f7f9; border-left: 4px solid #334; padding: .8rem 1rem; }
figure { margin: 1.2rem 0; text-align: center; }
figure img { max-width: 100%; }
figcaption { font-size: .9rem; color: #555; margin-top: .4rem; }
ul.keypoints li { margin: .3rem 0; }
.meta dt { font-weight: bold; }
.meta dd { margin: 0 0 .5rem 0; }
</style>
</head>
<body>
<h1>{{.Doc.Title}}</h1>
{{if .Doc.Authors}}<div class="authors">{{range $i, $a := .Doc.Authors}}{{if $i}}, {{end}}{{$a}}{{end}}</div>{{end}}

{{if .Doc.Abstract}}<div class="abstract">{{call .RichText .Doc.Abstract}}</div>{{end}}

{{if .Doc.Background}}
<h2>Background</h2>
{{range .Doc.Background}}
<h3>{{.Title}}</h3>
{{call $.RichText .Content}}
{{range .Subsections}}<h4>{{.Title}}</h4>{{call $.RichText .Content}}{{end}}
{{end}}
{{end}}

{{if .Doc.Contributions}}
<h2>Contributions</h2>
<ul class="keypoints">
{{range .Doc.Contributions}}<li><strong>{{.Title}}.</strong> {{.Content}}</li>{{end}}
</ul>
{{end}}

{{if .Doc.Method}}
<h2>Method</h2>
{{call .RichText .Doc.Method.Description}}
{{if .Doc.Method.KeyPoints}}
<ul class="keypoints">{{range .Doc.Method.KeyPoints}}<li>{{.}}</li>{{end}}</ul>
{{end}}
{{range .Doc.Method.FigureRefs}}{{with call $.Figure .}}
<figure id="{{.ID}}">{{range .Paths}}<img src="{{.}}" alt="">{{end}}<figcaption>{{.Caption}}</figcaption></figure>
{{end}}{{end}}
{{range .Doc.Method.Subsections}}
<h3>{{.Title}}</h3>
{{call $.RichText .Content}}
{{range .FigureRefs}}{{with call $.Figure .}}
<figure id="{{.ID}}">{{range .Paths}}<img src="{{.}}" alt="">{{end}}<figcaption>{{.Caption}}</figcaption></figure>
{{end}}{{end}}
{{end}}
{{end}}

{{if .Doc.Results}}
<h2>Results</h2>
<dl class="meta">
{{if .Doc.Results.Baseline}}<dt>Baseline</dt><dd>{{.Doc.Results.Baseline}}</dd>{{end}}
{{if .Doc.Results.Datasets}}<dt>Datasets</dt><dd>{{.Doc.Results.Datasets}}</dd>{{end}}
{{if .Doc.Results.ExperimentalSetup}}<dt>Setup</dt><dd>{{.Doc.Results.ExperimentalSetup}}</dd>{{end}}
</dl>
{{if .Doc.Results.KeyPoints}}
<ul class="keypoints">{{range .Doc.Results.KeyPoints}}<li>{{.}}</li>{{end}}</ul>
{{end}}
{{range .Doc.Results.FigureRefs}}{{with call $.Figure .}}
<figure id="{{.ID}}">{{range .Paths}}<img src="{{.}}" alt="">{{end}}<figcaption>{{.Caption}}</figcaption></figure>
{{end}}{{end}}
{{range .Doc.Results.Subsections}}
<h3>{{.Title}}</h3>
{{call $.RichText .Content}}
{{range .FigureRefs}}{{with call $.Figure .}}
<figure id="{{.ID}}">{{range .Paths}}<img src="{{.}}" alt="">{{end}}<figcaption>{{.Caption}}</figcaption></figure>
{{end}}{{end}}
{{end}}
{{range .Doc.Results.Tables}}{{with call $.Figure .}}
<figure id="{{.ID}}">{{range .Paths}}<img src="{{.}}" alt="">{{end}}<figcaption>{{.Caption}}</figcaption></figure>
{{end}}{{end}}
{{end}}
</body>
</html>
`))

// HTML renders the summary page to outPath. Image paths in the page are
// kept relative to the output directory, so the page and its images/
// directory move together.
func HTML(doc *types.ExtractedDocument, figs []types.Figure, outPath string) error {
	index := indexFigures(figs)
	baseDir := filepath.Dir(outPath)

	lang := doc.Language
	if lang == "" {
		lang = "en"
	}
	data := htmlData{
		Doc:      doc,
		RichText: richText,
		Language: lang,
		Figure: func(ref types.FigureRef) *figureView {
			fig, ok := index[strings.ToLower(ref.FigureID)]
			if !ok || len(fig.LocalImagePaths) == 0 {
				return nil
			}
			caption := ref.Caption
			if caption == "" {
				caption = fig.FullCaption()
			}
			paths := make([]string, 0, len(fig.LocalImagePaths))
			for _, p := range fig.LocalImagePaths {
				if rel, err := filepath.Rel(baseDir, p); err == nil {
					p = filepath.ToSlash(rel)
				}
				paths = append(paths, p)
			}
			return &figureView{ID: fig.ID, Paths: paths, Caption: caption}
		},
	}

	f, err := os.Create(outPath)
	if err != nil {
		return fmt.Errorf("creating %s: %w", outPath, err)
	}
	defer f.Close()

	if err := summaryTmpl.Execute(f, data); err != nil {
		return fmt.Errorf("rendering summary page: %w", err)
	}
	return nil
}

func indexFigures(figs []types.Figure) map[string]types.Figure {
	index := make(map[string]types.Figure, len(figs))
	for _, fig := range figs {
		index[strings.ToLower(fig.ID)] = fig
	}
	return index
}

// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package figures associates images with captions, tags, and positional
// context, and heuristically classifies each visual as a method figure,
// result figure, or table. Extraction is best-effort: a figure whose caption
// cannot be parsed still appears, with whatever fields were recoverable.
package figures

import (
	"fmt"
	"regexp"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/pdiddy/paperbrief/pkg/types"
)

// DocLayout carries positional context from extraction into classification.
type DocLayout struct {
	// ResultsStart is the position of the first figure at or after the
	// first results-section heading, or -1 when no marker was seen.
	ResultsStart int
}

// captionTagRe splits a caption into its leading enumerator and the rest:
// "Figure 3: Overview" -> ("Figure 3:", "Overview").
var captionTagRe = regexp.MustCompile(`^((?:Figure|Fig\.|Table)\s*\d+[.:]?)\s*(.*)$`)

// resultsHeadingRe marks the start of the evaluation part of a paper.
var resultsHeadingRe = regexp.MustCompile(`(?i)^\s*(?:\d+[.\s]*)?(results?|evaluation|experiments?)\b`)

// Extract parses the fetched markup and returns one Figure per figure-like
// container, in document order. Sub-figures (several images under one
// caption) collapse into one Figure with multiple image paths. The images
// manifest restricts which paths are accepted; an empty manifest accepts all.
func Extract(rawContent string, images []types.RawImage) ([]types.Figure, DocLayout) {
	doc, err := html.Parse(strings.NewReader(rawContent))
	if err != nil {
		return nil, DocLayout{ResultsStart: -1}
	}

	known := make(map[string]bool, len(images))
	for _, img := range images {
		known[img.LocalPath] = true
	}

	var (
		figs         []types.Figure
		position     int
		inResults    bool
		resultsStart = -1
	)

	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch n.DataAtom {
			case atom.H1, atom.H2, atom.H3, atom.H4, atom.H5, atom.H6:
				if resultsHeadingRe.MatchString(nodeText(n)) {
					inResults = true
				}
			case atom.Figure:
				fig := extractOne(n, position, known)
				if len(fig.LocalImagePaths) > 0 || fig.CaptionText != "" || fig.CaptionTag != "" {
					if inResults && resultsStart < 0 {
						resultsStart = position
					}
					figs = append(figs, fig)
					position++
				}
				return // sub-figures handled inside extractOne
			case atom.Img:
				// Standalone image outside any figure container.
				if src := attrVal(n, "src"); src != "" && (len(known) == 0 || known[src]) {
					if inResults && resultsStart < 0 {
						resultsStart = position
					}
					figs = append(figs, types.Figure{
						ID:              fmt.Sprintf("I%d", position+1),
						LocalImagePaths: []string{src},
						CaptionText:     attrVal(n, "alt"),
						Position:        position,
						Class:           types.ClassUnclassified,
					})
					position++
					return
				}
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)

	return figs, DocLayout{ResultsStart: resultsStart}
}

// extractOne builds a Figure from one <figure> container: its images, the
// associated <figcaption>, and the enumerator split out of the caption.
func extractOne(n *html.Node, position int, known map[string]bool) types.Figure {
	fig := types.Figure{
		ID:       attrVal(n, "id"),
		Position: position,
		Class:    types.ClassUnclassified,
	}
	if fig.ID == "" {
		fig.ID = fmt.Sprintf("F%d", position+1)
	}

	var caption *html.Node
	var collect func(*html.Node)
	collect = func(cur *html.Node) {
		if cur.Type == html.ElementNode {
			switch cur.DataAtom {
			case atom.Img:
				if src := attrVal(cur, "src"); src != "" && (len(known) == 0 || known[src]) {
					fig.LocalImagePaths = append(fig.LocalImagePaths, src)
				}
			case atom.Figcaption:
				if caption == nil {
					caption = cur
				}
			}
		}
		for c := cur.FirstChild; c != nil; c = c.NextSibling {
			collect(c)
		}
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		collect(c)
	}

	if caption != nil {
		// LaTeXML wraps the enumerator in span.ltx_tag; fall back to
		// splitting the text when the span is absent.
		if tagNode := findCaptionTag(caption); tagNode != nil {
			fig.CaptionTag = strings.TrimSpace(nodeText(tagNode))
			full := strings.TrimSpace(nodeText(caption))
			fig.CaptionText = strings.TrimSpace(strings.TrimPrefix(full, fig.CaptionTag))
		} else {
			full := strings.TrimSpace(nodeText(caption))
			if m := captionTagRe.FindStringSubmatch(full); m != nil {
				fig.CaptionTag = strings.TrimSpace(m[1])
				fig.CaptionText = strings.TrimSpace(m[2])
			} else {
				fig.CaptionText = full
			}
		}
	}
	return fig
}

func findCaptionTag(caption *html.Node) *html.Node {
	var res *html.Node
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if res != nil {
			return
		}
		if n.Type == html.ElementNode && n.DataAtom == atom.Span && hasClassToken(n, "ltx_tag") {
			res = n
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(caption)
	return res
}

func hasClassToken(n *html.Node, class string) bool {
	for _, attr := range n.Attr {
		if attr.Key != "class" {
			continue
		}
		for _, token := range strings.Fields(attr.Val) {
			if token == class || strings.HasPrefix(token, class+"_") {
				return true
			}
		}
	}
	return false
}

func attrVal(n *html.Node, key string) string {
	for _, attr := range n.Attr {
		if attr.Key == key {
			return attr.Val
		}
	}
	return ""
}

func nodeText(n *html.Node) string {
	var b strings.Builder
	var walk func(*html.Node)
	walk = func(cur *html.Node) {
		if cur.Type == html.TextNode {
			b.WriteString(cur.Data)
			b.WriteByte(' ')
		}
		for c := cur.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return strings.Join(strings.Fields(b.String()), " ")
}

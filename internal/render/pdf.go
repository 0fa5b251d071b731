// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package render

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/jung-kurt/gofpdf"

	"github.com/pdiddy/paperbrief/pkg/types"
)

const (
	pdfBodySize    = 11.0
	pdfLineHeight  = 5.0
	pdfImageWidth  = 160.0 // mm, fits A4 with margins
	pdfCaptionSize = 9.0
)

// PDF renders the summary document to outPath. The layout is a simple
// flowing renderer: headings, paragraphs, bullet lists, and figures with
// captions. CJK text is not shaped; non-latin output relies on the HTML
// artifact instead.
func PDF(doc *types.ExtractedDocument, figs []types.Figure, outPath string) error {
	index := indexFigures(figs)

	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetFont("Helvetica", "", pdfBodySize)
	pdf.AddPage()

	tr := pdf.UnicodeTranslatorFromDescriptor("")

	heading := func(text string, size float64) {
		pdf.SetFont("Helvetica", "B", size)
		pdf.CellFormat(0, 8, tr(text), "", 1, "L", false, 0, "")
		pdf.SetFont("Helvetica", "", pdfBodySize)
	}
	paragraph := func(text string) {
		text = stripInlineMarkup(text)
		if text == "" {
			return
		}
		pdf.MultiCell(0, pdfLineHeight, tr(text), "", "L", false)
		pdf.Ln(2)
	}
	bullets := func(items []string) {
		for _, item := range items {
			pdf.MultiCell(0, pdfLineHeight, tr("- "+stripInlineMarkup(item)), "", "L", false)
		}
		pdf.Ln(2)
	}
	figure := func(ref types.FigureRef) {
		fig, ok := index[strings.ToLower(ref.FigureID)]
		if !ok {
			return
		}
		for _, path := range fig.LocalImagePaths {
			if !embeddableImage(path) {
				continue
			}
			pdf.ImageOptions(path, -1, -1, pdfImageWidth, 0, true,
				gofpdf.ImageOptions{ReadDpi: true}, 0, "")
		}
		caption := ref.Caption
		if caption == "" {
			caption = fig.FullCaption()
		}
		if caption != "" {
			pdf.SetFont("Helvetica", "I", pdfCaptionSize)
			pdf.MultiCell(0, pdfLineHeight, tr(caption), "", "C", false)
			pdf.SetFont("Helvetica", "", pdfBodySize)
		}
		pdf.Ln(3)
	}
	subsections := func(subs []types.Subsection) {
		for _, sub := range subs {
			if sub.Title != "" {
				heading(sub.Title, 11)
			}
			paragraph(sub.Content)
			for _, ref := range sub.FigureRefs {
				figure(ref)
			}
		}
	}

	heading(doc.Title, 16)
	if len(doc.Authors) > 0 {
		pdf.SetFont("Helvetica", "I", pdfBodySize)
		pdf.MultiCell(0, pdfLineHeight, tr(strings.Join(doc.Authors, ", ")), "", "L", false)
		pdf.SetFont("Helvetica", "", pdfBodySize)
		pdf.Ln(3)
	}

	if doc.Abstract != "" {
		heading("Abstract", 13)
		paragraph(doc.Abstract)
	}

	if len(doc.Background) > 0 {
		heading("Background", 13)
		for _, sec := range doc.Background {
			if sec.Title != "" {
				heading(sec.Title, 12)
			}
			paragraph(sec.Content)
			subsections(sec.Subsections)
		}
	}

	if len(doc.Contributions) > 0 {
		heading("Contributions", 13)
		for _, con := range doc.Contributions {
			pdf.SetFont("Helvetica", "B", pdfBodySize)
			pdf.Write(pdfLineHeight, tr(con.Title+". "))
			pdf.SetFont("Helvetica", "", pdfBodySize)
			pdf.Write(pdfLineHeight, tr(stripInlineMarkup(con.Content)))
			pdf.Ln(6)
		}
		pdf.Ln(2)
	}

	if doc.Method != nil {
		heading("Method", 13)
		paragraph(doc.Method.Description)
		bullets(doc.Method.KeyPoints)
		for _, ref := range doc.Method.FigureRefs {
			figure(ref)
		}
		subsections(doc.Method.Subsections)
	}

	if doc.Results != nil {
		heading("Results", 13)
		for _, pair := range [][2]string{
			{"Baseline", doc.Results.Baseline},
			{"Datasets", doc.Results.Datasets},
			{"Setup", doc.Results.ExperimentalSetup},
		} {
			if pair[1] == "" {
				continue
			}
			pdf.SetFont("Helvetica", "B", pdfBodySize)
			pdf.Write(pdfLineHeight, tr(pair[0]+": "))
			pdf.SetFont("Helvetica", "", pdfBodySize)
			pdf.Write(pdfLineHeight, tr(stripInlineMarkup(pair[1])))
			pdf.Ln(6)
		}
		bullets(doc.Results.KeyPoints)
		for _, ref := range doc.Results.FigureRefs {
			figure(ref)
		}
		subsections(doc.Results.Subsections)
		for _, ref := range doc.Results.Tables {
			figure(ref)
		}
	}

	if err := pdf.OutputFileAndClose(outPath); err != nil {
		return fmt.Errorf("writing %s: %w", outPath, err)
	}
	return nil
}

// embeddableImage reports whether gofpdf can embed the file. SVG figures
// stay HTML-only.
func embeddableImage(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".png", ".jpg", ".jpeg", ".gif":
		return true
	default:
		return false
	}
}

// stripInlineMarkup removes the light markdown the model emits so it does
// not leak into PDF text.
func stripInlineMarkup(s string) string {
	s = boldRe.ReplaceAllString(s, "$1")
	s = italicRe.ReplaceAllString(s, "$1")
	s = codeRe.ReplaceAllString(s, "$1")
	return strings.TrimSpace(s)
}

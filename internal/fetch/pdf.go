// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package fetch

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"unicode"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/rs/zerolog/log"

	"github.com/pdiddy/paperbrief/internal/httputil"
	"github.com/pdiddy/paperbrief/pkg/types"
)

// ocrMinCharsPerPage is the density below which extracted text is treated
// as a scanned or layout-heavy PDF worth the OCR fallback.
const ocrMinCharsPerPage = 200.0

// pdfStrategy downloads the PDF rendition and recovers its text from the
// content streams. When extraction is sparse and the document carries image
// streams, an optional OCR pass over the embedded images takes over.
type pdfStrategy struct {
	client *http.Client
	cfg    types.FetchConfig
	rec    Recognizer
}

func (s *pdfStrategy) Format() types.Format { return types.FormatPDF }

func (s *pdfStrategy) Attempt(ctx context.Context, req Request) (*types.FetchResult, error) {
	var pdfPath string
	switch req.Type {
	case InputArxiv:
		path, err := s.downloadPDF(ctx, arxivPDFBase+req.Normalized+".pdf", req.OutputDir)
		if err != nil {
			return nil, err
		}
		pdfPath = path
	case InputURL:
		u, err := url.Parse(req.Normalized)
		if err != nil || !strings.HasSuffix(strings.ToLower(u.Path), ".pdf") {
			return nil, errNotApplicable
		}
		path, err := s.downloadPDF(ctx, req.Normalized, req.OutputDir)
		if err != nil {
			return nil, err
		}
		pdfPath = path
	case InputPDF:
		pdfPath = req.Normalized
	default:
		return nil, errNotApplicable
	}

	text, pages, hasImages, err := extractPDFText(pdfPath)
	if err != nil {
		return nil, err
	}

	if s.shouldOCR(text, pages, hasImages) {
		if ocrText, ocrErr := s.ocrPDF(pdfPath); ocrErr != nil {
			log.Warn().Err(ocrErr).Str("pdf", pdfPath).Msg("OCR fallback failed, keeping stream text")
		} else if len(ocrText) > len(text) {
			text = ocrText
		}
	}

	return &types.FetchResult{RawContent: text}, nil
}

// downloadPDF writes the PDF next to the paper's other artifacts using the
// temp-file-then-rename pattern, so a partial download never looks complete.
func (s *pdfStrategy) downloadPDF(ctx context.Context, pdfURL, outputDir string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pdfURL, nil)
	if err != nil {
		return "", fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("User-Agent", s.cfg.UserAgent)
	req.Header.Set("Accept", "application/pdf")

	resp, err := httputil.DoWithRetry(ctx, s.client, req, 0)
	if err != nil {
		return "", fmt.Errorf("downloading PDF: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("HTTP %d from %s", resp.StatusCode, pdfURL)
	}

	if outputDir == "" {
		outputDir = os.TempDir()
	}
	destPath := filepath.Join(outputDir, "paper.pdf")

	tmp, err := os.CreateTemp(outputDir, ".fetch-*.pdf")
	if err != nil {
		return "", fmt.Errorf("creating temp file: %w", err)
	}
	tmpPath := tmp.Name()

	_, copyErr := io.Copy(tmp, resp.Body)
	closeErr := tmp.Close()
	if copyErr != nil {
		os.Remove(tmpPath)
		return "", fmt.Errorf("writing PDF: %w", copyErr)
	}
	if closeErr != nil {
		os.Remove(tmpPath)
		return "", fmt.Errorf("closing temp file: %w", closeErr)
	}
	if err := os.Rename(tmpPath, destPath); err != nil {
		os.Remove(tmpPath)
		return "", fmt.Errorf("renaming temp file: %w", err)
	}
	return destPath, nil
}

func (s *pdfStrategy) shouldOCR(text string, pages int, hasImages bool) bool {
	if !s.cfg.EnableOCR || s.rec == nil || pages == 0 || !hasImages {
		return false
	}
	return float64(len([]rune(text)))/float64(pages) < ocrMinCharsPerPage
}

// ocrPDF extracts the embedded images and runs each through the recognizer.
func (s *pdfStrategy) ocrPDF(pdfPath string) (string, error) {
	tmpDir, err := os.MkdirTemp("", "paperbrief-ocr-*")
	if err != nil {
		return "", fmt.Errorf("creating OCR scratch dir: %w", err)
	}
	defer os.RemoveAll(tmpDir)

	if err := api.ExtractImagesFile(pdfPath, tmpDir, nil, model.NewDefaultConfiguration()); err != nil {
		return "", fmt.Errorf("extracting PDF images: %w", err)
	}

	entries, err := os.ReadDir(tmpDir)
	if err != nil {
		return "", fmt.Errorf("reading OCR scratch dir: %w", err)
	}

	var b strings.Builder
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		data, err := os.ReadFile(filepath.Join(tmpDir, entry.Name()))
		if err != nil {
			continue
		}
		text, err := s.rec.RecognizeImage(data)
		if err != nil {
			log.Debug().Err(err).Str("image", entry.Name()).Msg("OCR skipped image")
			continue
		}
		if text != "" {
			if b.Len() > 0 {
				b.WriteString("\n")
			}
			b.WriteString(text)
		}
	}
	if b.Len() == 0 {
		return "", fmt.Errorf("OCR produced no text")
	}
	return b.String(), nil
}

// extractPDFText recovers text from the PDF's page content streams. Returns
// the text, the page count, and whether the document embeds image streams.
func extractPDFText(path string) (string, int, bool, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", 0, false, fmt.Errorf("opening PDF: %w", err)
	}
	defer f.Close()

	pdfCtx, err := api.ReadValidateAndOptimize(f, model.NewDefaultConfiguration())
	if err != nil {
		return "", 0, false, fmt.Errorf("reading PDF: %w", err)
	}

	hasImages := false
	var b strings.Builder
	for pageNr := 1; pageNr <= pdfCtx.PageCount; pageNr++ {
		if len(pdfcpu.ImageObjNrs(pdfCtx, pageNr)) > 0 {
			hasImages = true
		}
		pageText := extractPageText(pdfCtx, pageNr)
		if pageText == "" {
			continue
		}
		fmt.Fprintf(&b, "\n--- Page %d ---\n%s", pageNr, pageText)
	}

	text := strings.TrimSpace(b.String())
	if text == "" && !hasImages {
		return "", pdfCtx.PageCount, false, fmt.Errorf("no text content found in PDF")
	}
	return text, pdfCtx.PageCount, hasImages, nil
}

func extractPageText(pdfCtx *model.Context, pageNr int) string {
	r, err := pdfcpu.ExtractPageContent(pdfCtx, pageNr)
	if err != nil {
		return ""
	}
	data, err := io.ReadAll(r)
	if err != nil || len(data) == 0 {
		return ""
	}
	return parseContentStream(data)
}

// pdfLiteralRe matches PDF string literals: (text).
var pdfLiteralRe = regexp.MustCompile(`\(((?:[^()\\]|\\.)*)\)`)

// parseContentStream walks the content stream operators that show text
// (Tj, TJ, ') and the positioning operators that imply breaks (Td, TD, T*).
func parseContentStream(data []byte) string {
	var b strings.Builder
	for _, line := range bytes.Split(data, []byte{'\n'}) {
		line = bytes.TrimSpace(line)
		if len(line) == 0 {
			continue
		}
		switch {
		case bytes.HasSuffix(line, []byte("Tj")), bytes.HasSuffix(line, []byte("TJ")):
			for _, m := range pdfLiteralRe.FindAllSubmatch(line, -1) {
				b.WriteString(decodePDFString(m[1]))
			}
		case bytes.HasSuffix(line, []byte("'")) && bytes.Contains(line, []byte("(")):
			for _, m := range pdfLiteralRe.FindAllSubmatch(line, -1) {
				b.WriteByte('\n')
				b.WriteString(decodePDFString(m[1]))
			}
		case bytes.HasSuffix(line, []byte("Td")), bytes.HasSuffix(line, []byte("TD")):
			if b.Len() > 0 {
				b.WriteByte(' ')
			}
		case bytes.Equal(line, []byte("T*")):
			b.WriteByte('\n')
		}
	}
	return normalizePDFText(b.String())
}

// decodePDFString resolves the escape sequences of a PDF string literal,
// including octal escapes like \040.
func decodePDFString(raw []byte) string {
	var b strings.Builder
	for i := 0; i < len(raw); i++ {
		if raw[i] != '\\' || i+1 >= len(raw) {
			b.WriteByte(raw[i])
			continue
		}
		i++
		switch raw[i] {
		case 'n':
			b.WriteByte('\n')
		case 'r':
			b.WriteByte('\r')
		case 't':
			b.WriteByte('\t')
		case '\\', '(', ')':
			b.WriteByte(raw[i])
		default:
			if raw[i] >= '0' && raw[i] <= '7' {
				val := int(raw[i] - '0')
				for n := 0; n < 2 && i+1 < len(raw) && raw[i+1] >= '0' && raw[i+1] <= '7'; n++ {
					i++
					val = val*8 + int(raw[i]-'0')
				}
				b.WriteByte(byte(val))
			} else {
				b.WriteByte(raw[i])
			}
		}
	}
	return b.String()
}

// normalizePDFText collapses whitespace runs and strips unprintable bytes.
func normalizePDFText(text string) string {
	var b strings.Builder
	prevSpace := false
	for _, r := range text {
		switch {
		case r == '\n':
			b.WriteRune(r)
			prevSpace = true
		case unicode.IsSpace(r):
			if !prevSpace && b.Len() > 0 {
				b.WriteByte(' ')
			}
			prevSpace = true
		case unicode.IsPrint(r):
			b.WriteRune(r)
			prevSpace = false
		}
	}
	return strings.TrimSpace(b.String())
}

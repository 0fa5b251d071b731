// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package fetch

import (
	"crypto/sha256"
	"fmt"
	"net/url"
	"path/filepath"
	"regexp"
	"strings"
)

// InputType classifies a submitted paper source.
type InputType string

const (
	InputUnknown InputType = "unknown"
	InputArxiv   InputType = "arxiv"
	InputURL     InputType = "url"
	InputPDF     InputType = "pdf"
)

// Base URLs for arXiv resolution. Declared as vars so tests can substitute
// httptest servers.
var (
	arxivHTMLBase   = "https://arxiv.org/html/"
	arxivPDFBase    = "https://arxiv.org/pdf/"
	arxivEPrintBase = "https://arxiv.org/e-print/"
	arxivAPIBase    = "https://export.arxiv.org/api/query"
)

// arxivPatterns match the accepted arXiv spellings: bare IDs ("2301.12345",
// "2301.12345v2", "arXiv:2301.12345") and abs/pdf/html URLs.
var arxivPatterns = []*regexp.Regexp{
	regexp.MustCompile(`arxiv\.org/abs/(\d{4}\.\d{4,5}(?:v\d+)?)`),
	regexp.MustCompile(`arxiv\.org/pdf/(\d{4}\.\d{4,5}(?:v\d+)?)`),
	regexp.MustCompile(`arxiv\.org/html/(\d{4}\.\d{4,5}(?:v\d+)?)`),
	regexp.MustCompile(`^(?:arXiv:)?(\d{4}\.\d{4,5}(?:v\d+)?)$`),
}

var versionSuffix = regexp.MustCompile(`v\d+$`)

// ExtractArxivID pulls the arXiv identifier out of an ID or URL spelling.
// The version suffix is stripped so re-submissions of the same paper
// deduplicate regardless of which revision the user pasted.
func ExtractArxivID(input string) (string, bool) {
	input = strings.TrimSpace(input)
	for _, pat := range arxivPatterns {
		if m := pat.FindStringSubmatch(input); m != nil {
			return versionSuffix.ReplaceAllString(m[1], ""), true
		}
	}
	return "", false
}

// DetectInput classifies a submitted source and returns its normalized form:
// the versionless arXiv ID, the URL as given, or the local file path.
func DetectInput(input string) (InputType, string) {
	input = strings.TrimSpace(input)

	if id, ok := ExtractArxivID(input); ok {
		return InputArxiv, id
	}

	if u, err := url.Parse(input); err == nil && (u.Scheme == "http" || u.Scheme == "https") {
		return InputURL, input
	}

	if strings.EqualFold(filepath.Ext(input), ".pdf") {
		return InputPDF, input
	}

	return InputUnknown, input
}

// PaperID returns the stable job key for a normalized input. ArXiv IDs are
// used as-is; URLs and file paths get a filesystem-safe slug.
func PaperID(t InputType, normalized string) string {
	switch t {
	case InputArxiv:
		return normalized
	case InputURL:
		u, err := url.Parse(normalized)
		if err != nil {
			return urlHashSlug(normalized)
		}
		base := strings.TrimSuffix(filepath.Base(u.Path), filepath.Ext(u.Path))
		if base == "" || base == "." || base == "/" {
			return urlHashSlug(normalized)
		}
		return sanitizeSlug(base)
	case InputPDF:
		base := strings.TrimSuffix(filepath.Base(normalized), filepath.Ext(normalized))
		if base == "" {
			return urlHashSlug(normalized)
		}
		return sanitizeSlug(base)
	default:
		return urlHashSlug(normalized)
	}
}

// sanitizeSlug keeps slugs filesystem- and URL-safe.
func sanitizeSlug(s string) string {
	var b strings.Builder
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9',
			r == '.', r == '-', r == '_':
			b.WriteRune(r)
		default:
			b.WriteByte('-')
		}
	}
	return b.String()
}

func urlHashSlug(raw string) string {
	h := sha256.Sum256([]byte(raw))
	return fmt.Sprintf("paper-%x", h[:8])
}

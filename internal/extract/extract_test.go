// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package extract

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/pdiddy/paperbrief/pkg/types"
)

// stubBackend returns canned responses, or errors for the first failN calls.
type stubBackend struct {
	resp  string
	err   error
	failN int
	calls int
}

func (s *stubBackend) Complete(_ context.Context, _ string) (string, error) {
	s.calls++
	if s.failN > 0 {
		s.failN--
		return "", errors.New("connection refused")
	}
	if s.err != nil {
		return "", s.err
	}
	return s.resp, nil
}

func testFigures() []types.Figure {
	return []types.Figure{
		{ID: "S2.F1", CaptionTag: "Figure 1:", CaptionText: "System architecture overview", Position: 0, Class: types.ClassMethod},
		{ID: "S4.F3", CaptionTag: "Figure 3:", CaptionText: "Accuracy comparison with baselines", Position: 2, Class: types.ClassResult},
		{ID: "S4.T1", CaptionTag: "Table 1:", CaptionText: "Dataset statistics", Position: 3, Class: types.ClassTable},
	}
}

const minimalResponse = `{
	"title": "Efficient Paper Processing",
	"authors": ["A. Author", "B. Author"],
	"abstract": "We study pipelines.",
	"contributions": [{"title": "Speed", "content": "It is fast."}],
	"method": {
		"description": "A cascade of fetchers.",
		"key_points": ["cascade", "fallback"],
		"figures": [{"id": "S2.F1", "caption": "Architecture"}]
	},
	"results": {
		"baseline": "prior work",
		"figures": [{"id": "S4.F3", "caption": "Accuracy"}],
		"tables": [{"id": "S4.T1", "caption": "Datasets"}]
	}
}`

func newTestExtractor(b Backend) *Extractor {
	return New(b, nil, types.ExtractionConfig{
		AIConfig:      types.AIConfig{MaxRetries: 2},
		MaxContentLen: 50000,
	})
}

func TestExtractParsesDocument(t *testing.T) {
	ex := newTestExtractor(&stubBackend{resp: minimalResponse})

	doc, err := ex.Extract(context.Background(), "some paper text", types.FormatAbstract, testFigures(), "en")
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}
	if doc.Title != "Efficient Paper Processing" {
		t.Errorf("Title = %q", doc.Title)
	}
	if len(doc.Authors) != 2 {
		t.Errorf("len(Authors) = %d, want 2", len(doc.Authors))
	}
	if doc.Method == nil || len(doc.Method.FigureRefs) != 1 {
		t.Fatalf("Method figure refs = %+v, want 1", doc.Method)
	}
	if doc.Method.FigureRefs[0].FigureID != "S2.F1" {
		t.Errorf("method ref id = %q", doc.Method.FigureRefs[0].FigureID)
	}
	if doc.Results == nil || len(doc.Results.Tables) != 1 {
		t.Fatalf("Results tables = %+v, want 1", doc.Results)
	}
	if doc.Language != "en" {
		t.Errorf("Language = %q, want en", doc.Language)
	}
}

func TestExtractStripsMarkdownFences(t *testing.T) {
	fenced := "Sure, here is the JSON:\n```json\n" + minimalResponse + "\n```\n"
	ex := newTestExtractor(&stubBackend{resp: fenced})

	doc, err := ex.Extract(context.Background(), "text", types.FormatAbstract, testFigures(), "")
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}
	if doc.Title != "Efficient Paper Processing" {
		t.Errorf("Title = %q", doc.Title)
	}
}

func TestExtractMissingTitleIsMalformed(t *testing.T) {
	ex := newTestExtractor(&stubBackend{resp: `{"abstract": "no title here"}`})

	_, err := ex.Extract(context.Background(), "text", types.FormatAbstract, nil, "")
	var exErr *ExtractionError
	if !errors.As(err, &exErr) {
		t.Fatalf("Extract() error = %v, want *ExtractionError", err)
	}
	if exErr.Reason != ReasonMalformedResponse {
		t.Errorf("Reason = %q, want %q", exErr.Reason, ReasonMalformedResponse)
	}
}

func TestExtractErrorReasons(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Reason
	}{
		{"network failure", errors.New("dial tcp: connection refused"), ReasonModelUnreachable},
		{"context length", errors.New("this model's maximum context length is 128000 tokens"), ReasonContentTooLong},
		{"too long variant", errors.New("prompt is too long"), ReasonContentTooLong},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ex := newTestExtractor(&stubBackend{err: tt.err})

			_, err := ex.Extract(context.Background(), "text", types.FormatAbstract, nil, "")
			var exErr *ExtractionError
			if !errors.As(err, &exErr) {
				t.Fatalf("Extract() error = %v, want *ExtractionError", err)
			}
			if exErr.Reason != tt.want {
				t.Errorf("Reason = %q, want %q", exErr.Reason, tt.want)
			}
		})
	}
}

func TestExtractRetriesTransientFailures(t *testing.T) {
	oldBase := backoffBase
	backoffBase = time.Millisecond
	defer func() { backoffBase = oldBase }()

	backend := &stubBackend{resp: minimalResponse, failN: 2}
	ex := newTestExtractor(backend)

	_, err := ex.Extract(context.Background(), "text", types.FormatAbstract, testFigures(), "")
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}
	if backend.calls != 3 {
		t.Errorf("calls = %d, want 3", backend.calls)
	}
}

func TestExtractDropsUnresolvableRefs(t *testing.T) {
	resp := `{
		"title": "T",
		"method": {"figures": [{"id": "NOPE.F9", "caption": "invented"}, {"id": "S2.F1"}]}
	}`
	ex := newTestExtractor(&stubBackend{resp: resp})

	doc, err := ex.Extract(context.Background(), "text", types.FormatAbstract, testFigures(), "")
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}
	refs := doc.FigureRefs()
	if len(refs) != 1 || refs[0].FigureID != "S2.F1" {
		t.Errorf("FigureRefs() = %+v, want only S2.F1", refs)
	}
}

func TestResolverMatchesByTagAndCaption(t *testing.T) {
	res := newResolver(testFigures())

	tests := []struct {
		name string
		ref  rawFigureRef
		want string
		ok   bool
	}{
		{"exact id", rawFigureRef{ID: "S2.F1"}, "S2.F1", true},
		{"id case insensitive", rawFigureRef{ID: "s2.f1"}, "S2.F1", true},
		{"caption tag as id", rawFigureRef{ID: "Figure 3"}, "S4.F3", true},
		{"abbreviated tag", rawFigureRef{ID: "Fig. 3:"}, "S4.F3", true},
		{"caption text", rawFigureRef{Caption: "Dataset statistics"}, "S4.T1", true},
		{"no match", rawFigureRef{ID: "F99", Caption: "never seen"}, "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := res.resolve(tt.ref)
			if ok != tt.ok {
				t.Fatalf("resolve() ok = %v, want %v", ok, tt.ok)
			}
			if ok && got.FigureID != tt.want {
				t.Errorf("resolve() id = %q, want %q", got.FigureID, tt.want)
			}
		})
	}
}

func TestResolveTablesRejectsNonTables(t *testing.T) {
	res := newResolver(testFigures())

	out := res.resolveTables([]rawFigureRef{
		{ID: "S4.T1"},
		{ID: "S2.F1"}, // figure smuggled into tables
	})
	if len(out) != 1 || out[0].FigureID != "S4.T1" {
		t.Errorf("resolveTables() = %+v, want only S4.T1", out)
	}
}

func TestFlexStringsAcceptsBothShapes(t *testing.T) {
	tests := []struct {
		name string
		json string
		want int
	}{
		{"array", `{"title": "T", "authors": ["A", "B", "C"]}`, 3},
		{"comma string", `{"title": "T", "authors": "A. One, B. Two"}`, 2},
		{"semicolon string", `{"title": "T", "authors": "A. One; B. Two"}`, 2},
		{"empty string", `{"title": "T", "authors": ""}`, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc, err := parseResponse(tt.json, nil)
			if err != nil {
				t.Fatalf("parseResponse() error = %v", err)
			}
			if len(doc.Authors) != tt.want {
				t.Errorf("len(Authors) = %d, want %d", len(doc.Authors), tt.want)
			}
		})
	}
}

func TestTruncateRespectsRuneBoundary(t *testing.T) {
	s := strings.Repeat("日", 100)
	got := truncate(s, 10)
	if len([]rune(got)) != 10 {
		t.Errorf("truncate() = %d runes, want 10", len([]rune(got)))
	}
}

func TestTranslationFailureKeepsOriginal(t *testing.T) {
	oldBase := backoffBase
	backoffBase = time.Millisecond
	defer func() { backoffBase = oldBase }()

	// Main backend succeeds, then translation calls fail forever.
	backend := &translatingBackend{extractResp: minimalResponse, translateErr: errors.New("boom")}
	ex := New(backend, nil, types.ExtractionConfig{
		AIConfig:      types.AIConfig{MaxRetries: 1},
		MaxContentLen: 50000,
	})

	doc, err := ex.Extract(context.Background(), "text", types.FormatAbstract, testFigures(), "zh")
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}
	if doc.Title != "Efficient Paper Processing" {
		t.Errorf("Title = %q, want original", doc.Title)
	}
	if doc.Language != "en" {
		t.Errorf("Language = %q, want en after failed translation", doc.Language)
	}
}

func TestTranslationSuccessSetsLanguage(t *testing.T) {
	translated := `{"title": "高效论文处理", "authors": ["A. Author"], "abstract": "摘要"}`
	backend := &translatingBackend{extractResp: minimalResponse, translateResp: translated}
	ex := New(backend, nil, types.ExtractionConfig{
		AIConfig:      types.AIConfig{MaxRetries: 1},
		MaxContentLen: 50000,
	})

	doc, err := ex.Extract(context.Background(), "text", types.FormatAbstract, testFigures(), "zh")
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}
	if doc.Title != "高效论文处理" {
		t.Errorf("Title = %q, want translated", doc.Title)
	}
	if doc.Language != "zh" {
		t.Errorf("Language = %q, want zh", doc.Language)
	}
}

// translatingBackend answers the first call with the extraction response and
// later calls with the translation response or error.
type translatingBackend struct {
	extractResp   string
	translateResp string
	translateErr  error
	calls         int
}

func (b *translatingBackend) Complete(_ context.Context, _ string) (string, error) {
	b.calls++
	if b.calls == 1 {
		return b.extractResp, nil
	}
	if b.translateErr != nil {
		return "", b.translateErr
	}
	return b.translateResp, nil
}

func TestPromptIncludesFigureManifest(t *testing.T) {
	prompt, err := renderExtractionPrompt("content here", testFigures())
	if err != nil {
		t.Fatalf("renderExtractionPrompt() error = %v", err)
	}
	for _, want := range []string{"S2.F1", "Figure 3:", "Table 1:", "content here"} {
		if !strings.Contains(prompt, want) {
			t.Errorf("prompt missing %q", want)
		}
	}
}

func TestPromptOmitsManifestWhenNoFigures(t *testing.T) {
	prompt, err := renderExtractionPrompt("content", nil)
	if err != nil {
		t.Fatalf("renderExtractionPrompt() error = %v", err)
	}
	if strings.Contains(prompt, "AVAILABLE FIGURES") {
		t.Error("prompt should not advertise figures when there are none")
	}
}

func TestParseTargetLanguage(t *testing.T) {
	tests := []struct {
		in   string
		want bool
	}{
		{"", false},
		{"en", false},
		{"en-US", false},
		{"zh", true},
		{"zh-CN", true},
		{"ja", true},
		{"not-a-lang-tag-%%%", false},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprintf("%q", tt.in), func(t *testing.T) {
			_, got := parseTargetLanguage(tt.in)
			if got != tt.want {
				t.Errorf("parseTargetLanguage(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package figures

import (
	"testing"

	"github.com/pdiddy/paperbrief/pkg/types"
)

const latexmlDoc = `<!DOCTYPE html>
<html><body><div class="ltx_page_main">
<h2>1 Introduction</h2>
<p>Intro text.</p>
<figure id="S2.F1" class="ltx_figure">
<img src="images/fig_1.png">
<figcaption class="ltx_caption"><span class="ltx_tag ltx_tag_figure">Figure 1:</span> Overview of our proposed pipeline architecture.</figcaption>
</figure>
<figure id="S3.F2" class="ltx_figure">
<img src="images/fig_2.png">
<img src="images/fig_3.png">
<figcaption class="ltx_caption"><span class="ltx_tag ltx_tag_figure">Figure 2:</span> Qualitative examples.</figcaption>
</figure>
<h2>4 Experiments and Results</h2>
<figure id="S4.F3" class="ltx_figure">
<img src="images/fig_4.png">
<figcaption class="ltx_caption"><span class="ltx_tag ltx_tag_figure">Figure 3:</span> Accuracy comparison with baselines.</figcaption>
</figure>
<figure id="S4.T1" class="ltx_table">
<img src="images/fig_5.png">
<figcaption class="ltx_caption"><span class="ltx_tag ltx_tag_table">Table 1:</span> Dataset statistics.</figcaption>
</figure>
</div></body></html>`

func manifest(paths ...string) []types.RawImage {
	imgs := make([]types.RawImage, len(paths))
	for i, p := range paths {
		imgs[i] = types.RawImage{LocalPath: p, FigureIndex: i + 1}
	}
	return imgs
}

func TestExtractFigures(t *testing.T) {
	figs, layout := Extract(latexmlDoc, manifest(
		"images/fig_1.png", "images/fig_2.png", "images/fig_3.png",
		"images/fig_4.png", "images/fig_5.png",
	))

	if len(figs) != 4 {
		t.Fatalf("len(figs) = %d, want 4", len(figs))
	}

	first := figs[0]
	if first.ID != "S2.F1" {
		t.Errorf("figs[0].ID = %q", first.ID)
	}
	if first.CaptionTag != "Figure 1:" {
		t.Errorf("figs[0].CaptionTag = %q", first.CaptionTag)
	}
	if first.CaptionText != "Overview of our proposed pipeline architecture." {
		t.Errorf("figs[0].CaptionText = %q", first.CaptionText)
	}
	if first.Position != 0 {
		t.Errorf("figs[0].Position = %d", first.Position)
	}

	// Sub-figures collapse into one entry with both image paths.
	if len(figs[1].LocalImagePaths) != 2 {
		t.Errorf("figs[1] image paths = %v, want 2 entries", figs[1].LocalImagePaths)
	}

	// The results heading precedes the third figure.
	if layout.ResultsStart != 2 {
		t.Errorf("ResultsStart = %d, want 2", layout.ResultsStart)
	}
}

func TestExtractWithoutResultsHeading(t *testing.T) {
	doc := `<html><body><figure><img src="a.png"><figcaption>Figure 1: X.</figcaption></figure></body></html>`
	_, layout := Extract(doc, nil)
	if layout.ResultsStart != -1 {
		t.Errorf("ResultsStart = %d, want -1", layout.ResultsStart)
	}
}

func TestExtractCaptionWithoutTagSpan(t *testing.T) {
	doc := `<html><body>
<figure><img src="a.png"><figcaption>Figure 7: Plain caption markup.</figcaption></figure>
<figure><img src="b.png"><figcaption>No enumerator at all.</figcaption></figure>
</body></html>`
	figs, _ := Extract(doc, nil)
	if len(figs) != 2 {
		t.Fatalf("len(figs) = %d, want 2", len(figs))
	}
	if figs[0].CaptionTag != "Figure 7:" || figs[0].CaptionText != "Plain caption markup." {
		t.Errorf("split = (%q, %q)", figs[0].CaptionTag, figs[0].CaptionText)
	}
	if figs[1].CaptionTag != "" || figs[1].CaptionText != "No enumerator at all." {
		t.Errorf("untagged = (%q, %q)", figs[1].CaptionTag, figs[1].CaptionText)
	}
	// Markup without ids gets position-derived ones.
	if figs[0].ID != "F1" || figs[1].ID != "F2" {
		t.Errorf("ids = %q, %q", figs[0].ID, figs[1].ID)
	}
}

func TestExtractStandaloneImage(t *testing.T) {
	doc := `<html><body><p>text</p><img src="images/fig_1.png" alt="teaser shot"></body></html>`
	figs, _ := Extract(doc, manifest("images/fig_1.png"))
	if len(figs) != 1 {
		t.Fatalf("len(figs) = %d, want 1", len(figs))
	}
	if figs[0].CaptionText != "teaser shot" {
		t.Errorf("CaptionText = %q", figs[0].CaptionText)
	}
}

func TestExtractRespectsManifest(t *testing.T) {
	// Images not in the manifest (e.g. failed downloads) are excluded.
	figs, _ := Extract(latexmlDoc, manifest("images/fig_1.png"))
	for _, fig := range figs {
		for _, p := range fig.LocalImagePaths {
			if p != "images/fig_1.png" {
				t.Errorf("unexpected image path %q", p)
			}
		}
	}
}

func TestExtractGarbageInput(t *testing.T) {
	figs, layout := Extract("not html at all {{{", nil)
	if len(figs) != 0 {
		t.Errorf("len(figs) = %d, want 0", len(figs))
	}
	if layout.ResultsStart != -1 {
		t.Errorf("ResultsStart = %d, want -1", layout.ResultsStart)
	}
}

func TestClassify(t *testing.T) {
	layout := DocLayout{ResultsStart: 3}
	tests := []struct {
		name string
		fig  types.Figure
		want types.FigureClass
	}{
		{
			name: "table tag wins",
			fig:  types.Figure{CaptionTag: "Table 1:", CaptionText: "Architecture overview"},
			want: types.ClassTable,
		},
		{
			name: "method keyword",
			fig:  types.Figure{CaptionTag: "Figure 2:", CaptionText: "Overview of our proposed pipeline architecture"},
			want: types.ClassMethod,
		},
		{
			name: "result keyword",
			fig:  types.Figure{CaptionTag: "Figure 3:", CaptionText: "Accuracy on held-out data"},
			want: types.ClassResult,
		},
		{
			name: "result keyword beats method keyword",
			fig:  types.Figure{CaptionTag: "Figure 4:", CaptionText: "Performance comparison of architecture variants"},
			want: types.ClassResult,
		},
		{
			name: "vs keyword",
			fig:  types.Figure{CaptionTag: "Figure 5:", CaptionText: "Ours vs baseline on long inputs"},
			want: types.ClassResult,
		},
		{
			name: "position before results marker",
			fig:  types.Figure{CaptionTag: "Figure 1:", CaptionText: "Qualitative samples", Position: 1},
			want: types.ClassMethod,
		},
		{
			name: "position after results marker",
			fig:  types.Figure{CaptionTag: "Figure 6:", CaptionText: "Qualitative samples", Position: 4},
			want: types.ClassResult,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Classify(tt.fig, layout); got != tt.want {
				t.Errorf("Classify() = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestClassifyNoSignals(t *testing.T) {
	fig := types.Figure{CaptionTag: "Figure 1:", CaptionText: "Qualitative samples", Position: 0}
	if got := Classify(fig, DocLayout{ResultsStart: -1}); got != types.ClassUnclassified {
		t.Errorf("Classify() = %s, want unclassified", got)
	}
}

func TestClassifyDeterministic(t *testing.T) {
	fig := types.Figure{CaptionTag: "Figure 2:", CaptionText: "Overview of our proposed pipeline architecture", Position: 1}
	layout := DocLayout{ResultsStart: 3}
	first := Classify(fig, layout)
	for i := 0; i < 100; i++ {
		if got := Classify(fig, layout); got != first {
			t.Fatalf("classification changed on run %d: %s != %s", i, got, first)
		}
	}
}

func TestClassifyAllAnnotatesCopies(t *testing.T) {
	figs := []types.Figure{
		{CaptionTag: "Figure 1:", CaptionText: "System architecture"},
		{CaptionTag: "Table 1:", CaptionText: "Datasets"},
	}
	out := ClassifyAll(figs, DocLayout{ResultsStart: -1})
	if out[0].Class != types.ClassMethod || out[1].Class != types.ClassTable {
		t.Errorf("classes = %s, %s", out[0].Class, out[1].Class)
	}
	if figs[0].Class != types.ClassUnclassified {
		t.Error("input slice was mutated")
	}
}

// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package figures

import (
	"strings"

	"github.com/pdiddy/paperbrief/pkg/types"
)

// Keyword rules for caption-based classification. Result keywords take
// precedence: a caption mentioning "comparison" stays out of the method
// bucket even when it also says "architecture".
var (
	methodKeywords = []string{
		"architecture", "overview", "pipeline", "framework", "design",
		"workflow", "algorithm", "structure", "diagram",
	}
	resultKeywords = []string{
		"accuracy", "comparison", "performance", "speedup", "benchmark",
		"evaluation", "throughput", "latency", " vs ", " vs.",
	}
)

// Classify assigns an advisory class to one figure. It is a pure,
// deterministic function of the caption and the figure's position relative
// to the first results-section marker; identical inputs always produce
// identical output. The result is metadata for rendering placement, never
// validated or retried.
func Classify(fig types.Figure, layout DocLayout) types.FigureClass {
	if strings.HasPrefix(strings.ToLower(fig.CaptionTag), "table") {
		return types.ClassTable
	}

	caption := " " + strings.ToLower(fig.CaptionText) + " "
	if containsAny(caption, resultKeywords) {
		return types.ClassResult
	}
	if containsAny(caption, methodKeywords) {
		return types.ClassMethod
	}

	if layout.ResultsStart >= 0 {
		if fig.Position >= layout.ResultsStart {
			return types.ClassResult
		}
		return types.ClassMethod
	}

	return types.ClassUnclassified
}

// ClassifyAll returns a copy of figs with Class assigned. Figures are never
// mutated after this point.
func ClassifyAll(figs []types.Figure, layout DocLayout) []types.Figure {
	out := make([]types.Figure, len(figs))
	for i, fig := range figs {
		fig.Class = Classify(fig, layout)
		out[i] = fig
	}
	return out
}

func containsAny(s string, needles []string) bool {
	for _, needle := range needles {
		if strings.Contains(s, needle) {
			return true
		}
	}
	return false
}

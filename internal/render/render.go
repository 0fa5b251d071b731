// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package render

import (
	"fmt"
	"path/filepath"

	"github.com/pdiddy/paperbrief/pkg/types"
)

// Render writes the configured artifact formats into outDir and returns the
// paths written, summary.html first. An unknown format name is an error
// before anything is written.
func Render(doc *types.ExtractedDocument, figs []types.Figure, outDir string, cfg types.RenderConfig) ([]string, error) {
	formats := cfg.Formats
	if len(formats) == 0 {
		formats = []string{"html"}
	}
	for _, format := range formats {
		switch format {
		case "html", "pdf":
		default:
			return nil, fmt.Errorf("unknown output format %q", format)
		}
	}

	var paths []string
	for _, format := range formats {
		switch format {
		case "html":
			path := filepath.Join(outDir, "summary.html")
			if err := HTML(doc, figs, path); err != nil {
				return paths, err
			}
			paths = append(paths, path)
		case "pdf":
			path := filepath.Join(outDir, "summary.pdf")
			if err := PDF(doc, figs, path); err != nil {
				return paths, err
			}
			paths = append(paths, path)
		}
	}
	return paths, nil
}

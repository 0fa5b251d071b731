// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package pipeline

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/paperbrief/pkg/types"
)

const (
	metadataFile = "paper.yaml"
	snapshotFile = "document.json"
)

// paperMetadata is the human-readable sidecar written next to the artifacts.
type paperMetadata struct {
	PaperID    string         `yaml:"paper_id"`
	Title      string         `yaml:"title"`
	Authors    []string       `yaml:"authors,omitempty"`
	SourceURL  string         `yaml:"source_url,omitempty"`
	FormatUsed types.Format   `yaml:"format_used"`
	Language   string         `yaml:"language,omitempty"`
	OutputPath string         `yaml:"output_path,omitempty"`
	Figures    []types.Figure `yaml:"figures,omitempty"`
}

// writeSidecars persists paper.yaml and the document.json snapshot. The
// snapshot is the lossless round-trip form of the extracted document; the
// YAML file is for humans browsing the output directory.
func writeSidecars(outDir string, job *types.ProcessingJob, doc *types.ExtractedDocument, figs []types.Figure) error {
	meta := paperMetadata{
		PaperID:    job.PaperID,
		Title:      doc.Title,
		Authors:    doc.Authors,
		SourceURL:  job.SourceURL,
		FormatUsed: job.FormatUsed,
		Language:   doc.Language,
		OutputPath: job.OutputPath,
		Figures:    figs,
	}
	metaBytes, err := yaml.Marshal(&meta)
	if err != nil {
		return fmt.Errorf("marshaling metadata: %w", err)
	}
	if err := os.WriteFile(filepath.Join(outDir, metadataFile), metaBytes, 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", metadataFile, err)
	}

	docBytes, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling document snapshot: %w", err)
	}
	if err := os.WriteFile(filepath.Join(outDir, snapshotFile), docBytes, 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", snapshotFile, err)
	}
	return nil
}

// ReadSnapshot loads the document.json snapshot from a paper's output
// directory.
func ReadSnapshot(outDir string) (*types.ExtractedDocument, error) {
	data, err := os.ReadFile(filepath.Join(outDir, snapshotFile))
	if err != nil {
		return nil, err
	}
	var doc types.ExtractedDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", snapshotFile, err)
	}
	return &doc, nil
}

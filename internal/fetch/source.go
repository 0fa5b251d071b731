// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package fetch

import (
	"archive/tar"
	"compress/gzip"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/pdiddy/paperbrief/internal/httputil"
	"github.com/pdiddy/paperbrief/pkg/types"
)

// maxSourceFileBytes caps a single .tex member read from the bundle.
const maxSourceFileBytes = 4 << 20

// sourceStrategy fetches the compilable source bundle (arXiv e-print) and
// flattens the main TeX file to text. The bundle is either a gzipped tar or
// a single gzipped .tex file.
type sourceStrategy struct {
	client *http.Client
	cfg    types.FetchConfig
}

func (s *sourceStrategy) Format() types.Format { return types.FormatSource }

func (s *sourceStrategy) Attempt(ctx context.Context, req Request) (*types.FetchResult, error) {
	if req.Type != InputArxiv {
		return nil, errNotApplicable
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, arxivEPrintBase+req.Normalized, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	httpReq.Header.Set("User-Agent", s.cfg.UserAgent)

	resp, err := httputil.DoWithRetry(ctx, s.client, httpReq, 0)
	if err != nil {
		return nil, fmt.Errorf("fetching source bundle: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("HTTP %d for source bundle %s", resp.StatusCode, req.Normalized)
	}

	gz, err := gzip.NewReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("source bundle is not gzipped: %w", err)
	}
	defer gz.Close()

	content, err := mainTexFromTar(gz)
	if err == nil {
		return &types.FetchResult{RawContent: flattenTeX(content)}, nil
	}

	// Not a tar archive: some e-prints are a single gzipped .tex file.
	// The gzip reader is already partially consumed, so re-request.
	httpReq2, err2 := http.NewRequestWithContext(ctx, http.MethodGet, arxivEPrintBase+req.Normalized, nil)
	if err2 != nil {
		return nil, err
	}
	httpReq2.Header.Set("User-Agent", s.cfg.UserAgent)
	resp2, err2 := httputil.DoWithRetry(ctx, s.client, httpReq2, 0)
	if err2 != nil {
		return nil, err
	}
	defer resp2.Body.Close()

	gz2, err2 := gzip.NewReader(resp2.Body)
	if err2 != nil {
		return nil, err
	}
	defer gz2.Close()

	data, err2 := io.ReadAll(io.LimitReader(gz2, maxSourceFileBytes))
	if err2 != nil || len(data) == 0 {
		return nil, fmt.Errorf("reading source bundle: no usable TeX content")
	}
	return &types.FetchResult{RawContent: flattenTeX(string(data))}, nil
}

// mainTexFromTar picks the most plausible main TeX file: one whose name
// contains "main", else the first containing \documentclass, else the first
// .tex member.
func mainTexFromTar(r io.Reader) (string, error) {
	tr := tar.NewReader(r)

	var firstTex, documentTex, mainTex string
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", fmt.Errorf("reading tar: %w", err)
		}
		if hdr.Typeflag != tar.TypeReg || !strings.HasSuffix(hdr.Name, ".tex") {
			continue
		}
		data, err := io.ReadAll(io.LimitReader(tr, maxSourceFileBytes))
		if err != nil {
			continue
		}
		content := string(data)
		if firstTex == "" {
			firstTex = content
		}
		if documentTex == "" && strings.Contains(content, `\documentclass`) {
			documentTex = content
		}
		if strings.Contains(strings.ToLower(hdr.Name), "main") {
			mainTex = content
			break
		}
	}

	switch {
	case mainTex != "":
		return mainTex, nil
	case documentTex != "":
		return documentTex, nil
	case firstTex != "":
		return firstTex, nil
	default:
		return "", fmt.Errorf("no .tex file in source bundle")
	}
}

// flattenTeX strips comments and collapses the most common markup so the
// text reads as prose. It does not attempt real LaTeX rendering.
func flattenTeX(src string) string {
	var out []string
	for _, line := range strings.Split(src, "\n") {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "%") {
			continue
		}
		// Drop trailing unescaped comments.
		if i := strings.Index(trimmed, "%"); i > 0 && trimmed[i-1] != '\\' {
			trimmed = strings.TrimSpace(trimmed[:i])
		}
		out = append(out, trimmed)
	}
	return strings.TrimSpace(strings.Join(out, "\n"))
}

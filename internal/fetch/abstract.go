// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package fetch

import (
	"context"
	"encoding/xml"
	"fmt"
	"net/http"
	"strings"

	"github.com/pdiddy/paperbrief/internal/httputil"
	"github.com/pdiddy/paperbrief/pkg/types"
)

// abstractStrategy is the last resort: title, authors, and abstract from the
// arXiv Atom API. It yields no body text and no images, but it lets a job
// complete with minimal metadata when every richer strategy has failed.
type abstractStrategy struct {
	client *http.Client
	cfg    types.FetchConfig
}

func (s *abstractStrategy) Format() types.Format { return types.FormatAbstract }

// arXiv Atom feed structures.
type arxivFeed struct {
	Entries []arxivEntry `xml:"entry"`
}

type arxivEntry struct {
	Title   string        `xml:"title"`
	Summary string        `xml:"summary"`
	Authors []arxivAuthor `xml:"author"`
}

type arxivAuthor struct {
	Name string `xml:"name"`
}

func (s *abstractStrategy) Attempt(ctx context.Context, req Request) (*types.FetchResult, error) {
	if req.Type != InputArxiv {
		return nil, errNotApplicable
	}

	apiURL := fmt.Sprintf("%s?id_list=%s", arxivAPIBase, req.Normalized)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, apiURL, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	httpReq.Header.Set("User-Agent", s.cfg.UserAgent)

	resp, err := httputil.DoWithRetry(ctx, s.client, httpReq, 0)
	if err != nil {
		return nil, fmt.Errorf("arXiv API request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("arXiv API returned HTTP %d", resp.StatusCode)
	}

	var feed arxivFeed
	if err := xml.NewDecoder(resp.Body).Decode(&feed); err != nil {
		return nil, fmt.Errorf("parsing arXiv response: %w", err)
	}
	if len(feed.Entries) == 0 {
		return nil, fmt.Errorf("no entries found for arXiv ID %s", req.Normalized)
	}

	entry := feed.Entries[0]
	var b strings.Builder
	b.WriteString(strings.TrimSpace(entry.Title))
	b.WriteString("\n\n")
	names := make([]string, 0, len(entry.Authors))
	for _, a := range entry.Authors {
		names = append(names, strings.TrimSpace(a.Name))
	}
	b.WriteString(strings.Join(names, ", "))
	b.WriteString("\n\n")
	b.WriteString(strings.TrimSpace(entry.Summary))

	return &types.FetchResult{RawContent: b.String()}, nil
}

// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package fetch

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/rs/zerolog/log"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/pdiddy/paperbrief/internal/httputil"
	"github.com/pdiddy/paperbrief/pkg/types"
)

// htmlStrategy fetches the structured HTML render of a paper. For arXiv
// inputs this is the arxiv.org/html endpoint whose LaTeXML markup carries
// figure containers and captions; for direct URLs it is the page itself.
// Image references are downloaded and the markup rewritten to point at the
// local copies, so downstream stages never touch the network.
type htmlStrategy struct {
	client *http.Client
	cfg    types.FetchConfig
}

func (s *htmlStrategy) Format() types.Format { return types.FormatHTML }

func (s *htmlStrategy) Attempt(ctx context.Context, req Request) (*types.FetchResult, error) {
	var pageURL string
	switch req.Type {
	case InputArxiv:
		pageURL = arxivHTMLBase + req.Normalized
	case InputURL:
		pageURL = req.Normalized
	default:
		return nil, errNotApplicable
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	httpReq.Header.Set("User-Agent", s.cfg.UserAgent)

	resp, err := httputil.DoWithRetry(ctx, s.client, httpReq, 0)
	if err != nil {
		return nil, fmt.Errorf("fetching HTML %s: %w", pageURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("HTTP %d from %s", resp.StatusCode, pageURL)
	}

	doc, err := html.Parse(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("parsing HTML: %w", err)
	}

	content := contentRoot(doc, req.Type)
	if content == nil {
		return nil, fmt.Errorf("no content root found in %s", pageURL)
	}

	var images []types.RawImage
	if req.OutputDir != "" {
		dl := newImageDownloader(s.client, s.cfg, req.OutputDir)
		images = rewriteImages(ctx, dl, content, pageURL, req.Normalized)
	}

	var buf bytes.Buffer
	if err := html.Render(&buf, content); err != nil {
		return nil, fmt.Errorf("rendering content: %w", err)
	}

	return &types.FetchResult{RawContent: buf.String(), Images: images}, nil
}

// contentRoot picks the main content node. ArXiv's LaTeXML pages wrap the
// article in div.ltx_page_main; generic pages fall back to main, article,
// then body.
func contentRoot(doc *html.Node, inputType InputType) *html.Node {
	if inputType == InputArxiv {
		if n := findByClass(doc, "ltx_page_main"); n != nil {
			return n
		}
	}
	for _, tag := range []atom.Atom{atom.Main, atom.Article, atom.Body} {
		if n := findByTag(doc, tag); n != nil {
			return n
		}
	}
	return nil
}

// rewriteImages downloads every img reference under root and points the src
// attribute at the local copy. Failed downloads leave the node untouched and
// are dropped from the manifest.
func rewriteImages(ctx context.Context, dl *imageDownloader, root *html.Node, baseURL, paperID string) []types.RawImage {
	var images []types.RawImage
	walkNodes(root, func(n *html.Node) {
		if n.Type != html.ElementNode || n.DataAtom != atom.Img {
			return
		}
		for i, attr := range n.Attr {
			if attr.Key != "src" || attr.Val == "" {
				continue
			}
			img, err := dl.download(ctx, attr.Val, baseURL)
			if err != nil {
				log.Warn().Err(err).Str("paper", paperID).Str("src", attr.Val).
					Msg("image download failed, dropping reference")
				break
			}
			n.Attr[i].Val = img.LocalPath
			if img.FigureIndex > 0 {
				images = append(images, img)
			}
			break
		}
	})
	return images
}

// walkNodes visits every node in document order.
func walkNodes(n *html.Node, visit func(*html.Node)) {
	visit(n)
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		walkNodes(c, visit)
	}
}

// findByTag returns the first element with the given tag, depth-first.
func findByTag(n *html.Node, tag atom.Atom) *html.Node {
	if n.Type == html.ElementNode && n.DataAtom == tag {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if res := findByTag(c, tag); res != nil {
			return res
		}
	}
	return nil
}

// findByClass returns the first element whose class attribute contains the
// given class token.
func findByClass(n *html.Node, class string) *html.Node {
	if n.Type == html.ElementNode && hasClass(n, class) {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if res := findByClass(c, class); res != nil {
			return res
		}
	}
	return nil
}

func hasClass(n *html.Node, class string) bool {
	for _, attr := range n.Attr {
		if attr.Key != "class" {
			continue
		}
		for _, token := range strings.Fields(attr.Val) {
			if token == class {
				return true
			}
		}
	}
	return false
}


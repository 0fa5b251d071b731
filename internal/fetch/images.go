// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package fetch

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/pdiddy/paperbrief/pkg/types"
)

const imagesDir = "images"

// imageExts maps content types to file extensions. Anything else falls back
// to the URL path extension, then ".png".
var imageExts = map[string]string{
	"image/png":     ".png",
	"image/jpeg":    ".jpg",
	"image/gif":     ".gif",
	"image/svg+xml": ".svg",
	"image/webp":    ".webp",
}

// imageDownloader persists remote images for one paper. Each remote URL is
// downloaded at most once; a reference that fails validation is dropped,
// never fatal to the fetch.
type imageDownloader struct {
	client    *http.Client
	cfg       types.FetchConfig
	dir       string
	seen      map[string]string
	nextIndex int
}

func newImageDownloader(client *http.Client, cfg types.FetchConfig, paperDir string) *imageDownloader {
	return &imageDownloader{
		client:    client,
		cfg:       cfg,
		dir:       filepath.Join(paperDir, imagesDir),
		seen:      make(map[string]string),
		nextIndex: 1,
	}
}

// download fetches imgRef (resolved against baseURL when relative) and
// returns the local path plus the 1-based figure index assigned to it.
// Repeat references return the already-downloaded path.
func (d *imageDownloader) download(ctx context.Context, imgRef, baseURL string) (types.RawImage, error) {
	if strings.HasPrefix(imgRef, "data:") {
		return types.RawImage{}, fmt.Errorf("skipping data URL image")
	}

	absURL := imgRef
	if !strings.HasPrefix(imgRef, "http://") && !strings.HasPrefix(imgRef, "https://") {
		base, err := url.Parse(baseURL)
		if err != nil {
			return types.RawImage{}, fmt.Errorf("parsing base URL: %w", err)
		}
		rel, err := url.Parse(imgRef)
		if err != nil {
			return types.RawImage{}, fmt.Errorf("parsing image ref %q: %w", imgRef, err)
		}
		absURL = base.ResolveReference(rel).String()
	}

	if local, ok := d.seen[absURL]; ok {
		return types.RawImage{RemoteRef: imgRef, LocalPath: local}, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, absURL, nil)
	if err != nil {
		return types.RawImage{}, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("User-Agent", d.cfg.UserAgent)

	resp, err := d.client.Do(req)
	if err != nil {
		return types.RawImage{}, fmt.Errorf("downloading image: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return types.RawImage{}, fmt.Errorf("HTTP %d for image %s", resp.StatusCode, absURL)
	}

	contentType := strings.ToLower(resp.Header.Get("Content-Type"))
	if i := strings.Index(contentType, ";"); i >= 0 {
		contentType = strings.TrimSpace(contentType[:i])
	}
	ext, ok := imageExts[contentType]
	if !ok {
		if !strings.HasPrefix(contentType, "image/") && contentType != "" {
			return types.RawImage{}, fmt.Errorf("non-image content type %q for %s", contentType, absURL)
		}
		ext = extFromURL(absURL)
	}

	// Read with a hard cap; an oversized image is dropped rather than
	// truncated.
	data, err := io.ReadAll(io.LimitReader(resp.Body, d.cfg.MaxImageBytes+1))
	if err != nil {
		return types.RawImage{}, fmt.Errorf("reading image body: %w", err)
	}
	if int64(len(data)) > d.cfg.MaxImageBytes {
		return types.RawImage{}, fmt.Errorf("image %s exceeds %d byte limit", absURL, d.cfg.MaxImageBytes)
	}

	name := fmt.Sprintf("fig_%d%s", d.nextIndex, ext)
	local := filepath.Join(d.dir, name)
	if err := os.WriteFile(local, data, 0o644); err != nil {
		return types.RawImage{}, fmt.Errorf("writing image %s: %w", local, err)
	}

	img := types.RawImage{RemoteRef: imgRef, LocalPath: local, FigureIndex: d.nextIndex}
	d.seen[absURL] = local
	d.nextIndex++

	log.Debug().Str("url", absURL).Str("path", local).Msg("downloaded image")
	return img, nil
}

func extFromURL(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ".png"
	}
	switch ext := strings.ToLower(path.Ext(u.Path)); ext {
	case ".png", ".jpg", ".jpeg", ".gif", ".svg", ".webp":
		return ext
	default:
		return ".png"
	}
}

// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package ocr wraps the Tesseract engine for the PDF fallback path. It
// requires a system Tesseract installation; when that is unavailable the
// fetcher simply runs without OCR.
package ocr

import (
	"fmt"
	"strings"

	"github.com/otiai10/gosseract/v2"
)

// Client performs text recognition on image bytes. Close releases the
// underlying Tesseract resources.
type Client struct {
	client *gosseract.Client
}

// New creates an OCR client for the given "+"-separated Tesseract language
// list (e.g. "eng" or "eng+chi_sim"). Empty defaults to English.
func New(languages string) (*Client, error) {
	c := gosseract.NewClient()
	if languages == "" {
		languages = "eng"
	}
	if err := c.SetLanguage(strings.Split(languages, "+")...); err != nil {
		c.Close()
		return nil, fmt.Errorf("setting OCR languages %q: %w", languages, err)
	}
	return &Client{client: c}, nil
}

// RecognizeImage runs OCR over one image (PNG, JPEG, TIFF) and returns the
// trimmed text.
func (c *Client) RecognizeImage(imageData []byte) (string, error) {
	if err := c.client.SetImageFromBytes(imageData); err != nil {
		return "", fmt.Errorf("setting OCR image: %w", err)
	}
	text, err := c.client.Text()
	if err != nil {
		return "", fmt.Errorf("recognizing text: %w", err)
	}
	return strings.TrimSpace(text), nil
}

// Close releases Tesseract resources.
func (c *Client) Close() error {
	if c.client == nil {
		return nil
	}
	return c.client.Close()
}

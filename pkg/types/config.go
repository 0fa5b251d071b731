// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import "time"

// HTTPConfig holds shared HTTP settings used by stages that make network
// requests.
type HTTPConfig struct {
	// Timeout is the HTTP request timeout.
	Timeout time.Duration `json:"timeout" yaml:"timeout"`

	// UserAgent is the User-Agent header sent with HTTP requests
	// (e.g. "paperbrief/0.1").
	UserAgent string `json:"user_agent" yaml:"user_agent"`
}

// AIConfig holds shared settings for stages that call a language-model API.
type AIConfig struct {
	// Model is the model identifier (e.g. "gpt-4-turbo").
	Model string `json:"model" yaml:"model"`

	// BaseURL is the OpenAI-compatible endpoint. Empty means the default
	// public endpoint.
	BaseURL string `json:"base_url,omitempty" yaml:"base_url,omitempty"`

	// APIKey is the authentication key for the API.
	APIKey string `json:"api_key,omitempty" yaml:"api_key,omitempty"`

	// MaxRetries is the number of retry attempts for failed API calls
	// (default 3).
	MaxRetries int `json:"max_retries" yaml:"max_retries"`
}

// FetchConfig holds settings for the source-fetch stage.
type FetchConfig struct {
	HTTPConfig `yaml:",inline"`

	// MinContentLen is the threshold below which a strategy's output is
	// treated as trivial and the cascade moves on (default 200).
	MinContentLen int `json:"min_content_len" yaml:"min_content_len"`

	// MaxImageBytes caps a single image download (default 10 MiB).
	// Oversized images are dropped, not fatal.
	MaxImageBytes int64 `json:"max_image_bytes" yaml:"max_image_bytes"`

	// EnableOCR turns on the OCR fallback for PDFs whose extracted text
	// is sparse. Requires a Tesseract installation.
	EnableOCR bool `json:"enable_ocr" yaml:"enable_ocr"`

	// OCRLanguages is the "+"-separated Tesseract language list
	// (default "eng").
	OCRLanguages string `json:"ocr_languages" yaml:"ocr_languages"`
}

// ExtractionConfig holds settings for the structured-extraction stage.
type ExtractionConfig struct {
	AIConfig `yaml:",inline"`

	// MaxContentLen truncates paper content before submission; content is
	// never sent unbounded (default 50000 runes).
	MaxContentLen int `json:"max_content_len" yaml:"max_content_len"`

	// TranslateModel overrides Model for the translation pass.
	TranslateModel string `json:"translate_model,omitempty" yaml:"translate_model,omitempty"`
}

// RenderConfig holds settings for output generation.
type RenderConfig struct {
	// Formats lists the outputs to produce: "html", "pdf", or both.
	Formats []string `json:"formats" yaml:"formats"`
}

// StoreConfig holds settings for the job metadata store.
type StoreConfig struct {
	// Path is the SQLite database file. Empty means outputDir/paperbrief.db.
	Path string `json:"path,omitempty" yaml:"path,omitempty"`
}

// PipelineConfig groups all stage configurations.
type PipelineConfig struct {
	// OutputDir is the base directory; each paper gets OutputDir/<paper_id>/.
	OutputDir string `json:"output_dir" yaml:"output_dir"`

	// Language is the target output language tag (default "en").
	Language string `json:"language" yaml:"language"`

	Fetch      FetchConfig      `json:"fetch" yaml:"fetch"`
	Extraction ExtractionConfig `json:"extraction" yaml:"extraction"`
	Render     RenderConfig     `json:"render" yaml:"render"`
	Store      StoreConfig      `json:"store" yaml:"store"`
}

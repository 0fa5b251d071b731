// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pdiddy/paperbrief/internal/extract"
	"github.com/pdiddy/paperbrief/internal/fetch"
	"github.com/pdiddy/paperbrief/internal/ocr"
	"github.com/pdiddy/paperbrief/internal/pipeline"
	"github.com/pdiddy/paperbrief/internal/store"
	"github.com/pdiddy/paperbrief/pkg/types"
)

const (
	defaultTimeout   = 60 * time.Second
	defaultUserAgent = "paperbrief/0.1"
)

var processCmd = &cobra.Command{
	Use:   "process [identifiers...]",
	Short: "Process papers into structured summaries",
	Long: `Process runs the full pipeline for each identifier: fetch the best
available rendition (HTML, PDF, source bundle, or abstract), extract figures
and structure, and render the summary. Identifiers may be arXiv IDs, arXiv or
direct URLs, or local PDF paths.`,
	RunE: runProcess,
}

func init() {
	processCmd.Flags().String("output-dir", "", "base output directory (default ./papers)")
	processCmd.Flags().String("format", "", "pin one fetch format: "+formatList())
	processCmd.Flags().String("language", "", "output language tag, e.g. en, zh (default en)")
	processCmd.Flags().String("model", "", "language model identifier")
	processCmd.Flags().String("base-url", "", "OpenAI-compatible endpoint base URL")
	processCmd.Flags().StringSlice("render", nil, "artifacts to produce: html, pdf (default html)")
	processCmd.Flags().Bool("ocr", false, "enable OCR fallback for scanned PDFs (requires Tesseract)")
	processCmd.Flags().String("ocr-languages", "eng", "Tesseract language list, e.g. eng+chi_sim")
	processCmd.Flags().Duration("timeout", 0, "HTTP request timeout (default 60s)")

	rootCmd.AddCommand(processCmd)
}

// buildConfig assembles the pipeline configuration from flags, config file,
// and loaded secrets, in that order of precedence.
func buildConfig(cmd *cobra.Command) types.PipelineConfig {
	outputDir, _ := cmd.Flags().GetString("output-dir")
	if outputDir == "" {
		outputDir = viper.GetString("output_dir")
	}
	if outputDir == "" {
		outputDir = "papers"
	}

	language, _ := cmd.Flags().GetString("language")
	if language == "" {
		language = viper.GetString("language")
	}
	if language == "" {
		language = "en"
	}

	timeout, _ := cmd.Flags().GetDuration("timeout")
	if timeout == 0 {
		timeout = defaultTimeout
	}

	model, _ := cmd.Flags().GetString("model")
	if model == "" {
		model = viper.GetString("model")
	}
	baseURL, _ := cmd.Flags().GetString("base-url")
	baseURL = secretDefault("openai-base-url", baseURL)

	formats, _ := cmd.Flags().GetStringSlice("render")
	if len(formats) == 0 {
		formats = viper.GetStringSlice("render_formats")
	}

	enableOCR, _ := cmd.Flags().GetBool("ocr")
	ocrLangs, _ := cmd.Flags().GetString("ocr-languages")

	return types.PipelineConfig{
		OutputDir: outputDir,
		Language:  language,
		Fetch: types.FetchConfig{
			HTTPConfig:   types.HTTPConfig{Timeout: timeout, UserAgent: defaultUserAgent},
			EnableOCR:    enableOCR,
			OCRLanguages: ocrLangs,
		},
		Extraction: types.ExtractionConfig{
			AIConfig: types.AIConfig{
				Model:   model,
				BaseURL: baseURL,
				APIKey:  secretDefault("openai-api-key", os.Getenv("OPENAI_API_KEY")),
			},
			TranslateModel: viper.GetString("translate_model"),
		},
		Render: types.RenderConfig{Formats: formats},
		Store:  types.StoreConfig{Path: filepath.Join(outputDir, "paperbrief.db")},
	}
}

// buildRunner wires the stages into a pipeline runner. The caller owns the
// returned store and must close it.
func buildRunner(cfg types.PipelineConfig) (*pipeline.Runner, *store.Store, error) {
	jobs, err := store.Open(cfg.Store)
	if err != nil {
		return nil, nil, fmt.Errorf("opening job store: %w", err)
	}

	client := &http.Client{Timeout: cfg.Fetch.Timeout}

	var rec fetch.Recognizer
	if cfg.Fetch.EnableOCR {
		ocrClient, err := ocr.New(cfg.Fetch.OCRLanguages)
		if err != nil {
			jobs.Close()
			return nil, nil, fmt.Errorf("initializing OCR: %w", err)
		}
		rec = ocrClient
	}
	fetcher := fetch.NewFetcher(client, cfg.Fetch, rec)

	backend := extract.NewOpenAIBackend(cfg.Extraction.AIConfig)
	var translator extract.Backend
	if cfg.Extraction.TranslateModel != "" {
		translateCfg := cfg.Extraction.AIConfig
		translateCfg.Model = cfg.Extraction.TranslateModel
		translator = extract.NewOpenAIBackend(translateCfg)
	}
	extractor := extract.New(backend, translator, cfg.Extraction)

	runner := pipeline.New(cfg, fetcher, extractor, jobs, pipeline.NewBroker(64))
	return runner, jobs, nil
}

func runProcess(cmd *cobra.Command, args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("provide one or more paper identifiers (arXiv IDs, URLs, or PDF paths)")
	}

	cfg := buildConfig(cmd)
	preferred, _ := cmd.Flags().GetString("format")
	if preferred != "" {
		switch types.Format(preferred) {
		case types.FormatHTML, types.FormatPDF, types.FormatSource, types.FormatAbstract:
		default:
			return fmt.Errorf("unknown fetch format %q", preferred)
		}
	}

	runner, jobs, err := buildRunner(cfg)
	if err != nil {
		return err
	}
	defer jobs.Close()

	// Print progress events while jobs run.
	events, cancel := runner.Broker().Subscribe()
	defer cancel()
	var printer sync.WaitGroup
	printer.Add(1)
	go func() {
		defer printer.Done()
		for ev := range events {
			if ev.Error != "" {
				fmt.Fprintf(os.Stderr, "[%3d%%] %s  %s: %s\n", ev.Progress, ev.PaperID, ev.Status, ev.Error)
				continue
			}
			fmt.Fprintf(os.Stderr, "[%3d%%] %s  %s\n", ev.Progress, ev.PaperID, ev.Status)
		}
	}()

	var failed int
	for _, input := range args {
		job, err := runner.Process(cmd.Context(), pipeline.Request{
			Input:     input,
			Preferred: types.Format(preferred),
			Language:  cfg.Language,
		})
		if err != nil {
			failed++
			continue
		}
		fmt.Printf("%s  %s  (%s, %.1fs)\n", job.PaperID, job.OutputPath,
			job.FormatUsed, job.ProcessingTime)
	}

	cancel()
	printer.Wait()

	if failed > 0 {
		return fmt.Errorf("%d of %d paper(s) failed; see 'paperbrief status' and 'paperbrief retry'",
			failed, len(args))
	}
	return nil
}

// formatList joins known fetch formats for help output.
func formatList() string {
	return strings.Join([]string{
		string(types.FormatHTML), string(types.FormatPDF),
		string(types.FormatSource), string(types.FormatAbstract),
	}, ", ")
}

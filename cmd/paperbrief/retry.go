// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var retryCmd = &cobra.Command{
	Use:   "retry <paper-id>",
	Short: "Retry a failed job from the beginning",
	Long: `Retry reruns the full pipeline for a job in the failed state. The retry
counter is incremented and processing restarts from the fetch stage; partial
results of the failed run are not reused.`,
	Args: cobra.ExactArgs(1),
	RunE: runRetry,
}

func init() {
	retryCmd.Flags().String("output-dir", "", "base output directory (default ./papers)")
	retryCmd.Flags().String("model", "", "language model identifier")
	retryCmd.Flags().String("base-url", "", "OpenAI-compatible endpoint base URL")
	retryCmd.Flags().Bool("ocr", false, "enable OCR fallback for scanned PDFs (requires Tesseract)")
	retryCmd.Flags().String("ocr-languages", "eng", "Tesseract language list, e.g. eng+chi_sim")

	rootCmd.AddCommand(retryCmd)
}

func runRetry(cmd *cobra.Command, args []string) error {
	cfg := buildConfig(cmd)

	runner, jobs, err := buildRunner(cfg)
	if err != nil {
		return err
	}
	defer jobs.Close()

	events, cancel := runner.Broker().Subscribe()
	defer cancel()
	go func() {
		for ev := range events {
			fmt.Fprintf(os.Stderr, "[%3d%%] %s  %s\n", ev.Progress, ev.PaperID, ev.Status)
		}
	}()

	job, err := runner.Retry(cmd.Context(), args[0])
	if err != nil {
		return err
	}
	fmt.Printf("%s  %s  (%s, attempt %d)\n", job.PaperID, job.OutputPath,
		job.FormatUsed, job.RetryCount+1)
	return nil
}

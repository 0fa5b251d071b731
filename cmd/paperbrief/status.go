// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/pdiddy/paperbrief/internal/store"
	"github.com/pdiddy/paperbrief/pkg/types"
)

var statusCmd = &cobra.Command{
	Use:   "status [paper-id]",
	Short: "Show job status for one paper or all papers",
	Long: `Status prints the persisted processing state. With a paper id it shows
the full record including failure details; without arguments it lists all
jobs, most recently updated first.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runStatus,
}

func init() {
	statusCmd.Flags().String("output-dir", "", "base output directory (default ./papers)")

	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
	cfg := buildConfig(cmd)

	jobs, err := store.Open(cfg.Store)
	if err != nil {
		return fmt.Errorf("opening job store: %w", err)
	}
	defer jobs.Close()

	if len(args) == 1 {
		job, err := jobs.Get(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		printJob(job)
		return nil
	}

	all, err := jobs.List(cmd.Context())
	if err != nil {
		return err
	}
	if len(all) == 0 {
		fmt.Println("no jobs")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "PAPER\tSTATUS\tPROGRESS\tRETRIES\tTITLE")
	for _, job := range all {
		fmt.Fprintf(w, "%s\t%s\t%d%%\t%d\t%s\n",
			job.PaperID, job.Status, job.Progress, job.RetryCount, job.Title)
	}
	return w.Flush()
}

func printJob(job *types.ProcessingJob) {
	fmt.Printf("paper:    %s\n", job.PaperID)
	fmt.Printf("status:   %s (%d%%)\n", job.Status, job.Progress)
	if job.Title != "" {
		fmt.Printf("title:    %s\n", job.Title)
	}
	if len(job.Authors) > 0 {
		fmt.Printf("authors:  %v\n", job.Authors)
	}
	if job.FormatUsed != "" {
		fmt.Printf("format:   %s\n", job.FormatUsed)
	}
	if job.OutputPath != "" {
		fmt.Printf("output:   %s\n", job.OutputPath)
	}
	if job.ProcessingTime > 0 {
		fmt.Printf("duration: %.1fs\n", job.ProcessingTime)
	}
	if job.RetryCount > 0 {
		fmt.Printf("retries:  %d\n", job.RetryCount)
	}
	if job.Status == types.StatusFailed {
		fmt.Printf("error:    %s\n", job.ErrorMessage)
		if job.LastFailedAt != nil {
			fmt.Printf("failed:   %s\n", job.LastFailedAt.Format("2006-01-02 15:04:05 MST"))
		}
	}
}

package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/ppiankov/corridorwatch/internal/fetch"
)

var (
	fetchURLsFile    string
	fetchConcurrency int
	fetchReferer     string
	fetchOutputDir   string
	fetchFormat      string
)

func init() {
	rootCmd.AddCommand(fetchCmd)
	fetchCmd.Flags().StringVar(&fetchURLsFile, "urls-file", "", "File with one URL per line (- for stdin)")
	fetchCmd.Flags().IntVar(&fetchConcurrency, "concurrency", fetch.DefaultConcurrency, "Maximum parallel downloads")
	fetchCmd.Flags().StringVar(&fetchReferer, "referer", "", "Referer header sent with every request")
	fetchCmd.Flags().StringVar(&fetchOutputDir, "output-dir", fetch.DefaultOutputDir, "Directory for downloaded pages")
	fetchCmd.Flags().StringVarP(&fetchFormat, "format", "f", "text", "Output format (text|json)")
}

var fetchCmd = &cobra.Command{
	Use:   "fetch [url...]",
	Short: "Download reference pages in parallel",
	Long: "Fetches URLs with bounded concurrency into an output directory,\n" +
		"naming each file from the last path segment of its URL.\n" +
		"Exits 1 if any download fails.",
	RunE: runFetch,
}

func runFetch(cmd *cobra.Command, args []string) error {
	urls := append([]string(nil), args...)
	if fetchURLsFile != "" {
		var (
			more []string
			err  error
		)
		if fetchURLsFile == "-" {
			more, err = fetch.ReadURLs(os.Stdin)
		} else {
			more, err = fetch.ReadURLFile(fetchURLsFile)
		}
		if err != nil {
			return err
		}
		urls = append(urls, more...)
	}
	if len(urls) == 0 {
		return fmt.Errorf("no URLs: pass them as arguments or with --urls-file")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	results, err := fetch.Run(ctx, urls, fetch.Options{
		Concurrency: fetchConcurrency,
		Referer:     fetchReferer,
		OutputDir:   fetchOutputDir,
	})
	if err != nil {
		return err
	}

	failed := 0
	for _, r := range results {
		if r.Error != "" {
			failed++
		}
	}

	if fetchFormat == "json" {
		if err := printJSON(results); err != nil {
			return err
		}
	} else {
		for _, r := range results {
			if r.Error != "" {
				fmt.Printf("FAIL  %s: %s\n", r.URL, r.Error)
				continue
			}
			fmt.Printf("OK    %s -> %s (%d bytes)\n", r.URL, r.Path, r.Bytes)
		}
		fmt.Printf("\n%d fetched, %d failed\n", len(results)-failed, failed)
	}

	if failed > 0 {
		os.Exit(1)
	}
	return nil
}

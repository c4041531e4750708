package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"mediafetch/pkg/config"
	"mediafetch/pkg/engine"
	"mediafetch/pkg/events"
	"mediafetch/pkg/logger"
	"mediafetch/pkg/models"
	"mediafetch/pkg/sources"
	"mediafetch/pkg/ui"
	"mediafetch/pkg/ui/tui"
)

var (
	// Fetch command flags
	collection   string
	outputDir    string
	concurrency  int
	attempts     int
	referer      string
	rateLimit    int
	cacheBackend string
	useTUI       bool
)

// fetchCmd represents the fetch command
var fetchCmd = &cobra.Command{
	Use:   "fetch <target>...",
	Short: "Fetch every new media file of one or more targets",
	Long: `Fetch media from each target. A target is a 4chan thread URL, a file with
one URL per line ("-" reads standard input) or a single media URL.

URLs already fetched for the target's collection are skipped. Press Ctrl+C to
stop; files that finished before the interrupt stay recorded.`,
	Example: `  # Fetch a thread
  mediafetch fetch https://boards.4chan.org/g/thread/12345

  # Fetch a list of URLs into one collection with 8 workers
  mediafetch fetch urls.txt --collection wallpapers --concurrency 8

  # Pipe URLs in and watch progress in the terminal UI
  cat urls.txt | mediafetch fetch - --tui`,
	Args: cobra.MinimumNArgs(1),
	RunE: runFetch,
}

func init() {
	rootCmd.AddCommand(fetchCmd)
	addFetchFlags(fetchCmd)
	fetchCmd.Flags().BoolVar(&useTUI, "tui", false, "use interactive terminal UI with real-time progress")
}

func addFetchFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&collection, "collection", "", "collection key to record fetched URLs under (default derived from the target)")
	cmd.Flags().StringVarP(&outputDir, "output", "o", "", "base output directory")
	cmd.Flags().IntVar(&concurrency, "concurrency", 0, "number of concurrent downloads")
	cmd.Flags().IntVar(&attempts, "attempts", 0, "attempts per file before giving up")
	cmd.Flags().StringVar(&referer, "referer", "", "Referer header sent with every request")
	cmd.Flags().IntVar(&rateLimit, "rate-limit", 0, "requests per minute (0 disables pacing)")
	cmd.Flags().StringVar(&cacheBackend, "cache-backend", "", "fetch cache backend (text, sqlite, bolt)")
}

func fetchFlags() map[string]interface{} {
	return map[string]interface{}{
		"output":        outputDir,
		"concurrency":   concurrency,
		"attempts":      attempts,
		"rate-limit":    rateLimit,
		"cache-backend": cacheBackend,
	}
}

func runFetch(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd, fetchFlags(), useTUI)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	descriptors, err := discover(ctx, cfg, cmd.InOrStdin(), args)
	if err != nil {
		return err
	}

	summaries, err := runJobs(ctx, cfg, descriptors, useTUI)
	if err != nil {
		return err
	}
	return failureError(summaries)
}

// discover resolves every target into a job descriptor
func discover(ctx context.Context, cfg *config.Config, stdin io.Reader, targets []string) ([]engine.Descriptor, error) {
	log := logger.GetLogger().WithField("component", "sources")
	client := sources.NewClient(cfg.Fetch.ResponseHeaderTimeout, cfg.Fetch.UserAgent, log)
	registry := sources.DefaultRegistry(client, stdin)

	descriptors := make([]engine.Descriptor, 0, len(targets))
	for _, target := range targets {
		src, err := registry.Match(target)
		if err != nil {
			return nil, err
		}
		d, err := src.Discover(ctx, target)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", target, err)
		}
		log.WithFields(map[string]interface{}{
			"source":     src.Name(),
			"collection": d.CollectionKey,
			"candidates": len(d.Items),
		}).Info("Discovered media")

		descriptors = append(descriptors, describe(cfg, d, collection, referer))
	}
	return descriptors, nil
}

// describe turns a discovery into a descriptor; a non-empty key or ref
// overrides what the source suggested
func describe(cfg *config.Config, d *sources.Discovery, key, ref string) engine.Descriptor {
	if key != "" {
		d.CollectionKey = key
	}
	if ref == "" {
		ref = d.Referer
	}
	return engine.Descriptor{
		CollectionKey: d.CollectionKey,
		CandidateURLs: d.URLs(),
		Destination:   sources.Destination(cfg.Output.BaseDirectory, d),
		RefererURL:    ref,
	}
}

// reporters builds the non-interactive event sinks
func reporters(cfg *config.Config) []events.Reporter {
	var rs []events.Reporter
	if !quiet {
		rs = append(rs, ui.NewConsoleReporter(os.Stdout, verbose))
	}
	if cfg.Notifications.Enabled {
		rs = append(rs, ui.NewNotifyReporter(ui.NewNotifier(), cfg.Notifications.OnComplete, cfg.Notifications.OnError))
	}
	return rs
}

// runJobs runs descriptors on a fresh engine, either with console output or
// behind the terminal UI
func runJobs(ctx context.Context, cfg *config.Config, ds []engine.Descriptor, interactive bool) ([]*models.Summary, error) {
	if !interactive {
		return execute(ctx, cfg, ds, events.Multi(reporters(cfg)...))
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	terminal := tui.NewTUI(cfg.Fetch.Concurrency)
	terminal.OnQuit(cancel)

	var rs []events.Reporter
	if cfg.Notifications.Enabled {
		rs = append(rs, ui.NewNotifyReporter(ui.NewNotifier(), cfg.Notifications.OnComplete, cfg.Notifications.OnError))
	}
	rs = append(rs, terminal)

	type result struct {
		summaries []*models.Summary
		err       error
	}
	done := make(chan result, 1)
	go func() {
		s, err := execute(ctx, cfg, ds, events.Multi(rs...))
		terminal.Finish(err)
		done <- result{s, err}
	}()

	uiErr := terminal.Start()
	cancel()
	res := <-done
	if uiErr != nil {
		return res.summaries, fmt.Errorf("terminal UI: %w", uiErr)
	}
	return res.summaries, res.err
}

func execute(ctx context.Context, cfg *config.Config, ds []engine.Descriptor, r events.Reporter) ([]*models.Summary, error) {
	eng, err := engine.New(cfg, engine.WithReporter(r), engine.WithLogger(logger.GetLogger()))
	if err != nil {
		return nil, err
	}
	defer eng.Close()

	return eng.RunMany(ctx, ds)
}

// failureError turns failed or cancelled files into a non-zero exit
func failureError(summaries []*models.Summary) error {
	var failed, cancelled int
	for _, s := range summaries {
		if s == nil {
			continue
		}
		failed += s.Failed
		cancelled += s.Cancelled
	}
	switch {
	case failed > 0:
		return fmt.Errorf("%d files failed", failed)
	case cancelled > 0:
		return fmt.Errorf("interrupted, %d files not fetched", cancelled)
	}
	return nil
}

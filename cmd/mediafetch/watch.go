package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"

	"mediafetch/pkg/config"
	"mediafetch/pkg/logger"
	"mediafetch/pkg/ui"
)

var watchSchedule string

// watchCmd represents the watch command
var watchCmd = &cobra.Command{
	Use:   "watch <target>...",
	Short: "Re-fetch targets on a schedule, downloading only new media",
	Long: `Run fetch once, then again on every tick of a cron schedule until interrupted.
Each run rediscovers the targets, so new posts in a thread are picked up while
files fetched earlier are skipped.

The schedule accepts standard 5-field cron expressions and descriptors such as
"@hourly" or "@every 15m". A tick that fires while the previous run is still
going is skipped.`,
	Example: `  # Check a thread every ten minutes
  mediafetch watch https://boards.4chan.org/g/thread/12345 --every "@every 10m"

  # Nightly at 03:00
  mediafetch watch urls.txt --every "0 3 * * *"`,
	Args: cobra.MinimumNArgs(1),
	RunE: runWatch,
}

func init() {
	rootCmd.AddCommand(watchCmd)
	addFetchFlags(watchCmd)
	watchCmd.Flags().StringVar(&watchSchedule, "every", "@every 15m", "cron schedule for re-runs")
}

func runWatch(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd, fetchFlags(), false)
	if err != nil {
		return err
	}
	for _, a := range args {
		if a == "-" {
			return fmt.Errorf("watch cannot read targets from standard input")
		}
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log := logger.GetLogger().WithField("component", "watch")
	w, err := newWatcher(ctx, watchSchedule, log, func(ctx context.Context) error {
		return fetchOnce(ctx, cfg, cmd.InOrStdin(), args)
	})
	if err != nil {
		return err
	}

	ui.PrintInfo("Watching", fmt.Sprintf("%d targets, schedule %q", len(args), watchSchedule))
	w.Run()
	<-ctx.Done()
	w.Stop()
	ui.PrintInfo("Watch", "stopped")
	return nil
}

// fetchOnce is one scheduled run: discover, then fetch what is new
func fetchOnce(ctx context.Context, cfg *config.Config, stdin io.Reader, targets []string) error {
	descriptors, err := discover(ctx, cfg, stdin, targets)
	if err != nil {
		return err
	}
	summaries, err := runJobs(ctx, cfg, descriptors, false)
	if err != nil {
		return err
	}
	return failureError(summaries)
}

// watcher runs a job immediately and then on every cron tick, never
// overlapping runs
type watcher struct {
	ctx  context.Context
	cron *cron.Cron
	job  func(context.Context) error
	log  logger.Logger
	wg   sync.WaitGroup
	busy sync.Mutex
}

func newWatcher(ctx context.Context, schedule string, log logger.Logger, job func(context.Context) error) (*watcher, error) {
	w := &watcher{ctx: ctx, job: job, log: log}
	clog := cronLogger{log}
	w.cron = cron.New(
		cron.WithParser(cron.NewParser(cron.Minute|cron.Hour|cron.Dom|cron.Month|cron.Dow|cron.Descriptor)),
		cron.WithLogger(clog),
		cron.WithChain(cron.Recover(clog)),
	)
	if _, err := w.cron.AddFunc(schedule, w.tick); err != nil {
		return nil, fmt.Errorf("invalid schedule %q: %w", schedule, err)
	}
	return w, nil
}

// Run performs the first run in the background and starts the schedule
func (w *watcher) Run() {
	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		w.tick()
	}()
	w.cron.Start()
}

// Stop halts the schedule and waits for running jobs to return
func (w *watcher) Stop() {
	<-w.cron.Stop().Done()
	w.wg.Wait()
}

func (w *watcher) tick() {
	if w.ctx.Err() != nil {
		return
	}
	if !w.busy.TryLock() {
		w.log.Info("Previous run still going, skipping tick")
		return
	}
	defer w.busy.Unlock()

	if err := w.job(w.ctx); err != nil {
		w.log.WithError(err).Warn("Scheduled run finished with errors")
		ui.PrintWarning("Run finished with errors", err)
		return
	}
	w.log.Info("Scheduled run finished")
}

// cronLogger routes cron's own logging through the application logger
type cronLogger struct {
	log logger.Logger
}

func (c cronLogger) Info(msg string, keysAndValues ...interface{}) {
	c.log.DebugWithFields("cron: "+msg, pairs(keysAndValues))
}

func (c cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	c.log.WithError(err).ErrorWithFields("cron: "+msg, pairs(keysAndValues))
}

func pairs(kv []interface{}) map[string]interface{} {
	fields := make(map[string]interface{}, len(kv)/2)
	for i := 0; i+1 < len(kv); i += 2 {
		fields[fmt.Sprint(kv[i])] = kv[i+1]
	}
	return fields
}

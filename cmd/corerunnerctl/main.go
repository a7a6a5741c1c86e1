// Command corerunnerctl drives corerunner from the shell: run a synthetic
// batch workload against the scheduler and report throughput.
package main

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/go-foundations/corerunner"
	"github.com/go-foundations/corerunner/batch"
	"github.com/go-foundations/corerunner/metrics"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	cfg, err := loadConfig()
	if err != nil {
		cfg = config{Workers: 4, Jobs: 1000, LogLevel: "info"}
	}

	root := &cobra.Command{
		Use:   "corerunnerctl",
		Short: "Drive the corerunner task scheduler from the command line",
	}

	root.AddCommand(newBenchCmd(cfg))
	return root
}

func newBenchCmd(cfg config) *cobra.Command {
	var workers int
	var jobs int
	var logLevel string

	cmd := &cobra.Command{
		Use:   "bench",
		Short: "Run a synthetic batch workload and report throughput",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBench(workers, jobs, logLevel)
		},
	}

	flags := cmd.Flags()
	flags.IntVar(&workers, "workers", cfg.Workers, "number of scheduler workers")
	flags.IntVar(&jobs, "jobs", cfg.Jobs, "number of synthetic jobs to submit")
	flags.StringVar(&logLevel, "log-level", cfg.LogLevel, "log level: debug, info, warn, error")

	return cmd
}

func runBench(workers, jobCount int, logLevel string) error {
	logger, err := newLogger(logLevel)
	if err != nil {
		return fmt.Errorf("corerunnerctl: %w", err)
	}
	defer logger.Sync()

	recorder := metrics.NewRecorder(prometheus.NewRegistry())

	runner := batch.NewRunner[string, string](batch.Config{
		NumWorkers: workers,
		Metrics:    recorder,
	}, func(ctx *corerunner.TaskContext, job batch.Job[string]) (string, error) {
		return strings.ToUpper(job.Data), nil
	})

	jobs := make([]batch.Job[string], jobCount)
	for i := range jobs {
		jobs[i] = batch.Job[string]{
			ID:   fmt.Sprintf("job-%d", i),
			Data: fmt.Sprintf("payload-%d", i),
		}
	}

	logger.Info("starting bench run", zap.Int("workers", workers), zap.Int("jobs", jobCount))

	start := time.Now()
	results, runMetrics, err := runner.Run(jobs)
	elapsed := time.Since(start)
	if err != nil {
		return fmt.Errorf("corerunnerctl: bench run failed: %w", err)
	}

	logger.Info("bench run complete",
		zap.Int("results", len(results)),
		zap.Int("processed", runMetrics.ProcessedJobs),
		zap.Int("failed", runMetrics.FailedJobs),
		zap.Duration("elapsed", elapsed),
		zap.Duration("avg_duration", runMetrics.AverageDuration),
	)

	snap := recorder.Snapshot()
	fmt.Printf("processed %d/%d jobs in %v (avg %v/job)\n",
		runMetrics.ProcessedJobs, runMetrics.TotalJobs, elapsed, runMetrics.AverageDuration)
	fmt.Printf("submitted=%.0f completed=%.0f mailbox_fallback=%.0f sleeping_workers=%.0f\n",
		snap.Submitted, snap.Completed, snap.MailboxFallback, snap.WorkersSleeping)
	return nil
}

func newLogger(level string) (*zap.Logger, error) {
	var zapLevel zap.AtomicLevel
	switch strings.ToLower(level) {
	case "debug":
		zapLevel = zap.NewAtomicLevelAt(zap.DebugLevel)
	case "warn":
		zapLevel = zap.NewAtomicLevelAt(zap.WarnLevel)
	case "error":
		zapLevel = zap.NewAtomicLevelAt(zap.ErrorLevel)
	default:
		zapLevel = zap.NewAtomicLevelAt(zap.InfoLevel)
	}

	zcfg := zap.NewProductionConfig()
	zcfg.Level = zapLevel
	return zcfg.Build()
}

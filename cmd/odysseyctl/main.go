package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/odyssey-erp/odyssey-pos/cmd/odyssey/cli"
	"github.com/odyssey-erp/odyssey-pos/internal/app"
	"github.com/odyssey-erp/odyssey-pos/jobs"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "odysseyctl: %v\n", err)
		os.Exit(1)
	}
}

type exitError int

func (e exitError) Error() string {
	return fmt.Sprintf("exit status %d", int(e))
}

func newRootCmd() *cobra.Command {
	var (
		redisAddr  string
		jsonOutput bool
	)
	root := &cobra.Command{
		Use:           "odysseyctl",
		Short:         "Operate the Odyssey POS background jobs",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&redisAddr, "redis", "", "Redis address (defaults to REDIS_ADDR)")
	root.PersistentFlags().BoolVar(&jsonOutput, "json", false, "Print JSON output")

	run := func(cmd *cobra.Command, opts cli.JobsOptions) error {
		cfg, err := app.LoadConfig()
		if err != nil {
			return err
		}
		redisOpts := cfg.AsynqRedisOpt()
		if redisAddr != "" {
			redisOpts.Addr = redisAddr
		}
		jobsCLI, err := cli.NewJobsCLI(redisOpts)
		if err != nil {
			return err
		}
		defer jobsCLI.Close()

		opts.JSONOutput = jsonOutput
		opts.Stdout = cmd.OutOrStdout()
		opts.Stderr = cmd.ErrOrStderr()
		if code := jobsCLI.JobsCommand(cmd.Context(), opts); code != 0 {
			return exitError(code)
		}
		return nil
	}

	var (
		asOf      string
		batchSize int
		retention time.Duration
	)
	trigger := &cobra.Command{
		Use:       "trigger <job>",
		Short:     "Enqueue a job now",
		Example:   "  odysseyctl trigger estimates:expire --as-of 2025-06-01\n  odysseyctl trigger ledger:integrity --batch 100",
		Args:      cobra.ExactArgs(1),
		ValidArgs: []string{jobs.TaskEstimatesExpire, jobs.TaskLedgerIntegrity, jobs.TaskIdempotencyCleanup},
		RunE: func(cmd *cobra.Command, args []string) error {
			params := cli.TriggerParams{BatchSize: batchSize, Retention: retention}
			if asOf != "" {
				parsed, err := time.Parse(time.DateOnly, asOf)
				if err != nil {
					return fmt.Errorf("invalid --as-of %q (expected YYYY-MM-DD)", asOf)
				}
				params.AsOf = parsed
			}
			return run(cmd, cli.JobsOptions{Action: "trigger", Job: args[0], Params: params})
		},
	}
	trigger.Flags().StringVar(&asOf, "as-of", "", "Reference date for estimates:expire")
	trigger.Flags().IntVar(&batchSize, "batch", 0, "Page size for ledger:integrity")
	trigger.Flags().DurationVar(&retention, "retention", 0, "Key retention for idempotency:cleanup")

	stats := &cobra.Command{
		Use:   "stats",
		Short: "Show queue statistics",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd, cli.JobsOptions{Action: "stats"})
		},
	}

	root.AddCommand(trigger, stats)
	return root
}

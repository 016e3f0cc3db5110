package main

import (
	"encoding/json"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/creatorindex/profile-cli/internal/scheduler"
)

var refreshBatchSize int

var refreshCmd = &cobra.Command{
	Use:   "refresh",
	Short: "Re-run the pipeline for subjects whose refresh is due",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initPipeline(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		opts := []scheduler.Option{}
		batchSize := refreshBatchSize
		if batchSize == 0 {
			batchSize = cfg.Refresh.BatchSize
		}
		if batchSize > 0 {
			opts = append(opts, scheduler.WithBatchSize(batchSize))
		}
		if cfg.Pipeline.InterSubjectDelayMs > 0 {
			opts = append(opts, scheduler.WithInterSubjectDelay(
				time.Duration(cfg.Pipeline.InterSubjectDelayMs)*time.Millisecond))
		}
		sched := scheduler.New(env.Store, env.Pipeline, opts...)

		report, err := sched.RunDue(ctx)
		if err != nil {
			return err
		}

		if n, err := env.Store.DeleteExpiredLookups(ctx); err == nil && n > 0 {
			zap.L().Info("expired cache entries pruned", zap.Int("deleted", n))
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(report)
	},
}

func init() {
	refreshCmd.Flags().IntVar(&refreshBatchSize, "batch-size", 0, "maximum due subjects per sweep (default from config)")
	rootCmd.AddCommand(refreshCmd)
}

package main

import (
	"encoding/json"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var syncCmd = &cobra.Command{
	Use:   "sync <subject-id> [subject-id...]",
	Short: "Fill gaps in stored records from fresh discovery",
	Long:  "Re-runs discovery against stored subjects and writes only the fields that are currently empty. Populated fields, including manual edits, are never overwritten.",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initPipeline(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")

		if len(args) == 1 {
			result := env.Syncer.SyncProfile(ctx, args[0])
			zap.L().Info("sync complete",
				zap.String("subject_id", args[0]),
				zap.String("outcome", string(result.Outcome)),
			)
			return enc.Encode(result)
		}

		batch := env.Syncer.SyncBatch(ctx, args)
		zap.L().Info("sync batch complete",
			zap.Int("total", batch.Total),
			zap.Int("enriched", batch.Enriched),
			zap.Int("skipped", batch.Skipped),
			zap.Int("failed", batch.Failed),
		)
		if batch.Failed == batch.Total {
			_ = enc.Encode(batch)
			return eris.New("every subject in the sync batch failed")
		}
		return enc.Encode(batch)
	},
}

func init() {
	rootCmd.AddCommand(syncCmd)
}

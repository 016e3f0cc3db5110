package main

import (
	"encoding/json"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/creatorindex/profile-cli/internal/model"
)

var generateCmd = &cobra.Command{
	Use:   "generate <name>",
	Short: "Run the full pipeline for a single subject",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initPipeline(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		result := env.Pipeline.Run(ctx, args[0], model.TriggerInitialCreation, "cli")

		zap.L().Info("generate complete",
			zap.String("subject", args[0]),
			zap.Bool("success", result.Success),
			zap.Int("flags", len(result.Flags)),
		)

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	},
}

func init() {
	rootCmd.AddCommand(generateCmd)
}

package main

import (
	"encoding/json"
	"os"
	"strconv"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var rollbackCmd = &cobra.Command{
	Use:   "rollback <subject-id> <version>",
	Short: "Restore a past version as a new version",
	Long:  "Writes the snapshot of the target version as a brand-new version. History is append-only; nothing is edited or deleted.",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		version, err := strconv.Atoi(args[1])
		if err != nil || version < 1 {
			return eris.Errorf("invalid version %q", args[1])
		}

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		result, err := st.RollbackToVersion(ctx, args[0], version, "cli")
		if err != nil {
			return eris.Wrap(err, "rollback")
		}

		zap.L().Info("rollback complete",
			zap.String("subject_id", args[0]),
			zap.Int("restored_from", version),
			zap.Int("new_version", result.Version),
		)

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	},
}

var historyCmd = &cobra.Command{
	Use:   "history <subject-id>",
	Short: "Show a subject's version history",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		versions, err := st.GetVersionHistory(ctx, args[0])
		if err != nil {
			return err
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(versions)
	},
}

func init() {
	rootCmd.AddCommand(rollbackCmd, historyCmd)
}

package main

import (
	"encoding/json"
	"os"

	"github.com/spf13/cobra"

	"github.com/creatorindex/profile-cli/internal/profilestore"
)

var flagsLimit int

var flagsCmd = &cobra.Command{
	Use:   "flags",
	Short: "Review and resolve data-quality flags",
}

var flagsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List subjects with unresolved flags",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		records, err := st.ListFlagged(ctx, profilestore.FlaggedFilter{Limit: flagsLimit})
		if err != nil {
			return err
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(records)
	},
}

var flagsShowCmd = &cobra.Command{
	Use:   "show <subject-id>",
	Short: "Show a subject's unresolved flags",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		flags, err := st.ListFlags(ctx, args[0], true)
		if err != nil {
			return err
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(flags)
	},
}

var resolvedBy string

var flagsResolveCmd = &cobra.Command{
	Use:   "resolve <subject-id> <flag-id>",
	Short: "Mark one flag resolved",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		return st.ResolveFlag(ctx, args[0], args[1], resolvedBy)
	},
}

func init() {
	flagsListCmd.Flags().IntVar(&flagsLimit, "limit", 50, "maximum subjects to list")
	flagsResolveCmd.Flags().StringVar(&resolvedBy, "by", "cli", "reviewer name recorded on the flag")
	flagsCmd.AddCommand(flagsListCmd, flagsShowCmd, flagsResolveCmd)
	rootCmd.AddCommand(flagsCmd)
}

package main

import (
	"bufio"
	"encoding/json"
	"os"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/creatorindex/profile-cli/internal/model"
)

var batchFile string

var batchCmd = &cobra.Command{
	Use:   "batch [names...]",
	Short: "Run the pipeline for up to 20 subjects sequentially",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		names := args
		if batchFile != "" {
			fileNames, err := readNames(batchFile)
			if err != nil {
				return err
			}
			names = append(names, fileNames...)
		}
		if len(names) == 0 {
			return eris.New("no subject names given (arguments or --file)")
		}

		env, err := initPipeline(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		result := env.Pipeline.RunBatch(ctx, names, model.TriggerInitialCreation, "cli")

		zap.L().Info("batch complete",
			zap.Int("total", result.Total),
			zap.Int("successful", result.Successful),
			zap.Int("flagged", result.Flagged),
			zap.Int("failed", result.Failed),
		)

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	},
}

func readNames(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, eris.Wrap(err, "open names file")
	}
	defer f.Close()

	var names []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		if name := strings.TrimSpace(scanner.Text()); name != "" {
			names = append(names, name)
		}
	}
	return names, eris.Wrap(scanner.Err(), "read names file")
}

func init() {
	batchCmd.Flags().StringVar(&batchFile, "file", "", "file with one subject name per line")
	rootCmd.AddCommand(batchCmd)
}

// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run acquire, crop, metadata, and assemble in order",
	Long: `Run executes every stage with the configured settings, stopping at the
first stage that fails. Use --skip-acquire when the raw dataset is already
in place.`,
	RunE: runPipeline,
}

func init() {
	runCmd.Flags().Bool("skip-acquire", false, "skip the download stage")
	runCmd.Flags().String("dataset", "", "dataset name (default OD_MetalDAM)")

	rootCmd.AddCommand(runCmd)
}

func runPipeline(cmd *cobra.Command, args []string) error {
	if err := bindFlags(cmd, map[string]string{"dataset": "assembly.dataset_name"}); err != nil {
		return err
	}
	cfg, err := pipelineConfig()
	if err != nil {
		return err
	}

	skipAcquire, _ := cmd.Flags().GetBool("skip-acquire")
	if !skipAcquire {
		fmt.Println("== acquire")
		if err := doAcquire(cmd, cfg.Acquisition); err != nil {
			return fmt.Errorf("acquire: %w", err)
		}
	}

	fmt.Println("== crop")
	if err := doCrop(cmd, cfg.Crop); err != nil {
		return fmt.Errorf("crop: %w", err)
	}

	fmt.Println("== metadata")
	tables, err := doMetadata(cfg.Metadata)
	if err != nil {
		return fmt.Errorf("metadata: %w", err)
	}
	cfg.Assembly.MetadataCSV = metadataCSV(cfg.Assembly.MetadataCSV, tables)

	fmt.Println("== assemble")
	if err := doAssemble(cmd, cfg.Assembly, cfg.Catalog); err != nil {
		return fmt.Errorf("assemble: %w", err)
	}
	return nil
}

// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/pdiddy/dataset-engine/internal/sqldump"
	"github.com/pdiddy/dataset-engine/pkg/types"
)

var metadataCmd = &cobra.Command{
	Use:   "metadata",
	Short: "Convert the metadata SQL dump to CSV",
	Long: `Metadata parses the MySQL or SQLite dump of the dataset metadata and
writes one <table>.csv per table (header plus one line per row; NULL becomes
an empty field). Unsupported statements and malformed literals fail with the
line and column of the problem.`,
	RunE: runMetadata,
}

func init() {
	addMetadataFlags(metadataCmd)
	rootCmd.AddCommand(metadataCmd)
}

func addMetadataFlags(cmd *cobra.Command) {
	cmd.Flags().String("dump", "", "SQL dump file")
	cmd.Flags().String("csv-dir", "", "directory for CSV output")
}

var metadataFlagKeys = map[string]string{
	"dump":    "metadata.dump_path",
	"csv-dir": "metadata.output_dir",
}

func runMetadata(cmd *cobra.Command, args []string) error {
	if err := bindFlags(cmd, metadataFlagKeys); err != nil {
		return err
	}
	cfg, err := pipelineConfig()
	if err != nil {
		return err
	}
	_, err = doMetadata(cfg.Metadata)
	return err
}

func doMetadata(cfg types.MetadataConfig) ([]string, error) {
	paths, err := sqldump.ConvertFile(cfg.DumpPath, cfg.OutputDir, os.Stdout)
	if err != nil {
		return nil, err
	}
	logger.Debug("metadata converted", "tables", len(paths))
	return paths, nil
}

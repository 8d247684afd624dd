// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"errors"
	"os"

	"github.com/spf13/cobra"

	"github.com/pdiddy/dataset-engine/internal/assemble"
	"github.com/pdiddy/dataset-engine/internal/catalog"
	"github.com/pdiddy/dataset-engine/pkg/types"
)

var assembleCmd = &cobra.Command{
	Use:   "assemble",
	Short: "Register cropped images, masks, and metadata as a dataset",
	Long: `Assemble joins every cropped image with its uncolored and colored masks
and its metadata row (by file stem), creates the named dataset in the
catalog (replacing an existing one unless --overwrite=false), adds the
samples, computes image metadata, and declares the dynamic label fields.

Images without a metadata row are excluded unless --keep-unmatched is given,
in which case they are tagged missing_metadata.`,
	RunE: runAssemble,
}

func init() {
	assembleCmd.Flags().String("dataset", "", "dataset name (default OD_MetalDAM)")
	assembleCmd.Flags().Bool("overwrite", true, "replace an existing dataset of the same name")
	assembleCmd.Flags().String("images-dir", "", "directory of cropped images")
	assembleCmd.Flags().String("masks-dir", "", "directory of uncolored masks")
	assembleCmd.Flags().String("colored-masks-dir", "", "directory of colored masks")
	assembleCmd.Flags().String("metadata-csv", "", "metadata CSV file")
	assembleCmd.Flags().String("id-column", "", "CSV column holding the image name (default first column)")
	assembleCmd.Flags().Bool("keep-unmatched", false, "register images without metadata, tagged missing_metadata")
	assembleCmd.Flags().String("catalog-dir", "", "catalog directory")

	rootCmd.AddCommand(assembleCmd)
}

var assembleFlagKeys = map[string]string{
	"dataset":           "assembly.dataset_name",
	"overwrite":         "assembly.overwrite",
	"images-dir":        "assembly.images_dir",
	"masks-dir":         "assembly.masks_dir",
	"colored-masks-dir": "assembly.colored_masks_dir",
	"metadata-csv":      "assembly.metadata_csv",
	"id-column":         "assembly.id_column",
	"keep-unmatched":    "assembly.keep_unmatched",
	"catalog-dir":       "catalog.catalog_dir",
}

func runAssemble(cmd *cobra.Command, args []string) error {
	if err := bindFlags(cmd, assembleFlagKeys); err != nil {
		return err
	}
	cfg, err := pipelineConfig()
	if err != nil {
		return err
	}
	return doAssemble(cmd, cfg.Assembly, cfg.Catalog)
}

func doAssemble(cmd *cobra.Command, cfg types.AssemblyConfig, catCfg types.CatalogConfig) error {
	if cfg.DatasetName == "" {
		cfg.DatasetName = assemble.DefaultDatasetName
	}
	built, err := assemble.Build(cfg, os.Stdout)
	if err != nil {
		return err
	}
	if len(built.Samples) == 0 {
		return errors.New("no samples to register")
	}

	store, err := catalog.Open(catCfg, catalog.WithLogger(logger))
	if err != nil {
		return err
	}
	defer store.Close()

	ds, err := store.CreateDataset(cmd.Context(), cfg.DatasetName, cfg.Overwrite)
	if err != nil {
		return err
	}
	res, err := assemble.Register(cmd.Context(), ds, built.Samples, os.Stdout)
	if err != nil {
		return err
	}
	logger.Info("dataset assembled", "dataset", ds.Name(), "samples", len(res.IDs), "with_metadata", res.WithMetadata)
	return nil
}

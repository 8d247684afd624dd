// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/pdiddy/dataset-engine/internal/crop"
	"github.com/pdiddy/dataset-engine/pkg/types"
)

var cropCmd = &cobra.Command{
	Use:   "crop",
	Short: "Crop raw images and drop the bottom information band",
	Long: `Crop cuts every image under the input directory from 1280x895 to
1024x703 (configurable), removing the information band at the bottom, and
writes the result under the output directory with the same layout. Images
of any other size fail and are reported; existing outputs are skipped unless
--overwrite is given.`,
	RunE: runCrop,
}

func init() {
	addCropFlags(cropCmd)
	rootCmd.AddCommand(cropCmd)
}

func addCropFlags(cmd *cobra.Command) {
	cmd.Flags().String("input-dir", "", "directory of raw images")
	cmd.Flags().String("output-dir", "", "directory for cropped images")
	cmd.Flags().Bool("overwrite", false, "replace existing outputs")
}

var cropFlagKeys = map[string]string{
	"input-dir":  "crop.input_dir",
	"output-dir": "crop.output_dir",
	"overwrite":  "crop.overwrite",
}

func runCrop(cmd *cobra.Command, args []string) error {
	if err := bindFlags(cmd, cropFlagKeys); err != nil {
		return err
	}
	cfg, err := pipelineConfig()
	if err != nil {
		return err
	}
	return doCrop(cmd, cfg.Crop)
}

func doCrop(cmd *cobra.Command, cfg types.CropConfig) error {
	res, err := crop.CropDir(cmd.Context(), cfg, os.Stdout)
	if err != nil {
		return err
	}
	for _, e := range res.Errors {
		logger.Debug("crop failure", "error", e)
	}
	if res.HasFailures() {
		return fmt.Errorf("%d image(s) failed cropping", res.Failed)
	}
	return nil
}

// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pdiddy/dataset-engine/internal/acquire"
	"github.com/pdiddy/dataset-engine/internal/assemble"
	"github.com/pdiddy/dataset-engine/internal/crop"
	"github.com/pdiddy/dataset-engine/internal/secrets"
	"github.com/pdiddy/dataset-engine/pkg/types"
)

const (
	defaultTimeout   = 10 * time.Minute
	defaultUserAgent = "dataset-engine/0.1"

	defaultMetadataCSV = "data/processed/metadata/metadata.csv"
)

// envKeyReplacer maps "crop.input_dir" to DATASET_ENGINE_CROP_INPUT_DIR.
var envKeyReplacer = strings.NewReplacer(".", "_")

// setDefaults registers the default data layout:
//
//	data/archive/            downloaded archive
//	data/raw/                extracted dataset
//	data/processed/images/   cropped images
//	data/processed/metadata/ one CSV per dump table
//	data/catalog/            catalog database
func setDefaults() {
	viper.SetDefault("acquisition.url", acquire.DefaultURL)
	viper.SetDefault("acquisition.archive_dir", "data/archive")
	viper.SetDefault("acquisition.raw_dir", "data/raw")
	viper.SetDefault("acquisition.strip_components", 1)
	viper.SetDefault("acquisition.timeout", defaultTimeout)
	viper.SetDefault("acquisition.user_agent", defaultUserAgent)
	viper.SetDefault("acquisition.max_retries", 5)

	viper.SetDefault("crop.input_dir", "data/raw/images")
	viper.SetDefault("crop.output_dir", "data/processed/images")
	viper.SetDefault("crop.source_width", crop.DefaultSourceWidth)
	viper.SetDefault("crop.source_height", crop.DefaultSourceHeight)
	viper.SetDefault("crop.target_width", crop.DefaultTargetWidth)
	viper.SetDefault("crop.target_height", crop.DefaultTargetHeight)
	viper.SetDefault("crop.jpeg_quality", crop.DefaultJPEGQuality)

	viper.SetDefault("metadata.dump_path", "data/raw/MetalDAM_metadata.sql")
	viper.SetDefault("metadata.output_dir", "data/processed/metadata")

	viper.SetDefault("assembly.dataset_name", assemble.DefaultDatasetName)
	viper.SetDefault("assembly.overwrite", true)
	viper.SetDefault("assembly.images_dir", "data/processed/images")
	viper.SetDefault("assembly.masks_dir", "data/raw/labels")
	viper.SetDefault("assembly.colored_masks_dir", "data/raw/labels_colored")
	viper.SetDefault("assembly.metadata_csv", defaultMetadataCSV)

	viper.SetDefault("catalog.catalog_dir", "data/catalog")
	viper.SetDefault("catalog.max_results", 50)
}

// metadataCSV returns the table assembly joins against. A path other than
// the default is kept; otherwise a dump that produced a single table
// supplies it.
func metadataCSV(configured string, written []string) string {
	if configured == defaultMetadataCSV && len(written) == 1 {
		return written[0]
	}
	return configured
}

// bindFlags binds the named flags of cmd to config keys so that flags set
// on the command line override the config file and environment.
func bindFlags(cmd *cobra.Command, keys map[string]string) error {
	for flag, key := range keys {
		f := cmd.Flags().Lookup(flag)
		if f == nil {
			return fmt.Errorf("unknown flag %q", flag)
		}
		if err := viper.BindPFlag(key, f); err != nil {
			return fmt.Errorf("binding flag %s: %w", flag, err)
		}
	}
	return nil
}

// pipelineConfig decodes the merged configuration and fills credentials
// from the loaded secrets.
func pipelineConfig() (types.PipelineConfig, error) {
	var cfg types.PipelineConfig
	if err := viper.Unmarshal(&cfg); err != nil {
		return cfg, fmt.Errorf("decoding config: %w", err)
	}
	cfg.Acquisition.Token = loadedSecrets.Get(secrets.GitHubToken)
	return cfg, nil
}

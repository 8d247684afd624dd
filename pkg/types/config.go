// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import "time"

// HTTPConfig holds shared HTTP settings used by stages that make network requests.
type HTTPConfig struct {
	// Timeout is the HTTP request timeout.
	Timeout time.Duration `json:"timeout" yaml:"timeout" mapstructure:"timeout"`

	// UserAgent is the User-Agent header sent with HTTP requests
	// (e.g. "dataset-engine/0.1").
	UserAgent string `json:"user_agent" yaml:"user_agent" mapstructure:"user_agent"`

	// MaxRetries bounds retries on throttling and gateway errors (default 5).
	MaxRetries int `json:"max_retries" yaml:"max_retries" mapstructure:"max_retries"`
}

// AcquisitionConfig holds settings for the acquisition stage.
type AcquisitionConfig struct {
	HTTPConfig `yaml:",inline" mapstructure:",squash"`

	// URL is the location of the dataset archive.
	URL string `json:"url" yaml:"url" mapstructure:"url"`

	// ArchiveDir receives the downloaded archive file.
	ArchiveDir string `json:"archive_dir" yaml:"archive_dir" mapstructure:"archive_dir"`

	// RawDir receives the extracted archive contents.
	RawDir string `json:"raw_dir" yaml:"raw_dir" mapstructure:"raw_dir"`

	// StripComponents drops leading path elements from archive entries
	// (GitHub archives wrap everything in one top-level directory).
	StripComponents int `json:"strip_components" yaml:"strip_components" mapstructure:"strip_components"`

	// SHA256 is the optional expected hex digest of the archive.
	SHA256 string `json:"sha256,omitempty" yaml:"sha256,omitempty" mapstructure:"sha256"`

	// Token is an optional bearer token sent with the download request.
	Token string `json:"-" yaml:"-" mapstructure:"-"`

	// Force re-downloads and re-extracts even if RawDir is already populated.
	Force bool `json:"force" yaml:"force" mapstructure:"force"`
}

// CropConfig holds settings for the image normalization stage.
type CropConfig struct {
	// InputDir holds the raw images; its layout is mirrored under OutputDir.
	InputDir string `json:"input_dir" yaml:"input_dir" mapstructure:"input_dir"`

	// OutputDir receives the cropped images.
	OutputDir string `json:"output_dir" yaml:"output_dir" mapstructure:"output_dir"`

	// SourceWidth and SourceHeight are the resolution every input must have.
	SourceWidth  int `json:"source_width" yaml:"source_width" mapstructure:"source_width"`
	SourceHeight int `json:"source_height" yaml:"source_height" mapstructure:"source_height"`

	// TargetWidth and TargetHeight are the resolution of the retained region.
	TargetWidth  int `json:"target_width" yaml:"target_width" mapstructure:"target_width"`
	TargetHeight int `json:"target_height" yaml:"target_height" mapstructure:"target_height"`

	// OffsetX and OffsetY locate the retained region inside the source image.
	OffsetX int `json:"offset_x" yaml:"offset_x" mapstructure:"offset_x"`
	OffsetY int `json:"offset_y" yaml:"offset_y" mapstructure:"offset_y"`

	// JPEGQuality is used when re-encoding JPEG inputs (default 95).
	JPEGQuality int `json:"jpeg_quality" yaml:"jpeg_quality" mapstructure:"jpeg_quality"`

	// Overwrite replaces existing outputs instead of skipping them.
	Overwrite bool `json:"overwrite" yaml:"overwrite" mapstructure:"overwrite"`
}

// MetadataConfig holds settings for the SQL-dump-to-CSV stage.
type MetadataConfig struct {
	// DumpPath is the SQL dump to parse.
	DumpPath string `json:"dump_path" yaml:"dump_path" mapstructure:"dump_path"`

	// OutputDir receives one <table>.csv per table in the dump.
	OutputDir string `json:"output_dir" yaml:"output_dir" mapstructure:"output_dir"`
}

// AssemblyConfig holds settings for the assembly stage.
type AssemblyConfig struct {
	// DatasetName names the catalog collection (default "OD_MetalDAM").
	DatasetName string `json:"dataset_name" yaml:"dataset_name" mapstructure:"dataset_name"`

	// Overwrite replaces a pre-existing collection of the same name.
	Overwrite bool `json:"overwrite" yaml:"overwrite" mapstructure:"overwrite"`

	// ImagesDir holds the cropped images.
	ImagesDir string `json:"images_dir" yaml:"images_dir" mapstructure:"images_dir"`

	// MasksDir holds the uncolored (class index) masks. Empty disables the field.
	MasksDir string `json:"masks_dir" yaml:"masks_dir" mapstructure:"masks_dir"`

	// ColoredMasksDir holds the colored masks. Empty disables the field.
	ColoredMasksDir string `json:"colored_masks_dir" yaml:"colored_masks_dir" mapstructure:"colored_masks_dir"`

	// MetadataCSV is the CSV produced by the metadata stage.
	MetadataCSV string `json:"metadata_csv" yaml:"metadata_csv" mapstructure:"metadata_csv"`

	// IDColumn names the CSV column joined against image file stems.
	// Empty selects the first column.
	IDColumn string `json:"id_column" yaml:"id_column" mapstructure:"id_column"`

	// KeepUnmatched registers images without a metadata row, tagged
	// "missing_metadata", instead of excluding them.
	KeepUnmatched bool `json:"keep_unmatched" yaml:"keep_unmatched" mapstructure:"keep_unmatched"`
}

// CatalogConfig holds settings for the dataset catalog.
type CatalogConfig struct {
	// CatalogDir contains catalog.db and its lock file.
	CatalogDir string `json:"catalog_dir" yaml:"catalog_dir" mapstructure:"catalog_dir"`

	// MaxResults is the default maximum number of query results (default 50).
	MaxResults int `json:"max_results" yaml:"max_results" mapstructure:"max_results"`
}

// PipelineConfig groups all stage configurations for the pipeline.
type PipelineConfig struct {
	Acquisition AcquisitionConfig `json:"acquisition" yaml:"acquisition" mapstructure:"acquisition"`
	Crop        CropConfig        `json:"crop" yaml:"crop" mapstructure:"crop"`
	Metadata    MetadataConfig    `json:"metadata" yaml:"metadata" mapstructure:"metadata"`
	Assembly    AssemblyConfig    `json:"assembly" yaml:"assembly" mapstructure:"assembly"`
	Catalog     CatalogConfig     `json:"catalog" yaml:"catalog" mapstructure:"catalog"`
}

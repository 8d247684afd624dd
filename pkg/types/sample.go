// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

// Label field names used for the two mask variants.
const (
	FieldGroundTruth        = "ground_truth"
	FieldGroundTruthColored = "ground_truth_colored"
)

// TagMissingMetadata marks samples registered without a metadata row.
const TagMissingMetadata = "missing_metadata"

// Segmentation references a per-pixel label mask stored on disk.
type Segmentation struct {
	// MaskPath is the filesystem path to the mask image.
	MaskPath string `json:"mask_path" yaml:"mask_path"`

	// Attributes holds extra label attributes (e.g. "colored": true).
	Attributes map[string]any `json:"attributes,omitempty" yaml:"attributes,omitempty"`
}

// ImageMetadata describes the media file of a sample.
type ImageMetadata struct {
	SizeBytes   int64  `json:"size_bytes" yaml:"size_bytes"`
	MimeType    string `json:"mime_type" yaml:"mime_type"`
	Width       int    `json:"width" yaml:"width"`
	Height      int    `json:"height" yaml:"height"`
	NumChannels int    `json:"num_channels" yaml:"num_channels"`
}

// Sample is one dataset record: an image, its masks, and its metadata row.
type Sample struct {
	// ID is assigned by the catalog when the sample is registered.
	ID string `json:"id" yaml:"id"`

	// Filepath is the path to the processed image.
	Filepath string `json:"filepath" yaml:"filepath"`

	// Tags carry coarse labels such as the split.
	Tags []string `json:"tags" yaml:"tags"`

	// Fields holds the joined metadata row, keyed by column name.
	Fields map[string]any `json:"fields,omitempty" yaml:"fields,omitempty"`

	// Segmentations maps label field names to masks.
	Segmentations map[string]Segmentation `json:"segmentations,omitempty" yaml:"segmentations,omitempty"`

	// Metadata is nil until the catalog computes it.
	Metadata *ImageMetadata `json:"metadata,omitempty" yaml:"metadata,omitempty"`
}

// HasTag reports whether the sample carries tag.
func (s Sample) HasTag(tag string) bool {
	for _, t := range s.Tags {
		if t == tag {
			return true
		}
	}
	return false
}

// reservedFields are sample attributes that metadata fields may not shadow.
var reservedFields = map[string]bool{
	"id":       true,
	"filepath": true,
	"tags":     true,
	"metadata": true,
}

// IsReservedField reports whether name is a built-in sample attribute.
func IsReservedField(name string) bool {
	return reservedFields[name]
}

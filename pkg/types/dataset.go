// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import "time"

// FieldType is the declared type of a sample field in a dataset schema.
type FieldType string

const (
	FieldString        FieldType = "string"
	FieldInt           FieldType = "int"
	FieldFloat         FieldType = "float"
	FieldBool          FieldType = "bool"
	FieldStringList    FieldType = "list<string>"
	FieldSegmentation  FieldType = "segmentation"
	FieldImageMetadata FieldType = "image_metadata"
)

// DatasetInfo summarizes a named collection in the catalog.
type DatasetInfo struct {
	Name        string    `json:"name" yaml:"name"`
	CreatedAt   time.Time `json:"created_at" yaml:"created_at"`
	SampleCount int       `json:"sample_count" yaml:"sample_count"`
}

// InferFieldType returns the field type for a scalar value. Values of
// unsupported kinds are reported as strings.
func InferFieldType(v any) FieldType {
	switch v.(type) {
	case bool:
		return FieldBool
	case int, int32, int64:
		return FieldInt
	case float32, float64:
		return FieldFloat
	case []string:
		return FieldStringList
	default:
		return FieldString
	}
}

// MergeFieldTypes combines the types observed for one field across samples.
// Integers widen to floats; any other disagreement degrades to string.
func MergeFieldTypes(a, b FieldType) FieldType {
	switch {
	case a == "":
		return b
	case b == "" || a == b:
		return a
	case (a == FieldInt && b == FieldFloat) || (a == FieldFloat && b == FieldInt):
		return FieldFloat
	default:
		return FieldString
	}
}

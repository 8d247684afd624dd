// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/dataset-engine/pkg/types"
)

// Export is the serialized form of a dataset.
type Export struct {
	Name    string         `json:"name" yaml:"name"`
	Schema  []Field        `json:"schema" yaml:"schema"`
	Samples []types.Sample `json:"samples" yaml:"samples"`
}

const exportLimit = 1 << 30

// ExportYAML writes the dataset's schema and samples to w as YAML.
// It supports the same filters as Samples.
func (d *Dataset) ExportYAML(ctx context.Context, w io.Writer, opts QueryOptions) error {
	exp, err := d.export(ctx, opts)
	if err != nil {
		return err
	}
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(exp); err != nil {
		return fmt.Errorf("marshaling YAML: %w", err)
	}
	return enc.Close()
}

// ExportJSON writes the dataset's schema and samples to w as indented JSON.
// It supports the same filters as Samples.
func (d *Dataset) ExportJSON(ctx context.Context, w io.Writer, opts QueryOptions) error {
	exp, err := d.export(ctx, opts)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(exp); err != nil {
		return fmt.Errorf("marshaling JSON: %w", err)
	}
	return nil
}

func (d *Dataset) export(ctx context.Context, opts QueryOptions) (Export, error) {
	if opts.MaxResults <= 0 {
		opts.MaxResults = exportLimit
	}
	schema, err := d.Schema(ctx)
	if err != nil {
		return Export{}, err
	}
	samples, err := d.Samples(ctx, opts)
	if err != nil {
		return Export{}, fmt.Errorf("querying for export: %w", err)
	}
	if samples == nil {
		samples = []types.Sample{}
	}
	return Export{Name: d.name, Schema: schema, Samples: samples}, nil
}

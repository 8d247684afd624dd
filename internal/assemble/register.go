// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package assemble

import (
	"context"
	"fmt"
	"io"

	"github.com/pdiddy/dataset-engine/pkg/types"
)

// Collection is the dataset store a run registers samples into.
type Collection interface {
	AddSamples(ctx context.Context, samples []types.Sample) ([]string, error)
	ComputeMetadata(ctx context.Context, overwrite bool) (int, error)
	AddDynamicSampleFields(ctx context.Context) ([]string, error)
}

// RegisterResult summarizes a registration.
type RegisterResult struct {
	IDs           []string
	WithMetadata  int
	DynamicFields []string
}

// Register adds samples to coll, then computes media metadata and infers
// dynamic label fields, printing a line per step to w.
func Register(ctx context.Context, coll Collection, samples []types.Sample, w io.Writer) (RegisterResult, error) {
	var res RegisterResult

	ids, err := coll.AddSamples(ctx, samples)
	if err != nil {
		return res, fmt.Errorf("adding samples: %w", err)
	}
	res.IDs = ids
	fmt.Fprintf(w, "added:   %d samples\n", len(ids))

	n, err := coll.ComputeMetadata(ctx, false)
	if err != nil {
		return res, fmt.Errorf("computing metadata: %w", err)
	}
	res.WithMetadata = n
	fmt.Fprintf(w, "metadata: computed for %d samples\n", n)

	fields, err := coll.AddDynamicSampleFields(ctx)
	if err != nil {
		return res, fmt.Errorf("adding dynamic fields: %w", err)
	}
	res.DynamicFields = fields
	for _, f := range fields {
		fmt.Fprintf(w, "field:   %s\n", f)
	}
	return res, nil
}

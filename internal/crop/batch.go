// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package crop

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pdiddy/dataset-engine/pkg/types"
)

// BatchResult holds the outcome of a batch crop run.
type BatchResult struct {
	Cropped int
	Skipped int
	Failed  int

	// Errors holds one entry per failed file.
	Errors []error
}

// Total returns the total number of images processed.
func (r BatchResult) Total() int {
	return r.Cropped + r.Skipped + r.Failed
}

// HasFailures reports whether any image failed.
func (r BatchResult) HasFailures() bool {
	return r.Failed > 0
}

// CropDir crops every image under cfg.InputDir into cfg.OutputDir,
// mirroring the directory layout. Existing outputs are skipped unless
// cfg.Overwrite is set. It continues after individual failures, printing
// per-file status to w. The returned error covers setup problems and
// cancellation only; per-file failures are reported in the result.
func CropDir(ctx context.Context, cfg types.CropConfig, w io.Writer) (BatchResult, error) {
	cfg = WithDefaults(cfg)
	if err := Validate(cfg); err != nil {
		return BatchResult{}, err
	}

	inputs, err := listImages(cfg.InputDir)
	if err != nil {
		return BatchResult{}, err
	}

	var result BatchResult
	for _, rel := range inputs {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		src := filepath.Join(cfg.InputDir, rel)
		dstRel := strings.TrimSuffix(rel, filepath.Ext(rel)) + OutputExt(filepath.Ext(rel))
		dst := filepath.Join(cfg.OutputDir, dstRel)

		if _, err := os.Stat(dst); err == nil && !cfg.Overwrite {
			fmt.Fprintf(w, "skipped: %s (already exists)\n", rel)
			result.Skipped++
			continue
		}

		if err := CropFile(src, dst, cfg); err != nil {
			fmt.Fprintf(w, "failed:  %s (%v)\n", rel, err)
			result.Failed++
			result.Errors = append(result.Errors, err)
			continue
		}
		fmt.Fprintf(w, "cropped: %s\n", rel)
		result.Cropped++
	}

	fmt.Fprintf(w, "\nBatch summary: %d cropped, %d skipped, %d failed (total: %d)\n",
		result.Cropped, result.Skipped, result.Failed, result.Total())
	return result, nil
}

// listImages returns the image files under root as relative
// paths in lexical order. Hidden entries are ignored.
func listImages(root string) ([]string, error) {
	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("reading input directory %s: %w", root, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("input %s is not a directory", root)
	}

	var rels []string
	err = filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if strings.HasPrefix(d.Name(), ".") && p != root {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() || !IsImage(p) {
			return nil
		}
		rel, err := filepath.Rel(root, p)
		if err != nil {
			return err
		}
		rels = append(rels, rel)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walking %s: %w", root, err)
	}
	return rels, nil
}

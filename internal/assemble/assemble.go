// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package assemble joins processed images, segmentation masks, and
// metadata rows into samples and registers them in a dataset collection.
package assemble

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/pdiddy/dataset-engine/internal/crop"
	"github.com/pdiddy/dataset-engine/internal/sqldump"
	"github.com/pdiddy/dataset-engine/pkg/types"
)

// DefaultDatasetName is used when no dataset name is configured.
const DefaultDatasetName = "OD_MetalDAM"

// splitColumn holds the train/val/test assignment; its value becomes a tag.
const splitColumn = "split"

// AssemblyError reports a sample that cannot be built from the files on
// disk, such as an image without its mask.
type AssemblyError struct {
	Path string
	Err  error
}

func (e *AssemblyError) Error() string {
	return fmt.Sprintf("assembling %s: %v", e.Path, e.Err)
}

func (e *AssemblyError) Unwrap() error { return e.Err }

// ErrMissingMask is wrapped by AssemblyError when an image has no mask.
var ErrMissingMask = errors.New("mask not found")

// BuildResult holds the samples built from disk and the join leftovers.
type BuildResult struct {
	Samples []types.Sample

	// Unmatched lists images without a metadata row.
	Unmatched []string

	// Orphans lists metadata IDs without an image.
	Orphans []string
}

// Build lists the images under cfg.ImagesDir and joins each with its
// masks and metadata row by file stem. A missing mask is an error. Images
// without metadata are excluded, or kept and tagged when
// cfg.KeepUnmatched is set. Per-image status is printed to w.
func Build(cfg types.AssemblyConfig, w io.Writer) (BuildResult, error) {
	images, err := indexImages(cfg.ImagesDir)
	if err != nil {
		return BuildResult{}, fmt.Errorf("listing images: %w", err)
	}

	masks, err := optionalIndex(cfg.MasksDir)
	if err != nil {
		return BuildResult{}, fmt.Errorf("listing masks: %w", err)
	}
	colored, err := optionalIndex(cfg.ColoredMasksDir)
	if err != nil {
		return BuildResult{}, fmt.Errorf("listing colored masks: %w", err)
	}

	var rows *metadataIndex
	if cfg.MetadataCSV != "" {
		rows, err = loadMetadata(cfg.MetadataCSV, cfg.IDColumn)
		if err != nil {
			return BuildResult{}, err
		}
	}

	var result BuildResult
	used := map[string]bool{}
	for _, key := range sortedStems(images) {
		path := images[key]
		smp := types.Sample{Filepath: path, Tags: []string{}}

		smp.Segmentations = map[string]types.Segmentation{}
		if masks != nil {
			mp, ok := masks[key]
			if !ok {
				return BuildResult{}, &AssemblyError{Path: path, Err: fmt.Errorf("%w in %s", ErrMissingMask, cfg.MasksDir)}
			}
			smp.Segmentations[types.FieldGroundTruth] = types.Segmentation{
				MaskPath:   mp,
				Attributes: map[string]any{"colored": false},
			}
		}
		if colored != nil {
			mp, ok := colored[key]
			if !ok {
				return BuildResult{}, &AssemblyError{Path: path, Err: fmt.Errorf("%w in %s", ErrMissingMask, cfg.ColoredMasksDir)}
			}
			smp.Segmentations[types.FieldGroundTruthColored] = types.Segmentation{
				MaskPath:   mp,
				Attributes: map[string]any{"colored": true},
			}
		}
		if len(smp.Segmentations) == 0 {
			smp.Segmentations = nil
		}

		if rows != nil {
			row, ok := rows.byID[key]
			if !ok {
				result.Unmatched = append(result.Unmatched, path)
				if !cfg.KeepUnmatched {
					fmt.Fprintf(w, "skipped: %s (no metadata row)\n", path)
					continue
				}
				fmt.Fprintf(w, "flagged: %s (no metadata row)\n", path)
				smp.Tags = append(smp.Tags, types.TagMissingMetadata)
			} else {
				used[key] = true
				smp.Fields = rows.fields(row)
				if split, ok := smp.Fields[splitColumn].(string); ok && split != "" {
					smp.Tags = append(smp.Tags, split)
				}
			}
		}

		result.Samples = append(result.Samples, smp)
	}

	if rows != nil {
		for _, id := range rows.order {
			if !used[id] {
				result.Orphans = append(result.Orphans, id)
				fmt.Fprintf(w, "orphan:  %s (no image)\n", id)
			}
		}
	}

	fmt.Fprintf(w, "\nAssembly summary: %d samples, %d unmatched images, %d orphan rows\n",
		len(result.Samples), len(result.Unmatched), len(result.Orphans))
	return result, nil
}

// stem strips directories and the extension from a path or ID.
func stem(p string) string {
	base := filepath.Base(filepath.FromSlash(p))
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// indexImages maps file stems to image paths under dir.
func indexImages(dir string) (map[string]string, error) {
	if dir == "" {
		return nil, errors.New("images directory not set")
	}
	idx := map[string]string{}
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if strings.HasPrefix(d.Name(), ".") && path != dir {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() || !crop.IsImage(path) {
			return nil
		}
		s := stem(path)
		if prev, ok := idx[s]; ok {
			return &AssemblyError{Path: path, Err: fmt.Errorf("duplicate image stem %q (also %s)", s, prev)}
		}
		idx[s] = path
		return nil
	})
	return idx, err
}

// optionalIndex indexes a mask directory; an unset directory yields nil.
func optionalIndex(dir string) (map[string]string, error) {
	if dir == "" {
		return nil, nil
	}
	if _, err := os.Stat(dir); err != nil {
		return nil, err
	}
	return indexImages(dir)
}

func sortedStems(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return m[keys[i]] < m[keys[j]] })
	return keys
}

// metadataIndex holds metadata rows keyed by image stem.
type metadataIndex struct {
	table *sqldump.Table
	byID  map[string]sqldump.Row
	order []string
}

func loadMetadata(path, idColumn string) (*metadataIndex, error) {
	t, err := sqldump.ReadCSV(path)
	if err != nil {
		return nil, fmt.Errorf("loading metadata: %w", err)
	}

	col := 0
	if idColumn != "" {
		col = t.ColumnIndex(idColumn)
		if col < 0 {
			return nil, fmt.Errorf("loading metadata: %s has no column %q", path, idColumn)
		}
	}

	idx := &metadataIndex{table: t, byID: map[string]sqldump.Row{}}
	for _, row := range t.Rows {
		id := stem(row[col].Text)
		if id == "" || id == "." {
			continue
		}
		if _, dup := idx.byID[id]; dup {
			return nil, &AssemblyError{Path: path, Err: fmt.Errorf("duplicate metadata id %q", id)}
		}
		idx.byID[id] = row
		idx.order = append(idx.order, id)
	}
	return idx, nil
}

// fields converts a metadata row into typed sample fields. Empty cells
// are omitted. Column names that collide with built-in sample attributes
// get a "source_" prefix.
func (m *metadataIndex) fields(row sqldump.Row) map[string]any {
	out := make(map[string]any, len(row))
	for i, col := range m.table.Columns {
		v, ok := Coerce(row[i].Text)
		if !ok {
			continue
		}
		name := strings.ToLower(col)
		if types.IsReservedField(name) {
			name = "source_" + name
		}
		out[name] = v
	}
	return out
}

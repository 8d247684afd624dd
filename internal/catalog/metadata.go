// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package catalog

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"image"
	"image/color"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"os"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"github.com/pdiddy/dataset-engine/pkg/types"
)

var mimeTypes = map[string]string{
	"png":  "image/png",
	"jpeg": "image/jpeg",
	"gif":  "image/gif",
	"bmp":  "image/bmp",
	"tiff": "image/tiff",
	"webp": "image/webp",
}

var pngSignature = []byte("\x89PNG\r\n\x1a\n")

// ReadImageMetadata reads the size, MIME type, dimensions, and channel
// count of the image at path without decoding its pixels.
func ReadImageMetadata(path string) (types.ImageMetadata, error) {
	f, err := os.Open(path)
	if err != nil {
		return types.ImageMetadata{}, err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return types.ImageMetadata{}, err
	}

	br := bufio.NewReader(f)
	head, _ := br.Peek(26)

	cfg, format, err := image.DecodeConfig(br)
	if err != nil {
		return types.ImageMetadata{}, fmt.Errorf("decoding %s: %w", path, err)
	}

	m := types.ImageMetadata{
		SizeBytes:   info.Size(),
		MimeType:    mimeTypes[format],
		Width:       cfg.Width,
		Height:      cfg.Height,
		NumChannels: channels(cfg.ColorModel),
	}
	if m.MimeType == "" {
		m.MimeType = "image/" + format
	}
	if format == "png" {
		if n, ok := pngChannels(head); ok {
			m.NumChannels = n
		}
	}
	return m, nil
}

// pngChannels reads the channel count from the IHDR color type.
func pngChannels(head []byte) (int, bool) {
	if len(head) < 26 || !bytes.Equal(head[:8], pngSignature) || string(head[12:16]) != "IHDR" {
		return 0, false
	}
	switch head[25] {
	case 0, 3:
		return 1, true
	case 2:
		return 3, true
	case 4:
		return 2, true
	case 6:
		return 4, true
	}
	return 0, false
}

func channels(cm color.Model) int {
	switch cm {
	case color.GrayModel, color.Gray16Model:
		return 1
	case color.YCbCrModel:
		return 3
	case color.CMYKModel:
		return 4
	}
	if _, ok := cm.(color.Palette); ok {
		return 1
	}
	return 4
}

// ComputeMetadata fills the media metadata of each sample from its file.
// Samples that already carry metadata are left alone unless overwrite is
// set. Unreadable media are logged and skipped. It returns the number of
// samples updated.
func (d *Dataset) ComputeMetadata(ctx context.Context, overwrite bool) (int, error) {
	query := `SELECT id, filepath FROM samples WHERE dataset = ?`
	if !overwrite {
		query += ` AND metadata IS NULL`
	}
	query += ` ORDER BY rowid`

	rows, err := d.store.db.QueryContext(ctx, query, d.name)
	if err != nil {
		return 0, fmt.Errorf("querying samples: %w", err)
	}
	type pending struct{ id, path string }
	var todo []pending
	for rows.Next() {
		var p pending
		if err := rows.Scan(&p.id, &p.path); err != nil {
			rows.Close()
			return 0, fmt.Errorf("scanning sample: %w", err)
		}
		todo = append(todo, p)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return 0, err
	}

	tx, err := d.store.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	updated := 0
	for _, p := range todo {
		if err := ctx.Err(); err != nil {
			return 0, err
		}
		m, err := ReadImageMetadata(p.path)
		if err != nil {
			d.store.logger.Warn("skipping metadata", "sample", p.id, "path", p.path, "error", err)
			continue
		}
		data, err := json.Marshal(m)
		if err != nil {
			return 0, fmt.Errorf("encoding metadata for %s: %w", p.id, err)
		}
		if _, err := tx.ExecContext(ctx,
			`UPDATE samples SET metadata = ? WHERE id = ?`, string(data), p.id,
		); err != nil {
			return 0, fmt.Errorf("updating sample %s: %w", p.id, err)
		}
		updated++
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("committing metadata: %w", err)
	}
	d.store.logger.Debug("computed metadata", "dataset", d.name, "updated", updated, "candidates", len(todo))
	return updated, nil
}

// AddDynamicSampleFields declares the attributes embedded in each label
// field as "<label>.<attribute>" schema fields, marked dynamic. It returns
// the names of fields that were not previously declared, sorted.
func (d *Dataset) AddDynamicSampleFields(ctx context.Context) ([]string, error) {
	rows, err := d.store.db.QueryContext(ctx,
		`SELECT segmentations FROM samples WHERE dataset = ? AND segmentations IS NOT NULL`, d.name)
	if err != nil {
		return nil, fmt.Errorf("querying labels: %w", err)
	}
	found := map[string]types.FieldType{}
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scanning labels: %w", err)
		}
		for label, seg := range decodeSegmentations(raw) {
			found[label+".mask_path"] = types.FieldString
			for attr, v := range seg.Attributes {
				key := label + "." + attr
				found[key] = types.MergeFieldTypes(found[key], types.InferFieldType(v))
			}
		}
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	tx, err := d.store.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	schema, err := loadSchema(ctx, tx, d.name)
	if err != nil {
		return nil, err
	}
	known := make(map[string]types.FieldType, len(schema))
	for _, f := range schema {
		known[f.Name] = f.Type
	}

	var added []string
	for _, name := range sortedKeys(found) {
		typ := found[name]
		prev, ok := known[name]
		if ok {
			typ = types.MergeFieldTypes(prev, typ)
			if typ == prev {
				continue
			}
		} else {
			added = append(added, name)
		}
		if err := declareField(ctx, tx, d.name, Field{Name: name, Type: typ, Dynamic: true}); err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing schema: %w", err)
	}
	return added, nil
}

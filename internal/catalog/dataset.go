// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package catalog

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"

	"github.com/pdiddy/dataset-engine/pkg/types"
)

// Dataset is a handle to a named collection in the catalog.
type Dataset struct {
	store *Store
	name  string
}

// Name returns the dataset name.
func (d *Dataset) Name() string { return d.name }

// Field is one entry of a dataset's field schema. Dynamic fields were
// discovered by AddDynamicSampleFields rather than declared by AddSamples.
type Field struct {
	Name    string          `json:"name" yaml:"name"`
	Type    types.FieldType `json:"type" yaml:"type"`
	Dynamic bool            `json:"dynamic" yaml:"dynamic"`
}

// AddSamples registers samples in one transaction, assigning each a new
// ID, and expands the field schema with their metadata and label fields.
// It returns the IDs in input order. Registered samples are not modified
// afterwards except by ComputeMetadata.
func (d *Dataset) AddSamples(ctx context.Context, samples []types.Sample) ([]string, error) {
	tx, err := d.store.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	schema, err := loadSchema(ctx, tx, d.name)
	if err != nil {
		return nil, err
	}
	declared := make(map[string]types.FieldType, len(schema))
	for _, f := range schema {
		declared[f.Name] = f.Type
	}
	observed := map[string]types.FieldType{}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO samples (id, dataset, filepath, tags, fields, segmentations, metadata)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return nil, fmt.Errorf("preparing insert: %w", err)
	}
	defer stmt.Close()

	ids := make([]string, 0, len(samples))
	for i, smp := range samples {
		if smp.Filepath == "" {
			return nil, fmt.Errorf("sample %d: empty filepath", i)
		}
		for k, v := range smp.Fields {
			if types.IsReservedField(k) {
				return nil, fmt.Errorf("sample %s: field name %q is reserved", smp.Filepath, k)
			}
			observed[k] = types.MergeFieldTypes(observed[k], types.InferFieldType(v))
		}
		for k := range smp.Segmentations {
			if types.IsReservedField(k) {
				return nil, fmt.Errorf("sample %s: label field name %q is reserved", smp.Filepath, k)
			}
			observed[k] = types.FieldSegmentation
		}

		tags := smp.Tags
		if tags == nil {
			tags = []string{}
		}
		tagsJSON, err := json.Marshal(tags)
		if err != nil {
			return nil, fmt.Errorf("encoding sample %s tags: %w", smp.Filepath, err)
		}
		fieldsJSON, err := json.Marshal(smp.Fields)
		if err != nil {
			return nil, fmt.Errorf("encoding sample %s fields: %w", smp.Filepath, err)
		}
		segJSON, err := json.Marshal(smp.Segmentations)
		if err != nil {
			return nil, fmt.Errorf("encoding sample %s labels: %w", smp.Filepath, err)
		}
		var metaJSON any
		if smp.Metadata != nil {
			b, err := json.Marshal(smp.Metadata)
			if err != nil {
				return nil, fmt.Errorf("encoding sample %s metadata: %w", smp.Filepath, err)
			}
			metaJSON = string(b)
		}

		id := uuid.NewString()
		if _, err := stmt.ExecContext(ctx,
			id, d.name, smp.Filepath, string(tagsJSON), string(fieldsJSON), string(segJSON), metaJSON,
		); err != nil {
			return nil, fmt.Errorf("inserting sample %s: %w", smp.Filepath, err)
		}
		ids = append(ids, id)
	}

	for name, typ := range observed {
		if prev, ok := declared[name]; ok {
			typ = types.MergeFieldTypes(prev, typ)
		}
		if err := declareField(ctx, tx, d.name, Field{Name: name, Type: typ}); err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing samples: %w", err)
	}
	d.store.logger.Debug("added samples", "dataset", d.name, "count", len(ids))
	return ids, nil
}

// Count returns the number of samples in the dataset.
func (d *Dataset) Count(ctx context.Context) (int, error) {
	var n int
	if err := d.store.db.QueryRowContext(ctx,
		`SELECT count(*) FROM samples WHERE dataset = ?`, d.name,
	).Scan(&n); err != nil {
		return 0, fmt.Errorf("counting samples: %w", err)
	}
	return n, nil
}

// Schema returns the dataset's field schema ordered by name.
func (d *Dataset) Schema(ctx context.Context) ([]Field, error) {
	return loadSchema(ctx, d.store.db, d.name)
}

// QueryOptions holds filters for Samples.
type QueryOptions struct {
	// Tag keeps samples carrying this tag.
	Tag string

	// Field and Value keep samples whose metadata field Field has the
	// text form Value.
	Field string
	Value string

	// MaxResults limits result count. Zero uses the store default.
	MaxResults int
}

// Samples returns the dataset's samples in registration order, filtered
// by opts.
func (d *Dataset) Samples(ctx context.Context, opts QueryOptions) ([]types.Sample, error) {
	maxResults := opts.MaxResults
	if maxResults <= 0 {
		maxResults = d.store.maxResults
	}

	var (
		qb   strings.Builder
		args = []any{d.name}
	)
	qb.WriteString(
		`SELECT s.id, s.filepath, s.tags, s.fields, s.segmentations, s.metadata
		FROM samples s
		WHERE s.dataset = ?`)

	if opts.Tag != "" {
		qb.WriteString(` AND EXISTS (SELECT 1 FROM json_each(s.tags) WHERE value = ?)`)
		args = append(args, opts.Tag)
	}
	if opts.Field != "" {
		// json_extract renders booleans as 1 and 0; match them by their JSON text.
		qb.WriteString(` AND (CASE json_type(s.fields, ?)
			WHEN 'true' THEN 'true' WHEN 'false' THEN 'false'
			ELSE CAST(json_extract(s.fields, ?) AS TEXT) END) = ?`)
		path := jsonPath(opts.Field)
		args = append(args, path, path, opts.Value)
	}

	qb.WriteString(` ORDER BY s.rowid LIMIT ?`)
	args = append(args, maxResults)

	rows, err := d.store.db.QueryContext(ctx, qb.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("querying samples: %w", err)
	}
	defer rows.Close()

	var samples []types.Sample
	for rows.Next() {
		var (
			smp                               types.Sample
			tagsJSON, fieldsJSON, segJSON, mJ sql.NullString
		)
		if err := rows.Scan(&smp.ID, &smp.Filepath, &tagsJSON, &fieldsJSON, &segJSON, &mJ); err != nil {
			return nil, fmt.Errorf("scanning sample: %w", err)
		}
		if tagsJSON.Valid {
			json.Unmarshal([]byte(tagsJSON.String), &smp.Tags)
		}
		if fieldsJSON.Valid {
			smp.Fields = decodeValues(fieldsJSON.String)
		}
		if segJSON.Valid {
			smp.Segmentations = decodeSegmentations(segJSON.String)
		}
		if mJ.Valid {
			var m types.ImageMetadata
			if err := json.Unmarshal([]byte(mJ.String), &m); err == nil {
				smp.Metadata = &m
			}
		}
		samples = append(samples, smp)
	}
	return samples, rows.Err()
}

// jsonPath quotes a field name as a SQLite JSON path.
func jsonPath(field string) string {
	return `$."` + strings.ReplaceAll(field, `"`, `\"`) + `"`
}

// decodeValues decodes a JSON object keeping integers as int64.
func decodeValues(s string) map[string]any {
	dec := json.NewDecoder(bytes.NewReader([]byte(s)))
	dec.UseNumber()
	var m map[string]any
	if err := dec.Decode(&m); err != nil || m == nil {
		return nil
	}
	for k, v := range m {
		m[k] = normalizeNumber(v)
	}
	return m
}

func normalizeNumber(v any) any {
	n, ok := v.(json.Number)
	if !ok {
		return v
	}
	if i, err := n.Int64(); err == nil {
		return i
	}
	if f, err := n.Float64(); err == nil {
		return f
	}
	return n.String()
}

func decodeSegmentations(s string) map[string]types.Segmentation {
	var raw map[string]struct {
		MaskPath   string          `json:"mask_path"`
		Attributes json.RawMessage `json:"attributes"`
	}
	if err := json.Unmarshal([]byte(s), &raw); err != nil || raw == nil {
		return nil
	}
	out := make(map[string]types.Segmentation, len(raw))
	for k, v := range raw {
		seg := types.Segmentation{MaskPath: v.MaskPath}
		if len(v.Attributes) > 0 {
			seg.Attributes = decodeValues(string(v.Attributes))
		}
		out[k] = seg
	}
	return out
}

type rowsQueryer interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

func loadSchema(ctx context.Context, q rowsQueryer, dataset string) ([]Field, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT name, type, dynamic FROM sample_fields WHERE dataset = ? ORDER BY name`, dataset)
	if err != nil {
		return nil, fmt.Errorf("loading schema: %w", err)
	}
	defer rows.Close()

	var fields []Field
	for rows.Next() {
		var (
			f   Field
			typ string
		)
		if err := rows.Scan(&f.Name, &typ, &f.Dynamic); err != nil {
			return nil, fmt.Errorf("scanning field: %w", err)
		}
		f.Type = types.FieldType(typ)
		fields = append(fields, f)
	}
	return fields, rows.Err()
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func declareField(ctx context.Context, e execer, dataset string, f Field) error {
	if _, err := e.ExecContext(ctx,
		`INSERT INTO sample_fields (dataset, name, type, dynamic) VALUES (?, ?, ?, ?)
		 ON CONFLICT(dataset, name) DO UPDATE SET type=excluded.type`,
		dataset, f.Name, string(f.Type), f.Dynamic,
	); err != nil {
		return fmt.Errorf("declaring field %s: %w", f.Name, err)
	}
	return nil
}

// sortedKeys returns the keys of m in lexical order.
func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package sqldump

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// WriteCSV writes t as CSV: a header of column names, then one record per
// row. NULL values become empty fields.
func WriteCSV(t *Table, w io.Writer) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(t.Columns); err != nil {
		return fmt.Errorf("writing header: %w", err)
	}
	for _, row := range t.Rows {
		if err := cw.Write(row.Strings()); err != nil {
			return fmt.Errorf("writing row: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// ReadCSV loads a CSV written by WriteCSV. The table is named after the
// file; every value is non-NULL.
func ReadCSV(path string) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	cr := csv.NewReader(f)
	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%s: empty CSV", path)
	}
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}

	t := &Table{
		Name:    strings.TrimSuffix(filepath.Base(path), filepath.Ext(path)),
		Columns: header,
	}
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			return t, nil
		}
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", path, err)
		}
		row := make(Row, len(rec))
		for i, s := range rec {
			row[i] = Value{Text: s}
		}
		t.Rows = append(t.Rows, row)
	}
}

// ConvertFile parses the dump at dumpPath and writes one <table>.csv per
// table into outDir, printing a status line per table to w. It returns
// the written paths in table order.
func ConvertFile(dumpPath, outDir string, w io.Writer) ([]string, error) {
	f, err := os.Open(dumpPath)
	if err != nil {
		return nil, fmt.Errorf("opening dump: %w", err)
	}
	dump, err := Parse(f)
	f.Close()
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", dumpPath, err)
	}
	if len(dump.Tables) == 0 {
		return nil, fmt.Errorf("parsing %s: no tables found", dumpPath)
	}

	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating directory %s: %w", outDir, err)
	}

	var paths []string
	for _, t := range dump.Tables {
		if len(t.Columns) == 0 {
			fmt.Fprintf(w, "skipped: %s (no columns)\n", t.Name)
			continue
		}
		p := filepath.Join(outDir, csvFileName(t.Name))
		if err := writeCSVFile(t, p); err != nil {
			return paths, err
		}
		fmt.Fprintf(w, "wrote:   %s (%d rows)\n", p, len(t.Rows))
		paths = append(paths, p)
	}
	return paths, nil
}

// csvFileName keeps table names from escaping the output directory.
func csvFileName(table string) string {
	name := strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', ':', 0:
			return '_'
		}
		return r
	}, table)
	if name == "" || name == "." || name == ".." {
		name = "table"
	}
	return name + ".csv"
}

func writeCSVFile(t *Table, path string) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".csv-*.tmp")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpPath := tmp.Name()

	writeErr := WriteCSV(t, tmp)
	closeErr := tmp.Close()
	if writeErr != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("writing %s: %w", path, writeErr)
	}
	if closeErr != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("closing temp file: %w", closeErr)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("renaming temp file: %w", err)
	}
	return nil
}

// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package sqldump parses SQL dump files (MySQL and SQLite flavours) into
// in-memory tables and writes them as CSV.
//
// Only table structure and row data are extracted: CREATE TABLE supplies
// column order and INSERT/REPLACE statements supply rows. Session and
// locking statements are skipped. Anything else is a parse error.
package sqldump

import (
	"fmt"
	"io"
	"strings"
)

// ParseError reports malformed or unsupported SQL at a source position.
type ParseError struct {
	Line int
	Col  int
	Msg  string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("sql dump: line %d, col %d: %s", e.Line, e.Col, e.Msg)
}

// Value is one cell of a row. Null distinguishes SQL NULL from an empty string.
type Value struct {
	Text string
	Null bool
}

// Row holds the values of one record in table column order.
type Row []Value

// Strings returns the row as plain strings, with NULL as "".
func (r Row) Strings() []string {
	out := make([]string, len(r))
	for i, v := range r {
		out[i] = v.Text
	}
	return out
}

// Table is a named set of rows sharing one column list.
type Table struct {
	Name    string
	Columns []string
	Rows    []Row
}

// ColumnIndex returns the position of the named column, or -1.
func (t *Table) ColumnIndex(name string) int {
	for i, c := range t.Columns {
		if strings.EqualFold(c, name) {
			return i
		}
	}
	return -1
}

// Dump holds the tables of a parsed dump in order of first appearance.
type Dump struct {
	Tables []*Table
	byName map[string]*Table
}

// Table returns the named table, or nil.
func (d *Dump) Table(name string) *Table {
	return d.byName[strings.ToLower(name)]
}

func (d *Dump) table(name string) *Table {
	key := strings.ToLower(name)
	t, ok := d.byName[key]
	if !ok {
		t = &Table{Name: name}
		d.byName[key] = t
		d.Tables = append(d.Tables, t)
	}
	return t
}

// Parse reads an entire dump from r.
func Parse(r io.Reader) (*Dump, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("reading dump: %w", err)
	}
	return ParseString(string(data))
}

// ParseString parses a dump held in memory.
func ParseString(src string) (*Dump, error) {
	p := &parser{lex: newLexer(src), dump: &Dump{byName: map[string]*Table{}}}
	if err := p.parse(); err != nil {
		return nil, err
	}
	return p.dump, nil
}

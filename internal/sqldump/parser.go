// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package sqldump

import (
	"fmt"
	"strings"
)

// skippable lists statement keywords that carry no table data.
var skippable = map[string]bool{
	"SET":       true,
	"LOCK":      true,
	"UNLOCK":    true,
	"DROP":      true,
	"USE":       true,
	"START":     true,
	"BEGIN":     true,
	"COMMIT":    true,
	"ROLLBACK":  true,
	"ALTER":     true,
	"PRAGMA":    true,
	"ANALYZE":   true,
	"SAVEPOINT": true,
	"RELEASE":   true,
	"VACUUM":    true,
	"FLUSH":     true,
}

type parser struct {
	lex   *lexer
	dump  *Dump
	tok   token
	ahead []token
}

func (p *parser) advance() error {
	if len(p.ahead) > 0 {
		p.tok = p.ahead[0]
		p.ahead = p.ahead[1:]
		return nil
	}
	t, err := p.lex.next()
	if err != nil {
		return err
	}
	p.tok = t
	return nil
}

// peek returns the n-th token after the current one without consuming it.
func (p *parser) peek(n int) (token, error) {
	for len(p.ahead) < n {
		t, err := p.lex.next()
		if err != nil {
			return token{}, err
		}
		p.ahead = append(p.ahead, t)
	}
	return p.ahead[n-1], nil
}

func (p *parser) errorf(t token, format string, args ...any) *ParseError {
	return &ParseError{Line: t.line, Col: t.col, Msg: fmt.Sprintf(format, args...)}
}

func (p *parser) expectPunct(s string) error {
	if !p.tok.punct(s) {
		return p.errorf(p.tok, "expected %q, found %s", s, p.tok.describe())
	}
	return p.advance()
}

func (p *parser) parse() error {
	if err := p.advance(); err != nil {
		return err
	}
	for p.tok.kind != tokEOF {
		if p.tok.punct(";") {
			if err := p.advance(); err != nil {
				return err
			}
			continue
		}

		var err error
		switch {
		case p.tok.is("CREATE"):
			err = p.parseCreate()
		case p.tok.is("INSERT"), p.tok.is("REPLACE"):
			err = p.parseInsert()
		case p.tok.kind == tokIdent && skippable[strings.ToUpper(p.tok.text)]:
			err = p.skipStatement()
		default:
			err = p.errorf(p.tok, "unsupported statement starting with %s", p.tok.describe())
		}
		if err != nil {
			return err
		}
	}
	return nil
}

// skipStatement consumes tokens through the next top-level semicolon.
func (p *parser) skipStatement() error {
	for p.tok.kind != tokEOF && !p.tok.punct(";") {
		if err := p.advance(); err != nil {
			return err
		}
	}
	if p.tok.punct(";") {
		return p.advance()
	}
	return nil
}

// endStatement requires the statement to end here.
func (p *parser) endStatement() error {
	switch {
	case p.tok.kind == tokEOF:
		return nil
	case p.tok.punct(";"):
		return p.advance()
	}
	return p.errorf(p.tok, "expected end of statement, found %s", p.tok.describe())
}

// parseName reads a possibly qualified name and returns its last part.
func (p *parser) parseName() (string, error) {
	var name string
	for {
		switch {
		case p.tok.kind == tokIdent, p.tok.kind == tokQuotedIdent,
			p.tok.kind == tokString && p.tok.dquoted:
			name = p.tok.text
		default:
			return "", p.errorf(p.tok, "expected name, found %s", p.tok.describe())
		}
		if err := p.advance(); err != nil {
			return "", err
		}
		if !p.tok.punct(".") {
			return name, nil
		}
		if err := p.advance(); err != nil {
			return "", err
		}
	}
}

func (p *parser) parseCreate() error {
	if err := p.advance(); err != nil {
		return err
	}
	for p.tok.is("TEMPORARY") || p.tok.is("TEMP") {
		if err := p.advance(); err != nil {
			return err
		}
	}
	if !p.tok.is("TABLE") {
		return p.skipStatement()
	}
	if err := p.advance(); err != nil {
		return err
	}
	if p.tok.is("IF") {
		for _, kw := range []string{"IF", "NOT", "EXISTS"} {
			if !p.tok.is(kw) {
				return p.errorf(p.tok, "expected %s, found %s", kw, p.tok.describe())
			}
			if err := p.advance(); err != nil {
				return err
			}
		}
	}

	name, err := p.parseName()
	if err != nil {
		return err
	}
	if !p.tok.punct("(") {
		// CREATE TABLE ... AS SELECT / LIKE carry no column list.
		return p.skipStatement()
	}
	open := p.tok
	if err := p.advance(); err != nil {
		return err
	}

	var columns []string
	for {
		constraint, err := p.tableConstraint()
		if err != nil {
			return err
		}
		switch {
		case constraint:
		case p.tok.kind == tokIdent, p.tok.kind == tokQuotedIdent,
			p.tok.kind == tokString && p.tok.dquoted:
			columns = append(columns, p.tok.text)
		default:
			return p.errorf(p.tok, "expected column definition, found %s", p.tok.describe())
		}

		end, err := p.skipElement(open)
		if err != nil {
			return err
		}
		if end {
			break
		}
	}

	t := p.dump.table(name)
	if len(t.Columns) == 0 {
		t.Columns = columns
	}
	return p.skipStatement()
}

// tableConstraint reports whether the current token opens a table
// constraint or index definition rather than a column definition. Words
// such as KEY and CHECK are valid unquoted column names, so the tokens that
// follow decide.
func (p *parser) tableConstraint() (bool, error) {
	if p.tok.kind != tokIdent {
		return false, nil
	}
	next, err := p.peek(1)
	if err != nil {
		return false, err
	}
	switch strings.ToUpper(p.tok.text) {
	case "PRIMARY", "FOREIGN":
		return next.is("KEY"), nil
	case "CHECK":
		return next.punct("("), nil
	case "CONSTRAINT":
		if constraintKeyword(next) {
			return true, nil
		}
		if !isName(next) {
			return false, nil
		}
		after, err := p.peek(2)
		if err != nil {
			return false, err
		}
		return constraintKeyword(after), nil
	case "UNIQUE", "FULLTEXT", "SPATIAL":
		if next.is("KEY") || next.is("INDEX") {
			return true, nil
		}
		return p.indexDefinition(1)
	case "KEY", "INDEX":
		return p.indexDefinition(1)
	}
	return false, nil
}

// indexDefinition reports whether the tokens from offset n form
// "[name] (column", the tail of a MySQL index definition. A column type
// such as varchar(255) has a literal inside the parentheses instead.
func (p *parser) indexDefinition(n int) (bool, error) {
	t, err := p.peek(n)
	if err != nil {
		return false, err
	}
	if isName(t) {
		n++
		if t, err = p.peek(n); err != nil {
			return false, err
		}
	}
	if !t.punct("(") {
		return false, nil
	}
	inner, err := p.peek(n + 1)
	if err != nil {
		return false, err
	}
	return isName(inner), nil
}

func constraintKeyword(t token) bool {
	for _, kw := range []string{"PRIMARY", "FOREIGN", "UNIQUE", "CHECK", "KEY", "INDEX"} {
		if t.is(kw) {
			return true
		}
	}
	return false
}

func isName(t token) bool {
	return t.kind == tokIdent || t.kind == tokQuotedIdent || (t.kind == tokString && t.dquoted)
}

// skipElement consumes one element of a parenthesized list, stopping after
// the separating comma (false) or the closing parenthesis (true).
func (p *parser) skipElement(open token) (bool, error) {
	depth := 0
	for {
		if err := p.advance(); err != nil {
			return false, err
		}
		switch {
		case p.tok.kind == tokEOF:
			return false, p.errorf(open, "unterminated parenthesis")
		case p.tok.punct("("):
			depth++
		case p.tok.punct(")"):
			if depth == 0 {
				return true, p.advance()
			}
			depth--
		case p.tok.punct(",") && depth == 0:
			return false, p.advance()
		}
	}
}

func (p *parser) parseInsert() error {
	if err := p.advance(); err != nil {
		return err
	}
	if p.tok.is("OR") {
		// SQLite conflict clause: INSERT OR REPLACE / OR IGNORE.
		if err := p.advance(); err != nil {
			return err
		}
		if err := p.advance(); err != nil {
			return err
		}
	}
	for p.tok.is("LOW_PRIORITY") || p.tok.is("DELAYED") || p.tok.is("HIGH_PRIORITY") || p.tok.is("IGNORE") {
		if err := p.advance(); err != nil {
			return err
		}
	}
	if p.tok.is("INTO") {
		if err := p.advance(); err != nil {
			return err
		}
	}

	name, err := p.parseName()
	if err != nil {
		return err
	}
	t := p.dump.table(name)

	var colList []string
	if p.tok.punct("(") {
		if err := p.advance(); err != nil {
			return err
		}
		for {
			col, err := p.parseName()
			if err != nil {
				return err
			}
			colList = append(colList, col)
			if p.tok.punct(",") {
				if err := p.advance(); err != nil {
					return err
				}
				continue
			}
			if err := p.expectPunct(")"); err != nil {
				return err
			}
			break
		}
	}

	if !p.tok.is("VALUES") && !p.tok.is("VALUE") {
		return p.errorf(p.tok, "expected VALUES, found %s", p.tok.describe())
	}
	if err := p.advance(); err != nil {
		return err
	}

	mapping, err := p.columnMapping(t, colList)
	if err != nil {
		return err
	}

	for {
		start := p.tok
		values, err := p.parseTuple()
		if err != nil {
			return err
		}

		if mapping == nil && len(t.Columns) == 0 {
			t.Columns = generatedColumns(len(values))
		}
		want := len(t.Columns)
		if mapping != nil {
			want = len(mapping)
		}
		if len(values) != want {
			return p.errorf(start, "row has %d values, table %q expects %d", len(values), t.Name, want)
		}

		row := values
		if mapping != nil {
			row = make(Row, len(t.Columns))
			for i := range row {
				row[i] = Value{Null: true}
			}
			for i, idx := range mapping {
				row[idx] = values[i]
			}
		}
		t.Rows = append(t.Rows, row)

		if !p.tok.punct(",") {
			break
		}
		if err := p.advance(); err != nil {
			return err
		}
	}

	if p.tok.is("ON") {
		// ON DUPLICATE KEY UPDATE / ON CONFLICT do not change the inserted values.
		return p.skipStatement()
	}
	return p.endStatement()
}

// columnMapping maps an explicit column list onto table column positions.
// It returns nil when the statement lists no columns.
func (p *parser) columnMapping(t *Table, colList []string) ([]int, error) {
	if colList == nil {
		return nil, nil
	}
	if len(t.Columns) == 0 {
		t.Columns = append([]string(nil), colList...)
	}
	mapping := make([]int, len(colList))
	for i, c := range colList {
		idx := t.ColumnIndex(c)
		if idx < 0 {
			return nil, p.errorf(p.tok, "unknown column %q in table %q", c, t.Name)
		}
		mapping[i] = idx
	}
	return mapping, nil
}

func generatedColumns(n int) []string {
	cols := make([]string, n)
	for i := range cols {
		cols[i] = fmt.Sprintf("column_%d", i+1)
	}
	return cols
}

// parseTuple reads a parenthesized, comma-separated list of literals.
func (p *parser) parseTuple() (Row, error) {
	if err := p.expectPunct("("); err != nil {
		return nil, err
	}
	var row Row
	if p.tok.punct(")") {
		return row, p.advance()
	}
	for {
		v, err := p.parseValue()
		if err != nil {
			return nil, err
		}
		row = append(row, v)
		if p.tok.punct(",") {
			if err := p.advance(); err != nil {
				return nil, err
			}
			continue
		}
		return row, p.expectPunct(")")
	}
}

func (p *parser) parseValue() (Value, error) {
	t := p.tok
	switch {
	case t.kind == tokString, t.kind == tokNumber:
		return Value{Text: t.text}, p.advance()

	case t.punct("-") || t.punct("+"):
		if err := p.advance(); err != nil {
			return Value{}, err
		}
		if p.tok.kind != tokNumber {
			return Value{}, p.errorf(p.tok, "expected number after %q, found %s", t.text, p.tok.describe())
		}
		text := p.tok.text
		if t.text == "-" {
			text = "-" + text
		}
		return Value{Text: text}, p.advance()

	case t.is("NULL"):
		return Value{Null: true}, p.advance()

	case t.is("TRUE"):
		return Value{Text: "1"}, p.advance()

	case t.is("FALSE"):
		return Value{Text: "0"}, p.advance()

	case t.kind == tokIdent && (strings.HasPrefix(t.text, "_") || strings.EqualFold(t.text, "X") || strings.EqualFold(t.text, "B")):
		// Charset introducers (_binary 'x', _utf8mb4 'x') and hex/bit literals (X'0F', b'01').
		if err := p.advance(); err != nil {
			return Value{}, err
		}
		if p.tok.kind != tokString || p.tok.dquoted {
			return Value{}, p.errorf(t, "unexpected %s in VALUES", t.describe())
		}
		text := p.tok.text
		switch strings.ToUpper(t.text) {
		case "X":
			text = "0x" + text
		case "B":
			text = "0b" + text
		}
		return Value{Text: text}, p.advance()
	}
	return Value{}, p.errorf(t, "unexpected %s in VALUES", t.describe())
}
